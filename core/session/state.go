package session

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

// RecordName is the name of the durable record holding the Session State.
const RecordName = "masomo.session"

var errInvalidRecord = errors.New("invalid session record")

// State is a snapshot of the Session State.
// IsAuthenticated is true if and only if Identity is set.
type State struct {
	Identity         *Identity
	IsAuthenticated  bool
	SessionExpiredAt *time.Time
}

// record is the persisted layout of State.
type record struct {
	Identity         *Identity  `json:"identity"`
	IsAuthenticated  bool       `json:"isAuthenticated"`
	SessionExpiredAt *time.Time `json:"sessionExpiredAt"`
}

func (st State) clone() State {
	if st.Identity != nil {
		id := st.Identity.clone()
		st.Identity = &id
	}
	if st.SessionExpiredAt != nil {
		t := *st.SessionExpiredAt
		st.SessionExpiredAt = &t
	}
	return st
}

func encodeState(st State) ([]byte, error) {
	return json.Marshal(record{
		Identity:         st.Identity,
		IsAuthenticated:  st.IsAuthenticated,
		SessionExpiredAt: st.SessionExpiredAt,
	})
}

// decodeState parses a persisted record. An empty record is the unauthenticated state.
func decodeState(data []byte) (State, error) {
	if len(data) == 0 {
		return State{}, nil
	}
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return State{}, errors.Wrap(errInvalidRecord, err.Error())
	}
	if rec.IsAuthenticated != (rec.Identity != nil) {
		return State{}, errors.Wrap(errInvalidRecord, "isAuthenticated does not match identity")
	}
	if rec.Identity != nil && !rec.Identity.Role.Valid() {
		return State{}, errors.Wrapf(errInvalidRecord, "unknown role %q", rec.Identity.Role)
	}
	return State{
		Identity:         rec.Identity,
		IsAuthenticated:  rec.IsAuthenticated,
		SessionExpiredAt: rec.SessionExpiredAt,
	}, nil
}
