package sessionstore

import (
	"context"
	"fmt"

	"github.com/alexedwards/scs/v2"

	"github.com/trezcool/masomo-portal/core/session"
)

// SCSPersister keeps the Session State record inside the browser's scs session.
// It is bound to the request context the session was loaded into.
type SCSPersister struct {
	sm  *scs.SessionManager
	ctx context.Context
}

var _ session.Persister = (*SCSPersister)(nil)

func NewSCSPersister(ctx context.Context, sm *scs.SessionManager) *SCSPersister {
	return &SCSPersister{sm: sm, ctx: ctx}
}

func (p *SCSPersister) Load() (data []byte, err error) {
	defer recoverErr(&err)
	data, _ = p.sm.Get(p.ctx, session.RecordName).([]byte)
	return data, nil
}

func (p *SCSPersister) Save(data []byte) (err error) {
	defer recoverErr(&err)
	p.sm.Put(p.ctx, session.RecordName, data)
	return nil
}

// recoverErr turns the scs "no session data in context" panic into an error.
func recoverErr(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("scs: %v", r)
	}
}
