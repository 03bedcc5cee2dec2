package session

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memPersister struct {
	data    []byte
	loadErr error
	saveErr error
	saves   int
}

func (p *memPersister) Load() ([]byte, error) { return p.data, p.loadErr }

func (p *memPersister) Save(data []byte) error {
	p.saves++
	if p.saveErr != nil {
		return p.saveErr
	}
	p.data = append([]byte(nil), data...)
	return nil
}

type timeoutSpy struct{ cleared int }

func (t *timeoutSpy) ClearTimeout() { t.cleared++ }

type logLine struct {
	level, msg string
}

type recLogger struct{ lines []logLine }

func (l *recLogger) add(level, msg string)                 { l.lines = append(l.lines, logLine{level, msg}) }
func (l *recLogger) Debug(msg string, args ...interface{}) { l.add("debug", msg) }
func (l *recLogger) Info(msg string, args ...interface{})  { l.add("info", msg) }
func (l *recLogger) Warn(msg string, args ...interface{})  { l.add("warn", msg) }
func (l *recLogger) Error(msg string, args ...interface{}) { l.add("error", msg) }
func (l *recLogger) Fatal(msg string, args ...interface{}) { l.add("fatal", msg) }
func (l *recLogger) count(level string) (n int) {
	for _, line := range l.lines {
		if line.level == level {
			n++
		}
	}
	return n
}

func newIdentity(role Role) Identity {
	return Identity{
		ID:    "id-" + string(role),
		Name:  "User " + string(role),
		Email: string(role) + "@test.cd",
		Role:  role,
	}
}

func checkInvariant(t *testing.T, s *Store) {
	t.Helper()
	_, hasID := s.Identity()
	if s.IsAuthenticated() != hasID {
		t.Fatalf("IsAuthenticated() = %v but identity present = %v", s.IsAuthenticated(), hasID)
	}
	st := s.State()
	if st.IsAuthenticated != (st.Identity != nil) {
		t.Fatalf("State() breaks invariant: %+v", st)
	}
}

func TestStore_initialState(t *testing.T) {
	s := NewStore(&memPersister{})
	checkInvariant(t, s)
	assert.False(t, s.IsAuthenticated())
	_, ok := s.SessionExpiredAt()
	assert.False(t, ok)
	assert.False(t, s.HasPermission("dashboard"))
	assert.False(t, s.HasRole(AllRoles...))
}

func TestStore_LoginRoundTrip(t *testing.T) {
	p := &memPersister{}
	s := NewStore(p)

	id := Identity{
		ID:         "42",
		Name:       "Mama Zawadi",
		Email:      "zawadi@test.cd",
		Role:       RoleParent,
		Avatar:     "https://cdn.test.cd/a.png",
		Attributes: &Attributes{ChildIDs: []string{"s1", "s2"}},
	}
	s.Login(id)
	checkInvariant(t, s)

	got, ok := s.Identity()
	require.True(t, ok)
	assert.True(t, got.Equal(id), "Identity() = %+v, want %+v", got, id)
	assert.Equal(t, 1, p.saves)

	// the store owns its copy
	id.Attributes.ChildIDs[0] = "changed"
	got, _ = s.Identity()
	assert.Equal(t, "s1", got.Attributes.ChildIDs[0])

	// reloading restores the last known session
	reloaded := NewStore(p)
	got, ok = reloaded.Identity()
	require.True(t, ok)
	assert.Equal(t, "42", got.ID)
	assert.Equal(t, []string{"s1", "s2"}, got.Attributes.ChildIDs)
	assert.True(t, reloaded.IsAuthenticated())
}

func TestStore_LoginOverwrites(t *testing.T) {
	s := NewStore(nil)
	s.Login(newIdentity(RoleTeacher))
	s.Login(newIdentity(RoleAccountant))

	role, ok := s.Role()
	require.True(t, ok)
	assert.Equal(t, RoleAccountant, role)
	checkInvariant(t, s)
}

func TestStore_Logout(t *testing.T) {
	now := time.Date(2026, time.March, 3, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	tests := []struct {
		name        string
		reason      []LogoutReason
		wantExpired bool
	}{
		{name: "default reason", wantExpired: false},
		{name: "manual", reason: []LogoutReason{LogoutManual}, wantExpired: false},
		{name: "session expired", reason: []LogoutReason{LogoutSessionExpired}, wantExpired: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &memPersister{}
			spy := &timeoutSpy{}
			s := NewStore(p, WithTimeout(spy), WithClock(clock))
			s.Login(newIdentity(RoleStudent))

			s.Logout(tt.reason...)
			checkInvariant(t, s)
			assert.False(t, s.IsAuthenticated())
			assert.Equal(t, 1, spy.cleared)

			expiredAt, ok := s.SessionExpiredAt()
			assert.Equal(t, tt.wantExpired, ok)
			if tt.wantExpired {
				assert.True(t, expiredAt.Equal(now))
			}

			// persisted
			reloaded := NewStore(p)
			_, ok = reloaded.SessionExpiredAt()
			assert.Equal(t, tt.wantExpired, ok)
			assert.False(t, reloaded.IsAuthenticated())
		})
	}
}

func TestStore_LoginClearsExpiryMarker(t *testing.T) {
	s := NewStore(&memPersister{})
	s.Login(newIdentity(RoleTeacher))
	s.Logout(LogoutSessionExpired)

	_, ok := s.SessionExpiredAt()
	require.True(t, ok)

	s.Login(newIdentity(RoleTeacher))
	_, ok = s.SessionExpiredAt()
	assert.False(t, ok)
}

func TestStore_LogoutIdempotent(t *testing.T) {
	s := NewStore(&memPersister{})
	before := s.State()

	s.Logout()
	s.Logout()
	after := s.State()

	assert.Nil(t, after.Identity)
	assert.False(t, after.IsAuthenticated)
	assert.Equal(t, before, after)
	checkInvariant(t, s)
}

func TestStore_HasRole(t *testing.T) {
	tests := []struct {
		name  string
		login *Identity
		roles []Role
		want  bool
	}{
		{name: "no identity", roles: AllRoles, want: false},
		{name: "no identity, empty list", want: false},
		{name: "member", login: idPtr(newIdentity(RoleTeacher)), roles: []Role{RoleAdmin, RoleTeacher}, want: true},
		{name: "member, order independent", login: idPtr(newIdentity(RoleTeacher)), roles: []Role{RoleTeacher, RoleAdmin}, want: true},
		{name: "not a member", login: idPtr(newIdentity(RoleStudent)), roles: []Role{RoleAdmin, RolePrincipal}, want: false},
		{name: "empty list", login: idPtr(newIdentity(RoleAdmin)), want: false},
		{name: "no role hierarchy", login: idPtr(newIdentity(RoleAdmin)), roles: []Role{RoleTeacher}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore(nil)
			if tt.login != nil {
				s.Login(*tt.login)
			}
			assert.Equal(t, tt.want, s.HasRole(tt.roles...))
		})
	}
}

func TestStore_HasPermission(t *testing.T) {
	perms := []string{
		"finance", "finance.view", "finance.export", "students", "students.view", "library", "transport",
		"dashboard", "attendance.mark", "unknown", "", Wildcard, "fin", "finance.",
	}
	for _, role := range AllRoles {
		for _, perm := range perms {
			t.Run(fmt.Sprintf("%s/%s", role, perm), func(t *testing.T) {
				s := NewStore(nil)
				s.Login(newIdentity(role))

				want := false
				for _, entry := range PermissionsOf(role) {
					if entry == Wildcard || entry == perm {
						want = true
					}
				}
				assert.Equal(t, want, s.HasPermission(perm))
			})
		}
	}

	t.Run("unauthenticated", func(t *testing.T) {
		s := NewStore(nil)
		assert.False(t, s.HasPermission("dashboard"))
	})
	t.Run("teacher cannot access finance", func(t *testing.T) {
		s := NewStore(nil)
		s.Login(newIdentity(RoleTeacher))
		assert.False(t, s.HasPermission("finance"))
	})
	t.Run("accountant can access finance", func(t *testing.T) {
		s := NewStore(nil)
		s.Login(newIdentity(RoleAccountant))
		assert.True(t, s.HasPermission("finance"))
	})
	t.Run("admin has everything", func(t *testing.T) {
		s := NewStore(nil)
		s.Login(newIdentity(RoleAdmin))
		assert.True(t, s.HasPermission("anything.at.all"))
	})
}

func TestStore_persistenceFailures(t *testing.T) {
	t.Run("unreadable record", func(t *testing.T) {
		logger := &recLogger{}
		s := NewStore(&memPersister{loadErr: errors.New("disk on fire")}, WithLogger(logger))
		assert.False(t, s.IsAuthenticated())
		assert.Equal(t, 1, logger.count("warn"))
	})
	t.Run("corrupt record", func(t *testing.T) {
		logger := &recLogger{}
		s := NewStore(&memPersister{data: []byte("{lol")}, WithLogger(logger))
		assert.False(t, s.IsAuthenticated())
		assert.Equal(t, 1, logger.count("warn"))
	})
	t.Run("record breaking the invariant", func(t *testing.T) {
		s := NewStore(&memPersister{data: []byte(`{"identity":null,"isAuthenticated":true}`)})
		assert.False(t, s.IsAuthenticated())
		checkInvariant(t, s)
	})
	t.Run("record with unknown role", func(t *testing.T) {
		s := NewStore(&memPersister{data: []byte(`{"identity":{"id":"1","name":"x","role":"janitor"},"isAuthenticated":true}`)})
		assert.False(t, s.IsAuthenticated())
	})
	t.Run("failed write keeps memory state", func(t *testing.T) {
		logger := &recLogger{}
		s := NewStore(&memPersister{saveErr: errors.New("quota exceeded")}, WithLogger(logger))
		s.Login(newIdentity(RoleLibrarian))
		assert.True(t, s.IsAuthenticated())
		assert.True(t, s.HasPermission("library"))
		assert.Equal(t, 1, logger.count("warn"))
	})
}

func TestStore_auditsTransitions(t *testing.T) {
	logger := &recLogger{}
	s := NewStore(nil, WithLogger(logger))
	s.Logout() // nothing to audit
	s.Login(newIdentity(RoleTeacher))
	s.Logout(LogoutSessionExpired)

	require.Len(t, logger.lines, 2)
	assert.Equal(t, "session: login id-teacher (teacher)", logger.lines[0].msg)
	assert.Equal(t, "session: logout id-teacher (session_expired)", logger.lines[1].msg)
}

func idPtr(id Identity) *Identity { return &id }
