package account_test

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/account"
	"github.com/trezcool/masomo-portal/core/session"
	inmemdb "github.com/trezcool/masomo-portal/storage/database/inmem"
)

const goodPwd = "Str0ng&Unique"

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

func newValidator() *validator.Validate {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	session.InitValidators(validate, translator)
	account.InitValidators(validate, translator)
	return validate
}

func setup(t *testing.T, demoMode bool) (*account.Service, account.Repository) {
	t.Helper()
	account.PasswordCost = bcrypt.MinCost
	repo := inmemdb.NewAccountRepository(inmemdb.Open())
	return account.NewService(repo, newValidator(), nopLogger{}, demoMode), repo
}

func createAccount(t *testing.T, svc *account.Service, uname string, role session.Role) account.Account {
	t.Helper()
	acc, err := svc.Create(context.Background(), account.NewAccount{
		Name:            "Test " + uname,
		Username:        uname,
		Email:           uname + "@masomo.test",
		Role:            role,
		Password:        goodPwd,
		PasswordConfirm: goodPwd,
	})
	require.NoError(t, err)
	return acc
}

func fieldTags(t *testing.T, err error) map[string]string {
	t.Helper()
	tags := make(map[string]string)
	switch vErr := errors.Cause(err).(type) {
	case validator.ValidationErrors:
		for _, fErr := range vErr {
			tags[fErr.Field()] = fErr.Tag()
		}
	case *core.ValidationError:
		for _, fErr := range vErr.Fields {
			tags[fErr.Field] = fErr.Error
		}
	default:
		t.Fatalf("not a validation error: %v", err)
	}
	return tags
}

func TestService_Create(t *testing.T) {
	svc, _ := setup(t, false)
	ctx := context.Background()
	existing := createAccount(t, svc, "jdoe", session.RoleTeacher)

	assert.NotEmpty(t, existing.ID)
	assert.True(t, existing.IsActive)
	assert.NoError(t, existing.CheckPassword(goodPwd))

	valid := account.NewAccount{
		Name:            "Jane Roe",
		Username:        "  JRoe ",
		Email:           "JRoe@Masomo.test",
		Role:            session.RoleStudent,
		Password:        goodPwd,
		PasswordConfirm: goodPwd,
	}

	tests := []struct {
		name     string
		mutate   func(na *account.NewAccount)
		wantTags map[string]string
	}{
		{name: "missing role", mutate: func(na *account.NewAccount) { na.Role = "" }, wantTags: map[string]string{"role": "required"}},
		{name: "invalid role", mutate: func(na *account.NewAccount) { na.Role = "janitor" }, wantTags: map[string]string{"role": "role"}},
		{name: "invalid username", mutate: func(na *account.NewAccount) { na.Username = "j roe" }, wantTags: map[string]string{"username": "alphanum_"}},
		{name: "invalid email", mutate: func(na *account.NewAccount) { na.Email = "nope" }, wantTags: map[string]string{"email": "email"}},
		{
			name:     "password mismatch",
			mutate:   func(na *account.NewAccount) { na.PasswordConfirm = "Other&Pwd123" },
			wantTags: map[string]string{"password_confirm": "eqfield"},
		},
		{
			name:     "short password",
			mutate:   func(na *account.NewAccount) { na.Password, na.PasswordConfirm = "Ab1&", "Ab1&" },
			wantTags: map[string]string{"password": "pwdminlen"},
		},
		{
			name:     "numeric password",
			mutate:   func(na *account.NewAccount) { na.Password, na.PasswordConfirm = "1234567890", "1234567890" },
			wantTags: map[string]string{"password": "pwdnotallnum"},
		},
		{
			name:     "simple password",
			mutate:   func(na *account.NewAccount) { na.Password, na.PasswordConfirm = "abcdefghij", "abcdefghij" },
			wantTags: map[string]string{"password": "pwdcplx"},
		},
		{
			name: "password like email",
			mutate: func(na *account.NewAccount) {
				na.Password, na.PasswordConfirm = "Jroe@masomo.test1", "Jroe@masomo.test1"
			},
			wantTags: map[string]string{"password": "pwdtoosim"},
		},
		{
			name:     "common password",
			mutate:   func(na *account.NewAccount) { na.Password, na.PasswordConfirm = "P@ssw0rd", "P@ssw0rd" },
			wantTags: map[string]string{"password": "pwdnocommon"},
		},
		{
			name:     "taken username",
			mutate:   func(na *account.NewAccount) { na.Username = "JDoe" },
			wantTags: map[string]string{"username": account.ErrUsernameExists.Error()},
		},
		{
			name:     "taken email",
			mutate:   func(na *account.NewAccount) { na.Email = "jdoe@masomo.test" },
			wantTags: map[string]string{"email": account.ErrEmailExists.Error()},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			na := valid
			tt.mutate(&na)
			_, err := svc.Create(ctx, na)
			require.Error(t, err)
			assert.Equal(t, tt.wantTags, fieldTags(t, err))
		})
	}

	t.Run("valid", func(t *testing.T) {
		acc, err := svc.Create(ctx, valid)
		require.NoError(t, err)
		assert.Equal(t, "jroe", acc.Username)
		assert.Equal(t, "jroe@masomo.test", acc.Email)
		assert.Equal(t, session.RoleStudent, acc.Role)
	})

	t.Run("no email", func(t *testing.T) {
		na := valid
		na.Username, na.Email = "noemail", ""
		_, err := svc.Create(ctx, na)
		require.NoError(t, err)
		na.Username = "noemail2"
		_, err = svc.Create(ctx, na)
		assert.NoError(t, err, "empty emails never collide")
	})
}

func TestService_Authenticate(t *testing.T) {
	svc, repo := setup(t, false)
	ctx := context.Background()
	acc := createAccount(t, svc, "jdoe", session.RoleAccountant)

	inactive := createAccount(t, svc, "gone", session.RoleTeacher)
	inactive.IsActive = false
	_, err := repo.UpdateAccount(ctx, inactive)
	require.NoError(t, err)

	tests := []struct {
		name    string
		uname   string
		pwd     string
		wantErr error
	}{
		{name: "unknown account", uname: "nobody", pwd: goodPwd, wantErr: account.ErrAuthenticationFailed},
		{name: "empty username", uname: "", pwd: goodPwd, wantErr: account.ErrAuthenticationFailed},
		{name: "blank username", uname: "   ", pwd: goodPwd, wantErr: account.ErrAuthenticationFailed},
		{name: "wrong password", uname: "jdoe", pwd: "nope", wantErr: account.ErrAuthenticationFailed},
		{name: "deactivated", uname: "gone", pwd: goodPwd, wantErr: account.ErrAccountDeactivated},
		{name: "by username", uname: " JDOE ", pwd: goodPwd},
		{name: "by email", uname: "jdoe@masomo.test", pwd: goodPwd},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := svc.Authenticate(ctx, tt.uname, tt.pwd)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, acc.ID, id.ID)
			assert.Equal(t, session.RoleAccountant, id.Role)
			assert.Equal(t, "jdoe@masomo.test", id.Email)
		})
	}

	got, err := svc.GetByID(ctx, acc.ID)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), got.LastLogin, time.Minute)
}

func TestService_GetByUsernameOrEmail_Blank(t *testing.T) {
	svc, _ := setup(t, false)
	ctx := context.Background()
	createAccount(t, svc, "headmaster", session.RoleAdmin)
	createAccount(t, svc, "pupil", session.RoleStudent)

	for _, uname := range []string{"", "   ", "\n"} {
		_, err := svc.GetByUsernameOrEmail(ctx, uname)
		assert.Equal(t, account.ErrNotFound, errors.Cause(err), "username %q", uname)
	}
	_, err := svc.GetByID(ctx, "")
	assert.Equal(t, account.ErrNotFound, errors.Cause(err))
}

func TestService_ResetPassword(t *testing.T) {
	svc, _ := setup(t, false)
	ctx := context.Background()
	createAccount(t, svc, "jdoe", session.RoleTeacher)
	newPwd := "N3w&Better!"

	err := svc.ResetPassword(ctx, account.ResetPassword{Username: "nobody", Password: newPwd, PasswordConfirm: newPwd})
	assert.Equal(t, account.ErrNotFound, errors.Cause(err))

	err = svc.ResetPassword(ctx, account.ResetPassword{Username: "jdoe", Password: "weak", PasswordConfirm: "weak"})
	assert.Equal(t, map[string]string{"password": "pwdminlen"}, fieldTags(t, err))

	require.NoError(t, svc.ResetPassword(ctx, account.ResetPassword{Username: "JDoe", Password: newPwd, PasswordConfirm: newPwd}))
	_, err = svc.Authenticate(ctx, "jdoe", goodPwd)
	assert.Equal(t, account.ErrAuthenticationFailed, err)
	_, err = svc.Authenticate(ctx, "jdoe", newPwd)
	assert.NoError(t, err)
}

func TestService_Demo(t *testing.T) {
	ctx := context.Background()

	t.Run("disabled", func(t *testing.T) {
		svc, _ := setup(t, false)
		assert.Equal(t, account.ErrDemoDisabled, svc.SeedDemo(ctx))
		accs, err := svc.Demo(ctx)
		require.NoError(t, err)
		assert.Empty(t, accs)
		_, err = svc.LoginDemo(ctx, "demo.admin")
		assert.Equal(t, account.ErrDemoDisabled, err)
	})

	t.Run("enabled", func(t *testing.T) {
		svc, _ := setup(t, true)
		createAccount(t, svc, "jdoe", session.RoleTeacher)
		require.NoError(t, svc.SeedDemo(ctx))
		require.NoError(t, svc.SeedDemo(ctx), "seeding twice is a no-op")

		accs, err := svc.Demo(ctx)
		require.NoError(t, err)
		require.Len(t, accs, len(session.AllRoles))
		for i, role := range session.AllRoles {
			assert.Equal(t, role, accs[i].Role)
			assert.Equal(t, "demo."+string(role), accs[i].Username)
		}

		var studentID string
		for _, acc := range accs {
			switch acc.Role {
			case session.RoleStudent:
				studentID = acc.ID
				require.NotNil(t, acc.Attributes)
				assert.Equal(t, "7", acc.Attributes.Grade)
			case session.RoleParent:
				require.NotNil(t, acc.Attributes)
				assert.Equal(t, []string{studentID}, acc.Attributes.ChildIDs)
			}
		}

		id, err := svc.LoginDemo(ctx, "demo.principal")
		require.NoError(t, err)
		assert.Equal(t, session.RolePrincipal, id.Role)

		_, err = svc.LoginDemo(ctx, "jdoe")
		assert.Equal(t, account.ErrAuthenticationFailed, err, "regular accounts need a password")

		for _, uname := range []string{"", " \t"} {
			_, err = svc.LoginDemo(ctx, uname)
			assert.Equal(t, account.ErrAuthenticationFailed, err, "blank username %q", uname)
		}

		_, err = svc.Authenticate(ctx, "demo.student", account.DemoPassword)
		assert.NoError(t, err)
	})
}
