package account

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/session"
)

// DemoPassword is shared by every seeded demo account.
const DemoPassword = "Demo#Masomo21"

var (
	// errors
	ErrNotFound             = errors.New("account not found")
	ErrEmailExists          = errors.New("an account with this email already exists")
	ErrUsernameExists       = errors.New("an account with this username already exists")
	ErrAuthenticationFailed = errors.New("invalid credentials")
	ErrAccountDeactivated   = errors.New("account deactivated")
	ErrDemoDisabled         = errors.New("demo mode is disabled")
)

type (
	Repository interface {
		// CheckUniqueness returns ErrUsernameExists or ErrEmailExists when taken by an account not in excludedIDs.
		// An empty email is never checked.
		CheckUniqueness(ctx context.Context, username, email string, excludedIDs ...string) error
		CreateAccount(ctx context.Context, acc Account) (Account, error)
		QueryAccounts(ctx context.Context) ([]Account, error)
		GetAccount(ctx context.Context, filter GetFilter) (Account, error)
		UpdateAccount(ctx context.Context, acc Account) (Account, error)
	}

	Service struct {
		repo     Repository
		validate *validator.Validate
		logger   core.Logger
		demoMode bool
		now      func() time.Time
	}
)

func NewService(repo Repository, validate *validator.Validate, logger core.Logger, demoMode bool) *Service {
	return &Service{
		repo:     repo,
		validate: validate,
		logger:   logger,
		demoMode: demoMode,
		now:      time.Now,
	}
}

func (svc *Service) DemoMode() bool {
	return svc.demoMode
}

func (svc *Service) checkUniqueness(ctx context.Context, uname, email string, excludedIDs ...string) error {
	if err := svc.repo.CheckUniqueness(ctx, uname, email, excludedIDs...); err != nil {
		var field string
		switch err {
		case ErrUsernameExists:
			field = "username"
		case ErrEmailExists:
			field = "email"
		default:
			return err
		}
		return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
	}
	return nil
}

func (svc *Service) Create(ctx context.Context, na NewAccount) (Account, error) {
	if err := na.Validate(svc.validate); err != nil {
		return Account{}, err
	}
	if err := svc.checkUniqueness(ctx, na.Username, na.Email); err != nil {
		return Account{}, err
	}
	return svc.create(ctx, na)
}

func (svc *Service) create(ctx context.Context, na NewAccount) (Account, error) {
	now := svc.now().UTC()
	acc := Account{
		ID:         uuid.New().String(),
		Name:       na.Name,
		Username:   na.Username,
		Email:      na.Email,
		Role:       na.Role,
		Avatar:     na.Avatar,
		Attributes: na.Attributes,
		IsActive:   true,
		IsDemo:     na.IsDemo,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := acc.SetPassword(na.Password); err != nil {
		return Account{}, errors.Wrap(err, "hashing password")
	}
	acc, err := svc.repo.CreateAccount(ctx, acc)
	if err != nil {
		return Account{}, errors.Wrap(err, "creating account")
	}
	svc.logger.Info("account: created "+acc.Username, map[string]interface{}{"role": acc.Role, "demo": acc.IsDemo})
	return acc, nil
}

func (svc *Service) QueryAll(ctx context.Context) ([]Account, error) {
	return svc.repo.QueryAccounts(ctx)
}

func (svc *Service) GetByID(ctx context.Context, id string) (Account, error) {
	return svc.repo.GetAccount(ctx, GetFilter{ID: id})
}

func (svc *Service) GetByUsernameOrEmail(ctx context.Context, uname string) (Account, error) {
	return svc.repo.GetAccount(ctx, GetFilter{UsernameOrEmail: core.CleanString(uname, true /* lower */)})
}

// Authenticate checks the credentials and returns the Identity to log in.
// Unknown accounts and wrong passwords are both reported as ErrAuthenticationFailed.
func (svc *Service) Authenticate(ctx context.Context, uname, pwd string) (session.Identity, error) {
	if core.CleanString(uname) == "" {
		return session.Identity{}, ErrAuthenticationFailed
	}
	acc, err := svc.GetByUsernameOrEmail(ctx, uname)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return session.Identity{}, ErrAuthenticationFailed
		}
		return session.Identity{}, err
	}
	if err = acc.CheckPassword(pwd); err != nil {
		return session.Identity{}, ErrAuthenticationFailed
	}
	return svc.signIn(ctx, acc)
}

func (svc *Service) signIn(ctx context.Context, acc Account) (session.Identity, error) {
	if !acc.IsActive {
		return session.Identity{}, ErrAccountDeactivated
	}
	acc.LastLogin = svc.now().UTC()
	if _, err := svc.repo.UpdateAccount(ctx, acc); err != nil {
		// the login itself is still valid
		svc.logger.Warn("account: updating last login", errors.Wrap(err, acc.Username))
	}
	return acc.Identity(), nil
}

func (svc *Service) ResetPassword(ctx context.Context, rp ResetPassword) error {
	if err := rp.Validate(svc.validate); err != nil {
		return err
	}
	acc, err := svc.GetByUsernameOrEmail(ctx, rp.Username)
	if err != nil {
		return err
	}
	if err = acc.SetPassword(rp.Password); err != nil {
		return errors.Wrap(err, "hashing password")
	}
	acc.UpdatedAt = svc.now().UTC()
	if _, err = svc.repo.UpdateAccount(ctx, acc); err != nil {
		return errors.Wrap(err, "updating account")
	}
	svc.logger.Info("account: password reset " + acc.Username)
	return nil
}

// Demo lists the demo accounts offered on the login page. Empty outside demo mode.
func (svc *Service) Demo(ctx context.Context) ([]Account, error) {
	if !svc.demoMode {
		return nil, nil
	}
	accs, err := svc.repo.QueryAccounts(ctx)
	if err != nil {
		return nil, err
	}
	demo := make([]Account, 0, len(session.AllRoles))
	for _, role := range session.AllRoles {
		for _, acc := range accs {
			if acc.IsDemo && acc.Role == role {
				demo = append(demo, acc)
			}
		}
	}
	return demo, nil
}

// LoginDemo signs in a demo account without its password.
func (svc *Service) LoginDemo(ctx context.Context, uname string) (session.Identity, error) {
	if !svc.demoMode {
		return session.Identity{}, ErrDemoDisabled
	}
	if core.CleanString(uname) == "" {
		return session.Identity{}, ErrAuthenticationFailed
	}
	acc, err := svc.GetByUsernameOrEmail(ctx, uname)
	if err != nil || !acc.IsDemo {
		return session.Identity{}, ErrAuthenticationFailed
	}
	return svc.signIn(ctx, acc)
}

// SeedDemo creates a `demo.<role>` account for every role missing one.
func (svc *Service) SeedDemo(ctx context.Context) error {
	if !svc.demoMode {
		return ErrDemoDisabled
	}
	for _, info := range session.Roles {
		uname := "demo." + string(info.Value)
		_, err := svc.repo.GetAccount(ctx, GetFilter{UsernameOrEmail: uname})
		if err == nil {
			continue
		}
		if errors.Cause(err) != ErrNotFound {
			return err
		}

		na := NewAccount{
			Name:     "Demo " + info.Name,
			Username: uname,
			Role:     info.Value,
			Password: DemoPassword,
			IsDemo:   true,
		}
		switch info.Value {
		case session.RoleStudent:
			na.Attributes = &session.Attributes{Grade: "7", Section: "B"}
		case session.RoleParent:
			if st, err := svc.repo.GetAccount(ctx, GetFilter{UsernameOrEmail: "demo.student"}); err == nil {
				na.Attributes = &session.Attributes{ChildIDs: []string{st.ID}}
			}
		}
		if _, err = svc.create(ctx, na); err != nil {
			return err
		}
	}
	return nil
}
