package account

import (
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/session"
)

// Account is a directory entry able to sign in to the portal.
type Account struct {
	ID           string              `json:"id"`
	Name         string              `json:"name"`
	Username     string              `json:"username"`
	Email        string              `json:"email"`
	Role         session.Role        `json:"role"`
	Avatar       string              `json:"avatar,omitempty"`
	Attributes   *session.Attributes `json:"attributes,omitempty"`
	IsActive     bool                `json:"is_active"`
	IsDemo       bool                `json:"is_demo"`
	PasswordHash []byte              `json:"-"`
	CreatedAt    time.Time           `json:"created_at"` // UTC
	UpdatedAt    time.Time           `json:"updated_at"` // UTC
	LastLogin    time.Time           `json:"last_login"` // UTC
}

// PasswordCost is the bcrypt cost used to hash new passwords.
var PasswordCost = bcrypt.DefaultCost

func (a *Account) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), PasswordCost)
	if err != nil {
		return err
	}
	a.PasswordHash = hash
	return nil
}

func (a *Account) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(a.PasswordHash, []byte(pwd))
}

// Identity returns the session Identity of the account.
func (a Account) Identity() session.Identity {
	id := session.Identity{
		ID:     a.ID,
		Name:   a.Name,
		Email:  a.Email,
		Role:   a.Role,
		Avatar: a.Avatar,
	}
	if a.Attributes != nil {
		attrs := *a.Attributes
		id.Attributes = &attrs
	}
	return id
}

// NewAccount contains information needed to create a new Account.
type NewAccount struct {
	Name            string              `json:"name" validate:"required"`
	Username        string              `json:"username" validate:"required,min=3,alphanum_"`
	Email           string              `json:"email" validate:"omitempty,email"`
	Role            session.Role        `json:"role" validate:"required,role"`
	Avatar          string              `json:"avatar" validate:"omitempty,uri"`
	Attributes      *session.Attributes `json:"attributes"`
	Password        string              `json:"password" validate:"required"`
	PasswordConfirm string              `json:"password_confirm" validate:"required,eqfield=Password"`
	IsDemo          bool                `json:"-"`
}

func (na *NewAccount) Validate(validate *validator.Validate) error {
	na.Name = core.CleanString(na.Name)
	na.Username = core.CleanString(na.Username, true /* lower */)
	na.Email = core.CleanString(na.Email, true /* lower */)
	return validate.Struct(na)
}

// ResetPassword defines what is needed to set a new password for an existing Account.
type ResetPassword struct {
	Username        string `json:"username" validate:"required"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (rp *ResetPassword) Validate(validate *validator.Validate) error {
	rp.Username = core.CleanString(rp.Username, true /* lower */)
	return validate.Struct(rp)
}

// GetFilter selects a single Account. Set fields are AND-ed.
// An empty filter matches no account.
type GetFilter struct {
	ID              string
	UsernameOrEmail string
}

func (f GetFilter) IsEmpty() bool {
	return f.ID == "" && f.UsernameOrEmail == ""
}
