package session

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/masomo-portal/core"
)

var (
	roleTag  = "role"
	roleText = "invalid role"
)

// Attributes holds the role specific data of an Identity.
type Attributes struct {
	ChildIDs []string `json:"childIds,omitempty"` // parent
	Grade    string   `json:"grade,omitempty"`    // student
	Section  string   `json:"section,omitempty"`  // student
}

// Identity is the signed-in actor. It is always replaced as a unit.
type Identity struct {
	ID         string      `json:"id" validate:"required"`
	Name       string      `json:"name" validate:"required"`
	Email      string      `json:"email" validate:"omitempty,email"`
	Role       Role        `json:"role" validate:"required,role"`
	Avatar     string      `json:"avatar,omitempty" validate:"omitempty,uri"`
	Attributes *Attributes `json:"attributes,omitempty"`
}

// InitValidators registers the `role` tag.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(roleTag, roleValidation)
	core.RegisterCustomTranslation(validate, translator, roleTag, roleText)
}

func roleValidation(fl validator.FieldLevel) bool {
	return Role(fl.Field().String()).Valid()
}

func (id Identity) Validate(validate *validator.Validate) error {
	return validate.Struct(id)
}

// Equal reports whether both identities hold the same values.
func (id Identity) Equal(other Identity) bool {
	if id.ID != other.ID || id.Name != other.Name || id.Email != other.Email ||
		id.Role != other.Role || id.Avatar != other.Avatar {
		return false
	}
	if (id.Attributes == nil) != (other.Attributes == nil) {
		return false
	}
	if id.Attributes == nil {
		return true
	}
	a, b := id.Attributes, other.Attributes
	if a.Grade != b.Grade || a.Section != b.Section || len(a.ChildIDs) != len(b.ChildIDs) {
		return false
	}
	for i := range a.ChildIDs {
		if a.ChildIDs[i] != b.ChildIDs[i] {
			return false
		}
	}
	return true
}

func (id Identity) clone() Identity {
	if id.Attributes != nil {
		attrs := *id.Attributes
		if attrs.ChildIDs != nil {
			attrs.ChildIDs = append([]string(nil), attrs.ChildIDs...)
		}
		id.Attributes = &attrs
	}
	return id
}
