package core

import (
	"sort"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		if len(err.Fields) > 0 {
			return err.Fields[0].Field + ": " + err.Fields[0].Error
		}
		return ""
	}
	return err.Err.Error()
}

// ErrorMessage renders err for a human. Validation errors are translated and listed per field.
func ErrorMessage(err error, translator ut.Translator) string {
	var flds []string
	switch origErr := errors.Cause(err).(type) {
	case validator.ValidationErrors:
		for _, vErr := range origErr {
			flds = append(flds, vErr.Field()+": "+vErr.Translate(translator))
		}
	case *ValidationError:
		for _, fErr := range origErr.Fields {
			flds = append(flds, fErr.Field+": "+fErr.Error)
		}
	}
	if len(flds) == 0 {
		return err.Error()
	}
	sort.Strings(flds)
	return strings.Join(flds, "; ")
}
