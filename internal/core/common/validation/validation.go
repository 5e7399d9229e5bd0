package validation

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	errors "github.com/frahmantamala/ledger-console/internal"
)

// Validator checks forms before they are sent to the remote service and
// reports failures as field-level validation errors.
type Validator struct {
	validate *validator.Validate
	choices  map[string][]string
}

func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return &Validator{validate: v, choices: make(map[string][]string)}
}

// RegisterChoice adds a tag that accepts exactly the given values. Values may
// contain spaces and slashes, which the built-in oneof tag cannot express.
func (v *Validator) RegisterChoice(tag string, values []string) error {
	allowed := make(map[string]struct{}, len(values))
	for _, value := range values {
		allowed[value] = struct{}{}
	}
	v.choices[tag] = values

	return v.validate.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
		_, ok := allowed[fl.Field().String()]
		return ok
	})
}

// Struct validates s and returns nil or a VALIDATION_ERROR AppError listing
// every failing field.
func (v *Validator) Struct(s interface{}) *errors.AppError {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return errors.NewValidationError(err.Error(), errors.ErrCodeValidationFailed)
	}

	out := make([]errors.ValidationError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, v.describe(fe))
	}
	return errors.NewValidationFieldErrors(out)
}

func (v *Validator) describe(fe validator.FieldError) errors.ValidationError {
	field := fe.Field()
	switch tag := fe.Tag(); tag {
	case "required":
		return errors.ValidationError{
			Field:   field,
			Message: fmt.Sprintf("%s is required", field),
			Code:    string(errors.ErrCodeRequiredField),
		}
	case "email":
		return errors.ValidationError{
			Field:   field,
			Message: fmt.Sprintf("%s must be a valid email address", field),
			Code:    string(errors.ErrCodeInvalidEmail),
		}
	case "oneof":
		return errors.ValidationError{
			Field:   field,
			Message: fmt.Sprintf("%s must be one of: %s", field, fe.Param()),
			Code:    string(errors.ErrCodeInvalidChoice),
		}
	case "min":
		return errors.ValidationError{
			Field:   field,
			Message: fmt.Sprintf("%s must be at least %s characters", field, fe.Param()),
			Code:    string(errors.ErrCodeValidationFailed),
		}
	default:
		if values, ok := v.choices[tag]; ok {
			return errors.ValidationError{
				Field:   field,
				Message: fmt.Sprintf("%s must be one of: %s", field, strings.Join(values, ", ")),
				Code:    string(errors.ErrCodeInvalidChoice),
			}
		}
		return errors.ValidationError{
			Field:   field,
			Message: fmt.Sprintf("%s is invalid", field),
			Code:    string(errors.ErrCodeValidationFailed),
		}
	}
}
