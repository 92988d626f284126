package validation

import (
	"fmt"
	"net/mail"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jrsteele09/go-shop-console/users"
)

// Validator wraps the go-playground validator with the shop's custom rules.
// Error keys are the struct fields' JSON names.
type Validator struct {
	validate *validator.Validate
}

func New() *Validator {
	validate := validator.New(validator.WithRequiredStructEnabled())
	registerCustomValidators(validate)

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &Validator{validate: validate}
}

// Validate checks a struct and returns a *FieldErrors when any rule fails.
func (v *Validator) Validate(i any) error {
	err := v.validate.Struct(i)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	return newFieldErrors(verrs)
}

// FieldErrors maps a JSON field name to a displayable message.
type FieldErrors struct {
	Errors map[string]string `json:"errors"`
}

func (e *FieldErrors) Error() string {
	fields := make([]string, 0, len(e.Errors))
	for field := range e.Errors {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	messages := make([]string, 0, len(fields))
	for _, field := range fields {
		messages = append(messages, fmt.Sprintf("%s: %s", field, e.Errors[field]))
	}
	return "validation failed: " + strings.Join(messages, ", ")
}

func newFieldErrors(errs validator.ValidationErrors) *FieldErrors {
	out := make(map[string]string, len(errs))
	for _, err := range errs {
		field := err.Field()
		if _, seen := out[field]; seen {
			continue
		}
		switch err.Tag() {
		case "required":
			out[field] = fmt.Sprintf("%s is required", field)
		case "email", "shopemail":
			out[field] = "Please enter a valid email address"
		case "max":
			out[field] = fmt.Sprintf("%s must be at most %s characters long", field, err.Param())
		case "eqfield":
			out[field] = "Passwords do not match"
		case "password":
			value, _ := err.Value().(string)
			if perr := users.ValidatePasswordStrength(value); perr != nil {
				out[field] = perr.Error()
			} else {
				out[field] = fmt.Sprintf("%s is invalid", field)
			}
		case "url":
			out[field] = fmt.Sprintf("%s must be a valid URL", field)
		default:
			out[field] = fmt.Sprintf("%s is invalid", field)
		}
	}
	return &FieldErrors{Errors: out}
}

func registerCustomValidators(validate *validator.Validate) {
	// Password policy shared by the identity endpoint and its clients
	_ = validate.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		return users.ValidatePasswordStrength(fl.Field().String()) == nil
	})

	// Plain addresses only; display-name forms like "Bob <b@x.com>" are rejected
	_ = validate.RegisterValidation("shopemail", func(fl validator.FieldLevel) bool {
		raw := strings.TrimSpace(fl.Field().String())
		addr, err := mail.ParseAddress(raw)
		return err == nil && addr.Address == raw && strings.Contains(addr.Address[strings.LastIndex(addr.Address, "@"):], ".")
	})
}
