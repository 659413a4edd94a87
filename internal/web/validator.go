package web

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ovaphlow/pitchfork/service-tasklist/internal/apperr"
)

// Validator checks request DTOs against their `validate` tags and reports
// failures keyed by JSON field name.
type Validator struct {
	validate *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return strings.ToLower(fld.Name)
		}
		return name
	})
	return &Validator{validate: v}
}

// Validate returns an apperr ValidationFailed error carrying a field -> message
// mapping, or nil.
func (v *Validator) Validate(i any) error {
	err := v.validate.Struct(i)
	if err == nil {
		return nil
	}
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return err
	}
	fields := make(map[string]string, len(errs))
	for _, fe := range errs {
		if _, seen := fields[fe.Field()]; seen {
			continue
		}
		fields[fe.Field()] = message(fe)
	}
	return apperr.Validation(fields)
}

func message(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s must be not null.", field)
	case "max":
		return fmt.Sprintf("%s length must be smaller than %s symbols.", field, fe.Param())
	case "min":
		return fmt.Sprintf("%s length must be at least %s symbols.", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s].", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed validation for %s.", field, fe.Tag())
	}
}
