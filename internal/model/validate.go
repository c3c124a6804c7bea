package model

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterCustomTypeFunc(func(value reflect.Value) any {
		if d, ok := value.Interface().(decimal.Decimal); ok {
			return d.InexactFloat64()
		}
		return nil
	}, decimal.Decimal{})
	return v
}

// ValidationError reports the first field that failed validation.
type ValidationError struct {
	Field string
	Rule  string
	Param string
}

func (e *ValidationError) Error() string {
	switch e.Rule {
	case "required":
		return fmt.Sprintf("%s is required", e.Field)
	case "email":
		return fmt.Sprintf("%s must be a valid email", e.Field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", e.Field, strings.ReplaceAll(e.Param, " ", ", "))
	case "gte":
		return fmt.Sprintf("%s must be at least %s", e.Field, e.Param)
	default:
		return fmt.Sprintf("%s failed %s validation", e.Field, e.Rule)
	}
}

// Validate checks the struct tags of an entity record.
func Validate(record any) error {
	err := validate.Struct(record)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return errors.Wrap(err, "validate")
	}
	first := fieldErrs[0]
	return &ValidationError{Field: first.Field(), Rule: first.Tag(), Param: first.Param()}
}
