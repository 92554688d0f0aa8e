package services

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var (
	validate      = newValidator()
	sliceIndexExp = regexp.MustCompile(`\[\d+\]`)
)

func newValidator() *validator.Validate {
	v := validator.New()
	// Decimals are validated as floats so gt/gte tags work on amounts.
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	return v
}

// fieldMessages maps "Field.tag" (or just "Field") to the message returned to
// the caller. Nested fields use their dotted path without slice indexes.
type fieldMessages map[string]string

// validateInput runs the struct tags of input and converts the first failure
// into a validation error.
func validateInput(input interface{}, messages fieldMessages) error {
	err := validate.Struct(input)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return internal("Invalid input", err)
	}

	first := fieldErrs[0]
	path := fieldPath(first.StructNamespace())
	if msg, ok := messages[path+"."+first.Tag()]; ok {
		return validationError(msg)
	}
	if msg, ok := messages[path]; ok {
		return validationError(msg)
	}
	return validationError("Invalid " + strings.ToLower(first.Field()))
}

func fieldPath(namespace string) string {
	namespace = sliceIndexExp.ReplaceAllString(namespace, "")
	if _, rest, ok := strings.Cut(namespace, "."); ok {
		return rest
	}
	return namespace
}
