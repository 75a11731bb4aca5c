// Package validate runs client-side form checks before any request is sent.
package validate

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

// Error reports the first field that failed validation. No network call is
// made for a form that produces an Error.
type Error struct {
	Field   string
	Rule    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

var (
	once     sync.Once
	instance *validator.Validate
)

func get() *validator.Validate {
	once.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())

		// Report fields by their json name.
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "" || name == "-" {
				return fld.Name
			}
			return name
		})

		_ = v.RegisterValidation("notblank", validators.NotBlank)

		// price: a decimal number, zero or more, surrounding spaces allowed.
		_ = v.RegisterValidation("price", func(fl validator.FieldLevel) bool {
			_, ok := ParsePrice(fl.Field().String())
			return ok
		})
		instance = v
	})
	return instance
}

// ParsePrice parses s as a non-negative decimal amount.
func ParsePrice(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Struct validates s against its `validate` tags. messages maps a json field
// name to the user-facing text for that field; unmapped fields get a generic
// message.
func Struct(s any, messages map[string]string) error {
	err := get().Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	msg, ok := messages[fe.Field()]
	if !ok {
		msg = fmt.Sprintf("%s is invalid (%s)", fe.Field(), fe.Tag())
	}
	return &Error{Field: fe.Field(), Rule: fe.Tag(), Message: msg}
}

// Var checks a single value against tag and reports failure as an *Error for
// field with the given message.
func Var(value any, tag, field, message string) error {
	err := get().Var(value, tag)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	return &Error{Field: field, Rule: verrs[0].Tag(), Message: message}
}
