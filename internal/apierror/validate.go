package apierror

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

const maxBodyBytes = 1 << 20

// bcrypt ignores input past 72 bytes, so longer passwords are rejected.
const maxPasswordBytes = 72

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		return len(fl.Field().String()) <= maxPasswordBytes
	})
	return v
}

// FieldErrors maps a JSON field name to its problems.
type FieldErrors map[string][]string

// ValidationDetails is the details payload of a validation failure.
type ValidationDetails struct {
	FormErrors  []string    `json:"formErrors"`
	FieldErrors FieldErrors `json:"fieldErrors"`
}

// Validate runs the struct's validate tags and returns a Validation error
// describing every failing field.
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return Internal(fmt.Errorf("validate: %w", err))
	}
	fields := FieldErrors{}
	for _, fe := range verrs {
		fields[fe.Field()] = append(fields[fe.Field()], describe(fe))
	}
	return Validation(ValidationDetails{FormErrors: []string{}, FieldErrors: fields})
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "Required"
	case "email":
		return "Invalid email"
	case "min":
		return fmt.Sprintf("Must contain at least %s character(s)", fe.Param())
	case "max":
		return fmt.Sprintf("Must contain at most %s character(s)", fe.Param())
	case "password":
		return fmt.Sprintf("Must be at most %d bytes", maxPasswordBytes)
	default:
		return "Invalid value"
	}
}

// DecodeJSON reads a JSON request body into dst. A malformed body is a
// validation failure, not an internal error.
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return Validation(ValidationDetails{
			FormErrors:  []string{"Request body must be a JSON object"},
			FieldErrors: FieldErrors{},
		})
	}
	return nil
}
