// Package validator registers the odontogram tags on go-playground/validator
// and turns its errors into Validation app errors.
package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/jwalitptl/odontogram-api/internal/model"
	"github.com/jwalitptl/odontogram-api/internal/odontogram"
	apperrors "github.com/jwalitptl/odontogram-api/pkg/errors"
)

// FieldError is one failed rule, keyed by the JSON field name.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

var messages = map[string]string{
	"required":     "is required",
	"gt":           "must be greater than zero",
	"fdi":          "is not a valid FDI tooth number",
	"surface":      "must be one of O, M, D, V, PL",
	"tooth_status": "is not a known tooth status",
	"odonto_type":  "must be PERMANENTE, TEMPORAL or MIXTO",
}

// Register adds the custom tags and JSON field naming to v.
func Register(v *validator.Validate) error {
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	rules := map[string]validator.Func{
		"fdi": func(fl validator.FieldLevel) bool {
			_, err := odontogram.ResolveFDI(int(fl.Field().Int()))
			return err == nil
		},
		"surface": func(fl validator.FieldLevel) bool {
			_, ok := odontogram.ParseSurface(fl.Field().String())
			return ok
		},
		"tooth_status": func(fl validator.FieldLevel) bool {
			_, ok := model.ParseToothStatus(fl.Field().String())
			return ok
		},
		"odonto_type": func(fl validator.FieldLevel) bool {
			s := strings.ToUpper(strings.TrimSpace(fl.Field().String()))
			return s == "" || model.OdontogramType(s).Valid()
		},
	}
	for tag, fn := range rules {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("failed to register %s: %w", tag, err)
		}
	}
	return nil
}

type Validator struct {
	validate *validator.Validate
}

func New() *Validator {
	v := validator.New()
	if err := Register(v); err != nil {
		panic(err)
	}
	return &Validator{validate: v}
}

// Validate checks obj and returns a Validation app error listing the failed fields.
func (v *Validator) Validate(obj interface{}) error {
	return Translate(v.validate.Struct(obj))
}

// Fields flattens validator errors; other errors yield nil.
func Fields(err error) []FieldError {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return nil
	}
	out := make([]FieldError, 0, len(errs))
	for _, e := range errs {
		msg, ok := messages[e.Tag()]
		if !ok {
			msg = fmt.Sprintf("failed on %s", e.Tag())
		}
		out = append(out, FieldError{Field: e.Field(), Message: msg})
	}
	return out
}

// Translate maps validator errors onto apperrors; anything else passes through.
func Translate(err error) error {
	if err == nil {
		return nil
	}
	fields := Fields(err)
	if fields == nil {
		return err
	}
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = f.Field + " " + f.Message
	}
	return apperrors.NewValidation(strings.Join(parts, "; "), err)
}
