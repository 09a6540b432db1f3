package router

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"scuola/internal/core"
)

var validate = newValidator()

const notBlankTag = "notblank"

func newValidator() *validator.Validate {
	v := validator.New()
	// Report JSON field names instead of Go struct names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation(notBlankTag, func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return v
}

// bind decodes payload into dst and validates its struct tags.
func bind(payload json.RawMessage, dst any) error {
	if err := json.Unmarshal(payload, dst); err != nil {
		return fmt.Errorf("%w: %s", core.ErrValidation, describeJSONError(err))
	}
	if err := validate.Struct(dst); err != nil {
		return translate(err)
	}
	return nil
}

func describeJSONError(err error) string {
	if te, ok := err.(*json.UnmarshalTypeError); ok && te.Field != "" {
		return fmt.Sprintf("field %s must be %s", te.Field, te.Type.String())
	}
	return "malformed request"
}

// translate turns validator errors into core validation errors.
// Missing fields are collected; the first other failure is reported on its own.
func translate(err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return fmt.Errorf("%w: %v", core.ErrValidation, err)
	}
	var missing []string
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required", notBlankTag:
			missing = append(missing, fieldPath(fe))
		}
	}
	if len(missing) > 0 {
		return core.NewValidationError(missing...)
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "datetime":
		return fmt.Errorf("%w: field %s must be a date in YYYY-MM-DD form", core.ErrInvalidDate, fieldPath(fe))
	case "oneof":
		return fmt.Errorf("%w: field %s must be one of %s", core.ErrValidation, fieldPath(fe), fe.Param())
	case "gt", "gte", "min":
		return fmt.Errorf("%w: field %s must be at least %s", core.ErrValidation, fieldPath(fe), fe.Param())
	}
	return fmt.Errorf("%w: field %s is invalid", core.ErrValidation, fieldPath(fe))
}

// fieldPath drops the struct names from the namespace and keeps slice
// positions, e.g. "attendance[0].status" or "class".
func fieldPath(fe validator.FieldError) string {
	parts := strings.Split(fe.Namespace(), ".")
	if len(parts) < 2 {
		return fe.Field()
	}
	var keep []string
	for _, p := range parts[1 : len(parts)-1] {
		if strings.Contains(p, "[") {
			keep = append(keep, p)
		}
	}
	return strings.Join(append(keep, parts[len(parts)-1]), ".")
}
