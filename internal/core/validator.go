package core

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"riskwatch/internal/types"
)

// Validator wraps go-playground/validator with domain-specific rules and
// translates validation failures into structured AppErrors.
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// NewValidator creates a Validator and registers custom validation tags.
func NewValidator(logger *slog.Logger) *Validator {
	v := validator.New()

	// operation: a known police operation type, or empty for "none".
	_ = v.RegisterValidation("operation", func(fl validator.FieldLevel) bool {
		val := types.OperationType(fl.Field().String())
		return val == "" || val.Known()
	})

	return &Validator{validate: v, logger: logger}
}

// ValidateStruct runs struct tag validation on obj. On failure it returns a
// *types.AppError with code validation_missing_required_field and a details
// map of field -> violated constraint.
func (v *Validator) ValidateStruct(obj any) error {
	err := v.validate.Struct(obj)
	if err == nil {
		return nil
	}

	var valErrs validator.ValidationErrors
	if !errors.As(err, &valErrs) {
		// InvalidValidationError: obj was not a struct. Programmer error.
		return types.NewAppError(types.ErrCodeInternalUnexpected,
			"validation invoked on non-struct value", err)
	}

	details := make(map[string]any, len(valErrs))
	for _, fe := range valErrs {
		details[fieldPath(fe)] = constraintMessage(fe)
	}

	return types.NewAppErrorWithDetails(types.ErrCodeValidationMissingField,
		"request failed validation", nil, details)
}

// fieldPath renders the namespace below the root struct in lower snake form,
// matching the JSON field naming of the API.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if idx := strings.IndexByte(ns, '.'); idx >= 0 {
		ns = ns[idx+1:]
	}
	return toSnake(ns)
}

func constraintMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "operation":
		return "is not a recognized operation type"
	default:
		return fmt.Sprintf("failed constraint %q", fe.Tag())
	}
}

// toSnake converts a Go field namespace like "Records[0].CrimeCount" to
// "records[0].crime_count".
func toSnake(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 4)
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				prev := s[i-1]
				if prev >= 'a' && prev <= 'z' || prev >= '0' && prev <= '9' {
					b.WriteByte('_')
				}
			}
			b.WriteRune(r + ('a' - 'A'))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
