package core

import (
	"errors"
	"log/slog"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"pantrynotify/internal/types"
)

// ValidationError describes one failed field.
type ValidationError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Param   string `json:"param,omitempty"`
	Message string `json:"message"`
}

// Validator wraps go-playground/validator. Field names in errors are the JSON
// names, and a field's `errcode` struct tag selects the AppError code when it
// is the first failure.
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// NewValidator builds a Validator.
func NewValidator(logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return &Validator{validate: v, logger: logger}
}

// ValidateStruct returns nil or a validation AppError whose details carry
// every failure under "validation_errors".
func (v *Validator) ValidateStruct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		v.logger.Error("validator misuse", "error", err)
		return types.NewAppError(types.ErrCodeInternalUnexpected, "request validation failed", err)
	}

	out := make([]ValidationError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, ValidationError{
			Field:   fe.Field(),
			Rule:    fe.Tag(),
			Param:   fe.Param(),
			Message: fieldMessage(fe),
		})
	}

	first := fieldErrs[0]
	return types.NewAppErrorWithDetails(codeFor(s, first), out[0].Message, err,
		map[string]any{"validation_errors": out})
}

func codeFor(s any, fe validator.FieldError) types.ErrorCode {
	t := reflect.TypeOf(s)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t != nil && t.Kind() == reflect.Struct {
		if f, ok := t.FieldByName(fe.StructField()); ok {
			if code := f.Tag.Get("errcode"); code != "" {
				return types.ErrorCode(code)
			}
		}
	}
	if fe.Tag() == "required" {
		return types.ErrCodeValidationMissingField
	}
	return types.ErrCodeValidationFailed
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "min":
		return fe.Field() + " must be at least " + fe.Param()
	case "max":
		if fe.Kind() == reflect.String {
			return fe.Field() + " must be at most " + fe.Param() + " characters"
		}
		return fe.Field() + " must be at most " + fe.Param()
	case "email":
		return fe.Field() + " must be a valid email address"
	default:
		return fe.Field() + " failed " + fe.Tag() + " validation"
	}
}
