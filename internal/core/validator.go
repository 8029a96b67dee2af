package core

import (
	"log/slog"

	"github.com/go-playground/validator/v10"

	"subsignup/internal/types"
)

// Validator wraps go-playground/validator for request body validation.
// A single instance is shared across handlers; the underlying validate
// object caches struct metadata and is safe for concurrent use.
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// NewValidator creates a Validator.
func NewValidator(logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
	}
}

// ValidateStruct validates dst against its struct tags. Failures are
// returned as a 400 AppError naming the offending fields.
func (v *Validator) ValidateStruct(dst interface{}) error {
	err := v.validate.Struct(dst)
	if err == nil {
		return nil
	}

	invalid, ok := err.(validator.ValidationErrors)
	if !ok {
		return types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"request validation failed",
			err,
		)
	}

	fields := make([]string, 0, len(invalid))
	for _, fe := range invalid {
		fields = append(fields, fe.Field())
	}

	return types.NewAppErrorWithDetails(
		types.ErrCodeValidationMissingField,
		"missing or invalid required fields",
		err,
		map[string]any{"fields": fields},
	)
}
