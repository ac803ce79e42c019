package core

import (
	"errors"
	"log/slog"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"zonewatch/internal/types"
)

// ValidationError describes a single field-level validation failure.
type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationResult aggregates the outcome of validating one value.
// Warnings never block the request; they are surfaced for observability only.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []string
}

// IsValid reports whether the result contains no blocking errors.
func (r ValidationResult) IsValid() bool {
	return len(r.Errors) == 0
}

// Validator wraps go-playground/validator with the domain rules for API
// request values: zone category and severity enums on top of the built-in
// tags (required, min, max, latitude, longitude).
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// NewValidator creates a Validator and registers the custom domain tags.
func NewValidator(logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}

	v := validator.New()

	// Report wire names, not Go field names, so clients can match failures
	// to the fields they sent.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	// Registration only fails for an empty tag name.
	_ = v.RegisterValidation("zone_category", validateZoneCategory)
	_ = v.RegisterValidation("zone_severity", validateZoneSeverity)

	return &Validator{
		validate: v,
		logger:   logger,
	}
}

// ValidateStruct validates s against its struct tags. On failure it returns a
// *types.AppError whose code reflects the first failing rule and whose details
// carry every field failure under "validation_errors".
func (v *Validator) ValidateStruct(s any) error {
	result := v.ValidateStructWithWarnings(s)
	if result.IsValid() {
		return nil
	}

	first := result.Errors[0]
	return types.NewAppErrorWithDetails(
		types.ErrorCode(first.Code),
		"request validation failed",
		nil,
		map[string]any{"validation_errors": result.Errors},
	)
}

// ValidateStructWithWarnings validates s and returns the full per-field
// result instead of collapsing it into a single error.
func (v *Validator) ValidateStructWithWarnings(s any) ValidationResult {
	err := v.validate.Struct(s)
	if err == nil {
		return ValidationResult{}
	}

	// A non-struct input is a programming error, not a request error.
	var invalid *validator.InvalidValidationError
	if errors.As(err, &invalid) {
		v.logger.Error("validator invoked on non-struct value",
			slog.String("error", err.Error()),
		)
		return ValidationResult{Errors: []ValidationError{{
			Code:    string(types.ErrCodeInternalUnexpected),
			Message: "value is not validatable",
		}}}
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return ValidationResult{Errors: []ValidationError{{
			Code:    string(types.ErrCodeValidationInvalidValue),
			Message: err.Error(),
		}}}
	}

	result := ValidationResult{}
	for _, fe := range fieldErrs {
		result.Errors = append(result.Errors, ValidationError{
			Field:   fe.Field(),
			Code:    tagToErrorCode(fe.Tag()),
			Message: fieldErrorMessage(fe),
		})
	}
	return result
}

// tagToErrorCode maps a validation tag to the API error code reported for a
// failure of that rule.
func tagToErrorCode(tag string) string {
	switch tag {
	case "required":
		return string(types.ErrCodeValidationMissingField)
	case "latitude":
		return string(types.ErrCodeValidationInvalidLat)
	case "longitude":
		return string(types.ErrCodeValidationInvalidLon)
	case "zone_category", "zone_severity":
		return string(types.ErrCodeValidationInvalidZone)
	default:
		return string(types.ErrCodeValidationInvalidValue)
	}
}

// fieldErrorMessage renders a short human-readable description of one failure.
func fieldErrorMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "zone_category":
		return "must be one of FLOOD, FIRE, EVACUATION, STORM, EARTHQUAKE"
	case "zone_severity":
		return "must be one of INFO, WARNING, HIGH, CRITICAL"
	case "latitude":
		return "must be a latitude between -90 and 90"
	case "longitude":
		return "must be a longitude between -180 and 180"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	default:
		return "failed validation rule " + fe.Tag()
	}
}

// validateZoneCategory accepts any defined zone category. Empty values pass;
// pairing with required is the caller's choice.
func validateZoneCategory(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	for _, c := range types.AllCategories {
		if value == string(c) {
			return true
		}
	}
	return false
}

// validateZoneSeverity accepts any defined severity tier. Empty values pass;
// pairing with required is the caller's choice.
func validateZoneSeverity(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	for _, sev := range types.AllSeverities {
		if value == string(sev) {
			return true
		}
	}
	return false
}
