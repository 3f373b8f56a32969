package validator

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"gitlab.com/proptechlab/api/lead-intake-service/internal/apperrors"
	"gitlab.com/proptechlab/api/lead-intake-service/internal/model"
)

// maxPrice is the largest accepted property price: 15 significant digits with
// 2 decimal places.
const maxPrice = 9999999999999.99

// phonePattern applies after stripping spaces, dashes and parentheses.
var phonePattern = regexp.MustCompile(`^\+?[0-9]{9,15}$`)

var phoneStripper = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "")

// Config holds the immutable allow-lists the validator is constructed with.
type Config struct {
	AllowedApplications []string
}

// Validator checks lead submissions field by field. It never short-circuits:
// a caller sees every problem at once.
type Validator struct {
	validate *validator.Validate
	allowed  map[string]struct{}
}

// New builds a Validator around the given allow-list configuration.
func New(cfg Config) (*Validator, error) {
	allowed := make(map[string]struct{}, len(cfg.AllowedApplications))
	for _, app := range cfg.AllowedApplications {
		allowed[strings.ToLower(app)] = struct{}{}
	}

	v := validator.New()

	// Report JSON field names instead of struct field names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	lv := &Validator{validate: v, allowed: allowed}

	if err := v.RegisterValidation("application_name", lv.validateApplicationName); err != nil {
		return nil, fmt.Errorf("failed to register application_name validation: %w", err)
	}
	if err := v.RegisterValidation("lead_phone", validatePhone); err != nil {
		return nil, fmt.Errorf("failed to register lead_phone validation: %w", err)
	}
	if err := v.RegisterValidation("lead_price", validatePrice); err != nil {
		return nil, fmt.Errorf("failed to register lead_price validation: %w", err)
	}

	return lv, nil
}

// Validate checks a submission and returns a field -> message map. An empty
// map signals a valid submission. No side effects.
func (v *Validator) Validate(sub *model.LeadSubmission) map[string]string {
	fields := make(map[string]string)

	err := v.validate.Struct(sub)
	if err == nil {
		return fields
	}

	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		fields["submission"] = err.Error()
		return fields
	}

	for _, e := range validationErrors {
		fields[fieldPath(e)] = errorMessage(e)
	}
	return fields
}

// Check is the error-typed form of Validate for callers that propagate
// apperrors directly.
func (v *Validator) Check(sub *model.LeadSubmission) error {
	fields := v.Validate(sub)
	if len(fields) == 0 {
		return nil
	}
	return apperrors.NewValidation(fields)
}

// validateApplicationName matches the configured allow-list, case-insensitive.
func (v *Validator) validateApplicationName(fl validator.FieldLevel) bool {
	_, ok := v.allowed[strings.ToLower(fl.Field().String())]
	return ok
}

// validatePhone strips spaces/dashes/parentheses and matches the phone shape.
func validatePhone(fl validator.FieldLevel) bool {
	stripped := phoneStripper.Replace(fl.Field().String())
	return phonePattern.MatchString(stripped)
}

// validatePrice requires a strictly positive price within numeric(15,2).
func validatePrice(fl validator.FieldLevel) bool {
	price := fl.Field().Float()
	return price > 0 && price <= maxPrice
}

// fieldPath strips the root struct name from the namespace, leaving the
// JSON path callers know, e.g. "customer.email".
func fieldPath(e validator.FieldError) string {
	ns := e.Namespace()
	if idx := strings.Index(ns, "."); idx >= 0 {
		return ns[idx+1:]
	}
	return e.Field()
}

// errorMessage returns a user-friendly message for a validation tag.
func errorMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "uuid4":
		return "must be a valid UUIDv4"
	case "application_name":
		return "is not a known application"
	case "lead_phone":
		return "must be a valid phone number"
	case "lead_price":
		return "must be a positive price below 10^13"
	case "max":
		return fmt.Sprintf("must not exceed %s characters", e.Param())
	case "min":
		return fmt.Sprintf("must be at least %s characters long", e.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", e.Param())
	default:
		return fmt.Sprintf("validation tag '%s' with value '%v' failed", e.Tag(), e.Value())
	}
}
