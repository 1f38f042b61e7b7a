// internal/utils/validator.go
package utils

import (
	"reflect"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	uuidPattern  = regexp.MustCompile(`^(?i)[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	// Report fields by their JSON names so messages match the request body.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	validate.RegisterValidation("contact_email", func(fl validator.FieldLevel) bool {
		return IsValidEmail(fl.Field().String())
	})
	validate.RegisterValidation("entity_id", func(fl validator.FieldLevel) bool {
		return IsValidUUID(fl.Field().String())
	})
	validate.RegisterValidation("license_key", func(fl validator.FieldLevel) bool {
		return IsValidLicenseKey(fl.Field().String())
	})
}

func ValidateStruct(s interface{}) error {
	return validate.Struct(s)
}

// IsValidEmail is a syntactic gate only: local@domain.tld with no whitespace.
func IsValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// IsValidUUID accepts the canonical 8-4-4-4-12 form in either case.
func IsValidUUID(id string) bool {
	return uuidPattern.MatchString(id)
}

// MaskEmail hides the local part of an address except its first and last
// character. The domain is kept verbatim.
func MaskEmail(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" || domain == "" {
		return email
	}

	if utf8.RuneCountInString(local) <= 1 {
		return local + "***@" + domain
	}

	first, _ := utf8.DecodeRuneInString(local)
	last, _ := utf8.DecodeLastRuneInString(local)
	return string(first) + "***" + string(last) + "@" + domain
}

// NormalizeEmail is the stored form of an owner address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Validation tags for common fields
type ValidationError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

func GetValidationErrors(err error) []ValidationError {
	var validationErrors []ValidationError

	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		for _, e := range validationErrs {
			validationErrors = append(validationErrors, ValidationError{
				Field:   e.Field(),
				Tag:     e.Tag(),
				Message: getValidationMessage(e),
			})
		}
	}

	return validationErrors
}

func getValidationMessage(e validator.FieldError) string {
	field := e.Field()
	switch e.Tag() {
	case "required":
		return field + " is required"
	case "contact_email":
		return "Invalid email format"
	case "entity_id":
		return "Valid " + field + " is required"
	case "license_key":
		return "invalid_key_format"
	case "max":
		return field + " must be at most " + e.Param() + " characters"
	default:
		return field + " is invalid"
	}
}
