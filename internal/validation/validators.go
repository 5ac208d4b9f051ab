package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/benvon/contact-relay/internal/models"
	"github.com/go-playground/validator/v10"
)

const (
	// MinNameLength is the minimum trimmed length of a name, in characters
	MinNameLength = 2
	// MinMessageLength is the minimum trimmed length of a message, in characters
	MinMessageLength = 10
	// MinFillTime is the fastest a human is assumed to complete the form
	MinFillTime = 2500 * time.Millisecond
)

// Field error messages shown next to the offending input.
const (
	InvalidName     = "Please enter a valid name (at least 2 characters)."
	InvalidEmail    = "Please enter a valid email address."
	MessageTooShort = "Your message must be at least 10 characters long."
)

// emailPattern accepts local@domain.tld with no whitespace and a single '@'.
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

var (
	// Validate is a shared validator instance
	Validate *validator.Validate
)

func init() {
	Validate = validator.New()

	if err := Validate.RegisterValidation("contact_name", func(fl validator.FieldLevel) bool {
		return ValidateName(fl.Field().String()) == ""
	}); err != nil {
		panic(fmt.Sprintf("failed to register contact_name validator: %v", err))
	}
	if err := Validate.RegisterValidation("contact_email", func(fl validator.FieldLevel) bool {
		return ValidateEmail(fl.Field().String()) == ""
	}); err != nil {
		panic(fmt.Sprintf("failed to register contact_email validator: %v", err))
	}
	if err := Validate.RegisterValidation("contact_message", func(fl validator.FieldLevel) bool {
		return ValidateMessage(fl.Field().String()) == ""
	}); err != nil {
		panic(fmt.Sprintf("failed to register contact_message validator: %v", err))
	}
}

// contactFields carries the validated subset of a submission.
type contactFields struct {
	Name    string `validate:"contact_name"`
	Email   string `validate:"contact_email"`
	Message string `validate:"contact_message"`
}

var structFieldKeys = map[string]models.FieldKey{
	"Name":    models.FieldName,
	"Email":   models.FieldEmail,
	"Message": models.FieldMessage,
}

var fieldMessages = map[models.FieldKey]string{
	models.FieldName:    InvalidName,
	models.FieldEmail:   InvalidEmail,
	models.FieldMessage: MessageTooShort,
}

// ValidateName returns InvalidName if the trimmed name is too short.
func ValidateName(value string) string {
	if utf8.RuneCountInString(strings.TrimSpace(value)) < MinNameLength {
		return InvalidName
	}
	return ""
}

// ValidateEmail returns InvalidEmail unless the trimmed value looks like local@domain.tld.
func ValidateEmail(value string) string {
	if !IsValidEmail(strings.TrimSpace(value)) {
		return InvalidEmail
	}
	return ""
}

// ValidateMessage returns MessageTooShort if the trimmed message is too short.
func ValidateMessage(value string) string {
	if utf8.RuneCountInString(strings.TrimSpace(value)) < MinMessageLength {
		return MessageTooShort
	}
	return ""
}

// IsValidEmail reports whether value has the shape local@domain.tld.
func IsValidEmail(value string) bool {
	return emailPattern.MatchString(value)
}

// ValidateField runs the validator for a single field.
func ValidateField(key models.FieldKey, value string) string {
	switch key {
	case models.FieldName:
		return ValidateName(value)
	case models.FieldEmail:
		return ValidateEmail(value)
	case models.FieldMessage:
		return ValidateMessage(value)
	default:
		return ""
	}
}

// ValidateSubmission validates name, email and message and returns one entry
// per field. The result is OK only if every entry is empty.
func ValidateSubmission(s models.Submission) models.ValidationResult {
	result := models.ValidationResult{}
	for _, key := range models.ValidatedFields {
		result[key] = ""
	}

	err := Validate.Struct(contactFields{Name: s.Name, Email: s.Email, Message: s.Message})
	if err == nil {
		return result
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		// not a field failure; fall back to the plain validators
		for _, key := range models.ValidatedFields {
			result[key] = ValidateField(key, s.Field(key))
		}
		return result
	}
	for _, fe := range verrs {
		if key, ok := structFieldKeys[fe.StructField()]; ok {
			result[key] = fieldMessages[key]
		}
	}
	return result
}

// FilledTooFast reports whether a form started at startedAt (epoch ms) was
// submitted sooner than MinFillTime before now. A missing or non-finite
// start time counts as too fast.
func FilledTooFast(startedAt float64, valid bool, now time.Time) bool {
	if !valid {
		return true
	}
	elapsedMs := float64(now.UnixMilli()) - startedAt
	return elapsedMs < float64(MinFillTime.Milliseconds())
}
