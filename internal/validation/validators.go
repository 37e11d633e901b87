package validation

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/benvon/thought-capture/internal/models"
	"github.com/benvon/thought-capture/internal/services/nlp"
	"github.com/go-playground/validator/v10"
)

var (
	// Validate is a shared validator instance
	Validate *validator.Validate
)

func init() {
	Validate = validator.New()

	enums := map[string]validator.Func{
		"thought_type":     validateThoughtType,
		"confidence_level": validateConfidenceLevel,
		"capture_source":   validateCaptureSource,
		"thought_status":   validateThoughtStatus,
	}
	for tag, fn := range enums {
		if err := Validate.RegisterValidation(tag, fn); err != nil {
			panic(fmt.Sprintf("failed to register %s validator: %v", tag, err))
		}
	}
}

func validateThoughtType(fl validator.FieldLevel) bool {
	return nlp.ThoughtType(fl.Field().String()).Valid()
}

func validateConfidenceLevel(fl validator.FieldLevel) bool {
	return nlp.ConfidenceLevel(fl.Field().String()).Valid()
}

func validateCaptureSource(fl validator.FieldLevel) bool {
	return ValidateCaptureSource(fl.Field().String()) == nil
}

func validateThoughtStatus(fl validator.FieldLevel) bool {
	return ValidateThoughtStatus(fl.Field().String()) == nil
}

// Struct validates s and flattens validator errors into one readable message.
func Struct(s any) error {
	err := Validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %s", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return errors.New(strings.Join(msgs, "; "))
}

// SanitizeText trims whitespace and removes control characters except newline and tab
func SanitizeText(text string) string {
	text = strings.TrimSpace(text)

	var sanitized strings.Builder
	for _, r := range text {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			continue
		}
		sanitized.WriteRune(r)
	}
	return sanitized.String()
}

// ValidateThoughtType validates a thought type query value
func ValidateThoughtType(value string) error {
	if !nlp.ThoughtType(value).Valid() {
		return fmt.Errorf("invalid type: %s (must be 'task', 'event', 'note', or 'uncertain')", value)
	}
	return nil
}

// ValidateThoughtStatus validates a thought status query value
func ValidateThoughtStatus(value string) error {
	for _, s := range models.ThoughtStatuses {
		if string(s) == value {
			return nil
		}
	}
	return fmt.Errorf("invalid status: %s", value)
}

// ValidateCaptureSource validates how a capture was made
func ValidateCaptureSource(value string) error {
	switch models.CaptureSource(value) {
	case models.CaptureSourceSpeech, models.CaptureSourceTyped:
		return nil
	default:
		return fmt.Errorf("invalid source: %s (must be 'speech' or 'typed')", value)
	}
}
