package models

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// FieldKey names a validated submission field
type FieldKey string

const (
	FieldName    FieldKey = "name"
	FieldEmail   FieldKey = "email"
	FieldMessage FieldKey = "message"
)

// ValidatedFields is the fixed order in which fields are checked and reported.
var ValidatedFields = []FieldKey{FieldName, FieldEmail, FieldMessage}

// Submission is a single contact request. It is built once per request and
// never stored.
type Submission struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Company  string `json:"company,omitempty"`
	Budget   string `json:"budget,omitempty"`
	Message  string `json:"message"`
	Honeypot string `json:"honeypot"`
	// StartedAt is the epoch-millisecond time the form was first shown.
	StartedAt float64 `json:"startedAt"`
	// StartedAtValid is false when startedAt was absent, non-numeric or not finite.
	StartedAtValid bool `json:"-"`
}

// Field returns the value of a validated field.
func (s Submission) Field(key FieldKey) string {
	switch key {
	case FieldName:
		return s.Name
	case FieldEmail:
		return s.Email
	case FieldMessage:
		return s.Message
	default:
		return ""
	}
}

// ValidationResult maps each validated field to an error message; an empty
// message means the field is valid.
type ValidationResult map[FieldKey]string

// OK reports whether every field passed.
func (v ValidationResult) OK() bool {
	for _, msg := range v {
		if msg != "" {
			return false
		}
	}
	return true
}

// FirstInvalid returns the first failing field in ValidatedFields order.
func (v ValidationResult) FirstInvalid() (FieldKey, bool) {
	for _, key := range ValidatedFields {
		if v[key] != "" {
			return key, true
		}
	}
	return "", false
}

// SubmissionFromPayload builds a Submission from an arbitrary decoded JSON
// value. Every field is coerced to a trimmed string; absent fields become
// empty and non-object payloads yield an empty submission.
func SubmissionFromPayload(payload any) Submission {
	obj, _ := payload.(map[string]any)

	s := Submission{
		Name:     coerceString(obj["name"]),
		Email:    coerceString(obj["email"]),
		Company:  coerceString(obj["company"]),
		Budget:   coerceString(obj["budget"]),
		Message:  coerceString(obj["message"]),
		Honeypot: coerceString(obj["honeypot"]),
	}
	s.StartedAt, s.StartedAtValid = coerceTimestamp(obj["startedAt"])
	return s
}

func coerceString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return ""
		}
		return strings.TrimSpace(string(b))
	}
}

func coerceTimestamp(v any) (float64, bool) {
	var f float64
	switch val := v.(type) {
	case float64:
		f = val
	case json.Number:
		parsed, err := val.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		trimmed := strings.TrimSpace(val)
		if trimmed == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
