package fault

import (
	"errors"
	"fmt"
	"strings"
)

// FieldError describes one rejected property of a payload.
type FieldError struct {
	ObjectName string `json:"objectName"`
	Field      string `json:"field"`
	Message    string `json:"message"`
}

// ValidationError is returned when a payload violates the presence or type
// constraints of its entity schema. It is always a client error.
type ValidationError struct {
	Entity string
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return fmt.Sprintf("validation failed for %s: %s", e.Entity, strings.Join(parts, ", "))
}

// Add records a field violation.
func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{ObjectName: e.Entity, Field: field, Message: message})
}

// OrNil returns e when it holds at least one violation.
func (e *ValidationError) OrNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// IsValidation reports whether err is or wraps a *ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// ErrMalformedPayload is returned for request bodies that are not a JSON
// object.
var ErrMalformedPayload = errors.New("malformed payload")
