package model

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/modelbind/relate/logger"
)

// ErrNotFound record not found error
var ErrNotFound = logger.ErrRecordNotFound

// ErrValidation is the class every ValidationError matches via errors.Is.
var ErrValidation = errors.New("validation failed")

// NotFoundError reports a missing record as a 404-class condition.
type NotFoundError struct {
	Model string
	ID    interface{}
}

func (e *NotFoundError) Error() string {
	if e.ID == nil {
		return fmt.Sprintf("no %s record found", e.Model)
	}
	return fmt.Sprintf("no %s record found with id %v", e.Model, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// StatusCode reports the HTTP-style class of the condition.
func (e *NotFoundError) StatusCode() int {
	return 404
}

// ValidationError carries the per-field error set of an invalid record.
type ValidationError struct {
	ModelName string
	Messages  map[string][]string
}

// NewValidationError creates an empty error set for modelName.
func NewValidationError(modelName string) *ValidationError {
	return &ValidationError{
		ModelName: modelName,
		Messages:  map[string][]string{},
	}
}

// Add records one message against a field (or a relation name).
func (e *ValidationError) Add(field, message string) {
	e.Messages[field] = append(e.Messages[field], message)
}

// HasErrors reports whether any message was recorded.
func (e *ValidationError) HasErrors() bool {
	return len(e.Messages) > 0
}

func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Messages))
	for field := range e.Messages {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	var b strings.Builder
	fmt.Fprintf(&b, "the %s instance is not valid:", e.ModelName)
	for _, field := range fields {
		for _, msg := range e.Messages[field] {
			fmt.Fprintf(&b, " %s %s;", field, msg)
		}
	}
	return strings.TrimSuffix(b.String(), ";")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// StatusCode reports the HTTP-style class of the condition.
func (e *ValidationError) StatusCode() int {
	return 422
}
