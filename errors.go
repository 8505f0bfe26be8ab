package relate

import (
	"errors"
	"fmt"
)

var (
	// ErrKeyMismatch is matched by every KeyMismatchError: a resolved
	// record's join field does not hold the expected value. This signals
	// storage-layer inconsistency and is never silently accepted.
	ErrKeyMismatch = errors.New("key mismatch")

	// ErrForeignKeyOverride rejects update payloads that try to change a
	// relation's join field.
	ErrForeignKeyOverride = errors.New("foreign key cannot be changed through a relation update")

	// ErrCardinality is matched by every CardinalityError.
	ErrCardinality = errors.New("relation already holds a record")

	// ErrUnknownRelation reports a relation name with no descriptor.
	ErrUnknownRelation = errors.New("unknown relation")
)

// KeyMismatchError is the 400-class error for a join-field integrity
// failure.
type KeyMismatchError struct {
	Relation string
	Field    string
	Expected interface{}
	Actual   interface{}
}

func (e *KeyMismatchError) Error() string {
	return fmt.Sprintf("relation %s: key mismatch on %s: expected %v, got %v",
		e.Relation, e.Field, e.Expected, e.Actual)
}

func (e *KeyMismatchError) Is(target error) bool {
	return target == ErrKeyMismatch
}

// StatusCode reports the HTTP-style class of the condition.
func (e *KeyMismatchError) StatusCode() int {
	return 400
}

// CardinalityError reports a HasOne create against a source that
// already has a target.
type CardinalityError struct {
	Relation string
	Model    string
}

func (e *CardinalityError) Error() string {
	return fmt.Sprintf("relation %s already holds a %s record", e.Relation, e.Model)
}

func (e *CardinalityError) Is(target error) bool {
	return target == ErrCardinality
}

// StatusCode reports the HTTP-style class of the condition.
func (e *CardinalityError) StatusCode() int {
	return 409
}
