package tree

import (
	"errors"
	"fmt"

	"github.com/artpar/conftree/core/typespec"
)

// ErrNoCipher is returned when a field is declared or read as encrypted but
// the node has no cipher configured.
var ErrNoCipher = errors.New("no cipher configured for encrypted fields")

// NoSuchFieldError reports a read of an undeclared field.
type NoSuchFieldError struct {
	Field string
}

func (e *NoSuchFieldError) Error() string {
	return fmt.Sprintf("no such field %q", e.Field)
}

// ImmutableFieldError reports a write to a locked field.
type ImmutableFieldError struct {
	Field string
}

func (e *ImmutableFieldError) Error() string {
	return fmt.Sprintf("field %q is locked and cannot be modified", e.Field)
}

// NotANamespaceError reports a namespace operation on a field that holds a
// scalar.
type NotANamespaceError struct {
	Field string
}

func (e *NotANamespaceError) Error() string {
	return fmt.Sprintf("field %q holds a scalar, not a namespace", e.Field)
}

// DecryptError reports a cipher failure while reading an encrypted field.
type DecryptError struct {
	Field string
	Err   error
}

func (e *DecryptError) Error() string {
	return fmt.Sprintf("field %q: decrypt: %v", e.Field, e.Err)
}

func (e *DecryptError) Unwrap() error { return e.Err }

// TypeMismatchError reports a value that failed validation against the
// field's resolved type specifier.
type TypeMismatchError struct {
	Field    string
	Expected typespec.Spec
	Value    any
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("field %q: value %v (%T) does not match type %s",
		e.Field, e.Value, e.Value, typespec.Describe(e.Expected))
}
