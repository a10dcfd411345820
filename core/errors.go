package core

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

// ValidationError reports malformed input.
type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

// NewFieldError is a shortcut for a ValidationError on a single field.
func NewFieldError(field, msg string) error {
	return &ValidationError{Err: errors.New(field + ": " + msg), Fields: []FieldError{{Field: field, Error: msg}}}
}

func (err ValidationError) Error() string {
	if err.Err != nil {
		return err.Err.Error()
	}
	msgs := make([]string, 0, len(err.Fields))
	for _, f := range err.Fields {
		msgs = append(msgs, f.Field+": "+f.Error)
	}
	return strings.Join(msgs, "; ")
}

// NotFoundError reports a referenced resource that does not exist.
type NotFoundError struct {
	Resource string
	Key      string
}

func NewNotFoundError(resource, key string) error {
	return &NotFoundError{Resource: resource, Key: key}
}

func (err NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", err.Resource, err.Key)
}

// ConflictError reports a uniqueness violation or a write to a read-only resource.
type ConflictError struct {
	Resource string
	Key      string
	Reason   string
}

func NewConflictError(resource, key, reason string) error {
	return &ConflictError{Resource: resource, Key: key, Reason: reason}
}

func (err ConflictError) Error() string {
	return fmt.Sprintf("%s %q: %s", err.Resource, err.Key, err.Reason)
}

// IncompleteError reports a finalize attempt before all required parts exist.
type IncompleteError struct {
	Resource string
	Key      string
	Missing  []string
}

func NewIncompleteError(resource, key string, missing []string) error {
	return &IncompleteError{Resource: resource, Key: key, Missing: missing}
}

func (err IncompleteError) Error() string {
	return fmt.Sprintf("%s %q is incomplete: missing %s", err.Resource, err.Key, strings.Join(err.Missing, ", "))
}

// UnavailableError reports a persistence-layer failure (connection loss etc).
// Idempotent operations may be retried.
type UnavailableError struct {
	Op  string
	Err error
}

func NewUnavailableError(op string, err error) error {
	return &UnavailableError{Op: op, Err: err}
}

func (err UnavailableError) Error() string {
	return fmt.Sprintf("%s: storage unavailable: %v", err.Op, err.Err)
}

func (err UnavailableError) Unwrap() error { return err.Err }

func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

func IsConflict(err error) bool {
	var target *ConflictError
	return errors.As(err, &target)
}

func IsIncomplete(err error) bool {
	var target *IncompleteError
	return errors.As(err, &target)
}

func IsUnavailable(err error) bool {
	var target *UnavailableError
	return errors.As(err, &target)
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
