package issuesync

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Sentinels for errors.Is checks against the typed errors below.
var (
	ErrFieldValidation   = errors.New("field validation failed")
	ErrContentLength     = errors.New("content length exceeded")
	ErrNoLegalTransition = errors.New("no legal transition")
	ErrNotFound          = errors.New("issue not found")
	ErrBackend           = errors.New("issue tracker error")
)

// FieldValidationError carries one message per offending configuration field.
// Every discovered problem is collected before it is returned.
type FieldValidationError struct {
	FieldErrors map[string]string
}

// SingleFieldError builds a FieldValidationError for one field.
func SingleFieldError(field, message string) *FieldValidationError {
	return &FieldValidationError{FieldErrors: map[string]string{field: message}}
}

func (e *FieldValidationError) Error() string {
	fields := make([]string, 0, len(e.FieldErrors))
	for f := range e.FieldErrors {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f, e.FieldErrors[f]))
	}
	return "invalid configuration: " + strings.Join(parts, "; ")
}

func (e *FieldValidationError) Is(target error) bool { return target == ErrFieldValidation }

// ContentLengthExceededError names a field whose content is too long and for
// which no truncation policy applies.
type ContentLengthExceededError struct {
	Field  string
	Length int
	Limit  int
}

func (e *ContentLengthExceededError) Error() string {
	return fmt.Sprintf("%s length %d exceeds the limit of %d characters", e.Field, e.Length, e.Limit)
}

func (e *ContentLengthExceededError) Is(target error) bool { return target == ErrContentLength }

// NoLegalTransitionError means the requested lifecycle change has no
// configured or available path on the issue's workflow.
type NoLegalTransitionError struct {
	IssueKey   string
	Target     Lifecycle
	Transition string
	Available  []string
}

func (e *NoLegalTransitionError) Error() string {
	if e.Transition == "" {
		return fmt.Sprintf("no transition configured to move %s to %s", e.IssueKey, e.Target)
	}
	return fmt.Sprintf("no transition named %q available on %s to move it to %s; available transitions: %s",
		e.Transition, e.IssueKey, e.Target, strings.Join(e.Available, ", "))
}

func (e *NoLegalTransitionError) Is(target error) bool { return target == ErrNoLegalTransition }

// NotFoundError means correlation lookup found no issue for an operation that
// needs one.
type NotFoundError struct {
	Operation Operation
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no existing issue matches the correlation properties for %s", e.Operation)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// BackendError is an opaque failure from the remote tracker. When the response
// body held structured detail it is kept in FieldErrors and Messages.
type BackendError struct {
	StatusCode  int
	Message     string
	FieldErrors map[string]string
	Messages    []string
	Err         error
}

func (e *BackendError) Error() string {
	var details []string
	fields := make([]string, 0, len(e.FieldErrors))
	for f := range e.FieldErrors {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	for _, f := range fields {
		details = append(details, fmt.Sprintf("Field '%s' has error %s", f, e.FieldErrors[f]))
	}
	details = append(details, e.Messages...)

	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if len(details) > 0 {
		msg += " | Details: " + strings.Join(details, ", ")
	}
	return msg
}

func (e *BackendError) Unwrap() error { return e.Err }

func (e *BackendError) Is(target error) bool { return target == ErrBackend }

// creatorFieldError turns a backend complaint about the creator field into an
// actionable configuration error. It returns nil for any other error.
func creatorFieldError(err error, schema Schema, creator string) *FieldValidationError {
	var be *BackendError
	if !errors.As(err, &be) || schema.BackendCreatorField == "" {
		return nil
	}
	msg, ok := be.FieldErrors[schema.BackendCreatorField]
	if !ok {
		return nil
	}
	return SingleFieldError(schema.IssueCreatorField, fmt.Sprintf(
		"There was a problem assigning '%s' to the issue. Please ensure that the user is assigned to the project and has permission to transition issues. Error: %s",
		creator, msg))
}

// backendError wraps any error that is not already part of the taxonomy.
func backendError(err error) error {
	var be *BackendError
	if errors.As(err, &be) {
		return err
	}
	return &BackendError{Message: err.Error(), Err: err}
}
