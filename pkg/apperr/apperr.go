// Package apperr defines the error taxonomy shared by every compliance
// engine module. Each error carries a stable SCREAMING_SNAKE code suitable
// for the wire; handlers translate codes to HTTP statuses.
package apperr

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

const (
	CodeValidation              = "VALIDATION_FAILED"
	CodeDependencyConflict      = "DEPENDENCY_CONFLICT"
	CodeNotFound                = "NOT_FOUND"
	CodeCollaboratorUnavailable = "COLLABORATOR_UNAVAILABLE"
	CodeAllocationExhausted     = "CODE_ALLOCATION_EXHAUSTED"
	CodeAuthorizationDenied     = "AUTHORIZATION_DENIED"
)

// ValidationError reports every violated field of a create/update request
// at once. An update that fails validation is never partially applied.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return CodeValidation + ": " + strings.Join(e.Fields, ", ")
}

// NewValidation sorts field names so callers and tests see a stable order.
func NewValidation(fields ...string) error {
	if len(fields) == 0 {
		return nil
	}
	sorted := make([]string, len(fields))
	copy(sorted, fields)
	sort.Strings(sorted)
	return &ValidationError{Fields: sorted}
}

func IsValidation(err error) bool {
	var target *ValidationError
	ok := errors.As(err, &target)
	return ok
}

// DependencyConflictError blocks a delete while dependent records still
// reference the target. It names the dependent record type and how many
// rows reference the target.
type DependencyConflictError struct {
	RecordType string
	Count      int
}

func (e *DependencyConflictError) Error() string {
	return fmt.Sprintf("%s: %d %s record(s) reference the target", CodeDependencyConflict, e.Count, e.RecordType)
}

func NewDependencyConflict(recordType string, count int) error {
	return &DependencyConflictError{RecordType: recordType, Count: count}
}

func IsDependencyConflict(err error) bool {
	var target *DependencyConflictError
	ok := errors.As(err, &target)
	return ok
}

// NotFoundError covers both genuinely missing ids and ids that exist in a
// different organization/plan scope. Scope mismatch deliberately reads as
// NOT_FOUND so existence never leaks across organizations.
type NotFoundError struct {
	RecordType string
	ID         string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return CodeNotFound + ": " + e.RecordType
	}
	return fmt.Sprintf("%s: %s %s", CodeNotFound, e.RecordType, e.ID)
}

func NewNotFound(recordType string, id string) error {
	return &NotFoundError{RecordType: recordType, ID: id}
}

func IsNotFound(err error) bool {
	var target *NotFoundError
	ok := errors.As(err, &target)
	return ok
}

// CollaboratorUnavailableError wraps a timeout or transport failure from the
// persistence or identity collaborator. Retryable; never reported as an
// empty result.
type CollaboratorUnavailableError struct {
	Collaborator string
	Err          error
}

func (e *CollaboratorUnavailableError) Error() string {
	return fmt.Sprintf("%s: %s: %v", CodeCollaboratorUnavailable, e.Collaborator, e.Err)
}

func (e *CollaboratorUnavailableError) Unwrap() error { return e.Err }

func NewCollaboratorUnavailable(collaborator string, err error) error {
	return &CollaboratorUnavailableError{Collaborator: collaborator, Err: err}
}

func IsCollaboratorUnavailable(err error) bool {
	var target *CollaboratorUnavailableError
	ok := errors.As(err, &target)
	return ok
}

// AllocationExhaustedError means the code allocator ran out of retry
// attempts for one scope. Fatal for the request, safe for the caller to retry.
type AllocationExhaustedError struct {
	Scope    string
	Attempts int
}

func (e *AllocationExhaustedError) Error() string {
	return fmt.Sprintf("%s: scope %s after %d attempts", CodeAllocationExhausted, e.Scope, e.Attempts)
}

func NewAllocationExhausted(scope string, attempts int) error {
	return &AllocationExhaustedError{Scope: scope, Attempts: attempts}
}

func IsAllocationExhausted(err error) bool {
	var target *AllocationExhaustedError
	ok := errors.As(err, &target)
	return ok
}

// AuthorizationDeniedError carries the reason code of whichever gate
// (casbin policy or a transition rule) rejected the mutation.
type AuthorizationDeniedError struct {
	Reason string
}

func (e *AuthorizationDeniedError) Error() string {
	if e.Reason == "" {
		return CodeAuthorizationDenied
	}
	return CodeAuthorizationDenied + ": " + e.Reason
}

func NewAuthorizationDenied(reason string) error {
	return &AuthorizationDeniedError{Reason: reason}
}

func IsAuthorizationDenied(err error) bool {
	var target *AuthorizationDeniedError
	ok := errors.As(err, &target)
	return ok
}

// Code maps any engine error to its stable wire code, empty for unknown errors.
func Code(err error) string {
	switch {
	case IsValidation(err):
		return CodeValidation
	case IsDependencyConflict(err):
		return CodeDependencyConflict
	case IsNotFound(err):
		return CodeNotFound
	case IsCollaboratorUnavailable(err):
		return CodeCollaboratorUnavailable
	case IsAllocationExhausted(err):
		return CodeAllocationExhausted
	case IsAuthorizationDenied(err):
		return CodeAuthorizationDenied
	default:
		return ""
	}
}
