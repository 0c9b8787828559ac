// Package apperr holds the error taxonomy shared by the access layer, the
// session gate and the admin workflow.
package apperr

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// AuthenticationError means the auth provider rejected the credentials.
type AuthenticationError struct {
	Err error
}

func (e *AuthenticationError) Error() string {
	if e.Err == nil {
		return "authentication failed"
	}
	return "authentication failed: " + e.Err.Error()
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

// DataAccessError wraps a failed request against the data store.
type DataAccessError struct {
	Op  string
	Err error
}

func (e *DataAccessError) Error() string {
	return fmt.Sprintf("data access failed (%s): %v", e.Op, e.Err)
}

func (e *DataAccessError) Unwrap() error { return e.Err }

// NotFoundError is returned by direct lookups that match no row.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// ValidationError lists rejected fields, keyed by field name.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := e.FieldNames()
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

// FieldNames returns the rejected field names in sorted order.
func (e *ValidationError) FieldNames() []string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func Authentication(err error) error {
	return &AuthenticationError{Err: err}
}

func DataAccess(op string, err error) error {
	if err == nil {
		return nil
	}
	var dae *DataAccessError
	if errors.As(err, &dae) {
		return err
	}
	return &DataAccessError{Op: op, Err: err}
}

func NotFound(kind, id string) error {
	return &NotFoundError{Kind: kind, ID: id}
}

func IsAuthentication(err error) bool {
	var target *AuthenticationError
	return errors.As(err, &target)
}

func IsDataAccess(err error) bool {
	var target *DataAccessError
	return errors.As(err, &target)
}

func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}
