package settings

import (
	"errors"
	"fmt"

	"github.com/solarpro/erp/pkg/rbac"
)

// ForbiddenError means the caller's role may not use the registry
type ForbiddenError struct {
	Kind Kind
	Role rbac.Role
}

func (e *ForbiddenError) Error() string {
	return "Forbidden"
}

// InvalidKindError means the kind string is not one of AllKinds
type InvalidKindError struct {
	Kind string
}

func (e *InvalidKindError) Error() string {
	return "Invalid type"
}

// InvalidConfigError means a workflow or form config is not a JSON object
type InvalidConfigError struct {
	Field  string
	Reason string
}

func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// StorageError wraps a failed store call. Its message is the store's own.
type StorageError struct {
	Op         string
	Collection string
	Err        error
}

func (e *StorageError) Error() string {
	return e.Err.Error()
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// IsForbidden reports whether err is a *ForbiddenError
func IsForbidden(err error) bool {
	var target *ForbiddenError
	return errors.As(err, &target)
}

// IsInvalidKind reports whether err is an *InvalidKindError
func IsInvalidKind(err error) bool {
	var target *InvalidKindError
	return errors.As(err, &target)
}

// IsInvalidConfig reports whether err is an *InvalidConfigError
func IsInvalidConfig(err error) bool {
	var target *InvalidConfigError
	return errors.As(err, &target)
}

// IsStorageError reports whether err is a *StorageError
func IsStorageError(err error) bool {
	var target *StorageError
	return errors.As(err, &target)
}
