package apperrors

import (
	"errors"
	"fmt"
)

// Kind is a stable error category surfaced to callers
type Kind string

const (
	KindAuthFailed        Kind = "AUTH_FAILED"
	KindRemoteUnreachable Kind = "REMOTE_UNREACHABLE"
	KindMergeConflict     Kind = "MERGE_CONFLICT"
	KindBranchProtected   Kind = "BRANCH_PROTECTED"
	KindBranchNotFound    Kind = "BRANCH_NOT_FOUND"
	KindArtifactNotFound  Kind = "ARTIFACT_NOT_FOUND"
	KindAlreadyExists     Kind = "ALREADY_EXISTS"
	KindDataCorruption    Kind = "DATA_CORRUPTION"
	KindLockContention    Kind = "LOCK_CONTENTION"
	KindInvalidRequest    Kind = "INVALID_REQUEST"
	KindTimeout           Kind = "TIMEOUT"
	KindInternal          Kind = "INTERNAL"
)

// AppError carries a stable kind plus a human-readable message.
// It wraps the underlying cause so errors.Is/As keep working.
type AppError struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// New creates an AppError without a cause
func New(kind Kind, format string, args ...any) *AppError {
	return &AppError{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates an AppError around an underlying cause
func Wrap(kind Kind, cause error, format string, args ...any) *AppError {
	return &AppError{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// KindOf extracts the Kind from any error in the chain.
// Unclassified errors report KindInternal.
func KindOf(err error) Kind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// IsKind reports whether any error in the chain carries the given kind
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// HTTPStatus maps an error kind to a transport status code.
// The transport layer owns marshaling; the mapping lives here so every
// binding agrees on it.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindInvalidRequest:
		return 400
	case KindAuthFailed:
		return 401
	case KindBranchProtected:
		return 403
	case KindBranchNotFound, KindArtifactNotFound:
		return 404
	case KindAlreadyExists, KindMergeConflict, KindLockContention:
		return 409
	case KindRemoteUnreachable, KindTimeout:
		return 504
	case KindDataCorruption:
		return 422
	default:
		return 500
	}
}
