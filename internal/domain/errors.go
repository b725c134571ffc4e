package domain

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors for domain operations
var (
	// ErrNotFound is returned when a requested resource doesn't exist
	ErrNotFound = errors.New("not found")

	// ErrIdentityConflict is returned when the controller and sponsor identities are the same
	ErrIdentityConflict = errors.New("controller identity must differ from sponsor identity")

	// ErrInvalidTransition is returned when a deployment status change is not allowed
	ErrInvalidTransition = errors.New("invalid deployment status transition")

	// ErrNonZeroGasPrice is returned when a sponsored transaction is configured with a gas price
	ErrNonZeroGasPrice = errors.New("gas price must be zero for sponsored transactions")
)

// ErrorKind classifies failures in the deployment pipeline
type ErrorKind string

const (
	KindUnknown              ErrorKind = "Unknown"
	KindArtifactNotFound     ErrorKind = "ArtifactNotFound"
	KindArtifactMalformed    ErrorKind = "ArtifactMalformed"
	KindEncoding             ErrorKind = "EncodingError"
	KindSigning              ErrorKind = "SigningError"
	KindRelayUnavailable     ErrorKind = "RelayUnavailable"
	KindRelayRejected        ErrorKind = "RelayRejected"
	KindDependencyUnresolved ErrorKind = "DependencyUnresolved"
	KindChainUnavailable     ErrorKind = "ChainUnavailable"
	KindCancelled            ErrorKind = "Cancelled"
)

// Kind sentinels for errors.Is matching, e.g. errors.Is(err, domain.ErrRelayRejected)
var (
	ErrArtifactNotFound     = &Error{Kind: KindArtifactNotFound}
	ErrArtifactMalformed    = &Error{Kind: KindArtifactMalformed}
	ErrEncoding             = &Error{Kind: KindEncoding}
	ErrSigning              = &Error{Kind: KindSigning}
	ErrRelayUnavailable     = &Error{Kind: KindRelayUnavailable}
	ErrRelayRejected        = &Error{Kind: KindRelayRejected}
	ErrDependencyUnresolved = &Error{Kind: KindDependencyUnresolved}
	ErrChainUnavailable     = &Error{Kind: KindChainUnavailable}
	ErrCancelled            = &Error{Kind: KindCancelled}
)

// Error is a classified pipeline error
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error

	transient bool
}

// NewError creates a classified error with a formatted message
func NewError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError classifies an underlying error
func WrapError(kind ErrorKind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// Transient marks the error as safe to retry. Only meaningful for kinds
// that are not retryable by default, such as SigningError.
func (e *Error) Transient() *Error {
	e.transient = true
	return e
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same kind
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Retryable reports whether the orchestrator may retry the failed operation
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindRelayUnavailable, KindChainUnavailable:
		return true
	case KindSigning:
		return e.transient
	default:
		return false
	}
}

// KindOf returns the classification of err. Context cancellation and
// deadline errors are reported as Cancelled.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var derr *Error
	if errors.As(err, &derr) {
		return derr.Kind
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindCancelled
	}
	return KindUnknown
}

// IsRetryable reports whether err is a classified, retryable error
func IsRetryable(err error) bool {
	var derr *Error
	if errors.As(err, &derr) {
		return derr.Retryable()
	}
	return false
}

// DeploymentError reports the step at which a deployment record failed
type DeploymentError struct {
	DeploymentID string
	Step         string
	Err          error
}

func (e *DeploymentError) Error() string {
	if e.Step == "" {
		return fmt.Sprintf("deployment %s failed: %v", e.DeploymentID, e.Err)
	}
	return fmt.Sprintf("deployment %s failed at step %q: %v", e.DeploymentID, e.Step, e.Err)
}

func (e *DeploymentError) Unwrap() error {
	return e.Err
}

// Kind returns the classification of the underlying failure
func (e *DeploymentError) Kind() ErrorKind {
	return KindOf(e.Err)
}
