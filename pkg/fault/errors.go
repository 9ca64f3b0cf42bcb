// Package fault defines the domain error taxonomy. Handlers map these onto
// HTTP statuses; everything else wraps and propagates.
package fault

import (
	"errors"
	"fmt"
)

// ErrUnsupported marks an operation the service deliberately does not
// implement.
var ErrUnsupported = errors.New("operation not supported")

// NotFoundError reports that a requested resource does not exist
type NotFoundError struct {
	Resource string
	Message  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.Message)
}

// NotFound creates a NotFoundError for the given resource
func NotFound(resource, format string, args ...interface{}) error {
	return &NotFoundError{
		Resource: resource,
		Message:  fmt.Sprintf(format, args...),
	}
}

// IsNotFound reports whether err is a NotFoundError
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// UnauthorizedError reports a failed authentication or authorization
// decision. The reason stays server-side; transports must not echo it.
type UnauthorizedError struct {
	Reason string
}

func (e *UnauthorizedError) Error() string {
	return "unauthorized: " + e.Reason
}

// Unauthorized creates an UnauthorizedError with an internal reason
func Unauthorized(reason string) error {
	return &UnauthorizedError{Reason: reason}
}

// IsUnauthorized reports whether err is an UnauthorizedError
func IsUnauthorized(err error) bool {
	var ua *UnauthorizedError
	return errors.As(err, &ua)
}

// UpstreamError reports a failure in an external collaborator
type UpstreamError struct {
	System string
	Err    error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s upstream failure: %v", e.System, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Upstream wraps an external collaborator failure
func Upstream(system string, err error) error {
	return &UpstreamError{System: system, Err: err}
}

// IsUpstream reports whether err is an UpstreamError
func IsUpstream(err error) bool {
	var up *UpstreamError
	return errors.As(err, &up)
}
