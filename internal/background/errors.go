package background

import (
	"errors"
	"fmt"
)

var (
	ErrTimeout             = errors.New("background generation timed out")
	ErrUpstreamUnavailable = errors.New("image service unavailable")
	ErrInvalidResponse     = errors.New("image service returned an unusable image")
)

// Class says how a failed upstream call should be handled.
type Class int

const (
	// ClassTransient failures are retried at the same size.
	ClassTransient Class = iota
	// ClassSizeRejected moves on to the next size.
	ClassSizeRejected
	// ClassPermanent stops the provider (auth, quota, bad request).
	ClassPermanent
	// ClassInvalidResponse covers undecodable or undersized images.
	ClassInvalidResponse
)

func (c Class) String() string {
	switch c {
	case ClassTransient:
		return "transient"
	case ClassSizeRejected:
		return "size_rejected"
	case ClassPermanent:
		return "permanent"
	case ClassInvalidResponse:
		return "invalid_response"
	}
	return "unknown"
}

// UpstreamError is a classified failure from an image Client.
type UpstreamError struct {
	Class      Class
	StatusCode int
	Message    string
	Err        error
}

func (e *UpstreamError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("upstream %s (status %d): %s", e.Class, e.StatusCode, msg)
	}
	return fmt.Sprintf("upstream %s: %s", e.Class, msg)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// ClassOf returns the class of err. Unclassified errors count as transient.
func ClassOf(err error) Class {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.Class
	}
	return ClassTransient
}

// retryable reports whether a failure is retried at the same size.
func retryable(c Class) bool {
	return c == ClassTransient
}

// fallsBack reports whether a failure, once retries are spent, moves on to
// the next size instead of failing the request.
func fallsBack(c Class) bool {
	switch c {
	case ClassTransient, ClassSizeRejected, ClassInvalidResponse:
		return true
	}
	return false
}
