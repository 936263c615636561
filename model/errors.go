package model

import (
	"net/http"

	"emperror.dev/errors"
)

type ErrorKind string

const (
	KindTransport   ErrorKind = "TRANSPORT_ERROR"
	KindNotFound    ErrorKind = "NOT_FOUND"
	KindUpstream    ErrorKind = "UPSTREAM_ERROR"
	KindRateLimited ErrorKind = "RATE_LIMIT_REACHED"
)

// UpstreamError is the failure of one call to github, already shaped for the HTTP client
// Code is the status returned to the client, Repo is set for per repository calls
type UpstreamError struct {
	Code    int
	Kind    ErrorKind
	Message string
	Repo    string

	cause error
}

func (e *UpstreamError) Error() string {
	if e.Repo != "" {
		return e.Message + ` for repo "` + e.Repo + `"`
	}

	return e.Message
}

func (e *UpstreamError) Unwrap() error {
	return e.cause
}

// StatusCode default to 500 when no code has been set
func (e *UpstreamError) StatusCode() int {
	if e.Code == 0 {
		return http.StatusInternalServerError
	}

	return e.Code
}

func (e *UpstreamError) IsNotFound() bool {
	return e.Kind == KindNotFound
}

// NewTransportError is used when github could not be reached at all
func NewTransportError(cause error, repo string) *UpstreamError {
	return &UpstreamError{
		Code:    http.StatusInternalServerError,
		Kind:    KindTransport,
		Message: cause.Error(),
		Repo:    repo,
		cause:   cause,
	}
}

func NewRateLimitError(cause error, repo string) *UpstreamError {
	return &UpstreamError{
		Code:    http.StatusTooManyRequests,
		Kind:    KindRateLimited,
		Message: "github rate limit reached. wait few minutes and try again",
		Repo:    repo,
		cause:   cause,
	}
}

func NewNotFoundError(message string, repo string) *UpstreamError {
	return &UpstreamError{
		Code:    http.StatusNotFound,
		Kind:    KindNotFound,
		Message: message,
		Repo:    repo,
	}
}

// NewUpstreamError keep the github status and body untouched
func NewUpstreamError(status int, body []byte, repo string) *UpstreamError {
	return &UpstreamError{
		Code:    status,
		Kind:    KindUpstream,
		Message: string(body),
		Repo:    repo,
	}
}

// AsUpstreamError look for an UpstreamError in the chain
func AsUpstreamError(err error) (*UpstreamError, bool) {
	var upstreamErr *UpstreamError
	if errors.As(err, &upstreamErr) {
		return upstreamErr, true
	}

	return nil, false
}
