package github

import (
	"errors"
	"fmt"
)

var (
	// ErrRemoteRequestFailed matches every *RemoteRequestError via errors.Is.
	ErrRemoteRequestFailed = errors.New("github: remote request failed")
	ErrMissingCredentials  = errors.New("github: no token or app credentials configured")
)

// RemoteRequestError is returned when the API answers with a status of 400 or above.
type RemoteRequestError struct {
	Method     string
	Endpoint   string
	StatusCode int
	Err        error
}

func (e *RemoteRequestError) Error() string {
	return fmt.Sprintf("failed to fetch data from %s, status: %d", e.Endpoint, e.StatusCode)
}

func (e *RemoteRequestError) Unwrap() error { return e.Err }

func (e *RemoteRequestError) Is(target error) bool {
	return target == ErrRemoteRequestFailed
}
