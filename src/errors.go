package storybook

import (
	"errors"
	"fmt"
)

// Error categories. Every error returned by this package matches exactly one
// of these through errors.Is.
var (
	ErrAuth         = errors.New("authentication error")
	ErrConfig       = errors.New("configuration error")
	ErrValidation   = errors.New("validation error")
	ErrRemote       = errors.New("remote API error")
	ErrConnectivity = errors.New("connectivity error")
	ErrTimeout      = errors.New("timeout")
	ErrIO           = errors.New("i/o error")
)

// RemoteError is a non-2xx (or otherwise unusable) answer from the Leonardo API.
// Body holds the response body exactly as received.
type RemoteError struct {
	StatusCode int
	Body       string
	Hint       string
}

func (e *RemoteError) Error() string {
	msg := fmt.Sprintf("Leonardo request failed (%d). Details: %s", e.StatusCode, e.Body)
	if e.Hint != "" {
		msg += "\nHint: " + e.Hint
	}
	return msg
}

func (e *RemoteError) Is(target error) bool {
	return target == ErrRemote
}

// Transient reports whether polling may continue after this error.
func (e *RemoteError) Transient() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}

// ConnectivityError means the API host could not be reached at all.
type ConnectivityError struct {
	Host string
	Err  error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("cannot reach %s: %v (check your network connection and LEONARDO_BASE_URL)", e.Host, e.Err)
}

func (e *ConnectivityError) Is(target error) bool {
	return target == ErrConnectivity
}

func (e *ConnectivityError) Unwrap() error {
	return e.Err
}

// PageError aborts a book. Index is zero-based, Number is the page number from
// the story template.
type PageError struct {
	Index  int
	Number int
	Err    error
}

func (e *PageError) Error() string {
	return fmt.Sprintf("page %d (index %d): %v", e.Number, e.Index, e.Err)
}

func (e *PageError) Unwrap() error {
	return e.Err
}

// Kind returns the category name of err, or "internal" when it matches none.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAuth):
		return "auth"
	case errors.Is(err, ErrConfig):
		return "config"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrConnectivity):
		return "connectivity"
	case errors.Is(err, ErrRemote):
		return "remote"
	case errors.Is(err, ErrIO):
		return "io"
	default:
		return "internal"
	}
}

// ExitCode maps err to the process exit status used by the CLI.
func ExitCode(err error) int {
	switch Kind(err) {
	case "":
		return 0
	case "auth":
		return 2
	case "config":
		return 3
	case "validation":
		return 4
	case "remote":
		return 5
	case "connectivity":
		return 6
	case "timeout":
		return 7
	case "io":
		return 8
	default:
		return 1
	}
}
