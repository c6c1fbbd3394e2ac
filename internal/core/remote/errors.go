package remote

import (
	"errors"
	"fmt"
)

// ErrRejected means the backend answered but refused the operation
var ErrRejected = errors.New("rejected by backend")

// APIError is a non-2xx response from the backend
type APIError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.Path, e.Status, e.Body)
	}
	return fmt.Sprintf("%s %s: HTTP %d", e.Method, e.Path, e.Status)
}
