package client

import "errors"

// ErrBusy is returned when a session-mutating operation is invoked while
// another one is still in flight. The single persisted token slot makes
// interleaved operations a lost-update hazard, so reentrancy is rejected
// rather than queued.
var ErrBusy = errors.New("session operation already in progress")

// Error kinds. Server error responses are normalized into exactly one of
// these at the transport boundary.
const (
	KindValidation  = "validation"
	KindConflict    = "conflict"
	KindCredentials = "credentials"
	KindToken       = "token"
	KindInternal    = "internal"
)

// APIError is the tagged form of a server-reported failure.
type APIError struct {
	Kind    string
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// messageOf extracts a user-facing message from err, falling back to a
// generic one for anything that is not an APIError.
func messageOf(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return "Something went wrong. Please try again."
}
