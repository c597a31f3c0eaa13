package authz

import (
	"errors"
	"fmt"
)

// ErrNotFound reports that the resource id did not resolve to a row. It is
// distinct from a denial so callers can choose 404 vs 403 deliberately.
var ErrNotFound = errors.New("resource not found")

// ErrDatabaseUnavailable marks transient database faults. Callers may
// retry with backoff; the policy core never retries internally.
var ErrDatabaseUnavailable = errors.New("database unavailable")

// DeniedError carries the policy decision that refused an operation.
type DeniedError struct {
	Action Action
	Reason DenyReason
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("denied: %s (%s)", e.Action, e.Reason)
}

// Denied wraps a refusing decision as an error.
func Denied(action Action, d Decision) error {
	return &DeniedError{Action: action, Reason: d.Reason}
}

// AsDenied extracts a DeniedError when present.
func AsDenied(err error) (*DeniedError, bool) {
	var d *DeniedError
	if errors.As(err, &d) {
		return d, true
	}
	return nil, false
}
