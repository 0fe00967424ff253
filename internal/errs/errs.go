// Package errs defines the failure taxonomy shared by every store tier.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConfigured means the store tier is absent. This is a mode,
	// not a failure; callers fall through to the next tier.
	ErrNotConfigured = errors.New("store not configured")

	// ErrUnreachable is a transport-level failure talking to a remote store.
	ErrUnreachable = errors.New("remote store unreachable")

	// ErrNotFound means the record or profile is absent in every tier.
	ErrNotFound = errors.New("not found")
)

// Rejection is an explicit refusal from a remote store or the credential
// service: bad credentials, duplicate registration, inactive account.
// Its message is safe to show to the user.
type Rejection struct {
	Message string
}

func (e *Rejection) Error() string {
	return fmt.Sprintf("rejected: %s", e.Message)
}

// Reject builds a Rejection with a user-facing message.
func Reject(message string) *Rejection {
	return &Rejection{Message: message}
}

// IsRejection reports whether err carries an explicit refusal, and if so
// returns its message.
func IsRejection(err error) (string, bool) {
	var rej *Rejection
	if errors.As(err, &rej) {
		return rej.Message, true
	}
	return "", false
}
