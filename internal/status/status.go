package status

import "errors"

var (
	ErrInvalidFormat       = errors.New("ticket: invalid ticket format")
	ErrInvalidRequest      = errors.New("purchase: invalid request")
	ErrNotFound            = errors.New("ticket: ticket not found")
	ErrAlreadyRedeemed     = errors.New("ticket: ticket already used")
	ErrDuplicateID         = errors.New("ticket: duplicate ticket number")
	ErrIDSpaceExhausted    = errors.New("ticket: could not generate a unique ticket number")
	ErrNotSettled          = errors.New("payment: payment not settled")
	ErrVerifierUnavailable = errors.New("payment: verifier unavailable")
	ErrNotificationFailed  = errors.New("notify: notification failed")
)

// ReasonError attaches a human readable reason, such as a gateway message,
// to one of the sentinel errors above.
type ReasonError struct {
	Err    error
	Reason string
}

func (e *ReasonError) Error() string {
	return e.Err.Error() + ": " + e.Reason
}

func (e *ReasonError) Unwrap() error {
	return e.Err
}

func WithReason(err error, reason string) error {
	return &ReasonError{Err: err, Reason: reason}
}

// Reason returns the attached reason, or "" when err carries none.
func Reason(err error) string {
	var re *ReasonError
	if errors.As(err, &re) {
		return re.Reason
	}
	return ""
}
