package access

import "errors"

var (
	ErrInvalidInput   = errors.New("invalid input")
	ErrNotFound       = errors.New("not found")
	ErrDuplicateGrant = errors.New("duplicate grant")
	ErrForbidden      = errors.New("forbidden")
	ErrAccessDenied   = errors.New("access denied")
)

// DeniedError is the resolver's terminal deny. Reason is diagnostic only.
type DeniedError struct {
	Reason Reason
}

func (e *DeniedError) Error() string { return "access denied: " + string(e.Reason) }

func (e *DeniedError) Unwrap() error { return ErrAccessDenied }

// DenialReason returns the reason carried by a DeniedError in err's chain.
func DenialReason(err error) (Reason, bool) {
	var de *DeniedError
	if errors.As(err, &de) {
		return de.Reason, true
	}
	return "", false
}
