package pinentry

import (
	"errors"

	"github.com/gregLibert/pinentry/pkg/assuan"
)

// ErrUnexpectedResponse means the helper answered a terminal command with a
// response of the wrong kind (e.g. a PIN for CONFIRM). It cannot happen with
// a conforming helper and points at a bug or a misbehaving program.
var ErrUnexpectedResponse = errors.New("pinentry: unexpected response")

// ProtocolError carries the error line of a helper that understood the
// request but declined it: the user cancelled, the timeout expired, or the
// greeting was not "OK".
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string {
	return "pinentry: " + e.Reason
}

// Code decodes Reason as an Assuan error line.
func (e *ProtocolError) Code() (assuan.ErrorCode, bool) {
	code, _, ok := assuan.ParseErrorLine(e.Reason)
	return code, ok
}

// IsCancelled reports whether err is a ProtocolError for a dialog the user
// dismissed.
func IsCancelled(err error) bool {
	var pErr *ProtocolError
	if !errors.As(err, &pErr) {
		return false
	}
	code, ok := pErr.Code()
	return ok && code.IsCanceled()
}

// IsTimeout reports whether err is a ProtocolError for an expired prompt.
func IsTimeout(err error) bool {
	var pErr *ProtocolError
	if !errors.As(err, &pErr) {
		return false
	}
	code, ok := pErr.Code()
	return ok && code.IsTimeout()
}
