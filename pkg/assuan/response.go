package assuan

import (
	"fmt"

	"github.com/gregLibert/pinentry/pkg/secure"
)

// Response is the outcome of a whole command sequence. The set of
// implementations is closed: Pin, OK and NotOK.
type Response interface {
	fmt.Stringer
	response()
}

// Pin carries the secret returned by GETPIN. The holder is responsible for
// calling Secret.Wipe once done with it.
type Pin struct {
	Secret *secure.Secret
}

// OK is a generic success: every directive was accepted, or the user
// confirmed / acknowledged the dialog.
type OK struct{}

// NotOK means the helper understood the request but declined or failed it.
// Reason is the reply line without its trailing newline, usually of the form
// "ERR <code> <description>".
type NotOK struct {
	Reason string
}

func (Pin) response()   {}
func (OK) response()    {}
func (NotOK) response() {}

func (p Pin) String() string   { return "PIN(" + p.Secret.String() + ")" }
func (OK) String() string      { return "OK" }
func (n NotOK) String() string { return "NOTOK(" + n.Reason + ")" }

// Err decodes Reason as an Assuan error line. ok is false when Reason does
// not follow the "ERR <code> <description>" format.
func (n NotOK) Err() (e ErrorCode, desc string, ok bool) {
	return ParseErrorLine(n.Reason)
}
