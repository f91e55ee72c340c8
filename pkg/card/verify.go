package card

import (
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/gregLibert/pinentry/pkg/secure"
)

// VERIFY COMMAND LOGIC (ISO 7816-4, INS '20'):
// P1 is 00 and P2 names the reference data (which PIN). The data field
// carries the PIN as entered.
//
// An empty data field does not verify anything: the card answers 9000 if the
// PIN is already verified in this session, or 63CX with the number of tries
// left. Client.RetriesLeft uses this to show the counter before prompting.

// PIN references of the OpenPGP card application.
const (
	RefPW1Sign  byte = 0x81 // user PIN, signing
	RefPW1      byte = 0x82 // user PIN, decryption and authentication
	RefPW3Admin byte = 0x83 // admin PIN
)

// OpenPGPAID is the application identifier prefix of OpenPGP cards.
var OpenPGPAID = []byte{0xD2, 0x76, 0x00, 0x01, 0x24, 0x01}

// ErrEmptyPIN is returned by Verify for an empty PIN, which the card would
// read as a status query.
var ErrEmptyPIN = errors.New("card: empty PIN")

// VerifyCommand creates a VERIFY command. A nil pin queries the status.
func VerifyCommand(ref byte, pin []byte) *CommandAPDU {
	return &CommandAPDU{
		Class:       0x00,
		Instruction: InsVerify,
		P1:          0x00,
		P2:          ref,
		Data:        pin,
	}
}

// SelectCommand creates a SELECT by DF name (AID) command.
func SelectCommand(aid []byte) *CommandAPDU {
	return &CommandAPDU{
		Class:       0x00,
		Instruction: InsSelect,
		P1:          0x04,
		P2:          0x00,
		Data:        aid,
	}
}

// VerifyResult is the interpreted outcome of a VERIFY.
type VerifyResult struct {
	Status      StatusWord
	Verified    bool
	RetriesLeft int // -1 when the card did not say
	Blocked     bool
}

// NewVerifyResult interprets the final status of a VERIFY trace.
func NewVerifyResult(t Trace) (*VerifyResult, error) {
	if len(t) == 0 {
		return nil, fmt.Errorf("cannot create result from empty trace")
	}
	if t[0].Command.Instruction != InsVerify {
		return nil, fmt.Errorf("trace must start with VERIFY command (got %02X)", t[0].Command.Instruction)
	}

	sw := t.Status()
	r := &VerifyResult{Status: sw, RetriesLeft: -1}

	if n, ok := sw.RetryCounter(); ok {
		r.RetriesLeft = n
		r.Blocked = n == 0
	}
	switch sw {
	case SWNoError:
		r.Verified = true
	case SWAuthMethodBlocked:
		r.Blocked = true
		r.RetriesLeft = 0
	}

	return r, nil
}

// Describe returns a one-line summary for logs and user messages.
func (r *VerifyResult) Describe() string {
	var sb strings.Builder

	switch {
	case r.Verified:
		sb.WriteString("PIN verified")
	case r.Blocked:
		sb.WriteString("PIN blocked")
	default:
		sb.WriteString("PIN not verified")
	}

	if r.RetriesLeft >= 0 && !r.Blocked {
		sb.WriteString(fmt.Sprintf(", %d tries left", r.RetriesLeft))
	}
	sb.WriteString(" " + r.Status.Verbose())

	return sb.String()
}

// SelectApplication selects the application identified by aid.
func (c *Client) SelectApplication(aid []byte) error {
	trace, err := c.Send(SelectCommand(aid))
	if err != nil {
		return err
	}
	if sw := trace.Status(); !sw.IsSuccess() {
		return fmt.Errorf("select %X failed: %s", aid, sw.Verbose())
	}
	return nil
}

// Verify presents pin for the reference data ref. A wrong PIN is reported in
// the result, not as an error.
func (c *Client) Verify(ref byte, pin *secure.Secret) (*VerifyResult, error) {
	if pin.Len() == 0 {
		return nil, ErrEmptyPIN
	}

	// cmd.Data aliases the secret until the last follow-up is sent.
	defer runtime.KeepAlive(pin)

	trace, err := c.Send(VerifyCommand(ref, pin.Unsecure()))
	if err != nil {
		return nil, err
	}
	return NewVerifyResult(trace)
}

// RetriesLeft asks the card for the state of ref without presenting a PIN.
func (c *Client) RetriesLeft(ref byte) (*VerifyResult, error) {
	trace, err := c.Send(VerifyCommand(ref, nil))
	if err != nil {
		return nil, err
	}
	return NewVerifyResult(trace)
}
