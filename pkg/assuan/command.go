package assuan

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// COMMAND ENCODING:
// Every directive is one ASCII line: the keyword, a single space and the
// argument text, then '\n'. Argument-less directives are the bare keyword.
// The argument is written verbatim: no percent-escaping and no length check
// happen at this layer.
//
//   SETTIMEOUT 60
//   SETDESC Enter the PIN for card 0006 1234
//   GETPIN

// ErrUnknownCommand is returned when a Command value outside the supported
// set (or a nil Command) is handed to the codec.
var ErrUnknownCommand = errors.New("assuan: unknown command")

// Button identifies a dialog button whose label can be changed.
type Button int

const (
	ButtonOK Button = iota
	ButtonCancel
	ButtonNotOK
)

func (b Button) String() string {
	switch b {
	case ButtonOK:
		return "OK"
	case ButtonCancel:
		return "CANCEL"
	case ButtonNotOK:
		return "NOTOK"
	default:
		return fmt.Sprintf("Button(%d)", int(b))
	}
}

// keyword returns the directive that sets this button's label.
func (b Button) keyword() (string, error) {
	switch b {
	case ButtonOK:
		return "SETOK", nil
	case ButtonCancel:
		return "SETCANCEL", nil
	case ButtonNotOK:
		return "SETNOTOK", nil
	default:
		return "", fmt.Errorf("%w: invalid button %d", ErrUnknownCommand, int(b))
	}
}

// Command is one directive sent to the helper. The set of implementations is
// closed: SetTimeout, SetDescriptiveText, SetPrompt, SetWindowTitle,
// SetButtonLabel, SetErrorText, GetPin, Confirm and ShowMessage.
type Command interface {
	fmt.Stringer
	command()
}

// SetTimeout asks the helper to give up after Seconds and answer with an error.
type SetTimeout struct{ Seconds uint32 }

// SetDescriptiveText sets the explanatory text shown above the input field.
type SetDescriptiveText struct{ Text string }

// SetPrompt sets the label in front of the input field.
type SetPrompt struct{ Text string }

// SetWindowTitle sets the dialog title.
type SetWindowTitle struct{ Text string }

// SetButtonLabel relabels one of the dialog buttons.
type SetButtonLabel struct {
	Button Button
	Text   string
}

// SetErrorText sets an error message shown with the next prompt, typically
// after a wrong PIN.
type SetErrorText struct{ Text string }

// GetPin asks for a PIN. The helper answers with a data line then OK.
type GetPin struct{}

// Confirm asks a yes/no question built from the descriptive text.
type Confirm struct{}

// ShowMessage shows the descriptive text with a single OK button.
type ShowMessage struct{}

func (SetTimeout) command()         {}
func (SetDescriptiveText) command() {}
func (SetPrompt) command()          {}
func (SetWindowTitle) command()     {}
func (SetButtonLabel) command()     {}
func (SetErrorText) command()       {}
func (GetPin) command()             {}
func (Confirm) command()            {}
func (ShowMessage) command()        {}

func (c SetTimeout) String() string         { return fmt.Sprintf("SETTIMEOUT %d", c.Seconds) }
func (c SetDescriptiveText) String() string { return "SETDESC " + c.Text }
func (c SetPrompt) String() string          { return "SETPROMPT " + c.Text }
func (c SetWindowTitle) String() string     { return "SETTITLE " + c.Text }
func (c SetErrorText) String() string       { return "SETERROR " + c.Text }
func (GetPin) String() string               { return "GETPIN" }
func (Confirm) String() string              { return "CONFIRM" }
func (ShowMessage) String() string          { return "MESSAGE" }

func (c SetButtonLabel) String() string {
	kw, err := c.Button.keyword()
	if err != nil {
		return c.Button.String() + " " + c.Text
	}
	return kw + " " + c.Text
}

// Keyword returns the directive keyword of cmd (e.g. "SETDESC").
func Keyword(cmd Command) (string, error) {
	switch c := cmd.(type) {
	case SetTimeout:
		return "SETTIMEOUT", nil
	case SetDescriptiveText:
		return "SETDESC", nil
	case SetPrompt:
		return "SETPROMPT", nil
	case SetWindowTitle:
		return "SETTITLE", nil
	case SetButtonLabel:
		return c.Button.keyword()
	case SetErrorText:
		return "SETERROR", nil
	case GetPin:
		return "GETPIN", nil
	case Confirm:
		return "CONFIRM", nil
	case ShowMessage:
		return "MESSAGE", nil
	default:
		return "", fmt.Errorf("%w: %T", ErrUnknownCommand, cmd)
	}
}

// Encode returns the wire line for cmd, including the trailing newline.
func Encode(cmd Command) ([]byte, error) {
	kw, err := Keyword(cmd)
	if err != nil {
		return nil, err
	}

	buf := new(bytes.Buffer)
	buf.WriteString(kw)

	hasArg := true
	var arg string
	switch c := cmd.(type) {
	case SetTimeout:
		arg = strconv.FormatUint(uint64(c.Seconds), 10)
	case SetDescriptiveText:
		arg = c.Text
	case SetPrompt:
		arg = c.Text
	case SetWindowTitle:
		arg = c.Text
	case SetButtonLabel:
		arg = c.Text
	case SetErrorText:
		arg = c.Text
	default:
		hasArg = false
	}

	if hasArg {
		buf.WriteByte(' ')
		buf.WriteString(arg)
	}
	buf.WriteByte('\n')

	return buf.Bytes(), nil
}

// WriteCommand encodes cmd and writes it to w in a single Write call.
func WriteCommand(w io.Writer, cmd Command) error {
	line, err := Encode(cmd)
	if err != nil {
		return err
	}
	if _, err := w.Write(line); err != nil {
		kw, _ := Keyword(cmd)
		return &IOError{Op: "write " + kw, Err: err}
	}
	return nil
}

// IsTerminal reports whether the reply to cmd ends a command sequence.
func IsTerminal(cmd Command) bool {
	switch cmd.(type) {
	case GetPin, Confirm, ShowMessage:
		return true
	default:
		return false
	}
}
