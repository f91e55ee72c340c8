package assuan

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/gregLibert/pinentry/pkg/secure"
)

// PROCESSING LOGIC:
// Commands are written one at a time, and each one is answered before the
// next is sent:
//
// 1. Control directives (SETDESC, SETTIMEOUT, ...) are answered by "OK" or an
//    error line. An error line stops the sequence: nothing after it is sent.
//
// 2. CONFIRM and MESSAGE are answered by "OK" or an error line, and end the
//    sequence either way.
//
// 3. GETPIN is answered by a data line "D <pin>" followed by "OK", or by an
//    error line. The two are told apart by the first two bytes, which are
//    peeked rather than consumed so that an error line is read back whole.
//
// A sequence without any terminal command ends with OK once every directive
// has been accepted.

// dataPrefix marks a data line.
var dataPrefix = []byte("D ")

// LineReader is the inbound side of the connection. *bufio.Reader satisfies it.
type LineReader interface {
	Peek(n int) ([]byte, error)
	Discard(n int) (int, error)
	ReadBytes(delim byte) ([]byte, error)
}

// state tracks where the processor is in the exchange. It only feeds debug
// logging; the control flow below encodes the same transitions.
type state int

const (
	stateAwaitingNextCommand state = iota
	stateAwaitingReply
	stateAwaitingPinData
	stateAwaitingPostPinOK
	stateDone
)

func (s state) String() string {
	switch s {
	case stateAwaitingNextCommand:
		return "AwaitingNextCommand"
	case stateAwaitingReply:
		return "AwaitingReply"
	case stateAwaitingPinData:
		return "AwaitingPinData"
	case stateAwaitingPostPinOK:
		return "AwaitingPostPinOK"
	case stateDone:
		return "Done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Conn drives command sequences over a pair of byte streams, typically the
// stdout and stdin pipes of a pinentry process. A Conn holds no protocol
// state between calls to Process, but it must not be shared between
// goroutines while a call is in progress.
type Conn struct {
	Reader LineReader
	Writer io.Writer
	Logger *slog.Logger
}

// NewConn creates a Conn. r is wrapped in a bufio.Reader unless it already
// implements LineReader.
func NewConn(r io.Reader, w io.Writer) *Conn {
	lr, ok := r.(LineReader)
	if !ok {
		lr = bufio.NewReader(r)
	}
	return &Conn{Reader: lr, Writer: w}
}

// Process runs cmds in order and returns the single Response for the whole
// sequence. I/O failures are returned as *IOError; a declined request is a
// NotOK response, not an error.
func Process(cmds []Command, w io.Writer, r io.Reader) (Response, error) {
	return NewConn(r, w).Process(cmds)
}

// Process runs cmds in order until the first terminal command (GetPin,
// Confirm, ShowMessage) or the first rejected directive.
func (c *Conn) Process(cmds []Command) (Response, error) {
	log := c.logger()

	for i, cmd := range cmds {
		kw, err := Keyword(cmd)
		if err != nil {
			return nil, err
		}
		log.Debug("assuan: send", "index", i, "command", kw)

		if err := WriteCommand(c.Writer, cmd); err != nil {
			return nil, err
		}

		switch cmd.(type) {
		case GetPin:
			return c.readPin(log)

		case Confirm, ShowMessage:
			c.trace(log, stateAwaitingReply)
			line, err := c.readLine("read " + kw + " reply")
			if err != nil {
				return nil, err
			}
			return c.done(log, replyResponse(line)), nil

		default:
			c.trace(log, stateAwaitingReply)
			line, err := c.readLine("read " + kw + " reply")
			if err != nil {
				return nil, err
			}
			if !isOK(line) {
				return c.done(log, NotOK{Reason: string(trimNewline(line))}), nil
			}
			c.trace(log, stateAwaitingNextCommand)
		}
	}

	return c.done(log, OK{}), nil
}

// readPin handles the reply to GETPIN.
func (c *Conn) readPin(log *slog.Logger) (Response, error) {
	c.trace(log, stateAwaitingPinData)

	prefix, err := c.Reader.Peek(len(dataPrefix))
	if len(prefix) == 0 && err != nil {
		return nil, c.ioError("read GETPIN reply", err)
	}
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, c.ioError("read GETPIN reply", err)
	}

	if !bytes.Equal(prefix, dataPrefix) {
		// Not a data line: the peeked bytes are still buffered, so the
		// whole error line comes back in one read.
		line, err := c.readLine("read GETPIN reply")
		if err != nil {
			return nil, err
		}
		return c.done(log, NotOK{Reason: string(trimNewline(line))}), nil
	}

	if _, err := c.Reader.Discard(len(dataPrefix)); err != nil {
		return nil, c.ioError("read GETPIN data", err)
	}

	payload, err := c.Reader.ReadBytes('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		secure.Zero(payload)
		return nil, c.ioError("read GETPIN data", err)
	}
	pin := secure.New(trimNewline(payload))

	c.trace(log, stateAwaitingPostPinOK)
	line, err := c.readLine("read GETPIN status")
	if err != nil {
		pin.Wipe()
		return nil, err
	}
	if !isOK(line) {
		pin.Wipe()
		return c.done(log, NotOK{Reason: string(trimNewline(line))}), nil
	}

	return c.done(log, Pin{Secret: pin}), nil
}

// readLine reads one reply line including its newline. A final line without
// a newline is accepted; an empty stream is an unexpected EOF.
func (c *Conn) readLine(op string) ([]byte, error) {
	line, err := c.Reader.ReadBytes('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && len(line) > 0 {
			return line, nil
		}
		return nil, c.ioError(op, err)
	}
	return line, nil
}

func (c *Conn) ioError(op string, err error) error {
	if errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return &IOError{Op: op, Err: err}
}

func (c *Conn) trace(log *slog.Logger, s state) {
	log.Debug("assuan: state", "state", s.String())
}

func (c *Conn) done(log *slog.Logger, resp Response) Response {
	log.Debug("assuan: state", "state", stateDone.String(), "response", responseKind(resp))
	return resp
}

func (c *Conn) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.Logger
}

// replyResponse maps the reply to CONFIRM or MESSAGE.
func replyResponse(line []byte) Response {
	if isOK(line) {
		return OK{}
	}
	return NotOK{Reason: string(trimNewline(line))}
}

func isOK(line []byte) bool {
	return string(line) == "OK" || string(line) == "OK\n"
}

func trimNewline(line []byte) []byte {
	return bytes.TrimSuffix(line, []byte{'\n'})
}

// responseKind names a Response without ever formatting its payload.
func responseKind(resp Response) string {
	switch r := resp.(type) {
	case Pin:
		return "PIN"
	case OK:
		return "OK"
	case NotOK:
		return "NOTOK " + r.Reason
	default:
		return fmt.Sprintf("%T", resp)
	}
}
