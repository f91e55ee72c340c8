package assuan

import (
	"fmt"
	"strconv"
	"strings"
)

// Assuan error lines look like:
//
//   ERR 83886179 Operation cancelled <Pinentry>
//
// The numeric part is a libgpg-error value. Like an ISO 7816 status word it
// packs two fields:
//
//   - bits 24-30: error source (5 = pinentry)
//   - bits 0-15:  error code (99 = canceled, 62 = timeout, ...)
//
// Only the codes a pinentry helper actually emits are named here.

// IOError reports a failure of the underlying byte streams (broken pipe,
// unexpected end of stream, helper not found). It is distinct from a NotOK
// response, which is valid protocol data.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("assuan: %s: %v", e.Op, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// ErrorCode is a libgpg-error value as carried in an ERR line.
type ErrorCode uint32

// SourcePinentry is the error source used by pinentry programs.
const SourcePinentry = 5

// Error codes from libgpg-error used by pinentry.
const (
	CodeTimeout      = 62
	CodeCanceled     = 99
	CodeNotConfirmed = 114
)

// Pinentry error values as they appear on the wire.
const (
	ErrPinentryTimeout      ErrorCode = SourcePinentry<<24 | CodeTimeout
	ErrPinentryCanceled     ErrorCode = SourcePinentry<<24 | CodeCanceled
	ErrPinentryNotConfirmed ErrorCode = SourcePinentry<<24 | CodeNotConfirmed
)

// Source returns the error source (bits 24-30).
func (e ErrorCode) Source() uint8 {
	return uint8((e >> 24) & 0x7F)
}

// Code returns the error code (bits 0-15).
func (e ErrorCode) Code() uint16 {
	return uint16(e)
}

// IsCanceled reports whether the user dismissed the dialog.
func (e ErrorCode) IsCanceled() bool {
	return e.Code() == CodeCanceled
}

// IsTimeout reports whether the SETTIMEOUT delay expired.
func (e ErrorCode) IsTimeout() bool {
	return e.Code() == CodeTimeout
}

// IsNotConfirmed reports whether the user chose the negative button of a
// CONFIRM dialog.
func (e ErrorCode) IsNotConfirmed() bool {
	return e.Code() == CodeNotConfirmed
}

// Verbose returns a human-readable description of the error value.
func (e ErrorCode) Verbose() string {
	desc := "Unknown error"
	switch e.Code() {
	case CodeTimeout:
		desc = "Timeout"
	case CodeCanceled:
		desc = "Operation cancelled"
	case CodeNotConfirmed:
		desc = "Not confirmed"
	}

	src := fmt.Sprintf("source %d", e.Source())
	if e.Source() == SourcePinentry {
		src = "Pinentry"
	}

	return fmt.Sprintf("[%d] %s <%s>", uint32(e), desc, src)
}

// ParseErrorLine splits an "ERR <code> <description>" reply. The trailing
// newline, if any, is ignored.
func ParseErrorLine(line string) (code ErrorCode, desc string, ok bool) {
	line = strings.TrimSuffix(line, "\n")

	rest, found := strings.CutPrefix(line, "ERR ")
	if !found {
		return 0, "", false
	}

	num, desc, _ := strings.Cut(rest, " ")
	n, err := strconv.ParseUint(num, 10, 32)
	if err != nil {
		return 0, "", false
	}

	return ErrorCode(n), desc, true
}
