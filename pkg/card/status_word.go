package card

import "fmt"

// StatusWord is the two-byte trailer (SW1 SW2) of every response.
//
// The values that matter for PIN handling:
//   - 9000: verified.
//   - 63CX: wrong PIN, X tries left (also returned by an empty VERIFY).
//   - 6983: PIN blocked.
//   - 6982: security status not satisfied (PIN needed).
//   - 61XX / 6CXX: transport hints handled by Client.Send.
type StatusWord uint16

// Status words used by this package.
const (
	SWNoError                StatusWord = 0x9000
	SWWrongLength            StatusWord = 0x6700
	SWSecurityNotSatisfied   StatusWord = 0x6982
	SWAuthMethodBlocked      StatusWord = 0x6983
	SWConditionsNotSatisfied StatusWord = 0x6985
	SWWrongData              StatusWord = 0x6A80
	SWFileNotFound           StatusWord = 0x6A82
	SWRefDataNotFound        StatusWord = 0x6A88
	SWInsNotSupported        StatusWord = 0x6D00
	SWClaNotSupported        StatusWord = 0x6E00
)

// NewStatusWord builds a StatusWord from SW1 and SW2.
func NewStatusWord(sw1, sw2 byte) StatusWord {
	return StatusWord(uint16(sw1)<<8 | uint16(sw2))
}

// SW1 returns the high byte.
func (sw StatusWord) SW1() byte { return byte(sw >> 8) }

// SW2 returns the low byte.
func (sw StatusWord) SW2() byte { return byte(sw) }

// IsSuccess returns true for 9000 and 61XX.
func (sw StatusWord) IsSuccess() bool {
	return sw == SWNoError || sw.SW1() == 0x61
}

// RetryCounter returns X for a 63CX status.
func (sw StatusWord) RetryCounter() (int, bool) {
	if sw.SW1() != 0x63 || sw.SW2()&0xF0 != 0xC0 {
		return 0, false
	}
	return int(sw.SW2() & 0x0F), true
}

// Verbose returns a human-readable description of the status word.
func (sw StatusWord) Verbose() string {
	if n, ok := sw.RetryCounter(); ok {
		return fmt.Sprintf("[%04X] Verification failed, %d tries left", uint16(sw), n)
	}

	switch sw.SW1() {
	case 0x61:
		return fmt.Sprintf("[%04X] Process completed, %d bytes available", uint16(sw), sw.SW2())
	case 0x6C:
		return fmt.Sprintf("[%04X] Wrong length, correct Le is %d", uint16(sw), sw.SW2())
	}

	desc := "Unknown status"
	switch sw {
	case SWNoError:
		desc = "No error"
	case SWWrongLength:
		desc = "Wrong length"
	case SWSecurityNotSatisfied:
		desc = "Security status not satisfied"
	case SWAuthMethodBlocked:
		desc = "Authentication method blocked"
	case SWConditionsNotSatisfied:
		desc = "Conditions of use not satisfied"
	case SWWrongData:
		desc = "Incorrect parameters in the data field"
	case SWFileNotFound:
		desc = "File or application not found"
	case SWRefDataNotFound:
		desc = "Referenced data not found"
	case SWInsNotSupported:
		desc = "Instruction not supported"
	case SWClaNotSupported:
		desc = "Class not supported"
	}

	return fmt.Sprintf("[%04X] %s", uint16(sw), desc)
}
