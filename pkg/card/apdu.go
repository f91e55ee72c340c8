package card

import (
	"bytes"
	"fmt"
)

// APDU encoding (ISO/IEC 7816-3/7816-4), reduced to what PIN handling needs.
//
// A command is a 4-byte header CLA INS P1 P2 followed by an optional body:
//   - Lc + Data when Data is present,
//   - Le when a response is expected.
//
// Lengths use the short form (1 byte, Le 0x00 = 256) unless Nc > 255 or
// Ne > 256, in which case the extended form is used.
//
// A response is an optional data field followed by the status word SW1 SW2.

// Instruction bytes used by this package.
const (
	InsVerify      byte = 0x20
	InsSelect      byte = 0xA4
	InsGetResponse byte = 0xC0
	InsGetData     byte = 0xCA
)

// Length limits of the two encodings.
const (
	MaxShortNc    = 255
	MaxShortNe    = 256
	MaxExtendedNc = 65535
	MaxExtendedNe = 65536
)

// CommandAPDU is a command sent to the card.
type CommandAPDU struct {
	Class       byte
	Instruction byte
	P1, P2      byte
	Data        []byte
	Ne          int // expected response length, 0 for none
}

// Bytes encodes the command. The result may contain a PIN: callers zero it
// once transmitted.
func (c *CommandAPDU) Bytes() ([]byte, error) {
	nc := len(c.Data)
	if nc > MaxExtendedNc {
		return nil, fmt.Errorf("data too long: %d bytes", nc)
	}
	if c.Ne < 0 || c.Ne > MaxExtendedNe {
		return nil, fmt.Errorf("invalid Ne %d", c.Ne)
	}

	buf := bytes.NewBuffer(make([]byte, 0, 4+3+nc+3))
	buf.Write([]byte{c.Class, c.Instruction, c.P1, c.P2})

	extended := nc > MaxShortNc || c.Ne > MaxShortNe

	if nc > 0 {
		if extended {
			buf.Write([]byte{0x00, byte(nc >> 8), byte(nc)})
		} else {
			buf.WriteByte(byte(nc))
		}
		buf.Write(c.Data)
	}

	if c.Ne > 0 {
		switch {
		case !extended:
			buf.WriteByte(byte(c.Ne)) // 256 wraps to 0x00
		default:
			if nc == 0 {
				buf.WriteByte(0x00)
			}
			buf.Write([]byte{byte(c.Ne >> 8), byte(c.Ne)}) // 65536 wraps to 0x0000
		}
	}

	return buf.Bytes(), nil
}

// String describes the command without its data field, which may hold a PIN.
func (c *CommandAPDU) String() string {
	return fmt.Sprintf("%s | CLA: %02X P1: %02X P2: %02X | Lc: %d | Le: %d",
		insName(c.Instruction), c.Class, c.P1, c.P2, len(c.Data), c.Ne)
}

func insName(ins byte) string {
	switch ins {
	case InsVerify:
		return "VERIFY"
	case InsSelect:
		return "SELECT"
	case InsGetResponse:
		return "GET RESPONSE"
	case InsGetData:
		return "GET DATA"
	default:
		return fmt.Sprintf("INS %02X", ins)
	}
}

// ResponseAPDU is the card's reply.
type ResponseAPDU struct {
	Data   []byte
	Status StatusWord
}

// ParseResponseAPDU splits raw into data and status word.
func ParseResponseAPDU(raw []byte) (*ResponseAPDU, error) {
	if len(raw) < 2 {
		return nil, fmt.Errorf("response too short: length %d", len(raw))
	}

	n := len(raw) - 2
	return &ResponseAPDU{
		Data:   raw[:n],
		Status: NewStatusWord(raw[n], raw[n+1]),
	}, nil
}

// String returns a readable representation of the response.
func (r *ResponseAPDU) String() string {
	return fmt.Sprintf("Data (%d bytes) | Status: %s", len(r.Data), r.Status.Verbose())
}
