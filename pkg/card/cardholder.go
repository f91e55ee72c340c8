package card

import (
	"fmt"
	"strings"

	"github.com/moov-io/bertlv"
)

// CARDHOLDER DATA (OpenPGP card, data object '65'):
// GET DATA 00 CA 00 65 returns a constructed object holding
//
//   - '5B'   Name, "Surname<<Given<Names" with '<' as filler
//   - '5F2D' Language preferences
//   - '5F35' Sex
//
// Only the name is used here, to tell the user whose card is asking.

// Data object tags.
const (
	TagCardholderData = 0x65
	TagName           = "5B"
)

// GetDataCommand creates a GET DATA command for a simple (P1P2) tag.
func GetDataCommand(tag uint16) *CommandAPDU {
	return &CommandAPDU{
		Class:       0x00,
		Instruction: InsGetData,
		P1:          byte(tag >> 8),
		P2:          byte(tag),
		Ne:          MaxShortNe,
	}
}

// GetData reads a data object.
func (c *Client) GetData(tag uint16) ([]byte, error) {
	trace, err := c.Send(GetDataCommand(tag))
	if err != nil {
		return nil, err
	}
	if sw := trace.Status(); !sw.IsSuccess() {
		return nil, fmt.Errorf("get data %04X failed: %s", tag, sw.Verbose())
	}
	return trace.Data(), nil
}

// CardholderName reads and formats the cardholder name. It returns an empty
// string when the card has no name set.
func (c *Client) CardholderName() (string, error) {
	data, err := c.GetData(TagCardholderData)
	if err != nil {
		return "", err
	}
	return ParseCardholderName(data)
}

// ParseCardholderName extracts the name from cardholder related data. The
// outer '65' template is optional: some cards return only its content.
func ParseCardholderName(data []byte) (string, error) {
	if len(data) == 0 {
		return "", nil
	}

	packets, err := bertlv.Decode(data)
	if err != nil {
		return "", fmt.Errorf("BER-TLV decode failed: %w", err)
	}

	if len(packets) > 0 && strings.EqualFold(packets[0].Tag, "65") {
		packets = packets[0].TLVs
	}

	for _, p := range packets {
		if strings.EqualFold(p.Tag, TagName) {
			return FormatName(string(p.Value)), nil
		}
	}
	return "", nil
}

// FormatName turns "Doe<<Jane<Ann" into "Jane Ann Doe".
func FormatName(raw string) string {
	surname, given, found := strings.Cut(raw, "<<")

	surname = strings.TrimSpace(strings.ReplaceAll(surname, "<", " "))
	given = strings.TrimSpace(strings.ReplaceAll(given, "<", " "))

	if !found || given == "" {
		return surname
	}
	if surname == "" {
		return given
	}
	return given + " " + surname
}
