package card

import (
	"fmt"
	"log/slog"

	"github.com/gregLibert/pinentry/pkg/secure"
)

// CLIENT & TRANSPORT LOGIC:
// Client sits on top of the reader connection and hides the two T=0
// transport hints from callers:
//
// 1. "61 XX": XX more bytes are waiting. A GET RESPONSE with Le = XX is sent
//    on the same logical channel.
//
// 2. "6C XX": the Le was wrong. The same command is sent again with Le = XX.
//
// Send returns the whole exchange as a Trace; its last Transaction carries
// the final outcome.

// Transmitter abstracts the reader connection. *scard.Card satisfies it.
type Transmitter interface {
	Transmit(cmd []byte) ([]byte, error)
}

// Client manages the communication with the card.
type Client struct {
	Card   Transmitter
	Logger *slog.Logger
}

// NewClient creates a new Client.
func NewClient(card Transmitter) *Client {
	return &Client{Card: card}
}

// Transaction is one command/response pair.
type Transaction struct {
	Command  *CommandAPDU
	Response *ResponseAPDU
}

// Trace is the chronological list of transactions behind one logical command.
type Trace []Transaction

// Last returns the final transaction, or nil for an empty trace.
func (t Trace) Last() *Transaction {
	if len(t) == 0 {
		return nil
	}
	return &t[len(t)-1]
}

// Status returns the final status word, or 0 for an empty trace.
func (t Trace) Status() StatusWord {
	last := t.Last()
	if last == nil || last.Response == nil {
		return 0
	}
	return last.Response.Status
}

// Data returns the final response data.
func (t Trace) Data() []byte {
	last := t.Last()
	if last == nil || last.Response == nil {
		return nil
	}
	return last.Response.Data
}

// maxFollowUps bounds the number of GET RESPONSE / re-send rounds.
const maxFollowUps = 32

// Send transmits cmd and follows 61XX / 6CXX hints.
func (c *Client) Send(cmd *CommandAPDU) (Trace, error) {
	return c.send(cmd, 0)
}

func (c *Client) send(cmd *CommandAPDU, round int) (Trace, error) {
	if round > maxFollowUps {
		return nil, fmt.Errorf("card kept requesting follow-ups after %d rounds", maxFollowUps)
	}

	raw, err := cmd.Bytes()
	if err != nil {
		return nil, fmt.Errorf("encoding error: %w", err)
	}

	rawResp, err := c.Card.Transmit(raw)
	secure.Zero(raw)
	if err != nil {
		return nil, fmt.Errorf("transmission error: %w", err)
	}

	resp, err := ParseResponseAPDU(rawResp)
	if err != nil {
		return nil, err
	}
	c.logger().Debug("card: transaction", "command", cmd.String(), "status", resp.Status.Verbose())

	trace := Trace{{Command: cmd, Response: resp}}

	var next *CommandAPDU
	switch resp.Status.SW1() {
	case 0x61:
		next = &CommandAPDU{
			Class:       cmd.Class,
			Instruction: InsGetResponse,
			Ne:          expectedLength(resp.Status.SW2()),
		}
	case 0x6C:
		retry := *cmd
		retry.Ne = expectedLength(resp.Status.SW2())
		next = &retry
	default:
		return trace, nil
	}

	sub, err := c.send(next, round+1)
	if err != nil {
		return trace, err
	}
	return append(trace, sub...), nil
}

func (c *Client) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.Logger
}

// expectedLength decodes a short Le where 0x00 stands for 256.
func expectedLength(sw2 byte) int {
	if sw2 == 0 {
		return MaxShortNe
	}
	return int(sw2)
}
