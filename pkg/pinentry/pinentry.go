// Package pinentry runs a pinentry program to ask the user for a PIN, a
// yes/no confirmation, or to show a message.
//
// Each call spawns the helper, sends the configured directives followed by
// the terminal command, and terminates the helper once it has answered.
package pinentry

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/gregLibert/pinentry/pkg/assuan"
	"github.com/gregLibert/pinentry/pkg/secure"
)

// Client asks questions through a pinentry program. A Client only holds
// configuration; it can be reused and shared.
type Client struct {
	opts Options
}

// New creates a Client.
func New(opts ...Option) *Client {
	return &Client{opts: resolveOptions(opts...)}
}

// Options returns the resolved configuration.
func (c *Client) Options() Options {
	return c.opts
}

// GetPin asks for a PIN using prompt as the input label. The caller owns the
// returned Secret and should Wipe it when done. A declined prompt returns a
// *ProtocolError (see IsCancelled, IsTimeout).
func (c *Client) GetPin(ctx context.Context, prompt string) (*secure.Secret, error) {
	cmds := c.opts.commands()
	cmds = append(cmds, assuan.SetPrompt{Text: prompt}, assuan.GetPin{})

	resp, err := c.run(ctx, cmds)
	if err != nil {
		return nil, err
	}
	return pinResult(resp)
}

// Confirm asks the yes/no question set with WithDescription. Any refusal by
// the helper, including a cancelled dialog, is reported as false.
func (c *Client) Confirm(ctx context.Context) (bool, error) {
	cmds := append(c.opts.commands(), assuan.Confirm{})

	resp, err := c.run(ctx, cmds)
	if err != nil {
		return false, err
	}
	return confirmResult(resp)
}

// ShowMessage shows the text set with WithDescription.
func (c *Client) ShowMessage(ctx context.Context) error {
	cmds := append(c.opts.commands(), assuan.ShowMessage{})

	resp, err := c.run(ctx, cmds)
	if err != nil {
		return err
	}
	return messageResult(resp)
}

// run executes one command sequence against a fresh helper process.
func (c *Client) run(ctx context.Context, cmds []assuan.Command) (assuan.Response, error) {
	log := c.opts.Logger.With("session", uuid.NewString())

	h, err := startHelper(ctx, c.opts.Executable, c.opts.Args, log)
	if err != nil {
		return nil, wrapContext(ctx, err)
	}
	defer h.stop()

	resp, err := h.conn().Process(cmds)
	if err != nil {
		return nil, wrapContext(ctx, err)
	}

	log.Debug("pinentry: done", "commands", len(cmds))
	return resp, nil
}

// wrapContext puts a cancelled context in front of the transport error it
// caused. Both stay matchable with errors.Is and errors.As.
func wrapContext(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("pinentry: %w: %w", ctxErr, err)
	}
	return err
}

func pinResult(resp assuan.Response) (*secure.Secret, error) {
	switch r := resp.(type) {
	case assuan.Pin:
		return r.Secret, nil
	case assuan.NotOK:
		return nil, &ProtocolError{Reason: r.Reason}
	default:
		return nil, fmt.Errorf("%w: got %s for GETPIN", ErrUnexpectedResponse, resp)
	}
}

func confirmResult(resp assuan.Response) (bool, error) {
	switch r := resp.(type) {
	case assuan.OK:
		return true, nil
	case assuan.NotOK:
		return false, nil
	case assuan.Pin:
		r.Secret.Wipe()
		return false, fmt.Errorf("%w: got %s for CONFIRM", ErrUnexpectedResponse, resp)
	default:
		return false, fmt.Errorf("%w: got %v for CONFIRM", ErrUnexpectedResponse, resp)
	}
}

func messageResult(resp assuan.Response) error {
	switch r := resp.(type) {
	case assuan.OK:
		return nil
	case assuan.NotOK:
		return &ProtocolError{Reason: r.Reason}
	case assuan.Pin:
		r.Secret.Wipe()
		return fmt.Errorf("%w: got %s for MESSAGE", ErrUnexpectedResponse, resp)
	default:
		return fmt.Errorf("%w: got %v for MESSAGE", ErrUnexpectedResponse, resp)
	}
}
