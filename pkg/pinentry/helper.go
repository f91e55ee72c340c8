package pinentry

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/gregLibert/pinentry/pkg/assuan"
)

// HELPER LIFECYCLE:
// Every prompt runs its own pinentry process:
//
// 1. Spawn the program with piped stdin/stdout.
// 2. Read the greeting line; it must start with "OK" (usually
//    "OK Pleased to meet you"). Nothing is sent before that.
// 3. Hand both pipes to an assuan.Conn for the command sequence.
// 4. Close stdin, kill and reap the process once the Response is known.

// helper is a running pinentry process.
type helper struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
	log    *slog.Logger
}

// startHelper spawns the program and checks its greeting.
func startHelper(ctx context.Context, exe string, args []string, log *slog.Logger) (*helper, error) {
	cmd := exec.CommandContext(ctx, exe, args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, &assuan.IOError{Op: "stdin pipe", Err: err}
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &assuan.IOError{Op: "stdout pipe", Err: err}
	}

	if err := cmd.Start(); err != nil {
		return nil, &assuan.IOError{Op: "start " + exe, Err: err}
	}
	log.Debug("pinentry: started", "exe", exe, "pid", cmd.Process.Pid)

	h := &helper{
		cmd:    cmd,
		stdin:  stdin,
		stdout: bufio.NewReader(stdout),
		log:    log,
	}

	greeting, err := h.stdout.ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || greeting == "") {
		h.stop()
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, &assuan.IOError{Op: "read greeting", Err: err}
	}

	if !strings.HasPrefix(greeting, "OK") {
		h.stop()
		return nil, &ProtocolError{Reason: strings.TrimSuffix(greeting, "\n")}
	}
	log.Debug("pinentry: greeting", "line", strings.TrimSuffix(greeting, "\n"))

	return h, nil
}

// conn returns an Assuan connection over the helper's pipes.
func (h *helper) conn() *assuan.Conn {
	return &assuan.Conn{
		Reader: h.stdout,
		Writer: h.stdin,
		Logger: h.log,
	}
}

// stop terminates the helper. Failures are logged only: the Response has
// already been obtained when stop runs.
func (h *helper) stop() {
	if err := h.stdin.Close(); err != nil {
		h.log.Debug("pinentry: close stdin", "error", err)
	}

	if err := h.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		h.log.Warn("pinentry: kill failed", "error", err)
	}

	// Wait reports the kill signal as an error; that is the expected outcome.
	if err := h.cmd.Wait(); err != nil {
		h.log.Debug("pinentry: exited", "status", err)
	}
}
