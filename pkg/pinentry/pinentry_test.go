package pinentry

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/gregLibert/pinentry/pkg/assuan"
	"github.com/gregLibert/pinentry/pkg/secure"
)

// The test binary doubles as a fake pinentry program: when envFakeMode is set
// it speaks the helper side of the protocol on stdin/stdout instead of
// running the tests.
const (
	envFakeMode = "FAKE_PINENTRY_MODE"
	envFakeLog  = "FAKE_PINENTRY_LOG"
)

func TestMain(m *testing.M) {
	if mode := os.Getenv(envFakeMode); mode != "" {
		os.Exit(fakePinentry(mode, os.Getenv(envFakeLog)))
	}
	os.Exit(m.Run())
}

func fakePinentry(mode, logPath string) int {
	switch mode {
	case "bad-greeting":
		fmt.Println("ERR 1 no display")
		return 0
	case "silent":
		return 0
	}

	var logFile *os.File
	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return 3
		}
		defer f.Close()
		logFile = f
	}

	fmt.Println("OK Pleased to meet you")

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Text()
		if logFile != nil {
			fmt.Fprintln(logFile, line)
		}

		keyword, _, _ := strings.Cut(line, " ")
		switch {
		case mode == "cancel" && (keyword == "GETPIN" || keyword == "CONFIRM"):
			fmt.Println("ERR 83886179 Operation cancelled <Pinentry>")
		case mode == "reject-title" && keyword == "SETTITLE":
			fmt.Println("ERR 1 Bad title")
		case keyword == "GETPIN":
			fmt.Println("D 1234 5678")
			fmt.Println("OK")
		default:
			fmt.Println("OK")
		}
	}
	return 0
}

// fakeClient returns a Client that runs the test binary in the given mode and
// the path of the file recording the directives it received.
func fakeClient(t *testing.T, mode string, opts ...Option) (*Client, string) {
	t.Helper()

	logPath := filepath.Join(t.TempDir(), "received.txt")
	t.Setenv(envFakeMode, mode)
	t.Setenv(envFakeLog, logPath)

	opts = append(opts, WithExecutable(os.Args[0]))
	return New(opts...), logPath
}

func readReceived(t *testing.T, path string) []string {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading fake pinentry log: %v", err)
	}
	return strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
}

func TestClient_GetPin(t *testing.T) {
	client, logPath := fakeClient(t, "ok",
		WithWindowTitle("Unlock disk"),
		WithDescription("A disk has no key."),
		WithTimeout(30*time.Second),
	)

	pin, err := client.GetPin(context.Background(), "Passphrase:")
	if err != nil {
		t.Fatalf("GetPin failed: %v", err)
	}
	defer pin.Wipe()

	if got := string(pin.Unsecure()); got != "1234 5678" {
		t.Errorf("PIN = %q, want %q", got, "1234 5678")
	}

	expected := []string{
		"SETDESC A disk has no key.",
		"SETTIMEOUT 30",
		"SETTITLE Unlock disk",
		"SETPROMPT Passphrase:",
		"GETPIN",
	}
	if diff := cmp.Diff(expected, readReceived(t, logPath)); diff != "" {
		t.Errorf("received directives mismatch (-want +got):\n%s", diff)
	}
}

func TestClient_GetPinCancelled(t *testing.T) {
	client, _ := fakeClient(t, "cancel")

	pin, err := client.GetPin(context.Background(), "PIN:")
	if pin != nil {
		t.Errorf("expected no PIN, got %v", pin)
	}

	var pErr *ProtocolError
	if !errors.As(err, &pErr) {
		t.Fatalf("expected *ProtocolError, got %v", err)
	}
	if !IsCancelled(err) {
		t.Errorf("IsCancelled(%v) = false, want true", err)
	}
}

func TestClient_GetPinRejectedDirective(t *testing.T) {
	client, logPath := fakeClient(t, "reject-title",
		WithWindowTitle("x"),
		WithDescription("y"),
	)

	_, err := client.GetPin(context.Background(), "PIN:")

	var pErr *ProtocolError
	if !errors.As(err, &pErr) || pErr.Reason != "ERR 1 Bad title" {
		t.Fatalf("expected ProtocolError(ERR 1 Bad title), got %v", err)
	}

	// Nothing after the rejected directive is sent.
	if diff := cmp.Diff([]string{"SETDESC y", "SETTITLE x"}, readReceived(t, logPath)); diff != "" {
		t.Errorf("received directives mismatch (-want +got):\n%s", diff)
	}
}

func TestClient_Confirm(t *testing.T) {
	t.Run("Confirmed", func(t *testing.T) {
		client, logPath := fakeClient(t, "ok",
			WithDescription("Trust this key?"),
			WithButtonLabel(assuan.ButtonOK, "Yes"),
			WithButtonLabel(assuan.ButtonCancel, "No"),
		)

		ok, err := client.Confirm(context.Background())
		if err != nil {
			t.Fatalf("Confirm failed: %v", err)
		}
		if !ok {
			t.Error("Confirm() = false, want true")
		}

		expected := []string{"SETDESC Trust this key?", "SETCANCEL No", "SETOK Yes", "CONFIRM"}
		if diff := cmp.Diff(expected, readReceived(t, logPath)); diff != "" {
			t.Errorf("received directives mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("Declined Is Not An Error", func(t *testing.T) {
		client, _ := fakeClient(t, "cancel", WithDescription("Trust this key?"))

		ok, err := client.Confirm(context.Background())
		if err != nil {
			t.Fatalf("Confirm failed: %v", err)
		}
		if ok {
			t.Error("Confirm() = true, want false")
		}
	})
}

func TestClient_ShowMessage(t *testing.T) {
	client, logPath := fakeClient(t, "ok", WithDescription("Card removed"))

	if err := client.ShowMessage(context.Background()); err != nil {
		t.Fatalf("ShowMessage failed: %v", err)
	}
	if diff := cmp.Diff([]string{"SETDESC Card removed", "MESSAGE"}, readReceived(t, logPath)); diff != "" {
		t.Errorf("received directives mismatch (-want +got):\n%s", diff)
	}
}

func TestClient_HelperFailures(t *testing.T) {
	t.Run("Bad Greeting", func(t *testing.T) {
		client, _ := fakeClient(t, "bad-greeting")

		_, err := client.GetPin(context.Background(), "PIN:")
		var pErr *ProtocolError
		if !errors.As(err, &pErr) || pErr.Reason != "ERR 1 no display" {
			t.Errorf("expected ProtocolError(ERR 1 no display), got %v", err)
		}
	})

	t.Run("No Greeting", func(t *testing.T) {
		client, _ := fakeClient(t, "silent")

		_, err := client.GetPin(context.Background(), "PIN:")
		var ioErr *assuan.IOError
		if !errors.As(err, &ioErr) {
			t.Errorf("expected *assuan.IOError, got %v", err)
		}
	})

	t.Run("Executable Not Found", func(t *testing.T) {
		client := New(WithExecutable(filepath.Join(t.TempDir(), "no-such-pinentry")))

		_, err := client.Confirm(context.Background())
		var ioErr *assuan.IOError
		if !errors.As(err, &ioErr) {
			t.Errorf("expected *assuan.IOError, got %v", err)
		}
	})

	t.Run("Cancelled Context", func(t *testing.T) {
		client, _ := fakeClient(t, "ok")

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := client.GetPin(ctx, "PIN:")
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		var ioErr *assuan.IOError
		if !errors.As(err, &ioErr) {
			t.Errorf("expected the *assuan.IOError to stay in the chain, got %v", err)
		}
	})
}

func TestWrapContext(t *testing.T) {
	ioErr := &assuan.IOError{Op: "read GETPIN", Err: io.ErrClosedPipe}

	t.Run("Live Context", func(t *testing.T) {
		if err := wrapContext(context.Background(), ioErr); err != ioErr {
			t.Errorf("wrapContext() = %v, want the error unchanged", err)
		}
	})

	t.Run("Cancelled Context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := wrapContext(ctx, ioErr)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if !errors.Is(err, io.ErrClosedPipe) {
			t.Errorf("expected io.ErrClosedPipe, got %v", err)
		}
		var target *assuan.IOError
		if !errors.As(err, &target) || target != ioErr {
			t.Errorf("expected *assuan.IOError in chain, got %v", err)
		}
	})
}

func TestOptions_Commands(t *testing.T) {
	t.Setenv(EnvExecutable, "")

	client := New(
		WithWindowTitle("Title"),
		WithTimeout(90*time.Second),
		WithButtonLabel(assuan.ButtonOK, "Go"),
		WithButtonLabel(assuan.ButtonNotOK, "Never"),
		WithButtonLabel(assuan.ButtonCancel, "Stop"),
		WithErrorText("Wrong PIN"),
		WithDescription("Desc"),
	)

	expected := []assuan.Command{
		assuan.SetDescriptiveText{Text: "Desc"},
		assuan.SetErrorText{Text: "Wrong PIN"},
		assuan.SetButtonLabel{Button: assuan.ButtonCancel, Text: "Stop"},
		assuan.SetButtonLabel{Button: assuan.ButtonNotOK, Text: "Never"},
		assuan.SetButtonLabel{Button: assuan.ButtonOK, Text: "Go"},
		assuan.SetTimeout{Seconds: 90},
		assuan.SetWindowTitle{Text: "Title"},
	}

	if diff := cmp.Diff(expected, client.Options().commands()); diff != "" {
		t.Errorf("commands mismatch (-want +got):\n%s", diff)
	}

	if cmds := New().Options().commands(); len(cmds) != 0 {
		t.Errorf("default options should send no directive, got %v", cmds)
	}
}

func TestOptions_TimeoutSeconds(t *testing.T) {
	tests := []struct {
		name    string
		timeout time.Duration
		want    uint32
	}{
		{"Whole Seconds", 90 * time.Second, 90},
		{"Fraction Truncated", 1500 * time.Millisecond, 1},
		{"Largest Exact", math.MaxUint32 * time.Second, math.MaxUint32},
		{"Saturates", 200 * 365 * 24 * time.Hour, math.MaxUint32},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := New(WithTimeout(tt.timeout)).Options().commands()
			want := []assuan.Command{assuan.SetTimeout{Seconds: tt.want}}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("commands mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestResolveOptions(t *testing.T) {
	tests := []struct {
		name    string
		env     string
		opts    []Option
		wantExe string
		wantTO  time.Duration
	}{
		{"Default", "", nil, DefaultExecutable, 0},
		{"Environment", "/usr/bin/pinentry-curses", nil, "/usr/bin/pinentry-curses", 0},
		{"Option Wins Over Environment", "/usr/bin/pinentry-curses", []Option{WithExecutable("/opt/pinentry-qt")}, "/opt/pinentry-qt", 0},
		{"Empty Executable Ignored", "", []Option{WithExecutable("")}, DefaultExecutable, 0},
		{"Sub-second Timeout Ignored", "", []Option{WithTimeout(500 * time.Millisecond)}, DefaultExecutable, 0},
		{"Nil Option Ignored", "", []Option{nil, WithTimeout(2 * time.Second)}, DefaultExecutable, 2 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvExecutable, tt.env)

			o := New(tt.opts...).Options()
			if o.Executable != tt.wantExe {
				t.Errorf("Executable = %q, want %q", o.Executable, tt.wantExe)
			}
			if o.Timeout != tt.wantTO {
				t.Errorf("Timeout = %v, want %v", o.Timeout, tt.wantTO)
			}
			if o.Logger == nil {
				t.Error("Logger should default to a discarding logger")
			}
		})
	}
}

func TestResponseMapping(t *testing.T) {
	notOK := assuan.NotOK{Reason: "ERR 83886142 Timeout <Pinentry>"}

	t.Run("GetPin", func(t *testing.T) {
		secret := secure.New([]byte("4321"))
		got, err := pinResult(assuan.Pin{Secret: secret})
		if err != nil || got != secret {
			t.Errorf("pinResult(Pin) = (%v, %v)", got, err)
		}

		_, err = pinResult(notOK)
		if !IsTimeout(err) {
			t.Errorf("pinResult(NotOK) error = %v, want timeout ProtocolError", err)
		}

		_, err = pinResult(assuan.OK{})
		if !errors.Is(err, ErrUnexpectedResponse) {
			t.Errorf("pinResult(OK) error = %v, want ErrUnexpectedResponse", err)
		}
	})

	t.Run("Confirm", func(t *testing.T) {
		if ok, err := confirmResult(assuan.OK{}); !ok || err != nil {
			t.Errorf("confirmResult(OK) = (%v, %v), want (true, nil)", ok, err)
		}
		if ok, err := confirmResult(notOK); ok || err != nil {
			t.Errorf("confirmResult(NotOK) = (%v, %v), want (false, nil)", ok, err)
		}

		secret := secure.New([]byte("leak"))
		_, err := confirmResult(assuan.Pin{Secret: secret})
		if !errors.Is(err, ErrUnexpectedResponse) {
			t.Errorf("confirmResult(Pin) error = %v, want ErrUnexpectedResponse", err)
		}
		if secret.Len() != 0 {
			t.Error("unexpected PIN should be wiped")
		}
		if strings.Contains(err.Error(), "leak") {
			t.Errorf("error leaked the PIN: %v", err)
		}
	})

	t.Run("ShowMessage", func(t *testing.T) {
		if err := messageResult(assuan.OK{}); err != nil {
			t.Errorf("messageResult(OK) = %v", err)
		}

		var pErr *ProtocolError
		if err := messageResult(notOK); !errors.As(err, &pErr) {
			t.Errorf("messageResult(NotOK) = %v, want ProtocolError", err)
		}

		err := messageResult(assuan.Pin{Secret: secure.New([]byte("x"))})
		if !errors.Is(err, ErrUnexpectedResponse) {
			t.Errorf("messageResult(Pin) error = %v, want ErrUnexpectedResponse", err)
		}
	})
}

func TestProtocolError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		cancelled bool
		timeout   bool
	}{
		{"Cancelled", &ProtocolError{Reason: "ERR 83886179 Operation cancelled <Pinentry>"}, true, false},
		{"Wrapped Cancelled", fmt.Errorf("unlock: %w", &ProtocolError{Reason: "ERR 83886179 Operation cancelled"}), true, false},
		{"Timeout", &ProtocolError{Reason: "ERR 83886142 Timeout <Pinentry>"}, false, true},
		{"Free Form", &ProtocolError{Reason: "something odd"}, false, false},
		{"Other Error", errors.New("boom"), false, false},
		{"Nil", nil, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsCancelled(tt.err); got != tt.cancelled {
				t.Errorf("IsCancelled() = %v, want %v", got, tt.cancelled)
			}
			if got := IsTimeout(tt.err); got != tt.timeout {
				t.Errorf("IsTimeout() = %v, want %v", got, tt.timeout)
			}
		})
	}

	if got := (&ProtocolError{Reason: "ERR 1 x"}).Error(); got != "pinentry: ERR 1 x" {
		t.Errorf("Error() = %q", got)
	}
}
