package pinentry

import (
	"log/slog"
	"math"
	"os"
	"time"

	"github.com/gregLibert/pinentry/pkg/assuan"
)

// Default client configuration values.
const (
	// DefaultExecutable is looked up in PATH when no executable is configured.
	DefaultExecutable = "pinentry"

	// EnvExecutable overrides DefaultExecutable when set and no explicit
	// WithExecutable option is given.
	EnvExecutable = "PINENTRY_PROGRAM"
)

// Options holds the resolved configuration of a Client. Empty strings mean
// "not set": the matching directive is not sent and the helper keeps its own
// default.
type Options struct {
	// Description is the text shown above the input field (SETDESC). It is
	// also the question for Confirm and the message for ShowMessage.
	Description string

	// ErrorText is shown with the prompt, e.g. after a wrong PIN (SETERROR).
	ErrorText string

	// LabelOK, LabelCancel and LabelNotOK relabel the dialog buttons.
	LabelOK     string
	LabelCancel string
	LabelNotOK  string

	// Timeout makes the helper give up after the given delay (SETTIMEOUT).
	// It is sent in whole seconds; zero means no timeout.
	Timeout time.Duration

	// WindowTitle is the dialog title (SETTITLE).
	WindowTitle string

	// Executable is the pinentry program to run.
	Executable string

	// Args are extra command line arguments for the helper
	// (e.g. "--display", ":0").
	Args []string

	// Logger receives debug output. PINs are never logged.
	Logger *slog.Logger
}

// Option configures a Client at construction time.
type Option func(*Options)

// WithDescription sets the descriptive text of the dialog.
func WithDescription(text string) Option {
	return func(o *Options) {
		o.Description = text
	}
}

// WithErrorText sets the error text shown with the prompt.
func WithErrorText(text string) Option {
	return func(o *Options) {
		o.ErrorText = text
	}
}

// WithButtonLabel sets the label of one of the dialog buttons.
// Unknown buttons are ignored.
func WithButtonLabel(button assuan.Button, label string) Option {
	return func(o *Options) {
		switch button {
		case assuan.ButtonOK:
			o.LabelOK = label
		case assuan.ButtonCancel:
			o.LabelCancel = label
		case assuan.ButtonNotOK:
			o.LabelNotOK = label
		}
	}
}

// WithTimeout sets the prompt timeout. Values below one second are ignored.
func WithTimeout(d time.Duration) Option {
	return func(o *Options) {
		if d >= time.Second {
			o.Timeout = d
		}
	}
}

// WithWindowTitle sets the dialog title.
func WithWindowTitle(title string) Option {
	return func(o *Options) {
		o.WindowTitle = title
	}
}

// WithExecutable overrides the pinentry program. Empty values are ignored.
func WithExecutable(path string, args ...string) Option {
	return func(o *Options) {
		if path != "" {
			o.Executable = path
			o.Args = args
		}
	}
}

// WithLogger sets the logger. A nil logger is ignored.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) {
		if l != nil {
			o.Logger = l
		}
	}
}

func resolveOptions(opts ...Option) Options {
	o := Options{
		Executable: DefaultExecutable,
		Logger:     slog.New(slog.DiscardHandler),
	}
	if exe := os.Getenv(EnvExecutable); exe != "" {
		o.Executable = exe
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// commands translates the options into the directives sent before the
// terminal command.
func (o Options) commands() []assuan.Command {
	var cmds []assuan.Command

	if o.Description != "" {
		cmds = append(cmds, assuan.SetDescriptiveText{Text: o.Description})
	}
	if o.ErrorText != "" {
		cmds = append(cmds, assuan.SetErrorText{Text: o.ErrorText})
	}
	if o.LabelCancel != "" {
		cmds = append(cmds, assuan.SetButtonLabel{Button: assuan.ButtonCancel, Text: o.LabelCancel})
	}
	if o.LabelNotOK != "" {
		cmds = append(cmds, assuan.SetButtonLabel{Button: assuan.ButtonNotOK, Text: o.LabelNotOK})
	}
	if o.LabelOK != "" {
		cmds = append(cmds, assuan.SetButtonLabel{Button: assuan.ButtonOK, Text: o.LabelOK})
	}
	if o.Timeout > 0 {
		cmds = append(cmds, assuan.SetTimeout{Seconds: timeoutSeconds(o.Timeout)})
	}
	if o.WindowTitle != "" {
		cmds = append(cmds, assuan.SetWindowTitle{Text: o.WindowTitle})
	}

	return cmds
}

// timeoutSeconds converts d to whole seconds, saturating at the largest value
// SETTIMEOUT can carry.
func timeoutSeconds(d time.Duration) uint32 {
	secs := d / time.Second
	if secs > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(secs)
}
