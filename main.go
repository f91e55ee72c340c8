package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/ebfe/scard"
	"github.com/gregLibert/pinentry/pkg/card"
	"github.com/gregLibert/pinentry/pkg/pinentry"
)

// Exit codes.
const (
	exitOK       = 0
	exitFailure  = 1
	exitDeclined = 2
)

type config struct {
	title   string
	desc    string
	prompt  string
	timeout time.Duration
	exe     string
	confirm bool
	message bool
	useCard bool
	debug   bool
}

func main() {
	cfg := parseFlags()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	if cfg.debug {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var code int
	switch {
	case cfg.confirm:
		code = runConfirm(ctx, cfg, logger)
	case cfg.message:
		code = runMessage(ctx, cfg, logger)
	case cfg.useCard:
		code = runCard(ctx, cfg, logger)
	default:
		code = runPin(ctx, cfg, logger)
	}

	stop()
	os.Exit(code)
}

func parseFlags() config {
	var cfg config

	flag.StringVar(&cfg.title, "title", "", "window title")
	flag.StringVar(&cfg.desc, "desc", "", "descriptive text (question for -confirm, text for -message)")
	flag.StringVar(&cfg.prompt, "prompt", "PIN:", "prompt shown in front of the input field")
	flag.DurationVar(&cfg.timeout, "timeout", 0, "give up after this delay (whole seconds)")
	flag.StringVar(&cfg.exe, "exe", "", "pinentry program (default $"+pinentry.EnvExecutable+" or "+pinentry.DefaultExecutable+")")
	flag.BoolVar(&cfg.confirm, "confirm", false, "ask a yes/no question instead of a PIN")
	flag.BoolVar(&cfg.message, "message", false, "show a message instead of asking for a PIN")
	flag.BoolVar(&cfg.useCard, "card", false, "verify the PIN against the OpenPGP card in the first reader")
	flag.BoolVar(&cfg.debug, "debug", false, "log the protocol exchange (never the PIN)")
	flag.Parse()

	return cfg
}

func newClient(cfg config, logger *slog.Logger, extra ...pinentry.Option) *pinentry.Client {
	opts := []pinentry.Option{
		pinentry.WithWindowTitle(cfg.title),
		pinentry.WithDescription(cfg.desc),
		pinentry.WithTimeout(cfg.timeout),
		pinentry.WithExecutable(cfg.exe),
		pinentry.WithLogger(logger),
	}
	return pinentry.New(append(opts, extra...)...)
}

// runPin asks for a PIN and prints both the redacted and the raw value.
func runPin(ctx context.Context, cfg config, logger *slog.Logger) int {
	pin, err := newClient(cfg, logger).GetPin(ctx, cfg.prompt)
	if err != nil {
		return report(err)
	}
	defer pin.Wipe()

	fmt.Printf("PIN: %v\n", pin)

	// The raw value, deliberately.
	fmt.Printf("UNSECURE REAL PIN: %s\n", pin.Unsecure())
	return exitOK
}

func runConfirm(ctx context.Context, cfg config, logger *slog.Logger) int {
	ok, err := newClient(cfg, logger).Confirm(ctx)
	if err != nil {
		return report(err)
	}
	if !ok {
		fmt.Println("Not confirmed")
		return exitDeclined
	}
	fmt.Println("Confirmed")
	return exitOK
}

func runMessage(ctx context.Context, cfg config, logger *slog.Logger) int {
	if err := newClient(cfg, logger).ShowMessage(ctx); err != nil {
		return report(err)
	}
	return exitOK
}

// runCard prompts for the user PIN of an OpenPGP card and verifies it.
func runCard(ctx context.Context, cfg config, logger *slog.Logger) int {
	ctxCard, sc := connectToCard()

	defer func() {
		if err := ctxCard.Release(); err != nil {
			log.Printf("Warning: Failed to release context: %v", err)
		}
	}()

	defer func() {
		if err := sc.Disconnect(scard.LeaveCard); err != nil {
			log.Printf("Warning: Failed to disconnect card: %v", err)
		}
	}()

	client := card.NewClient(sc)
	client.Logger = logger

	if err := client.SelectApplication(card.OpenPGPAID); err != nil {
		log.Printf("Error: %v", err)
		return exitFailure
	}

	status, err := client.RetriesLeft(card.RefPW1)
	if err != nil {
		log.Printf("Error: %v", err)
		return exitFailure
	}
	if status.Verified {
		fmt.Println("PIN already verified")
		return exitOK
	}
	if status.Blocked {
		fmt.Println(status.Describe())
		return exitFailure
	}

	pin, err := newClient(cfg, logger, pinentry.WithDescription(cardDescription(client, cfg.desc, status))).
		GetPin(ctx, cfg.prompt)
	if err != nil {
		return report(err)
	}
	defer pin.Wipe()

	res, err := client.Verify(card.RefPW1, pin)
	if err != nil {
		log.Printf("Error: verify failed: %v", err)
		return exitFailure
	}

	fmt.Println(res.Describe())
	if !res.Verified {
		return exitFailure
	}
	return exitOK
}

// cardDescription builds the dialog text from the cardholder name and the
// retry counter, unless the user gave one.
func cardDescription(client *card.Client, desc string, status *card.VerifyResult) string {
	if desc != "" {
		return desc
	}

	holder, err := client.CardholderName()
	if err != nil || holder == "" {
		holder = "unknown"
	}

	text := fmt.Sprintf("Please unlock the card%%0A%%0AHolder: %s", holder)
	if status.RetriesLeft >= 0 {
		text += fmt.Sprintf("%%0ATries left: %d", status.RetriesLeft)
	}
	return text
}

// connectToCard handles the PC/SC context establishment and reader connection.
func connectToCard() (*scard.Context, *scard.Card) {
	ctx, err := scard.EstablishContext()
	if err != nil {
		log.Fatalf("Error establishing context: %s", err)
	}

	readers, err := ctx.ListReaders()
	if err != nil || len(readers) == 0 {
		if relErr := ctx.Release(); relErr != nil {
			log.Printf("Warning: Failed to release context during error handling: %v", relErr)
		}
		log.Fatal("No smart card reader found.")
	}

	log.Printf("Using reader: %s", readers[0])

	c, err := ctx.Connect(readers[0], scard.ShareShared, scard.ProtocolT0|scard.ProtocolT1)
	if err != nil {
		if relErr := ctx.Release(); relErr != nil {
			log.Printf("Warning: Failed to release context during error handling: %v", relErr)
		}
		log.Fatalf("Error connecting to card: %s", err)
	}

	return ctx, c
}

// report prints err and maps it to an exit code.
func report(err error) int {
	switch {
	case pinentry.IsCancelled(err):
		fmt.Fprintln(os.Stderr, "Cancelled")
		return exitDeclined
	case pinentry.IsTimeout(err):
		fmt.Fprintln(os.Stderr, "Timed out")
		return exitDeclined
	case errors.Is(err, pinentry.ErrUnexpectedResponse):
		log.Printf("BUG: %v", err)
		return exitFailure
	default:
		log.Printf("Error: %v", err)
		return exitFailure
	}
}
