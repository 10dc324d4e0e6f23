package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/Alia5/padbridge/apitypes"
	"github.com/Alia5/padbridge/controller/network"
	"github.com/Alia5/padbridge/input"
	"github.com/Alia5/padbridge/sessionclient"
)

// Send streams normalized samples read as JSON lines to a session server.
type Send struct {
	Addr        string        `help:"Session server address" default:"localhost:3243" env:"PADBRIDGE_SEND_ADDR"`
	Input       string        `help:"JSON-lines sample file, - for stdin" default:"-" short:"i" env:"PADBRIDGE_SEND_INPUT"`
	Slots       int           `help:"Slots to request, 0 keeps the server default" default:"0" env:"PADBRIDGE_SEND_SLOTS"`
	Interval    time.Duration `help:"Delay between samples" default:"16ms" env:"PADBRIDGE_SEND_INTERVAL"`
	Hold        time.Duration `help:"Keep the session open this long after the last sample" default:"0s" env:"PADBRIDGE_SEND_HOLD"`
	Password    string        `kong:"-"`
	AskPassword bool          `help:"Prompt for the session password" short:"p"`
	Timeout     time.Duration `help:"Dial and response timeout" default:"5s" env:"PADBRIDGE_SEND_TIMEOUT"`
}

// Run is called by Kong when the send command is executed.
func (s *Send) Run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if s.Password == "" {
		s.Password = os.Getenv("PADBRIDGE_PASSWORD")
	}
	if s.AskPassword {
		pwd, err := promptPassword(int(os.Stdin.Fd()), os.Stderr)
		if err != nil {
			return err
		}
		s.Password = pwd
	}

	var in io.Reader = os.Stdin
	if s.Input != "-" && s.Input != "" {
		f, err := os.Open(s.Input)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}
	return s.stream(ctx, in, logger)
}

func (s *Send) stream(ctx context.Context, in io.Reader, logger *slog.Logger) error {
	client := sessionclient.NewWithConfig(s.Addr, &sessionclient.Config{
		DialTimeout:     s.Timeout,
		ResponseTimeout: s.Timeout,
		Password:        s.Password,
	})
	var opts *apitypes.SessionOptions
	if s.Slots > 0 {
		opts = &apitypes.SessionOptions{Slots: &s.Slots}
	}
	stream, err := client.Open(ctx, network.NormalizedFamily, opts)
	if err != nil {
		return fmt.Errorf("open session: %w", err)
	}
	defer stream.Close()
	logger.Info("session opened", "addr", s.Addr, "slots", stream.Slots)

	go func() {
		for {
			high, low, err := stream.ReadRumble()
			if err != nil {
				return
			}
			logger.Info("rumble", "high", high, "low", low)
		}
	}()

	n, err := sendSamples(ctx, in, func(smp *input.Sample) error { return stream.Send(smp) }, s.Interval)
	logger.Info("samples sent", "count", n)
	if err != nil {
		return err
	}
	if s.Hold > 0 {
		select {
		case <-ctx.Done():
		case <-time.After(s.Hold):
		}
	}
	return nil
}

// sendSamples sends one sample per non-empty line, pausing interval between
// them. Lines starting with # are skipped.
func sendSamples(ctx context.Context, in io.Reader, send func(*input.Sample) error, interval time.Duration) (int, error) {
	sc := bufio.NewScanner(in)
	n := 0
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		var smp input.Sample
		if err := json.Unmarshal([]byte(text), &smp); err != nil {
			return n, fmt.Errorf("line %d: %w", line, err)
		}
		if err := send(&smp); err != nil {
			return n, fmt.Errorf("send line %d: %w", line, err)
		}
		n++
		if interval > 0 {
			select {
			case <-ctx.Done():
				return n, nil
			case <-time.After(interval):
			}
		}
	}
	return n, sc.Err()
}

func promptPassword(fd int, w io.Writer) (string, error) {
	if !term.IsTerminal(fd) {
		return "", errors.New("cannot prompt for a password: stdin is not a terminal")
	}
	fmt.Fprint(w, "Session password: ")
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(w)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}
