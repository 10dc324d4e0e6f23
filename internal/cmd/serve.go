package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/Alia5/padbridge/controller"
	"github.com/Alia5/padbridge/hdl"
	"github.com/Alia5/padbridge/host/memhost"
	"github.com/Alia5/padbridge/host/uinput"
	"github.com/Alia5/padbridge/internal/configpaths"
	"github.com/Alia5/padbridge/internal/events"
	"github.com/Alia5/padbridge/internal/log"
	"github.com/Alia5/padbridge/internal/session"
	"github.com/Alia5/padbridge/internal/session/auth"
	"github.com/Alia5/padbridge/internal/util"
)

const keyFileName = "padbridge.key.txt"

// Serve runs the session server.
type Serve struct {
	Session    session.Config `embed:"" prefix:"session."`
	Bridge     BridgeFlags    `embed:"" prefix:"bridge."`
	Host       string         `help:"Host virtual-device backend" enum:"uinput,memory" default:"uinput" env:"PADBRIDGE_HOST"`
	Uinput     uinput.Config  `embed:"" prefix:"uinput."`
	Nats       events.Config  `embed:"" prefix:"nats."`
	NoPassword bool           `help:"Accept sessions without a password" env:"PADBRIDGE_NO_PASSWORD"`
	KeyFile    string         `help:"Password file, generated on first start (defaults to the config dir)" type:"path" env:"PADBRIDGE_KEY_FILE"`
}

// BridgeFlags are the per-session bridge defaults.
type BridgeFlags struct {
	Slots             int             `help:"Emulated devices per session unless the session asks otherwise" default:"4" env:"PADBRIDGE_BRIDGE_SLOTS"`
	InputInterval     time.Duration   `help:"Pause between input polls" default:"1ms" env:"PADBRIDGE_BRIDGE_INPUT_INTERVAL"`
	OutputInterval    time.Duration   `help:"Output loop period" default:"10ms" env:"PADBRIDGE_BRIDGE_OUTPUT_INTERVAL"`
	PollTimeout       time.Duration   `help:"How long one input poll waits for a frame" default:"20ms" env:"PADBRIDGE_BRIDGE_POLL_TIMEOUT"`
	BodyColor         controller.RGBA `help:"Body color, #RRGGBB[AA]" default:"#323232FF" env:"PADBRIDGE_BRIDGE_BODY_COLOR"`
	ButtonsColor      controller.RGBA `help:"Buttons color, #RRGGBB[AA]" default:"#0F0F0FFF" env:"PADBRIDGE_BRIDGE_BUTTONS_COLOR"`
	LeftGripColor     controller.RGBA `help:"Left grip color, #RRGGBB[AA]" default:"#323232FF" env:"PADBRIDGE_BRIDGE_LEFT_GRIP_COLOR"`
	RightGripColor    controller.RGBA `help:"Right grip color, #RRGGBB[AA]" default:"#323232FF" env:"PADBRIDGE_BRIDGE_RIGHT_GRIP_COLOR"`
	SwapDpadAndLstick bool            `help:"Drive the D-pad from the left stick and the left stick from the D-pad" env:"PADBRIDGE_BRIDGE_SWAP_DPAD"`
}

// Defaults converts the flags into session defaults. A zero color selects
// the default controller color.
func (f BridgeFlags) Defaults() session.BridgeDefaults {
	def := controller.DefaultConfig()
	pick := func(c, fallback controller.RGBA) controller.RGBA {
		if c == 0 {
			return fallback
		}
		return c
	}
	return session.BridgeDefaults{
		Slots: f.Slots,
		Controller: controller.Config{
			BodyColor:         pick(f.BodyColor, def.BodyColor),
			ButtonsColor:      pick(f.ButtonsColor, def.ButtonsColor),
			LeftGripColor:     pick(f.LeftGripColor, def.LeftGripColor),
			RightGripColor:    pick(f.RightGripColor, def.RightGripColor),
			SwapDPADandLSTICK: f.SwapDpadAndLstick,
		},
		InputInterval:  f.InputInterval,
		OutputInterval: f.OutputInterval,
		PollTimeout:    f.PollTimeout,
	}
}

// Run is called by Kong when the serve command is executed.
func (s *Serve) Run(logger *slog.Logger, rawLogger log.RawLogger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	err := s.StartServer(ctx, logger, rawLogger)
	if err != nil && util.IsRunFromGUI() {
		fmt.Println("Press any key to exit...")
		b := make([]byte, 1)
		_, _ = os.Stdin.Read(b)
	}
	return err
}

// StartServer serves until ctx ends.
func (s *Serve) StartServer(ctx context.Context, logger *slog.Logger, rawLogger log.RawLogger) error {
	defaults := s.Bridge.Defaults()

	if !s.NoPassword {
		pwd, err := s.loadPassword(logger)
		if err != nil {
			return err
		}
		s.Session.Password = pwd
	}

	host, err := s.openHost(logger)
	if err != nil {
		return err
	}
	defer host.Close()

	opts := []session.Option{session.WithLogger(logger), session.WithRawLogger(rawLogger)}
	if s.Nats.URL != "" {
		nc, err := events.Connect(s.Nats, "padbridge")
		if err != nil {
			return fmt.Errorf("connect nats: %w", err)
		}
		defer nc.Drain()
		opts = append(opts, session.WithEvents(events.NewPublisher(nc, s.Nats.Subject, logger)))
		logger.Info("publishing slot events", "url", s.Nats.URL, "subject", s.Nats.Subject)
	}

	srv, err := session.New(s.Session, defaults, host, opts...)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe(ctx) }()

	select {
	case err := <-errCh:
		return err
	case <-srv.Ready():
	}
	if util.IsRunFromGUI() {
		go func() {
			time.Sleep(250 * time.Millisecond)
			util.HideConsoleWindow()
		}()
	}
	return <-errCh
}

type closingHost interface {
	hdl.Service
	io.Closer
}

func (s *Serve) openHost(logger *slog.Logger) (closingHost, error) {
	switch s.Host {
	case "memory":
		logger.Warn("using the in-memory host: devices are not visible to the system")
		return memhost.New(logger), nil
	case "uinput", "":
		h, err := uinput.New(s.Uinput, logger)
		if err != nil {
			return nil, fmt.Errorf("open uinput host: %w", err)
		}
		return h, nil
	default:
		return nil, fmt.Errorf("unknown host backend %q", s.Host)
	}
}

// loadPassword reads the key file, creating it with a generated key when missing.
func (s *Serve) loadPassword(logger *slog.Logger) (string, error) {
	keyFilePath := s.KeyFile
	if keyFilePath == "" {
		dir, err := configpaths.DefaultConfigDir()
		if err != nil {
			return "", fmt.Errorf("failed to resolve key file path: %w", err)
		}
		keyFilePath = filepath.Join(dir, keyFileName)
	}
	pwd, err := os.ReadFile(keyFilePath)
	if err == nil {
		if p := strings.TrimSpace(string(pwd)); p != "" {
			return p, nil
		}
		return "", fmt.Errorf("key file %s is empty", keyFilePath)
	}
	if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("read key file: %w", err)
	}

	newPwd, err := auth.GenerateKey()
	if err != nil {
		return "", fmt.Errorf("failed to generate session password: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(keyFilePath), 0o700); err != nil {
		return "", fmt.Errorf("failed to create dir for key file: %w", err)
	}
	if err := os.WriteFile(keyFilePath, []byte(newPwd), 0o600); err != nil {
		return "", fmt.Errorf("failed to write session password: %w", err)
	}
	logger.Info("Generated session password", "path", keyFilePath)
	logger.Info("-------------------------------------")
	logger.Info("Your padbridge session password is:")
	logger.Info("-------------------------------------")
	logger.Info(newPwd)
	logger.Info("-------------------------------------")
	logger.Info("You can change this password at any time by editing the file")
	return newPwd, nil
}
