// Package bridge presents one controller source to the host as a set of
// emulated gamepads.
//
// A Bridge owns a Registry of slots. Its input loop polls the source,
// translates each sample into the slot named by the sample's selector,
// re-attaches slots the host dropped and pushes every slot's state. Its
// output loop drains the source's outbound queue and forwards host rumble.
// Only the input loop touches the slots, so the two loops share no state
// and take no locks.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Alia5/padbridge/controller"
	"github.com/Alia5/padbridge/hdl"
	"github.com/Alia5/padbridge/internal/log"
)

const (
	// DefaultInputInterval paces the input loop between polls.
	DefaultInputInterval = time.Millisecond
	// DefaultOutputInterval is the fixed output loop period.
	DefaultOutputInterval = 10 * time.Millisecond
)

// PauseGate lets a coordinator hold a bridge's loops between cycles.
type PauseGate interface {
	Paused() bool
}

type options struct {
	slots          int
	logger         *slog.Logger
	inputInterval  time.Duration
	outputInterval time.Duration
	workers        bool
	gate           PauseGate
	events         EventSink
	vibration      hdl.VibrationHandle
}

// Option configures a Bridge.
type Option func(*options)

// WithSlots sets the number of emulated devices.
func WithSlots(n int) Option { return func(o *options) { o.slots = n } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(o *options) { o.logger = l } }

// WithInputInterval sets the pause between input cycles.
func WithInputInterval(d time.Duration) Option { return func(o *options) { o.inputInterval = d } }

// WithOutputInterval sets the output loop period.
func WithOutputInterval(d time.Duration) Option { return func(o *options) { o.outputInterval = d } }

// WithoutWorkers keeps Initialize from starting goroutines. The owner then
// drives the bridge by calling UpdateInput and UpdateOutput itself.
func WithoutWorkers() Option { return func(o *options) { o.workers = false } }

// WithPauseGate makes both loops idle while gate reports paused.
func WithPauseGate(g PauseGate) Option { return func(o *options) { o.gate = g } }

// WithEvents sets the slot lifecycle event sink.
func WithEvents(sink EventSink) Option { return func(o *options) { o.events = sink } }

// WithVibrationHandle selects the host vibration source forwarded as rumble.
func WithVibrationHandle(v hdl.VibrationHandle) Option {
	return func(o *options) { o.vibration = v }
}

type lifecycle int

const (
	stateNew lifecycle = iota
	stateRunning
	stateExited
)

// Bridge connects one controller source to the host virtual-device service.
type Bridge struct {
	source controller.Source
	host   hdl.Service
	opts   options
	logger *slog.Logger

	// set by Initialize, read-only afterwards
	caps controller.Capability
	swap bool
	reg  *Registry

	mu     sync.Mutex
	state  lifecycle
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New returns a Bridge for source. Nothing happens until Initialize.
func New(source controller.Source, host hdl.Service, opts ...Option) *Bridge {
	o := options{
		slots:          DefaultSlots,
		inputInterval:  DefaultInputInterval,
		outputInterval: DefaultOutputInterval,
		workers:        true,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Bridge{
		source: source,
		host:   host,
		opts:   o,
		logger: log.Or(o.logger),
	}
}

// Initialize initializes the source, builds the slots, attaches them if the
// source is active and starts the loops the source's capabilities call for.
// Configuration problems are returned as *ConfigError.
func (b *Bridge) Initialize() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != stateNew {
		return errors.New("bridge already initialized")
	}

	if err := b.source.Initialize(); err != nil {
		return &SourceError{Op: "initialize", Err: err}
	}
	b.caps = b.source.GetCapabilities()
	b.state = stateRunning

	if b.caps.Supports(controller.CapNothing) {
		b.logger.Debug("source supports nothing, not polling")
		return nil
	}

	cfg := b.source.GetConfig()
	reg, err := NewRegistry(b.opts.slots, cfg, b.host, b.logger, b.opts.events)
	if err != nil {
		b.source.Exit()
		b.state = stateExited
		return err
	}
	b.reg = reg
	b.swap = cfg.SwapDPADandLSTICK

	if b.source.IsActive() {
		b.reg.AttachAll()
	}

	b.logger.Info("bridge initialized",
		"slots", reg.Len(),
		"capabilities", b.caps.String(),
		"swapDpadAndLstick", b.swap,
	)

	if !b.opts.workers {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	if b.caps.Supports(controller.CapPairing) {
		b.wg.Add(1)
		go b.outputLoop(ctx)
	}
	b.wg.Add(1)
	go b.inputLoop(ctx)
	return nil
}

// Exit stops and joins the loops, exits the source and detaches every slot,
// in that order. Calling Exit more than once, or on a bridge that never
// initialized, is a no-op.
func (b *Bridge) Exit() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != stateRunning {
		return
	}
	b.state = stateExited

	if b.cancel != nil {
		b.cancel()
		b.wg.Wait()
		b.cancel = nil
	}
	b.source.Exit()
	if b.reg != nil {
		b.reg.Teardown()
	}
	b.logger.Info("bridge exited")
}

// Capabilities returns the source capabilities seen at Initialize.
func (b *Bridge) Capabilities() controller.Capability { return b.caps }

// Slots returns the number of slots, or 0 before Initialize or when the
// source supports nothing.
func (b *Bridge) Slots() int {
	if b.reg == nil {
		return 0
	}
	return b.reg.Len()
}

// Slot returns a copy of slot i. It must not race the input loop: call it
// from the goroutine driving UpdateInput, or after Exit.
func (b *Bridge) Slot(i int) (Slot, error) {
	if b.reg == nil {
		return Slot{}, errors.New("bridge has no slots")
	}
	if i < 0 || i >= b.reg.Len() {
		return Slot{}, fmt.Errorf("slot %d out of range [0,%d)", i, b.reg.Len())
	}
	return b.reg.Slot(i), nil
}
