package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Alia5/padbridge/controller"
	"github.com/Alia5/padbridge/hdl"
	"github.com/Alia5/padbridge/input"
	"github.com/Alia5/padbridge/internal/log"
)

// MaxSlots bounds the number of emulated devices per source.
const MaxSlots = 8

// DefaultSlots is the slot count used when none is configured.
const DefaultSlots = 4

// Slot is one emulated gamepad.
type Slot struct {
	Identity hdl.Identity
	State    hdl.State
	Handle   hdl.Handle
}

// Attached reports whether the slot holds a handle.
func (s Slot) Attached() bool { return s.Handle.Valid() }

// InitialState is the state a slot carries before any sample arrives.
// The stick values are calibration placeholders.
func InitialState() hdl.State {
	return hdl.State{
		Battery: hdl.BatteryFull,
		Joysticks: [2]hdl.Joystick{
			hdl.JoystickLeft:  {DX: 0x1234, DY: -0x1234},
			hdl.JoystickRight: {DX: 0x5678, DY: -0x5678},
		},
	}
}

// IdentityFromConfig builds the emulated device identity for a source config.
func IdentityFromConfig(cfg *controller.Config) hdl.Identity {
	return hdl.Identity{
		DeviceType:     hdl.DeviceTypeFullKey,
		InterfaceType:  hdl.InterfaceUSB,
		BodyColor:      cfg.BodyColor.Value(),
		ButtonsColor:   cfg.ButtonsColor.Value(),
		LeftGripColor:  cfg.LeftGripColor.Value(),
		RightGripColor: cfg.RightGripColor.Value(),
	}
}

// Registry owns a fixed set of slots and keeps them in sync with the host.
// It is not safe for concurrent use: only the input loop touches it while
// the bridge runs.
type Registry struct {
	host   hdl.Service
	slots  []Slot
	logger *slog.Logger
	events EventSink

	// failing marks slots whose last attach failed, so repeated failures
	// are reported once.
	failing []bool
}

// NewRegistry builds n slots whose identity comes from cfg. Nothing is
// attached yet; see AttachAll.
func NewRegistry(n int, cfg *controller.Config, host hdl.Service, logger *slog.Logger, events EventSink) (*Registry, error) {
	if n < 1 || n > MaxSlots {
		return nil, &ConfigError{Field: "slots", Detail: fmt.Sprintf("%d not in [1,%d]", n, MaxSlots)}
	}
	if cfg == nil {
		return nil, &ConfigError{Field: "controller", Detail: "source returned no configuration"}
	}
	if host == nil {
		return nil, &ConfigError{Field: "host", Detail: "no host virtual-device service"}
	}

	id := IdentityFromConfig(cfg)
	slots := make([]Slot, n)
	for i := range slots {
		slots[i] = Slot{Identity: id, State: InitialState()}
	}
	return &Registry{
		host:    host,
		slots:   slots,
		logger:  log.Or(logger),
		events:  events,
		failing: make([]bool, n),
	}, nil
}

// Len returns the number of slots.
func (r *Registry) Len() int { return len(r.slots) }

// Slot returns a copy of slot i.
func (r *Registry) Slot(i int) Slot { return r.slots[i] }

// AttachAll attaches every slot that has no handle. Failures are logged and
// left for Reconcile.
func (r *Registry) AttachAll() {
	for i := range r.slots {
		if !r.slots[i].Handle.Valid() {
			r.attach(i)
		}
	}
}

// Teardown detaches every attached slot. Slots without a handle make no host
// call. Failures are logged and the slot keeps its handle so a later Teardown
// retries it. Safe to call repeatedly.
func (r *Registry) Teardown() {
	for i := range r.slots {
		s := &r.slots[i]
		if !s.Handle.Valid() {
			continue
		}
		if err := r.host.Detach(s.Handle); err != nil {
			r.logger.Warn("detach failed", "slot", i, "handle", s.Handle, "error", err)
			continue
		}
		r.logger.Debug("slot detached", "slot", i, "handle", s.Handle)
		r.emit(Event{Kind: EventDetached, Slot: i, Handle: s.Handle})
		s.Handle = 0
	}
}

// Reconcile asks the host about every slot and re-attaches the ones it no
// longer presents. A slot whose status query fails is left as is.
func (r *Registry) Reconcile() {
	for i := range r.slots {
		s := &r.slots[i]
		if s.Handle.Valid() {
			attached, err := r.host.IsAttached(s.Handle)
			if err != nil {
				r.logger.Log(context.Background(), log.LevelTrace, "attachment query failed", "slot", i, "handle", s.Handle, "error", err)
				continue
			}
			if attached {
				continue
			}
			r.logger.Info("host dropped virtual device", "slot", i, "handle", s.Handle)
			r.emit(Event{Kind: EventLost, Slot: i, Handle: s.Handle})
			s.Handle = 0
		}
		r.attach(i)
	}
}

// PushState sends each attached slot's state to the host. Every slot is
// tried; the returned error joins the individual failures.
func (r *Registry) PushState() error {
	var errs []error
	for i := range r.slots {
		s := &r.slots[i]
		if !s.Handle.Valid() {
			continue
		}
		if err := r.host.SetState(s.Handle, s.State); err != nil {
			errs = append(errs, &HostServiceError{Op: "set state", Slot: i, Err: err})
		}
	}
	return errors.Join(errs...)
}

// Translate writes sample into the slot named by its selector. An invalid
// selector leaves every slot untouched.
func (r *Registry) Translate(sample *input.Sample, swap bool) error {
	idx, ok := sample.Selector()
	if !ok || idx < 0 || idx >= len(r.slots) {
		return fmt.Errorf("%w: %v with %d slots", ErrSelectorOutOfRange, sample.Triggers[0], len(r.slots))
	}
	translate(sample, swap, &r.slots[idx].State)
	return nil
}

func (r *Registry) attach(i int) {
	s := &r.slots[i]
	h, err := r.host.Attach(s.Identity)
	if err != nil {
		if !r.failing[i] {
			r.failing[i] = true
			r.logger.Warn("attach failed", "slot", i, "error", err)
			r.emit(Event{Kind: EventAttachFailed, Slot: i, Err: err})
		}
		return
	}
	r.failing[i] = false
	s.Handle = h
	r.logger.Info("slot attached", "slot", i, "handle", h)
	r.emit(Event{Kind: EventAttached, Slot: i, Handle: h})
}

func (r *Registry) emit(ev Event) {
	if r.events != nil {
		r.events(ev)
	}
}
