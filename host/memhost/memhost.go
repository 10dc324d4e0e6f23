// Package memhost is an in-process host virtual-device service. It keeps
// emulated devices in memory, assigns handles, and lets callers simulate the
// host dropping a device or failing a call.
package memhost

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Alia5/padbridge/hdl"
	"github.com/Alia5/padbridge/internal/log"
)

// Op names a Service operation for fault injection and call counting.
type Op int

const (
	OpAttach Op = iota
	OpDetach
	OpIsAttached
	OpSetState
	OpVibration
	numOps
)

func (o Op) String() string {
	switch o {
	case OpAttach:
		return "attach"
	case OpDetach:
		return "detach"
	case OpIsAttached:
		return "is_attached"
	case OpSetState:
		return "set_state"
	case OpVibration:
		return "vibration"
	default:
		return "unknown"
	}
}

// DeviceInfo is a snapshot of one attached device.
type DeviceInfo struct {
	Handle   hdl.Handle
	Identity hdl.Identity
	State    hdl.State
	Pushes   int
}

// Bus implements hdl.Service in memory. The zero value is not usable; call New.
type Bus struct {
	mu         sync.Mutex
	nextHandle hdl.Handle
	devices    []busDevice
	vibration  map[hdl.VibrationHandle]hdl.VibrationValue
	faults     [numOps]error
	calls      [numOps]int
	logger     *slog.Logger
}

type busDevice struct {
	handle   hdl.Handle
	identity hdl.Identity
	state    hdl.State
	pushes   int
}

// New returns an empty bus. logger may be nil.
func New(logger *slog.Logger) *Bus {
	return &Bus{
		vibration: make(map[hdl.VibrationHandle]hdl.VibrationValue),
		logger:    log.Or(logger).With("host", "memory"),
	}
}

// Attach registers a device and returns a fresh handle.
func (b *Bus) Attach(id hdl.Identity) (hdl.Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter(OpAttach); err != nil {
		return 0, err
	}
	b.nextHandle++
	h := b.nextHandle
	b.devices = append(b.devices, busDevice{handle: h, identity: id})
	b.logger.Info("virtual device attached", "handle", h, "body", fmt.Sprintf("#%08X", id.BodyColor))
	return h, nil
}

// Detach removes a device.
func (b *Bus) Detach(h hdl.Handle) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter(OpDetach); err != nil {
		return err
	}
	if !b.remove(h) {
		return fmt.Errorf("detach %d: %w", h, hdl.ErrInvalidHandle)
	}
	b.logger.Info("virtual device detached", "handle", h)
	return nil
}

// IsAttached reports whether h is still present. Unknown handles are simply
// not attached; the zero handle is an error.
func (b *Bus) IsAttached(h hdl.Handle) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter(OpIsAttached); err != nil {
		return false, err
	}
	if !h.Valid() {
		return false, hdl.ErrInvalidHandle
	}
	return b.find(h) >= 0, nil
}

// SetState stores the state of an attached device.
func (b *Bus) SetState(h hdl.Handle, st hdl.State) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter(OpSetState); err != nil {
		return err
	}
	i := b.find(h)
	if i < 0 {
		return fmt.Errorf("set state %d: %w", h, hdl.ErrInvalidHandle)
	}
	if b.devices[i].state != st {
		b.logger.Log(context.Background(), log.LevelTrace, "virtual device state",
			"handle", h, "buttons", st.Buttons.String(),
			"left", st.Joysticks[hdl.JoystickLeft], "right", st.Joysticks[hdl.JoystickRight])
	}
	b.devices[i].state = st
	b.devices[i].pushes++
	return nil
}

// GetVibrationValue returns the value last stored by SetVibration.
func (b *Bus) GetVibrationValue(v hdl.VibrationHandle) (hdl.VibrationValue, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter(OpVibration); err != nil {
		return hdl.VibrationValue{}, err
	}
	return b.vibration[v], nil
}

// SetVibration simulates the host requesting vibration on v.
func (b *Bus) SetVibration(v hdl.VibrationHandle, value hdl.VibrationValue) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.vibration[v] = value
}

// Drop removes a device as if the host had unplugged it on its own.
func (b *Bus) Drop(h hdl.Handle) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.remove(h) {
		return false
	}
	b.logger.Info("virtual device dropped by host", "handle", h)
	return true
}

// SetFault makes every call of op fail with err until cleared with a nil err.
func (b *Bus) SetFault(op Op, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.faults[op] = err
}

// Calls returns how many times op was called, failed calls included.
func (b *Bus) Calls(op Op) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[op]
}

// State returns the last state pushed to h.
func (b *Bus) State(h hdl.Handle) (hdl.State, bool) {
	d, ok := b.Device(h)
	return d.State, ok
}

// Device returns a snapshot of the device with handle h.
func (b *Bus) Device(h hdl.Handle) (DeviceInfo, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	i := b.find(h)
	if i < 0 {
		return DeviceInfo{}, false
	}
	return b.devices[i].info(), true
}

// Devices returns snapshots of all attached devices in attach order.
func (b *Bus) Devices() []DeviceInfo {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]DeviceInfo, 0, len(b.devices))
	for _, d := range b.devices {
		out = append(out, d.info())
	}
	return out
}

// Close removes every device.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.devices = nil
	return nil
}

func (b *Bus) enter(op Op) error {
	b.calls[op]++
	if err := b.faults[op]; err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (b *Bus) find(h hdl.Handle) int {
	for i := range b.devices {
		if b.devices[i].handle == h {
			return i
		}
	}
	return -1
}

func (b *Bus) remove(h hdl.Handle) bool {
	i := b.find(h)
	if i < 0 {
		return false
	}
	b.devices = append(b.devices[:i], b.devices[i+1:]...)
	return true
}

func (d busDevice) info() DeviceInfo {
	return DeviceInfo{Handle: d.handle, Identity: d.identity, State: d.state, Pushes: d.pushes}
}
