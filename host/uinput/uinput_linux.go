//go:build linux

package uinput

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/bendahl/uinput"
	"golang.org/x/sys/unix"

	"github.com/Alia5/padbridge/hdl"
	"github.com/Alia5/padbridge/internal/log"
)

// Capture has no standard gamepad button and is not forwarded.
var keyMap = [...]struct {
	key    hdl.Key
	button int
}{
	{hdl.KeyA, uinput.ButtonEast},
	{hdl.KeyB, uinput.ButtonSouth},
	{hdl.KeyX, uinput.ButtonNorth},
	{hdl.KeyY, uinput.ButtonWest},
	{hdl.KeyL, uinput.ButtonBumperLeft},
	{hdl.KeyR, uinput.ButtonBumperRight},
	{hdl.KeyZL, uinput.ButtonTriggerLeft},
	{hdl.KeyZR, uinput.ButtonTriggerRight},
	{hdl.KeyLStick, uinput.ButtonThumbLeft},
	{hdl.KeyRStick, uinput.ButtonThumbRight},
	{hdl.KeyMinus, uinput.ButtonSelect},
	{hdl.KeyPlus, uinput.ButtonStart},
	{hdl.KeyHome, uinput.ButtonMode},
	{hdl.KeyDUp, uinput.ButtonDpadUp},
	{hdl.KeyDDown, uinput.ButtonDpadDown},
	{hdl.KeyDLeft, uinput.ButtonDpadLeft},
	{hdl.KeyDRight, uinput.ButtonDpadRight},
}

// Host implements hdl.Service on uinput.
type Host struct {
	cfg    Config
	logger *slog.Logger
	create func() (pad, error)
	handles
}

// New checks that the uinput node is writable and returns a Host.
func New(cfg Config, logger *slog.Logger) (*Host, error) {
	if cfg.Path == "" {
		cfg.Path = DefaultPath
	}
	if cfg.Name == "" {
		cfg.Name = "padbridge gamepad"
	}
	if err := unix.Access(cfg.Path, unix.W_OK); err != nil {
		return nil, fmt.Errorf("uinput %s not writable: %w", cfg.Path, err)
	}
	h := newHost(cfg, logger, nil)
	h.create = func() (pad, error) {
		return uinput.CreateGamepad(cfg.Path, []byte(cfg.Name), VendorID, ProductID)
	}
	return h, nil
}

func newHost(cfg Config, logger *slog.Logger, create func() (pad, error)) *Host {
	return &Host{
		cfg:     cfg,
		logger:  log.Or(logger).With("host", "uinput"),
		create:  create,
		handles: handles{devices: make(map[hdl.Handle]*device)},
	}
}

// Attach creates a uinput gamepad.
func (h *Host) Attach(id hdl.Identity) (hdl.Handle, error) {
	p, err := h.create()
	if err != nil {
		return 0, fmt.Errorf("create gamepad: %w", err)
	}
	handle := h.add(p)
	h.logger.Info("virtual device attached", "handle", handle, "name", h.cfg.Name)
	return handle, nil
}

// Detach closes the gamepad.
func (h *Host) Detach(handle hdl.Handle) error {
	h.mu.Lock()
	d, ok := h.devices[handle]
	delete(h.devices, handle)
	h.mu.Unlock()
	if !ok {
		return fmt.Errorf("detach %d: %w", handle, hdl.ErrInvalidHandle)
	}
	h.logger.Info("virtual device detached", "handle", handle)
	return d.pad.Close()
}

// IsAttached reports whether handle is open. The kernel does not remove
// uinput devices on its own.
func (h *Host) IsAttached(handle hdl.Handle) (bool, error) {
	if !handle.Valid() {
		return false, hdl.ErrInvalidHandle
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.devices[handle]
	return ok, nil
}

// SetState emits the button edges and stick positions that changed.
func (h *Host) SetState(handle hdl.Handle, st hdl.State) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	d, ok := h.devices[handle]
	if !ok {
		return fmt.Errorf("set state %d: %w", handle, hdl.ErrInvalidHandle)
	}

	var errs []error
	changed := d.last.Buttons ^ st.Buttons
	for _, m := range keyMap {
		if changed&m.key == 0 {
			continue
		}
		if st.Buttons&m.key != 0 {
			errs = append(errs, d.pad.ButtonDown(m.button))
		} else {
			errs = append(errs, d.pad.ButtonUp(m.button))
		}
	}
	if st.Joysticks[hdl.JoystickLeft] != d.last.Joysticks[hdl.JoystickLeft] {
		errs = append(errs, d.pad.LeftStickMove(stickAxis(st.Joysticks[hdl.JoystickLeft])))
	}
	if st.Joysticks[hdl.JoystickRight] != d.last.Joysticks[hdl.JoystickRight] {
		errs = append(errs, d.pad.RightStickMove(stickAxis(st.Joysticks[hdl.JoystickRight])))
	}
	d.last = st
	return errors.Join(errs...)
}

// GetVibrationValue always fails; uinput force feedback is not read back.
func (h *Host) GetVibrationValue(hdl.VibrationHandle) (hdl.VibrationValue, error) {
	return hdl.VibrationValue{}, hdl.ErrVibrationUnsupported
}

// Close closes every gamepad.
func (h *Host) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	var errs []error
	for handle, d := range h.devices {
		errs = append(errs, d.pad.Close())
		delete(h.devices, handle)
	}
	return errors.Join(errs...)
}

var _ hdl.Service = (*Host)(nil)
