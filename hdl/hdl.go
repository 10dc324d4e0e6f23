// Package hdl describes the host's native virtual-device surface: device
// identity, live device state, opaque handles and the service that attaches
// and drives emulated gamepads.
package hdl

import (
	"errors"
	"fmt"
)

// Key is the host-native button bitmask.
type Key uint64

// Button bits, matching the host's full-key controller layout.
const (
	KeyA       Key = 1 << 0
	KeyB       Key = 1 << 1
	KeyX       Key = 1 << 2
	KeyY       Key = 1 << 3
	KeyLStick  Key = 1 << 4
	KeyRStick  Key = 1 << 5
	KeyL       Key = 1 << 6
	KeyR       Key = 1 << 7
	KeyZL      Key = 1 << 8
	KeyZR      Key = 1 << 9
	KeyPlus    Key = 1 << 10
	KeyMinus   Key = 1 << 11
	KeyDLeft   Key = 1 << 12
	KeyDUp     Key = 1 << 13
	KeyDRight  Key = 1 << 14
	KeyDDown   Key = 1 << 15
	KeyHome    Key = 1 << 18
	KeyCapture Key = 1 << 19

	// KeyFace covers the four face buttons.
	KeyFace = KeyA | KeyB | KeyX | KeyY
	// KeyDPad covers the four D-pad directions.
	KeyDPad = KeyDUp | KeyDRight | KeyDDown | KeyDLeft
)

var keyNames = []struct {
	k    Key
	name string
}{
	{KeyA, "A"}, {KeyB, "B"}, {KeyX, "X"}, {KeyY, "Y"},
	{KeyLStick, "LStick"}, {KeyRStick, "RStick"},
	{KeyL, "L"}, {KeyR, "R"}, {KeyZL, "ZL"}, {KeyZR, "ZR"},
	{KeyPlus, "Plus"}, {KeyMinus, "Minus"},
	{KeyDLeft, "DLeft"}, {KeyDUp, "DUp"}, {KeyDRight, "DRight"}, {KeyDDown, "DDown"},
	{KeyHome, "Home"}, {KeyCapture, "Capture"},
}

func (k Key) String() string {
	if k == 0 {
		return "none"
	}
	s := ""
	for _, n := range keyNames {
		if k&n.k != 0 {
			if s != "" {
				s += "|"
			}
			s += n.name
		}
	}
	if rest := k &^ knownKeys(); rest != 0 {
		if s != "" {
			s += "|"
		}
		s += fmt.Sprintf("0x%x", uint64(rest))
	}
	return s
}

func knownKeys() Key {
	var all Key
	for _, n := range keyNames {
		all |= n.k
	}
	return all
}

// JoystickMax is the host-native full deflection of one stick axis.
const JoystickMax = 0x7FFF

// Joystick indices into State.Joysticks.
const (
	JoystickLeft  = 0
	JoystickRight = 1
)

// BatteryFull is the host's full battery charge level.
const BatteryFull = 4

// DeviceType is the category of emulated controller.
type DeviceType uint8

const (
	DeviceTypeFullKey DeviceType = 3 // Pro Controller style
)

// InterfaceType is how the emulated controller claims to be connected.
type InterfaceType uint8

const (
	InterfaceUSB       InterfaceType = 3
	InterfaceBluetooth InterfaceType = 1
)

// Identity describes an emulated device. Colors are packed 0xRRGGBBAA.
type Identity struct {
	DeviceType     DeviceType
	InterfaceType  InterfaceType
	BodyColor      uint32
	ButtonsColor   uint32
	LeftGripColor  uint32
	RightGripColor uint32
}

// Joystick is one stick in host-native delta encoding.
type Joystick struct {
	DX, DY int32
}

// State is the live state pushed to an emulated device.
type State struct {
	Buttons   Key
	Joysticks [2]Joystick
	Battery   uint32
}

// Handle identifies an attached device. The zero value is invalid.
type Handle uint64

// Valid reports whether the handle refers to a device.
func (h Handle) Valid() bool { return h != 0 }

// VibrationHandle selects the vibration source queried by the output loop.
// Hosts interpret it as a player position starting at 0.
type VibrationHandle uint32

// VibrationValue is the last vibration set by the host. Amplitudes are in [0,1].
type VibrationValue struct {
	AmpLow   float32
	FreqLow  float32
	AmpHigh  float32
	FreqHigh float32
}

var (
	// ErrInvalidHandle is returned for operations on a zero or unknown handle.
	ErrInvalidHandle = errors.New("invalid device handle")
	// ErrVibrationUnsupported is returned by hosts that cannot report vibration.
	ErrVibrationUnsupported = errors.New("vibration not supported by host")
)

// Service is the host's virtual-device service.
// Implementations must be safe for concurrent use.
type Service interface {
	// Attach registers a new emulated device and returns its handle.
	Attach(id Identity) (Handle, error)
	// Detach removes the device.
	Detach(h Handle) error
	// IsAttached reports whether the host still presents the device.
	IsAttached(h Handle) (bool, error)
	// SetState pushes the device state.
	SetState(h Handle, st State) error
	// GetVibrationValue returns the last vibration the host requested.
	GetVibrationValue(v VibrationHandle) (VibrationValue, error)
}
