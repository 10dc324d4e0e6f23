// Package uinput presents emulated gamepads to the local Linux kernel through
// /dev/uinput. Vibration is not reported back; the bridge's output loop sees
// hdl.ErrVibrationUnsupported.
package uinput

import (
	"sync"

	"github.com/Alia5/padbridge/hdl"
)

// DefaultPath is the uinput device node.
const DefaultPath = "/dev/uinput"

// Device IDs announced for every emulated pad.
const (
	VendorID  uint16 = 0x057E
	ProductID uint16 = 0x2009
)

// Config selects the uinput node and the announced device name.
type Config struct {
	Path string `help:"uinput device node" default:"/dev/uinput" env:"PADBRIDGE_UINPUT_PATH"`
	Name string `help:"Name announced for each emulated gamepad" default:"padbridge gamepad" env:"PADBRIDGE_UINPUT_NAME"`
}

// pad is the subset of uinput.Gamepad the host drives.
type pad interface {
	ButtonDown(key int) error
	ButtonUp(key int) error
	LeftStickMove(x, y float32) error
	RightStickMove(x, y float32) error
	Close() error
}

type device struct {
	pad  pad
	last hdl.State
}

type handles struct {
	mu      sync.Mutex
	next    hdl.Handle
	devices map[hdl.Handle]*device
}

func (h *handles) add(p pad) hdl.Handle {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.next++
	h.devices[h.next] = &device{pad: p}
	return h.next
}

// stickAxis maps a host joystick delta to the [-1,1] range uinput expects.
// The Y axis grows downwards on Linux.
func stickAxis(j hdl.Joystick) (x, y float32) {
	x = clamp(float32(j.DX) / hdl.JoystickMax)
	y = clamp(-float32(j.DY) / hdl.JoystickMax)
	return x, y
}

func clamp(v float32) float32 {
	switch {
	case v > 1:
		return 1
	case v < -1:
		return -1
	default:
		return v
	}
}
