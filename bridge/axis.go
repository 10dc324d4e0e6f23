package bridge

import (
	"math"

	"github.com/Alia5/padbridge/hdl"
	"github.com/Alia5/padbridge/input"
)

// dpadThreshold is the stick deflection that counts as a D-pad press in
// swapped mode.
const dpadThreshold = 0.5

// ConvertAxis maps a normalized stick position to host-native deltas.
// Components are clamped to [-1,1]; values within deadzone read as 0 and the
// rest is rescaled so full deflection still reaches hdl.JoystickMax.
func ConvertAxis(x, y, deadzone float32) (dx, dy int32) {
	return convertComponent(x, deadzone), convertComponent(y, deadzone)
}

func convertComponent(v, deadzone float32) int32 {
	if v != v { // NaN
		return 0
	}
	if v > 1 {
		v = 1
	} else if v < -1 {
		v = -1
	}
	if deadzone < 0 {
		deadzone = 0
	}
	if deadzone >= 1 {
		return 0
	}
	mag := v
	if mag < 0 {
		mag = -mag
	}
	if mag <= deadzone {
		return 0
	}
	scaled := int32((mag - deadzone) / (1 - deadzone) * hdl.JoystickMax)
	if v < 0 {
		return -scaled
	}
	return scaled
}

// ClampUnit scales (x, y) onto the unit circle when its magnitude exceeds 1.
// A zero vector is returned unchanged.
func ClampUnit(x, y float32) (float32, float32) {
	mag := math.Hypot(float64(x), float64(y))
	if mag <= 1 {
		return x, y
	}
	ratio := 1 / mag
	return float32(float64(x) * ratio), float32(float64(y) * ratio)
}

// DPadVector turns four D-pad directions into a stick vector on or inside the
// unit circle: up is +y, right is +x.
func DPadVector(up, right, down, left bool) (x, y float32) {
	if up {
		y++
	}
	if right {
		x++
	}
	if down {
		y--
	}
	if left {
		x--
	}
	return ClampUnit(x, y)
}

// stickToDPad thresholds each axis independently; opposite-axis flags may
// combine into diagonals.
func stickToDPad(s input.Stick) hdl.Key {
	var k hdl.Key
	if s.AxisY > dpadThreshold {
		k |= hdl.KeyDUp
	}
	if s.AxisX > dpadThreshold {
		k |= hdl.KeyDRight
	}
	if s.AxisY < -dpadThreshold {
		k |= hdl.KeyDDown
	}
	if s.AxisX < -dpadThreshold {
		k |= hdl.KeyDLeft
	}
	return k
}

// ScaleAmplitude converts a host vibration amplitude in [0,1] to the 0..255
// range sources expect. Out-of-range input is clamped; fractions truncate.
func ScaleAmplitude(amp float32) uint8 {
	if amp != amp || amp <= 0 {
		return 0
	}
	if amp >= 1 {
		return 255
	}
	return uint8(amp * 255)
}
