package bridge

import (
	"github.com/Alia5/padbridge/hdl"
	"github.com/Alia5/padbridge/input"
)

// buttonMap is the fixed part of the sample -> host key table. D-pad indices
// are handled by the mapping mode.
var buttonMap = [...]struct {
	index int
	key   hdl.Key
}{
	{input.ButtonX, hdl.KeyX},
	{input.ButtonA, hdl.KeyA},
	{input.ButtonB, hdl.KeyB},
	{input.ButtonY, hdl.KeyY},
	{input.ButtonLStick, hdl.KeyLStick},
	{input.ButtonRStick, hdl.KeyRStick},
	{input.ButtonL, hdl.KeyL},
	{input.ButtonR, hdl.KeyR},
	{input.ButtonZL, hdl.KeyZL},
	{input.ButtonZR, hdl.KeyZR},
	{input.ButtonMinus, hdl.KeyMinus},
	{input.ButtonPlus, hdl.KeyPlus},
	{input.ButtonCapture, hdl.KeyCapture},
	{input.ButtonHome, hdl.KeyHome},
}

var dpadMap = [...]struct {
	index int
	key   hdl.Key
}{
	{input.ButtonDPadUp, hdl.KeyDUp},
	{input.ButtonDPadRight, hdl.KeyDRight},
	{input.ButtonDPadDown, hdl.KeyDDown},
	{input.ButtonDPadLeft, hdl.KeyDLeft},
}

// translate overwrites the buttons and joysticks of st from s. Battery is
// left alone.
func translate(s *input.Sample, swap bool, st *hdl.State) {
	var keys hdl.Key
	for _, m := range buttonMap {
		if s.Buttons[m.index] {
			keys |= m.key
		}
	}

	left := &st.Joysticks[hdl.JoystickLeft]
	if swap {
		keys |= stickToDPad(s.Sticks[input.StickLeft])
		x, y := DPadVector(
			s.Buttons[input.ButtonDPadUp],
			s.Buttons[input.ButtonDPadRight],
			s.Buttons[input.ButtonDPadDown],
			s.Buttons[input.ButtonDPadLeft],
		)
		left.DX, left.DY = ConvertAxis(x, y, 0)
	} else {
		for _, m := range dpadMap {
			if s.Buttons[m.index] {
				keys |= m.key
			}
		}
		ls := s.Sticks[input.StickLeft]
		left.DX, left.DY = ConvertAxis(ls.AxisX, ls.AxisY, 0)
	}

	rs := s.Sticks[input.StickRight]
	right := &st.Joysticks[hdl.JoystickRight]
	right.DX, right.DY = ConvertAxis(rs.AxisX, rs.AxisY, 0)

	st.Buttons = keys
}
