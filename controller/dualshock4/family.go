// Package dualshock4 lets remote sessions stream DS4-style reports. Face
// buttons are mapped by position: Cross is the bottom button.
package dualshock4

import (
	"github.com/Alia5/padbridge/controller/network"
	"github.com/Alia5/padbridge/input"
)

// FamilyName is the session request name of this family.
const FamilyName = "dualshock4"

func init() {
	network.RegisterFamily(Family{})
}

var buttonMap = [...]struct {
	mask  uint16
	index int
}{
	{ButtonCross, input.ButtonB},
	{ButtonCircle, input.ButtonA},
	{ButtonTriangle, input.ButtonX},
	{ButtonSquare, input.ButtonY},
	{ButtonL1, input.ButtonL},
	{ButtonR1, input.ButtonR},
	{ButtonL2, input.ButtonZL},
	{ButtonR2, input.ButtonZR},
	{ButtonShare, input.ButtonMinus},
	{ButtonOptions, input.ButtonPlus},
	{ButtonL3, input.ButtonLStick},
	{ButtonR3, input.ButtonRStick},
	{ButtonPS, input.ButtonHome},
	{ButtonTouchpadClick, input.ButtonCapture},
}

var dpadMap = [...]struct {
	bit   uint8
	index int
}{
	{DPadUp, input.ButtonDPadUp},
	{DPadRight, input.ButtonDPadRight},
	{DPadDown, input.ButtonDPadDown},
	{DPadLeft, input.ButtonDPadLeft},
}

// Family implements network.Family.
type Family struct{}

func (Family) Name() string    { return FamilyName }
func (Family) FrameSize() int  { return ReportSize }
func (Family) RumbleSize() int { return 2 }

func (Family) Decode(frame []byte, s *input.Sample) error {
	var st InputState
	if err := st.UnmarshalBinary(frame); err != nil {
		return err
	}
	*s = ToSample(&st)
	return nil
}

func (Family) EncodeRumble(high, low uint8) []byte {
	b, _ := (&OutputState{RumbleSmall: high, RumbleLarge: low}).MarshalBinary()
	return b
}

func (Family) DecodeRumble(frame []byte) (high, low uint8, err error) {
	var o OutputState
	if err := o.UnmarshalBinary(frame); err != nil {
		return 0, 0, err
	}
	return o.RumbleSmall, o.RumbleLarge, nil
}

// ToSample converts a report into a normalized sample.
func ToSample(st *InputState) input.Sample {
	var s input.Sample
	for _, m := range buttonMap {
		if st.Buttons&m.mask != 0 {
			s.Buttons[m.index] = true
		}
	}
	for _, m := range dpadMap {
		if st.DPad&m.bit != 0 {
			s.Buttons[m.index] = true
		}
	}
	if st.L2 > TriggerThreshold {
		s.Buttons[input.ButtonZL] = true
	}
	if st.R2 > TriggerThreshold {
		s.Buttons[input.ButtonZR] = true
	}

	s.Sticks[input.StickLeft] = input.Stick{AxisX: axis(st.LX), AxisY: -axis(st.LY)}
	s.Sticks[input.StickRight] = input.Stick{AxisX: axis(st.RX), AxisY: -axis(st.RY)}
	s.SetSelector(int(st.Slot))
	s.Triggers[1] = float32(st.R2) / 255
	return s
}

func axis(v int8) float32 {
	f := float32(v) / 127
	if f < -1 {
		return -1
	}
	return f
}
