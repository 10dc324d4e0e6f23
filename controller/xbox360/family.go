// Package xbox360 lets remote sessions stream XInput-style reports. Reports
// are decoded into normalized samples with a positional face-button layout,
// so the button in the same place on the pad keeps its role.
package xbox360

import (
	"github.com/Alia5/padbridge/controller/network"
	"github.com/Alia5/padbridge/input"
)

// FamilyName is the session request name of this family.
const FamilyName = "xbox360"

func init() {
	network.RegisterFamily(Family{})
}

var buttonMap = [...]struct {
	mask  uint32
	index int
}{
	{ButtonY, input.ButtonX},
	{ButtonB, input.ButtonA},
	{ButtonA, input.ButtonB},
	{ButtonX, input.ButtonY},
	{ButtonLThumb, input.ButtonLStick},
	{ButtonRThumb, input.ButtonRStick},
	{ButtonLShoulder, input.ButtonL},
	{ButtonRShoulder, input.ButtonR},
	{ButtonBack, input.ButtonMinus},
	{ButtonStart, input.ButtonPlus},
	{ButtonGuide, input.ButtonHome},
	{ButtonDPadUp, input.ButtonDPadUp},
	{ButtonDPadRight, input.ButtonDPadRight},
	{ButtonDPadDown, input.ButtonDPadDown},
	{ButtonDPadLeft, input.ButtonDPadLeft},
}

// Family implements network.Family.
type Family struct{}

func (Family) Name() string   { return FamilyName }
func (Family) FrameSize() int { return ReportSize }

// Decode converts one report into a normalized sample.
func (Family) Decode(frame []byte, s *input.Sample) error {
	var st InputState
	if err := st.UnmarshalBinary(frame); err != nil {
		return err
	}
	*s = ToSample(&st)
	return nil
}

// EncodeRumble maps the bridge's high/low amplitudes onto the two motors.
func (Family) EncodeRumble(high, low uint8) []byte {
	r := RumbleState{LeftMotor: low, RightMotor: high}
	b, _ := r.MarshalBinary()
	return b
}

// DecodeRumble returns the high and low amplitudes of a rumble frame.
func (Family) DecodeRumble(frame []byte) (high, low uint8, err error) {
	var r RumbleState
	if err := r.UnmarshalBinary(frame); err != nil {
		return 0, 0, err
	}
	return r.RightMotor, r.LeftMotor, nil
}

func (Family) RumbleSize() int { return 2 }

// ToSample converts an InputState into a normalized sample.
func ToSample(st *InputState) input.Sample {
	var s input.Sample
	for _, m := range buttonMap {
		if st.Buttons&m.mask != 0 {
			s.Buttons[m.index] = true
		}
	}
	s.Buttons[input.ButtonZL] = st.LT > TriggerThreshold
	s.Buttons[input.ButtonZR] = st.RT > TriggerThreshold

	s.Sticks[input.StickLeft] = input.Stick{AxisX: axis(st.LX), AxisY: axis(st.LY)}
	s.Sticks[input.StickRight] = input.Stick{AxisX: axis(st.RX), AxisY: axis(st.RY)}
	s.SetSelector(int(st.Slot))
	s.Triggers[1] = float32(st.RT) / 255
	return s
}

func axis(v int16) float32 {
	f := float32(v) / 32767
	if f < -1 {
		return -1
	}
	return f
}
