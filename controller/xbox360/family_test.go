package xbox360_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alia5/padbridge/controller/network"
	"github.com/Alia5/padbridge/controller/xbox360"
	"github.com/Alia5/padbridge/input"
)

func TestReportRoundTripLayout(t *testing.T) {
	st := xbox360.InputState{
		Buttons: xbox360.ButtonA | xbox360.ButtonStart,
		LT:      0x10,
		RT:      0xFF,
		LX:      -32768,
		LY:      32767,
		RX:      1,
		RY:      -1,
		Slot:    3,
	}
	b, err := st.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, b, xbox360.ReportSize)
	assert.Equal(t, []byte{0x10, 0x10, 0x00, 0x00}, b[0:4])
	assert.Equal(t, byte(0x10), b[4])
	assert.Equal(t, byte(0xFF), b[5])
	assert.Equal(t, []byte{0x00, 0x80}, b[6:8])
	assert.Equal(t, byte(3), b[14])

	var got xbox360.InputState
	require.NoError(t, got.UnmarshalBinary(b))
	assert.Equal(t, st, got)

	assert.Error(t, got.UnmarshalBinary(b[:19]))
}

func TestToSample(t *testing.T) {
	tests := []struct {
		name    string
		state   xbox360.InputState
		pressed []int
	}{
		{"idle", xbox360.InputState{}, nil},
		{"positional faces", xbox360.InputState{Buttons: xbox360.ButtonA | xbox360.ButtonY},
			[]int{input.ButtonX, input.ButtonB}},
		{"b and x", xbox360.InputState{Buttons: xbox360.ButtonB | xbox360.ButtonX},
			[]int{input.ButtonA, input.ButtonY}},
		{"system", xbox360.InputState{Buttons: xbox360.ButtonBack | xbox360.ButtonStart | xbox360.ButtonGuide},
			[]int{input.ButtonMinus, input.ButtonPlus, input.ButtonHome}},
		{"shoulders and thumbs", xbox360.InputState{Buttons: xbox360.ButtonLShoulder | xbox360.ButtonRThumb},
			[]int{input.ButtonRStick, input.ButtonL}},
		{"dpad", xbox360.InputState{Buttons: xbox360.ButtonDPadUp | xbox360.ButtonDPadLeft},
			[]int{input.ButtonDPadUp, input.ButtonDPadLeft}},
		{"trigger at threshold", xbox360.InputState{LT: xbox360.TriggerThreshold}, nil},
		{"triggers pressed", xbox360.InputState{LT: 0x1F, RT: 0xFF},
			[]int{input.ButtonZL, input.ButtonZR}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := xbox360.ToSample(&tt.state)
			assert.Equal(t, tt.pressed, s.Pressed())
		})
	}
}

func TestToSampleAxesAndSelector(t *testing.T) {
	s := xbox360.ToSample(&xbox360.InputState{
		LX: 32767, LY: -32768, RX: 0, RY: 16384, RT: 255, Slot: 2,
	})
	assert.Equal(t, input.Stick{AxisX: 1, AxisY: -1}, s.Sticks[input.StickLeft])
	assert.InDelta(t, 0.5, s.Sticks[input.StickRight].AxisY, 1e-3)
	assert.Equal(t, float32(1), s.Triggers[1])

	idx, ok := s.Selector()
	require.True(t, ok)
	assert.Equal(t, 2, idx)
}

func TestFamilyRegistered(t *testing.T) {
	f, ok := network.LookupFamily(xbox360.FamilyName)
	require.True(t, ok)
	assert.Equal(t, xbox360.ReportSize, f.FrameSize())
	assert.Equal(t, []byte{10, 200}, f.EncodeRumble(200, 10))
	high, low, err := f.DecodeRumble([]byte{10, 200})
	require.NoError(t, err)
	assert.Equal(t, uint8(200), high)
	assert.Equal(t, uint8(10), low)

	st := xbox360.InputState{Buttons: xbox360.ButtonB, Slot: 1}
	b, err := st.MarshalBinary()
	require.NoError(t, err)
	var s input.Sample
	require.NoError(t, f.Decode(b, &s))
	assert.Equal(t, []int{input.ButtonA}, s.Pressed())
}
