// Package input defines the normalized controller sample exchanged between
// controller sources and the bridge.
package input

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
)

// MaxButtons is the number of button slots carried by a Sample.
const MaxButtons = 32

// Button indices with a fixed meaning.
const (
	ButtonX = iota
	ButtonA
	ButtonB
	ButtonY
	ButtonLStick
	ButtonRStick
	ButtonL
	ButtonR
	ButtonZL
	ButtonZR
	ButtonMinus
	ButtonPlus
	ButtonDPadUp
	ButtonDPadRight
	ButtonDPadDown
	ButtonDPadLeft
	ButtonCapture
	ButtonHome

	// NumMappedButtons is the count of indices with a fixed meaning.
	NumMappedButtons
)

// Stick indices.
const (
	StickLeft  = 0
	StickRight = 1
)

// FrameSize is the size of the binary sample encoding.
const FrameSize = 28

// Stick is one analog stick, both axes in [-1,1].
type Stick struct {
	AxisX float32 `json:"x"`
	AxisY float32 `json:"y"`
}

// Sample is one poll of a controller source, already normalized.
// Triggers[0] doubles as the slot selector.
type Sample struct {
	Buttons  [MaxButtons]bool
	Sticks   [2]Stick
	Triggers [2]float32
}

// Selector returns the slot index carried by the sample, truncated toward zero.
// ok is false when the selector is not a finite number that fits an int32.
func (s *Sample) Selector() (idx int, ok bool) {
	t := float64(s.Triggers[0])
	if math.IsNaN(t) || t >= math.MaxInt32 || t <= math.MinInt32 {
		return 0, false
	}
	return int(t), true
}

// SetSelector stores a slot index in Triggers[0].
func (s *Sample) SetSelector(idx int) {
	s.Triggers[0] = float32(idx)
}

// Pressed lists the indices of pressed buttons in ascending order.
func (s *Sample) Pressed() []int {
	var out []int
	for i, b := range s.Buttons {
		if b {
			out = append(out, i)
		}
	}
	return out
}

// MarshalBinary encodes the sample into FrameSize bytes, little endian.
func (s *Sample) MarshalBinary() ([]byte, error) {
	b := make([]byte, FrameSize)
	var bits uint32
	for i, p := range s.Buttons {
		if p {
			bits |= 1 << uint(i)
		}
	}
	binary.LittleEndian.PutUint32(b[0:4], bits)
	binary.LittleEndian.PutUint32(b[4:8], math.Float32bits(s.Sticks[0].AxisX))
	binary.LittleEndian.PutUint32(b[8:12], math.Float32bits(s.Sticks[0].AxisY))
	binary.LittleEndian.PutUint32(b[12:16], math.Float32bits(s.Sticks[1].AxisX))
	binary.LittleEndian.PutUint32(b[16:20], math.Float32bits(s.Sticks[1].AxisY))
	binary.LittleEndian.PutUint32(b[20:24], math.Float32bits(s.Triggers[0]))
	binary.LittleEndian.PutUint32(b[24:28], math.Float32bits(s.Triggers[1]))
	return b, nil
}

// UnmarshalBinary decodes FrameSize bytes into the sample.
func (s *Sample) UnmarshalBinary(data []byte) error {
	if len(data) < FrameSize {
		return io.ErrUnexpectedEOF
	}
	bits := binary.LittleEndian.Uint32(data[0:4])
	for i := range s.Buttons {
		s.Buttons[i] = bits&(1<<uint(i)) != 0
	}
	s.Sticks[0].AxisX = math.Float32frombits(binary.LittleEndian.Uint32(data[4:8]))
	s.Sticks[0].AxisY = math.Float32frombits(binary.LittleEndian.Uint32(data[8:12]))
	s.Sticks[1].AxisX = math.Float32frombits(binary.LittleEndian.Uint32(data[12:16]))
	s.Sticks[1].AxisY = math.Float32frombits(binary.LittleEndian.Uint32(data[16:20]))
	s.Triggers[0] = math.Float32frombits(binary.LittleEndian.Uint32(data[20:24]))
	s.Triggers[1] = math.Float32frombits(binary.LittleEndian.Uint32(data[24:28]))
	return nil
}

type jsonSample struct {
	Buttons  []int      `json:"buttons"`
	Sticks   [2]Stick   `json:"sticks"`
	Triggers [2]float32 `json:"triggers"`
}

// MarshalJSON encodes pressed buttons as a list of indices.
func (s Sample) MarshalJSON() ([]byte, error) {
	pressed := s.Pressed()
	if pressed == nil {
		pressed = []int{}
	}
	return json.Marshal(jsonSample{Buttons: pressed, Sticks: s.Sticks, Triggers: s.Triggers})
}

// UnmarshalJSON accepts the form produced by MarshalJSON.
func (s *Sample) UnmarshalJSON(data []byte) error {
	var raw jsonSample
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var out Sample
	for _, idx := range raw.Buttons {
		if idx < 0 || idx >= MaxButtons {
			return fmt.Errorf("button index %d out of range [0,%d)", idx, MaxButtons)
		}
		out.Buttons[idx] = true
	}
	out.Sticks = raw.Sticks
	out.Triggers = raw.Triggers
	*s = out
	return nil
}
