package dualshock4

import (
	"encoding/binary"
	"io"
)

// ReportSize is the size of one input report on the session stream.
const ReportSize = 12

// Button bitmasks of InputState.Buttons, DS4 report layout.
const (
	ButtonSquare   uint16 = 0x0010
	ButtonCross    uint16 = 0x0020
	ButtonCircle   uint16 = 0x0040
	ButtonTriangle uint16 = 0x0080
	ButtonL1       uint16 = 0x0100
	ButtonR1       uint16 = 0x0200
	ButtonL2       uint16 = 0x0400
	ButtonR2       uint16 = 0x0800
	ButtonShare    uint16 = 0x1000
	ButtonOptions  uint16 = 0x2000
	ButtonL3       uint16 = 0x4000
	ButtonR3       uint16 = 0x8000

	ButtonPS            uint16 = 0x0001
	ButtonTouchpadClick uint16 = 0x0002
)

// D-pad bits of InputState.DPad.
const (
	DPadUp    uint8 = 0x01
	DPadDown  uint8 = 0x02
	DPadLeft  uint8 = 0x04
	DPadRight uint8 = 0x08
)

// TriggerThreshold is the analog trigger value above which L2/R2 count as
// pressed even without the digital bit.
const TriggerThreshold = 0x1E

// InputState is one DS4-style report. Stick Y axes grow downwards.
//
//	0-3:   LX, LY, RX, RY (i8)
//	4-5:   Buttons (little-endian u16)
//	6:     DPad bits
//	7:     L2 (0-255)
//	8:     R2 (0-255)
//	9:     Slot selector
//	10-11: Reserved
type InputState struct {
	LX, LY   int8
	RX, RY   int8
	Buttons  uint16
	DPad     uint8
	L2, R2   uint8
	Slot     uint8
	Reserved [2]byte
}

func (s *InputState) MarshalBinary() ([]byte, error) {
	b := make([]byte, ReportSize)
	b[0] = uint8(s.LX)
	b[1] = uint8(s.LY)
	b[2] = uint8(s.RX)
	b[3] = uint8(s.RY)
	binary.LittleEndian.PutUint16(b[4:6], s.Buttons)
	b[6] = s.DPad
	b[7] = s.L2
	b[8] = s.R2
	b[9] = s.Slot
	copy(b[10:], s.Reserved[:])
	return b, nil
}

func (s *InputState) UnmarshalBinary(data []byte) error {
	if len(data) < ReportSize {
		return io.ErrUnexpectedEOF
	}
	s.LX = int8(data[0])
	s.LY = int8(data[1])
	s.RX = int8(data[2])
	s.RY = int8(data[3])
	s.Buttons = binary.LittleEndian.Uint16(data[4:6])
	s.DPad = data[6]
	s.L2 = data[7]
	s.R2 = data[8]
	s.Slot = data[9]
	copy(s.Reserved[:], data[10:12])
	return nil
}

// OutputState is the rumble frame sent back to the remote side.
type OutputState struct {
	RumbleSmall uint8 // high-frequency motor
	RumbleLarge uint8 // low-frequency motor
}

func (f *OutputState) MarshalBinary() ([]byte, error) {
	return []byte{f.RumbleSmall, f.RumbleLarge}, nil
}

func (f *OutputState) UnmarshalBinary(data []byte) error {
	if len(data) < 2 {
		return io.ErrUnexpectedEOF
	}
	f.RumbleSmall = data[0]
	f.RumbleLarge = data[1]
	return nil
}
