package xbox360

import (
	"encoding/binary"
	"io"
)

// ReportSize is the size of one input report on the session stream.
const ReportSize = 20

// Button bitmasks, XInput layout.
const (
	ButtonDPadUp    = 0x0001
	ButtonDPadDown  = 0x0002
	ButtonDPadLeft  = 0x0004
	ButtonDPadRight = 0x0008
	ButtonStart     = 0x0010
	ButtonBack      = 0x0020
	ButtonLThumb    = 0x0040
	ButtonRThumb    = 0x0080
	ButtonLShoulder = 0x0100
	ButtonRShoulder = 0x0200
	ButtonGuide     = 0x0400
	ButtonA         = 0x1000
	ButtonB         = 0x2000
	ButtonX         = 0x4000
	ButtonY         = 0x8000
)

// TriggerThreshold is the trigger value above which a trigger counts as a
// digital press (XINPUT_GAMEPAD_TRIGGER_THRESHOLD).
const TriggerThreshold = 0x1E

// InputState is one XInput-style report.
//
//	 0-3:   Buttons (little-endian u32, low 16 bits used)
//	 4:     LT (0-255)
//	 5:     RT (0-255)
//	 6-13:  LX, LY, RX, RY (little-endian i16)
//	14:     Slot selector
//	15-19:  Reserved
type InputState struct {
	Buttons  uint32
	LT, RT   uint8
	LX, LY   int16
	RX, RY   int16
	Slot     uint8
	Reserved [5]byte
}

// MarshalBinary encodes the report.
func (x *InputState) MarshalBinary() ([]byte, error) {
	b := make([]byte, ReportSize)
	binary.LittleEndian.PutUint32(b[0:4], x.Buttons)
	b[4] = x.LT
	b[5] = x.RT
	binary.LittleEndian.PutUint16(b[6:8], uint16(x.LX))
	binary.LittleEndian.PutUint16(b[8:10], uint16(x.LY))
	binary.LittleEndian.PutUint16(b[10:12], uint16(x.RX))
	binary.LittleEndian.PutUint16(b[12:14], uint16(x.RY))
	b[14] = x.Slot
	copy(b[15:20], x.Reserved[:])
	return b, nil
}

// UnmarshalBinary decodes a report.
func (x *InputState) UnmarshalBinary(data []byte) error {
	if len(data) < ReportSize {
		return io.ErrUnexpectedEOF
	}
	x.Buttons = binary.LittleEndian.Uint32(data[0:4])
	x.LT = data[4]
	x.RT = data[5]
	x.LX = int16(binary.LittleEndian.Uint16(data[6:8]))
	x.LY = int16(binary.LittleEndian.Uint16(data[8:10]))
	x.RX = int16(binary.LittleEndian.Uint16(data[10:12]))
	x.RY = int16(binary.LittleEndian.Uint16(data[12:14]))
	x.Slot = data[14]
	copy(x.Reserved[:], data[15:20])
	return nil
}

// RumbleState is the frame sent back to the client.
type RumbleState struct {
	// LeftMotor is the large, low-frequency motor.
	LeftMotor uint8
	// RightMotor is the small, high-frequency motor.
	RightMotor uint8
}

// MarshalBinary encodes the rumble frame.
func (r *RumbleState) MarshalBinary() ([]byte, error) {
	return []byte{r.LeftMotor, r.RightMotor}, nil
}

// UnmarshalBinary decodes a rumble frame.
func (r *RumbleState) UnmarshalBinary(data []byte) error {
	if len(data) < 2 {
		return io.ErrUnexpectedEOF
	}
	r.LeftMotor = data[0]
	r.RightMotor = data[1]
	return nil
}
