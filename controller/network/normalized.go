package network

import (
	"io"

	"github.com/Alia5/padbridge/input"
)

// NormalizedFamily streams input.Sample frames as they are.
const NormalizedFamily = "normalized"

func init() {
	RegisterFamily(normalized{})
}

type normalized struct{}

func (normalized) Name() string   { return NormalizedFamily }
func (normalized) FrameSize() int { return input.FrameSize }

func (normalized) Decode(frame []byte, s *input.Sample) error {
	return s.UnmarshalBinary(frame)
}

func (normalized) EncodeRumble(high, low uint8) []byte {
	return []byte{high, low}
}

func (normalized) DecodeRumble(frame []byte) (high, low uint8, err error) {
	if len(frame) < 2 {
		return 0, 0, io.ErrUnexpectedEOF
	}
	return frame[0], frame[1], nil
}

func (normalized) RumbleSize() int { return 2 }
