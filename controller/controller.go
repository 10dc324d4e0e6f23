// Package controller defines the contract implemented by physical and remote
// controller backends that feed the bridge.
package controller

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Alia5/padbridge/input"
)

// Capability is a set of features a source supports.
type Capability uint32

const (
	// CapNothing marks a source that only needs Initialize/Exit forwarded.
	CapNothing Capability = 1 << iota
	// CapPairing marks a source with an outbound packet queue.
	CapPairing
	// CapRumble marks a source that accepts rumble.
	CapRumble
)

// Supports reports whether every capability in want is present.
func (c Capability) Supports(want Capability) bool {
	return c&want == want
}

func (c Capability) String() string {
	var parts []string
	if c&CapNothing != 0 {
		parts = append(parts, "nothing")
	}
	if c&CapPairing != 0 {
		parts = append(parts, "pairing")
	}
	if c&CapRumble != 0 {
		parts = append(parts, "rumble")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ",")
}

var (
	// ErrNoOutbound is returned by DrainOutbound when the queue is empty.
	ErrNoOutbound = errors.New("no outbound packet pending")
	// ErrNoInput is returned by GetInput when no sample arrived in time.
	ErrNoInput = errors.New("no input available")
)

// Source is one controller driver. The input loop and the output loop call
// into the same Source concurrently; GetInput, DrainOutbound and SetRumble
// must tolerate that.
type Source interface {
	Initialize() error
	Exit()
	IsActive() bool
	// GetInput polls the device and buffers the latest sample.
	GetInput() error
	// GetNormalizedSample returns a copy of the buffered sample.
	GetNormalizedSample() input.Sample
	// DrainOutbound sends one queued packet; ErrNoOutbound when none is pending.
	DrainOutbound() error
	SetRumble(ampHigh, ampLow uint8)
	GetConfig() *Config
	GetCapabilities() Capability
}

// Config is the per-source configuration used to build slot identities and
// select the mapping mode.
type Config struct {
	BodyColor         RGBA `json:"bodyColor" yaml:"bodyColor"`
	ButtonsColor      RGBA `json:"buttonsColor" yaml:"buttonsColor"`
	LeftGripColor     RGBA `json:"leftGripColor" yaml:"leftGripColor"`
	RightGripColor    RGBA `json:"rightGripColor" yaml:"rightGripColor"`
	SwapDPADandLSTICK bool `json:"swapDpadAndLstick" yaml:"swapDpadAndLstick"`
}

// DefaultConfig returns a dark-grey controller with direct D-pad mapping.
func DefaultConfig() *Config {
	return &Config{
		BodyColor:      0x323232FF,
		ButtonsColor:   0x0F0F0FFF,
		LeftGripColor:  0x323232FF,
		RightGripColor: 0x323232FF,
	}
}

// RGBA is a color packed as 0xRRGGBBAA.
type RGBA uint32

// ParseRGBA accepts "#RRGGBB", "#RRGGBBAA", "0x" prefixed hex or a decimal number.
// Six-digit forms get an opaque alpha.
func ParseRGBA(s string) (RGBA, error) {
	v := strings.TrimSpace(s)
	if v == "" {
		return 0, errors.New("empty color")
	}
	switch {
	case strings.HasPrefix(v, "#"):
		hex := v[1:]
		if len(hex) != 6 && len(hex) != 8 {
			return 0, fmt.Errorf("invalid color %q: want #RRGGBB or #RRGGBBAA", s)
		}
		n, err := strconv.ParseUint(hex, 16, 32)
		if err != nil {
			return 0, fmt.Errorf("invalid color %q: %w", s, err)
		}
		if len(hex) == 6 {
			n = n<<8 | 0xFF
		}
		return RGBA(n), nil
	case strings.HasPrefix(strings.ToLower(v), "0x"):
		n, err := strconv.ParseUint(v[2:], 16, 32)
		if err != nil {
			return 0, fmt.Errorf("invalid color %q: %w", s, err)
		}
		return RGBA(n), nil
	default:
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return 0, fmt.Errorf("invalid color %q: %w", s, err)
		}
		return RGBA(n), nil
	}
}

// Value returns the packed color.
func (c RGBA) Value() uint32 { return uint32(c) }

func (c RGBA) String() string { return fmt.Sprintf("#%08X", uint32(c)) }

// MarshalText implements encoding.TextMarshaler.
func (c RGBA) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *RGBA) UnmarshalText(b []byte) error {
	v, err := ParseRGBA(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}
