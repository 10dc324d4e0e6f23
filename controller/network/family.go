package network

import (
	"fmt"
	"slices"
	"sync"

	"github.com/Alia5/padbridge/input"
)

// Family is a controller wire format a remote session can stream.
type Family interface {
	// Name is the identifier clients send in the session request.
	Name() string
	// FrameSize is the fixed size of one input frame.
	FrameSize() int
	// Decode fills s from one frame of FrameSize bytes.
	Decode(frame []byte, s *input.Sample) error
	// EncodeRumble builds the frame sent back to the client.
	EncodeRumble(high, low uint8) []byte
	// DecodeRumble is the inverse of EncodeRumble, for clients.
	DecodeRumble(frame []byte) (high, low uint8, err error)
	// RumbleSize is the size of one rumble frame.
	RumbleSize() int
}

var (
	familyMu sync.RWMutex
	families = map[string]Family{}
)

// RegisterFamily makes a family available to sessions. Families register
// themselves from init; registering a name twice panics.
func RegisterFamily(f Family) {
	familyMu.Lock()
	defer familyMu.Unlock()
	if _, dup := families[f.Name()]; dup {
		panic(fmt.Sprintf("network: family %q registered twice", f.Name()))
	}
	families[f.Name()] = f
}

// LookupFamily returns the family registered under name.
func LookupFamily(name string) (Family, bool) {
	familyMu.RLock()
	defer familyMu.RUnlock()
	f, ok := families[name]
	return f, ok
}

// Families lists the registered family names, sorted.
func Families() []string {
	familyMu.RLock()
	defer familyMu.RUnlock()
	names := make([]string, 0, len(families))
	for n := range families {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}
