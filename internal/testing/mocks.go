package testing

import (
	"sync"
	"testing"

	"github.com/Alia5/padbridge/controller"
	"github.com/Alia5/padbridge/input"
)

// MockSource is a scripted controller.Source. Tests set the exported fields,
// then inspect the call counters. Safe for use from the bridge loops.
type MockSource struct {
	mu sync.Mutex

	Active       bool
	Caps         controller.Capability
	Config       *controller.Config
	InitErr      error
	InputErr     error
	DrainErr     error
	Sample       input.Sample
	InitCalls    int
	ExitCalls    int
	InputCalls   int
	DrainCalls   int
	Rumbles      [][2]uint8
	exitObserver func()
}

// CreateMockSource returns an active source with rumble and pairing support,
// the default config and no queued packets.
func CreateMockSource(t *testing.T) *MockSource {
	t.Helper()
	return &MockSource{
		Active:   true,
		Caps:     controller.CapPairing | controller.CapRumble,
		Config:   controller.DefaultConfig(),
		DrainErr: controller.ErrNoOutbound,
	}
}

// OnExit registers fn to run inside Exit.
func (m *MockSource) OnExit(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exitObserver = fn
}

// Set runs fn with the source locked, for changing fields while loops run.
func (m *MockSource) Set(fn func(m *MockSource)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(m)
}

// MockSourceCalls is a point-in-time copy of a MockSource's call record.
type MockSourceCalls struct {
	Init    int
	Exit    int
	Input   int
	Drain   int
	Rumbles [][2]uint8
}

// Calls returns a copy of the call record.
func (m *MockSource) Calls() MockSourceCalls {
	m.mu.Lock()
	defer m.mu.Unlock()
	return MockSourceCalls{
		Init:    m.InitCalls,
		Exit:    m.ExitCalls,
		Input:   m.InputCalls,
		Drain:   m.DrainCalls,
		Rumbles: append([][2]uint8(nil), m.Rumbles...),
	}
}

func (m *MockSource) Initialize() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InitCalls++
	return m.InitErr
}

func (m *MockSource) Exit() {
	m.mu.Lock()
	m.ExitCalls++
	fn := m.exitObserver
	m.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (m *MockSource) IsActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Active
}

func (m *MockSource) GetInput() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InputCalls++
	return m.InputErr
}

func (m *MockSource) GetNormalizedSample() input.Sample {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Sample
}

func (m *MockSource) DrainOutbound() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DrainCalls++
	return m.DrainErr
}

func (m *MockSource) SetRumble(high, low uint8) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Rumbles = append(m.Rumbles, [2]uint8{high, low})
}

func (m *MockSource) GetConfig() *controller.Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Config
}

func (m *MockSource) GetCapabilities() controller.Capability {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Caps
}

var _ controller.Source = (*MockSource)(nil)
