// Package network implements a controller.Source fed by a remote session.
//
// A reader goroutine decodes fixed-size frames of the session's family and
// keeps only the newest one. GetInput waits a bounded time for a fresh frame;
// once the remote side goes away the source reports inactive so the bridge
// detaches its slots. Rumble changes are queued and written back by the
// bridge's output loop.
package network

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Alia5/padbridge/controller"
	"github.com/Alia5/padbridge/input"
	"github.com/Alia5/padbridge/internal/log"
)

// DefaultPollTimeout bounds how long GetInput waits for a frame.
const DefaultPollTimeout = 20 * time.Millisecond

const outboundDepth = 4

// Option configures a Source.
type Option func(*Source)

// WithPollTimeout sets how long GetInput waits for a fresh frame.
func WithPollTimeout(d time.Duration) Option { return func(s *Source) { s.pollTimeout = d } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(s *Source) { s.logger = l } }

// WithRawLogger records every frame read or written under the name remote.
func WithRawLogger(raw log.RawLogger, remote string) Option {
	return func(s *Source) {
		s.raw = raw
		s.remote = remote
	}
}

// Source is a controller.Source reading frames from conn.
type Source struct {
	conn        io.ReadWriteCloser
	family      Family
	cfg         *controller.Config
	pollTimeout time.Duration
	logger      *slog.Logger
	raw         log.RawLogger
	remote      string

	latest chan input.Sample
	done   chan struct{}
	active atomic.Bool
	sample input.Sample // owned by the GetInput caller

	outbound   chan []byte
	rumbleMu   sync.Mutex
	lastRumble [2]uint8
	rumbleSent bool

	startOnce sync.Once
	stopOnce  sync.Once
	closing   atomic.Bool
	readErr   error
}

// New returns a Source for a connection that already passed the session
// handshake. The Source takes ownership of conn.
func New(conn io.ReadWriteCloser, family Family, cfg *controller.Config, opts ...Option) *Source {
	s := &Source{
		conn:        conn,
		family:      family,
		cfg:         cfg,
		pollTimeout: DefaultPollTimeout,
		latest:      make(chan input.Sample, 1),
		done:        make(chan struct{}),
		outbound:    make(chan []byte, outboundDepth),
	}
	for _, o := range opts {
		o(s)
	}
	s.logger = log.Or(s.logger).With("family", family.Name())
	if s.raw == nil {
		s.raw = log.NewRaw(nil)
	}
	if s.cfg == nil {
		s.cfg = controller.DefaultConfig()
	}
	return s
}

// Initialize starts the frame reader.
func (s *Source) Initialize() error {
	if s.family.FrameSize() <= 0 {
		return fmt.Errorf("family %s: invalid frame size %d", s.family.Name(), s.family.FrameSize())
	}
	s.startOnce.Do(func() {
		s.active.Store(true)
		go s.readLoop()
	})
	return nil
}

// Exit closes the connection and waits for the reader to stop.
func (s *Source) Exit() {
	s.stopOnce.Do(func() {
		s.closing.Store(true)
		_ = s.conn.Close()
	})
	// never initialized: no reader will close done
	s.startOnce.Do(func() { close(s.done) })
	<-s.done
}

// Done is closed when the remote side disconnects or the source exits.
func (s *Source) Done() <-chan struct{} { return s.done }

// Err returns the read error that ended the session, nil on a clean close.
func (s *Source) Err() error {
	select {
	case <-s.done:
		return s.readErr
	default:
		return nil
	}
}

// IsActive reports whether the remote side is still connected.
func (s *Source) IsActive() bool { return s.active.Load() }

// GetInput waits for the next frame. It returns controller.ErrNoInput when
// none arrives within the poll timeout, and nil without a new sample once the
// remote side is gone; IsActive then reports false.
func (s *Source) GetInput() error {
	select {
	case smp := <-s.latest:
		s.sample = smp
		return nil
	default:
	}

	t := time.NewTimer(s.pollTimeout)
	defer t.Stop()
	select {
	case smp := <-s.latest:
		s.sample = smp
		return nil
	case <-s.done:
		return nil
	case <-t.C:
		return controller.ErrNoInput
	}
}

// GetNormalizedSample returns the last sample read by GetInput.
func (s *Source) GetNormalizedSample() input.Sample { return s.sample }

// DrainOutbound writes one queued frame to the remote side.
func (s *Source) DrainOutbound() error {
	select {
	case frame := <-s.outbound:
		s.raw.Frame(s.remote, false, frame)
		if _, err := s.conn.Write(frame); err != nil {
			return fmt.Errorf("write rumble: %w", err)
		}
		return nil
	default:
		return controller.ErrNoOutbound
	}
}

// SetRumble queues a rumble frame when the value differs from the last one
// queued. When the queue is full the oldest frame is dropped.
func (s *Source) SetRumble(high, low uint8) {
	s.rumbleMu.Lock()
	defer s.rumbleMu.Unlock()
	v := [2]uint8{high, low}
	if s.rumbleSent && v == s.lastRumble {
		return
	}
	s.lastRumble = v
	s.rumbleSent = true

	frame := s.family.EncodeRumble(high, low)
	for {
		select {
		case s.outbound <- frame:
			return
		default:
		}
		select {
		case <-s.outbound:
		default:
		}
	}
}

// GetConfig returns the session's controller configuration.
func (s *Source) GetConfig() *controller.Config { return s.cfg }

// GetCapabilities reports an outbound queue and rumble support.
func (s *Source) GetCapabilities() controller.Capability {
	return controller.CapPairing | controller.CapRumble
}

func (s *Source) readLoop() {
	defer close(s.done)
	defer s.active.Store(false)

	buf := make([]byte, s.family.FrameSize())
	for {
		if _, err := io.ReadFull(s.conn, buf); err != nil {
			if s.closing.Load() || errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				s.logger.Info("remote controller disconnected")
				return
			}
			s.readErr = err
			s.logger.Warn("remote controller read failed", "error", err)
			return
		}
		s.raw.Frame(s.remote, true, buf)

		var smp input.Sample
		if err := s.family.Decode(buf, &smp); err != nil {
			s.logger.Debug("frame dropped", "error", err)
			continue
		}
		s.publish(smp)
	}
}

// publish keeps only the newest sample. readLoop is the only sender.
func (s *Source) publish(smp input.Sample) {
	select {
	case s.latest <- smp:
		return
	default:
	}
	select {
	case <-s.latest:
	default:
	}
	s.latest <- smp
}

var _ controller.Source = (*Source)(nil)
