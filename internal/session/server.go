// Package session accepts remote controller connections and runs one bridge
// per connection.
//
// Framing: an optional auth handshake, then `<family>[ SP <json>]\x00`. The
// server answers with one JSON line. On success the connection turns into
// the family's frame stream; on failure it is closed after the error line.
package session

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"regexp"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Alia5/padbridge/apitypes"
	"github.com/Alia5/padbridge/bridge"
	"github.com/Alia5/padbridge/controller"
	"github.com/Alia5/padbridge/controller/network"
	"github.com/Alia5/padbridge/hdl"
	"github.com/Alia5/padbridge/internal/log"
	_ "github.com/Alia5/padbridge/internal/registry"
	"github.com/Alia5/padbridge/internal/session/apierror"
	"github.com/Alia5/padbridge/internal/session/auth"
)

// FamiliesRequest asks the server which controller families it accepts.
const FamiliesRequest = "families"

var wsRegex = regexp.MustCompile(`\s`)

// Config is the session listener configuration.
type Config struct {
	Addr             string        `help:"Session server listen address" default:":3243" env:"PADBRIDGE_SESSION_ADDR"`
	Exclusive        bool          `help:"Only the newest session drives its slots; older sessions pause until it ends" env:"PADBRIDGE_SESSION_EXCLUSIVE"`
	HandshakeTimeout time.Duration `help:"Deadline for the handshake and session request" default:"5s" env:"PADBRIDGE_SESSION_HANDSHAKE_TIMEOUT"`
	MaxSessions      int           `help:"Maximum concurrent sessions, 0 for no limit" default:"0" env:"PADBRIDGE_SESSION_MAX"`
	RequireAuth      bool          `help:"Reject sessions that skip the password handshake" default:"true" env:"PADBRIDGE_SESSION_REQUIRE_AUTH"`
	Password         string        `kong:"-"`
}

// BridgeDefaults is what a session gets when its request sets no options.
type BridgeDefaults struct {
	Slots          int
	Controller     controller.Config
	InputInterval  time.Duration
	OutputInterval time.Duration
	PollTimeout    time.Duration
}

// EventPublisher hands out a bridge event sink per session.
type EventPublisher interface {
	Sink(session string) bridge.EventSink
}

// Info describes a running session.
type Info struct {
	ID      string
	Remote  string
	Family  string
	Slots   int
	Started time.Time
	// Vibration is the host vibration source forwarded to this session. It
	// is the lowest index no other running session holds.
	Vibration hdl.VibrationHandle
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(s *Server) { s.logger = l } }

// WithRawLogger records the frames of every session.
func WithRawLogger(raw log.RawLogger) Option { return func(s *Server) { s.raw = raw } }

// WithEvents publishes the slot events of every session.
func WithEvents(p EventPublisher) Option { return func(s *Server) { s.events = p } }

// Server is the session listener.
type Server struct {
	cfg      Config
	defaults BridgeDefaults
	host     hdl.Service
	coord    *bridge.Coordinator
	logger   *slog.Logger
	raw      log.RawLogger
	events   EventPublisher
	key      []byte

	ln     net.Listener
	ready  chan struct{}
	nextID atomic.Uint64
	wg     sync.WaitGroup

	mu       sync.Mutex
	sessions map[string]Info
}

// New returns a Server. A non-empty cfg.Password enables the handshake.
func New(cfg Config, defaults BridgeDefaults, host hdl.Service, opts ...Option) (*Server, error) {
	if host == nil {
		return nil, errors.New("session server needs a host virtual-device service")
	}
	s := &Server{
		cfg:      cfg,
		defaults: defaults,
		host:     host,
		ready:    make(chan struct{}),
		sessions: make(map[string]Info),
	}
	for _, o := range opts {
		o(s)
	}
	s.logger = log.Or(s.logger)
	if s.raw == nil {
		s.raw = log.NewRaw(nil)
	}
	s.coord = bridge.NewCoordinator(cfg.Exclusive, s.logger)
	if cfg.Password != "" {
		key, err := auth.DeriveKey(cfg.Password)
		if err != nil {
			return nil, err
		}
		s.key = key
	}
	return s, nil
}

// Ready is closed once the listener is bound.
func (s *Server) Ready() <-chan struct{} { return s.ready }

// Addr returns the bound address; valid after Ready.
func (s *Server) Addr() net.Addr { return s.ln.Addr() }

// Coordinator returns the coordinator shared by all sessions.
func (s *Server) Coordinator() *bridge.Coordinator { return s.coord }

// Sessions lists the running sessions ordered by id.
func (s *Server) Sessions() []Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Info, 0, len(s.sessions))
	for _, in := range s.sessions {
		out = append(out, in)
	}
	slices.SortFunc(out, func(a, b Info) int { return strings.Compare(a.ID, b.ID) })
	return out
}

// ListenAndServe serves until ctx ends, then ends every session and returns.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s.cfg.Addr == "" {
		return errors.New("session server address must be set")
	}
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	s.ln = ln
	close(s.ready)
	s.logger.Info("session server listening", "addr", ln.Addr().String(), "auth", s.key != nil, "exclusive", s.cfg.Exclusive)

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		c, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				s.logger.Info("session server stopped")
				s.wg.Wait()
				return nil
			}
			s.logger.Warn("session accept error", "error", err)
			s.wg.Wait()
			return err
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(ctx, c)
		}()
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	remote := conn.RemoteAddr().String()
	connLogger := s.logger.With("remote", remote)

	if tcp, ok := conn.(*net.TCPConn); ok {
		if err := tcp.SetNoDelay(true); err != nil {
			connLogger.Warn("failed to set TCP_NODELAY", "error", err)
		}
	}
	if s.cfg.HandshakeTimeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(s.cfg.HandshakeTimeout))
	}

	stream, r, err := s.negotiate(conn)
	if err != nil {
		connLogger.Warn("session rejected", "error", err)
		s.writeError(stream, err)
		return
	}

	reqData, err := r.ReadString('\x00')
	if err != nil {
		if errors.Is(err, io.EOF) {
			connLogger.Error("session incomplete request (no null terminator)")
		} else {
			connLogger.Error("read session request", "error", err)
		}
		return
	}
	reqData = strings.TrimSuffix(reqData, "\x00")

	var name, payload string
	if loc := wsRegex.FindStringIndex(reqData); loc != nil {
		name, payload = reqData[:loc[0]], reqData[loc[1]:]
	} else {
		name = reqData
	}
	name = strings.ToLower(name)
	if name == "" {
		s.writeError(stream, apierror.ErrBadRequest("empty request"))
		return
	}
	connLogger.Info("session request", "family", name)

	if name == FamiliesRequest {
		s.writeJSON(stream, apitypes.FamiliesResponse{Families: network.Families()})
		return
	}

	fam, ok := network.LookupFamily(name)
	if !ok {
		s.writeError(stream, apierror.ErrNotFound(fmt.Sprintf("unknown controller family: %s", name)))
		return
	}
	cfg, slots, err := s.sessionConfig(payload)
	if err != nil {
		s.writeError(stream, err)
		return
	}

	id := fmt.Sprintf("%d@%s", s.nextID.Add(1), remote)
	info, ok := s.reserve(Info{ID: id, Remote: remote, Family: fam.Name(), Slots: slots, Started: time.Now()})
	if !ok {
		s.writeError(stream, apierror.ErrUnavailable(fmt.Sprintf("session limit of %d reached", s.cfg.MaxSessions)))
		return
	}
	defer s.release(id)

	_ = conn.SetDeadline(time.Time{})
	s.writeJSON(stream, apitypes.SessionResponse{Status: "ok", Family: fam.Name(), Slots: slots})

	s.runSession(ctx, info, &streamConn{r: r, w: stream, c: conn}, fam, cfg, connLogger.With("session", id))
}

// reserve registers a session unless MaxSessions are already running, and
// assigns its vibration handle.
func (s *Server) reserve(info Info) (Info, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfg.MaxSessions > 0 && len(s.sessions) >= s.cfg.MaxSessions {
		return Info{}, false
	}
	used := make(map[hdl.VibrationHandle]bool, len(s.sessions))
	for _, in := range s.sessions {
		used[in.Vibration] = true
	}
	for used[info.Vibration] {
		info.Vibration++
	}
	s.sessions[info.ID] = info
	return info, true
}

func (s *Server) release(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// negotiate runs the handshake when the client starts one. It returns the
// writer responses go to and the reader the request comes from.
func (s *Server) negotiate(conn net.Conn) (io.Writer, *bufio.Reader, error) {
	br := bufio.NewReader(conn)
	isHandshake, err := auth.IsHandshake(br)
	if err != nil {
		return conn, nil, fmt.Errorf("read request: %w", err)
	}
	if !isHandshake {
		if s.key != nil && s.cfg.RequireAuth {
			return conn, nil, apierror.ErrUnauthorized("authentication required")
		}
		return conn, br, nil
	}
	if s.key == nil {
		return conn, nil, apierror.ErrBadRequest("server has no password set")
	}
	clientNonce, serverNonce, err := auth.ServerHandshake(br, conn, s.key)
	if err != nil {
		return conn, nil, err
	}
	ac, err := auth.WrapConn(conn, br, auth.DeriveSessionKey(s.key, serverNonce, clientNonce), auth.RoleServer)
	if err != nil {
		return conn, nil, err
	}
	return ac, bufio.NewReader(ac), nil
}

func (s *Server) sessionConfig(payload string) (*controller.Config, int, error) {
	cfg := s.defaults.Controller
	slots := s.defaults.Slots
	if strings.TrimSpace(payload) != "" {
		var opts apitypes.SessionOptions
		if err := json.Unmarshal([]byte(payload), &opts); err != nil {
			return nil, 0, apierror.ErrBadRequest(fmt.Sprintf("invalid session options: %v", err))
		}
		opts.Apply(&cfg)
		if opts.Slots != nil {
			slots = *opts.Slots
		}
	}
	if slots < 1 || slots > bridge.MaxSlots {
		return nil, 0, apierror.ErrBadRequest(fmt.Sprintf("slots must be in [1,%d], got %d", bridge.MaxSlots, slots))
	}
	return &cfg, slots, nil
}

func (s *Server) runSession(ctx context.Context, info Info, stream io.ReadWriteCloser, fam network.Family, cfg *controller.Config, logger *slog.Logger) {
	src := network.New(stream, fam, cfg,
		network.WithPollTimeout(s.defaults.PollTimeout),
		network.WithLogger(logger),
		network.WithRawLogger(s.raw, info.Remote),
	)

	opts := []bridge.Option{
		bridge.WithSlots(info.Slots),
		bridge.WithLogger(logger),
		bridge.WithPauseGate(s.coord.Gate(info.ID)),
		bridge.WithVibrationHandle(info.Vibration),
	}
	if s.defaults.InputInterval > 0 {
		opts = append(opts, bridge.WithInputInterval(s.defaults.InputInterval))
	}
	if s.defaults.OutputInterval > 0 {
		opts = append(opts, bridge.WithOutputInterval(s.defaults.OutputInterval))
	}
	if s.events != nil {
		opts = append(opts, bridge.WithEvents(s.events.Sink(info.ID)))
	}

	s.coord.RegisterActiveConnection(info.ID)
	defer s.coord.UnregisterActiveConnection(info.ID)

	b := bridge.New(src, s.host, opts...)
	if err := b.Initialize(); err != nil {
		logger.Error("bridge initialize failed", "error", err)
		src.Exit()
		return
	}

	logger.Info("session started", "family", info.Family, "slots", info.Slots, "vibration", info.Vibration)
	select {
	case <-src.Done():
	case <-ctx.Done():
	}
	b.Exit()
	if err := src.Err(); err != nil {
		logger.Warn("session ended", "error", err)
		return
	}
	logger.Info("session ended")
}

func (s *Server) writeError(w io.Writer, err error) {
	problemJSON, _ := json.Marshal(apierror.Wrap(err))
	fmt.Fprintf(w, "%s\n", problemJSON)
}

func (s *Server) writeJSON(w io.Writer, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		s.writeError(w, err)
		return
	}
	fmt.Fprintf(w, "%s\n", b)
}

// streamConn reads through the request's buffered reader so frames the
// client sent right after the request are not lost.
type streamConn struct {
	r io.Reader
	w io.Writer
	c io.Closer
}

func (c *streamConn) Read(p []byte) (int, error) { return c.r.Read(p) }
func (c *streamConn) Write(p []byte) (int, error) { return c.w.Write(p) }
func (c *streamConn) Close() error                { return c.c.Close() }
