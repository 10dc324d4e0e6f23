package session_test

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alia5/padbridge/apitypes"
	"github.com/Alia5/padbridge/bridge"
	"github.com/Alia5/padbridge/controller"
	"github.com/Alia5/padbridge/controller/xbox360"
	"github.com/Alia5/padbridge/hdl"
	"github.com/Alia5/padbridge/host/memhost"
	"github.com/Alia5/padbridge/input"
	"github.com/Alia5/padbridge/internal/session"
	"github.com/Alia5/padbridge/sessionclient"
)

type testServer struct {
	srv    *session.Server
	bus    *memhost.Bus
	cancel context.CancelFunc
	errCh  chan error
	once   sync.Once
}

func (ts *testServer) addr() string { return ts.srv.Addr().String() }

func (ts *testServer) stop(t *testing.T) {
	t.Helper()
	ts.once.Do(func() {
		ts.cancel()
		select {
		case err := <-ts.errCh:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Error("server did not stop")
		}
	})
}

func startServer(t *testing.T, cfg session.Config, opts ...session.Option) *testServer {
	t.Helper()
	cfg.Addr = "127.0.0.1:0"
	bus := memhost.New(nil)
	defaults := session.BridgeDefaults{
		Slots:          2,
		Controller:     *controller.DefaultConfig(),
		InputInterval:  time.Millisecond,
		OutputInterval: time.Millisecond,
		PollTimeout:    5 * time.Millisecond,
	}
	srv, err := session.New(cfg, defaults, bus, opts...)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	ts := &testServer{srv: srv, bus: bus, cancel: cancel, errCh: make(chan error, 1)}
	go func() { ts.errCh <- srv.ListenAndServe(ctx) }()
	select {
	case <-srv.Ready():
	case err := <-ts.errCh:
		cancel()
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ts.stop(t) })
	return ts
}

func rawRequest(t *testing.T, addr, req string) apitypes.ApiError {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Write([]byte(req))
	require.NoError(t, err)
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	line, err := bufio.NewReader(conn).ReadString('\n')
	require.NoError(t, err)
	var apiErr apitypes.ApiError
	require.NoError(t, json.Unmarshal([]byte(line), &apiErr))
	return apiErr
}

func TestFamilies(t *testing.T) {
	ts := startServer(t, session.Config{})
	fams, err := sessionclient.New(ts.addr()).Families(context.Background())
	require.NoError(t, err)
	assert.Contains(t, fams, "normalized")
	assert.Contains(t, fams, "xbox360")
	assert.Contains(t, fams, "dualshock4")
}

func TestRejectedRequests(t *testing.T) {
	ts := startServer(t, session.Config{})
	tests := []struct {
		name   string
		req    string
		status int
	}{
		{"empty", "\x00", 400},
		{"unknown family", "joystick9000\x00", 404},
		{"bad options", "normalized {nope\x00", 400},
		{"too many slots", `normalized {"slots":9}` + "\x00", 400},
		{"zero slots", `normalized {"slots":0}` + "\x00", 400},
		{"bad color", `normalized {"bodyColor":"#12"}` + "\x00", 400},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			apiErr := rawRequest(t, ts.addr(), tt.req)
			assert.Equal(t, tt.status, apiErr.Status, apiErr.Detail)
		})
	}
	assert.Empty(t, ts.bus.Devices())
}

func TestNormalizedSession(t *testing.T) {
	ts := startServer(t, session.Config{})
	body := controller.RGBA(0xFF0000FF)
	slots := 3
	stream, err := sessionclient.New(ts.addr()).Open(context.Background(), "normalized",
		&apitypes.SessionOptions{BodyColor: &body, Slots: &slots})
	require.NoError(t, err)
	defer stream.Close()
	assert.Equal(t, 3, stream.Slots)

	require.Eventually(t, func() bool { return len(ts.bus.Devices()) == 3 }, 2*time.Second, time.Millisecond)
	for _, d := range ts.bus.Devices() {
		assert.Equal(t, uint32(0xFF0000FF), d.Identity.BodyColor)
	}
	require.Eventually(t, func() bool { return len(ts.srv.Sessions()) == 1 }, 2*time.Second, time.Millisecond)
	assert.Equal(t, "normalized", ts.srv.Sessions()[0].Family)

	var s input.Sample
	s.Buttons[input.ButtonA] = true
	s.SetSelector(1)
	require.NoError(t, stream.Send(&s))

	require.Eventually(t, func() bool {
		devs := ts.bus.Devices()
		return len(devs) == 3 && devs[1].State.Buttons == hdl.KeyA
	}, 2*time.Second, time.Millisecond)
	assert.Equal(t, hdl.Key(0), ts.bus.Devices()[0].State.Buttons)

	ts.bus.SetVibration(0, hdl.VibrationValue{AmpHigh: 1, AmpLow: 0.5})
	got := make(chan [2]uint8, 1)
	go func() {
		for {
			high, low, err := stream.ReadRumble()
			if err != nil {
				return
			}
			if high == 255 {
				got <- [2]uint8{high, low}
				return
			}
		}
	}()
	select {
	case v := <-got:
		assert.Equal(t, [2]uint8{255, 127}, v)
	case <-time.After(2 * time.Second):
		t.Fatal("no rumble received")
	}

	require.NoError(t, stream.Close())
	require.Eventually(t, func() bool {
		return len(ts.bus.Devices()) == 0 && len(ts.srv.Sessions()) == 0
	}, 2*time.Second, time.Millisecond)
	assert.Empty(t, ts.srv.Coordinator().ActiveConnections())
}

func TestXbox360Session(t *testing.T) {
	ts := startServer(t, session.Config{})
	stream, err := sessionclient.New(ts.addr()).Open(context.Background(), xbox360.FamilyName, nil)
	require.NoError(t, err)
	defer stream.Close()
	assert.Equal(t, 2, stream.Slots)

	require.NoError(t, stream.Send(&xbox360.InputState{Buttons: xbox360.ButtonA, RT: 0xFF, Slot: 0}))
	require.Eventually(t, func() bool {
		devs := ts.bus.Devices()
		return len(devs) == 2 && devs[0].State.Buttons == hdl.KeyB|hdl.KeyZR
	}, 2*time.Second, time.Millisecond)

	assert.Error(t, stream.Send(&input.Sample{}), "frame size mismatch")
}

func TestAuthentication(t *testing.T) {
	ts := startServer(t, session.Config{Password: "secret", RequireAuth: true})
	ctx := context.Background()

	_, err := sessionclient.New(ts.addr()).Families(ctx)
	var apiErr *apitypes.ApiError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 401, apiErr.Status)

	_, err = sessionclient.NewWithPassword(ts.addr(), "wrong").Families(ctx)
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 401, apiErr.Status)

	client := sessionclient.NewWithPassword(ts.addr(), "secret")
	fams, err := client.Families(ctx)
	require.NoError(t, err)
	assert.Contains(t, fams, "normalized")

	stream, err := client.Open(ctx, "normalized", nil)
	require.NoError(t, err)
	defer stream.Close()

	var s input.Sample
	s.Buttons[input.ButtonHome] = true
	require.NoError(t, stream.Send(&s))
	require.Eventually(t, func() bool {
		devs := ts.bus.Devices()
		return len(devs) == 2 && devs[0].State.Buttons == hdl.KeyHome
	}, 2*time.Second, time.Millisecond)
}

func TestAuthOptional(t *testing.T) {
	ts := startServer(t, session.Config{Password: "secret", RequireAuth: false})
	_, err := sessionclient.New(ts.addr()).Families(context.Background())
	assert.NoError(t, err)
	_, err = sessionclient.NewWithPassword(ts.addr(), "secret").Families(context.Background())
	assert.NoError(t, err)
}

func TestHandshakeWithoutServerPassword(t *testing.T) {
	ts := startServer(t, session.Config{})
	_, err := sessionclient.NewWithPassword(ts.addr(), "secret").Families(context.Background())
	var apiErr *apitypes.ApiError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 400, apiErr.Status)
}

func TestExclusiveSessions(t *testing.T) {
	ts := startServer(t, session.Config{Exclusive: true})
	client := sessionclient.New(ts.addr())

	first, err := client.Open(context.Background(), "normalized", nil)
	require.NoError(t, err)
	defer first.Close()
	require.Eventually(t, func() bool { return len(ts.srv.Sessions()) == 1 }, 2*time.Second, time.Millisecond)
	firstID := ts.srv.Sessions()[0].ID

	second, err := client.Open(context.Background(), "normalized", nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(ts.srv.Sessions()) == 2 }, 2*time.Second, time.Millisecond)

	coord := ts.srv.Coordinator()
	require.Eventually(t, func() bool { return coord.Gate(firstID).Paused() }, 2*time.Second, time.Millisecond)

	require.NoError(t, second.Close())
	require.Eventually(t, func() bool { return !coord.Gate(firstID).Paused() }, 2*time.Second, time.Millisecond)
	assert.Len(t, coord.ActiveConnections(), 1)
}

func TestSessionLimit(t *testing.T) {
	ts := startServer(t, session.Config{MaxSessions: 1})
	client := sessionclient.New(ts.addr())

	first, err := client.Open(context.Background(), "normalized", nil)
	require.NoError(t, err)
	defer first.Close()
	require.Eventually(t, func() bool { return len(ts.srv.Sessions()) == 1 }, 2*time.Second, time.Millisecond)

	_, err = client.Open(context.Background(), "normalized", nil)
	var apiErr *apitypes.ApiError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 503, apiErr.Status)
}

func TestSessionLimitConcurrentRequests(t *testing.T) {
	ts := startServer(t, session.Config{MaxSessions: 2})
	client := sessionclient.New(ts.addr())

	const attempts = 6
	var (
		mu       sync.Mutex
		opened   []*sessionclient.Stream
		rejected int
		wg       sync.WaitGroup
	)
	for range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			stream, err := client.Open(context.Background(), "normalized", nil)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				var apiErr *apitypes.ApiError
				if assert.ErrorAs(t, err, &apiErr) {
					assert.Equal(t, 503, apiErr.Status)
				}
				rejected++
				return
			}
			opened = append(opened, stream)
		}()
	}
	wg.Wait()
	defer func() {
		for _, s := range opened {
			_ = s.Close()
		}
	}()

	assert.Len(t, opened, 2)
	assert.Equal(t, attempts-2, rejected)
	assert.Len(t, ts.srv.Sessions(), 2)
}

func TestSessionsListedBeforeReply(t *testing.T) {
	ts := startServer(t, session.Config{})
	stream, err := sessionclient.New(ts.addr()).Open(context.Background(), "normalized", nil)
	require.NoError(t, err)
	defer stream.Close()

	infos := ts.srv.Sessions()
	require.Len(t, infos, 1)
	assert.Equal(t, hdl.VibrationHandle(0), infos[0].Vibration)
}

func TestVibrationHandlePerSession(t *testing.T) {
	ts := startServer(t, session.Config{})
	client := sessionclient.New(ts.addr())

	first, err := client.Open(context.Background(), "normalized", nil)
	require.NoError(t, err)
	defer first.Close()
	second, err := client.Open(context.Background(), "normalized", nil)
	require.NoError(t, err)
	defer second.Close()

	handles := map[hdl.VibrationHandle]bool{}
	for _, in := range ts.srv.Sessions() {
		handles[in.Vibration] = true
	}
	assert.Equal(t, map[hdl.VibrationHandle]bool{0: true, 1: true}, handles)

	ts.bus.SetVibration(1, hdl.VibrationValue{AmpHigh: 1, AmpLow: 1})
	rumble := func(s *sessionclient.Stream) <-chan [2]uint8 {
		ch := make(chan [2]uint8, 1)
		go func() {
			for {
				high, low, err := s.ReadRumble()
				if err != nil {
					return
				}
				if high == 255 {
					ch <- [2]uint8{high, low}
					return
				}
			}
		}()
		return ch
	}
	firstRumble, secondRumble := rumble(first), rumble(second)

	select {
	case v := <-secondRumble:
		assert.Equal(t, [2]uint8{255, 255}, v)
	case <-time.After(2 * time.Second):
		t.Fatal("second session got no rumble")
	}
	select {
	case v := <-firstRumble:
		t.Fatalf("first session got rumble meant for the second: %v", v)
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, first.Close())
	require.Eventually(t, func() bool { return len(ts.srv.Sessions()) == 1 }, 2*time.Second, time.Millisecond)
	third, err := client.Open(context.Background(), "normalized", nil)
	require.NoError(t, err)
	defer third.Close()
	var reused bool
	for _, in := range ts.srv.Sessions() {
		if in.Vibration == 0 {
			reused = true
		}
	}
	assert.True(t, reused, "freed vibration handle is reused")
}

type recordingEvents struct {
	mu     sync.Mutex
	events map[string][]bridge.EventKind
}

func (r *recordingEvents) Sink(session string) bridge.EventSink {
	return func(ev bridge.Event) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.events[session] = append(r.events[session], ev.Kind)
	}
}

func (r *recordingEvents) count(kind bridge.EventKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, evs := range r.events {
		for _, k := range evs {
			if k == kind {
				n++
			}
		}
	}
	return n
}

func TestShutdownEndsSessions(t *testing.T) {
	events := &recordingEvents{events: map[string][]bridge.EventKind{}}
	ts := startServer(t, session.Config{}, session.WithEvents(events))

	stream, err := sessionclient.New(ts.addr()).Open(context.Background(), "normalized", nil)
	require.NoError(t, err)
	defer stream.Close()
	require.Eventually(t, func() bool { return events.count(bridge.EventAttached) == 2 }, 2*time.Second, time.Millisecond)

	ts.stop(t)
	assert.Empty(t, ts.bus.Devices())
	assert.Equal(t, 2, events.count(bridge.EventDetached))

	_, _, err = stream.ReadRumble()
	for err == nil {
		_, _, err = stream.ReadRumble()
	}
	assert.Error(t, err)
}
