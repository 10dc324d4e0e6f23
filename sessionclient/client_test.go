package sessionclient

import (
	"bufio"
	"context"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alia5/padbridge/apitypes"
	"github.com/Alia5/padbridge/controller/network"
	"github.com/Alia5/padbridge/input"
)

// fakeServer answers one connection: it records the request and replies
// with response, then runs after if set.
func fakeServer(t *testing.T, response string, after func(net.Conn)) (string, <-chan string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	reqCh := make(chan string, 1)
	go func() {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		defer c.Close()
		req, err := bufio.NewReader(c).ReadString('\x00')
		if err != nil {
			return
		}
		reqCh <- strings.TrimSuffix(req, "\x00")
		_, _ = c.Write([]byte(response + "\n"))
		if after != nil {
			after(c)
		}
	}()
	return ln.Addr().String(), reqCh
}

func TestRequestLine(t *testing.T) {
	slots := 2
	tests := []struct {
		name    string
		family  string
		payload any
		want    string
	}{
		{"bare", "normalized", nil, "normalized"},
		{"options", "xbox360", &apitypes.SessionOptions{Slots: &slots}, `xbox360 {"slots":2}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := requestLine(tt.family, tt.payload)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestParse(t *testing.T) {
	resp, err := parse[apitypes.SessionResponse](`{"status":"ok","family":"normalized","slots":4}`)
	require.NoError(t, err)
	assert.Equal(t, 4, resp.Slots)

	_, err = parse[apitypes.SessionResponse](`{"status":404,"title":"Not Found","detail":"nope"}`)
	var apiErr *apitypes.ApiError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 404, apiErr.Status)

	_, err = parse[apitypes.SessionResponse]("")
	assert.Error(t, err)
	_, err = parse[apitypes.SessionResponse]("not json")
	assert.Error(t, err)
}

func TestFamilies(t *testing.T) {
	addr, reqCh := fakeServer(t, `{"families":["normalized","xbox360"]}`, nil)
	fams, err := New(addr).Families(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"normalized", "xbox360"}, fams)
	assert.Equal(t, "families", <-reqCh)
}

func TestOpenUnknownFamily(t *testing.T) {
	_, err := New("127.0.0.1:1").Open(context.Background(), "joystick9000", nil)
	assert.ErrorContains(t, err, "unknown controller family")
}

func TestOpenRejected(t *testing.T) {
	addr, _ := fakeServer(t, `{"status":400,"title":"Bad Request","detail":"slots must be in [1,8], got 9"}`, nil)
	_, err := New(addr).Open(context.Background(), network.NormalizedFamily, nil)
	var apiErr *apitypes.ApiError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 400, apiErr.Status)
}

func TestStream(t *testing.T) {
	frames := make(chan []byte, 1)
	addr, reqCh := fakeServer(t, `{"status":"ok","family":"normalized","slots":2}`, func(c net.Conn) {
		_, _ = c.Write([]byte{200, 100})
		buf := make([]byte, input.FrameSize)
		_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
		if _, err := io.ReadFull(c, buf); err == nil {
			frames <- buf
		}
	})

	stream, err := New(addr).Open(context.Background(), network.NormalizedFamily, nil)
	require.NoError(t, err)
	defer stream.Close()
	assert.Equal(t, "normalized", <-reqCh)
	assert.Equal(t, 2, stream.Slots)
	assert.Equal(t, network.NormalizedFamily, stream.Family().Name())

	high, low, err := stream.ReadRumble()
	require.NoError(t, err)
	assert.Equal(t, uint8(200), high)
	assert.Equal(t, uint8(100), low)

	var s input.Sample
	s.Buttons[input.ButtonY] = true
	require.NoError(t, stream.Send(&s))
	select {
	case got := <-frames:
		var back input.Sample
		require.NoError(t, back.UnmarshalBinary(got))
		assert.True(t, back.Buttons[input.ButtonY])
	case <-time.After(2 * time.Second):
		t.Fatal("frame not received")
	}
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New("127.0.0.1:1").Families(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
