package auth_test

import (
	"bytes"
	"encoding/binary"
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alia5/padbridge/internal/session/auth"
)

func sessionKey() []byte {
	k := make([]byte, 32)
	for i := range k {
		k[i] = byte(i * 7)
	}
	return k
}

func wrappedPair(t *testing.T) (client, server *auth.Conn) {
	t.Helper()
	cc, sc := net.Pipe()
	t.Cleanup(func() {
		cc.Close()
		sc.Close()
	})
	client, err := auth.WrapConn(cc, nil, sessionKey(), auth.RoleClient)
	require.NoError(t, err)
	server, err = auth.WrapConn(sc, nil, sessionKey(), auth.RoleServer)
	require.NoError(t, err)
	return client, server
}

func TestConnRoundTrip(t *testing.T) {
	client, server := wrappedPair(t)

	msgs := [][]byte{[]byte("normalized\x00"), {1, 2, 3, 4}, bytes.Repeat([]byte{0xAB}, 4096)}
	go func() {
		for _, m := range msgs {
			_, _ = client.Write(m)
		}
	}()
	for _, want := range msgs {
		got := make([]byte, len(want))
		_, err := io.ReadFull(server, got)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	go func() { _, _ = server.Write([]byte{255, 0}) }()
	got := make([]byte, 2)
	_, err := io.ReadFull(client, got)
	require.NoError(t, err)
	assert.Equal(t, []byte{255, 0}, got)
}

func TestConnPartialReads(t *testing.T) {
	client, server := wrappedPair(t)
	go func() { _, _ = client.Write([]byte("abcdef")) }()

	buf := make([]byte, 4)
	n, err := server.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "abcd", string(buf[:n]))
	n, err = server.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "ef", string(buf[:n]))
}

func TestConnWrongKey(t *testing.T) {
	cc, sc := net.Pipe()
	defer cc.Close()
	defer sc.Close()
	client, err := auth.WrapConn(cc, nil, sessionKey(), auth.RoleClient)
	require.NoError(t, err)
	other := make([]byte, 32)
	server, err := auth.WrapConn(sc, nil, other, auth.RoleServer)
	require.NoError(t, err)

	go func() { _, _ = client.Write([]byte("hello")) }()
	_, err = server.Read(make([]byte, 8))
	assert.Error(t, err)
}

type captureConn struct {
	net.Conn
	buf bytes.Buffer
}

func (c *captureConn) Write(p []byte) (int, error) { return c.buf.Write(p) }

func capturedFrame(t *testing.T, payload string) []byte {
	t.Helper()
	cc := &captureConn{}
	client, err := auth.WrapConn(cc, nil, sessionKey(), auth.RoleClient)
	require.NoError(t, err)
	_, err = client.Write([]byte(payload))
	require.NoError(t, err)
	return cc.buf.Bytes()
}

func TestConnRejectsReflectedFrame(t *testing.T) {
	frame := capturedFrame(t, "ping")
	reader, err := auth.WrapConn(nil, bytes.NewReader(frame), sessionKey(), auth.RoleClient)
	require.NoError(t, err)
	_, err = reader.Read(make([]byte, 8))
	assert.ErrorContains(t, err, "reflected")
}

func TestConnRejectsReplayedFrame(t *testing.T) {
	frame := capturedFrame(t, "ping")
	wire := append(append([]byte{}, frame...), frame...)
	reader, err := auth.WrapConn(nil, bytes.NewReader(wire), sessionKey(), auth.RoleServer)
	require.NoError(t, err)

	buf := make([]byte, 8)
	n, err := reader.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "ping", string(buf[:n]))

	_, err = reader.Read(buf)
	assert.ErrorContains(t, err, "counter 0, want 1")
}

func TestConnRejectsOversizedFrame(t *testing.T) {
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], 1<<30)
	c, err := auth.WrapConn(nil, bytes.NewReader(hdr[:]), sessionKey(), auth.RoleServer)
	require.NoError(t, err)
	_, err = c.Read(make([]byte, 1))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}
