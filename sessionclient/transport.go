package sessionclient

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/Alia5/padbridge/apitypes"
	"github.com/Alia5/padbridge/internal/session/auth"
)

// Config controls dialing, timeouts and authentication.
type Config struct {
	DialTimeout time.Duration
	// ResponseTimeout bounds the handshake and the wait for the response line.
	ResponseTimeout time.Duration
	Password        string
}

func defaultConfig() Config {
	return Config{
		DialTimeout:     3 * time.Second,
		ResponseTimeout: 5 * time.Second,
	}
}

// dial connects, authenticates when a password is set, sends the request
// line and reads the single response line. The returned reader continues
// the stream after the response.
func dial(ctx context.Context, addr string, cfg Config, request []byte) (net.Conn, *bufio.Reader, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, "", fmt.Errorf("dial: %w", err)
	}
	d := &net.Dialer{Timeout: cfg.DialTimeout}
	raw, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, nil, "", fmt.Errorf("dial: %w", err)
	}
	if tcp, ok := raw.(*net.TCPConn); ok {
		if err := tcp.SetNoDelay(true); err != nil {
			slog.Warn("failed to set TCP_NODELAY", "error", err)
		}
	}
	if cfg.ResponseTimeout > 0 {
		_ = raw.SetDeadline(time.Now().Add(cfg.ResponseTimeout))
	}

	var conn net.Conn = raw
	r := bufio.NewReader(raw)
	if cfg.Password != "" {
		key, err := auth.DeriveKey(cfg.Password)
		if err != nil {
			raw.Close()
			return nil, nil, "", err
		}
		clientNonce, serverNonce, err := auth.ClientHandshake(r, raw, key)
		if err != nil {
			raw.Close()
			return nil, nil, "", err
		}
		ac, err := auth.WrapConn(raw, r, auth.DeriveSessionKey(key, serverNonce, clientNonce), auth.RoleClient)
		if err != nil {
			raw.Close()
			return nil, nil, "", err
		}
		conn = ac
		r = bufio.NewReader(ac)
	}

	if _, err := conn.Write(append(request, '\x00')); err != nil {
		conn.Close()
		return nil, nil, "", fmt.Errorf("write: %w", err)
	}
	line, err := r.ReadString('\n')
	if err != nil && (line == "" || !errors.Is(err, io.EOF)) {
		conn.Close()
		return nil, nil, "", fmt.Errorf("read: %w", err)
	}
	_ = raw.SetDeadline(time.Time{})
	return conn, r, strings.TrimSuffix(line, "\n"), nil
}

func requestLine(name string, payload any) ([]byte, error) {
	if payload == nil {
		return []byte(name), nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode options: %w", err)
	}
	return append([]byte(name+" "), b...), nil
}

func parse[T any](data string) (*T, error) {
	if data == "" {
		return nil, errors.New("empty response")
	}
	var problem apitypes.ApiError
	if err := json.Unmarshal([]byte(data), &problem); err == nil && (problem.Status != 0 || problem.Title != "") {
		return nil, &problem
	}
	var out T
	dec := json.NewDecoder(bytes.NewReader([]byte(data)))
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return &out, nil
}
