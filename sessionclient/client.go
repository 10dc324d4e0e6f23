// Package sessionclient opens controller sessions on a padbridge server.
package sessionclient

import (
	"bufio"
	"context"
	"encoding"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/Alia5/padbridge/apitypes"
	"github.com/Alia5/padbridge/controller/network"
	_ "github.com/Alia5/padbridge/internal/registry"
)

// Client opens sessions against one server address.
type Client struct {
	addr string
	cfg  Config
}

// New returns a client without authentication.
func New(addr string) *Client { return NewWithConfig(addr, nil) }

// NewWithPassword returns a client that authenticates with password.
func NewWithPassword(addr, password string) *Client {
	cfg := defaultConfig()
	cfg.Password = password
	return NewWithConfig(addr, &cfg)
}

// NewWithConfig returns a client with custom timeouts; nil uses the defaults.
func NewWithConfig(addr string, cfg *Config) *Client {
	c := defaultConfig()
	if cfg != nil {
		c = *cfg
	}
	return &Client{addr: addr, cfg: c}
}

// Families lists the controller families the server accepts.
func (c *Client) Families(ctx context.Context) ([]string, error) {
	conn, _, line, err := dial(ctx, c.addr, c.cfg, []byte("families"))
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	resp, err := parse[apitypes.FamiliesResponse](line)
	if err != nil {
		return nil, err
	}
	return resp.Families, nil
}

// Open starts a session of the given family. opts may be nil.
func (c *Client) Open(ctx context.Context, family string, opts *apitypes.SessionOptions) (*Stream, error) {
	fam, ok := network.LookupFamily(family)
	if !ok {
		return nil, fmt.Errorf("unknown controller family %q", family)
	}
	var payload any
	if opts != nil {
		payload = opts
	}
	req, err := requestLine(family, payload)
	if err != nil {
		return nil, err
	}
	conn, r, line, err := dial(ctx, c.addr, c.cfg, req)
	if err != nil {
		return nil, err
	}
	resp, err := parse[apitypes.SessionResponse](line)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return &Stream{conn: conn, r: r, family: fam, Slots: resp.Slots}, nil
}

// Stream is an open session.
type Stream struct {
	conn   net.Conn
	r      *bufio.Reader
	family network.Family
	wmu    sync.Mutex

	// Slots is the number of emulated devices the server created.
	Slots int
}

// Family returns the session's controller family.
func (s *Stream) Family() network.Family { return s.family }

// Send writes one input frame.
func (s *Stream) Send(frame encoding.BinaryMarshaler) error {
	b, err := frame.MarshalBinary()
	if err != nil {
		return err
	}
	if len(b) != s.family.FrameSize() {
		return fmt.Errorf("frame is %d bytes, %s expects %d", len(b), s.family.Name(), s.family.FrameSize())
	}
	s.wmu.Lock()
	defer s.wmu.Unlock()
	_, err = s.conn.Write(b)
	return err
}

// ReadRumble blocks for the next rumble frame. It returns io.EOF once the
// server ends the session.
func (s *Stream) ReadRumble() (high, low uint8, err error) {
	buf := make([]byte, s.family.RumbleSize())
	if _, err := io.ReadFull(s.r, buf); err != nil {
		return 0, 0, err
	}
	return s.family.DecodeRumble(buf)
}

// Close ends the session.
func (s *Stream) Close() error { return s.conn.Close() }
