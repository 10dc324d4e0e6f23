package auth

import (
	"bytes"
	"crypto/cipher"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"
)

// Role selects the nonce space a side seals with, so the two directions
// never share a nonce under the same key.
type Role byte

const (
	RoleClient Role = 'C'
	RoleServer Role = 'S'
)

const maxFrameSize = 64 * 1024

// Conn frames every Write as len[4] | nonce[12] | ChaCha20-Poly1305
// ciphertext. The nonce is role[1] | zero[3] | counter[8]; received
// counters must increase by one, which rejects replayed or reordered frames.
type Conn struct {
	net.Conn
	r    io.Reader
	aead cipher.AEAD
	role Role

	wmu     sync.Mutex
	sendCtr uint64

	recvCtr uint64
	recvBuf bytes.Buffer
}

// WrapConn encrypts conn with sessionKey. Reads come from r, which may be a
// bufio.Reader that already buffered part of the stream; nil means conn.
func WrapConn(conn net.Conn, r io.Reader, sessionKey []byte, role Role) (*Conn, error) {
	aead, err := chacha20poly1305.New(sessionKey)
	if err != nil {
		return nil, err
	}
	if r == nil {
		r = conn
	}
	return &Conn{Conn: conn, r: r, aead: aead, role: role}, nil
}

func (c *Conn) Write(p []byte) (int, error) {
	c.wmu.Lock()
	defer c.wmu.Unlock()

	frame := make([]byte, 4+chacha20poly1305.NonceSize, 4+chacha20poly1305.NonceSize+len(p)+c.aead.Overhead())
	nonce := frame[4:]
	nonce[0] = byte(c.role)
	binary.BigEndian.PutUint64(nonce[4:], c.sendCtr)
	c.sendCtr++

	frame = c.aead.Seal(frame, nonce, p, nil)
	binary.BigEndian.PutUint32(frame[:4], uint32(len(frame)-4))
	if _, err := c.Conn.Write(frame); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Read is not safe for concurrent use.
func (c *Conn) Read(p []byte) (int, error) {
	if c.recvBuf.Len() == 0 {
		if err := c.readFrame(); err != nil {
			return 0, err
		}
	}
	return c.recvBuf.Read(p)
}

func (c *Conn) readFrame() error {
	var hdr [4]byte
	if _, err := io.ReadFull(c.r, hdr[:]); err != nil {
		return err
	}
	length := binary.BigEndian.Uint32(hdr[:])
	if length < chacha20poly1305.NonceSize || length > maxFrameSize {
		return fmt.Errorf("encrypted frame length %d: %w", length, io.ErrUnexpectedEOF)
	}
	pkt := make([]byte, length)
	if _, err := io.ReadFull(c.r, pkt); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return err
	}

	nonce, ct := pkt[:chacha20poly1305.NonceSize], pkt[chacha20poly1305.NonceSize:]
	if Role(nonce[0]) == c.role {
		return fmt.Errorf("encrypted frame: reflected nonce")
	}
	if ctr := binary.BigEndian.Uint64(nonce[4:]); ctr != c.recvCtr {
		return fmt.Errorf("encrypted frame: counter %d, want %d", ctr, c.recvCtr)
	}
	pt, err := c.aead.Open(ct[:0], nonce, ct, nil)
	if err != nil {
		return fmt.Errorf("encrypted frame: %w", err)
	}
	c.recvCtr++
	c.recvBuf.Write(pt)
	return nil
}
