package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrNotConnected is returned by Send and Receive before Connect succeeds or
// after Close.
var ErrNotConnected = errors.New("transport not connected")

// Conn is an ordered, reliable framed message channel over a stream
// connection. Send is safe for concurrent use; Receive must be called from a
// single goroutine.
type Conn struct {
	addr        string
	dialTimeout time.Duration

	mu   sync.Mutex // guards conn and writes
	conn net.Conn
	r    *bufio.Reader
}

// NewTCPConn creates an unconnected channel to addr.
func NewTCPConn(addr string, dialTimeout time.Duration) *Conn {
	return &Conn{addr: addr, dialTimeout: dialTimeout}
}

// Wrap adopts an established connection (accepted server side, or one end of
// a net.Pipe in tests).
func Wrap(conn net.Conn) *Conn {
	return &Conn{addr: conn.RemoteAddr().String(), conn: conn, r: bufio.NewReader(conn)}
}

// Connect dials the remote address. Connecting an already connected channel
// is a no-op.
func (c *Conn) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return nil
	}
	d := net.Dialer{Timeout: c.dialTimeout}
	conn, err := d.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", c.addr, err)
	}
	c.conn = conn
	c.r = bufio.NewReader(conn)
	logrus.Infof("transport: connected to %s", c.addr)
	return nil
}

// Send writes one frame.
func (c *Conn) Send(f Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return ErrNotConnected
	}
	return WriteFrame(c.conn, f)
}

// Receive blocks until a frame arrives, the connection fails, or Close is
// called.
func (c *Conn) Receive() (Frame, error) {
	c.mu.Lock()
	r := c.r
	c.mu.Unlock()
	if r == nil {
		return Frame{}, ErrNotConnected
	}
	return ReadFrame(r)
}

// Close disconnects. Closing twice is a no-op.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	c.r = nil
	logrus.Infof("transport: disconnected from %s", c.addr)
	return err
}

// Addr returns the remote address.
func (c *Conn) Addr() string {
	return c.addr
}
