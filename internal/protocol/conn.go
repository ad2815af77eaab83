package protocol

import (
	"bufio"
	"context"
	"net"

	"github.com/pkg/errors"
)

const bufferSize = 64 << 10

// Conn frames messages over a stream connection. It is not safe for
// concurrent use; one goroutine owns a Conn for its whole life.
type Conn struct {
	nc net.Conn
	r  *bufio.Reader
	w  *bufio.Writer

	// MaxPayload bounds the payload length accepted by Receive.
	MaxPayload uint32
}

// NewConn wraps an established connection.
func NewConn(nc net.Conn) *Conn {
	return &Conn{
		nc:         nc,
		r:          bufio.NewReaderSize(nc, bufferSize),
		w:          bufio.NewWriterSize(nc, bufferSize),
		MaxPayload: DefaultMaxPayload,
	}
}

// Dial opens a TCP connection to addr. No deadline is applied unless ctx
// carries one.
func Dial(ctx context.Context, addr string) (*Conn, error) {
	var d net.Dialer
	nc, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", addr)
	}
	return NewConn(nc), nil
}

// Send writes m and flushes it to the peer.
func (c *Conn) Send(m Message) error {
	if err := WriteMessage(c.w, m); err != nil {
		return err
	}
	return errors.Wrapf(c.w.Flush(), "flush %s", m.Tag)
}

// Receive blocks until one full message has been read.
func (c *Conn) Receive() (Message, error) {
	return ReadMessage(c.r, c.MaxPayload)
}

// Expect reads one message and fails with ErrUnexpectedMessage unless it
// carries the wanted tag.
func (c *Conn) Expect(want Tag) (Message, error) {
	m, err := c.Receive()
	if err != nil {
		return Message{}, err
	}
	if m.Tag != want {
		return Message{}, errors.Wrapf(ErrUnexpectedMessage, "got %s, want %s", m.Tag, want)
	}
	return m, nil
}

// RemoteAddr returns the peer address.
func (c *Conn) RemoteAddr() net.Addr {
	return c.nc.RemoteAddr()
}

// Close closes the underlying connection without flushing.
func (c *Conn) Close() error {
	return c.nc.Close()
}
