package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/luma/beacon/protocol"
)

var (
	ErrNotConnected    = errors.New("Client is not connected")
	ErrUnexpectedReply = errors.New("Unexpected reply from server")

	// aLongTimeAgo is a deadline in the past, setting it interrupts blocked
	// reads and writes.
	aLongTimeAgo = time.Unix(1, 0)
)

// Conn is a connection to a Beacon server, or any other server that speaks
// RESP. Commands are sent one at a time, Conn is safe for concurrent use but
// callers will wait on each other.
type Conn struct {
	mu   sync.Mutex
	conn net.Conn
	buf  []byte

	log *zap.Logger
}

func New(log *zap.Logger) *Conn {
	if log == nil {
		log = zap.NewNop()
	}

	return &Conn{
		log: log,
	}
}

// Wrap returns a Conn that talks over an already established connection.
func Wrap(conn net.Conn, log *zap.Logger) *Conn {
	c := New(log)
	c.conn = conn

	return c
}

// Dial is a shortcut for New followed by Connect.
func Dial(ctx context.Context, addr string, log *zap.Logger) (*Conn, error) {
	c := New(log)

	if err := c.Connect(ctx, addr); err != nil {
		return nil, err
	}

	return c, nil
}

func (c *Conn) Connect(ctx context.Context, addr string) error {
	var d net.Dialer

	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.buf = c.buf[:0]
	c.mu.Unlock()

	c.log.Debug("Connected", zap.String("addr", addr))

	return nil
}

func (c *Conn) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}

	err := c.conn.Close()
	c.conn = nil

	return err
}

// Do sends a command and waits for its reply. Error replies from the server
// are returned as a Value, not an error. The returned error is only set when
// the exchange itself failed, in which case the connection should be
// discarded.
func (c *Conn) Do(ctx context.Context, args ...string) (protocol.Value, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return protocol.Value{}, ErrNotConnected
	}

	conn := c.conn

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return protocol.Value{}, err
		}
	}

	interrupted := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		if err := conn.SetDeadline(aLongTimeAgo); err != nil {
			c.log.Debug("Failed to interrupt connection", zap.Error(err))
		}
		close(interrupted)
	})

	defer func() {
		if !stop() {
			<-interrupted
		}

		if err := conn.SetDeadline(time.Time{}); err != nil {
			c.log.Debug("Failed to clear deadline", zap.Error(err))
		}
	}()

	reply, err := c.roundTrip(args)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return protocol.Value{}, ctxErr
		}

		// The socket deadline can fire a moment before ctx notices
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			if deadline, ok := ctx.Deadline(); ok && !time.Now().Before(deadline) {
				return protocol.Value{}, context.DeadlineExceeded
			}
		}

		return protocol.Value{}, err
	}

	return reply, nil
}

func (c *Conn) roundTrip(args []string) (protocol.Value, error) {
	if _, err := c.conn.Write(protocol.EncodeCommand(args...)); err != nil {
		return protocol.Value{}, fmt.Errorf("Failed to send %s: %w", args[0], err)
	}

	chunk := make([]byte, 1024)

	for {
		reply, n, err := protocol.Decode(c.buf)
		if err != nil {
			return protocol.Value{}, err
		}

		if n > 0 {
			c.buf = append(c.buf[:0], c.buf[n:]...)
			return reply, nil
		}

		read, err := c.conn.Read(chunk)
		c.buf = append(c.buf, chunk[:read]...)

		if err != nil && read == 0 {
			return protocol.Value{}, fmt.Errorf("Failed to read reply to %s: %w", args[0], err)
		}
	}
}

func (c *Conn) Ping(ctx context.Context) error {
	reply, err := c.Do(ctx, string(protocol.PING))
	if err != nil {
		return err
	}

	return expectStatus(reply, "PONG")
}

// Get returns the value of key. ok is false if the key has never been set.
func (c *Conn) Get(ctx context.Context, key string) (value string, ok bool, err error) {
	reply, err := c.Do(ctx, string(protocol.GET), key)
	if err != nil {
		return "", false, err
	}

	if err := reply.Err(); err != nil {
		return "", false, err
	}

	if reply.Kind != protocol.KindBulk {
		return "", false, fmt.Errorf("%w: %s reply to GET", ErrUnexpectedReply, reply.Kind)
	}

	if reply.IsNull() {
		return "", false, nil
	}

	return string(reply.Bulk), true, nil
}

func (c *Conn) Set(ctx context.Context, key string, value string) error {
	reply, err := c.Do(ctx, string(protocol.SET), key, value)
	if err != nil {
		return err
	}

	return expectStatus(reply, "OK")
}

func expectStatus(reply protocol.Value, status string) error {
	if err := reply.Err(); err != nil {
		return err
	}

	if reply.Kind != protocol.KindStatus || reply.Str != status {
		return fmt.Errorf("%w: expected %s, got %s %q",
			ErrUnexpectedReply, status, reply.Kind, reply.String())
	}

	return nil
}
