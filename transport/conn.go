package transport

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/luma/beacon/protocol"
	"github.com/luma/beacon/storage"
)

const (
	// ReadChunkSize is the most we read from a connection in one go
	ReadChunkSize = 1024

	// InitialBufferSize is the starting capacity of a connection's input buffer
	InitialBufferSize = 4096

	// ErrorWriteTimeout bounds how long we try to tell a client why we're
	// dropping it.
	ErrorWriteTimeout = time.Second
)

var (
	ErrBufferLimit = fmt.Errorf("%w: buffer limit exceeded", protocol.ErrProtocol)
)

// Conn serves a single client connection. It reads requests into a buffer,
// executes every complete one against the store and writes the replies back
// in order.
type Conn struct {
	id   ulid.ULID
	conn net.Conn

	store   storage.Store
	metrics *Metrics

	// buf holds input that has been read but not yet consumed as a frame
	buf           []byte
	maxBufferSize int

	closed atomic.Bool

	trace bool
	log   *zap.Logger
}

// NewConn wraps conn. Store, Metrics and Log are taken from options and must
// be set.
func NewConn(conn net.Conn, options Options) *Conn {
	id := ulid.Make()

	return &Conn{
		id:            id,
		conn:          conn,
		store:         options.Store,
		metrics:       options.Metrics,
		buf:           make([]byte, 0, InitialBufferSize),
		maxBufferSize: options.MaxBufferSize,
		trace:         options.Trace,
		log: options.Log.With(
			zap.String("conn", id.String()),
			zap.Stringer("remote", conn.RemoteAddr())),
	}
}

func (c *Conn) ID() ulid.ULID {
	return c.id
}

// Close closes the underlying connection, which makes Serve return. It's safe
// to call more than once.
func (c *Conn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	return c.conn.Close()
}

// Serve runs until the client disconnects, the connection is closed or an
// error occurs. A client disconnecting, or Close being called, is not an
// error. Protocol violations return an error wrapping protocol.ErrProtocol.
//
// Serve does not close the connection, that's up to the caller.
func (c *Conn) Serve() error {
	c.metrics.ConnectionsActive.Inc()
	defer c.metrics.ConnectionsActive.Dec()

	chunk := make([]byte, ReadChunkSize)

	for {
		n, err := c.conn.Read(chunk)

		// Process what we got before looking at err, a read can return both
		// data and io.EOF.
		if n > 0 {
			if c.trace {
				c.log.Debug("Read", zap.ByteString("data", chunk[:n]))
			}

			c.buf = append(c.buf, chunk[:n]...)

			if perr := c.processBuffer(); perr != nil {
				return perr
			}
		}

		if err != nil {
			if errors.Is(err, io.EOF) || c.closed.Load() {
				return nil
			}

			return fmt.Errorf("Failed to read from connection: %w", err)
		}
	}
}

// processBuffer handles every complete frame in the buffer, then drops them
// from it.
func (c *Conn) processBuffer() error {
	consumed := 0

	for {
		frame, n, err := protocol.Decode(c.buf[consumed:])
		if err != nil {
			c.metrics.ProtocolErrors.Inc()
			c.writeErrorAndGiveUp(err)

			return err
		}

		if n == 0 {
			// Incomplete, we need another read
			break
		}

		consumed += n

		reply := c.handleFrame(frame)

		if c.trace {
			c.log.Debug("Reply", zap.Stringer("reply", reply))
		}

		if err := protocol.WriteValue(c.conn, reply); err != nil {
			return fmt.Errorf("Failed to write reply: %w", err)
		}
	}

	c.buf = append(c.buf[:0], c.buf[consumed:]...)

	if c.maxBufferSize > 0 && len(c.buf) > c.maxBufferSize {
		c.metrics.ProtocolErrors.Inc()
		c.writeErrorAndGiveUp(ErrBufferLimit)

		return fmt.Errorf("%d bytes buffered, limit is %d: %w",
			len(c.buf), c.maxBufferSize, ErrBufferLimit)
	}

	return nil
}

func (c *Conn) handleFrame(frame protocol.Value) protocol.Value {
	req, err := protocol.ParseRequest(frame)
	if err != nil {
		c.metrics.RequestErrors.Inc()
		c.log.Debug("Invalid request", zap.Error(err))

		return protocol.RequestError(err)
	}

	c.metrics.Commands.WithLabelValues(string(req.GetCommand())).Inc()

	return Dispatch(c.store, req)
}

// writeErrorAndGiveUp tells the client why it's about to be disconnected. The
// connection is going away regardless, so failures are only logged.
func (c *Conn) writeErrorAndGiveUp(reason error) {
	if err := c.conn.SetWriteDeadline(time.Now().Add(ErrorWriteTimeout)); err != nil {
		c.log.Debug("Failed to set write deadline", zap.Error(err))
	}

	if err := protocol.WriteError(c.conn, reason.Error()); err != nil {
		c.log.Debug("Failed to send protocol error to client", zap.Error(err))
	}
}
