package transport

import (
	"context"
	"errors"
	"net"
	"runtime"
	"sync"
	"time"

	reuseport "github.com/kavu/go_reuseport"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/luma/beacon/protocol"
	"github.com/luma/beacon/storage"
)

const (
	// maxAcceptDelay caps the backoff after failed Accept calls
	maxAcceptDelay = time.Second
)

// TCP is the Beacon RESP server. It runs one or more TCPListeners, which
// accept client connections and serve each one on its own goroutine. Every
// connection shares the one Store.
type TCP struct {
	cancel     context.CancelFunc
	stopWaiter sync.WaitGroup

	options      Options
	numListeners int
	listeners    []*TCPListener

	closeOnce sync.Once
	closeErr  error

	log *zap.Logger
}

func NewTCP(options Options) *TCP {
	if options.Log == nil {
		options.Log = zap.NewNop()
	}

	if options.Store == nil {
		options.Store = storage.NewInmemoryStore()
	}

	if options.Metrics == nil {
		options.Metrics = NewMetrics(nil)
	}

	numListeners := 1
	if options.Reuseport {
		numListeners = options.NumListeners

		if numListeners < 1 {
			numListeners = runtime.NumCPU()
		}
	}

	return &TCP{
		options:      options,
		numListeners: numListeners,
		listeners:    make([]*TCPListener, 0, numListeners),
		log:          options.Log,
	}
}

// Start binds every listener and then starts accepting connections in the
// background. Once Start returns successfully Addr is valid.
//
// Cancelling ctx stops the accept loops, Close must still be called to shut
// down open connections.
func (t *TCP) Start(parentCtx context.Context) error {
	ctx, cancel := context.WithCancel(parentCtx)
	t.cancel = cancel

	t.log.Info("Starting tcp listeners",
		zap.Int("count", t.numListeners),
		zap.String("addr", t.options.Addr),
		zap.Bool("reuseport", t.options.Reuseport))

	addr := t.options.Addr

	for i := 0; i < t.numListeners; i++ {
		ln, err := t.listen(addr)
		if err != nil {
			cancel()
			for _, listener := range t.listeners {
				err = multierr.Append(err, listener.Close())
			}
			t.listeners = t.listeners[:0]

			return err
		}

		// Later listeners must share the port the first one actually got,
		// which matters when asked for port 0.
		addr = ln.Addr().String()

		t.listeners = append(t.listeners, NewTCPListener(
			ctx,
			ln,
			t.options,
			t.log.Named("listener").With(zap.Int("listener", i)),
		))
	}

	for _, listener := range t.listeners {
		t.stopWaiter.Add(1)

		go func(listener *TCPListener) {
			defer t.stopWaiter.Done()

			if err := listener.Listen(); err != nil {
				// TODO(rolly) as any of the listeners can fail, but we don't treat this as fatal,
				//             you can end up with less than the required amount of listeners running
				t.log.Error("Listener stopped accepting connections", zap.Error(err))
			}
		}(listener)
	}

	return nil
}

func (t *TCP) listen(addr string) (net.Listener, error) {
	if t.options.Reuseport {
		return reuseport.Listen("tcp", addr)
	}

	return net.Listen("tcp", addr)
}

// Addr returns the address the server is listening on, or nil before Start.
func (t *TCP) Addr() net.Addr {
	if len(t.listeners) == 0 {
		return nil
	}

	return t.listeners[0].Addr()
}

func (t *TCP) Store() storage.Store {
	return t.options.Store
}

// Close immediately closes all listeners and client connections and waits for
// their goroutines to exit.
func (t *TCP) Close() error {
	t.closeOnce.Do(func() {
		t.log.Info("Stopping TCP server")

		if t.cancel != nil {
			t.cancel()
		}

		for _, listener := range t.listeners {
			t.closeErr = multierr.Append(t.closeErr, listener.Close())
		}

		t.stopWaiter.Wait()
		t.log.Info("TCP server stopped")
	})

	return t.closeErr
}

// TCPListener runs the accept loop for one listening socket and tracks the
// connections it accepted.
type TCPListener struct {
	ctx context.Context

	listener net.Listener
	options  Options

	mu          sync.Mutex
	closing     bool
	activeConns map[*Conn]struct{}
	connWaiter  sync.WaitGroup

	log *zap.Logger
}

func NewTCPListener(
	ctx context.Context,
	listener net.Listener,
	options Options,
	log *zap.Logger,
) *TCPListener {
	options.Log = log.Named("conn")

	return &TCPListener{
		ctx:         ctx,
		listener:    listener,
		options:     options,
		activeConns: make(map[*Conn]struct{}),
		log:         log,
	}
}

func (t *TCPListener) Addr() net.Addr {
	return t.listener.Addr()
}

// Close stops accepting and closes every active connection.
func (t *TCPListener) Close() (err error) {
	t.mu.Lock()
	t.closing = true

	if lerr := t.listener.Close(); lerr != nil && !errors.Is(lerr, net.ErrClosed) {
		err = multierr.Append(err, lerr)
	}

	for conn := range t.activeConns {
		err = multierr.Append(err, conn.Close())
	}
	t.mu.Unlock()

	return err
}

// Listen accepts connections until the listener is closed or its context is
// cancelled. Connections already accepted are waited for before it returns.
func (t *TCPListener) Listen() error {
	defer t.connWaiter.Wait()

	go func() {
		<-t.ctx.Done()

		if err := t.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			t.log.Warn("TCP Listener did not close cleanly", zap.Error(err))
		}
	}()

	var delay time.Duration

	for {
		conn, err := t.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || t.ctx.Err() != nil {
				t.log.Info("Stopped accepting new connections")
				return nil
			}

			// Back off, the same way net/http does, rather than spinning on
			// errors like running out of file descriptors.
			if delay == 0 {
				delay = 5 * time.Millisecond
			} else {
				delay *= 2
			}
			if delay > maxAcceptDelay {
				delay = maxAcceptDelay
			}

			t.log.Warn("Failed to accept connection", zap.Error(err), zap.Duration("retryIn", delay))

			select {
			case <-time.After(delay):
				continue
			case <-t.ctx.Done():
				return nil
			}
		}

		delay = 0

		tcpConn := NewConn(conn, t.options)

		if !t.addConn(tcpConn) {
			conn.Close()
			return nil
		}

		t.connWaiter.Add(1)

		go func() {
			defer t.connWaiter.Done()
			t.serve(tcpConn)
		}()
	}
}

func (t *TCPListener) serve(conn *Conn) {
	log := conn.log

	defer func() {
		t.removeConn(conn)

		if err := conn.Close(); err != nil {
			log.Debug("Connection did not close cleanly", zap.Error(err))
		}

		log.Info("Connection closed")
	}()

	t.options.Metrics.ConnectionsTotal.Inc()
	log.Info("Connection accepted")

	if err := conn.Serve(); err != nil {
		if errors.Is(err, protocol.ErrProtocol) {
			log.Warn("Dropping client for protocol violation", zap.Error(err))
			return
		}

		log.Error("Connection failed", zap.Error(err))
	}
}

// addConn registers conn as active. It returns false if the listener is
// closing, in which case the connection must not be served.
func (t *TCPListener) addConn(conn *Conn) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closing {
		return false
	}

	t.activeConns[conn] = struct{}{}
	return true
}

func (t *TCPListener) removeConn(conn *Conn) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.activeConns, conn)
}
