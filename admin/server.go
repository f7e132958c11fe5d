package admin

import (
	"context"
	"errors"
	"net"
	"net/http"

	"go.uber.org/zap"
)

// Server runs the admin router on its own listener, next to the RESP server.
type Server struct {
	addr     string
	srv      *http.Server
	listener net.Listener

	log *zap.Logger
}

func NewServer(addr string, options Options) *Server {
	if options.Log == nil {
		options.Log = zap.NewNop()
	}

	return &Server{
		addr: addr,
		srv: &http.Server{
			Handler: NewRouter(options),
		},
		log: options.Log,
	}
}

// Start binds addr and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}

	s.listener = ln

	// Serve in a goroutine so that it won't block the graceful shutdown
	// handling of the caller
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("Http server errored", zap.Error(err))
		}
	}()

	s.log.Info("Admin HTTP listening", zap.Stringer("addr", ln.Addr()))

	return nil
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}

	return s.listener.Addr()
}

// Shutdown stops accepting requests and waits, until ctx is done, for the
// ones in flight.
func (s *Server) Shutdown(ctx context.Context) error {
	s.srv.SetKeepAlivesEnabled(false)

	return s.srv.Shutdown(ctx)
}
