package transport

import (
	"go.uber.org/zap"

	"github.com/luma/beacon/storage"
)

type Options struct {
	// Addr to listen on, as host:port. Port 0 picks a free port, see TCP.Addr.
	Addr string

	// Reuseport controls setting SO_REUSEPORT, which lets NumListeners accept
	// loops share Addr.
	// TODO(rolly) this https://blog.cloudflare.com/graceful-upgrades-in-go/
	Reuseport bool

	// NumListeners is the number of accept loops. Without Reuseport there is
	// always exactly one. With Reuseport it defaults to the number of CPUs.
	NumListeners int

	// MaxBufferSize bounds the unconsumed input held for a single connection.
	// A connection that exceeds it without completing a frame is dropped.
	// Zero means unbounded.
	MaxBufferSize int

	// Trace will log every read and reply. This is only useful in local debugging
	Trace bool

	Store storage.Store

	Metrics *Metrics

	Log *zap.Logger
}
