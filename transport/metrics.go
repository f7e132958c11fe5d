package transport

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "beacon"

// Metrics are the counters the transport keeps about client connections and
// the commands they send.
type Metrics struct {
	ConnectionsActive prometheus.Gauge
	ConnectionsTotal  prometheus.Counter

	// Commands counts executed commands by name
	Commands *prometheus.CounterVec

	// RequestErrors counts frames that were valid RESP but not a valid command
	RequestErrors prometheus.Counter

	// ProtocolErrors counts connections dropped for sending malformed RESP
	ProtocolErrors prometheus.Counter
}

// NewMetrics creates the transport metrics and registers them with reg. A nil
// reg leaves them unregistered, which is handy in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ConnectionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "connections_active",
			Help:      "Number of client connections currently open.",
		}),
		ConnectionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "connections_total",
			Help:      "Number of client connections accepted.",
		}),
		Commands: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "commands_total",
			Help:      "Number of commands executed, by command.",
		}, []string{"command"}),
		RequestErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "request_errors_total",
			Help:      "Number of requests rejected as unknown or malformed commands.",
		}),
		ProtocolErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "protocol_errors_total",
			Help:      "Number of connections dropped for violating the protocol.",
		}),
	}
}
