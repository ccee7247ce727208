package observability

import "github.com/prometheus/client_golang/prometheus"

// StreamCollector exposes metrics for the snapshot stream and the control
// commands received over it.
type StreamCollector struct {
	Clients         prometheus.Gauge
	Commands        *prometheus.CounterVec
	DroppedMessages prometheus.Counter
}

// NewStreamCollector registers stream metrics against the provided registerer.
func NewStreamCollector(reg prometheus.Registerer) (*StreamCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	clients, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sim_stream_clients",
		Help: "Number of connected snapshot stream clients.",
	}), "sim_stream_clients")
	if err != nil {
		return nil, err
	}

	commands, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sim_control_commands_total",
		Help: "Control commands received, labeled by command type and result.",
	}, []string{"command", "result"}), "sim_control_commands_total")
	if err != nil {
		return nil, err
	}

	dropped, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sim_stream_dropped_messages_total",
		Help: "Snapshot messages dropped because a client was too slow.",
	}), "sim_stream_dropped_messages_total")
	if err != nil {
		return nil, err
	}

	return &StreamCollector{
		Clients:         clients,
		Commands:        commands,
		DroppedMessages: dropped,
	}, nil
}

// ClientConnected increments the connected-clients gauge.
func (c *StreamCollector) ClientConnected() {
	if c != nil {
		c.Clients.Inc()
	}
}

// ClientDisconnected decrements the connected-clients gauge.
func (c *StreamCollector) ClientDisconnected() {
	if c != nil {
		c.Clients.Dec()
	}
}

// CommandHandled counts one control command with its outcome
// (e.g. "applied", "rejected", "rate_limited").
func (c *StreamCollector) CommandHandled(command, result string) {
	if c != nil {
		c.Commands.WithLabelValues(command, result).Inc()
	}
}

// MessageDropped counts one snapshot that was not delivered.
func (c *StreamCollector) MessageDropped() {
	if c != nil {
		c.DroppedMessages.Inc()
	}
}
