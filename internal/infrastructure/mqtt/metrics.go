package mqtt

import "github.com/prometheus/client_golang/prometheus"

// Handler outcomes for the messages counter.
const (
	resultOK    = "ok"
	resultError = "error"
	resultPanic = "panic"
)

// Metrics holds the MQTT client's Prometheus collectors.
type Metrics struct {
	connected  prometheus.Gauge
	reconnects prometheus.Counter
	messages   *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "linepush_mqtt_connected",
			Help: "1 while the broker connection is up.",
		}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "linepush_mqtt_connection_lost_total",
			Help: "Broker connections lost since start.",
		}),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "linepush_mqtt_messages_total",
			Help: "Sensor messages received, by handler result.",
		}, []string{"result"}),
	}
	reg.MustRegister(m.connected, m.reconnects, m.messages)
	return m
}

func (m *Metrics) setConnected(up bool) {
	if m == nil {
		return
	}
	if up {
		m.connected.Set(1)
		return
	}
	m.connected.Set(0)
}

func (m *Metrics) incLost() {
	if m == nil {
		return
	}
	m.reconnects.Inc()
}

func (m *Metrics) incMessage(result string) {
	if m == nil {
		return
	}
	m.messages.WithLabelValues(result).Inc()
}
