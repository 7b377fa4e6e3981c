// monitor/monitor.go
package monitor

import (
	"expvar"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	ConnectedPlayers prometheus.Gauge
	ActiveRooms      prometheus.Gauge
	ActionsReceived  prometheus.Counter
	BroadcastsSent   prometheus.Counter
	ActionLatency    prometheus.Histogram
}

func NewMetrics(namespace string) *Metrics {
	m := &Metrics{
		ConnectedPlayers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connected_players",
			Help:      "Number of connected players",
		}),
		ActiveRooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_rooms",
			Help:      "Number of live rooms",
		}),
		ActionsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_received_total",
			Help:      "Total number of player actions received",
		}),
		BroadcastsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcasts_sent_total",
			Help:      "Total number of room-update broadcasts",
		}),
		ActionLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "action_latency_seconds",
			Help:      "Action processing latency",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 10),
		}),
	}

	prometheus.MustRegister(
		m.ConnectedPlayers,
		m.ActiveRooms,
		m.ActionsReceived,
		m.BroadcastsSent,
		m.ActionLatency,
	)

	return m
}

type Monitor struct {
	metrics     *Metrics
	startTime   time.Time
	actionCount int64
	mutex       sync.Mutex
}

func NewMonitor(namespace string) *Monitor {
	return &Monitor{
		metrics:   NewMetrics(namespace),
		startTime: time.Now(),
	}
}

func (m *Monitor) StartServer(addr string) {
	http.Handle("/metrics", promhttp.Handler())

	expvar.Publish("uptime", expvar.Func(func() interface{} {
		return time.Since(m.startTime).Seconds()
	}))

	expvar.Publish("actions", expvar.Func(func() interface{} {
		m.mutex.Lock()
		defer m.mutex.Unlock()
		return m.actionCount
	}))

	go http.ListenAndServe(addr, nil)
}

func (m *Monitor) IncConnectedPlayers() {
	m.metrics.ConnectedPlayers.Inc()
}

func (m *Monitor) DecConnectedPlayers() {
	m.metrics.ConnectedPlayers.Dec()
}

func (m *Monitor) SetActiveRooms(count int) {
	m.metrics.ActiveRooms.Set(float64(count))
}

func (m *Monitor) IncActionsReceived() {
	m.metrics.ActionsReceived.Inc()
	m.mutex.Lock()
	m.actionCount++
	m.mutex.Unlock()
}

func (m *Monitor) IncBroadcastsSent() {
	m.metrics.BroadcastsSent.Inc()
}

func (m *Monitor) ObserveActionLatency(duration time.Duration) {
	m.metrics.ActionLatency.Observe(duration.Seconds())
}
