// Package metrics exports channel activity as Prometheus series.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/corbin-r/net-pipe/internal/model"
)

// Observer counts channel events. It implements model.Observer.
type Observer struct {
	registry    *prometheus.Registry
	packets     *prometheus.CounterVec
	bytes       *prometheus.CounterVec
	transitions *prometheus.CounterVec
	rejects     *prometheus.CounterVec
	open        prometheus.Gauge
}

// New registers the netpipe series on a fresh registry.
func New() *Observer {
	o := &Observer{
		registry: prometheus.NewRegistry(),
		packets: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "netpipe",
				Subsystem: "pipe",
				Name:      "packets_total",
				Help:      "Packets offered to a channel, by width and result.",
			},
			[]string{"width", "result"},
		),
		bytes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "netpipe",
				Subsystem: "pipe",
				Name:      "bytes_total",
				Help:      "Bytes delivered through channels.",
			},
			[]string{"width"},
		),
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "netpipe",
				Subsystem: "driver",
				Name:      "transitions_total",
				Help:      "Driver stack transitions by resulting state.",
			},
			[]string{"state"},
		),
		rejects: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "netpipe",
				Subsystem: "pipe",
				Name:      "rejects_total",
				Help:      "Rejected operations by op and error kind.",
			},
			[]string{"op", "kind"},
		),
		open: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "netpipe",
			Subsystem: "pipe",
			Name:      "open_channels",
			Help:      "Channels currently open.",
		}),
	}
	o.registry.MustRegister(o.packets, o.bytes, o.transitions, o.rejects, o.open)
	return o
}

// Observe updates the series for one channel event.
func (o *Observer) Observe(e model.Event) {
	width := strconv.Itoa(e.Width)
	switch e.Kind {
	case model.EventOpen:
		o.open.Inc()
	case model.EventClose:
		o.open.Dec()
	case model.EventSend:
		o.packets.WithLabelValues(width, "ok").Inc()
		o.bytes.WithLabelValues(width).Add(float64(e.Bytes))
	case model.EventReject:
		o.rejects.WithLabelValues(e.Op, e.ErrorKind).Inc()
		switch e.Op {
		case "send":
			o.packets.WithLabelValues(width, e.ErrorKind).Inc()
		case "attach":
			if e.State == "rejected" {
				o.transitions.WithLabelValues(e.State).Inc()
			}
		}
	case model.EventAttach, model.EventDetach:
		o.transitions.WithLabelValues(e.State).Inc()
	}
}

// Registry exposes the underlying registry for tests and embedding.
func (o *Observer) Registry() *prometheus.Registry { return o.registry }

// Handler serves the registry in the Prometheus text format.
func (o *Observer) Handler() http.Handler {
	return promhttp.HandlerFor(o.registry, promhttp.HandlerOpts{})
}
