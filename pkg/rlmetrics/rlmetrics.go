// Package rlmetrics exports counters of a Readline session to Prometheus.
package rlmetrics

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/elves/asyncline/pkg/line"
)

// Metrics holds the collectors. All methods may be called on a nil *Metrics,
// in which case they do nothing.
type Metrics struct {
	reg *prometheus.Registry

	outputs    *prometheus.CounterVec
	events     prometheus.Counter
	chunks     prometheus.Counter
	chunkBytes prometheus.Counter
	wouldBlock prometheus.Counter
	history    prometheus.Gauge
}

// New creates the collectors and registers them in a new registry.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		outputs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "asyncline_outputs_total",
				Help: "Number of lines submitted, interrupted or ended with EOF.",
			},
			[]string{"kind"},
		),
		events: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "asyncline_terminal_events_total",
			Help: "Number of terminal events handled.",
		}),
		chunks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "asyncline_printed_chunks_total",
			Help: "Number of output chunks printed above the prompt.",
		}),
		chunkBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "asyncline_printed_bytes_total",
			Help: "Number of bytes printed above the prompt.",
		}),
		wouldBlock: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "asyncline_writer_would_block_total",
			Help: "Number of writes rejected because the output channel was full.",
		}),
		history: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "asyncline_history_entries",
			Help: "Number of entries in the history.",
		}),
	}
	m.reg.MustRegister(m.outputs, m.events, m.chunks, m.chunkBytes, m.wouldBlock, m.history)
	return m
}

// Output counts an Output returned by Readline.
func (m *Metrics) Output(o line.Output) {
	if m == nil {
		return
	}
	var kind string
	switch o.(type) {
	case line.Line:
		kind = "line"
	case line.EOF:
		kind = "eof"
	case line.Interrupted:
		kind = "interrupted"
	default:
		return
	}
	m.outputs.WithLabelValues(kind).Inc()
}

// Event counts a terminal event.
func (m *Metrics) Event() {
	if m == nil {
		return
	}
	m.events.Inc()
}

// Chunk counts an output chunk of n bytes.
func (m *Metrics) Chunk(n int) {
	if m == nil {
		return
	}
	m.chunks.Inc()
	m.chunkBytes.Add(float64(n))
}

// WouldBlock counts a write rejected because the channel was full. It is
// meant to be passed to sharedwriter.OnWouldBlock.
func (m *Metrics) WouldBlock() {
	if m == nil {
		return
	}
	m.wouldBlock.Inc()
}

// HistorySize records the number of history entries.
func (m *Metrics) HistorySize(n int) {
	if m == nil {
		return
	}
	m.history.Set(float64(n))
}

// Handler returns an http.Handler serving the metrics at /metrics.
func (m *Metrics) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/metrics", promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{}).ServeHTTP)
	return r
}
