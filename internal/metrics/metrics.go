// Package metrics exposes Prometheus instrumentation for the transport and
// secure-channel layers (SPEC_FULL.md §10), grounded on dittofs's
// per-subsystem *Metrics structs (e.g.
// internal/protocol/nfs/v4/state/session_metrics.go): a plain struct of
// collectors, nil-safe recording methods, and an explicit registration
// step so callers can opt out of a global registry in tests.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Transport provides Prometheus metrics for pkg/uacp and pkg/securechannel.
// All methods are nil-safe: calls on a nil *Transport are no-ops, so
// instrumentation can be threaded through call sites unconditionally.
type Transport struct {
	ChunksSent        *prometheus.CounterVec
	ChunksReceived    *prometheus.CounterVec
	BytesSent         prometheus.Counter
	BytesReceived     prometheus.Counter
	ActiveChannels    prometheus.Gauge
	OpenHandshakeSecs prometheus.Histogram
	AbortsTotal       *prometheus.CounterVec
	DecodeErrorsTotal *prometheus.CounterVec
}

// New creates Transport metrics and registers them with reg. If reg is
// nil, the collectors are created but never registered, which is useful
// in tests that don't want a shared global registry.
func New(reg prometheus.Registerer) *Transport {
	m := &Transport{
		ChunksSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "opcuacore",
			Subsystem: "transport",
			Name:      "chunks_sent_total",
			Help:      "Total chunks written to the wire, labeled by message type.",
		}, []string{"msg_type"}),
		ChunksReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "opcuacore",
			Subsystem: "transport",
			Name:      "chunks_received_total",
			Help:      "Total chunks read from the wire, labeled by message type.",
		}, []string{"msg_type"}),
		BytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "opcuacore",
			Subsystem: "transport",
			Name:      "bytes_sent_total",
			Help:      "Total bytes written to the wire across all connections.",
		}),
		BytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "opcuacore",
			Subsystem: "transport",
			Name:      "bytes_received_total",
			Help:      "Total bytes read from the wire across all connections.",
		}),
		ActiveChannels: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "opcuacore",
			Subsystem: "securechannel",
			Name:      "active_channels",
			Help:      "Current number of open secure channels.",
		}),
		OpenHandshakeSecs: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "opcuacore",
			Subsystem: "securechannel",
			Name:      "open_handshake_seconds",
			Help:      "Latency of the OpenSecureChannel handshake.",
			Buckets:   prometheus.DefBuckets,
		}),
		AbortsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "opcuacore",
			Subsystem: "securechannel",
			Name:      "aborts_total",
			Help:      "Total Abort chunks emitted, labeled by reason.",
		}, []string{"reason"}),
		DecodeErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "opcuacore",
			Subsystem: "securechannel",
			Name:      "decode_errors_total",
			Help:      "Total chunk decode/verify failures, labeled by stage.",
		}, []string{"stage"}),
	}

	if reg != nil {
		collectors := []prometheus.Collector{
			m.ChunksSent, m.ChunksReceived, m.BytesSent, m.BytesReceived,
			m.ActiveChannels, m.OpenHandshakeSecs, m.AbortsTotal, m.DecodeErrorsTotal,
		}
		for _, c := range collectors {
			if err := reg.Register(c); err != nil {
				if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
					panic(err)
				}
			}
		}
	}

	return m
}

func (m *Transport) RecordChunkSent(msgType string, bytes int) {
	if m == nil {
		return
	}
	m.ChunksSent.WithLabelValues(msgType).Inc()
	m.BytesSent.Add(float64(bytes))
}

func (m *Transport) RecordChunkReceived(msgType string, bytes int) {
	if m == nil {
		return
	}
	m.ChunksReceived.WithLabelValues(msgType).Inc()
	m.BytesReceived.Add(float64(bytes))
}

func (m *Transport) RecordChannelOpened() {
	if m == nil {
		return
	}
	m.ActiveChannels.Inc()
}

func (m *Transport) RecordChannelClosed() {
	if m == nil {
		return
	}
	m.ActiveChannels.Dec()
}

func (m *Transport) RecordOpenHandshake(seconds float64) {
	if m == nil {
		return
	}
	m.OpenHandshakeSecs.Observe(seconds)
}

func (m *Transport) RecordAbort(reason string) {
	if m == nil {
		return
	}
	m.AbortsTotal.WithLabelValues(reason).Inc()
}

func (m *Transport) RecordDecodeError(stage string) {
	if m == nil {
		return
	}
	m.DecodeErrorsTotal.WithLabelValues(stage).Inc()
}
