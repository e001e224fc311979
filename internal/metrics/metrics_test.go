package metrics_test

import (
	"testing"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opcuacore/opcuacore/internal/metrics"
)

func TestNilTransportRecordMethodsAreNoOps(t *testing.T) {
	var m *metrics.Transport
	assert.NotPanics(t, func() {
		m.RecordChunkSent("MSG", 10)
		m.RecordChunkReceived("MSG", 10)
		m.RecordChannelOpened()
		m.RecordChannelClosed()
		m.RecordOpenHandshake(0.5)
		m.RecordAbort("bad_sequence")
		m.RecordDecodeError("signature")
	})
}

func TestRecordChunkSentIncrementsCounters(t *testing.T) {
	m := metrics.New(nil)
	m.RecordChunkSent("MSG", 100)
	m.RecordChunkSent("MSG", 50)

	assert.Equal(t, float64(150), counterValue(t, m.BytesSent))
	assert.Equal(t, float64(2), counterVecValue(t, m.ChunksSent, "MSG"))
}

func TestRecordChannelOpenedAndClosedTrackGauge(t *testing.T) {
	m := metrics.New(nil)
	m.RecordChannelOpened()
	m.RecordChannelOpened()
	m.RecordChannelClosed()

	var out dto.Metric
	require.NoError(t, m.ActiveChannels.Write(&out))
	assert.Equal(t, float64(1), out.GetGauge().GetValue())
}

func TestRecordAbortLabelsByReason(t *testing.T) {
	m := metrics.New(nil)
	m.RecordAbort("bad_sequence")
	m.RecordAbort("bad_sequence")
	m.RecordAbort("timeout")

	assert.Equal(t, float64(2), counterVecValue(t, m.AbortsTotal, "bad_sequence"))
	assert.Equal(t, float64(1), counterVecValue(t, m.AbortsTotal, "timeout"))
}

func TestNewRegistersCollectorsWithoutDuplicatePanic(t *testing.T) {
	reg := prometheus.NewRegistry()
	assert.NotPanics(t, func() {
		metrics.New(reg)
		metrics.New(reg)
	})
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var out dto.Metric
	require.NoError(t, c.Write(&out))
	return out.GetCounter().GetValue()
}

func counterVecValue(t *testing.T, vec *prometheus.CounterVec, label string) float64 {
	t.Helper()
	var out dto.Metric
	require.NoError(t, vec.WithLabelValues(label).Write(&out))
	return out.GetCounter().GetValue()
}
