package infrastructure

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gatheredValue sums every sample of the named family
func gatheredValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	var total float64
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			if c := metric.GetCounter(); c != nil {
				total += c.GetValue()
			}
			if g := metric.GetGauge(); g != nil {
				total += g.GetValue()
			}
		}
	}
	return total
}

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveAPIRequest("video", "200", time.Now())
		m.ObserveTransferAttempt("complete")
		m.AddTransferBytes(10)
		m.ObserveTransfer("complete", time.Now())
		m.ObserveLedgerUpsert("inserted")
		m.ObserveOutcome("ok")
		m.WorkerStarted()
		m.WorkerFinished()
		m.SetRetryQueueDepth(3)
	})
}

func TestMetrics_RegisterTwiceReusesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first := NewMetrics(reg)
	second := NewMetrics(reg)

	first.ObserveOutcome("ok")
	second.ObserveOutcome("ok")

	assert.Equal(t, float64(2), gatheredValue(t, reg, "iwaradl_video_outcomes_total"))
}

func TestMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.AddTransferBytes(100)
	m.AddTransferBytes(-5)
	m.ObserveLedgerUpsert("rejected")
	m.SetRetryQueueDepth(4)

	assert.Equal(t, float64(100), gatheredValue(t, reg, "iwaradl_transfer_bytes_total"))
	assert.Equal(t, float64(1), gatheredValue(t, reg, "iwaradl_ledger_upserts_total"))
	assert.Equal(t, float64(4), gatheredValue(t, reg, "iwaradl_retry_queue_depth"))
}
