package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Counters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveLedgerCall("store_artifact", "ok", 0.2)
	m.ObserveLedgerCall("store_artifact", "unavailable", 0.1)
	m.IncDocumentsStored(3)
	m.SetBreakerOpen(true)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.LedgerCalls.WithLabelValues("store_artifact", "ok")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.DocumentsStored))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LedgerBreakerState))
}

func TestMetrics_NilReceiverIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveLedgerCall("fetch_artifact", "ok", 1)
		m.IncPoliciesCreated()
		m.IncArchive("complete")
	})
}
