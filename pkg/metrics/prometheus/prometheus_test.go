package prometheus_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vexfs/vexfs/pkg/metrics"
	prom "github.com/vexfs/vexfs/pkg/metrics/prometheus"
)

func TestPrometheusMetricsRegisterAgainstSharedRegistry(t *testing.T) {
	reg := metrics.InitRegistry()
	require.NotNil(t, reg)

	dur := prom.NewDurabilityMetrics()
	require.NotNil(t, dur)
	assert.NotPanics(t, func() { dur.RecordFlush("strict", 8, 5*time.Millisecond) })

	txn := prom.NewTransactionMetrics()
	require.NotNil(t, txn)
	assert.NotPanics(t, func() { txn.RecordCommit(time.Millisecond) })

	search := prom.NewSearchMetrics()
	require.NotNil(t, search)
	assert.NotPanics(t, func() { search.RecordSearch(time.Millisecond, 10) })

	prop := prom.NewPropagationMetrics()
	require.NotNil(t, prop)
	assert.NotPanics(t, func() { prop.RecordDelivery("kernel", time.Millisecond, true) })

	strm := prom.NewStreamMetrics()
	require.NotNil(t, strm)
	assert.NotPanics(t, func() { strm.RecordSubscribe("agent-1") })
}
