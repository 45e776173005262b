package observability

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNewMetricsWith_FreshRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWith(reg, "test")

	m.EventsProcessed.WithLabelValues("arbitrum", "OrderCreated").Inc()
	m.EventsProcessed.WithLabelValues("arbitrum", "OrderCreated").Inc()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.EventsProcessed.WithLabelValues("arbitrum", "OrderCreated")))
}

func TestRecordHelpers(t *testing.T) {
	before := testutil.ToFloat64(DefaultMetrics.CandleUpdates.WithLabelValues("1m", "open"))
	RecordCandleUpdate("1m", true)
	assert.Equal(t, before+1, testutil.ToFloat64(DefaultMetrics.CandleUpdates.WithLabelValues("1m", "open")))

	errsBefore := testutil.ToFloat64(DefaultMetrics.DBQueryErrors.WithLabelValues("memory", "load"))
	RecordDBQuery("memory", "load", 0.001, errors.New("boom"))
	RecordDBQuery("memory", "load", 0.001, nil)
	assert.Equal(t, errsBefore+1, testutil.ToFloat64(DefaultMetrics.DBQueryErrors.WithLabelValues("memory", "load")))

	UpdateHighestBlock("chain-a", 42)
	assert.Equal(t, 42.0, testutil.ToFloat64(DefaultMetrics.HighestBlockSeen.WithLabelValues("chain-a")))
}
