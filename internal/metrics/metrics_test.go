package metrics_test

import (
	"testing"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finova-oss/rewardengine/internal/metrics"
)

func TestEventsProcessedIncrements(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := metrics.NewRegistry(reg)

	r.EventsProcessed.WithLabelValues("Post", "ok").Inc()
	r.EventsProcessed.WithLabelValues("Post", "ok").Inc()

	var m dto.Metric
	require.NoError(t, r.EventsProcessed.WithLabelValues("Post", "ok").Write(&m))
	assert.Equal(t, float64(2), m.GetCounter().GetValue())
}

func TestDailyCapHitsIncrements(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := metrics.NewRegistry(reg)
	r.DailyCapHits.Inc()

	var m dto.Metric
	require.NoError(t, r.DailyCapHits.Write(&m))
	assert.Equal(t, float64(1), m.GetCounter().GetValue())
}
