package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestObservability_RecordsInstruments(t *testing.T) {
	reader := metric.NewManualReader()
	provider := metric.NewMeterProvider(metric.WithReader(reader))
	obs := newWithProvider(provider, "test")

	ctx := context.Background()
	obs.RecordJobProcessed(ctx, "send-status-notification", "completed")
	obs.RecordJobDuration(ctx, "send-status-notification", 25*time.Millisecond, "completed")
	obs.RecordStatusMutation(ctx, "application", 3*time.Millisecond, "committed")

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	require.Len(t, rm.ScopeMetrics, 1)

	names := map[string]bool{}
	for _, m := range rm.ScopeMetrics[0].Metrics {
		names[m.Name] = true
	}
	assert.True(t, names["jobs.processed"])
	assert.True(t, names["jobs.duration"])
	assert.True(t, names["status.mutation.duration"])

	assert.NoError(t, obs.Shutdown(ctx))
}

func TestObservability_NilIsNoop(t *testing.T) {
	var obs *Observability
	ctx := context.Background()

	assert.NotPanics(t, func() {
		obs.RecordJobProcessed(ctx, "x", "completed")
		obs.RecordJobDuration(ctx, "x", time.Second, "completed")
		obs.RecordStatusMutation(ctx, "application", time.Millisecond, "committed")
	})
	assert.NoError(t, obs.Shutdown(ctx))
}
