package telemetry_test

import (
	"context"
	"testing"

	"castplayd/internal/telemetry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func sumOf(t *testing.T, rm metricdata.ResourceMetrics, name string) int64 {
	t.Helper()
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "metric %s is not an int64 sum", name)
			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			return total
		}
	}
	return 0
}

func TestMetrics_Counters(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	m, err := telemetry.NewMetrics(provider.Meter("test"))
	require.NoError(t, err)

	m.FrameWritten()
	m.FrameWritten()
	m.WriteFailed()
	m.Seek("position")
	m.Seek("index")
	m.ParseFailed()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	assert.Equal(t, int64(2), sumOf(t, rm, "castplay.frames.written"))
	assert.Equal(t, int64(1), sumOf(t, rm, "castplay.frames.write_errors"))
	assert.Equal(t, int64(2), sumOf(t, rm, "castplay.seeks"))
	assert.Equal(t, int64(1), sumOf(t, rm, "castplay.parse.errors"))
}

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *telemetry.Metrics
	m.FrameWritten()
	m.WriteFailed()
	m.Seek("event")
	m.ParseFailed()

	assert.NotNil(t, telemetry.Default())
}
