// Package telemetry holds the OpenTelemetry instruments recorded by the playback engine.
// Without an installed meter provider every instrument is a no-op.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "castplayd"

// Metrics records engine counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	framesWritten metric.Int64Counter
	writeErrors   metric.Int64Counter
	seeks         metric.Int64Counter
	parseErrors   metric.Int64Counter
}

// NewMetrics creates the instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	framesWritten, err := meter.Int64Counter("castplay.frames.written",
		metric.WithDescription("Frames written to a renderer"))
	if err != nil {
		return nil, fmt.Errorf("failed to create frames counter: %w", err)
	}
	writeErrors, err := meter.Int64Counter("castplay.frames.write_errors",
		metric.WithDescription("Renderer writes that failed and were skipped"))
	if err != nil {
		return nil, fmt.Errorf("failed to create write error counter: %w", err)
	}
	seeks, err := meter.Int64Counter("castplay.seeks",
		metric.WithDescription("Head jumps, by addressing mode"))
	if err != nil {
		return nil, fmt.Errorf("failed to create seek counter: %w", err)
	}
	parseErrors, err := meter.Int64Counter("castplay.parse.errors",
		metric.WithDescription("Recordings that failed to parse"))
	if err != nil {
		return nil, fmt.Errorf("failed to create parse error counter: %w", err)
	}

	return &Metrics{
		framesWritten: framesWritten,
		writeErrors:   writeErrors,
		seeks:         seeks,
		parseErrors:   parseErrors,
	}, nil
}

// Default creates the instruments on the global meter provider.
func Default() *Metrics {
	m, err := NewMetrics(otel.Meter(meterName))
	if err != nil {
		m, _ = NewMetrics(noop.NewMeterProvider().Meter(meterName))
	}
	return m
}

func (m *Metrics) FrameWritten() {
	if m != nil {
		m.framesWritten.Add(context.Background(), 1)
	}
}

func (m *Metrics) WriteFailed() {
	if m != nil {
		m.writeErrors.Add(context.Background(), 1)
	}
}

// Seek counts a head jump. mode is "index", "position" or "event".
func (m *Metrics) Seek(mode string) {
	if m != nil {
		m.seeks.Add(context.Background(), 1, metric.WithAttributes(attribute.String("mode", mode)))
	}
}

func (m *Metrics) ParseFailed() {
	if m != nil {
		m.parseErrors.Add(context.Background(), 1)
	}
}
