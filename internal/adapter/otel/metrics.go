package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "titan"

// Metrics holds all Titan metric instruments.
type Metrics struct {
	ExchangesStarted   metric.Int64Counter
	ExchangesCompleted metric.Int64Counter
	ExchangesFailed    metric.Int64Counter
	ExchangesCancelled metric.Int64Counter
	ToolCalls          metric.Int64Counter
	StreamDuration     metric.Float64Histogram
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.ExchangesStarted, err = meter.Int64Counter("titan.exchanges.started",
		metric.WithDescription("Number of message exchanges started"))
	if err != nil {
		return nil, err
	}

	m.ExchangesCompleted, err = meter.Int64Counter("titan.exchanges.completed",
		metric.WithDescription("Number of message exchanges completed"))
	if err != nil {
		return nil, err
	}

	m.ExchangesFailed, err = meter.Int64Counter("titan.exchanges.failed",
		metric.WithDescription("Number of message exchanges failed"))
	if err != nil {
		return nil, err
	}

	m.ExchangesCancelled, err = meter.Int64Counter("titan.exchanges.cancelled",
		metric.WithDescription("Number of message exchanges cancelled by the user"))
	if err != nil {
		return nil, err
	}

	m.ToolCalls, err = meter.Int64Counter("titan.toolcalls",
		metric.WithDescription("Number of tool calls executed"))
	if err != nil {
		return nil, err
	}

	m.StreamDuration, err = meter.Float64Histogram("titan.stream.duration_seconds",
		metric.WithDescription("Streamed exchange duration in seconds"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
