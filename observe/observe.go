// Package observe holds the OpenTelemetry instruments for the dictation
// pipeline. A package-level default ([Default]) uses the global meter
// provider; tests build their own with [NewMetrics] and a ManualReader.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "murmur"

// Drop reasons attached to ChunksDropped.
const (
	ReasonEmpty         = "empty"
	ReasonHallucination = "hallucination"
	ReasonDecodeError   = "decode_error"
	ReasonDuplicate     = "duplicate"
)

// Metrics is safe for concurrent use.
type Metrics struct {
	// DecodeDuration is the wall time of one decoder call, by backend.
	DecodeDuration metric.Float64Histogram
	// FirstTextLatency is the time from recording start to the first
	// confirmed text of a session.
	FirstTextLatency metric.Float64Histogram
	// ModelLoadDuration is the wall time of a model load attempt.
	ModelLoadDuration metric.Float64Histogram

	Chunks        metric.Int64Counter
	ChunksDropped metric.Int64Counter
	Characters    metric.Int64Counter
	Commands      metric.Int64Counter
	Sessions      metric.Int64Counter
	DecodeErrors  metric.Int64Counter
	ModelLoads    metric.Int64Counter
	Enhancements  metric.Int64Counter

	ActiveRecordings metric.Int64UpDownCounter
}

var latencyBuckets = []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

var loadBuckets = []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120}

// NewMetrics creates every instrument from mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	met := &Metrics{}
	var err error

	if met.DecodeDuration, err = m.Float64Histogram("murmur.decode.duration",
		metric.WithDescription("Latency of a single chunk decode."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.FirstTextLatency, err = m.Float64Histogram("murmur.first_text.latency",
		metric.WithDescription("Time from recording start to first confirmed text."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ModelLoadDuration, err = m.Float64Histogram("murmur.model_load.duration",
		metric.WithDescription("Latency of a model load attempt."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(loadBuckets...),
	); err != nil {
		return nil, err
	}

	if met.Chunks, err = m.Int64Counter("murmur.chunks",
		metric.WithDescription("Confirmed chunks by mode."),
	); err != nil {
		return nil, err
	}
	if met.ChunksDropped, err = m.Int64Counter("murmur.chunks.dropped",
		metric.WithDescription("Decoded chunks discarded by reason."),
	); err != nil {
		return nil, err
	}
	if met.Characters, err = m.Int64Counter("murmur.characters",
		metric.WithDescription("Characters appended to the confirmed transcript."),
	); err != nil {
		return nil, err
	}
	if met.Commands, err = m.Int64Counter("murmur.commands",
		metric.WithDescription("Spoken editing commands by kind and outcome."),
	); err != nil {
		return nil, err
	}
	if met.Sessions, err = m.Int64Counter("murmur.sessions",
		metric.WithDescription("Recording sessions by mode."),
	); err != nil {
		return nil, err
	}
	if met.DecodeErrors, err = m.Int64Counter("murmur.decode.errors",
		metric.WithDescription("Failed chunk decodes by backend."),
	); err != nil {
		return nil, err
	}
	if met.ModelLoads, err = m.Int64Counter("murmur.model_loads",
		metric.WithDescription("Model load attempts by backend and status."),
	); err != nil {
		return nil, err
	}
	if met.Enhancements, err = m.Int64Counter("murmur.enhancements",
		metric.WithDescription("AI enhancement calls by status."),
	); err != nil {
		return nil, err
	}

	if met.ActiveRecordings, err = m.Int64UpDownCounter("murmur.active_recordings",
		metric.WithDescription("Recordings currently in progress."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// Default returns the package-level Metrics built from the global meter
// provider. It panics if instrument creation fails.
func Default() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordDecode records one decode attempt.
func (m *Metrics) RecordDecode(ctx context.Context, backend string, d time.Duration, err error) {
	attrs := metric.WithAttributes(attribute.String("backend", backend))
	m.DecodeDuration.Record(ctx, d.Seconds(), attrs)
	if err != nil {
		m.DecodeErrors.Add(ctx, 1, attrs)
	}
}

// RecordChunk counts a confirmed chunk and its characters.
func (m *Metrics) RecordChunk(ctx context.Context, mode string, chars int) {
	attrs := metric.WithAttributes(attribute.String("mode", mode))
	m.Chunks.Add(ctx, 1, attrs)
	if chars > 0 {
		m.Characters.Add(ctx, int64(chars), attrs)
	}
}

// RecordDropped counts a discarded chunk.
func (m *Metrics) RecordDropped(ctx context.Context, reason string) {
	m.ChunksDropped.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// RecordCommand counts an editing command; applied is false for no-ops.
func (m *Metrics) RecordCommand(ctx context.Context, kind string, applied bool) {
	m.Commands.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.Bool("applied", applied),
	))
}

// RecordModelLoad records a load attempt.
func (m *Metrics) RecordModelLoad(ctx context.Context, backend string, d time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.ModelLoads.Add(ctx, 1, metric.WithAttributes(
		attribute.String("backend", backend),
		attribute.String("status", status),
	))
	m.ModelLoadDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("backend", backend)))
}

// RecordEnhancement counts an enhancer call.
func (m *Metrics) RecordEnhancement(ctx context.Context, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.Enhancements.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

// SessionStarted marks the beginning of a recording.
func (m *Metrics) SessionStarted(ctx context.Context, mode string) {
	m.Sessions.Add(ctx, 1, metric.WithAttributes(attribute.String("mode", mode)))
	m.ActiveRecordings.Add(ctx, 1)
}

// SessionEnded marks the end of a recording.
func (m *Metrics) SessionEnded(ctx context.Context) {
	m.ActiveRecordings.Add(ctx, -1)
}
