package internaltelemetry

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Write-back reasons recorded on WritebacksCounter.
const (
	WritebackEvict     = "evict"
	WritebackFlushFile = "flush_file"
	WritebackFlushAll  = "flush_all"
)

// WritebackReasonKey is the attribute carrying the write-back reason.
var WritebackReasonKey = attribute.Key("reason")

// BufferMetrics holds all the metric instruments for the buffer manager.
type BufferMetrics struct {
	PageHitsCounter           metric.Int64Counter
	PageMissesCounter         metric.Int64Counter
	EvictionsCounter          metric.Int64Counter
	WritebacksCounter         metric.Int64Counter
	BufferExceededCounter     metric.Int64Counter
	ClockStepsHistogram       metric.Int64Histogram
	PinnedFramesUpDownCounter metric.Int64UpDownCounter
}

// NewBufferMetrics creates and registers all the metrics for the buffer manager.
func NewBufferMetrics(meter metric.Meter) (*BufferMetrics, error) {
	pageHitsCounter, err := meter.Int64Counter(
		"bufmgr.page.hits",
		metric.WithDescription("Page requests served from a resident frame."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	pageMissesCounter, err := meter.Int64Counter(
		"bufmgr.page.misses",
		metric.WithDescription("Page requests that had to read from the backing store."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	evictionsCounter, err := meter.Int64Counter(
		"bufmgr.frame.evictions",
		metric.WithDescription("Valid frames reclaimed by the clock sweep."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	writebacksCounter, err := meter.Int64Counter(
		"bufmgr.frame.writebacks",
		metric.WithDescription("Dirty pages written back to the backing store."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	bufferExceededCounter, err := meter.Int64Counter(
		"bufmgr.alloc.exceeded",
		metric.WithDescription("Frame allocations that failed because every frame was pinned."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	clockStepsHistogram, err := meter.Int64Histogram(
		"bufmgr.clock.steps",
		metric.WithDescription("Frames inspected by the clock hand per allocation."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	pinnedFramesUpDownCounter, err := meter.Int64UpDownCounter(
		"bufmgr.frames.pinned",
		metric.WithDescription("Number of frames with a non-zero pin count."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	return &BufferMetrics{
		PageHitsCounter:           pageHitsCounter,
		PageMissesCounter:         pageMissesCounter,
		EvictionsCounter:          evictionsCounter,
		WritebacksCounter:         writebacksCounter,
		BufferExceededCounter:     bufferExceededCounter,
		ClockStepsHistogram:       clockStepsHistogram,
		PinnedFramesUpDownCounter: pinnedFramesUpDownCounter,
	}, nil
}

// NewNoopBufferMetrics returns instruments that record nothing.
func NewNoopBufferMetrics() *BufferMetrics {
	m, err := NewBufferMetrics(noop.NewMeterProvider().Meter(""))
	if err != nil {
		// the noop meter never fails
		panic(err)
	}
	return m
}
