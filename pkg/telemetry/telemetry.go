// Package telemetry sets up OpenTelemetry metrics and tracing for the buffer
// manager binaries. Metrics are exported through a Prometheus scrape endpoint.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/multierr"
)

// Config holds all the configuration for the telemetry system.
type Config struct {
	// Enabled toggles the entire telemetry system on or off.
	Enabled bool `yaml:"enabled"`
	// ServiceName is the name of the service that will appear in traces and metrics.
	ServiceName string `yaml:"service_name"`
	// PrometheusAddr is the listen address of the /metrics endpoint, e.g. ":9464".
	// Empty means metrics are collected but not served.
	PrometheusAddr string `yaml:"prometheus_addr"`
	// TraceSampleRatio is the fraction of traces to sample (e.g., 0.01 for 1%).
	// Defaults to 1.0 (always sample) if not set or invalid.
	TraceSampleRatio float64 `yaml:"trace_sample_ratio"`
}

// Telemetry represents the active telemetry components.
type Telemetry struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	Tracer         trace.Tracer
	Meter          metric.Meter
	// Registry is the Prometheus registry the exporter writes to. Nil when disabled.
	Registry *promclient.Registry
	// MetricsAddr is the address the scrape endpoint is bound to, if any.
	MetricsAddr string
}

// ShutdownFunc is a function that gracefully shuts down the telemetry providers.
type ShutdownFunc func(ctx context.Context) error

// New initializes the OpenTelemetry SDK for metrics and tracing. When telemetry is
// disabled the returned tracer and meter are no-ops.
func New(config Config) (*Telemetry, ShutdownFunc, error) {
	if !config.Enabled {
		return &Telemetry{
			Tracer: nooptrace.NewTracerProvider().Tracer(""),
			Meter:  noop.NewMeterProvider().Meter(""),
		}, func(ctx context.Context) error { return nil }, nil
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(config.ServiceName),
		),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create resource: %w", err)
	}

	// --- Metrics Setup (Prometheus) ---
	registry := promclient.NewRegistry()
	exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	)

	var server *http.Server
	var metricsAddr string
	if config.PrometheusAddr != "" {
		ln, err := net.Listen("tcp", config.PrometheusAddr)
		if err != nil {
			_ = meterProvider.Shutdown(context.Background())
			return nil, nil, fmt.Errorf("failed to listen on %s: %w", config.PrometheusAddr, err)
		}
		metricsAddr = ln.Addr().String()

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				otel.Handle(fmt.Errorf("prometheus http server failed: %w", err))
			}
		}()
	}

	// --- Tracing Setup ---
	sampleRatio := config.TraceSampleRatio
	if sampleRatio <= 0 || sampleRatio > 1 {
		sampleRatio = 1.0
	}

	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(sampleRatio)),
	)

	otel.SetTracerProvider(tracerProvider)
	otel.SetMeterProvider(meterProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	tel := &Telemetry{
		TracerProvider: tracerProvider,
		MeterProvider:  meterProvider,
		Tracer:         tracerProvider.Tracer(config.ServiceName),
		Meter:          meterProvider.Meter(config.ServiceName),
		Registry:       registry,
		MetricsAddr:    metricsAddr,
	}

	// The shutdown function stops the endpoint and flushes both providers.
	shutdown := func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		var errs error
		if server != nil {
			if err := server.Shutdown(ctx); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("failed to shutdown metrics server: %w", err))
			}
		}
		if err := tracerProvider.Shutdown(ctx); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("failed to shutdown tracer provider: %w", err))
		}
		if err := meterProvider.Shutdown(ctx); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("failed to shutdown meter provider: %w", err))
		}
		return errs
	}

	return tel, shutdown, nil
}
