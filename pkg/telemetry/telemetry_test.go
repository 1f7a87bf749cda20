package telemetry

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew_Disabled(t *testing.T) {
	tel, shutdown, err := New(Config{Enabled: false})
	require.NoError(t, err)
	require.Nil(t, tel.MeterProvider)
	require.Nil(t, tel.Registry)
	require.NotNil(t, tel.Meter)
	require.NotNil(t, tel.Tracer)

	counter, err := tel.Meter.Int64Counter("ignored")
	require.NoError(t, err)
	counter.Add(context.Background(), 1)
	require.NoError(t, shutdown(context.Background()))
}

func TestNew_ServesPrometheusMetrics(t *testing.T) {
	tel, shutdown, err := New(Config{
		Enabled:        true,
		ServiceName:    "bufmgr-test",
		PrometheusAddr: "127.0.0.1:0",
	})
	require.NoError(t, err)
	require.NotEmpty(t, tel.MetricsAddr)

	counter, err := tel.Meter.Int64Counter("bufmgr.test.requests")
	require.NoError(t, err)
	counter.Add(context.Background(), 3)

	_, span := tel.Tracer.Start(context.Background(), "probe")
	require.True(t, span.SpanContext().IsValid())
	span.End()

	resp, err := http.Get("http://" + tel.MetricsAddr + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(body), "bufmgr_test_requests")

	require.NoError(t, shutdown(context.Background()))
	_, err = http.Get("http://" + tel.MetricsAddr + "/metrics")
	require.Error(t, err)
}

func TestNew_MetricsWithoutEndpoint(t *testing.T) {
	tel, shutdown, err := New(Config{Enabled: true, ServiceName: "bufmgr-test"})
	require.NoError(t, err)
	require.Empty(t, tel.MetricsAddr)

	counter, err := tel.Meter.Int64Counter("bufmgr.test.silent")
	require.NoError(t, err)
	counter.Add(context.Background(), 1)

	families, err := tel.Registry.Gather()
	require.NoError(t, err)
	found := false
	for _, mf := range families {
		if strings.HasPrefix(mf.GetName(), "bufmgr_test_silent") {
			found = true
		}
	}
	require.True(t, found)
	require.NoError(t, shutdown(context.Background()))
}
