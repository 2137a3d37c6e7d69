package metrics

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/trafficsim/internal/scenario"
)

func gatherMetric(t *testing.T, e *PrometheusExporter, name string) *dto.MetricFamily {
	t.Helper()
	families, err := e.Registry().Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func TestPrometheusExporter_Defaults(t *testing.T) {
	cfg := DefaultPrometheusExporterConfig()
	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, "/metrics", cfg.Path)
	assert.NotEmpty(t, cfg.HistogramBuckets)
}

func TestPrometheusExporter_RecordsSessions(t *testing.T) {
	e := NewPrometheusExporter(PrometheusExporterConfig{Addr: "127.0.0.1:0"})

	e.SessionLaunched()
	e.SessionFinished(&scenario.Result{
		Status:   scenario.StatusSuccess,
		Duration: 25 * time.Second,
		Phases: []scenario.PhaseOutcome{
			{Phase: scenario.PhaseLanding, Status: scenario.PhaseCompleted},
			{Phase: scenario.PhaseCheckout, Status: scenario.PhaseSkipped},
		},
		Endpoints: []string{"/api/health", "/api/products"},
	})
	e.TickSkipped()
	e.SetTargetRate(2)

	mf := gatherMetric(t, e, MetricSessionsTotal)
	require.NotNil(t, mf)
	require.Len(t, mf.GetMetric(), 1)
	m := mf.GetMetric()[0]
	assert.Equal(t, float64(1), m.GetCounter().GetValue())
	require.Len(t, m.GetLabel(), 1)
	assert.Equal(t, "status", m.GetLabel()[0].GetName())
	assert.Equal(t, "success", m.GetLabel()[0].GetValue())

	mf = gatherMetric(t, e, MetricSessionDurationSeconds)
	require.NotNil(t, mf)
	assert.Equal(t, uint64(1), mf.GetMetric()[0].GetHistogram().GetSampleCount())

	mf = gatherMetric(t, e, MetricSkippedTicksTotal)
	require.NotNil(t, mf)
	assert.Equal(t, float64(1), mf.GetMetric()[0].GetCounter().GetValue())

	mf = gatherMetric(t, e, MetricTargetSessionsPerMin)
	require.NotNil(t, mf)
	assert.Equal(t, float64(2), mf.GetMetric()[0].GetGauge().GetValue())

	mf = gatherMetric(t, e, MetricPhasesTotal)
	require.NotNil(t, mf)
	assert.Len(t, mf.GetMetric(), 2)

	// In-flight went up on launch and back down on finish.
	mf = gatherMetric(t, e, MetricSessionsInFlight)
	require.NotNil(t, mf)
	assert.Equal(t, float64(0), mf.GetMetric()[0].GetGauge().GetValue())
}

func TestPrometheusExporter_ServesScrapes(t *testing.T) {
	e := NewPrometheusExporter(PrometheusExporterConfig{Addr: "127.0.0.1:0"})
	require.NoError(t, e.Start())
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = e.Stop(ctx)
	}()

	// Starting twice is a no-op.
	require.NoError(t, e.Start())

	e.SessionLaunched()

	url := fmt.Sprintf("http://%s/metrics", e.Addr())
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), MetricSessionsInFlight)

	health, err := http.Get(fmt.Sprintf("http://%s/health", e.Addr()))
	require.NoError(t, err)
	defer func() { _ = health.Body.Close() }()
	assert.Equal(t, http.StatusOK, health.StatusCode)
}

func TestPrometheusExporter_StopWithoutStart(t *testing.T) {
	e := NewPrometheusExporter(PrometheusExporterConfig{})
	assert.NoError(t, e.Stop(context.Background()))
}
