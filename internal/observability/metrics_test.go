package observability

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/handscan/handscan/internal/jobqueue"
	"github.com/handscan/handscan/internal/observability/metrics"
)

type staticStats jobqueue.JobStatsSnapshot

func (s staticStats) GetStats() jobqueue.JobStatsSnapshot { return jobqueue.JobStatsSnapshot(s) }

// TestNewMetricsConcurrency verifies that NewMetrics can be called concurrently
// because every call owns its registry.
func TestNewMetricsConcurrency(t *testing.T) {
	const numGoroutines = 20

	var wg sync.WaitGroup
	errs := make(chan error, numGoroutines)
	for range numGoroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m, err := NewMetrics()
			if err == nil && (m.Detection == nil || m.HTTP == nil) {
				err = assert.AnError
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
}

func TestHandlerExposesRecordedMetrics(t *testing.T) {
	m, err := NewMetrics()
	require.NoError(t, err)

	m.Recorder().RecordOperation(metrics.OpTrigger, metrics.StatusCreated)
	m.Recorder().RecordError(metrics.OpDispatch, "modal_service_error")
	m.HTTP.RecordHTTPRequest(http.MethodGet, "/health", http.StatusOK, 0.01)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, `handscan_operations_total{operation="detection_trigger",status="created"} 1`)
	assert.Contains(t, body, `handscan_operation_errors_total{error_type="modal_service_error",operation="detection_dispatch"} 1`)
	assert.Contains(t, body, `http_requests_total{method="GET",path="/health",status_code="200"} 1`)
	assert.Contains(t, body, "go_goroutines")
}

func TestRegisterQueue(t *testing.T) {
	m, err := NewMetrics()
	require.NoError(t, err)

	stats := staticStats{PendingJobs: 3, RunningJobs: 1, QueueUtilization: 40}
	stats.TotalJobs = 9
	stats.RetryAttempts = 2
	require.NoError(t, m.RegisterQueue(stats))
	require.Error(t, m.RegisterQueue(stats))

	expected := `
# HELP handscan_queue_active_jobs Jobs currently pending or running in the detection queue.
# TYPE handscan_queue_active_jobs gauge
handscan_queue_active_jobs{state="pending"} 3
handscan_queue_active_jobs{state="running"} 1
`
	require.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "handscan_queue_active_jobs"))

	count, err := testutil.GatherAndCount(m.Registry(), "handscan_queue_jobs_total")
	require.NoError(t, err)
	assert.Equal(t, 6, count)
}

func TestOutboundHook(t *testing.T) {
	m, err := NewMetrics()
	require.NoError(t, err)

	hook := m.OutboundHook()
	req := &http.Request{Method: http.MethodPost, URL: &url.URL{Scheme: "https", Host: "modal.test", Path: "/detect"}}
	hook(req, &http.Response{StatusCode: http.StatusAccepted}, nil, 150*time.Millisecond)
	hook(req, nil, assert.AnError, time.Second)

	body := scrape(t, m)
	assert.Contains(t, body, `http_outbound_requests_total{host="modal.test",method="POST",status_code="202"} 1`)
	assert.Contains(t, body, `http_outbound_requests_total{host="modal.test",method="POST",status_code="error"} 1`)

	families, err := m.Registry().Gather()
	require.NoError(t, err)
	family := findFamily(families, "http_outbound_request_duration_seconds")
	require.NotNil(t, family)
	require.Len(t, family.GetMetric(), 1)

	histogram := family.GetMetric()[0].GetHistogram()
	assert.Equal(t, uint64(2), histogram.GetSampleCount())
	assert.InDelta(t, 1.15, histogram.GetSampleSum(), 1e-9)
}

func findFamily(families []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, f := range families {
		if f.GetName() == name {
			return f
		}
	}
	return nil
}

func TestNilMetricsRecorder(t *testing.T) {
	var m *Metrics
	assert.Equal(t, metrics.NoopRecorder{}, m.Recorder())
}

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))
	return rec.Body.String()
}
