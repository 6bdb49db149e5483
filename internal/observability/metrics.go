// Package observability wires the Prometheus registry and the /metrics
// handler. Sentry error telemetry lives in the telemetry package.
package observability

import (
	"fmt"
	stdlog "log"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/handscan/handscan/internal/logger"
	"github.com/handscan/handscan/internal/observability/metrics"
)

// Metrics holds all the metric collectors for the application.
type Metrics struct {
	registry  *prometheus.Registry
	Detection *metrics.DetectionMetrics
	HTTP      *metrics.HTTPMetrics
	Queue     *metrics.QueueCollector
}

// NewMetrics creates a registry with the process and Go runtime collectors
// plus the handscan metrics. Each call uses its own registry.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()

	if err := registry.Register(collectors.NewGoCollector()); err != nil {
		return nil, fmt.Errorf("failed to register Go collector: %w", err)
	}
	if err := registry.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, fmt.Errorf("failed to register process collector: %w", err)
	}

	detectionMetrics, err := metrics.NewDetectionMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create detection metrics: %w", err)
	}

	httpMetrics, err := metrics.NewHTTPMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP metrics: %w", err)
	}

	return &Metrics{
		registry:  registry,
		Detection: detectionMetrics,
		HTTP:      httpMetrics,
	}, nil
}

// RegisterQueue exports the statistics of a job queue. It may be called once.
func (m *Metrics) RegisterQueue(source metrics.QueueStatsSource) error {
	if m.Queue != nil {
		return fmt.Errorf("queue metrics already registered")
	}
	c, err := metrics.NewQueueCollector(m.registry, source)
	if err != nil {
		return fmt.Errorf("failed to create queue metrics: %w", err)
	}
	m.Queue = c
	return nil
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorLog:      stdlog.New(os.Stderr, "metrics handler: ", stdlog.LstdFlags),
		ErrorHandling: promhttp.ContinueOnError,
	})
}

// Recorder returns the detection metrics as a metrics.Recorder, or a no-op
// recorder when m is nil.
func (m *Metrics) Recorder() metrics.Recorder {
	if m == nil || m.Detection == nil {
		return metrics.NoopRecorder{}
	}
	return m.Detection
}

// OutboundHook returns an httpclient after-response hook feeding the
// outbound request metrics.
func (m *Metrics) OutboundHook() func(req *http.Request, resp *http.Response, err error, elapsed time.Duration) {
	return func(req *http.Request, resp *http.Response, err error, elapsed time.Duration) {
		status := 0
		if err == nil && resp != nil {
			status = resp.StatusCode
		}
		m.HTTP.RecordOutboundRequest(req.URL.Host, req.Method, status, elapsed.Seconds())
		if err != nil {
			log.Debug("outbound request failed",
				logger.String("host", req.URL.Host),
				logger.Error(err))
		}
	}
}
