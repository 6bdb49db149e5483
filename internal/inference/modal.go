package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/handscan/handscan/internal/conf"
	"github.com/handscan/handscan/internal/errors"
	"github.com/handscan/handscan/internal/httpclient"
	"github.com/handscan/handscan/internal/logger"
)

// CodeModalServiceError is the stable code for every inference failure.
const CodeModalServiceError = "modal_service_error"

// maxResultBody bounds the result payload read from the service.
const maxResultBody = 8 << 20

// Modal is the HTTP client for the detector deployed on Modal.
//
//	POST {endpoint}/detect          {"image_url","version"} -> {"call_id"}
//	GET  {endpoint}/results/{id}    202 while running, 200 with the result
type Modal struct {
	endpoint string
	http     *httpclient.Client
	limiter  *rate.Limiter
	timeout  time.Duration
	log      logger.Logger
}

// ModalOption customizes a Modal client.
type ModalOption func(*httpclient.Config)

// WithTransport replaces the HTTP transport.
func WithTransport(rt http.RoundTripper) ModalOption {
	return func(c *httpclient.Config) { c.Transport = rt }
}

// NewModal creates a client for settings.Endpoint.
func NewModal(settings *conf.InferenceSettings, log logger.Logger, opts ...ModalOption) (*Modal, error) {
	if settings.Endpoint == "" {
		return nil, errors.Newf("inference endpoint is not configured").
			Component("inference").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if log == nil {
		log = logger.Global().Module("inference")
	}

	cfg := httpclient.DefaultConfig()
	cfg.DefaultTimeout = settings.Timeout
	cfg.BearerToken = settings.Token
	for _, opt := range opts {
		opt(&cfg)
	}

	limit := rate.Inf
	if settings.RequestsPerSecond > 0 {
		limit = rate.Limit(settings.RequestsPerSecond)
	}
	burst := max(settings.Burst, 1)

	return &Modal{
		endpoint: strings.TrimRight(settings.Endpoint, "/"),
		http:     httpclient.New(&cfg),
		limiter:  rate.NewLimiter(limit, burst),
		timeout:  settings.Timeout,
		log:      log,
	}, nil
}

// HTTPClient exposes the underlying client so callers can attach hooks.
func (m *Modal) HTTPClient() *httpclient.Client {
	return m.http
}

type submitRequest struct {
	ImageURL string `json:"image_url"`
	Version  string `json:"version"`
}

type submitResponse struct {
	CallID string `json:"call_id"`
}

func (m *Modal) Submit(ctx context.Context, imageURL, modelVersion string) (string, error) {
	if !IsSupportedVersion(modelVersion) {
		return "", errors.Newf("unsupported model version %q", modelVersion).
			Component("inference").
			Category(errors.CategoryValidation).
			Code("invalid_model_version").
			Build()
	}

	target := m.endpoint + "/detect"
	if err := m.limiter.Wait(ctx); err != nil {
		return "", m.transportError(err, "submit", target, time.Now())
	}

	start := time.Now()
	resp, err := m.http.PostJSON(ctx, target, submitRequest{ImageURL: imageURL, Version: modelVersion})
	if err != nil {
		return "", m.transportError(err, "submit", target, start)
	}

	var out submitResponse
	if err := httpclient.DecodeJSON(resp, &out); err != nil {
		return "", m.serviceError(err, "submit", start)
	}
	if out.CallID == "" {
		return "", m.serviceError(errors.NewStd("response has no call_id"), "submit", start)
	}

	m.log.Debug("detection submitted",
		logger.String("call_id", out.CallID),
		logger.String("model_version", modelVersion),
		logger.Duration("elapsed", time.Since(start)))
	return out.CallID, nil
}

func (m *Modal) Poll(ctx context.Context, callID string) (*Result, error) {
	target := m.endpoint + "/results/" + url.PathEscape(callID)
	if err := m.limiter.Wait(ctx); err != nil {
		return nil, m.transportError(err, "poll", target, time.Now())
	}

	start := time.Now()
	resp, err := m.http.Get(ctx, target)
	if err != nil {
		return nil, m.transportError(err, "poll", target, start)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusAccepted:
		_, _ = io.Copy(io.Discard, resp.Body)
		return PendingResult, nil
	case http.StatusOK:
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		m.log.Warn("inference poll returned unexpected status",
			logger.String("call_id", callID),
			logger.Int("status", resp.StatusCode),
			logger.String("body", string(bytes.TrimSpace(body))))
		return nil, m.serviceError(fmt.Errorf("modal returned status %d", resp.StatusCode), "poll", start)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResultBody))
	if err != nil {
		return nil, m.transportError(err, "poll", target, start)
	}

	var result Result
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, m.serviceError(fmt.Errorf("failed to decode result: %w", err), "poll", start)
	}
	result.Raw = raw

	m.log.Debug("detection result received",
		logger.String("call_id", callID),
		logger.Int("boxes", len(result.Detections)),
		logger.Duration("elapsed", time.Since(start)))
	return &result, nil
}

// transportError reports a failure to reach the service.
func (m *Modal) transportError(err error, operation, target string, start time.Time) error {
	return errors.New(fmt.Errorf("failed to %s detection: %w", operation, err)).
		Component("inference").
		Category(errors.CategoryNetwork).
		Code(CodeModalServiceError).
		NetworkContext(target, m.timeout).
		Timing(operation, time.Since(start)).
		Build()
}

// serviceError reports a response the service should not have sent.
func (m *Modal) serviceError(err error, operation string, start time.Time) error {
	return errors.New(fmt.Errorf("failed to %s detection: %w", operation, err)).
		Component("inference").
		Category(errors.CategoryIntegration).
		Code(CodeModalServiceError).
		Timing(operation, time.Since(start)).
		Build()
}
