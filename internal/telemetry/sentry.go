// Package telemetry provides opt-in, privacy-filtered error reporting to
// Sentry. Only server-side failures are reported; see errors.SentryReporter.
package telemetry

import (
	"fmt"
	"runtime"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/handscan/handscan/internal/buildinfo"
	"github.com/handscan/handscan/internal/conf"
	"github.com/handscan/handscan/internal/errors"
	"github.com/handscan/handscan/internal/logger"
	"github.com/handscan/handscan/internal/privacy"
)

const flushTimeout = 2 * time.Second

// installIDHeader is dropped from captured requests.
const installIDHeader = "X-Install-Id"

// Option adjusts the Sentry client options.
type Option func(*sentry.ClientOptions)

// WithTransport replaces the Sentry transport.
func WithTransport(t sentry.Transport) Option {
	return func(o *sentry.ClientOptions) {
		o.Transport = t
	}
}

// InitSentry initializes the Sentry SDK and routes reportable enhanced
// errors to it. Reporting stays off unless sentry.enabled is set and a DSN
// is configured. The returned function flushes buffered events and must be
// called before exit.
func InitSentry(settings *conf.Settings, build buildinfo.BuildInfo, opts ...Option) (func(), error) {
	log := logger.Global().Module("telemetry")
	noop := func() {}

	if !settings.Sentry.Enabled {
		log.Debug("sentry telemetry is disabled")
		return noop, nil
	}
	if settings.Sentry.DSN == "" {
		log.Warn("sentry is enabled but no DSN is configured")
		return noop, nil
	}

	environment := settings.Sentry.Environment
	if environment == "" {
		environment = "production"
	}

	options := sentry.ClientOptions{
		Dsn:              settings.Sentry.DSN,
		SampleRate:       1.0,
		AttachStacktrace: false,
		Environment:      environment,
		ServerName:       "",
		Release:          fmt.Sprintf("handscan@%s", build.GetVersion()),
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			return applyPrivacyFilters(event)
		},
	}
	for _, opt := range opts {
		opt(&options)
	}

	if err := sentry.Init(options); err != nil {
		return noop, fmt.Errorf("sentry initialization failed: %w", err)
	}

	configureScope(build)
	errors.SetTelemetryReporter(errors.NewSentryReporter(true))

	log.Info("sentry telemetry enabled",
		logger.String("environment", environment),
		logger.String("release", options.Release))

	return func() {
		errors.SetTelemetryReporter(nil)
		sentry.Flush(flushTimeout)
	}, nil
}

// applyPrivacyFilters removes host, user and client identifiers from an
// event before it leaves the process.
func applyPrivacyFilters(event *sentry.Event) *sentry.Event {
	event.User = sentry.User{}
	event.ServerName = ""
	event.Message = privacy.ScrubMessage(event.Message)
	for i := range event.Exception {
		event.Exception[i].Value = privacy.ScrubMessage(event.Exception[i].Value)
	}

	if event.Contexts != nil {
		delete(event.Contexts, "device")
		delete(event.Contexts, "os")
	}

	for k := range event.Extra {
		if k != "error_type" && k != "component" {
			delete(event.Extra, k)
		}
	}

	if event.Tags != nil {
		delete(event.Tags, "server_name")
		delete(event.Tags, "hostname")
		delete(event.Tags, "install_id")
	}

	if event.Request != nil {
		if event.Request.URL != "" {
			event.Request.URL = privacy.ScrubURL(event.Request.URL)
		}
		event.Request.Cookies = ""
		event.Request.QueryString = ""
		delete(event.Request.Headers, installIDHeader)
		delete(event.Request.Headers, "Authorization")
	}

	return event
}

func configureScope(build buildinfo.BuildInfo) {
	sentry.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("os", runtime.GOOS)
		scope.SetTag("arch", runtime.GOARCH)
		scope.SetContext("application", map[string]any{
			"name":       "handscan",
			"version":    build.GetVersion(),
			"build_date": build.GetBuildDate(),
			"go_version": runtime.Version(),
		})
	})
}
