// Package report forwards errors to Sentry when a DSN is configured.
package report

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	sentryhttp "github.com/getsentry/sentry-go/http"
)

// Config configures error reporting.
type Config struct {
	DSN         string
	Environment string
	Release     string
}

// Reporter sends errors to Sentry. A Reporter without a DSN only logs.
type Reporter struct {
	enabled bool
	logger  *slog.Logger
}

// New initializes Sentry. An empty DSN disables reporting with a warning.
func New(cfg Config, logger *slog.Logger) (*Reporter, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DSN == "" {
		logger.Warn("Sentry DSN not configured - error tracking disabled")
		return &Reporter{logger: logger}, nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.DSN,
		Environment: cfg.Environment,
		Release:     cfg.Release,
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			if event.Request != nil && event.Request.Headers != nil {
				delete(event.Request.Headers, "Authorization")
				delete(event.Request.Headers, "Cookie")
			}
			return event
		},
	})
	if err != nil {
		return nil, fmt.Errorf("sentry init: %w", err)
	}
	logger.Info("Sentry initialized", "environment", cfg.Environment)
	return &Reporter{enabled: true, logger: logger}, nil
}

// Enabled reports whether events are sent.
func (r *Reporter) Enabled() bool {
	return r != nil && r.enabled
}

// CaptureError reports err with the given tags.
func (r *Reporter) CaptureError(err error, tags map[string]string) {
	if err == nil || !r.Enabled() {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
		sentry.CaptureException(err)
	})
	r.logger.Debug("Exception captured in Sentry", "error", err.Error())
}

// Middleware recovers panics in HTTP handlers and reports them.
func (r *Reporter) Middleware(next http.Handler) http.Handler {
	if !r.Enabled() {
		return next
	}
	return sentryhttp.New(sentryhttp.Options{Repanic: true}).Handle(next)
}

// Flush waits for buffered events to be sent.
func (r *Reporter) Flush(timeout time.Duration) bool {
	if !r.Enabled() {
		return true
	}
	return sentry.Flush(timeout)
}
