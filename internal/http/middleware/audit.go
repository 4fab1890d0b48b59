package middleware

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/valyala/fasthttp"

	"atlasgw/internal/db"
	httpctx "atlasgw/internal/http/ctx"
	"atlasgw/internal/usage"
)

var (
	requestsTotal          *prometheus.CounterVec
	requestDurationBuckets *prometheus.HistogramVec
)

// InitMetrics registers the gateway's Prometheus collectors. Call once at
// startup, before the server accepts traffic.
func InitMetrics() {
	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "atlasgw",
			Name:      "requests_total",
			Help:      "Total number of gateway requests.",
		},
		[]string{"action", "method", "status"},
	)
	requestDurationBuckets = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "atlasgw",
			Name:      "request_duration_seconds",
			Help:      "Histogram of gateway request durations in seconds.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"action", "method"},
	)
	prometheus.MustRegister(requestsTotal, requestDurationBuckets)
}

// Audit wraps the router and appends one usage event per authenticated
// gateway invocation after the response is written. Recording is detached
// from the response path: the caller never waits on it and its failure is
// only logged. The usage endpoints themselves are skipped (they are the
// caller-facing recording channel, auditing them would double-count), as
// are the unauthenticated health and metrics routes.
func Audit(rec *usage.Recorder) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			start := time.Now()
			next(ctx)
			duration := time.Since(start)

			path := string(ctx.Path())
			if path == "/healthz" || path == "/metrics" || strings.HasPrefix(path, "/v1/usage") {
				return
			}

			identity, ok := httpctx.AuthFromCtx(ctx)
			if !ok {
				return
			}

			method := string(ctx.Method())
			statusCode := ctx.Response.StatusCode()
			action := actionFor(method, path)

			if requestsTotal != nil {
				requestsTotal.WithLabelValues(action, method, strconv.Itoa(statusCode)).Inc()
				requestDurationBuckets.WithLabelValues(action, method).Observe(duration.Seconds())
			}

			durationMs := duration.Milliseconds()
			entry := usage.Entry{
				PrincipalID:  identity.PrincipalID,
				CredentialID: identity.CredentialID,
				Action:       action,
				DurationMs:   &durationMs,
				Status:       db.StatusSuccess,
				Metadata: map[string]any{
					"method":      method,
					"path":        path,
					"http_status": statusCode,
				},
			}
			if statusCode >= 400 {
				entry.Status = db.StatusError
				entry.ErrorMessage = fmt.Sprintf("HTTP %d", statusCode)
			}

			rec.RecordAsync(entry)
		}
	}
}

// actionFor derives the audit action tag from the request path.
func actionFor(method, path string) string {
	switch {
	case path == "/rpc/chains":
		return "rpc.chains"
	case strings.HasPrefix(path, "/rpc/"):
		return "rpc." + strings.ToLower(strings.TrimPrefix(path, "/rpc/"))
	case strings.HasPrefix(path, "/v1/swap/"):
		return "swap." + strings.TrimPrefix(path, "/v1/swap/")
	case strings.HasPrefix(path, "/v1/credentials"):
		switch method {
		case fasthttp.MethodPost:
			return "credentials.issue"
		case fasthttp.MethodDelete:
			return "credentials.revoke"
		default:
			return "credentials.list"
		}
	default:
		return strings.Trim(strings.ReplaceAll(strings.TrimPrefix(path, "/v1"), "/", "."), ".")
	}
}
