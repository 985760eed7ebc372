package monitoring

import (
	"log/slog"
	"os"
	"time"
)

// Logger provides structured JSON logging with helpers for the request and
// scoring paths.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new structured logger writing JSON to stdout.
func NewLogger() *Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.Attr{
					Key:   "timestamp",
					Value: slog.StringValue(a.Value.Time().Format(time.RFC3339)),
				}
			}
			return a
		},
	})

	return &Logger{Logger: slog.New(handler)}
}

// RequestLogger logs HTTP request details.
func (l *Logger) RequestLogger(method, path, ip, requestID string, statusCode int, duration time.Duration) {
	l.Info("HTTP Request",
		"method", method,
		"path", path,
		"ip", ip,
		"request_id", requestID,
		"status_code", statusCode,
		"duration_ms", duration.Milliseconds(),
	)
}

// SnapshotLogger logs one health snapshot computation.
func (l *Logger) SnapshotLogger(repo string, dt string, health *float64, duration time.Duration) {
	attrs := []any{
		"repo", repo,
		"dt", dt,
		"duration_ms", duration.Milliseconds(),
	}
	if health != nil {
		attrs = append(attrs, "score_health", *health)
	}
	l.Info("Health Snapshot Computed", attrs...)
}

// CompositeLogger logs one composite series computation.
func (l *Logger) CompositeLogger(repo, kind string, points, windowDays int, cacheHit bool, duration time.Duration) {
	l.Info("Composite Series Computed",
		"repo", repo,
		"kind", kind,
		"points", points,
		"window_days", windowDays,
		"cache_hit", cacheHit,
		"duration_ms", duration.Milliseconds(),
	)
}

// RecommendLogger logs one readiness/fit scoring pass.
func (l *Logger) RecommendLogger(cohortSize int, domain, stack string, duration time.Duration) {
	l.Info("Newcomer Recommendation Computed",
		"cohort_size", cohortSize,
		"domain", domain,
		"stack", stack,
		"duration_ms", duration.Milliseconds(),
	)
}

// APIErrorLogger logs API errors with request context.
func (l *Logger) APIErrorLogger(err error, method, path, ip string, statusCode int) {
	l.Error("API Error",
		"error", err.Error(),
		"method", method,
		"path", path,
		"ip", ip,
		"status_code", statusCode,
	)
}
