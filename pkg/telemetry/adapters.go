package telemetry

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter builds a JSON logger on stdout at the given level
// ("DEBUG", "INFO", "WARN", "ERROR"; anything else means INFO).
func NewSlogAdapter(level string) *SlogAdapter {
	var lvl slog.Level
	switch strings.ToUpper(level) {
	case "DEBUG":
		lvl = slog.LevelDebug
	case "WARN":
		lvl = slog.LevelWarn
	case "ERROR":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	return &SlogAdapter{
		logger: slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})),
	}
}

func (l *SlogAdapter) log(ctx context.Context, lvl slog.Level, msg string, fields map[string]any) {
	args := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	l.logger.Log(ctx, lvl, msg, args...)
}

func (l *SlogAdapter) Debug(ctx context.Context, msg string, fields map[string]any) {
	l.log(ctx, slog.LevelDebug, msg, fields)
}

func (l *SlogAdapter) Info(ctx context.Context, msg string, fields map[string]any) {
	l.log(ctx, slog.LevelInfo, msg, fields)
}

func (l *SlogAdapter) Error(ctx context.Context, msg string, fields map[string]any) {
	l.log(ctx, slog.LevelError, msg, fields)
}

type NoopLogger struct{}

func NewNoopLogger() *NoopLogger {
	return &NoopLogger{}
}

func (l *NoopLogger) Debug(ctx context.Context, msg string, fields map[string]any) {}
func (l *NoopLogger) Info(ctx context.Context, msg string, fields map[string]any)  {}
func (l *NoopLogger) Error(ctx context.Context, msg string, fields map[string]any) {}

type NoopMetrics struct{}

func NewNoopMetrics() *NoopMetrics {
	return &NoopMetrics{}
}

func (m *NoopMetrics) IncCounter(name string, value float64, labels ...Label)       {}
func (m *NoopMetrics) ObserveHistogram(name string, value float64, labels ...Label) {}
func (m *NoopMetrics) SetGauge(name string, value float64, labels ...Label)         {}
