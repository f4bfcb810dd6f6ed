package services

import (
	"context"
	"time"

	"github.com/saeid-a/ConsultBookBack/internal/repository"
	"go.uber.org/zap"
)

const (
	LogLevelError   = "error"
	LogLevelWarning = "warning"
)

type errorLogWriter interface {
	CreateErrorLog(ctx context.Context, input repository.CreateErrorLogInput) error
}

// ErrorReporter logs a failure and keeps a row of it in error_logs. It is
// used for failures that must not abort the caller.
type ErrorReporter struct {
	logger *zap.Logger
	logs   errorLogWriter
}

func NewErrorReporter(logger *zap.Logger, logs errorLogWriter) *ErrorReporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ErrorReporter{logger: logger, logs: logs}
}

func (r *ErrorReporter) Report(ctx context.Context, source string, err error, details map[string]any) {
	r.record(ctx, LogLevelError, source, err, details)
}

func (r *ErrorReporter) Warn(ctx context.Context, source string, err error, details map[string]any) {
	r.record(ctx, LogLevelWarning, source, err, details)
}

func (r *ErrorReporter) record(ctx context.Context, level, source string, err error, details map[string]any) {
	if r == nil || err == nil {
		return
	}

	fields := []zap.Field{zap.String("source", source), zap.Error(err)}
	for key, value := range details {
		fields = append(fields, zap.Any(key, value))
	}
	if level == LogLevelWarning {
		r.logger.Warn("background failure", fields...)
	} else {
		r.logger.Error("background failure", fields...)
	}

	if r.logs == nil {
		return
	}
	// the request context may already be cancelled
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
	defer cancel()
	if writeErr := r.logs.CreateErrorLog(writeCtx, repository.CreateErrorLogInput{
		Level:   level,
		Source:  source,
		Message: err.Error(),
		Context: details,
	}); writeErr != nil {
		r.logger.Error("failed to persist error log", zap.String("source", source), zap.Error(writeErr))
	}
}
