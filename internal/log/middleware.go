package log

import (
	"context"
	"log/slog"
	"net/http"
)

type ContextKey string

const LoggerContextKey ContextKey = "logger"

// NewContext returns a copy of ctx carrying logger.
func NewContext(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, LoggerContextKey, logger)
}

// FromContext returns the request logger, or one over slog.Default outside a request.
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(LoggerContextKey).(*Logger); ok {
		return logger
	}
	return &Logger{
		Logger:    slog.Default(),
		component: "unknown",
	}
}

// StructuredLogger writes the domain events worth a fixed message and field set.
type StructuredLogger struct {
	logger *Logger
}

func NewStructuredLogger(logger *Logger) *StructuredLogger {
	return &StructuredLogger{logger: logger}
}

// LogHTTPEnd logs at warn for 4xx and error for 5xx.
func (sl *StructuredLogger) LogHTTPEnd(ctx context.Context, r *http.Request, statusCode int, durationMs int64, clientIP string) {
	level := slog.LevelInfo
	if statusCode >= 400 && statusCode < 500 {
		level = slog.LevelWarn
	} else if statusCode >= 500 {
		level = slog.LevelError
	}

	fields := NewFields().
		WithHTTPRequest(r.Method, r.URL.Path, r.Header.Get("User-Agent")).
		WithHTTPResponse(statusCode, durationMs, statusCode < 400).
		WithClientIP(clientIP).
		WithComponent(ComponentHTTP)

	sl.logger.Logger.Log(ctx, level, "HTTP request completed", fields.ToSlice()...)
}

// LogAttendanceSubmitted logs a class-day submission
func (sl *StructuredLogger) LogAttendanceSubmitted(ctx context.Context, class, section, date string, entries int) {
	fields := NewFields().
		WithClassDay(class, section, date).
		WithOperation(OpSubmit).
		WithComponent(ComponentAttendance).
		ToSlice()
	fields = append(fields, FieldEntries, entries)

	sl.logger.Logger.InfoContext(ctx, "Attendance submitted", fields...)
}

// LogFeeCollected logs a recorded payment
func (sl *StructuredLogger) LogFeeCollected(ctx context.Context, admissionNo, receiptNo string, amountCents int64) {
	fields := NewFields().
		WithPayment(admissionNo, receiptNo, amountCents).
		WithOperation(OpCollect).
		WithComponent(ComponentFees)

	sl.logger.Logger.InfoContext(ctx, "Fee payment recorded", fields.ToSlice()...)
}

// LogError records an unexpected failure of operation within component.
func (sl *StructuredLogger) LogError(ctx context.Context, msg string, err error, component string, operation string, fields LogFields) {
	if fields == nil {
		fields = NewFields()
	}
	allFields := fields.
		WithError(err).
		WithOperation(operation).
		WithComponent(component)

	sl.logger.Logger.ErrorContext(ctx, msg, allFields.ToSlice()...)
}
