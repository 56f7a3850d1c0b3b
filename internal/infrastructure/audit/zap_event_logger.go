package audit

import (
	"context"

	"github.com/you/findmyseat/domain"
	"go.uber.org/zap"
)

// ZapEventLogger writes session events as structured log lines
type ZapEventLogger struct {
	logger *zap.Logger
}

// NewZapEventLogger creates an event logger on top of logger; nil falls back to zap.L()
func NewZapEventLogger(logger *zap.Logger) domain.EventLogger {
	if logger == nil {
		logger = zap.L()
	}
	return &ZapEventLogger{logger: logger.Named("audit")}
}

// LogEvent implements domain.EventLogger. Failed events are logged at warn level.
func (l *ZapEventLogger) LogEvent(ctx context.Context, event *domain.SessionEvent) {
	if event == nil {
		return
	}

	fields := []zap.Field{
		zap.String("event_type", string(event.EventType)),
		zap.Time("timestamp", event.Timestamp),
		zap.Bool("success", event.Success),
	}
	if event.Operation != "" {
		fields = append(fields, zap.String("operation", event.Operation))
	}
	if event.Email != "" {
		fields = append(fields, zap.String("email", event.Email))
	}
	if event.Phone != "" {
		fields = append(fields, zap.String("phone", maskPhone(event.Phone)))
	}
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok && requestID != "" {
		fields = append(fields, zap.String("request_id", requestID))
	}
	if len(event.Metadata) > 0 {
		fields = append(fields, zap.Any("metadata", event.Metadata))
	}

	if !event.Success {
		l.logger.Warn(string(event.EventType), append(fields, zap.String("error", event.ErrorMsg))...)
		return
	}
	l.logger.Info(string(event.EventType), fields...)
}

type contextKey string

// RequestIDKey carries the request id from the HTTP layer into audit lines
const RequestIDKey contextKey = "request_id"

// maskPhone keeps the last four digits
func maskPhone(phone string) string {
	if len(phone) <= 4 {
		return phone
	}
	masked := make([]byte, len(phone))
	for i := range masked {
		if i < len(phone)-4 {
			masked[i] = '*'
		} else {
			masked[i] = phone[i]
		}
	}
	return string(masked)
}
