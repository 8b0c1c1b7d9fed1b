package logger

import (
	"fmt"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
)

// OtelHandler forwards entries to an OpenTelemetry logger so they are
// exported next to traces and metrics.
type OtelHandler struct {
	logger otellog.Logger
}

// NewOtelHandler creates a handler that emits through provider. When provider
// is nil the global logger provider is used.
func NewOtelHandler(name string, provider otellog.LoggerProvider) *OtelHandler {
	if provider == nil {
		provider = global.GetLoggerProvider()
	}
	return &OtelHandler{logger: provider.Logger(name)}
}

// Handle converts the entry into a log record and emits it.
func (h *OtelHandler) Handle(entry Entry) error {
	var rec otellog.Record
	rec.SetTimestamp(entry.Timestamp)
	rec.SetObservedTimestamp(time.Now())
	rec.SetSeverity(severity(entry.Severity()))
	rec.SetSeverityText(entry.Level)
	rec.SetBody(otellog.StringValue(entry.Message))

	attrs := make([]otellog.KeyValue, 0, len(entry.Fields)+3)
	attrs = append(attrs,
		otellog.String("log.id", entry.ID),
		otellog.String("service.name", entry.Service),
	)
	if entry.Caller != "" {
		attrs = append(attrs, otellog.String("code.caller", entry.Caller))
	}
	for k, v := range entry.Fields {
		attrs = append(attrs, keyValue(k, v))
	}
	rec.AddAttributes(attrs...)

	// The span context travels in ctx, so the SDK correlates the record itself
	h.logger.Emit(entry.ctx, rec)
	return nil
}

// Close implements the OutputHandler interface. The provider owns shutdown.
func (h *OtelHandler) Close() error {
	return nil
}

func severity(l Level) otellog.Severity {
	switch l {
	case DebugLevel:
		return otellog.SeverityDebug
	case InfoLevel:
		return otellog.SeverityInfo
	case WarnLevel:
		return otellog.SeverityWarn
	case ErrorLevel:
		return otellog.SeverityError
	case FatalLevel:
		return otellog.SeverityFatal
	default:
		return otellog.SeverityUndefined
	}
}

func keyValue(key string, v interface{}) otellog.KeyValue {
	switch val := v.(type) {
	case string:
		return otellog.String(key, val)
	case bool:
		return otellog.Bool(key, val)
	case int:
		return otellog.Int(key, val)
	case int64:
		return otellog.Int64(key, val)
	case float64:
		return otellog.Float64(key, val)
	case error:
		return otellog.String(key, val.Error())
	case time.Duration:
		return otellog.String(key, val.String())
	default:
		return otellog.String(key, fmt.Sprint(val))
	}
}
