package observability

import (
	"context"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"

	"github.com/solarpro/erp/pkg/contextkeys"
)

// NewLogger creates a JSON logger at the named level ("debug", "info", ...).
func NewLogger(level string, output io.Writer) (*logrus.Logger, error) {
	if output == nil {
		output = os.Stdout
	}

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, err
	}

	logger := logrus.New()
	logger.SetOutput(output)
	logger.SetLevel(lvl)
	logger.SetFormatter(&logrus.JSONFormatter{})
	return logger, nil
}

// FromContext decorates base with the request id, user id and trace ids found in ctx.
func FromContext(ctx context.Context, base logrus.FieldLogger) logrus.FieldLogger {
	fields := logrus.Fields{}
	if requestID := contextkeys.GetRequestID(ctx); requestID != "" {
		fields["request_id"] = requestID
	}
	if userID := contextkeys.GetUserID(ctx); userID != "" {
		fields["user_id"] = userID
	}
	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		fields["trace_id"] = span.SpanContext().TraceID().String()
		fields["span_id"] = span.SpanContext().SpanID().String()
	}
	if len(fields) == 0 {
		return base
	}
	return base.WithFields(fields)
}
