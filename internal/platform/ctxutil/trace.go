// Package ctxutil carries per-request trace identity on the context,
// where middleware and the request logger can both reach it.
package ctxutil

import "context"

type traceDataKey struct{}

// TraceData ties one request's log lines and trace spans together.
type TraceData struct {
	TraceID   string
	RequestID string
}

// LogFields appends the non-empty ids to fields in the logger's
// alternating key/value layout.
func (td *TraceData) LogFields(fields []interface{}) []interface{} {
	if td == nil {
		return fields
	}
	if td.TraceID != "" {
		fields = append(fields, "trace_id", td.TraceID)
	}
	if td.RequestID != "" {
		fields = append(fields, "request_id", td.RequestID)
	}
	return fields
}

func WithTraceData(ctx context.Context, td *TraceData) context.Context {
	return context.WithValue(ctx, traceDataKey{}, td)
}

func GetTraceData(ctx context.Context) *TraceData {
	val := ctx.Value(traceDataKey{})
	if td, ok := val.(*TraceData); ok {
		return td
	}
	return nil
}
