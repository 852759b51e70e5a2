package ctxutil

import "context"

type traceDataKey struct{}

type TraceData struct {
	TraceID   string
	RequestID string
}

func WithTraceData(ctx context.Context, td *TraceData) context.Context {
	return context.WithValue(ctx, traceDataKey{}, td)
}

func GetTraceData(ctx context.Context) *TraceData {
	if td, ok := ctx.Value(traceDataKey{}).(*TraceData); ok {
		return td
	}
	return nil
}

// LogFields returns trace_id/request_id pairs for structured logging, or nil
// when the context carries no trace data.
func LogFields(ctx context.Context) []interface{} {
	td := GetTraceData(Default(ctx))
	if td == nil {
		return nil
	}
	out := make([]interface{}, 0, 4)
	if td.TraceID != "" {
		out = append(out, "trace_id", td.TraceID)
	}
	if td.RequestID != "" {
		out = append(out, "request_id", td.RequestID)
	}
	return out
}

// Detach keeps trace data but drops cancellation, for work that outlives the
// request that scheduled it.
func Detach(ctx context.Context) context.Context {
	out := context.Background()
	if td := GetTraceData(Default(ctx)); td != nil {
		out = WithTraceData(out, &TraceData{TraceID: td.TraceID, RequestID: td.RequestID})
	}
	return out
}
