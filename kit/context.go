package kit

import "context"

type contextKey string

const (
	TransportKey contextKey = "kit_transport" // "http", "mcp"
	TraceIDKey   contextKey = "kit_trace_id"
	CallbackKey  contextKey = "kit_callback"
	ChangedKey   contextKey = "kit_changed"
)

func WithTransport(ctx context.Context, t string) context.Context {
	return context.WithValue(ctx, TransportKey, t)
}
func GetTransport(ctx context.Context) string {
	if v, ok := ctx.Value(TransportKey).(string); ok {
		return v
	}
	return "http"
}

func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, TraceIDKey, id)
}
func GetTraceID(ctx context.Context) string {
	v, _ := ctx.Value(TraceIDKey).(string)
	return v
}

// WithCallback records the output component a dispatched callback renders.
func WithCallback(ctx context.Context, output string) context.Context {
	return context.WithValue(ctx, CallbackKey, output)
}
func GetCallback(ctx context.Context) string {
	v, _ := ctx.Value(CallbackKey).(string)
	return v
}

// WithChanged records the control IDs whose change triggered a dispatch.
func WithChanged(ctx context.Context, ids []string) context.Context {
	return context.WithValue(ctx, ChangedKey, ids)
}
func GetChanged(ctx context.Context) []string {
	v, _ := ctx.Value(ChangedKey).([]string)
	return v
}
