package services

import "context"

type contextKey string

const (
	assetIDKey    contextKey = "asset_id"
	componentKey  contextKey = "component"
	requestIDKey  contextKey = "request_id"
	workflowIDKey contextKey = "workflow_id"
)

// WithAssetID annotates context with the asset identifier being processed.
func WithAssetID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, assetIDKey, id)
}

// AssetIDFromContext extracts the asset identifier if present.
func AssetIDFromContext(ctx context.Context) (int64, bool) {
	v := ctx.Value(assetIDKey)
	if v == nil {
		return 0, false
	}
	switch val := v.(type) {
	case int64:
		return val, true
	case int:
		return int64(val), true
	default:
		return 0, false
	}
}

// WithComponent annotates context with the component name doing the work.
func WithComponent(ctx context.Context, component string) context.Context {
	if component == "" {
		return ctx
	}
	return context.WithValue(ctx, componentKey, component)
}

// ComponentFromContext returns the component name if present.
func ComponentFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(componentKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithWorkflowID annotates context with the workflow identifier in play.
func WithWorkflowID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, workflowIDKey, id)
}

// WorkflowIDFromContext returns the workflow identifier if present.
func WorkflowIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(workflowIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
