package tools

import (
	"context"
	"log/slog"
	"time"

	"chefai"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// CallResult pairs a call with its outcome. Call.ID correlates it with the
// model's request.
type CallResult struct {
	Call     Call
	Result   Result
	Duration time.Duration
}

// Executor dispatches tool calls against the registry.
type Executor struct {
	registry *Registry
}

func NewExecutor(registry *Registry) *Executor {
	return &Executor{registry: registry}
}

// Execute runs one call. Unknown tools and panics become error results.
func (e *Executor) Execute(ctx context.Context, call Call) (res Result) {
	ctx, span := otel.Tracer(chefai.TracerNameExecutor).Start(ctx, "Executor.Execute")
	defer span.End()
	span.SetAttributes(
		attribute.String("tool.name", call.Name),
		attribute.String("tool.call_id", call.ID),
	)

	defer func() {
		if p := recover(); p != nil {
			slog.Error("EXECUTOR: Tool panicked", "tool", call.Name, "panic", p)
			res = ErrorResult("Tool %s failed", call.Name)
		}
		span.SetAttributes(attribute.String("tool.result_kind", res.Kind.String()))
		if res.IsError() {
			span.SetStatus(codes.Error, res.Message)
		}
	}()

	tool, err := e.registry.GetTool(call.Name)
	if err != nil {
		slog.Warn("EXECUTOR: Unsupported tool requested", "tool", call.Name, "call_id", call.ID)
		return ErrorResult("Unsupported tool")
	}

	slog.Info("EXECUTOR: Running tool", "tool", call.Name, "call_id", call.ID, "args_len", len(call.Arguments))
	res = tool.Run(ctx, call.Arguments)
	if res.IsError() {
		slog.Warn("EXECUTOR: Tool returned error", "tool", call.Name, "call_id", call.ID, "error", res.Message)
	}
	return res
}

// ExecuteAll runs calls one after another in request order.
func (e *Executor) ExecuteAll(ctx context.Context, calls []Call) []CallResult {
	out := make([]CallResult, 0, len(calls))
	for _, call := range calls {
		start := time.Now()
		res := e.Execute(ctx, call)
		out = append(out, CallResult{Call: call, Result: res, Duration: time.Since(start)})
	}
	return out
}
