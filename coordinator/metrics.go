package coordinator

import (
	"go.opentelemetry.io/otel/metric"
)

type instruments struct {
	turns            metric.Int64Counter
	turnsFailed      metric.Int64Counter
	toolCalls        metric.Int64Counter
	toolCallsFailed  metric.Int64Counter
	llmResponseTime  metric.Float64Histogram
	toolExecution    metric.Float64Histogram
	turnDuration     metric.Float64Histogram
	conversationSize metric.Int64Gauge
}

func newInstruments(meter metric.Meter) instruments {
	var in instruments
	in.turns, _ = meter.Int64Counter("assistant_turns_total",
		metric.WithDescription("Total number of user turns started"))
	in.turnsFailed, _ = meter.Int64Counter("assistant_turns_failed_total",
		metric.WithDescription("Total number of turns resolved with the apology message"))
	in.toolCalls, _ = meter.Int64Counter("tool_calls_total",
		metric.WithDescription("Total number of tool calls executed"))
	in.toolCallsFailed, _ = meter.Int64Counter("tool_calls_failed_total",
		metric.WithDescription("Total number of tool calls that returned an error result"))
	in.llmResponseTime, _ = meter.Float64Histogram("llm_response_time_seconds",
		metric.WithDescription("Time taken to receive a response from the model in seconds"))
	in.toolExecution, _ = meter.Float64Histogram("tool_execution_time_seconds",
		metric.WithDescription("Time taken to execute individual tools in seconds"))
	in.turnDuration, _ = meter.Float64Histogram("turn_duration_seconds",
		metric.WithDescription("Total duration of a user turn in seconds"))
	in.conversationSize, _ = meter.Int64Gauge("messages_in_conversation",
		metric.WithDescription("Number of messages in the visible conversation"))
	return in
}
