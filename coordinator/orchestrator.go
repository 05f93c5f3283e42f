// Package coordinator runs the assistant conversation: it sends each user
// turn to the model, executes at most one round of requested tools, and
// shapes the final reply with recipe and ingredient attachments.
package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"chefai"
	"chefai/tools"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	// ErrMissingCredential means the model client has no credential configured.
	ErrMissingCredential = errors.New("missing model credential")
	// ErrEmptyTurn rejects a turn with no text, image or recipe.
	ErrEmptyTurn = errors.New("turn has no content")
	// ErrBusy rejects a turn while another one is in flight.
	ErrBusy = errors.New("a turn is already in progress")
)

const DefaultHistoryWindow = 10

type Options struct {
	HistoryWindow  int
	MaxRecipes     int
	MaxIngredients int
	Logger         chefai.TurnLogger
	Tracer         trace.Tracer
	Meter          metric.Meter
	// OnTransition is called on every state change, while the turn runs.
	OnTransition func(from, to State)
	Now          func() time.Time
	NewID        func() string
}

func (o *Options) setDefaults() {
	if o.HistoryWindow <= 0 {
		o.HistoryWindow = DefaultHistoryWindow
	}
	if o.MaxRecipes <= 0 {
		o.MaxRecipes = DefaultMaxRecipes
	}
	if o.MaxIngredients <= 0 {
		o.MaxIngredients = DefaultMaxIngredients
	}
	if o.Logger == nil {
		o.Logger = chefai.NewNoOpTurnLogger()
	}
	if o.Tracer == nil {
		o.Tracer = otel.Tracer(chefai.TracerNameOrchestrator)
	}
	if o.Meter == nil {
		o.Meter = otel.Meter(chefai.TracerNameOrchestrator)
	}
	if o.Now == nil {
		o.Now = func() time.Time { return time.Now().UTC() }
	}
	if o.NewID == nil {
		o.NewID = func() string { return uuid.Must(uuid.NewV7()).String() }
	}
}

// Orchestrator owns one conversation. Send may be called from any goroutine
// but only one turn runs at a time.
type Orchestrator struct {
	llm      LLMClient
	defs     []ToolDefinition
	executor *tools.Executor
	opts     Options
	metrics  instruments

	mu       sync.Mutex
	busy     bool
	state    State
	turns    int
	messages []Message
}

// New starts a conversation that opens with the welcome message.
func New(llm LLMClient, registry *tools.Registry, opts Options) *Orchestrator {
	opts.setDefaults()
	o := &Orchestrator{
		llm:      llm,
		defs:     ToolDefinitions(registry),
		executor: tools.NewExecutor(registry),
		opts:     opts,
		metrics:  newInstruments(opts.Meter),
	}
	o.messages = []Message{o.newMessage(RoleAssistant, welcomeText)}
	return o
}

// Messages returns a copy of the visible conversation, oldest first.
func (o *Orchestrator) Messages() []Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]Message, len(o.messages))
	copy(out, o.messages)
	return out
}

// Restore replaces the conversation with history, e.g. when a stateless
// caller carries it between invocations. The welcome message is added when
// history does not start with an assistant message.
func (o *Orchestrator) Restore(history []Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.busy {
		return ErrBusy
	}
	msgs := make([]Message, 0, len(history)+1)
	if len(history) == 0 || history[0].Role != RoleAssistant {
		msgs = append(msgs, o.newMessage(RoleAssistant, welcomeText))
	}
	o.messages = append(msgs, history...)
	return nil
}

func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) Busy() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.busy
}

// Send runs one user turn to completion and returns the assistant message
// appended to the conversation.
//
// ErrEmptyTurn and ErrBusy are returned without touching the conversation.
// Any other failure is absorbed: the apology message is appended and
// returned together with the cause.
func (o *Orchestrator) Send(ctx context.Context, turn Turn) (Message, error) {
	if turn.IsEmpty() {
		return Message{}, ErrEmptyTurn
	}

	o.mu.Lock()
	if o.busy {
		o.mu.Unlock()
		return Message{}, ErrBusy
	}
	o.busy = true
	o.turns++
	turnNo := o.turns
	history := make([]Message, len(o.messages))
	copy(history, o.messages)
	user := o.newMessage(RoleUser, turn.Text)
	user.Image = turn.Image
	user.Recipe = turn.Recipe
	o.messages = append(o.messages, user)
	o.mu.Unlock()

	defer func() {
		o.transition(StateIdle)
		o.mu.Lock()
		o.busy = false
		o.mu.Unlock()
	}()

	ctx, span := o.opts.Tracer.Start(ctx, "Orchestrator.Send")
	defer span.End()
	span.SetAttributes(attribute.Int("turn", turnNo), attribute.Int("history_len", len(history)))

	start := time.Now()
	o.metrics.turns.Add(ctx, 1)

	log := chefai.TurnLog{Turn: turnNo, Timestamp: o.opts.Now()}
	slog.Info("ORCHESTRATOR: Starting turn",
		"turn", turnNo,
		"text_len", len(turn.Text),
		"has_image", turn.Image != nil,
		"has_recipe", turn.Recipe != nil,
	)

	reply, err := o.run(ctx, history, user, &log)

	log.Duration = time.Since(start)
	o.metrics.turnDuration.Record(ctx, log.Duration.Seconds())

	if err != nil {
		o.metrics.turnsFailed.Add(ctx, 1)
		span.SetStatus(codes.Error, "turn failed")
		span.RecordError(err)
		slog.Error("ORCHESTRATOR: Turn failed, replying with apology", "turn", turnNo, "state", o.State().String(), "error", err)

		log.Error = err.Error()
		reply = o.newMessage(RoleAssistant, apologyText)
		err = fmt.Errorf("turn %d: %w", turnNo, err)
	}

	o.mu.Lock()
	o.messages = append(o.messages, reply)
	log.State = o.state.String()
	size := len(o.messages)
	o.mu.Unlock()
	o.metrics.conversationSize.Record(ctx, int64(size))

	if lerr := o.opts.Logger.LogTurn(log); lerr != nil {
		slog.Error("ORCHESTRATOR: Failed to log turn", "error", lerr, "turn", turnNo)
	}

	slog.Info("ORCHESTRATOR: Turn complete",
		"turn", turnNo,
		"duration_ms", log.Duration.Milliseconds(),
		"recipes", len(reply.Recipes),
		"ingredients", len(reply.Ingredients),
	)
	return reply, err
}

func (o *Orchestrator) run(ctx context.Context, history []Message, user Message, log *chefai.TurnLog) (Message, error) {
	if cc, ok := o.llm.(CredentialChecker); ok {
		if err := cc.CheckCredentials(); err != nil {
			return Message{}, err
		}
	}

	o.transition(StateSending)
	base := buildMessages(history, o.opts.HistoryWindow, user)
	req := Request{Messages: base, Tools: o.defs}

	o.transition(StateAwaitingModel)
	reply, err := o.invoke(ctx, "AwaitingModel", req, log)
	if err != nil {
		return Message{}, fmt.Errorf("model request: %w", err)
	}

	if len(reply.ToolCalls) == 0 {
		return o.newMessage(RoleAssistant, reply.Text), nil
	}

	o.transition(StateToolCallPending)
	slog.Info("ORCHESTRATOR: Model requested tools", "tool_calls", len(reply.ToolCalls))

	o.transition(StateExecutingTools)
	results := o.executeTools(ctx, reply.ToolCalls, log)

	o.transition(StateAwaitingFollowUp)
	followUp, err := o.invoke(ctx, "AwaitingFollowUp", Request{Messages: followUpMessages(base, reply, results)}, log)
	if err != nil {
		return Message{}, fmt.Errorf("follow-up request: %w", err)
	}
	if len(followUp.ToolCalls) > 0 {
		slog.Warn("ORCHESTRATOR: Ignoring tool calls in follow-up reply", "tool_calls", len(followUp.ToolCalls))
	}

	att := Extract(results, o.opts.MaxRecipes, o.opts.MaxIngredients)
	msg := o.newMessage(RoleAssistant, followUp.Text)
	msg.Recipes = att.Recipes
	msg.Ingredients = att.Ingredients
	return msg, nil
}

func (o *Orchestrator) invoke(ctx context.Context, stage string, req Request, log *chefai.TurnLog) (Reply, error) {
	ctx, span := o.opts.Tracer.Start(ctx, "Orchestrator."+stage)
	defer span.End()

	if b, err := json.Marshal(req); err == nil {
		log.Requests = append(log.Requests, string(b))
		span.SetAttributes(attribute.Int("request_size_bytes", len(b)))
	}
	span.SetAttributes(
		attribute.Int("messages_count", len(req.Messages)),
		attribute.Int("tools_count", len(req.Tools)),
	)
	slog.Info("ORCHESTRATOR: Sending request to model",
		"stage", stage,
		"messages_count", len(req.Messages),
		"tools_count", len(req.Tools),
	)

	start := time.Now()
	reply, err := o.llm.Invoke(ctx, req)
	o.metrics.llmResponseTime.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(attribute.String("stage", stage)))
	if err != nil {
		span.SetStatus(codes.Error, "model invoke failed")
		span.RecordError(err)
		return Reply{}, err
	}
	reply.ToolCalls = tools.WithValidArguments(reply.ToolCalls)
	log.Replies = append(log.Replies, reply)

	slog.Info("ORCHESTRATOR: Model reply received",
		"stage", stage,
		"content_length", len(reply.Text),
		"tool_calls", len(reply.ToolCalls),
	)
	return reply, nil
}

func (o *Orchestrator) executeTools(ctx context.Context, calls []tools.Call, log *chefai.TurnLog) []tools.CallResult {
	ctx, span := o.opts.Tracer.Start(ctx, "Orchestrator.ExecutingTools")
	defer span.End()
	span.SetAttributes(attribute.Int("tool_calls", len(calls)))

	results := o.executor.ExecuteAll(ctx, calls)
	for _, r := range results {
		attrs := metric.WithAttributes(attribute.String("tool_name", r.Call.Name))
		o.metrics.toolCalls.Add(ctx, 1, attrs)
		o.metrics.toolExecution.Record(ctx, r.Duration.Seconds(), attrs)

		entry := chefai.ToolCallLog{ID: r.Call.ID, Name: r.Call.Name, Input: string(r.Call.Arguments), Output: r.Result}
		if r.Result.IsError() {
			o.metrics.toolCallsFailed.Add(ctx, 1, attrs)
			entry.Error = r.Result.Message
		}
		log.ToolCalls = append(log.ToolCalls, entry)
	}
	return results
}

func (o *Orchestrator) transition(to State) {
	o.mu.Lock()
	from := o.state
	o.state = to
	o.mu.Unlock()

	if from == to {
		return
	}
	slog.Debug("ORCHESTRATOR: State transition", "from", from.String(), "to", to.String())
	if o.opts.OnTransition != nil {
		o.opts.OnTransition(from, to)
	}
}

func (o *Orchestrator) newMessage(role Role, text string) Message {
	return Message{ID: o.opts.NewID(), Role: role, Text: text, CreatedAt: o.opts.Now()}
}
