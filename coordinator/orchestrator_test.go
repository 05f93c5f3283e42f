package coordinator_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"chefai"
	"chefai/cookbook"
	"chefai/coordinator"
	"chefai/coordinator/mock"
	"chefai/tools"
	"chefai/tools/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingLogger struct {
	mu    sync.Mutex
	turns []chefai.TurnLog
}

func (l *recordingLogger) LogTurn(turn chefai.TurnLog) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.turns = append(l.turns, turn)
	return nil
}

type harness struct {
	orch        *coordinator.Orchestrator
	llm         *mock.LLMClient
	recipes     *cookbook.RecipeStore
	pantry      *cookbook.PantryStore
	pantryState *storage.MemoryState
	logger      *recordingLogger
	transitions []string
}

func newHarness(t *testing.T, recipesJSON string, opts coordinator.Options, script ...mock.Step) *harness {
	t.Helper()

	var seed []byte
	if recipesJSON != "" {
		seed = []byte(recipesJSON)
	}
	n := 0
	ids := func() string {
		n++
		return fmt.Sprintf("gen-%d", n)
	}

	h := &harness{
		llm:         mock.NewLLMClient(script...),
		pantryState: storage.NewMemoryState(nil),
		logger:      &recordingLogger{},
	}
	h.recipes = cookbook.NewRecipeStore(storage.NewMemoryState(seed), cookbook.WithIDGenerator(ids))
	h.pantry = cookbook.NewPantryStore(h.pantryState, cookbook.WithIDGenerator(ids))

	opts.Logger = h.logger
	opts.OnTransition = func(from, to coordinator.State) {
		h.transitions = append(h.transitions, to.String())
	}
	h.orch = coordinator.New(h.llm, tools.NewRegistry(h.recipes, h.pantry), opts)
	return h
}

func toolResults(req coordinator.Request) []coordinator.WireMessage {
	var out []coordinator.WireMessage
	for _, m := range req.Messages {
		if m.Role == coordinator.RoleTool {
			out = append(out, m)
		}
	}
	return out
}

func TestOrchestrator_WelcomeMessage(t *testing.T) {
	h := newHarness(t, "", coordinator.Options{})

	msgs := h.orch.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, coordinator.RoleAssistant, msgs[0].Role)
	assert.NotEmpty(t, msgs[0].Text)
	assert.Equal(t, coordinator.StateIdle, h.orch.State())
}

func TestOrchestrator_PlainReply(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, "", coordinator.Options{}, mock.Text("Boil the pasta for 9 minutes."))

	reply, err := h.orch.Send(ctx, coordinator.Turn{Text: "How long do I boil pasta?"})
	require.NoError(t, err)

	assert.Equal(t, "Boil the pasta for 9 minutes.", reply.Text)
	assert.Empty(t, reply.Recipes)
	assert.Empty(t, reply.Ingredients)

	reqs := h.llm.Requests()
	require.Len(t, reqs, 1)
	req := reqs[0]
	assert.Len(t, req.Tools, 9)
	assert.Equal(t, coordinator.RoleSystem, req.Messages[0].Role)
	last := req.Messages[len(req.Messages)-1]
	assert.Equal(t, coordinator.RoleUser, last.Role)
	assert.Equal(t, "How long do I boil pasta?", last.JoinText())

	assert.Equal(t, []string{"Sending", "AwaitingModel", "Idle"}, h.transitions)

	msgs := h.orch.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, coordinator.RoleUser, msgs[1].Role)
	assert.Equal(t, reply, msgs[2])
}

func TestOrchestrator_AddFlourScenario(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, "", coordinator.Options{},
		mock.ToolCalls(mock.Call("call_1", "add_pantry_ingredient", map[string]any{"name": "flour", "quantity": "2", "unit": "cup"})),
		mock.Text("Added 2 cups of flour to your pantry."),
	)

	reply, err := h.orch.Send(ctx, coordinator.Turn{Text: "add 2 cups flour to my pantry"})
	require.NoError(t, err)
	assert.Equal(t, "Added 2 cups of flour to your pantry.", reply.Text)

	items, err := h.pantry.All(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "flour", items[0].Name)
	assert.Equal(t, "2", items[0].Quantity)
	assert.Equal(t, "cup", items[0].Unit)
	assert.Equal(t, "Other", items[0].Category)

	reqs := h.llm.Requests()
	require.Len(t, reqs, 2)
	assert.Nil(t, reqs[1].Tools, "follow-up must not offer tools")

	results := toolResults(reqs[1])
	require.Len(t, results, 1)
	assert.Equal(t, "call_1", results[0].ToolCallID)

	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(results[0].JoinText()), &payload))
	assert.Equal(t, true, payload["success"])
	ingredient := payload["ingredient"].(map[string]any)
	assert.Equal(t, items[0].ID, ingredient["id"])
	assert.Equal(t, "Other", ingredient["category"])

	assert.Equal(t, []string{
		"Sending", "AwaitingModel", "ToolCallPending", "ExecutingTools", "AwaitingFollowUp", "Idle",
	}, h.transitions)
}

func TestOrchestrator_SequentialToolCalls(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, `[{"id":"r1","name":"Pancakes","ingredients":[{"name":"flour"}],"steps":["mix"]}]`, coordinator.Options{},
		mock.ToolCalls(
			mock.Call("a", "get_recipes", map[string]any{}),
			mock.Call("b", "add_pantry_ingredient", map[string]any{"name": "eggs", "quantity": 6}),
		),
		mock.Text("Done."),
	)

	reply, err := h.orch.Send(ctx, coordinator.Turn{Text: "list recipes and add eggs"})
	require.NoError(t, err)

	reqs := h.llm.Requests()
	require.Len(t, reqs, 2)
	follow := reqs[1]

	// base messages, then the assistant tool-call message, then results in order
	base := len(reqs[0].Messages)
	require.Len(t, follow.Messages, base+3)
	assert.Equal(t, reqs[0].Messages, follow.Messages[:base])
	assistant := follow.Messages[base]
	assert.Equal(t, coordinator.RoleAssistant, assistant.Role)
	require.Len(t, assistant.ToolCalls, 2)

	results := toolResults(follow)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].ToolCallID)
	assert.Equal(t, "b", results[1].ToolCallID)
	assert.Contains(t, results[0].JoinText(), "Pancakes")
	assert.Contains(t, results[1].JoinText(), `"success":true`)

	require.Len(t, reply.Recipes, 1)
	assert.Equal(t, "Pancakes", reply.Recipes[0].Name)
	assert.Empty(t, reply.Ingredients, "a single added ingredient is not a list")

	require.Len(t, h.logger.turns, 1)
	logged := h.logger.turns[0]
	assert.Len(t, logged.Requests, 2)
	assert.Len(t, logged.ToolCalls, 2)
	assert.Empty(t, logged.Error)
}

func TestOrchestrator_ToolErrorsGoBackToModel(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, "", coordinator.Options{},
		mock.ToolCalls(
			mock.Call("x", "edit_pantry_ingredient", map[string]any{"id": "x", "quantity": "5"}),
			mock.Call("y", "order_pizza", map[string]any{}),
		),
		mock.Text("I couldn't find that ingredient."),
	)

	reply, err := h.orch.Send(ctx, coordinator.Turn{Text: "set x to 5"})
	require.NoError(t, err)
	assert.Equal(t, "I couldn't find that ingredient.", reply.Text)

	results := toolResults(h.llm.Requests()[1])
	require.Len(t, results, 2)
	assert.JSONEq(t, `{"error":"Ingredient not found"}`, results[0].JoinText())
	assert.JSONEq(t, `{"error":"Unsupported tool"}`, results[1].JoinText())
	assert.Equal(t, 0, h.pantryState.Saves())

	logged := h.logger.turns[0]
	require.Len(t, logged.ToolCalls, 2)
	assert.Equal(t, "Ingredient not found", logged.ToolCalls[0].Error)
}

func TestOrchestrator_MalformedToolArgumentsKeepTurnLogEncodable(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, "", coordinator.Options{},
		mock.Text("Hello!"),
		mock.ToolCalls(tools.Call{ID: "call_1", Name: "add_pantry_ingredient", Arguments: json.RawMessage(`{"name":"flour"`)}),
		mock.Text("Sorry, bad args."),
	)

	_, err := h.orch.Send(ctx, coordinator.Turn{Text: "hi"})
	require.NoError(t, err)
	reply, err := h.orch.Send(ctx, coordinator.Turn{Text: "add flour"})
	require.NoError(t, err)
	assert.Equal(t, "Sorry, bad args.", reply.Text)

	items, err := h.pantry.All(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)

	reqs := h.llm.Requests()
	require.Len(t, reqs, 3)
	results := toolResults(reqs[2])
	require.Len(t, results, 1)
	assert.Contains(t, results[0].JoinText(), `"error"`)

	require.Len(t, h.logger.turns, 2)
	assert.Len(t, h.logger.turns[1].Requests, 2, "follow-up request is logged")

	var buf bytes.Buffer
	fileLogger := chefai.NewFileTurnLogger(&buf)
	for _, turn := range h.logger.turns {
		require.NoError(t, fileLogger.LogTurn(turn))
	}
	require.NoError(t, fileLogger.Flush())
	assert.True(t, json.Valid(buf.Bytes()))
}

func TestOrchestrator_ExtractionCaps(t *testing.T) {
	ctx := context.Background()

	var recipes []map[string]any
	for i := range 7 {
		recipes = append(recipes, map[string]any{"id": fmt.Sprintf("r%d", i), "name": fmt.Sprintf("Recipe %d", i)})
	}
	seed, err := json.Marshal(recipes)
	require.NoError(t, err)

	h := newHarness(t, string(seed), coordinator.Options{MaxRecipes: 3},
		mock.ToolCalls(mock.Call("1", "get_recipes", nil)),
		mock.Text("Here they are."),
	)

	reply, err := h.orch.Send(ctx, coordinator.Turn{Text: "recipes please"})
	require.NoError(t, err)
	require.Len(t, reply.Recipes, 3)
	assert.Equal(t, "r0", reply.Recipes[0].ID)
	assert.Equal(t, "r2", reply.Recipes[2].ID)
}

func TestOrchestrator_EmptyTurnSendsNothing(t *testing.T) {
	h := newHarness(t, "", coordinator.Options{}, mock.Text("unused"))

	_, err := h.orch.Send(context.Background(), coordinator.Turn{Text: "   "})
	assert.ErrorIs(t, err, coordinator.ErrEmptyTurn)

	_, err = h.orch.Send(context.Background(), coordinator.Turn{Image: &coordinator.Image{MIMEType: "image/png"}})
	assert.ErrorIs(t, err, coordinator.ErrEmptyTurn)

	assert.Empty(t, h.llm.Requests())
	assert.Len(t, h.orch.Messages(), 1)
	assert.Empty(t, h.transitions)
}

func TestOrchestrator_FailuresAreAbsorbed(t *testing.T) {
	boom := errors.New("502 bad gateway")

	tests := []struct {
		name      string
		script    []mock.Step
		wantCalls int
		wantState string
	}{
		{
			name:      "first request fails",
			script:    []mock.Step{mock.Fail(boom)},
			wantCalls: 1,
			wantState: "AwaitingModel",
		},
		{
			name: "follow-up fails",
			script: []mock.Step{
				mock.ToolCalls(mock.Call("1", "get_recipes", nil)),
				mock.Fail(boom),
			},
			wantCalls: 2,
			wantState: "AwaitingFollowUp",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, "", coordinator.Options{}, tt.script...)

			reply, err := h.orch.Send(context.Background(), coordinator.Turn{Text: "hello"})
			assert.ErrorIs(t, err, boom)
			assert.Equal(t, coordinator.RoleAssistant, reply.Role)
			assert.Contains(t, reply.Text, "Sorry")
			assert.Len(t, h.llm.Requests(), tt.wantCalls)

			msgs := h.orch.Messages()
			require.Len(t, msgs, 3, "user turn stays in history")
			assert.Equal(t, "hello", msgs[1].Text)
			assert.Equal(t, reply, msgs[2])

			assert.Equal(t, coordinator.StateIdle, h.orch.State())
			assert.False(t, h.orch.Busy())

			require.Len(t, h.logger.turns, 1)
			assert.Equal(t, tt.wantState, h.logger.turns[0].State)
			assert.Contains(t, h.logger.turns[0].Error, "502")
		})
	}
}

func TestOrchestrator_MissingCredential(t *testing.T) {
	h := newHarness(t, "", coordinator.Options{}, mock.Text("unused"))
	h.llm.Credential = coordinator.ErrMissingCredential

	reply, err := h.orch.Send(context.Background(), coordinator.Turn{Text: "hi"})
	assert.ErrorIs(t, err, coordinator.ErrMissingCredential)
	assert.Contains(t, reply.Text, "Sorry")
	assert.Empty(t, h.llm.Requests(), "no request may be sent without a credential")
}

type blockingLLM struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingLLM) Invoke(ctx context.Context, _ coordinator.Request) (coordinator.Reply, error) {
	close(b.started)
	<-b.release
	return coordinator.Reply{Text: "done"}, nil
}

func TestOrchestrator_RejectsConcurrentTurns(t *testing.T) {
	llm := &blockingLLM{started: make(chan struct{}), release: make(chan struct{})}
	stores := storage.NewMemoryState(nil)
	orch := coordinator.New(llm, tools.NewRegistry(cookbook.NewRecipeStore(stores), cookbook.NewPantryStore(stores)), coordinator.Options{})

	done := make(chan error, 1)
	go func() {
		_, err := orch.Send(context.Background(), coordinator.Turn{Text: "first"})
		done <- err
	}()

	select {
	case <-llm.started:
	case <-time.After(2 * time.Second):
		t.Fatal("first turn never reached the model")
	}

	assert.True(t, orch.Busy())
	assert.Equal(t, coordinator.StateAwaitingModel, orch.State())
	_, err := orch.Send(context.Background(), coordinator.Turn{Text: "second"})
	assert.ErrorIs(t, err, coordinator.ErrBusy)
	assert.ErrorIs(t, orch.Restore(nil), coordinator.ErrBusy)

	close(llm.release)
	require.NoError(t, <-done)
	assert.Len(t, orch.Messages(), 3)
}

func TestOrchestrator_HistoryWindow(t *testing.T) {
	ctx := context.Background()
	var script []mock.Step
	for i := range 4 {
		script = append(script, mock.Text(fmt.Sprintf("answer %d", i)))
	}
	h := newHarness(t, "", coordinator.Options{HistoryWindow: 3}, script...)

	for i := range 4 {
		_, err := h.orch.Send(ctx, coordinator.Turn{Text: fmt.Sprintf("question %d", i)})
		require.NoError(t, err)
	}

	reqs := h.llm.Requests()
	require.Len(t, reqs, 4)

	first := reqs[0].Messages
	require.Len(t, first, 3, "system, welcome, new turn")
	assert.Equal(t, coordinator.RoleAssistant, first[1].Role)

	last := reqs[3].Messages
	require.Len(t, last, 5, "system, three windowed messages, new turn")
	assert.Equal(t, "answer 1", last[1].JoinText())
	assert.Equal(t, "question 2", last[2].JoinText())
	assert.Equal(t, "answer 2", last[3].JoinText())
	assert.Equal(t, "question 3", last[4].JoinText())
}

func TestOrchestrator_AttachedRecipeAndImage(t *testing.T) {
	h := newHarness(t, "", coordinator.Options{}, mock.Text("Looks great."))
	recipe := cookbook.Recipe{
		ID:          "r1",
		Name:        "Shakshuka",
		Ingredients: []cookbook.IngredientRef{{Name: "eggs", Quantity: "4", Unit: "pcs"}},
		Steps:       []string{"Simmer sauce", "Poach eggs"},
	}

	_, err := h.orch.Send(context.Background(), coordinator.Turn{
		Recipe: &recipe,
		Image:  &coordinator.Image{Data: "aGVsbG8=", MIMEType: "image/png"},
	})
	require.NoError(t, err)

	req := h.llm.Requests()[0]
	turn := req.Messages[len(req.Messages)-1]
	require.Len(t, turn.Content, 2)
	assert.Equal(t, "text", turn.Content[0].Type)
	assert.Contains(t, turn.Content[0].Text, "Recipe: Shakshuka")
	assert.Contains(t, turn.Content[0].Text, "- 4 pcs eggs")
	assert.Equal(t, "image_url", turn.Content[1].Type)
	assert.Equal(t, "data:image/png;base64,aGVsbG8=", turn.Content[1].ImageURL.URL)

	msgs := h.orch.Messages()
	require.NotNil(t, msgs[1].Recipe)
	assert.Equal(t, "Shakshuka", msgs[1].Recipe.Name)
}

func TestOrchestrator_Restore(t *testing.T) {
	h := newHarness(t, "", coordinator.Options{}, mock.Text("Sure."))

	require.NoError(t, h.orch.Restore([]coordinator.Message{
		{ID: "u1", Role: coordinator.RoleUser, Text: "earlier question"},
		{ID: "a1", Role: coordinator.RoleAssistant, Text: "earlier answer"},
	}))
	msgs := h.orch.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, coordinator.RoleAssistant, msgs[0].Role, "welcome is prepended")

	_, err := h.orch.Send(context.Background(), coordinator.Turn{Text: "and now?"})
	require.NoError(t, err)

	req := h.llm.Requests()[0]
	assert.Equal(t, "earlier answer", req.Messages[3].JoinText())
}
