// Package mock provides an offline model client. It replays scripted replies
// and otherwise answers deterministically from keywords in the user's turn,
// so the assistant can be exercised without a hosted model.
package mock

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"chefai/coordinator"
	"chefai/tools"
)

// Step is one scripted reply, or an error to return instead.
type Step struct {
	Reply coordinator.Reply
	Err   error
}

type LLMClient struct {
	mu       sync.Mutex
	script   []Step
	requests []coordinator.Request
	calls    int
	// Credential, when non-nil, is returned by CheckCredentials.
	Credential error
}

func NewLLMClient(script ...Step) *LLMClient {
	return &LLMClient{script: script}
}

// Text is a Step replying with plain text.
func Text(text string) Step {
	return Step{Reply: coordinator.Reply{Text: text}}
}

// ToolCalls is a Step requesting the given calls.
func ToolCalls(calls ...tools.Call) Step {
	return Step{Reply: coordinator.Reply{ToolCalls: calls}}
}

// Fail is a Step returning err.
func Fail(err error) Step {
	return Step{Err: err}
}

// Call builds a tool call with args marshalled to JSON.
func Call(id, name string, args any) tools.Call {
	b, err := json.Marshal(args)
	if err != nil {
		panic(err)
	}
	return tools.Call{ID: id, Name: name, Arguments: b}
}

func (m *LLMClient) CheckCredentials() error {
	return m.Credential
}

// Requests returns every request received so far.
func (m *LLMClient) Requests() []coordinator.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]coordinator.Request, len(m.requests))
	copy(out, m.requests)
	return out
}

func (m *LLMClient) Invoke(ctx context.Context, req coordinator.Request) (coordinator.Reply, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	slog.Info("LLM_CLIENT: Invoked", "messages_len", len(req.Messages), "tools_len", len(req.Tools))
	m.requests = append(m.requests, req)

	if err := ctx.Err(); err != nil {
		return coordinator.Reply{}, err
	}

	if len(m.script) > 0 {
		step := m.script[0]
		m.script = m.script[1:]
		return step.Reply, step.Err
	}
	return m.improvise(req), nil
}

// improvise answers in two phases: while tools are offered it picks one from
// keywords in the latest user message; once tool results are present it
// summarises them.
func (m *LLMClient) improvise(req coordinator.Request) coordinator.Reply {
	var results []coordinator.WireMessage
	var lastUser string
	for _, msg := range req.Messages {
		switch msg.Role {
		case coordinator.RoleTool:
			results = append(results, msg)
		case coordinator.RoleUser:
			lastUser = msg.JoinText()
		}
	}

	if len(results) > 0 {
		slog.Info("LLM_CLIENT: Summarising tool results", "results", len(results))
		return coordinator.Reply{Text: summarise(results)}
	}

	if len(req.Tools) > 0 {
		if name := pickTool(lastUser); name != "" {
			m.calls++
			slog.Info("LLM_CLIENT: Requesting tool", "tool", name)
			return coordinator.Reply{ToolCalls: []tools.Call{{
				ID:        fmt.Sprintf("mock_call_%d", m.calls),
				Name:      name,
				Arguments: json.RawMessage(`{}`),
			}}}
		}
	}

	if lastUser == "" {
		return coordinator.Reply{Text: "That looks tasty! What would you like to do with it?"}
	}
	return coordinator.Reply{Text: "I can help with your recipes and pantry. Try asking what you can cook."}
}

func pickTool(text string) string {
	t := strings.ToLower(text)
	switch {
	case strings.Contains(t, "what can i cook"), strings.Contains(t, "can i make"):
		return "recipes_from_pantry"
	case strings.Contains(t, "pantry"):
		return "get_pantry_ingredients"
	case strings.Contains(t, "recipe"):
		return "get_recipes"
	default:
		return ""
	}
}

func summarise(results []coordinator.WireMessage) string {
	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteString(" ")
		}
		text := r.JoinText()
		var list []json.RawMessage
		var obj map[string]any
		switch {
		case json.Unmarshal([]byte(text), &list) == nil:
			fmt.Fprintf(&b, "I found %d item(s).", len(list))
		case json.Unmarshal([]byte(text), &obj) == nil && obj["error"] != nil:
			fmt.Fprintf(&b, "Something went wrong: %v.", obj["error"])
		default:
			b.WriteString("Done.")
		}
	}
	return b.String()
}
