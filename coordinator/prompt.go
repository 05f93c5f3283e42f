package coordinator

import (
	"fmt"
	"strings"

	"chefai/cookbook"
	"chefai/tools"
)

const systemPrompt = `You are Chef, a friendly cooking assistant inside a recipe app.

You can read and change the user's cookbook and pantry with the provided tools:
- Look recipes up with get_recipes or search_recipe before answering questions about them.
- Use create_recipe when the user asks you to save a recipe, including one you read from a photo.
- Use edit_recipe and edit_pantry_ingredient only with ids returned by earlier tool results.
- Use recipes_from_pantry when the user asks what they can cook with what they have.
- Quantities are plain numbers such as "2" or "0.5"; put the unit in the unit field.

Keep answers short and practical. Never invent recipe or ingredient ids. When a tool reports an
error, explain it to the user in plain words. Only answer cooking, recipe and pantry questions.`

const apologyText = "Sorry, I couldn't reach the kitchen assistant right now. Please try again in a moment."

const welcomeText = "Hi! I'm your kitchen assistant. Ask me about your recipes, your pantry, or what you can cook today."

// RecipeAsText describes a recipe for the model.
func RecipeAsText(r cookbook.Recipe) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Recipe: %s\n", r.Name)
	if r.ID != "" {
		fmt.Fprintf(&b, "ID: %s\n", r.ID)
	}
	if r.Category != "" {
		fmt.Fprintf(&b, "Category: %s\n", r.Category)
	}
	if r.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", r.Description)
	}
	if r.Portions != "" {
		fmt.Fprintf(&b, "Portions: %s\n", r.Portions)
	}
	if r.CookTime != "" {
		fmt.Fprintf(&b, "Cook time: %s\n", r.CookTime)
	}
	if len(r.Ingredients) > 0 {
		b.WriteString("Ingredients:\n")
		for _, ing := range r.Ingredients {
			line := strings.TrimSpace(strings.Join([]string{ing.Quantity, ing.Unit, ing.Name}, " "))
			fmt.Fprintf(&b, "- %s\n", strings.Join(strings.Fields(line), " "))
		}
	}
	if len(r.Steps) > 0 {
		b.WriteString("Steps:\n")
		for i, s := range r.Steps {
			fmt.Fprintf(&b, "%d. %s\n", i+1, s)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// ContentBlocks converts a conversation message into upstream content.
func ContentBlocks(m Message) []ContentBlock {
	var blocks []ContentBlock
	if text := strings.TrimSpace(m.Text); text != "" {
		blocks = append(blocks, TextBlock(text))
	}
	if m.Recipe != nil {
		blocks = append(blocks, TextBlock(RecipeAsText(*m.Recipe)))
	}
	if m.Image != nil && m.Image.Data != "" {
		blocks = append(blocks, ImageBlock(m.Image.DataURL()))
	}
	return blocks
}

// ToolDefinitions describes the registry's tools for the model, in registry order.
func ToolDefinitions(reg *tools.Registry) []ToolDefinition {
	all := reg.GetTools()
	defs := make([]ToolDefinition, 0, len(all))
	for _, t := range all {
		defs = append(defs, ToolDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.InputSchema(),
		})
	}
	return defs
}

// buildMessages lays out the system entry, the last window messages of
// history and the new turn.
func buildMessages(history []Message, window int, turn Message) []WireMessage {
	if window >= 0 && len(history) > window {
		history = history[len(history)-window:]
	}

	msgs := make([]WireMessage, 0, len(history)+2)
	msgs = append(msgs, WireMessage{Role: RoleSystem, Content: []ContentBlock{TextBlock(systemPrompt)}})
	for _, m := range history {
		if m.Role != RoleUser && m.Role != RoleAssistant {
			continue
		}
		blocks := ContentBlocks(m)
		if len(blocks) == 0 {
			continue
		}
		msgs = append(msgs, WireMessage{Role: m.Role, Content: blocks})
	}
	msgs = append(msgs, WireMessage{Role: RoleUser, Content: ContentBlocks(turn)})
	return msgs
}

// followUpMessages appends the assistant tool-call message and one tool
// result message per call, in call order.
func followUpMessages(base []WireMessage, reply Reply, results []tools.CallResult) []WireMessage {
	msgs := make([]WireMessage, 0, len(base)+1+len(results))
	msgs = append(msgs, base...)

	assistant := WireMessage{Role: RoleAssistant, Content: []ContentBlock{}, ToolCalls: reply.ToolCalls}
	if strings.TrimSpace(reply.Text) != "" {
		assistant.Content = append(assistant.Content, TextBlock(reply.Text))
	}
	msgs = append(msgs, assistant)

	for _, r := range results {
		msgs = append(msgs, WireMessage{
			Role:       RoleTool,
			ToolCallID: r.Call.ID,
			Content:    []ContentBlock{TextBlock(r.Result.Text())},
		})
	}
	return msgs
}
