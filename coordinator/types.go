package coordinator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"chefai/cookbook"
	"chefai/tools"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Image is a picture attached to a user turn. Data is base64 encoded.
type Image struct {
	URI      string `json:"uri,omitempty"`
	Data     string `json:"data"`
	MIMEType string `json:"mimeType"`
}

// DataURL renders the image the way chat APIs accept inline images.
func (i Image) DataURL() string {
	mime := i.MIMEType
	if mime == "" {
		mime = "image/jpeg"
	}
	return fmt.Sprintf("data:%s;base64,%s", mime, i.Data)
}

// Message is one entry of the visible conversation. Messages are immutable
// once appended.
type Message struct {
	ID          string                      `json:"id"`
	Role        Role                        `json:"role"`
	Text        string                      `json:"text,omitempty"`
	Image       *Image                      `json:"image,omitempty"`
	Recipe      *cookbook.Recipe            `json:"recipe,omitempty"`
	Recipes     []cookbook.Recipe           `json:"recipes,omitempty"`
	Ingredients []cookbook.PantryIngredient `json:"ingredients,omitempty"`
	CreatedAt   time.Time                   `json:"createdAt"`
}

// Turn is what the user submits: any combination of text, an image and a saved recipe.
type Turn struct {
	Text   string
	Image  *Image
	Recipe *cookbook.Recipe
}

func (t Turn) IsEmpty() bool {
	return strings.TrimSpace(t.Text) == "" && (t.Image == nil || t.Image.Data == "") && t.Recipe == nil
}

// ContentBlock is the provider-neutral unit of message content.
type ContentBlock struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

type ImageURL struct {
	URL string `json:"url"`
}

func TextBlock(text string) ContentBlock {
	return ContentBlock{Type: "text", Text: text}
}

func ImageBlock(url string) ContentBlock {
	return ContentBlock{Type: "image_url", ImageURL: &ImageURL{URL: url}}
}

// WireMessage is a message as sent upstream. ToolCalls is set on assistant
// messages that requested tools; ToolCallID on tool results.
type WireMessage struct {
	Role       Role           `json:"role"`
	Content    []ContentBlock `json:"content"`
	ToolCalls  []tools.Call   `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

// JoinText concatenates the text blocks of the message.
func (m WireMessage) JoinText() string {
	var parts []string
	for _, b := range m.Content {
		if b.Type == "text" && b.Text != "" {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "\n")
}

type ToolDefinition struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Parameters  *jsonschema.Schema `json:"parameters"`
}

// Request is one upstream model call. Messages opens with the system entry.
// A nil Tools slice means no tool calls are solicited.
type Request struct {
	Messages []WireMessage    `json:"messages"`
	Tools    []ToolDefinition `json:"tools,omitempty"`
}

type Reply struct {
	Text      string       `json:"text,omitempty"`
	ToolCalls []tools.Call `json:"tool_calls,omitempty"`
}

// LLMClient sends one request to a hosted model.
type LLMClient interface {
	Invoke(ctx context.Context, req Request) (Reply, error)
}

// CredentialChecker is implemented by clients that need a credential. The
// orchestrator calls it before issuing any request.
type CredentialChecker interface {
	CheckCredentials() error
}
