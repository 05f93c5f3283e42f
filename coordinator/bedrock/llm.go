// Package bedrock adapts the assistant's model requests to the AWS Bedrock
// Converse API.
package bedrock

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"chefai/coordinator"
	"chefai/tools"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

const (
	// defaultModelID is an inference profile ID, not the foundation model's ID.
	// See https://docs.aws.amazon.com/bedrock/latest/userguide/inference-profiles.html.
	defaultModelID = "us.anthropic.claude-3-7-sonnet-20250219-v1:0"

	defaultMaxTokens   = 1024
	defaultTemperature = 0.7
	defaultTopP        = 0.9
)

type bedrockRuntimeClient interface {
	Converse(context.Context, *bedrockruntime.ConverseInput, ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

type LLMOptions struct {
	ModelID     string
	MaxTokens   int32
	// Temperature is sent as is when set, including 0.
	Temperature *float32
	TopP        float32
}

type LLMClient struct {
	brc  bedrockRuntimeClient
	opts LLMOptions
}

func NewLLMClient(brc bedrockRuntimeClient, opts LLMOptions) *LLMClient {
	if opts.ModelID == "" {
		opts.ModelID = defaultModelID
	}
	if opts.MaxTokens == 0 {
		opts.MaxTokens = defaultMaxTokens
	}
	if opts.Temperature == nil {
		opts.Temperature = aws.Float32(defaultTemperature)
	}
	if opts.TopP == 0 {
		opts.TopP = defaultTopP
	}
	return &LLMClient{brc: brc, opts: opts}
}

func (c *LLMClient) Invoke(ctx context.Context, req coordinator.Request) (coordinator.Reply, error) {
	slog.Info("LLM_CLIENT: Invoked", "messages_len", len(req.Messages), "tools_len", len(req.Tools))

	in, err := c.buildInput(req)
	if err != nil {
		return coordinator.Reply{}, err
	}

	out, err := c.brc.Converse(ctx, in)
	if err != nil {
		slog.Error("LLM_CLIENT: Bedrock converse failed", "error", err, "model", c.opts.ModelID)
		return coordinator.Reply{}, err
	}

	attrs := []any{"stop_reason", out.StopReason}
	if out.Metrics != nil {
		attrs = append(attrs, "latency_ms", aws.ToInt64(out.Metrics.LatencyMs))
	}
	if out.Usage != nil {
		attrs = append(attrs, "input_tokens", aws.ToInt32(out.Usage.InputTokens), "output_tokens", aws.ToInt32(out.Usage.OutputTokens))
	}
	slog.Info("LLM_CLIENT: Bedrock converse succeeded", attrs...)

	switch out.StopReason {
	case types.StopReasonMaxTokens:
		slog.Warn("LLM_CLIENT: Model hit MaxTokens limit")
		return coordinator.Reply{}, errors.New("model hit MaxTokens limit")
	case types.StopReasonContentFiltered, types.StopReasonGuardrailIntervened:
		slog.Warn("LLM_CLIENT: Model response blocked by Bedrock safety filters")
		return coordinator.Reply{}, errors.New("model response blocked by Bedrock safety filters")
	}

	reply := coordinator.Reply{Text: textFromOutput(out)}
	calls, err := toolCallsFromOutput(out)
	if err != nil {
		return coordinator.Reply{}, fmt.Errorf("failed to parse tool calls: %w", err)
	}
	reply.ToolCalls = calls
	return reply, nil
}

// buildInput maps the neutral request onto Converse. Bedrock requires the
// conversation to open with a user message and roles to alternate, so leading
// assistant messages are dropped and consecutive same-role messages merged.
// Tool traffic is only sent as toolUse/toolResult blocks when tools are
// offered; otherwise it is flattened to text.
func (c *LLMClient) buildInput(req coordinator.Request) (*bedrockruntime.ConverseInput, error) {
	nativeTools := len(req.Tools) > 0

	var sys []types.SystemContentBlock
	var msgs []types.Message
	for _, m := range req.Messages {
		var role types.ConversationRole
		var blocks []types.ContentBlock

		switch m.Role {
		case coordinator.RoleSystem:
			sys = append(sys, &types.SystemContentBlockMemberText{Value: m.JoinText()})
			continue

		case coordinator.RoleTool:
			role = types.ConversationRoleUser
			if nativeTools {
				blocks = append(blocks, toolResultBlock(m))
			} else {
				blocks = append(blocks, &types.ContentBlockMemberText{
					Value: fmt.Sprintf("Tool result %s: %s", m.ToolCallID, m.JoinText()),
				})
			}

		case coordinator.RoleAssistant:
			role = types.ConversationRoleAssistant
			content, err := contentBlocks(m.Content)
			if err != nil {
				return nil, err
			}
			blocks = append(blocks, content...)
			for _, call := range m.ToolCalls {
				if nativeTools {
					blocks = append(blocks, toolUseBlock(call))
				} else {
					blocks = append(blocks, &types.ContentBlockMemberText{
						Value: fmt.Sprintf("Called tool %s (%s) with %s", call.Name, call.ID, string(call.Arguments)),
					})
				}
			}

		default:
			role = types.ConversationRoleUser
			content, err := contentBlocks(m.Content)
			if err != nil {
				return nil, err
			}
			blocks = append(blocks, content...)
		}

		if len(blocks) == 0 {
			continue
		}
		if len(msgs) == 0 && role != types.ConversationRoleUser {
			continue
		}
		if n := len(msgs); n > 0 && msgs[n-1].Role == role {
			msgs[n-1].Content = append(msgs[n-1].Content, blocks...)
			continue
		}
		msgs = append(msgs, types.Message{Role: role, Content: blocks})
	}

	in := &bedrockruntime.ConverseInput{
		ModelId:  aws.String(c.opts.ModelID),
		System:   sys,
		Messages: msgs,
		InferenceConfig: &types.InferenceConfiguration{
			MaxTokens:   aws.Int32(c.opts.MaxTokens),
			Temperature: aws.Float32(*c.opts.Temperature),
			TopP:        aws.Float32(c.opts.TopP),
		},
	}

	if nativeTools {
		var specs []types.Tool
		for _, def := range req.Tools {
			spec, err := buildToolSpec(def)
			if err != nil {
				return nil, err
			}
			specs = append(specs, &types.ToolMemberToolSpec{Value: spec})
		}
		in.ToolConfig = &types.ToolConfiguration{Tools: specs, ToolChoice: &types.ToolChoiceMemberAuto{}}
	}
	return in, nil
}

func contentBlocks(content []coordinator.ContentBlock) ([]types.ContentBlock, error) {
	var out []types.ContentBlock
	for _, b := range content {
		switch b.Type {
		case "text":
			if b.Text != "" {
				out = append(out, &types.ContentBlockMemberText{Value: b.Text})
			}
		case "image_url":
			if b.ImageURL == nil {
				continue
			}
			img, err := imageBlock(b.ImageURL.URL)
			if err != nil {
				return nil, err
			}
			out = append(out, img)
		}
	}
	return out, nil
}

// imageBlock decodes a base64 data URL into a Converse image block.
func imageBlock(url string) (types.ContentBlock, error) {
	rest, ok := strings.CutPrefix(url, "data:")
	if !ok {
		return nil, fmt.Errorf("unsupported image url: only data URLs can be sent to bedrock")
	}
	meta, data, ok := strings.Cut(rest, ",")
	if !ok || !strings.HasSuffix(meta, ";base64") {
		return nil, fmt.Errorf("malformed image data url")
	}

	var format types.ImageFormat
	switch strings.TrimSuffix(meta, ";base64") {
	case "image/png":
		format = types.ImageFormatPng
	case "image/jpeg", "image/jpg":
		format = types.ImageFormatJpeg
	case "image/gif":
		format = types.ImageFormatGif
	case "image/webp":
		format = types.ImageFormatWebp
	default:
		return nil, fmt.Errorf("unsupported image type %q", meta)
	}

	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return &types.ContentBlockMemberImage{Value: types.ImageBlock{
		Format: format,
		Source: &types.ImageSourceMemberBytes{Value: raw},
	}}, nil
}

func toolUseBlock(call tools.Call) types.ContentBlock {
	input := map[string]any{}
	if len(call.Arguments) > 0 {
		if err := json.Unmarshal(call.Arguments, &input); err != nil {
			slog.Warn("LLM_CLIENT: Tool arguments are not an object", "tool", call.Name, "error", err)
			input = map[string]any{}
		}
	}
	return &types.ContentBlockMemberToolUse{Value: types.ToolUseBlock{
		ToolUseId: aws.String(call.ID),
		Name:      aws.String(call.Name),
		Input:     document.NewLazyDocument(input),
	}}
}

func toolResultBlock(m coordinator.WireMessage) types.ContentBlock {
	text := m.JoinText()
	status := types.ToolResultStatusSuccess
	var shape struct {
		Error *string `json:"error"`
	}
	if json.Unmarshal([]byte(text), &shape) == nil && shape.Error != nil {
		status = types.ToolResultStatusError
	}
	return &types.ContentBlockMemberToolResult{Value: types.ToolResultBlock{
		ToolUseId: aws.String(m.ToolCallID),
		Status:    status,
		Content:   []types.ToolResultContentBlock{&types.ToolResultContentBlockMemberText{Value: text}},
	}}
}

// buildToolSpec round-trips the schema through JSON so the document encoder
// sees the schema's own MarshalJSON output.
func buildToolSpec(def coordinator.ToolDefinition) (types.ToolSpecification, error) {
	schema := map[string]any{"type": "object"}
	if def.Parameters != nil {
		b, err := json.Marshal(def.Parameters)
		if err != nil {
			return types.ToolSpecification{}, fmt.Errorf("failed to marshal tool schema for %s: %w", def.Name, err)
		}
		if err := json.Unmarshal(b, &schema); err != nil {
			return types.ToolSpecification{}, fmt.Errorf("failed to unmarshal tool schema for %s: %w", def.Name, err)
		}
	}
	return types.ToolSpecification{
		Name:        aws.String(def.Name),
		Description: aws.String(def.Description),
		InputSchema: &types.ToolInputSchemaMemberJson{Value: document.NewLazyDocument(schema)},
	}, nil
}

func outputMessage(out *bedrockruntime.ConverseOutput) (types.Message, bool) {
	if out == nil || out.Output == nil {
		return types.Message{}, false
	}
	msg, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok || msg == nil {
		return types.Message{}, false
	}
	return msg.Value, true
}

// textFromOutput joins the assistant's text blocks with newlines.
func textFromOutput(out *bedrockruntime.ConverseOutput) string {
	msg, ok := outputMessage(out)
	if !ok {
		return ""
	}
	var texts []string
	for _, cb := range msg.Content {
		if t, ok := cb.(*types.ContentBlockMemberText); ok && t.Value != "" {
			texts = append(texts, t.Value)
		}
	}
	return strings.Join(texts, "\n")
}

// toolCallsFromOutput extracts tool uses emitted by the assistant.
func toolCallsFromOutput(out *bedrockruntime.ConverseOutput) ([]tools.Call, error) {
	msg, ok := outputMessage(out)
	if !ok {
		return nil, nil
	}

	var calls []tools.Call
	for _, cb := range msg.Content {
		tu, ok := cb.(*types.ContentBlockMemberToolUse)
		if !ok || tu == nil {
			continue
		}

		input := map[string]any{}
		if tu.Value.Input != nil {
			if err := tu.Value.Input.UnmarshalSmithyDocument(&input); err != nil {
				slog.Warn("LLM_CLIENT: Failed to decode tool input", "tool", aws.ToString(tu.Value.Name), "error", err)
				input = map[string]any{}
			}
		}
		args, err := json.Marshal(normalizeInput(input))
		if err != nil {
			return nil, err
		}

		calls = append(calls, tools.Call{
			ID:        aws.ToString(tu.Value.ToolUseId),
			Name:      aws.ToString(tu.Value.Name),
			Arguments: args,
		})
	}
	return calls, nil
}

// normalizeInput unwraps arrays and objects that the model sent as JSON strings.
func normalizeInput(val any) any {
	switch v := val.(type) {
	case string:
		s := strings.TrimSpace(v)
		if strings.HasPrefix(s, "[") || strings.HasPrefix(s, "{") {
			var decoded any
			if json.Unmarshal([]byte(s), &decoded) == nil {
				return normalizeInput(decoded)
			}
		}
		return v
	case []any:
		for i := range v {
			v[i] = normalizeInput(v[i])
		}
		return v
	case map[string]any:
		for key, item := range v {
			v[key] = normalizeInput(item)
		}
		return v
	default:
		return v
	}
}
