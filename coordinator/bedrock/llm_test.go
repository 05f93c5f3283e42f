package bedrock

import (
	"context"
	"testing"

	"chefai/coordinator"
	"chefai/tools"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/modelcontextprotocol/go-sdk/jsonschema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockBedrockClient implements bedrockRuntimeClient for testing
type mockBedrockClient struct {
	response *bedrockruntime.ConverseOutput
	err      error
	input    *bedrockruntime.ConverseInput
}

func (m *mockBedrockClient) Converse(ctx context.Context, input *bedrockruntime.ConverseInput, opts ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	m.input = input
	return m.response, m.err
}

func textOutput(stop types.StopReason, blocks ...types.ContentBlock) *bedrockruntime.ConverseOutput {
	return &bedrockruntime.ConverseOutput{
		StopReason: stop,
		Output:     &types.ConverseOutputMemberMessage{Value: types.Message{Content: blocks}},
		Usage:      &types.TokenUsage{InputTokens: aws.Int32(10), OutputTokens: aws.Int32(20)},
		Metrics:    &types.ConverseMetrics{LatencyMs: aws.Int64(100)},
	}
}

func userRequest(text string) coordinator.Request {
	return coordinator.Request{Messages: []coordinator.WireMessage{
		{Role: coordinator.RoleSystem, Content: []coordinator.ContentBlock{coordinator.TextBlock("persona")}},
		{Role: coordinator.RoleUser, Content: []coordinator.ContentBlock{coordinator.TextBlock(text)}},
	}}
}

func TestNewLLMClient(t *testing.T) {
	tests := []struct {
		name     string
		input    LLMOptions
		expected LLMOptions
	}{
		{
			name:  "empty options uses defaults",
			input: LLMOptions{},
			expected: LLMOptions{
				ModelID:     defaultModelID,
				MaxTokens:   defaultMaxTokens,
				Temperature: aws.Float32(defaultTemperature),
				TopP:        defaultTopP,
			},
		},
		{
			name:     "custom options preserved",
			input:    LLMOptions{ModelID: "custom-model", MaxTokens: 2048, Temperature: aws.Float32(0.5), TopP: 0.8},
			expected: LLMOptions{ModelID: "custom-model", MaxTokens: 2048, Temperature: aws.Float32(0.5), TopP: 0.8},
		},
		{
			name:  "zero temperature is kept",
			input: LLMOptions{Temperature: aws.Float32(0)},
			expected: LLMOptions{
				ModelID:     defaultModelID,
				MaxTokens:   defaultMaxTokens,
				Temperature: aws.Float32(0),
				TopP:        defaultTopP,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockClient := &mockBedrockClient{}
			client := NewLLMClient(mockClient, tt.input)

			assert.Equal(t, tt.expected, client.opts)
			assert.Equal(t, mockClient, client.brc)
		})
	}
}

func TestLLMClient_Invoke(t *testing.T) {
	tests := []struct {
		name          string
		mockResponse  *bedrockruntime.ConverseOutput
		mockError     error
		expectedText  string
		expectedCalls []string
		expectedError string
	}{
		{
			name:         "successful text response",
			mockResponse: textOutput(types.StopReasonEndTurn, &types.ContentBlockMemberText{Value: "Hello"}, &types.ContentBlockMemberText{Value: "there"}),
			expectedText: "Hello\nthere",
		},
		{
			name: "tool use response",
			mockResponse: textOutput(types.StopReasonToolUse,
				&types.ContentBlockMemberText{Value: "Let me look."},
				&types.ContentBlockMemberToolUse{Value: types.ToolUseBlock{
					ToolUseId: aws.String("tu-1"),
					Name:      aws.String("search_recipe"),
					Input:     document.NewLazyDocument(map[string]any{"query": "soup"}),
				}},
			),
			expectedText:  "Let me look.",
			expectedCalls: []string{"search_recipe"},
		},
		{
			name:          "max tokens error",
			mockResponse:  &bedrockruntime.ConverseOutput{StopReason: types.StopReasonMaxTokens},
			expectedError: "model hit MaxTokens limit",
		},
		{
			name:          "safety filter error",
			mockResponse:  &bedrockruntime.ConverseOutput{StopReason: types.StopReasonContentFiltered},
			expectedError: "model response blocked by Bedrock safety filters",
		},
		{
			name:          "bedrock API error",
			mockError:     assert.AnError,
			expectedError: "assert.AnError general error for testing",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockClient := &mockBedrockClient{response: tt.mockResponse, err: tt.mockError}

			resp, err := NewLLMClient(mockClient, LLMOptions{}).Invoke(context.Background(), userRequest("Hello"))
			if tt.expectedError != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectedError)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.expectedText, resp.Text)
			var names []string
			for _, c := range resp.ToolCalls {
				names = append(names, c.Name)
			}
			assert.Equal(t, tt.expectedCalls, names)
		})
	}
}

func TestLLMClient_ToolCallArguments(t *testing.T) {
	mockClient := &mockBedrockClient{response: textOutput(types.StopReasonToolUse,
		&types.ContentBlockMemberToolUse{Value: types.ToolUseBlock{
			ToolUseId: aws.String("tu-1"),
			Name:      aws.String("create_recipe"),
			Input: document.NewLazyDocument(map[string]any{
				"name":  "Soup",
				"steps": `["chop","simmer"]`,
			}),
		}},
	)}

	resp, err := NewLLMClient(mockClient, LLMOptions{}).Invoke(context.Background(), userRequest("save soup"))
	require.NoError(t, err)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "tu-1", resp.ToolCalls[0].ID)
	assert.JSONEq(t, `{"name":"Soup","steps":["chop","simmer"]}`, string(resp.ToolCalls[0].Arguments))
}

func TestLLMClient_BuildInput(t *testing.T) {
	c := NewLLMClient(&mockBedrockClient{}, LLMOptions{})

	base := []coordinator.WireMessage{
		{Role: coordinator.RoleSystem, Content: []coordinator.ContentBlock{coordinator.TextBlock("persona")}},
		{Role: coordinator.RoleAssistant, Content: []coordinator.ContentBlock{coordinator.TextBlock("welcome")}},
		{Role: coordinator.RoleUser, Content: []coordinator.ContentBlock{
			coordinator.TextBlock("what is this?"),
			coordinator.ImageBlock("data:image/png;base64,aGVsbG8="),
		}},
		{Role: coordinator.RoleAssistant, ToolCalls: []tools.Call{{ID: "c1", Name: "get_recipes"}}},
		{Role: coordinator.RoleTool, ToolCallID: "c1", Content: []coordinator.ContentBlock{coordinator.TextBlock(`[]`)}},
		{Role: coordinator.RoleTool, ToolCallID: "c2", Content: []coordinator.ContentBlock{coordinator.TextBlock(`{"error":"Unsupported tool"}`)}},
	}

	t.Run("native tool blocks when tools are offered", func(t *testing.T) {
		in, err := c.buildInput(coordinator.Request{
			Messages: base,
			Tools: []coordinator.ToolDefinition{{
				Name:        "get_recipes",
				Description: "list",
				Parameters:  &jsonschema.Schema{Type: "object"},
			}},
		})
		require.NoError(t, err)

		require.Len(t, in.System, 1)
		require.Len(t, in.Messages, 3, "welcome dropped, tool results merged into one user message")
		assert.Equal(t, types.ConversationRoleUser, in.Messages[0].Role)

		require.Len(t, in.Messages[0].Content, 2)
		img, ok := in.Messages[0].Content[1].(*types.ContentBlockMemberImage)
		require.True(t, ok)
		assert.Equal(t, types.ImageFormatPng, img.Value.Format)
		assert.Equal(t, []byte("hello"), img.Value.Source.(*types.ImageSourceMemberBytes).Value)

		_, ok = in.Messages[1].Content[0].(*types.ContentBlockMemberToolUse)
		assert.True(t, ok)

		results := in.Messages[2].Content
		require.Len(t, results, 2)
		first := results[0].(*types.ContentBlockMemberToolResult).Value
		second := results[1].(*types.ContentBlockMemberToolResult).Value
		assert.Equal(t, types.ToolResultStatusSuccess, first.Status)
		assert.Equal(t, types.ToolResultStatusError, second.Status)

		require.NotNil(t, in.ToolConfig)
		assert.Len(t, in.ToolConfig.Tools, 1)
	})

	t.Run("tool traffic flattened to text without tools", func(t *testing.T) {
		in, err := c.buildInput(coordinator.Request{Messages: base})
		require.NoError(t, err)

		assert.Nil(t, in.ToolConfig)
		for _, m := range in.Messages {
			for _, b := range m.Content {
				_, isUse := b.(*types.ContentBlockMemberToolUse)
				_, isResult := b.(*types.ContentBlockMemberToolResult)
				assert.False(t, isUse || isResult)
			}
		}
		last := in.Messages[len(in.Messages)-1]
		assert.Equal(t, types.ConversationRoleUser, last.Role)
		text := last.Content[0].(*types.ContentBlockMemberText).Value
		assert.Equal(t, "Tool result c1: []", text)
	})

	t.Run("zero temperature is sent", func(t *testing.T) {
		cold := NewLLMClient(&mockBedrockClient{}, LLMOptions{Temperature: aws.Float32(0)})
		in, err := cold.buildInput(userRequest("hi"))
		require.NoError(t, err)
		assert.Equal(t, float32(0), aws.ToFloat32(in.InferenceConfig.Temperature))
	})

	t.Run("rejects non data urls", func(t *testing.T) {
		_, err := c.buildInput(coordinator.Request{Messages: []coordinator.WireMessage{
			{Role: coordinator.RoleUser, Content: []coordinator.ContentBlock{coordinator.ImageBlock("https://example.com/cat.png")}},
		}})
		assert.Error(t, err)
	})
}

func TestTextFromOutput(t *testing.T) {
	assert.Equal(t, "", textFromOutput(nil))
	assert.Equal(t, "", textFromOutput(&bedrockruntime.ConverseOutput{}))
	assert.Equal(t, "a\nb", textFromOutput(textOutput(types.StopReasonEndTurn,
		&types.ContentBlockMemberText{Value: "a"},
		&types.ContentBlockMemberText{Value: ""},
		&types.ContentBlockMemberText{Value: "b"},
	)))
}

func TestNormalizeInput(t *testing.T) {
	in := map[string]any{
		"ingredients": `[{"name":"egg"}]`,
		"note":        "[not json",
		"plain":       "soup",
	}
	got := normalizeInput(in).(map[string]any)

	assert.Equal(t, []any{map[string]any{"name": "egg"}}, got["ingredients"])
	assert.Equal(t, "[not json", got["note"])
	assert.Equal(t, "soup", got["plain"])
}
