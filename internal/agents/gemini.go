package agents

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/genforge-dev/genforge/internal/buildinfo"
)

// GeminiModel is the fallback model used when Claude is unavailable.
const GeminiModel = "gemini-2.0-flash"

// GeminiProvider implements Provider using the Google AI API. It serves as
// the fallback provider, picked by the factory when Claude is not configured
// (spec.md §9's provider-agnostic AgentPort boundary).
type GeminiProvider struct {
	client *genai.Client
	model  string
}

// NewGeminiProvider creates a provider using the given API key (resolved
// by the caller via internal/secrets).
func NewGeminiProvider(ctx context.Context, apiKey string) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("agents: gemini api key is empty")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey), option.WithUserAgent(buildinfo.UserAgent()))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &GeminiProvider{client: client, model: GeminiModel}, nil
}

// Name implements Provider.
func (p *GeminiProvider) Name() string { return "gemini" }

// Close releases the underlying client.
func (p *GeminiProvider) Close() error { return p.client.Close() }

// Complete implements Provider.
func (p *GeminiProvider) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	model := p.client.GenerativeModel(p.model)

	if req.SystemPrompt != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.SystemPrompt)}}
	}
	if req.MaxTokens > 0 {
		mt := int32(req.MaxTokens)
		model.MaxOutputTokens = &mt
	}
	if len(req.Tools) > 0 {
		model.Tools = []*genai.Tool{{FunctionDeclarations: convertTools(req.Tools)}}
	}

	contents := convertMessages(req.Messages)
	resp, err := model.GenerateContent(ctx, contents...)
	if err != nil {
		return nil, fmt.Errorf("gemini API call failed: %w", err)
	}
	return convertResponse(resp), nil
}

func convertTools(tools []ToolDef) []*genai.FunctionDeclaration {
	declarations := make([]*genai.FunctionDeclaration, len(tools))
	for i, tool := range tools {
		declarations[i] = &genai.FunctionDeclaration{
			Name:        tool.Name,
			Description: tool.Description,
			Parameters:  convertSchemaToGemini(tool.Parameters),
		}
	}
	return declarations
}

func convertSchemaToGemini(params map[string]any) *genai.Schema {
	if params == nil {
		return nil
	}
	schema := &genai.Schema{}

	if t, ok := params["type"].(string); ok {
		switch t {
		case "object":
			schema.Type = genai.TypeObject
		case "array":
			schema.Type = genai.TypeArray
		case "string":
			schema.Type = genai.TypeString
		case "number":
			schema.Type = genai.TypeNumber
		case "integer":
			schema.Type = genai.TypeInteger
		case "boolean":
			schema.Type = genai.TypeBoolean
		}
	}
	if desc, ok := params["description"].(string); ok {
		schema.Description = desc
	}
	if props, ok := params["properties"].(map[string]any); ok {
		schema.Properties = make(map[string]*genai.Schema)
		for name, prop := range props {
			if propMap, ok := prop.(map[string]any); ok {
				schema.Properties[name] = convertSchemaToGemini(propMap)
			}
		}
	}
	if required, ok := params["required"].([]string); ok {
		schema.Required = required
	}
	if items, ok := params["items"].(map[string]any); ok {
		schema.Items = convertSchemaToGemini(items)
	}
	return schema
}

func convertMessages(messages []Message) []genai.Part {
	var parts []genai.Part
	for _, msg := range messages {
		switch msg.Role {
		case RoleUser:
			if msg.ToolResult != nil {
				parts = append(parts, genai.FunctionResponse{
					Name:     msg.ToolResult.CallID,
					Response: map[string]any{"result": msg.ToolResult.Content},
				})
			} else {
				parts = append(parts, genai.Text(msg.Content))
			}
		case RoleAssistant:
			if len(msg.ToolCalls) > 0 {
				for _, tc := range msg.ToolCalls {
					parts = append(parts, genai.FunctionCall{Name: tc.Name, Args: tc.Arguments})
				}
			} else if msg.Content != "" {
				parts = append(parts, genai.Text(msg.Content))
			}
		}
	}
	return parts
}

func convertResponse(resp *genai.GenerateContentResponse) *CompletionResponse {
	result := &CompletionResponse{}
	if resp == nil || len(resp.Candidates) == 0 {
		return result
	}
	candidate := resp.Candidates[0]

	if candidate.Content != nil {
		for _, part := range candidate.Content.Parts {
			switch v := part.(type) {
			case genai.Text:
				result.Content += string(v)
			case genai.FunctionCall:
				result.ToolCalls = append(result.ToolCalls, ToolCall{ID: v.Name, Name: v.Name, Arguments: v.Args})
			}
		}
	}

	switch candidate.FinishReason {
	case genai.FinishReasonStop:
		if len(result.ToolCalls) > 0 {
			result.StopReason = "tool_use"
		} else {
			result.StopReason = "end_turn"
		}
	case genai.FinishReasonMaxTokens:
		result.StopReason = "max_tokens"
	default:
		result.StopReason = "end_turn"
	}

	if resp.UsageMetadata != nil {
		result.Usage = Usage{
			InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
			OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
		}
	}
	return result
}
