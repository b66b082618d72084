// Package agents implements the AgentPort interfaces (spec.md §4.4,
// component C5) against real LLM backends. It mirrors the teacher's
// internal/llm package: a stateless, single-turn Provider interface per
// vendor, common request/response types, and a tool-use loop layered on
// top that drives the multi-turn Architect/Coder/Coach conversations the
// orchestrator expects.
package agents

import "context"

// Provider defines a single-turn LLM completion call. Multi-turn tool-use
// loops live in the Architect/Coder/Coach wrappers in this package, not
// here; a Provider is stateless and callers manage conversation history.
type Provider interface {
	// Name returns the provider identifier (e.g. "claude", "gemini").
	Name() string

	// Complete sends messages to the LLM and returns a single response.
	// Tool calls in the response must be handled by the caller.
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)
}

// CompletionRequest contains input for a single LLM turn.
type CompletionRequest struct {
	// SystemPrompt provides context and instructions for the LLM.
	SystemPrompt string

	// Messages contains the conversation history. Must include at least
	// one user message.
	Messages []Message

	// Tools defines the functions the LLM can call. Providers convert
	// these to native formats (Claude tool_use, Gemini functionCall).
	Tools []ToolDef

	// MaxTokens limits the response length. If zero, providers use their
	// default limits.
	MaxTokens int
}

// CompletionResponse contains the LLM's response for a single turn.
type CompletionResponse struct {
	// Content is the text response from the LLM. May be empty if the
	// response only contains tool calls.
	Content string

	// ToolCalls contains any tools the LLM wants to invoke. Empty if the
	// LLM responded with text only.
	ToolCalls []ToolCall

	// StopReason indicates why the LLM stopped generating. Common
	// values: "end_turn", "tool_use", "max_tokens".
	StopReason string

	// Usage tracks token consumption for this turn.
	Usage Usage
}

// Message represents a single message in a conversation.
type Message struct {
	Role Role

	// Content is the text content of the message. For assistant messages
	// with tool calls, this may be empty.
	Content string

	// ToolCalls contains tools the assistant wants to invoke. Only
	// present in assistant messages.
	ToolCalls []ToolCall

	// ToolResult contains the result of a tool execution. Only present
	// in user messages responding to tool calls.
	ToolResult *ToolResult
}

// Role identifies the sender of a message in a conversation.
type Role string

// Recognized roles.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ToolCall represents an LLM's request to invoke a tool.
type ToolCall struct {
	// ID uniquely identifies this tool call for correlation with results.
	ID string

	// Name is the tool to invoke, matching a ToolDef.Name.
	Name string

	// Arguments contains the parsed arguments for the tool. The
	// structure matches the JSON Schema in ToolDef.Parameters.
	Arguments map[string]any

	// ArgsError is set by a Provider when it received this tool call but
	// could not parse its arguments (malformed JSON from the model). When
	// set, Arguments is empty rather than a zero-valued guess, and callers
	// should treat the call as failed rather than proceeding with it.
	ArgsError error
}

// ToolResult contains the output from executing a tool.
type ToolResult struct {
	CallID  string
	Content string
	IsError bool
}

// ToolDef defines a tool the LLM can call.
type ToolDef struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Usage tracks token consumption across LLM API calls, and is folded into
// Job.TokensUsed so a job's total agent spend is visible to the operator.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Pricing constants, per 1M tokens in USD. Claude Sonnet pricing is used
// as the reference rate regardless of which provider actually served the
// call; spec.md tracks TokensUsed as a count, not a currency figure, and
// this keeps Cost meaningful for operators inspecting logs.
const (
	inputPricePerMillion  = 3.0
	outputPricePerMillion = 15.0
)

// Add accumulates usage from another Usage into this one.
func (u *Usage) Add(other Usage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
}

// Total returns the combined token count, the value surfaced on
// Job.TokensUsed.
func (u Usage) Total() int {
	return u.InputTokens + u.OutputTokens
}

// Cost returns the estimated cost in USD.
func (u Usage) Cost() float64 {
	inputCost := float64(u.InputTokens) * inputPricePerMillion / 1_000_000
	outputCost := float64(u.OutputTokens) * outputPricePerMillion / 1_000_000
	return inputCost + outputCost
}
