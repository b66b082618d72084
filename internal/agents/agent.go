package agents

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/genforge-dev/genforge/internal/artifacts"
	"github.com/genforge-dev/genforge/internal/ports"
	"github.com/genforge-dev/genforge/internal/validation"
)

// DefaultMaxTurns bounds how many back-and-forth turns an Agent will spend
// nudging the model toward calling its required tool before giving up.
// Unlike the orchestrator's round budget (spec.md §3 MaxRounds), this is an
// internal implementation detail of driving a tool-use conversation, not a
// job-visible concept.
const DefaultMaxTurns = 6

// Agent drives a bounded multi-turn tool-use conversation against a single
// Provider and implements all three AgentPort roles (spec.md §4.4):
// ArchitectAgent, CoderAgent, CoachAgent. One Agent, backed by one
// provider, services a job end to end; the orchestrator is free to
// construct a separate Agent per role if it ever needs mixed providers.
type Agent struct {
	provider  Provider
	maxTurns  int
	maxTokens int

	// Usage accumulates token consumption across every call this Agent
	// makes, for callers that want to surface Job.TokensUsed.
	Usage Usage
}

// Option configures an Agent.
type Option func(*Agent)

// WithMaxTurns overrides DefaultMaxTurns.
func WithMaxTurns(n int) Option {
	return func(a *Agent) { a.maxTurns = n }
}

// WithMaxTokens caps the response length requested per turn.
func WithMaxTokens(n int) Option {
	return func(a *Agent) { a.maxTokens = n }
}

// NewAgent wraps provider with the tool-use loop.
func NewAgent(provider Provider, opts ...Option) *Agent {
	a := &Agent{provider: provider, maxTurns: DefaultMaxTurns}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Plan implements ports.ArchitectAgent.
func (a *Agent) Plan(ctx context.Context, requirement string, templateContext map[string]string) (ports.PlanResult, error) {
	prompt := "Requirement:\n" + requirement
	if len(templateContext) > 0 {
		prompt += "\n\nTemplate context:\n"
		for k, v := range templateContext {
			prompt += fmt.Sprintf("  %s: %s\n", k, v)
		}
	}

	args, err := a.runToolLoop(ctx, architectSystemPrompt, buildArchitectTools(), ToolProposeContract, prompt)
	if err != nil {
		return ports.PlanResult{}, err
	}

	result := ports.PlanResult{
		ContractSpec: stringArg(args, "contractSpec"),
		SchemaSpec:   stringArg(args, "schemaSpec"),
		Warnings:     stringSliceArg(args, "warnings"),
	}
	for _, raw := range sliceArg(args, "initialArtifacts") {
		if draft, ok := parseDraft(raw, artifacts.ByArchitect); ok {
			result.InitialArtifacts = append(result.InitialArtifacts, draft)
		}
	}
	if result.ContractSpec == "" || result.SchemaSpec == "" {
		return ports.PlanResult{}, fmt.Errorf("agents: architect returned an incomplete contract")
	}
	return result, nil
}

// Generate implements ports.CoderAgent.
func (a *Agent) Generate(ctx context.Context, contractSpec, schemaSpec string, scope ports.Scope) ([]ports.ArtifactDraft, error) {
	generatedBy := artifacts.ByBackendCoder
	if scope == ports.ScopeFrontend {
		generatedBy = artifacts.ByFrontendCoder
	}

	prompt := fmt.Sprintf("Scope: %s\n\nContract:\n%s\n\nSchema:\n%s", scope, contractSpec, schemaSpec)
	args, err := a.runToolLoop(ctx, coderSystemPrompt(scope), buildCoderTools(), ToolWriteArtifacts, prompt)
	if err != nil {
		return nil, err
	}

	var drafts []ports.ArtifactDraft
	for _, raw := range sliceArg(args, "artifacts") {
		if draft, ok := parseDraft(raw, generatedBy); ok {
			drafts = append(drafts, draft)
		}
	}
	if len(drafts) == 0 {
		return nil, fmt.Errorf("agents: coder returned no artifacts for scope %s", scope)
	}
	return drafts, nil
}

// Repair implements ports.CoachAgent.
func (a *Agent) Repair(ctx context.Context, failingReport *validation.Report, failingArtifacts []*artifacts.Artifact, memoryContext string) ([]ports.ArtifactDraft, error) {
	prompt := "Validation failures:\n" + failingReport.CombinedOutput()
	prompt += "\n\nFailing files:\n"
	for _, art := range failingArtifacts {
		prompt += fmt.Sprintf("--- %s (v%d) ---\n%s\n\n", art.FilePath, art.Version, art.Content)
	}
	if memoryContext != "" {
		prompt += "\nPrior repair attempts on this job:\n" + memoryContext
	}

	args, err := a.runToolLoop(ctx, coachSystemPrompt, buildCoachTools(), ToolRepairArtifacts, prompt)
	if err != nil {
		return nil, err
	}

	var drafts []ports.ArtifactDraft
	for _, raw := range sliceArg(args, "artifacts") {
		if draft, ok := parseDraft(raw, artifacts.ByCoach); ok {
			drafts = append(drafts, draft)
		}
	}
	if len(drafts) == 0 {
		return nil, fmt.Errorf("agents: coach returned no repaired artifacts")
	}
	return drafts, nil
}

// runToolLoop drives turns against the provider until it calls wantTool,
// nudging it otherwise, up to a.maxTurns. It returns the arguments of the
// matching tool call.
func (a *Agent) runToolLoop(ctx context.Context, systemPrompt string, tools []ToolDef, wantTool, initialPrompt string) (map[string]any, error) {
	messages := []Message{{Role: RoleUser, Content: initialPrompt}}

	for turn := 0; turn < a.maxTurns; turn++ {
		resp, err := a.provider.Complete(ctx, &CompletionRequest{
			SystemPrompt: systemPrompt,
			Messages:     messages,
			Tools:        tools,
			MaxTokens:    a.maxTokens,
		})
		if err != nil {
			return nil, err
		}
		a.Usage.Add(resp.Usage)

		for _, call := range resp.ToolCalls {
			if call.Name == wantTool && call.ArgsError == nil {
				return call.Arguments, nil
			}
		}

		messages = append(messages, Message{Role: RoleAssistant, Content: resp.Content, ToolCalls: resp.ToolCalls})
		if len(resp.ToolCalls) > 0 {
			// The model called a tool we didn't ask for, or sent arguments
			// that failed to parse; tell it to correct course and call the
			// right tool with valid arguments instead of silently
			// proceeding with a zero-value Arguments map.
			for _, call := range resp.ToolCalls {
				msg := fmt.Sprintf("Unexpected tool. Call %s to finish.", wantTool)
				if call.Name == wantTool && call.ArgsError != nil {
					msg = fmt.Sprintf("Arguments could not be parsed: %v. Call %s again with valid JSON arguments.", call.ArgsError, wantTool)
				}
				messages = append(messages, Message{Role: RoleUser, ToolResult: &ToolResult{
					CallID:  call.ID,
					Content: msg,
					IsError: true,
				}})
			}
		} else {
			messages = append(messages, Message{Role: RoleUser, Content: fmt.Sprintf("Call the %s tool now with your final answer.", wantTool)})
		}
	}

	return nil, fmt.Errorf("agents: %s did not call %s within %d turns", a.provider.Name(), wantTool, a.maxTurns)
}

func stringArg(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

func stringSliceArg(args map[string]any, key string) []string {
	raw, ok := args[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func sliceArg(args map[string]any, key string) []any {
	raw, ok := args[key].([]any)
	if !ok {
		return nil
	}
	return raw
}

func parseDraft(raw any, generatedBy artifacts.GeneratedBy) (ports.ArtifactDraft, bool) {
	m, ok := raw.(map[string]any)
	if !ok {
		// Providers occasionally round-trip nested objects through JSON;
		// accept that shape too.
		b, err := json.Marshal(raw)
		if err != nil {
			return ports.ArtifactDraft{}, false
		}
		var decoded map[string]any
		if err := json.Unmarshal(b, &decoded); err != nil {
			return ports.ArtifactDraft{}, false
		}
		m = decoded
	}
	path, _ := m["path"].(string)
	content, _ := m["content"].(string)
	if path == "" {
		return ports.ArtifactDraft{}, false
	}
	return ports.ArtifactDraft{Path: path, Content: content, GeneratedBy: generatedBy}, true
}

const architectSystemPrompt = `You are the architect for an automated code generation pipeline. Given a natural-language requirement, design a locked API contract and data schema, plus any scaffold files the coders will need. Once you are confident in the design, call propose_contract exactly once. Do not call it more than once, and do not ask clarifying questions — resolve ambiguity yourself and record your assumptions as warnings.`

const coachSystemPrompt = `You are the coach for an automated code generation pipeline. You are given a validation report describing compiler or test failures, and the current content of the failing files. Diagnose the root cause and submit corrected file content via repair_artifacts. Never modify contract or schema files; only touch the files shown to you. Make the smallest change that fixes the failure.`

func coderSystemPrompt(scope ports.Scope) string {
	return fmt.Sprintf(`You are the %s coder for an automated code generation pipeline. Given a locked API contract and data schema, generate the complete set of source files for the %s layer. Call write_artifacts exactly once with every file you produce.`, scope, scope)
}
