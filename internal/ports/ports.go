// Package ports declares the abstract contracts between the orchestrator
// and the outside world (spec.md §4.4, component C5): AI agent ports and
// the sandbox executor port. Implementations live in internal/agents and
// internal/sandbox; the orchestrator depends only on these interfaces,
// mirroring the teacher's internal/llm.Provider / internal/sandbox.Executor
// split between contract and implementation.
package ports

import (
	"context"
	"fmt"

	"github.com/genforge-dev/genforge/internal/artifacts"
	"github.com/genforge-dev/genforge/internal/validation"
)

// Kind classifies a port-level failure, distinct from a failed validation
// (spec.md §4.4: "validate returning with exitCode != 0 is not an error of
// the port — it is a failed validation. Transport errors ... are port
// errors").
type Kind string

// Port error kinds.
const (
	KindAgentUnavailable   Kind = "AGENT_UNAVAILABLE"
	KindExecutorUnavailable Kind = "EXECUTOR_UNAVAILABLE"
)

// Error wraps a transport-level port failure (timeout, unreachable) with
// its classification, the same distinction the teacher's
// sandbox.SandboxResult.Error draws between a runtime error and a failing
// exit code.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("ports: %s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// NewAgentUnavailable wraps err as an AGENT_UNAVAILABLE port error.
func NewAgentUnavailable(op string, err error) *Error {
	return &Error{Kind: KindAgentUnavailable, Op: op, Err: err}
}

// NewExecutorUnavailable wraps err as an EXECUTOR_UNAVAILABLE port error.
func NewExecutorUnavailable(op string, err error) *Error {
	return &Error{Kind: KindExecutorUnavailable, Op: op, Err: err}
}

// PlanResult is the ArchitectAgent's output (spec.md §4.4).
type PlanResult struct {
	ContractSpec      string
	SchemaSpec        string
	InitialArtifacts  []ArtifactDraft
	Warnings          []string
}

// ArtifactDraft is a proposed artifact version, produced by a CoderAgent or
// CoachAgent before it is persisted via artifacts.Store.
type ArtifactDraft struct {
	Path        string
	Content     string
	GeneratedBy artifacts.GeneratedBy
}

// ArchitectAgent plans the contract and initial artifact set for a job. It
// must be idempotent for identical input and is called at most once per
// job, during the planning phase (spec.md §4.4, §4.6 step 2).
type ArchitectAgent interface {
	Plan(ctx context.Context, requirement string, templateContext map[string]string) (PlanResult, error)
}

// Scope selects which generation layer(s) a CoderAgent call should emit.
type Scope string

// Recognized coder scopes.
const (
	ScopeBackend  Scope = "BACKEND"
	ScopeFrontend Scope = "FRONTEND"
)

// CoderAgent generates initial artifact drafts for one scope (backend or
// frontend) from a locked contract (spec.md §4.4, §4.6 step 3).
type CoderAgent interface {
	Generate(ctx context.Context, contractSpec, schemaSpec string, scope Scope) ([]ArtifactDraft, error)
}

// CoachAgent proposes repairs from a failing validation report. Drafts must
// never target a path in the locked contract/schema category; the
// orchestrator enforces this independently by checking
// artifacts.Artifact.IsContractPath before accepting a draft.
type CoachAgent interface {
	Repair(ctx context.Context, failingReport *validation.Report, failingArtifacts []*artifacts.Artifact, memoryContext string) ([]ArtifactDraft, error)
}

// SandboxHandle opaquely identifies a provisioned sandbox instance; its
// shape is provider-specific and owned entirely by the SandboxExecutor
// implementation.
type SandboxHandle interface {
	ID() string
}

// SandboxExecutor provisions, deploys to, validates against, and tears down
// an execution environment for one job (spec.md §4.4).
type SandboxExecutor interface {
	Provision(ctx context.Context, jobID string) (SandboxHandle, error)
	Deploy(ctx context.Context, handle SandboxHandle, snapshot []byte) error
	Validate(ctx context.Context, handle SandboxHandle, kind validation.Kind) (*validation.Report, error)
	Teardown(ctx context.Context, handle SandboxHandle) error
}
