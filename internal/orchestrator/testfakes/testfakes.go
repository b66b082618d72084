// Package testfakes provides scriptable AgentPort/SandboxPort fakes for
// exercising the orchestrator's round loop without a real LLM or sandbox
// backend. Used by internal/orchestrator's own tests and by the
// test/functional godog suite to encode the end-to-end scenarios of
// spec.md §8.
package testfakes

import (
	"context"
	"fmt"
	"sync"

	"github.com/genforge-dev/genforge/internal/artifacts"
	"github.com/genforge-dev/genforge/internal/ports"
	"github.com/genforge-dev/genforge/internal/validation"
)

// Handle is the fake SandboxHandle.
type Handle struct{ id string }

// ID implements ports.SandboxHandle.
func (h Handle) ID() string { return h.id }

// Architect is a scriptable ArchitectAgent. Plan and PlanErr are returned
// verbatim; Calls counts invocations.
type Architect struct {
	mu    sync.Mutex
	Calls int

	Plan    ports.PlanResult
	PlanErr error

	// LastTemplateContext records the templateContext argument of the most
	// recent Plan call, for tests asserting it propagated from the job.
	LastTemplateContext map[string]string
}

// Plan implements ports.ArchitectAgent.
func (a *Architect) Plan(ctx context.Context, requirement string, templateContext map[string]string) (ports.PlanResult, error) {
	a.mu.Lock()
	a.Calls++
	a.LastTemplateContext = templateContext
	a.mu.Unlock()
	if a.PlanErr != nil {
		return ports.PlanResult{}, a.PlanErr
	}
	return a.Plan, nil
}

// Coder is a scriptable CoderAgent returning a fixed draft set per scope.
type Coder struct {
	mu    sync.Mutex
	Calls int

	Drafts []ports.ArtifactDraft
	Err    error
}

// Generate implements ports.CoderAgent.
func (c *Coder) Generate(ctx context.Context, contractSpec, schemaSpec string, scope ports.Scope) ([]ports.ArtifactDraft, error) {
	c.mu.Lock()
	c.Calls++
	c.mu.Unlock()
	if c.Err != nil {
		return nil, c.Err
	}
	return c.Drafts, nil
}

// CoachScript is called once per repair round (1-indexed) and returns the
// drafts Coach should propose for that round.
type CoachScript func(round int, failingReport *validation.Report, failingArtifacts []*artifacts.Artifact) ([]ports.ArtifactDraft, error)

// Coach is a scriptable CoachAgent driven by a per-round script function.
type Coach struct {
	mu    sync.Mutex
	Calls int

	Script CoachScript
	// OnCall, if set, runs synchronously before the script returns — tests
	// use this to simulate "cancel arrives while Coach is in flight" by
	// cancelling a context here.
	OnCall func(round int)
}

// Repair implements ports.CoachAgent.
func (c *Coach) Repair(ctx context.Context, failingReport *validation.Report, failingArtifacts []*artifacts.Artifact, memoryContext string) ([]ports.ArtifactDraft, error) {
	c.mu.Lock()
	c.Calls++
	round := c.Calls
	c.mu.Unlock()

	if c.OnCall != nil {
		c.OnCall(round)
	}
	if c.Script == nil {
		return nil, fmt.Errorf("testfakes: Coach.Script not set")
	}
	return c.Script(round, failingReport, failingArtifacts)
}

// ValidateScript is called once per Sandbox.Validate call, with that call's
// 1-indexed sequence number and kind, and returns the report to hand back.
type ValidateScript func(call int, kind validation.Kind) (*validation.Report, error)

// Sandbox is a scriptable SandboxExecutor.
type Sandbox struct {
	mu           sync.Mutex
	ValidateCall int

	ProvisionErr error
	DeployErr    error
	Validate_    ValidateScript
	TornDown     bool
}

// Provision implements ports.SandboxExecutor.
func (s *Sandbox) Provision(ctx context.Context, jobID string) (ports.SandboxHandle, error) {
	if s.ProvisionErr != nil {
		return nil, s.ProvisionErr
	}
	return Handle{id: "sandbox-" + jobID}, nil
}

// Deploy implements ports.SandboxExecutor.
func (s *Sandbox) Deploy(ctx context.Context, handle ports.SandboxHandle, snapshot []byte) error {
	return s.DeployErr
}

// Validate implements ports.SandboxExecutor, delegating to Validate_ with a
// call counter (1-indexed: the Nth call to Validate across all kinds,
// rounds and retries).
func (s *Sandbox) Validate(ctx context.Context, handle ports.SandboxHandle, kind validation.Kind) (*validation.Report, error) {
	s.mu.Lock()
	s.ValidateCall++
	call := s.ValidateCall
	s.mu.Unlock()
	if s.Validate_ == nil {
		return nil, fmt.Errorf("testfakes: Sandbox.Validate_ not set")
	}
	return s.Validate_(call, kind)
}

// Teardown implements ports.SandboxExecutor.
func (s *Sandbox) Teardown(ctx context.Context, handle ports.SandboxHandle) error {
	s.mu.Lock()
	s.TornDown = true
	s.mu.Unlock()
	return nil
}
