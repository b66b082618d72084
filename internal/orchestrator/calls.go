package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/genforge-dev/genforge/internal/artifacts"
	"github.com/genforge-dev/genforge/internal/log"
	"github.com/genforge-dev/genforge/internal/ports"
	"github.com/genforge-dev/genforge/internal/validation"
)

// retryTransport runs fn up to 1+len(backoffSchedule) times, retrying only
// when fn's error is a *ports.Error (a transport failure, distinct from a
// failed validation or a logical agent error). Non-transport errors return
// immediately without retry. This mirrors spec.md §4.6's budget: "up to 2
// consecutive transport failures in the same round are retried with
// exponential backoff (1s, 4s); a third consecutive transport failure
// transitions the job to FAILED."
func retryTransport(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		var portErr *ports.Error
		if !errors.As(err, &portErr) {
			return err
		}
		lastErr = err

		if attempt >= len(backoffSchedule) {
			return lastErr
		}
		select {
		case <-ctx.Done():
			return lastErr
		case <-time.After(backoffSchedule[attempt]):
		}
	}
}

// classifyDeadline converts a context deadline expiry into the appropriate
// ports.Error classification (spec.md §4.6: "a deadline expiry is treated
// as if the call failed with EXECUTOR_UNAVAILABLE (Sandbox) or
// AGENT_UNAVAILABLE (Agent)"). Errors already classified, or unrelated to a
// deadline, pass through unchanged.
func classifyDeadline(callCtx context.Context, op string, err error, sandbox bool) error {
	if err == nil {
		return nil
	}
	var portErr *ports.Error
	if errors.As(err, &portErr) {
		return err
	}
	if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		if sandbox {
			return ports.NewExecutorUnavailable(op, err)
		}
		return ports.NewAgentUnavailable(op, err)
	}
	return err
}

func (o *Orchestrator) callProvision(ctx context.Context, jobID string) (ports.SandboxHandle, error) {
	var handle ports.SandboxHandle
	err := retryTransport(ctx, func() error {
		callCtx, cancel := context.WithTimeout(ctx, o.sandboxDeployTimeout)
		defer cancel()
		h, err := o.sandbox.Provision(callCtx, jobID)
		if err != nil {
			return classifyDeadline(callCtx, "sandbox.provision", err, true)
		}
		handle = h
		return nil
	})
	return handle, err
}

func (o *Orchestrator) callPlan(ctx context.Context, requirement string, templateContext map[string]string) (ports.PlanResult, error) {
	var result ports.PlanResult
	err := retryTransport(ctx, func() error {
		callCtx, cancel := context.WithTimeout(ctx, o.agentTimeout)
		defer cancel()
		r, err := o.architect.Plan(callCtx, requirement, templateContext)
		if err != nil {
			return classifyDeadline(callCtx, "architect.plan", err, false)
		}
		result = r
		return nil
	})
	return result, err
}

func (o *Orchestrator) callGenerate(ctx context.Context, plan ports.PlanResult, coder ports.CoderAgent, scope ports.Scope) ([]ports.ArtifactDraft, error) {
	var drafts []ports.ArtifactDraft
	err := retryTransport(ctx, func() error {
		callCtx, cancel := context.WithTimeout(ctx, o.agentTimeout)
		defer cancel()
		d, err := coder.Generate(callCtx, plan.ContractSpec, plan.SchemaSpec, scope)
		if err != nil {
			return classifyDeadline(callCtx, "coder.generate", err, false)
		}
		drafts = d
		return nil
	})
	return drafts, err
}

func (o *Orchestrator) callRepair(ctx context.Context, report *validation.Report, failingArtifacts []*artifacts.Artifact, memoryContext string) ([]ports.ArtifactDraft, error) {
	var drafts []ports.ArtifactDraft
	err := retryTransport(ctx, func() error {
		callCtx, cancel := context.WithTimeout(ctx, o.agentTimeout)
		defer cancel()
		d, err := o.coach.Repair(callCtx, report, failingArtifacts, memoryContext)
		if err != nil {
			return classifyDeadline(callCtx, "coach.repair", err, false)
		}
		drafts = d
		return nil
	})
	return drafts, err
}

func (o *Orchestrator) callDeploy(ctx context.Context, handle ports.SandboxHandle, snapshot []byte) error {
	return retryTransport(ctx, func() error {
		callCtx, cancel := context.WithTimeout(ctx, o.sandboxDeployTimeout)
		defer cancel()
		err := o.sandbox.Deploy(callCtx, handle, snapshot)
		return classifyDeadline(callCtx, "sandbox.deploy", err, true)
	})
}

func (o *Orchestrator) callValidate(ctx context.Context, handle ports.SandboxHandle, kind validation.Kind) (*validation.Report, error) {
	var report *validation.Report
	err := retryTransport(ctx, func() error {
		callCtx, cancel := context.WithTimeout(ctx, o.sandboxValidateTimeout)
		defer cancel()
		r, err := o.sandbox.Validate(callCtx, handle, kind)
		if err != nil {
			return classifyDeadline(callCtx, "sandbox.validate", err, true)
		}
		report = r
		return nil
	})
	return report, err
}

func (o *Orchestrator) callTeardown(ctx context.Context, jobID string, handle ports.SandboxHandle) {
	callCtx, cancel := context.WithTimeout(ctx, o.sandboxDeployTimeout)
	defer cancel()
	if err := o.sandbox.Teardown(callCtx, handle); err != nil {
		log.WithJob(o.logger, jobID).Warn("sandbox teardown failed", "error", err)
	}
}
