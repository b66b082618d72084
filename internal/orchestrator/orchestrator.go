// Package orchestrator implements the Generation Orchestrator's round loop
// (spec.md §4.6, component C7): plan → initial coding → validate/repair
// until the job completes or gives up. Grounded on the teacher's
// internal/batch.Orchestrator.Run: candidate selection → per-item
// retry-with-backoff generate/validate → failure classification → result
// bookkeeping, generalized here from "one queue item per ecosystem" to "one
// job's round loop" and from "queue entries" to "repair rounds".
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/genforge-dev/genforge/internal/artifacts"
	"github.com/genforge-dev/genforge/internal/config"
	"github.com/genforge-dev/genforge/internal/jobs"
	"github.com/genforge-dev/genforge/internal/log"
	"github.com/genforge-dev/genforge/internal/logstream"
	"github.com/genforge-dev/genforge/internal/memory"
	"github.com/genforge-dev/genforge/internal/ports"
	"github.com/genforge-dev/genforge/internal/signature"
	"github.com/genforge-dev/genforge/internal/validation"
)

// Error taxonomy (spec.md §7). These are sentinels: callers use errors.Is.
var (
	ErrPlanFailed          = errors.New("orchestrator: planning failed")
	ErrCoderFailed         = errors.New("orchestrator: coder budget exhausted")
	ErrRepairExhausted     = errors.New("orchestrator: round budget exhausted")
	ErrRepetitionDetected  = errors.New("orchestrator: repetition detected")
	ErrExecutorUnavailable = errors.New("orchestrator: executor unavailable")
	ErrCancelled           = errors.New("orchestrator: cancelled")
	ErrOrchestratorRestart = errors.New("orchestrator: restarted mid-job")

	// ErrNotQueued is returned by RunJob when the job is not in the QUEUED
	// state at entry; this is an internal precondition failure, not one of
	// the spec.md §7 taxonomy kinds.
	ErrNotQueued = errors.New("orchestrator: job is not QUEUED")
)

// backoffSchedule is the exponential backoff between transport retries
// (spec.md §4.6: "retried with exponential backoff (1s, 4s)").
var backoffSchedule = []time.Duration{1 * time.Second, 4 * time.Second}

// MemoryFactory builds a fresh SessionMemory for a job at run start.
type MemoryFactory func(jobID string) *memory.Memory

// Orchestrator drives jobs through the round loop. It is a plain,
// constructor-initialized component: every collaborator is an explicit
// parameter, no runtime reflection or service locator (spec.md §9).
type Orchestrator struct {
	jobStore        jobs.Store
	artifactStore   artifacts.Store
	validationStore validation.Store
	logs            *logstream.Stream
	memoryFactory   MemoryFactory

	architect     ports.ArchitectAgent
	backendCoder  ports.CoderAgent
	frontendCoder ports.CoderAgent
	coach         ports.CoachAgent
	sandbox       ports.SandboxExecutor

	agentTimeout           time.Duration
	sandboxValidateTimeout time.Duration
	sandboxDeployTimeout   time.Duration
	enableIntegrationTests bool

	logger log.Logger
}

// Option configures an Orchestrator at construction.
type Option func(*Orchestrator)

// WithLogger overrides the diagnostic logger (default: log.NewNoop()).
func WithLogger(l log.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMemoryFactory overrides how SessionMemory is constructed per job,
// primarily for tests that need deterministic thresholds.
func WithMemoryFactory(f MemoryFactory) Option {
	return func(o *Orchestrator) {
		if f != nil {
			o.memoryFactory = f
		}
	}
}

// WithTimeouts overrides the default port-call deadlines.
func WithTimeouts(agent, sandboxValidate, sandboxDeploy time.Duration) Option {
	return func(o *Orchestrator) {
		if agent > 0 {
			o.agentTimeout = agent
		}
		if sandboxValidate > 0 {
			o.sandboxValidateTimeout = sandboxValidate
		}
		if sandboxDeploy > 0 {
			o.sandboxDeployTimeout = sandboxDeploy
		}
	}
}

// WithIntegrationTests overrides whether INTEGRATION_TEST runs after
// UNIT_TEST passes (default: config.GetEnableIntegrationTests()).
func WithIntegrationTests(enabled bool) Option {
	return func(o *Orchestrator) { o.enableIntegrationTests = enabled }
}

// New constructs an Orchestrator from its collaborators.
func New(
	jobStore jobs.Store,
	artifactStore artifacts.Store,
	validationStore validation.Store,
	logs *logstream.Stream,
	architect ports.ArchitectAgent,
	backendCoder ports.CoderAgent,
	frontendCoder ports.CoderAgent,
	coach ports.CoachAgent,
	sandbox ports.SandboxExecutor,
	opts ...Option,
) *Orchestrator {
	o := &Orchestrator{
		jobStore:        jobStore,
		artifactStore:   artifactStore,
		validationStore: validationStore,
		logs:            logs,
		architect:       architect,
		backendCoder:    backendCoder,
		frontendCoder:   frontendCoder,
		coach:           coach,
		sandbox:         sandbox,

		agentTimeout:           config.GetAgentTimeout(),
		sandboxValidateTimeout: config.GetSandboxValidateTimeout(),
		sandboxDeployTimeout:   config.GetSandboxDeployTimeout(),
		enableIntegrationTests: config.GetEnableIntegrationTests(),

		logger: log.NewNoop(),
	}
	o.memoryFactory = func(jobID string) *memory.Memory {
		return memory.New(jobID,
			memory.WithMaxHistory(config.GetMaxHistorySize()),
			memory.WithMaxSameErrorTolerance(config.GetMaxSameErrorTolerance()),
		)
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// RunJob drives jobId through the round loop to completion. It returns nil
// on COMPLETED, or one of the sentinel errors above on FAILED. RunJob never
// returns while the job is still running; the final status is always
// COMPLETED or FAILED when it returns (spec.md §4.6 exit condition).
func (o *Orchestrator) RunJob(ctx context.Context, jobID string) error {
	job, err := o.jobStore.Get(jobID)
	if err != nil {
		return err
	}
	if job.Status != jobs.StatusQueued {
		return fmt.Errorf("%w: job %s has status %s", ErrNotQueued, jobID, job.Status)
	}

	mem := o.memoryFactory(jobID)

	if err := o.jobStore.UpdateStatus(jobID, jobs.StatusPlanning, 0, "", 0); err != nil {
		return err
	}
	o.log(jobID, logstream.RoleOrchestrator, logstream.LevelInfo, "job started")

	handle, err := o.callProvision(ctx, jobID)
	if err != nil {
		return o.terminate(jobID, 0, ErrExecutorUnavailable, "sandbox unavailable", nil)
	}

	plan, err := o.callPlan(ctx, job.Requirement, job.TemplateContext)
	if err != nil {
		return o.terminate(jobID, 0, ErrPlanFailed, fmt.Sprintf("planning failed: %v", err), handle)
	}
	if err := o.jobStore.SetContract(jobID, plan.ContractSpec, plan.SchemaSpec); err != nil {
		return o.terminate(jobID, 0, ErrPlanFailed, fmt.Sprintf("planning failed: %v", err), handle)
	}
	if err := o.jobStore.LockContract(jobID); err != nil {
		return o.terminate(jobID, 0, ErrPlanFailed, fmt.Sprintf("planning failed: %v", err), handle)
	}
	for _, d := range plan.InitialArtifacts {
		if _, err := o.artifactStore.Create(jobID, d.Path, d.Content, d.GeneratedBy, 0); err != nil {
			return o.terminate(jobID, 0, ErrPlanFailed, fmt.Sprintf("planning failed: %v", err), handle)
		}
	}
	o.log(jobID, logstream.RoleArchitect, logstream.LevelInfo, "plan accepted, contract locked")

	if err := o.jobStore.UpdateStatus(jobID, jobs.StatusCoding, 0, "", 0); err != nil {
		return err
	}

	if err := o.initialCoding(ctx, jobID, plan); err != nil {
		return o.terminate(jobID, 0, ErrCoderFailed, fmt.Sprintf("initial coding failed: %v", err), handle)
	}

	if err := o.jobStore.UpdateStatus(jobID, jobs.StatusTesting, 0, "", 0); err != nil {
		return err
	}

	return o.validateAndRepairLoop(ctx, jobID, job.MaxRounds, handle, mem)
}

// initialCoding invokes both coder agents and persists every draft as
// version 1 of its path (spec.md §4.6 step 3).
func (o *Orchestrator) initialCoding(ctx context.Context, jobID string, plan ports.PlanResult) error {
	backendDrafts, err := o.callGenerate(ctx, plan, o.backendCoder, ports.ScopeBackend)
	if err != nil {
		return err
	}
	frontendDrafts, err := o.callGenerate(ctx, plan, o.frontendCoder, ports.ScopeFrontend)
	if err != nil {
		return err
	}

	for _, d := range append(backendDrafts, frontendDrafts...) {
		if _, err := o.artifactStore.Create(jobID, d.Path, d.Content, d.GeneratedBy, 0); err != nil {
			return err
		}
	}
	o.log(jobID, logstream.RoleCoder, logstream.LevelInfo,
		fmt.Sprintf("initial coding produced %d artifacts", len(backendDrafts)+len(frontendDrafts)))
	return nil
}

// validateAndRepairLoop is spec.md §4.6 step 4: deploy, validate, and on
// failure repair, until every configured gate passes or the job gives up.
func (o *Orchestrator) validateAndRepairLoop(ctx context.Context, jobID string, maxRounds int, handle ports.SandboxHandle, mem *memory.Memory) error {
	round := 0
	for {
		if ctx.Err() != nil {
			return o.terminate(jobID, round, ErrCancelled, "cancelled", handle)
		}

		latest, err := o.artifactStore.ListLatest(jobID)
		if err != nil {
			return o.terminate(jobID, round, ErrExecutorUnavailable, fmt.Sprintf("internal error: %v", err), handle)
		}
		snapshot, err := artifacts.Snapshot(latest)
		if err != nil {
			return o.terminate(jobID, round, ErrExecutorUnavailable, fmt.Sprintf("internal error: %v", err), handle)
		}
		if err := o.callDeploy(ctx, handle, snapshot); err != nil {
			return o.terminate(jobID, round, ErrExecutorUnavailable, "executor unavailable", handle)
		}

		report, passed, err := o.runGates(ctx, jobID, round, handle)
		if err != nil {
			return o.terminate(jobID, round, ErrExecutorUnavailable, "executor unavailable", handle)
		}
		if passed {
			if err := o.jobStore.UpdateStatus(jobID, jobs.StatusCompleted, round, "", 0); err != nil {
				return err
			}
			o.log(jobID, logstream.RoleOrchestrator, logstream.LevelInfo, "all validations passed")
			o.callTeardown(ctx, jobID, handle)
			return nil
		}

		sig := signature.ComputeCombined(report.CombinedOutput(), toSignatureErrors(report.ParsedErrors))
		mem.RecordErrorSignature(sig)

		if reason := mem.TerminationReason(); reason != "" {
			o.jobStore.UpdateStatus(jobID, jobs.StatusFailed, round, signature.Describe(sig), 0)
			o.log(jobID, logstream.RoleOrchestrator, logstream.LevelError, reason)
			o.callTeardown(ctx, jobID, handle)
			return ErrRepetitionDetected
		}
		if round >= maxRounds {
			o.jobStore.UpdateStatus(jobID, jobs.StatusFailed, round, signature.Describe(sig), 0)
			o.log(jobID, logstream.RoleOrchestrator, logstream.LevelError, "round budget exhausted")
			o.callTeardown(ctx, jobID, handle)
			return ErrRepairExhausted
		}

		round++
		if err := o.repairRound(ctx, jobID, round, report, sig, mem); err != nil {
			if errors.Is(err, ErrCancelled) {
				return o.terminate(jobID, round, ErrCancelled, "cancelled", handle)
			}
			return o.terminate(jobID, round, ErrCoderFailed, "coach unavailable", handle)
		}

		if err := o.jobStore.UpdateStatus(jobID, jobs.StatusTesting, round, "", 0); err != nil {
			return err
		}
	}
}

// repairRound identifies failing artifacts, calls Coach, and applies the
// returned drafts (spec.md §4.6 step 4e). If ctx is cancelled while the
// Coach call is in flight, the call is allowed to complete but its output
// is discarded (spec.md §5 "Cancellation").
func (o *Orchestrator) repairRound(ctx context.Context, jobID string, round int, report *validation.Report, sig string, mem *memory.Memory) error {
	failingPaths := report.FailingFiles()
	failingArtifacts := make([]*artifacts.Artifact, 0, len(failingPaths))
	for _, p := range failingPaths {
		chain, err := o.artifactStore.ListByPath(jobID, p)
		if err != nil || len(chain) == 0 {
			continue
		}
		failingArtifacts = append(failingArtifacts, chain[len(chain)-1])
	}

	memCtx := mem.BuildCoachContext(signature.Describe)
	drafts, err := o.callRepair(ctx, report, failingArtifacts, memCtx)
	if err != nil {
		return err
	}

	if ctx.Err() != nil {
		return ErrCancelled
	}

	latest, err := o.artifactStore.ListLatest(jobID)
	if err != nil {
		return err
	}
	latestByPath := make(map[string]*artifacts.Artifact, len(latest))
	for _, a := range latest {
		latestByPath[a.FilePath] = a
	}

	var touchedPaths []string
	for _, d := range drafts {
		parent, exists := latestByPath[d.Path]
		if exists && parent.IsContractPath() {
			o.log(jobID, logstream.RoleOrchestrator, logstream.LevelError,
				fmt.Sprintf("contract violation: rejected repair draft for locked path %s", d.Path))
			continue
		}
		if exists {
			if _, err := o.artifactStore.NewVersion(parent.ArtifactID, d.Content, artifacts.ByCoach); err != nil {
				o.log(jobID, logstream.RoleOrchestrator, logstream.LevelError,
					fmt.Sprintf("failed to version repair draft for %s: %v", d.Path, err))
				continue
			}
		} else {
			if _, err := o.artifactStore.Create(jobID, d.Path, d.Content, artifacts.ByCoach, round); err != nil {
				o.log(jobID, logstream.RoleOrchestrator, logstream.LevelError,
					fmt.Sprintf("failed to create new file %s: %v", d.Path, err))
				continue
			}
		}
		touchedPaths = append(touchedPaths, d.Path)
	}

	mem.RecordAttempt(round, touchedPaths, false, sig, "")
	o.log(jobID, logstream.RoleCoach, logstream.LevelInfo,
		fmt.Sprintf("round %d repair touched %d file(s)", round, len(touchedPaths)))
	return nil
}

// runGates runs COMPILE, then (if it passes) UNIT_TEST, then (if configured
// and it passes) INTEGRATION_TEST, in the fixed order spec.md §4.6 mandates.
// The first failing gate short-circuits the rest. It returns the report for
// the gate that determined the outcome.
func (o *Orchestrator) runGates(ctx context.Context, jobID string, round int, handle ports.SandboxHandle) (*validation.Report, bool, error) {
	gates := []validation.Kind{validation.KindCompile, validation.KindUnitTest}
	if o.enableIntegrationTests {
		gates = append(gates, validation.KindIntegration)
	}

	var last *validation.Report
	for _, kind := range gates {
		report, err := o.callValidate(ctx, handle, kind)
		if err != nil {
			return nil, false, err
		}
		report.JobID = jobID
		report.Round = round
		if err := o.validationStore.Append(report); err != nil {
			return nil, false, err
		}
		last = report
		o.log(jobID, logstream.RoleSandbox,
			levelForPassed(report.Passed),
			fmt.Sprintf("%s: passed=%v errorCount=%d", report.ValidationType, report.Passed, report.ErrorCount))
		if !report.Passed {
			return last, false, nil
		}
	}
	return last, true, nil
}

func levelForPassed(passed bool) logstream.Level {
	if passed {
		return logstream.LevelInfo
	}
	return logstream.LevelWarn
}

// terminate transitions jobID to FAILED (if not already terminal), appends
// an ERROR log, tears down the sandbox, and returns sentinel.
func (o *Orchestrator) terminate(jobID string, round int, sentinel error, reason string, handle ports.SandboxHandle) error {
	job, err := o.jobStore.Get(jobID)
	if err == nil && !job.IsFinished() {
		_ = o.jobStore.UpdateStatus(jobID, jobs.StatusFailed, round, reason, job.ErrorCount+1)
	}
	o.log(jobID, logstream.RoleOrchestrator, logstream.LevelError, reason)
	if handle != nil {
		o.callTeardown(context.Background(), jobID, handle)
	}
	return sentinel
}

func (o *Orchestrator) log(jobID string, role logstream.Role, level logstream.Level, msg string) {
	if o.logs != nil {
		o.logs.Append(jobID, role, level, msg)
	}
}

func toSignatureErrors(errs []validation.ParsedError) []signature.ParsedError {
	out := make([]signature.ParsedError, len(errs))
	for i, e := range errs {
		out[i] = signature.ParsedError{
			File:     e.File,
			Line:     e.Line,
			Column:   e.Column,
			Message:  e.Message,
			Severity: signature.Severity(e.Severity),
		}
	}
	return out
}
