package functional

import (
	"context"
	"fmt"
	"strings"

	"github.com/genforge-dev/genforge/internal/artifacts"
	"github.com/genforge-dev/genforge/internal/jobs"
	"github.com/genforge-dev/genforge/internal/orchestrator"
	"github.com/genforge-dev/genforge/internal/ports"
	"github.com/genforge-dev/genforge/internal/validation"
)

func aSubmittedJob(ctx context.Context, requirement string, maxRounds int) error {
	state := getState(ctx)
	job := jobs.New(requirement, "tenant-functional", "user-functional", maxRounds)
	if err := state.jobStore.Create(job); err != nil {
		return err
	}
	state.job = job
	return nil
}

func theArchitectProducesAValidContract(ctx context.Context) error {
	state := getState(ctx)
	state.architect.Plan = ports.PlanResult{
		ContractSpec: "openapi: 3.0.0",
		SchemaSpec:   "CREATE TABLE book (id INT PRIMARY KEY);",
	}
	return nil
}

func theBackendCoderEmits(ctx context.Context, pathList string) error {
	state := getState(ctx)
	for _, p := range splitPaths(pathList) {
		state.backend.Drafts = append(state.backend.Drafts, ports.ArtifactDraft{
			Path: p, Content: "// generated for " + p, GeneratedBy: artifacts.ByBackendCoder,
		})
	}
	return nil
}

func theFrontendCoderEmits(ctx context.Context, pathList string) error {
	state := getState(ctx)
	for _, p := range splitPaths(pathList) {
		state.frontend.Drafts = append(state.frontend.Drafts, ports.ArtifactDraft{
			Path: p, Content: "// generated for " + p, GeneratedBy: artifacts.ByFrontendCoder,
		})
	}
	return nil
}

func splitPaths(list string) []string {
	var out []string
	for _, p := range strings.Split(list, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func compileAndUnitTestBothPassOnEveryAttempt(ctx context.Context) error {
	state := getState(ctx)
	state.sandbox.Validate_ = func(call int, kind validation.Kind) (*validation.Report, error) {
		return validation.NewReport(state.job.JobID, 0, kind, true, "sandbox run", 0, "ok", "", 10, nil), nil
	}
	return nil
}

func compileFailsOnceThenPasses(ctx context.Context, path, symbol string) error {
	state := getState(ctx)
	state.sandbox.Validate_ = func(call int, kind validation.Kind) (*validation.Report, error) {
		if call == 1 {
			return failingReportFor(state.job.JobID, path, symbol), nil
		}
		return validation.NewReport(state.job.JobID, 1, kind, true, "sandbox run", 0, "ok", "", 10, nil), nil
	}
	return nil
}

func theCoachRepairsByAddingTheMissingImport(ctx context.Context, path string) error {
	state := getState(ctx)
	state.coach.Script = func(round int, report *validation.Report, failing []*artifacts.Artifact) ([]ports.ArtifactDraft, error) {
		return []ports.ArtifactDraft{{
			Path:        path,
			Content:     "// repaired: added missing import\n// generated for " + path,
			GeneratedBy: artifacts.ByCoach,
		}}, nil
	}
	return nil
}

func theCoachAlwaysProposesTheSameBrokenFix(ctx context.Context, path, symbol string) error {
	state := getState(ctx)
	state.sandbox.Validate_ = func(call int, kind validation.Kind) (*validation.Report, error) {
		return failingReportFor(state.job.JobID, path, symbol), nil
	}
	state.coach.Script = func(round int, report *validation.Report, failing []*artifacts.Artifact) ([]ports.ArtifactDraft, error) {
		return []ports.ArtifactDraft{{Path: path, Content: "// still broken", GeneratedBy: artifacts.ByCoach}}, nil
	}
	return nil
}

func everyRoundFailsWithADistinctSymbol(ctx context.Context, path string) error {
	state := getState(ctx)
	symbols := []string{"Alpha", "Beta", "Gamma"}
	state.sandbox.Validate_ = func(call int, kind validation.Kind) (*validation.Report, error) {
		return failingReportFor(state.job.JobID, path, symbols[(call-1)%len(symbols)]), nil
	}
	return nil
}

func theCoachProposesANewDistinctAttemptEachRound(ctx context.Context) error {
	state := getState(ctx)
	state.coach.Script = func(round int, report *validation.Report, failing []*artifacts.Artifact) ([]ports.ArtifactDraft, error) {
		msg := ""
		if len(report.ParsedErrors) > 0 {
			msg = report.ParsedErrors[0].Message
		}
		path := ""
		if len(failing) > 0 {
			path = failing[0].FilePath
		}
		return []ports.ArtifactDraft{{Path: path, Content: "// attempt for " + msg, GeneratedBy: artifacts.ByCoach}}, nil
	}
	return nil
}

func theSandboxValidateCallAlwaysFailsWithATransportError(ctx context.Context) error {
	state := getState(ctx)
	state.sandbox.Validate_ = func(call int, kind validation.Kind) (*validation.Report, error) {
		return nil, ports.NewExecutorUnavailable("sandbox.validate", fmt.Errorf("connection reset"))
	}
	return nil
}

func theJobIsCancelledWhileTheCoachIsRepairing(ctx context.Context) error {
	state := getState(ctx)
	state.sandbox.Validate_ = func(call int, kind validation.Kind) (*validation.Report, error) {
		return failingReportFor(state.job.JobID, "src/main/java/BookService.java", "BookRepository"), nil
	}
	var runCtx context.Context
	runCtx, state.cancelCtx = context.WithCancel(context.Background())
	state.coach.OnCall = func(round int) { state.cancelCtx() }
	state.coach.Script = func(round int, report *validation.Report, failing []*artifacts.Artifact) ([]ports.ArtifactDraft, error) {
		return []ports.ArtifactDraft{{Path: "src/main/java/BookService.java", Content: "// fixed too late", GeneratedBy: artifacts.ByCoach}}, nil
	}
	state.runWith = runCtx
	return nil
}

func failingReportFor(jobID, path, symbol string) *validation.Report {
	return validation.NewReport(jobID, 0, validation.KindCompile, false, "sandbox run", 1, "", "error: cannot find symbol "+symbol, 10,
		[]validation.ParsedError{{File: path, Line: 12, Column: 3, Message: "cannot find symbol " + symbol, Severity: validation.SeverityError}})
}

func iRunTheJobToCompletion(ctx context.Context) error {
	state := getState(ctx)
	orch := orchestrator.New(
		state.jobStore, state.artStore, state.valStore, state.logs,
		state.architect, state.backend, state.frontend, state.coach, state.sandbox,
	)
	var runCtx context.Context = context.Background()
	if state.runWith != nil {
		runCtx = state.runWith
	}
	state.runErr = orch.RunJob(runCtx, state.job.JobID)
	return nil
}

func theJobStatusIs(ctx context.Context, want string) error {
	state := getState(ctx)
	got, err := state.jobStore.Get(state.job.JobID)
	if err != nil {
		return err
	}
	if string(got.Status) != want {
		return fmt.Errorf("job status = %s, want %s (runErr=%v)", got.Status, want, state.runErr)
	}
	return nil
}

func theCurrentRoundIs(ctx context.Context, want int) error {
	state := getState(ctx)
	got, err := state.jobStore.Get(state.job.JobID)
	if err != nil {
		return err
	}
	if got.CurrentRound != want {
		return fmt.Errorf("currentRound = %d, want %d", got.CurrentRound, want)
	}
	return nil
}

func thereAreLatestArtifacts(ctx context.Context, want int) error {
	state := getState(ctx)
	latest, err := state.artStore.ListLatest(state.job.JobID)
	if err != nil {
		return err
	}
	if len(latest) != want {
		return fmt.Errorf("len(latest artifacts) = %d, want %d", len(latest), want)
	}
	return nil
}

func thereAreValidationReports(ctx context.Context, want int) error {
	state := getState(ctx)
	reports, err := state.valStore.ListByJob(state.job.JobID)
	if err != nil {
		return err
	}
	if len(reports) != want {
		return fmt.Errorf("len(reports) = %d, want %d", len(reports), want)
	}
	return nil
}

func theLogContains(ctx context.Context, substr string) error {
	state := getState(ctx)
	for _, e := range state.logs.List(state.job.JobID) {
		if strings.Contains(e.Message, substr) {
			return nil
		}
	}
	return fmt.Errorf("expected a log entry containing %q", substr)
}

func theJobsLastErrorIs(ctx context.Context, want string) error {
	state := getState(ctx)
	got, err := state.jobStore.Get(state.job.JobID)
	if err != nil {
		return err
	}
	if got.LastError != want {
		return fmt.Errorf("lastError = %q, want %q", got.LastError, want)
	}
	return nil
}
