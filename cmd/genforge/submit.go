package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/genforge-dev/genforge/internal/config"
	"github.com/genforge-dev/genforge/internal/jobconfig"
	"github.com/genforge-dev/genforge/internal/jobs"
	"github.com/genforge-dev/genforge/internal/log"
	"github.com/genforge-dev/genforge/internal/orchestrator"
	"github.com/genforge-dev/genforge/internal/runner"
)

var (
	submitRequirement       string
	submitTenant            string
	submitUser              string
	submitMaxRounds         int
	submitEnableIntegration bool
	submitTemplateContext   string
	submitTargetStack       string
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a requirement and run it to completion",
	Long: `Submit creates a job from a natural-language requirement, hands it to
the runner manager, and blocks until the job reaches COMPLETED or FAILED.

Because this module carries no persistence backend, the job only survives
for the life of this process: submit prints the final status, artifact
count, and a log tail itself rather than requiring a second command.`,
	Run: runSubmit,
}

func init() {
	submitCmd.Flags().StringVar(&submitRequirement, "requirement", "", "natural-language requirement (required)")
	submitCmd.Flags().StringVar(&submitTenant, "tenant", "default", "tenant ID")
	submitCmd.Flags().StringVar(&submitUser, "user", "cli", "user ID")
	submitCmd.Flags().IntVar(&submitMaxRounds, "max-rounds", config.GetMaxRounds(), "repair round budget")
	submitCmd.Flags().BoolVar(&submitEnableIntegration, "enable-integration-tests", config.GetEnableIntegrationTests(), "run integration tests during validation")
	submitCmd.Flags().StringVar(&submitTemplateContext, "template-context", "", "path to a TOML override file (target_stack/generation_options/template_context)")
	submitCmd.Flags().StringVar(&submitTargetStack, "target-stack", "", "comma-separated key=value pairs, e.g. backend=go,frontend=react,database=postgres")
	_ = submitCmd.MarkFlagRequired("requirement")
}

func runSubmit(cmd *cobra.Command, args []string) {
	job := jobs.New(submitRequirement, submitTenant, submitUser, submitMaxRounds)
	job.GenerationOptions.EnableIntegrationTests = submitEnableIntegration
	applyTargetStackFlag(job, submitTargetStack)

	if submitTemplateContext != "" {
		override, err := jobconfig.Load(submitTemplateContext)
		if err != nil {
			printError(err, job.JobID)
			exitWithCode(ExitUsage)
		}
		override.ApplyTo(job)
	}

	if err := jobStore.Create(job); err != nil {
		printError(err, job.JobID)
		exitWithCode(ExitGeneral)
	}
	printInfof("jobId: %s\n", job.JobID)

	agent, err := buildAgents(globalCtx)
	if err != nil {
		printError(err, job.JobID)
		exitWithCode(ExitGeneral)
	}

	orch := buildOrchestrator(agent,
		orchestrator.WithTimeouts(config.GetAgentTimeout(), config.GetSandboxValidateTimeout(), config.GetSandboxDeployTimeout()),
		orchestrator.WithIntegrationTests(submitEnableIntegration),
	)
	mgr := runner.New(orch, jobStore, logs, runner.WithLogger(log.Default()))

	if err := mgr.Submit(job.JobID); err != nil {
		printError(err, job.JobID)
		exitWithCode(ExitGeneral)
	}

	// Manager.Submit owns its own context; forward an external Ctrl-C
	// (globalCtx) into a Manager.Cancel call so it reaches the orchestrator
	// as ErrCancelled instead of leaving the job to spin until it resolves
	// on its own.
	watchDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		select {
		case <-globalCtx.Done():
			_ = mgr.Cancel(job.JobID)
		case <-watchDone:
		}
	}()

	final, err := waitForTerminal(job.JobID)
	if err != nil {
		printError(err, job.JobID)
		exitWithCode(ExitGeneral)
	}

	printJobSummary(final)
	if final.Status == jobs.StatusFailed {
		exitWithCode(ExitJobFailed)
	}
}

func applyTargetStackFlag(job *jobs.Job, raw string) {
	if raw == "" {
		return
	}
	for _, pair := range strings.Split(raw, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(k)) {
		case "backend":
			job.TargetStack.Backend = strings.TrimSpace(v)
		case "frontend":
			job.TargetStack.Frontend = strings.TrimSpace(v)
		case "database":
			job.TargetStack.Database = strings.TrimSpace(v)
		}
	}
}

func printJobSummary(job *jobs.Job) {
	printInfof("status: %s (round %d/%d)\n", job.Status, job.CurrentRound, job.MaxRounds)
	if job.LastError != "" {
		printInfof("lastError: %s\n", job.LastError)
	}
	latest, err := artStore.ListLatest(job.JobID)
	if err == nil {
		printInfof("artifacts: %d\n", len(latest))
	}
	entries := logs.List(job.JobID)
	tail := entries
	if len(tail) > 10 {
		tail = tail[len(tail)-10:]
	}
	for _, e := range tail {
		if e.Heartbeat {
			continue
		}
		fmt.Fprintf(os.Stderr, "[%s] %s: %s\n", e.Role, e.Level, e.Message)
	}
}
