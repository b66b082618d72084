package main

import (
	"context"
	"fmt"
	"os"

	"github.com/genforge-dev/genforge/internal/agents"
	"github.com/genforge-dev/genforge/internal/errmsg"
	"github.com/genforge-dev/genforge/internal/log"
	"github.com/genforge-dev/genforge/internal/orchestrator"
	"github.com/genforge-dev/genforge/internal/ports"
	"github.com/genforge-dev/genforge/internal/sandbox"
	"github.com/genforge-dev/genforge/internal/userconfig"
)

// printInfo prints an informational message unless quiet mode is enabled.
func printInfo(a ...interface{}) {
	if !quietFlag {
		fmt.Println(a...)
	}
}

// printInfof prints a formatted informational message unless quiet mode is
// enabled.
func printInfof(format string, a ...interface{}) {
	if !quietFlag {
		fmt.Printf(format, a...)
	}
}

// printError formats err through internal/errmsg and writes it to stderr.
func printError(err error, jobID string) {
	var ctx *errmsg.ErrorContext
	if jobID != "" {
		ctx = &errmsg.ErrorContext{JobID: jobID}
	}
	fmt.Fprintln(os.Stderr, errmsg.Format(err, ctx))
}

// buildAgents resolves the operator's userconfig and secrets into a single
// agents.Agent that backs all three AgentPort roles (architect, coder,
// coach). Returns agents.ErrLLMDisabled verbatim if agent features are
// turned off, and a wrapped error if no provider has a configured secret.
func buildAgents(ctx context.Context) (*agents.Agent, error) {
	cfg, err := userconfig.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	factory, err := agents.NewFactory(ctx, agents.WithConfig(cfg))
	if err != nil {
		return nil, err
	}
	provider, err := factory.Provider()
	if err != nil {
		return nil, err
	}
	return agents.NewAgent(provider), nil
}

// buildOrchestrator wires one Agent into all three AgentPort roles plus a
// local sandbox.Executor, matching the single-provider-services-the-job-end-
// to-end default agents.Agent documents.
func buildOrchestrator(agent *agents.Agent, opts ...orchestrator.Option) *orchestrator.Orchestrator {
	exec := sandbox.NewExecutor(sandbox.WithLogger(log.Default()))
	var architect ports.ArchitectAgent = agent
	var coder ports.CoderAgent = agent
	var coach ports.CoachAgent = agent
	opts = append([]orchestrator.Option{orchestrator.WithLogger(log.Default())}, opts...)
	return orchestrator.New(jobStore, artStore, valStore, logs, architect, coder, coder, coach, exec, opts...)
}
