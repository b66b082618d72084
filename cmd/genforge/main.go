// Command genforge is the reference CLI ingress for the Generation
// Orchestrator (SPEC_FULL.md §8). HTTP ingress is out of scope, so this
// binary is the only way to drive a job end to end without embedding the
// orchestrator as a library; it is ambient scaffolding around the core,
// not a redefinition of it.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/genforge-dev/genforge/internal/artifacts"
	"github.com/genforge-dev/genforge/internal/buildinfo"
	"github.com/genforge-dev/genforge/internal/config"
	"github.com/genforge-dev/genforge/internal/jobs"
	"github.com/genforge-dev/genforge/internal/log"
	"github.com/genforge-dev/genforge/internal/logstream"
	"github.com/genforge-dev/genforge/internal/validation"
)

var (
	quietFlag   bool
	verboseFlag bool
	debugFlag   bool
)

// globalCtx is canceled on SIGINT/SIGTERM; commands running a job use it so
// an external Ctrl-C reaches the orchestrator as a cancellation instead of
// killing the process mid-repair.
var globalCtx context.Context
var globalCancel context.CancelFunc

// Process-local state. There is no persistence backend in this module's
// scope (spec.md Non-goals), so every store here is the in-memory
// reference implementation and lives only for the life of this process.
// `submit` is the only command that populates them and it runs its job to
// completion before exiting, printing the final status/log tail itself;
// `status`/`logs`/`artifacts` are registered for composition by an
// embedder that swaps in a persistent Store (see DESIGN.md).
var (
	jobStore = jobs.NewMemoryStore()
	artStore = artifacts.NewMemoryStore()
	valStore = validation.NewMemoryStore()
	logs     = logstream.New(config.GetHeartbeatInterval())
)

var rootCmd = &cobra.Command{
	Use:   "genforge",
	Short: "Drive the Generation Orchestrator's plan/code/repair round loop",
	Long: `genforge submits natural-language requirements to the Generation
Orchestrator and drives one job through plan, initial coding, and the
validate-and-repair loop until it completes or gives up.`,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "Show errors only")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Show verbose output (INFO level)")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "Show debug output (includes timestamps and source locations)")

	rootCmd.PersistentPreRun = initLogger
	rootCmd.Version = buildinfo.Version()

	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(artifactsCmd)
}

func main() {
	globalCtx, globalCancel = context.WithCancel(context.Background())
	defer globalCancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		fmt.Fprintf(os.Stderr, "\nReceived %s, canceling job...\n", sig)
		globalCancel()
		<-sigChan
		fmt.Fprintln(os.Stderr, "Forced exit")
		exitWithCode(ExitCancelled)
	}()

	if err := rootCmd.Execute(); err != nil {
		if globalCtx.Err() == context.Canceled {
			exitWithCode(ExitCancelled)
		}
		fmt.Fprintln(os.Stderr, err)
		exitWithCode(ExitGeneral)
	}
}

func initLogger(cmd *cobra.Command, args []string) {
	level := determineLogLevel()
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	log.SetDefault(log.New(handler))
}

func determineLogLevel() slog.Level {
	switch {
	case debugFlag:
		return slog.LevelDebug
	case verboseFlag:
		return slog.LevelInfo
	case quietFlag:
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

// waitForTerminal polls the job store until jobID reaches a finished
// status. The runner manager has no "done" channel per job beyond Wait
// (which blocks for every submitted job); polling the store keeps this
// command honest about what a real client would observe (status, not an
// internal handle).
func waitForTerminal(jobID string) (*jobs.Job, error) {
	for {
		job, err := jobStore.Get(jobID)
		if err != nil {
			return nil, err
		}
		if job.IsFinished() {
			return job, nil
		}
		time.Sleep(50 * time.Millisecond)
	}
}
