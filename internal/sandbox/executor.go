// Package sandbox implements a local, os/exec-based reference
// SandboxExecutor (spec.md §4.4/§4.5, component C5): each job gets a
// throwaway temp directory; Deploy unpacks the job's artifact snapshot
// into it, and Validate runs a compile.sh/test.sh/integration.sh
// convention script via exec.CommandContext and parses its output into a
// validation.Report. This is a deliberately simple stand-in for a real
// sandbox backend (out of scope per spec.md §2 Non-goals), grounded on the
// teacher's internal/sandbox.Executor shape minus the container runtime:
// a workspace temp dir, a generated script, and a captured
// stdout/stderr/exit-code result.
package sandbox

import (
	"archive/tar"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/genforge-dev/genforge/internal/log"
	"github.com/genforge-dev/genforge/internal/ports"
	"github.com/genforge-dev/genforge/internal/validation"
)

// TempDirPrefix prefixes every per-job workspace directory this executor
// creates.
const TempDirPrefix = "genforge-sandbox-"

// scriptByKind maps each validation.Kind to the script convention a
// deployed workspace is expected to provide. A missing script is treated
// as a skip: the gate passes vacuously rather than failing the job for a
// convention the target stack doesn't need (e.g. no integration.sh when
// EnableIntegrationTests is off upstream).
var scriptByKind = map[validation.Kind]string{
	validation.KindCompile:     "compile.sh",
	validation.KindUnitTest:    "test.sh",
	validation.KindIntegration: "integration.sh",
	validation.KindRuntime:     "run.sh",
}

// handle identifies one provisioned workspace.
type handle struct {
	jobID string
	dir   string
}

// ID implements ports.SandboxHandle.
func (h *handle) ID() string { return h.jobID }

// Executor is a local reference implementation of ports.SandboxExecutor.
type Executor struct {
	logger  log.Logger
	timeout time.Duration
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets a logger for executor messages.
func WithLogger(logger log.Logger) Option {
	return func(e *Executor) { e.logger = logger }
}

// WithScriptTimeout bounds how long a single compile.sh/test.sh/etc
// invocation may run before it's killed. The orchestrator already applies
// its own per-call deadline (spec.md §4.6); this is a second, executor-
// owned floor so a runaway script can't wedge the workspace indefinitely.
func WithScriptTimeout(d time.Duration) Option {
	return func(e *Executor) { e.timeout = d }
}

// NewExecutor creates an Executor.
func NewExecutor(opts ...Option) *Executor {
	e := &Executor{logger: log.NewNoop(), timeout: 5 * time.Minute}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Provision implements ports.SandboxExecutor: it creates an empty
// workspace directory for jobID.
func (e *Executor) Provision(ctx context.Context, jobID string) (ports.SandboxHandle, error) {
	dir, err := os.MkdirTemp("", TempDirPrefix+jobID+"-")
	if err != nil {
		return nil, fmt.Errorf("sandbox: provision: %w", err)
	}
	log.WithJob(e.logger, jobID).Debug("provisioned sandbox workspace", "dir", dir)
	return &handle{jobID: jobID, dir: dir}, nil
}

// Deploy implements ports.SandboxExecutor: it unpacks the gzip'd tar
// snapshot (artifacts.Snapshot's output shape) into the workspace,
// overwriting whatever was there from a prior round.
func (e *Executor) Deploy(ctx context.Context, h ports.SandboxHandle, snapshot []byte) error {
	wh, ok := h.(*handle)
	if !ok {
		return fmt.Errorf("sandbox: deploy: handle not owned by this executor")
	}

	gz, err := gzip.NewReader(bytes.NewReader(snapshot))
	if err != nil {
		return fmt.Errorf("sandbox: deploy: open gzip stream: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("sandbox: deploy: read tar entry: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}

		target := filepath.Join(wh.dir, filepath.Clean("/"+hdr.Name))
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return fmt.Errorf("sandbox: deploy: mkdir for %s: %w", hdr.Name, err)
		}
		f, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("sandbox: deploy: create %s: %w", hdr.Name, err)
		}
		if _, err := io.Copy(f, tr); err != nil {
			f.Close()
			return fmt.Errorf("sandbox: deploy: write %s: %w", hdr.Name, err)
		}
		f.Close()
	}

	log.WithJob(e.logger, wh.jobID).Debug("deployed snapshot to sandbox")
	return nil
}

// Validate implements ports.SandboxExecutor: it runs the script
// conventionally named for kind inside the workspace and parses the
// result into a validation.Report.
func (e *Executor) Validate(ctx context.Context, h ports.SandboxHandle, kind validation.Kind) (*validation.Report, error) {
	wh, ok := h.(*handle)
	if !ok {
		return nil, fmt.Errorf("sandbox: validate: handle not owned by this executor")
	}

	scriptName, ok := scriptByKind[kind]
	if !ok {
		return nil, fmt.Errorf("sandbox: validate: unrecognized kind %q", kind)
	}
	scriptPath := filepath.Join(wh.dir, scriptName)

	if _, err := os.Stat(scriptPath); os.IsNotExist(err) {
		log.WithJob(e.logger, wh.jobID).Debug("sandbox convention script not present, skipping gate",
			"script", scriptName)
		return validation.NewReport(wh.jobID, 0, kind, true, scriptName, 0, "", "", 0, nil), nil
	}

	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "/bin/sh", scriptPath)
	cmd.Dir = wh.dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	duration := time.Since(start)

	exitCode := 0
	if runErr != nil {
		var exitErr *exec.ExitError
		if ok := asExitError(runErr, &exitErr); ok {
			exitCode = exitErr.ExitCode()
		} else {
			return nil, ports.NewExecutorUnavailable("sandbox.validate", runErr)
		}
	}

	passed := exitCode == 0
	parsed := ParseErrors(stdout.String() + stderr.String())

	report := validation.NewReport(wh.jobID, 0, kind, passed, scriptName, exitCode,
		stdout.String(), stderr.String(), duration.Milliseconds(), parsed)
	return report, nil
}

// Teardown implements ports.SandboxExecutor: it removes the workspace
// directory entirely.
func (e *Executor) Teardown(ctx context.Context, h ports.SandboxHandle) error {
	wh, ok := h.(*handle)
	if !ok {
		return fmt.Errorf("sandbox: teardown: handle not owned by this executor")
	}
	if err := os.RemoveAll(wh.dir); err != nil {
		return fmt.Errorf("sandbox: teardown: %w", err)
	}
	log.WithJob(e.logger, wh.jobID).Debug("tore down sandbox workspace")
	return nil
}

// asExitError reports whether err is an *exec.ExitError, the expected
// shape for "the script ran and exited non-zero" as opposed to a transport
// failure (script missing, permission denied, context cancelled).
func asExitError(err error, target **exec.ExitError) bool {
	ee, ok := err.(*exec.ExitError)
	if !ok {
		return false
	}
	*target = ee
	return true
}
