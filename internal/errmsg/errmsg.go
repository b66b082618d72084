// Package errmsg formats orchestrator-surfaced failures into actionable
// operator-facing text: possible causes plus suggestions, the same shape
// as the teacher's version-resolver error formatter, re-pointed at the
// Generation Orchestrator's own error taxonomy (spec.md §7).
package errmsg

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/genforge-dev/genforge/internal/orchestrator"
	"github.com/genforge-dev/genforge/internal/ports"
)

// ErrorContext provides additional context for error formatting.
type ErrorContext struct {
	// JobID is the job the error belongs to, used to render job-specific
	// suggestions (e.g. "genforge logs <jobId>").
	JobID string
}

// Format returns a formatted error message with possible causes and
// suggestions. ctx is optional; pass nil for generic formatting.
func Format(err error, ctx *ErrorContext) string {
	if err == nil {
		return ""
	}

	errMsg := err.Error()

	var portErr *ports.Error
	if errors.As(err, &portErr) {
		return formatPortError(portErr, ctx)
	}

	if kind, ok := orchestratorKind(err); ok {
		return formatOrchestratorError(kind, errMsg, ctx)
	}

	if isRateLimitError(errMsg) {
		return formatRateLimitError(errMsg, ctx)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return formatNetworkError(netErr, ctx)
	}

	if isNetworkError(errMsg) {
		return formatGenericNetworkError(errMsg, ctx)
	}

	if isNotFoundError(errMsg) {
		return formatNotFoundError(errMsg, ctx)
	}

	if isPermissionError(errMsg) {
		return formatPermissionError(errMsg, ctx)
	}

	return errMsg
}

// orchestratorKind maps err to one of spec.md §7's sentinel error kinds, if
// it wraps one.
func orchestratorKind(err error) (string, bool) {
	switch {
	case errors.Is(err, orchestrator.ErrPlanFailed):
		return "PlanFailed", true
	case errors.Is(err, orchestrator.ErrCoderFailed):
		return "CoderFailed", true
	case errors.Is(err, orchestrator.ErrRepairExhausted):
		return "RepairExhausted", true
	case errors.Is(err, orchestrator.ErrRepetitionDetected):
		return "RepetitionDetected", true
	case errors.Is(err, orchestrator.ErrExecutorUnavailable):
		return "ExecutorUnavailable", true
	case errors.Is(err, orchestrator.ErrCancelled):
		return "Cancelled", true
	case errors.Is(err, orchestrator.ErrOrchestratorRestart):
		return "OrchestratorRestart", true
	default:
		return "", false
	}
}

func formatOrchestratorError(kind, errMsg string, ctx *ErrorContext) string {
	var sb strings.Builder
	sb.WriteString(errMsg)
	sb.WriteString("\n")

	switch kind {
	case "PlanFailed":
		sb.WriteString("\nPossible causes:\n")
		sb.WriteString("  - The architect agent could not produce a usable contract\n")
		sb.WriteString("  - The requirement text was too ambiguous to plan from\n")
		sb.WriteString("\nSuggestions:\n")
		sb.WriteString("  - Resubmit with a more specific requirement\n")
		jobSuggestion(&sb, ctx, "logs")

	case "CoderFailed":
		sb.WriteString("\nPossible causes:\n")
		sb.WriteString("  - The coder agent's transport/deadline budget was exhausted\n")
		sb.WriteString("  - Three consecutive transport failures during initial coding\n")
		sb.WriteString("\nSuggestions:\n")
		sb.WriteString("  - Check agent provider availability and credentials\n")
		jobSuggestion(&sb, ctx, "logs")

	case "RepairExhausted":
		sb.WriteString("\nPossible causes:\n")
		sb.WriteString("  - Every configured validation gate kept failing through maxRounds\n")
		sb.WriteString("  - The coach proposed fixes that never converged\n")
		sb.WriteString("\nSuggestions:\n")
		sb.WriteString("  - Resubmit with a larger maxRounds budget\n")
		jobSuggestion(&sb, ctx, "artifacts")

	case "RepetitionDetected":
		sb.WriteString("\nPossible causes:\n")
		sb.WriteString("  - The same error signature recurred in consecutive repair rounds\n")
		sb.WriteString("  - The coach is stuck proposing the same fix\n")
		sb.WriteString("\nSuggestions:\n")
		sb.WriteString("  - Inspect the failing artifact directly; the coach may need a different strategy\n")
		jobSuggestion(&sb, ctx, "artifacts --all-versions")

	case "ExecutorUnavailable":
		sb.WriteString("\nPossible causes:\n")
		sb.WriteString("  - The sandbox backend is unreachable or overloaded\n")
		sb.WriteString("  - A deploy or validate call exceeded its timeout\n")
		sb.WriteString("\nSuggestions:\n")
		sb.WriteString("  - Check the sandbox provider's health\n")
		sb.WriteString("  - Retry the job once the sandbox backend recovers\n")

	case "Cancelled":
		sb.WriteString("\nPossible causes:\n")
		sb.WriteString("  - An external cancel(jobId) call was issued\n")
		sb.WriteString("\nSuggestions:\n")
		sb.WriteString("  - Resubmit the job if the cancellation was unintended\n")

	case "OrchestratorRestart":
		sb.WriteString("\nPossible causes:\n")
		sb.WriteString("  - The orchestrator process restarted while this job was running\n")
		sb.WriteString("  - SessionMemory is non-durable, so the job cannot resume\n")
		sb.WriteString("\nSuggestions:\n")
		sb.WriteString("  - Resubmit the job; it will replan and recode from scratch\n")
	}

	return sb.String()
}

func formatPortError(err *ports.Error, ctx *ErrorContext) string {
	var sb strings.Builder
	sb.WriteString(err.Error())
	sb.WriteString("\n")

	sb.WriteString("\nPossible causes:\n")
	switch err.Kind {
	case ports.KindAgentUnavailable:
		sb.WriteString("  - The agent provider timed out or is unreachable\n")
		sb.WriteString("  - agentTimeoutMs is too low for this requirement's complexity\n")
	case ports.KindExecutorUnavailable:
		sb.WriteString("  - The sandbox executor timed out or is unreachable\n")
		sb.WriteString("  - sandboxValidateTimeoutMs/sandboxDeployTimeoutMs is too low\n")
	}
	sb.WriteString("\nSuggestions:\n")
	sb.WriteString("  - Retry once the underlying service recovers\n")
	sb.WriteString("  - Raise the relevant timeout if this recurs\n")
	jobSuggestion(&sb, ctx, "logs")

	return sb.String()
}

func jobSuggestion(sb *strings.Builder, ctx *ErrorContext, subcommand string) {
	if ctx != nil && ctx.JobID != "" {
		fmt.Fprintf(sb, "  - Run 'genforge %s %s' for more detail\n", subcommand, ctx.JobID)
	} else {
		fmt.Fprintf(sb, "  - Run 'genforge %s <jobId>' for more detail\n", subcommand)
	}
}

func formatRateLimitError(errMsg string, ctx *ErrorContext) string {
	var sb strings.Builder
	sb.WriteString(errMsg)
	sb.WriteString("\n")

	sb.WriteString("\nPossible causes:\n")
	sb.WriteString("  - Too many requests to the agent provider's API\n")
	sb.WriteString("  - Unauthenticated or low-tier API keys have lower limits\n")

	sb.WriteString("\nSuggestions:\n")
	sb.WriteString("  - Check the provider's API key and rate tier\n")
	sb.WriteString("  - Wait a few minutes before retrying\n")
	jobSuggestion(&sb, ctx, "status")

	return sb.String()
}

func formatNetworkError(err net.Error, ctx *ErrorContext) string {
	var sb strings.Builder
	sb.WriteString(err.Error())
	sb.WriteString("\n")

	sb.WriteString("\nPossible causes:\n")
	if err.Timeout() {
		sb.WriteString("  - Request timed out\n")
		sb.WriteString("  - Slow or unstable network connection to the agent or sandbox\n")
	} else {
		sb.WriteString("  - Network connectivity issue\n")
		sb.WriteString("  - DNS resolution failure\n")
	}
	sb.WriteString("  - Firewall or proxy blocking the connection\n")

	sb.WriteString("\nSuggestions:\n")
	sb.WriteString("  - Check connectivity to the agent/sandbox endpoint\n")
	sb.WriteString("  - Try again in a few minutes\n")
	if err.Timeout() {
		sb.WriteString("  - Check if you're behind a slow proxy\n")
	}

	return sb.String()
}

func formatGenericNetworkError(errMsg string, ctx *ErrorContext) string {
	var sb strings.Builder
	sb.WriteString(errMsg)
	sb.WriteString("\n")

	sb.WriteString("\nPossible causes:\n")
	sb.WriteString("  - Network connectivity issue\n")
	sb.WriteString("  - DNS resolution failure\n")
	sb.WriteString("  - Agent or sandbox backend temporarily unavailable\n")

	sb.WriteString("\nSuggestions:\n")
	sb.WriteString("  - Check your internet connection\n")
	sb.WriteString("  - Try again in a few minutes\n")

	return sb.String()
}

func formatNotFoundError(errMsg string, ctx *ErrorContext) string {
	var sb strings.Builder
	sb.WriteString(errMsg)
	sb.WriteString("\n")

	sb.WriteString("\nPossible causes:\n")
	sb.WriteString("  - The job, artifact, or path does not exist\n")
	sb.WriteString("  - Typo in the jobId or artifact path\n")

	sb.WriteString("\nSuggestions:\n")
	sb.WriteString("  - Double-check the jobId\n")
	jobSuggestion(&sb, ctx, "status")

	return sb.String()
}

func formatPermissionError(errMsg string, ctx *ErrorContext) string {
	var sb strings.Builder
	sb.WriteString(errMsg)
	sb.WriteString("\n")

	sb.WriteString("\nPossible causes:\n")
	sb.WriteString("  - Insufficient permissions on $GENFORGE_HOME directory\n")
	sb.WriteString("  - File or directory owned by a different user\n")

	sb.WriteString("\nSuggestions:\n")
	sb.WriteString("  - Check permissions on ~/.genforge\n")
	sb.WriteString("  - Ensure you own the genforge state directories: ls -la ~/.genforge\n")

	return sb.String()
}

// isRateLimitError checks if the error message indicates a rate limit.
func isRateLimitError(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "rate limit") ||
		strings.Contains(lower, "rate-limit") ||
		strings.Contains(lower, "too many requests")
}

// isNetworkError checks if the error message indicates a network issue.
func isNetworkError(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "connection refused") ||
		strings.Contains(lower, "connection reset") ||
		strings.Contains(lower, "no such host") ||
		strings.Contains(lower, "network is unreachable") ||
		strings.Contains(lower, "dial tcp") ||
		strings.Contains(lower, "timeout") ||
		strings.Contains(lower, "i/o timeout")
}

// isNotFoundError checks if the error message indicates something not found.
func isNotFoundError(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "not found") ||
		strings.Contains(lower, "404") ||
		strings.Contains(lower, "does not exist")
}

// isPermissionError checks if the error message indicates a permission issue.
func isPermissionError(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "permission denied") ||
		strings.Contains(lower, "access denied") ||
		strings.Contains(lower, "operation not permitted")
}
