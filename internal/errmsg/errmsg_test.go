package errmsg

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"testing"

	"github.com/genforge-dev/genforge/internal/orchestrator"
	"github.com/genforge-dev/genforge/internal/ports"
)

func TestFormat_NilError(t *testing.T) {
	result := Format(nil, nil)
	if result != "" {
		t.Errorf("expected empty string for nil error, got %q", result)
	}
}

func TestFormat_GenericError(t *testing.T) {
	err := errors.New("something went wrong")
	result := Format(err, nil)
	if result != "something went wrong" {
		t.Errorf("expected original error message, got %q", result)
	}
}

func TestFormat_OrchestratorError_PlanFailed(t *testing.T) {
	err := fmt.Errorf("%w: bad requirement", orchestrator.ErrPlanFailed)
	ctx := &ErrorContext{JobID: "job-1"}
	result := Format(err, ctx)

	checks := []string{
		"bad requirement",
		"Possible causes:",
		"architect agent",
		"Suggestions:",
		"genforge logs job-1",
	}
	for _, check := range checks {
		if !strings.Contains(result, check) {
			t.Errorf("expected result to contain %q, got:\n%s", check, result)
		}
	}
}

func TestFormat_OrchestratorError_RepetitionDetected(t *testing.T) {
	err := fmt.Errorf("%w: symbol not found", orchestrator.ErrRepetitionDetected)
	result := Format(err, nil)

	checks := []string{
		"symbol not found",
		"Possible causes:",
		"same error signature recurred",
		"Suggestions:",
		"genforge artifacts --all-versions <jobId>",
	}
	for _, check := range checks {
		if !strings.Contains(result, check) {
			t.Errorf("expected result to contain %q, got:\n%s", check, result)
		}
	}
}

func TestFormat_OrchestratorError_Cancelled(t *testing.T) {
	err := fmt.Errorf("%w", orchestrator.ErrCancelled)
	result := Format(err, nil)

	if !strings.Contains(result, "cancel(jobId) call") {
		t.Errorf("expected cancellation cause, got:\n%s", result)
	}
}

func TestFormat_PortError_ExecutorUnavailable(t *testing.T) {
	err := ports.NewExecutorUnavailable("sandbox.validate", errors.New("deadline exceeded"))
	result := Format(err, nil)

	checks := []string{
		"EXECUTOR_UNAVAILABLE",
		"Possible causes:",
		"sandbox executor timed out",
		"Suggestions:",
		"sandboxValidateTimeoutMs",
	}
	for _, check := range checks {
		if !strings.Contains(result, check) {
			t.Errorf("expected result to contain %q, got:\n%s", check, result)
		}
	}
}

func TestFormat_PortError_AgentUnavailable(t *testing.T) {
	err := ports.NewAgentUnavailable("architect.plan", errors.New("deadline exceeded"))
	result := Format(err, &ErrorContext{JobID: "job-9"})

	checks := []string{
		"AGENT_UNAVAILABLE",
		"agent provider timed out",
		"genforge logs job-9",
	}
	for _, check := range checks {
		if !strings.Contains(result, check) {
			t.Errorf("expected result to contain %q, got:\n%s", check, result)
		}
	}
}

func TestFormat_RateLimitError(t *testing.T) {
	err := errors.New("anthropic API rate limit exceeded")
	result := Format(err, nil)

	checks := []string{
		"rate limit",
		"Possible causes:",
		"Too many requests",
		"Suggestions:",
	}
	for _, check := range checks {
		if !strings.Contains(result, check) {
			t.Errorf("expected result to contain %q, got:\n%s", check, result)
		}
	}
}

func TestFormat_NetworkError(t *testing.T) {
	err := errors.New("dial tcp: connection refused")
	result := Format(err, nil)

	checks := []string{
		"connection refused",
		"Possible causes:",
		"Network connectivity issue",
		"Suggestions:",
	}
	for _, check := range checks {
		if !strings.Contains(result, check) {
			t.Errorf("expected result to contain %q, got:\n%s", check, result)
		}
	}
}

func TestFormat_NotFoundError(t *testing.T) {
	err := errors.New("job not found: job-123")
	ctx := &ErrorContext{JobID: "job-123"}
	result := Format(err, ctx)

	checks := []string{
		"not found",
		"Possible causes:",
		"does not exist",
		"Suggestions:",
		"genforge status job-123",
	}
	for _, check := range checks {
		if !strings.Contains(result, check) {
			t.Errorf("expected result to contain %q, got:\n%s", check, result)
		}
	}
}

func TestFormat_PermissionError(t *testing.T) {
	err := errors.New("open /home/user/.genforge/jobs: permission denied")
	result := Format(err, nil)

	checks := []string{
		"permission denied",
		"Possible causes:",
		"Insufficient permissions",
		"Suggestions:",
		"~/.genforge",
	}
	for _, check := range checks {
		if !strings.Contains(result, check) {
			t.Errorf("expected result to contain %q, got:\n%s", check, result)
		}
	}
}

// mockNetError implements net.Error for testing.
type mockNetError struct {
	msg       string
	timeout   bool
	temporary bool
}

func (e mockNetError) Error() string   { return e.msg }
func (e mockNetError) Timeout() bool   { return e.timeout }
func (e mockNetError) Temporary() bool { return e.temporary }

var _ net.Error = mockNetError{}

func TestFormat_NetError_Timeout(t *testing.T) {
	err := mockNetError{msg: "i/o timeout", timeout: true}
	result := Format(err, nil)

	checks := []string{
		"i/o timeout",
		"Possible causes:",
		"Request timed out",
		"Suggestions:",
		"slow proxy",
	}
	for _, check := range checks {
		if !strings.Contains(result, check) {
			t.Errorf("expected result to contain %q, got:\n%s", check, result)
		}
	}
}

func TestFormat_WithoutContext(t *testing.T) {
	err := fmt.Errorf("%w: no usable contract", orchestrator.ErrPlanFailed)
	result := Format(err, nil)

	if !strings.Contains(result, "genforge logs <jobId>") {
		t.Errorf("expected generic suggestion, got:\n%s", result)
	}
}

func TestIsRateLimitError(t *testing.T) {
	tests := []struct {
		msg      string
		expected bool
	}{
		{"anthropic API rate limit exceeded", true},
		{"rate-limit: too many requests", true},
		{"Too many requests to the server", true},
		{"connection failed", false},
		{"file not found", false},
	}

	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			if got := isRateLimitError(tt.msg); got != tt.expected {
				t.Errorf("isRateLimitError(%q) = %v, want %v", tt.msg, got, tt.expected)
			}
		})
	}
}

func TestIsNetworkError(t *testing.T) {
	tests := []struct {
		msg      string
		expected bool
	}{
		{"dial tcp: connection refused", true},
		{"connection reset by peer", true},
		{"no such host", true},
		{"i/o timeout", true},
		{"file not found", false},
		{"permission denied", false},
	}

	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			if got := isNetworkError(tt.msg); got != tt.expected {
				t.Errorf("isNetworkError(%q) = %v, want %v", tt.msg, got, tt.expected)
			}
		})
	}
}

func TestIsNotFoundError(t *testing.T) {
	tests := []struct {
		msg      string
		expected bool
	}{
		{"job not found", true},
		{"returned 404", true},
		{"does not exist in store", true},
		{"connection failed", false},
		{"rate limit exceeded", false},
	}

	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			if got := isNotFoundError(tt.msg); got != tt.expected {
				t.Errorf("isNotFoundError(%q) = %v, want %v", tt.msg, got, tt.expected)
			}
		})
	}
}

func TestIsPermissionError(t *testing.T) {
	tests := []struct {
		msg      string
		expected bool
	}{
		{"permission denied", true},
		{"access denied", true},
		{"operation not permitted", true},
		{"file not found", false},
		{"connection refused", false},
	}

	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			if got := isPermissionError(tt.msg); got != tt.expected {
				t.Errorf("isPermissionError(%q) = %v, want %v", tt.msg, got, tt.expected)
			}
		})
	}
}
