package ports

import (
	"errors"
	"testing"
)

func TestError_UnwrapAndClassification(t *testing.T) {
	cause := errors.New("dial tcp: timeout")
	err := NewExecutorUnavailable("validate", cause)

	if err.Kind != KindExecutorUnavailable {
		t.Errorf("Kind = %q, want %q", err.Kind, KindExecutorUnavailable)
	}
	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to unwrap to the original cause")
	}

	var asErr *Error
	if !errors.As(err, &asErr) {
		t.Fatal("expected errors.As to match *Error")
	}
	if asErr.Op != "validate" {
		t.Errorf("Op = %q, want %q", asErr.Op, "validate")
	}
}

func TestNewAgentUnavailable_Classification(t *testing.T) {
	err := NewAgentUnavailable("plan", errors.New("context deadline exceeded"))
	if err.Kind != KindAgentUnavailable {
		t.Errorf("Kind = %q, want %q", err.Kind, KindAgentUnavailable)
	}
}
