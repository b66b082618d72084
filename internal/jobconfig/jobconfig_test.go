package jobconfig

import (
	"testing"

	"github.com/genforge-dev/genforge/internal/jobs"
)

func TestParse(t *testing.T) {
	data := []byte(`
[target_stack]
backend = "go"
frontend = "react"

[generation_options]
max_rounds = 5
enable_integration_tests = true

[template_context]
module_name = "orders"
`)

	f, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if f.TargetStack.Backend != "go" || f.TargetStack.Frontend != "react" {
		t.Errorf("TargetStack = %+v", f.TargetStack)
	}
	if f.GenerationOptions.MaxRounds == nil || *f.GenerationOptions.MaxRounds != 5 {
		t.Errorf("MaxRounds = %v", f.GenerationOptions.MaxRounds)
	}
	if f.TemplateContext["module_name"] != "orders" {
		t.Errorf("TemplateContext = %+v", f.TemplateContext)
	}
}

func TestFile_ApplyTo(t *testing.T) {
	job := jobs.New("build a thing", "tenant-1", "user-1", 0)
	maxRounds := 7
	integrationTests := true
	f := &File{
		TargetStack:       TargetStack{Backend: "go", Database: "postgres"},
		GenerationOptions: GenerationOptions{MaxRounds: &maxRounds, EnableIntegrationTests: &integrationTests},
		TemplateContext:   map[string]string{"module_name": "orders"},
	}

	f.ApplyTo(job)

	if job.TargetStack.Backend != "go" || job.TargetStack.Database != "postgres" {
		t.Errorf("TargetStack = %+v", job.TargetStack)
	}
	if job.MaxRounds != 7 {
		t.Errorf("MaxRounds = %d, want 7", job.MaxRounds)
	}
	if !job.GenerationOptions.EnableIntegrationTests {
		t.Errorf("EnableIntegrationTests = false, want true")
	}
	if job.TemplateContext["module_name"] != "orders" {
		t.Errorf("TemplateContext = %+v", job.TemplateContext)
	}
}

func TestFile_ApplyTo_LeavesUnsetFieldsAlone(t *testing.T) {
	job := jobs.New("build a thing", "tenant-1", "user-1", 3)
	job.TargetStack.Backend = "java"

	f := &File{}
	f.ApplyTo(job)

	if job.TargetStack.Backend != "java" {
		t.Errorf("TargetStack.Backend = %q, want unchanged \"java\"", job.TargetStack.Backend)
	}
	if job.MaxRounds != 3 {
		t.Errorf("MaxRounds = %d, want unchanged 3", job.MaxRounds)
	}
}

func TestFile_TemplateContextOrNil(t *testing.T) {
	f := &File{}
	if f.TemplateContextOrNil() != nil {
		t.Errorf("expected nil for empty template context")
	}
	f.TemplateContext = map[string]string{"k": "v"}
	if f.TemplateContextOrNil() == nil {
		t.Errorf("expected non-nil map")
	}
}
