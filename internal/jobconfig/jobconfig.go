// Package jobconfig parses a per-submission TOML override file carrying
// templateContext and generationOptions (spec.md §6 Ingress), the same
// format and parsing approach internal/userconfig uses for the operator's
// global config.toml, grounded additionally on the teacher's
// recipe.Recipe.ToTOML/FromTOML round-trip shape in internal/recipe/types.go.
package jobconfig

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/genforge-dev/genforge/internal/jobs"
)

// File is the on-disk shape of a submission override file, e.g.:
//
//	[target_stack]
//	backend = "go"
//	frontend = "react"
//	database = "postgres"
//
//	[generation_options]
//	max_rounds = 5
//	enable_integration_tests = true
//
//	[template_context]
//	module_name = "orders"
type File struct {
	TargetStack       TargetStack       `toml:"target_stack"`
	GenerationOptions GenerationOptions `toml:"generation_options"`
	TemplateContext   map[string]string `toml:"template_context,omitempty"`
}

// TargetStack mirrors jobs.TargetStack for TOML decoding.
type TargetStack struct {
	Backend  string `toml:"backend,omitempty"`
	Frontend string `toml:"frontend,omitempty"`
	Database string `toml:"database,omitempty"`
}

// GenerationOptions mirrors jobs.GenerationOptions for TOML decoding.
// MaxRounds is a pointer so "absent from the file" is distinguishable from
// "explicitly zero" the same way userconfig.AgentsConfig.DailyBudget does.
type GenerationOptions struct {
	MaxRounds              *int  `toml:"max_rounds,omitempty"`
	EnableIntegrationTests *bool `toml:"enable_integration_tests,omitempty"`
}

// Load reads and parses an override file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("jobconfig: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes TOML override data.
func Parse(data []byte) (*File, error) {
	var f File
	if _, err := toml.Decode(string(data), &f); err != nil {
		return nil, fmt.Errorf("jobconfig: parse: %w", err)
	}
	return &f, nil
}

// ApplyTo merges the override file onto job, leaving fields the file
// doesn't mention untouched. It must run before the job is submitted to
// the orchestrator (spec.md §4.7: TargetStack/GenerationOptions are part
// of the submission payload, not mutable afterward).
func (f *File) ApplyTo(job *jobs.Job) {
	if f.TargetStack.Backend != "" {
		job.TargetStack.Backend = f.TargetStack.Backend
	}
	if f.TargetStack.Frontend != "" {
		job.TargetStack.Frontend = f.TargetStack.Frontend
	}
	if f.TargetStack.Database != "" {
		job.TargetStack.Database = f.TargetStack.Database
	}

	if f.GenerationOptions.MaxRounds != nil {
		job.GenerationOptions.MaxRounds = *f.GenerationOptions.MaxRounds
		if *f.GenerationOptions.MaxRounds > 0 {
			job.MaxRounds = *f.GenerationOptions.MaxRounds
		}
	}
	if f.GenerationOptions.EnableIntegrationTests != nil {
		job.GenerationOptions.EnableIntegrationTests = *f.GenerationOptions.EnableIntegrationTests
	}
	if tc := f.TemplateContextOrNil(); tc != nil {
		job.TemplateContext = tc
	}
}

// TemplateContextOrNil returns the parsed template context, or nil if the
// file declared none, so callers can pass it straight to
// ports.ArchitectAgent.Plan without an extra empty-map allocation.
func (f *File) TemplateContextOrNil() map[string]string {
	if len(f.TemplateContext) == 0 {
		return nil
	}
	return f.TemplateContext
}
