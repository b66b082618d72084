package agents

// Tool names the Architect/Coder/Coach loops expect the model to call.
// Each agent's system prompt instructs the model to finish by calling
// exactly the one tool relevant to its role; the loop treats any other
// stop reason as "needs another turn" up to MaxTurns.
const (
	ToolProposeContract = "propose_contract"
	ToolWriteArtifacts  = "write_artifacts"
	ToolRepairArtifacts = "repair_artifacts"
)

// artifactDraftSchema is the JSON Schema fragment shared by the coder and
// coach tools: a single proposed file.
var artifactDraftSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"path": map[string]any{
			"type":        "string",
			"description": "Repository-relative file path, e.g. internal/service/order.go",
		},
		"content": map[string]any{
			"type":        "string",
			"description": "Full file content, not a diff",
		},
	},
	"required": []string{"path", "content"},
}

func buildArchitectTools() []ToolDef {
	return []ToolDef{
		{
			Name:        ToolProposeContract,
			Description: "Propose the locked API contract, data schema, and initial scaffold artifacts for this job. Call this exactly once, after you have fully planned the system.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"contractSpec": map[string]any{
						"type":        "string",
						"description": "The OpenAPI or equivalent interface contract, as a single text document",
					},
					"schemaSpec": map[string]any{
						"type":        "string",
						"description": "The data schema (DDL or equivalent), as a single text document",
					},
					"initialArtifacts": map[string]any{
						"type":        "array",
						"description": "Scaffold files (config, project layout) that are not contract or schema but should exist before coding begins",
						"items":       artifactDraftSchema,
					},
					"warnings": map[string]any{
						"type":        "array",
						"description": "Ambiguities in the requirement you had to resolve by assumption",
						"items":       map[string]any{"type": "string"},
					},
				},
				"required": []string{"contractSpec", "schemaSpec"},
			},
		},
	}
}

func buildCoderTools() []ToolDef {
	return []ToolDef{
		{
			Name:        ToolWriteArtifacts,
			Description: "Submit the complete set of generated files for this scope. Call this exactly once, after you have written every file the contract requires.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"artifacts": map[string]any{
						"type":  "array",
						"items": artifactDraftSchema,
					},
				},
				"required": []string{"artifacts"},
			},
		},
	}
}

func buildCoachTools() []ToolDef {
	return []ToolDef{
		{
			Name:        ToolRepairArtifacts,
			Description: "Submit corrected versions of the failing files. Only include files you changed; never include contract or schema files.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"artifacts": map[string]any{
						"type":  "array",
						"items": artifactDraftSchema,
					},
					"fixSummary": map[string]any{
						"type":        "string",
						"description": "One or two sentences describing the root cause and the fix",
					},
				},
				"required": []string{"artifacts"},
			},
		},
	}
}
