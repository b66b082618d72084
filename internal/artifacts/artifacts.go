// Package artifacts implements ArtifactStore (spec.md §3/§4.3, component
// C3): a durable, versioned record of generated files, one version chain
// per path, grounded on the teacher's recipe.Recipe structured-record shape
// and internal/batch.QueueEntry's in-place, JSON-friendly mutation style.
package artifacts

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Type classifies an artifact by the layer of the generated system it
// belongs to.
type Type string

// Artifact types.
const (
	TypeContract   Type = "CONTRACT"
	TypeSchema     Type = "SCHEMA"
	TypeEntity     Type = "ENTITY"
	TypeMapper     Type = "MAPPER"
	TypeService    Type = "SERVICE"
	TypeController Type = "CONTROLLER"
	TypeConfig     Type = "CONFIG"
	TypeTest       Type = "TEST"
	TypeFrontend   Type = "FRONTEND"
	TypeOther      Type = "OTHER"
)

// GeneratedBy identifies which agent role produced an artifact version.
type GeneratedBy string

// GeneratedBy values.
const (
	ByArchitect    GeneratedBy = "ARCHITECT"
	ByBackendCoder GeneratedBy = "BACKEND_CODER"
	ByFrontendCoder GeneratedBy = "FRONTEND_CODER"
	ByCoach        GeneratedBy = "COACH"
)

// Artifact is one versioned file produced by an agent during a job.
//
// Invariants (spec.md §3, §8): version == parent.version + 1; filePath is
// immutable across versions of the same chain; the latest version of a
// path is the unique version with no child.
type Artifact struct {
	ArtifactID       string
	JobID            string
	ArtifactType     Type
	FilePath         string
	FileName         string
	Content          string
	Language         string
	Version          int
	ParentArtifactID string // empty for the first version
	Checksum         string
	HasErrors        bool
	CompilerOutput   string
	ValidatedAt      time.Time
	GeneratedBy      GeneratedBy
	GenerationRound  int
	CreatedAt        time.Time
}

// isContractPath reports whether an artifact type belongs to the locked
// contract/schema category. CoachAgent must never propose changes to these
// (spec.md §4.4 CoachAgent contract); the orchestrator enforces this by
// rejecting such drafts as a ContractViolation (spec.md §7).
func isContractPath(t Type) bool {
	return t == TypeContract || t == TypeSchema
}

// IsContractPath reports whether an artifact's type places it in the
// locked contract/schema category.
func (a *Artifact) IsContractPath() bool {
	return isContractPath(a.ArtifactType)
}

// InferType derives the artifact type from a file path, matching on path
// segments and extensions per spec.md §4.3.
func InferType(path string) Type {
	lower := "/" + strings.ToLower(filepath.ToSlash(path))
	ext := strings.ToLower(filepath.Ext(path))

	switch {
	case ext == ".tsx" || ext == ".jsx":
		return TypeFrontend
	case (ext == ".yaml" || ext == ".yml") && (strings.Contains(lower, "openapi") || strings.Contains(lower, "contract")):
		return TypeContract
	case strings.Contains(lower, "/schema/") || strings.HasSuffix(lower, ".sql") || strings.Contains(lower, "/ddl/"):
		return TypeSchema
	case strings.Contains(lower, "/entity/") || strings.Contains(lower, "/entities/") || strings.Contains(lower, "/model/"):
		return TypeEntity
	case strings.Contains(lower, "/mapper/") || strings.Contains(lower, "/repository/") || strings.Contains(lower, "/repositories/"):
		return TypeMapper
	case strings.Contains(lower, "/service/") || strings.Contains(lower, "/services/"):
		return TypeService
	case strings.Contains(lower, "/controller/") || strings.Contains(lower, "/controllers/") || strings.Contains(lower, "/api/"):
		return TypeController
	case strings.Contains(lower, "/config/") || strings.Contains(lower, "/configs/"):
		return TypeConfig
	case strings.Contains(lower, "/test/") || strings.Contains(lower, "/tests/") || strings.HasSuffix(lower, "_test.go") || strings.Contains(lower, ".test.") || strings.Contains(lower, ".spec."):
		return TypeTest
	default:
		return TypeOther
	}
}

// InferLanguage derives a language tag from a file extension.
func InferLanguage(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".go":
		return "go"
	case ".java":
		return "java"
	case ".ts":
		return "typescript"
	case ".tsx":
		return "typescript-react"
	case ".js":
		return "javascript"
	case ".jsx":
		return "javascript-react"
	case ".py":
		return "python"
	case ".sql":
		return "sql"
	case ".yaml", ".yml":
		return "yaml"
	case ".json":
		return "json"
	case ".toml":
		return "toml"
	case ".md":
		return "markdown"
	default:
		return "text"
	}
}

func checksum(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// ErrHasChild is returned by Store.NewVersion when the parent artifact
// already has a successor — version chains are strictly linear, no forking.
var ErrHasChild = fmt.Errorf("artifacts: parent already has a child version")

// ErrNotFound is returned when an artifact or path lookup fails.
var ErrNotFound = fmt.Errorf("artifacts: not found")

// ErrContractLocked names a write to a contract/schema-category artifact
// after planning. MemoryStore does not check this and never returns it; the
// orchestrator rejects contract-path repair drafts itself via IsContractPath.
var ErrContractLocked = fmt.Errorf("artifacts: contract/schema artifacts are locked")

// Store is the durable ArtifactStore contract (spec.md §4.3/§6).
type Store interface {
	// Create makes the first version (version=1) of a new path.
	Create(jobID, filePath, content string, by GeneratedBy, round int) (*Artifact, error)

	// NewVersion creates a successor of parent with newContent. Fails with
	// ErrHasChild if parent already has a child (optimistic concurrency:
	// two concurrent calls on the same path must conflict, one must fail).
	NewVersion(parentArtifactID, newContent string, by GeneratedBy) (*Artifact, error)

	// MarkError records a failed validation against an artifact version.
	MarkError(artifactID, compilerOutput string) error

	// MarkValid records a successful validation against an artifact version.
	MarkValid(artifactID string) error

	// ListLatest returns the latest version of every path for a job.
	ListLatest(jobID string) ([]*Artifact, error)

	// ListByPath returns the full version chain for a path, oldest first.
	ListByPath(jobID, filePath string) ([]*Artifact, error)

	// Get returns a single artifact version by ID.
	Get(artifactID string) (*Artifact, error)
}

// MemoryStore is an in-memory reference Store implementation, concurrency
// safe, serializing NewVersion per filePath as spec.md §5 requires.
type MemoryStore struct {
	mu sync.Mutex

	byID map[string]*Artifact
	// latest maps (jobID, filePath) -> artifactID of the current tip.
	latest map[string]string
	// children maps parentArtifactID -> child artifactID, used to detect
	// an existing child and reject forking.
	children map[string]string
}

// NewMemoryStore creates an empty in-memory Store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:     make(map[string]*Artifact),
		latest:   make(map[string]string),
		children: make(map[string]string),
	}
}

func pathKey(jobID, filePath string) string {
	return jobID + "\x00" + filePath
}

// Create implements Store.
func (s *MemoryStore) Create(jobID, filePath, content string, by GeneratedBy, round int) (*Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a := &Artifact{
		ArtifactID:      uuid.NewString(),
		JobID:           jobID,
		ArtifactType:    InferType(filePath),
		FilePath:        filePath,
		FileName:        filepath.Base(filePath),
		Content:         content,
		Language:        InferLanguage(filePath),
		Version:         1,
		Checksum:        checksum(content),
		GeneratedBy:     by,
		GenerationRound: round,
		CreatedAt:       time.Now().UTC(),
	}
	s.byID[a.ArtifactID] = a
	s.latest[pathKey(jobID, filePath)] = a.ArtifactID
	return cloneArtifact(a), nil
}

// NewVersion implements Store.
func (s *MemoryStore) NewVersion(parentArtifactID, newContent string, by GeneratedBy) (*Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	parent, ok := s.byID[parentArtifactID]
	if !ok {
		return nil, ErrNotFound
	}
	if _, hasChild := s.children[parentArtifactID]; hasChild {
		return nil, ErrHasChild
	}

	a := &Artifact{
		ArtifactID:       uuid.NewString(),
		JobID:            parent.JobID,
		ArtifactType:     parent.ArtifactType,
		FilePath:         parent.FilePath,
		FileName:         parent.FileName,
		Content:          newContent,
		Language:         parent.Language,
		Version:          parent.Version + 1,
		ParentArtifactID: parent.ArtifactID,
		Checksum:         checksum(newContent),
		GeneratedBy:      by,
		GenerationRound:  parent.GenerationRound + 1,
		CreatedAt:        time.Now().UTC(),
	}
	s.byID[a.ArtifactID] = a
	s.children[parentArtifactID] = a.ArtifactID
	s.latest[pathKey(parent.JobID, parent.FilePath)] = a.ArtifactID
	return cloneArtifact(a), nil
}

// MarkError implements Store.
func (s *MemoryStore) MarkError(artifactID, compilerOutput string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byID[artifactID]
	if !ok {
		return ErrNotFound
	}
	a.HasErrors = true
	a.CompilerOutput = compilerOutput
	a.ValidatedAt = time.Now().UTC()
	return nil
}

// MarkValid implements Store.
func (s *MemoryStore) MarkValid(artifactID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byID[artifactID]
	if !ok {
		return ErrNotFound
	}
	a.HasErrors = false
	a.CompilerOutput = ""
	a.ValidatedAt = time.Now().UTC()
	return nil
}

// ListLatest implements Store.
func (s *MemoryStore) ListLatest(jobID string) ([]*Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*Artifact
	prefix := jobID + "\x00"
	for key, id := range s.latest {
		if strings.HasPrefix(key, prefix) {
			out = append(out, cloneArtifact(s.byID[id]))
		}
	}
	return out, nil
}

// ListByPath implements Store.
func (s *MemoryStore) ListByPath(jobID, filePath string) ([]*Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.latest[pathKey(jobID, filePath)]
	if !ok {
		return nil, ErrNotFound
	}

	// Walk backwards from the tip to the root, then reverse.
	var chain []*Artifact
	cur := s.byID[id]
	for cur != nil {
		chain = append(chain, cloneArtifact(cur))
		if cur.ParentArtifactID == "" {
			break
		}
		cur = s.byID[cur.ParentArtifactID]
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

// Get implements Store.
func (s *MemoryStore) Get(artifactID string) (*Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byID[artifactID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneArtifact(a), nil
}

func cloneArtifact(a *Artifact) *Artifact {
	cp := *a
	return &cp
}
