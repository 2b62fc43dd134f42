// Package file provides file-based persistence for local development and
// tests. Every entity is one JSON document under a per-type directory.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/harvestcrm/automata/pkg/persistence"
)

// Persistence implements persistence.Persistence on the local file system.
type Persistence struct {
	root string

	contacts        *ContactRepository
	graphs          *GraphRepository
	enrollments     *EnrollmentRepository
	rules           *RuleRepository
	tasks           *TaskRepository
	batches         *BatchRepository
	recommendations *RecommendationRepository
}

// NewPersistence creates a file persistence layer rooted at the given
// directory. A "file://" prefix is tolerated so the same database-url flag
// works for every backend.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)
	store := newStore(cleanRoot)

	return &Persistence{
		root:            cleanRoot,
		contacts:        &ContactRepository{store: store},
		graphs:          &GraphRepository{store: store},
		enrollments:     &EnrollmentRepository{store: store},
		rules:           &RuleRepository{store: store},
		tasks:           &TaskRepository{store: store},
		batches:         &BatchRepository{store: store},
		recommendations: &RecommendationRepository{store: store},
	}
}

func (p *Persistence) Contacts() persistence.ContactRepository {
	return p.contacts
}

// ContactWriter exposes the dev-only contact seeding API of the file
// backend. Production backends never write contacts.
func (p *Persistence) ContactWriter() *ContactRepository {
	return p.contacts
}

func (p *Persistence) Graphs() persistence.GraphRepository {
	return p.graphs
}

func (p *Persistence) Enrollments() persistence.EnrollmentRepository {
	return p.enrollments
}

func (p *Persistence) Rules() persistence.RuleRepository {
	return p.rules
}

func (p *Persistence) Tasks() persistence.TaskRepository {
	return p.tasks
}

func (p *Persistence) Batches() persistence.BatchRepository {
	return p.batches
}

func (p *Persistence) Recommendations() persistence.RecommendationRepository {
	return p.recommendations
}

// HealthCheck verifies the root directory exists or can be created.
func (p *Persistence) HealthCheck(_ context.Context) error {
	return os.MkdirAll(p.root, 0o755)
}

// Close is a no-op for file persistence.
func (p *Persistence) Close(_ context.Context) error {
	return nil
}

// store serializes JSON documents under <root>/<kind>/<id>.json. A single
// mutex guards the whole tree: the file backend favors simplicity over
// write throughput.
type store struct {
	mu   sync.RWMutex
	root string
}

func newStore(root string) *store {
	return &store{root: root}
}

func (s *store) path(kind, id string) string {
	return filepath.Join(s.root, kind, id+".json")
}

func (s *store) write(kind, id string, v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Join(s.root, kind)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s directory: %w", kind, err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s %s: %w", kind, id, err)
	}

	if err := os.WriteFile(s.path(kind, id), data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s %s: %w", kind, id, err)
	}

	return nil
}

// read unmarshals one document into v. Returns notFound untouched when the
// document does not exist.
func (s *store) read(kind, id string, v any, notFound error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path(kind, id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return notFound
		}

		return fmt.Errorf("failed to read %s %s: %w", kind, id, err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal %s %s: %w", kind, id, err)
	}

	return nil
}

func (s *store) remove(kind, id string, notFound error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path(kind, id))
	if errors.Is(err, fs.ErrNotExist) {
		return notFound
	}

	return err
}

// each invokes fn with the raw bytes of every document of a kind.
func (s *store) each(kind string, fn func(data []byte) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dir := filepath.Join(s.root, kind)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}

		return fmt.Errorf("failed to list %s directory: %w", kind, err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return fmt.Errorf("failed to read %s document: %w", kind, err)
		}

		if err := fn(data); err != nil {
			return err
		}
	}

	return nil
}
