package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/stratagraph/strata/pkg/common"
	"github.com/stratagraph/strata/pkg/logger"
)

// Store keeps per-project graph snapshots on disk and holds the one active
// in-memory graph the retriever reads from. The active pointer is guarded by
// an RWMutex and only ever replaced with a fully constructed graph, so
// concurrent readers see the old graph or the new one, never a partial state.
//
// Snapshots live at <root>/<projectID>/knowledge_graph.json. Graphs handed to
// Save or Install must not be mutated while the call runs; builds and
// switches are serialized upstream by the single-consumer worker.
type Store struct {
	root string

	mu            sync.RWMutex
	active        *common.Graph
	activeProject string
}

// New creates a store rooted at the given directory, creating it if needed.
func New(root string) (*Store, error) {
	if root == "" {
		return nil, fmt.Errorf("store root directory is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store root: %w", err)
	}
	return &Store{root: root}, nil
}

func (s *Store) projectDir(projectID string) (string, error) {
	if projectID == "" {
		return "", fmt.Errorf("project id is empty")
	}
	if projectID != filepath.Base(projectID) || projectID == "." || projectID == ".." {
		return "", fmt.Errorf("project id %q is not a valid directory name", projectID)
	}
	return filepath.Join(s.root, projectID), nil
}

// Save writes the graph to the project's snapshot file atomically.
func (s *Store) Save(ctx context.Context, projectID string, g *common.Graph) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if g == nil {
		return fmt.Errorf("cannot save a nil graph")
	}
	dir, err := s.projectDir(projectID)
	if err != nil {
		return err
	}

	snap := &snapshot{
		Version:   snapshotVersion,
		ProjectID: projectID,
		SavedAt:   time.Now().UTC(),
		Nodes:     g.Nodes,
		Edges:     g.Edges,
	}
	if err := writeSnapshot(filepath.Join(dir, snapshotFile), snap); err != nil {
		return fmt.Errorf("failed to save snapshot for %q: %w", projectID, err)
	}

	logger.Debug("[Store] Snapshot written", "project", projectID, "nodes", len(g.Nodes), "edges", len(g.Edges))
	return nil
}

// Load reads the project's snapshot into a validated graph. A project
// without a snapshot yields a fresh empty graph; a snapshot that fails to
// parse or validate yields ErrSnapshotCorrupt.
func (s *Store) Load(ctx context.Context, projectID string) (*common.Graph, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir, err := s.projectDir(projectID)
	if err != nil {
		return nil, err
	}

	snap, err := readSnapshot(filepath.Join(dir, snapshotFile))
	if errors.Is(err, fs.ErrNotExist) {
		logger.Debug("[Store] No snapshot found, starting empty", "project", projectID)
		return common.NewGraph(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot for %q: %w", projectID, err)
	}

	g, err := common.NewGraphFrom(snap.Nodes, snap.Edges)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot for %q: %w: %v", projectID, ErrSnapshotCorrupt, err)
	}

	logger.Debug("[Store] Snapshot loaded", "project", projectID, "nodes", len(g.Nodes), "edges", len(g.Edges))
	return g, nil
}

// SwitchActive makes the given project's graph the active one. The currently
// active graph is persisted to its own snapshot first, even if unchanged, so
// a switch never loses state. If loading the target fails the active graph
// stays in place.
func (s *Store) SwitchActive(ctx context.Context, projectID string) error {
	s.mu.RLock()
	currentID, current := s.activeProject, s.active
	s.mu.RUnlock()

	if current != nil {
		if err := s.Save(ctx, currentID, current); err != nil {
			return fmt.Errorf("failed to persist active graph before switch: %w", err)
		}
	}

	g, err := s.Load(ctx, projectID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.active = g
	s.activeProject = projectID
	s.mu.Unlock()

	logger.Info("[Store] Active graph switched", "project", projectID, "nodes", len(g.Nodes), "edges", len(g.Edges))
	return nil
}

// Install persists a freshly built graph and makes it active when its
// project is the active one, or when nothing is active yet. A build for a
// background project only updates that project's snapshot.
func (s *Store) Install(ctx context.Context, projectID string, g *common.Graph) error {
	if err := s.Save(ctx, projectID, g); err != nil {
		return err
	}

	s.mu.Lock()
	activated := s.activeProject == "" || s.activeProject == projectID
	if activated {
		s.active = g
		s.activeProject = projectID
	}
	s.mu.Unlock()

	if activated {
		logger.Info("[Store] Built graph installed as active", "project", projectID, "nodes", len(g.Nodes), "edges", len(g.Edges))
	} else {
		logger.Debug("[Store] Built graph persisted, another project is active", "project", projectID)
	}
	return nil
}

// Active returns the active graph, or nil when no project has been
// activated yet.
func (s *Store) Active() *common.Graph {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// ActiveProject returns the id of the active project, or the empty string.
func (s *Store) ActiveProject() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeProject
}
