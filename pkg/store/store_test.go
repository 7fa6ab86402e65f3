package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/stratagraph/strata/pkg/common"
	"github.com/stratagraph/strata/pkg/query"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return s
}

func buildTestGraph(t *testing.T) *common.Graph {
	t.Helper()
	g := common.NewGraph()
	g.CommitTriple(common.Triple{Source: "Alpha", Relation: "links", Target: "Beta"}, common.LayerBackbone, "", "")
	g.CommitTriple(common.Triple{Source: "Alpha", Relation: "links", Target: "Beta"}, common.LayerIntermediate, "large-1", "first facts")
	g.CommitTriple(common.Triple{Source: "Al", Relation: "feeds", Target: "Gamma"}, common.LayerIntermediate, "large-2", "second facts")
	if err := g.ApplyMerge(common.MergeDirective{Keep: "Alpha", Absorbed: []string{"Al"}}); err != nil {
		t.Fatalf("ApplyMerge() error = %v", err)
	}
	node, ok := g.NodeByLabel("Alpha")
	if !ok {
		t.Fatalf("node Alpha missing")
	}
	node.Metadata = map[string]string{"kind": "concept"}
	return g
}

func writeRawSnapshot(t *testing.T, s *Store, projectID, content string) {
	t.Helper()
	dir := filepath.Join(s.root, projectID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, snapshotFile), []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := newTestStore(t)
	g := buildTestGraph(t)
	ctx := context.Background()

	if err := s.Save(ctx, "p1", g); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := s.Load(ctx, "p1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if !reflect.DeepEqual(loaded.Nodes, g.Nodes) {
		t.Errorf("loaded nodes = %+v, want %+v", loaded.Nodes, g.Nodes)
	}
	if !reflect.DeepEqual(loaded.Edges, g.Edges) {
		t.Errorf("loaded edges = %+v, want %+v", loaded.Edges, g.Edges)
	}

	// The label and alias indexes must be rebuilt on load.
	byAlias, ok := loaded.NodeByLabel("Al")
	if !ok || byAlias.ID != "Alpha" {
		t.Errorf("NodeByLabel(alias) after load = %v, %v; want the canonical node", byAlias, ok)
	}
}

func TestLoadMissingProjectStartsEmpty(t *testing.T) {
	s := newTestStore(t)

	g, err := s.Load(context.Background(), "never-built")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(g.Nodes) != 0 || len(g.Edges) != 0 {
		t.Errorf("Load() of missing project = %d nodes, %d edges; want empty", len(g.Nodes), len(g.Edges))
	}
}

func TestLoadCorruptSnapshot(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "unparseable json",
			content: "{{{ not json",
		},
		{
			name:    "unsupported version",
			content: `{"version": 99, "project_id": "p1", "nodes": [], "edges": []}`,
		},
		{
			name: "dangling edge endpoint",
			content: `{"version": 1, "project_id": "p1",
				"nodes": [{"id": "A", "layer_origin": "backbone", "weight": 1}],
				"edges": [{"source": "A", "target": "Missing", "relation": "links", "weight": 1}]}`,
		},
		{
			name: "duplicate node identity",
			content: `{"version": 1, "project_id": "p1",
				"nodes": [{"id": "A", "layer_origin": "backbone", "weight": 1},
					{"id": "a", "layer_origin": "intermediate", "weight": 1}],
				"edges": []}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(t)
			writeRawSnapshot(t, s, "p1", tt.content)

			if _, err := s.Load(context.Background(), "p1"); !errors.Is(err, ErrSnapshotCorrupt) {
				t.Errorf("Load() error = %v, want ErrSnapshotCorrupt", err)
			}
		})
	}
}

func TestSaveLeavesOnlySnapshotFile(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Save(ctx, "p1", buildTestGraph(t)); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := s.Save(ctx, "p1", buildTestGraph(t)); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	entries, err := os.ReadDir(filepath.Join(s.root, "p1"))
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != snapshotFile {
		names := make([]string, len(entries))
		for i, e := range entries {
			names[i] = e.Name()
		}
		t.Errorf("project dir contains %v, want only %s", names, snapshotFile)
	}
}

func TestProjectIDValidation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	g := common.NewGraph()

	for _, id := range []string{"", ".", "..", "../escape", "nested/project"} {
		t.Run("id "+id, func(t *testing.T) {
			if err := s.Save(ctx, id, g); err == nil {
				t.Errorf("Save(%q) error = nil, want error", id)
			}
			if _, err := s.Load(ctx, id); err == nil {
				t.Errorf("Load(%q) error = nil, want error", id)
			}
		})
	}

	if err := s.Save(ctx, "p1", nil); err == nil {
		t.Errorf("Save(nil graph) error = nil, want error")
	}
}

func TestInstallActivatesOwnProjectOnly(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := buildTestGraph(t)
	if err := s.Install(ctx, "p1", first); err != nil {
		t.Fatalf("Install() error = %v", err)
	}
	if s.Active() != first || s.ActiveProject() != "p1" {
		t.Fatalf("first install did not activate: active project = %q", s.ActiveProject())
	}

	// A build for a background project persists but does not steal the
	// active slot.
	second := common.NewGraph()
	second.CommitTriple(common.Triple{Source: "X", Relation: "links", Target: "Y"}, common.LayerBackbone, "", "")
	if err := s.Install(ctx, "p2", second); err != nil {
		t.Fatalf("Install() error = %v", err)
	}
	if s.Active() != first || s.ActiveProject() != "p1" {
		t.Errorf("background install changed active project to %q", s.ActiveProject())
	}

	loaded, err := s.Load(ctx, "p2")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(loaded.Nodes) != 2 {
		t.Errorf("background project snapshot has %d nodes, want 2", len(loaded.Nodes))
	}

	// A rebuild of the active project replaces the active graph.
	rebuilt := common.NewGraph()
	if err := s.Install(ctx, "p1", rebuilt); err != nil {
		t.Fatalf("Install() error = %v", err)
	}
	if s.Active() != rebuilt {
		t.Errorf("rebuild of active project did not replace the active graph")
	}
}

func TestSwitchActivePersistsCurrentFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	g := buildTestGraph(t)
	if err := s.Install(ctx, "p1", g); err != nil {
		t.Fatalf("Install() error = %v", err)
	}

	// Mutate the active graph after install; the switch must write the
	// mutated state back before leaving the project.
	g.CommitTriple(common.Triple{Source: "Late", Relation: "joins", Target: "Alpha"}, common.LayerDrilldown, "small-9", "")

	if err := s.SwitchActive(ctx, "p2"); err != nil {
		t.Fatalf("SwitchActive() error = %v", err)
	}
	if s.ActiveProject() != "p2" {
		t.Errorf("active project = %q, want p2", s.ActiveProject())
	}
	if active := s.Active(); active == nil || len(active.Nodes) != 0 {
		t.Errorf("switch to never-built project should activate an empty graph")
	}

	restored, err := s.Load(ctx, "p1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if _, ok := restored.NodeByLabel("Late"); !ok {
		t.Errorf("pre-switch mutation was not persisted")
	}
}

func TestSwitchActiveKeepsGraphOnCorruptTarget(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	g := buildTestGraph(t)
	if err := s.Install(ctx, "p1", g); err != nil {
		t.Fatalf("Install() error = %v", err)
	}
	writeRawSnapshot(t, s, "p2", "{{{ not json")

	err := s.SwitchActive(ctx, "p2")
	if !errors.Is(err, ErrSnapshotCorrupt) {
		t.Fatalf("SwitchActive() error = %v, want ErrSnapshotCorrupt", err)
	}
	if s.Active() != g || s.ActiveProject() != "p1" {
		t.Errorf("failed switch changed active state: project = %q", s.ActiveProject())
	}
}

func TestStoreCanceledContext(t *testing.T) {
	s := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := s.Save(ctx, "p1", common.NewGraph()); !errors.Is(err, context.Canceled) {
		t.Errorf("Save() error = %v, want context.Canceled", err)
	}
	if _, err := s.Load(ctx, "p1"); !errors.Is(err, context.Canceled) {
		t.Errorf("Load() error = %v, want context.Canceled", err)
	}
}

func TestSwitchActiveConcurrentSearch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	build := func(marker string) *common.Graph {
		g := common.NewGraph()
		g.CommitTriple(common.Triple{Source: marker, Relation: "anchors", Target: "Shared Hub"}, common.LayerBackbone, "", "")
		g.CommitTriple(common.Triple{Source: "Shared Hub", Relation: "links", Target: marker + " Detail"}, common.LayerIntermediate, "large-1", "")
		return g
	}

	if err := s.Save(ctx, "p1", build("Project One")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := s.Save(ctx, "p2", build("Project Two")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := s.SwitchActive(ctx, "p1"); err != nil {
		t.Fatalf("SwitchActive() error = %v", err)
	}

	retriever := query.NewRetriever(query.NewRetrieverParams{})
	stop := make(chan struct{})
	var wg sync.WaitGroup

	// Readers must always see one project's graph in full, never a blend of
	// two, no matter how the switches interleave.
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				sub := retriever.Search(s.Active(), "shared hub")
				sawOne, sawTwo := false, false
				for _, n := range sub.Nodes {
					if strings.HasPrefix(n.ID, "Project One") {
						sawOne = true
					}
					if strings.HasPrefix(n.ID, "Project Two") {
						sawTwo = true
					}
				}
				if sawOne && sawTwo {
					t.Error("Search() returned nodes from both projects in one result")
					return
				}
			}
		}()
	}

	for i := range 25 {
		target := "p2"
		if i%2 == 1 {
			target = "p1"
		}
		if err := s.SwitchActive(ctx, target); err != nil {
			t.Errorf("SwitchActive(%q) error = %v", target, err)
			break
		}
	}
	close(stop)
	wg.Wait()
}
