package common

import (
	"reflect"
	"testing"
)

func TestCommitTriple_CreatesNodesAndEdge(t *testing.T) {
	g := NewGraph()

	recorded := g.CommitTriple(Triple{Source: "Compiler", Relation: "emits", Target: "Bytecode"}, LayerBackbone, "large-1", "compilers emit bytecode")
	if !recorded {
		t.Fatal("CommitTriple() = false, want edge recorded")
	}

	if len(g.Nodes) != 2 {
		t.Fatalf("len(Nodes) = %d, want 2", len(g.Nodes))
	}
	if len(g.Edges) != 1 {
		t.Fatalf("len(Edges) = %d, want 1", len(g.Edges))
	}

	src, ok := g.NodeByLabel("compiler")
	if !ok {
		t.Fatal("NodeByLabel() should match case-insensitively")
	}
	if src.Weight != 1 || src.LayerOrigin != LayerBackbone {
		t.Errorf("source node = %+v, want weight 1 layer backbone", src)
	}

	edge := g.Edges[0]
	if edge.Source != "Compiler" || edge.Target != "Bytecode" || edge.Relation != "emits" {
		t.Errorf("edge = %+v, want Compiler -[emits]-> Bytecode", edge)
	}
	if edge.Provenance != "large-1" || edge.Context != "compilers emit bytecode" {
		t.Errorf("edge provenance/context = %q/%q, want large-1 with summary", edge.Provenance, edge.Context)
	}
}

func TestCommitTriple_DeduplicatesByWeight(t *testing.T) {
	g := NewGraph()
	g.CommitTriple(Triple{Source: "A", Relation: "uses", Target: "B"}, LayerBackbone, "", "")
	g.CommitTriple(Triple{Source: "a", Relation: "uses", Target: "b", Weight: 2}, LayerIntermediate, "large-1", "seen again")

	if len(g.Edges) != 1 {
		t.Fatalf("len(Edges) = %d, want 1 (deduplicated)", len(g.Edges))
	}
	edge := g.Edges[0]
	if edge.Weight != 3 {
		t.Errorf("edge.Weight = %v, want 3", edge.Weight)
	}
	if edge.Provenance != "large-1" || edge.Context != "seen again" {
		t.Errorf("empty provenance/context should be filled on re-commit, got %q/%q", edge.Provenance, edge.Context)
	}

	node, _ := g.NodeByLabel("A")
	if node.Weight != 2 {
		t.Errorf("node weight = %d, want 2 mentions", node.Weight)
	}
	if node.LayerOrigin != LayerBackbone {
		t.Errorf("layer origin = %s, want first-seen backbone", node.LayerOrigin)
	}
}

func TestCommitTriple_DropsSelfLoopsAndEmptyParts(t *testing.T) {
	g := NewGraph()

	if g.CommitTriple(Triple{Source: "Cache", Relation: "contains", Target: "cache"}, LayerIntermediate, "", "") {
		t.Error("self-loop should not record an edge")
	}
	if len(g.Edges) != 0 {
		t.Fatalf("len(Edges) = %d, want 0", len(g.Edges))
	}
	node, ok := g.NodeByLabel("Cache")
	if !ok || node.Weight != 1 {
		t.Error("self-loop should still count one mention of the node")
	}

	if g.CommitTriple(Triple{Source: "", Relation: "uses", Target: "B"}, LayerIntermediate, "", "") {
		t.Error("empty source should not record")
	}
	if g.CommitTriple(Triple{Source: "A", Relation: "  ", Target: "B"}, LayerIntermediate, "", "") {
		t.Error("empty relation should not record")
	}
	if len(g.Nodes) != 1 {
		t.Errorf("len(Nodes) = %d, want 1 (invalid triples must not create nodes)", len(g.Nodes))
	}
}

func TestApplyMerge_PreservesWeightMass(t *testing.T) {
	g := NewGraph()
	for i := 0; i < 5; i++ {
		g.CommitTriple(Triple{Source: "LLM", Relation: "based on", Target: "Transformer"}, LayerBackbone, "", "")
	}
	g.CommitTriple(Triple{Source: "Large Language Model", Relation: "based on", Target: "Transformer"}, LayerIntermediate, "", "")

	llm, _ := g.NodeByLabel("LLM")
	long, _ := g.NodeByLabel("Large Language Model")
	transformer, _ := g.NodeByLabel("Transformer")
	wantWeight := llm.Weight + long.Weight
	transformerBefore := transformer.Weight

	err := g.ApplyMerge(MergeDirective{Keep: "LLM", Absorbed: []string{"Large Language Model"}})
	if err != nil {
		t.Fatalf("ApplyMerge() error = %v", err)
	}

	resolved, ok := g.NodeByLabel("Large Language Model")
	if !ok || resolved.ID != "LLM" {
		t.Error("absorbed label should resolve to the canonical node via alias")
	}
	if len(g.Nodes) != 2 {
		t.Fatalf("len(Nodes) = %d, want 2 after merge", len(g.Nodes))
	}

	llm, _ = g.NodeByLabel("LLM")
	if llm.Weight != wantWeight {
		t.Errorf("canonical weight = %d, want %d (weight mass preserved)", llm.Weight, wantWeight)
	}
	if !llm.HasAlias("Large Language Model") {
		t.Errorf("aliases = %v, want to include absorbed id", llm.Aliases)
	}

	if len(g.Edges) != 1 {
		t.Fatalf("len(Edges) = %d, want 1 (parallel edges folded)", len(g.Edges))
	}
	if g.Edges[0].Weight != 6 {
		t.Errorf("edge weight = %v, want 6 (5 + 1 summed)", g.Edges[0].Weight)
	}

	transformer, _ = g.NodeByLabel("Transformer")
	if transformer.Weight != transformerBefore {
		t.Errorf("bystander weight changed: %d -> %d", transformerBefore, transformer.Weight)
	}
}

func TestApplyMerge_RedirectsIncomingEdges(t *testing.T) {
	g := NewGraph()
	g.CommitTriple(Triple{Source: "Scheduler", Relation: "feeds", Target: "Worker Pool"}, LayerBackbone, "", "")
	g.CommitTriple(Triple{Source: "Pool of Workers", Relation: "runs", Target: "Task"}, LayerIntermediate, "", "")

	err := g.ApplyMerge(MergeDirective{Keep: "Worker Pool", Absorbed: []string{"Pool of Workers"}})
	if err != nil {
		t.Fatalf("ApplyMerge() error = %v", err)
	}

	var sources, targets []string
	for _, e := range g.Edges {
		sources = append(sources, e.Source)
		targets = append(targets, e.Target)
	}
	wantSources := []string{"Scheduler", "Worker Pool"}
	wantTargets := []string{"Worker Pool", "Task"}
	if !reflect.DeepEqual(sources, wantSources) || !reflect.DeepEqual(targets, wantTargets) {
		t.Errorf("edges after merge = %v -> %v, want %v -> %v", sources, targets, wantSources, wantTargets)
	}

	// later commits against the absorbed label attach to the canonical node
	g.CommitTriple(Triple{Source: "Pool of Workers", Relation: "scales with", Target: "Load"}, LayerDrilldown, "", "")
	node, _ := g.NodeByLabel("pool of workers")
	if node.ID != "Worker Pool" {
		t.Errorf("alias commit resolved to %q, want Worker Pool", node.ID)
	}
}

func TestApplyMerge_UnknownNodesFail(t *testing.T) {
	g := NewGraph()
	g.CommitTriple(Triple{Source: "A", Relation: "uses", Target: "B"}, LayerBackbone, "", "")

	if err := g.ApplyMerge(MergeDirective{Keep: "Missing", Absorbed: []string{"A"}}); err == nil {
		t.Error("ApplyMerge() with unknown keep should fail")
	}
	if err := g.ApplyMerge(MergeDirective{Keep: "A", Absorbed: []string{"Missing"}}); err == nil {
		t.Error("ApplyMerge() with unknown absorbed should fail")
	}
	if err := g.ApplyMerge(MergeDirective{Keep: "A", Absorbed: []string{"a"}}); err == nil {
		t.Error("ApplyMerge() absorbing only itself should fail")
	}
	if len(g.Nodes) != 2 || len(g.Edges) != 1 {
		t.Error("failed merges must not touch the graph")
	}
}

func TestRemoveEdges(t *testing.T) {
	build := func() *Graph {
		g := NewGraph()
		g.CommitTriple(Triple{Source: "A", Relation: "uses", Target: "B"}, LayerBackbone, "", "")
		g.CommitTriple(Triple{Source: "A", Relation: "mentions", Target: "B"}, LayerBackbone, "", "")
		g.CommitTriple(Triple{Source: "B", Relation: "uses", Target: "C"}, LayerBackbone, "", "")
		return g
	}

	tests := []struct {
		name        string
		directive   PruneDirective
		wantRemoved int
		wantEdges   int
	}{
		{
			name:        "exact relation",
			directive:   PruneDirective{Source: "A", Target: "B", Relation: "uses"},
			wantRemoved: 1,
			wantEdges:   2,
		},
		{
			name:        "all edges between pair",
			directive:   PruneDirective{Source: "A", Target: "B"},
			wantRemoved: 2,
			wantEdges:   1,
		},
		{
			name:        "unknown node matches nothing",
			directive:   PruneDirective{Source: "A", Target: "Z"},
			wantRemoved: 0,
			wantEdges:   3,
		},
		{
			name:        "direction matters",
			directive:   PruneDirective{Source: "B", Target: "A"},
			wantRemoved: 0,
			wantEdges:   3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := build()
			removed := g.RemoveEdges(tt.directive)
			if removed != tt.wantRemoved {
				t.Errorf("RemoveEdges() = %d, want %d", removed, tt.wantRemoved)
			}
			if len(g.Edges) != tt.wantEdges {
				t.Errorf("len(Edges) = %d, want %d", len(g.Edges), tt.wantEdges)
			}
		})
	}
}

func TestDegreeMapAndProvenance(t *testing.T) {
	g := NewGraph()
	g.CommitTriple(Triple{Source: "A", Relation: "uses", Target: "B"}, LayerBackbone, "", "")
	g.CommitTriple(Triple{Source: "A", Relation: "reads", Target: "C"}, LayerIntermediate, "large-1", "")
	g.CommitTriple(Triple{Source: "C", Relation: "writes", Target: "B"}, LayerIntermediate, "large-2", "")
	g.CommitTriple(Triple{Source: "A", Relation: "extends", Target: "C"}, LayerIntermediate, "large-1", "")

	degrees := g.DegreeMap()
	if degrees["A"] != 3 || degrees["B"] != 2 || degrees["C"] != 3 {
		t.Errorf("DegreeMap() = %v, want A:3 B:2 C:3", degrees)
	}

	spans := g.ProvenanceOf("A")
	want := []string{"large-1"}
	if !reflect.DeepEqual(spans, want) {
		t.Errorf("ProvenanceOf(A) = %v, want %v (deduplicated, empty skipped)", spans, want)
	}

	spans = g.ProvenanceOf("C")
	want = []string{"large-1", "large-2"}
	if !reflect.DeepEqual(spans, want) {
		t.Errorf("ProvenanceOf(C) = %v, want %v in insertion order", spans, want)
	}
}

func TestComponents(t *testing.T) {
	g := NewGraph()
	g.CommitTriple(Triple{Source: "A", Relation: "uses", Target: "B"}, LayerBackbone, "", "")
	g.CommitTriple(Triple{Source: "B", Relation: "uses", Target: "C"}, LayerBackbone, "", "")
	g.CommitTriple(Triple{Source: "X", Relation: "links", Target: "Y"}, LayerIntermediate, "", "")
	g.CommitTriple(Triple{Source: "Lone", Relation: "loops", Target: "lone"}, LayerDrilldown, "", "") // isolate

	components := g.Components()
	if len(components) != 3 {
		t.Fatalf("len(Components()) = %d, want 3", len(components))
	}
	if !reflect.DeepEqual(components[0], []string{"A", "B", "C"}) {
		t.Errorf("main component = %v, want [A B C]", components[0])
	}
	if !reflect.DeepEqual(components[1], []string{"X", "Y"}) {
		t.Errorf("fragment = %v, want [X Y]", components[1])
	}
	if !reflect.DeepEqual(components[2], []string{"Lone"}) {
		t.Errorf("isolate component = %v, want [Lone]", components[2])
	}
}

func TestNewGraphFrom_Validation(t *testing.T) {
	tests := []struct {
		name    string
		nodes   []*Node
		edges   []*Edge
		wantErr bool
	}{
		{
			name:  "consistent graph",
			nodes: []*Node{{ID: "A", Weight: 1}, {ID: "B", Weight: 1}},
			edges: []*Edge{{Source: "A", Target: "B", Relation: "uses", Weight: 1}},
		},
		{
			name:    "dangling edge",
			nodes:   []*Node{{ID: "A", Weight: 1}},
			edges:   []*Edge{{Source: "A", Target: "B", Relation: "uses", Weight: 1}},
			wantErr: true,
		},
		{
			name:    "duplicate identity",
			nodes:   []*Node{{ID: "LLM", Weight: 1}, {ID: "llm", Weight: 1}},
			wantErr: true,
		},
		{
			name:    "self-loop",
			nodes:   []*Node{{ID: "A", Weight: 1}},
			edges:   []*Edge{{Source: "A", Target: "A", Relation: "loops", Weight: 1}},
			wantErr: true,
		},
		{
			name:  "duplicate triple",
			nodes: []*Node{{ID: "A", Weight: 1}, {ID: "B", Weight: 1}},
			edges: []*Edge{
				{Source: "A", Target: "B", Relation: "uses", Weight: 1},
				{Source: "A", Target: "B", Relation: "uses", Weight: 2},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := NewGraphFrom(tt.nodes, tt.edges)
			if tt.wantErr {
				if err == nil {
					t.Error("NewGraphFrom() error = nil, want validation failure")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewGraphFrom() error = %v", err)
			}
			if _, ok := g.NodeByLabel("a"); !ok {
				t.Error("assembled graph should index nodes")
			}
		})
	}
}

func TestRemoveNode(t *testing.T) {
	g := NewGraph()
	g.CommitTriple(Triple{Source: "A", Relation: "uses", Target: "B"}, LayerBackbone, "", "")
	g.CommitTriple(Triple{Source: "B", Relation: "uses", Target: "C"}, LayerIntermediate, "", "")

	if !g.RemoveNode("B") {
		t.Fatal("RemoveNode() = false, want true")
	}
	if len(g.Nodes) != 2 {
		t.Errorf("len(Nodes) = %d, want 2", len(g.Nodes))
	}
	if len(g.Edges) != 0 {
		t.Errorf("len(Edges) = %d, want 0 (incident edges swept)", len(g.Edges))
	}
	if g.RemoveNode("B") {
		t.Error("RemoveNode() on missing node should report false")
	}
}
