package common

import (
	"fmt"
	"sort"
)

// Graph is the mutable node/edge container, one per project. It is not safe
// for concurrent use: during a build all mutation funnels through a single
// coordinator goroutine, and readers get a finished graph from the store
// behind a pointer swap.
//
// Insertion order of Nodes and Edges is meaningful: it is the deterministic
// tie-breaker for focus selection, traversal, and component ordering, and it
// survives merges and prunes (removals keep relative order).
type Graph struct {
	Nodes []*Node `json:"nodes"`
	Edges []*Edge `json:"edges"`

	nodeIndex  map[string]int // LabelKey of node id -> position in Nodes
	aliasIndex map[string]int // LabelKey of alias -> position in Nodes
	edgeIndex  map[edgeKey]int
}

type edgeKey struct {
	source   string
	relation string
	target   string
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{
		Nodes:      make([]*Node, 0),
		Edges:      make([]*Edge, 0),
		nodeIndex:  make(map[string]int),
		aliasIndex: make(map[string]int),
		edgeIndex:  make(map[edgeKey]int),
	}
}

// NewGraphFrom assembles a graph from deserialized node and edge lists,
// taking ownership of both slices. The lists are validated first; a graph is
// only returned when they describe a consistent state.
func NewGraphFrom(nodes []*Node, edges []*Edge) (*Graph, error) {
	g := &Graph{Nodes: nodes, Edges: edges}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	g.reindexNodes()
	g.reindexEdges()
	return g, nil
}

// Validate checks the structural invariants: unique node identities, edge
// endpoints that exist, no self-loops, and no duplicate (source, relation,
// target) triples.
func (g *Graph) Validate() error {
	ids := make(map[string]string, len(g.Nodes))
	keys := make(map[string]string, len(g.Nodes))
	for _, node := range g.Nodes {
		if node.ID == "" {
			return fmt.Errorf("node with empty id")
		}
		if other, ok := ids[node.ID]; ok {
			return fmt.Errorf("duplicate node id %q", other)
		}
		ids[node.ID] = node.ID
		key := LabelKey(node.ID)
		if other, ok := keys[key]; ok {
			return fmt.Errorf("nodes %q and %q share the same identity", other, node.ID)
		}
		keys[key] = node.ID
	}

	triples := make(map[edgeKey]struct{}, len(g.Edges))
	for _, edge := range g.Edges {
		if _, ok := ids[edge.Source]; !ok {
			return fmt.Errorf("edge %q -> %q references unknown source", edge.Source, edge.Target)
		}
		if _, ok := ids[edge.Target]; !ok {
			return fmt.Errorf("edge %q -> %q references unknown target", edge.Source, edge.Target)
		}
		if edge.Source == edge.Target {
			return fmt.Errorf("self-loop on node %q", edge.Source)
		}
		key := edgeKey{edge.Source, edge.Relation, edge.Target}
		if _, ok := triples[key]; ok {
			return fmt.Errorf("duplicate edge %q -[%s]-> %q", edge.Source, edge.Relation, edge.Target)
		}
		triples[key] = struct{}{}
	}
	return nil
}

// NodeByLabel resolves a label to its node, matching the canonical id first
// and falling back to aliases of merged-away surface forms.
func (g *Graph) NodeByLabel(label string) (*Node, bool) {
	key := LabelKey(label)
	if key == "" {
		return nil, false
	}
	if i, ok := g.nodeIndex[key]; ok {
		return g.Nodes[i], true
	}
	if i, ok := g.aliasIndex[key]; ok {
		return g.Nodes[i], true
	}
	return nil, false
}

// CommitTriple records one extracted fact against the graph. Nodes are
// attached by label match or created with the given layer origin; every
// touched node gains one mention. Committing an existing (source, relation,
// target) triple accumulates edge weight. Self-references are dropped at
// commit time (the node still gains its mention), as are triples with an
// empty label or relation. Reports whether an edge was recorded.
func (g *Graph) CommitTriple(t Triple, layer LayerOrigin, spanID, context string) bool {
	source := NormalizeLabel(t.Source)
	relation := NormalizeLabel(t.Relation)
	target := NormalizeLabel(t.Target)
	if source == "" || relation == "" || target == "" {
		return false
	}
	if LabelKey(source) == LabelKey(target) {
		g.upsertNode(source, layer)
		return false
	}

	src := g.upsertNode(source, layer)
	tgt := g.upsertNode(target, layer)

	weight := t.Weight
	if weight <= 0 {
		weight = 1
	}

	key := edgeKey{src.ID, relation, tgt.ID}
	if i, ok := g.edgeIndex[key]; ok {
		edge := g.Edges[i]
		edge.Weight += weight
		if edge.Provenance == "" {
			edge.Provenance = spanID
		}
		if edge.Context == "" {
			edge.Context = context
		}
		return true
	}

	g.Edges = append(g.Edges, &Edge{
		Source:     src.ID,
		Target:     tgt.ID,
		Relation:   relation,
		Weight:     weight,
		Provenance: spanID,
		Context:    context,
	})
	g.edgeIndex[key] = len(g.Edges) - 1
	return true
}

func (g *Graph) upsertNode(label string, layer LayerOrigin) *Node {
	key := LabelKey(label)
	if i, ok := g.nodeIndex[key]; ok {
		node := g.Nodes[i]
		node.Weight++
		return node
	}
	if i, ok := g.aliasIndex[key]; ok {
		node := g.Nodes[i]
		node.Weight++
		return node
	}

	node := &Node{
		ID:          NormalizeLabel(label),
		LayerOrigin: layer,
		Weight:      1,
	}
	g.Nodes = append(g.Nodes, node)
	g.nodeIndex[key] = len(g.Nodes) - 1
	return node
}

// ApplyMerge folds the absorbed nodes of a directive into the kept node:
// edges are redirected (re-deduplicated, self-loops dropped), weights summed,
// alias sets unioned, and the absorbed nodes removed. The directive is
// validated against the current graph first; a directive referencing unknown
// nodes fails without touching anything.
func (g *Graph) ApplyMerge(d MergeDirective) error {
	keep, ok := g.NodeByLabel(d.Keep)
	if !ok {
		return fmt.Errorf("merge target %q not in graph", d.Keep)
	}

	absorbed := make([]*Node, 0, len(d.Absorbed))
	seen := map[string]struct{}{keep.ID: {}}
	for _, label := range d.Absorbed {
		node, found := g.NodeByLabel(label)
		if !found {
			return fmt.Errorf("absorbed node %q not in graph", label)
		}
		if _, dup := seen[node.ID]; dup {
			continue
		}
		seen[node.ID] = struct{}{}
		absorbed = append(absorbed, node)
	}
	if len(absorbed) == 0 {
		return fmt.Errorf("merge into %q absorbs no other node", d.Keep)
	}

	redirect := make(map[string]string, len(absorbed))
	for _, node := range absorbed {
		redirect[node.ID] = keep.ID
		keep.Weight += node.Weight
		keep.Aliases = addAlias(keep.Aliases, keep.ID, node.ID)
		for _, alias := range node.Aliases {
			keep.Aliases = addAlias(keep.Aliases, keep.ID, alias)
		}
		mergeMetadata(keep, node)
	}
	sort.Strings(keep.Aliases)

	rebuilt := make([]*Edge, 0, len(g.Edges))
	index := make(map[edgeKey]int, len(g.Edges))
	for _, edge := range g.Edges {
		source, target := edge.Source, edge.Target
		if to, moved := redirect[source]; moved {
			source = to
		}
		if to, moved := redirect[target]; moved {
			target = to
		}
		if source == target {
			continue
		}
		key := edgeKey{source, edge.Relation, target}
		if i, dup := index[key]; dup {
			kept := rebuilt[i]
			kept.Weight += edge.Weight
			if kept.Provenance == "" {
				kept.Provenance = edge.Provenance
			}
			if kept.Context == "" {
				kept.Context = edge.Context
			}
			continue
		}
		edge.Source, edge.Target = source, target
		index[key] = len(rebuilt)
		rebuilt = append(rebuilt, edge)
	}
	g.Edges = rebuilt
	g.edgeIndex = index

	filtered := make([]*Node, 0, len(g.Nodes))
	for _, node := range g.Nodes {
		if _, gone := redirect[node.ID]; gone {
			continue
		}
		filtered = append(filtered, node)
	}
	g.Nodes = filtered
	g.reindexNodes()
	return nil
}

func addAlias(aliases []string, selfID, candidate string) []string {
	normalized := NormalizeLabel(candidate)
	if normalized == "" || LabelKey(normalized) == LabelKey(selfID) {
		return aliases
	}
	for _, existing := range aliases {
		if LabelKey(existing) == LabelKey(normalized) {
			return aliases
		}
	}
	return append(aliases, normalized)
}

func mergeMetadata(keep, absorbed *Node) {
	if len(absorbed.Metadata) == 0 {
		return
	}
	if keep.Metadata == nil {
		keep.Metadata = make(map[string]string, len(absorbed.Metadata))
	}
	keys := make([]string, 0, len(absorbed.Metadata))
	for k := range absorbed.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if _, exists := keep.Metadata[k]; !exists {
			keep.Metadata[k] = absorbed.Metadata[k]
		}
	}
}

// RemoveEdges deletes the edges a prune directive matches and reports how
// many were removed. Directives referencing labels not in the graph match
// nothing.
func (g *Graph) RemoveEdges(d PruneDirective) int {
	src, ok := g.NodeByLabel(d.Source)
	if !ok {
		return 0
	}
	tgt, ok := g.NodeByLabel(d.Target)
	if !ok {
		return 0
	}
	relation := NormalizeLabel(d.Relation)

	removed := 0
	filtered := make([]*Edge, 0, len(g.Edges))
	for _, edge := range g.Edges {
		if edge.Source == src.ID && edge.Target == tgt.ID && (relation == "" || edge.Relation == relation) {
			removed++
			continue
		}
		filtered = append(filtered, edge)
	}
	if removed > 0 {
		g.Edges = filtered
		g.reindexEdges()
	}
	return removed
}

// RemoveNode deletes a node and any edges still touching it.
func (g *Graph) RemoveNode(label string) bool {
	node, ok := g.NodeByLabel(label)
	if !ok {
		return false
	}

	filteredEdges := make([]*Edge, 0, len(g.Edges))
	for _, edge := range g.Edges {
		if edge.Source == node.ID || edge.Target == node.ID {
			continue
		}
		filteredEdges = append(filteredEdges, edge)
	}
	if len(filteredEdges) != len(g.Edges) {
		g.Edges = filteredEdges
		g.reindexEdges()
	}

	filteredNodes := make([]*Node, 0, len(g.Nodes))
	for _, other := range g.Nodes {
		if other.ID == node.ID {
			continue
		}
		filteredNodes = append(filteredNodes, other)
	}
	g.Nodes = filteredNodes
	g.reindexNodes()
	return true
}

// DegreeMap returns the undirected degree of every node that has at least
// one edge. Nodes without edges are simply absent.
func (g *Graph) DegreeMap() map[string]int {
	degrees := make(map[string]int, len(g.Nodes))
	for _, edge := range g.Edges {
		degrees[edge.Source]++
		degrees[edge.Target]++
	}
	return degrees
}

// ProvenanceOf collects the span ids recorded on a node's incident edges, in
// edge insertion order and deduplicated. Edges without span provenance
// contribute nothing.
func (g *Graph) ProvenanceOf(label string) []string {
	node, ok := g.NodeByLabel(label)
	if !ok {
		return nil
	}
	seen := make(map[string]struct{})
	spans := make([]string, 0)
	for _, edge := range g.Edges {
		if edge.Source != node.ID && edge.Target != node.ID {
			continue
		}
		if edge.Provenance == "" {
			continue
		}
		if _, dup := seen[edge.Provenance]; dup {
			continue
		}
		seen[edge.Provenance] = struct{}{}
		spans = append(spans, edge.Provenance)
	}
	return spans
}

// Components returns the connected components of the undirected view of the
// graph, largest first (ties keep insertion order). Each component lists its
// node ids in breadth-first visit order; isolated nodes form singleton
// components.
func (g *Graph) Components() [][]string {
	position := make(map[string]int, len(g.Nodes))
	for i, node := range g.Nodes {
		position[node.ID] = i
	}

	neighbors := make(map[string][]string, len(g.Nodes))
	for _, edge := range g.Edges {
		neighbors[edge.Source] = append(neighbors[edge.Source], edge.Target)
		neighbors[edge.Target] = append(neighbors[edge.Target], edge.Source)
	}
	for _, adjacent := range neighbors {
		sort.Slice(adjacent, func(i, j int) bool {
			return position[adjacent[i]] < position[adjacent[j]]
		})
	}

	visited := make(map[string]struct{}, len(g.Nodes))
	components := make([][]string, 0)
	for _, node := range g.Nodes {
		if _, done := visited[node.ID]; done {
			continue
		}
		component := make([]string, 0)
		queue := []string{node.ID}
		visited[node.ID] = struct{}{}
		for len(queue) > 0 {
			current := queue[0]
			queue = queue[1:]
			component = append(component, current)
			for _, next := range neighbors[current] {
				if _, done := visited[next]; done {
					continue
				}
				visited[next] = struct{}{}
				queue = append(queue, next)
			}
		}
		components = append(components, component)
	}

	sort.SliceStable(components, func(i, j int) bool {
		return len(components[i]) > len(components[j])
	})
	return components
}

func (g *Graph) reindexNodes() {
	g.nodeIndex = make(map[string]int, len(g.Nodes))
	g.aliasIndex = make(map[string]int, len(g.Nodes))
	for i, node := range g.Nodes {
		g.nodeIndex[LabelKey(node.ID)] = i
		for _, alias := range node.Aliases {
			key := LabelKey(alias)
			if _, taken := g.nodeIndex[key]; taken {
				continue
			}
			if _, taken := g.aliasIndex[key]; taken {
				continue
			}
			g.aliasIndex[key] = i
		}
	}
}

func (g *Graph) reindexEdges() {
	g.edgeIndex = make(map[edgeKey]int, len(g.Edges))
	for i, edge := range g.Edges {
		g.edgeIndex[edgeKey{edge.Source, edge.Relation, edge.Target}] = i
	}
}
