package query

import (
	"maps"
	"slices"
	"sort"
	"strings"
	"unicode"

	"github.com/stratagraph/strata/pkg/common"
)

// Score bonus for a query that contains a node's full label. Overlap scores
// stay in [0, 1], so an exact label mention always outranks partial overlap.
const exactMatchBoost = 1.0

// Search walks the graph around the nodes most similar to the query and
// returns the induced subgraph: every visited node plus every edge whose
// endpoints were both visited. Seed hints, when given, resolve directly by
// label and bypass similarity scoring; hints naming no known node are
// ignored. The result holds copies and keeps no references into the graph.
func (r *Retriever) Search(g *common.Graph, query string, hints ...string) *common.Subgraph {
	empty := &common.Subgraph{Nodes: []*common.Node{}, Edges: []*common.Edge{}}
	if g == nil || len(g.Nodes) == 0 {
		return empty
	}

	seeds := r.seedsFromHints(g, hints)
	if len(seeds) == 0 {
		seeds = r.scoreSeeds(g, query)
	}
	if len(seeds) == 0 {
		return empty
	}

	visited, order := r.walk(g, seeds)

	seedIDs := make([]string, 0, len(seeds))
	for _, s := range seeds {
		if _, ok := visited[s.ID]; !ok {
			continue
		}
		if slices.Contains(seedIDs, s.ID) {
			continue
		}
		seedIDs = append(seedIDs, s.ID)
	}
	RecordSelectedSeeds(r.trace, seedIDs...)

	sub := inducedSubgraph(g, seedIDs, visited, order)

	visitedIDs := make([]string, len(sub.Nodes))
	for i, n := range sub.Nodes {
		visitedIDs[i] = n.ID
	}
	RecordVisitedNodes(r.trace, visitedIDs...)
	spans := make([]string, 0, len(sub.Edges))
	for _, e := range sub.Edges {
		if e.Provenance != "" {
			spans = append(spans, e.Provenance)
		}
	}
	RecordTouchedSpans(r.trace, spans...)

	return sub
}

// seedsFromHints resolves explicit seed labels against the graph, preserving
// hint order and dropping duplicates and unknowns.
func (r *Retriever) seedsFromHints(g *common.Graph, hints []string) []*common.Node {
	if len(hints) == 0 {
		return nil
	}
	seeds := make([]*common.Node, 0, len(hints))
	seen := make(map[string]struct{}, len(hints))
	for _, hint := range hints {
		node, ok := g.NodeByLabel(hint)
		if !ok {
			continue
		}
		if _, dup := seen[node.ID]; dup {
			continue
		}
		seen[node.ID] = struct{}{}
		seeds = append(seeds, node)
	}
	return seeds
}

type seedCandidate struct {
	node  *common.Node
	score float64
}

// scoreSeeds ranks nodes by token overlap between the query and the node's
// label plus aliases, boosted when the query mentions the full label. Ties
// break by node weight, then insertion order. Returns the top MaxSeeds nodes
// with a positive score.
func (r *Retriever) scoreSeeds(g *common.Graph, query string) []*common.Node {
	queryTokens := tokenSet(query)
	if len(queryTokens) == 0 {
		return nil
	}
	queryKey := " " + common.LabelKey(query) + " "

	candidates := make([]seedCandidate, 0)
	considered := make([]string, 0)
	for _, node := range g.Nodes {
		labels := node.ID
		for _, alias := range node.Aliases {
			labels += " " + alias
		}
		score := overlapScore(queryTokens, tokenSet(labels))

		if strings.Contains(queryKey, " "+common.LabelKey(node.ID)+" ") {
			score += exactMatchBoost
		} else {
			for _, alias := range node.Aliases {
				if strings.Contains(queryKey, " "+common.LabelKey(alias)+" ") {
					score += exactMatchBoost
					break
				}
			}
		}

		if score > 0 {
			candidates = append(candidates, seedCandidate{node: node, score: score})
			considered = append(considered, node.ID)
		}
	}
	RecordConsideredSeeds(r.trace, considered...)

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].node.Weight > candidates[j].node.Weight
	})

	limit := min(r.maxSeeds, len(candidates))
	seeds := make([]*common.Node, limit)
	for i := range limit {
		seeds[i] = candidates[i].node
	}
	return seeds
}

type hopCandidate struct {
	edge *common.Edge
	far  *common.Node
}

// walk expands breadth-first from the seeds. Each hop gathers the frontier's
// incident edges to unvisited nodes and follows them in deterministic order:
// edge weight descending, far-node weight descending, then edge insertion
// order. The walk stops at the hop limit, the node budget, or frontier
// exhaustion.
func (r *Retriever) walk(g *common.Graph, seeds []*common.Node) (map[string]struct{}, []*common.Node) {
	visited := make(map[string]struct{}, r.maxNodes)
	order := make([]*common.Node, 0, r.maxNodes)

	frontier := make([]*common.Node, 0, len(seeds))
	for _, s := range seeds {
		if len(order) >= r.maxNodes {
			break
		}
		if _, dup := visited[s.ID]; dup {
			continue
		}
		visited[s.ID] = struct{}{}
		order = append(order, s)
		frontier = append(frontier, s)
	}

	for hop := 0; hop < r.maxHops && len(frontier) > 0 && len(order) < r.maxNodes; hop++ {
		inFrontier := make(map[string]struct{}, len(frontier))
		for _, n := range frontier {
			inFrontier[n.ID] = struct{}{}
		}

		// Collected in edge insertion order; the stable sort keeps that as
		// the final tie-breaker.
		candidates := make([]hopCandidate, 0)
		for _, edge := range g.Edges {
			var farID string
			if _, ok := inFrontier[edge.Source]; ok {
				farID = edge.Target
			} else if _, ok := inFrontier[edge.Target]; ok {
				farID = edge.Source
			} else {
				continue
			}
			if _, done := visited[farID]; done {
				continue
			}
			far, ok := g.NodeByLabel(farID)
			if !ok {
				continue
			}
			candidates = append(candidates, hopCandidate{edge: edge, far: far})
		}

		sort.SliceStable(candidates, func(i, j int) bool {
			if candidates[i].edge.Weight != candidates[j].edge.Weight {
				return candidates[i].edge.Weight > candidates[j].edge.Weight
			}
			return candidates[i].far.Weight > candidates[j].far.Weight
		})

		next := make([]*common.Node, 0, len(candidates))
		for _, c := range candidates {
			if len(order) >= r.maxNodes {
				break
			}
			if _, done := visited[c.far.ID]; done {
				continue
			}
			visited[c.far.ID] = struct{}{}
			order = append(order, c.far)
			next = append(next, c.far)
		}
		frontier = next
	}

	return visited, order
}

// inducedSubgraph detaches the walk result: node copies in visit order and
// copies of every graph edge whose endpoints were both visited, in insertion
// order.
func inducedSubgraph(g *common.Graph, seedIDs []string, visited map[string]struct{}, order []*common.Node) *common.Subgraph {
	nodes := make([]*common.Node, len(order))
	for i, n := range order {
		nodes[i] = copyNode(n)
	}

	edges := make([]*common.Edge, 0)
	for _, edge := range g.Edges {
		if _, ok := visited[edge.Source]; !ok {
			continue
		}
		if _, ok := visited[edge.Target]; !ok {
			continue
		}
		copied := *edge
		edges = append(edges, &copied)
	}

	return &common.Subgraph{Seeds: seedIDs, Nodes: nodes, Edges: edges}
}

func copyNode(n *common.Node) *common.Node {
	copied := *n
	copied.Aliases = slices.Clone(n.Aliases)
	if n.Metadata != nil {
		copied.Metadata = maps.Clone(n.Metadata)
	}
	return &copied
}

// tokenSet lowercases the value and splits it into its letter/digit runs.
func tokenSet(value string) map[string]struct{} {
	fields := strings.FieldsFunc(strings.ToLower(value), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

// overlapScore is the Jaccard overlap between two token sets.
func overlapScore(query, labels map[string]struct{}) float64 {
	if len(query) == 0 || len(labels) == 0 {
		return 0
	}
	shared := 0
	for token := range labels {
		if _, ok := query[token]; ok {
			shared++
		}
	}
	if shared == 0 {
		return 0
	}
	return float64(shared) / float64(len(query)+len(labels)-shared)
}
