package graph

import (
	"context"
	"errors"

	"github.com/stratagraph/strata/internal/util"
	"github.com/stratagraph/strata/pkg/common"
	"github.com/stratagraph/strata/pkg/extract"
	"github.com/stratagraph/strata/pkg/logger"
)

const (
	maxBridgeRounds  = 3
	bridgeEdgeWeight = 0.5
)

// optimize runs Phase 4 over the filled graph: synonym resolution, noise
// pruning, fragment bridging, then isolate cleanup. Extractor failures here
// lose advice, not data; a failed call skips its batch and the phase goes
// on. Only context cancellation aborts.
func (b *Builder) optimize(ctx context.Context, g *common.Graph, report *Report) error {
	if err := b.resolveSynonyms(ctx, g, report); err != nil {
		return err
	}
	if err := b.pruneNoise(ctx, g, report); err != nil {
		return err
	}
	if err := b.bridgeFragments(ctx, g, report); err != nil {
		return err
	}
	b.removeIsolates(g, report)

	logger.Info("[Build] Optimizer finished", "merges", report.MergesApplied, "prunes", report.PrunesApplied, "bridges", report.BridgesApplied, "isolates_removed", report.IsolatesRemoved)
	return nil
}

func snapshotEdges(g *common.Graph) []common.Edge {
	edges := make([]common.Edge, len(g.Edges))
	for i, e := range g.Edges {
		edges[i] = *e
	}
	return edges
}

// resolveSynonyms asks the extractor for synonym groups over the edge list,
// batch by batch, and folds each usable group into its canonical node. The
// canonical pick is the heaviest member; ties go to the earliest layer, then
// to insertion order.
func (b *Builder) resolveSynonyms(ctx context.Context, g *common.Graph, report *Report) error {
	edges := snapshotEdges(g)
	if len(edges) == 0 {
		return nil
	}

	for start := 0; start < len(edges); start += extract.DirectiveBatchSize {
		end := min(start+extract.DirectiveBatchSize, len(edges))

		dirs, err := util.RetryWithContext(ctx, b.maxRetries, func(ctx context.Context) (*extract.Directives, error) {
			return b.extractor.Resolve(ctx, edges[start:end], extract.TaskResolution)
		})
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			logger.Warn("[Build] Synonym resolution batch failed, skipping", "batch_start", start, "error", err)
			continue
		}

		for _, group := range dirs.MergeGroups {
			directive, ok := mergeDirectiveFor(g, group)
			if !ok {
				report.MergesSkipped++
				continue
			}
			if err := g.ApplyMerge(directive); err != nil {
				logger.Warn("[Build] Merge directive rejected", "keep", directive.Keep, "error", err)
				report.MergesSkipped++
				continue
			}
			report.MergesApplied++
		}
	}

	return nil
}

// mergeDirectiveFor resolves a synonym group against the live graph and
// picks the canonical member. Groups naming an unknown label, or collapsing
// to fewer than two distinct nodes, produce no directive.
func mergeDirectiveFor(g *common.Graph, group []string) (common.MergeDirective, bool) {
	members := make(map[string]struct{}, len(group))
	for _, label := range group {
		node, ok := g.NodeByLabel(label)
		if !ok {
			return common.MergeDirective{}, false
		}
		members[node.ID] = struct{}{}
	}
	if len(members) < 2 {
		return common.MergeDirective{}, false
	}

	var keep *common.Node
	for _, node := range g.Nodes {
		if _, ok := members[node.ID]; !ok {
			continue
		}
		if keep == nil {
			keep = node
			continue
		}
		if node.Weight > keep.Weight ||
			(node.Weight == keep.Weight && node.LayerOrigin.Rank() < keep.LayerOrigin.Rank()) {
			keep = node
		}
	}

	absorbed := make([]string, 0, len(members)-1)
	for _, node := range g.Nodes {
		if _, ok := members[node.ID]; !ok || node.ID == keep.ID {
			continue
		}
		absorbed = append(absorbed, node.ID)
	}

	return common.MergeDirective{Keep: keep.ID, Absorbed: absorbed}, true
}

// pruneNoise asks the extractor to flag low-value edges and deletes what it
// flags, except edges whose endpoints are both backbone-origin: the document
// skeleton is never pruned.
func (b *Builder) pruneNoise(ctx context.Context, g *common.Graph, report *Report) error {
	edges := snapshotEdges(g)
	if len(edges) == 0 {
		return nil
	}

	for start := 0; start < len(edges); start += extract.DirectiveBatchSize {
		end := min(start+extract.DirectiveBatchSize, len(edges))

		dirs, err := util.RetryWithContext(ctx, b.maxRetries, func(ctx context.Context) (*extract.Directives, error) {
			return b.extractor.Resolve(ctx, edges[start:end], extract.TaskPruning)
		})
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			logger.Warn("[Build] Noise pruning batch failed, skipping", "batch_start", start, "error", err)
			continue
		}

		for _, p := range dirs.Prunes {
			if backboneProtected(g, p) {
				report.PrunesProtected++
				continue
			}
			removed := g.RemoveEdges(p)
			if removed == 0 {
				report.PrunesSkipped++
				continue
			}
			report.PrunesApplied += removed
		}
	}

	return nil
}

// backboneProtected reports whether a prune directive targets the document
// skeleton: both endpoints created by the backbone pass.
func backboneProtected(g *common.Graph, p common.PruneDirective) bool {
	src, ok := g.NodeByLabel(p.Source)
	if !ok {
		return false
	}
	tgt, ok := g.NodeByLabel(p.Target)
	if !ok {
		return false
	}
	return src.LayerOrigin == common.LayerBackbone && tgt.LayerOrigin == common.LayerBackbone
}

// bridgeFragments reconnects disconnected fragments to the main component.
// Each fragment with at least one edge gets a bridging call that sees a
// sample of main-component edges plus the fragment; accepted proposals are
// committed as low-weight edges between existing nodes. Rounds repeat while
// fragments remain and the previous round connected something, up to
// maxBridgeRounds. Single-node fragments are left to isolate cleanup.
func (b *Builder) bridgeFragments(ctx context.Context, g *common.Graph, report *Report) error {
	for round := 1; round <= maxBridgeRounds; round++ {
		components := g.Components()
		if len(components) <= 1 {
			return nil
		}

		main := components[0]
		mainEdges := edgesAmong(g, main)
		bridged := 0

		for _, fragment := range components[1:] {
			if err := ctx.Err(); err != nil {
				return err
			}
			if len(fragment) < 2 {
				continue
			}
			fragmentEdges := edgesAmong(g, fragment)
			if len(fragmentEdges) == 0 {
				continue
			}

			triples, err := util.RetryWithContext(ctx, b.maxRetries, func(ctx context.Context) ([]common.Triple, error) {
				return b.extractor.Bridge(ctx, mainEdges, fragmentEdges)
			})
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				logger.Warn("[Build] Bridging call failed, fragment stays disconnected", "fragment_size", len(fragment), "error", err)
				report.BridgesSkipped++
				continue
			}

			for _, t := range triples {
				if _, ok := g.NodeByLabel(t.Source); !ok {
					report.BridgesSkipped++
					continue
				}
				if _, ok := g.NodeByLabel(t.Target); !ok {
					report.BridgesSkipped++
					continue
				}
				t.Weight = bridgeEdgeWeight
				// Both endpoints exist, so the layer is never applied.
				if g.CommitTriple(t, common.LayerDrilldown, "", "") {
					report.BridgesApplied++
					bridged++
				}
			}
		}

		if bridged == 0 {
			return nil
		}
		logger.Debug("[Build] Bridging round completed", "round", round, "bridges", bridged)
	}

	return nil
}

func edgesAmong(g *common.Graph, nodeIDs []string) []common.Edge {
	members := make(map[string]struct{}, len(nodeIDs))
	for _, id := range nodeIDs {
		members[id] = struct{}{}
	}

	var edges []common.Edge
	for _, e := range g.Edges {
		if _, ok := members[e.Source]; !ok {
			continue
		}
		if _, ok := members[e.Target]; !ok {
			continue
		}
		edges = append(edges, *e)
	}
	return edges
}

// removeIsolates drops nodes no edge touches anymore, keeping backbone
// isolates: the skeleton survives even when pruning stripped its relations.
func (b *Builder) removeIsolates(g *common.Graph, report *Report) {
	degrees := g.DegreeMap()
	var isolated []string
	for _, node := range g.Nodes {
		if degrees[node.ID] > 0 {
			continue
		}
		if node.LayerOrigin == common.LayerBackbone {
			continue
		}
		isolated = append(isolated, node.ID)
	}

	for _, id := range isolated {
		if g.RemoveNode(id) {
			report.IsolatesRemoved++
		}
	}
}
