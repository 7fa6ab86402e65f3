package graph

import (
	"context"
	"math"
	"sort"

	"github.com/stratagraph/strata/pkg/common"
	"github.com/stratagraph/strata/pkg/extract"
	"github.com/stratagraph/strata/pkg/logger"
)

// selectFocusNodes picks the nodes worth a fine-grained pass: the top K by
// weight plus degree, ties broken by weight and then insertion order. K is
// FocusTopK when set, otherwise the configured fraction of the node count,
// at least one.
func (b *Builder) selectFocusNodes(g *common.Graph) []*common.Node {
	if len(g.Nodes) == 0 {
		return nil
	}

	k := b.focusTopK
	if k <= 0 {
		k = int(math.Ceil(float64(len(g.Nodes)) * b.focusFraction))
	}
	if k < 1 {
		k = 1
	}
	if k > len(g.Nodes) {
		k = len(g.Nodes)
	}

	degrees := g.DegreeMap()
	ranked := make([]*common.Node, len(g.Nodes))
	copy(ranked, g.Nodes)
	sort.SliceStable(ranked, func(i, j int) bool {
		si := ranked[i].Weight + degrees[ranked[i].ID]
		sj := ranked[j].Weight + degrees[ranked[j].ID]
		if si != sj {
			return si > sj
		}
		return ranked[i].Weight > ranked[j].Weight
	})

	return ranked[:k]
}

// drilldownSpans gathers the Small Spans overlapping the provenance ranges
// of the focus nodes, in tiling order and deduplicated across nodes. A focus
// node whose edges all lack span provenance (pure backbone structure)
// contributes no ranges.
func drilldownSpans(g *common.Graph, focus []*common.Node, large, small []*common.Span) []*common.Span {
	largeByID := make(map[string]*common.Span, len(large))
	for _, s := range large {
		largeByID[s.ID] = s
	}

	var ranges [][2]int
	for _, node := range focus {
		for _, spanID := range g.ProvenanceOf(node.ID) {
			if s, ok := largeByID[spanID]; ok {
				ranges = append(ranges, [2]int{s.Start, s.End})
			}
		}
	}
	if len(ranges) == 0 {
		return nil
	}

	var matched []*common.Span
	for _, s := range small {
		for _, r := range ranges {
			if s.Overlaps(r[0], r[1]) {
				matched = append(matched, s)
				break
			}
		}
	}
	return matched
}

// fillDrilldown runs Phase 3: select focus nodes, then one drill-down
// extraction per matched Small Span, committed as the drilldown layer.
func (b *Builder) fillDrilldown(ctx context.Context, g *common.Graph, large, small []*common.Span, report *Report) error {
	focus := b.selectFocusNodes(g)
	report.FocusNodes = len(focus)
	if len(focus) == 0 {
		logger.Info("[Build] Drill-down skipped, no focus nodes")
		return nil
	}

	matched := drilldownSpans(g, focus, large, small)
	if len(matched) == 0 {
		logger.Info("[Build] Drill-down skipped, no spans overlap the focus nodes", "focus_nodes", len(focus))
		return nil
	}

	stats, err := b.extractSpans(ctx, g, matched, extract.TaskDrilldown, common.LayerDrilldown)
	report.DrilldownExtracted = stats.extracted
	report.DrilldownSkipped = stats.skipped
	if err != nil {
		return err
	}

	logger.Info("[Build] Drill-down layer filled", "focus_nodes", len(focus), "spans", len(matched), "extracted", stats.extracted, "skipped", stats.skipped, "triples", stats.triples)
	return nil
}
