package graph

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stratagraph/strata/pkg/common"
	"github.com/stratagraph/strata/pkg/logger"
)

// Document is the input of a build: the raw text plus an optional digest
// that stands in for the full text during the backbone pass when the
// document exceeds the model's context.
type Document struct {
	Text   string
	Digest string
}

// Build runs the four-phase pipeline over a document and returns the
// finished graph together with a report of what each phase did. Phases run
// strictly in order: backbone, intermediate fill, drill-down, optimizer.
// An empty backbone or a canceled context aborts the build; individual span
// and directive failures are counted and skipped.
func (b *Builder) Build(ctx context.Context, doc Document) (*common.Graph, *Report, error) {
	if strings.TrimSpace(doc.Text) == "" {
		return nil, nil, errors.New("document text is empty")
	}

	start := time.Now()
	report, err := newReport()
	if err != nil {
		return nil, nil, err
	}

	large, small, err := b.tile(doc.Text)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to tile document: %w", err)
	}
	report.LargeSpans = len(large)
	report.SmallSpans = len(small)

	logger.Info("[Build] Document tiled", "build_id", report.BuildID, "large_spans", len(large), "small_spans", len(small))

	g := common.NewGraph()

	if err := b.buildBackbone(ctx, g, doc, report); err != nil {
		return nil, nil, fmt.Errorf("backbone phase failed: %w", err)
	}
	logger.Info("[Build] Backbone layer complete", "build_id", report.BuildID, "nodes", len(g.Nodes), "edges", len(g.Edges))

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	if err := b.fillIntermediate(ctx, g, large, report); err != nil {
		return nil, nil, fmt.Errorf("intermediate phase failed: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	if err := b.fillDrilldown(ctx, g, large, small, report); err != nil {
		return nil, nil, fmt.Errorf("drill-down phase failed: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	if err := b.optimize(ctx, g, report); err != nil {
		return nil, nil, fmt.Errorf("optimizer phase failed: %w", err)
	}

	report.Nodes = len(g.Nodes)
	report.Edges = len(g.Edges)
	report.DurationMs = time.Since(start).Milliseconds()

	logger.Info("[Build] Graph build completed", "build_id", report.BuildID, "nodes", report.Nodes, "edges", report.Edges, "duration_ms", report.DurationMs)

	return g, report, nil
}
