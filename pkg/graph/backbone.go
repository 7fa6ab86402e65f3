package graph

import (
	"context"
	"errors"
	"fmt"

	"github.com/stratagraph/strata/internal/util"
	"github.com/stratagraph/strata/pkg/common"
	"github.com/stratagraph/strata/pkg/extract"
	"github.com/stratagraph/strata/pkg/logger"
)

// ErrBackboneEmpty is returned when the backbone pass yields no usable
// skeleton. Every later phase attaches to the backbone, so a build without
// one is aborted rather than continued.
var ErrBackboneEmpty = errors.New("backbone extraction produced no skeleton")

// buildBackbone runs Phase 1: a single extraction call over the whole
// document (or its digest, when one is supplied) whose triples become the
// backbone layer. Backbone edges carry no span provenance.
func (b *Builder) buildBackbone(ctx context.Context, g *common.Graph, doc Document, report *Report) error {
	text := doc.Digest
	if text == "" {
		text = doc.Text
	}

	res, err := util.RetryWithContext(ctx, b.maxRetries, func(ctx context.Context) (*extract.Result, error) {
		return b.extractor.Extract(ctx, text, extract.TaskBackbone)
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrBackboneEmpty, err)
	}

	committed := 0
	for _, t := range res.Triples {
		if g.CommitTriple(t, common.LayerBackbone, "", "") {
			committed++
		}
	}
	if committed == 0 {
		return ErrBackboneEmpty
	}

	report.BackboneTriples = committed
	logger.Debug("[Build] Backbone extracted", "triples", committed, "nodes", len(g.Nodes))
	return nil
}
