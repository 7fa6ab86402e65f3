package graph

import (
	"context"
	"errors"

	"github.com/stratagraph/strata/internal/util"
	"github.com/stratagraph/strata/pkg/common"
	"github.com/stratagraph/strata/pkg/extract"
	"github.com/stratagraph/strata/pkg/logger"

	"golang.org/x/sync/errgroup"
)

// spanResult is one worker's outcome handed to the commit coordinator. A nil
// result marks a span skipped after retries.
type spanResult struct {
	index int
	span  *common.Span
	res   *extract.Result
}

type fillStats struct {
	extracted int
	skipped   int
	triples   int
}

// extractSpans fans span extraction out to a bounded worker pool and commits
// results through a single coordinator goroutine. Workers never touch the
// graph. Completion order is arbitrary, so the coordinator buffers results
// and applies them in span order; node insertion order and first-commit edge
// provenance stay run-independent. A span whose extraction fails after
// retries is logged and skipped; only context cancellation aborts the phase.
func (b *Builder) extractSpans(
	ctx context.Context,
	g *common.Graph,
	spans []*common.Span,
	profile extract.TaskProfile,
	layer common.LayerOrigin,
) (fillStats, error) {
	stats := fillStats{}
	if len(spans) == 0 {
		return stats, nil
	}

	results := make(chan spanResult)
	done := make(chan struct{})

	go func() {
		defer close(done)
		pending := make(map[int]spanResult)
		next := 0
		for r := range results {
			pending[r.index] = r
			for {
				cur, ok := pending[next]
				if !ok {
					break
				}
				delete(pending, next)
				next++

				if cur.res == nil {
					stats.skipped++
					continue
				}
				stats.extracted++
				for _, t := range cur.res.Triples {
					if g.CommitTriple(t, layer, cur.span.ID, cur.res.Summary) {
						stats.triples++
					}
				}
			}
		}
	}()

	eg, gCtx := errgroup.WithContext(ctx)
	eg.SetLimit(b.parallelRequests)
	for i, span := range spans {
		idx := i
		s := span
		eg.Go(func() error {
			select {
			case <-gCtx.Done():
				return nil
			default:
				res, err := util.RetryWithContext(gCtx, b.maxRetries, func(ctx context.Context) (*extract.Result, error) {
					return b.extractor.Extract(ctx, s.Text, profile)
				})
				if err != nil {
					if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
						return err
					}
					logger.Warn("[Build] Span extraction failed, skipping", "span", s.ID, "error", err)
					results <- spanResult{index: idx, span: s}
					return nil
				}
				results <- spanResult{index: idx, span: s, res: res}
				return nil
			}
		})
	}

	err := eg.Wait()
	close(results)
	<-done

	return stats, err
}

// fillIntermediate runs Phase 2: one local-facts extraction per Large Span,
// committed as the intermediate layer.
func (b *Builder) fillIntermediate(ctx context.Context, g *common.Graph, large []*common.Span, report *Report) error {
	stats, err := b.extractSpans(ctx, g, large, extract.TaskLocalFacts, common.LayerIntermediate)
	report.IntermediateExtracted = stats.extracted
	report.IntermediateSkipped = stats.skipped
	if err != nil {
		return err
	}

	logger.Info("[Build] Intermediate layer filled", "spans", len(large), "extracted", stats.extracted, "skipped", stats.skipped, "triples", stats.triples)
	return nil
}
