package extract

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/time/rate"

	"github.com/stratagraph/strata/pkg/common"
)

// DirectiveBatchSize caps how many edges a single directive or bridging call
// may see. Callers batch larger edge sets.
const DirectiveBatchSize = 300

type tripleItem struct {
	Source   string `json:"source" jsonschema_description:"Name of the source entity, exactly as it appears in the text"`
	Relation string `json:"relation" jsonschema_description:"Short lowercase verb phrase describing how source relates to target"`
	Target   string `json:"target" jsonschema_description:"Name of the target entity, exactly as it appears in the text"`
}

type extractResponse struct {
	Summary string       `json:"summary" jsonschema_description:"Short free-text summary of the provided fragment"`
	Triples []tripleItem `json:"triples" jsonschema_description:"Relation triples identified in the fragment"`
}

type labelGroup struct {
	Labels []string `json:"labels" jsonschema_description:"Labels that all name the same real-world entity"`
}

type resolveResponse struct {
	Groups []labelGroup `json:"groups" jsonschema_description:"Groups of node labels naming the same entity"`
}

type pruneItem struct {
	Source   string `json:"source" jsonschema_description:"Source label of the edge to remove, copied verbatim"`
	Relation string `json:"relation" jsonschema_description:"Relation of the edge to remove, copied verbatim"`
	Target   string `json:"target" jsonschema_description:"Target label of the edge to remove, copied verbatim"`
}

type pruneResponse struct {
	Prunes []pruneItem `json:"prunes" jsonschema_description:"Edges judged to be noise"`
}

type bridgeResponse struct {
	Bridges []tripleItem `json:"bridges" jsonschema_description:"Proposed edges connecting the fragment to the main component"`
}

// GraphExtractor is the production Client implementation. It turns task
// profiles into prompts, drives a Generator for schema-constrained output,
// and normalizes the decoded responses. All calls go through an optional
// client-side rate limit.
//
// A GraphExtractor should be created using NewGraphExtractor.
type GraphExtractor struct {
	gen     Generator
	limiter *rate.Limiter

	extractionModel string
	directiveModel  string
	thinking        string
}

// NewGraphExtractorParams defines the configuration for creating a
// GraphExtractor.
//
// ExtractionModel is used for span extraction calls; DirectiveModel for
// resolution, pruning, and bridging calls and defaults to ExtractionModel
// when empty. RequestsPerSecond enables client-side rate limiting when
// greater than zero. Thinking enables extended thinking mode on backends
// that support it.
type NewGraphExtractorParams struct {
	Generator Generator

	ExtractionModel string
	DirectiveModel  string
	Thinking        string

	RequestsPerSecond float64
}

// NewGraphExtractor creates a GraphExtractor configured with the provided
// parameters.
func NewGraphExtractor(params NewGraphExtractorParams) *GraphExtractor {
	var limiter *rate.Limiter
	if params.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(params.RequestsPerSecond), 1)
	}

	directiveModel := params.DirectiveModel
	if directiveModel == "" {
		directiveModel = params.ExtractionModel
	}

	return &GraphExtractor{
		gen:             params.Generator,
		limiter:         limiter,
		extractionModel: params.ExtractionModel,
		directiveModel:  directiveModel,
		thinking:        params.Thinking,
	}
}

func (c *GraphExtractor) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

func (c *GraphExtractor) generateOpts(model string) []GenerateOption {
	opts := []GenerateOption{WithModel(model)}
	if c.thinking != "" {
		opts = append(opts, WithThinking(c.thinking))
	}
	return opts
}

// Extract runs a span extraction with the prompt belonging to the given
// profile and returns the normalized triples plus the span summary. Triples
// with an empty part after normalization are dropped.
func (c *GraphExtractor) Extract(
	ctx context.Context,
	span string,
	profile TaskProfile,
) (*Result, error) {
	var systemPrompt string
	switch profile {
	case TaskBackbone:
		systemPrompt = BackbonePrompt
	case TaskLocalFacts:
		systemPrompt = LocalFactsPrompt
	case TaskDrilldown:
		systemPrompt = DrilldownPrompt
	default:
		return nil, fmt.Errorf("task profile %q is not a span extraction profile", profile)
	}

	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	var res extractResponse
	opts := append(
		c.generateOpts(c.extractionModel),
		WithSystemPrompts(systemPrompt),
	)
	err := c.gen.GenerateCompletionWithFormat(
		ctx,
		"extract_triples",
		"Extract relation triples and a short summary from a text fragment.",
		span,
		&res,
		opts...,
	)
	if err != nil {
		return nil, err
	}

	result := &Result{Summary: strings.TrimSpace(res.Summary)}
	for _, t := range res.Triples {
		triple := common.Triple{
			Source:   common.NormalizeLabel(t.Source),
			Relation: common.NormalizeLabel(t.Relation),
			Target:   common.NormalizeLabel(t.Target),
		}
		if triple.Source == "" || triple.Relation == "" || triple.Target == "" {
			continue
		}
		result.Triples = append(result.Triples, triple)
	}
	return result, nil
}

// Resolve runs a directive call over the given edges. A resolution profile
// returns merge groups (groups shrinking below two distinct labels are
// dropped); a pruning profile returns prune directives. The edge set must not
// exceed DirectiveBatchSize.
func (c *GraphExtractor) Resolve(
	ctx context.Context,
	edges []common.Edge,
	profile TaskProfile,
) (*Directives, error) {
	if len(edges) == 0 {
		return &Directives{}, nil
	}
	if len(edges) > DirectiveBatchSize {
		return nil, fmt.Errorf("directive batch size exceeded: %d > %d", len(edges), DirectiveBatchSize)
	}

	switch profile {
	case TaskResolution:
		return c.resolveSynonyms(ctx, edges)
	case TaskPruning:
		return c.resolveNoise(ctx, edges)
	default:
		return nil, fmt.Errorf("task profile %q is not a directive profile", profile)
	}
}

func (c *GraphExtractor) resolveSynonyms(
	ctx context.Context,
	edges []common.Edge,
) (*Directives, error) {
	prompt := fmt.Sprintf(ResolutionPrompt, renderEdgeList(edges))

	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	var res resolveResponse
	err := c.gen.GenerateCompletionWithFormat(
		ctx,
		"resolve_synonyms",
		"Group node labels that name the same entity.",
		prompt,
		&res,
		c.generateOpts(c.directiveModel)...,
	)
	if err != nil {
		return nil, err
	}

	directives := &Directives{}
	for _, group := range res.Groups {
		labels := cleanLabels(group.Labels)
		if len(labels) < 2 {
			continue
		}
		directives.MergeGroups = append(directives.MergeGroups, labels)
	}
	return directives, nil
}

func (c *GraphExtractor) resolveNoise(
	ctx context.Context,
	edges []common.Edge,
) (*Directives, error) {
	prompt := fmt.Sprintf(PruningPrompt, renderEdgeList(edges))

	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	var res pruneResponse
	err := c.gen.GenerateCompletionWithFormat(
		ctx,
		"flag_noise_edges",
		"Flag knowledge graph edges that are noise.",
		prompt,
		&res,
		c.generateOpts(c.directiveModel)...,
	)
	if err != nil {
		return nil, err
	}

	directives := &Directives{}
	for _, p := range res.Prunes {
		directive := common.PruneDirective{
			Source:   common.NormalizeLabel(p.Source),
			Target:   common.NormalizeLabel(p.Target),
			Relation: common.NormalizeLabel(p.Relation),
		}
		if directive.Source == "" || directive.Target == "" {
			continue
		}
		directives.Prunes = append(directives.Prunes, directive)
	}
	return directives, nil
}

// Bridge asks for edges reconnecting a disconnected fragment to the main
// component. The main edge list is sampled down to DirectiveBatchSize;
// proposals with an empty part after normalization are dropped. Weights are
// left unset; the caller decides the weight of accepted bridges.
func (c *GraphExtractor) Bridge(
	ctx context.Context,
	main []common.Edge,
	fragment []common.Edge,
) ([]common.Triple, error) {
	if len(fragment) == 0 {
		return nil, nil
	}
	if len(main) > DirectiveBatchSize {
		main = main[:DirectiveBatchSize]
	}

	prompt := fmt.Sprintf(BridgingPrompt, renderEdgeList(main), renderEdgeList(fragment))

	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	var res bridgeResponse
	err := c.gen.GenerateCompletionWithFormat(
		ctx,
		"bridge_fragments",
		"Propose edges connecting a disconnected fragment to the main component.",
		prompt,
		&res,
		c.generateOpts(c.directiveModel)...,
	)
	if err != nil {
		return nil, err
	}

	var triples []common.Triple
	for _, t := range res.Bridges {
		triple := common.Triple{
			Source:   common.NormalizeLabel(t.Source),
			Relation: common.NormalizeLabel(t.Relation),
			Target:   common.NormalizeLabel(t.Target),
		}
		if triple.Source == "" || triple.Relation == "" || triple.Target == "" {
			continue
		}
		triples = append(triples, triple)
	}
	return triples, nil
}

// renderEdgeList writes edges in the arrow form the directive prompts expect.
func renderEdgeList(edges []common.Edge) string {
	var b strings.Builder
	for _, e := range edges {
		fmt.Fprintf(&b, "- %s --[%s]--> %s\n", e.Source, e.Relation, e.Target)
	}
	return b.String()
}

// cleanLabels normalizes a label group and removes duplicates that collapse
// to the same label key.
func cleanLabels(labels []string) []string {
	seen := make(map[string]struct{}, len(labels))
	out := make([]string, 0, len(labels))
	for _, label := range labels {
		label = common.NormalizeLabel(label)
		if label == "" {
			continue
		}
		key := common.LabelKey(label)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, label)
	}
	return out
}
