package graph

import (
	"errors"

	"github.com/stratagraph/strata/pkg/extract"
)

const (
	defaultTokenEncoder     = "o200k_base"
	defaultLargeSpanTokens  = 1500
	defaultSmallSpanTokens  = 500
	defaultOverlapPercent   = 10
	defaultParallelRequests = 8
	defaultMaxRetries       = 3
	defaultFocusFraction    = 0.15
)

// Builder runs the layered build pipeline that turns a document into a
// knowledge graph. It owns span tiling, phase orchestration, extraction
// parallelism, and the optimizer, but no I/O: persistence belongs to the
// store and all model access goes through the extract.Client seam.
//
// A Builder should be created using NewBuilder.
type Builder struct {
	extractor extract.Client

	tokenEncoder     string
	largeSpanTokens  int
	smallSpanTokens  int
	overlapPercent   int
	parallelRequests int
	maxRetries       int
	focusFraction    float64
	focusTopK        int
}

// NewBuilderParams defines the configuration parameters for creating
// a new Builder.
//
// Extractor is the extraction client the pipeline calls and is required.
// TokenEncoder specifies the tiktoken encoding used for span sizing.
// LargeSpanTokens and SmallSpanTokens are the token budgets of the two
// tilings. OverlapPercent is the share of a span budget whose trailing
// sentences reappear at the head of the next span; zero applies the default
// of 10, a negative value disables overlap. ParallelRequests caps concurrent
// extraction calls during the fill phases. FocusFraction is the share of
// nodes drilled into during the drill-down phase; FocusTopK overrides the
// fraction with a fixed count when set.
type NewBuilderParams struct {
	Extractor        extract.Client
	TokenEncoder     string
	LargeSpanTokens  int
	SmallSpanTokens  int
	OverlapPercent   int
	ParallelRequests int
	MaxRetries       int
	FocusFraction    float64
	FocusTopK        int
}

// NewBuilder creates and returns a new Builder configured with the
// provided parameters.
//
// Example:
//
//	params := graph.NewBuilderParams{
//		Extractor:        extractor,
//		TokenEncoder:     "o200k_base",
//		ParallelRequests: 8,
//	}
//	builder, err := graph.NewBuilder(params)
//	if err != nil {
//		log.Fatal(err)
//	}
//
// Returns a pointer to Builder and an error if initialization fails.
func NewBuilder(params NewBuilderParams) (*Builder, error) {
	if params.Extractor == nil {
		return nil, errors.New("extractor is required")
	}

	encoder := params.TokenEncoder
	if encoder == "" {
		encoder = defaultTokenEncoder
	}
	largeTokens := params.LargeSpanTokens
	if largeTokens <= 0 {
		largeTokens = defaultLargeSpanTokens
	}
	smallTokens := params.SmallSpanTokens
	if smallTokens <= 0 {
		smallTokens = defaultSmallSpanTokens
	}
	overlap := params.OverlapPercent
	if overlap == 0 {
		overlap = defaultOverlapPercent
	}
	if overlap < 0 {
		overlap = 0
	}
	parallel := params.ParallelRequests
	if parallel <= 0 {
		parallel = defaultParallelRequests
	}
	maxRetries := params.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	focusFraction := params.FocusFraction
	if focusFraction <= 0 {
		focusFraction = defaultFocusFraction
	}

	b := &Builder{
		extractor:        params.Extractor,
		tokenEncoder:     encoder,
		largeSpanTokens:  largeTokens,
		smallSpanTokens:  smallTokens,
		overlapPercent:   overlap,
		parallelRequests: parallel,
		maxRetries:       maxRetries,
		focusFraction:    focusFraction,
		focusTopK:        params.FocusTopK,
	}

	return b, nil
}
