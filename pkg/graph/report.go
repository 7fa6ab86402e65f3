package graph

import (
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Report aggregates what a build did: span counts, per-phase extraction and
// skip counters, the optimizer directives applied, and the final graph size.
// Per-span and per-directive failures land in these counters instead of
// failing the build.
type Report struct {
	BuildID string `json:"build_id"`

	LargeSpans int `json:"large_spans"`
	SmallSpans int `json:"small_spans"`

	BackboneTriples       int `json:"backbone_triples"`
	IntermediateExtracted int `json:"intermediate_extracted"`
	IntermediateSkipped   int `json:"intermediate_skipped"`
	FocusNodes            int `json:"focus_nodes"`
	DrilldownExtracted    int `json:"drilldown_extracted"`
	DrilldownSkipped      int `json:"drilldown_skipped"`

	MergesApplied   int `json:"merges_applied"`
	MergesSkipped   int `json:"merges_skipped"`
	PrunesApplied   int `json:"prunes_applied"`
	PrunesSkipped   int `json:"prunes_skipped"`
	PrunesProtected int `json:"prunes_protected"`
	BridgesApplied  int `json:"bridges_applied"`
	BridgesSkipped  int `json:"bridges_skipped"`
	IsolatesRemoved int `json:"isolates_removed"`

	Nodes      int   `json:"nodes"`
	Edges      int   `json:"edges"`
	DurationMs int64 `json:"duration_ms"`
}

func newReport() (*Report, error) {
	id, err := gonanoid.New()
	if err != nil {
		return nil, err
	}
	return &Report{BuildID: id}, nil
}
