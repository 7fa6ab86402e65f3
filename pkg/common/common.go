package common

import "strings"

// LayerOrigin records which build phase first created a node. The backbone
// layer is the whole-document skeleton pass, the intermediate layer fills in
// facts from large spans, and the drilldown layer adds fine-grained relations
// around focus nodes.
type LayerOrigin string

const (
	LayerBackbone     LayerOrigin = "backbone"
	LayerIntermediate LayerOrigin = "intermediate"
	LayerDrilldown    LayerOrigin = "drilldown"
)

// Rank orders layers by how early their phase runs. Lower is earlier; unknown
// values sort last. Used as the merge tie-breaker when two candidate canonical
// nodes carry equal weight.
func (l LayerOrigin) Rank() int {
	switch l {
	case LayerBackbone:
		return 0
	case LayerIntermediate:
		return 1
	case LayerDrilldown:
		return 2
	default:
		return 3
	}
}

// Node is a concept in the graph. Its ID is the canonical label; identity is
// resolved case-insensitively over normalized labels, so "LLM" and "llm"
// address the same node while the first-seen surface form is kept as ID.
//
// Weight counts accumulated mentions: every committed triple that touches the
// node adds one. Merges sum weights into the canonical node. Aliases hold the
// pre-merge surface forms of absorbed nodes.
type Node struct {
	ID          string            `json:"id"`
	Aliases     []string          `json:"aliases,omitempty"`
	LayerOrigin LayerOrigin       `json:"layer_origin"`
	Weight      int               `json:"weight"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// HasAlias reports whether the node carries the given surface form as an
// alias (normalized, case-insensitive).
func (n *Node) HasAlias(label string) bool {
	key := LabelKey(label)
	for _, alias := range n.Aliases {
		if LabelKey(alias) == key {
			return true
		}
	}
	return false
}

// Edge is a directed relation between two nodes. The ordered
// (source, relation, target) triple is unique within a graph; committing the
// same triple again accumulates weight instead of duplicating the edge.
//
// Provenance is the span that first produced the edge, Context the one-line
// summary of that span captured at first commit. Both stay empty for edges
// with no span origin (backbone and bridge edges).
type Edge struct {
	Source     string  `json:"source"`
	Target     string  `json:"target"`
	Relation   string  `json:"relation"`
	Weight     float64 `json:"weight"`
	Provenance string  `json:"provenance,omitempty"`
	Context    string  `json:"context,omitempty"`
}

// SpanKind distinguishes the two document tilings.
type SpanKind string

const (
	SpanLarge SpanKind = "large"
	SpanSmall SpanKind = "small"
)

// Span is a contiguous slice of source text used as the unit of extraction.
// Start and End are rune offsets into the document forming a half-open range.
// Spans are immutable once created and are not persisted with the graph.
type Span struct {
	ID    string   `json:"id"`
	Kind  SpanKind `json:"kind"`
	Start int      `json:"start"`
	End   int      `json:"end"`
	Text  string   `json:"text"`
}

// Overlaps reports whether the span's range shares any text with the
// half-open range [start, end).
func (s *Span) Overlaps(start, end int) bool {
	return s.Start < end && start < s.End
}

// Triple is one extracted fact: source --[relation]--> target. Weight is the
// extractor's confidence contribution; zero means the default of 1.
type Triple struct {
	Source   string  `json:"source"`
	Relation string  `json:"relation"`
	Target   string  `json:"target"`
	Weight   float64 `json:"weight,omitempty"`
}

// MergeDirective asks the graph to fold the absorbed nodes into the kept
// node. Directives are produced by the optimizer's resolution step and
// applied mechanically.
type MergeDirective struct {
	Keep     string   `json:"keep"`
	Absorbed []string `json:"absorbed"`
}

// PruneDirective identifies edges to delete. An empty Relation matches every
// edge between the pair.
type PruneDirective struct {
	Source   string `json:"source"`
	Target   string `json:"target"`
	Relation string `json:"relation,omitempty"`
}

// Subgraph is the serializable retrieval result: the nodes and edges a graph
// walk touched, plus the seed node ids the walk started from. Downstream
// consumers treat it as their context; it carries no references back into the
// live graph.
type Subgraph struct {
	Seeds []string `json:"seeds,omitempty"`
	Nodes []*Node  `json:"nodes"`
	Edges []*Edge  `json:"edges"`
}

// NormalizeLabel trims the value, folds newlines into spaces, and collapses
// runs of whitespace. Extractor output is messy; every label and relation
// passes through here before it touches the graph.
func NormalizeLabel(value string) string {
	value = strings.TrimSpace(value)
	value = strings.ReplaceAll(value, "\n", " ")
	value = strings.ReplaceAll(value, "\r", " ")
	return strings.Join(strings.Fields(value), " ")
}

// LabelKey is the case-insensitive identity key used for node matching.
func LabelKey(value string) string {
	return strings.ToUpper(NormalizeLabel(value))
}
