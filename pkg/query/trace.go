package query

import (
	"sort"
	"sync"
)

type TraceEventKind string

const (
	TraceEventConsideredSeeds TraceEventKind = "considered_seeds"
	TraceEventSelectedSeeds   TraceEventKind = "selected_seeds"
	TraceEventVisitedNodes    TraceEventKind = "visited_nodes"
	TraceEventTouchedSpans    TraceEventKind = "touched_spans"
)

// TraceEvent is an extensible event envelope for retrieval tracing.
// Additive changes to this struct are backward compatible for implementers.
type TraceEvent struct {
	Kind TraceEventKind

	NodeIDs []string
	SpanIDs []string
}

// Tracer is a sink for retrieval trace events.
//
// Implementers can forward events to logs, telemetry, or custom
// post-processing pipelines.
type Tracer interface {
	Record(event TraceEvent)
}

// MultiTracer fans trace events out to multiple tracers.
type MultiTracer []Tracer

func (m MultiTracer) Record(event TraceEvent) {
	for _, t := range m {
		if t == nil {
			continue
		}
		t.Record(event)
	}
}

func RecordConsideredSeeds(t Tracer, ids ...string) {
	if t == nil {
		return
	}
	t.Record(TraceEvent{Kind: TraceEventConsideredSeeds, NodeIDs: ids})
}

func RecordSelectedSeeds(t Tracer, ids ...string) {
	if t == nil {
		return
	}
	t.Record(TraceEvent{Kind: TraceEventSelectedSeeds, NodeIDs: ids})
}

func RecordVisitedNodes(t Tracer, ids ...string) {
	if t == nil {
		return
	}
	t.Record(TraceEvent{Kind: TraceEventVisitedNodes, NodeIDs: ids})
}

func RecordTouchedSpans(t Tracer, ids ...string) {
	if t == nil {
		return
	}
	t.Record(TraceEvent{Kind: TraceEventTouchedSpans, SpanIDs: ids})
}

// RetrievalTrace collects which nodes and spans a search considered and
// used. This is primarily used to expose retrieval metadata, like the
// document spans grounding an answer, without threading state through the
// walk.
//
// RetrievalTrace is safe for concurrent use.
type RetrievalTrace struct {
	mu sync.Mutex

	consideredSeeds map[string]struct{}
	selectedSeeds   map[string]struct{}
	visitedNodes    map[string]struct{}
	touchedSpans    map[string]struct{}
}

type RetrievalTraceSnapshot struct {
	ConsideredSeeds []string
	SelectedSeeds   []string
	VisitedNodes    []string
	TouchedSpans    []string
}

func NewRetrievalTrace() *RetrievalTrace {
	return &RetrievalTrace{
		consideredSeeds: make(map[string]struct{}),
		selectedSeeds:   make(map[string]struct{}),
		visitedNodes:    make(map[string]struct{}),
		touchedSpans:    make(map[string]struct{}),
	}
}

func (t *RetrievalTrace) Record(event TraceEvent) {
	if t == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	switch event.Kind {
	case TraceEventConsideredSeeds:
		addAll(t.consideredSeeds, event.NodeIDs)
	case TraceEventSelectedSeeds:
		addAll(t.selectedSeeds, event.NodeIDs)
	case TraceEventVisitedNodes:
		addAll(t.visitedNodes, event.NodeIDs)
	case TraceEventTouchedSpans:
		addAll(t.touchedSpans, event.SpanIDs)
	default:
		return
	}
}

func addAll(set map[string]struct{}, ids []string) {
	for _, id := range ids {
		if id == "" {
			continue
		}
		set[id] = struct{}{}
	}
}

func (t *RetrievalTrace) Snapshot() RetrievalTraceSnapshot {
	if t == nil {
		return RetrievalTraceSnapshot{}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	s := RetrievalTraceSnapshot{
		ConsideredSeeds: sortedKeys(t.consideredSeeds),
		SelectedSeeds:   sortedKeys(t.selectedSeeds),
		VisitedNodes:    sortedKeys(t.visitedNodes),
		TouchedSpans:    sortedKeys(t.touchedSpans),
	}
	return s
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
