package query

// Defaults for the graph walk. Two hops around the seeds with a node budget
// of 40 keeps the rendered context within a prompt-sized envelope.
const (
	defaultMaxHops  = 2
	defaultMaxNodes = 40
	defaultMaxSeeds = 3
)

// Retriever answers queries against a finished graph with a bounded
// breadth-first walk: score seed nodes against the query, expand the
// strongest edges around them, and return the induced subgraph. It performs
// no I/O and never mutates the graph it searches.
type Retriever struct {
	maxHops  int
	maxNodes int
	maxSeeds int
	trace    Tracer
}

// NewRetrieverParams configures a Retriever. Zero values select the
// defaults.
type NewRetrieverParams struct {
	// MaxHops bounds the walk depth around the seeds.
	MaxHops int
	// MaxNodes bounds the total visited nodes, seeds included.
	MaxNodes int
	// MaxSeeds bounds how many seed nodes similarity scoring selects.
	MaxSeeds int
}

type RetrieverOption func(*Retriever)

// WithTracer attaches a sink for retrieval trace events.
func WithTracer(trace Tracer) RetrieverOption {
	return func(r *Retriever) {
		r.trace = trace
	}
}

// NewRetriever creates a Retriever with the given bounds.
//
// Example:
//
//	retriever := query.NewRetriever(query.NewRetrieverParams{})
//	sub := retriever.Search(store.Active(), "how does alpha reach gamma")
//	prompt := query.FormatContext(sub)
func NewRetriever(params NewRetrieverParams, opts ...RetrieverOption) *Retriever {
	r := &Retriever{
		maxHops:  params.MaxHops,
		maxNodes: params.MaxNodes,
		maxSeeds: params.MaxSeeds,
	}
	if r.maxHops <= 0 {
		r.maxHops = defaultMaxHops
	}
	if r.maxNodes <= 0 {
		r.maxNodes = defaultMaxNodes
	}
	if r.maxSeeds <= 0 {
		r.maxSeeds = defaultMaxSeeds
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(r)
	}
	return r
}
