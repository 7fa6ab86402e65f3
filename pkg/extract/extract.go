package extract

import (
	"context"
	"errors"

	"github.com/stratagraph/strata/pkg/common"
)

// ErrMalformed indicates that a backend call succeeded but its payload could
// not be decoded into the expected structure, even after repair. Callers treat
// it as an empty result rather than a build-stopping failure.
var ErrMalformed = errors.New("malformed extractor output")

// TaskProfile selects the extraction behavior for a single call. Span
// profiles (backbone, local facts, drill-down) apply to Extract; directive
// profiles (resolution, pruning) apply to Resolve.
type TaskProfile string

const (
	// TaskBackbone extracts the document-level skeleton in one pass.
	TaskBackbone TaskProfile = "backbone"
	// TaskLocalFacts extracts the explicit facts of a single large span.
	TaskLocalFacts TaskProfile = "local_facts"
	// TaskDrilldown extracts fine-grained relations from a small span.
	TaskDrilldown TaskProfile = "drilldown"
	// TaskResolution groups node labels that name the same entity.
	TaskResolution TaskProfile = "resolution"
	// TaskPruning flags low-value edges for removal.
	TaskPruning TaskProfile = "pruning"
)

// Result is the outcome of a span extraction: the candidate triples found in
// the span plus a short free-text summary of the span itself.
type Result struct {
	Summary string
	Triples []common.Triple
}

// Directives is the outcome of a directive call. A resolution call fills
// MergeGroups (each group lists labels believed to name one entity); a
// pruning call fills Prunes.
type Directives struct {
	MergeGroups [][]string
	Prunes      []common.PruneDirective
}

// Client is the extraction seam consumed by the build pipeline. The engine
// depends only on this interface; production implementations drive an LLM,
// tests substitute a fixture-backed fake.
type Client interface {
	Extract(ctx context.Context, span string, profile TaskProfile) (*Result, error)
	Resolve(ctx context.Context, edges []common.Edge, profile TaskProfile) (*Directives, error)
	Bridge(ctx context.Context, main []common.Edge, fragment []common.Edge) ([]common.Triple, error)
}

// GenerateOptions holds configuration for generation requests.
type GenerateOptions struct {
	Model         string   // Model identifier to use for generation
	SystemPrompts []string // System prompts prepended to the request
	Temperature   float64  // Sampling temperature (0.0-2.0)
	Thinking      string   // Extended thinking mode configuration
}

// GenerateOption is a functional option for configuring generation requests.
type GenerateOption func(*GenerateOptions)

// WithModel returns a GenerateOption that sets the model to use for generation.
func WithModel(model string) GenerateOption {
	return func(o *GenerateOptions) {
		o.Model = model
	}
}

// WithSystemPrompts returns a GenerateOption that sets the system prompts
// to prepend to the generation request.
func WithSystemPrompts(prompts ...string) GenerateOption {
	return func(o *GenerateOptions) {
		o.SystemPrompts = prompts
	}
}

// WithTemperature returns a GenerateOption that sets the sampling temperature.
// Higher values (e.g., 1.0) produce more random outputs, while lower values
// (e.g., 0.2) make outputs more focused and deterministic.
func WithTemperature(temp float64) GenerateOption {
	return func(o *GenerateOptions) {
		o.Temperature = temp
	}
}

// WithThinking returns a GenerateOption that enables extended thinking mode.
// The thinking parameter specifies the thinking budget or mode configuration.
func WithThinking(thinking string) GenerateOption {
	return func(o *GenerateOptions) {
		o.Thinking = thinking
	}
}

// ModelMetrics contains accumulated performance metrics from model calls.
type ModelMetrics struct {
	InputTokens    int     `json:"input_tokens"`
	OutputTokens   int     `json:"output_tokens"`
	TotalTokens    int     `json:"total_tokens"`
	DurationMs     int64   `json:"duration_ms"`
	TokenPerSecond float32 `json:"tokens_per_second"`
}

// Generator is the backend seam below the production extractor: a model that
// can produce schema-constrained structured output. Implemented by the
// openai and ollama subpackages.
type Generator interface {
	GenerateCompletionWithFormat(
		ctx context.Context,
		name string,
		description string,
		prompt string,
		out any,
		opts ...GenerateOption,
	) error
	GetMetrics() ModelMetrics
	ResetMetrics()
}
