package openai

import (
	"sync"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/stratagraph/strata/pkg/extract"
)

// OpenAIGenerator is an extract.Generator backed by any endpoint speaking the
// OpenAI chat completion protocol. Structured output is enforced through JSON
// schema response formats.
//
// An OpenAIGenerator should be created using NewOpenAIGenerator.
type OpenAIGenerator struct {
	model string

	baseURL string
	apiKey  string

	metricsLock sync.Mutex
	metrics     extract.ModelMetrics

	Client *openai.Client
}

// NewOpenAIGeneratorParams defines the configuration for creating a new
// OpenAIGenerator.
//
// Model is the default chat model; calls may override it per request.
// BaseURL configures a non-OpenAI endpoint speaking the same protocol and
// may be empty for the official API.
type NewOpenAIGeneratorParams struct {
	Model string

	BaseURL string
	APIKey  string
}

// NewOpenAIGenerator creates and returns an OpenAIGenerator configured with
// the provided parameters.
//
// Example:
//
//	params := openai.NewOpenAIGeneratorParams{
//		Model:  "gpt-4o-mini",
//		APIKey: os.Getenv("OPENAI_API_KEY"),
//	}
//	gen := openai.NewOpenAIGenerator(params)
func NewOpenAIGenerator(params NewOpenAIGeneratorParams) *OpenAIGenerator {
	options := []option.RequestOption{
		option.WithAPIKey(params.APIKey),
	}
	if params.BaseURL != "" {
		options = append(options, option.WithBaseURL(params.BaseURL))
	}

	client := openai.NewClient(options...)

	return &OpenAIGenerator{
		model: params.Model,

		baseURL: params.BaseURL,
		apiKey:  params.APIKey,

		metricsLock: sync.Mutex{},
		metrics:     extract.ModelMetrics{},

		Client: &client,
	}
}
