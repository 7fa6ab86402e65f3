package ollama

import (
	"net/http"
	"net/url"
	"sync"

	"github.com/ollama/ollama/api"
	"golang.org/x/sync/semaphore"

	"github.com/stratagraph/strata/pkg/extract"
)

// OllamaGenerator is an extract.Generator backed by a locally-hosted Ollama
// server. Structured output is enforced through Ollama's format parameter,
// and in-flight requests are bounded by a weighted semaphore so a small
// server is not overwhelmed by the build worker pool.
type OllamaGenerator struct {
	model string

	reqLock *semaphore.Weighted

	metricsLock sync.Mutex
	metrics     extract.ModelMetrics

	baseURL    *url.URL
	apiKey     string
	httpClient *http.Client

	Client *api.Client
}

// NewOllamaGeneratorParams contains configuration options for creating a new
// OllamaGenerator.
type NewOllamaGeneratorParams struct {
	Model string

	BaseURL string
	ApiKey  string

	MaxConcurrentRequests int64
}

type headerTransport struct {
	headers map[string]string
	rt      http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// clone so original request isn't modified
	r := req.Clone(req.Context())
	for k, v := range t.headers {
		// don't overwrite if already set
		if r.Header.Get(k) == "" {
			r.Header.Set(k, v)
		}
	}
	return t.rt.RoundTrip(r)
}

// NewOllamaGenerator creates a new Ollama-backed generator with the specified
// configuration. It connects to the Ollama server at the given BaseURL (or
// the default if empty) and uses the configured model for completions.
func NewOllamaGenerator(params NewOllamaGeneratorParams) (*OllamaGenerator, error) {
	var (
		u   *url.URL
		err error
	)

	if params.BaseURL != "" {
		u, err = url.Parse(params.BaseURL)
		if err != nil {
			return nil, err
		}
	}

	httpClient := &http.Client{
		Transport: &headerTransport{
			headers: map[string]string{
				"Authorization": "Bearer " + params.ApiKey,
			},
			rt: http.DefaultTransport,
		},
	}

	cli := api.NewClient(u, httpClient)

	maxConcurrent := params.MaxConcurrentRequests
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	sem := semaphore.NewWeighted(maxConcurrent)

	return &OllamaGenerator{
		model: params.Model,

		reqLock: sem,

		metricsLock: sync.Mutex{},
		metrics:     extract.ModelMetrics{},

		baseURL:    u,
		apiKey:     params.ApiKey,
		httpClient: httpClient,

		Client: cli,
	}, nil
}
