package cmd

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/KaramelBytes/keiba-ai/data"
	"github.com/KaramelBytes/keiba-ai/internal/ai"
	"github.com/KaramelBytes/keiba-ai/internal/apperr"
	cfgpkg "github.com/KaramelBytes/keiba-ai/internal/config"
	"github.com/KaramelBytes/keiba-ai/internal/metrics"
	"github.com/KaramelBytes/keiba-ai/internal/predict"
	"github.com/KaramelBytes/keiba-ai/internal/prompt"
	"github.com/KaramelBytes/keiba-ai/internal/racecard"
	"github.com/spf13/cobra"
)

// pipelineFlags are shared by predict, evaluate and sign.
type pipelineFlags struct {
	file     string
	url      string
	noLLM    bool
	provider string
	model    string
	jsonOut  bool
}

func (p *pipelineFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&p.file, "file", "f", "", "read the race card from a local .xlsx/.csv file instead of data_url")
	cmd.Flags().StringVar(&p.url, "url", "", "race card URL (overrides data_url)")
	cmd.Flags().BoolVar(&p.noLLM, "no-llm", false, "skip the LLM and print local results only")
	cmd.Flags().StringVar(&p.provider, "provider", "", "LLM provider: openrouter or ollama (overrides default_provider)")
	cmd.Flags().StringVar(&p.model, "model", "", "LLM model (overrides default_model)")
	cmd.Flags().BoolVar(&p.jsonOut, "json", false, "print the result as JSON")
}

// fileSource reads a race card from a local file.
type fileSource struct{ path string }

func (s fileSource) Load(context.Context) (*racecard.Dataset, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, apperr.New(apperr.KindDataUnavailable, "read "+s.path, err)
	}
	metrics.RecordDataLoad(metrics.SourceUpload)
	return racecard.FromUpload(filepath.Base(s.path), raw)
}

func newLoader(c *cfgpkg.Global, url string) *racecard.Loader {
	if url == "" {
		url = c.DataURL
	}
	return &racecard.Loader{
		HTTPClient:   &http.Client{Timeout: c.FetchTimeout() + 5*time.Second},
		URL:          url,
		FallbackPath: c.SamplePath,
		Bundled:      data.SampleRacecard,
		BundledName:  data.SampleName,
		Timeout:      c.FetchTimeout(),
		CacheTTL:     c.DataCacheTTL(),
		Log:          logger(),
	}
}

func (p *pipelineFlags) source(c *cfgpkg.Global) predict.Source {
	if p.file != "" {
		return fileSource{path: p.file}
	}
	return newLoader(c, p.url)
}

// buildGateway picks the LLM backend. disabled yields a nil gateway (local
// results only); a missing OpenRouter key yields a DisabledGateway so every
// view carries a warning saying why there is no narrative.
func buildGateway(c *cfgpkg.Global, provider, model string, disabled bool) (ai.Gateway, int, error) {
	if disabled {
		return nil, 0, nil
	}
	if provider == "" {
		provider = c.DefaultProvider
	}
	provider, err := cfgpkg.NormalizeProvider(provider)
	if err != nil {
		return nil, 0, err
	}
	if model == "" {
		model = c.DefaultModel
	}
	if provider == ai.ProviderOpenRouter && c.APIKey == "" {
		return ai.DisabledGateway{Reason: "no api_key configured (set KEIBA_API_KEY or run: keiba config set api_key <key>)"}, 0, nil
	}
	rt, err := ai.MustRuntime(provider, ai.RuntimeConfig{
		HTTPTimeout: time.Duration(c.HTTPTimeoutSec) * time.Second,
		RetryMax:    c.RetryMaxAttempts,
		BaseDelay:   time.Duration(c.RetryBaseDelayMs) * time.Millisecond,
		MaxDelay:    time.Duration(c.RetryMaxDelayMs) * time.Millisecond,
		APIKey:      c.APIKey,
		Host:        c.OllamaHost,
	})
	if err != nil {
		return nil, 0, err
	}
	gw := ai.NewGateway(rt, ai.GatewayConfig{
		Model:         model,
		System:        prompt.System,
		MaxTokens:     c.MaxTokens,
		Temperature:   c.Temperature,
		Timeout:       c.LLMTimeout(),
		RatePerMinute: c.LLMRatePerMin,
	}, logger().WithField("provider", provider))
	return gw, ai.ContextBudget(model, prompt.DefaultExcerptTokens), nil
}

func newService(c *cfgpkg.Global, p *pipelineFlags) (*predict.Service, error) {
	gw, budget, err := buildGateway(c, p.provider, p.model, p.noLLM)
	if err != nil {
		return nil, err
	}
	return &predict.Service{
		Gateway: gw,
		Prompts: prompt.Builder{ExcerptTokens: budget},
		Log:     logger(),
	}, nil
}
