package ai

import "context"

// Runtime is implemented by chat backends such as OpenRouter and a local
// Ollama daemon.
type Runtime interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
}

// Provider identifiers accepted by default_provider.
const (
	ProviderOpenRouter = "openrouter"
	ProviderOllama     = "ollama"
)
