package ai

// ModelInfo holds the context size and per-1K-token pricing of a model.
// Prices are approximate and only feed log estimates.
type ModelInfo struct {
	Name          string
	ContextTokens int
	InputPerK     float64
	OutputPerK    float64
}

var models = map[string]ModelInfo{
	"openai/gpt-4o-mini":          {Name: "openai/gpt-4o-mini", ContextTokens: 128000, InputPerK: 0.00015, OutputPerK: 0.0006},
	"openai/gpt-4o":               {Name: "openai/gpt-4o", ContextTokens: 128000, InputPerK: 0.0025, OutputPerK: 0.01},
	"anthropic/claude-3.5-haiku":  {Name: "anthropic/claude-3.5-haiku", ContextTokens: 200000, InputPerK: 0.0008, OutputPerK: 0.004},
	"google/gemini-2.0-flash-001": {Name: "google/gemini-2.0-flash-001", ContextTokens: 1000000, InputPerK: 0.0001, OutputPerK: 0.0004},
	"llama3.1:8b":                 {Name: "llama3.1:8b", ContextTokens: 8192},
	"qwen2.5:7b":                  {Name: "qwen2.5:7b", ContextTokens: 32768},
}

// LookupModel returns ModelInfo and ok flag.
func LookupModel(name string) (ModelInfo, bool) {
	mi, ok := models[name]
	return mi, ok
}

// ContextBudget returns a token budget for prompt excerpts: a quarter of the
// model's context window, capped at limit. Unknown models get limit.
func ContextBudget(model string, limit int) int {
	mi, ok := LookupModel(model)
	if !ok || mi.ContextTokens <= 0 {
		return limit
	}
	if b := mi.ContextTokens / 4; b < limit {
		return b
	}
	return limit
}

// EstimateCostUSD estimates total cost in USD for given tokens using model pricing.
// If the model is unknown, returns 0 and ok=false.
func EstimateCostUSD(model string, promptTokens, completionTokens int) (float64, bool) {
	mi, ok := LookupModel(model)
	if !ok {
		return 0, false
	}
	in := float64(promptTokens) / 1000.0 * mi.InputPerK
	out := float64(completionTokens) / 1000.0 * mi.OutputPerK
	return in + out, true
}
