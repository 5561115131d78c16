package agent

import (
	"context"
	"fmt"
)

// Supported automation engine providers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
)

// Driver is the interface to the external automation engine. Run executes
// one natural-language instruction to completion and returns the engine's
// raw output. The context carries the deadline; drivers should abandon work
// when it fires, though the gateway stops waiting regardless.
type Driver interface {
	Run(ctx context.Context, instruction string) (string, error)
	Name() string
}

// Screenshotter is an optional capability a driver may implement to capture
// a screenshot of its final state.
type Screenshotter interface {
	Screenshot(ctx context.Context) ([]byte, error)
}

// NewDriver constructs the driver for the configured provider. The provider
// is bound once at process start; tasks carry no routing information.
func NewDriver(provider, model, ollamaHost, apiKey string) (Driver, error) {
	switch provider {
	case ProviderOllama:
		return NewOllamaDriver(ollamaHost, model)
	case ProviderOpenAI:
		return NewOpenAIDriver(apiKey, model), nil
	case ProviderAnthropic:
		return NewAnthropicDriver(apiKey, model), nil
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", provider)
	}
}
