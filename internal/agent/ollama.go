package agent

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"
)

// OllamaDriver runs instructions against a locally hosted model via the
// Ollama HTTP API.
type OllamaDriver struct {
	client *api.Client
	model  string
}

// NewOllamaDriver creates a driver for the Ollama instance at host.
func NewOllamaDriver(host, model string) (*OllamaDriver, error) {
	base, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("parse ollama host: %w", err)
	}
	return &OllamaDriver{
		client: api.NewClient(base, http.DefaultClient),
		model:  model,
	}, nil
}

// Name identifies the driver as provider/model.
func (d *OllamaDriver) Name() string {
	return ProviderOllama + "/" + d.model
}

// Run sends the instruction as a single generate request and returns the
// accumulated response.
func (d *OllamaDriver) Run(ctx context.Context, instruction string) (string, error) {
	stream := false
	req := &api.GenerateRequest{
		Model:  d.model,
		Prompt: instruction,
		Stream: &stream,
	}

	var out strings.Builder
	err := d.client.Generate(ctx, req, func(resp api.GenerateResponse) error {
		out.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama generate: %w", err)
	}
	return out.String(), nil
}
