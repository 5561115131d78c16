package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const (
	anthropicEndpoint  = "https://api.anthropic.com/v1/messages"
	anthropicVersion   = "2023-06-01"
	anthropicMaxTokens = 4096
)

// AnthropicDriver runs instructions against the Anthropic messages API.
type AnthropicDriver struct {
	httpClient *http.Client
	apiKey     string
	model      string
	endpoint   string
}

// NewAnthropicDriver creates a driver for the given model.
func NewAnthropicDriver(apiKey, model string) *AnthropicDriver {
	return &AnthropicDriver{
		httpClient: &http.Client{},
		apiKey:     apiKey,
		model:      model,
		endpoint:   anthropicEndpoint,
	}
}

// Name identifies the driver as provider/model.
func (d *AnthropicDriver) Name() string {
	return ProviderAnthropic + "/" + d.model
}

type anthropicRequest struct {
	Model       string        `json:"model"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
	Messages    []chatMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// Run sends the instruction as a single-turn message.
func (d *AnthropicDriver) Run(ctx context.Context, instruction string) (string, error) {
	body, err := json.Marshal(anthropicRequest{
		Model:       d.model,
		MaxTokens:   anthropicMaxTokens,
		Temperature: driverTemperature,
		Messages:    []chatMessage{{Role: "user", Content: instruction}},
	})
	if err != nil {
		return "", fmt.Errorf("encode message request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build message request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", d.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("anthropic request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("anthropic returned %d: %s", resp.StatusCode, detail)
	}

	var out anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode message response: %w", err)
	}
	for _, block := range out.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("anthropic returned no text content")
}
