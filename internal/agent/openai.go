package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const openAIEndpoint = "https://api.openai.com/v1/chat/completions"

// driverTemperature keeps automation output deterministic-ish across providers.
const driverTemperature = 0.1

// OpenAIDriver runs instructions against the OpenAI chat completions API.
type OpenAIDriver struct {
	httpClient *http.Client
	apiKey     string
	model      string
	endpoint   string
}

// NewOpenAIDriver creates a driver for the given model.
func NewOpenAIDriver(apiKey, model string) *OpenAIDriver {
	return &OpenAIDriver{
		httpClient: &http.Client{},
		apiKey:     apiKey,
		model:      model,
		endpoint:   openAIEndpoint,
	}
}

// Name identifies the driver as provider/model.
func (d *OpenAIDriver) Name() string {
	return ProviderOpenAI + "/" + d.model
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Temperature float64       `json:"temperature"`
	Messages    []chatMessage `json:"messages"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Run sends the instruction as a single-turn chat completion.
func (d *OpenAIDriver) Run(ctx context.Context, instruction string) (string, error) {
	body, err := json.Marshal(chatCompletionRequest{
		Model:       d.model,
		Temperature: driverTemperature,
		Messages:    []chatMessage{{Role: "user", Content: instruction}},
	})
	if err != nil {
		return "", fmt.Errorf("encode chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+d.apiKey)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("openai request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("openai returned %d: %s", resp.StatusCode, detail)
	}

	var out chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("openai returned no choices")
	}
	return out.Choices[0].Message.Content, nil
}
