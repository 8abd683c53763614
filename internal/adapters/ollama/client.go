// Package ollama provides an adapter for the Ollama LLM service.
// It sends the dialogue prompts to a local Ollama instance in JSON mode and
// returns the raw reply text for intent parsing.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ewilliams-labs/crossfade/internal/core/ports"
)

const (
	defaultBaseURL     = "http://localhost:11434"
	DefaultModel       = "llama3.1:8b"
	defaultTemperature = 0.7
	defaultMaxTokens   = 300
)

type Client struct {
	baseURL     string
	model       string
	temperature float64
	maxTokens   int
	httpClient  *http.Client
}

var _ ports.LanguageModel = (*Client)(nil)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Format   string        `json:"format,omitempty"`
	Options  chatOptions   `json:"options"`
}

type chatResponse struct {
	Message chatMessage `json:"message"`
	Error   string      `json:"error,omitempty"`
}

// Option configures a Client.
type Option func(*Client)

func WithModel(model string) Option {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithSampling sets temperature and the reply token budget; zero values keep defaults.
func WithSampling(temperature float64, maxTokens int) Option {
	return func(c *Client) {
		if temperature > 0 {
			c.temperature = temperature
		}
		if maxTokens > 0 {
			c.maxTokens = maxTokens
		}
	}
}

func NewClient(baseURL string, opts ...Option) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	c := &Client{
		baseURL:     baseURL,
		model:       DefaultModel,
		temperature: defaultTemperature,
		maxTokens:   defaultMaxTokens,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Infer sends one system and one user message and returns the assistant reply.
func (c *Client) Infer(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	payload := chatRequest{
		Model:  c.model,
		Stream: false,
		Format: "json",
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Options: chatOptions{Temperature: c.temperature, NumPredict: c.maxTokens},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("ollama: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("ollama: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("ollama: unexpected status %d", resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("ollama: decode response: %w", err)
	}
	if parsed.Error != "" {
		return "", fmt.Errorf("ollama: %s", parsed.Error)
	}

	content := strings.TrimSpace(parsed.Message.Content)
	if content == "" {
		return "", fmt.Errorf("ollama: empty response")
	}
	return content, nil
}
