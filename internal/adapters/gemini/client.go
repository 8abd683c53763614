// Package gemini adapts Google's Gemini API to the LanguageModel port.
package gemini

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/ewilliams-labs/crossfade/internal/core/ports"
)

const (
	DefaultModel       = "gemini-2.0-flash"
	defaultTemperature = 0.7
)

type Client struct {
	client      *genai.Client
	model       string
	temperature float32
}

var _ ports.LanguageModel = (*Client)(nil)

type config struct {
	model       string
	temperature float32
	baseURL     string
	httpClient  *http.Client
}

// Option configures a Client.
type Option func(*config)

func WithModel(model string) Option {
	return func(c *config) {
		if model != "" {
			c.model = model
		}
	}
}

func WithTemperature(t float32) Option {
	return func(c *config) {
		if t > 0 {
			c.temperature = t
		}
	}
}

// WithEndpoint points the client at a different API host and transport.
func WithEndpoint(baseURL string, httpClient *http.Client) Option {
	return func(c *config) {
		c.baseURL = baseURL
		c.httpClient = httpClient
	}
}

// NewClient creates a Gemini-backed model. An API key is required.
func NewClient(ctx context.Context, apiKey string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("gemini: API key is required")
	}
	cfg := config{model: DefaultModel, temperature: defaultTemperature}
	for _, opt := range opts {
		opt(&cfg)
	}

	cc := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.httpClient,
	}
	if cfg.baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.baseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &Client{client: client, model: cfg.model, temperature: cfg.temperature}, nil
}

// Infer asks the model for a JSON reply to the given prompts.
func (c *Client) Infer(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(userPrompt), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		ResponseMIMEType:  "application/json",
		Temperature:       genai.Ptr(c.temperature),
	})
	if err != nil {
		return "", fmt.Errorf("gemini: generate: %w", err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("gemini: empty response")
	}
	return text, nil
}
