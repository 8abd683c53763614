package ollama

import (
	"context"
	"os"
	"testing"

	"github.com/ewilliams-labs/crossfade/internal/core/services"
)

// TestClient_Infer_Integration tests against a live Ollama instance.
// This test is skipped unless RUN_AI_TESTS=true is set.
func TestClient_Infer_Integration(t *testing.T) {
	if os.Getenv("RUN_AI_TESTS") != "true" {
		t.Skip("Skipping AI-dependent test (set RUN_AI_TESTS=true to enable)")
	}

	ollamaHost := os.Getenv("OLLAMA_HOST")
	if ollamaHost == "" {
		ollamaHost = defaultBaseURL
	}

	client := NewClient(ollamaHost, WithModel(os.Getenv("OLLAMA_MODEL")))

	system := `Reply with JSON only: {"type":"recommendation","message":"...","mood":"...","energy":0.5,"genre":"...","searchStrategy":{"playlists":["..."],"tracks":["..."]}}`

	tests := []struct {
		name    string
		message string
	}{
		{
			name:    "Simple artist request",
			message: "I want some tracks by Willie Nelson",
		},
		{
			name:    "Complex vibe request",
			message: "Give me a chill acoustic set with low energy, nothing too upbeat",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reply, err := client.Infer(context.Background(), system, tt.message)
			if err != nil {
				t.Fatalf("Infer() error = %v", err)
			}

			intent := services.ParseIntent(reply)
			if !intent.IsQuestion() && intent.Recommendation == nil {
				t.Errorf("expected a parsed intent, got %+v", intent)
			}
			t.Logf("Reply: %s", reply)
		})
	}
}
