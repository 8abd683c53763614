package ports

import "context"

// LanguageModel is the opaque intent-classifier collaborator: a system and a
// user prompt in, free-form text (usually JSON) out.
type LanguageModel interface {
	Infer(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}
