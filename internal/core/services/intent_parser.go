package services

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/ewilliams-labs/crossfade/internal/core/domain"
)

const (
	maxQuestions       = 3
	maxQuestionOptions = 5

	defaultQuestionMessage       = "Let me ask you a few questions to find the perfect music:"
	defaultRecommendationMessage = "Finding music for you..."
)

// ParseIntent turns a model reply into a normalized intent. Structured
// replies (maps, raw JSON) are normalized directly; text replies are searched
// for the first balanced JSON object. Anything that cannot be understood
// yields domain.DefaultRecommendation. ParseIntent never fails.
func ParseIntent(reply any) domain.Intent {
	switch v := reply.(type) {
	case map[string]any:
		return normalizeIntent(v)
	case json.RawMessage:
		return parseText(string(v))
	case []byte:
		return parseText(string(v))
	case string:
		return parseText(v)
	default:
		return fallbackIntent()
	}
}

func parseText(text string) domain.Intent {
	raw, ok := firstJSONObject(text)
	if !ok {
		return fallbackIntent()
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return fallbackIntent()
	}
	return normalizeIntent(payload)
}

func fallbackIntent() domain.Intent {
	rec := domain.DefaultRecommendation()
	return domain.Intent{Type: domain.IntentRecommendation, Recommendation: &rec}
}

// firstJSONObject returns the first balanced {...} substring of text, skipping
// braces that appear inside JSON string literals.
func firstJSONObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	for start != -1 {
		depth := 0
		inString := false
		escaped := false
		for i := start; i < len(text); i++ {
			c := text[i]
			if inString {
				switch {
				case escaped:
					escaped = false
				case c == '\\':
					escaped = true
				case c == '"':
					inString = false
				}
				continue
			}
			switch c {
			case '"':
				inString = true
			case '{':
				depth++
			case '}':
				depth--
				if depth == 0 {
					return text[start : i+1], true
				}
			}
		}
		next := strings.IndexByte(text[start+1:], '{')
		if next == -1 {
			break
		}
		start += next + 1
	}
	return "", false
}

func normalizeIntent(payload map[string]any) domain.Intent {
	if stringField(payload, "type") == string(domain.IntentQuestion) {
		q := &domain.QuestionIntent{
			Message:   stringOr(payload, "message", defaultQuestionMessage),
			Questions: normalizeQuestions(payload["questions"]),
		}
		return domain.Intent{Type: domain.IntentQuestion, Question: q}
	}

	action := domain.ParseAction(stringField(payload, "action"))
	rec := &domain.RecommendationIntent{
		Message:             stringOr(payload, "message", defaultRecommendationMessage),
		Strategy:            normalizeStrategy(payload["searchStrategy"]),
		Mood:                stringOr(payload, "mood", "neutral"),
		Genre:               stringField(payload, "genre"),
		Energy:              unitOr(payload, "energy", 0.5),
		Valence:             unitOr(payload, "valence", 0.5),
		Action:              action,
		CreatePlaylist:      action == domain.ActionCreatePlaylist,
		PlaylistName:        stringField(payload, "playlistName"),
		PlaylistDescription: stringField(payload, "playlistDescription"),
	}
	return domain.Intent{Type: domain.IntentRecommendation, Recommendation: rec}
}

func normalizeStrategy(v any) domain.SearchStrategy {
	m, ok := v.(map[string]any)
	if !ok {
		return domain.SearchStrategy{
			PlaylistQueries: []string{"top hits 2025"},
			TrackQueries:    []string{},
		}
	}
	return domain.SearchStrategy{
		PlaylistQueries: stringList(m["playlists"]),
		TrackQueries:    stringList(m["tracks"]),
	}
}

func normalizeQuestions(v any) []domain.Question {
	items, ok := v.([]any)
	if !ok {
		return []domain.Question{}
	}
	out := make([]domain.Question, 0, maxQuestions)
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		text := strings.TrimSpace(stringField(m, "question"))
		if text == "" {
			continue
		}
		options := stringList(m["options"])
		if len(options) > maxQuestionOptions {
			options = options[:maxQuestionOptions]
		}
		out = append(out, domain.Question{
			ID:       stringOr(m, "id", fmt.Sprintf("q%d", len(out)+1)),
			Question: text,
			Options:  options,
		})
		if len(out) == maxQuestions {
			break
		}
	}
	return out
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func stringOr(m map[string]any, key, fallback string) string {
	if s := stringField(m, key); s != "" {
		return s
	}
	return fallback
}

// unitOr reads a number in [0,1]. Numeric strings are accepted; values outside
// the range are clamped.
func unitOr(m map[string]any, key string, fallback float64) float64 {
	var f float64
	switch v := m[key].(type) {
	case float64:
		f = v
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return fallback
		}
		f = parsed
	default:
		return fallback
	}
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

func stringList(v any) []string {
	switch items := v.(type) {
	case []any:
		out := make([]string, 0, len(items))
		for _, item := range items {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		if strings.TrimSpace(items) == "" {
			return []string{}
		}
		return []string{items}
	default:
		return []string{}
	}
}
