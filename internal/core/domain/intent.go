package domain

// IntentType tags the two intent variants.
type IntentType string

const (
	IntentQuestion       IntentType = "question"
	IntentRecommendation IntentType = "recommendation"
)

// Question is a single clarifying question with its answer options.
type Question struct {
	ID       string   `json:"id"`
	Question string   `json:"question"`
	Options  []string `json:"options"`
}

// SearchStrategy holds free-text, genre/mood-only catalog queries.
type SearchStrategy struct {
	PlaylistQueries []string `json:"playlists"`
	TrackQueries    []string `json:"tracks"`
}

// QuestionIntent asks the user for more information.
type QuestionIntent struct {
	Message   string     `json:"message"`
	Questions []Question `json:"questions"`
}

// RecommendationIntent is a ready-to-execute recommendation directive.
type RecommendationIntent struct {
	Message             string         `json:"message"`
	Strategy            SearchStrategy `json:"searchStrategy"`
	Mood                string         `json:"mood"`
	Genre               string         `json:"genre,omitempty"`
	Energy              float64        `json:"energy"`
	Valence             float64        `json:"valence"`
	Action              Action         `json:"action"`
	CreatePlaylist      bool           `json:"createPlaylist"`
	PlaylistName        string         `json:"playlistName,omitempty"`
	PlaylistDescription string         `json:"playlistDescription,omitempty"`
}

// Intent is the normalized interpretation of a model reply. Exactly one of
// Question or Recommendation is set, matching Type.
type Intent struct {
	Type           IntentType
	Question       *QuestionIntent
	Recommendation *RecommendationIntent
}

// IsQuestion reports whether the intent asks clarifying questions.
func (i Intent) IsQuestion() bool {
	return i.Type == IntentQuestion && i.Question != nil
}

// DefaultRecommendation is the intent used whenever a model reply cannot be
// understood.
func DefaultRecommendation() RecommendationIntent {
	return RecommendationIntent{
		Message: "Let me find some music for you!",
		Strategy: SearchStrategy{
			PlaylistQueries: []string{"today's top hits"},
			TrackQueries:    []string{},
		},
		Mood:           "neutral",
		Energy:         0.5,
		Valence:        0.5,
		Action:         ActionPlay,
		CreatePlaylist: false,
	}
}
