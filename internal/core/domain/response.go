package domain

// Action is what the client should do with a DJResponse.
type Action string

const (
	ActionPlay           Action = "play"
	ActionQueue          Action = "queue"
	ActionCreatePlaylist Action = "create_playlist"
	ActionSkip           Action = "skip"
	ActionPause          Action = "pause"
	ActionQuestion       Action = "question"
)

// ParseAction maps a free-form action string to a known Action, defaulting to play.
func ParseAction(s string) Action {
	switch a := Action(s); a {
	case ActionPlay, ActionQueue, ActionCreatePlaylist, ActionSkip, ActionPause:
		return a
	default:
		return ActionPlay
	}
}

// ResponseMetadata carries descriptors of the turn's outcome.
type ResponseMetadata struct {
	Mood      string     `json:"mood,omitempty"`
	Energy    *float64   `json:"energy,omitempty"`
	Genre     string     `json:"genre,omitempty"`
	Questions []Question `json:"questions,omitempty"`
}

// DJResponse is returned to the caller for every turn.
type DJResponse struct {
	Message         string           `json:"message"`
	Recommendations []Track          `json:"recommendations"`
	Playlist        *Playlist        `json:"playlist,omitempty"`
	Action          Action           `json:"action"`
	Metadata        ResponseMetadata `json:"metadata"`
}

// TurnContext is optional client-supplied context for a turn.
type TurnContext struct {
	CurrentTrack *Track  `json:"currentTrack,omitempty"`
	Mood         string  `json:"mood,omitempty"`
	Genre        string  `json:"genre,omitempty"`
	Energy       float64 `json:"energy,omitempty"`
}

// TurnRequest is a single user turn.
type TurnRequest struct {
	UserID  string       `json:"userId"`
	Message string       `json:"message"`
	Context *TurnContext `json:"context,omitempty"`
}

// Interaction is the persisted log record of one turn.
type Interaction struct {
	ID                  string `json:"id"`
	UserID              string `json:"userId"`
	Request             string `json:"request"`
	Response            string `json:"response"`
	Action              Action `json:"action"`
	RecommendationCount int    `json:"recommendationCount"`
	Timestamp           int64  `json:"timestamp"`
}
