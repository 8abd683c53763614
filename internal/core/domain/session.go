package domain

import (
	"strings"
	"time"
)

const (
	MaxMoodHistory      = 10
	MaxListeningHistory = 100
	DefaultEnergyPref   = 5
)

// PreferenceKind selects which preference AddPreference mutates.
type PreferenceKind string

const (
	PreferenceGenre  PreferenceKind = "genre"
	PreferenceArtist PreferenceKind = "artist"
	PreferenceEnergy PreferenceKind = "energy"
)

// Feedback is the user's reaction to a track.
type Feedback string

const (
	FeedbackLike    Feedback = "like"
	FeedbackDislike Feedback = "dislike"
	FeedbackSkip    Feedback = "skip"
)

type Preferences struct {
	FavoriteGenres   []string `json:"favoriteGenres"`
	FavoriteArtists  []string `json:"favoriteArtists"`
	EnergyPreference int      `json:"energyPreference"`
	MoodHistory      []string `json:"moodHistory"`
}

type HistoryEntry struct {
	TrackID   string   `json:"trackId"`
	Timestamp int64    `json:"timestamp"`
	Feedback  Feedback `json:"feedback,omitempty"`
}

// ConversationContext is the dialogue state carried between turns.
// QuestionsAsked and AnswersReceived drive the question/recommendation
// transition; AskedQuestions holds normalized question texts so a question
// is never repeated within a conversation.
type ConversationContext struct {
	Mood            string   `json:"mood"`
	Activity        string   `json:"activity"`
	TimeOfDay       string   `json:"timeOfDay"`
	QuestionsAsked  int      `json:"questionsAsked"`
	AnswersReceived int      `json:"answersReceived"`
	QuestionRounds  int      `json:"questionRounds"`
	AskedQuestions  []string `json:"askedQuestions,omitempty"`
	LastAnswer      string   `json:"lastAnswer,omitempty"`
}

// PendingQuestions reports whether questions were asked that are not answered yet.
func (c *ConversationContext) PendingQuestions() bool {
	return c != nil && c.QuestionsAsked > c.AnswersReceived
}

// WasAsked reports whether an equivalent question was already asked.
func (c *ConversationContext) WasAsked(question string) bool {
	if c == nil {
		return false
	}
	key := NormalizeQuestion(question)
	for _, q := range c.AskedQuestions {
		if q == key {
			return true
		}
	}
	return false
}

// NormalizeQuestion folds a question text for repeat detection.
func NormalizeQuestion(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(q))), " ")
}

type UserSession struct {
	UserID           string               `json:"userId"`
	SpotifyToken     string               `json:"spotifyToken,omitempty"`
	Preferences      Preferences          `json:"preferences"`
	ListeningHistory []HistoryEntry       `json:"listeningHistory"`
	CurrentContext   *ConversationContext `json:"currentContext,omitempty"`
}

// NewSession returns a default-initialized session for userID.
func NewSession(userID string) UserSession {
	return UserSession{
		UserID: userID,
		Preferences: Preferences{
			FavoriteGenres:   []string{},
			FavoriteArtists:  []string{},
			EnergyPreference: DefaultEnergyPref,
			MoodHistory:      []string{},
		},
		ListeningHistory: []HistoryEntry{},
	}
}

// AddPreference set-inserts genres and artists and overwrites the energy
// preference. Energy values must be integers in [0,10].
func (s *UserSession) AddPreference(kind PreferenceKind, value any) error {
	switch kind {
	case PreferenceGenre, PreferenceArtist:
		str, ok := value.(string)
		str = strings.TrimSpace(str)
		if !ok || str == "" {
			return ErrInvalidPreference
		}
		if kind == PreferenceGenre {
			s.Preferences.FavoriteGenres = appendUnique(s.Preferences.FavoriteGenres, str)
		} else {
			s.Preferences.FavoriteArtists = appendUnique(s.Preferences.FavoriteArtists, str)
		}
		return nil
	case PreferenceEnergy:
		level, ok := energyLevel(value)
		if !ok || level < 0 || level > 10 {
			return ErrInvalidPreference
		}
		s.Preferences.EnergyPreference = level
		return nil
	default:
		return ErrUnknownPreference
	}
}

// PushMood records mood as the most recent entry, keeping at most
// MaxMoodHistory entries. A mood already in the history moves to the end.
func (s *UserSession) PushMood(mood string) {
	if mood == "" {
		return
	}
	hist := make([]string, 0, len(s.Preferences.MoodHistory)+1)
	for _, m := range s.Preferences.MoodHistory {
		if m != mood {
			hist = append(hist, m)
		}
	}
	hist = append(hist, mood)
	if len(hist) > MaxMoodHistory {
		hist = hist[len(hist)-MaxMoodHistory:]
	}
	s.Preferences.MoodHistory = hist
}

// AppendHistory appends entry and keeps only the most recent MaxListeningHistory entries.
func (s *UserSession) AppendHistory(entry HistoryEntry) {
	s.ListeningHistory = append(s.ListeningHistory, entry)
	if n := len(s.ListeningHistory); n > MaxListeningHistory {
		trimmed := make([]HistoryEntry, MaxListeningHistory)
		copy(trimmed, s.ListeningHistory[n-MaxListeningHistory:])
		s.ListeningHistory = trimmed
	}
}

// SessionPatch is a shallow overwrite of session fields; nil fields are left alone.
type SessionPatch struct {
	SpotifyToken     *string              `json:"spotifyToken,omitempty"`
	Preferences      *Preferences         `json:"preferences,omitempty"`
	ListeningHistory []HistoryEntry       `json:"listeningHistory,omitempty"`
	CurrentContext   *ConversationContext `json:"currentContext,omitempty"`
}

// Apply overwrites the fields present in the patch. The user id never changes.
func (p SessionPatch) Apply(s *UserSession) {
	if p.SpotifyToken != nil {
		s.SpotifyToken = *p.SpotifyToken
	}
	if p.Preferences != nil {
		prefs := *p.Preferences
		prefs.FavoriteGenres = dedupe(prefs.FavoriteGenres)
		prefs.FavoriteArtists = dedupe(prefs.FavoriteArtists)
		if len(prefs.MoodHistory) > MaxMoodHistory {
			prefs.MoodHistory = prefs.MoodHistory[len(prefs.MoodHistory)-MaxMoodHistory:]
		}
		s.Preferences = prefs
	}
	if p.ListeningHistory != nil {
		s.ListeningHistory = nil
		for _, e := range p.ListeningHistory {
			s.AppendHistory(e)
		}
	}
	if p.CurrentContext != nil {
		ctx := *p.CurrentContext
		s.CurrentContext = &ctx
	}
}

// TimeOfDay buckets a wall-clock time into morning, afternoon or evening.
func TimeOfDay(t time.Time) string {
	switch h := t.Hour(); {
	case h < 12:
		return "morning"
	case h < 18:
		return "afternoon"
	default:
		return "evening"
	}
}

func appendUnique(list []string, v string) []string {
	for _, ex := range list {
		if ex == v {
			return list
		}
	}
	return append(list, v)
}

func dedupe(list []string) []string {
	out := make([]string, 0, len(list))
	for _, v := range list {
		out = appendUnique(out, v)
	}
	return out
}

func energyLevel(value any) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		if v != float64(int(v)) {
			return 0, false
		}
		return int(v), true
	default:
		return 0, false
	}
}
