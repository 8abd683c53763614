package services

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ewilliams-labs/crossfade/internal/core/domain"
)

// DefaultMaxQuestionRounds bounds how many question turns a conversation may
// take before a recommendation is forced.
const DefaultMaxQuestionRounds = 2

const activityAnswered = "answered_question"

type turnKind int

const (
	// turnFresh is a new request; the model may ask questions.
	turnFresh turnKind = iota
	// turnFollowUp is a partial answer; the model may ask one more round.
	turnFollowUp
	// turnForce requires a recommendation.
	turnForce
)

func (k turnKind) String() string {
	switch k {
	case turnFollowUp:
		return "follow_up"
	case turnForce:
		return "force_recommendation"
	default:
		return "fresh"
	}
}

// turnClass is the classification of one user message against the
// conversation context.
type turnClass struct {
	kind      turnKind
	answer    bool
	answers   int
	impatient bool
}

var (
	impatiencePhrases = []string{"just play", "stop asking", "no more questions"}
	answerPrefixRE    = regexp.MustCompile(`(?i)^\s*(option \d|choice \d|\d\.)`)
	answerMarkerRE    = regexp.MustCompile(`(?i)q\d:|option|choice`)
	songReferenceRE   = regexp.MustCompile(`(?i)(?:songs?\s+)?like\s+["']?([^"']+?)["']?\s+by\s+([^"',]+)`)
)

// classifyTurn decides how the model should treat message. Impatience wins
// over everything; answers are counted against the questions still pending.
func classifyTurn(message string, cc *domain.ConversationContext, maxRounds int) turnClass {
	lower := strings.ToLower(message)

	for _, p := range impatiencePhrases {
		if strings.Contains(lower, p) {
			return turnClass{kind: turnForce, impatient: true}
		}
	}

	explicit := strings.Contains(message, "I choose:") || answerPrefixRE.MatchString(message)
	answered := cc != nil && cc.Activity == activityAnswered
	if cc.PendingQuestions() || explicit || answered {
		markers := len(answerMarkerRE.FindAllString(message, -1))
		answers := markers
		if answers < 1 {
			answers = 1
		}
		cls := turnClass{kind: turnFollowUp, answer: true, answers: answers}
		asked, received := 0, answers
		if cc != nil {
			asked = cc.QuestionsAsked
			received += cc.AnswersReceived
		}
		if received >= asked || markers >= 2 || strings.Contains(lower, "now give me") {
			cls.kind = turnForce
		}
		if cls.kind != turnForce && cc != nil && maxRounds > 0 && cc.QuestionRounds >= maxRounds {
			cls.kind = turnForce
		}
		return cls
	}

	if cc != nil && maxRounds > 0 && cc.QuestionRounds >= maxRounds {
		return turnClass{kind: turnForce}
	}
	return turnClass{kind: turnFresh}
}

// songReference extracts a "songs like <title> by <artist>" reference.
func songReference(message string) (title, artist string, ok bool) {
	m := songReferenceRE.FindStringSubmatch(message)
	if m == nil {
		return "", "", false
	}
	title, artist = strings.TrimSpace(m[1]), strings.TrimSpace(m[2])
	if title == "" || artist == "" {
		return "", "", false
	}
	return title, artist, true
}

// filterQuestions caps the question set and drops questions already asked in
// this conversation.
func filterQuestions(qs []domain.Question, cc *domain.ConversationContext) []domain.Question {
	out := make([]domain.Question, 0, maxQuestions)
	seen := make(map[string]struct{})
	for _, q := range qs {
		key := domain.NormalizeQuestion(q.Question)
		if key == "" || cc.WasAsked(q.Question) {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		if len(q.Options) > maxQuestionOptions {
			q.Options = q.Options[:maxQuestionOptions]
		}
		out = append(out, q)
		if len(out) == maxQuestions {
			break
		}
	}
	return out
}

const systemPromptBase = `You are a DJ assistant that helps people discover music on Spotify.
Reply with exactly one JSON object and nothing else. There are two reply shapes.

1. Clarifying questions, when the request is too vague to act on:
{
  "type": "question",
  "message": "short friendly intro",
  "questions": [
    {"id": "q1", "question": "first question", "options": ["a", "b", "c", "d"]},
    {"id": "q2", "question": "second question", "options": ["a", "b", "c"]}
  ]
}
Ask 2 or 3 complementary questions in a single reply, each with 3 to 5 distinct options.
Never repeat a question that was already asked in this conversation.

2. A recommendation:
{
  "type": "recommendation",
  "message": "short friendly reply",
  "searchStrategy": {
    "playlists": ["playlist search terms", "another angle"],
    "tracks": ["genre or mood search terms"]
  },
  "energy": 0.5,
  "valence": 0.5,
  "mood": "mellow|chill|introspective|upbeat|energetic|melancholic|romantic|focus|party",
  "genre": "optional main genre",
  "action": "play|queue|create_playlist",
  "playlistName": "optional, only with create_playlist",
  "playlistDescription": "optional, only with create_playlist"
}
Give 2 or 3 playlist searches that explore different angles and 1 or 2 track searches.

Search rules:
- Search terms use only genre, mood, era, activity and vibe words.
- Never put artist names, song titles or album names into search terms.
- When a song is referenced, describe its style instead of naming it.
- Energy and valence are between 0.0 and 1.0; default both to 0.5.
- Default mood is mellow or chill unless the request clearly calls for more.
- Use "create_playlist" only when the user asks for a playlist.
- Once the user has answered your questions, always reply with a recommendation.`

// buildSystemPrompt renders the fixed reply schema plus what the session
// knows about the user.
func buildSystemPrompt(session domain.UserSession, cls turnClass) string {
	var b strings.Builder
	b.WriteString(systemPromptBase)
	b.WriteString("\n\nUser context:\n")

	cc := session.CurrentContext
	switch {
	case cc == nil || cc.QuestionsAsked == 0:
		b.WriteString("Question round: first interaction\n")
	default:
		fmt.Fprintf(&b, "Question round: %d asked, %d answered\n", cc.QuestionsAsked, cc.AnswersReceived)
	}
	if cc != nil && cc.LastAnswer != "" {
		fmt.Fprintf(&b, "Previous answers: %s\n", cc.LastAnswer)
	}
	if cc != nil && len(cc.AskedQuestions) > 0 {
		fmt.Fprintf(&b, "Already asked: %s\n", strings.Join(cc.AskedQuestions, "; "))
	}
	fmt.Fprintf(&b, "Favorite genres: %s\n", listOr(session.Preferences.FavoriteGenres, "none specified"))
	fmt.Fprintf(&b, "Favorite artists: %s\n", listOr(session.Preferences.FavoriteArtists, "none specified"))
	fmt.Fprintf(&b, "Energy preference: %d/10\n", session.Preferences.EnergyPreference)
	if n := len(session.Preferences.MoodHistory); n > 0 {
		fmt.Fprintf(&b, "Recent mood: %s\n", session.Preferences.MoodHistory[n-1])
	}
	if cls.kind == turnForce {
		b.WriteString("\nYou MUST reply with type \"recommendation\" this turn.")
	}
	return b.String()
}

// buildUserPrompt annotates the raw message according to the turn class.
func buildUserPrompt(req domain.TurnRequest, session domain.UserSession, cls turnClass, reference *domain.Track) string {
	var b strings.Builder

	switch {
	case cls.impatient:
		fmt.Fprintf(&b, "The user wants music now, with no more questions.\n\nOriginal request: %s\n\n", req.Message)
		b.WriteString(`Skip all questions and reply with type "recommendation" immediately.`)
	case cls.answer && cls.kind == turnForce:
		fmt.Fprintf(&b, "The user has answered your questions. Recommend music now.\n\nUser's answers: %s\n\n", req.Message)
		b.WriteString(`You MUST reply with type "recommendation". Do not ask more questions.`)
	case cls.answer:
		fmt.Fprintf(&b, "The user answered some of your questions. Ask at most one more short round, or recommend if you have enough context.\n\nUser's answer: %s", req.Message)
	case cls.kind == turnForce:
		fmt.Fprintf(&b, "%s\n\nEnough questions have been asked. Reply with type \"recommendation\".", req.Message)
	default:
		b.WriteString(req.Message)
	}

	if reference != nil {
		fmt.Fprintf(&b, "\n\nContext: the user referenced %q by %s (popularity %d).", reference.Name, reference.PrimaryArtist(), reference.Popularity)
		b.WriteString("\nMatch that song's likely style and tempo in the search terms; do not assume party energy unless the song is upbeat.")
	}

	if tc := req.Context; tc != nil {
		if tc.CurrentTrack != nil {
			names := make([]string, 0, len(tc.CurrentTrack.Artists))
			for _, a := range tc.CurrentTrack.Artists {
				names = append(names, a.Name)
			}
			fmt.Fprintf(&b, "\nCurrently playing: %s by %s", tc.CurrentTrack.Name, strings.Join(names, ", "))
		}
		if tc.Mood != "" {
			fmt.Fprintf(&b, "\nClient mood: %s", tc.Mood)
		}
		if tc.Genre != "" {
			fmt.Fprintf(&b, "\nClient genre: %s", tc.Genre)
		}
	}

	if cc := session.CurrentContext; cc != nil {
		activity := cc.Activity
		if activity == "" {
			activity = "none"
		}
		fmt.Fprintf(&b, "\nPrevious interaction: %s during %s", activity, cc.TimeOfDay)
	}
	return b.String()
}

func listOr(values []string, fallback string) string {
	if len(values) == 0 {
		return fallback
	}
	return strings.Join(values, ", ")
}
