package services

import (
	"strings"
	"testing"

	"github.com/ewilliams-labs/crossfade/internal/core/domain"
)

func TestClassifyTurn(t *testing.T) {
	pending := &domain.ConversationContext{QuestionsAsked: 3, QuestionRounds: 1}
	partial := &domain.ConversationContext{QuestionsAsked: 3, AnswersReceived: 1, QuestionRounds: 1}
	exhausted := &domain.ConversationContext{QuestionRounds: 2}

	tests := []struct {
		name        string
		message     string
		ctx         *domain.ConversationContext
		wantKind    turnKind
		wantAnswers int
	}{
		{name: "fresh request", message: "I want music for a party", wantKind: turnFresh},
		{name: "impatience wins", message: "just play something already", ctx: pending, wantKind: turnForce},
		{name: "stop asking", message: "please STOP ASKING me things", wantKind: turnForce},
		{name: "all answers at once", message: "q1: 20s, q2: pop, q3: wild", ctx: pending, wantKind: turnForce, wantAnswers: 3},
		{name: "single answer leaves questions open", message: "pop", ctx: pending, wantKind: turnFollowUp, wantAnswers: 1},
		{name: "final answers close the round", message: "wild, all night", ctx: &domain.ConversationContext{QuestionsAsked: 2, AnswersReceived: 1}, wantKind: turnForce, wantAnswers: 1},
		{name: "two markers force", message: "I choose: Option 1 and Option 3", ctx: partial, wantKind: turnForce, wantAnswers: 2},
		{name: "asks to proceed", message: "rock. now give me songs", ctx: partial, wantKind: turnForce, wantAnswers: 1},
		{name: "explicit marker without context", message: "I choose: chill", wantKind: turnForce, wantAnswers: 1},
		{name: "enumerated answer prefix", message: "2. something mellow", ctx: partial, wantKind: turnFollowUp, wantAnswers: 1},
		{name: "round budget spent", message: "something else", ctx: exhausted, wantKind: turnForce},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyTurn(tt.message, tt.ctx, DefaultMaxQuestionRounds)
			if got.kind != tt.wantKind {
				t.Fatalf("expected kind %s, got %s", tt.wantKind, got.kind)
			}
			if got.answers != tt.wantAnswers {
				t.Fatalf("expected %d answers, got %d", tt.wantAnswers, got.answers)
			}
		})
	}
}

func TestSongReference(t *testing.T) {
	tests := []struct {
		message    string
		wantTitle  string
		wantArtist string
		wantOK     bool
	}{
		{message: "songs like Marvins Room by Drake", wantTitle: "Marvins Room", wantArtist: "Drake", wantOK: true},
		{message: `something like "Holocene" by Bon Iver, but faster`, wantTitle: "Holocene", wantArtist: "Bon Iver", wantOK: true},
		{message: "play me some jazz", wantOK: false},
	}
	for _, tt := range tests {
		title, artist, ok := songReference(tt.message)
		if ok != tt.wantOK {
			t.Fatalf("songReference(%q) ok=%v, want %v", tt.message, ok, tt.wantOK)
		}
		if title != tt.wantTitle || artist != tt.wantArtist {
			t.Fatalf("songReference(%q) = %q/%q, want %q/%q", tt.message, title, artist, tt.wantTitle, tt.wantArtist)
		}
	}
}

func TestFilterQuestions_DropsRepeats(t *testing.T) {
	cc := &domain.ConversationContext{AskedQuestions: []string{"what genres do you like?"}}
	qs := []domain.Question{
		{ID: "q1", Question: "What  genres do you like?", Options: []string{"a", "b", "c"}},
		{ID: "q2", Question: "How long is the party?", Options: []string{"1h", "2h", "3h", "4h", "5h", "6h"}},
		{ID: "q3", Question: "how long is the party?", Options: []string{"1h"}},
	}

	got := filterQuestions(qs, cc)
	if len(got) != 1 {
		t.Fatalf("expected 1 remaining question, got %d", len(got))
	}
	if got[0].ID != "q2" || len(got[0].Options) != maxQuestionOptions {
		t.Fatalf("unexpected question %+v", got[0])
	}
}

func TestBuildUserPrompt(t *testing.T) {
	session := domain.NewSession("u1")
	session.CurrentContext = &domain.ConversationContext{Activity: "listening", TimeOfDay: "evening"}
	req := domain.TurnRequest{
		UserID:  "u1",
		Message: "just play something already",
		Context: &domain.TurnContext{CurrentTrack: &domain.Track{Name: "Song", Artists: []domain.Artist{{Name: "A"}, {Name: "B"}}}},
	}
	ref := &domain.Track{Name: "Holocene", Artists: []domain.Artist{{Name: "Bon Iver"}}, Popularity: 70}

	got := buildUserPrompt(req, session, turnClass{kind: turnForce, impatient: true}, ref)

	for _, want := range []string{
		"no more questions",
		"Original request: just play something already",
		`"Holocene" by Bon Iver`,
		"Currently playing: Song by A, B",
		"Previous interaction: listening during evening",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("expected prompt to contain %q, got:\n%s", want, got)
		}
	}
}

func TestBuildSystemPrompt_ForcedTurn(t *testing.T) {
	session := domain.NewSession("u1")
	session.Preferences.FavoriteGenres = []string{"jazz"}

	got := buildSystemPrompt(session, turnClass{kind: turnForce})
	if !strings.Contains(got, "Favorite genres: jazz") {
		t.Fatalf("expected favorite genres in prompt")
	}
	if !strings.Contains(got, `MUST reply with type "recommendation"`) {
		t.Fatalf("expected forced recommendation instruction")
	}
	if strings.Contains(buildSystemPrompt(session, turnClass{}), "MUST reply") {
		t.Fatalf("fresh turns must not force a recommendation")
	}
}
