package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ewilliams-labs/crossfade/internal/core/domain"
	"github.com/ewilliams-labs/crossfade/internal/core/ports"
)

const (
	defaultPlaylistName = "AI DJ Mix"
	playlistIDPrefix    = "ai-dj-"
	historyPerTurn      = 3

	activityAwaiting  = "awaiting_answers"
	activityListening = "listening"
)

// Background receives work that must stay off the turn's critical path.
// Implementations must not block.
type Background interface {
	LogInteraction(in domain.Interaction)
	SavePlaylist(userID string, p domain.Playlist)
	AnalyzePreviews(tracks []domain.Track)
}

type noopBackground struct{}

func (noopBackground) LogInteraction(domain.Interaction)    {}
func (noopBackground) SavePlaylist(string, domain.Playlist) {}
func (noopBackground) AnalyzePreviews([]domain.Track)       {}

// Orchestrator runs one conversational turn: classify the message, ask the
// model, then either return questions or execute the recommendation.
type Orchestrator struct {
	model      ports.LanguageModel
	aggregator *Aggregator
	sessions   *SessionStore
	stats      *StatsAggregator

	matcher    ports.TrackMatcher
	publisher  ports.PlaylistPublisher
	background Background
	log        logrus.FieldLogger
	now        func() time.Time
	newID      func() string
	maxRounds  int
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithTrackMatcher enables "songs like X by Y" enrichment.
func WithTrackMatcher(m ports.TrackMatcher) Option {
	return func(o *Orchestrator) { o.matcher = m }
}

// WithPublisher enables publishing generated playlists to the user's account.
func WithPublisher(p ports.PlaylistPublisher) Option {
	return func(o *Orchestrator) { o.publisher = p }
}

func WithBackground(b Background) Option {
	return func(o *Orchestrator) {
		if b != nil {
			o.background = b
		}
	}
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.log = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

func WithIDGenerator(gen func() string) Option {
	return func(o *Orchestrator) {
		if gen != nil {
			o.newID = gen
		}
	}
}

// WithMaxQuestionRounds sets how many question turns are allowed before a
// recommendation is forced. Values below 1 keep the default.
func WithMaxQuestionRounds(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxRounds = n
		}
	}
}

// NewOrchestrator wires the turn pipeline.
func NewOrchestrator(model ports.LanguageModel, aggregator *Aggregator, sessions *SessionStore, stats *StatsAggregator, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		model:      model,
		aggregator: aggregator,
		sessions:   sessions,
		stats:      stats,
		background: noopBackground{},
		log:        logrus.StandardLogger(),
		now:        time.Now,
		newID:      func() string { return uuid.NewString() },
		maxRounds:  DefaultMaxQuestionRounds,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// HandleTurn never fails: when the pipeline errors, the user gets a generic
// recommendation computed without their session.
func (o *Orchestrator) HandleTurn(ctx context.Context, req domain.TurnRequest) domain.DJResponse {
	resp, err := o.ProcessTurn(ctx, req)
	if err == nil {
		return resp
	}
	o.log.WithError(err).WithField("user_id", req.UserID).Error("orchestrator: turn failed, answering with generic recommendation")
	return o.fallbackResponse(ctx)
}

// ProcessTurn runs one turn for req.UserID. Turns for the same user are
// serialized. The only error returned before a response exists is a model
// or session load failure; later persistence failures are logged.
func (o *Orchestrator) ProcessTurn(ctx context.Context, req domain.TurnRequest) (domain.DJResponse, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return domain.DJResponse{}, domain.ErrEmptyUserID
	}
	unlock := o.sessions.Lock(req.UserID)
	defer unlock()

	log := o.log.WithField("user_id", req.UserID)

	session, err := o.sessions.Get(ctx, req.UserID)
	if err != nil {
		return domain.DJResponse{}, fmt.Errorf("orchestrator: load session: %w", err)
	}
	if o.stats != nil {
		if err := o.stats.UserJoined(ctx, req.UserID); err != nil {
			log.WithError(err).Warn("orchestrator: record active user")
		}
	}

	cls := classifyTurn(req.Message, session.CurrentContext, o.maxRounds)
	reference := o.lookupReference(ctx, log, req.Message)

	reply, err := o.model.Infer(ctx, buildSystemPrompt(session, cls), buildUserPrompt(req, session, cls, reference))
	if err != nil {
		return domain.DJResponse{}, fmt.Errorf("orchestrator: infer: %w", err)
	}
	intent := ParseIntent(reply)

	var (
		resp      domain.DJResponse
		questions []domain.Question
	)
	if intent.IsQuestion() {
		if cls.kind != turnForce {
			questions = filterQuestions(intent.Question.Questions, session.CurrentContext)
		}
		if len(questions) == 0 {
			log.WithField("turn", cls.kind.String()).Info("orchestrator: question reply replaced by default recommendation")
		}
	}

	now := o.now()
	if len(questions) > 0 {
		resp = domain.DJResponse{
			Message:         intent.Question.Message,
			Recommendations: []domain.Track{},
			Action:          domain.ActionQuestion,
			Metadata:        domain.ResponseMetadata{Questions: questions},
		}
	} else {
		rec := domain.DefaultRecommendation()
		if intent.Recommendation != nil {
			rec = *intent.Recommendation
		}
		resp = o.recommend(ctx, log, req, session, rec)
	}

	if err := o.sessions.Update(ctx, req.UserID, func(sess *domain.UserSession) error {
		applyTurn(sess, req, resp, cls, now)
		return nil
	}); err != nil {
		log.WithError(err).Error("orchestrator: persist session")
	}

	if o.stats != nil {
		if err := o.stats.RecordRequest(ctx, resp.Metadata.Genre, resp.Metadata.Mood); err != nil {
			log.WithError(err).Warn("orchestrator: record request")
		}
	}

	o.background.LogInteraction(domain.Interaction{
		ID:                  o.newID(),
		UserID:              req.UserID,
		Request:             req.Message,
		Response:            resp.Message,
		Action:              resp.Action,
		RecommendationCount: len(resp.Recommendations),
		Timestamp:           now.UnixMilli(),
	})
	if resp.Playlist != nil {
		o.background.SavePlaylist(req.UserID, *resp.Playlist)
	}
	if len(resp.Recommendations) > 0 {
		o.background.AnalyzePreviews(resp.Recommendations)
	}

	log.WithFields(logrus.Fields{
		"action":      resp.Action,
		"track_count": len(resp.Recommendations),
		"turn":        cls.kind.String(),
	}).Info("orchestrator: turn complete")
	return resp, nil
}

func (o *Orchestrator) recommend(ctx context.Context, log logrus.FieldLogger, req domain.TurnRequest, session domain.UserSession, rec domain.RecommendationIntent) domain.DJResponse {
	tracks := o.aggregator.Recommend(ctx, rec)

	msg := rec.Message
	if msg == "" {
		if len(tracks) > 0 {
			msg = fmt.Sprintf("I found %d great tracks for you!", len(tracks))
		} else {
			msg = "Let me find some music for you..."
		}
	}
	energy := rec.Energy
	resp := domain.DJResponse{
		Message:         msg,
		Recommendations: tracks,
		Action:          rec.Action,
		Metadata: domain.ResponseMetadata{
			Mood:   rec.Mood,
			Energy: &energy,
			Genre:  rec.Genre,
		},
	}
	if resp.Action == "" {
		resp.Action = domain.ActionPlay
	}

	if rec.CreatePlaylist && len(tracks) > 0 {
		resp.Playlist = o.assemblePlaylist(ctx, log, req, session, rec, tracks)
	}
	return resp
}

func (o *Orchestrator) assemblePlaylist(ctx context.Context, log logrus.FieldLogger, req domain.TurnRequest, session domain.UserSession, rec domain.RecommendationIntent, tracks []domain.Track) *domain.Playlist {
	name := rec.PlaylistName
	if name == "" {
		name = defaultPlaylistName
	}
	desc := rec.PlaylistDescription
	if desc == "" {
		desc = "AI-curated playlist based on: " + req.Message
	}
	p, err := domain.NewPlaylist(playlistIDPrefix+o.newID(), name, desc)
	if err != nil {
		log.WithError(err).Warn("orchestrator: build playlist")
		return nil
	}
	for _, t := range tracks {
		if err := p.AddTrack(t); err != nil && !errors.Is(err, domain.ErrDuplicateTrack) {
			log.WithError(err).Warn("orchestrator: add playlist track")
		}
	}

	if o.publisher != nil && session.SpotifyToken != "" {
		uri, err := o.publisher.Publish(ctx, session.SpotifyToken, *p)
		if err != nil {
			log.WithError(err).WithField("playlist_id", p.ID).Warn("orchestrator: publish playlist")
		} else {
			p.URI = uri
		}
	}
	return p
}

// lookupReference resolves a "songs like X by Y" reference. Failures mean no
// context and are never surfaced.
func (o *Orchestrator) lookupReference(ctx context.Context, log logrus.FieldLogger, message string) *domain.Track {
	if o.matcher == nil {
		return nil
	}
	title, artist, ok := songReference(message)
	if !ok {
		return nil
	}
	t, err := o.matcher.GetTrackByMetadata(ctx, title, artist)
	if err != nil {
		log.WithError(err).WithFields(logrus.Fields{"title": title, "artist": artist}).Warn("orchestrator: song reference lookup")
		return nil
	}
	return &t
}

func (o *Orchestrator) fallbackResponse(ctx context.Context) domain.DJResponse {
	rec := domain.DefaultRecommendation()
	return o.recommend(ctx, o.log, domain.TurnRequest{}, domain.NewSession(""), rec)
}

// applyTurn folds the turn's outcome into the session: mood history,
// listening history and the dialogue counters.
func applyTurn(sess *domain.UserSession, req domain.TurnRequest, resp domain.DJResponse, cls turnClass, now time.Time) {
	prev := domain.ConversationContext{}
	if sess.CurrentContext != nil {
		prev = *sess.CurrentContext
	}
	cc := prev
	cc.TimeOfDay = domain.TimeOfDay(now)

	if cls.answer {
		cc.AnswersReceived += cls.answers
		cc.LastAnswer = req.Message
		cc.Activity = activityAnswered
	}

	if resp.Action == domain.ActionQuestion {
		cc.QuestionRounds++
		cc.QuestionsAsked += len(resp.Metadata.Questions)
		for _, q := range resp.Metadata.Questions {
			cc.AskedQuestions = append(cc.AskedQuestions, domain.NormalizeQuestion(q.Question))
		}
		if !cls.answer {
			cc.Activity = activityAwaiting
		}
		sess.CurrentContext = &cc
		return
	}

	sess.PushMood(resp.Metadata.Mood)
	for i, t := range resp.Recommendations {
		if i == historyPerTurn {
			break
		}
		sess.AppendHistory(domain.HistoryEntry{TrackID: t.ID, Timestamp: now.UnixMilli()})
	}

	mood := resp.Metadata.Mood
	if mood == "" && req.Context != nil {
		mood = req.Context.Mood
	}
	if mood == "" {
		mood = "neutral"
	}
	sess.CurrentContext = &domain.ConversationContext{
		Mood:      mood,
		Activity:  carriedActivity(prev.Activity),
		TimeOfDay: cc.TimeOfDay,
	}
}

// carriedActivity keeps a user-set activity across recommendations; dialogue
// markers and blanks become listening.
func carriedActivity(activity string) string {
	switch activity {
	case "", activityAwaiting, activityAnswered:
		return activityListening
	}
	return activity
}
