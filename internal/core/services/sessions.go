package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/ewilliams-labs/crossfade/internal/core/domain"
	"github.com/ewilliams-labs/crossfade/internal/core/ports"
)

const sessionKeyPrefix = "session:"

// userHandle is the single owner of one user's state. mu serializes
// individual store operations; turn serializes whole turns.
type userHandle struct {
	mu   sync.Mutex
	turn sync.Mutex
}

// SessionStore is a keyed registry of per-user handles over a blob store.
// Every operation is load, mutate, persist under the user's own lock, so two
// users never contend and one user's operations never interleave.
type SessionStore struct {
	store ports.StateStore

	mu      sync.Mutex
	handles map[string]*userHandle
}

// NewSessionStore wraps store.
func NewSessionStore(store ports.StateStore) *SessionStore {
	return &SessionStore{store: store, handles: make(map[string]*userHandle)}
}

func (s *SessionStore) handle(userID string) *userHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.handles[userID]
	if !ok {
		h = &userHandle{}
		s.handles[userID] = h
	}
	return h
}

// Lock takes the user's turn lock and returns its release func.
func (s *SessionStore) Lock(userID string) func() {
	h := s.handle(userID)
	h.turn.Lock()
	return h.turn.Unlock
}

// Get returns the user's session, creating and persisting a default one when absent.
func (s *SessionStore) Get(ctx context.Context, userID string) (domain.UserSession, error) {
	var out domain.UserSession
	err := s.Update(ctx, userID, func(sess *domain.UserSession) error {
		out = *sess
		return nil
	})
	return out, err
}

// Update runs fn against the current session and persists the result.
// A non-nil error from fn aborts without writing.
func (s *SessionStore) Update(ctx context.Context, userID string, fn func(*domain.UserSession) error) error {
	if strings.TrimSpace(userID) == "" {
		return domain.ErrEmptyUserID
	}
	h := s.handle(userID)
	h.mu.Lock()
	defer h.mu.Unlock()

	sess, existed, err := s.load(ctx, userID)
	if err != nil {
		return err
	}
	before, _ := json.Marshal(sess)
	if err := fn(&sess); err != nil {
		return err
	}
	sess.UserID = userID
	after, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("sessions: encode %s: %w", userID, err)
	}
	if existed && string(before) == string(after) {
		return nil
	}
	if err := s.store.PutBlob(ctx, sessionKeyPrefix+userID, after); err != nil {
		return fmt.Errorf("sessions: save %s: %w", userID, err)
	}
	return nil
}

func (s *SessionStore) load(ctx context.Context, userID string) (domain.UserSession, bool, error) {
	raw, err := s.store.GetBlob(ctx, sessionKeyPrefix+userID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.NewSession(userID), false, nil
	}
	if err != nil {
		return domain.UserSession{}, false, fmt.Errorf("sessions: load %s: %w", userID, err)
	}
	sess := domain.NewSession(userID)
	if err := json.Unmarshal(raw, &sess); err != nil {
		return domain.UserSession{}, false, fmt.Errorf("sessions: decode %s: %w", userID, err)
	}
	return sess, true, nil
}

// Merge shallow-overwrites the fields present in patch.
func (s *SessionStore) Merge(ctx context.Context, userID string, patch domain.SessionPatch) (domain.UserSession, error) {
	var out domain.UserSession
	err := s.Update(ctx, userID, func(sess *domain.UserSession) error {
		patch.Apply(sess)
		out = *sess
		return nil
	})
	return out, err
}

// AddPreference set-inserts a genre or artist, or overwrites the energy level.
func (s *SessionStore) AddPreference(ctx context.Context, userID string, kind domain.PreferenceKind, value any) (domain.UserSession, error) {
	var out domain.UserSession
	err := s.Update(ctx, userID, func(sess *domain.UserSession) error {
		if err := sess.AddPreference(kind, value); err != nil {
			return err
		}
		out = *sess
		return nil
	})
	return out, err
}

// AppendHistory appends entry, keeping the most recent entries only.
func (s *SessionStore) AppendHistory(ctx context.Context, userID string, entry domain.HistoryEntry) error {
	return s.Update(ctx, userID, func(sess *domain.UserSession) error {
		sess.AppendHistory(entry)
		return nil
	})
}

// SetContext overwrites the conversation context.
func (s *SessionStore) SetContext(ctx context.Context, userID string, cc domain.ConversationContext) error {
	return s.Update(ctx, userID, func(sess *domain.UserSession) error {
		sess.CurrentContext = &cc
		return nil
	})
}

// SetProviderToken overwrites the user's catalog access token.
func (s *SessionStore) SetProviderToken(ctx context.Context, userID, token string) error {
	return s.Update(ctx, userID, func(sess *domain.UserSession) error {
		sess.SpotifyToken = token
		return nil
	})
}
