package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ewilliams-labs/crossfade/internal/adapters/sqlite"
	"github.com/ewilliams-labs/crossfade/internal/core/domain"
	"github.com/ewilliams-labs/crossfade/internal/core/services"
)

// --- Mocks ---

type mockCatalog struct{}

func (mockCatalog) SearchTracks(_ context.Context, query string, limit int) ([]domain.Track, error) {
	out := make([]domain.Track, 0, limit)
	for i := 0; i < limit; i++ {
		id := fmt.Sprintf("%s-%d", strings.ReplaceAll(query, " ", "-"), i)
		out = append(out, domain.Track{ID: id, Name: "Song " + id, URI: "spotify:track:" + id, Popularity: 90 - i})
	}
	return out, nil
}

func (mockCatalog) SearchPlaylists(context.Context, string, int) ([]domain.PlaylistSummary, error) {
	return nil, nil
}

func (mockCatalog) GetPlaylistTracks(context.Context, string, int) ([]domain.Track, error) {
	return nil, nil
}

type mockModel struct {
	reply string
	err   error
}

func (m *mockModel) Infer(context.Context, string, string) (string, error) {
	return m.reply, m.err
}

const recommendationReply = `{"type":"recommendation","message":"Chill picks","searchStrategy":{"tracks":["lofi beats"]},"mood":"chill","genre":"lofi","energy":0.3,"action":"play"}`

type fixture struct {
	h     *Handler
	store *sqlite.Adapter
	now   time.Time
}

func newFixture(t *testing.T, model *mockModel, opts ...Option) fixture {
	t.Helper()
	store, err := sqlite.NewAdapter(":memory:")
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	log := logrus.New()
	log.SetOutput(io.Discard)

	now := time.Date(2024, 5, 1, 21, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	sessions := services.NewSessionStore(store)
	stats, err := services.NewStatsAggregator(context.Background(), store, clock)
	if err != nil {
		t.Fatalf("new stats: %v", err)
	}
	agg := services.NewAggregator(mockCatalog{}, log, 10)
	svc := services.NewOrchestrator(model, agg, sessions, stats,
		services.WithLogger(log),
		services.WithClock(clock))

	opts = append([]Option{WithLogger(log), WithClock(clock), WithAnalyses(store)}, opts...)
	return fixture{h: NewHandler(svc, sessions, stats, opts...), store: store, now: now}
}

func (f fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.h.ServeHTTP(rec, req)
	return rec
}

// --- Tests ---

func TestHandler_Chat(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		contentType    string
		modelErr       error
		expectedStatus int
		expectedBody   string
	}{
		{
			name:           "Success: recommendation",
			body:           `{"sessionId":"u1","message":"something chill"}`,
			expectedStatus: http.StatusOK,
			expectedBody:   `"message":"Chill picks"`,
		},
		{
			name:           "Success: userId accepted",
			body:           `{"userId":"u1","message":"something chill"}`,
			expectedStatus: http.StatusOK,
			expectedBody:   `"action":"play"`,
		},
		{
			name:           "Model failure still answers",
			body:           `{"sessionId":"u1","message":"something chill"}`,
			modelErr:       errors.New("model offline"),
			expectedStatus: http.StatusOK,
			expectedBody:   `"message":"Let me find some music for you!"`,
		},
		{
			name:           "Bad Request: missing message",
			body:           `{"sessionId":"u1"}`,
			expectedStatus: http.StatusBadRequest,
			expectedBody:   "Missing message or sessionId",
		},
		{
			name:           "Bad Request: malformed json",
			body:           `{invalid-json`,
			expectedStatus: http.StatusBadRequest,
			expectedBody:   "Invalid request body",
		},
		{
			name:           "Unsupported media type",
			body:           `{"sessionId":"u1","message":"hi"}`,
			contentType:    "text/plain",
			expectedStatus: http.StatusUnsupportedMediaType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, &mockModel{reply: recommendationReply, err: tt.modelErr})

			req := httptest.NewRequest(http.MethodPost, "/api/chat", bytes.NewBufferString(tt.body))
			ct := tt.contentType
			if ct == "" {
				ct = "application/json; charset=utf-8"
			}
			req.Header.Set("Content-Type", ct)
			rec := httptest.NewRecorder()
			f.h.ServeHTTP(rec, req)

			if rec.Code != tt.expectedStatus {
				t.Errorf("expected status %d, got %d, body: %s", tt.expectedStatus, rec.Code, strings.TrimSpace(rec.Body.String()))
			}
			if tt.expectedBody != "" && !strings.Contains(rec.Body.String(), tt.expectedBody) {
				t.Errorf("expected body to contain %q, got %q", tt.expectedBody, rec.Body.String())
			}
		})
	}
}

func TestHandler_Chat_UpdatesSessionAndStats(t *testing.T) {
	f := newFixture(t, &mockModel{reply: recommendationReply})

	rec := f.do(t, http.MethodPost, "/api/chat", `{"sessionId":"u1","message":"something chill"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("chat: %d %s", rec.Code, rec.Body.String())
	}
	var resp domain.DJResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Recommendations) != 10 {
		t.Fatalf("expected 10 recommendations, got %d", len(resp.Recommendations))
	}

	rec = f.do(t, http.MethodGet, "/api/session/u1", "")
	var session domain.UserSession
	if err := json.Unmarshal(rec.Body.Bytes(), &session); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if len(session.ListeningHistory) != 3 {
		t.Fatalf("expected 3 history entries, got %d", len(session.ListeningHistory))
	}
	if session.CurrentContext == nil || session.CurrentContext.Mood != "chill" || session.CurrentContext.TimeOfDay != "evening" {
		t.Fatalf("unexpected context: %+v", session.CurrentContext)
	}

	rec = f.do(t, http.MethodGet, "/api/stats", "")
	var stats domain.StatsSnapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.TotalRequests != 1 || stats.PopularGenres["lofi"] != 1 || stats.ActiveUsersCount != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestHandler_Preferences(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		expectedStatus int
		expectedBody   string
	}{
		{
			name:           "Success: genre",
			body:           `{"sessionId":"u1","type":"genre","value":"jazz"}`,
			expectedStatus: http.StatusOK,
			expectedBody:   `"success":true`,
		},
		{
			name:           "Success: energy",
			body:           `{"sessionId":"u1","type":"energy","value":8}`,
			expectedStatus: http.StatusOK,
			expectedBody:   `"success":true`,
		},
		{
			name:           "Bad Request: unknown kind",
			body:           `{"sessionId":"u1","type":"tempo","value":120}`,
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `"code":"UNKNOWN_PREFERENCE"`,
		},
		{
			name:           "Bad Request: energy out of range",
			body:           `{"sessionId":"u1","type":"energy","value":11}`,
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `"code":"INVALID_PREFERENCE"`,
		},
		{
			name:           "Bad Request: missing value",
			body:           `{"sessionId":"u1","type":"genre"}`,
			expectedStatus: http.StatusBadRequest,
			expectedBody:   "Missing required parameters",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, &mockModel{reply: recommendationReply})
			rec := f.do(t, http.MethodPost, "/api/preferences", tt.body)
			if rec.Code != tt.expectedStatus {
				t.Errorf("expected status %d, got %d, body: %s", tt.expectedStatus, rec.Code, strings.TrimSpace(rec.Body.String()))
			}
			if !strings.Contains(rec.Body.String(), tt.expectedBody) {
				t.Errorf("expected body to contain %q, got %q", tt.expectedBody, rec.Body.String())
			}
		})
	}
}

func TestHandler_SessionRoundTrip(t *testing.T) {
	f := newFixture(t, &mockModel{reply: recommendationReply})

	if rec := f.do(t, http.MethodPost, "/api/spotify-token", `{"sessionId":"u1","token":"user-token"}`); rec.Code != http.StatusOK {
		t.Fatalf("set token: %d %s", rec.Code, rec.Body.String())
	}
	if rec := f.do(t, http.MethodPost, "/api/spotify-token", `{"sessionId":"u1"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing token, got %d", rec.Code)
	}

	rec := f.do(t, http.MethodPatch, "/api/session/u1", `{"preferences":{"favoriteGenres":["rock","rock","jazz"],"favoriteArtists":[],"energyPreference":7,"moodHistory":[]}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("patch: %d %s", rec.Code, rec.Body.String())
	}

	rec = f.do(t, http.MethodGet, "/api/session/u1", "")
	var session domain.UserSession
	if err := json.Unmarshal(rec.Body.Bytes(), &session); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if session.SpotifyToken != "user-token" {
		t.Fatalf("token not kept across patch: %q", session.SpotifyToken)
	}
	if got := session.Preferences.FavoriteGenres; len(got) != 2 || got[0] != "rock" || got[1] != "jazz" {
		t.Fatalf("unexpected genres %v", got)
	}
	if session.Preferences.EnergyPreference != 7 {
		t.Fatalf("unexpected energy %d", session.Preferences.EnergyPreference)
	}
}

func TestHandler_TrackAnalysis(t *testing.T) {
	f := newFixture(t, &mockModel{reply: recommendationReply})
	if err := f.store.SaveTrackAnalysis(context.Background(), domain.TrackAnalysis{TrackID: "t1", Energy: 0.42}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	tests := []struct {
		name           string
		path           string
		expectedStatus int
		expectedBody   string
	}{
		{name: "found", path: "/api/tracks/t1/analysis", expectedStatus: http.StatusOK, expectedBody: `"energy":0.42`},
		{name: "not analyzed", path: "/api/tracks/t2/analysis", expectedStatus: http.StatusNotFound, expectedBody: "not been analyzed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodGet, tt.path, "")
			if rec.Code != tt.expectedStatus {
				t.Errorf("expected status %d, got %d", tt.expectedStatus, rec.Code)
			}
			if !strings.Contains(rec.Body.String(), tt.expectedBody) {
				t.Errorf("expected body to contain %q, got %q", tt.expectedBody, rec.Body.String())
			}
		})
	}
}

func TestHandler_HealthAndRouting(t *testing.T) {
	f := newFixture(t, &mockModel{reply: recommendationReply})

	rec := f.do(t, http.MethodGet, "/api/health", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"status":"healthy"`) {
		t.Fatalf("health: %d %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "2024-05-01T21:00:00Z") {
		t.Fatalf("expected clock timestamp, got %s", rec.Body.String())
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatal("CORS headers must be off by default")
	}

	if rec := f.do(t, http.MethodGet, "/api/unknown", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHandler_CORS(t *testing.T) {
	f := newFixture(t, &mockModel{reply: recommendationReply}, WithCORS(true))

	req := httptest.NewRequest(http.MethodOptions, "/api/chat", nil)
	rec := httptest.NewRecorder()
	f.h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 preflight, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("missing CORS origin header")
	}

	rec = f.do(t, http.MethodGet, "/api/health", "")
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("missing CORS header on normal response")
	}
}
