package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ewilliams-labs/crossfade/internal/core/domain"
)

var errCatalogDown = errors.New("catalog down")

// fakeCatalog serves canned results keyed by query; unknown queries return
// nothing. failAll makes every call fail; failQueries fails selected queries.
type fakeCatalog struct {
	mu sync.Mutex

	tracks         map[string][]domain.Track
	playlists      map[string][]domain.PlaylistSummary
	playlistTracks map[string][]domain.Track

	failAll      bool
	failQueries  map[string]bool
	panicQueries map[string]bool

	// gates holds playlist searches until the channel closes.
	gates         map[string]chan struct{}
	onTrackSearch func(query string)

	trackCalls    []string
	playlistCalls []string
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		tracks:         map[string][]domain.Track{},
		playlists:      map[string][]domain.PlaylistSummary{},
		playlistTracks: map[string][]domain.Track{},
		failQueries:    map[string]bool{},
		panicQueries:   map[string]bool{},
		gates:          map[string]chan struct{}{},
	}
}

func (f *fakeCatalog) SearchTracks(_ context.Context, query string, limit int) ([]domain.Track, error) {
	out, err := f.searchTracks(query, limit)
	if f.onTrackSearch != nil {
		f.onTrackSearch(query)
	}
	return out, err
}

func (f *fakeCatalog) searchTracks(query string, limit int) ([]domain.Track, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trackCalls = append(f.trackCalls, query)
	if f.panicQueries[query] {
		panic("malformed catalog payload for " + query)
	}
	if f.failAll || f.failQueries[query] {
		return nil, errCatalogDown
	}
	out := f.tracks[query]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeCatalog) SearchPlaylists(ctx context.Context, query string, limit int) ([]domain.PlaylistSummary, error) {
	f.mu.Lock()
	gate := f.gates[query]
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.playlistCalls = append(f.playlistCalls, query)
	if f.panicQueries[query] {
		panic("malformed catalog payload for " + query)
	}
	if f.failAll || f.failQueries[query] {
		return nil, errCatalogDown
	}
	out := f.playlists[query]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeCatalog) GetPlaylistTracks(_ context.Context, playlistID string, limit int) ([]domain.Track, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return nil, errCatalogDown
	}
	out := f.playlistTracks[playlistID]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeCatalog) calledPlaylist(query string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, q := range f.playlistCalls {
		if q == query {
			return true
		}
	}
	return false
}

// withPlaylist registers a single playlist for query holding tracks.
func (f *fakeCatalog) withPlaylist(query string, tracks ...domain.Track) *fakeCatalog {
	id := "pl-" + query
	f.playlists[query] = []domain.PlaylistSummary{{ID: id, Name: query}}
	f.playlistTracks[id] = tracks
	return f
}

func track(id string, popularity int) domain.Track {
	return domain.Track{
		ID:         id,
		Name:       "Track " + id,
		Artists:    []domain.Artist{{ID: "a-" + id, Name: "Artist " + id}},
		URI:        "spotify:track:" + id,
		Popularity: popularity,
	}
}

func tracksRange(prefix string, n, popularity int) []domain.Track {
	out := make([]domain.Track, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, track(fmt.Sprintf("%s%d", prefix, i), popularity))
	}
	return out
}

// fakeModel returns replies in order and records the prompts it was given.
type fakeModel struct {
	mu      sync.Mutex
	replies []string
	err     error
	system  []string
	user    []string
}

func (m *fakeModel) Infer(_ context.Context, systemPrompt, userPrompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.system = append(m.system, systemPrompt)
	m.user = append(m.user, userPrompt)
	if m.err != nil {
		return "", m.err
	}
	if len(m.replies) == 0 {
		return "", nil
	}
	r := m.replies[0]
	if len(m.replies) > 1 {
		m.replies = m.replies[1:]
	}
	return r, nil
}

func (m *fakeModel) lastUserPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.user) == 0 {
		return ""
	}
	return m.user[len(m.user)-1]
}

// memStore is an in-memory StateStore.
type memStore struct {
	mu      sync.Mutex
	blobs   map[string][]byte
	puts    int
	failPut bool
}

func newMemStore() *memStore {
	return &memStore{blobs: map[string][]byte{}}
}

func (s *memStore) GetBlob(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.blobs[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return append([]byte(nil), b...), nil
}

func (s *memStore) PutBlob(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failPut {
		return errors.New("store unavailable")
	}
	s.puts++
	s.blobs[key] = append([]byte(nil), value...)
	return nil
}

// recordingBackground captures background jobs.
type recordingBackground struct {
	mu           sync.Mutex
	interactions []domain.Interaction
	playlists    []domain.Playlist
	analyzed     int
}

func (b *recordingBackground) LogInteraction(in domain.Interaction) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.interactions = append(b.interactions, in)
}

func (b *recordingBackground) SavePlaylist(_ string, p domain.Playlist) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.playlists = append(b.playlists, p)
}

func (b *recordingBackground) AnalyzePreviews(tracks []domain.Track) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.analyzed += len(tracks)
}

type fakeMatcher struct {
	track domain.Track
	err   error
	calls int
}

func (m *fakeMatcher) GetTrackByMetadata(_ context.Context, _, _ string) (domain.Track, error) {
	m.calls++
	return m.track, m.err
}

type fakePublisher struct {
	uri   string
	err   error
	token string
}

func (p *fakePublisher) Publish(_ context.Context, token string, _ domain.Playlist) (string, error) {
	p.token = token
	return p.uri, p.err
}
