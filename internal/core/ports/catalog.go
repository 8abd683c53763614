package ports

import (
	"context"
	"errors"
	"fmt"

	"github.com/ewilliams-labs/crossfade/internal/core/domain"
)

// ErrNoConfidentMatch indicates search results did not meet the confidence threshold.
var ErrNoConfidentMatch = errors.New("no confident match")

// NoConfidentMatchError provides context for a failed track match.
type NoConfidentMatchError struct {
	Title  string
	Artist string
}

func (e NoConfidentMatchError) Error() string {
	if e.Title == "" && e.Artist == "" {
		return ErrNoConfidentMatch.Error()
	}
	return fmt.Sprintf("no confident match found for title %q artist %q", e.Title, e.Artist)
}

func (e NoConfidentMatchError) Is(target error) bool {
	return target == ErrNoConfidentMatch
}

// Catalog is the external track/playlist search provider.
type Catalog interface {
	SearchTracks(ctx context.Context, query string, limit int) ([]domain.Track, error)
	SearchPlaylists(ctx context.Context, query string, limit int) ([]domain.PlaylistSummary, error)
	GetPlaylistTracks(ctx context.Context, playlistID string, limit int) ([]domain.Track, error)
}

// TrackMatcher resolves a title/artist reference to a single catalog track.
type TrackMatcher interface {
	GetTrackByMetadata(ctx context.Context, title, artist string) (domain.Track, error)
}

// PlaylistPublisher creates a playlist on the user's provider account using
// the user's own access token and returns the provider playlist URI.
type PlaylistPublisher interface {
	Publish(ctx context.Context, userToken string, p domain.Playlist) (string, error)
}
