package ports

import (
	"context"

	"github.com/ewilliams-labs/crossfade/internal/core/domain"
)

// StateStore is keyed get/put of opaque JSON blobs. Get returns
// domain.ErrNotFound for a missing key.
type StateStore interface {
	GetBlob(ctx context.Context, key string) ([]byte, error)
	PutBlob(ctx context.Context, key string, value []byte) error
}

// PlaylistRepository persists generated playlists per user.
type PlaylistRepository interface {
	SavePlaylist(ctx context.Context, userID string, p domain.Playlist) error
	GetPlaylist(ctx context.Context, userID, playlistID string) (domain.Playlist, error)
}

// InteractionLog records one row per completed turn.
type InteractionLog interface {
	LogInteraction(ctx context.Context, in domain.Interaction) error
}

// AnalysisRepository stores locally computed track analyses.
type AnalysisRepository interface {
	SaveTrackAnalysis(ctx context.Context, a domain.TrackAnalysis) error
	GetTrackAnalysis(ctx context.Context, trackID string) (domain.TrackAnalysis, error)
}
