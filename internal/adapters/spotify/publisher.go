package spotify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	zspotify "github.com/zmb3/spotify/v2"
	"golang.org/x/oauth2"

	"github.com/ewilliams-labs/crossfade/internal/core/domain"
	"github.com/ewilliams-labs/crossfade/internal/core/ports"
)

// maxTracksPerAdd is the provider's limit for one add-items request.
const maxTracksPerAdd = 100

var errNoPlaylistTracks = errors.New("spotify publisher: playlist has no tracks")

// Publisher creates generated playlists on the user's own account. Unlike
// Client it authenticates with the user's access token, not the app's.
type Publisher struct {
	baseURL string
	base    http.RoundTripper
	timeout time.Duration
	log     logrus.FieldLogger
}

var _ ports.PlaylistPublisher = (*Publisher)(nil)

// NewPublisher targets the Web API at baseURL; empty means the public API.
func NewPublisher(baseURL string, log logrus.FieldLogger) *Publisher {
	baseURL = strings.TrimRight(baseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Publisher{
		baseURL: baseURL,
		base:    http.DefaultTransport,
		timeout: 15 * time.Second,
		log:     log,
	}
}

// Publish creates a private playlist named after p for the token's owner,
// adds p's tracks and returns the new playlist URI.
func (p *Publisher) Publish(ctx context.Context, userToken string, pl domain.Playlist) (string, error) {
	if userToken == "" {
		return "", errors.New("spotify publisher: missing user token")
	}
	ids := make([]zspotify.ID, 0, len(pl.Tracks))
	for _, t := range pl.Tracks {
		if t.ID != "" {
			ids = append(ids, zspotify.ID(t.ID))
		}
	}
	if len(ids) == 0 {
		return "", errNoPlaylistTracks
	}

	httpClient := &http.Client{
		Timeout: p.timeout,
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: userToken, TokenType: "Bearer"}),
			Base:   p.base,
		},
	}
	client := zspotify.New(httpClient, zspotify.WithBaseURL(p.baseURL+"/"))

	user, err := client.CurrentUser(ctx)
	if err != nil {
		return "", fmt.Errorf("spotify publisher: current user: %w", err)
	}
	created, err := client.CreatePlaylistForUser(ctx, user.ID, pl.Name, pl.Description, false, false)
	if err != nil {
		return "", fmt.Errorf("spotify publisher: create playlist: %w", err)
	}

	for start := 0; start < len(ids); start += maxTracksPerAdd {
		end := min(start+maxTracksPerAdd, len(ids))
		if _, err := client.AddTracksToPlaylist(ctx, created.ID, ids[start:end]...); err != nil {
			return "", fmt.Errorf("spotify publisher: add tracks: %w", err)
		}
	}

	p.log.WithFields(logrus.Fields{
		"playlist_id": pl.ID,
		"remote_id":   string(created.ID),
		"track_count": len(ids),
	}).Info("spotify publisher: playlist published")
	return string(created.URI), nil
}
