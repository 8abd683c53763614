package spotify

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/ewilliams-labs/crossfade/internal/core/domain"
)

const maxPlaylistPage = 100

// GetPlaylistTracks returns up to limit playable tracks from the first page
// of a playlist.
func (c *Client) GetPlaylistTracks(ctx context.Context, playlistID string, limit int) ([]domain.Track, error) {
	if limit <= 0 {
		return []domain.Track{}, nil
	}
	if limit > maxPlaylistPage {
		limit = maxPlaylistPage
	}

	tracksURL, err := url.Parse(fmt.Sprintf("%s/playlists/%s/tracks", c.baseURL, url.PathEscape(playlistID)))
	if err != nil {
		return nil, fmt.Errorf("spotify adapter: invalid playlist url: %w", err)
	}
	params := tracksURL.Query()
	params.Set("limit", strconv.Itoa(limit))
	if c.market != "" {
		params.Set("market", c.market)
	}
	params.Set("fields", "items(is_local,track(id,name,artists(id,name),album(id,name,images),duration_ms,preview_url,uri,popularity,is_local))")
	tracksURL.RawQuery = params.Encode()

	var body playlistTracksResponse
	if err := c.getJSON(ctx, tracksURL.String(), &body); err != nil {
		return nil, fmt.Errorf("spotify adapter: playlist %s: %w", playlistID, err)
	}

	tracks := mapPlaylistItems(body.Items)
	if len(tracks) > limit {
		tracks = tracks[:limit]
	}
	return tracks, nil
}
