package spotify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/ewilliams-labs/crossfade/internal/core/domain"
	"github.com/ewilliams-labs/crossfade/internal/core/ports"
)

const (
	searchMatchThreshold = 0.8
	matchCandidates      = 5
	maxSearchLimit       = 50
)

// SearchTracks runs a keyword track search. It asks the provider for twice
// the requested amount and keeps the most popular limit tracks.
func (c *Client) SearchTracks(ctx context.Context, query string, limit int) ([]domain.Track, error) {
	if limit <= 0 {
		return []domain.Track{}, nil
	}
	fetch := limit * 2
	if fetch > maxSearchLimit {
		fetch = maxSearchLimit
	}

	var body searchResponse
	if err := c.search(ctx, query, "track", fetch, &body); err != nil {
		return nil, err
	}
	if body.Tracks == nil {
		return []domain.Track{}, nil
	}

	tracks := make([]domain.Track, 0, len(body.Tracks.Items))
	for _, st := range body.Tracks.Items {
		if st.ID == "" || st.IsLocal {
			continue
		}
		tracks = append(tracks, mapTrackToDomain(st))
	}
	sort.SliceStable(tracks, func(i, j int) bool {
		return tracks[i].Popularity > tracks[j].Popularity
	})
	if len(tracks) > limit {
		tracks = tracks[:limit]
	}
	return tracks, nil
}

// SearchPlaylists returns up to limit playlists matching query.
func (c *Client) SearchPlaylists(ctx context.Context, query string, limit int) ([]domain.PlaylistSummary, error) {
	if limit <= 0 {
		return []domain.PlaylistSummary{}, nil
	}
	var body searchResponse
	if err := c.search(ctx, query, "playlist", limit, &body); err != nil {
		return nil, err
	}
	out := []domain.PlaylistSummary{}
	if body.Playlists == nil {
		return out, nil
	}
	for _, p := range body.Playlists.Items {
		if p == nil || p.ID == "" {
			continue
		}
		out = append(out, domain.PlaylistSummary{ID: p.ID, Name: p.Name})
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// GetTrackByMetadata searches for a track using title and artist metadata and
// returns the best candidate scoring at least searchMatchThreshold.
func (c *Client) GetTrackByMetadata(ctx context.Context, title string, artist string) (domain.Track, error) {
	var body searchResponse
	if err := c.search(ctx, referenceQuery(title, artist), "track", matchCandidates, &body); err != nil {
		return domain.Track{}, err
	}
	if body.Tracks == nil || len(body.Tracks.Items) == 0 {
		return domain.Track{}, fmt.Errorf("spotify adapter: %w", ports.NoConfidentMatchError{Title: title, Artist: artist})
	}

	items := body.Tracks.Items
	if len(items) > matchCandidates {
		items = items[:matchCandidates]
	}
	bestScore := 0.0
	bestIndex := -1
	for i, candidate := range items {
		candidateArtist := joinArtistNames(candidate)
		score := ScoreResult(artist, title, candidateArtist, candidate.Name)
		c.log.WithFields(logrus.Fields{
			"candidate": candidateArtist + " - " + candidate.Name,
			"score":     fmt.Sprintf("%.2f", score),
		}).Debug("spotify adapter: match candidate")
		if score >= searchMatchThreshold && score > bestScore {
			bestScore = score
			bestIndex = i
		}
	}
	if bestIndex == -1 {
		return domain.Track{}, fmt.Errorf("spotify adapter: %w", ports.NoConfidentMatchError{Title: title, Artist: artist})
	}
	return mapTrackToDomain(items[bestIndex]), nil
}

func (c *Client) search(ctx context.Context, query, kind string, limit int, out *searchResponse) error {
	searchURL, err := url.Parse(c.baseURL + "/search")
	if err != nil {
		return fmt.Errorf("spotify adapter: invalid search url: %w", err)
	}
	params := searchURL.Query()
	params.Set("q", query)
	params.Set("type", kind)
	params.Set("limit", strconv.Itoa(limit))
	if c.market != "" {
		params.Set("market", c.market)
	}
	searchURL.RawQuery = params.Encode()

	c.log.WithFields(logrus.Fields{"query": query, "type": kind, "limit": limit}).Debug("spotify adapter: search")
	return c.getJSON(ctx, searchURL.String(), out)
}

// getJSON performs an authenticated GET and decodes a 200 response into out.
func (c *Client) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := c.newRequest(ctx, rawURL)
	if err != nil {
		return err
	}
	resp, err := c.doRequestWithRetry(req)
	if err != nil {
		return fmt.Errorf("spotify adapter: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr errorResponse
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error.Message != "" {
			return fmt.Errorf("spotify adapter: status %d: %s", resp.StatusCode, apiErr.Error.Message)
		}
		return fmt.Errorf("spotify adapter: status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("spotify adapter: decode response: %w", err)
	}
	return nil
}
