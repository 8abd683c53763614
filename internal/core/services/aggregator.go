package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ewilliams-labs/crossfade/internal/core/domain"
	"github.com/ewilliams-labs/crossfade/internal/core/ports"
)

const (
	DefaultTargetTracks = 20

	maxPlaylistQueries  = 3
	maxTrackQueries     = 2
	playlistQueryLimit  = 15
	trackQueryLimit     = 10
	fallbackQueryLimit  = 20
	minPoolBeforeBackup = 10
	playlistsPerQuery   = 3

	lastResortQuery = "Today's Top Hits"
)

// Aggregator turns a recommendation intent into a ranked, de-duplicated
// track list. Recommend never fails: catalog errors shrink the result,
// and a total outage falls back to a generic top-hits query.
type Aggregator struct {
	catalog ports.Catalog
	log     logrus.FieldLogger
	target  int
}

// NewAggregator constructs an Aggregator returning up to target tracks.
func NewAggregator(catalog ports.Catalog, log logrus.FieldLogger, target int) *Aggregator {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if target <= 0 {
		target = DefaultTargetTracks
	}
	return &Aggregator{catalog: catalog, log: log, target: target}
}

// queryResult is one slot of the fan-out; slots are merged in index order.
type queryResult struct {
	tracks []domain.Track
	err    error
}

// Recommend executes the intent's search strategy.
func (a *Aggregator) Recommend(ctx context.Context, intent domain.RecommendationIntent) (tracks []domain.Track) {
	defer func() {
		if r := recover(); r != nil {
			a.log.WithField("panic", r).Error("aggregator: recovered, using last-resort query")
			tracks = a.lastResort(ctx)
		}
	}()

	pool, attempted, failed := a.collect(ctx, intent.Strategy)

	if len(pool) < minPoolBeforeBackup {
		query := fallbackQuery(intent.Energy, intent.Mood)
		a.log.WithFields(logrus.Fields{"query": query, "pool": len(pool)}).Info("aggregator: pool too small, adding fallback search")
		extra, err := a.playlistTracks(ctx, query, fallbackQueryLimit)
		attempted++
		if err != nil {
			failed++
			a.log.WithError(err).WithField("query", query).Warn("aggregator: fallback search failed")
		}
		pool = dedupeTracks(append(pool, extra...))
	}

	if len(pool) == 0 || (attempted > 0 && failed == attempted) {
		a.log.WithFields(logrus.Fields{"attempted": attempted, "failed": failed}).Warn("aggregator: no usable results, using last-resort query")
		return a.lastResort(ctx)
	}

	sortByPopularity(pool)
	threshold := popularityThreshold(intent.Energy, intent.Mood)
	quality := make([]domain.Track, 0, len(pool))
	for _, t := range pool {
		if t.Popularity > threshold {
			quality = append(quality, t)
		}
	}

	final := pool
	if len(quality) >= a.target {
		final = quality
	}
	if len(final) > a.target {
		final = final[:a.target]
	}

	a.log.WithFields(logrus.Fields{
		"track_count":    len(final),
		"threshold":      threshold,
		"quality_count":  len(quality),
		"avg_popularity": averagePopularity(final),
	}).Debug("aggregator: recommendations ready")
	return final
}

// collect runs the strategy queries concurrently and merges their results in
// priority order: playlist queries first, then track queries.
func (a *Aggregator) collect(ctx context.Context, strategy domain.SearchStrategy) ([]domain.Track, int, int) {
	type job struct {
		query    string
		playlist bool
	}
	var jobs []job
	for _, q := range firstNonBlank(strategy.PlaylistQueries, maxPlaylistQueries) {
		jobs = append(jobs, job{query: q, playlist: true})
	}
	for _, q := range firstNonBlank(strategy.TrackQueries, maxTrackQueries) {
		jobs = append(jobs, job{query: q})
	}

	results := make([]queryResult, len(jobs))
	eg, egCtx := errgroup.WithContext(ctx)
	for i, j := range jobs {
		eg.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					results[i] = queryResult{err: fmt.Errorf("aggregator: panic in query %q: %v", j.query, r)}
				}
			}()
			if j.playlist {
				a.log.WithField("query", j.query).Debug("aggregator: playlist search")
				tracks, err := a.playlistTracks(egCtx, j.query, playlistQueryLimit)
				results[i] = queryResult{tracks: tracks, err: err}
				return nil
			}
			a.log.WithField("query", j.query).Debug("aggregator: track search")
			tracks, err := a.catalog.SearchTracks(egCtx, j.query, trackQueryLimit)
			results[i] = queryResult{tracks: tracks, err: err}
			return nil
		})
	}
	_ = eg.Wait()

	var merged []domain.Track
	failed := 0
	for i, r := range results {
		if r.err != nil {
			failed++
			a.log.WithError(r.err).WithField("query", jobs[i].query).Warn("aggregator: search failed")
			continue
		}
		merged = append(merged, r.tracks...)
	}
	return dedupeTracks(merged), len(jobs), failed
}

// playlistTracks sources tracks from the top playlists matching query; when no
// playlist matches it falls back to a plain track search.
func (a *Aggregator) playlistTracks(ctx context.Context, query string, limit int) ([]domain.Track, error) {
	playlists, err := a.catalog.SearchPlaylists(ctx, query, playlistsPerQuery)
	if err != nil {
		return nil, fmt.Errorf("aggregator: playlist search %q: %w", query, err)
	}
	if len(playlists) == 0 {
		return a.catalog.SearchTracks(ctx, query, limit)
	}

	perPlaylist := (limit + len(playlists) - 1) / len(playlists)
	var all []domain.Track
	var lastErr error
	fetched := 0
	for _, pl := range playlists {
		if pl.ID == "" {
			continue
		}
		tracks, err := a.catalog.GetPlaylistTracks(ctx, pl.ID, perPlaylist)
		if err != nil {
			lastErr = err
			a.log.WithError(err).WithField("playlist_id", pl.ID).Warn("aggregator: playlist tracks failed")
			continue
		}
		fetched++
		all = append(all, tracks...)
	}
	if fetched == 0 && lastErr != nil {
		return nil, fmt.Errorf("aggregator: playlist tracks %q: %w", query, lastErr)
	}

	unique := dedupeTracks(all)
	sortByPopularity(unique)
	if len(unique) > limit {
		unique = unique[:limit]
	}
	return unique, nil
}

func (a *Aggregator) lastResort(ctx context.Context) []domain.Track {
	tracks, err := a.playlistTracks(ctx, lastResortQuery, a.target)
	if err != nil {
		a.log.WithError(err).Error("aggregator: last-resort query failed")
		return []domain.Track{}
	}
	if len(tracks) > a.target {
		tracks = tracks[:a.target]
	}
	return tracks
}

// fallbackQuery picks the extra search used when the strategy under-delivers.
func fallbackQuery(energy float64, mood string) string {
	switch {
	case energy > 0.8:
		return "party hits"
	case energy > 0.5:
		return "upbeat music"
	case mood == "focus" || mood == "chill":
		return "chill vibes"
	default:
		return "top hits 2025"
	}
}

// popularityThreshold is the advisory minimum popularity for a track to count
// as a quality result.
func popularityThreshold(energy float64, mood string) int {
	switch {
	case energy > 0.8 || mood == "party":
		return 60
	case energy > 0.5:
		return 45
	case mood == "focus" || mood == "chill":
		return 30
	default:
		return 40
	}
}

// dedupeTracks keeps the first occurrence of every track id.
func dedupeTracks(tracks []domain.Track) []domain.Track {
	seen := make(map[string]struct{}, len(tracks))
	out := make([]domain.Track, 0, len(tracks))
	for _, t := range tracks {
		if _, dup := seen[t.ID]; dup {
			continue
		}
		seen[t.ID] = struct{}{}
		out = append(out, t)
	}
	return out
}

func sortByPopularity(tracks []domain.Track) {
	sort.SliceStable(tracks, func(i, j int) bool {
		return tracks[i].Popularity > tracks[j].Popularity
	})
}

func firstNonBlank(queries []string, n int) []string {
	if len(queries) > n {
		queries = queries[:n]
	}
	out := make([]string, 0, len(queries))
	for _, q := range queries {
		if strings.TrimSpace(q) != "" {
			out = append(out, q)
		}
	}
	return out
}

func averagePopularity(tracks []domain.Track) float64 {
	if len(tracks) == 0 {
		return 0
	}
	sum := 0
	for _, t := range tracks {
		sum += t.Popularity
	}
	return float64(sum) / float64(len(tracks))
}
