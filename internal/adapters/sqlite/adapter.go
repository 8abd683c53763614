// Package sqlite provides a SQLite-backed implementation of the storage ports:
// session and stats blobs, saved playlists, interaction logs and track analyses.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // Import the driver anonymously

	"github.com/ewilliams-labs/crossfade/internal/core/domain"
	"github.com/ewilliams-labs/crossfade/internal/core/ports"
)

const (
	// PlaylistRetention is how long a saved playlist stays readable.
	PlaylistRetention = 30 * 24 * time.Hour
	// InteractionRetention is how long an interaction log row is kept.
	InteractionRetention = 7 * 24 * time.Hour
)

// Adapter implements the repository ports for SQLite
type Adapter struct {
	db  *sql.DB
	now func() time.Time
}

var (
	_ ports.StateStore         = (*Adapter)(nil)
	_ ports.PlaylistRepository = (*Adapter)(nil)
	_ ports.InteractionLog     = (*Adapter)(nil)
	_ ports.AnalysisRepository = (*Adapter)(nil)
)

// NewAdapter creates a connection and runs the schema migration
func NewAdapter(storagePath string) (*Adapter, error) {
	db, err := sql.Open("sqlite3", storagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}
	// One connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite db: %w", err)
	}

	adapter := &Adapter{db: db, now: time.Now}
	if err := adapter.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return adapter, nil
}

// Close ensures the DB connection is closed gracefully
func (a *Adapter) Close() error {
	return a.db.Close()
}

func (a *Adapter) GetBlob(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := a.db.QueryRowContext(ctx, "SELECT value FROM state_blobs WHERE key = ?", key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load blob %q: %w", key, err)
	}
	return value, nil
}

func (a *Adapter) PutBlob(ctx context.Context, key string, value []byte) error {
	query := `
		INSERT INTO state_blobs (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at;
	`
	if _, err := a.db.ExecContext(ctx, query, key, value, a.now().UnixMilli()); err != nil {
		return fmt.Errorf("failed to save blob %q: %w", key, err)
	}
	return nil
}

// SavePlaylist upserts the playlist for userID and refreshes its expiry.
func (a *Adapter) SavePlaylist(ctx context.Context, userID string, p domain.Playlist) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := a.now()
	queryPlaylist := `
		INSERT INTO playlists (id, user_id, name, description, uri, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			user_id=excluded.user_id,
			name=excluded.name,
			description=excluded.description,
			uri=excluded.uri,
			expires_at=excluded.expires_at;
	`
	if _, err := tx.ExecContext(ctx, queryPlaylist,
		p.ID, userID, p.Name, p.Description, p.URI,
		now.UnixMilli(), now.Add(PlaylistRetention).UnixMilli(),
	); err != nil {
		return fmt.Errorf("failed to save playlist metadata: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM playlist_tracks WHERE playlist_id = ?", p.ID); err != nil {
		return fmt.Errorf("failed to clear old tracks: %w", err)
	}

	stmtTrack, err := tx.PrepareContext(ctx, `
		INSERT INTO tracks (id, name, artists, album, duration_ms, preview_url, uri, popularity)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name=excluded.name,
			artists=excluded.artists,
			album=excluded.album,
			duration_ms=excluded.duration_ms,
			preview_url=excluded.preview_url,
			uri=excluded.uri,
			popularity=excluded.popularity;
	`)
	if err != nil {
		return err
	}
	defer stmtTrack.Close()

	stmtLink, err := tx.PrepareContext(ctx, `
		INSERT INTO playlist_tracks (playlist_id, track_id, position)
		VALUES (?, ?, ?)
		ON CONFLICT(playlist_id, track_id) DO NOTHING
	`)
	if err != nil {
		return err
	}
	defer stmtLink.Close()

	for i, t := range p.Tracks {
		artists, err := json.Marshal(t.Artists)
		if err != nil {
			return fmt.Errorf("failed to encode artists of %s: %w", t.ID, err)
		}
		album, err := json.Marshal(t.Album)
		if err != nil {
			return fmt.Errorf("failed to encode album of %s: %w", t.ID, err)
		}
		if _, err := stmtTrack.ExecContext(ctx,
			t.ID, t.Name, string(artists), string(album), t.DurationMs, t.PreviewURL, t.URI, t.Popularity,
		); err != nil {
			return fmt.Errorf("failed to save track %s: %w", t.ID, err)
		}
		if _, err := stmtLink.ExecContext(ctx, p.ID, t.ID, i); err != nil {
			return fmt.Errorf("failed to link track %s: %w", t.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("transaction commit failed: %w", err)
	}
	return nil
}

// GetPlaylist returns domain.ErrNotFound for unknown, expired, or foreign playlists.
func (a *Adapter) GetPlaylist(ctx context.Context, userID, playlistID string) (domain.Playlist, error) {
	row := a.db.QueryRowContext(ctx, `
		SELECT id, name, description, uri FROM playlists
		WHERE id = ? AND user_id = ? AND expires_at > ?
	`, playlistID, userID, a.now().UnixMilli())
	var playlist domain.Playlist
	if err := row.Scan(&playlist.ID, &playlist.Name, &playlist.Description, &playlist.URI); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Playlist{}, domain.ErrNotFound
		}
		return domain.Playlist{}, fmt.Errorf("failed to load playlist: %w", err)
	}
	playlist.Tracks = []domain.Track{}

	trackRows, err := a.db.QueryContext(ctx, `
		SELECT t.id, t.name, t.artists, t.album, t.duration_ms, t.preview_url, t.uri, t.popularity
		FROM tracks t
		JOIN playlist_tracks pt ON pt.track_id = t.id
		WHERE pt.playlist_id = ?
		ORDER BY pt.position ASC
	`, playlist.ID)
	if err != nil {
		return domain.Playlist{}, fmt.Errorf("failed to load playlist tracks: %w", err)
	}
	defer trackRows.Close()

	for trackRows.Next() {
		var (
			track      domain.Track
			artists    string
			album      string
			previewURL sql.NullString
		)
		if err := trackRows.Scan(
			&track.ID, &track.Name, &artists, &album, &track.DurationMs, &previewURL, &track.URI, &track.Popularity,
		); err != nil {
			return domain.Playlist{}, fmt.Errorf("failed to scan playlist track: %w", err)
		}
		if err := json.Unmarshal([]byte(artists), &track.Artists); err != nil {
			return domain.Playlist{}, fmt.Errorf("failed to decode artists of %s: %w", track.ID, err)
		}
		if err := json.Unmarshal([]byte(album), &track.Album); err != nil {
			return domain.Playlist{}, fmt.Errorf("failed to decode album of %s: %w", track.ID, err)
		}
		track.PreviewURL = previewURL.String
		playlist.Tracks = append(playlist.Tracks, track)
	}
	if err := trackRows.Err(); err != nil {
		return domain.Playlist{}, fmt.Errorf("failed to iterate playlist tracks: %w", err)
	}

	return playlist, nil
}

func (a *Adapter) LogInteraction(ctx context.Context, in domain.Interaction) error {
	ts := in.Timestamp
	if ts == 0 {
		ts = a.now().UnixMilli()
	}
	expires := time.UnixMilli(ts).Add(InteractionRetention).UnixMilli()
	query := `
		INSERT INTO interaction_logs (id, user_id, request, response, action, recommendation_count, timestamp, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`
	if _, err := a.db.ExecContext(ctx, query,
		in.ID, in.UserID, in.Request, in.Response, string(in.Action), in.RecommendationCount, ts, expires,
	); err != nil {
		return fmt.Errorf("failed to log interaction: %w", err)
	}
	return nil
}

// ListInteractions returns the unexpired interactions of userID, newest first.
func (a *Adapter) ListInteractions(ctx context.Context, userID string, limit int) ([]domain.Interaction, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := a.db.QueryContext(ctx, `
		SELECT id, user_id, request, response, action, recommendation_count, timestamp
		FROM interaction_logs
		WHERE user_id = ? AND expires_at > ?
		ORDER BY timestamp DESC
		LIMIT ?
	`, userID, a.now().UnixMilli(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list interactions: %w", err)
	}
	defer rows.Close()

	out := []domain.Interaction{}
	for rows.Next() {
		var (
			in     domain.Interaction
			action string
		)
		if err := rows.Scan(&in.ID, &in.UserID, &in.Request, &in.Response, &action, &in.RecommendationCount, &in.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan interaction: %w", err)
		}
		in.Action = domain.Action(action)
		out = append(out, in)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate interactions: %w", err)
	}
	return out, nil
}

func (a *Adapter) SaveTrackAnalysis(ctx context.Context, an domain.TrackAnalysis) error {
	query := `
		INSERT INTO track_analysis (track_id, energy, analyzed_at) VALUES (?, ?, ?)
		ON CONFLICT(track_id) DO UPDATE SET energy=excluded.energy, analyzed_at=excluded.analyzed_at;
	`
	if _, err := a.db.ExecContext(ctx, query, an.TrackID, an.Energy, a.now().UnixMilli()); err != nil {
		return fmt.Errorf("failed to save track analysis: %w", err)
	}
	return nil
}

func (a *Adapter) GetTrackAnalysis(ctx context.Context, trackID string) (domain.TrackAnalysis, error) {
	an := domain.TrackAnalysis{TrackID: trackID}
	err := a.db.QueryRowContext(ctx, "SELECT energy FROM track_analysis WHERE track_id = ?", trackID).Scan(&an.Energy)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.TrackAnalysis{}, domain.ErrNotFound
		}
		return domain.TrackAnalysis{}, fmt.Errorf("failed to load track analysis: %w", err)
	}
	return an, nil
}

// PurgeExpired drops expired playlists and interaction logs and returns the
// number of rows removed.
func (a *Adapter) PurgeExpired(ctx context.Context) (int64, error) {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := a.now().UnixMilli()
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM playlist_tracks
		WHERE playlist_id IN (SELECT id FROM playlists WHERE expires_at <= ?)
	`, now); err != nil {
		return 0, fmt.Errorf("failed to purge playlist tracks: %w", err)
	}

	var removed int64
	for _, q := range []string{
		"DELETE FROM playlists WHERE expires_at <= ?",
		"DELETE FROM interaction_logs WHERE expires_at <= ?",
	} {
		res, err := tx.ExecContext(ctx, q, now)
		if err != nil {
			return 0, fmt.Errorf("failed to purge expired rows: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		removed += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("transaction commit failed: %w", err)
	}
	return removed, nil
}

func (a *Adapter) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS state_blobs (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS tracks (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		artists TEXT NOT NULL DEFAULT '[]',
		album TEXT NOT NULL DEFAULT '{}',
		duration_ms INTEGER NOT NULL DEFAULT 0,
		preview_url TEXT,
		uri TEXT NOT NULL DEFAULT '',
		popularity INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS playlists (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		uri TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		expires_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS playlist_tracks (
		playlist_id TEXT,
		track_id TEXT,
		position INTEGER NOT NULL,
		PRIMARY KEY (playlist_id, track_id)
	);

	CREATE TABLE IF NOT EXISTS interaction_logs (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		request TEXT NOT NULL,
		response TEXT NOT NULL,
		action TEXT NOT NULL,
		recommendation_count INTEGER NOT NULL,
		timestamp INTEGER NOT NULL,
		expires_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_interaction_logs_user ON interaction_logs (user_id, timestamp);

	CREATE TABLE IF NOT EXISTS track_analysis (
		track_id TEXT PRIMARY KEY,
		energy REAL NOT NULL,
		analyzed_at INTEGER NOT NULL
	);
	`
	_, err := a.db.Exec(query)
	return err
}
