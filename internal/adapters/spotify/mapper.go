package spotify

import "github.com/ewilliams-labs/crossfade/internal/core/domain"

// mapTrackToDomain converts a raw Spotify track to a domain track.
func mapTrackToDomain(st spotifyTrack) domain.Track {
	artists := make([]domain.Artist, 0, len(st.Artists))
	for _, a := range st.Artists {
		artists = append(artists, domain.Artist{ID: a.ID, Name: a.Name})
	}

	images := make([]domain.Image, 0, len(st.Album.Images))
	for _, img := range st.Album.Images {
		images = append(images, domain.Image{URL: img.URL, Width: img.Width, Height: img.Height})
	}

	dt := domain.Track{
		ID:         st.ID,
		Name:       st.Name,
		Artists:    artists,
		Album:      domain.Album{ID: st.Album.ID, Name: st.Album.Name, Images: images},
		DurationMs: st.DurationMs,
		URI:        st.URI,
		Popularity: st.Popularity,
	}
	if st.PreviewURL != nil {
		dt.PreviewURL = *st.PreviewURL
	}
	if dt.URI == "" && dt.ID != "" {
		dt.URI = "spotify:track:" + dt.ID
	}
	return dt
}

// mapPlaylistItems keeps the playable tracks of a playlist page: local files
// and null entries are skipped.
func mapPlaylistItems(items []spotifyPlaylistItem) []domain.Track {
	tracks := make([]domain.Track, 0, len(items))
	for _, item := range items {
		if item.IsLocal || item.Track == nil || item.Track.IsLocal || item.Track.ID == "" {
			continue
		}
		tracks = append(tracks, mapTrackToDomain(*item.Track))
	}
	return tracks
}
