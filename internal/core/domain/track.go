package domain

// Artist is a credited artist on a track.
type Artist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Image is album artwork at a given size.
type Image struct {
	URL    string `json:"url"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// Album is the album a track belongs to.
type Album struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Images []Image `json:"images"`
}

// Track represents a musical track in the domain layer.
// Identity is ID: two tracks with the same ID are the same track even if
// the provider returned slightly different metadata for them.
type Track struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Artists    []Artist `json:"artists"`
	Album      Album    `json:"album"`
	DurationMs int      `json:"duration_ms"`
	PreviewURL string   `json:"preview_url,omitempty"`
	URI        string   `json:"uri"`
	Popularity int      `json:"popularity"`
}

// PrimaryArtist returns the first credited artist name, or "" if there is none.
func (t Track) PrimaryArtist() string {
	if len(t.Artists) == 0 {
		return ""
	}
	return t.Artists[0].Name
}

// PlaylistSummary is a playlist search hit.
type PlaylistSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// TrackAnalysis is the locally computed loudness estimate of a track preview.
type TrackAnalysis struct {
	TrackID string  `json:"track_id"`
	Energy  float64 `json:"energy"`
}
