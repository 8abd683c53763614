package spotify

// spotifyArtist is the simplified artist object embedded in tracks.
type spotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type spotifyImage struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type spotifyAlbum struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Images []spotifyImage `json:"images"`
}

// spotifyTrack is the full track object returned by search and playlist endpoints.
type spotifyTrack struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Artists    []spotifyArtist `json:"artists"`
	Album      spotifyAlbum    `json:"album"`
	DurationMs int             `json:"duration_ms"`
	PreviewURL *string         `json:"preview_url"`
	URI        string          `json:"uri"`
	Popularity int             `json:"popularity"`
	IsLocal    bool            `json:"is_local"`
}

// spotifyPlaylistSummary is a playlist search hit. Search results may contain
// null entries, hence the pointer items in searchResponse.
type spotifyPlaylistSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// spotifyPlaylistItem wraps a playlist entry; Track is null for removed or
// unavailable items.
type spotifyPlaylistItem struct {
	IsLocal bool          `json:"is_local"`
	Track   *spotifyTrack `json:"track"`
}

type searchResponse struct {
	Tracks *struct {
		Items []spotifyTrack `json:"items"`
	} `json:"tracks"`
	Playlists *struct {
		Items []*spotifyPlaylistSummary `json:"items"`
	} `json:"playlists"`
}

type playlistTracksResponse struct {
	Items []spotifyPlaylistItem `json:"items"`
}

type errorResponse struct {
	Error struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
	} `json:"error"`
}
