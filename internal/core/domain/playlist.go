package domain

import "errors"

var ErrDuplicateTrack = errors.New("domain: duplicate track")

type Playlist struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Tracks      []Track `json:"tracks"`
	URI         string  `json:"uri"`
}

func NewPlaylist(id, name, description string) (*Playlist, error) {
	if id == "" || name == "" {
		return nil, errors.New("domain: invalid argument")
	}
	return &Playlist{
		ID:          id,
		Name:        name,
		Description: description,
		Tracks:      []Track{},
	}, nil
}

// AddTrack appends a track to the playlist while preventing duplicate ids.
// If a track with the same id already exists, AddTrack returns ErrDuplicateTrack.
func (p *Playlist) AddTrack(t Track) error {
	for _, ex := range p.Tracks {
		if ex.ID == t.ID {
			return ErrDuplicateTrack
		}
	}
	p.Tracks = append(p.Tracks, t)
	return nil
}

// TrackURIs returns the provider URIs of the playlist tracks in order.
func (p *Playlist) TrackURIs() []string {
	uris := make([]string, 0, len(p.Tracks))
	for _, t := range p.Tracks {
		if t.URI != "" {
			uris = append(uris, t.URI)
		}
	}
	return uris
}
