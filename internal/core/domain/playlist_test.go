package domain

import (
	"errors"
	"reflect"
	"testing"
)

func TestPlaylist_AddTrack(t *testing.T) {
	tests := []struct {
		name          string
		initialTracks []Track
		toAdd         Track
		wantErr       error
		wantLen       int
	}{
		{
			name:          "adds new track successfully",
			initialTracks: []Track{},
			toAdd:         Track{ID: "t1", Name: "Song One", Artists: []Artist{{Name: "Artist A"}}},
			wantErr:       nil,
			wantLen:       1,
		},
		{
			name: "fails when adding track with duplicate id",
			initialTracks: []Track{
				{ID: "t1", Name: "Existing", Popularity: 10},
			},
			toAdd:   Track{ID: "t1", Name: "Existing (Remastered)", Popularity: 80},
			wantErr: ErrDuplicateTrack,
			wantLen: 1,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p, err := NewPlaylist("pl-1", "Test Playlist", "")
			if err != nil {
				t.Fatalf("failed to create playlist: %v", err)
			}
			p.Tracks = append(p.Tracks, tc.initialTracks...)

			err = p.AddTrack(tc.toAdd)
			if tc.wantErr == nil {
				if err != nil {
					t.Fatalf("expected no error, got: %v", err)
				}
			} else if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected error %v, got %v", tc.wantErr, err)
			}

			if got := len(p.Tracks); got != tc.wantLen {
				t.Fatalf("expected %d tracks, got %d", tc.wantLen, got)
			}

			if tc.wantErr == nil {
				last := p.Tracks[len(p.Tracks)-1]
				if !reflect.DeepEqual(last, tc.toAdd) {
					t.Fatalf("last track mismatch: want %+v, got %+v", tc.toAdd, last)
				}
			}
		})
	}
}

func TestNewPlaylist_InvalidArguments(t *testing.T) {
	if _, err := NewPlaylist("", "name", ""); err == nil {
		t.Fatal("expected error for empty id")
	}
	if _, err := NewPlaylist("id", "", ""); err == nil {
		t.Fatal("expected error for empty name")
	}
}

func TestPlaylist_TrackURIs(t *testing.T) {
	p := Playlist{Tracks: []Track{{ID: "a", URI: "spotify:track:a"}, {ID: "b"}, {ID: "c", URI: "spotify:track:c"}}}
	got := p.TrackURIs()
	want := []string{"spotify:track:a", "spotify:track:c"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("TrackURIs() = %v, want %v", got, want)
	}
}
