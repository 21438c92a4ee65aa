// package models defines the data model for the liked-songs watcher
package models

import (
	"time"
)

// Artist represents a streaming-service artist.
//
// The ID is the service's opaque, stable identifier; artists are immutable
// once observed.
type Artist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URI  string `json:"uri"`
}

// Track represents a streaming-service track, snapshotted at observation
// time. AddedAt is the timestamp the listener liked the track, when known.
type Track struct {
	ID      string    `json:"id"`
	Name    string    `json:"name"`
	URI     string    `json:"uri"`
	Artists []Artist  `json:"artists"`
	AddedAt time.Time `json:"added_at,omitempty"`
}

// ArtistIDs returns the IDs of the track's credited artists, deduplicated,
// in credit order.
func (t Track) ArtistIDs() []string {
	seen := make(map[string]struct{}, len(t.Artists))
	ids := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		if _, ok := seen[a.ID]; ok {
			continue
		}
		seen[a.ID] = struct{}{}
		ids = append(ids, a.ID)
	}
	return ids
}

// ArtistNames returns the display names of the track's credited artists.
func (t Track) ArtistNames() []string {
	names := make([]string, len(t.Artists))
	for i, a := range t.Artists {
		names[i] = a.Name
	}
	return names
}

// IsCollaboration reports whether the track is credited to more than one artist.
func (t Track) IsCollaboration() bool {
	return len(t.Artists) > 1
}

// User represents the authenticated listener on a streaming service.
type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// Playback describes the listener's current playback session, if any.
type Playback struct {
	IsPlaying bool   `json:"is_playing"`
	TrackID   string `json:"track_id,omitempty"`
	TrackName string `json:"track_name,omitempty"`
}
