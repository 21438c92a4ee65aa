package watcher

import (
	"context"
	"fmt"

	"github.com/desertthunder/coaster/internal/models"
	"github.com/desertthunder/coaster/internal/services"
	"github.com/desertthunder/coaster/internal/shared"
)

// KnownArtistIndex is the in-memory set of artist identifiers the listener
// already knows: artists found in the liked-tracks scan window plus artists
// absorbed from tracks processed during the run.
//
// The index is append-only for the lifetime of the process; entries are
// never removed, which keeps triggers idempotent. It is owned and mutated
// by the single watcher goroutine.
type KnownArtistIndex struct {
	ids map[string]struct{}
}

// NewKnownArtistIndex creates an empty index.
func NewKnownArtistIndex() *KnownArtistIndex {
	return &KnownArtistIndex{ids: make(map[string]struct{})}
}

// Build populates the index by scanning up to scanLimit of the listener's
// most recently liked tracks and inserting every credited artist.
//
// The scanned tracks are returned so the caller can seed poll state from
// the same fetch. On failure the index is left empty and the error wraps
// [shared.ErrIndexBuild]; proceeding with an empty index would trigger on
// every collaboration, so callers should treat this as fatal at startup.
func (i *KnownArtistIndex) Build(ctx context.Context, svc services.Service, scanLimit int) ([]models.Track, error) {
	tracks, err := services.AllLiked(ctx, svc, scanLimit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrIndexBuild, err)
	}

	for _, track := range tracks {
		i.AddTrack(track)
	}
	return tracks, nil
}

// Contains reports whether the artist identifier is known.
func (i *KnownArtistIndex) Contains(artistID string) bool {
	_, ok := i.ids[artistID]
	return ok
}

// Add inserts an artist identifier. Idempotent.
func (i *KnownArtistIndex) Add(artistID string) {
	if artistID == "" {
		return
	}
	i.ids[artistID] = struct{}{}
}

// AddAll inserts every identifier in ids.
func (i *KnownArtistIndex) AddAll(ids []string) {
	for _, id := range ids {
		i.Add(id)
	}
}

// AddTrack inserts every artist credited on the track.
func (i *KnownArtistIndex) AddTrack(track models.Track) {
	for _, artist := range track.Artists {
		i.Add(artist.ID)
	}
}

// Len returns the number of known artists.
func (i *KnownArtistIndex) Len() int {
	return len(i.ids)
}

// IDs returns the known artist identifiers in no particular order.
func (i *KnownArtistIndex) IDs() []string {
	ids := make([]string, 0, len(i.ids))
	for id := range i.ids {
		ids = append(ids, id)
	}
	return ids
}
