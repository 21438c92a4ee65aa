package rules

import (
	"time"

	"github.com/desertthunder/coaster/internal/models"
)

// ArtistSet is a read-only view of the known-artist index.
type ArtistSet interface {
	// Contains reports whether the artist identifier is known.
	Contains(artistID string) bool
}

// Context is the snapshot a rule evaluates: the candidate track, a read-only
// view of the known-artist index, and the evaluation timestamp.
//
// A Context is built fresh per track and never mutated after construction;
// the unknown-artist partition is derived once so repeated evaluations see
// identical facts.
type Context struct {
	Track models.Track
	Known ArtistSet
	Now   time.Time

	unknown []models.Artist
	known   []models.Artist
}

// NewContext builds an evaluation context for the given track against the
// known-artist set. A zero now defaults to the current time.
func NewContext(track models.Track, known ArtistSet, now time.Time) *Context {
	if now.IsZero() {
		now = time.Now()
	}

	ctx := &Context{Track: track, Known: known, Now: now}

	seen := make(map[string]struct{}, len(track.Artists))
	for _, artist := range track.Artists {
		if _, dup := seen[artist.ID]; dup {
			continue
		}
		seen[artist.ID] = struct{}{}

		if known != nil && known.Contains(artist.ID) {
			ctx.known = append(ctx.known, artist)
		} else {
			ctx.unknown = append(ctx.unknown, artist)
		}
	}

	return ctx
}

// ArtistCount returns the number of distinct artists credited on the track.
func (c *Context) ArtistCount() int {
	return len(c.known) + len(c.unknown)
}

// UnknownArtists returns the track's artists absent from the known set, in credit order.
func (c *Context) UnknownArtists() []models.Artist {
	return c.unknown
}

// KnownArtists returns the track's artists present in the known set, in credit order.
func (c *Context) KnownArtists() []models.Artist {
	return c.known
}
