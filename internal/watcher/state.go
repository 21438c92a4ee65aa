package watcher

import (
	"time"

	"github.com/desertthunder/coaster/internal/models"
)

// PollState tracks where the poll loop left off: the timestamp of the
// newest observed like plus the set of track IDs already processed.
//
// The marker only ever advances. A cycle that errors before completion
// leaves it untouched so the same tracks are retried next cycle. Owned by
// the single watcher goroutine.
type PollState struct {
	marker time.Time
	seen   map[string]struct{}
}

// NewPollState creates an empty poll state.
func NewPollState() *PollState {
	return &PollState{seen: make(map[string]struct{})}
}

// Marker returns the timestamp of the newest observed like.
func (s *PollState) Marker() time.Time {
	return s.marker
}

// Advance moves the marker forward to t. A t at or before the current
// marker is ignored; returns whether the marker moved.
func (s *PollState) Advance(t time.Time) bool {
	if t.After(s.marker) {
		s.marker = t
		return true
	}
	return false
}

// Seen reports whether the track has already been processed.
func (s *PollState) Seen(trackID string) bool {
	_, ok := s.seen[trackID]
	return ok
}

// MarkSeen records the track as processed. Idempotent.
func (s *PollState) MarkSeen(trackID string) {
	if trackID == "" {
		return
	}
	s.seen[trackID] = struct{}{}
}

// SeenCount returns the number of processed tracks.
func (s *PollState) SeenCount() int {
	return len(s.seen)
}

// SeenIDs returns the processed track identifiers in no particular order.
func (s *PollState) SeenIDs() []string {
	ids := make([]string, 0, len(s.seen))
	for id := range s.seen {
		ids = append(ids, id)
	}
	return ids
}

// ObserveTracks marks every track as seen and advances the marker to the
// newest liked timestamp among them. Used to seed state at startup.
func (s *PollState) ObserveTracks(tracks []models.Track) {
	for _, track := range tracks {
		s.MarkSeen(track.ID)
		s.Advance(track.AddedAt)
	}
}
