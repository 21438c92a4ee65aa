package watcher

import (
	"testing"
	"time"

	"github.com/desertthunder/coaster/internal/models"
)

func TestPollStateMarker(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("advances forward", func(t *testing.T) {
		state := NewPollState()
		if !state.Advance(base) {
			t.Error("Advance() = false for first timestamp")
		}
		if got := state.Marker(); !got.Equal(base) {
			t.Errorf("Marker() = %v, want %v", got, base)
		}
	})

	t.Run("never moves backward", func(t *testing.T) {
		state := NewPollState()
		state.Advance(base)

		if state.Advance(base.Add(-time.Hour)) {
			t.Error("Advance() = true for earlier timestamp")
		}
		if state.Advance(base) {
			t.Error("Advance() = true for equal timestamp")
		}
		if got := state.Marker(); !got.Equal(base) {
			t.Errorf("Marker() = %v after rejected advances, want %v", got, base)
		}
	})
}

func TestPollStateSeen(t *testing.T) {
	state := NewPollState()

	t.Run("unseen by default", func(t *testing.T) {
		if state.Seen("t1") {
			t.Error("Seen() = true for fresh state")
		}
	})

	t.Run("mark seen is idempotent", func(t *testing.T) {
		state.MarkSeen("t1")
		state.MarkSeen("t1")
		if !state.Seen("t1") {
			t.Error("Seen() = false after MarkSeen")
		}
		if got := state.SeenCount(); got != 1 {
			t.Errorf("SeenCount() = %d, want 1", got)
		}
	})

	t.Run("empty id is ignored", func(t *testing.T) {
		state.MarkSeen("")
		if got := state.SeenCount(); got != 1 {
			t.Errorf("SeenCount() = %d after empty id, want 1", got)
		}
	})
}

func TestObserveTracks(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	state := NewPollState()

	state.ObserveTracks([]models.Track{
		{ID: "t1", AddedAt: base},
		{ID: "t2", AddedAt: base.Add(time.Hour)},
		{ID: "t3", AddedAt: base.Add(-time.Hour)},
	})

	if got := state.SeenCount(); got != 3 {
		t.Errorf("SeenCount() = %d, want 3", got)
	}
	if want := base.Add(time.Hour); !state.Marker().Equal(want) {
		t.Errorf("Marker() = %v, want the newest liked timestamp %v", state.Marker(), want)
	}
}
