package watcher

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/desertthunder/coaster/internal/models"
	"github.com/desertthunder/coaster/internal/shared"
	tu "github.com/desertthunder/coaster/internal/testing"
)

func watchConfig() shared.ScrapingConfig {
	return shared.ScrapingConfig{
		MinArtists:            2,
		TopTracksLimit:        1,
		SkipKnownArtists:      true,
		PollIntervalSeconds:   30,
		KnownArtistsScanLimit: 500,
	}
}

func newTestWatcher(svc *tu.MockService, cfg shared.ScrapingConfig, dryRun bool) *Watcher {
	return New(Opts{
		Service: svc,
		Config:  cfg,
		Logger:  shared.NewLogger(io.Discard),
		DryRun:  dryRun,
	})
}

func TestWatcherBootstrap(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("seeds index and marker from the liked history", func(t *testing.T) {
		svc := &tu.MockService{Liked: []models.Track{
			likedTrack("t2", base, "a1", "a2"),
			likedTrack("t1", base.Add(-time.Hour), "a1"),
		}}
		w := newTestWatcher(svc, watchConfig(), false)

		if err := w.Bootstrap(context.Background()); err != nil {
			t.Fatalf("Bootstrap() error = %v", err)
		}
		if w.Index().Len() != 2 {
			t.Errorf("index has %d artists, want 2", w.Index().Len())
		}
		if !w.State().Marker().Equal(base) {
			t.Errorf("marker = %v, want newest like %v", w.State().Marker(), base)
		}
		if w.User() == nil {
			t.Error("User() = nil after bootstrap")
		}
	})

	t.Run("failed scan is fatal", func(t *testing.T) {
		svc := &tu.MockService{LikedErr: errors.New("503")}
		w := newTestWatcher(svc, watchConfig(), false)

		if err := w.Bootstrap(context.Background()); !errors.Is(err, shared.ErrIndexBuild) {
			t.Errorf("Bootstrap() error = %v, want ErrIndexBuild", err)
		}
	})
}

func TestWatcherTriggersOnUnknownCollaboration(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	svc := &tu.MockService{
		Liked: []models.Track{likedTrack("t1", base, "a1")},
		TopTracks: map[string][]models.Track{
			"a2": {likedTrack("x2", time.Time{}, "a2")},
			"a3": {likedTrack("x3", time.Time{}, "a3")},
		},
	}
	w := newTestWatcher(svc, watchConfig(), false)
	if err := w.Bootstrap(ctx); err != nil {
		t.Fatalf("Bootstrap() error = %v", err)
	}

	svc.Like(likedTrack("t2", base.Add(time.Minute), "a2", "a3"))

	result, err := w.RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if result.NewTracks != 1 || result.Triggered != 1 {
		t.Errorf("result = %+v, want 1 new track and 1 trigger", result)
	}
	if len(svc.Queued) != 2 {
		t.Fatalf("queued %d tracks, want one top track per unknown artist", len(svc.Queued))
	}

	t.Run("triggering artists become known", func(t *testing.T) {
		if !w.Index().Contains("a2") || !w.Index().Contains("a3") {
			t.Error("triggering artists were not absorbed into the index")
		}
	})

	t.Run("marker advances to the new like", func(t *testing.T) {
		if want := base.Add(time.Minute); !w.State().Marker().Equal(want) {
			t.Errorf("marker = %v, want %v", w.State().Marker(), want)
		}
	})

	t.Run("same artists never trigger twice", func(t *testing.T) {
		svc.Like(likedTrack("t3", base.Add(2*time.Minute), "a2", "a3"))

		result, err := w.RunOnce(ctx)
		if err != nil {
			t.Fatalf("RunOnce() error = %v", err)
		}
		if result.Triggered != 0 {
			t.Errorf("Triggered = %d for already-known artists, want 0", result.Triggered)
		}
		if len(svc.Queued) != 2 {
			t.Errorf("queued %d tracks total, want no additions", len(svc.Queued))
		}
	})
}

func TestWatcherSkipsNonTriggeringTracks(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	tc := []struct {
		name  string
		track models.Track
	}{
		{name: "solo track", track: likedTrack("t2", base.Add(time.Minute), "a9")},
		{name: "collaboration with a known artist", track: likedTrack("t3", base.Add(2*time.Minute), "a1", "a8")},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			svc := &tu.MockService{Liked: []models.Track{likedTrack("t1", base, "a1")}}
			w := newTestWatcher(svc, watchConfig(), false)
			if err := w.Bootstrap(ctx); err != nil {
				t.Fatalf("Bootstrap() error = %v", err)
			}

			svc.Like(tt.track)

			result, err := w.RunOnce(ctx)
			if err != nil {
				t.Fatalf("RunOnce() error = %v", err)
			}
			if result.Triggered != 0 {
				t.Errorf("Triggered = %d, want 0", result.Triggered)
			}
			if len(svc.Queued) != 0 {
				t.Errorf("queued %v, want nothing", svc.Queued)
			}

			// Even a skipped track's artists join the liked history.
			for _, artist := range tt.track.Artists {
				if !w.Index().Contains(artist.ID) {
					t.Errorf("artist %s was not absorbed", artist.ID)
				}
			}
		})
	}
}

func TestWatcherFetchFailure(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	svc := &tu.MockService{Liked: []models.Track{likedTrack("t1", base, "a1")}}
	w := newTestWatcher(svc, watchConfig(), false)
	if err := w.Bootstrap(ctx); err != nil {
		t.Fatalf("Bootstrap() error = %v", err)
	}
	marker := w.State().Marker()

	svc.Like(likedTrack("t2", base.Add(time.Minute), "a2", "a3"))
	svc.LikedErr = errors.New("rate limited")

	if _, err := w.RunOnce(ctx); !errors.Is(err, shared.ErrFetchFailed) {
		t.Fatalf("RunOnce() error = %v, want ErrFetchFailed", err)
	}

	t.Run("marker survives the failed cycle", func(t *testing.T) {
		if !w.State().Marker().Equal(marker) {
			t.Errorf("marker = %v after failure, want unchanged %v", w.State().Marker(), marker)
		}
	})

	t.Run("same tracks are retried next cycle", func(t *testing.T) {
		svc.LikedErr = nil
		result, err := w.RunOnce(ctx)
		if err != nil {
			t.Fatalf("RunOnce() error = %v", err)
		}
		if result.NewTracks != 1 || result.Triggered != 1 {
			t.Errorf("result = %+v, want the missed like processed", result)
		}
	})
}

func TestWatcherDryRun(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	svc := &tu.MockService{
		Liked: []models.Track{likedTrack("t1", base, "a1")},
		TopTracks: map[string][]models.Track{
			"a2": {likedTrack("x2", time.Time{}, "a2")},
		},
	}
	w := newTestWatcher(svc, watchConfig(), true)
	if err := w.Bootstrap(ctx); err != nil {
		t.Fatalf("Bootstrap() error = %v", err)
	}

	svc.Like(likedTrack("t2", base.Add(time.Minute), "a2", "a3"))

	result, err := w.RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}

	if result.Triggered != 1 {
		t.Errorf("Triggered = %d, want the verdict still computed", result.Triggered)
	}
	if len(svc.Queued) != 0 || svc.TopCalls != 0 {
		t.Errorf("dry run made service calls: queued=%v topCalls=%d", svc.Queued, svc.TopCalls)
	}
	if !w.Index().Contains("a2") || !w.Index().Contains("a3") {
		t.Error("dry run should still absorb triggering artists")
	}
}

func TestWatcherQueueFailures(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	t.Run("no active playback is recoverable", func(t *testing.T) {
		svc := &tu.NoPlaybackService{MockService: tu.MockService{
			Liked: []models.Track{likedTrack("t1", base, "a1")},
			TopTracks: map[string][]models.Track{
				"a2": {likedTrack("x2", time.Time{}, "a2")},
			},
		}}
		w := New(Opts{
			Service: svc,
			Config:  watchConfig(),
			Logger:  shared.NewLogger(io.Discard),
		})
		if err := w.Bootstrap(ctx); err != nil {
			t.Fatalf("Bootstrap() error = %v", err)
		}

		svc.Like(likedTrack("t2", base.Add(time.Minute), "a2", "a3"))

		result, err := w.RunOnce(ctx)
		if err != nil {
			t.Fatalf("RunOnce() error = %v, queue failures must not abort the cycle", err)
		}
		if len(result.Queued) != 0 {
			t.Errorf("Queued = %v, want nothing with no playback device", result.Queued)
		}
		if !w.Index().Contains("a2") || !w.Index().Contains("a3") {
			t.Error("artists must be absorbed even when queueing fails")
		}
	})

	t.Run("one artist's failure does not block the others", func(t *testing.T) {
		topX := likedTrack("x1", time.Time{}, "a2")
		topX.URI = "uri:x1"
		topY := likedTrack("y1", time.Time{}, "a3")
		topY.URI = "uri:y1"

		svc := &tu.MockService{
			Liked: []models.Track{likedTrack("t1", base, "a1")},
			TopTracks: map[string][]models.Track{
				"a2": {topX},
				"a3": {topY},
			},
			QueueErrFor: map[string]error{"uri:y1": shared.ErrQueueFailed},
		}
		w := newTestWatcher(svc, watchConfig(), false)
		if err := w.Bootstrap(ctx); err != nil {
			t.Fatalf("Bootstrap() error = %v", err)
		}

		svc.Like(likedTrack("t2", base.Add(time.Minute), "a2", "a3"))

		result, err := w.RunOnce(ctx)
		if err != nil {
			t.Fatalf("RunOnce() error = %v, one failed enqueue must not abort the cycle", err)
		}
		if len(svc.Queued) != 1 || svc.Queued[0] != "uri:x1" {
			t.Errorf("Queued = %v, want only %q", svc.Queued, "uri:x1")
		}
		if len(result.Queued) != 1 || result.Queued[0].ID != "x1" {
			t.Errorf("result.Queued = %v, want only the track that was accepted", result.Queued)
		}
		if !w.Index().Contains("a2") || !w.Index().Contains("a3") {
			t.Error("both artists must be absorbed regardless of per-artist queue outcome")
		}
	})

	t.Run("top-track fetch failure skips only that artist", func(t *testing.T) {
		svc := &tu.MockService{
			Liked:  []models.Track{likedTrack("t1", base, "a1")},
			TopErr: errors.New("artist endpoint down"),
		}
		w := newTestWatcher(svc, watchConfig(), false)
		if err := w.Bootstrap(ctx); err != nil {
			t.Fatalf("Bootstrap() error = %v", err)
		}

		svc.Like(likedTrack("t2", base.Add(time.Minute), "a2", "a3"))

		if _, err := w.RunOnce(ctx); err != nil {
			t.Fatalf("RunOnce() error = %v", err)
		}
		if len(svc.Queued) != 0 {
			t.Errorf("queued %v despite fetch failures", svc.Queued)
		}
	})
}

func TestWatcherSkipsAlreadyLikedTopTracks(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	trigger := likedTrack("t2", base.Add(time.Minute), "a2", "a3")
	svc := &tu.MockService{
		Liked: []models.Track{likedTrack("t1", base, "a1")},
		TopTracks: map[string][]models.Track{
			"a2": {trigger},                             // top track is the trigger itself
			"a3": {likedTrack("t1", time.Time{}, "a1")}, // top track already liked
		},
	}
	w := newTestWatcher(svc, watchConfig(), false)
	if err := w.Bootstrap(ctx); err != nil {
		t.Fatalf("Bootstrap() error = %v", err)
	}

	svc.Like(trigger)

	result, err := w.RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if len(result.Queued) != 0 || len(svc.Queued) != 0 {
		t.Errorf("queued %v, want the trigger and already-liked tracks skipped", svc.Queued)
	}
}

func TestWatcherStartHonorsCancellation(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc := &tu.MockService{Liked: []models.Track{likedTrack("t1", base, "a1")}}

	cfg := watchConfig()
	cfg.PollIntervalSeconds = 0
	w := newTestWatcher(svc, cfg, false)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v, want clean shutdown", err)
	}
	if w.Phase() != PhaseStopped {
		t.Errorf("Phase() = %v after shutdown, want %v", w.Phase(), PhaseStopped)
	}
}

func TestWatcherStop(t *testing.T) {
	svc := &tu.MockService{}
	w := New(Opts{Service: svc, Config: watchConfig(), Logger: shared.NewLogger(io.Discard)})

	w.Stop()

	if w.Phase() != PhaseStopped {
		t.Errorf("Phase() = %v after Stop, want %v", w.Phase(), PhaseStopped)
	}
}

func TestPhaseString(t *testing.T) {
	tc := []struct {
		phase Phase
		want  string
	}{
		{PhaseIdle, "idle"},
		{PhaseFetching, "fetching"},
		{PhaseEvaluating, "evaluating"},
		{PhaseQueueing, "queueing"},
		{PhaseStopped, "stopped"},
	}

	for _, tt := range tc {
		if got := tt.phase.String(); got != tt.want {
			t.Errorf("Phase(%d).String() = %v, want %v", tt.phase, got, tt.want)
		}
	}
}
