package watcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/coaster/internal/models"
	"github.com/desertthunder/coaster/internal/rules"
	"github.com/desertthunder/coaster/internal/services"
	"github.com/desertthunder/coaster/internal/shared"
	"golang.org/x/time/rate"
)

// fetchCount is how many recent likes each poll cycle inspects.
const fetchCount = 20

// queueRate caps service calls during the queueing phase, requests per second.
const queueRate = 5.0

// Phase enumerates the poll loop's states.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseFetching
	PhaseEvaluating
	PhaseQueueing
	PhaseStopped
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseFetching:
		return "fetching"
	case PhaseEvaluating:
		return "evaluating"
	case PhaseQueueing:
		return "queueing"
	case PhaseStopped:
		return "stopped"
	default:
		return ""
	}
}

// CycleResult summarizes one fetch-evaluate-queue pass.
type CycleResult struct {
	NewTracks int            // newly liked tracks observed
	Triggered int            // tracks whose verdict passed
	Queued    []models.Track // top tracks enqueued (empty in dry-run)
}

// Opts contains the dependencies and switches for creating a Watcher.
type Opts struct {
	Service services.Service
	Engine  *rules.Engine
	Config  shared.ScrapingConfig
	Logger  *log.Logger
	Store   *StoreOpener // optional cache; nil disables persistence
	DryRun  bool

	// OnQueued is invoked after a passing track's artists have been
	// processed, with the triggering track and whatever got enqueued.
	OnQueued func(trigger models.Track, queued []models.Track)

	// Now overrides the clock for tests.
	Now func() time.Time
}

// StoreOpener defers cache-store construction until the authenticated user
// is known, since cache rows are scoped by (service, user).
type StoreOpener struct {
	Open func(service, userID string) *Store
}

// Watcher drives the poll loop: fetch newly liked tracks, evaluate each
// through the rules engine, queue top tracks for passing collaborations.
//
// All state (index, poll marker, phase) is owned by the goroutine running
// the loop; no locking is needed by construction.
type Watcher struct {
	svc      services.Service
	engine   *rules.Engine
	cfg      shared.ScrapingConfig
	logger   *log.Logger
	opener   *StoreOpener
	store    *Store
	dryRun   bool
	onQueued func(models.Track, []models.Track)
	now      func() time.Time

	index       *KnownArtistIndex
	state       *PollState
	phase       Phase
	limiter     *rate.Limiter
	user        *models.User
	initialized bool
}

// New creates a Watcher. The index is empty until [Watcher.Bootstrap] runs.
func New(opts Opts) *Watcher {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Engine == nil {
		opts.Engine = rules.NewEngine(opts.Config)
	}

	return &Watcher{
		svc:      opts.Service,
		engine:   opts.Engine,
		cfg:      opts.Config,
		logger:   opts.Logger,
		opener:   opts.Store,
		dryRun:   opts.DryRun,
		onQueued: opts.OnQueued,
		now:      opts.Now,
		index:    NewKnownArtistIndex(),
		state:    NewPollState(),
		phase:    PhaseIdle,
		limiter:  rate.NewLimiter(rate.Limit(queueRate), 1),
	}
}

// Index exposes the known-artist index for reporting.
func (w *Watcher) Index() *KnownArtistIndex { return w.index }

// State exposes the poll state for reporting.
func (w *Watcher) State() *PollState { return w.state }

// Phase returns the loop's current phase.
func (w *Watcher) Phase() Phase { return w.phase }

// Stop marks the loop as stopped. Callers driving single cycles with
// RunOnce use this to finalize the phase.
func (w *Watcher) Stop() { w.phase = PhaseStopped }

// User returns the authenticated listener, once Bootstrap has run.
func (w *Watcher) User() *models.User { return w.user }

// Bootstrap resolves the listener, builds or restores the known-artist
// index, and seeds the poll marker from the most recent like.
//
// A failed index build is fatal: an empty index would trigger on every
// collaboration. A failed cache load only degrades to the full scan.
func (w *Watcher) Bootstrap(ctx context.Context) error {
	if w.initialized {
		return nil
	}

	user, err := w.svc.CurrentUser(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to resolve user: %v", shared.ErrIndexBuild, err)
	}
	w.user = user

	if w.opener != nil && w.opener.Open != nil {
		w.store = w.opener.Open(w.svc.Name(), user.ID)
	}

	if w.cfg.UseCache && w.store != nil && w.restoreFromCache(ctx) {
		w.initialized = true
		return nil
	}

	w.logger.Info("building known-artist index",
		"scan_limit", w.cfg.KnownArtistsScanLimit)

	scanned, err := w.index.Build(ctx, w.svc, w.cfg.KnownArtistsScanLimit)
	if err != nil {
		return err
	}
	w.state.ObserveTracks(scanned)

	w.logger.Info("known-artist index built",
		"artists", w.index.Len(), "tracks_scanned", len(scanned))

	w.persist(scanned)
	w.initialized = true
	return nil
}

// restoreFromCache loads the index and seen set from the cache store and
// absorbs likes added while the process was offline. Returns false when the
// cache is empty or unreadable.
func (w *Watcher) restoreFromCache(ctx context.Context) bool {
	artists, err := w.store.KnownArtists()
	if err != nil {
		w.logger.Warn("failed to load cached artists, rescanning", "error", err)
		return false
	}
	if len(artists) == 0 {
		return false
	}

	seen, err := w.store.SeenTracks()
	if err != nil {
		w.logger.Warn("failed to load cached tracks, rescanning", "error", err)
		return false
	}

	w.index.AddAll(artists)
	for _, id := range seen {
		w.state.MarkSeen(id)
	}

	w.logger.Info("restored cache",
		"artists", w.index.Len(), "tracks", w.state.SeenCount())

	// Sync recent likes to catch tracks liked while offline; otherwise
	// they would surface as new on the first poll cycle.
	recent, err := services.RecentlyLiked(ctx, w.svc, fetchCount+30)
	if err != nil {
		w.logger.Warn("offline-likes sync failed", "error", err)
		return true
	}

	var synced []models.Track
	for _, track := range recent {
		w.state.Advance(track.AddedAt)
		if !w.state.Seen(track.ID) {
			w.state.MarkSeen(track.ID)
			w.index.AddTrack(track)
			synced = append(synced, track)
		}
	}
	if len(synced) > 0 {
		w.logger.Info("absorbed likes added while offline", "count", len(synced))
		w.persist(synced)
	}

	return true
}

// RunOnce performs a single fetch-evaluate-queue pass.
//
// Fetch failures leave the poll marker untouched and are returned for the
// caller to log; the same tracks are retried next cycle. Per-artist queue
// failures never abort the pass.
func (w *Watcher) RunOnce(ctx context.Context) (*CycleResult, error) {
	if !w.initialized {
		if err := w.Bootstrap(ctx); err != nil {
			return nil, err
		}
	}

	w.phase = PhaseFetching
	defer func() {
		if w.phase != PhaseStopped {
			w.phase = PhaseIdle
		}
	}()

	recent, err := services.RecentlyLiked(ctx, w.svc, fetchCount)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrFetchFailed, err)
	}

	fresh := make([]models.Track, 0, len(recent))
	for _, track := range recent {
		if !w.state.Seen(track.ID) {
			fresh = append(fresh, track)
		}
	}

	// Services return newest first; process oldest first to preserve the
	// causal order of discovery.
	for i, j := 0, len(fresh)-1; i < j; i, j = i+1, j-1 {
		fresh[i], fresh[j] = fresh[j], fresh[i]
	}

	result := &CycleResult{NewTracks: len(fresh)}
	if len(fresh) == 0 {
		w.logger.Debug("no new liked tracks")
		w.advanceMarker(recent)
		return result, nil
	}

	w.logger.Info("found new liked tracks", "count", len(fresh))

	w.phase = PhaseEvaluating
	for _, track := range fresh {
		queued, triggered := w.processTrack(ctx, track)
		if triggered {
			result.Triggered++
		}
		result.Queued = append(result.Queued, queued...)
		w.phase = PhaseEvaluating
	}

	w.advanceMarker(recent)
	w.persist(fresh)
	return result, nil
}

// processTrack evaluates one newly liked track and queues top tracks when
// the verdict passes. The track's artists are absorbed into the index on
// every path: they are part of the liked history now, hence known.
func (w *Watcher) processTrack(ctx context.Context, track models.Track) ([]models.Track, bool) {
	rctx := rules.NewContext(track, w.index, w.now())
	verdict := w.engine.Evaluate(rctx)

	artistList := strings.Join(track.ArtistNames(), ", ")

	if !verdict.Pass {
		w.logger.Info("skip", "track", track.Name, "artists", artistList,
			"rule", verdict.Rule, "reason", verdict.Reason)
		w.absorb(track)
		return nil, false
	}

	w.logger.Info("trigger", "track", track.Name, "artists", artistList,
		"reason", verdict.Reason)

	w.phase = PhaseQueueing
	var queued []models.Track
	if w.dryRun {
		for _, artist := range verdict.ArtistsToQueue {
			w.logger.Info("[dry-run] would queue top tracks",
				"artist", artist.Name, "limit", w.cfg.TopTracksLimit)
		}
	} else {
		queued = w.queueArtists(ctx, track, verdict.ArtistsToQueue)
	}

	// All triggering artists become known regardless of per-artist
	// outcome: at most one trigger per artist, even under partial failure.
	w.absorb(track)

	if w.onQueued != nil && len(queued) > 0 {
		w.onQueued(track, queued)
	}
	return queued, true
}

// queueArtists fetches and enqueues top tracks for each artist. A failure
// for one artist is logged and does not block the rest.
func (w *Watcher) queueArtists(ctx context.Context, trigger models.Track, artists []models.Artist) []models.Track {
	var queued []models.Track

	for _, artist := range artists {
		if err := w.limiter.Wait(ctx); err != nil {
			return queued
		}

		tops, err := w.svc.ArtistTopTracks(ctx, artist.ID, w.cfg.TopTracksLimit)
		if err != nil {
			w.logger.Warn("top-track fetch failed", "artist", artist.Name, "error", err)
			continue
		}

		for _, top := range tops {
			if top.ID == trigger.ID {
				continue
			}
			if w.state.Seen(top.ID) {
				w.logger.Debug("skipping already-liked track", "track", top.Name)
				continue
			}

			if err := w.limiter.Wait(ctx); err != nil {
				return queued
			}

			if err := w.svc.AddToQueue(ctx, top.URI); err != nil {
				if errors.Is(err, shared.ErrNoActivePlayback) {
					w.logger.Warn("cannot queue: no active playback device",
						"track", top.Name, "artist", artist.Name)
				} else {
					w.logger.Warn("queue failed", "track", top.Name,
						"artist", artist.Name, "error", err)
				}
				continue
			}

			w.logger.Info("queued", "track", top.Name, "artist", artist.Name)
			queued = append(queued, top)
		}
	}

	return queued
}

// absorb marks the track seen and its artists known.
func (w *Watcher) absorb(track models.Track) {
	w.state.MarkSeen(track.ID)
	w.index.AddTrack(track)
}

// advanceMarker moves the poll marker to the newest observed like.
func (w *Watcher) advanceMarker(observed []models.Track) {
	for _, track := range observed {
		w.state.Advance(track.AddedAt)
	}
}

// persist writes the processed tracks and current artist set to the cache
// store. Failures are logged, never fatal.
func (w *Watcher) persist(tracks []models.Track) {
	if w.store == nil || !w.cfg.UseCache {
		return
	}
	if err := w.store.SaveTracks(tracks); err != nil {
		w.logger.Warn("failed to persist seen tracks", "error", err)
	}

	var artists []models.Artist
	for _, track := range tracks {
		artists = append(artists, track.Artists...)
	}
	if err := w.store.SaveArtists(artists); err != nil {
		w.logger.Warn("failed to persist known artists", "error", err)
	}
}

// Start runs the continuous poll loop until ctx is cancelled.
//
// Cycle errors are logged and retried on the next tick; the marker is only
// advanced by cycles that complete. Cancellation is honored at the idle
// boundary, so in-flight work finishes first.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.Bootstrap(ctx); err != nil {
		return err
	}

	w.logger.Info("watcher started",
		"interval", w.cfg.PollInterval(),
		"rules", strings.Join(w.engine.Names(), ", "),
		"artists", w.index.Len(),
		"tracks", w.state.SeenCount(),
		"dry_run", w.dryRun)

	ticker := time.NewTicker(w.maxInterval())
	defer ticker.Stop()

	for {
		if _, err := w.RunOnce(ctx); err != nil {
			w.logger.Error("poll cycle failed, will retry", "error", err)
		}

		select {
		case <-ctx.Done():
			w.phase = PhaseStopped
			w.logger.Info("watcher stopped")
			return nil
		case <-ticker.C:
		}
	}
}

func (w *Watcher) maxInterval() time.Duration {
	interval := w.cfg.PollInterval()
	if interval <= 0 {
		interval = time.Second
	}
	return interval
}
