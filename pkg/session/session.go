// Package session owns one navigation session: the cursor, the keyboard
// navigator and the label it publishes. Host events drive it through a
// moving → settling → announced cycle; every cursor mutation starts a new
// generation and anything scheduled for an older generation is dropped.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/1F47E/quadcursor/internal/logger"
	"github.com/1F47E/quadcursor/internal/metrics"
	"github.com/1F47E/quadcursor/pkg/cursor"
	"github.com/1F47E/quadcursor/pkg/describe"
	"github.com/1F47E/quadcursor/pkg/keyboard"
	"github.com/1F47E/quadcursor/pkg/models"
	"github.com/1F47E/quadcursor/pkg/quadrant"
	"github.com/1F47E/quadcursor/pkg/scheduler"
	"github.com/google/uuid"
	"github.com/paulmach/orb"
)

var (
	ErrMissingLabelProperty = errors.New("label property is required")
	ErrNilProvider          = errors.New("feature provider is required")
	ErrNilView              = errors.New("host view is required")
)

// View is the host map
type View interface {
	cursor.View
	cursor.Projector
	PanTo(center orb.Point)
	FitBounds(sw, ne orb.Point)
}

// FeatureProvider returns the features intersecting a bound, in a stable
// order. Fragments of one feature share an ID.
type FeatureProvider interface {
	QueryFeatures(ctx context.Context, bound orb.Bound) ([]models.Feature, error)
}

// Presenter receives the session output
type Presenter interface {
	SetLabel(label, title string)
	AnnounceCommand(text string)
	PlaceCursor(rect cursor.PixelRect)
}

// POILookup summarises points of interest in a bound. It is optional and
// best effort.
type POILookup interface {
	Summary(ctx context.Context, bound orb.Bound) (string, error)
}

// State of the announce cycle
type State int

const (
	Idle State = iota
	Moving
	Settling
	Announced
)

func (s State) String() string {
	switch s {
	case Moving:
		return "moving"
	case Settling:
		return "settling"
	case Announced:
		return "announced"
	}
	return "idle"
}

// Options configures a session
type Options struct {
	Cursor        cursor.Options
	LabelProperty string
	// SettleDelay runs between the move end and the feature query
	SettleDelay time.Duration
	// RefitDelay runs between a zoom key and re-fitting the host view
	RefitDelay time.Duration
	// StableQueries is how many consecutive queries must agree on the
	// labelable feature count before announcing. 1 announces at once.
	StableQueries    int
	StableRetryDelay time.Duration
	MaxCommandLength int
	POITimeout       time.Duration

	Scheduler scheduler.Scheduler
	POI       POILookup
	Logger    *slog.Logger
}

// DefaultOptions returns the stock timings and cursor extent
func DefaultOptions() Options {
	return Options{
		Cursor:           cursor.DefaultOptions(),
		LabelProperty:    models.DefaultLabelProperty,
		SettleDelay:      200 * time.Millisecond,
		RefitDelay:       100 * time.Millisecond,
		StableQueries:    1,
		StableRetryDelay: 100 * time.Millisecond,
		MaxCommandLength: keyboard.DefaultMaxAnnouncement,
		POITimeout:       2 * time.Second,
	}
}

// Session is one active navigation session. All methods are safe for
// concurrent use; collaborators are always called without the lock held.
type Session struct {
	id        string
	opts      Options
	view      View
	provider  FeatureProvider
	presenter Presenter
	sched     scheduler.Scheduler
	log       *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	cursor  *cursor.Cursor
	nav     *keyboard.Navigator
	labels  *describe.Announcer
	state   State
	gen     uint64
	stale   bool
	pending scheduler.Timer
	refit   scheduler.Timer
	// inflight is the generation whose provider query is running, or 0
	inflight uint64

	stableCount int
	stableReads int

	sets  [4]quadrant.Set
	label string
	title string
}

// New validates opts and creates a detached session. Call Attach to publish
// the first cursor and label.
func New(view View, provider FeatureProvider, presenter Presenter, opts Options) (*Session, error) {
	if opts.LabelProperty == "" {
		return nil, ErrMissingLabelProperty
	}
	if provider == nil {
		return nil, ErrNilProvider
	}
	if view == nil {
		return nil, ErrNilView
	}
	c, err := cursor.New(opts.Cursor)
	if err != nil {
		return nil, fmt.Errorf("cursor: %w", err)
	}
	if opts.StableQueries < 1 {
		opts.StableQueries = 1
	}
	if opts.Scheduler == nil {
		opts.Scheduler = scheduler.Real{}
	}
	if opts.Logger == nil {
		opts.Logger = logger.L()
	}
	if presenter == nil {
		presenter = discard{}
	}

	id := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		id:        id,
		opts:      opts,
		view:      view,
		provider:  provider,
		presenter: presenter,
		sched:     opts.Scheduler,
		log:       opts.Logger.With("session", id),
		ctx:       ctx,
		cancel:    cancel,
		cursor:    c,
		nav:       keyboard.New(c, opts.MaxCommandLength),
		labels:    describe.NewAnnouncer(describe.LabelMarker, 0),
	}, nil
}

// ID returns the session identifier used in logs
func (s *Session) ID() string { return s.id }

// LabelProperty returns the property the session's features are named by
func (s *Session) LabelProperty() string { return s.opts.LabelProperty }

// Attach reads the host view, places the cursor, announces the cursor width
// and schedules the first label.
func (s *Session) Attach() {
	s.mu.Lock()
	s.cursor.SetCenter(s.view)
	rect := s.cursor.Update(s.view)
	initial := s.nav.Initial()
	width := s.cursor.Width()
	s.settleLocked()
	s.mu.Unlock()

	s.log.Info("session_attached", "label_property", s.opts.LabelProperty, "width", width)
	s.presenter.PlaceCursor(rect)
	s.presenter.AnnounceCommand(initial)
	metrics.AnnouncementsTotal.WithLabelValues("command").Inc()
}

// OnMoveStart cancels any pending or running aggregation.
func (s *Session) OnMoveStart() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending != nil && s.pending.Cancel() {
		// the interrupted pass still owes a label
		s.stale = true
		metrics.AggregationsCancelledTotal.Inc()
		s.log.Debug("aggregate_cancelled", "generation", s.gen)
	}
	if s.inflight != 0 {
		// the running query will be discarded by the generation check
		s.stale = true
		s.log.Debug("aggregate_interrupted", "generation", s.inflight)
	}
	s.pending = nil
	s.gen++
	s.state = Moving
}

// OnMoveEnd re-reads the host center. An unchanged center and zoom is a
// no-op unless a key press moved the cursor since the last aggregation.
func (s *Session) OnMoveEnd() {
	s.mu.Lock()
	changed := s.cursor.SetCenter(s.view)
	if !changed && !s.stale {
		if s.state == Moving {
			s.state = Announced
		}
		s.mu.Unlock()
		return
	}
	s.stale = false
	rect := s.cursor.Update(s.view)
	s.settleLocked()
	s.mu.Unlock()

	s.presenter.PlaceCursor(rect)
}

// OnRender repositions the on-screen cursor.
func (s *Session) OnRender() {
	s.mu.Lock()
	rect := s.cursor.Update(s.view)
	s.mu.Unlock()

	s.presenter.PlaceCursor(rect)
}

// HandleKey applies a navigation key. It returns false for unbound keys.
// A pan recenters the host view at once; a zoom re-fits it after RefitDelay.
func (s *Session) HandleKey(ev keyboard.KeyEvent) bool {
	s.mu.Lock()
	tr, ok := s.nav.Handle(ev)
	if !ok {
		s.mu.Unlock()
		return false
	}
	s.gen++
	if s.pending != nil {
		s.pending.Cancel()
		s.pending = nil
	}
	s.stale = true
	s.state = Moving
	center := s.cursor.Center()
	rect := s.cursor.Update(s.view)
	if tr.Action.IsZoom() {
		if s.refit != nil {
			s.refit.Cancel()
		}
		s.refit = s.sched.Schedule(s.opts.RefitDelay, s.refitView)
	}
	s.mu.Unlock()

	metrics.KeyTransitionsTotal.WithLabelValues(tr.Action.String()).Inc()
	metrics.AnnouncementsTotal.WithLabelValues("command").Inc()
	s.log.Debug("key_transition", "action", tr.Action.String(), "announcement", tr.Announcement)

	s.presenter.AnnounceCommand(tr.Announcement)
	s.presenter.PlaceCursor(rect)
	if !tr.Action.IsZoom() {
		s.view.PanTo(center)
	}
	return true
}

func (s *Session) refitView() {
	s.mu.Lock()
	corners := s.cursor.Corners()
	s.refit = nil
	s.mu.Unlock()

	s.view.FitBounds(corners.FitSW, corners.FitNE)
}

// settleLocked starts a new generation and schedules its aggregation.
func (s *Session) settleLocked() {
	if s.pending != nil {
		s.pending.Cancel()
	}
	s.gen++
	s.state = Settling
	s.stableCount, s.stableReads = -1, 0
	gen := s.gen
	s.pending = s.sched.Schedule(s.opts.SettleDelay, func() { s.aggregate(gen) })
}

// aggregate queries the provider and publishes the label for gen, unless the
// cursor moved meanwhile.
func (s *Session) aggregate(gen uint64) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.pending = nil
	s.inflight = gen
	bound := s.cursor.Bound()
	quads := s.cursor.Quadrants()
	s.mu.Unlock()

	start := time.Now()
	features, err := s.provider.QueryFeatures(s.ctx, bound)

	s.mu.Lock()
	if s.inflight == gen {
		s.inflight = 0
	}
	if gen != s.gen {
		s.mu.Unlock()
		metrics.AggregationsCancelledTotal.Inc()
		s.log.Debug("aggregate_stale", "generation", gen)
		return
	}
	if err != nil {
		s.state = Announced
		s.mu.Unlock()
		metrics.ProviderErrorsTotal.Inc()
		s.log.Warn("provider_query_failed", "err", err)
		return
	}

	if s.opts.StableQueries > 1 {
		n := labelable(features)
		if n == s.stableCount {
			s.stableReads++
		} else {
			s.stableCount, s.stableReads = n, 1
		}
		if s.stableReads < s.opts.StableQueries {
			s.pending = s.sched.Schedule(s.opts.StableRetryDelay, func() { s.aggregate(gen) })
			s.mu.Unlock()
			s.log.Debug("aggregate_unstable", "labelable", n, "reads", s.stableReads)
			return
		}
	}

	sets, stats := quadrant.Aggregate(features, quads)
	text := describe.Label(sets)
	label := s.labels.Announce(text)
	s.sets = sets
	s.label = label
	s.title = text
	s.state = Announced
	s.mu.Unlock()

	elapsed := time.Since(start)
	metrics.AggregationsTotal.Inc()
	metrics.AggregationDurationMs.Observe(float64(elapsed.Milliseconds()))
	metrics.AnnouncementsTotal.WithLabelValues("label").Inc()
	for reason, n := range stats.Dropped {
		metrics.FragmentsDroppedTotal.WithLabelValues(reason).Add(float64(n))
		s.log.Debug("fragments_dropped", "reason", reason, "count", n)
	}
	s.log.Debug("aggregate_done",
		"generation", gen,
		"features", stats.Input,
		"kept", stats.Kept,
		"duration_ms", elapsed.Milliseconds(),
	)

	s.presenter.SetLabel(label, text)

	if s.opts.POI != nil {
		s.wg.Add(1)
		go s.refine(gen, bound)
	}
}

// refine replaces the title with a POI summary if it arrives while the cursor
// is still on the same generation. The label is never touched.
func (s *Session) refine(gen uint64, bound orb.Bound) {
	defer s.wg.Done()

	ctx := s.ctx
	if s.opts.POITimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.POITimeout)
		defer cancel()
	}
	summary, err := s.opts.POI.Summary(ctx, bound)
	if err != nil {
		s.log.Warn("poi_lookup_failed", "err", err)
		return
	}
	if summary == "" {
		return
	}

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.title = summary
	label := s.label
	s.mu.Unlock()

	s.presenter.SetLabel(label, summary)
}

// Wait blocks until background POI lookups finish
func (s *Session) Wait() {
	s.wg.Wait()
}

// Close cancels pending work and waits for background lookups.
func (s *Session) Close() {
	s.mu.Lock()
	if s.pending != nil {
		s.pending.Cancel()
		s.pending = nil
	}
	if s.refit != nil {
		s.refit.Cancel()
		s.refit = nil
	}
	s.gen++
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}

func labelable(features []models.Feature) int {
	n := 0
	for _, f := range features {
		if f.Labelable() {
			n++
		}
	}
	return n
}

type discard struct{}

func (discard) SetLabel(string, string)      {}
func (discard) AnnounceCommand(string)       {}
func (discard) PlaceCursor(cursor.PixelRect) {}
