// Package watch runs battle watches: one polling state machine per watched
// battle, each with exactly one pending timer, reporting to the channel the
// watch was created in.
package watch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/zulandar/warwatch/internal/chat"
	"github.com/zulandar/warwatch/internal/models"
	"github.com/zulandar/warwatch/internal/page"
	"github.com/zulandar/warwatch/internal/store"
)

// Site is the part of the organization client a watch polls.
type Site interface {
	BattleInfo(ctx context.Context, battleID int) (*page.BattleInfo, error)
	BattleRoundInfo(ctx context.Context, roundID int) (*page.BattleRoundInfo, error)
	RegionStatuses(ctx context.Context) ([]page.RegionStatus, error)
}

// SiteFunc returns the client that acts for a country.
type SiteFunc func(countryID uint) (Site, error)

// PollError is a failed poll. It has already been reported to the watch's
// channel and the watch removed.
type PollError struct {
	Op  string
	Err error
}

func (e *PollError) Error() string {
	return fmt.Sprintf("watch: %s: %v", e.Op, e.Err)
}

func (e *PollError) Unwrap() error {
	return e.Err
}

// Defaults.
const (
	DefaultBackoff = 30 * time.Second
	DefaultHold    = 52.0
	DefaultMaxIdle = 240
)

// Opts configures a Scheduler.
type Opts struct {
	Store  *store.Store
	Sites  SiteFunc
	Sender chat.Sender
	// AddressFor returns the base URL of a server for battle links.
	AddressFor func(models.Server) string

	Clock   Clock
	Backoff time.Duration // battle-level poll interval while no live round
	Hold    float64       // percentage the 2-minute call-to-arms compares against
	// MaxIdle is how many battle polls in a row may find no live round
	// before the watch gives up.
	MaxIdle int
	Logger  *zerolog.Logger
}

// Scheduler owns the active watch timers, keyed by server and battle.
type Scheduler struct {
	store      *store.Store
	sites      SiteFunc
	sender     chat.Sender
	addressFor func(models.Server) string
	clock      Clock
	backoff    time.Duration
	hold       float64
	maxIdle    int
	log        zerolog.Logger

	mu     sync.Mutex
	active map[key]*entry
	// addMu orders record replacement with registration.
	addMu sync.Mutex
}

type key struct {
	server uint
	battle int
}

// phase is where a watch is in its state machine.
type phase int

const (
	phaseBattle phase = iota // next poll fetches BattleInfo
	phaseRound               // next poll fetches BattleRoundInfo
)

// entry is one live watch. mu serializes polls with cancellation; the
// registry lock is never held while mu is being acquired.
type entry struct {
	mu        sync.Mutex
	watch     models.Watch
	key       key
	ctx       context.Context
	cancel    context.CancelFunc
	timer     Timer
	cancelled bool

	phase     phase
	site      Site
	info      *page.BattleInfo
	bonus     bool
	target    int // threshold the pending timer was scheduled for
	called    int // last threshold whose call to arms went out
	idle      int // battle polls in a row without a live round
	last      int // remaining seconds at the previous round poll
	haveLast  bool
	frozen    bool
	announced bool // a frozen/waiting notice was posted
}

// New creates a Scheduler.
func New(opts Opts) (*Scheduler, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("watch: store is required")
	}
	if opts.Sites == nil {
		return nil, fmt.Errorf("watch: site provider is required")
	}
	if opts.Sender == nil {
		return nil, fmt.Errorf("watch: sender is required")
	}
	if opts.AddressFor == nil {
		return nil, fmt.Errorf("watch: address func is required")
	}
	if opts.Clock == nil {
		opts.Clock = realClock{}
	}
	if opts.Backoff <= 0 {
		opts.Backoff = DefaultBackoff
	}
	if opts.Hold <= 0 {
		opts.Hold = DefaultHold
	}
	if opts.MaxIdle <= 0 {
		opts.MaxIdle = DefaultMaxIdle
	}
	logger := log.Logger
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Scheduler{
		store:      opts.Store,
		sites:      opts.Sites,
		sender:     opts.Sender,
		addressFor: opts.AddressFor,
		clock:      opts.Clock,
		backoff:    opts.Backoff,
		hold:       opts.Hold,
		maxIdle:    opts.MaxIdle,
		log:        logger.With().Str("component", "watch").Logger(),
		active:     make(map[key]*entry),
	}, nil
}

// Add persists a watch and starts polling it. A watch for the same battle
// on the same server is cancelled and replaced. The first poll runs before
// Add returns; if it fails the watch is removed and a *PollError returned.
func (s *Scheduler) Add(ctx context.Context, w *models.Watch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.addMu.Lock()
	s.cancelKey(key{server: w.ServerID, battle: w.BattleID})
	if err := s.store.CreateWatch(w); err != nil {
		s.addMu.Unlock()
		return err
	}
	full, err := s.store.Watch(w.ID)
	if err != nil {
		s.addMu.Unlock()
		return err
	}
	e := s.register(*full)
	s.addMu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancelled {
		return nil
	}
	err = s.step(e.ctx, e)
	if errors.Is(err, context.Canceled) && e.ctx.Err() != nil {
		// Replaced or removed while the first poll was in flight.
		return nil
	}
	return err
}

// Resume reloads every persisted watch and restarts its polling. Watches
// whose first poll fails are reported and deleted.
func (s *Scheduler) Resume(ctx context.Context) (int, error) {
	ws, err := s.store.Watches()
	if err != nil {
		return 0, err
	}
	n := 0
	for _, w := range ws {
		if ctx.Err() != nil {
			return n, ctx.Err()
		}
		e := s.register(w)
		e.mu.Lock()
		err := s.step(e.ctx, e)
		e.mu.Unlock()
		if err != nil {
			s.log.Warn().Err(err).Int("battle", w.BattleID).Msg("dropping watch on resume")
			continue
		}
		n++
	}
	return n, nil
}

// Remove cancels the watch of a battle and deletes its record. It reports
// whether a watch existed.
func (s *Scheduler) Remove(serverID uint, battleID int) (bool, error) {
	k := key{server: serverID, battle: battleID}
	live := s.cancelKey(k)

	w, err := s.store.WatchByBattle(serverID, battleID)
	if errors.Is(err, store.ErrNotFound) {
		return live, nil
	}
	if err != nil {
		return live, err
	}
	if err := s.store.DeleteWatch(w.ID); err != nil {
		return true, err
	}
	return true, nil
}

// StopAll cancels every timer without touching the stored records, so the
// watches resume on the next start.
func (s *Scheduler) StopAll() {
	s.mu.Lock()
	entries := make([]*entry, 0, len(s.active))
	for k, e := range s.active {
		entries = append(entries, e)
		delete(s.active, k)
	}
	s.mu.Unlock()
	for _, e := range entries {
		e.stop()
	}
}

// Active returns the number of live watches.
func (s *Scheduler) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// IsActive reports whether a battle has a live watch.
func (s *Scheduler) IsActive(serverID uint, battleID int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.active[key{server: serverID, battle: battleID}]
	return ok
}

// register installs a fresh entry for w, stopping any entry it displaces.
func (s *Scheduler) register(w models.Watch) *entry {
	ctx, cancel := context.WithCancel(context.Background())
	e := &entry{
		watch:  w,
		key:    key{server: w.ServerID, battle: w.BattleID},
		ctx:    ctx,
		cancel: cancel,
	}
	s.mu.Lock()
	old := s.active[e.key]
	s.active[e.key] = e
	s.mu.Unlock()
	if old != nil {
		old.stop()
	}
	return e
}

// cancelKey removes the entry for k from the registry and stops it. The
// removal and the cancellation happen before any caller can register a
// replacement, so a battle never has two timers.
func (s *Scheduler) cancelKey(k key) bool {
	s.mu.Lock()
	e, ok := s.active[k]
	if ok {
		delete(s.active, k)
	}
	s.mu.Unlock()
	if ok {
		e.stop()
	}
	return ok
}

// stop cancels in-flight requests, then marks the entry dead and stops its
// timer. A callback already waiting on mu sees cancelled and returns.
func (e *entry) stop() {
	e.cancel()
	e.mu.Lock()
	e.cancelled = true
	if e.timer != nil {
		e.timer.Stop()
	}
	e.mu.Unlock()
}

// finish ends a watch from inside its own poll: the entry leaves the
// registry (if still current) and the record is deleted. e.mu is held.
func (s *Scheduler) finish(e *entry) {
	e.cancelled = true
	e.cancel()
	if e.timer != nil {
		e.timer.Stop()
	}
	s.mu.Lock()
	if s.active[e.key] == e {
		delete(s.active, e.key)
	}
	s.mu.Unlock()
	if err := s.store.DeleteWatch(e.watch.ID); err != nil {
		s.log.Error().Err(err).Uint("watch", e.watch.ID).Msg("deleting watch")
	}
}

func (s *Scheduler) schedule(e *entry, d time.Duration) {
	e.timer = s.clock.AfterFunc(d, func() { s.fire(e) })
}

// fire is the timer callback.
func (s *Scheduler) fire(e *entry) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancelled {
		return
	}
	e.timer = nil
	if err := s.step(e.ctx, e); err != nil {
		s.log.Debug().Err(err).Int("battle", e.watch.BattleID).Msg("watch ended with error")
	}
}

func (s *Scheduler) say(e *entry, text string) {
	if text == "" {
		return
	}
	// Notifications outlive the poll context: an end notice must still go
	// out after the entry is finished.
	if err := s.sender.Send(context.Background(), chat.OutboundMessage{ChannelID: e.watch.Channel.Name, Text: text}); err != nil {
		s.log.Error().Err(err).Str("channel", e.watch.Channel.Name).Msg("send watch notification")
	}
}

// fail reports a poll error to the channel and ends the watch.
func (s *Scheduler) fail(e *entry, what string, err error) error {
	s.log.Warn().Err(err).Int("battle", e.watch.BattleID).Str("op", what).Msg("watch poll failed")
	s.say(e, fmt.Sprintf("Failed to %s for battle %d: %s. Watch removed.", what, e.watch.BattleID, describe(err)))
	s.finish(e)
	return &PollError{Op: what, Err: err}
}

// describe renders an error for the channel without internal detail.
func describe(err error) string {
	if se, ok := page.IsSiteError(err); ok {
		return se.Message
	}
	var pe *page.ParseError
	if errors.As(err, &pe) {
		return "failed to parse the game page"
	}
	return err.Error()
}

// step runs one poll of the state machine and schedules the next one.
// e.mu is held.
func (s *Scheduler) step(ctx context.Context, e *entry) error {
	if e.site == nil {
		site, err := s.sites(e.watch.CountryID)
		if err != nil {
			return s.fail(e, "open a site session", err)
		}
		e.site = site
	}
	if e.phase == phaseBattle {
		return s.pollBattle(ctx, e)
	}
	return s.pollRound(ctx, e)
}

func (s *Scheduler) status(e *entry, r *page.BattleRoundInfo) Status {
	return Status{
		URL:   BattleURL(s.addressFor(e.watch.Server), e.watch.BattleID),
		Info:  e.info,
		Round: r,
		Side:  e.watch.Side,
		Bonus: e.bonus,
	}
}

// pollBattle fetches BattleInfo. A frozen battle or one with no live round
// yet is polled again after the backoff.
func (s *Scheduler) pollBattle(ctx context.Context, e *entry) error {
	info, err := e.site.BattleInfo(ctx, e.watch.BattleID)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return s.fail(e, "fetch battle info", err)
	}
	first := e.info == nil
	e.info = info

	if first {
		if title := info.Title(); title != e.watch.Label {
			if err := s.store.SetWatchLabel(e.watch.ID, title); err != nil {
				s.log.Warn().Err(err).Msg("saving watch label")
			}
			e.watch.Label = title
		}
		e.bonus = s.regionBonus(ctx, e)
	}

	if info.Ended {
		s.say(e, BattleOverLine(s.status(e, nil))+" Watch ended.")
		s.finish(e)
		return nil
	}

	if info.Frozen || info.RoundID == 0 {
		e.idle++
		if e.idle >= s.maxIdle {
			s.say(e, fmt.Sprintf("Battle %d %s had no live round for %s. Watch ended.",
				e.watch.BattleID, info.Title(), time.Duration(e.idle)*s.backoff))
			s.finish(e)
			return nil
		}
		if !e.announced {
			reason := "has no live round"
			if info.Frozen {
				reason = "is frozen"
			}
			s.say(e, fmt.Sprintf("Battle %d %s %s, checking again every %s.",
				e.watch.BattleID, info.Title(), reason, s.backoff))
			e.announced = true
		}
		s.schedule(e, s.backoff)
		return nil
	}
	e.announced = false
	e.idle = 0
	e.phase = phaseRound
	e.target = 0
	// Readings from before the gap say nothing about a stall now.
	e.last, e.haveLast = 0, false
	return s.pollRound(ctx, e)
}

// regionBonus reports whether the battle's region carries a high resource
// bonus. Lookup failures only cost the annotation.
func (s *Scheduler) regionBonus(ctx context.Context, e *entry) bool {
	if e.info.RegionID == 0 {
		return false
	}
	statuses, err := e.site.RegionStatuses(ctx)
	if err != nil {
		s.log.Debug().Err(err).Msg("region statuses")
		return false
	}
	for _, st := range statuses {
		if st.RegionID == e.info.RegionID {
			return st.Bonus()
		}
	}
	return false
}

// pollRound fetches the live round score, announces it, and schedules the
// next checkpoint.
func (s *Scheduler) pollRound(ctx context.Context, e *entry) error {
	r, err := e.site.BattleRoundInfo(ctx, e.info.RoundID)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return s.fail(e, "fetch round info", err)
	}
	st := s.status(e, r)

	if r.Ended() {
		s.say(e, RoundOverLine(st))
		s.finish(e)
		return nil
	}

	// An unchanged positive clock means the game state stalled: stay quiet
	// but keep polling. Best-effort; two polls in the same second look
	// the same.
	stalled := e.haveLast && r.RemainingSeconds == e.last && r.RemainingSeconds > 0
	e.last, e.haveLast = r.RemainingSeconds, true
	if stalled {
		if !e.frozen {
			s.log.Info().Int("battle", e.watch.BattleID).Int("remaining", r.RemainingSeconds).Msg("round clock stalled")
		}
		e.frozen = true
	} else {
		e.frozen = false
		if e.target != e.called {
			if text := CallToArms(e.target, st, s.hold); text != "" {
				s.say(e, text)
				e.called = e.target
			}
		}
		s.say(e, StatusLine(st))
	}

	threshold, delay, ok := NextCheckpoint(e.watch.Mode, r.RemainingSeconds)
	if !ok {
		s.say(e, RoundOverLine(st))
		s.finish(e)
		return nil
	}
	e.target = threshold
	s.schedule(e, delay)
	return nil
}
