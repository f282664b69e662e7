package watch

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/zulandar/warwatch/internal/chat"
	"github.com/zulandar/warwatch/internal/models"
	"github.com/zulandar/warwatch/internal/page"
	"github.com/zulandar/warwatch/internal/store"
)

// fakeClock fires timers only when advanced.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	was := !t.stopped && !t.fired
	t.stopped = true
	return was
}

// Advance moves time forward, firing due timers in order.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	end := c.now.Add(d)
	c.mu.Unlock()
	for {
		c.mu.Lock()
		var next *fakeTimer
		for _, t := range c.timers {
			if t.stopped || t.fired || t.at.After(end) {
				continue
			}
			if next == nil || t.at.Before(next.at) {
				next = t
			}
		}
		if next == nil {
			c.now = end
			c.mu.Unlock()
			return
		}
		next.fired = true
		c.now = next.at
		c.mu.Unlock()
		next.f()
	}
}

// Pending returns the delays of live timers from now, ascending.
func (c *fakeClock) Pending() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []time.Duration
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			out = append(out, t.at.Sub(c.now))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// fakeSite serves a battle snapshot and a queue of round snapshots; the
// last round repeats.
type fakeSite struct {
	mu         sync.Mutex
	info       *page.BattleInfo
	infoErr    error
	rounds     []*page.BattleRoundInfo
	roundErr   error
	regions    []page.RegionStatus
	infoCalls  int
	roundCalls int
}

func (f *fakeSite) BattleInfo(ctx context.Context, id int) (*page.BattleInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.infoCalls++
	if f.infoErr != nil {
		return nil, f.infoErr
	}
	cp := *f.info
	cp.ID = id
	return &cp, nil
}

func (f *fakeSite) BattleRoundInfo(ctx context.Context, roundID int) (*page.BattleRoundInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.roundCalls++
	if f.roundErr != nil {
		return nil, f.roundErr
	}
	r := f.rounds[0]
	if len(f.rounds) > 1 {
		f.rounds = f.rounds[1:]
	}
	return r, nil
}

func (f *fakeSite) RegionStatuses(ctx context.Context) ([]page.RegionStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.regions, nil
}

func (f *fakeSite) setRounds(rs ...*page.BattleRoundInfo) {
	f.mu.Lock()
	f.rounds = rs
	f.mu.Unlock()
}

func (f *fakeSite) setInfo(info *page.BattleInfo) {
	f.mu.Lock()
	f.info = info
	f.mu.Unlock()
}

func round(remaining int) *page.BattleRoundInfo {
	return testRound(600000, 400000, remaining)
}

type harness struct {
	t       *testing.T
	store   *store.Store
	clock   *fakeClock
	site    *fakeSite
	chat    *chat.MockAdapter
	sched   *Scheduler
	server  models.Server
	country models.Country
	channel models.Channel
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	st, err := store.OpenMemory(strings.ReplaceAll(t.Name(), "/", "_"))
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	h := &harness{t: t, store: st, clock: newFakeClock(), chat: chat.NewMockAdapter()}
	if err := h.chat.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	h.site = &fakeSite{info: testInfo(), rounds: []*page.BattleRoundInfo{round(650)}}

	h.server = models.Server{Name: "alpha", Shortname: "a"}
	h.must(st.DB().Create(&h.server).Error)
	h.country = models.Country{ServerID: h.server.ID, Name: "Japan", Shortname: "JP"}
	h.must(st.DB().Create(&h.country).Error)
	h.channel = models.Channel{Name: "#hq"}
	h.must(st.DB().Create(&h.channel).Error)

	h.sched, err = New(Opts{
		Store:      st,
		Sites:      func(uint) (Site, error) { return h.site, nil },
		Sender:     h.chat,
		AddressFor: func(s models.Server) string { return s.Address("e-sim.org") },
		Clock:      h.clock,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return h
}

func (h *harness) must(err error) {
	h.t.Helper()
	if err != nil {
		h.t.Fatal(err)
	}
}

func (h *harness) watch(battleID int, mode string) *models.Watch {
	return &models.Watch{
		ServerID:  h.server.ID,
		BattleID:  battleID,
		CountryID: h.country.ID,
		ChannelID: h.channel.ID,
		Side:      models.SideDefender,
		Mode:      mode,
	}
}

func (h *harness) texts() []string {
	var out []string
	for _, m := range h.chat.AllSent() {
		out = append(out, chat.StripCodes(m.Text))
	}
	return out
}

func (h *harness) storedWatches() int {
	ws, err := h.store.Watches()
	h.must(err)
	return len(ws)
}
