package watch

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/zulandar/warwatch/internal/models"
	"github.com/zulandar/warwatch/internal/page"
)

func TestNew_Validation(t *testing.T) {
	if _, err := New(Opts{}); err == nil {
		t.Fatal("expected error without store")
	}
}

func TestAdd_PostsStatusAndSchedules(t *testing.T) {
	h := newHarness(t)
	w := h.watch(344, models.ModeLight)

	if err := h.sched.Add(context.Background(), w); err != nil {
		t.Fatalf("Add: %v", err)
	}

	texts := h.texts()
	if len(texts) != 1 {
		t.Fatalf("sent %d messages, want 1: %q", len(texts), texts)
	}
	if !strings.Contains(texts[0], "R14") || !strings.Contains(texts[0], "https://alpha.e-sim.org/battle.html?id=344") {
		t.Errorf("status line %q", texts[0])
	}
	if got := h.clock.Pending(); len(got) != 1 || got[0] != 50*time.Second {
		t.Errorf("pending = %v, want [50s]", got)
	}
	if !h.sched.IsActive(h.server.ID, 344) {
		t.Error("watch should be active")
	}

	stored, err := h.store.Watch(w.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Label != "Japan vs USA (Kanto)" {
		t.Errorf("label = %q", stored.Label)
	}
}

func TestFire_CallToArmsAtCheckpoint(t *testing.T) {
	h := newHarness(t)
	h.site.setRounds(round(650), round(600))
	if err := h.sched.Add(context.Background(), h.watch(344, models.ModeLight)); err != nil {
		t.Fatal(err)
	}

	h.clock.Advance(50 * time.Second)

	texts := h.texts()
	if len(texts) != 3 {
		t.Fatalf("sent %d messages, want 3: %q", len(texts), texts)
	}
	if !strings.Contains(texts[1], "10 minutes") {
		t.Errorf("call to arms %q", texts[1])
	}
	if got := h.clock.Pending(); len(got) != 1 || got[0] != 300*time.Second {
		t.Errorf("pending = %v, want [5m0s]", got)
	}
}

func TestRoundEnd_DeletesWatch(t *testing.T) {
	for _, mode := range []string{models.ModeFull, models.ModeLight} {
		t.Run(mode, func(t *testing.T) {
			h := newHarness(t)
			h.site.setRounds(round(50), round(-5))
			if err := h.sched.Add(context.Background(), h.watch(344, mode)); err != nil {
				t.Fatal(err)
			}
			if h.storedWatches() != 1 {
				t.Fatal("watch should be stored")
			}

			h.clock.Advance(2 * time.Minute)

			texts := h.texts()
			last := texts[len(texts)-1]
			if !strings.Contains(last, "Japan won the round") || !strings.Contains(last, "Watch ended") {
				t.Errorf("last message %q", last)
			}
			if h.storedWatches() != 0 {
				t.Error("record should be deleted")
			}
			if h.sched.Active() != 0 {
				t.Error("no watch should be active")
			}
			if p := h.clock.Pending(); len(p) != 0 {
				t.Errorf("pending timers %v", p)
			}
		})
	}
}

func TestAdd_EndedRoundFinishesImmediately(t *testing.T) {
	h := newHarness(t)
	h.site.setRounds(round(-5))
	if err := h.sched.Add(context.Background(), h.watch(344, models.ModeFull)); err != nil {
		t.Fatal(err)
	}
	if h.storedWatches() != 0 || h.sched.Active() != 0 {
		t.Error("ended round should leave no watch")
	}
}

func TestRemove_StopsTimer(t *testing.T) {
	h := newHarness(t)
	if err := h.sched.Add(context.Background(), h.watch(344, models.ModeFull)); err != nil {
		t.Fatal(err)
	}
	sent := h.chat.SentCount()

	existed, err := h.sched.Remove(h.server.ID, 344)
	if err != nil || !existed {
		t.Fatalf("Remove = %v, %v", existed, err)
	}
	h.clock.Advance(3 * time.Hour)

	if h.chat.SentCount() != sent {
		t.Errorf("messages after removal: %q", h.texts()[sent:])
	}
	if h.storedWatches() != 0 {
		t.Error("record should be deleted")
	}

	existed, err = h.sched.Remove(h.server.ID, 344)
	if err != nil || existed {
		t.Errorf("second Remove = %v, %v", existed, err)
	}
}

func TestAdd_ReplacesSameBattle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if err := h.sched.Add(ctx, h.watch(344, models.ModeFull)); err != nil {
		t.Fatal(err)
	}
	if err := h.sched.Add(ctx, h.watch(344, models.ModeLight)); err != nil {
		t.Fatal(err)
	}

	if h.sched.Active() != 1 {
		t.Errorf("Active = %d, want 1", h.sched.Active())
	}
	if p := h.clock.Pending(); len(p) != 1 {
		t.Errorf("pending timers %v, want one", p)
	}
	if h.storedWatches() != 1 {
		t.Errorf("stored = %d, want 1", h.storedWatches())
	}
}

func TestStalledClock_StaysQuiet(t *testing.T) {
	h := newHarness(t)
	h.site.setRounds(round(650), round(650))
	if err := h.sched.Add(context.Background(), h.watch(344, models.ModeFull)); err != nil {
		t.Fatal(err)
	}
	h.clock.Advance(50 * time.Second)

	if n := h.chat.SentCount(); n != 1 {
		t.Errorf("sent %d messages, want only the first status: %q", n, h.texts())
	}
	if p := h.clock.Pending(); len(p) != 1 {
		t.Errorf("stalled watch should keep polling, pending %v", p)
	}
}

func TestBattleError_ReportsAndDeletes(t *testing.T) {
	h := newHarness(t)
	h.site.infoErr = &page.SiteError{Message: "No battle with this id"}

	err := h.sched.Add(context.Background(), h.watch(999, models.ModeFull))
	var pe *PollError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want *PollError", err)
	}
	texts := h.texts()
	if len(texts) != 1 || !strings.Contains(texts[0], "Failed to fetch battle info for battle 999: No battle with this id. Watch removed.") {
		t.Errorf("messages %q", texts)
	}
	if h.storedWatches() != 0 || h.sched.Active() != 0 {
		t.Error("failed watch should be removed")
	}
}

func TestRoundError_ReportsAndDeletes(t *testing.T) {
	h := newHarness(t)
	if err := h.sched.Add(context.Background(), h.watch(344, models.ModeFull)); err != nil {
		t.Fatal(err)
	}
	h.site.mu.Lock()
	h.site.roundErr = &page.ParseError{What: "round"}
	h.site.mu.Unlock()

	h.clock.Advance(time.Minute)

	texts := h.texts()
	if last := texts[len(texts)-1]; !strings.Contains(last, "failed to parse the game page") {
		t.Errorf("last message %q", last)
	}
	if h.storedWatches() != 0 {
		t.Error("record should be deleted")
	}
}

func TestFrozenBattle_Backoff(t *testing.T) {
	h := newHarness(t)
	frozen := testInfo()
	frozen.Frozen = true
	h.site.setInfo(frozen)

	if err := h.sched.Add(context.Background(), h.watch(344, models.ModeFull)); err != nil {
		t.Fatal(err)
	}
	texts := h.texts()
	if len(texts) != 1 || !strings.Contains(texts[0], "is frozen") {
		t.Fatalf("messages %q", texts)
	}
	if p := h.clock.Pending(); len(p) != 1 || p[0] != DefaultBackoff {
		t.Fatalf("pending %v, want [30s]", p)
	}

	h.clock.Advance(DefaultBackoff)
	if n := h.chat.SentCount(); n != 1 {
		t.Errorf("frozen notice repeated: %q", h.texts())
	}

	h.site.setInfo(testInfo())
	h.clock.Advance(DefaultBackoff)
	texts = h.texts()
	if len(texts) != 2 || !strings.Contains(texts[1], "R14") {
		t.Errorf("messages after thaw %q", texts)
	}
}

func TestRegionBonus(t *testing.T) {
	h := newHarness(t)
	info := testInfo()
	info.RegionID = 412
	h.site.setInfo(info)
	h.site.regions = []page.RegionStatus{{RegionID: 412, RawRichness: "HIGH"}}

	if err := h.sched.Add(context.Background(), h.watch(344, models.ModeFull)); err != nil {
		t.Fatal(err)
	}
	if texts := h.texts(); !strings.Contains(texts[0], "Bonus") {
		t.Errorf("status %q, want bonus annotation", texts[0])
	}
}

func TestResume(t *testing.T) {
	h := newHarness(t)
	h.must(h.store.CreateWatch(h.watch(344, models.ModeFull)))
	h.must(h.store.CreateWatch(h.watch(345, models.ModeLight)))

	n, err := h.sched.Resume(context.Background())
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if n != 2 || h.sched.Active() != 2 {
		t.Errorf("resumed %d, active %d, want 2", n, h.sched.Active())
	}
	if h.chat.SentCount() != 2 {
		t.Errorf("sent %d, want a status per watch", h.chat.SentCount())
	}
}

func TestStopAll_KeepsRecords(t *testing.T) {
	h := newHarness(t)
	if err := h.sched.Add(context.Background(), h.watch(344, models.ModeFull)); err != nil {
		t.Fatal(err)
	}
	h.sched.StopAll()

	if h.sched.Active() != 0 {
		t.Error("StopAll should clear the registry")
	}
	if p := h.clock.Pending(); len(p) != 0 {
		t.Errorf("pending %v", p)
	}
	if h.storedWatches() != 1 {
		t.Error("StopAll must keep records")
	}
}

func countContaining(texts []string, sub string) int {
	n := 0
	for _, s := range texts {
		if strings.Contains(s, sub) {
			n++
		}
	}
	return n
}

func TestCallToArms_OncePerCheckpoint(t *testing.T) {
	h := newHarness(t)
	// The site clock lags a second behind the timer, so the 600s checkpoint
	// is picked again with a one-second delay.
	h.site.setRounds(round(650), round(601), round(600))
	if err := h.sched.Add(context.Background(), h.watch(344, models.ModeLight)); err != nil {
		t.Fatal(err)
	}

	h.clock.Advance(52 * time.Second)

	texts := h.texts()
	if n := countContaining(texts, "10 minutes left"); n != 1 {
		t.Errorf("10-minute call to arms sent %d times, want 1: %q", n, texts)
	}
	if n := countContaining(texts, "R14"); n < 3 {
		t.Errorf("want a status line per poll, got %q", texts)
	}
	// 600s was read at 0:51, so the 300s checkpoint is 5 minutes after that.
	if got := h.clock.Pending(); len(got) != 1 || got[0] != 299*time.Second {
		t.Errorf("pending = %v, want [4m59s]", got)
	}
}

func TestBattleOver_EndsWatch(t *testing.T) {
	h := newHarness(t)
	waiting := testInfo()
	waiting.RoundID = 0
	h.site.setInfo(waiting)
	if err := h.sched.Add(context.Background(), h.watch(344, models.ModeFull)); err != nil {
		t.Fatal(err)
	}

	over := testInfo()
	over.RoundID = 0
	over.Ended = true
	over.Winner = "USA"
	h.site.setInfo(over)
	h.clock.Advance(DefaultBackoff)

	texts := h.texts()
	last := texts[len(texts)-1]
	if !strings.Contains(last, "is over: USA won") || !strings.Contains(last, "Watch ended") {
		t.Errorf("last message %q", last)
	}
	if h.storedWatches() != 0 || h.sched.Active() != 0 {
		t.Error("finished battle should leave no watch")
	}
	if p := h.clock.Pending(); len(p) != 0 {
		t.Errorf("pending timers %v", p)
	}
}

func TestNoLiveRound_GivesUp(t *testing.T) {
	h := newHarness(t)
	h.sched.maxIdle = 4
	waiting := testInfo()
	waiting.RoundID = 0
	h.site.setInfo(waiting)
	if err := h.sched.Add(context.Background(), h.watch(344, models.ModeFull)); err != nil {
		t.Fatal(err)
	}

	h.clock.Advance(48 * time.Hour)

	if h.storedWatches() != 0 || h.sched.Active() != 0 {
		t.Error("idle watch should be removed")
	}
	if p := h.clock.Pending(); len(p) != 0 {
		t.Errorf("pending timers %v", p)
	}
	h.site.mu.Lock()
	calls := h.site.infoCalls
	h.site.mu.Unlock()
	if calls != 4 {
		t.Errorf("battle polls = %d, want 4", calls)
	}
	texts := h.texts()
	if last := texts[len(texts)-1]; !strings.Contains(last, "had no live round for 2m0s. Watch ended.") {
		t.Errorf("last message %q", last)
	}
}

// slowSite blocks the first BattleInfo call until its context ends.
type slowSite struct {
	*fakeSite
	started chan struct{}
	once    sync.Once
}

func (s *slowSite) BattleInfo(ctx context.Context, id int) (*page.BattleInfo, error) {
	first := false
	s.once.Do(func() { first = true })
	if first {
		close(s.started)
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return s.fakeSite.BattleInfo(ctx, id)
}

func TestAdd_ReplacedDuringFirstPoll(t *testing.T) {
	h := newHarness(t)
	slow := &slowSite{fakeSite: h.site, started: make(chan struct{})}
	h.sched.sites = func(uint) (Site, error) { return slow, nil }

	firstErr := make(chan error, 1)
	go func() {
		firstErr <- h.sched.Add(context.Background(), h.watch(344, models.ModeFull))
	}()
	<-slow.started

	if err := h.sched.Add(context.Background(), h.watch(344, models.ModeLight)); err != nil {
		t.Fatalf("second Add: %v", err)
	}
	select {
	case err := <-firstErr:
		if err != nil {
			t.Errorf("replaced Add = %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("first Add did not return")
	}
	if h.sched.Active() != 1 || h.storedWatches() != 1 {
		t.Errorf("active %d stored %d, want 1 and 1", h.sched.Active(), h.storedWatches())
	}
}
