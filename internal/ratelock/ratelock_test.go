package ratelock

import (
	"strings"
	"testing"
	"time"

	"github.com/zulandar/warwatch/internal/store"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestRegistry(t *testing.T) (*Registry, *fakeClock) {
	t.Helper()
	st, err := store.OpenMemory(strings.ReplaceAll(t.Name(), "/", "_"))
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	return New(Opts{DB: st.DB(), Now: clock.Now}), clock
}

func TestAcquire_BusyWhileNotDone(t *testing.T) {
	r, clock := newTestRegistry(t)

	if err := r.Acquire("alpha", "alice"); err != nil {
		t.Fatalf("first Acquire: %v", err)
	}
	clock.Advance(30 * time.Second)

	err := r.Acquire("alpha", "bob")
	if !IsDenied(err) {
		t.Fatalf("second Acquire err = %v, want DeniedError", err)
	}
	if !strings.Contains(err.Error(), "locked") || !strings.Contains(err.Error(), "please wait") {
		t.Errorf("message = %q", err.Error())
	}

	// Elapsed time never frees an unfinished lock.
	clock.Advance(time.Hour)
	if err := r.Acquire("alpha", "bob"); !IsDenied(err) {
		t.Errorf("after an hour err = %v, want still busy", err)
	}
	// The holder itself is refused too until it releases.
	if err := r.Acquire("alpha", "alice"); !IsDenied(err) {
		t.Errorf("holder re-acquire err = %v, want busy", err)
	}
}

func TestAcquire_CooldownAfterRelease(t *testing.T) {
	r, clock := newTestRegistry(t)

	if err := r.Acquire("alpha", "alice"); err != nil {
		t.Fatal(err)
	}
	if err := r.Release("alpha"); err != nil {
		t.Fatalf("Release: %v", err)
	}
	clock.Advance(30 * time.Second)

	err := r.Acquire("alpha", "bob")
	if !IsDenied(err) {
		t.Fatalf("err = %v, want cooldown denial", err)
	}
	if err.Error() != "locked, try again in 90s" {
		t.Errorf("message = %q, want %q", err.Error(), "locked, try again in 90s")
	}

	clock.Advance(90 * time.Second)
	if err := r.Acquire("alpha", "bob"); err != nil {
		t.Errorf("Acquire after window: %v", err)
	}
}

func TestAcquire_SameHolderSkipsCooldown(t *testing.T) {
	r, clock := newTestRegistry(t)
	if err := r.Acquire("alpha", "alice"); err != nil {
		t.Fatal(err)
	}
	if err := r.Release("alpha"); err != nil {
		t.Fatal(err)
	}
	clock.Advance(time.Second)
	if err := r.Acquire("alpha", "alice"); err != nil {
		t.Errorf("holder re-acquire during cooldown: %v", err)
	}
}

func TestAcquire_ServersAreIndependent(t *testing.T) {
	r, _ := newTestRegistry(t)
	if err := r.Acquire("alpha", "alice"); err != nil {
		t.Fatal(err)
	}
	if err := r.Acquire("secura", "bob"); err != nil {
		t.Errorf("other server: %v", err)
	}
}

func TestHeartbeatAndRelease_RequireHeldLock(t *testing.T) {
	r, clock := newTestRegistry(t)
	if err := r.Heartbeat("alpha"); err == nil {
		t.Error("Heartbeat without a lock should fail")
	}
	if err := r.Acquire("alpha", "alice"); err != nil {
		t.Fatal(err)
	}
	clock.Advance(10 * time.Second)
	if err := r.Heartbeat("alpha"); err != nil {
		t.Fatalf("Heartbeat: %v", err)
	}
	locks, err := r.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(locks) != 1 || !locks[0].UpdatedAt.Equal(clock.Now()) {
		t.Errorf("locks = %+v, want timestamp advanced", locks)
	}
	if err := r.Release("alpha"); err != nil {
		t.Fatal(err)
	}
	if err := r.Release("alpha"); err == nil {
		t.Error("second Release should fail")
	}
}

func TestPurgeAndReleaseAll(t *testing.T) {
	r, clock := newTestRegistry(t)
	for _, s := range []string{"alpha", "secura"} {
		if err := r.Acquire(s, "alice"); err != nil {
			t.Fatal(err)
		}
	}
	if err := r.Release("alpha"); err != nil {
		t.Fatal(err)
	}

	n, err := r.ReleaseAll()
	if err != nil || n != 1 {
		t.Errorf("ReleaseAll = %d, %v, want 1", n, err)
	}
	if n, _ := r.Purge(); n != 0 {
		t.Errorf("Purge inside window removed %d", n)
	}
	clock.Advance(3 * time.Minute)
	if n, err := r.Purge(); err != nil || n != 2 {
		t.Errorf("Purge = %d, %v, want 2", n, err)
	}
	locks, _ := r.List()
	if len(locks) != 0 {
		t.Errorf("locks after purge = %v", locks)
	}
}
