// Package ratelock gates scan-style commands (motivate) to one holder per
// game server, followed by a cooldown window. Locks live in the database so
// the dashboard and maintenance sweep can see them.
package ratelock

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/zulandar/warwatch/internal/models"
	"gorm.io/gorm"
)

// DefaultWindow is how long a finished lock blocks other holders.
const DefaultWindow = 2 * time.Minute

// DeniedError is returned by Acquire when the lock is not available.
type DeniedError struct {
	Server string
	Holder string
	Busy   bool          // the holder has not released yet
	Wait   time.Duration // remaining cooldown when !Busy
}

func (e *DeniedError) Error() string {
	if e.Busy {
		return fmt.Sprintf("locked: in use by %s, please wait", e.Holder)
	}
	return fmt.Sprintf("locked, try again in %ds", int(e.Wait.Round(time.Second)/time.Second))
}

// IsDenied reports whether err is a DeniedError.
func IsDenied(err error) bool {
	var de *DeniedError
	return errors.As(err, &de)
}

// Opts configures a Registry.
type Opts struct {
	DB     *gorm.DB
	Window time.Duration
	Now    func() time.Time
}

// Registry hands out per-server rate locks.
type Registry struct {
	db     *gorm.DB
	window time.Duration
	now    func() time.Time
	mu     sync.Mutex
}

// New creates a Registry.
func New(opts Opts) *Registry {
	if opts.Window <= 0 {
		opts.Window = DefaultWindow
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Registry{db: opts.DB, window: opts.Window, now: opts.Now}
}

// Window returns the cooldown window.
func (r *Registry) Window() time.Duration {
	return r.window
}

// Since returns the time elapsed since t on the registry clock.
func (r *Registry) Since(t time.Time) time.Duration {
	return r.now().Sub(t)
}

// Acquire takes the lock for server on behalf of holder. An unfinished lock
// is always refused. A finished lock refuses other holders until the window
// since its release has elapsed; the previous holder may take it again.
func (r *Registry) Acquire(server, holder string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var existing models.RateLock
		res := tx.Where("server_name = ?", server).First(&existing)
		switch {
		case res.Error == nil:
			if !existing.Done {
				return &DeniedError{Server: server, Holder: existing.Holder, Busy: true}
			}
			elapsed := now.Sub(existing.UpdatedAt)
			if existing.Holder != holder && elapsed < r.window {
				return &DeniedError{Server: server, Holder: existing.Holder, Wait: r.window - elapsed}
			}
		case !errors.Is(res.Error, gorm.ErrRecordNotFound):
			return fmt.Errorf("check lock: %w", res.Error)
		}

		lock := models.RateLock{ServerName: server, Holder: holder, Done: false, UpdatedAt: now}
		if err := tx.Save(&lock).Error; err != nil {
			return fmt.Errorf("save lock: %w", err)
		}
		return nil
	})
	if err != nil {
		if IsDenied(err) {
			return err
		}
		return fmt.Errorf("ratelock: acquire %s: %w", server, err)
	}
	return nil
}

// Heartbeat advances the timestamp of an unfinished lock.
func (r *Registry) Heartbeat(server string) error {
	return r.update(server, "heartbeat", map[string]interface{}{"updated_at": r.now()})
}

// Release marks the lock done and starts the cooldown window. The record is
// kept as the cooldown marker.
func (r *Registry) Release(server string) error {
	return r.update(server, "release", map[string]interface{}{"done": true, "updated_at": r.now()})
}

func (r *Registry) update(server, op string, fields map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := r.db.Model(&models.RateLock{}).
		Where("server_name = ? AND done = ?", server, false).
		Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("ratelock: %s %s: %w", op, server, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("ratelock: %s %s: lock not held", op, server)
	}
	return nil
}

// Purge deletes finished locks whose cooldown has elapsed.
func (r *Registry) Purge() (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := r.db.Where("done = ? AND updated_at < ?", true, r.now().Add(-r.window)).
		Delete(&models.RateLock{})
	if res.Error != nil {
		return 0, fmt.Errorf("ratelock: purge: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// ReleaseAll finishes every unfinished lock. Run at startup: holders from
// a previous process can no longer release.
func (r *Registry) ReleaseAll() (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := r.db.Model(&models.RateLock{}).Where("done = ?", false).
		Updates(map[string]interface{}{"done": true, "updated_at": r.now()})
	if res.Error != nil {
		return 0, fmt.Errorf("ratelock: release all: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// List returns all lock records ordered by server name.
func (r *Registry) List() ([]models.RateLock, error) {
	var locks []models.RateLock
	if err := r.db.Order("server_name").Find(&locks).Error; err != nil {
		return nil, fmt.Errorf("ratelock: list: %w", err)
	}
	return locks, nil
}
