package dashboard

import (
	"time"

	"github.com/zulandar/warwatch/internal/ratelock"
	"github.com/zulandar/warwatch/internal/store"
)

// WatchRow is one battle watch as shown by the API.
type WatchRow struct {
	ID        uint      `json:"id"`
	Server    string    `json:"server"`
	BattleID  int       `json:"battle_id"`
	Label     string    `json:"label,omitempty"`
	Country   string    `json:"country"`
	Channel   string    `json:"channel"`
	Side      string    `json:"side"`
	Mode      string    `json:"mode"`
	CreatedBy string    `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// WatchSummary returns every persisted watch.
func WatchSummary(s *store.Store) ([]WatchRow, error) {
	watches, err := s.Watches()
	if err != nil {
		return nil, err
	}
	rows := make([]WatchRow, len(watches))
	for i, w := range watches {
		rows[i] = WatchRow{
			ID:        w.ID,
			Server:    w.Server.Name,
			BattleID:  w.BattleID,
			Label:     w.Label,
			Country:   w.Country.Name,
			Channel:   w.Channel.Name,
			Side:      w.Side,
			Mode:      w.Mode,
			CreatedBy: w.CreatedBy,
			CreatedAt: w.CreatedAt,
		}
	}
	return rows, nil
}

// LockRow is one per-server rate lock.
type LockRow struct {
	Server    string    `json:"server"`
	Holder    string    `json:"holder"`
	Done      bool      `json:"done"`
	UpdatedAt time.Time `json:"updated_at"`
	// CooldownSec is what remains of the window after a release.
	CooldownSec int `json:"cooldown_sec"`
}

// LockSummary returns every lock record with its remaining cooldown.
func LockSummary(r *ratelock.Registry) ([]LockRow, error) {
	locks, err := r.List()
	if err != nil {
		return nil, err
	}
	rows := make([]LockRow, len(locks))
	for i, l := range locks {
		row := LockRow{Server: l.ServerName, Holder: l.Holder, Done: l.Done, UpdatedAt: l.UpdatedAt}
		if l.Done {
			if left := r.Window() - r.Since(l.UpdatedAt); left > 0 {
				row.CooldownSec = int(left.Round(time.Second) / time.Second)
			}
		}
		rows[i] = row
	}
	return rows, nil
}
