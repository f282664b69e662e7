package command

import (
	"context"

	"github.com/zulandar/warwatch/internal/client"
	"github.com/zulandar/warwatch/internal/models"
	"github.com/zulandar/warwatch/internal/page"
	"github.com/zulandar/warwatch/internal/watch"
)

// Site is the organization client surface the commands use.
type Site interface {
	watch.Site
	Citizen(ctx context.Context, name string) (*page.CitizenInfo, error)
	Countries(ctx context.Context) ([]page.CountryInfo, error)
	Regions(ctx context.Context) ([]page.RegionInfo, error)
	NewCitizens(ctx context.Context, countryID int) ([]page.CitizenRef, error)
	Motivate(ctx context.Context, citizenID int, kind client.MotivateKind) (string, error)
	Donate(ctx context.Context, citizenID int, product string, quantity int, reason string) (string, error)
}

// Sites hands out the client acting for a country, or any client on a
// server for lookups that need no country.
type Sites interface {
	ForCountry(countryID uint) (Site, error)
	ForServer(serverID uint) (Site, error)
}

// Watcher is the part of the watch scheduler the commands drive.
type Watcher interface {
	Add(ctx context.Context, w *models.Watch) error
	Remove(serverID uint, battleID int) (bool, error)
	IsActive(serverID uint, battleID int) bool
}

// PoolSites adapts a client pool to Sites.
func PoolSites(p *client.Pool) Sites {
	return poolSites{pool: p}
}

type poolSites struct {
	pool *client.Pool
}

func (ps poolSites) ForCountry(countryID uint) (Site, error) {
	c, err := ps.pool.ForCountry(countryID)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (ps poolSites) ForServer(serverID uint) (Site, error) {
	c, err := ps.pool.ForServer(serverID)
	if err != nil {
		return nil, err
	}
	return c, nil
}
