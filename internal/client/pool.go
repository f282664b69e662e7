package client

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/zulandar/warwatch/internal/config"
	"github.com/zulandar/warwatch/internal/models"
	"github.com/zulandar/warwatch/internal/store"
)

// PoolOpts configures a Pool.
type PoolOpts struct {
	Store *store.Store
	Site  config.SiteConfig

	// AddressFor overrides the server base URL. Defaults to
	// Server.Address(Site.Domain).
	AddressFor func(models.Server) string

	RetryDelay time.Duration
	Logger     *zerolog.Logger
}

// Pool hands out one Client per organization, created on first use.
type Pool struct {
	opts    PoolOpts
	mu      sync.Mutex
	clients map[uint]*Client
}

// NewPool creates an empty pool.
func NewPool(opts PoolOpts) *Pool {
	if opts.AddressFor == nil {
		domain := opts.Site.Domain
		opts.AddressFor = func(s models.Server) string { return s.Address(domain) }
	}
	return &Pool{opts: opts, clients: make(map[uint]*Client)}
}

// ForCountry returns the client of the organization that acts for the
// country.
func (p *Pool) ForCountry(countryID uint) (*Client, error) {
	org, err := p.opts.Store.OrganizationForCountry(countryID)
	if err != nil {
		return nil, fmt.Errorf("no organization for country %d: %w", countryID, err)
	}
	return p.forOrganization(org)
}

// ForServer returns the client of any organization on the server, for
// lookups that act for no particular country.
func (p *Pool) ForServer(serverID uint) (*Client, error) {
	org, err := p.opts.Store.OrganizationForServer(serverID)
	if err != nil {
		return nil, fmt.Errorf("no organization on server %d: %w", serverID, err)
	}
	return p.forOrganization(org)
}

func (p *Pool) forOrganization(org *models.Organization) (*Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.clients[org.ID]; ok {
		return c, nil
	}

	orgID := org.ID
	sess, err := NewSession(SessionOpts{
		BaseURL:           p.opts.AddressFor(org.Country.Server),
		Username:          org.Username,
		Password:          org.Password,
		Cookies:           org.Cookies,
		UserAgent:         p.opts.Site.UserAgent,
		Timeout:           time.Duration(p.opts.Site.TimeoutSec) * time.Second,
		RequestsPerSecond: p.opts.Site.RequestsPerSecond,
		LoginRetries:      p.opts.Site.LoginRetries,
		RetryDelay:        p.opts.RetryDelay,
		OnCookies: func(blob string) error {
			return p.opts.Store.SaveCookies(orgID, blob)
		},
		Logger: p.opts.Logger,
	})
	if err != nil {
		return nil, err
	}
	c := New(sess)
	p.clients[org.ID] = c
	return c, nil
}

// Forget drops the cached client of an organization, e.g. after its
// credentials changed.
func (p *Pool) Forget(orgID uint) {
	p.mu.Lock()
	delete(p.clients, orgID)
	p.mu.Unlock()
}

// Len returns the number of live sessions.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.clients)
}
