// Package store wraps the gorm queries the bot core needs: servers,
// channels with their country links, users, organizations and watches.
package store

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zulandar/warwatch/internal/models"
	"gorm.io/gorm"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("store: not found")

// Store is a thin query layer over a gorm connection.
type Store struct {
	db *gorm.DB
}

// New creates a Store.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB returns the underlying connection.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// IsNotFound reports whether err is a lookup that matched no row.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	}
	return fmt.Errorf("store: %s: %w", what, err)
}

// Servers returns all enabled servers ordered by id.
func (s *Store) Servers() ([]models.Server, error) {
	var servers []models.Server
	if err := s.db.Where("disabled = ?", false).Order("id").Find(&servers).Error; err != nil {
		return nil, fmt.Errorf("store: list servers: %w", err)
	}
	return servers, nil
}

// ServerByName finds an enabled server by name or shortname, case-insensitively.
func (s *Store) ServerByName(name string) (*models.Server, error) {
	var srv models.Server
	n := strings.ToLower(name)
	err := s.db.Where("disabled = ? AND (LOWER(name) = ? OR LOWER(shortname) = ?)", false, n, n).
		First(&srv).Error
	if err != nil {
		return nil, notFound(err, "server "+name)
	}
	return &srv, nil
}

// ChannelByName loads a channel with its country links, each country's
// server and access list. Links are ordered by position.
func (s *Store) ChannelByName(name string) (*models.Channel, error) {
	var ch models.Channel
	err := s.db.
		Preload("Links", func(db *gorm.DB) *gorm.DB { return db.Order("position, country_id") }).
		Preload("Links.Country.Server").
		Preload("Links.Country.Access").
		Where("LOWER(name) = ?", strings.ToLower(name)).
		First(&ch).Error
	if err != nil {
		return nil, notFound(err, "channel "+name)
	}
	return &ch, nil
}

// CountryByName finds a country on a server by name or shortname.
func (s *Store) CountryByName(serverID uint, name string) (*models.Country, error) {
	var c models.Country
	n := strings.ToLower(name)
	err := s.db.Preload("Server").Preload("Access").
		Where("server_id = ? AND (LOWER(name) = ? OR LOWER(shortname) = ?)", serverID, n, n).
		First(&c).Error
	if err != nil {
		return nil, notFound(err, "country "+name)
	}
	return &c, nil
}

// SetCountryGameID records the site id of a country once resolved.
func (s *Store) SetCountryGameID(countryID uint, gameID int) error {
	if err := s.db.Model(&models.Country{}).Where("id = ?", countryID).
		Update("game_id", gameID).Error; err != nil {
		return fmt.Errorf("store: set country game id: %w", err)
	}
	return nil
}

// UserByAccount finds a registered user by chat identity.
func (s *Store) UserByAccount(account string) (*models.User, error) {
	var u models.User
	if err := s.db.Where("LOWER(account) = ?", strings.ToLower(account)).First(&u).Error; err != nil {
		return nil, notFound(err, "user "+account)
	}
	return &u, nil
}

// OrganizationForCountry returns the first organization registered for a country.
func (s *Store) OrganizationForCountry(countryID uint) (*models.Organization, error) {
	var org models.Organization
	err := s.db.Preload("Country.Server").
		Where("country_id = ?", countryID).Order("id").First(&org).Error
	if err != nil {
		return nil, notFound(err, "organization")
	}
	return &org, nil
}

// CreateOrganization stores a new organization account.
func (s *Store) CreateOrganization(org *models.Organization) error {
	if err := s.db.Create(org).Error; err != nil {
		return fmt.Errorf("store: create organization: %w", err)
	}
	return nil
}

// SaveCookies persists the serialized cookie jar of an organization.
func (s *Store) SaveCookies(orgID uint, cookies string) error {
	if err := s.db.Model(&models.Organization{}).Where("id = ?", orgID).
		Update("cookies", cookies).Error; err != nil {
		return fmt.Errorf("store: save cookies: %w", err)
	}
	return nil
}

// OrganizationForServer returns the first organization of any country on
// the server. Read-only lookups that need no country context use it.
func (s *Store) OrganizationForServer(serverID uint) (*models.Organization, error) {
	var org models.Organization
	err := s.db.Preload("Country.Server").
		Joins("JOIN countries ON countries.id = organizations.country_id").
		Where("countries.server_id = ?", serverID).
		Order("organizations.id").First(&org).Error
	if err != nil {
		return nil, notFound(err, "organization")
	}
	return &org, nil
}
