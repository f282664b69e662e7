package store

import (
	"fmt"
	"strings"

	"github.com/zulandar/warwatch/internal/models"
	"gorm.io/gorm/clause"
)

// CreateCountry registers a country on a server.
func (s *Store) CreateCountry(c *models.Country) error {
	if err := s.db.Create(c).Error; err != nil {
		return fmt.Errorf("store: create country: %w", err)
	}
	return nil
}

// SaveUser creates the user or updates its level.
func (s *Store) SaveUser(account string, level int) (*models.User, error) {
	u, err := s.UserByAccount(account)
	switch {
	case err == nil:
		if err := s.db.Model(u).Update("level", level).Error; err != nil {
			return nil, fmt.Errorf("store: update user: %w", err)
		}
		u.Level = level
		return u, nil
	case !IsNotFound(err):
		return nil, err
	}
	u = &models.User{Account: account, Level: level}
	if err := s.db.Create(u).Error; err != nil {
		return nil, fmt.Errorf("store: create user: %w", err)
	}
	return u, nil
}

// Grant sets a user's access level on a country. Level zero revokes.
func (s *Store) Grant(userID, countryID uint, level int) error {
	if level <= models.AccessNone {
		err := s.db.Where("user_id = ? AND country_id = ?", userID, countryID).
			Delete(&models.CountryAccess{}).Error
		if err != nil {
			return fmt.Errorf("store: revoke access: %w", err)
		}
		return nil
	}
	access := models.CountryAccess{CountryID: countryID, UserID: userID, Level: level}
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "country_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"level"}),
	}).Create(&access).Error
	if err != nil {
		return fmt.Errorf("store: grant access: %w", err)
	}
	return nil
}

// SaveChannel creates the channel or updates its join key.
func (s *Store) SaveChannel(name, key string) (*models.Channel, error) {
	ch, err := s.ChannelByName(name)
	switch {
	case err == nil:
		if err := s.db.Model(&models.Channel{}).Where("id = ?", ch.ID).Update("keyword", key).Error; err != nil {
			return nil, fmt.Errorf("store: update channel: %w", err)
		}
		ch.Keyword = key
		return ch, nil
	case !IsNotFound(err):
		return nil, err
	}
	ch = &models.Channel{Name: strings.ToLower(name), Keyword: key}
	if err := s.db.Create(ch).Error; err != nil {
		return nil, fmt.Errorf("store: create channel: %w", err)
	}
	return ch, nil
}

// LinkChannel maps a channel to a country with the given channel types.
// Relinking replaces the types. New links go after the existing ones.
func (s *Store) LinkChannel(channelID, countryID uint, types []string) error {
	var count int64
	if err := s.db.Model(&models.ChannelCountry{}).Where("channel_id = ?", channelID).
		Count(&count).Error; err != nil {
		return fmt.Errorf("store: link channel: %w", err)
	}
	link := models.ChannelCountry{
		ChannelID: channelID,
		CountryID: countryID,
		Types:     strings.ToLower(strings.Join(types, ",")),
		Position:  int(count),
	}
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "channel_id"}, {Name: "country_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"types"}),
	}).Create(&link).Error
	if err != nil {
		return fmt.Errorf("store: link channel: %w", err)
	}
	return nil
}
