package store

import (
	"fmt"

	"github.com/zulandar/warwatch/internal/models"
	"gorm.io/gorm"
)

func preloadWatch(db *gorm.DB) *gorm.DB {
	return db.Preload("Server").Preload("Country.Server").Preload("Channel")
}

// CreateWatch inserts a watch, replacing any stored watch for the same
// server and battle.
func (s *Store) CreateWatch(w *models.Watch) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("server_id = ? AND battle_id = ?", w.ServerID, w.BattleID).
			Delete(&models.Watch{}).Error; err != nil {
			return fmt.Errorf("delete previous: %w", err)
		}
		return tx.Omit("Server", "Country", "Channel").Create(w).Error
	})
	if err != nil {
		return fmt.Errorf("store: create watch: %w", err)
	}
	return nil
}

// Watch loads a watch by id with its server, country and channel.
func (s *Store) Watch(id uint) (*models.Watch, error) {
	var w models.Watch
	if err := preloadWatch(s.db).First(&w, id).Error; err != nil {
		return nil, notFound(err, fmt.Sprintf("watch %d", id))
	}
	return &w, nil
}

// Watches returns every persisted watch.
func (s *Store) Watches() ([]models.Watch, error) {
	var ws []models.Watch
	if err := preloadWatch(s.db).Order("id").Find(&ws).Error; err != nil {
		return nil, fmt.Errorf("store: list watches: %w", err)
	}
	return ws, nil
}

// WatchesForChannel returns the watches reporting to a channel.
func (s *Store) WatchesForChannel(channelID uint) ([]models.Watch, error) {
	var ws []models.Watch
	if err := preloadWatch(s.db).Where("channel_id = ?", channelID).Order("id").Find(&ws).Error; err != nil {
		return nil, fmt.Errorf("store: list channel watches: %w", err)
	}
	return ws, nil
}

// DeleteWatch removes a watch by id. Deleting a missing watch is not an error.
func (s *Store) DeleteWatch(id uint) error {
	if err := s.db.Delete(&models.Watch{}, id).Error; err != nil {
		return fmt.Errorf("store: delete watch %d: %w", id, err)
	}
	return nil
}

// SetWatchLabel attaches the human-readable battle label to a watch.
func (s *Store) SetWatchLabel(id uint, label string) error {
	if err := s.db.Model(&models.Watch{}).Where("id = ?", id).
		Update("label", label).Error; err != nil {
		return fmt.Errorf("store: set watch label: %w", err)
	}
	return nil
}

// WatchByBattle finds the watch of a battle on a server.
func (s *Store) WatchByBattle(serverID uint, battleID int) (*models.Watch, error) {
	var w models.Watch
	err := preloadWatch(s.db).Where("server_id = ? AND battle_id = ?", serverID, battleID).First(&w).Error
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("watch for battle %d", battleID))
	}
	return &w, nil
}
