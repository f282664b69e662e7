package db

import (
	"fmt"

	"github.com/zulandar/warwatch/internal/config"
	"github.com/zulandar/warwatch/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AllModels returns the list of all GORM models for migration.
func AllModels() []interface{} {
	return []interface{}{
		&models.Server{},
		&models.User{},
		&models.Country{},
		&models.CountryAccess{},
		&models.Channel{},
		&models.ChannelCountry{},
		&models.Organization{},
		&models.Watch{},
		&models.RateLock{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// SeedServers upserts Server rows from configuration.
func SeedServers(db *gorm.DB, servers []config.ServerConfig) error {
	for _, sc := range servers {
		srv := models.Server{
			Name:      sc.Name,
			Shortname: sc.Shortname,
			Disabled:  sc.Disabled,
		}
		result := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"shortname", "disabled"}),
		}).Create(&srv)
		if result.Error != nil {
			return fmt.Errorf("db: seed server %q: %w", sc.Name, result.Error)
		}
	}
	return nil
}
