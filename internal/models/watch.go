package models

import "time"

// Battle sides.
const (
	SideDefender = "defender"
	SideAttacker = "attacker"
)

// Watch modes select the checkpoint list used by the scheduler.
const (
	ModeFull  = "full"
	ModeLight = "light"
)

// Watch is a persisted battle watch. At most one exists per server/battle.
type Watch struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	ServerID  uint   `gorm:"not null;uniqueIndex:idx_server_battle"`
	BattleID  int    `gorm:"not null;uniqueIndex:idx_server_battle"`
	CountryID uint   `gorm:"not null;index"`
	ChannelID uint   `gorm:"not null;index"`
	Side      string `gorm:"size:16;not null;default:defender"`
	Mode      string `gorm:"size:8;not null;default:full"`
	Label     string `gorm:"size:256"`
	CreatedBy string `gorm:"size:64"`
	CreatedAt time.Time

	Server  Server  `gorm:"foreignKey:ServerID"`
	Country Country `gorm:"foreignKey:CountryID"`
	Channel Channel `gorm:"foreignKey:ChannelID"`
}
