package models

// User levels. Private-message commands require LevelAdmin.
const (
	LevelUser  = 0
	LevelAdmin = 10
)

// User is a registered account, keyed by its chat-network identity.
type User struct {
	ID      uint   `gorm:"primaryKey;autoIncrement"`
	Account string `gorm:"size:64;not null;uniqueIndex"`
	Level   int    `gorm:"default:0"`
}
