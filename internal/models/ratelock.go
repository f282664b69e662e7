package models

import "time"

// RateLock gates scan-style commands per game server. A record whose Done
// flag is set acts as a cooldown marker until its window elapses.
type RateLock struct {
	ServerName string    `gorm:"primaryKey;size:32"`
	Holder     string    `gorm:"size:64;not null"`
	Done       bool      `gorm:"default:false"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime:false;index"`
}
