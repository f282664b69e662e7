package models

import "strings"

// Channel type permissions that can be granted on a channel/country link.
const (
	ChannelMilitary = "military"
	ChannelMotivate = "motivate"
)

// Channel is a chat channel the bot sits in. Keyword is the channel key
// used when joining.
type Channel struct {
	ID      uint   `gorm:"primaryKey;autoIncrement"`
	Name    string `gorm:"size:128;not null;uniqueIndex"`
	Keyword string `gorm:"size:64"`

	Links []ChannelCountry `gorm:"foreignKey:ChannelID"`
}

// ChannelCountry maps a channel to a country it speaks for. Types is a
// comma-separated list of channel-type permissions (e.g. "military,motivate").
type ChannelCountry struct {
	ChannelID uint   `gorm:"primaryKey"`
	CountryID uint   `gorm:"primaryKey"`
	Types     string `gorm:"size:128"`
	Position  int    `gorm:"default:0"`

	Country Country `gorm:"foreignKey:CountryID"`
}

// HasType reports whether the link grants the given channel type.
func (cc ChannelCountry) HasType(t string) bool {
	for _, s := range strings.Split(cc.Types, ",") {
		if strings.EqualFold(strings.TrimSpace(s), t) {
			return true
		}
	}
	return false
}
