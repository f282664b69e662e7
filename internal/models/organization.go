package models

// Organization is a game account the bot logs in with on behalf of a
// country. Cookies holds the serialized cookie jar of the last login.
type Organization struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	CountryID uint   `gorm:"not null;index"`
	Username  string `gorm:"size:64;not null"`
	Password  string `gorm:"size:128;not null"`
	Shortname string `gorm:"size:16"`
	Cookies   string `gorm:"type:text"`

	Country Country `gorm:"foreignKey:CountryID"`
}
