package models

// Access levels granted on a country.
const (
	AccessNone    = 0
	AccessMember  = 1
	AccessOfficer = 2
	AccessLeader  = 3
)

// Country is an in-game country that chat channels and organizations act for.
// GameID is the site's numeric id; zero means it has not been resolved yet.
type Country struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	ServerID  uint   `gorm:"not null;index"`
	Name      string `gorm:"size:64;not null"`
	Shortname string `gorm:"size:16;not null"`
	GameID    int

	Server Server          `gorm:"foreignKey:ServerID"`
	Access []CountryAccess `gorm:"foreignKey:CountryID"`
}

// CountryAccess grants a user an access level on a country.
type CountryAccess struct {
	CountryID uint `gorm:"primaryKey"`
	UserID    uint `gorm:"primaryKey"`
	Level     int  `gorm:"not null;default:1"`

	User User `gorm:"foreignKey:UserID"`
}

// LevelFor returns the access level the user holds on the country.
func (c Country) LevelFor(userID uint) int {
	for _, a := range c.Access {
		if a.UserID == userID {
			return a.Level
		}
	}
	return AccessNone
}
