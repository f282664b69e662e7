package models

import (
	"fmt"
	"strings"
)

// Server is one game world. Each world lives on its own subdomain of the
// game site, e.g. https://alpha.e-sim.org/.
type Server struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	Name      string `gorm:"size:32;not null;uniqueIndex"`
	Shortname string `gorm:"size:8;not null;uniqueIndex"`
	Disabled  bool   `gorm:"default:false"`

	Countries []Country `gorm:"foreignKey:ServerID"`
}

// Address returns the base URL of the server on the given domain.
func (s Server) Address(domain string) string {
	return fmt.Sprintf("https://%s.%s/", strings.ToLower(s.Name), domain)
}
