package page

import (
	"encoding/json"
	"fmt"
	"strings"
)

// CountryInfo is one entry of apiCountries.html.
type CountryInfo struct {
	ID              int    `json:"id"`
	Name            string `json:"name"`
	ShortName       string `json:"shortName"`
	CapitalRegionID int    `json:"capitalId"`
	CapitalName     string `json:"capitalName"`
	Currency        string `json:"currencyName"`
}

// RegionInfo is one entry of apiRegions.html.
type RegionInfo struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	HomeCountry int    `json:"homeCountry"`
	Capital     bool   `json:"capital"`
	Neighbours  []int  `json:"neighbours"`
}

// RegionStatus is one entry of apiMap.html: who holds a region right now.
type RegionStatus struct {
	RegionID    int    `json:"regionId"`
	OccupantID  int    `json:"occupantId"`
	Battle      bool   `json:"battle"`
	Resource    string `json:"resource"`
	RawRichness string `json:"rawRichness"`
}

// Bonus reports whether the region carries a high resource bonus.
func (r RegionStatus) Bonus() bool {
	return strings.EqualFold(r.RawRichness, "HIGH")
}

// CitizenInfo is the apiCitizenByName.html payload.
type CitizenInfo struct {
	ID             int     `json:"id"`
	Login          string  `json:"login"`
	Citizenship    string  `json:"citizenship"`
	CitizenshipID  int     `json:"citizenshipId"`
	Level          int     `json:"level"`
	Strength       float64 `json:"strength"`
	Rank           string  `json:"rank"`
	XP             int     `json:"xp"`
	MilitaryUnitID int     `json:"militaryUnitId"`
	Status         string  `json:"status"`
	DamageToday    int64   `json:"damageToday"`
	Error          string  `json:"error"`
}

// apiError is the shape of an API failure: {"error": "..."}.
type apiError struct {
	Error string `json:"error"`
}

func decodeList[T any](what, body string) ([]T, error) {
	trimmed := strings.TrimSpace(body)
	if strings.HasPrefix(trimmed, "{") {
		var ae apiError
		if err := json.Unmarshal([]byte(trimmed), &ae); err == nil && ae.Error != "" {
			return nil, &SiteError{Message: ae.Error}
		}
	}
	if !strings.HasPrefix(trimmed, "[") {
		if msg := ErrorBanner(body); msg != "" {
			return nil, &SiteError{Message: msg}
		}
		return nil, parseErr(what, fmt.Errorf("expected a JSON array"))
	}
	var out []T
	if err := json.Unmarshal([]byte(trimmed), &out); err != nil {
		return nil, parseErr(what, err)
	}
	return out, nil
}

// ParseCountries decodes apiCountries.html.
func ParseCountries(body string) ([]CountryInfo, error) {
	return decodeList[CountryInfo]("countries", body)
}

// ParseRegions decodes apiRegions.html.
func ParseRegions(body string) ([]RegionInfo, error) {
	return decodeList[RegionInfo]("regions", body)
}

// ParseMap decodes apiMap.html.
func ParseMap(body string) ([]RegionStatus, error) {
	return decodeList[RegionStatus]("map", body)
}

// ParseCitizen decodes apiCitizenByName.html. A payload carrying an error
// field becomes a SiteError.
func ParseCitizen(body string) (*CitizenInfo, error) {
	trimmed := strings.TrimSpace(body)
	if !strings.HasPrefix(trimmed, "{") {
		if msg := ErrorBanner(body); msg != "" {
			return nil, &SiteError{Message: msg}
		}
		return nil, parseErr("citizen", fmt.Errorf("expected a JSON object"))
	}
	var c CitizenInfo
	if err := json.Unmarshal([]byte(trimmed), &c); err != nil {
		return nil, parseErr("citizen", err)
	}
	if c.Error != "" {
		return nil, &SiteError{Message: c.Error}
	}
	if c.ID == 0 {
		return nil, &SiteError{Message: "Citizen not found"}
	}
	return &c, nil
}
