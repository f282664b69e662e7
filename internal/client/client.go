package client

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/zulandar/warwatch/internal/page"
)

// MotivateKind is the package a motivation sends.
type MotivateKind int

const (
	MotivateWeapon MotivateKind = 1
	MotivateFood   MotivateKind = 2
	MotivateGift   MotivateKind = 3
)

func (k MotivateKind) String() string {
	switch k {
	case MotivateWeapon:
		return "weapon"
	case MotivateFood:
		return "food"
	case MotivateGift:
		return "gift"
	default:
		return "unknown"
	}
}

// Client is the typed scraping API of one organization.
type Client struct {
	session *Session
}

// New wraps a session.
func New(s *Session) *Client {
	return &Client{session: s}
}

// Session returns the underlying session.
func (c *Client) Session() *Session {
	return c.session
}

func idParam(id int) url.Values {
	return url.Values{"id": {strconv.Itoa(id)}}
}

// BattleInfo fetches and parses battle.html for the battle id.
func (c *Client) BattleInfo(ctx context.Context, battleID int) (*page.BattleInfo, error) {
	body, err := c.session.Get(ctx, "battle.html", idParam(battleID))
	if err != nil {
		return nil, err
	}
	return page.ParseBattle(battleID, body)
}

// BattleRoundInfo fetches the live score of a round by its round id.
func (c *Client) BattleRoundInfo(ctx context.Context, roundID int) (*page.BattleRoundInfo, error) {
	params := idParam(roundID)
	params.Set("at", "0")
	params.Set("ci", "0")
	body, err := c.session.GetData(ctx, "battleScore.html", params)
	if err != nil {
		return nil, err
	}
	return page.ParseRound(body)
}

// Citizen looks a citizen up by name.
func (c *Client) Citizen(ctx context.Context, name string) (*page.CitizenInfo, error) {
	body, err := c.session.GetData(ctx, "apiCitizenByName.html", url.Values{"name": {name}})
	if err != nil {
		return nil, err
	}
	return page.ParseCitizen(body)
}

// Countries lists every country on the server.
func (c *Client) Countries(ctx context.Context) ([]page.CountryInfo, error) {
	body, err := c.session.GetData(ctx, "apiCountries.html", nil)
	if err != nil {
		return nil, err
	}
	return page.ParseCountries(body)
}

// Regions lists every region on the server.
func (c *Client) Regions(ctx context.Context) ([]page.RegionInfo, error) {
	body, err := c.session.GetData(ctx, "apiRegions.html", nil)
	if err != nil {
		return nil, err
	}
	return page.ParseRegions(body)
}

// RegionStatuses returns the current map: occupants, battles and resources.
func (c *Client) RegionStatuses(ctx context.Context) ([]page.RegionStatus, error) {
	body, err := c.session.GetData(ctx, "apiMap.html", nil)
	if err != nil {
		return nil, err
	}
	return page.ParseMap(body)
}

// NewCitizens lists recently joined citizens of a country by game id.
func (c *Client) NewCitizens(ctx context.Context, countryID int) ([]page.CitizenRef, error) {
	body, err := c.session.Get(ctx, "newCitizens.html", url.Values{"countryId": {strconv.Itoa(countryID)}})
	if err != nil {
		return nil, err
	}
	return page.ParseNewCitizens(body)
}

// Motivate sends a motivation package to a citizen. A citizen that cannot
// be motivated yields a *page.SiteError with the site's reason.
func (c *Client) Motivate(ctx context.Context, citizenID int, kind MotivateKind) (string, error) {
	path := "motivateCitizen.html?id=" + strconv.Itoa(citizenID)
	body, err := c.session.Get(ctx, path, nil)
	if err != nil {
		return "", err
	}
	ok, err := page.CanMotivate(body)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", &page.SiteError{Message: "Citizen cannot be motivated"}
	}

	body, err = c.session.Post(ctx, path, url.Values{
		"type":   {strconv.Itoa(int(kind))},
		"submit": {"Motivate"},
	})
	if err != nil {
		return "", err
	}
	return page.ParseActionResult(body)
}

// Donate gives quantity units of product to a citizen. Product is matched
// case-insensitively against the values the donate form offers, e.g.
// "5-WEAPON".
func (c *Client) Donate(ctx context.Context, citizenID int, product string, quantity int, reason string) (string, error) {
	if quantity <= 0 {
		return "", fmt.Errorf("client: donate: quantity must be positive")
	}
	path := "donateProducts.html?id=" + strconv.Itoa(citizenID)
	body, err := c.session.Get(ctx, path, nil)
	if err != nil {
		return "", err
	}
	offered, err := page.DonateProducts(body)
	if err != nil {
		return "", err
	}
	value := ""
	for _, p := range offered {
		if strings.EqualFold(p, product) {
			value = p
			break
		}
	}
	if value == "" {
		return "", &page.SiteError{Message: fmt.Sprintf("Product %s is not in storage", product)}
	}

	body, err = c.session.Post(ctx, path, url.Values{
		"product":  {value},
		"quantity": {strconv.Itoa(quantity)},
		"reason":   {reason},
		"submit":   {"Donate"},
	})
	if err != nil {
		return "", err
	}
	return page.ParseActionResult(body)
}
