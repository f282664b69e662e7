package page

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// BattleType classifies a battle by where its label came from.
type BattleType string

const (
	BattleDirect     BattleType = "direct"
	BattleResistance BattleType = "resistance"
	BattleTournament BattleType = "tournament"
	BattleCivil      BattleType = "civil"
	BattlePractice   BattleType = "practice"
)

// civilDefender is the name the site gives the defending side of a civil war.
const civilDefender = "Loyalists"

// Side is one side of a battle.
type Side struct {
	Name   string
	Wins   int
	Allies []string
}

// BattleInfo is an immutable snapshot of a battle page.
type BattleInfo struct {
	ID       int
	Label    string
	Type     BattleType
	RegionID int
	Frozen   bool
	Ended    bool   // the whole battle is decided
	Winner   string // winning country once Ended, if the page names it
	Round    int
	RoundID  int
	Defender Side
	Attacker Side
}

// Title is the human-readable name used in chat, e.g. "Japan vs China (Tokyo)".
func (b *BattleInfo) Title() string {
	return fmt.Sprintf("%s vs %s (%s)", b.Defender.Name, b.Attacker.Name, b.Label)
}

// Selectors on battle.html.
const (
	battleHeaderSelector = "#battleHeader"
	civilLinkSelector    = `a[href*="civilWar.html?id="]`
	tournamentSelector   = `a[href*="tournamentEvent.html?id="]`
	regionLinkSelector   = `a[href*="region.html?id="]`
	roundCounterSelector = "#roundCounter"
	roundIDSelector      = "input#roundId"
	frozenSelector       = "#frozenInfo"
	endedSelector        = "#battleEnded"
	defenderSelector     = "#defenderSide"
	attackerSelector     = "#attackerSide"
)

var digitsRe = regexp.MustCompile(`-?\d+`)

// ParseBattle extracts a BattleInfo from a battle.html body. The label and
// type come from the first matching header link: civil war, tournament,
// region, else a practice battle.
func ParseBattle(id int, body string) (*BattleInfo, error) {
	doc, err := document(body)
	if err != nil {
		return nil, err
	}
	header := doc.Find(battleHeaderSelector).First()
	if header.Length() == 0 {
		if msg := bannerText(doc, errorSelector); msg != "" {
			return nil, &SiteError{Message: msg}
		}
		if doc.Find(loggedInSelector).Length() == 0 {
			return nil, ErrNotLoggedIn
		}
		return nil, parseErr("battle", fmt.Errorf("battle %d: header not found", id))
	}

	info := &BattleInfo{ID: id}
	switch {
	case header.Find(civilLinkSelector).Length() > 0:
		info.Type = BattleCivil
		info.Label = cleanText(header.Find(civilLinkSelector).First().Text())
	case header.Find(tournamentSelector).Length() > 0:
		info.Type = BattleTournament
		info.Label = cleanText(header.Find(tournamentSelector).First().Text())
	case header.Find(regionLinkSelector).Length() > 0:
		link := header.Find(regionLinkSelector).First()
		info.Type = BattleDirect
		if strings.Contains(strings.ToLower(header.Text()), "resistance") {
			info.Type = BattleResistance
		}
		info.Label = cleanText(link.Text())
		href, _ := link.Attr("href")
		info.RegionID = queryID(href)
	default:
		info.Type = BattlePractice
		info.Label = "Practice"
	}

	info.Defender = parseSide(doc.Find(defenderSelector).First())
	info.Attacker = parseSide(doc.Find(attackerSelector).First())
	if info.Type == BattleCivil {
		info.Defender.Name = civilDefender
	}
	if info.Defender.Name == "" || info.Attacker.Name == "" {
		return nil, parseErr("battle", fmt.Errorf("battle %d: side names missing", id))
	}

	info.Round = firstInt(doc.Find(roundCounterSelector).First().Text())
	if v, ok := doc.Find(roundIDSelector).First().Attr("value"); ok {
		info.RoundID, _ = strconv.Atoi(strings.TrimSpace(v))
	}
	info.Frozen = doc.Find(frozenSelector).Length() > 0
	if ended := doc.Find(endedSelector).First(); ended.Length() > 0 {
		info.Ended = true
		info.Winner = cleanText(ended.Find(".countryName").First().Text())
		info.RoundID = 0
	}

	return info, nil
}

func parseSide(sel *goquery.Selection) Side {
	s := Side{
		Name: cleanText(sel.Find(".countryName").First().Text()),
		Wins: firstInt(sel.Find(".wins").First().Text()),
	}
	sel.Find(".allies a").Each(func(_ int, a *goquery.Selection) {
		if name := cleanText(a.Text()); name != "" {
			s.Allies = append(s.Allies, name)
		}
	})
	return s
}

// firstInt returns the first integer in s, or 0.
func firstInt(s string) int {
	m := digitsRe.FindString(s)
	if m == "" {
		return 0
	}
	n, _ := strconv.Atoi(m)
	return n
}

// queryID extracts the "id" query parameter of a relative link.
func queryID(href string) int {
	u, err := url.Parse(href)
	if err != nil {
		return 0
	}
	n, _ := strconv.Atoi(u.Query().Get("id"))
	return n
}
