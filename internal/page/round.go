package page

import (
	"encoding/json"
	"fmt"
	"strings"
)

// BattleRoundInfo is a snapshot of one round's score. A negative
// RemainingSeconds means the round has ended.
type BattleRoundInfo struct {
	DefenderScore    int64
	AttackerScore    int64
	TotalScore       int64
	RemainingSeconds int
}

// Ended reports whether the round is over.
func (r *BattleRoundInfo) Ended() bool {
	return r.RemainingSeconds < 0
}

// Score returns the score of the named side ("defender" or "attacker").
func (r *BattleRoundInfo) Score(side string) int64 {
	if side == "attacker" {
		return r.AttackerScore
	}
	return r.DefenderScore
}

// Percentage returns the named side's share of the total score.
func (r *BattleRoundInfo) Percentage(side string) float64 {
	return Percent(r.Score(side), r.TotalScore)
}

// Winner returns the side leading the round. Ties go to the defender.
func (r *BattleRoundInfo) Winner() string {
	if r.AttackerScore > r.DefenderScore {
		return "attacker"
	}
	return "defender"
}

type roundJSON struct {
	DefenderScore          flexNumber `json:"defenderScore"`
	AttackerScore          flexNumber `json:"attackerScore"`
	RemainingTimeInSeconds *int       `json:"remainingTimeInSeconds"`
	Error                  string     `json:"error"`
}

// ParseRound decodes a battleScore.html body. The endpoint answers JSON for
// a live round and an HTML error page otherwise, which is surfaced as a
// SiteError rather than a JSON syntax error.
func ParseRound(body string) (*BattleRoundInfo, error) {
	trimmed := strings.TrimSpace(body)
	if strings.HasPrefix(trimmed, "{") {
		var raw roundJSON
		if err := json.Unmarshal([]byte(trimmed), &raw); err == nil {
			if raw.Error != "" {
				return nil, &SiteError{Message: raw.Error}
			}
			if raw.RemainingTimeInSeconds == nil {
				return nil, parseErr("round", fmt.Errorf("remainingTimeInSeconds missing"))
			}
			r := &BattleRoundInfo{
				DefenderScore:    int64(raw.DefenderScore),
				AttackerScore:    int64(raw.AttackerScore),
				RemainingSeconds: *raw.RemainingTimeInSeconds,
			}
			r.TotalScore = r.DefenderScore + r.AttackerScore
			return r, nil
		}
	}

	doc, err := document(body)
	if err != nil {
		return nil, err
	}
	if msg := bannerText(doc, errorSelector); msg != "" {
		return nil, &SiteError{Message: msg}
	}
	lower := strings.ToLower(doc.Text())
	if strings.Contains(lower, "battle not found") || strings.Contains(lower, "no battle") {
		return nil, &SiteError{Message: "Battle not found"}
	}
	if doc.Find(loggedInSelector).Length() == 0 && doc.Find(loginFormSelector).Length() > 0 {
		return nil, ErrNotLoggedIn
	}
	return nil, parseErr("round", fmt.Errorf("unexpected body"))
}
