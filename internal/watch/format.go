package watch

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/zulandar/warwatch/internal/chat"
	"github.com/zulandar/warwatch/internal/models"
	"github.com/zulandar/warwatch/internal/page"
)

// Status is what one status line shows.
type Status struct {
	URL   string
	Info  *page.BattleInfo
	Round *page.BattleRoundInfo
	Side  string
	Bonus bool
}

// BattleURL returns the battle page address on a server.
func BattleURL(serverAddress string, battleID int) string {
	return fmt.Sprintf("%sbattle.html?id=%d", serverAddress, battleID)
}

func opposite(side string) string {
	if side == models.SideAttacker {
		return models.SideDefender
	}
	return models.SideAttacker
}

func sideOf(info *page.BattleInfo, side string) page.Side {
	if side == models.SideAttacker {
		return info.Attacker
	}
	return info.Defender
}

func verb(side string) string {
	if side == models.SideAttacker {
		return "Attacking"
	}
	return "Defending"
}

// Countdown renders remaining seconds as m:ss, or h:mm:ss past an hour.
func Countdown(seconds int) string {
	if seconds < 0 {
		return "ended"
	}
	h, m, s := seconds/3600, (seconds%3600)/60, seconds%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// SignedComma formats n with thousands separators and an explicit sign.
func SignedComma(n int64) string {
	if n > 0 {
		return "+" + humanize.Comma(n)
	}
	return humanize.Comma(n)
}

func percent(r *page.BattleRoundInfo, side string) string {
	pct := r.Percentage(side)
	color := chat.Red
	if pct >= 50 {
		color = chat.Green
	}
	return chat.Colorize(chat.Bold(fmt.Sprintf("%.2f%%", pct)), color)
}

// StatusLine renders the one-line battle status:
// round, title, bonus, side and tally, percentage, wall, countdown, URL.
func StatusLine(s Status) string {
	ours, theirs := sideOf(s.Info, s.Side), sideOf(s.Info, opposite(s.Side))
	parts := []string{
		chat.Bold(fmt.Sprintf("R%d", s.Info.Round)) + " " + s.Info.Title(),
	}
	if s.Bonus {
		parts = append(parts, chat.Colorize("Bonus", chat.Orange))
	}
	parts = append(parts,
		fmt.Sprintf("%s %s %d:%d", verb(s.Side), ours.Name, ours.Wins, theirs.Wins),
		percent(s.Round, s.Side),
		"Wall "+SignedComma(s.Round.Score(s.Side)-s.Round.Score(opposite(s.Side))),
		Countdown(s.Round.RemainingSeconds),
		s.URL,
	)
	return strings.Join(parts, " | ")
}

// CallToArms returns the broadcast for a named threshold, or "" when the
// threshold has none. At two minutes the wording depends on whether the
// side holds at least hold percent.
func CallToArms(threshold int, s Status, hold float64) string {
	ours := sideOf(s.Info, s.Side).Name
	head := fmt.Sprintf("R%d %s", s.Info.Round, s.Info.Title())
	switch threshold {
	case 600:
		return fmt.Sprintf("%s %s: 10 minutes left, get ready to fight for %s! %s",
			chat.Bold("[10 min]"), head, ours, s.URL)
	case 300:
		return fmt.Sprintf("%s %s: 5 minutes left, start hitting for %s! %s",
			chat.Bold("[5 min]"), head, ours, s.URL)
	case 120:
		pct := s.Round.Percentage(s.Side)
		if pct >= hold {
			return fmt.Sprintf("%s %s: %s holds at %.2f%%, keep the wall up! %s",
				chat.Bold("[2 min]"), head, ours, pct, s.URL)
		}
		return fmt.Sprintf("%s %s: %s is at %.2f%%, everyone all in NOW! %s",
			chat.Bold(chat.Colorize("[2 min]", chat.Red)), head, ours, pct, s.URL)
	}
	return ""
}

// BattleOverLine announces the end of the whole battle.
func BattleOverLine(s Status) string {
	head := fmt.Sprintf("Battle %d %s is over", s.Info.ID, s.Info.Title())
	if s.Info.Winner == "" {
		return head + "."
	}
	return fmt.Sprintf("%s: %s won (%s %d : %s %d).", head, chat.Bold(s.Info.Winner),
		s.Info.Defender.Name, s.Info.Defender.Wins, s.Info.Attacker.Name, s.Info.Attacker.Wins)
}

// RoundOverLine announces the end of a round. Ties go to the defender.
func RoundOverLine(s Status) string {
	winner := sideOf(s.Info, s.Round.Winner())
	return fmt.Sprintf("%s %s is over: %s won the round (%s %s : %s %s). Watch ended.",
		chat.Bold(fmt.Sprintf("R%d", s.Info.Round)), s.Info.Title(),
		chat.Bold(winner.Name),
		s.Info.Defender.Name, humanize.Comma(s.Round.DefenderScore),
		s.Info.Attacker.Name, humanize.Comma(s.Round.AttackerScore))
}
