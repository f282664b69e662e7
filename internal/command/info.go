package command

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/zulandar/warwatch/internal/chat"
	"github.com/zulandar/warwatch/internal/page"
)

// maxListLines caps multi-line listings in chat.
const maxListLines = 12

func (p *Pipeline) citizenCommand() *Command {
	return &Command{
		Name:      "citizen",
		Args:      "<name>",
		Summary:   "show a citizen's profile",
		Op:        "look up the citizen",
		MinArgs:   1,
		MaxArgs:   1,
		Anonymous: true,
		Server:    true,
		Run: func(ctx context.Context, inv *Invocation) (string, error) {
			site, err := p.opts.Sites.ForServer(inv.Server.ID)
			if err != nil {
				return "", err
			}
			c, err := site.Citizen(ctx, inv.Args[0])
			if err != nil {
				return "", err
			}
			return formatCitizen(c), nil
		},
	}
}

func formatCitizen(c *page.CitizenInfo) string {
	status := c.Status
	if status == "" {
		status = "active"
	}
	return fmt.Sprintf("%s [%d] %s | Level %d | %s | Strength %s | Damage today %s | %s",
		chat.Bold(c.Login), c.ID, c.Citizenship, c.Level, c.Rank,
		humanize.CommafWithDigits(c.Strength, 2), humanize.Comma(c.DamageToday), status)
}

func (p *Pipeline) countryCommand() *Command {
	return &Command{
		Name:      "country",
		Args:      "<name>",
		Summary:   "show a country's id, capital and currency",
		Op:        "look up the country",
		MinArgs:   1,
		MaxArgs:   1,
		Anonymous: true,
		Server:    true,
		Run: func(ctx context.Context, inv *Invocation) (string, error) {
			site, err := p.opts.Sites.ForServer(inv.Server.ID)
			if err != nil {
				return "", err
			}
			countries, err := site.Countries(ctx)
			if err != nil {
				return "", err
			}
			c, ok := findCountry(countries, inv.Args[0])
			if !ok {
				return fmt.Sprintf("No country named %s on %s.", inv.Args[0], inv.Server.Name), nil
			}
			return fmt.Sprintf("%s (%s) [%d] | Capital %s | Currency %s",
				chat.Bold(c.Name), c.ShortName, c.ID, c.CapitalName, c.Currency), nil
		},
	}
}

func findCountry(countries []page.CountryInfo, name string) (page.CountryInfo, bool) {
	for _, c := range countries {
		if strings.EqualFold(c.Name, name) || strings.EqualFold(c.ShortName, name) {
			return c, true
		}
	}
	return page.CountryInfo{}, false
}

func (p *Pipeline) regionsCommand() *Command {
	return &Command{
		Name:      "regions",
		Args:      "[country]",
		Summary:   "list regions a country holds, or every region under attack",
		Op:        "list regions",
		MaxArgs:   1,
		Anonymous: true,
		Server:    true,
		Run:       p.runRegions,
	}
}

func (p *Pipeline) runRegions(ctx context.Context, inv *Invocation) (string, error) {
	site, err := p.opts.Sites.ForServer(inv.Server.ID)
	if err != nil {
		return "", err
	}
	regions, err := site.Regions(ctx)
	if err != nil {
		return "", err
	}
	statuses, err := site.RegionStatuses(ctx)
	if err != nil {
		return "", err
	}
	countries, err := site.Countries(ctx)
	if err != nil {
		return "", err
	}

	names := make(map[int]string, len(regions))
	for _, r := range regions {
		names[r.ID] = r.Name
	}
	owners := make(map[int]string, len(countries))
	for _, c := range countries {
		owners[c.ID] = c.Name
	}

	occupant := 0
	if len(inv.Args) == 1 {
		c, ok := findCountry(countries, inv.Args[0])
		if !ok {
			return fmt.Sprintf("No country named %s on %s.", inv.Args[0], inv.Server.Name), nil
		}
		occupant = c.ID
	}

	var lines []string
	for _, st := range statuses {
		if occupant != 0 && st.OccupantID != occupant {
			continue
		}
		if occupant == 0 && !st.Battle {
			continue
		}
		line := fmt.Sprintf("%s [%d]: %s", names[st.RegionID], st.RegionID, owners[st.OccupantID])
		if st.Battle {
			line += " | " + chat.Colorize("battle", chat.Red)
		}
		if st.Resource != "" {
			line += fmt.Sprintf(" | %s %s", strings.ToLower(st.Resource), strings.ToLower(st.RawRichness))
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		if occupant != 0 {
			return fmt.Sprintf("%s holds no regions.", inv.Args[0]), nil
		}
		return "No regions are under attack.", nil
	}
	sort.Strings(lines)
	if len(lines) > maxListLines {
		more := len(lines) - maxListLines
		lines = append(lines[:maxListLines], fmt.Sprintf("... and %d more", more))
	}
	return strings.Join(lines, "\n"), nil
}
