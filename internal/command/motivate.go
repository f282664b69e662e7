package command

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/pflag"

	"github.com/zulandar/warwatch/internal/client"
	"github.com/zulandar/warwatch/internal/models"
	"github.com/zulandar/warwatch/internal/page"
)

func (p *Pipeline) motivateCommand() *Command {
	return &Command{
		Name:         "motivate",
		Summary:      "send motivation packages to the country's new citizens",
		Op:           "motivate",
		CountryLevel: models.AccessMember,
		ChannelType:  models.ChannelMotivate,
		Server:       true,
		Flags: func(fs *pflag.FlagSet) {
			fs.BoolP("weapon", "w", false, "send weapons (default)")
			fs.BoolP("food", "f", false, "send food")
			fs.BoolP("gift", "g", false, "send gifts")
		},
		Run: p.runMotivate,
	}
}

func motivateKind(inv *Invocation) (client.MotivateKind, error) {
	var kinds []client.MotivateKind
	if inv.Bool("weapon") {
		kinds = append(kinds, client.MotivateWeapon)
	}
	if inv.Bool("food") {
		kinds = append(kinds, client.MotivateFood)
	}
	if inv.Bool("gift") {
		kinds = append(kinds, client.MotivateGift)
	}
	switch len(kinds) {
	case 0:
		return client.MotivateWeapon, nil
	case 1:
		return kinds[0], nil
	}
	return 0, &UsageError{Msg: "choose one of -w, -f or -g"}
}

// countryGameID returns the site id of a country, resolving it by name
// through the countries API the first time.
func (p *Pipeline) countryGameID(ctx context.Context, site Site, c *models.Country) (int, error) {
	if c.GameID != 0 {
		return c.GameID, nil
	}
	countries, err := site.Countries(ctx)
	if err != nil {
		return 0, err
	}
	for _, ci := range countries {
		if strings.EqualFold(ci.Name, c.Name) || strings.EqualFold(ci.ShortName, c.Shortname) {
			if err := p.opts.Store.SetCountryGameID(c.ID, ci.ID); err != nil {
				p.log.Warn().Err(err).Str("country", c.Name).Msg("saving country game id")
			}
			c.GameID = ci.ID
			return ci.ID, nil
		}
	}
	return 0, contextErrorf("country %s is not known on %s", c.Name, c.Server.Name)
}

// runMotivate scans the new citizens list under the server's rate lock.
// Progress replies go out while the scan runs.
func (p *Pipeline) runMotivate(ctx context.Context, inv *Invocation) (string, error) {
	kind, err := motivateKind(inv)
	if err != nil {
		return "", err
	}
	site, err := p.opts.Sites.ForCountry(inv.Country.ID)
	if err != nil {
		return "", err
	}

	server := inv.Server.Name
	if err := p.opts.Locks.Acquire(server, inv.Nick()); err != nil {
		return "", err
	}
	defer func() {
		if err := p.opts.Locks.Release(server); err != nil {
			p.log.Error().Err(err).Str("server", server).Msg("releasing motivate lock")
		}
	}()

	gameID, err := p.countryGameID(ctx, site, inv.Country)
	if err != nil {
		return "", err
	}
	citizens, err := site.NewCitizens(ctx, gameID)
	if err != nil {
		return "", err
	}
	if len(citizens) == 0 {
		return fmt.Sprintf("No new citizens in %s.", inv.Country.Name), nil
	}
	if max := p.opts.MaxCitizens; max > 0 && len(citizens) > max {
		citizens = citizens[:max]
	}
	inv.Reply(ctx, fmt.Sprintf("Motivating %d new citizens of %s with %s...", len(citizens), inv.Country.Name, kind))

	sent, refused := 0, 0
	for _, c := range citizens {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if err := p.opts.Locks.Heartbeat(server); err != nil {
			return "", err
		}
		_, err := site.Motivate(ctx, c.ID, kind)
		if _, ok := page.IsSiteError(err); ok {
			refused++
			continue
		}
		if err != nil {
			return "", fmt.Errorf("motivating %s: %w", c.Name, err)
		}
		sent++
		p.log.Debug().Str("citizen", c.Name).Int("id", c.ID).Msg("motivated")
	}
	return fmt.Sprintf("Motivated %d of %d new citizens of %s (%d refused).",
		sent, len(citizens), inv.Country.Name, refused), nil
}

func (p *Pipeline) donateCommand() *Command {
	return &Command{
		Name:         "donate",
		Args:         "<citizen> <product> <quantity> [reason]",
		Summary:      "donate products from the organization's storage",
		Op:           "donate",
		MinArgs:      3,
		MaxArgs:      4,
		CountryLevel: models.AccessOfficer,
		Server:       true,
		Run:          p.runDonate,
	}
}

func (p *Pipeline) runDonate(ctx context.Context, inv *Invocation) (string, error) {
	name, product := inv.Args[0], inv.Args[1]
	qty, err := strconv.Atoi(inv.Args[2])
	if err != nil || qty <= 0 {
		return "", &UsageError{Msg: fmt.Sprintf("invalid quantity %q", inv.Args[2])}
	}
	reason := "Donated by " + inv.Nick()
	if len(inv.Args) == 4 {
		reason = inv.Args[3]
	}

	site, err := p.opts.Sites.ForCountry(inv.Country.ID)
	if err != nil {
		return "", err
	}
	citizen, err := site.Citizen(ctx, name)
	if err != nil {
		return "", err
	}
	msg, err := site.Donate(ctx, citizen.ID, product, qty, reason)
	if err != nil {
		return "", err
	}
	p.log.Info().
		Str("country", inv.Country.Name).
		Str("citizen", citizen.Login).
		Str("product", product).
		Int("quantity", qty).
		Str("by", inv.Account).
		Msg("donation")
	if msg == "" {
		msg = "Products donated"
	}
	return fmt.Sprintf("%s: %d x %s to %s.", msg, qty, product, citizen.Login), nil
}
