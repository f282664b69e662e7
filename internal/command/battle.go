package command

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/pflag"

	"github.com/zulandar/warwatch/internal/models"
	"github.com/zulandar/warwatch/internal/page"
	"github.com/zulandar/warwatch/internal/watch"
)

func sideFlags(fs *pflag.FlagSet) {
	fs.BoolP("attacker", "a", false, "attacker side")
	fs.BoolP("defender", "d", false, "defender side")
}

// parseBattleID accepts a bare id or a battle.html link.
func parseBattleID(arg string) (int, error) {
	if strings.Contains(arg, "id=") {
		if u, err := url.Parse(arg); err == nil {
			arg = u.Query().Get("id")
		}
	}
	id, err := strconv.Atoi(arg)
	if err != nil || id <= 0 {
		return 0, &UsageError{Msg: fmt.Sprintf("invalid battle id %q", arg)}
	}
	return id, nil
}

// flagSide returns the side chosen by -a/-d, or "" for none.
func flagSide(inv *Invocation) (string, error) {
	att, def := inv.Bool("attacker"), inv.Bool("defender")
	switch {
	case att && def:
		return "", &UsageError{Msg: "choose either -a or -d"}
	case att:
		return models.SideAttacker, nil
	case def:
		return models.SideDefender, nil
	}
	return "", nil
}

// inferSide picks the attacker side when the country fights on it directly
// or as an ally, else the defender side.
func inferSide(info *page.BattleInfo, country string) string {
	if strings.EqualFold(info.Attacker.Name, country) {
		return models.SideAttacker
	}
	for _, a := range info.Attacker.Allies {
		if strings.EqualFold(a, country) {
			return models.SideAttacker
		}
	}
	return models.SideDefender
}

func regionBonus(ctx context.Context, site Site, regionID int) bool {
	if regionID == 0 {
		return false
	}
	statuses, err := site.RegionStatuses(ctx)
	if err != nil {
		return false
	}
	for _, st := range statuses {
		if st.RegionID == regionID {
			return st.Bonus()
		}
	}
	return false
}

func (p *Pipeline) battleCommand() *Command {
	return &Command{
		Name:         "battle",
		Args:         "<id>",
		Summary:      "show the live status of a battle",
		Op:           "fetch the battle",
		MinArgs:      1,
		MaxArgs:      1,
		CountryLevel: models.AccessMember,
		ChannelType:  models.ChannelMilitary,
		Server:       true,
		Flags:        sideFlags,
		Run:          p.runBattle,
	}
}

func (p *Pipeline) runBattle(ctx context.Context, inv *Invocation) (string, error) {
	id, err := parseBattleID(inv.Args[0])
	if err != nil {
		return "", err
	}
	side, err := flagSide(inv)
	if err != nil {
		return "", err
	}
	site, err := p.opts.Sites.ForCountry(inv.Country.ID)
	if err != nil {
		return "", err
	}
	info, err := site.BattleInfo(ctx, id)
	if err != nil {
		return "", err
	}
	if side == "" {
		side = inferSide(info, inv.Country.Name)
	}
	if info.Ended {
		return watch.BattleOverLine(watch.Status{Info: info}), nil
	}
	if info.RoundID == 0 {
		return fmt.Sprintf("Battle %d %s has no live round.", id, info.Title()), nil
	}
	round, err := site.BattleRoundInfo(ctx, info.RoundID)
	if err != nil {
		return "", err
	}
	return watch.StatusLine(watch.Status{
		URL:   watch.BattleURL(p.opts.AddressFor(*inv.Server), id),
		Info:  info,
		Round: round,
		Side:  side,
		Bonus: regionBonus(ctx, site, info.RegionID),
	}), nil
}

func (p *Pipeline) watchCommand() *Command {
	return &Command{
		Name:         "watch",
		Args:         "<id>",
		Summary:      "post battle status at round checkpoints",
		Op:           "watch the battle",
		MinArgs:      1,
		MaxArgs:      1,
		CountryLevel: models.AccessMember,
		ChannelType:  models.ChannelMilitary,
		Server:       true,
		Flags: func(fs *pflag.FlagSet) {
			sideFlags(fs)
			fs.BoolP("light", "l", false, "only the 10m, 5m and 2m checkpoints")
		},
		Run: p.runWatch,
	}
}

func (p *Pipeline) runWatch(ctx context.Context, inv *Invocation) (string, error) {
	id, err := parseBattleID(inv.Args[0])
	if err != nil {
		return "", err
	}
	side, err := flagSide(inv)
	if err != nil {
		return "", err
	}
	if side == "" {
		site, err := p.opts.Sites.ForCountry(inv.Country.ID)
		if err != nil {
			return "", err
		}
		info, err := site.BattleInfo(ctx, id)
		if err != nil {
			return "", err
		}
		side = inferSide(info, inv.Country.Name)
	}
	mode := models.ModeFull
	if inv.Bool("light") {
		mode = models.ModeLight
	}

	replacing := p.opts.Watches.IsActive(inv.Server.ID, id)
	w := &models.Watch{
		ServerID:  inv.Server.ID,
		BattleID:  id,
		CountryID: inv.Country.ID,
		ChannelID: inv.Channel.ID,
		Side:      side,
		Mode:      mode,
		CreatedBy: inv.Account,
	}
	verbed := "Watching"
	if replacing {
		verbed = "Now watching"
	}
	inv.Reply(ctx, fmt.Sprintf("%s battle %d on %s for %s (%s side, %s mode).",
		verbed, id, inv.Server.Name, inv.Country.Name, side, mode))
	if err := p.opts.Watches.Add(ctx, w); err != nil {
		return "", err
	}
	return "", nil
}

func (p *Pipeline) unwatchCommand() *Command {
	return &Command{
		Name:         "unwatch",
		Args:         "<id>",
		Summary:      "stop watching a battle",
		Op:           "remove the watch",
		MinArgs:      1,
		MaxArgs:      1,
		CountryLevel: models.AccessMember,
		ChannelType:  models.ChannelMilitary,
		Server:       true,
		Run: func(ctx context.Context, inv *Invocation) (string, error) {
			id, err := parseBattleID(inv.Args[0])
			if err != nil {
				return "", err
			}
			existed, err := p.opts.Watches.Remove(inv.Server.ID, id)
			if err != nil {
				return "", err
			}
			if !existed {
				return fmt.Sprintf("Battle %d is not being watched.", id), nil
			}
			return fmt.Sprintf("Stopped watching battle %d.", id), nil
		},
	}
}

func (p *Pipeline) watchesCommand() *Command {
	return &Command{
		Name:      "watches",
		Summary:   "list the watches posting to this channel",
		Op:        "list watches",
		Anonymous: true,
		Run: func(ctx context.Context, inv *Invocation) (string, error) {
			if inv.Channel == nil {
				return "", contextErrorf("channel not registered")
			}
			ws, err := p.opts.Store.WatchesForChannel(inv.Channel.ID)
			if err != nil {
				return "", err
			}
			if len(ws) == 0 {
				return "No battles are being watched here.", nil
			}
			var b strings.Builder
			for i, w := range ws {
				if i > 0 {
					b.WriteByte('\n')
				}
				label := w.Label
				if label == "" {
					label = "(pending)"
				}
				state := ""
				if !p.opts.Watches.IsActive(w.ServerID, w.BattleID) {
					state = " [stopped]"
				}
				fmt.Fprintf(&b, "%s #%d %s, %s side, %s mode%s", w.Server.Name, w.BattleID, label, w.Side, w.Mode, state)
			}
			return b.String(), nil
		},
	}
}
