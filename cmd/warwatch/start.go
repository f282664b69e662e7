package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/zulandar/warwatch/internal/chat"
	"github.com/zulandar/warwatch/internal/chat/discord"
	"github.com/zulandar/warwatch/internal/chat/irc"
	"github.com/zulandar/warwatch/internal/chat/slack"
	"github.com/zulandar/warwatch/internal/client"
	"github.com/zulandar/warwatch/internal/command"
	"github.com/zulandar/warwatch/internal/config"
	"github.com/zulandar/warwatch/internal/dashboard"
	"github.com/zulandar/warwatch/internal/db"
	"github.com/zulandar/warwatch/internal/logger"
	"github.com/zulandar/warwatch/internal/models"
	"github.com/zulandar/warwatch/internal/ratelock"
	"github.com/zulandar/warwatch/internal/store"
	"github.com/zulandar/warwatch/internal/watch"
)

func newStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Run the bot",
		Long:  "Connects to the configured chat platform, resumes persisted battle watches and answers commands until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStart(cmd, configPath(cmd))
		},
	}
}

func runStart(cmd *cobra.Command, path string) error {
	cfg, gormDB, err := openDB(path)
	if err != nil {
		return err
	}
	logger.Setup(cfg.Log)
	lg := log.Logger

	if err := db.SeedServers(gormDB, cfg.Servers); err != nil {
		return err
	}
	st := store.New(gormDB)
	addressFor := func(s models.Server) string { return s.Address(cfg.Site.Domain) }

	pool := client.NewPool(client.PoolOpts{
		Store:      st,
		Site:       cfg.Site,
		AddressFor: addressFor,
		Logger:     &lg,
	})

	locks := ratelock.New(ratelock.Opts{
		DB:     gormDB,
		Window: time.Duration(cfg.Motivate.LockWindowSec) * time.Second,
	})
	// Holders from a previous run can no longer release their locks.
	if n, err := locks.ReleaseAll(); err != nil {
		return err
	} else if n > 0 {
		lg.Warn().Int64("locks", n).Msg("released locks left by a previous run")
	}

	adapter, err := createAdapter(cfg, &lg)
	if err != nil {
		return err
	}

	sched, err := watch.New(watch.Opts{
		Store:      st,
		Sites:      poolSiteFunc(pool),
		Sender:     adapter,
		AddressFor: addressFor,
		Backoff:    time.Duration(cfg.Watch.BackoffSec) * time.Second,
		Hold:       float64(cfg.Watch.HoldPercentage),
		MaxIdle:    cfg.Watch.MaxIdlePolls,
		Logger:     &lg,
	})
	if err != nil {
		return err
	}

	identifier, _ := adapter.(chat.Identifier)
	joiner, _ := adapter.(chat.Joiner)
	pipeline, err := command.New(command.Opts{
		Store:       st,
		Sites:       command.PoolSites(pool),
		Watches:     sched,
		Locks:       locks,
		Sender:      adapter,
		Identifier:  identifier,
		Joiner:      joiner,
		AddressFor:  addressFor,
		Prefix:      cfg.Chat.Prefix,
		MaxCitizens: cfg.Motivate.MaxCitizens,
		Logger:      &lg,
	})
	if err != nil {
		return err
	}

	daemon, err := chat.NewDaemon(chat.DaemonOpts{
		Adapter:        adapter,
		Dispatcher:     pipeline,
		Prefix:         cfg.Chat.Prefix,
		Scheduler:      sched,
		Jobs:           maintenanceJobs(cfg.Maintenance.Cron, locks, sched, lg),
		NoticeChannels: noticeChannels(cfg.Chat),
		Logger:         &lg,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Dashboard.Port > 0 {
		go func() {
			err := dashboard.Start(ctx, dashboard.StartOpts{
				Store:  st,
				Locks:  locks,
				Active: sched.Active,
				Port:   cfg.Dashboard.Port,
				Out:    cmd.OutOrStdout(),
			})
			if err != nil {
				lg.Error().Err(err).Msg("dashboard stopped")
			}
		}()
	}

	return daemon.Run(ctx)
}

// poolSiteFunc adapts the pool to the watch scheduler. A failed lookup
// must return a nil interface, not a nil *client.Client.
func poolSiteFunc(p *client.Pool) watch.SiteFunc {
	return func(countryID uint) (watch.Site, error) {
		c, err := p.ForCountry(countryID)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

// createAdapter builds a platform adapter from the config.
func createAdapter(cfg *config.Config, lg *zerolog.Logger) (chat.Adapter, error) {
	switch cfg.Chat.Platform {
	case "irc":
		return irc.New(irc.AdapterOpts{
			Server:   cfg.Chat.IRC.Server,
			Nick:     cfg.Chat.IRC.Nick,
			User:     cfg.Chat.IRC.User,
			Password: cfg.Chat.IRC.Password,
			TLS:      cfg.Chat.IRC.TLS,
			Channels: cfg.Chat.IRC.Channels,
			Logger:   lg,
		})
	case "discord":
		return discord.New(discord.AdapterOpts{
			BotToken:  cfg.Chat.Discord.BotToken,
			ChannelID: cfg.Chat.Discord.ChannelID,
			Logger:    lg,
		})
	case "slack":
		return slack.New(slack.AdapterOpts{
			AppToken:  cfg.Chat.Slack.AppToken,
			BotToken:  cfg.Chat.Slack.BotToken,
			ChannelID: cfg.Chat.Slack.ChannelID,
			Logger:    lg,
		})
	default:
		return nil, fmt.Errorf("chat: unsupported platform %q", cfg.Chat.Platform)
	}
}

// noticeChannels returns where the online and shutdown notices go: the
// configured IRC channels, or the default channel elsewhere.
func noticeChannels(c config.ChatConfig) []string {
	switch c.Platform {
	case "irc":
		var out []string
		for _, spec := range c.IRC.Channels {
			name, _, _ := strings.Cut(strings.TrimSpace(spec), " ")
			if name != "" {
				out = append(out, name)
			}
		}
		return out
	case "discord":
		if c.Discord.ChannelID != "" {
			return []string{c.Discord.ChannelID}
		}
	case "slack":
		if c.Slack.ChannelID != "" {
			return []string{c.Slack.ChannelID}
		}
	}
	return nil
}

// maintenanceJobs purges expired rate locks and logs the live watch count.
func maintenanceJobs(spec string, locks *ratelock.Registry, sched *watch.Scheduler, lg zerolog.Logger) []chat.Job {
	return []chat.Job{
		{
			Name: "purge-rate-locks",
			Spec: spec,
			Run: func(ctx context.Context) {
				n, err := locks.Purge()
				if err != nil {
					lg.Error().Err(err).Msg("purging rate locks")
					return
				}
				if n > 0 {
					lg.Info().Int64("locks", n).Msg("purged expired rate locks")
				}
			},
		},
		{
			Name: "watch-census",
			Spec: spec,
			Run: func(ctx context.Context) {
				lg.Info().Int("watches", sched.Active()).Msg("active watches")
			},
		},
	}
}
