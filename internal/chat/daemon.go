package chat

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// WatchScheduler is the part of the battle watch scheduler the daemon
// drives: resume persisted watches on start, stop every timer on exit.
type WatchScheduler interface {
	Resume(ctx context.Context) (int, error)
	StopAll()
}

// Daemon is the main bot process. It connects to a chat platform via an
// Adapter, pumps inbound messages to the Router, resumes battle watches,
// and runs maintenance jobs on a cron schedule.
type Daemon struct {
	adapter    Adapter
	dispatcher Dispatcher
	prefix     string
	scheduler  WatchScheduler
	jobs       []Job
	notices    []string
	log        zerolog.Logger
}

// DaemonOpts holds parameters for creating a new Daemon.
type DaemonOpts struct {
	Adapter    Adapter
	Dispatcher Dispatcher
	Prefix     string
	Scheduler  WatchScheduler // optional
	Jobs       []Job
	// NoticeChannels receive the online and shutdown notices.
	NoticeChannels []string
	Logger         *zerolog.Logger
}

// NewDaemon creates a Daemon with the given options.
func NewDaemon(opts DaemonOpts) (*Daemon, error) {
	if opts.Adapter == nil {
		return nil, fmt.Errorf("chat: adapter is required")
	}
	if opts.Dispatcher == nil {
		return nil, fmt.Errorf("chat: dispatcher is required")
	}
	for _, j := range opts.Jobs {
		if err := ValidateSpec(j.Spec); err != nil {
			return nil, err
		}
	}
	logger := log.Logger
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Daemon{
		adapter:    opts.Adapter,
		dispatcher: opts.Dispatcher,
		prefix:     opts.Prefix,
		scheduler:  opts.Scheduler,
		jobs:       opts.Jobs,
		notices:    opts.NoticeChannels,
		log:        logger.With().Str("component", "daemon").Logger(),
	}, nil
}

// Run connects the adapter, builds the Router, resumes watches, starts the
// maintenance jobs and blocks until the context is cancelled or the
// adapter closes its inbound channel. On shutdown it stops the watch
// timers, waits for running commands and closes the adapter.
func (d *Daemon) Run(ctx context.Context) error {
	d.log.Info().Msg("connecting")
	if err := d.adapter.Connect(ctx); err != nil {
		return fmt.Errorf("chat: connect: %w", err)
	}

	var botUserID string
	if bui, ok := d.adapter.(BotUserIDer); ok {
		botUserID = bui.BotUserID()
	}

	router, err := NewRouter(RouterOpts{
		Sender:     d.adapter,
		Dispatcher: d.dispatcher,
		Prefix:     d.prefix,
		BotUserID:  botUserID,
		Logger:     &d.log,
	})
	if err != nil {
		d.adapter.Close()
		return fmt.Errorf("chat: build router: %w", err)
	}

	inbound, err := d.adapter.Listen(ctx)
	if err != nil {
		d.adapter.Close()
		return fmt.Errorf("chat: listen: %w", err)
	}

	if d.scheduler != nil {
		n, err := d.scheduler.Resume(ctx)
		if err != nil {
			d.log.Error().Err(err).Msg("resuming watches")
		} else {
			d.log.Info().Int("watches", n).Msg("resumed watches")
		}
	}

	cr, err := newScheduler(ctx, d.jobs, d.log)
	if err != nil {
		d.adapter.Close()
		return err
	}
	cr.Start()

	d.log.Info().Msg("online")
	d.notice(ctx, "online")

	for {
		select {
		case <-ctx.Done():
			d.log.Info().Msg("shutting down")
			d.shutdown(cr, router, true)
			return nil

		case msg, ok := <-inbound:
			if !ok {
				d.log.Warn().Msg("inbound channel closed")
				d.shutdown(cr, router, false)
				return nil
			}
			router.Handle(ctx, msg)
		}
	}
}

func (d *Daemon) shutdown(cr interface{ Stop() context.Context }, router *Router, announce bool) {
	<-cr.Stop().Done()
	if d.scheduler != nil {
		d.scheduler.StopAll()
	}
	router.Wait()
	if announce {
		d.notice(context.Background(), "shutting down")
	}
	if err := d.adapter.Close(); err != nil {
		d.log.Error().Err(err).Msg("close adapter")
	}
	d.log.Info().Msg("stopped")
}

// notice posts a status line to the notice channels (best-effort).
func (d *Daemon) notice(ctx context.Context, text string) {
	for _, ch := range d.notices {
		if err := d.adapter.Send(ctx, OutboundMessage{ChannelID: ch, Text: "warwatch " + text}); err != nil {
			d.log.Error().Err(err).Str("channel", ch).Msg("send notice")
		}
	}
}
