package chat

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom,
// month, dow) plus descriptors such as "@every 1m".
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Job is a periodic maintenance task run by the Daemon.
type Job struct {
	Name string
	Spec string
	Run  func(ctx context.Context)
}

// ValidateSpec reports whether expr is a schedule the daemon accepts.
func ValidateSpec(expr string) error {
	if _, err := cronParser.Parse(expr); err != nil {
		return fmt.Errorf("chat: cron %q: %w", expr, err)
	}
	return nil
}

// newScheduler registers jobs on a cron runner bound to ctx. The runner
// is returned unstarted.
func newScheduler(ctx context.Context, jobs []Job, logger zerolog.Logger) (*cron.Cron, error) {
	c := cron.New(cron.WithParser(cronParser), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	for _, j := range jobs {
		j := j
		if _, err := c.AddFunc(j.Spec, func() {
			logger.Debug().Str("job", j.Name).Msg("running maintenance job")
			j.Run(ctx)
		}); err != nil {
			return nil, fmt.Errorf("chat: job %s: cron %q: %w", j.Name, j.Spec, err)
		}
	}
	return c, nil
}
