package main

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"rolesync/pkg/config"
	"rolesync/pkg/logger"
)

var (
	watchSchedule string
	watchNow      bool
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run syncs on a schedule until interrupted",
	Long: `Run a sync on every tick of a cron schedule. A tick that fires while the
previous sync is still running is skipped. Standard five-field expressions
and descriptors such as @hourly or "@every 30m" are accepted.`,
	Example: `  # Every hour (the default)
  rolesync watch

  # Every day at 04:10, running once immediately
  rolesync watch --schedule "10 4 * * *" --now`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	addSyncFlags(watchCmd)
	watchCmd.Flags().StringVar(&watchSchedule, "schedule", "", "cron schedule (default from config, @every 1h)")
	watchCmd.Flags().BoolVar(&watchNow, "now", false, "run a sync immediately before the first tick")
}

// cronLogger adapts logger.Logger to cron.Logger
type cronLogger struct {
	l logger.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.DebugWithFields(msg, kvFields(keysAndValues))
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.WithError(err).ErrorWithFields(msg, kvFields(keysAndValues))
}

func kvFields(kv []interface{}) map[string]interface{} {
	fields := make(map[string]interface{}, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return fields
}

func runWatch(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return &exitError{code: 1, err: err}
	}
	log := logger.GetLogger().WithField("mode", "watch")

	c, err := newScheduler(cmd.Context(), cfg, log)
	if err != nil {
		return &exitError{code: 1, err: err}
	}

	if watchNow {
		runScheduledSync(cmd.Context(), cfg, log)
	}

	c.Start()
	log.WithField("schedule", cfg.Watch.Schedule).Info("Watching for upstream changes")

	<-cmd.Context().Done()
	log.Info("Stopping scheduler")
	<-c.Stop().Done()
	return nil
}

// newScheduler registers the sync job on cfg.Watch.Schedule
func newScheduler(ctx context.Context, cfg *config.Config, log logger.Logger) (*cron.Cron, error) {
	cl := cronLogger{l: log}
	c := cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	_, err := c.AddFunc(cfg.Watch.Schedule, func() {
		runScheduledSync(ctx, cfg, log)
	})
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", cfg.Watch.Schedule, err)
	}
	return c, nil
}

func runScheduledSync(ctx context.Context, cfg *config.Config, log logger.Logger) {
	if ctx.Err() != nil {
		return
	}
	report, err := syncOnce(ctx, cfg, log, nil)
	if err != nil {
		log.WithError(err).Error("Scheduled sync failed")
		return
	}
	log.InfoWithFields("Scheduled sync done", map[string]interface{}{
		"run_id":    report.RunID,
		"updated":   report.Updated(),
		"exit_code": report.ExitCode,
	})
}
