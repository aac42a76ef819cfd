package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/familycabin/cabin/internal/config"
)

type expirySweeper interface {
	SweepExpired(ctx context.Context) ([]string, error)
}

type sessionPruner interface {
	PruneSessions(ctx context.Context) error
}

// NewSweepSwapsCommand creates the sweep-swaps command.
func NewSweepSwapsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep-swaps",
		Short: "Cancel every pending swap request past its deadline and prune expired sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := loadRuntime(rootOpts)
			if err != nil {
				return err
			}
			defer rt.Close()

			a, err := openApp(cmd.Context(), rt.cfg, rt.logger)
			if err != nil {
				return err
			}
			defer a.Close()

			ids, err := a.swaps.SweepExpired(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cancelled %d expired swap request(s)\n", len(ids))
			return a.auth.PruneSessions(cmd.Context())
		},
	}
}

// startSweeper schedules the swap expiry sweep and session pruning on the
// same cron schedule. Runs of one job never overlap.
func startSweeper(ctx context.Context, cfg config.Config, swaps expirySweeper, sessions sessionPruner, logger *slog.Logger) (*cron.Cron, error) {
	cronLog := cronLogger{logger: logger.With("component", "sweeper")}
	scheduler := cron.New(
		cron.WithLocation(cfg.Timezone),
		cron.WithLogger(cronLog),
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)

	jobs := map[string]func(){
		"swap sweep":    func() { sweepOnce(ctx, swaps, cronLog.logger) },
		"session prune": func() { pruneOnce(ctx, sessions, cronLog.logger) },
	}
	for name, job := range jobs {
		if _, err := scheduler.AddFunc(cfg.SweepSchedule, job); err != nil {
			return nil, fmt.Errorf("schedule %s %q: %w", name, cfg.SweepSchedule, err)
		}
	}
	scheduler.Start()
	return scheduler, nil
}

func sweepOnce(ctx context.Context, swaps expirySweeper, logger *slog.Logger) {
	if ctx.Err() != nil {
		return
	}
	ids, err := swaps.SweepExpired(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "swap sweep failed", "error", err)
		return
	}
	if len(ids) > 0 {
		logger.InfoContext(ctx, "expired swap requests cancelled", "count", len(ids))
	}
}

func pruneOnce(ctx context.Context, sessions sessionPruner, logger *slog.Logger) {
	if ctx.Err() != nil {
		return
	}
	if err := sessions.PruneSessions(ctx); err != nil {
		logger.ErrorContext(ctx, "session prune failed", "error", err)
	}
}

// cronLogger routes cron's logging through slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append([]any{"error", err}, keysAndValues...)...)
}
