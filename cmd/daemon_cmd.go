package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/kebairia/bacli/internal/logger"
	"github.com/kebairia/bacli/internal/report"
)

var errNoSchedule = errors.New("no schedule configured")

// cronLogger adapts Logger to the logger cron expects.
type cronLogger struct {
	log logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(msg, append(keysAndValues, "error", err.Error())...)
}

func newDaemonCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run backup and rotate on their configured schedules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := newScheduler(ctx, a)
			if err != nil {
				return err
			}
			c.Start()
			a.log.Info("daemon started",
				"backup_schedule", a.cfg.Schedule.Backup,
				"rotate_schedule", a.cfg.Schedule.Rotate,
			)

			<-ctx.Done()
			a.log.Info("shutting down, waiting for running jobs")
			<-c.Stop().Done()
			a.log.Info("daemon stopped")
			return nil
		},
	}
}

// newScheduler registers the backup and rotate jobs. A job never overlaps
// with a still running instance of itself.
func newScheduler(ctx context.Context, a *app) (*cron.Cron, error) {
	cl := cronLogger{log: a.log}
	c := cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	jobs := []struct {
		name string
		spec string
		run  func(context.Context) *report.RunReport
	}{
		{"backup", a.cfg.Schedule.Backup, a.scheduledBackup},
		{"rotate", a.cfg.Schedule.Rotate, a.scheduledRotate},
	}
	registered := 0
	for _, job := range jobs {
		if job.spec == "" {
			continue
		}
		run := job.run
		name := job.name
		if _, err := c.AddFunc(job.spec, func() {
			r := run(ctx)
			if _, err := a.om.SaveReport(r); err != nil {
				a.log.Warn("run report not saved", "command", name, "error", err.Error())
			}
		}); err != nil {
			return nil, fmt.Errorf("schedule.%s %q: %w", job.name, job.spec, err)
		}
		registered++
	}
	if registered == 0 {
		return nil, fmt.Errorf("%w: set schedule.backup or schedule.rotate", errNoSchedule)
	}
	return c, nil
}

func (a *app) scheduledBackup(ctx context.Context) *report.RunReport {
	return a.backupReport(ctx, "")
}

// backupReport runs a backup of host (all hosts when empty) and reports it.
func (a *app) backupReport(ctx context.Context, host string) *report.RunReport {
	r := report.NewRunReport("backup", time.Now())
	res, err := a.om.BackupAll(ctx, host)
	if err != nil {
		r.Fail(time.Now(), err)
		a.log.Error("scheduled backup failed", "error", err.Error())
		return r
	}
	r.Created = len(res.Created)
	r.Finish(time.Now(), res.Targets, res.FailedTargets, res.Errors)
	a.log.Info("scheduled backup finished", "status", r.Status)
	return r
}

func (a *app) scheduledRotate(ctx context.Context) *report.RunReport {
	r := report.NewRunReport("rotate", time.Now())
	res := a.om.Rotate(ctx)
	r.Promoted = res.Promoted
	r.Deleted = res.Deleted
	r.Finish(time.Now(), res.Targets, res.FailedTargets, res.Errors)
	a.log.Info("scheduled rotation finished", "status", r.Status)
	return r
}
