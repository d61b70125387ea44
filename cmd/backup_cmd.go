package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/kebairia/bacli/internal/report"
)

func newBackupCmd(a *app) *cobra.Command {
	var (
		host   string
		asJSON bool
	)
	backupCmd := &cobra.Command{
		Use:   "backup",
		Short: "Back up every declared target into the daily tier",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			start := time.Now()
			res, err := a.om.BackupAll(cmd.Context(), host)
			if err != nil {
				return err
			}

			r := report.NewRunReport("backup", start)
			r.Created = len(res.Created)
			r.Finish(time.Now(), res.Targets, res.FailedTargets, res.Errors)
			if err := emitReport(a, cmd, r, asJSON); err != nil {
				return err
			}
			if res.AllFailed() {
				return ErrAllTargetsFailed
			}
			return nil
		},
	}
	backupCmd.Flags().StringVar(&host, "host", "", "only back up this host")
	backupCmd.Flags().BoolVar(&asJSON, "json", false, "print the run report as JSON")
	return backupCmd
}

// emitReport saves r as the command's last report and prints it.
func emitReport(a *app, cmd *cobra.Command, r *report.RunReport, asJSON bool) error {
	if path, err := a.om.SaveReport(r); err != nil {
		a.log.Warn("run report not saved", "error", err.Error())
	} else {
		a.log.Debug("run report saved", "path", path)
	}
	if asJSON {
		return r.Write(cmd.OutOrStdout())
	}
	return r.WriteSummary(cmd.OutOrStdout())
}
