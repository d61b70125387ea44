package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/kebairia/bacli/internal/report"
)

func newRotateCmd(a *app) *cobra.Command {
	var asJSON bool
	rotateCmd := &cobra.Command{
		Use:   "rotate",
		Short: "Promote or delete artifacts according to the retention policy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			start := time.Now()
			res := a.om.Rotate(cmd.Context())

			r := report.NewRunReport("rotate", start)
			r.Promoted = res.Promoted
			r.Deleted = res.Deleted
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
	rotateCmd.Flags().BoolVar(&asJSON, "json", false, "print the run report as JSON")
	return rotateCmd
}
