package cmd

import (
	"github.com/spf13/cobra"

	"github.com/kebairia/bacli/internal/report"
)

func newAgesCmd(a *app) *cobra.Command {
	var asJSON bool
	agesCmd := &cobra.Command{
		Use:   "ages",
		Short: "Print the age in seconds of each target's newest daily artifact",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ages, err := a.om.ListAges()
			if err != nil {
				// Unreadable targets are already listed as unknown.
				a.log.Warn("some targets could not be read", "error", err.Error())
			}
			if asJSON {
				return report.WriteAgesJSON(cmd.OutOrStdout(), ages)
			}
			return report.WriteAges(cmd.OutOrStdout(), ages)
		},
	}
	agesCmd.Flags().BoolVar(&asJSON, "json", false, "print ages as JSON")
	return agesCmd
}
