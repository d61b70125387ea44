package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newStatusCmd(a *app) *cobra.Command {
	var asJSON bool
	statusCmd := &cobra.Command{
		Use:       "status [backup|rotate]...",
		Short:     "Show the report of the last backup and rotate runs",
		ValidArgs: []string{"backup", "rotate"},
		Args:      cobra.OnlyValidArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			commands := args
			if len(commands) == 0 {
				commands = []string{"backup", "rotate"}
			}
			for _, name := range commands {
				r, err := a.om.LoadReport(name)
				if errors.Is(err, os.ErrNotExist) {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: never run\n", name)
					continue
				}
				if err != nil {
					return err
				}
				if asJSON {
					err = r.Write(cmd.OutOrStdout())
				} else {
					err = r.WriteSummary(cmd.OutOrStdout())
				}
				if err != nil {
					return err
				}
			}
			return nil
		},
	}
	statusCmd.Flags().BoolVar(&asJSON, "json", false, "print reports as JSON")
	return statusCmd
}
