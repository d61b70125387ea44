package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kebairia/bacli/internal/config"
	"github.com/kebairia/bacli/internal/logger"
	"github.com/kebairia/bacli/internal/operations"
)

// DefaultConfigFile is used when --config is not given.
const DefaultConfigFile = "./configs/config.yaml"

// ErrAllTargetsFailed is returned by a command when every target it worked
// on failed. It is the only outcome that yields a non-zero exit code besides
// configuration errors.
var ErrAllTargetsFailed = errors.New("all targets failed")

// app carries what every subcommand needs once flags are parsed.
type app struct {
	configFile string
	verbose    bool

	cfg *config.Config
	log logger.Logger
	om  *operations.OperationManager

	// managerOpts are passed to every OperationManager; tests use them to
	// replace the remote runner and credential source.
	managerOpts []operations.Option
}

// setup loads the configuration and builds the logger and operation manager.
func (a *app) setup() error {
	var cfg config.Config
	if err := cfg.Load(a.configFile); err != nil {
		return err
	}
	level := cfg.Log.Level
	if a.verbose {
		level = "debug"
	}
	log, err := logger.New(level, cfg.Log.Format)
	if err != nil {
		return err
	}
	om, err := operations.NewOperationManager(&cfg, log, a.managerOpts...)
	if err != nil {
		return err
	}
	a.cfg, a.log, a.om = &cfg, log, om
	log.Debug("configuration loaded", "path", a.configFile, "hosts", len(cfg.Hosts))
	return nil
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "bacli",
		Short: "CLI tool for tiered backup retention",
		Long: `bacli backs up databases and file groups from remote hosts and
rotates the resulting artifacts through daily, weekly, monthly and
yearly retention tiers based on your configuration file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}
	rootCmd.PersistentFlags().
		StringVarP(&a.configFile, "config", "c", DefaultConfigFile, "path to YAML or JSON config file")
	rootCmd.PersistentFlags().
		BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(
		newBackupCmd(a),
		newRotateCmd(a),
		newAgesCmd(a),
		newStatusCmd(a),
		newDaemonCmd(a),
	)
	return rootCmd
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	return run(os.Args[1:], os.Stdout, os.Stderr)
}

func run(args []string, stdout, stderr io.Writer, opts ...operations.Option) int {
	a := &app{managerOpts: opts}
	rootCmd := newRootCmd(a)
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if a.log != nil {
			a.log.Error("command failed", "error", err.Error())
			_ = a.log.Sync()
		} else {
			fmt.Fprintf(stderr, "ERROR: %v\n", err)
		}
		return 1
	}
	return 0
}
