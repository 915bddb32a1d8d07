package main

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/liliang-cn/deploytest/pkg/config"
	"github.com/liliang-cn/deploytest/pkg/logging"
)

// app carries state shared by all subcommands
type app struct {
	verbosity       int
	suiteFile       string
	noDefaultConfig bool
	logFile         string
	logToFile       bool

	cfg *config.Config
}

// NewRootCmd builds the deploytest command tree
func NewRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "deploytest",
		Short: "Helpers for deployment test suites",
		Long: `deploytest bundles the helpers deployment test suites use around a run:
patching YAML inputs and blueprints in place, staging per-test working
directories, rendering suite variables, resolving SSH keys and waiting
for services to open their ports.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(config.LoadOptions{
				SuiteFile:        a.suiteFile,
				SkipDefaultPaths: a.noDefaultConfig,
			})
			if err != nil {
				return err
			}
			a.cfg = cfg

			logFile := a.logFile
			if logFile == "" {
				logFile = cfg.Settings().LogFile
			}
			if logFile == "" && a.logToFile {
				logFile = logging.DefaultLogFile()
			}
			logging.SetupLogger(logging.Options{
				Verbosity: a.verbosity,
				Output:    cmd.ErrOrStderr(),
				LogFile:   logFile,
			})
			log.Debug().Str("command", cmd.Name()).Msg("Command started")
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.CountVarP(&a.verbosity, "verbose", "v", "Increase verbosity (-v INFO, -vv DEBUG, -vvv TRACE)")
	flags.StringVarP(&a.suiteFile, "suite", "s", "", "Suite configuration file")
	flags.BoolVar(&a.noDefaultConfig, "no-default-config", false, "Do not search the default config locations")
	flags.StringVar(&a.logFile, "log-file", "", "Also write logs to this file")
	flags.BoolVar(&a.logToFile, "log", false, "Also write logs to the default log file")

	rootCmd.AddCommand(
		newPatchCmd(a),
		newGetCmd(),
		newStageCmd(a),
		newWaitPortCmd(a),
		newRenderCmd(a),
		newKeyPathCmd(a),
		newRunCmd(),
		newVersionCmd(),
	)

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "deploytest version %s\n", version)
			fmt.Fprintf(cmd.OutOrStdout(), "  commit: %s\n", commit)
			fmt.Fprintf(cmd.OutOrStdout(), "  built:  %s\n", date)
		},
	}
}
