package main

import (
	"github.com/spf13/cobra"

	"github.com/liliang-cn/deploytest/pkg/shell"
)

func newRunCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "run COMMAND",
		Short: "Run a command line, streaming its output",
		Long: `Run COMMAND, split with shell quoting rules but without a shell, and copy
its stdout and stderr line by line as they are produced.`,
		Example: `  deploytest run 'cfy blueprints upload -b "hello world" -p blueprint.yaml'`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := shell.Bake(args[0],
				shell.WithStdout(cmd.OutOrStdout()),
				shell.WithStderr(cmd.ErrOrStderr()),
				shell.WithDir(dir),
			)
			if err != nil {
				return err
			}
			_, err = c.Run(cmd.Context(), args[1:]...)
			return err
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "Working directory")

	return cmd
}
