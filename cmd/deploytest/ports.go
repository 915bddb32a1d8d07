package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/liliang-cn/deploytest/pkg/netutil"
	"github.com/liliang-cn/deploytest/pkg/types"
)

func newWaitPortCmd(a *app) *cobra.Command {
	var timeoutFlag string

	cmd := &cobra.Command{
		Use:   "wait-port HOST PORT",
		Short: "Wait until a TCP port accepts connections",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			port, err := strconv.Atoi(args[1])
			if err != nil || port <= 0 || port > 65535 {
				return types.NewValidationError("port", args[1], "must be a number between 1 and 65535")
			}

			if timeoutFlag != "" {
				if err := a.cfg.Set("ports.timeout", timeoutFlag); err != nil {
					return err
				}
			}
			settings := a.cfg.Settings().Ports

			poller := &netutil.Poller{
				Interval:    settings.PollInterval,
				DialTimeout: settings.DialTimeout,
			}
			if !poller.WaitForOpenPort(cmd.Context(), args[0], port, settings.Timeout) {
				return fmt.Errorf("port %s:%d did not open within %s", args[0], port, settings.Timeout)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s:%d is open\n", args[0], port)
			return nil
		},
	}

	cmd.Flags().StringVarP(&timeoutFlag, "timeout", "t", "", "How long to wait, e.g. 90s (default from ports.timeout)")

	return cmd
}
