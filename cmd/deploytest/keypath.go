package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/ssh"

	"github.com/liliang-cn/deploytest/pkg/resources"
)

func newKeyPathCmd(a *app) *cobra.Command {
	var (
		missingOK bool
		load      bool
	)

	cmd := &cobra.Command{
		Use:   "keypath KEYPATH",
		Short: "Resolve the SSH key file a test environment uses",
		Long: `Resolve KEYPATH to an absolute path. Provider bootstraps prefix the key
file name with resources_prefix. With --load the key is parsed and its
fingerprint printed as well.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env := resources.EnvFromSettings(a.cfg.Settings())
			path, err := resources.ActualKeyPath(env, args[0], !missingOK)
			if err != nil {
				return err
			}
			if path == "" {
				return nil
			}

			if !load {
				fmt.Fprintln(cmd.OutOrStdout(), path)
				return nil
			}

			signer, err := resources.LoadSigner(path)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", path, ssh.FingerprintSHA256(signer.PublicKey()))
			return nil
		},
	}

	cmd.Flags().BoolVar(&missingOK, "missing-ok", false, "Print nothing instead of failing when the key is missing")
	cmd.Flags().BoolVar(&load, "load", false, "Parse the key and print its fingerprint")

	return cmd
}
