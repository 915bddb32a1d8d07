package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/liliang-cn/deploytest/pkg/resources"
	"github.com/liliang-cn/deploytest/pkg/workdir"
)

func newStageCmd(a *app) *cobra.Command {
	var (
		providerBootstrap bool
		blueprintsDir     string
	)

	cmd := &cobra.Command{
		Use:   "stage WORKDIR INPUTS [BLUEPRINT]",
		Short: "Copy inputs and the manager blueprint into a working directory",
		Long: `Copy INPUTS to WORKDIR/inputs.yaml and the directory holding BLUEPRINT to
WORKDIR/manager-blueprint. BLUEPRINT is a file path, or a name resolved
against the blueprints directory when no such file exists. Provider
bootstraps only stage the inputs.`,
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings := a.cfg.Settings()
			bootstrap := settings.ProviderBootstrap
			if cmd.Flags().Changed("provider-bootstrap") {
				bootstrap = providerBootstrap
			}

			var blueprint string
			if !bootstrap {
				if len(args) < 3 {
					return fmt.Errorf("a blueprint is required unless --provider-bootstrap is set")
				}
				blueprint = args[2]
				if _, err := os.Stat(blueprint); err != nil {
					dir := blueprintsDir
					if dir == "" {
						dir = settings.BlueprintsDir
					}
					resolved, err := resources.NewResolver(settings).BlueprintPath(blueprint, dir)
					if err != nil {
						return err
					}
					blueprint = resolved
				}
			}

			staged, err := workdir.GenerateUniqueConfigurations(args[0], args[1], blueprint, bootstrap)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "inputs: %s\n", staged.InputsPath)
			if staged.BlueprintPath != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "blueprint: %s\n", staged.BlueprintPath)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&providerBootstrap, "provider-bootstrap", false, "Stage inputs only")
	cmd.Flags().StringVar(&blueprintsDir, "blueprints-dir", "", "Directory blueprint names are resolved in")

	return cmd
}
