package main

import (
	"github.com/spf13/cobra"

	"github.com/liliang-cn/deploytest/pkg/template"
	"github.com/liliang-cn/deploytest/pkg/types"
	"github.com/liliang-cn/deploytest/pkg/yamlpatch"
)

func newRenderCmd(a *app) *cobra.Command {
	var (
		valuesFile string
		strict     bool
		overrides  []string
	)

	cmd := &cobra.Command{
		Use:   "render [KEY=TEMPLATE...]",
		Short: "Render values against the suite variables",
		Long: `Render every string value against the variables of the suite
configuration and print the result as YAML. Values come from KEY=TEMPLATE
arguments and, with --values, from a YAML file; arguments win.`,
		Example: `  deploytest -s suite.yaml render 'keypair={{ resources_prefix }}manager-key'
  deploytest -s suite.yaml render --values inputs.tmpl.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			unprocessed := map[string]interface{}{}
			if valuesFile != "" {
				p, err := yamlpatch.Open(valuesFile)
				if err != nil {
					return err
				}
				unprocessed = p.Document()
			}

			assignments, err := parseRawAssignments(args)
			if err != nil {
				return err
			}
			for key, value := range assignments {
				unprocessed[key] = value
			}

			suite := a.cfg.Suite()
			if len(overrides) > 0 {
				vars, err := parseAssignments(overrides)
				if err != nil {
					return err
				}
				extra := map[string]interface{}{}
				for _, v := range vars {
					extra[v.path] = v.value
				}
				suite[template.SuiteVariablesKey] = types.DeepMergeInterfaceMaps(template.SuiteVariables(suite), extra)
			}

			engine := template.NewEngine()
			engine.SetStrict(strict)
			result, err := engine.ProcessVariables(suite, unprocessed)
			if err != nil {
				return err
			}

			data, err := yamlpatch.MarshalYAML(result, false)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.Flags().StringVar(&valuesFile, "values", "", "YAML file with values to render")
	cmd.Flags().BoolVar(&strict, "strict", false, "Fail on undefined variables")
	cmd.Flags().StringArrayVar(&overrides, "var", nil, "Override a suite variable (NAME=VALUE, VALUE parsed as YAML)")

	return cmd
}

// parseRawAssignments splits KEY=TEMPLATE arguments without decoding the value.
func parseRawAssignments(args []string) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(args))
	for _, arg := range args {
		key, value, ok := cutAssignment(arg)
		if !ok {
			return nil, types.NewValidationError("assignment", arg, "expected KEY=TEMPLATE")
		}
		out[key] = value
	}
	return out, nil
}
