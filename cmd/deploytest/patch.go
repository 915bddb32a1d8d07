package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/liliang-cn/deploytest/pkg/types"
	"github.com/liliang-cn/deploytest/pkg/yamlpatch"
)

type patchOptions struct {
	jsonPatch       string
	merges          []string
	sets            []string
	appends         []string
	deletes         []string
	deleteIfPresent []string
	json            bool
	block           bool
	dryRun          bool
}

func newPatchCmd(a *app) *cobra.Command {
	opts := &patchOptions{}

	cmd := &cobra.Command{
		Use:   "patch FILE",
		Short: "Edit a YAML or JSON file in place",
		Long: `Edit a YAML or JSON file in place by dotted property paths.

Operations run in a fixed order: --json-patch, --merge, --set, --append,
--delete, --delete-if-present. Values are parsed as YAML, so "3" is a number,
"[a, b]" a list and "{x: 1}" a mapping. The file is only written when every
operation succeeds. --dry-run prints the resulting line diff instead.`,
		Example: `  deploytest patch inputs.yaml --set agents.count=3 --set 'image=ubuntu 22.04'
  deploytest patch blueprint.yaml --append 'node_templates.vm.interfaces[0]=[eth1]'
  deploytest patch config.json --json --delete-if-present debug`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPatch(a, cmd, args[0], opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.jsonPatch, "json-patch", "", "Apply an RFC 6902 JSON patch file")
	f.StringArrayVar(&opts.merges, "merge", nil, "Merge a mapping into PATH (PATH=MAPPING)")
	f.StringArrayVar(&opts.sets, "set", nil, "Set PATH to VALUE (PATH=VALUE)")
	f.StringArrayVar(&opts.appends, "append", nil, "Add VALUE to the value at PATH (PATH=VALUE)")
	f.StringArrayVar(&opts.deletes, "delete", nil, "Delete PATH, failing if it is missing")
	f.StringArrayVar(&opts.deleteIfPresent, "delete-if-present", nil, "Delete PATH if it exists")
	f.BoolVar(&opts.json, "json", false, "Write compact JSON")
	f.BoolVar(&opts.block, "block", false, "Write block-style YAML")
	f.BoolVar(&opts.dryRun, "dry-run", false, "Print a diff instead of writing the file")

	return cmd
}

func runPatch(a *app, cmd *cobra.Command, file string, opts *patchOptions) error {
	var patch []byte
	if opts.jsonPatch != "" {
		data, err := os.ReadFile(opts.jsonPatch)
		if err != nil {
			return fmt.Errorf("failed to read JSON patch: %w", err)
		}
		patch = data
	}

	merges, err := parseAssignments(opts.merges)
	if err != nil {
		return err
	}
	sets, err := parseAssignments(opts.sets)
	if err != nil {
		return err
	}
	appends, err := parseAssignments(opts.appends)
	if err != nil {
		return err
	}

	apply := func(p *yamlpatch.Patcher) error {
		if patch != nil {
			if err := p.ApplyJSONPatch(patch); err != nil {
				return err
			}
		}
		for _, m := range merges {
			props, ok := m.value.(map[string]interface{})
			if !ok {
				return types.NewValidationError("merge", m.raw, "value must be a mapping")
			}
			if err := p.MergeObject(m.path, props); err != nil {
				return err
			}
		}
		for _, s := range sets {
			if err := p.SetValue(s.path, s.value); err != nil {
				return err
			}
		}
		for _, ap := range appends {
			if err := p.AppendValue(ap.path, ap.value); err != nil {
				return err
			}
		}
		for _, path := range opts.deletes {
			if err := p.DeleteProperty(path, true); err != nil {
				return err
			}
		}
		for _, path := range opts.deleteIfPresent {
			if err := p.DeleteProperty(path, false); err != nil {
				return err
			}
		}
		return nil
	}

	if opts.dryRun {
		p, err := yamlpatch.Open(file, patchOutputOptions(a, cmd, opts)...)
		if err != nil {
			return err
		}
		if err := apply(p); err != nil {
			return err
		}
		diff, err := p.Diff()
		if err != nil {
			return err
		}
		printDiff(cmd.OutOrStdout(), diff)
		return nil
	}

	if err := yamlpatch.Edit(file, apply, patchOutputOptions(a, cmd, opts)...); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "patched %s\n", file)
	return nil
}

func printDiff(w io.Writer, diff []yamlpatch.DiffLine) {
	added := color.New(color.FgGreen)
	removed := color.New(color.FgRed)

	for _, line := range diff {
		switch line.Op {
		case yamlpatch.LineInsert:
			added.Fprintf(w, "+ %s\n", line.Text)
		case yamlpatch.LineDelete:
			removed.Fprintf(w, "- %s\n", line.Text)
		default:
			fmt.Fprintf(w, "  %s\n", line.Text)
		}
	}
}

// patchOutputOptions applies the patch.* settings unless a flag overrides them.
func patchOutputOptions(a *app, cmd *cobra.Command, opts *patchOptions) []yamlpatch.Option {
	settings := a.cfg.Settings().Patch

	asJSON := settings.JSON
	if cmd.Flags().Changed("json") {
		asJSON = opts.json
	}
	flow := settings.FlowStyle
	if cmd.Flags().Changed("block") {
		flow = !opts.block
	}

	out := []yamlpatch.Option{yamlpatch.WithFlowStyle(flow)}
	if asJSON {
		out = append(out, yamlpatch.WithJSON())
	}
	return out
}

// cutAssignment splits NAME=VALUE at the first "=".
func cutAssignment(s string) (string, string, bool) {
	name, value, ok := strings.Cut(s, "=")
	return name, value, ok && name != ""
}

type assignment struct {
	raw   string
	path  string
	value interface{}
}

// parseAssignments splits PATH=VALUE arguments and decodes each VALUE as YAML.
func parseAssignments(raw []string) ([]assignment, error) {
	out := make([]assignment, 0, len(raw))
	for _, r := range raw {
		path, value, ok := cutAssignment(r)
		if !ok {
			return nil, types.NewValidationError("assignment", r, "expected PATH=VALUE")
		}

		var decoded interface{}
		if err := yaml.Unmarshal([]byte(value), &decoded); err != nil {
			return nil, fmt.Errorf("invalid value for %s: %w", path, types.NewParseError(r, err))
		}
		out = append(out, assignment{raw: r, path: path, value: types.NormalizeValue(decoded)})
	}
	return out, nil
}

func newGetCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "get FILE PATH",
		Short: "Print the value at a property path",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			format := types.OutputFormat(output)
			if !format.IsValid() {
				return types.NewValidationError("output", output, "must be yaml or json")
			}

			p, err := yamlpatch.Open(args[0])
			if err != nil {
				return err
			}
			value, err := p.GetValue(args[1])
			if err != nil {
				return err
			}

			var data []byte
			if format == types.FormatJSON {
				data, err = yamlpatch.MarshalJSON(value)
				data = append(data, '\n')
			} else {
				data, err = yamlpatch.MarshalYAML(value, false)
			}
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", types.FormatYAML.String(), "Output format: yaml or json")

	return cmd
}
