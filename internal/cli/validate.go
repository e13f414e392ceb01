package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/catmig/pkg/validate"
)

// check is the outcome of validating one instance or mapping.
type check struct {
	Kind   string   `json:"kind"`
	Name   string   `json:"name"`
	OK     bool     `json:"ok"`
	Errors []string `json:"errors,omitempty"`
}

func (a *app) newValidateCmd() *cobra.Command {
	var (
		ws         workspaceFlags
		instances  []string
		mappings   []string
		exhaustive bool
	)
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check instances against their schemas and mappings for functoriality",
		Long: "Validate the named instances and mappings of a workspace. With no names,\n" +
			"every instance and mapping is checked.",
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := ws.load()
			if err != nil {
				return err
			}
			if len(instances) == 0 && len(mappings) == 0 {
				instances, mappings = w.Instances(), w.Mappings()
			}
			var opts []validate.Option
			if exhaustive {
				opts = append(opts, validate.Exhaustive())
			}

			var (
				checks []check
				failed error
			)
			record := func(kind, name string, err error) {
				c := check{Kind: kind, Name: name, OK: err == nil}
				if err != nil {
					c.Errors = messages(err)
					if failed == nil {
						failed = firstError(err)
					}
				}
				checks = append(checks, c)
			}
			for _, name := range instances {
				i, err := w.Instance(name)
				if err != nil {
					return err
				}
				record("instance", name, validate.All(i.Schema(), i, opts...))
			}
			for _, name := range mappings {
				m, err := w.Mapping(name)
				if err != nil {
					return err
				}
				record("mapping", name, validate.Mapping(m, opts...))
			}

			out := cmd.OutOrStdout()
			if a.flags.jsonMode {
				if err := writeJSON(out, checks); err != nil {
					return err
				}
			} else {
				for _, c := range checks {
					if c.OK {
						fmt.Fprintf(out, "%s %s: ok\n", c.Kind, c.Name)
						continue
					}
					fmt.Fprintf(out, "%s %s: %d violation(s)\n", c.Kind, c.Name, len(c.Errors))
					for _, msg := range c.Errors {
						fmt.Fprintf(out, "  %s\n", msg)
					}
				}
			}
			if failed != nil {
				return fmt.Errorf("validation failed: %w", failed)
			}
			return nil
		},
	}
	ws.register(cmd, false, false)
	cmd.Flags().StringSliceVarP(&instances, "instance", "i", nil, "instance to check (repeatable)")
	cmd.Flags().StringSliceVarP(&mappings, "mapping", "m", nil, "mapping to check (repeatable)")
	cmd.Flags().BoolVar(&exhaustive, "exhaustive", false, "report every violation instead of the first")
	return cmd
}
