package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/catmig/internal/export"
	"github.com/mesh-intelligence/catmig/internal/workspace"
)

// shown is the JSON form of one workspace definition.
type shown struct {
	Kind    string          `json:"kind"`
	Name    string          `json:"name"`
	Text    string          `json:"text"`
	Header  *export.Header  `json:"header,omitempty"`
	Records []export.Record `json:"records,omitempty"`
}

func (a *app) newShowCmd() *cobra.Command {
	var (
		ws                          workspaceFlags
		schemas, instances, mapping []string
	)
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the schemas, instances and mappings of a workspace",
		Long:  "Print the named definitions of a workspace, or all of them when none are named.",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := ws.load()
			if err != nil {
				return err
			}
			if len(schemas) == 0 && len(instances) == 0 && len(mapping) == 0 {
				schemas, instances, mapping = w.Schemas(), w.Instances(), w.Mappings()
			}
			items, err := collectShown(w, schemas, instances, mapping)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if a.flags.jsonMode {
				return writeJSON(out, items)
			}
			for _, it := range items {
				fmt.Fprintf(out, "%s\n\n", it.Text)
			}
			return nil
		},
	}
	ws.register(cmd, false, false)
	cmd.Flags().StringSliceVar(&schemas, "schema", nil, "schema to show (repeatable)")
	cmd.Flags().StringSliceVarP(&instances, "instance", "i", nil, "instance to show (repeatable)")
	cmd.Flags().StringSliceVarP(&mapping, "mapping", "m", nil, "mapping to show (repeatable)")
	return cmd
}

func collectShown(w *workspace.Workspace, schemas, instances, mappings []string) ([]shown, error) {
	var items []shown
	for _, name := range schemas {
		s, err := w.Schema(name)
		if err != nil {
			return nil, err
		}
		items = append(items, shown{Kind: "schema", Name: name, Text: s.String()})
	}
	for _, name := range instances {
		i, err := w.Instance(name)
		if err != nil {
			return nil, err
		}
		h, recs, err := export.Records(i)
		if err != nil {
			return nil, err
		}
		items = append(items, shown{Kind: "instance", Name: name, Text: i.String(), Header: &h, Records: recs})
	}
	for _, name := range mappings {
		m, err := w.Mapping(name)
		if err != nil {
			return nil, err
		}
		items = append(items, shown{Kind: "mapping", Name: name, Text: m.String()})
	}
	return items, nil
}
