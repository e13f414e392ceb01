package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/catmig/pkg/migrate"
	"github.com/mesh-intelligence/catmig/pkg/types"
)

// migrateFlags are the flags delta and sigma share.
type migrateFlags struct {
	workspaceFlags
	out    string
	engine string
	print  bool
}

func (m *migrateFlags) register(cmd *cobra.Command) {
	m.workspaceFlags.register(cmd, true, true)
	cmd.Flags().StringVarP(&m.out, "out", "o", "", "export file (default: <data-dir>/<result>.jsonl)")
	cmd.Flags().StringVar(&m.engine, "engine", engineMemory, "where to compute the result: memory or sqlite")
	cmd.Flags().BoolVar(&m.print, "print", false, "print the result instance")
}

func (a *app) newDeltaCmd() *cobra.Command {
	var m migrateFlags
	cmd := &cobra.Command{
		Use:   "delta",
		Short: "Pull an instance of the mapping's target back to its source",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, i, err := m.mappingAndInstance()
			if err != nil {
				return err
			}
			a.logger.Debug("delta", zap.String("mapping", f.Name()), zap.String("instance", i.Name()),
				zap.String("engine", m.engine))

			var out *types.Instance
			switch m.engine {
			case engineMemory:
				out, err = migrate.Delta(f, i, a.migrateOptions()...)
			case engineSQLite:
				backend, aerr := a.attachSQLite()
				if aerr != nil {
					return aerr
				}
				defer backend.Detach()
				out, err = backend.RunDelta(f, i)
			default:
				return usagef("unknown engine %q", m.engine)
			}
			if err != nil {
				return err
			}
			return a.save(cmd, out, m.out, m.engine, m.print)
		},
	}
	m.register(cmd)
	return cmd
}

func (a *app) newSigmaCmd() *cobra.Command {
	var (
		m          migrateFlags
		provenance bool
	)
	cmd := &cobra.Command{
		Use:   "sigma",
		Short: "Push an instance of the mapping's source forward to its target",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, i, err := m.mappingAndInstance()
			if err != nil {
				return err
			}
			if m.engine != engineMemory && m.engine != engineSQLite {
				return usagef("unknown engine %q", m.engine)
			}
			res, err := migrate.Sigma(f, i, a.migrateOptions()...)
			if err != nil {
				return err
			}

			out := res.Instance
			members := classMembers(res)
			if m.engine == engineSQLite {
				backend, err := a.attachSQLite()
				if err != nil {
					return err
				}
				defer backend.Detach()
				var ns string
				out, ns, err = backend.RunSigma(f, res)
				if err != nil {
					return err
				}
				if members, err = backend.Provenance(ns); err != nil {
					return err
				}
			}

			if err := a.save(cmd, out, m.out, m.engine, m.print); err != nil {
				return err
			}
			if provenance && !a.flags.jsonMode {
				printProvenance(cmd, f.Target(), members)
			}
			return nil
		},
	}
	m.register(cmd)
	cmd.Flags().BoolVar(&provenance, "provenance", false, "list the input elements each output element came from")
	return cmd
}

// classMembers indexes the classes of a Σ result by target node name and
// output element.
func classMembers(res *migrate.SigmaResult) map[string]map[types.Element][]types.Origin {
	s := res.Instance.Schema()
	out := make(map[string]map[types.Element][]types.Origin)
	for _, c := range res.Classes {
		node := s.NodeAt(c.Node).Name
		if out[node] == nil {
			out[node] = make(map[types.Element][]types.Origin)
		}
		out[node][c.Element] = c.Members
	}
	return out
}

func printProvenance(cmd *cobra.Command, s *types.Schema, members map[string]map[types.Element][]types.Origin) {
	w := cmd.OutOrStdout()
	for _, n := range s.Nodes() {
		classes := members[n.Name]
		ids := make([]types.Element, 0, len(classes))
		for e := range classes {
			ids = append(ids, e)
		}
		slices.Sort(ids)
		for _, e := range ids {
			fmt.Fprintf(w, "%s[%d] <-", n.Name, e)
			for _, o := range classes[e] {
				fmt.Fprintf(w, " %s", o)
			}
			fmt.Fprintln(w)
		}
	}
}
