package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/catmig/internal/graph"
	"github.com/mesh-intelligence/catmig/internal/sqlite"
	"github.com/mesh-intelligence/catmig/internal/workspace"
	"github.com/mesh-intelligence/catmig/pkg/migrate"
	"github.com/mesh-intelligence/catmig/pkg/types"
)

// Plan operations.
const (
	opDelta = "delta"
	opSigma = "sigma"
	opLoad  = "load"
)

// compiled holds an operation compiled for both dialects.
type compiled struct {
	sql    []sqlite.Statement
	cypher []graph.Statement
}

// plannedStatement is the JSON form of one statement of either dialect.
type plannedStatement struct {
	Label  string         `json:"label"`
	Text   string         `json:"text"`
	Args   []any          `json:"args,omitempty"`
	Params map[string]any `json:"params,omitempty"`
}

type planFlags struct {
	workspaceFlags
	op  string
	in  string
	out string
}

func (a *app) newPlanCmd() *cobra.Command {
	var p planFlags
	cmd := &cobra.Command{
		Use:   "plan [sql|cypher]",
		Short: "Print the statements a backend would run",
		Long: "Print the statements that compute a migration in a database.\n\n" +
			"  --op delta   pull back along --mapping (needs no instance)\n" +
			"  --op sigma   write the pushforward of --instance along --mapping\n" +
			"  --op load    create the tables of --instance's schema and insert it\n\n" +
			"The dialect defaults to the configured backend.",
		Args:      usageArgs(cobra.MaximumNArgs(1)),
		ValidArgs: []string{types.BackendSQLite, "sql", types.BackendCypher},
		RunE: func(cmd *cobra.Command, args []string) error {
			dialect := a.config.Backend
			if len(args) == 1 {
				dialect = args[0]
			}
			if dialect == "sql" {
				dialect = types.BackendSQLite
			}
			if dialect != types.BackendSQLite && dialect != types.BackendCypher {
				return usagef("unknown dialect %q", dialect)
			}
			w, err := p.load()
			if err != nil {
				return err
			}
			c, err := a.plan(w, &p)
			if err != nil {
				return err
			}
			return a.printPlan(cmd, c, dialect)
		},
	}
	p.register(cmd, true, true)
	cmd.Flags().StringVar(&p.op, "op", opDelta, "operation to plan: delta, sigma or load")
	cmd.Flags().StringVar(&p.in, "in", "input", "namespace holding the input instance")
	cmd.Flags().StringVar(&p.out, "out", "output", "namespace receiving the result")
	return cmd
}

// plan compiles the requested operation.
func (a *app) plan(w *workspace.Workspace, p *planFlags) (compiled, error) {
	var (
		f   *types.Mapping
		i   *types.Instance
		err error
	)
	if p.op == opDelta || p.op == opSigma {
		if p.mapping == "" {
			return compiled{}, usagef("--mapping is required for %s", p.op)
		}
		if f, err = w.Mapping(p.mapping); err != nil {
			return compiled{}, err
		}
	}
	if p.op == opSigma || p.op == opLoad {
		if p.instance == "" {
			return compiled{}, usagef("--instance is required for %s", p.op)
		}
		if i, err = w.Instance(p.instance); err != nil {
			return compiled{}, err
		}
	}

	switch p.op {
	case opDelta:
		return compiled{
			sql:    sqlite.PlanDelta(f, p.in, p.out),
			cypher: graph.PlanDelta(f, p.in, p.out),
		}, nil
	case opSigma:
		res, err := migrate.Sigma(f, i, a.migrateOptions()...)
		if err != nil {
			return compiled{}, err
		}
		return compiled{
			sql:    sqlite.PlanSigma(f, res, p.out),
			cypher: graph.PlanSigma(f, res, p.out),
		}, nil
	case opLoad:
		return compiled{
			sql:    append(sqlite.DDL(p.in, i.Schema()), sqlite.Load(p.in, i)...),
			cypher: append(graph.DeploySchema(i.Schema()), graph.ExportInstance(p.in, i)...),
		}, nil
	default:
		return compiled{}, usagef("unknown operation %q", p.op)
	}
}

func (a *app) printPlan(cmd *cobra.Command, c compiled, dialect string) error {
	w := cmd.OutOrStdout()
	if dialect == types.BackendSQLite {
		if a.flags.jsonMode {
			out := make([]plannedStatement, len(c.sql))
			for k, st := range c.sql {
				out[k] = plannedStatement{Label: st.Label, Text: st.SQL, Args: st.Args}
			}
			return writeJSON(w, out)
		}
		_, err := fmt.Fprint(w, sqlite.Script(c.sql))
		return err
	}
	if a.flags.jsonMode {
		out := make([]plannedStatement, len(c.cypher))
		for k, st := range c.cypher {
			out[k] = plannedStatement{Label: st.Label, Text: st.Cypher, Params: st.Params}
		}
		return writeJSON(w, out)
	}
	script, err := graph.Script(c.cypher)
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(w, script)
	return err
}
