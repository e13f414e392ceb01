package sqlite

import (
	"fmt"
	"strings"

	"github.com/mesh-intelligence/catmig/pkg/migrate"
	"github.com/mesh-intelligence/catmig/pkg/types"
)

// PlanDelta compiles Δ_F into SQL. The tables of namespace in hold an
// instance of F's target; the plan creates the tables of F's source in
// namespace out and fills each with one INSERT ... SELECT over the table of
// the image node. Every source edge is evaluated by a LEFT JOIN chain along
// its image path, one join per inner step, after the path has been shortened
// with the target's equations.
func PlanDelta(f types.MappingView, in, out string) []Statement {
	src, tgt := f.Source(), f.Target()
	opt := types.NewOptimizer(tgt)
	stmts := DDL(out, src)

	for _, n := range src.Nodes() {
		img, _ := f.NodeImage(n.ID)
		cols, edges := columns(src, n.ID)
		sel := []string{"t0.id"}
		joins := []string{fmt.Sprintf("FROM %s AS t0", tableName(in, tgt.NodeAt(img).Name))}
		var applied []string
		for _, ed := range edges {
			path, _ := f.EdgeImage(ed.ID)
			o := opt.Optimize(path)
			applied = append(applied, o.Applied...)
			expr, chain := joinChain(tgt, in, o.Optimized, len(joins))
			sel = append(sel, expr)
			joins = append(joins, chain...)
		}

		label := fmt.Sprintf("delta %s: %s from %s", f.Name(), n.Name, tgt.NodeAt(img).Name)
		if len(applied) > 0 {
			label += " (rewritten by " + strings.Join(applied, ", ") + ")"
		}
		stmts = append(stmts, Statement{
			Label: label,
			SQL: fmt.Sprintf("INSERT INTO %s (%s)\nSELECT %s\n%s",
				tableName(out, n.Name), strings.Join(cols, ", "),
				strings.Join(sel, ", "), strings.Join(joins, "\n")),
		})
	}
	return stmts
}

// joinChain returns the column expression for p starting at alias t0 and the
// joins it needs. Aliases are numbered from next.
func joinChain(tgt *types.Schema, in string, p types.Path, next int) (string, []string) {
	prev := "t0"
	var joins []string
	for k, e := range p.Edges {
		ed := tgt.EdgeAt(e)
		col := prev + "." + quoteIdent(ed.Name)
		if k == len(p.Edges)-1 {
			return col, joins
		}
		alias := fmt.Sprintf("t%d", next+len(joins))
		joins = append(joins, fmt.Sprintf("LEFT JOIN %s AS %s ON %s.id = %s",
			tableName(in, tgt.NodeAt(ed.Target).Name), alias, alias, col))
		prev = alias
	}
	return prev + ".id", joins
}

// membersTable and cellsTable stage a Σ result in namespace ns.
func membersTable(ns string) string { return quoteIdent(ns + "__members") }
func cellsTable(ns string) string   { return quoteIdent(ns + "__cells") }

// PlanSigma writes the classes of a Σ result into namespace out. Class
// membership goes to a members table for provenance; each class's edge
// values go to a cells table, one row per edge plus an empty-edge row so that
// classes without edges still appear. Each target node is then filled by one
// INSERT ... SELECT that pivots the cells and groups them by class id.
func PlanSigma(f types.MappingView, res *migrate.SigmaResult, out string) []Statement {
	tgt := f.Target()
	stmts := DDL(out, tgt)
	stmts = append(stmts,
		Statement{Label: "drop members", SQL: "DROP TABLE IF EXISTS " + membersTable(out)},
		Statement{Label: "drop cells", SQL: "DROP TABLE IF EXISTS " + cellsTable(out)},
		Statement{Label: "create members", SQL: "CREATE TABLE " + membersTable(out) +
			" (class_id INTEGER NOT NULL, node TEXT NOT NULL, source_node TEXT NOT NULL," +
			" element INTEGER NOT NULL, edge TEXT NOT NULL, step INTEGER NOT NULL)"},
		Statement{Label: "create cells", SQL: "CREATE TABLE " + cellsTable(out) +
			" (class_id INTEGER NOT NULL, node TEXT NOT NULL, edge TEXT NOT NULL, value)"},
	)

	insertMember := "INSERT INTO " + membersTable(out) +
		" (class_id, node, source_node, element, edge, step) VALUES (?, ?, ?, ?, ?, ?)"
	insertCell := "INSERT INTO " + cellsTable(out) + " (class_id, node, edge, value) VALUES (?, ?, ?, ?)"
	for _, c := range res.Classes {
		node := tgt.NodeAt(c.Node).Name
		id := int64(c.Element)
		label := fmt.Sprintf("class %s[%d]", node, c.Element)
		for _, m := range c.Members {
			stmts = append(stmts, Statement{
				Label: label + " member " + m.String(),
				SQL:   insertMember,
				Args:  []any{id, node, m.Node, int64(m.Element), m.Edge, int64(m.Step)},
			})
		}
		stmts = append(stmts, Statement{Label: label, SQL: insertCell, Args: []any{id, node, "", nil}})
		for _, ed := range tgt.OutEdges(c.Node) {
			stmts = append(stmts, Statement{
				Label: label + "." + ed.Name,
				SQL:   insertCell,
				Args:  []any{id, node, ed.Name, cellArg(res.Instance, ed, c.Element)},
			})
		}
	}

	for _, n := range tgt.Nodes() {
		cols, edges := columns(tgt, n.ID)
		sel := []string{"class_id"}
		for _, ed := range edges {
			sel = append(sel, fmt.Sprintf("MAX(CASE WHEN edge = %s THEN value END)", quoteLiteral(ed.Name)))
		}
		stmts = append(stmts, Statement{
			Label: fmt.Sprintf("sigma %s: %s", f.Name(), n.Name),
			SQL: fmt.Sprintf("INSERT INTO %s (%s)\nSELECT %s\nFROM %s\nWHERE node = %s\nGROUP BY class_id",
				tableName(out, n.Name), strings.Join(cols, ", "), strings.Join(sel, ", "),
				cellsTable(out), quoteLiteral(n.Name)),
		})
	}
	return stmts
}
