package sqlite

import (
	"fmt"
	"strings"

	"github.com/mesh-intelligence/catmig/pkg/types"
)

// Statement is one parameterized SQL statement of a plan.
type Statement struct {
	Label string
	SQL   string
	Args  []any
}

func (s Statement) String() string {
	return fmt.Sprintf("-- %s\n%s;", s.Label, s.SQL)
}

// Script renders statements as an SQL script. Bound arguments are listed in
// a comment above the statement that takes them.
func Script(stmts []Statement) string {
	var b strings.Builder
	for _, st := range stmts {
		fmt.Fprintf(&b, "-- %s\n", st.Label)
		if len(st.Args) > 0 {
			fmt.Fprintf(&b, "-- args: %v\n", st.Args)
		}
		b.WriteString(st.SQL)
		b.WriteString(";\n\n")
	}
	return b.String()
}

// quoteIdent quotes an SQL identifier, doubling embedded quotes.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// quoteLiteral quotes an SQL string literal.
func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// tableName is the table holding the carrier of node in namespace ns.
func tableName(ns, node string) string {
	return quoteIdent(ns + "_" + node)
}

// columnType maps a sort to a column declaration. Custom sorts get no type so
// SQLite stores their literals unconverted.
func columnType(s types.Sort) string {
	switch s {
	case types.SortString:
		return "TEXT"
	case types.SortInt, types.SortBool:
		return "INTEGER"
	case types.SortFloat:
		return "REAL"
	default:
		return ""
	}
}

// DDL creates one table per node of s in namespace ns. Every table has an
// integer id primary key; foreign keys reference the target table and are
// checked at commit.
func DDL(ns string, s types.SchemaView) []Statement {
	var stmts []Statement
	for _, n := range s.Nodes() {
		stmts = append(stmts, Statement{
			Label: fmt.Sprintf("drop %s.%s", ns, n.Name),
			SQL:   "DROP TABLE IF EXISTS " + tableName(ns, n.Name),
		})
	}
	for _, n := range s.Nodes() {
		cols := []string{"id INTEGER PRIMARY KEY"}
		for _, ed := range s.OutEdges(n.ID) {
			if ed.IsAttribute() {
				cols = append(cols, strings.TrimSpace(quoteIdent(ed.Name)+" "+columnType(ed.Sort)))
				continue
			}
			target := s.NodeAt(ed.Target).Name
			cols = append(cols, fmt.Sprintf("%s INTEGER REFERENCES %s(id) DEFERRABLE INITIALLY DEFERRED",
				quoteIdent(ed.Name), tableName(ns, target)))
		}
		stmts = append(stmts, Statement{
			Label: fmt.Sprintf("create %s.%s", ns, n.Name),
			SQL: fmt.Sprintf("CREATE TABLE %s (\n    %s\n)",
				tableName(ns, n.Name), strings.Join(cols, ",\n    ")),
		})
	}
	return stmts
}

// columns lists the id column and the out-edge columns of n in schema order.
func columns(s types.SchemaView, n types.NodeID) ([]string, []types.Edge) {
	edges := s.OutEdges(n)
	cols := make([]string, 0, len(edges)+1)
	cols = append(cols, "id")
	for _, ed := range edges {
		cols = append(cols, quoteIdent(ed.Name))
	}
	return cols, edges
}

// placeholders returns n comma-separated parameter markers.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
