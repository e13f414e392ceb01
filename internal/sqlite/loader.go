package sqlite

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/mesh-intelligence/catmig/pkg/types"
)

// Load inserts every element of i into the tables of namespace ns, one row
// per element. Missing edge values are stored as NULL.
func Load(ns string, i types.InstanceView) []Statement {
	s := i.Schema()
	var stmts []Statement
	for _, n := range s.Nodes() {
		cols, edges := columns(s, n.ID)
		insertSQL := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			tableName(ns, n.Name), strings.Join(cols, ", "), placeholders(len(cols)))
		for _, e := range i.Carrier(n.ID) {
			args := make([]any, 0, len(cols))
			args = append(args, int64(e))
			for _, ed := range edges {
				args = append(args, cellArg(i, ed, e))
			}
			stmts = append(stmts, Statement{
				Label: fmt.Sprintf("load %s.%s[%d]", ns, n.Name, e),
				SQL:   insertSQL,
				Args:  args,
			})
		}
	}
	return stmts
}

func cellArg(i types.InstanceView, ed types.Edge, e types.Element) any {
	if !ed.IsAttribute() {
		t, ok := i.Lookup(ed.ID, e)
		if !ok {
			return nil
		}
		return int64(t)
	}
	v, ok := i.Attr(ed.ID, e)
	if !ok {
		return nil
	}
	return sqlValue(v)
}

// sqlValue converts a value to a driver argument. Nulls become SQL NULL and
// booleans become 0 or 1.
func sqlValue(v types.Value) any {
	if v.IsNull() {
		return nil
	}
	switch lit := v.Lit.(type) {
	case bool:
		if lit {
			return int64(1)
		}
		return int64(0)
	case string, int64, float64, []byte:
		return lit
	case int:
		return int64(lit)
	default:
		return fmt.Sprint(lit)
	}
}

// fromSQL converts a scanned column back into a value of sort.
func fromSQL(sort types.Sort, raw any) (types.Value, error) {
	if raw == nil {
		return types.Null(sort), nil
	}
	if b, ok := raw.([]byte); ok {
		raw = string(b)
	}
	switch sort {
	case types.SortString:
		if s, ok := raw.(string); ok {
			return types.String(s), nil
		}
	case types.SortInt:
		if n, ok := raw.(int64); ok {
			return types.Int(n), nil
		}
	case types.SortFloat:
		switch n := raw.(type) {
		case float64:
			return types.Float(n), nil
		case int64:
			return types.Float(float64(n)), nil
		}
	case types.SortBool:
		if n, ok := raw.(int64); ok {
			return types.Bool(n != 0), nil
		}
	default:
		return types.Const(sort, raw), nil
	}
	return types.Value{}, fmt.Errorf("column value %v (%T) does not fit sort %s", raw, raw, sort)
}

// row is one scanned table row.
type row struct {
	id    types.Element
	cells []any
}

// Read builds an instance of s named name from the tables of namespace ns.
// Elements keep their row ids. Every element is adopted before any edge is
// set, so foreign keys may point forward.
func (b *Backend) Read(ns string, s *types.Schema, name string) (*types.Instance, error) {
	tables := make([][]row, len(s.Nodes()))
	for _, n := range s.Nodes() {
		cols, edges := columns(s, n.ID)
		q := fmt.Sprintf("SELECT %s FROM %s ORDER BY id", strings.Join(cols, ", "), tableName(ns, n.Name))
		err := b.query(q, func(rows *sql.Rows) error {
			var id int64
			cells := make([]any, len(edges))
			dest := make([]any, 0, len(cols))
			dest = append(dest, &id)
			for k := range cells {
				dest = append(dest, &cells[k])
			}
			if err := rows.Scan(dest...); err != nil {
				return err
			}
			tables[n.ID] = append(tables[n.ID], row{id: types.Element(id), cells: cells})
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("reading %s.%s: %w", ns, n.Name, err)
		}
	}

	out, err := types.NewInstance(name, s)
	if err != nil {
		return nil, err
	}
	for n, rows := range tables {
		for _, r := range rows {
			if err := out.Adopt(types.NodeID(n), r.id); err != nil {
				return nil, err
			}
		}
	}
	for _, n := range s.Nodes() {
		edges := s.OutEdges(n.ID)
		for _, r := range tables[n.ID] {
			for k, ed := range edges {
				raw := r.cells[k]
				if raw == nil && !ed.IsAttribute() {
					continue
				}
				if err := setCell(out, ed, r.id, raw); err != nil {
					return nil, fmt.Errorf("reading %s.%s[%d].%s: %w", ns, n.Name, r.id, ed.Name, err)
				}
			}
		}
	}
	return out, nil
}

func setCell(out *types.Instance, ed types.Edge, e types.Element, raw any) error {
	if !ed.IsAttribute() {
		t, ok := raw.(int64)
		if !ok {
			return fmt.Errorf("foreign key value %v (%T) is not an integer", raw, raw)
		}
		return out.Set(ed.ID, e, types.Element(t))
	}
	v, err := fromSQL(ed.Sort, raw)
	if err != nil {
		return err
	}
	return out.SetAttr(ed.ID, e, v)
}
