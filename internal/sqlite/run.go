package sqlite

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/mesh-intelligence/catmig/pkg/migrate"
	"github.com/mesh-intelligence/catmig/pkg/types"
	"github.com/mesh-intelligence/catmig/pkg/validate"
)

var _ types.Engine = (*Backend)(nil)

// Namespace derives a table prefix from an instance or run id.
func Namespace(id string) string {
	hex := strings.ReplaceAll(id, "-", "")
	if len(hex) > 12 {
		hex = hex[len(hex)-12:]
	}
	return "r" + hex
}

// generateNamespace returns a namespace for a fresh run.
func generateNamespace() string {
	id, err := uuid.NewV7()
	if err != nil {
		return Namespace(uuid.New().String())
	}
	return Namespace(id.String())
}

// Deploy creates the tables of s in namespace ns.
func (b *Backend) Deploy(ns string, s types.SchemaView) error {
	return b.Exec(DDL(ns, s))
}

// Store creates the tables of i's schema and loads i into them. The
// namespace is derived from the instance id.
func (b *Backend) Store(i *types.Instance) (string, error) {
	ns := Namespace(i.ID())
	stmts := append(DDL(ns, i.Schema()), Load(ns, i)...)
	if err := b.Exec(stmts); err != nil {
		return "", fmt.Errorf("storing %s: %w", i.Name(), err)
	}
	return ns, nil
}

// RunDelta computes Δ_F(I) in the database. I is validated as migrate.Delta
// does, stored, pulled back along F by the Δ plan and read into a new
// instance of F's source.
func (b *Backend) RunDelta(f *types.Mapping, i *types.Instance) (*types.Instance, error) {
	if i.Schema() != f.Target() {
		return nil, fmt.Errorf("%w: delta %s needs an instance of %s, got %s",
			types.ErrSchemaMismatch, f.Name(), f.Target().Name(), i.Schema().Name())
	}
	if err := validate.Mapping(f); err != nil {
		return nil, fmt.Errorf("delta %s: %w", f.Name(), err)
	}
	if err := validate.All(f.Target(), i); err != nil {
		return nil, fmt.Errorf("delta %s: %w", f.Name(), err)
	}
	i.Seal()

	in, err := b.Store(i)
	if err != nil {
		return nil, err
	}
	out := generateNamespace()
	if err := b.Exec(PlanDelta(f, in, out)); err != nil {
		return nil, fmt.Errorf("delta %s: %w", f.Name(), err)
	}
	return b.Read(out, f.Source(), fmt.Sprintf("delta_%s(%s)", f.Name(), i.Name()))
}

// RunSigma materializes a Σ result computed by migrate.Sigma and reads the
// target instance back from the database. It returns the namespace holding
// the result so Provenance can inspect it.
func (b *Backend) RunSigma(f *types.Mapping, res *migrate.SigmaResult) (*types.Instance, string, error) {
	if res.Instance.Schema() != f.Target() {
		return nil, "", fmt.Errorf("%w: sigma %s result is not an instance of %s",
			types.ErrSchemaMismatch, f.Name(), f.Target().Name())
	}
	out := generateNamespace()
	if err := b.Exec(PlanSigma(f, res, out)); err != nil {
		return nil, "", fmt.Errorf("sigma %s: %w", f.Name(), err)
	}
	inst, err := b.Read(out, f.Target(), res.Instance.Name())
	if err != nil {
		return nil, "", err
	}
	return inst, out, nil
}

// Provenance returns the members of every class a Σ run in namespace ns
// staged, keyed by target node name and output element.
func (b *Backend) Provenance(ns string) (map[string]map[types.Element][]types.Origin, error) {
	out := make(map[string]map[types.Element][]types.Origin)
	q := "SELECT class_id, node, source_node, element, edge, step FROM " + membersTable(ns) + " ORDER BY rowid"
	err := b.query(q, func(rows *sql.Rows) error {
		var (
			class, element, step int64
			node, source, edge   string
		)
		if err := rows.Scan(&class, &node, &source, &element, &edge, &step); err != nil {
			return err
		}
		if out[node] == nil {
			out[node] = make(map[types.Element][]types.Origin)
		}
		o := types.Origin{Node: source, Element: types.Element(element), Edge: edge, Step: int(step)}
		out[node][types.Element(class)] = append(out[node][types.Element(class)], o)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reading provenance of %s: %w", ns, err)
	}
	return out, nil
}
