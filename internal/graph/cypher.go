// Package graph emits Cypher for property-graph stores. Elements become
// nodes labelled by their schema node and keyed by (instance, id); foreign
// keys become relationships typed by the edge name; attributes become
// properties.
package graph

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mesh-intelligence/catmig/pkg/migrate"
	"github.com/mesh-intelligence/catmig/pkg/types"
)

// Statement is one parameterized Cypher statement.
type Statement struct {
	Label  string
	Cypher string
	Params map[string]any
}

// Script renders statements as a cypher-shell script, each preceded by its
// parameters.
func Script(stmts []Statement) (string, error) {
	var b strings.Builder
	for _, st := range stmts {
		fmt.Fprintf(&b, "// %s\n", st.Label)
		if len(st.Params) > 0 {
			params, err := json.Marshal(st.Params)
			if err != nil {
				return "", fmt.Errorf("%s: %w", st.Label, err)
			}
			fmt.Fprintf(&b, ":params %s\n", params)
		}
		b.WriteString(st.Cypher)
		b.WriteString(";\n\n")
	}
	return b.String(), nil
}

// quote escapes a label, relationship type or property key.
func quote(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// DeploySchema creates one uniqueness constraint per node label.
func DeploySchema(s types.SchemaView) []Statement {
	var stmts []Statement
	for _, n := range s.Nodes() {
		stmts = append(stmts, Statement{
			Label: "constraint " + n.Name,
			Cypher: fmt.Sprintf("CREATE CONSTRAINT %s IF NOT EXISTS FOR (n:%s) REQUIRE (n.instance, n.id) IS UNIQUE",
				quote("catmig_"+s.Name()+"_"+n.Name), quote(n.Name)),
		})
	}
	return stmts
}

// ExportInstance writes every element of i under the instance key ns. Nodes
// are merged first, then relationships, one statement per schema node and
// foreign key.
func ExportInstance(ns string, i types.InstanceView) []Statement {
	s := i.Schema()
	var stmts []Statement
	for _, n := range s.Nodes() {
		var rows []map[string]any
		for _, e := range i.Carrier(n.ID) {
			props := map[string]any{}
			for _, ed := range s.OutEdges(n.ID) {
				if !ed.IsAttribute() {
					continue
				}
				if v, ok := i.Attr(ed.ID, e); ok {
					props[ed.Name] = property(v)
				}
			}
			rows = append(rows, map[string]any{"id": uint64(e), "props": props})
		}
		stmts = append(stmts, Statement{
			Label: fmt.Sprintf("export %s.%s", i.Name(), n.Name),
			Cypher: fmt.Sprintf("UNWIND $rows AS row\nMERGE (n:%s {instance: $instance, id: row.id})\nSET n += row.props",
				quote(n.Name)),
			Params: map[string]any{"instance": ns, "rows": rows},
		})
	}
	for _, ed := range s.Edges() {
		if ed.IsAttribute() {
			continue
		}
		var rows []map[string]any
		for _, e := range i.Carrier(ed.Source) {
			if t, ok := i.Lookup(ed.ID, e); ok {
				rows = append(rows, map[string]any{"src": uint64(e), "dst": uint64(t)})
			}
		}
		stmts = append(stmts, Statement{
			Label: fmt.Sprintf("export %s.%s", i.Name(), ed.Name),
			Cypher: fmt.Sprintf("UNWIND $rows AS row\nMATCH (a:%s {instance: $instance, id: row.src})\n"+
				"MATCH (b:%s {instance: $instance, id: row.dst})\nMERGE (a)-[:%s]->(b)",
				quote(s.NodeAt(ed.Source).Name), quote(s.NodeAt(ed.Target).Name), quote(ed.Name)),
			Params: map[string]any{"instance": ns, "rows": rows},
		})
	}
	return stmts
}

// property converts a value to a Cypher property. Nulls are omitted by
// SET +=, which is how property graphs represent a missing value.
func property(v types.Value) any {
	if v.IsNull() {
		return nil
	}
	switch lit := v.Lit.(type) {
	case string, int64, float64, bool:
		return lit
	default:
		return fmt.Sprint(lit)
	}
}

// pattern renders the relationship chain for p from variable t0, naming the
// variables it binds with prefix, and returns the variable it ends at or the
// property expression when p ends in a sort.
func pattern(tgt *types.Schema, p types.Path, prefix string) (string, string) {
	var b strings.Builder
	b.WriteString("(t0)")
	prev := "t0"
	for k, e := range p.Edges {
		ed := tgt.EdgeAt(e)
		if ed.IsAttribute() {
			return b.String(), prev + "." + quote(ed.Name)
		}
		v := fmt.Sprintf("%s%d", prefix, k+1)
		fmt.Fprintf(&b, "-[:%s]->(%s:%s)", quote(ed.Name), v, quote(tgt.NodeAt(ed.Target).Name))
		prev = v
	}
	return b.String(), prev
}

// PlanDelta compiles Δ_F for an instance of F's target stored under key in.
// Each source node is created from the carrier of its image, then each
// source edge is matched along its image path, shortened by the target's
// equations.
func PlanDelta(f types.MappingView, in, out string) []Statement {
	src, tgt := f.Source(), f.Target()
	opt := types.NewOptimizer(tgt)
	params := map[string]any{"in": in, "out": out}
	var stmts []Statement

	for _, n := range src.Nodes() {
		img, _ := f.NodeImage(n.ID)
		var optional, props []string
		for _, ed := range src.OutEdges(n.ID) {
			if !ed.IsAttribute() {
				continue
			}
			path, _ := f.EdgeImage(ed.ID)
			chain, expr := pattern(tgt, opt.Optimize(path).Optimized, fmt.Sprintf("a%d_", len(props)))
			if chain != "(t0)" {
				optional = append(optional, "OPTIONAL MATCH "+chain)
			}
			props = append(props, fmt.Sprintf("%s: %s", quote(ed.Name), expr))
		}
		set := ""
		if len(props) > 0 {
			set = "\nSET n += {" + strings.Join(props, ", ") + "}"
		}
		q := fmt.Sprintf("MATCH (t0:%s {instance: $in})\n", quote(tgt.NodeAt(img).Name))
		if len(optional) > 0 {
			q += strings.Join(optional, "\n") + "\n"
		}
		q += fmt.Sprintf("CREATE (n:%s {instance: $out, id: t0.id})%s", quote(n.Name), set)
		stmts = append(stmts, Statement{Label: fmt.Sprintf("delta %s: %s", f.Name(), n.Name), Cypher: q, Params: params})
	}

	for _, ed := range src.Edges() {
		if ed.IsAttribute() {
			continue
		}
		path, _ := f.EdgeImage(ed.ID)
		img, _ := f.NodeImage(ed.Source)
		chain, end := pattern(tgt, opt.Optimize(path).Optimized, "t")
		q := fmt.Sprintf("MATCH (a:%s {instance: $out})\nMATCH (t0:%s {instance: $in, id: a.id})\nMATCH %s\n"+
			"MATCH (b:%s {instance: $out, id: %s.id})\nMERGE (a)-[:%s]->(b)",
			quote(src.NodeAt(ed.Source).Name), quote(tgt.NodeAt(img).Name), chain,
			quote(src.NodeAt(ed.Target).Name), end, quote(ed.Name))
		stmts = append(stmts, Statement{Label: fmt.Sprintf("delta %s: %s", f.Name(), ed.Name), Cypher: q, Params: params})
	}
	return stmts
}

// PlanSigma writes a Σ result under key out: one MERGE per target node keyed
// by class id, then one MERGE per foreign key between classes.
func PlanSigma(f types.MappingView, res *migrate.SigmaResult, out string) []Statement {
	tgt := f.Target()
	inst := res.Instance
	var stmts []Statement

	for _, n := range tgt.Nodes() {
		var rows []map[string]any
		for _, c := range res.Classes {
			if c.Node != n.ID {
				continue
			}
			props := map[string]any{}
			for _, ed := range tgt.OutEdges(n.ID) {
				if !ed.IsAttribute() {
					continue
				}
				if v, ok := inst.Attr(ed.ID, c.Element); ok {
					props[ed.Name] = property(v)
				}
			}
			members := make([]string, len(c.Members))
			for k, m := range c.Members {
				members[k] = m.String()
			}
			rows = append(rows, map[string]any{"class": uint64(c.Element), "props": props, "members": members})
		}
		stmts = append(stmts, Statement{
			Label: fmt.Sprintf("sigma %s: %s", f.Name(), n.Name),
			Cypher: fmt.Sprintf("UNWIND $rows AS row\nMERGE (c:%s {instance: $out, id: row.class})\n"+
				"SET c += row.props, c.members = row.members", quote(n.Name)),
			Params: map[string]any{"out": out, "rows": rows},
		})
	}

	for _, ed := range tgt.Edges() {
		if ed.IsAttribute() {
			continue
		}
		var rows []map[string]any
		for _, e := range inst.Carrier(ed.Source) {
			if t, ok := inst.Lookup(ed.ID, e); ok {
				rows = append(rows, map[string]any{"src": uint64(e), "dst": uint64(t)})
			}
		}
		stmts = append(stmts, Statement{
			Label: fmt.Sprintf("sigma %s: %s", f.Name(), ed.Name),
			Cypher: fmt.Sprintf("UNWIND $rows AS row\nMATCH (a:%s {instance: $out, id: row.src})\n"+
				"MATCH (b:%s {instance: $out, id: row.dst})\nMERGE (a)-[:%s]->(b)",
				quote(tgt.NodeAt(ed.Source).Name), quote(tgt.NodeAt(ed.Target).Name), quote(ed.Name)),
			Params: map[string]any{"out": out, "rows": rows},
		})
	}
	return stmts
}
