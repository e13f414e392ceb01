package graph

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/catmig/internal/fixture"
	"github.com/mesh-intelligence/catmig/pkg/migrate"
	"github.com/mesh-intelligence/catmig/pkg/types"
)

func find(t *testing.T, stmts []Statement, label string) Statement {
	t.Helper()
	for _, st := range stmts {
		if st.Label == label {
			return st
		}
	}
	t.Fatalf("no statement labelled %q", label)
	return Statement{}
}

func TestDeploySchema(t *testing.T) {
	stmts := DeploySchema(fixture.Company(t))
	require.Len(t, stmts, 2)
	assert.Equal(t,
		"CREATE CONSTRAINT `catmig_Company_Employee` IF NOT EXISTS FOR (n:`Employee`) REQUIRE (n.instance, n.id) IS UNIQUE",
		stmts[0].Cypher)
}

func TestExportInstance(t *testing.T) {
	inst := fixture.CompanyData(t, fixture.Company(t))
	stmts := ExportInstance("acme", inst)
	require.Len(t, stmts, 5, "two node statements and three foreign keys")

	emp := find(t, stmts, "export Acme.Employee")
	assert.Equal(t, "acme", emp.Params["instance"])
	rows := emp.Params["rows"].([]map[string]any)
	require.Len(t, rows, 3)
	assert.Equal(t, uint64(1), rows[0]["id"])
	assert.Equal(t, map[string]any{"ename": "Ann"}, rows[0]["props"])

	sec := find(t, stmts, "export Acme.secretary")
	assert.Contains(t, sec.Cypher, "MATCH (a:`Department` {instance: $instance, id: row.src})")
	assert.Contains(t, sec.Cypher, "MERGE (a)-[:`secretary`]->(b)")
	assert.Equal(t, []map[string]any{{"src": uint64(1), "dst": uint64(1)}, {"src": uint64(2), "dst": uint64(3)}},
		sec.Params["rows"])
}

func TestExportInstanceNullProperties(t *testing.T) {
	inst := fixture.LedgerData(t, fixture.Ledger(t))
	rows := ExportInstance("b", inst)[0].Params["rows"].([]map[string]any)
	props := rows[1]["props"].(map[string]any)
	assert.Nil(t, props["memo"])
	assert.Equal(t, int64(-5), props["amount"])
	assert.Equal(t, false, props["posted"])
	assert.Equal(t, int64(20240102), props["day"])
}

func TestPlanDelta(t *testing.T) {
	companyS, staffS := fixture.Company(t), fixture.Staff(t)
	g := fixture.StaffToCompany(t, staffS, companyS)
	stmts := PlanDelta(g, "acme", "out")

	person := find(t, stmts, "delta G: Person")
	assert.Equal(t, "MATCH (t0:`Employee` {instance: $in})\n"+
		"CREATE (n:`Person` {instance: $out, id: t0.id})\n"+
		"SET n += {`pname`: t0.`ename`}", person.Cypher)

	boss := find(t, stmts, "delta G: boss")
	assert.Contains(t, boss.Cypher, "MATCH (t0)-[:`manager`]->(t1:`Employee`)-[:`manager`]->(t2:`Employee`)")
	assert.Contains(t, boss.Cypher, "MATCH (b:`Person` {instance: $out, id: t2.id})")

	// manager.worksIn is rewritten to worksIn.
	dept := find(t, stmts, "delta G: dept")
	assert.Contains(t, dept.Cypher, "MATCH (t0)-[:`worksIn`]->(t1:`Department`)\n")
	assert.Equal(t, map[string]any{"in": "acme", "out": "out"}, dept.Params)
}

func TestPlanDeltaAttributeThroughJoin(t *testing.T) {
	companyS := fixture.Company(t)
	src := fixture.NewBuilder(t, "Desk").
		Node("Seat").
		Attr("unit", "Seat", types.SortString).
		Attr("person", "Seat", types.SortString).
		Freeze()
	f := fixture.Mapping(t, "D", src, companyS,
		map[string]string{"Seat": "Employee"},
		map[string][]string{"unit": {"worksIn", "dname"}, "person": {"ename"}})

	seat := find(t, PlanDelta(f, "in", "out"), "delta D: Seat")
	assert.Contains(t, seat.Cypher, "OPTIONAL MATCH (t0)-[:`worksIn`]->(a0_1:`Department`)")
	assert.Contains(t, seat.Cypher, "`unit`: a0_1.`dname`, `person`: t0.`ename`")
}

func TestPlanSigma(t *testing.T) {
	src, tgt := fixture.TwoLinks(t), fixture.OneLink(t)
	f := fixture.Collapse(t, src, tgt)
	inst := fixture.Instance(t, "I", src, fixture.Rows{
		Counts: map[string]int{"Employee": 1, "Department": 2},
		Links:  map[string][]types.Element{"worksIn": {1}, "manages": {2}},
		Attrs:  map[string][]types.Value{"name": {types.String("Eng"), types.Null(types.SortString)}},
	})
	res, err := migrate.Sigma(f, inst)
	require.NoError(t, err)

	stmts := PlanSigma(f, res, "out")
	dept := find(t, stmts, "sigma Collapse: Department")
	assert.Contains(t, dept.Cypher, "MERGE (c:`Department` {instance: $out, id: row.class})")
	rows := dept.Params["rows"].([]map[string]any)
	require.Len(t, rows, 1)
	assert.Equal(t, map[string]any{"name": "Eng"}, rows[0]["props"])
	assert.Equal(t, []string{"Department[1]", "Department[2]"}, rows[0]["members"])

	link := find(t, stmts, "sigma Collapse: dept")
	assert.Equal(t, []map[string]any{{"src": uint64(1), "dst": uint64(1)}}, link.Params["rows"])
}

func TestScript(t *testing.T) {
	out, err := Script(DeploySchema(fixture.Company(t)))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "// constraint Employee\nCREATE CONSTRAINT"))
	assert.Equal(t, 2, strings.Count(out, ";\n"))

	out, err = Script(PlanDelta(fixture.StaffToCompany(t, fixture.Staff(t), fixture.Company(t)), "a", "b"))
	require.NoError(t, err)
	assert.Contains(t, out, `:params {"in":"a","out":"b"}`)
}
