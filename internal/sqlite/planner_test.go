package sqlite

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/catmig/internal/fixture"
	"github.com/mesh-intelligence/catmig/pkg/migrate"
	"github.com/mesh-intelligence/catmig/pkg/types"
)

func TestDDL(t *testing.T) {
	stmts := DDL("ns", fixture.Company(t))
	require.Len(t, stmts, 4)
	assert.Equal(t, `DROP TABLE IF EXISTS "ns_Employee"`, stmts[0].SQL)

	create := stmts[2].SQL
	assert.Contains(t, create, `CREATE TABLE "ns_Employee"`)
	assert.Contains(t, create, "id INTEGER PRIMARY KEY")
	assert.Contains(t, create, `"worksIn" INTEGER REFERENCES "ns_Department"(id) DEFERRABLE INITIALLY DEFERRED`)
	assert.Contains(t, create, `"ename" TEXT`)

	ledger := DDL("l", fixture.Ledger(t))[1].SQL
	assert.Contains(t, ledger, `"amount" INTEGER`)
	assert.Contains(t, ledger, `"rate" REAL`)
	assert.Contains(t, ledger, `"posted" INTEGER`)
	assert.Contains(t, ledger, `"day"`+"\n)", "custom sorts have no declared type")
}

func TestQuoteIdent(t *testing.T) {
	assert.Equal(t, `"a""b"`, quoteIdent(`a"b`))
	assert.Equal(t, `'it''s'`, quoteLiteral("it's"))
}

func TestScript(t *testing.T) {
	stmts := Load("b", fixture.LedgerData(t, fixture.Ledger(t)))
	assert.Equal(t,
		"-- load b.Entry[1]\n"+
			"-- args: [1 rent 1200 0.5 1 2024-01-01]\n"+
			`INSERT INTO "b_Entry" (id, "memo", "amount", "rate", "posted", "day") VALUES (?, ?, ?, ?, ?, ?);`+"\n\n",
		Script(stmts[:1]))

	ddl := Script(DDL("ns", fixture.Company(t))[:1])
	assert.Equal(t, "-- drop ns.Employee\nDROP TABLE IF EXISTS \"ns_Employee\";\n\n", ddl)
}

func TestPlanDeltaJoinsPerInnerStep(t *testing.T) {
	companyS, staffS := fixture.Company(t), fixture.Staff(t)
	g := fixture.StaffToCompany(t, staffS, companyS)

	stmts := PlanDelta(g, "in", "out")
	var person Statement
	for _, st := range stmts {
		if strings.HasPrefix(st.Label, "delta G: Person") {
			person = st
		}
	}
	require.NotEmpty(t, person.SQL)

	// dept = manager.worksIn rewrites to worksIn; boss = manager.manager
	// needs one join.
	assert.Contains(t, person.Label, "rewritten by eq0")
	assert.Equal(t, 1, strings.Count(person.SQL, "LEFT JOIN"))
	assert.Contains(t, person.SQL, `LEFT JOIN "in_Employee" AS t1 ON t1.id = t0."manager"`)
	assert.Contains(t, person.SQL, `SELECT t0.id, t0."worksIn", t1."manager", t0."ename"`)
	assert.Contains(t, person.SQL, `FROM "in_Employee" AS t0`)
}

func TestRunDeltaMatchesInMemory(t *testing.T) {
	companyS, staffS := fixture.Company(t), fixture.Staff(t)
	g := fixture.StaffToCompany(t, staffS, companyS)

	want, err := migrate.Delta(g, fixture.CompanyData(t, companyS))
	require.NoError(t, err)

	b := attached(t)
	got, err := b.RunDelta(g, fixture.CompanyData(t, companyS))
	require.NoError(t, err)

	assert.True(t, got.Equal(want))
	if diff := cmp.Diff(want.Snapshot(), got.Snapshot()); diff != "" {
		t.Errorf("sqlite delta mismatch (-memory +sqlite):\n%s", diff)
	}
	assert.Equal(t, "delta_G(Acme)", got.Name())
}

func TestRunDeltaIdentity(t *testing.T) {
	s := fixture.Ledger(t)
	id, err := types.IdentityMapping(s)
	require.NoError(t, err)
	inst := fixture.LedgerData(t, s)

	b := attached(t)
	got, err := b.RunDelta(id, inst)
	require.NoError(t, err)
	assert.True(t, got.Equal(inst))
}

func TestRunDeltaRejectsInconsistentInstance(t *testing.T) {
	companyS, staffS := fixture.Company(t), fixture.Staff(t)
	g := fixture.StaffToCompany(t, staffS, companyS)
	inst := fixture.CompanyData(t, companyS)
	worksIn, err := companyS.Edge("worksIn")
	require.NoError(t, err)
	require.NoError(t, inst.Set(worksIn, 2, 2))

	b := attached(t)
	_, err = b.RunDelta(g, inst)
	require.ErrorIs(t, err, types.ErrConsistency)

	_, err = b.RunDelta(g, fixture.Instance(t, "X", staffS, fixture.Rows{}))
	require.ErrorIs(t, err, types.ErrSchemaMismatch)
}

func TestRunSigmaMatchesClasses(t *testing.T) {
	src, tgt := fixture.TwoLinks(t), fixture.OneLink(t)
	f := fixture.Collapse(t, src, tgt)
	inst := fixture.Instance(t, "I", src, fixture.Rows{
		Counts: map[string]int{"Employee": 2, "Department": 3},
		Links: map[string][]types.Element{
			"worksIn": {1, 3},
			"manages": {2, 3},
		},
		Attrs: map[string][]types.Value{
			"name": {types.String("Eng"), types.Null(types.SortString), types.Null(types.SortString)},
		},
	})

	res, err := migrate.Sigma(f, inst)
	require.NoError(t, err)

	b := attached(t)
	got, ns, err := b.RunSigma(f, res)
	require.NoError(t, err)
	assert.True(t, got.Equal(res.Instance))
	if diff := cmp.Diff(res.Instance.Snapshot(), got.Snapshot()); diff != "" {
		t.Errorf("sqlite sigma mismatch (-memory +sqlite):\n%s", diff)
	}

	prov, err := b.Provenance(ns)
	require.NoError(t, err)
	for _, c := range res.Classes {
		node := tgt.NodeAt(c.Node).Name
		assert.Equal(t, c.Members, prov[node][c.Element], "class %s[%d]", node, c.Element)
	}
}

func TestRunSigmaKeepsClassesWithoutEdges(t *testing.T) {
	src := fixture.NewBuilder(t, "Roles").
		Node("Manager").Node("Engineer").
		Freeze()
	tgt := fixture.NewBuilder(t, "People").
		Node("Person").
		Freeze()
	f := fixture.Mapping(t, "Merge", src, tgt,
		map[string]string{"Manager": "Person", "Engineer": "Person"}, nil)
	inst := fixture.Instance(t, "I", src, fixture.Rows{
		Counts: map[string]int{"Manager": 1, "Engineer": 2},
	})

	res, err := migrate.Sigma(f, inst)
	require.NoError(t, err)

	b := attached(t)
	got, _, err := b.RunSigma(f, res)
	require.NoError(t, err)
	person, err := tgt.Node("Person")
	require.NoError(t, err)
	assert.Equal(t, []types.Element{1, 2, 3}, got.Carrier(person))
}
