package types

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstanceInsert(t *testing.T) {
	s := companySchema(t)
	inst, err := NewInstance("I", s)
	require.NoError(t, err)
	emp := mustNode(t, s, "Employee")
	dept := mustNode(t, s, "Department")

	_, err = uuid.Parse(inst.ID())
	require.NoError(t, err)

	e1, err := inst.Insert(emp)
	require.NoError(t, err)
	e2, err := inst.Insert(emp)
	require.NoError(t, err)
	d1, err := inst.Insert(dept)
	require.NoError(t, err)

	assert.Equal(t, Element(1), e1)
	assert.Equal(t, Element(2), e2)
	assert.Equal(t, Element(1), d1, "ids are per node")
	assert.Equal(t, []Element{1, 2}, inst.Carrier(emp))
	assert.Equal(t, 3, inst.Size())

	_, err = inst.Insert(NodeID(9))
	require.ErrorIs(t, err, ErrUnknownNode)
}

func TestInstanceAdopt(t *testing.T) {
	s := companySchema(t)
	inst, err := NewInstance("I", s)
	require.NoError(t, err)
	emp := mustNode(t, s, "Employee")

	require.NoError(t, inst.Adopt(emp, 5))
	require.ErrorIs(t, inst.Adopt(emp, 5), ErrDuplicateElement)
	require.ErrorIs(t, inst.Adopt(emp, 0), ErrDanglingElement)

	e, err := inst.Insert(emp)
	require.NoError(t, err)
	assert.Equal(t, Element(6), e, "fresh ids skip adopted ones")
}

func TestInstanceSet(t *testing.T) {
	s := companySchema(t)
	emp := mustNode(t, s, "Employee")
	dept := mustNode(t, s, "Department")
	worksIn := mustEdge(t, s, "worksIn")
	ename := mustEdge(t, s, "ename")

	tests := []struct {
		name    string
		run     func(i *Instance) error
		wantErr error
	}{
		{name: "valid link", run: func(i *Instance) error { return i.Set(worksIn, 1, 1) }},
		{name: "dangling source", run: func(i *Instance) error { return i.Set(worksIn, 9, 1) }, wantErr: ErrDanglingElement},
		{name: "dangling target", run: func(i *Instance) error { return i.Set(worksIn, 1, 9) }, wantErr: ErrDanglingElement},
		{name: "attribute through Set", run: func(i *Instance) error { return i.Set(ename, 1, 1) }, wantErr: ErrEdgeKind},
		{name: "link through SetAttr", run: func(i *Instance) error { return i.SetAttr(worksIn, 1, String("x")) }, wantErr: ErrEdgeKind},
		{name: "valid attribute", run: func(i *Instance) error { return i.SetAttr(ename, 1, String("Ann")) }},
		{name: "dangling attribute source", run: func(i *Instance) error { return i.SetAttr(ename, 3, String("Ann")) }, wantErr: ErrDanglingElement},
		{name: "unknown edge", run: func(i *Instance) error { return i.Set(EdgeID(40), 1, 1) }, wantErr: ErrUnknownEdge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inst, err := NewInstance("I", s)
			require.NoError(t, err)
			_, err = inst.Insert(emp)
			require.NoError(t, err)
			_, err = inst.Insert(dept)
			require.NoError(t, err)

			err = tt.run(inst)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				require.ErrorIs(t, err, ErrInstance)
				return
			}
			require.NoError(t, err)
		})
	}
}

// populated returns a complete instance of the company schema: two
// employees in one department, e1 managing both and acting as secretary.
func populated(t *testing.T, s *Schema) *Instance {
	t.Helper()
	inst, err := NewInstance("I", s)
	require.NoError(t, err)
	emp := mustNode(t, s, "Employee")
	dept := mustNode(t, s, "Department")

	e1, _ := inst.Insert(emp)
	e2, _ := inst.Insert(emp)
	d1, _ := inst.Insert(dept)
	for _, e := range []Element{e1, e2} {
		require.NoError(t, inst.Set(mustEdge(t, s, "worksIn"), e, d1))
		require.NoError(t, inst.Set(mustEdge(t, s, "manager"), e, e1))
	}
	require.NoError(t, inst.Set(mustEdge(t, s, "secretary"), d1, e1))
	require.NoError(t, inst.SetAttr(mustEdge(t, s, "ename"), e1, String("Ann")))
	require.NoError(t, inst.SetAttr(mustEdge(t, s, "ename"), e2, String("Bob")))
	require.NoError(t, inst.SetAttr(mustEdge(t, s, "dname"), d1, String("Eng")))
	return inst
}

func TestInstanceCheckComplete(t *testing.T) {
	s := companySchema(t)
	inst := populated(t, s)
	require.NoError(t, inst.CheckComplete())

	e3, err := inst.Insert(mustNode(t, s, "Employee"))
	require.NoError(t, err)
	err = inst.CheckComplete()
	require.ErrorIs(t, err, ErrIncompleteFunction)

	var incomplete *IncompleteFunctionError
	require.ErrorAs(t, err, &incomplete)
	assert.Equal(t, "Employee", incomplete.Node)
	assert.Equal(t, e3, incomplete.Element)
	assert.Equal(t, "worksIn", incomplete.Edge)
}

func TestInstanceApplyPath(t *testing.T) {
	s := companySchema(t)
	inst := populated(t, s)

	d, err := inst.ApplyPath(mustPath(t, s, "Employee", "manager", "worksIn"), 2)
	require.NoError(t, err)
	assert.Equal(t, Datum{Elem: 1}, d)

	d, err = inst.ApplyPath(mustPath(t, s, "Department", "secretary", "ename"), 1)
	require.NoError(t, err)
	assert.Equal(t, Datum{Value: String("Ann"), IsValue: true}, d)

	d, err = inst.ApplyPath(mustPath(t, s, "Employee"), 2)
	require.NoError(t, err)
	assert.Equal(t, Datum{Elem: 2}, d, "identity path")

	_, err = inst.ApplyPath(mustPath(t, s, "Employee"), 7)
	require.ErrorIs(t, err, ErrDanglingElement)

	e3, err := inst.Insert(mustNode(t, s, "Employee"))
	require.NoError(t, err)
	_, err = inst.ApplyPath(mustPath(t, s, "Employee", "worksIn"), e3)
	require.ErrorIs(t, err, ErrPathApplication)
}

func TestInstanceSeal(t *testing.T) {
	s := companySchema(t)
	inst := populated(t, s)
	inst.Seal()
	assert.True(t, inst.Sealed())

	_, err := inst.Insert(mustNode(t, s, "Employee"))
	require.ErrorIs(t, err, ErrInstanceSealed)
	require.ErrorIs(t, inst.Set(mustEdge(t, s, "worksIn"), 1, 1), ErrInstanceSealed)
	require.ErrorIs(t, inst.SetAttr(mustEdge(t, s, "ename"), 1, String("x")), ErrInstanceSealed)
}

func TestInstanceEqual(t *testing.T) {
	s := companySchema(t)
	a := populated(t, s)
	b := populated(t, s)
	assert.True(t, a.Equal(b))
	assert.NotEqual(t, a.ID(), b.ID())

	require.NoError(t, b.SetAttr(mustEdge(t, s, "ename"), 2, String("Bea")))
	assert.False(t, a.Equal(b))
}

func TestInstanceSnapshot(t *testing.T) {
	s := companySchema(t)
	snap := populated(t, s).Snapshot()

	assert.Equal(t, "Company", snap.Schema)
	assert.Equal(t, []Element{1, 2}, snap.Carriers["Employee"])
	assert.Equal(t, map[Element]Element{1: 1, 2: 1}, snap.Links["worksIn"])
	assert.Equal(t, `"Eng"`, snap.Rendered["dname"][1])
	assert.True(t, snap.Attrs["ename"][2].Equal(String("Bob")))

	raw, err := json.Marshal(snap)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"worksIn":{"1":1,"2":1}`)
}

func TestInstanceString(t *testing.T) {
	s := companySchema(t)
	out := populated(t, s).String()
	assert.Contains(t, out, "instance I : Company = literal {")
	assert.Contains(t, out, `Department (1)`)
	assert.Contains(t, out, `dname="Eng"`)
}
