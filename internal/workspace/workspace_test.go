package workspace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/catmig/pkg/migrate"
	"github.com/mesh-intelligence/catmig/pkg/types"
	"github.com/mesh-intelligence/catmig/pkg/validate"
)

func TestLoadCompany(t *testing.T) {
	ws, err := Load("testdata/company.yaml")
	require.NoError(t, err)

	assert.Equal(t, []string{"Company", "Staff", "Flat"}, ws.Schemas())
	assert.Equal(t, []string{"Acme", "People"}, ws.Instances())
	assert.Equal(t, []string{"G", "F", "GF", "idCompany"}, ws.Mappings())

	acme, err := ws.Instance("Acme")
	require.NoError(t, err)
	require.NoError(t, validate.All(acme.Schema(), acme))

	snap := acme.Snapshot()
	assert.Equal(t, []types.Element{1, 2, 3}, snap.Carriers["Employee"])
	assert.Equal(t, map[types.Element]types.Element{1: 1, 2: 1, 3: 2}, snap.Links["worksIn"])
	assert.Equal(t, map[types.Element]string{1: `"2019-04-01"`, 2: "NULL", 3: `"2021-09-15"`}, snap.Rendered["hired"])

	for _, name := range ws.Mappings() {
		m, err := ws.Mapping(name)
		require.NoError(t, err)
		require.NoError(t, validate.Mapping(m), name)
	}
}

func TestComposedMappingAgreesWithSteps(t *testing.T) {
	ws, err := Load("testdata/company.yaml")
	require.NoError(t, err)
	gf, err := ws.Mapping("GF")
	require.NoError(t, err)
	g, err := ws.Mapping("G")
	require.NoError(t, err)
	f, err := ws.Mapping("F")
	require.NoError(t, err)
	acme, err := ws.Instance("Acme")
	require.NoError(t, err)

	assert.Equal(t, "GF", gf.Name())
	direct, err := migrate.Delta(gf, acme)
	require.NoError(t, err)
	mid, err := migrate.Delta(g, acme)
	require.NoError(t, err)
	stepwise, err := migrate.Delta(f, mid)
	require.NoError(t, err)
	assert.True(t, direct.Equal(stepwise))
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		is   error
	}{
		{
			name: "unknown key",
			doc:  "schemas:\n  - name: S\n    nodes: [A]\n",
			is:   ErrDocument,
		},
		{
			name: "duplicate entity",
			doc:  "schemas:\n  - name: S\n    entities: [A, A]\n",
			is:   types.ErrDuplicateNode,
		},
		{
			name: "foreign key to unknown entity",
			doc:  "schemas:\n  - name: S\n    entities: [A]\n    foreign_keys:\n      - {name: f, from: A, to: B}\n",
			is:   types.ErrUnknownNode,
		},
		{
			name: "unknown sort",
			doc:  "schemas:\n  - name: S\n    entities: [A]\n    attributes:\n      - {name: x, from: A, sort: Money}\n",
			is:   types.ErrUnknownSort,
		},
		{
			name: "ill-typed equation",
			doc: "schemas:\n  - name: S\n    entities: [A, B]\n    foreign_keys:\n      - {name: f, from: A, to: B}\n" +
				"    equations:\n      - {start: A, lhs: [f], rhs: []}\n",
			is: types.ErrEquationTypeMismatch,
		},
		{
			name: "instance of undefined schema",
			doc:  "instances:\n  - name: I\n    schema: Nope\n",
			is:   ErrUndefined,
		},
		{
			name: "row without id",
			doc:  "schemas:\n  - name: S\n    entities: [A]\ninstances:\n  - name: I\n    schema: S\n    rows:\n      A:\n        - {}\n",
			is:   ErrBadRow,
		},
		{
			name: "dangling foreign key",
			doc: "schemas:\n  - name: S\n    entities: [A]\n    foreign_keys:\n      - {name: f, from: A, to: A}\n" +
				"instances:\n  - name: I\n    schema: S\n    rows:\n      A:\n        - {id: 1, f: 2}\n",
			is: types.ErrDanglingElement,
		},
		{
			name: "attribute of the wrong sort",
			doc: "schemas:\n  - name: S\n    entities: [A]\n    attributes:\n      - {name: n, from: A, sort: Int}\n" +
				"instances:\n  - name: I\n    schema: S\n    rows:\n      A:\n        - {id: 1, n: seven}\n",
			is: types.ErrTypeMismatch,
		},
		{
			name: "edge of another entity",
			doc: "schemas:\n  - name: S\n    entities: [A, B]\n    attributes:\n      - {name: n, from: B, sort: Int}\n" +
				"instances:\n  - name: I\n    schema: S\n    rows:\n      A:\n        - {id: 1, n: 1}\n",
			is: ErrBadRow,
		},
		{
			name: "incomplete mapping",
			doc:  "schemas:\n  - name: S\n    entities: [A]\nmappings:\n  - name: M\n    source: S\n    target: S\n",
			is:   types.ErrIncompleteMapping,
		},
		{
			name: "mapping edge to wrong target",
			doc: "schemas:\n  - name: S\n    entities: [A, B]\n    foreign_keys:\n      - {name: f, from: A, to: B}\n      - {name: g, from: B, to: A}\n" +
				"mappings:\n  - name: M\n    source: S\n    target: S\n    entities: {A: A, B: B}\n    edges: {f: [f, g], g: [g]}\n",
			is: types.ErrPathTypeMismatch,
		},
		{
			name: "compose of undefined mapping",
			doc:  "mappings:\n  - name: M\n    compose: [A, B]\n",
			is:   ErrUndefined,
		},
		{
			name: "schema defined twice",
			doc:  "schemas:\n  - name: S\n  - name: S\n",
			is:   ErrRedefined,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ws, err := Parse([]byte(tt.doc))
			assert.Nil(t, ws)
			require.ErrorIs(t, err, tt.is)
		})
	}
}

func TestParseEmptyDocument(t *testing.T) {
	ws, err := Parse(nil)
	require.NoError(t, err)
	assert.Empty(t, ws.Schemas())
}

func TestValueConversion(t *testing.T) {
	tests := []struct {
		name string
		sort types.Sort
		raw  any
		want types.Value
	}{
		{"int widens", types.SortInt, 7, types.Int(7)},
		{"int accepted as float", types.SortFloat, 2, types.Float(2)},
		{"float", types.SortFloat, 2.5, types.Float(2.5)},
		{"bool", types.SortBool, true, types.Bool(true)},
		{"null", types.SortString, nil, types.Null(types.SortString)},
		{"custom string", "Date", "2024-01-01", types.Const("Date", "2024-01-01")},
		{"custom int", "Date", 20240101, types.Const("Date", int64(20240101))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := value(tt.sort, tt.raw)
			require.NoError(t, err)
			assert.True(t, got.Equal(tt.want), "got %s, want %s", got, tt.want)
		})
	}

	_, err := value("Date", []any{1})
	require.ErrorIs(t, err, ErrBadRow)
}
