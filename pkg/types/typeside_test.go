package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypesideRegister(t *testing.T) {
	tests := []struct {
		name    string
		sort    string
		wantErr error
	}{
		{name: "new sort", sort: "Date"},
		{name: "built-in collides", sort: "Int", wantErr: ErrDuplicateSort},
		{name: "empty name", sort: "", wantErr: ErrInvalidName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := DefaultTypeside()
			s, err := ts.Register(tt.sort)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				require.ErrorIs(t, err, ErrSchema)
				assert.Len(t, ts.Sorts(), 4)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, Sort(tt.sort), s)
			assert.True(t, ts.Has(s))
		})
	}
}

func TestTypesideLookup(t *testing.T) {
	ts := DefaultTypeside()

	s, err := ts.Lookup("Bool")
	require.NoError(t, err)
	assert.Equal(t, SortBool, s)

	_, err = ts.Lookup("Money")
	require.ErrorIs(t, err, ErrUnknownSort)
}

func TestTypesideSealedOnFreeze(t *testing.T) {
	ts := DefaultTypeside()
	_, err := ts.Register("Date")
	require.NoError(t, err)

	s := NewSchema("S", ts)
	_, err = s.AddNode("A")
	require.NoError(t, err)
	require.NoError(t, s.Freeze())

	_, err = ts.Register("Money")
	require.ErrorIs(t, err, ErrTypesideSealed)
	assert.Equal(t, []Sort{SortString, SortInt, SortFloat, SortBool, "Date"}, ts.Sorts())
}

func TestValueUnify(t *testing.T) {
	tests := []struct {
		name   string
		a, b   Value
		want   Value
		wantOK bool
	}{
		{name: "equal constants", a: String("x"), b: String("x"), want: String("x"), wantOK: true},
		{name: "distinct constants", a: String("x"), b: String("y")},
		{name: "null left", a: Null(SortInt), b: Int(3), want: Int(3), wantOK: true},
		{name: "null right", a: Int(3), b: Null(SortInt), want: Int(3), wantOK: true},
		{name: "two nulls", a: Null(SortInt), b: Null(SortInt), want: Null(SortInt), wantOK: true},
		{name: "sort mismatch", a: Null(SortInt), b: String("3")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.a.Unify(tt.b)
			assert.Equal(t, tt.wantOK, ok)
			if ok {
				assert.True(t, tt.want.Equal(got), "got %s want %s", got, tt.want)
			}
		})
	}
}

func TestValueString(t *testing.T) {
	assert.Equal(t, `"Eng"`, String("Eng").String())
	assert.Equal(t, "42", Int(42).String())
	assert.Equal(t, "2.5", Float(2.5).String())
	assert.Equal(t, "true", Bool(true).String())
	assert.Equal(t, "NULL", Null(SortString).String())
	assert.Equal(t, "20240101:Date", Const("Date", 20240101).String())
}

func TestValueConforms(t *testing.T) {
	assert.True(t, Int(1).Conforms())
	assert.False(t, Value{Sort: SortInt, Lit: "1"}.Conforms())
	assert.True(t, Null(SortFloat).Conforms())
	assert.True(t, Const("Date", "2024-01-01").Conforms())
	assert.False(t, Const("Blob", []byte("x")).Conforms())
	assert.False(t, Const("Date", nil).Conforms())
}
