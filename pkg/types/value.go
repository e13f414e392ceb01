package types

import (
	"fmt"
	"reflect"
	"strconv"
)

// Value is a typeside constant: a literal tagged with its sort. Compare
// values with Equal. A null value (Null) belongs to its sort and stands for an
// unknown constant; Σ unifies it with any constant of the same sort.
type Value struct {
	Sort Sort
	Lit  any // string, int64, float64, bool, or a comparable custom literal
	null bool
}

// String returns a String constant.
func String(s string) Value { return Value{Sort: SortString, Lit: s} }

// Int returns an Int constant.
func Int(i int64) Value { return Value{Sort: SortInt, Lit: i} }

// Float returns a Float constant.
func Float(f float64) Value { return Value{Sort: SortFloat, Lit: f} }

// Bool returns a Bool constant.
func Bool(b bool) Value { return Value{Sort: SortBool, Lit: b} }

// Const returns a constant of a custom sort. lit must be comparable.
func Const(sort Sort, lit any) Value { return Value{Sort: sort, Lit: lit} }

// Null returns the labelled null of sort.
func Null(sort Sort) Value { return Value{Sort: sort, null: true} }

// IsNull reports whether v is a labelled null.
func (v Value) IsNull() bool { return v.null }

// Equal reports whether v and w are the same constant (or the same null).
// Literals of non-comparable Go types are never equal.
func (v Value) Equal(w Value) bool {
	if v.Sort != w.Sort || v.null != w.null {
		return false
	}
	if v.null {
		return true
	}
	if !comparableLit(v.Lit) || !comparableLit(w.Lit) {
		return false
	}
	return v.Lit == w.Lit
}

func comparableLit(lit any) bool {
	return lit == nil || reflect.TypeOf(lit).Comparable()
}

// Unify returns the value both v and w stand for. Nulls unify with anything
// of the same sort; two constants unify only when equal.
func (v Value) Unify(w Value) (Value, bool) {
	switch {
	case v.Sort != w.Sort:
		return Value{}, false
	case v.null:
		return w, true
	case w.null:
		return v, true
	default:
		return v, v.Equal(w)
	}
}

// Conforms reports whether the literal's Go type matches a built-in sort.
// Custom sorts accept any non-nil comparable literal.
func (v Value) Conforms() bool {
	if v.null {
		return true
	}
	switch v.Sort {
	case SortString:
		_, ok := v.Lit.(string)
		return ok
	case SortInt:
		_, ok := v.Lit.(int64)
		return ok
	case SortFloat:
		_, ok := v.Lit.(float64)
		return ok
	case SortBool:
		_, ok := v.Lit.(bool)
		return ok
	default:
		return v.Lit != nil && comparableLit(v.Lit)
	}
}

func (v Value) String() string {
	if v.null {
		return "NULL"
	}
	switch lit := v.Lit.(type) {
	case string:
		return strconv.Quote(lit)
	case int64:
		return strconv.FormatInt(lit, 10)
	case float64:
		return strconv.FormatFloat(lit, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(lit)
	default:
		return fmt.Sprintf("%v:%s", lit, v.Sort)
	}
}
