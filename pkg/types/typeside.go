package types

import (
	"fmt"
	"sync"
)

// Sort names a primitive value type usable as an attribute codomain.
type Sort string

// Built-in sorts registered by DefaultTypeside.
const (
	SortString Sort = "String"
	SortInt    Sort = "Int"
	SortFloat  Sort = "Float"
	SortBool   Sort = "Bool"
)

// Typeside is the registry of primitive sorts shared by schemas. It is open
// for registration until the first schema built on it is frozen; after that
// it is read-only and safe for concurrent use.
type Typeside struct {
	mu     sync.RWMutex
	sorts  []Sort
	index  map[Sort]struct{}
	sealed bool
}

// NewTypeside returns an empty typeside.
func NewTypeside() *Typeside {
	return &Typeside{index: make(map[Sort]struct{})}
}

// DefaultTypeside returns a typeside with String, Int, Float and Bool.
func DefaultTypeside() *Typeside {
	ts := NewTypeside()
	for _, s := range []Sort{SortString, SortInt, SortFloat, SortBool} {
		ts.sorts = append(ts.sorts, s)
		ts.index[s] = struct{}{}
	}
	return ts
}

// Register adds a sort. Returns ErrDuplicateSort if the name is taken and
// ErrTypesideSealed once a schema using the typeside has been frozen.
func (t *Typeside) Register(name string) (Sort, error) {
	if name == "" {
		return "", ErrInvalidName
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.sealed {
		return "", ErrTypesideSealed
	}
	s := Sort(name)
	if _, ok := t.index[s]; ok {
		return "", fmt.Errorf("%w: %q", ErrDuplicateSort, name)
	}
	t.sorts = append(t.sorts, s)
	t.index[s] = struct{}{}
	return s, nil
}

// Lookup returns the sort with the given name or ErrUnknownSort.
func (t *Typeside) Lookup(name string) (Sort, error) {
	s := Sort(name)
	if !t.Has(s) {
		return "", fmt.Errorf("%w: %q", ErrUnknownSort, name)
	}
	return s, nil
}

// Has reports whether s is registered.
func (t *Typeside) Has(s Sort) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.index[s]
	return ok
}

// Sorts returns the registered sorts in registration order.
func (t *Typeside) Sorts() []Sort {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Sort, len(t.sorts))
	copy(out, t.sorts)
	return out
}

func (t *Typeside) seal() {
	t.mu.Lock()
	t.sealed = true
	t.mu.Unlock()
}
