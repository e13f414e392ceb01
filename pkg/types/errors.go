package types

import (
	"errors"
	"fmt"
)

// Error categories. Every sentinel below wraps exactly one of these, so callers
// can test either the category or the specific failure with errors.Is.
var (
	ErrSchema    = errors.New("schema error")
	ErrInstance  = errors.New("instance error")
	ErrMapping   = errors.New("mapping error")
	ErrMigration = errors.New("migration error")
)

// Schema and typeside construction errors.
var (
	ErrDuplicateNode        = fmt.Errorf("%w: duplicate node", ErrSchema)
	ErrDuplicateEdge        = fmt.Errorf("%w: duplicate edge", ErrSchema)
	ErrDuplicateSort        = fmt.Errorf("%w: duplicate sort", ErrSchema)
	ErrUnknownNode          = fmt.Errorf("%w: unknown node", ErrSchema)
	ErrUnknownEdge          = fmt.Errorf("%w: unknown edge", ErrSchema)
	ErrUnknownSort          = fmt.Errorf("%w: unknown sort", ErrSchema)
	ErrPathTypeMismatch     = fmt.Errorf("%w: path type mismatch", ErrSchema)
	ErrEquationTypeMismatch = fmt.Errorf("%w: equation type mismatch", ErrSchema)
	ErrInvalidName          = fmt.Errorf("%w: name must not be empty", ErrSchema)
	ErrSchemaFrozen         = fmt.Errorf("%w: schema is frozen", ErrSchema)
	ErrSchemaNotFrozen      = fmt.Errorf("%w: schema is not frozen", ErrSchema)
	ErrTypesideSealed       = fmt.Errorf("%w: typeside is sealed", ErrSchema)
)

// Instance errors.
var (
	ErrDanglingElement    = fmt.Errorf("%w: dangling element", ErrInstance)
	ErrDuplicateElement   = fmt.Errorf("%w: duplicate element", ErrInstance)
	ErrIncompleteFunction = fmt.Errorf("%w: incomplete function", ErrInstance)
	ErrPathApplication    = fmt.Errorf("%w: path application failed", ErrInstance)
	ErrConsistency        = fmt.Errorf("%w: equation violated", ErrInstance)
	ErrEdgeKind           = fmt.Errorf("%w: wrong edge kind", ErrInstance)
	ErrInstanceSealed     = fmt.Errorf("%w: instance is sealed", ErrInstance)
)

// Mapping errors.
var (
	ErrMappingEquationViolated = fmt.Errorf("%w: equation not preserved", ErrMapping)
	ErrTypeMismatch            = fmt.Errorf("%w: type mismatch", ErrMapping)
	ErrUnmappedNode            = fmt.Errorf("%w: node is not mapped", ErrMapping)
	ErrIncompleteMapping       = fmt.Errorf("%w: mapping is incomplete", ErrMapping)
	ErrSchemaMismatch          = fmt.Errorf("%w: schemas do not compose", ErrMapping)
	ErrAlreadyMapped           = fmt.Errorf("%w: already mapped", ErrMapping)
)

// Migration errors.
var (
	ErrSigmaUnsatisfiable = fmt.Errorf("%w: sigma unsatisfiable", ErrMigration)
	ErrSigmaIncomplete    = fmt.Errorf("%w: sigma needs free generation", ErrMigration)
)

// ConsistencyError reports the first element on which the two sides of an
// equation disagree.
type ConsistencyError struct {
	Equation string // rendered equation, e.g. "A.f.g = A.h"
	Node     string
	Element  Element
	LHS      Datum
	RHS      Datum
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("%v: %s at %s[%d]: %s != %s",
		ErrConsistency, e.Equation, e.Node, e.Element, e.LHS, e.RHS)
}

func (e *ConsistencyError) Unwrap() error { return ErrConsistency }

// IncompleteFunctionError names an element with no value for an outgoing edge.
type IncompleteFunctionError struct {
	Node    string
	Element Element
	Edge    string
}

func (e *IncompleteFunctionError) Error() string {
	return fmt.Sprintf("%v: %s[%d] has no value for %s", ErrIncompleteFunction, e.Node, e.Element, e.Edge)
}

func (e *IncompleteFunctionError) Unwrap() error { return ErrIncompleteFunction }

// MappingEquationError names a source equation whose images are not
// equivalent in the target schema.
type MappingEquationError struct {
	Equation string
	LHS      string // image of the left side in the target
	RHS      string
}

func (e *MappingEquationError) Error() string {
	return fmt.Sprintf("%v: %s maps to %s != %s", ErrMappingEquationViolated, e.Equation, e.LHS, e.RHS)
}

func (e *MappingEquationError) Unwrap() error { return ErrMappingEquationViolated }

// TypeMismatchError reports a value or path whose sort differs from the
// declared one. Element is zero when the mismatch is structural (a mapping
// image rather than data).
type TypeMismatchError struct {
	Edge    string
	Element Element
	Want    Sort
	Got     string
}

func (e *TypeMismatchError) Error() string {
	if e.Element == 0 {
		return fmt.Sprintf("%v: %s expects %s, got %s", ErrTypeMismatch, e.Edge, e.Want, e.Got)
	}
	return fmt.Sprintf("%v: %s at element %d expects %s, got %s", ErrTypeMismatch, e.Edge, e.Element, e.Want, e.Got)
}

func (e *TypeMismatchError) Unwrap() error { return ErrTypeMismatch }

// Origin identifies an element of a Σ input: a seeded copy (Edge == "") or
// an intermediate generated for step Step of the image of Edge at Element.
type Origin struct {
	Node    string
	Element Element
	Edge    string
	Step    int
}

func (o Origin) String() string {
	if o.Edge == "" {
		return fmt.Sprintf("%s[%d]", o.Node, o.Element)
	}
	return fmt.Sprintf("%s[%d].%s#%d", o.Node, o.Element, o.Edge, o.Step)
}

// SigmaUnsatisfiableError reports two original elements that Σ must identify
// but whose attribute constants clash.
type SigmaUnsatisfiableError struct {
	First  Origin
	Second Origin
	Edge   string // target attribute edge carrying the clash
	Values [2]Value
}

func (e *SigmaUnsatisfiableError) Error() string {
	return fmt.Sprintf("%v: %s and %s are identified but %s is %s and %s",
		ErrSigmaUnsatisfiable, e.First, e.Second, e.Edge, e.Values[0], e.Values[1])
}

func (e *SigmaUnsatisfiableError) Unwrap() error { return ErrSigmaUnsatisfiable }

// SigmaIncompleteError reports an output class with no value for a foreign
// key that only free generation could supply.
type SigmaIncompleteError struct {
	Node    string
	Edge    string
	Members []Origin
}

func (e *SigmaIncompleteError) Error() string {
	return fmt.Sprintf("%v: class %v of %s has no value for %s", ErrSigmaIncomplete, e.Members, e.Node, e.Edge)
}

func (e *SigmaIncompleteError) Unwrap() error { return ErrSigmaIncomplete }
