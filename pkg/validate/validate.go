// Package validate checks instances and mappings against the equations and
// sorts of their schemas. Validation is pure: it reads its inputs and never
// changes them, so repeated calls on unmodified inputs agree.
package validate

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/mesh-intelligence/catmig/pkg/types"
)

// Option configures a validation run.
type Option func(*options)

type options struct {
	exhaustive bool
}

// Exhaustive makes validation report every violation, joined with
// errors.Join, instead of stopping at the first.
func Exhaustive() Option {
	return func(o *options) { o.exhaustive = true }
}

func collect(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Instance checks that i is an instance of s: every edge function is total
// and both sides of every equation agree on every element. It returns the
// first *types.ConsistencyError unless Exhaustive is given.
func Instance(s *types.Schema, i *types.Instance, opts ...Option) error {
	o := collect(opts)
	if i.Schema() != s {
		return fmt.Errorf("%w: instance %s is over %s, not %s", types.ErrInstance, i.Name(), i.Schema().Name(), s.Name())
	}
	if err := i.CheckComplete(); err != nil {
		return err
	}

	var errs []error
	for _, eq := range s.Equations() {
		node := s.NodeAt(eq.LHS.Start)
		for _, e := range i.Carrier(eq.LHS.Start) {
			l, err := i.ApplyPath(eq.LHS, e)
			if err != nil {
				return err
			}
			r, err := i.ApplyPath(eq.RHS, e)
			if err != nil {
				return err
			}
			if l.Equal(r) {
				continue
			}
			cerr := &types.ConsistencyError{
				Equation: s.FormatEquation(eq),
				Node:     node.Name,
				Element:  e,
				LHS:      l,
				RHS:      r,
			}
			if !o.exhaustive {
				return cerr
			}
			errs = append(errs, cerr)
		}
	}
	return errors.Join(errs...)
}

// Typing checks that every attribute value belongs to the edge's declared
// sort. Built-in sorts also require the matching Go literal type.
func Typing(i *types.Instance, opts ...Option) error {
	o := collect(opts)
	s := i.Schema()
	var errs []error
	for _, ed := range s.Edges() {
		if !ed.IsAttribute() {
			continue
		}
		for _, e := range i.Carrier(ed.Source) {
			v, ok := i.Attr(ed.ID, e)
			if !ok {
				continue
			}
			var got string
			switch {
			case v.Sort != ed.Sort:
				got = string(v.Sort)
			case !v.Conforms():
				got = fmt.Sprintf("%s literal %v", goType(v.Lit), v.Lit)
			default:
				continue
			}
			terr := &types.TypeMismatchError{Edge: ed.Name, Element: e, Want: ed.Sort, Got: got}
			if !o.exhaustive {
				return terr
			}
			errs = append(errs, terr)
		}
	}
	return errors.Join(errs...)
}

func goType(v any) string {
	if v == nil {
		return "nil"
	}
	return reflect.TypeOf(v).String()
}

// Mapping checks that m is complete and preserves equations: for every
// equation p = q of the source, F(p) and F(q) are equivalent in the target.
// Equivalence is decided over the target's equation sides extended with the
// images of the source's edges and equations.
func Mapping(m *types.Mapping, opts ...Option) error {
	o := collect(opts)
	if err := m.CheckComplete(); err != nil {
		return err
	}
	src, tgt := m.Source(), m.Target()
	eqs := src.Equations()

	extra := make([]types.Path, 0, len(src.Edges())+2*len(eqs))
	for _, e := range src.Edges() {
		img, _ := m.EdgeImage(e.ID)
		extra = append(extra, img)
	}
	for _, eq := range eqs {
		extra = append(extra, m.Image(eq.LHS), m.Image(eq.RHS))
	}
	closure := tgt.Congruence(extra...)

	var errs []error
	for _, eq := range eqs {
		l, r := m.Image(eq.LHS), m.Image(eq.RHS)
		if closure.Equivalent(l, r) {
			continue
		}
		merr := &types.MappingEquationError{
			Equation: src.FormatEquation(eq),
			LHS:      tgt.FormatPath(l),
			RHS:      tgt.FormatPath(r),
		}
		if !o.exhaustive {
			return merr
		}
		errs = append(errs, merr)
	}
	return errors.Join(errs...)
}

// All runs Instance then Typing.
func All(s *types.Schema, i *types.Instance, opts ...Option) error {
	if err := Instance(s, i, opts...); err != nil {
		return err
	}
	return Typing(i, opts...)
}
