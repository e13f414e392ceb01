package migrate

import (
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mesh-intelligence/catmig/pkg/types"
	"github.com/mesh-intelligence/catmig/pkg/validate"
)

// deltaCell is one computed edge value of a Δ result.
type deltaCell struct {
	edge  types.EdgeID
	src   types.Element
	datum types.Datum
}

type deltaNode struct {
	elems []types.Element
	cells []deltaCell
}

// Delta computes Δ_F(I) for F: S → T and an instance I of T. The carrier of
// each S node n is the carrier of F(n) in I, element ids included, and each
// S edge e is evaluated as the path F(e) in I. Source nodes are computed in
// parallel, bounded by WithParallelism.
func Delta(f *types.Mapping, i *types.Instance, opts ...Option) (*types.Instance, error) {
	o := collect(opts)
	if i.Schema() != f.Target() {
		return nil, fmt.Errorf("%w: delta %s needs an instance of %s, got %s",
			types.ErrSchemaMismatch, f.Name(), f.Target().Name(), i.Schema().Name())
	}
	if err := validate.Mapping(f); err != nil {
		return nil, fmt.Errorf("delta %s: %w", f.Name(), err)
	}
	if err := validate.All(f.Target(), i); err != nil {
		return nil, fmt.Errorf("delta %s: %w", f.Name(), err)
	}
	i.Seal()

	src := f.Source()
	nodes := src.Nodes()
	results := make([]deltaNode, len(nodes))

	var g errgroup.Group
	g.SetLimit(o.parallelism)
	for _, n := range nodes {
		g.Go(func() error {
			res, err := deltaNodeOf(f, i, n.ID)
			if err != nil {
				return err
			}
			results[n.ID] = res
			o.logger.Debug("delta node",
				zap.String("node", n.Name),
				zap.Int("elements", len(res.elems)),
				zap.Int("cells", len(res.cells)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("delta %s: %w", f.Name(), err)
	}

	out, err := types.NewInstance(fmt.Sprintf("delta_%s(%s)", f.Name(), i.Name()), src)
	if err != nil {
		return nil, err
	}
	for n, res := range results {
		for _, e := range res.elems {
			if err := out.Adopt(types.NodeID(n), e); err != nil {
				return nil, fmt.Errorf("delta %s: %w", f.Name(), err)
			}
		}
	}
	for _, res := range results {
		for _, c := range res.cells {
			var err error
			if c.datum.IsValue {
				err = out.SetAttr(c.edge, c.src, c.datum.Value)
			} else {
				err = out.Set(c.edge, c.src, c.datum.Elem)
			}
			if err != nil {
				return nil, fmt.Errorf("delta %s: %w", f.Name(), err)
			}
		}
	}
	return out, nil
}

func deltaNodeOf(f *types.Mapping, i *types.Instance, n types.NodeID) (deltaNode, error) {
	img, _ := f.NodeImage(n)
	res := deltaNode{elems: i.Carrier(img)}
	for _, ed := range f.Source().OutEdges(n) {
		path, _ := f.EdgeImage(ed.ID)
		for _, e := range res.elems {
			d, err := i.ApplyPath(path, e)
			if err != nil {
				return deltaNode{}, err
			}
			res.cells = append(res.cells, deltaCell{edge: ed.ID, src: e, datum: d})
		}
	}
	return res, nil
}
