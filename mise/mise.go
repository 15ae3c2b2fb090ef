// Package mise implements multiresolution isosurface extraction: an adaptive
// sampler that evaluates a scalar field only at the corners of lattice cells
// that may contain the isosurface, doubling the lattice resolution at every
// level until the final resolution is reached.
//
// Usage is a loop driven by the caller, who owns the field oracle:
//
//	s := mise.New(32, 2, 0)
//	for pts := s.Query(); len(pts) > 0; pts = s.Query() {
//		values := evaluate(pts)
//		if err := s.Update(pts, values); err != nil {
//			return err
//		}
//	}
//	grid, err := s.ToDense()
package mise

import (
	"math"

	"github.com/ngailapdi/isomesh"
	"github.com/pkg/errors"
)

// FillValue is the magnitude written by ToDense to lattice points that were
// never evaluated. Its sign matches the side of the threshold the enclosing
// inactive cell lies on.
const FillValue = 1e6

var (
	// ErrIncomplete is returned by Update when the values received leave a
	// corner of a cell awaiting classification unknown.
	ErrIncomplete = errors.New("cell corners left unevaluated")
	// ErrOutOfBounds is returned when a coordinate lies outside the lattice.
	ErrOutOfBounds = errors.New("coordinate outside lattice")
	// ErrNotDone is returned by ToDense while refinement is pending.
	ErrNotDone = errors.New("refinement not finished")
)

// cell is a lattice cube at refinement level lvl. Its origin is addressed at
// the final resolution so its side is 1<<(steps-lvl).
type cell struct {
	origin isomesh.V3i
	lvl    int
}

// region is a cell classified as not crossing the threshold.
type region struct {
	origin isomesh.V3i
	size   int
	above  bool
}

// cornerOffsets in marching cubes order, scaled by cell size on use.
var cornerOffsets = [8]isomesh.V3i{
	{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0},
	{0, 0, 1}, {1, 0, 1}, {1, 1, 1}, {0, 1, 1},
}

// Sampler drives adaptive refinement. A Sampler is owned by a single
// extraction and is not safe for concurrent use.
type Sampler struct {
	res0      int
	steps     int
	threshold float64
	lvl       int
	cache     *Cache
	// todo holds the cells of the current level awaiting classification.
	todo     []cell
	inactive []region
	boundary []cell
	done     bool
}

// New returns a Sampler over a lattice with res0 cells per axis at the
// coarsest level that is refined steps times. Cells whose corner values
// satisfy min <= threshold <= max are refined.
func New(res0, steps int, threshold float64) *Sampler {
	if res0 < 1 {
		panic("res0 must be at least 1")
	}
	if steps < 0 || steps > 16 {
		panic("steps must be in [0, 16]")
	}
	if math.IsNaN(threshold) {
		panic("NaN threshold")
	}
	s := &Sampler{
		res0:      res0,
		steps:     steps,
		threshold: threshold,
		cache:     NewCache((res0 + 1) * (res0 + 1) * (res0 + 1)),
		todo:      make([]cell, 0, res0*res0*res0),
	}
	size := s.cellSize(0)
	for i := 0; i < res0; i++ {
		for j := 0; j < res0; j++ {
			for k := 0; k < res0; k++ {
				s.todo = append(s.todo, cell{origin: isomesh.V3i{i, j, k}.Scale(size)})
			}
		}
	}
	return s
}

// Resolution returns the number of cells per axis at the final level.
func (s *Sampler) Resolution() int { return s.res0 << s.steps }

// Level returns the current refinement level, starting at 0.
func (s *Sampler) Level() int { return s.lvl }

// Threshold returns the isovalue the sampler refines around.
func (s *Sampler) Threshold() float64 { return s.threshold }

// Done reports whether refinement has terminated.
func (s *Sampler) Done() bool { return s.done }

// Evaluated returns the number of lattice points with a known value.
func (s *Sampler) Evaluated() int { return s.cache.Len() }

func (s *Sampler) cellSize(lvl int) int { return 1 << (s.steps - lvl) }

func (s *Sampler) corner(c cell, i int) isomesh.V3i {
	return c.origin.Add(cornerOffsets[i].Scale(s.cellSize(c.lvl)))
}

// Query returns the lattice coordinates, at final resolution, that must be
// evaluated before the current level can be classified. Each coordinate is
// listed once. Query returns nil once refinement has terminated. Calling
// Query again without Update returns the same coordinates.
func (s *Sampler) Query() []isomesh.V3i {
	for !s.done {
		var pts []isomesh.V3i
		seen := make(map[isomesh.V3i]struct{})
		for _, c := range s.todo {
			for i := range cornerOffsets {
				v := s.corner(c, i)
				if s.cache.Known(v) {
					continue
				}
				if _, ok := seen[v]; ok {
					continue
				}
				seen[v] = struct{}{}
				pts = append(pts, v)
			}
		}
		if len(pts) > 0 {
			return pts
		}
		// Every corner at this level was evaluated by a coarser level.
		s.classify()
	}
	return nil
}

// Update records the field values at coords, which are usually the result
// of the last Query, and classifies the current level. Either all values are
// recorded or, on error, none are.
func (s *Sampler) Update(coords []isomesh.V3i, values []float64) error {
	if len(coords) != len(values) {
		return errors.Wrapf(isomesh.ErrMismatchedLength, "update with %d coordinates and %d values", len(coords), len(values))
	}
	if s.done {
		return errors.New("update after refinement finished")
	}
	R := s.Resolution()
	batch := make(map[isomesh.V3i]struct{}, len(coords))
	for _, v := range coords {
		if !v.InCube(R) {
			return errors.Wrapf(ErrOutOfBounds, "coordinate %v at resolution %d", v, R)
		}
		if _, ok := batch[v]; ok || s.cache.Known(v) {
			return errors.Wrapf(ErrKnown, "update %v", v)
		}
		batch[v] = struct{}{}
	}
	for _, c := range s.todo {
		for i := range cornerOffsets {
			v := s.corner(c, i)
			if _, ok := batch[v]; !ok && !s.cache.Known(v) {
				return errors.Wrapf(ErrIncomplete, "level %d corner %v", s.lvl, v)
			}
		}
	}
	for i, v := range coords {
		// Cannot fail: duplicates and known coordinates were rejected above.
		if err := s.cache.Set(v, values[i]); err != nil {
			return err
		}
	}
	s.classify()
	return nil
}

// classify splits the current level's cells into inactive regions, terminal
// boundary cells and children to refine at the next level. All corners of
// the cells in todo must be known.
func (s *Sampler) classify() {
	var next []cell
	size := s.cellSize(s.lvl)
	for _, c := range s.todo {
		lo, hi := math.Inf(1), math.Inf(-1)
		for i := range cornerOffsets {
			val, _ := s.cache.Get(s.corner(c, i))
			lo = math.Min(lo, val)
			hi = math.Max(hi, val)
		}
		active := lo <= s.threshold && s.threshold <= hi
		switch {
		case !active:
			s.inactive = append(s.inactive, region{origin: c.origin, size: size, above: lo > s.threshold})
		case c.lvl == s.steps:
			s.boundary = append(s.boundary, c)
		default:
			half := size / 2
			for _, off := range cornerOffsets {
				next = append(next, cell{origin: c.origin.Add(off.Scale(half)), lvl: c.lvl + 1})
			}
		}
	}
	s.todo = next
	if len(next) == 0 {
		s.done = true
		return
	}
	s.lvl++
}

// BoundaryCells returns the origins of the final resolution cells whose
// corners straddle the threshold. It is complete once Done reports true.
func (s *Sampler) BoundaryCells() []isomesh.V3i {
	origins := make([]isomesh.V3i, len(s.boundary))
	for i, c := range s.boundary {
		origins[i] = c.origin
	}
	return origins
}

// ToDense returns the complete lattice at final resolution. Points never
// evaluated get +FillValue when the cell that was discarded around them lies
// above the threshold and -FillValue when it lies below. Known values are
// written last and are never altered.
func (s *Sampler) ToDense() (*DenseGrid, error) {
	if !s.done {
		return nil, errors.Wrapf(ErrNotDone, "at level %d of %d", s.lvl, s.steps)
	}
	g := NewDenseGrid(s.Resolution() + 1)
	// Regions were recorded coarse to fine.
	for _, r := range s.inactive {
		fill := -FillValue
		if r.above {
			fill = FillValue
		}
		o := r.origin
		for i := o[0]; i <= o[0]+r.size; i++ {
			for j := o[1]; j <= o[1]+r.size; j++ {
				for k := o[2]; k <= o[2]+r.size; k++ {
					g.Set(isomesh.V3i{i, j, k}, fill)
				}
			}
		}
	}
	s.cache.Each(func(v isomesh.V3i, val float64) {
		g.Set(v, val)
	})
	return g, nil
}
