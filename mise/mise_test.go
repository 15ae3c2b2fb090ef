package mise

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/ngailapdi/isomesh"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/spatial/r3"
)

const testBox = 1.1

// refine runs the query/update loop to completion and returns the number of
// non-empty queries.
func refine(t *testing.T, s *Sampler, f isomesh.SDF3) (levels int) {
	t.Helper()
	R := s.Resolution()
	for pts := s.Query(); len(pts) > 0; pts = s.Query() {
		levels++
		if levels > 64 {
			t.Fatal("refinement did not terminate")
		}
		vals := make([]float64, len(pts))
		for i, p := range pts {
			vals[i] = f.Evaluate(isomesh.LatticeToBox(p, R, testBox))
		}
		if err := s.Update(pts, vals); err != nil {
			t.Fatal(err)
		}
	}
	return levels
}

type constant float64

func (c constant) Evaluate(r3.Vec) float64 { return float64(c) }
func (c constant) Bounds() r3.Box          { return r3.Box{} }

func TestFirstQuery(t *testing.T) {
	for _, res0 := range []int{1, 4, 7} {
		s := New(res0, 2, 0)
		got := len(s.Query())
		want := (res0 + 1) * (res0 + 1) * (res0 + 1)
		if got != want {
			t.Errorf("res0=%d: first query returned %d points, want %d", res0, got, want)
		}
	}
}

func TestQueryRepeatable(t *testing.T) {
	s := New(3, 1, 0)
	a := s.Query()
	b := s.Query()
	if diff := cmp.Diff(a, b); diff != "" {
		t.Error("repeated query differs:", diff)
	}
}

func TestTermination(t *testing.T) {
	fields := map[string]isomesh.SDF3{
		"sphere":  isomesh.Sphere(0.3),
		"torus":   isomesh.Torus(0.3, 0.1),
		"plane":   isomesh.Plane(r3.Vec{X: 0.0123}, r3.Vec{X: 1, Y: 2, Z: 3}),
		"outside": constant(10),
		"inside":  constant(-10),
	}
	for name, f := range fields {
		for steps := 0; steps <= 3; steps++ {
			s := New(4, steps, 0)
			levels := refine(t, s, f)
			if levels > steps+1 {
				t.Errorf("%s steps=%d: %d levels", name, steps, levels)
			}
			if !s.Done() {
				t.Errorf("%s steps=%d: not done after empty query", name, steps)
			}
			if s.Level() > steps {
				t.Errorf("%s steps=%d: level %d", name, steps, s.Level())
			}
		}
	}
}

func TestDenseShape(t *testing.T) {
	for _, tc := range []struct{ res0, steps int }{{1, 0}, {2, 3}, {5, 1}, {4, 2}} {
		s := New(tc.res0, tc.steps, 0)
		refine(t, s, isomesh.Sphere(0.4))
		g, err := s.ToDense()
		if err != nil {
			t.Fatal(err)
		}
		n := tc.res0<<tc.steps + 1
		if g.N != n || len(g.Data) != n*n*n {
			t.Errorf("res0=%d steps=%d: got N=%d len=%d, want N=%d", tc.res0, tc.steps, g.N, len(g.Data), n)
		}
		if g.Shape() != [3]int{n, n, n} {
			t.Errorf("bad shape %v", g.Shape())
		}
	}
}

func TestConstantField(t *testing.T) {
	s := New(4, 3, 0)
	if levels := refine(t, s, constant(5)); levels != 1 {
		t.Fatalf("constant field took %d levels", levels)
	}
	if len(s.BoundaryCells()) != 0 {
		t.Error("constant field has boundary cells")
	}
	if s.Evaluated() != 125 {
		t.Errorf("evaluated %d points, want 125", s.Evaluated())
	}
	g, err := s.ToDense()
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range g.Data {
		if v != 5 && v != FillValue {
			t.Fatalf("dense value %d is %g", i, v)
		}
	}
}

func bruteForceBoundary(f isomesh.SDF3, R int, threshold float64) []isomesh.V3i {
	n := R + 1
	vals := make([]float64, n*n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			for k := 0; k < n; k++ {
				vals[(i*n+j)*n+k] = f.Evaluate(isomesh.LatticeToBox(isomesh.V3i{i, j, k}, R, testBox))
			}
		}
	}
	var cells []isomesh.V3i
	for i := 0; i < R; i++ {
		for j := 0; j < R; j++ {
			for k := 0; k < R; k++ {
				o := isomesh.V3i{i, j, k}
				lo, hi := math.Inf(1), math.Inf(-1)
				for _, off := range cornerOffsets {
					c := o.Add(off)
					v := vals[(c[0]*n+c[1])*n+c[2]]
					lo, hi = math.Min(lo, v), math.Max(hi, v)
				}
				if lo <= threshold && threshold <= hi {
					cells = append(cells, o)
				}
			}
		}
	}
	return cells
}

func lessV3i(a, b isomesh.V3i) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

func TestBoundaryMatchesBruteForce(t *testing.T) {
	plane := isomesh.Plane(r3.Vec{X: 0.0123, Y: -0.0071}, r3.Vec{X: 1, Y: 2, Z: 3})
	for _, threshold := range []float64{0, 0.1037} {
		s := New(4, 3, threshold)
		refine(t, s, plane)
		want := bruteForceBoundary(plane, s.Resolution(), threshold)
		if len(want) == 0 {
			t.Fatal("plane does not cross lattice")
		}
		got := s.BoundaryCells()
		if diff := cmp.Diff(want, got, cmpopts.SortSlices(lessV3i)); diff != "" {
			t.Errorf("threshold %g: boundary cells differ (-brute +sampler):\n%s", threshold, diff)
		}
	}
}

func TestDenseSignConsistent(t *testing.T) {
	plane := isomesh.Plane(r3.Vec{X: 0.031}, r3.Vec{X: -1, Y: 0.5, Z: 0.25})
	s := New(3, 3, 0)
	refine(t, s, plane)
	g, err := s.ToDense()
	if err != nil {
		t.Fatal(err)
	}
	R := s.Resolution()
	for i := 0; i <= R; i++ {
		for j := 0; j <= R; j++ {
			for k := 0; k <= R; k++ {
				v := isomesh.V3i{i, j, k}
				want := plane.Evaluate(isomesh.LatticeToBox(v, R, testBox))
				got := g.At(v)
				if s.cache.Known(v) {
					if got != want {
						t.Fatalf("known value at %v altered: got %g want %g", v, got, want)
					}
					continue
				}
				if math.Abs(got) != FillValue {
					t.Fatalf("unknown point %v filled with %g", v, got)
				}
				if (got > 0) != (want > 0) {
					t.Fatalf("fill at %v has wrong sign: field %g", v, want)
				}
			}
		}
	}
}

func TestSparseEvaluation(t *testing.T) {
	s := New(8, 3, 0)
	refine(t, s, isomesh.Sphere(0.35))
	n := s.Resolution() + 1
	if s.Evaluated()*2 > n*n*n {
		t.Errorf("evaluated %d of %d lattice points", s.Evaluated(), n*n*n)
	}
	if len(s.BoundaryCells()) == 0 {
		t.Error("no boundary cells found for sphere")
	}
}

func TestUpdateErrors(t *testing.T) {
	s := New(2, 1, 0)
	pts := s.Query()
	vals := make([]float64, len(pts))

	err := s.Update(pts, vals[1:])
	if !errors.Is(err, isomesh.ErrMismatchedLength) {
		t.Errorf("mismatched length: got %v", err)
	}
	err = s.Update(pts[1:], vals[1:])
	if !errors.Is(err, ErrIncomplete) {
		t.Errorf("partial update: got %v", err)
	}
	bad := append([]isomesh.V3i{{0, 0, s.Resolution() + 1}}, pts[1:]...)
	err = s.Update(bad, vals)
	if !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("out of bounds: got %v", err)
	}
	dup := append([]isomesh.V3i{pts[1]}, pts[1:]...)
	err = s.Update(dup, vals)
	if !errors.Is(err, ErrKnown) {
		t.Errorf("duplicate coordinate: got %v", err)
	}
	if s.Evaluated() != 0 {
		t.Fatalf("failed updates recorded %d values", s.Evaluated())
	}
	if _, err := s.ToDense(); !errors.Is(err, ErrNotDone) {
		t.Errorf("dense before done: got %v", err)
	}
	for i := range vals {
		vals[i] = float64(i%2) - 0.5
	}
	if err := s.Update(pts, vals); err != nil {
		t.Fatal(err)
	}
	err = s.Update(pts[:1], vals[:1])
	if !errors.Is(err, ErrKnown) {
		t.Errorf("known coordinate: got %v", err)
	}
}

func TestCacheWriteOnce(t *testing.T) {
	c := NewCache(0)
	v := isomesh.V3i{1, 2, 3}
	if c.Known(v) {
		t.Fatal("empty cache knows coordinate")
	}
	if err := c.Set(v, 1.5); err != nil {
		t.Fatal(err)
	}
	if err := c.Set(v, 2); !errors.Is(err, ErrKnown) {
		t.Fatalf("second set: got %v", err)
	}
	if got, ok := c.Get(v); !ok || got != 1.5 {
		t.Errorf("got %g %v", got, ok)
	}
}
