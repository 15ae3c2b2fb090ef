package isomesh

import (
	"math"

	"github.com/ngailapdi/isomesh/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

// Analytic signed distance functions. They act as synthetic oracles for the
// extraction pipeline and as ground truth for the evaluator.

// SDF3 is the interface to a point-wise 3d signed distance function.
type SDF3 interface {
	// Evaluate returns the minimum distance of the surface to p. The
	// distance is negative if p is contained within the solid.
	Evaluate(p r3.Vec) float64
	// Bounds returns the bounding box that completely contains the solid.
	Bounds() r3.Box
}

// Batch adapts an SDF3 to the batched Field interface.
func Batch(s SDF3) Field {
	return FieldFunc(s.Evaluate)
}

type sphere struct {
	radius float64
	bb     r3.Box
}

// Sphere returns an SDF3 for a sphere centered at the origin.
func Sphere(radius float64) SDF3 {
	if radius <= 0 {
		panic("radius <= 0")
	}
	d := d3.Elem(radius)
	return &sphere{
		radius: radius,
		bb:     r3.Box{Min: r3.Scale(-1, d), Max: d},
	}
}

// Evaluate returns the minimum distance to a sphere.
func (s *sphere) Evaluate(p r3.Vec) float64 {
	return r3.Norm(p) - s.radius
}

func (s *sphere) Bounds() r3.Box { return s.bb }

type box struct {
	half  r3.Vec
	round float64
	bb    r3.Box
}

// Box returns an SDF3 for a box centered at the origin. Corners
// are rounded for round > 0.
func Box(size r3.Vec, round float64) SDF3 {
	if d3.LTEZero(size) {
		panic("size <= 0")
	}
	if round < 0 {
		panic("round < 0")
	}
	half := r3.Scale(0.5, size)
	return &box{
		half:  r3.Sub(half, d3.Elem(round)),
		round: round,
		bb:    r3.Box{Min: r3.Scale(-1, half), Max: half},
	}
}

// Evaluate returns the minimum distance to a box.
func (s *box) Evaluate(p r3.Vec) float64 {
	d := r3.Sub(d3.AbsElem(p), s.half)
	outside := r3.Norm(d3.MaxElem(d, r3.Vec{}))
	inside := math.Min(d3.Max(d), 0)
	return outside + inside - s.round
}

func (s *box) Bounds() r3.Box { return s.bb }

type torus struct {
	major, minor float64
	bb           r3.Box
}

// Torus returns an SDF3 for a torus lying on the XY plane. major is the
// distance from the origin to the tube center and minor the tube radius.
func Torus(major, minor float64) SDF3 {
	if minor <= 0 || major <= minor {
		panic("invalid torus radii")
	}
	ext := r3.Vec{X: major + minor, Y: major + minor, Z: minor}
	return &torus{
		major: major,
		minor: minor,
		bb:    r3.Box{Min: r3.Scale(-1, ext), Max: ext},
	}
}

func (s *torus) Evaluate(p r3.Vec) float64 {
	q := math.Hypot(p.X, p.Y) - s.major
	return math.Hypot(q, p.Z) - s.minor
}

func (s *torus) Bounds() r3.Box { return s.bb }

type plane struct {
	n      r3.Vec
	offset float64
}

// Plane returns the signed distance to the plane with the given normal passing
// through point a. Points on the side the normal points to are positive.
// The bounding box is infinite.
func Plane(a, normal r3.Vec) SDF3 {
	n := r3.Unit(normal)
	if math.IsNaN(n.X) {
		panic("zero plane normal")
	}
	return &plane{n: n, offset: r3.Dot(n, a)}
}

func (s *plane) Evaluate(p r3.Vec) float64 {
	return r3.Dot(s.n, p) - s.offset
}

func (s *plane) Bounds() r3.Box {
	inf := math.Inf(1)
	return r3.Box{Min: d3.Elem(-inf), Max: d3.Elem(inf)}
}

type translate struct {
	s SDF3
	v r3.Vec
}

// Translate moves an SDF3 by v.
func Translate(s SDF3, v r3.Vec) SDF3 {
	return &translate{s: s, v: v}
}

func (t *translate) Evaluate(p r3.Vec) float64 {
	return t.s.Evaluate(r3.Sub(p, t.v))
}

func (t *translate) Bounds() r3.Box {
	bb := t.s.Bounds()
	return r3.Box{Min: r3.Add(bb.Min, t.v), Max: r3.Add(bb.Max, t.v)}
}

type union struct {
	sdfs []SDF3
	bb   r3.Box
}

// Union returns the union of the argument SDF3s. Distances are exact
// outside the union and a bound inside it.
func Union(sdfs ...SDF3) SDF3 {
	if len(sdfs) == 0 {
		panic("no SDF3s to union")
	}
	bb := sdfs[0].Bounds()
	for _, s := range sdfs[1:] {
		b := s.Bounds()
		bb = r3.Box{Min: d3.MinElem(bb.Min, b.Min), Max: d3.MaxElem(bb.Max, b.Max)}
	}
	return &union{sdfs: sdfs, bb: bb}
}

func (u *union) Evaluate(p r3.Vec) float64 {
	d := math.Inf(1)
	for _, s := range u.sdfs {
		d = math.Min(d, s.Evaluate(p))
	}
	return d
}

func (u *union) Bounds() r3.Box { return u.bb }
