package isomesh

import "gonum.org/v1/gonum/spatial/r3"

// V3i is an integer lattice coordinate.
type V3i [3]int

// Add adds two vectors. Return v = a + b.
func (a V3i) Add(b V3i) V3i {
	return V3i{a[0] + b[0], a[1] + b[1], a[2] + b[2]}
}

// Scale multiplies each component of the vector by f.
func (a V3i) Scale(f int) V3i {
	return V3i{a[0] * f, a[1] * f, a[2] * f}
}

// ToV3 converts V3i (integer) to r3.Vec (float).
func (a V3i) ToV3() r3.Vec {
	return r3.Vec{X: float64(a[0]), Y: float64(a[1]), Z: float64(a[2])}
}

// InCube returns true if every component of a lies within [0, n].
func (a V3i) InCube(n int) bool {
	return a[0] >= 0 && a[0] <= n &&
		a[1] >= 0 && a[1] <= n &&
		a[2] >= 0 && a[2] <= n
}

// LatticeToBox maps lattice coordinate a of a lattice with resolution cells
// per axis into a cube of side boxSize centered at the origin:
//
//	p = boxSize * (a/resolution - 0.5)
func LatticeToBox(a V3i, resolution int, boxSize float64) r3.Vec {
	v := r3.Scale(1/float64(resolution), a.ToV3())
	return r3.Scale(boxSize, r3.Sub(v, r3.Vec{X: 0.5, Y: 0.5, Z: 0.5}))
}
