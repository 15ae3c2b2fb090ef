package render

import (
	"math"

	"github.com/ngailapdi/isomesh"
	"gonum.org/v1/gonum/spatial/r3"
)

// lattice is a rectangular grid of scalar samples stored x-major: the value
// at (i, j, k) is values[(i*n[1]+j)*n[2]+k].
type lattice struct {
	n      [3]int
	values []float64
}

func (l *lattice) index(i, j, k int) int { return (i*l.n[1]+j)*l.n[2] + k }

// mcEdgeAxis is the axis each cube edge runs along.
var mcEdgeAxis = func() (axis [12]int) {
	for e, c := range mcEdgeCorners {
		a, b := mcCornerOffsets[c[0]], mcCornerOffsets[c[1]]
		for i := range a {
			if a[i] != b[i] {
				axis[e] = i
			}
		}
	}
	return axis
}()

// march triangulates the iso level set of the lattice with marching cubes.
// Lattice point (i, j, k) is placed at (i+0.5, j+0.5, k+0.5). Vertices are
// shared between triangles cutting the same lattice edge. Triangle normals
// point toward increasing values. Cubes with a NaN corner are skipped.
func march(l *lattice, iso float64) *isomesh.Mesh {
	m := &isomesh.Mesh{}
	// vertex index keyed by lattice edge: 3*index(lower corner) + axis
	edgeVerts := make(map[int]int)
	var (
		vals    [8]float64
		corners [8][3]int
	)
	for i := 0; i < l.n[0]-1; i++ {
		for j := 0; j < l.n[1]-1; j++ {
			for k := 0; k < l.n[2]-1; k++ {
				index := 0
				skip := false
				for c, off := range mcCornerOffsets {
					p := [3]int{i + off[0], j + off[1], k + off[2]}
					v := l.values[l.index(p[0], p[1], p[2])]
					if math.IsNaN(v) {
						skip = true
						break
					}
					corners[c] = p
					vals[c] = v
					if v < iso {
						index |= 1 << c
					}
				}
				if skip || mcEdgeTable[index] == 0 {
					continue
				}
				tri := mcTriangleTable[index]
				for t := 0; t < len(tri); t += 3 {
					var face [3]int
					for v := 0; v < 3; v++ {
						e := tri[t+v]
						ca, cb := mcEdgeCorners[e][0], mcEdgeCorners[e][1]
						pa := corners[ca]
						key := 3*l.index(pa[0], pa[1], pa[2]) + mcEdgeAxis[e]
						idx, ok := edgeVerts[key]
						if !ok {
							idx = len(m.Vertices)
							edgeVerts[key] = idx
							m.Vertices = append(m.Vertices, mcInterpolate(pa, corners[cb], vals[ca], vals[cb], iso))
						}
						face[v] = idx
					}
					m.Triangles = append(m.Triangles, face)
				}
			}
		}
	}
	if m.IsEmpty() {
		return nil
	}
	return m
}

// mcInterpolate returns the point along the lattice edge a-b where the linearly
// interpolated value equals iso. An infinite endpoint snaps the point to the
// finite one.
func mcInterpolate(a, b [3]int, va, vb, iso float64) r3.Vec {
	var t float64
	switch infA, infB := math.IsInf(va, 0), math.IsInf(vb, 0); {
	case infA && infB:
		t = 0.5
	case infA:
		t = 1
	case infB:
		t = 0
	default:
		t = (iso - va) / (vb - va)
	}
	pa := r3.Vec{X: float64(a[0]), Y: float64(a[1]), Z: float64(a[2])}
	pb := r3.Vec{X: float64(b[0]), Y: float64(b[1]), Z: float64(b[2])}
	p := r3.Add(pa, r3.Scale(t, r3.Sub(pb, pa)))
	return r3.Add(p, r3.Vec{X: 0.5, Y: 0.5, Z: 0.5})
}
