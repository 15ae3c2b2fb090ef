package evaluate

import (
	"math"
	"math/rand"
	"sort"

	"github.com/ngailapdi/isomesh"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"
)

// SampleSurface draws n points uniformly over the mesh surface. Triangles are
// picked with probability proportional to their area and points are spread
// uniformly within each triangle. Every sample carries the unit normal of the
// face it was drawn from. The mesh must have positive area.
func SampleSurface(m *isomesh.Mesh, n int, rng *rand.Rand) (pts, normals []r3.Vec) {
	areas := make([]float64, m.Len())
	for i := range areas {
		areas[i] = m.TriangleArea(i)
	}
	cum := floats.CumSum(make([]float64, len(areas)), areas)
	total := cum[len(cum)-1]
	if !(total > 0) {
		panic("cannot sample a surface without area")
	}
	faceNormals := m.FaceNormals()
	pts = make([]r3.Vec, n)
	normals = make([]r3.Vec, n)
	for i := range pts {
		face := sort.SearchFloat64s(cum, rng.Float64()*total)
		// Guard against rounding past the last cumulative area.
		face = min(face, len(cum)-1)
		for areas[face] == 0 {
			face = (face + 1) % len(areas)
		}
		tri := m.Triangle(face)
		// Uniform barycentric sample.
		r1 := math.Sqrt(rng.Float64())
		r2 := rng.Float64()
		p := r3.Scale(1-r1, tri[0])
		p = r3.Add(p, r3.Scale(r1*(1-r2), tri[1]))
		p = r3.Add(p, r3.Scale(r1*r2, tri[2]))
		pts[i] = p
		normals[i] = faceNormals[face]
	}
	return pts, normals
}
