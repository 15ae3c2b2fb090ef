// Package render turns dense scalar grids into triangle meshes and persists
// meshes and grids in binary STL and field dump formats.
package render

import (
	"github.com/ngailapdi/isomesh"
	"github.com/ngailapdi/isomesh/mise"
	"gonum.org/v1/gonum/spatial/r3"
)

// Padding values that close the surface at the grid boundary. Occupancy
// logits are large inside the shape so the outside is padded low; signed
// distances are negative inside so the outside is padded high.
const (
	PadOccupancy = -1e6
	PadSDF       = 1e6
)

// Extract triangulates the threshold level set of a dense grid sampling a
// cube of side boxSize centered at the origin. The grid is padded by one
// point on every face with pad so the surface is closed at the boundary.
// Triangles are wound so their normals point toward the pad side of the
// surface. Extract returns nil when the level set is empty.
func Extract(g *mise.DenseGrid, threshold, boxSize, pad float64) *isomesh.Mesh {
	n := g.N
	if n < 2 {
		panic("grid needs at least 2 points per axis")
	}
	np := n + 2
	padded := &lattice{n: [3]int{np, np, np}, values: make([]float64, np*np*np)}
	for i := range padded.values {
		padded.values[i] = pad
	}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			src := g.Index(isomesh.V3i{i, j, 0})
			copy(padded.values[padded.index(i+1, j+1, 1):], g.Data[src:src+n])
		}
	}
	m := march(padded, threshold)
	if m == nil {
		return nil
	}
	if pad < threshold {
		for i, t := range m.Triangles {
			m.Triangles[i] = [3]int{t[0], t[2], t[1]}
		}
	}
	// Undo the lattice placement in this exact order: cell center offset,
	// padding offset, unpadded extent, then box mapping.
	half := r3.Vec{X: 0.5, Y: 0.5, Z: 0.5}
	one := r3.Vec{X: 1, Y: 1, Z: 1}
	extent := 1 / float64(n-1)
	for i, v := range m.Vertices {
		v = r3.Sub(v, half)
		v = r3.Sub(v, one)
		v = r3.Scale(extent, v)
		m.Vertices[i] = r3.Scale(boxSize, r3.Sub(v, half))
	}
	return m
}
