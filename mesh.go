package isomesh

import (
	"errors"
	"math"

	"github.com/ngailapdi/isomesh/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

// Mesh is an indexed triangle mesh. A nil *Mesh is the empty mesh marker
// returned by the triangulator when the level set is empty; all
// methods are safe to call on a nil *Mesh.
type Mesh struct {
	Vertices []r3.Vec
	// Triangles holds vertex indices. Vertex ordering decides the
	// face normal direction.
	Triangles [][3]int
}

// IsEmpty returns true if m has no vertices or no triangles.
func (m *Mesh) IsEmpty() bool {
	return m == nil || len(m.Vertices) == 0 || len(m.Triangles) == 0
}

// Len returns the number of triangles in the mesh.
func (m *Mesh) Len() int {
	if m == nil {
		return 0
	}
	return len(m.Triangles)
}

// Triangle returns the geometry of the ith triangle.
func (m *Mesh) Triangle(i int) r3.Triangle {
	t := m.Triangles[i]
	return r3.Triangle{m.Vertices[t[0]], m.Vertices[t[1]], m.Vertices[t[2]]}
}

// FaceNormals returns the unit normal of every triangle. Degenerate
// triangles get a zero normal.
func (m *Mesh) FaceNormals() []r3.Vec {
	normals := make([]r3.Vec, m.Len())
	for i := range normals {
		n := m.Triangle(i).Normal()
		if norm := r3.Norm(n); norm > 0 {
			normals[i] = r3.Scale(1/norm, n)
		}
	}
	return normals
}

// TriangleArea returns the area of the ith triangle. It is zero for
// degenerate triangles.
func (m *Mesh) TriangleArea(i int) float64 {
	return 0.5 * r3.Norm(m.Triangle(i).Normal())
}

// Area returns the total surface area of the mesh.
func (m *Mesh) Area() (area float64) {
	for i := 0; i < m.Len(); i++ {
		area += m.TriangleArea(i)
	}
	return area
}

// Bounds returns the bounding box of the mesh vertices.
func (m *Mesh) Bounds() r3.Box {
	if m.IsEmpty() {
		return r3.Box{}
	}
	bb := r3.Box{Min: m.Vertices[0], Max: m.Vertices[0]}
	for _, v := range m.Vertices[1:] {
		bb.Min = d3.MinElem(bb.Min, v)
		bb.Max = d3.MaxElem(bb.Max, v)
	}
	return bb
}

// Centroid returns the mean of the mesh vertices.
func (m *Mesh) Centroid() r3.Vec {
	var c r3.Vec
	if m == nil || len(m.Vertices) == 0 {
		return c
	}
	for _, v := range m.Vertices {
		c = r3.Add(c, v)
	}
	return r3.Scale(1/float64(len(m.Vertices)), c)
}

// Merge returns a new mesh containing the geometry of all argument meshes.
// Vertices are not welded across meshes.
func Merge(meshes ...*Mesh) *Mesh {
	var out Mesh
	for _, m := range meshes {
		if m.IsEmpty() {
			continue
		}
		offset := len(out.Vertices)
		out.Vertices = append(out.Vertices, m.Vertices...)
		for _, t := range m.Triangles {
			out.Triangles = append(out.Triangles, [3]int{t[0] + offset, t[1] + offset, t[2] + offset})
		}
	}
	if out.IsEmpty() {
		return nil
	}
	return &out
}

// NewMeshFromTriangles builds an indexed mesh from triangle soup, sharing
// vertices that fall within the same tol sized lattice cell. If tol is zero
// it is inferred from the shortest triangle side.
func NewMeshFromTriangles(triangles []r3.Triangle, tol float64) (*Mesh, error) {
	if len(triangles) == 0 {
		return nil, errors.New("no triangles")
	}
	if tol < 0 {
		return nil, errors.New("negative vertex tolerance")
	}
	minDist2 := math.MaxFloat64
	for _, tri := range triangles {
		for j, vert := range tri {
			side2 := r3.Norm2(r3.Sub(tri[(j+1)%3], vert))
			if side2 > 0 {
				minDist2 = math.Min(minDist2, side2)
			}
		}
	}
	if tol == 0 {
		if minDist2 == math.MaxFloat64 {
			return nil, errors.New("all triangles are degenerate")
		}
		tol = math.Sqrt(minDist2) / 256
	}
	ri := 1 / tol
	// vertex index cache
	cache := make(map[[3]int64]int)
	m := &Mesh{Triangles: make([][3]int, len(triangles))}
	for i, tri := range triangles {
		for j, vert := range tri {
			v := r3.Scale(ri, vert)
			vi := [3]int64{int64(math.Round(v.X)), int64(math.Round(v.Y)), int64(math.Round(v.Z))}
			idx, ok := cache[vi]
			if !ok {
				idx = len(m.Vertices)
				cache[vi] = idx
				m.Vertices = append(m.Vertices, vert)
			}
			m.Triangles[i][j] = idx
		}
	}
	return m, nil
}
