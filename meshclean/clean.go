// Package meshclean removes floating fragments from extracted meshes.
package meshclean

import (
	"sort"

	"github.com/ngailapdi/isomesh"
	"github.com/ngailapdi/isomesh/internal/monitoring"
	"gonum.org/v1/gonum/spatial/r3"
)

// Cleaner post-processes a mesh. Implementations must not modify their input.
type Cleaner interface {
	Clean(m *isomesh.Mesh) *isomesh.Mesh
}

// Defaults used by DefaultComponentFilter.
const (
	DefaultDistThresh = 0.2
	DefaultNumThresh  = 0.3
)

// ComponentFilter keeps the connected components that are both large and
// close to the origin. A component is kept when it has more than
// NumThresh times the vertices of the largest component and its vertex
// centroid lies within DistThresh of the origin. If no component passes,
// every component is kept. When several are kept and some of them are closed
// volumes, only the closed volumes remain. Zero thresholds are used as
// given: NumThresh 0 keeps every component near the origin and DistThresh 0
// rejects all of them, falling back to keeping everything.
type ComponentFilter struct {
	DistThresh float64
	NumThresh  float64
}

// DefaultComponentFilter returns a filter with DefaultDistThresh and
// DefaultNumThresh.
func DefaultComponentFilter() ComponentFilter {
	return ComponentFilter{DistThresh: DefaultDistThresh, NumThresh: DefaultNumThresh}
}

var _ Cleaner = ComponentFilter{}

// Clean implements Cleaner. It returns nil for an empty mesh.
func (f ComponentFilter) Clean(m *isomesh.Mesh) *isomesh.Mesh {
	if m.IsEmpty() {
		return nil
	}
	dist, num := f.DistThresh, f.NumThresh
	parts := Components(m)
	sort.SliceStable(parts, func(i, j int) bool {
		return len(parts[i].Vertices) < len(parts[j].Vertices)
	})
	largest := len(parts[len(parts)-1].Vertices)

	var kept []*isomesh.Mesh
	for _, p := range parts {
		if float64(len(p.Vertices)) > float64(largest)*num && r3.Norm(p.Centroid()) < dist {
			kept = append(kept, p)
		}
	}
	if len(kept) == 0 {
		kept = parts
	}
	if len(kept) > 1 {
		var closed []*isomesh.Mesh
		for _, p := range kept {
			if IsVolume(p) {
				closed = append(closed, p)
			}
		}
		if len(closed) > 0 {
			kept = closed
		}
	}
	monitoring.Logf("meshclean: kept %d of %d components", len(kept), len(parts))
	return isomesh.Merge(kept...)
}

// Components splits m into its vertex-connected components. Vertices that no
// triangle references are dropped.
func Components(m *isomesh.Mesh) []*isomesh.Mesh {
	if m.IsEmpty() {
		return nil
	}
	parent := make([]int, len(m.Vertices))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[rb] = ra
		}
	}
	for _, t := range m.Triangles {
		union(t[0], t[1])
		union(t[1], t[2])
	}

	// Components are numbered in order of their first triangle.
	compOf := make(map[int]int)
	var parts []*isomesh.Mesh
	remap := make([]int, len(m.Vertices))
	for i := range remap {
		remap[i] = -1
	}
	for _, t := range m.Triangles {
		root := find(t[0])
		c, ok := compOf[root]
		if !ok {
			c = len(parts)
			compOf[root] = c
			parts = append(parts, &isomesh.Mesh{})
		}
		p := parts[c]
		var nt [3]int
		for j, vi := range t {
			if remap[vi] < 0 {
				remap[vi] = len(p.Vertices)
				p.Vertices = append(p.Vertices, m.Vertices[vi])
			}
			nt[j] = remap[vi]
		}
		p.Triangles = append(p.Triangles, nt)
	}
	return parts
}

// IsVolume reports whether m is a closed, consistently wound surface that
// encloses a positive volume: every directed edge appears once and its
// reverse appears once.
func IsVolume(m *isomesh.Mesh) bool {
	if m.IsEmpty() {
		return false
	}
	edges := make(map[[2]int]int, 3*len(m.Triangles))
	for _, t := range m.Triangles {
		for i := 0; i < 3; i++ {
			edges[[2]int{t[i], t[(i+1)%3]}]++
		}
	}
	for e, n := range edges {
		if n != 1 || edges[[2]int{e[1], e[0]}] != 1 {
			return false
		}
	}
	return SignedVolume(m) > 0
}

// SignedVolume returns the volume enclosed by m. It is negative when the
// faces are wound inward and meaningless for open surfaces.
func SignedVolume(m *isomesh.Mesh) float64 {
	var vol float64
	for i := 0; i < m.Len(); i++ {
		tri := m.Triangle(i)
		vol += r3.Dot(tri[0], r3.Cross(tri[1], tri[2]))
	}
	return vol / 6
}
