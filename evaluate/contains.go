package evaluate

import (
	"github.com/ngailapdi/isomesh"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/model3d/model3d"
	"gonum.org/v1/gonum/spatial/r3"
)

// ContainsPoints reports which query points lie inside the mesh. Containment
// uses ray parity against the mesh triangles, so the mesh should be closed.
// Points are tested concurrently.
func ContainsPoints(m *isomesh.Mesh, pts []r3.Vec) []bool {
	inside := make([]bool, len(pts))
	if m.IsEmpty() {
		return inside
	}
	tris := make([]*model3d.Triangle, 0, m.Len())
	for i := range m.Triangles {
		if m.TriangleArea(i) == 0 {
			continue
		}
		t := m.Triangle(i)
		tris = append(tris, &model3d.Triangle{toCoord3D(t[0]), toCoord3D(t[1]), toCoord3D(t[2])})
	}
	if len(tris) == 0 {
		return inside
	}
	solid := model3d.NewColliderSolid(model3d.MeshToCollider(model3d.NewMeshTriangles(tris)))
	essentials.ConcurrentMap(0, len(pts), func(i int) {
		inside[i] = solid.Contains(toCoord3D(pts[i]))
	})
	return inside
}

func toCoord3D(v r3.Vec) model3d.Coord3D {
	return model3d.XYZ(v.X, v.Y, v.Z)
}
