package render

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/ngailapdi/isomesh"
	"github.com/ngailapdi/isomesh/mise"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestMarchingCubes(t *testing.T) {
	max := 0
	for _, tri := range mcTriangleTable {
		if len(tri) > max {
			max = len(tri)
		}
	}
	got := max / 3
	if got != marchingCubesMaxTriangles {
		t.Errorf("mismatch marching cubes max triangles. got %d. want %d", got, marchingCubesMaxTriangles)
	}
}

func TestMarchingCubesTables(t *testing.T) {
	for index, tri := range mcTriangleTable {
		if len(tri)%3 != 0 {
			t.Fatalf("case %d: %d edge indices", index, len(tri))
		}
		used := 0
		for _, e := range tri {
			used |= 1 << e
		}
		if used != mcEdgeTable[index] {
			t.Errorf("case %d: triangles use edges %#x, edge table has %#x", index, used, mcEdgeTable[index])
		}
		var want int
		for e, c := range mcEdgeCorners {
			if (index>>c[0])&1 != (index>>c[1])&1 {
				want |= 1 << e
			}
		}
		if want != mcEdgeTable[index] {
			t.Errorf("case %d: edge table %#x, cut edges %#x", index, mcEdgeTable[index], want)
		}
	}
}

func gridFrom(s isomesh.SDF3, res int, boxSize float64) *mise.DenseGrid {
	g := mise.NewDenseGrid(res + 1)
	for i := 0; i < g.N; i++ {
		for j := 0; j < g.N; j++ {
			for k := 0; k < g.N; k++ {
				v := isomesh.V3i{i, j, k}
				g.Set(v, s.Evaluate(isomesh.LatticeToBox(v, res, boxSize)))
			}
		}
	}
	return g
}

// checkClosed verifies every directed triangle edge is matched by exactly one
// reversed edge.
func checkClosed(t *testing.T, m *isomesh.Mesh) {
	t.Helper()
	edges := make(map[[2]int]int)
	for _, tri := range m.Triangles {
		for i := 0; i < 3; i++ {
			edges[[2]int{tri[i], tri[(i+1)%3]}]++
		}
	}
	for e, n := range edges {
		if n != 1 || edges[[2]int{e[1], e[0]}] != 1 {
			t.Fatalf("edge %v used %d times, reverse %d times", e, n, edges[[2]int{e[1], e[0]}])
		}
	}
}

// outwardFlux is positive when face normals point away from the origin.
func outwardFlux(m *isomesh.Mesh) float64 {
	var flux float64
	for i := range m.Triangles {
		tri := m.Triangle(i)
		flux += r3.Dot(tri.Normal(), tri.Centroid())
	}
	return flux
}

func meanRadius(m *isomesh.Mesh) float64 {
	var sum float64
	for _, v := range m.Vertices {
		sum += r3.Norm(v)
	}
	return sum / float64(len(m.Vertices))
}

func TestExtractSphere(t *testing.T) {
	const (
		res    = 32
		box    = 2.0
		radius = 0.6
	)
	voxel := box / res
	g := gridFrom(isomesh.Sphere(radius), res, box)
	m := Extract(g, 0, box, PadSDF)
	if m == nil {
		t.Fatal("sphere produced empty mesh")
	}
	if r := meanRadius(m); math.Abs(r-radius) > 2*voxel {
		t.Errorf("mean vertex radius %g, want %g", r, radius)
	}
	for _, v := range m.Vertices {
		if math.Abs(r3.Norm(v)-radius) > voxel {
			t.Fatalf("vertex %v is %g from sphere", v, math.Abs(r3.Norm(v)-radius))
		}
	}
	checkClosed(t, m)
	if outwardFlux(m) <= 0 {
		t.Error("sphere normals point inward")
	}
	wantArea := 4 * math.Pi * radius * radius
	if a := m.Area(); math.Abs(a-wantArea) > 0.05*wantArea {
		t.Errorf("area %g, want %g", a, wantArea)
	}
}

func TestExtractOccupancy(t *testing.T) {
	const res, box = 24, 1.5
	g := gridFrom(isomesh.Sphere(0.4), res, box)
	for i := range g.Data {
		g.Data[i] = -10 * g.Data[i]
	}
	m := Extract(g, 0, box, PadOccupancy)
	if m == nil {
		t.Fatal("empty mesh")
	}
	checkClosed(t, m)
	if outwardFlux(m) <= 0 {
		t.Error("occupancy normals point inward")
	}
	if r := meanRadius(m); math.Abs(r-0.4) > 2*box/res {
		t.Errorf("mean radius %g", r)
	}
}

func TestExtractInfiniteValues(t *testing.T) {
	const res, box = 16, 1.5
	g := gridFrom(isomesh.Sphere(0.4), res, box)
	for i, v := range g.Data {
		switch {
		case v < -0.1:
			g.Data[i] = math.Inf(1)
		case v > 0.1:
			g.Data[i] = math.Inf(-1)
		default:
			g.Data[i] = -10 * v
		}
	}
	m := Extract(g, 0, box, PadOccupancy)
	if m == nil {
		t.Fatal("empty mesh")
	}
	for _, v := range m.Vertices {
		if math.IsNaN(v.X+v.Y+v.Z) || math.IsInf(v.X+v.Y+v.Z, 0) {
			t.Fatalf("vertex %v is not finite", v)
		}
	}
	checkClosed(t, m)
}

func TestExtractEmpty(t *testing.T) {
	g := mise.NewDenseGrid(9)
	for i := range g.Data {
		g.Data[i] = 3
	}
	if m := Extract(g, 0, 1, PadSDF); m != nil {
		t.Errorf("constant field produced %d triangles", m.Len())
	}
	if !Extract(g, 0, 1, PadSDF).IsEmpty() {
		t.Error("nil mesh must report empty")
	}
}

func TestExtractClosesAtBoundary(t *testing.T) {
	const box = 1.2
	g := mise.NewDenseGrid(5)
	for i := range g.Data {
		g.Data[i] = -1
	}
	m := Extract(g, 0, box, PadSDF)
	if m == nil {
		t.Fatal("grid inside surface produced empty mesh")
	}
	checkClosed(t, m)
	bb := m.Bounds()
	const tol = 1e-4
	for _, v := range []float64{bb.Min.X, bb.Min.Y, bb.Min.Z} {
		if math.Abs(v+box/2) > tol {
			t.Errorf("bounds %v, want cube of side %g", bb, box)
		}
	}
	for _, v := range []float64{bb.Max.X, bb.Max.Y, bb.Max.Z} {
		if math.Abs(v-box/2) > tol {
			t.Errorf("bounds %v, want cube of side %g", bb, box)
		}
	}
}

func TestFieldDumpRoundtrip(t *testing.T) {
	const res, box = 6, 1.01
	g := gridFrom(isomesh.Translate(isomesh.Sphere(0.3), r3.Vec{X: 0.1, Z: -0.05}), res, box)
	var b bytes.Buffer
	if err := WriteFieldDump(&b, g, box); err != nil {
		t.Fatal(err)
	}
	n := res + 1
	if want := 12 + 48 + 4*n*n*n; b.Len() != want {
		t.Fatalf("dump is %d bytes, want %d", b.Len(), want)
	}
	raw := b.Bytes()
	if got := int32(binary.LittleEndian.Uint32(raw)); got != -res {
		t.Errorf("first extent %d", got)
	}
	// Second stored value is x=1, y=0, z=0.
	second := math.Float32frombits(binary.LittleEndian.Uint32(raw[60+4:]))
	if second != float32(g.At(isomesh.V3i{1, 0, 0})) {
		t.Errorf("values are not stored x fastest")
	}
	got, bb, err := ReadFieldDump(&b)
	if err != nil {
		t.Fatal(err)
	}
	if got.N != g.N {
		t.Fatalf("read N=%d", got.N)
	}
	if bb.Min.X != -box/2 || bb.Max.Z != box/2 {
		t.Errorf("bounds %v", bb)
	}
	for i, v := range g.Data {
		if got.Data[i] != float64(float32(v)) {
			t.Fatalf("value %d: got %g want %g", i, got.Data[i], v)
		}
	}
}

func TestFieldDumpBadHeader(t *testing.T) {
	var b bytes.Buffer
	binary.Write(&b, binary.LittleEndian, [3]int32{4, 4, 4})
	if _, _, err := ReadFieldDump(&b); err == nil {
		t.Error("expected error for positive first extent")
	}
}

func TestSTLWriteReadback(t *testing.T) {
	const tol = 1e-5
	input := Extract(gridFrom(isomesh.Torus(0.5, 0.2), 20, 1.6), 0, 1.6, PadSDF)
	if input == nil {
		t.Fatal("empty torus")
	}
	var b bytes.Buffer
	if err := WriteSTL(&b, input); err != nil {
		t.Fatal(err)
	}
	if b.Len() != 84+50*input.Len() {
		t.Fatalf("STL is %d bytes", b.Len())
	}
	output, err := ReadSTL(&b)
	if err != nil {
		t.Fatal(err)
	}
	if output.Len() != input.Len() {
		t.Fatal("length of triangles written/read not equal")
	}
	for i := range input.Triangles {
		a, b := input.Triangle(i), output.Triangle(i)
		for j := range a {
			if r3.Norm(r3.Sub(a[j], b[j])) > tol {
				t.Fatalf("triangle %d vertex %d: %v != %v", i, j, a[j], b[j])
			}
		}
	}
	if math.Abs(input.Area()-output.Area()) > 1e-4*input.Area() {
		t.Errorf("area changed from %g to %g", input.Area(), output.Area())
	}
}

func TestWriteSTLEmpty(t *testing.T) {
	var b bytes.Buffer
	if err := WriteSTL(&b, nil); err == nil {
		t.Error("expected error writing empty mesh")
	}
}
