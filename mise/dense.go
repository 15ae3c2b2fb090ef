package mise

import "github.com/ngailapdi/isomesh"

// DenseGrid is a cubic lattice of N points per axis stored x-major:
// the value at (i, j, k) is Data[(i*N+j)*N+k].
type DenseGrid struct {
	N    int
	Data []float64
}

// NewDenseGrid returns a zeroed grid with n points per axis.
func NewDenseGrid(n int) *DenseGrid {
	if n < 1 {
		panic("grid must have at least one point per axis")
	}
	return &DenseGrid{N: n, Data: make([]float64, n*n*n)}
}

// Index returns the offset of v in Data.
func (g *DenseGrid) Index(v isomesh.V3i) int {
	return (v[0]*g.N+v[1])*g.N + v[2]
}

// At returns the value at v.
func (g *DenseGrid) At(v isomesh.V3i) float64 { return g.Data[g.Index(v)] }

// Set stores val at v.
func (g *DenseGrid) Set(v isomesh.V3i, val float64) { g.Data[g.Index(v)] = val }

// Shape returns the number of points along each axis.
func (g *DenseGrid) Shape() [3]int { return [3]int{g.N, g.N, g.N} }
