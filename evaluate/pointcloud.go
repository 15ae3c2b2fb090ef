package evaluate

import (
	"math"

	"github.com/ngailapdi/isomesh/internal/d3"
	"github.com/unixpickle/essentials"
	"gonum.org/v1/gonum/spatial/r3"
)

// DistanceP2P returns, for every point in src, the Euclidean distance to its
// nearest neighbour in tgt and the absolute cosine between the normals of the
// two points. Normal orientation is ignored. When either normal set is nil
// every normal score is NaN. tgt must not be empty.
func DistanceP2P(src, srcNormals, tgt, tgtNormals []r3.Vec) (dist, normalsDot []float64) {
	if len(tgt) == 0 {
		panic("nearest neighbour query against empty point set")
	}
	tree := newKDTree(tgt)
	dist = make([]float64, len(src))
	idx := make([]int, len(src))
	essentials.ConcurrentMap(0, len(src), func(i int) {
		nearest, d2 := tree.Nearest(kdPoint{Vec: src[i]})
		dist[i] = math.Sqrt(d2)
		idx[i] = nearest.(kdPoint).idx
	})

	normalsDot = make([]float64, len(src))
	if srcNormals == nil || tgtNormals == nil {
		for i := range normalsDot {
			normalsDot[i] = math.NaN()
		}
		return dist, normalsDot
	}
	for i := range normalsDot {
		ns := r3.Unit(srcNormals[i])
		nt := r3.Unit(tgtNormals[idx[i]])
		normalsDot[i] = math.Abs(r3.Dot(ns, nt))
	}
	return dist, normalsDot
}

// normalizeScale returns the factor 1/(2*max|coordinate|) that maps a point
// cloud into the unit cube centered at the origin.
func normalizeScale(pts []r3.Vec) float64 {
	return 1 / (2 * d3.Set(pts).AbsMax())
}
