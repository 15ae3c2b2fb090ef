package d3

import (
	"math/rand"

	"gonum.org/v1/gonum/spatial/r3"
)

// Box is an axis aligned sampling region.
type Box r3.Box

// Random returns a point drawn uniformly from the box.
func (a Box) Random(rng *rand.Rand) r3.Vec {
	return r3.Vec{
		X: a.Min.X + (a.Max.X-a.Min.X)*rng.Float64(),
		Y: a.Min.Y + (a.Max.Y-a.Min.Y)*rng.Float64(),
		Z: a.Min.Z + (a.Max.Z-a.Min.Z)*rng.Float64(),
	}
}

// RandomSet returns n points drawn uniformly from the box.
func (a Box) RandomSet(rng *rand.Rand, n int) Set {
	s := make(Set, n)
	for i := range s {
		s[i] = a.Random(rng)
	}
	return s
}
