// Package isomesh holds the shared types for extracting triangle meshes from
// implicit scalar fields: the batched field interface, integer lattice
// coordinates and the indexed triangle mesh.
package isomesh

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Field is a scalar field that is evaluated in batches. It is the oracle
// queried by the mesh generator.
type Field interface {
	// Evaluate writes the field value at every position in pos to the
	// corresponding index of dst. userData carries conditioning data that
	// is fixed for the whole extraction (i.e. latent features) and may be nil.
	// len(dst) must equal len(pos).
	Evaluate(pos []r3.Vec, dst []float64, userData any) error
}

// FieldFunc adapts a point-wise function to a Field. userData is ignored.
type FieldFunc func(p r3.Vec) float64

var _ Field = FieldFunc(nil)

// ErrMismatchedLength is returned when a position buffer and a distance
// buffer differ in length.
var ErrMismatchedLength = errors.New("position and value buffers must be of equal length")

// Evaluate implements Field.
func (f FieldFunc) Evaluate(pos []r3.Vec, dst []float64, _ any) error {
	if len(pos) != len(dst) {
		return ErrMismatchedLength
	}
	for i, p := range pos {
		dst[i] = f(p)
	}
	return nil
}

// Logit returns the log-odds of probability p. It converts an occupancy
// probability threshold into the logit domain the occupancy decoders output.
func Logit(p float64) float64 {
	return math.Log(p) - math.Log(1-p)
}

// Occupancy converts a signed distance field (negative inside) into an
// occupancy logit field where points inside the surface are positive.
// Sharpness scales the logits; a surface at SDF zero maps to logit zero,
// which corresponds to a probability threshold of 0.5.
func Occupancy(sdf Field, sharpness float64) Field {
	if sharpness <= 0 {
		panic("sharpness must be positive")
	}
	return occupancy{sdf: sdf, k: sharpness}
}

type occupancy struct {
	sdf Field
	k   float64
}

func (o occupancy) Evaluate(pos []r3.Vec, dst []float64, userData any) error {
	err := o.sdf.Evaluate(pos, dst, userData)
	if err != nil {
		return err
	}
	for i := range dst {
		dst[i] *= -o.k
	}
	return nil
}
