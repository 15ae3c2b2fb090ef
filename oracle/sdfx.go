package oracle

import (
	"math"

	"github.com/deadsy/sdfx/sdf"
	"github.com/ngailapdi/isomesh"
	"gonum.org/v1/gonum/spatial/r3"
)

// SDFX adapts a github.com/deadsy/sdfx solid to a batched field. The
// returned field is safe for concurrent use if s is.
func SDFX(s sdf.SDF3) isomesh.Field {
	return isomesh.FieldFunc(func(p r3.Vec) float64 {
		return s.Evaluate(sdf.V3{X: p.X, Y: p.Y, Z: p.Z})
	})
}

// SDFXBounds returns the bounding box of an sdfx solid.
func SDFXBounds(s sdf.SDF3) r3.Box {
	bb := s.BoundingBox()
	return r3.Box{
		Min: r3.Vec{X: bb.Min.X, Y: bb.Min.Y, Z: bb.Min.Z},
		Max: r3.Vec{X: bb.Max.X, Y: bb.Max.Y, Z: bb.Max.Z},
	}
}

// LogitEpsilon bounds the probabilities Logits converts away from 0 and 1.
const LogitEpsilon = 1e-6

// Logits wraps a field returning occupancy probabilities in [0, 1] and
// converts its values to log-odds. Probabilities are clamped to
// [LogitEpsilon, 1-LogitEpsilon] so saturated outputs stay finite.
func Logits(probs isomesh.Field) isomesh.Field {
	return logits{probs}
}

type logits struct {
	probs isomesh.Field
}

func (l logits) Evaluate(pos []r3.Vec, dst []float64, userData any) error {
	if err := l.probs.Evaluate(pos, dst, userData); err != nil {
		return err
	}
	for i, p := range dst {
		dst[i] = isomesh.Logit(math.Min(math.Max(p, LogitEpsilon), 1-LogitEpsilon))
	}
	return nil
}
