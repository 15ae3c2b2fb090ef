package main

import (
	"math/rand"
	"sort"
	"strings"

	"github.com/deadsy/sdfx/sdf"
	"github.com/ngailapdi/isomesh"
	"github.com/ngailapdi/isomesh/evaluate"
	"github.com/ngailapdi/isomesh/internal/d3"
	"github.com/ngailapdi/isomesh/meshgen"
	"github.com/ngailapdi/isomesh/oracle"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/spatial/r3"
)

// shapes maps names to signed distance oracles that fit in the unit cube.
var shapes = map[string]func() (isomesh.Field, error){
	"sphere": func() (isomesh.Field, error) {
		return isomesh.Batch(isomesh.Sphere(0.4)), nil
	},
	"torus": func() (isomesh.Field, error) {
		return isomesh.Batch(isomesh.Torus(0.3, 0.1)), nil
	},
	"box": func() (isomesh.Field, error) {
		return isomesh.Batch(isomesh.Box(r3.Vec{X: 0.6, Y: 0.5, Z: 0.4}, 0.05)), nil
	},
	"blobs": func() (isomesh.Field, error) {
		return isomesh.Batch(isomesh.Union(
			isomesh.Sphere(0.3),
			isomesh.Translate(isomesh.Sphere(0.15), r3.Vec{X: 0.3, Y: 0.1}),
			isomesh.Translate(isomesh.Sphere(0.05), r3.Vec{X: -0.4, Z: 0.4}),
		)), nil
	},
	"sdfx-sphere": func() (isomesh.Field, error) {
		s, err := sdf.Sphere3D(0.4)
		return sdfxField(s, err)
	},
	"sdfx-box": func() (isomesh.Field, error) {
		s, err := sdf.Box3D(sdf.V3{X: 0.7, Y: 0.5, Z: 0.6}, 0.1)
		return sdfxField(s, err)
	},
	"sdfx-cylinder": func() (isomesh.Field, error) {
		s, err := sdf.Cylinder3D(0.8, 0.3, 0.05)
		return sdfxField(s, err)
	},
}

// unitCube is the region the reference queries are drawn from.
var unitCube = r3.Box{Min: d3.Elem(-0.5), Max: d3.Elem(0.5)}

func sdfxField(s sdf.SDF3, err error) (isomesh.Field, error) {
	if err != nil {
		return nil, errors.Wrap(err, "sdfx")
	}
	bb := oracle.SDFXBounds(s)
	if d3.Set([]r3.Vec{bb.Min, bb.Max}).AbsMax() > unitCube.Max.X {
		return nil, errors.Errorf("sdfx solid bounds %v exceed the unit cube", bb)
	}
	return oracle.SDFX(s), nil
}

// indicator turns a signed distance field into hard occupancy
// probabilities: 1 inside or on the surface, 0 outside.
type indicator struct {
	sdf isomesh.Field
}

func (f indicator) Evaluate(pos []r3.Vec, dst []float64, userData any) error {
	if err := f.sdf.Evaluate(pos, dst, userData); err != nil {
		return err
	}
	for i, d := range dst {
		if d <= 0 {
			dst[i] = 1
		} else {
			dst[i] = 0
		}
	}
	return nil
}

func shapeNames() string {
	names := make([]string, 0, len(shapes))
	for name := range shapes {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

func lookupShape(name string) (isomesh.Field, error) {
	build, ok := shapes[name]
	if !ok {
		return nil, errors.Errorf("unknown shape %q (have %s)", name, shapeNames())
	}
	return build()
}

// groundTruth samples a reference for the shape: surface points from a
// dense extraction at gtRes and labeled volume queries in the unit cube.
// sdfPred, if not nil, provides predicted signed distances at the queries.
func groundTruth(shape isomesh.Field, mode evaluate.Mode, gtRes, numSurface, numQueries int, seed int64, sdfPred isomesh.Field) (evaluate.GroundTruth, error) {
	var gt evaluate.GroundTruth
	cfg := meshgen.DefaultConfig(meshgen.SDF)
	cfg.Resolution0 = gtRes
	cfg.UpsamplingSteps = 0
	cfg.Threshold = 0
	cfg.BoxSize = 1.1
	ref, _, err := meshgen.GenerateUniform(shape, nil, cfg, "")
	if err != nil {
		return gt, errors.Wrap(err, "reference mesh")
	}
	if ref.IsEmpty() {
		return gt, errors.New("reference mesh is empty")
	}
	rng := rand.New(rand.NewSource(seed))
	gt.Points, gt.Normals = evaluate.SampleSurface(ref, numSurface, rng)

	gt.QueryPoints = d3.Box(unitCube).RandomSet(rng, numQueries)
	dist := make([]float64, numQueries)
	if err := shape.Evaluate(gt.QueryPoints, dist, nil); err != nil {
		return gt, errors.Wrap(err, "label queries")
	}
	if mode == evaluate.ModeSDF {
		gt.Values = dist
		if sdfPred != nil {
			gt.SDFPred = make([]float64, numQueries)
			if err := sdfPred.Evaluate(gt.QueryPoints, gt.SDFPred, nil); err != nil {
				return gt, errors.Wrap(err, "predicted distances")
			}
		}
		return gt, nil
	}
	gt.Values = make([]float64, numQueries)
	for i, d := range dist {
		if d <= 0 {
			gt.Values[i] = 1
		}
	}
	return gt, nil
}
