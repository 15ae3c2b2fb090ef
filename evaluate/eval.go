// Package evaluate measures how well a reconstructed mesh matches a ground
// truth shape: surface distances in both directions, normal consistency,
// chamfer distance, F-scores at several thresholds and volumetric IoU.
package evaluate

import (
	"math"
	"math/rand"
	"strconv"

	"github.com/ngailapdi/isomesh"
	"github.com/ngailapdi/isomesh/internal/d3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"
)

// Mode selects how ground truth query values are turned into occupancy.
type Mode int

const (
	// ModeOccupancy treats ground truth values as occupancy, inside when >= 0.5.
	ModeOccupancy Mode = iota
	// ModeSDF treats ground truth values as signed distances, inside when <= Iso.
	ModeSDF
)

func (m Mode) String() string {
	switch m {
	case ModeOccupancy:
		return "occnet"
	case ModeSDF:
		return "sdf"
	}
	return "Mode(" + strconv.Itoa(int(m)) + ")"
}

// ParseMode parses "occnet" or "sdf".
func ParseMode(s string) (Mode, error) {
	switch s {
	case "occnet", "occupancy":
		return ModeOccupancy, nil
	case "sdf":
		return ModeSDF, nil
	}
	return 0, errors.Errorf("unknown evaluation mode %q", s)
}

// Defaults used by DefaultOptions.
const (
	DefaultNumSamples    = 300000
	DefaultIso           = 0.003
	DefaultSignThreshold = 0.01
)

// Options configures EvalMesh. Start from DefaultOptions; zero Iso and
// SignThreshold are used as given.
type Options struct {
	Mode Mode
	// NumSamples is the number of points sampled on the predicted surface.
	// Non-positive values select DefaultNumSamples.
	NumSamples int
	// Iso is the level at or below which ground truth signed distances are
	// inside. Only used in ModeSDF.
	Iso float64
	// SignThreshold is the tolerance of the SDF threshold accuracy.
	SignThreshold float64
	// SkipNormalize evaluates point clouds in their own units instead of
	// rescaling each into the unit cube.
	SkipNormalize bool
	// Seed seeds surface sampling.
	Seed int64
}

// DefaultOptions returns the evaluation settings for mode.
func DefaultOptions(mode Mode) Options {
	return Options{
		Mode:          mode,
		NumSamples:    DefaultNumSamples,
		Iso:           DefaultIso,
		SignThreshold: DefaultSignThreshold,
	}
}

func (o Options) withDefaults() Options {
	if o.NumSamples <= 0 {
		o.NumSamples = DefaultNumSamples
	}
	return o
}

// GroundTruth holds the reference data a mesh is evaluated against.
type GroundTruth struct {
	// Points and Normals sample the reference surface. Normals may be nil.
	Points  []r3.Vec
	Normals []r3.Vec
	// QueryPoints are volume samples labeled by Values: occupancy in
	// ModeOccupancy, signed distance in ModeSDF.
	QueryPoints []r3.Vec
	Values      []float64
	// SDFPred optionally holds the predicted signed distance at every query
	// point. In ModeSDF its sign accuracy is reported next to the mesh IoU.
	SDFPred []float64
}

func (gt *GroundTruth) validate(mode Mode) error {
	switch {
	case len(gt.Points) == 0:
		return errors.New("ground truth point cloud is empty")
	case gt.Normals != nil && len(gt.Normals) != len(gt.Points):
		return errors.Wrapf(isomesh.ErrMismatchedLength, "%d ground truth points with %d normals", len(gt.Points), len(gt.Normals))
	case len(gt.QueryPoints) != len(gt.Values):
		return errors.Wrapf(isomesh.ErrMismatchedLength, "%d query points with %d labels", len(gt.QueryPoints), len(gt.Values))
	case mode == ModeSDF && gt.SDFPred != nil && len(gt.SDFPred) != len(gt.Values):
		return errors.Wrapf(isomesh.ErrMismatchedLength, "%d predicted distances with %d labels", len(gt.SDFPred), len(gt.Values))
	}
	return nil
}

// Record holds the metrics of one evaluation.
type Record struct {
	Mode Mode
	// IoU is the volumetric IoU of the mesh against the ground truth labels.
	IoU float64
	// SignAccuracy is reported in ModeSDF only: the fraction of query points
	// where predicted and ground truth distances lie on the same side of Iso.
	SignAccuracy float64

	Chamfer      float64
	Completeness float64
	Accuracy     float64

	NormalsCompleteness float64
	NormalsAccuracy     float64
	Normals             float64

	FScore    [6]float64
	Precision [6]float64
	Recall    [6]float64
}

// IoUValues returns the IoU in the layout of the evaluation mode: a single
// value for ModeOccupancy and the pair (mesh IoU, sign accuracy) for ModeSDF.
func (r Record) IoUValues() []float64 {
	if r.Mode == ModeSDF {
		return []float64{r.IoU, r.SignAccuracy}
	}
	return []float64{r.IoU}
}

// EmptyRecord returns the record of a mesh without surface: zero IoU, the
// largest chamfer distance possible inside the unit cube, -1 normal scores
// and zero F-scores.
func EmptyRecord(mode Mode) Record {
	return Record{
		Mode:                mode,
		Chamfer:             2 * math.Sqrt(3),
		Completeness:        math.Sqrt(3),
		Accuracy:            math.Sqrt(3),
		NormalsCompleteness: -1,
		NormalsAccuracy:     -1,
		Normals:             -1,
	}
}

// EvalMesh evaluates the predicted mesh against ground truth. An empty mesh
// yields EmptyRecord without error.
func EvalMesh(m *isomesh.Mesh, gt GroundTruth, opts Options) (Record, error) {
	opts = opts.withDefaults()
	if err := gt.validate(opts.Mode); err != nil {
		return Record{}, err
	}
	if m.IsEmpty() || !(m.Area() > 0) {
		return EmptyRecord(opts.Mode), nil
	}
	rng := rand.New(rand.NewSource(opts.Seed))
	pts, normals := SampleSurface(m, opts.NumSamples, rng)
	r := EvalPointcloud(pts, normals, gt.Points, gt.Normals, opts.SkipNormalize)
	r.Mode = opts.Mode

	inside := ContainsPoints(m, gt.QueryPoints)
	switch opts.Mode {
	case ModeOccupancy:
		r.IoU = ComputeIoU(inside, Binarize(gt.Values, 0.5))
	case ModeSDF:
		occGT := make([]bool, len(gt.Values))
		for i, v := range gt.Values {
			occGT[i] = v <= opts.Iso
		}
		r.IoU = ComputeIoU(inside, occGT)
		if gt.SDFPred != nil {
			r.SignAccuracy, _, _ = ComputeAcc(gt.SDFPred, gt.Values, opts.SignThreshold, opts.Iso)
		}
	default:
		return Record{}, errors.Errorf("unknown evaluation mode %d", opts.Mode)
	}
	return r, nil
}

// EvalPointcloud computes the surface metrics between a predicted and a
// ground truth point cloud. Unless skipNormalize is set each cloud is first
// scaled by 1/(2*max|coordinate|). Either normal set may be nil, which makes
// the normal scores NaN. Both clouds must be non-empty.
func EvalPointcloud(pc, normals, gtPC, gtNormals []r3.Vec, skipNormalize bool) Record {
	if !skipNormalize {
		pc = d3.Set(pc).Scale(normalizeScale(pc))
		gtPC = d3.Set(gtPC).Scale(normalizeScale(gtPC))
	}
	// Completeness: distance from the ground truth to the prediction.
	completeness, normalsCompleteness := DistanceP2P(gtPC, gtNormals, pc, normals)
	// Accuracy: distance from the prediction to the ground truth.
	accuracy, normalsAccuracy := DistanceP2P(pc, normals, gtPC, gtNormals)

	var r Record
	for i, t := range FScoreThresholds {
		r.FScore[i], r.Precision[i], r.Recall[i] = CalculateFScore(accuracy, completeness, t)
	}
	r.Accuracy = stat.Mean(accuracy, nil)
	r.NormalsAccuracy = stat.Mean(normalsAccuracy, nil)
	r.Completeness = stat.Mean(completeness, nil)
	r.NormalsCompleteness = stat.Mean(normalsCompleteness, nil)
	r.Chamfer = r.Completeness + r.Accuracy
	r.Normals = 0.5 * (r.NormalsCompleteness + r.NormalsAccuracy)
	return r
}

// Mean averages every metric over records. The mode of the first record is
// kept. Mean of no records is the zero Record.
func Mean(records []Record) Record {
	if len(records) == 0 {
		return Record{}
	}
	col := make([]float64, len(records))
	var m Record
	m.Mode = records[0].Mode
	avg := func(get func(r Record) float64) float64 {
		for i, r := range records {
			col[i] = get(r)
		}
		return stat.Mean(col, nil)
	}
	m.IoU = avg(func(r Record) float64 { return r.IoU })
	m.SignAccuracy = avg(func(r Record) float64 { return r.SignAccuracy })
	m.Chamfer = avg(func(r Record) float64 { return r.Chamfer })
	m.Completeness = avg(func(r Record) float64 { return r.Completeness })
	m.Accuracy = avg(func(r Record) float64 { return r.Accuracy })
	m.NormalsCompleteness = avg(func(r Record) float64 { return r.NormalsCompleteness })
	m.NormalsAccuracy = avg(func(r Record) float64 { return r.NormalsAccuracy })
	m.Normals = avg(func(r Record) float64 { return r.Normals })
	for i := range FScoreThresholds {
		m.FScore[i] = avg(func(r Record) float64 { return r.FScore[i] })
		m.Precision[i] = avg(func(r Record) float64 { return r.Precision[i] })
		m.Recall[i] = avg(func(r Record) float64 { return r.Recall[i] })
	}
	return m
}
