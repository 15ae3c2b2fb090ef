// Package meshgen extracts triangle meshes from scalar field oracles, either
// adaptively with multiresolution refinement or by dense uniform sampling.
package meshgen

import (
	"time"

	"github.com/ngailapdi/isomesh"
	"github.com/ngailapdi/isomesh/internal/monitoring"
	"github.com/ngailapdi/isomesh/mise"
	"github.com/ngailapdi/isomesh/oracle"
	"github.com/ngailapdi/isomesh/render"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/spatial/r3"
)

// Kind tells how the oracle output is interpreted.
type Kind int

const (
	// Occupancy fields return logits that are large inside the shape.
	Occupancy Kind = iota
	// SDF fields return signed distances that are negative inside the shape.
	SDF
)

func (k Kind) String() string {
	if k == SDF {
		return "sdf"
	}
	return "occupancy"
}

// Config holds extraction parameters.
type Config struct {
	Kind Kind
	// Resolution0 is the number of cells per axis at the coarsest level.
	Resolution0 int
	// UpsamplingSteps is the number of resolution doublings.
	UpsamplingSteps int
	// Threshold is the isovalue. For Occupancy fields it is an occupancy
	// probability in (0, 1) and is converted to a logit before use.
	Threshold float64
	// BoxSize is the side of the cube centered at the origin that is meshed.
	BoxSize float64
	// MaxPoints bounds the points per oracle call. See oracle.Batcher.
	MaxPoints int
	// Workers is the number of concurrent oracle calls. See oracle.Batcher.
	Workers int
}

// DefaultConfig returns the default configuration for a field kind.
func DefaultConfig(kind Kind) Config {
	cfg := Config{
		Kind:            kind,
		Resolution0:     16,
		UpsamplingSteps: 2,
		Threshold:       0.2,
		BoxSize:         1.7,
	}
	if kind == SDF {
		cfg.Threshold = 0.003
	}
	return cfg
}

// Resolution returns the number of cells per axis at the final level.
func (c Config) Resolution() int { return c.Resolution0 << c.UpsamplingSteps }

// Validate checks the configuration for values that cannot be meshed.
func (c Config) Validate() error {
	switch {
	case c.Kind != Occupancy && c.Kind != SDF:
		return errors.Errorf("unknown field kind %d", c.Kind)
	case c.Resolution0 < 1:
		return errors.Errorf("resolution0 must be positive, got %d", c.Resolution0)
	case c.UpsamplingSteps < 0 || c.UpsamplingSteps > 10:
		return errors.Errorf("upsampling steps must be in [0, 10], got %d", c.UpsamplingSteps)
	case !(c.BoxSize > 0):
		return errors.Errorf("box size must be positive, got %g", c.BoxSize)
	case c.Kind == Occupancy && !(c.Threshold > 0 && c.Threshold < 1):
		return errors.Errorf("occupancy threshold must be in (0, 1), got %g", c.Threshold)
	}
	return nil
}

// isovalue returns the threshold in oracle units.
func (c Config) isovalue() float64 {
	if c.Kind == Occupancy {
		return isomesh.Logit(c.Threshold)
	}
	return c.Threshold
}

func (c Config) pad() float64 {
	if c.Kind == Occupancy {
		return render.PadOccupancy
	}
	return render.PadSDF
}

// Stats describes the cost of one extraction.
type Stats struct {
	Levels      int
	Evaluations int
	OracleCalls int64
	Triangles   int
	Elapsed     time.Duration
}

// Generate extracts a mesh with multiresolution refinement. userData is
// passed to every oracle call. A nil mesh and nil error mean the level set is
// empty. Oracle errors abort the extraction.
func Generate(field isomesh.Field, userData any, cfg Config) (*isomesh.Mesh, Stats, error) {
	var stats Stats
	if err := cfg.Validate(); err != nil {
		return nil, stats, err
	}
	start := time.Now()
	counter := &oracle.Counter{Field: field}
	batcher := oracle.Batcher{Field: counter, MaxPoints: cfg.MaxPoints, Workers: cfg.Workers}
	iso := cfg.isovalue()
	sampler := mise.New(cfg.Resolution0, cfg.UpsamplingSteps, iso)
	R := sampler.Resolution()

	for coords := sampler.Query(); len(coords) > 0; coords = sampler.Query() {
		stats.Levels++
		pts := make([]r3.Vec, len(coords))
		for i, c := range coords {
			pts[i] = isomesh.LatticeToBox(c, R, cfg.BoxSize)
		}
		values, err := batcher.Evaluate(pts, userData)
		if err != nil {
			return nil, stats, errors.Wrapf(err, "level %d", sampler.Level())
		}
		if err := sampler.Update(coords, values); err != nil {
			return nil, stats, errors.Wrapf(err, "level %d", sampler.Level())
		}
	}
	grid, err := sampler.ToDense()
	if err != nil {
		return nil, stats, err
	}
	mesh := render.Extract(grid, iso, cfg.BoxSize, cfg.pad())
	stats.Evaluations = sampler.Evaluated()
	stats.OracleCalls = counter.Calls()
	stats.Triangles = mesh.Len()
	stats.Elapsed = time.Since(start)
	monitoring.Logf("meshgen: %s resolution %d: %d levels, %d of %d lattice points evaluated in %d oracle calls, %d triangles (%s)",
		cfg.Kind, R, stats.Levels, stats.Evaluations, (R+1)*(R+1)*(R+1), stats.OracleCalls, stats.Triangles, stats.Elapsed)
	return mesh, stats, nil
}

// GenerateUniform evaluates the oracle on every lattice point at the final
// resolution and triangulates the resulting grid. If dumpPath is not empty
// the grid is also written there as a field dump.
func GenerateUniform(field isomesh.Field, userData any, cfg Config, dumpPath string) (*isomesh.Mesh, Stats, error) {
	var stats Stats
	if err := cfg.Validate(); err != nil {
		return nil, stats, err
	}
	start := time.Now()
	counter := &oracle.Counter{Field: field}
	batcher := oracle.Batcher{Field: counter, MaxPoints: cfg.MaxPoints, Workers: cfg.Workers}
	R := cfg.Resolution()
	grid := mise.NewDenseGrid(R + 1)
	pts := make([]r3.Vec, len(grid.Data))
	for i := 0; i < grid.N; i++ {
		for j := 0; j < grid.N; j++ {
			for k := 0; k < grid.N; k++ {
				c := isomesh.V3i{i, j, k}
				pts[grid.Index(c)] = isomesh.LatticeToBox(c, R, cfg.BoxSize)
			}
		}
	}
	if err := batcher.EvaluateInto(pts, grid.Data, userData); err != nil {
		return nil, stats, err
	}
	if dumpPath != "" {
		if err := render.CreateFieldDump(dumpPath, grid, cfg.BoxSize); err != nil {
			return nil, stats, err
		}
	}
	iso := cfg.isovalue()
	mesh := render.Extract(grid, iso, cfg.BoxSize, cfg.pad())
	stats.Levels = 1
	stats.Evaluations = len(pts)
	stats.OracleCalls = counter.Calls()
	stats.Triangles = mesh.Len()
	stats.Elapsed = time.Since(start)
	monitoring.Logf("meshgen: %s uniform resolution %d: %d points in %d oracle calls, %d triangles (%s)",
		cfg.Kind, R, stats.Evaluations, stats.OracleCalls, stats.Triangles, stats.Elapsed)
	return mesh, stats, nil
}
