package meshgen

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/ngailapdi/isomesh"
	"github.com/ngailapdi/isomesh/evaluate"
	"github.com/ngailapdi/isomesh/oracle"
	"github.com/ngailapdi/isomesh/render"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/spatial/r3"
)

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

func meanRadius(m *isomesh.Mesh) float64 {
	var sum float64
	for _, v := range m.Vertices {
		sum += r3.Norm(v)
	}
	return sum / float64(len(m.Vertices))
}

func sdfConfig(res0, steps int) Config {
	cfg := DefaultConfig(SDF)
	cfg.Resolution0 = res0
	cfg.UpsamplingSteps = steps
	cfg.Threshold = 0
	return cfg
}

func TestGenerateSphere(t *testing.T) {
	const radius = 0.5
	cfg := sdfConfig(8, 2)
	m, stats, err := Generate(isomesh.Batch(isomesh.Sphere(radius)), nil, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if m == nil {
		t.Fatal("sphere produced empty mesh")
	}
	voxel := cfg.BoxSize / float64(cfg.Resolution())
	if r := meanRadius(m); math.Abs(r-radius) > voxel {
		t.Errorf("mean vertex radius %g, want %g", r, radius)
	}
	checkClosed(t, m)
	if stats.Levels != cfg.UpsamplingSteps+1 {
		t.Errorf("got %d levels, want %d", stats.Levels, cfg.UpsamplingSteps+1)
	}
	dense := int(math.Pow(float64(cfg.Resolution()+1), 3))
	if stats.Evaluations >= dense/2 {
		t.Errorf("adaptive extraction evaluated %d of %d lattice points", stats.Evaluations, dense)
	}
	if stats.Triangles != m.Len() {
		t.Errorf("stats report %d triangles, mesh has %d", stats.Triangles, m.Len())
	}
}

func TestGenerateOccupancy(t *testing.T) {
	const radius = 0.4
	cfg := DefaultConfig(Occupancy)
	cfg.Threshold = 0.5
	field := isomesh.Occupancy(isomesh.Batch(isomesh.Sphere(radius)), 10)
	m, _, err := Generate(field, nil, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if m == nil {
		t.Fatal("occupancy sphere produced empty mesh")
	}
	checkClosed(t, m)
	voxel := cfg.BoxSize / float64(cfg.Resolution())
	if r := meanRadius(m); math.Abs(r-radius) > voxel {
		t.Errorf("mean vertex radius %g, want %g", r, radius)
	}
	var flux float64
	for i := range m.Triangles {
		tri := m.Triangle(i)
		flux += r3.Dot(tri.Normal(), tri.Centroid())
	}
	if flux <= 0 {
		t.Error("occupancy mesh normals point inward")
	}
}

func TestGenerateSaturatedProbabilities(t *testing.T) {
	const radius = 0.4
	indicator := isomesh.FieldFunc(func(p r3.Vec) float64 {
		if r3.Norm(p) <= radius {
			return 1
		}
		return 0
	})
	m, _, err := Generate(oracle.Logits(indicator), nil, DefaultConfig(Occupancy))
	if err != nil {
		t.Fatal(err)
	}
	if m == nil {
		t.Fatal("empty mesh")
	}
	for _, v := range m.Vertices {
		if math.IsNaN(v.X+v.Y+v.Z) || math.IsInf(v.X+v.Y+v.Z, 0) {
			t.Fatalf("vertex %v is not finite", v)
		}
	}
	if r := meanRadius(m); math.Abs(r-radius) > 0.05 {
		t.Errorf("mean vertex radius %g, want %g", r, radius)
	}
}

func TestGenerateEmpty(t *testing.T) {
	outside := isomesh.FieldFunc(func(r3.Vec) float64 { return 1 })
	m, stats, err := Generate(outside, nil, sdfConfig(4, 3))
	if err != nil {
		t.Fatal(err)
	}
	if m != nil {
		t.Fatalf("constant field produced %d triangles", m.Len())
	}
	if stats.Levels != 1 {
		t.Errorf("constant field refined %d levels", stats.Levels)
	}
	gt := evaluate.GroundTruth{Points: []r3.Vec{{X: 0.1}, {Y: -0.2}}}
	rec, err := evaluate.EvalMesh(m, gt, evaluate.DefaultOptions(evaluate.ModeSDF))
	if err != nil {
		t.Fatal(err)
	}
	if rec.Chamfer != 2*math.Sqrt(3) || rec.IoU != 0 {
		t.Errorf("empty mesh record %+v", rec)
	}
}

func TestGenerateMatchesUniform(t *testing.T) {
	shape := isomesh.Union(
		isomesh.Sphere(0.35),
		isomesh.Translate(isomesh.Box(r3.Vec{X: 0.3, Y: 0.3, Z: 0.3}, 0.02), r3.Vec{X: 0.3}),
	)
	cfg := sdfConfig(8, 2)
	adaptive, as, err := Generate(isomesh.Batch(shape), nil, cfg)
	if err != nil {
		t.Fatal(err)
	}
	uniform, us, err := GenerateUniform(isomesh.Batch(shape), nil, cfg, "")
	if err != nil {
		t.Fatal(err)
	}
	if adaptive == nil || uniform == nil {
		t.Fatal("empty mesh")
	}
	if us.Evaluations != (cfg.Resolution()+1)*(cfg.Resolution()+1)*(cfg.Resolution()+1) {
		t.Errorf("uniform extraction evaluated %d points", us.Evaluations)
	}
	if as.Evaluations >= us.Evaluations {
		t.Errorf("adaptive extraction evaluated %d points, uniform %d", as.Evaluations, us.Evaluations)
	}
	if a, u := adaptive.Area(), uniform.Area(); math.Abs(a-u) > 0.05*u {
		t.Errorf("adaptive area %g, uniform area %g", a, u)
	}
}

func TestGenerateUniformDump(t *testing.T) {
	path := filepath.Join(t.TempDir(), "field.bin")
	cfg := sdfConfig(4, 2)
	m, _, err := GenerateUniform(isomesh.Batch(isomesh.Torus(0.5, 0.2)), nil, cfg, path)
	if err != nil {
		t.Fatal(err)
	}
	g, bb, err := render.LoadFieldDump(path)
	if err != nil {
		t.Fatal(err)
	}
	if g.N != cfg.Resolution()+1 {
		t.Fatalf("dump has %d points per axis, want %d", g.N, cfg.Resolution()+1)
	}
	if bb.Max.X != cfg.BoxSize/2 {
		t.Errorf("dump bounds %v", bb)
	}
	again := render.Extract(g, cfg.Threshold, cfg.BoxSize, render.PadSDF)
	if again.Len() != m.Len() {
		t.Errorf("mesh from dump has %d triangles, want %d", again.Len(), m.Len())
	}
}

type latentField struct {
	t    *testing.T
	want any
}

func (f latentField) Evaluate(pos []r3.Vec, dst []float64, userData any) error {
	if userData != f.want {
		f.t.Errorf("oracle got user data %v, want %v", userData, f.want)
	}
	s := isomesh.Sphere(0.3)
	for i, p := range pos {
		dst[i] = s.Evaluate(p)
	}
	return nil
}

func TestGenerateUserData(t *testing.T) {
	cfg := sdfConfig(4, 1)
	cfg.MaxPoints = 50
	cfg.Workers = 3
	_, stats, err := Generate(latentField{t: t, want: "latent"}, "latent", cfg)
	if err != nil {
		t.Fatal(err)
	}
	if stats.OracleCalls < 3 {
		t.Errorf("expected chunked oracle calls, got %d", stats.OracleCalls)
	}
}

var errOracle = errors.New("decoder out of memory")

func TestGenerateOracleError(t *testing.T) {
	field := errField{}
	if _, _, err := Generate(field, nil, sdfConfig(4, 2)); !errors.Is(err, errOracle) {
		t.Errorf("got %v, want oracle error", err)
	}
	if _, _, err := GenerateUniform(field, nil, sdfConfig(4, 2), ""); !errors.Is(err, errOracle) {
		t.Errorf("uniform: got %v, want oracle error", err)
	}
}

type errField struct{}

func (errField) Evaluate([]r3.Vec, []float64, any) error { return errOracle }

func TestConfigValidate(t *testing.T) {
	for _, kind := range []Kind{Occupancy, SDF} {
		if err := DefaultConfig(kind).Validate(); err != nil {
			t.Errorf("default %s config: %v", kind, err)
		}
	}
	bad := []func(*Config){
		func(c *Config) { c.Resolution0 = 0 },
		func(c *Config) { c.UpsamplingSteps = -1 },
		func(c *Config) { c.BoxSize = 0 },
		func(c *Config) { c.Threshold = 1 },
		func(c *Config) { c.Kind = 7 },
	}
	for i, modify := range bad {
		cfg := DefaultConfig(Occupancy)
		modify(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("case %d: invalid config %+v accepted", i, cfg)
		}
		if _, _, err := Generate(errField{}, nil, cfg); err == nil || errors.Is(err, errOracle) {
			t.Errorf("case %d: Generate did not reject config: %v", i, err)
		}
	}
}
