package store

import (
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/ngailapdi/isomesh/evaluate"
	"github.com/ngailapdi/isomesh/meshgen"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tempStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "results.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleRecord(chamfer float64) evaluate.Record {
	r := evaluate.Record{
		Mode:                evaluate.ModeSDF,
		IoU:                 0.8,
		SignAccuracy:        0.95,
		Chamfer:             chamfer,
		Completeness:        chamfer / 2,
		Accuracy:            chamfer / 2,
		NormalsCompleteness: 0.9,
		NormalsAccuracy:     0.7,
		Normals:             0.8,
	}
	for i := range r.FScore {
		r.FScore[i] = float64(i) / 10
		r.Precision[i] = float64(i) / 8
		r.Recall[i] = float64(i) / 6
	}
	return r
}

func TestSaveGet(t *testing.T) {
	s := tempStore(t)
	rec := sampleRecord(0.02)
	stats := meshgen.Stats{Levels: 3, Evaluations: 4913, OracleCalls: 3, Triangles: 2048, Elapsed: 1500 * time.Millisecond}

	saved, err := s.Save("sphere", rec, stats)
	require.NoError(t, err)
	assert.NotEmpty(t, saved.ID)

	got, err := s.Get(saved.ID)
	require.NoError(t, err)
	assert.Equal(t, "sphere", got.Name)
	assert.Equal(t, rec, got.Record)
	assert.Equal(t, stats, got.Stats)
	assert.WithinDuration(t, saved.CreatedAt, got.CreatedAt, time.Millisecond)
}

func TestGetMissing(t *testing.T) {
	s := tempStore(t)
	_, err := s.Get("no-such-id")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSaveNaN(t *testing.T) {
	s := tempStore(t)
	rec := sampleRecord(0.05)
	rec.Normals = math.NaN()
	rec.NormalsAccuracy = math.NaN()
	rec.FScore[2] = math.NaN()

	saved, err := s.Save("no-normals", rec, meshgen.Stats{})
	require.NoError(t, err)
	got, err := s.Get(saved.ID)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(got.Record.Normals))
	assert.True(t, math.IsNaN(got.Record.NormalsAccuracy))
	assert.True(t, math.IsNaN(got.Record.FScore[2]))
	assert.Equal(t, rec.FScore[3], got.Record.FScore[3])
	assert.Equal(t, rec.Chamfer, got.Record.Chamfer)
}

func TestListSummary(t *testing.T) {
	s := tempStore(t)
	for _, c := range []float64{0.01, 0.03} {
		_, err := s.Save("run-a", sampleRecord(c), meshgen.Stats{})
		require.NoError(t, err)
	}
	_, err := s.Save("run-b", evaluate.EmptyRecord(evaluate.ModeOccupancy), meshgen.Stats{})
	require.NoError(t, err)

	a, err := s.List("run-a")
	require.NoError(t, err)
	require.Len(t, a, 2)
	assert.Equal(t, 0.01, a[0].Record.Chamfer)

	all, err := s.List("")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	mean, n, err := s.Summary("run-a")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.InDelta(t, 0.02, mean.Chamfer, 1e-12)
	assert.Equal(t, evaluate.ModeSDF, mean.Mode)

	none, err := s.List("missing")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.db")
	s, err := Open(path)
	require.NoError(t, err)
	saved, err := s.Save("persist", sampleRecord(0.1), meshgen.Stats{Triangles: 10})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.Get(saved.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, got.Stats.Triangles)
}
