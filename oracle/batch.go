// Package oracle adapts scalar field oracles to the extraction pipeline. Its
// Batcher bounds how many points a single oracle invocation receives.
package oracle

import (
	"sync/atomic"

	"github.com/ngailapdi/isomesh"
	"github.com/pkg/errors"
	"github.com/unixpickle/essentials"
	"gonum.org/v1/gonum/spatial/r3"
)

// DefaultMaxPoints is the largest number of points sent to the oracle in a
// single call when Batcher.MaxPoints is not set.
const DefaultMaxPoints = 128 * 128 * 128

// ErrSkipped marks chunks that were never evaluated because an earlier chunk failed.
var ErrSkipped = errors.New("chunk skipped after oracle failure")

// Batcher splits large point sets into contiguous chunks, evaluates each chunk
// with one oracle call and reassembles the values in input order.
// The first oracle error aborts the evaluation; there are no retries.
type Batcher struct {
	Field isomesh.Field
	// MaxPoints bounds the chunk size. Values <= 0 select DefaultMaxPoints.
	MaxPoints int
	// Workers is the number of chunks evaluated concurrently. Values <= 1
	// evaluate chunks in order on the calling goroutine. Concurrent use
	// requires a Field that is safe for concurrent calls.
	Workers int
}

func (b *Batcher) chunkSize() int {
	if b.MaxPoints <= 0 {
		return DefaultMaxPoints
	}
	return b.MaxPoints
}

// NumChunks returns the number of oracle calls needed to evaluate n points.
func (b *Batcher) NumChunks(n int) int {
	size := b.chunkSize()
	return (n + size - 1) / size
}

// Evaluate returns the field value at every point in pts. userData is passed
// unchanged to every oracle call.
func (b *Batcher) Evaluate(pts []r3.Vec, userData any) ([]float64, error) {
	dst := make([]float64, len(pts))
	if err := b.EvaluateInto(pts, dst, userData); err != nil {
		return nil, err
	}
	return dst, nil
}

// EvaluateInto is like Evaluate but writes values into dst, which must be as
// long as pts.
func (b *Batcher) EvaluateInto(pts []r3.Vec, dst []float64, userData any) error {
	if b.Field == nil {
		return errors.New("batcher has no field")
	}
	if len(pts) != len(dst) {
		return errors.Wrapf(isomesh.ErrMismatchedLength, "evaluate %d points into %d values", len(pts), len(dst))
	}
	size := b.chunkSize()
	nChunks := b.NumChunks(len(pts))
	evalChunk := func(i int) error {
		start := i * size
		end := min(start+size, len(pts))
		err := b.Field.Evaluate(pts[start:end], dst[start:end], userData)
		return errors.Wrapf(err, "oracle chunk %d [%d, %d)", i, start, end)
	}
	if b.Workers <= 1 || nChunks <= 1 {
		for i := 0; i < nChunks; i++ {
			if err := evalChunk(i); err != nil {
				return err
			}
		}
		return nil
	}

	errs := make([]error, nChunks)
	var failed atomic.Bool
	essentials.ConcurrentMap(b.Workers, nChunks, func(i int) {
		if failed.Load() {
			errs[i] = ErrSkipped
			return
		}
		if err := evalChunk(i); err != nil {
			errs[i] = err
			failed.Store(true)
		}
	})
	// Report the lowest failing chunk so the error matches a sequential run
	// as closely as possible.
	for _, err := range errs {
		if err != nil && !errors.Is(err, ErrSkipped) {
			return err
		}
	}
	return nil
}

// Counter wraps a Field and counts oracle calls and evaluated points.
// It is safe for concurrent use if the wrapped Field is.
type Counter struct {
	Field  isomesh.Field
	calls  atomic.Int64
	points atomic.Int64
}

// Evaluate implements isomesh.Field.
func (c *Counter) Evaluate(pos []r3.Vec, dst []float64, userData any) error {
	c.calls.Add(1)
	c.points.Add(int64(len(pos)))
	return c.Field.Evaluate(pos, dst, userData)
}

// Calls returns the number of oracle calls made so far.
func (c *Counter) Calls() int64 { return c.calls.Load() }

// Points returns the number of points evaluated so far.
func (c *Counter) Points() int64 { return c.points.Load() }
