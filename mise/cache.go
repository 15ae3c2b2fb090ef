package mise

import (
	"github.com/ngailapdi/isomesh"
	"github.com/pkg/errors"
)

// ErrKnown is returned when writing a value to a coordinate that already
// holds one. Samples are write-once.
var ErrKnown = errors.New("coordinate already evaluated")

// Cache is a sparse map of lattice coordinates to field values. Values are
// stored in a flat arena addressed through an index map, and once a
// coordinate is known it stays known.
type Cache struct {
	index  map[isomesh.V3i]int
	coords []isomesh.V3i
	values []float64
}

// NewCache returns an empty cache with room for sizeHint samples.
func NewCache(sizeHint int) *Cache {
	if sizeHint < 0 {
		sizeHint = 0
	}
	return &Cache{
		index:  make(map[isomesh.V3i]int, sizeHint),
		coords: make([]isomesh.V3i, 0, sizeHint),
		values: make([]float64, 0, sizeHint),
	}
}

// Get returns the value stored at v and whether it is known.
func (c *Cache) Get(v isomesh.V3i) (float64, bool) {
	i, ok := c.index[v]
	if !ok {
		return 0, false
	}
	return c.values[i], true
}

// Known reports whether v has been evaluated.
func (c *Cache) Known(v isomesh.V3i) bool {
	_, ok := c.index[v]
	return ok
}

// Set stores val at v. It fails with ErrKnown if v already has a value.
func (c *Cache) Set(v isomesh.V3i, val float64) error {
	if _, ok := c.index[v]; ok {
		return errors.Wrapf(ErrKnown, "set %v", v)
	}
	c.index[v] = len(c.values)
	c.coords = append(c.coords, v)
	c.values = append(c.values, val)
	return nil
}

// Len returns the number of known samples.
func (c *Cache) Len() int { return len(c.values) }

// Each calls fn for every known sample in insertion order.
func (c *Cache) Each(fn func(v isomesh.V3i, val float64)) {
	for i, v := range c.coords {
		fn(v, c.values[i])
	}
}
