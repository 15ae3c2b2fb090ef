package render

import (
	"bufio"
	"encoding/binary"
	"io"
	"math"
	"os"

	"github.com/chewxy/math32"
	"github.com/ngailapdi/isomesh"
	"github.com/ngailapdi/isomesh/mise"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/spatial/r3"
)

// Field dump layout, all little-endian:
//
//	int32   -resolution, resolution, resolution
//	float64 min x, min y, min z, max x, max y, max z
//	float32 (resolution+1)^3 values, z slowest and x fastest
//
// The lattice spans a cube of side boxSize centered at the origin.

const maxDumpResolution = 1024

// ErrDumpFormat is returned when a field dump header is malformed.
var ErrDumpFormat = errors.New("malformed field dump")

// WriteFieldDump writes the dense grid sampled over a cube of side boxSize
// centered at the origin to w.
func WriteFieldDump(w io.Writer, g *mise.DenseGrid, boxSize float64) error {
	res := g.N - 1
	if res < 1 {
		return errors.Wrap(ErrDumpFormat, "grid resolution must be positive")
	}
	header := [3]int32{int32(-res), int32(res), int32(res)}
	if err := binary.Write(w, binary.LittleEndian, header); err != nil {
		return err
	}
	lo, hi := -boxSize/2, boxSize/2
	bounds := [6]float64{lo, lo, lo, hi, hi, hi}
	if err := binary.Write(w, binary.LittleEndian, bounds); err != nil {
		return err
	}
	row := make([]byte, 4*g.N)
	for z := 0; z < g.N; z++ {
		for y := 0; y < g.N; y++ {
			for x := 0; x < g.N; x++ {
				v := float32(g.At(isomesh.V3i{x, y, z}))
				binary.LittleEndian.PutUint32(row[4*x:], math.Float32bits(v))
			}
			if _, err := w.Write(row); err != nil {
				return err
			}
		}
	}
	return nil
}

// CreateFieldDump writes a field dump file at path.
func CreateFieldDump(path string, g *mise.DenseGrid, boxSize float64) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(file)
	if err := WriteFieldDump(bw, g, boxSize); err != nil {
		file.Close()
		return errors.Wrapf(err, "write %s", path)
	}
	if err := bw.Flush(); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// ReadFieldDump reads a field dump and returns the grid and its bounding box.
// NaN values are rejected.
func ReadFieldDump(r io.Reader) (*mise.DenseGrid, r3.Box, error) {
	var header [3]int32
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, r3.Box{}, errors.Wrap(err, "field dump header")
	}
	res := int(header[1])
	if res < 1 || res > maxDumpResolution || header[0] != -header[1] || header[2] != header[1] {
		return nil, r3.Box{}, errors.Wrapf(ErrDumpFormat, "extents %v", header)
	}
	var b [6]float64
	if err := binary.Read(r, binary.LittleEndian, &b); err != nil {
		return nil, r3.Box{}, errors.Wrap(err, "field dump bounds")
	}
	bounds := r3.Box{Min: r3.Vec{X: b[0], Y: b[1], Z: b[2]}, Max: r3.Vec{X: b[3], Y: b[4], Z: b[5]}}
	g := mise.NewDenseGrid(res + 1)
	row := make([]byte, 4*g.N)
	for z := 0; z < g.N; z++ {
		for y := 0; y < g.N; y++ {
			if _, err := io.ReadFull(r, row); err != nil {
				return nil, r3.Box{}, errors.Wrapf(err, "field dump row z=%d y=%d", z, y)
			}
			for x := 0; x < g.N; x++ {
				v := math.Float32frombits(binary.LittleEndian.Uint32(row[4*x:]))
				if math32.IsNaN(v) {
					return nil, r3.Box{}, errors.Wrapf(ErrDumpFormat, "NaN at (%d, %d, %d)", x, y, z)
				}
				g.Set(isomesh.V3i{x, y, z}, float64(v))
			}
		}
	}
	return g, bounds, nil
}

// LoadFieldDump reads the field dump file at path.
func LoadFieldDump(path string) (*mise.DenseGrid, r3.Box, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, r3.Box{}, err
	}
	defer file.Close()
	g, bb, err := ReadFieldDump(bufio.NewReader(file))
	return g, bb, errors.Wrapf(err, "read %s", path)
}
