// Package d3 holds r3 vector helpers missing from gonum's r3 package.
package d3

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Elem returns a vector with every component set to v.
func Elem(v float64) r3.Vec {
	return r3.Vec{X: v, Y: v, Z: v}
}

// LTEZero returns true if any vector components are <= 0.
func LTEZero(a r3.Vec) bool {
	return (a.X <= 0) || (a.Y <= 0) || (a.Z <= 0)
}

// MinElem return a vector with the minimum components of two vectors.
func MinElem(a, b r3.Vec) r3.Vec {
	return r3.Vec{X: math.Min(a.X, b.X), Y: math.Min(a.Y, b.Y), Z: math.Min(a.Z, b.Z)}
}

// MaxElem return a vector with the maximum components of two vectors.
func MaxElem(a, b r3.Vec) r3.Vec {
	return r3.Vec{X: math.Max(a.X, b.X), Y: math.Max(a.Y, b.Y), Z: math.Max(a.Z, b.Z)}
}

// Max returns the largest component.
func Max(a r3.Vec) float64 {
	return math.Max(a.Z, math.Max(a.X, a.Y))
}

func AbsElem(a r3.Vec) r3.Vec {
	return r3.Vec{X: math.Abs(a.X), Y: math.Abs(a.Y), Z: math.Abs(a.Z)}
}

// Set is a point cloud.
type Set []r3.Vec

// AbsMax returns the largest absolute coordinate found in the set.
// It returns 0 for an empty set.
func (a Set) AbsMax() (m float64) {
	for _, v := range a {
		m = math.Max(m, Max(AbsElem(v)))
	}
	return m
}

// Scale returns a new set with every vector scaled by k.
func (a Set) Scale(k float64) Set {
	s := make(Set, len(a))
	for i, v := range a {
		s[i] = r3.Scale(k, v)
	}
	return s
}
