package types

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// Box is the simulation domain. Lo/Hi bound each axis, Periodic marks the
// axes that repeat. Tilt factors are only meaningful when Triclinic is set.
type Box struct {
	Lo, Hi     [3]float64
	Periodic   [3]bool
	Triclinic  bool
	XY, XZ, YZ float64
}

func NewBox(lo, hi [3]float64, periodic [3]bool) (b Box) {
	b = Box{
		Lo:       lo,
		Hi:       hi,
		Periodic: periodic,
	}
	return
}

// NewCubicBox returns a fully periodic cube [0,L)^3
func NewCubicBox(L float64) Box {
	return NewBox([3]float64{}, [3]float64{L, L, L}, [3]bool{true, true, true})
}

func (b Box) Check() (err error) {
	for n := 0; n < 3; n++ {
		if !(b.Hi[n] > b.Lo[n]) {
			err = fmt.Errorf("box dimension %d is empty or inverted: lo = %g, hi = %g", n, b.Lo[n], b.Hi[n])
			return
		}
	}
	return
}

func (b Box) Prd() (prd [3]float64) {
	for n := 0; n < 3; n++ {
		prd[n] = b.Hi[n] - b.Lo[n]
	}
	return
}

func (b Box) Volume() float64 {
	prd := b.Prd()
	return prd[0] * prd[1] * prd[2]
}

// NonPeriodic returns true if any axis is non periodic
func (b Box) NonPeriodic() bool {
	return !(b.Periodic[0] && b.Periodic[1] && b.Periodic[2])
}

// MinimumImage wraps a separation vector into the nearest periodic image along
// the periodic axes of an orthogonal box.
func (b Box) MinimumImage(d r3.Vec) r3.Vec {
	var (
		prd = b.Prd()
		c   = [3]*float64{&d.X, &d.Y, &d.Z}
	)
	for n := 0; n < 3; n++ {
		if !b.Periodic[n] {
			continue
		}
		half := 0.5 * prd[n]
		for *c[n] > half {
			*c[n] -= prd[n]
		}
		for *c[n] < -half {
			*c[n] += prd[n]
		}
	}
	return d
}

// Wrap maps a position back into the primary box along periodic axes
func (b Box) Wrap(x [3]float64) [3]float64 {
	prd := b.Prd()
	for n := 0; n < 3; n++ {
		if !b.Periodic[n] {
			continue
		}
		for x[n] < b.Lo[n] {
			x[n] += prd[n]
		}
		for x[n] >= b.Hi[n] {
			x[n] -= prd[n]
		}
	}
	return x
}

// SubBox returns the bounds of the sub-domain at grid location loc of a
// uniform procs[0] x procs[1] x procs[2] processor grid.
func (b Box) SubBox(loc, procs [3]int) (sublo, subhi [3]float64) {
	prd := b.Prd()
	for n := 0; n < 3; n++ {
		sublo[n] = b.Lo[n] + prd[n]*float64(loc[n])/float64(procs[n])
		subhi[n] = b.Lo[n] + prd[n]*float64(loc[n]+1)/float64(procs[n])
	}
	return
}

// SameShape is true when both boxes have identical bounds, periodicity and tilt
func (b Box) SameShape(o Box) bool {
	return b == o
}

func ToVec(x [3]float64) r3.Vec {
	return r3.Vec{X: x[0], Y: x[1], Z: x[2]}
}

func FromVec(v r3.Vec) [3]float64 {
	return [3]float64{v.X, v.Y, v.Z}
}
