package kspace

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/notargets/gopppm/comm"
	"github.com/notargets/gopppm/types"
)

// CheckBoundaries validates the box for a reciprocal space sum. Fully
// periodic boxes are always accepted; slab mode needs periodic x and y and
// a non periodic z.
func CheckBoundaries(box types.Box, slab bool) (err error) {
	if err = box.Check(); err != nil {
		err = fmt.Errorf("%w: %v", ErrConfiguration, err)
		return
	}
	if box.Triclinic {
		err = fmt.Errorf("%w: cannot (yet) use kspace solvers with triclinic box", ErrConfiguration)
		return
	}
	switch {
	case slab && !(box.Periodic[0] && box.Periodic[1] && !box.Periodic[2]):
		err = fmt.Errorf("%w: incorrect boundaries with slab kspace, need periodic x and y, non periodic z",
			ErrConfiguration)
	case !slab && box.NonPeriodic():
		err = fmt.Errorf("%w: cannot use non-periodic boundaries with kspace solvers", ErrConfiguration)
	}
	return
}

// SlabCorrection removes the dipole interaction between the periodic images
// of a slab stacked along z. q and z are the owned charges and their
// heights, volume is the extended slab volume. It returns the energy, the
// same on every rank, and the field along z that each charge q feels as a
// force q*fieldZ.
func SlabCorrection(c comm.Comm, q, z []float64, volume, qscale float64) (energy, fieldZ float64, err error) {
	var sum []float64
	if sum, err = c.AllReduce([]float64{floats.Dot(q, z)}); err != nil {
		return
	}
	dipole := sum[0]
	energy = qscale * 2 * math.Pi * dipole * dipole / volume
	fieldZ = qscale * (-4 * math.Pi * dipole / volume)
	return
}
