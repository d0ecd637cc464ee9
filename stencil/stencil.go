// Package stencil holds the charge assignment polynomials shared by the
// particle-mesh solvers: the per order coefficient tables, the 1D weights of
// a particle at a fractional grid offset and the Green's function
// denominator expansion that compensates the assignment aliasing.
package stencil

import (
	"fmt"
	"math"
)

const (
	MaxOrder = 7
	// Offset is added before truncating a scaled position to a grid index so
	// that int(-0.75) = -1 as wanted rather than 0. It also bounds the global
	// grid size per dimension.
	Offset = 4096
)

// Bounds returns the stencil lower/upper offsets relative to the particle's
// grid index: the stencil spans [nlower, nupper], order points per axis.
func Bounds(order int) (nlower, nupper int) {
	nlower = -(order - 1) / 2
	nupper = order / 2
	return
}

// Shift returns the values used to map a scaled position onto its stencil
// origin: odd orders round to the nearest point, even orders truncate.
func Shift(order int) (shift, shiftone float64) {
	if order%2 == 1 {
		return Offset + 0.5, 0.0
	}
	return Offset, 0.5
}

type Table struct {
	Order          int
	NLower, NUpper int
	Shift          float64
	ShiftOne       float64
	// RhoCoeff[l][k-NLower] is the coefficient of dx^l of the weight given to
	// stencil point k
	RhoCoeff [][]float64
	// GFB are the coefficients of the aliasing sum denominator polynomial in sin^2(kh/2)
	GFB []float64
}

func NewTable(order int) (t *Table, err error) {
	if order < 1 || order > MaxOrder {
		err = fmt.Errorf("stencil order must be in [1,%d], have %d", MaxOrder, order)
		return
	}
	t = &Table{
		Order:    order,
		RhoCoeff: RhoCoeff(order),
		GFB:      GFDenomCoeff(order),
	}
	t.NLower, t.NUpper = Bounds(order)
	t.Shift, t.ShiftOne = Shift(order)
	return
}

// RhoCoeff builds the piecewise polynomial charge assignment function of the
// given order by repeated convolution of the unit box.
func RhoCoeff(order int) (rc [][]float64) {
	var (
		a   = make([][]float64, order) // a[l][k+order], k in [-order, order]
		off = order
	)
	for l := range a {
		a[l] = make([]float64, 2*order+1)
	}
	a[0][off] = 1
	for j := 1; j < order; j++ {
		for k := -j; k <= j; k += 2 {
			var s float64
			for l := 0; l < j; l++ {
				a[l+1][k+off] = (a[l][k+1+off] - a[l][k-1+off]) / float64(l+1)
				s += math.Pow(0.5, float64(l+1)) *
					(a[l][k-1+off] + math.Pow(-1, float64(l))*a[l][k+1+off]) / float64(l+1)
			}
			a[0][k+off] = s
		}
	}
	rc = make([][]float64, order)
	for l := range rc {
		rc[l] = make([]float64, order)
	}
	var m int
	for k := -(order - 1); k < order; k += 2 {
		for l := 0; l < order; l++ {
			rc[l][m] = a[l][k+off]
		}
		m++
	}
	return
}

// GFDenomCoeff returns the coefficients of the sum over aliased images of the
// squared assignment function, expressed as a polynomial in sin^2.
func GFDenomCoeff(order int) (gfb []float64) {
	gfb = make([]float64, order)
	gfb[0] = 1
	for m := 1; m < order; m++ {
		for l := m; l > 0; l-- {
			fl, fm := float64(l), float64(m)
			gfb[l] = 4 * (gfb[l]*(fl-fm)*(fl-fm-0.5) - gfb[l-1]*(fl-fm-1)*(fl-fm-1))
		}
		fm := float64(m)
		gfb[0] = 4 * (gfb[0] * (-fm) * (-fm - 0.5))
	}
	ifact := 1.
	for k := 1; k < 2*order; k++ {
		ifact *= float64(k)
	}
	for l := range gfb {
		gfb[l] /= ifact
	}
	return
}

// Weights evaluates the order weights of a particle at fractional offset dx
// from its stencil origin into w, w[k-NLower] for k in [NLower,NUpper].
func (t *Table) Weights(dx float64, w []float64) {
	for k := 0; k < t.Order; k++ {
		var r float64
		for l := t.Order - 1; l >= 0; l-- {
			r = t.RhoCoeff[l][k] + r*dx
		}
		w[k] = r
	}
}

// GFDenom evaluates the squared product of the per axis denominator series at
// x, y, z = sin^2 of the half grid wave numbers.
func (t *Table) GFDenom(x, y, z float64) float64 {
	var sx, sy, sz float64
	for l := t.Order - 1; l >= 0; l-- {
		sx = t.GFB[l] + sx*x
		sy = t.GFB[l] + sy*y
		sz = t.GFB[l] + sz*z
	}
	s := sx * sy * sz
	return s * s
}

// Origin maps a scaled position u = (x-lo)/h to the stencil origin index and
// the fractional offset dx used by Weights.
func (t *Table) Origin(u float64) (n int, dx float64) {
	n = int(u+t.Shift) - Offset
	dx = float64(n) + t.ShiftOne - u
	return
}
