package stencil

import (
	"fmt"

	"github.com/james-bowman/sparse"
)

// AssignmentMatrix returns the (grid point x particle) matrix W of charge
// assignment weights over the block of points starting at lo with extent
// dims, x fastest. origin[p] is the stencil origin of particle p and u[p] its
// position in grid units. Spreading charges q is W*q, gathering a field f is
// W^T*f.
func (t *Table) AssignmentMatrix(lo, dims [3]int, origin [][3]int, u [][3]float64) (W *sparse.CSR, err error) {
	var (
		npts = dims[0] * dims[1] * dims[2]
		dok  = sparse.NewDOK(npts, len(origin))
		w    [3][]float64
	)
	for n := range w {
		w[n] = make([]float64, t.Order)
	}
	for p := range origin {
		for n := 0; n < 3; n++ {
			if origin[p][n]+t.NLower < lo[n] || origin[p][n]+t.NUpper >= lo[n]+dims[n] {
				err = fmt.Errorf("particle %d stencil at %v leaves the block %v+%v", p, origin[p], lo, dims)
				return
			}
			t.Weights(float64(origin[p][n])+t.ShiftOne-u[p][n], w[n])
		}
		for k := 0; k < t.Order; k++ {
			mz := origin[p][2] + t.NLower + k - lo[2]
			for j := 0; j < t.Order; j++ {
				my := origin[p][1] + t.NLower + j - lo[1]
				for i := 0; i < t.Order; i++ {
					mx := origin[p][0] + t.NLower + i - lo[0]
					row := mx + dims[0]*(my+dims[1]*mz)
					dok.Set(row, p, dok.At(row, p)+w[0][i]*w[1][j]*w[2][k])
				}
			}
		}
	}
	W = dok.ToCSR()
	return
}

// Spread returns W*q
func Spread(W *sparse.CSR, q []float64) (rho []float64) {
	r, _ := W.Dims()
	rho = make([]float64, r)
	W.MulVecTo(rho, false, q)
	return
}

// Gather returns W^T*f
func Gather(W *sparse.CSR, f []float64) (g []float64) {
	_, c := W.Dims()
	g = make([]float64, c)
	W.MulVecTo(g, true, f)
	return
}
