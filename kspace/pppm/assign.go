package pppm

import (
	"fmt"

	"github.com/dgravesa/go-parallel/parallel"
	"github.com/james-bowman/sparse"

	"github.com/notargets/gopppm/grid"
	"github.com/notargets/gopppm/kspace"
	"github.com/notargets/gopppm/stencil"
	"github.com/notargets/gopppm/utils"
)

// gridUnits is the position of a charge site in mesh spacings from the box
// origin
func (p *PPPM) gridUnits(x [3]float64) (u [3]float64) {
	for n := 0; n < 3; n++ {
		u[n] = (x[n] - p.box.Lo[n]) * p.delinv[n]
	}
	return
}

// particleMap finds the stencil origin of every charge site. A stencil that
// leaves the extended mesh of its rank stops every rank.
func (p *PPPM) particleMap() (err error) {
	var (
		out  = p.geom.Out[p.me]
		flag float64
	)
	for i, x := range p.xs {
		u := p.gridUnits(x)
		for n := 0; n < 3; n++ {
			p.part2grid[i][n], _ = p.table.Origin(u[n])
			if p.part2grid[i][n]+p.table.NLower < out.Lo[n] || p.part2grid[i][n]+p.table.NUpper > out.Hi[n] {
				flag = 1
			}
		}
	}
	var sum []float64
	if sum, err = p.comm.AllReduce([]float64{flag}); err != nil {
		return
	}
	if sum[0] != 0 {
		err = fmt.Errorf("%w: out of range atoms - cannot compute PPPM", kspace.ErrRuntimeDivergence)
	}
	return
}

// weights evaluates the three 1D stencil weights of site i into w
func (p *PPPM) weights(i int, w *[3][stencil.MaxOrder]float64) {
	u := p.gridUnits(p.xs[i])
	for n := 0; n < 3; n++ {
		dx := float64(p.part2grid[i][n]) + p.table.ShiftOne - u[n]
		p.table.Weights(dx, w[n][:p.table.Order])
	}
}

// makeRho spreads the charges onto the density brick. With several threads
// every worker fills its own scratch brick and the bricks are summed.
func (p *PPPM) makeRho() {
	p.density.Zero()
	if len(p.scratch) == 0 {
		p.spread(p.density, 0, len(p.xs))
		return
	}
	pm := utils.NewPartitionMap(len(p.scratch), len(p.xs))
	pm.Run(func(bn, kMin, kMax int) {
		p.scratch[bn].Zero()
		p.spread(p.scratch[bn], kMin, kMax)
	})
	for bn := range p.scratch {
		if pm.GetBucketDimension(bn) != 0 {
			p.density.Accumulate(p.scratch[bn])
		}
	}
}

func (p *PPPM) spread(b *grid.Brick, iMin, iMax int) {
	var (
		order  = p.table.Order
		nlower = p.table.NLower
		w      [3][stencil.MaxOrder]float64
	)
	for i := iMin; i < iMax; i++ {
		p.weights(i, &w)
		var (
			org = p.part2grid[i]
			z0  = p.delvolinv * p.q[i]
		)
		for n := 0; n < order; n++ {
			mz := org[2] + nlower + n
			y0 := z0 * w[2][n]
			for m := 0; m < order; m++ {
				my := org[1] + nlower + m
				x0 := y0 * w[1][m]
				ind := b.Index(org[0]+nlower, my, mz)
				for l := 0; l < order; l++ {
					b.Data[ind+l] += x0 * w[0][l]
				}
			}
		}
	}
}

// fieldForce interpolates the electric field from the mesh onto every
// charge site
func (p *PPPM) fieldForce() {
	var (
		order  = p.table.Order
		nlower = p.table.NLower
		vd     = p.vd
	)
	parallel.WithNumGoroutines(p.cfg.Threads).For(len(p.xs), func(i, _ int) {
		var (
			w   [3][stencil.MaxOrder]float64
			org = p.part2grid[i]
			ek  [3]float64
		)
		p.weights(i, &w)
		for n := 0; n < order; n++ {
			mz := org[2] + nlower + n
			z0 := w[2][n]
			for m := 0; m < order; m++ {
				my := org[1] + nlower + m
				y0 := z0 * w[1][m]
				ind := vd[0].Index(org[0]+nlower, my, mz)
				for l := 0; l < order; l++ {
					x0 := y0 * w[0][l]
					ek[0] -= x0 * vd[0].Data[ind+l]
					ek[1] -= x0 * vd[1].Data[ind+l]
					ek[2] -= x0 * vd[2].Data[ind+l]
				}
			}
		}
		p.ek[i] = ek
	})
}

// AssignmentMatrix is the charge assignment of the last Compute as a sparse
// (extended mesh point x owned atom) matrix of stencil weights.
func (p *PPPM) AssignmentMatrix() (W *sparse.CSR, err error) {
	if p.geom == nil || len(p.part2grid) == 0 {
		err = fmt.Errorf("%w: no charge assignment to express, run Compute first", kspace.ErrConfiguration)
		return
	}
	out := p.geom.Out[p.me]
	u := make([][3]float64, len(p.xs))
	for i, x := range p.xs {
		u[i] = p.gridUnits(x)
	}
	return p.table.AssignmentMatrix(out.Lo, out.Dims(), p.part2grid, u)
}

// CheckSpread rebuilds the density of the last Compute from the assignment
// matrix and returns the largest deviation from the spread density, before
// ghost contributions were folded into their owners.
func (p *PPPM) CheckSpread() (maxDev float64, err error) {
	var W *sparse.CSR
	if W, err = p.AssignmentMatrix(); err != nil {
		return
	}
	p.makeRho()
	rho := stencil.Spread(W, p.q)
	for i, v := range rho {
		d := v*p.delvolinv - p.density.Data[i]
		if d < 0 {
			d = -d
		}
		maxDev = max(maxDev, d)
	}
	return
}
