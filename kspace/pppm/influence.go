package pppm

import (
	"fmt"
	"math"

	"github.com/dgravesa/go-parallel/parallel"

	"github.com/notargets/gopppm/kspace"
	"github.com/notargets/gopppm/types"
	"github.com/notargets/gopppm/utils"
)

// Setup rebuilds the wave numbers, the virial weights and the optimal
// influence function for the current box. The mesh is kept, a box of another
// size or origin also rebuilds the extended ranges of every rank.
func (p *PPPM) Setup(box types.Box) (err error) {
	if p.geom == nil {
		err = fmt.Errorf("%w: PPPM setup before init", kspace.ErrConfiguration)
		return
	}
	if err = kspace.CheckBoundaries(box, p.cfg.Slab); err != nil {
		return
	}
	if box.Prd() != p.geom.Box.Prd() || box.Lo != p.geom.Box.Lo {
		if err = p.regrid(box); err != nil {
			return
		}
	}
	var (
		g     = p.params.GEwald
		mesh  = p.geom.Mesh
		prd   = kspace.SlabPrd(box, p.cfg.SlabVolFactor)
		unitk [3]float64
		nb    [3]int
		rg    = p.geom.FFT[p.me]
		dims  = rg.Dims()
	)
	p.box = box
	p.volume = prd[0] * prd[1] * prd[2]
	p.delvolinv = 1
	for n := 0; n < 3; n++ {
		p.delinv[n] = float64(mesh[n]) / prd[n]
		p.delvolinv *= p.delinv[n]
		unitk[n] = 2 * math.Pi / prd[n]
		p.fk[n] = make([]float64, mesh[n])
		for i := range p.fk[n] {
			p.fk[n][i] = unitk[n] * float64(fper(i, mesh[n]))
		}
		nb[n] = int((g * prd[n] / (math.Pi * float64(mesh[n]))) * math.Pow(-math.Log(kspace.EpsHOC), 0.25))
	}
	p.greensfn = make([]float64, rg.Size())
	p.vg = make([][6]float64, rg.Size())
	parallel.WithNumGoroutines(p.cfg.Threads).For(rg.Size(), func(idx, _ int) {
		var (
			i    = rg.Lo[0] + idx%dims[0]
			j    = rg.Lo[1] + (idx/dims[0])%dims[1]
			k    = rg.Lo[2] + idx/(dims[0]*dims[1])
			kper = [3]int{fper(i, mesh[0]), fper(j, mesh[1]), fper(k, mesh[2])}
			fk   = [3]float64{p.fk[0][i], p.fk[1][j], p.fk[2][k]}
			sqk  = fk[0]*fk[0] + fk[1]*fk[1] + fk[2]*fk[2]
		)
		if sqk == 0 {
			return
		}
		vterm := -2 * (1/sqk + 0.25/(g*g))
		p.vg[idx] = [6]float64{
			1 + vterm*fk[0]*fk[0],
			1 + vterm*fk[1]*fk[1],
			1 + vterm*fk[2]*fk[2],
			vterm * fk[0] * fk[1],
			vterm * fk[0] * fk[2],
			vterm * fk[1] * fk[2],
		}
		p.greensfn[idx] = p.optimalGreens(kper, fk, sqk, unitk, prd, nb)
	})
	return
}

// fper folds a mesh index onto its signed wave number index
func fper(i, n int) int {
	return i - n*((2*i)/n)
}

// optimalGreens is the influence function minimizing the force error of the
// ik differentiated scheme, summed over the aliased images within nb.
func (p *PPPM) optimalGreens(kper [3]int, fk [3]float64, sqk float64, unitk, prd [3]float64, nb [3]int) float64 {
	var (
		g        = p.params.GEwald
		mesh     = p.geom.Mesh
		twoorder = 2 * p.table.Order
		sn       [3]float64
		q        [3][]float64
		s        [3][]float64
		w        [3][]float64
	)
	for n := 0; n < 3; n++ {
		sn[n] = utils.POW(math.Sin(0.5*unitk[n]*float64(kper[n])*prd[n]/float64(mesh[n])), 2)
		q[n] = make([]float64, 2*nb[n]+1)
		s[n] = make([]float64, 2*nb[n]+1)
		w[n] = make([]float64, 2*nb[n]+1)
		for m := -nb[n]; m <= nb[n]; m++ {
			qq := unitk[n] * float64(kper[n]+mesh[n]*m)
			q[n][m+nb[n]] = qq
			s[n][m+nb[n]] = math.Exp(-0.25 * (qq / g) * (qq / g))
			w[n][m+nb[n]] = powSinxx(0.5*qq*prd[n]/float64(mesh[n]), twoorder)
		}
	}
	var sum float64
	for a := range q[0] {
		for b := range q[1] {
			for c := range q[2] {
				dot1 := fk[0]*q[0][a] + fk[1]*q[1][b] + fk[2]*q[2][c]
				dot2 := q[0][a]*q[0][a] + q[1][b]*q[1][b] + q[2][c]*q[2][c]
				sum += (dot1 / dot2) * s[0][a] * s[1][b] * s[2][c] * w[0][a] * w[1][b] * w[2][c]
			}
		}
	}
	return 4 * math.Pi / sqk * sum / p.table.GFDenom(sn[0], sn[1], sn[2])
}

// powSinxx is (sin(x)/x)^n
func powSinxx(x float64, n int) float64 {
	if x == 0 {
		return 1
	}
	return utils.POW(math.Sin(x)/x, n)
}
