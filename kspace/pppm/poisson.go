package pppm

import (
	"github.com/notargets/gopppm/grid"
	"github.com/notargets/gopppm/kspace"
)

// brick2fft folds the ghost density into the owning ranks and moves the
// owned density into the transform layout
func (p *PPPM) brick2fft() (err error) {
	if err = p.halo.Reverse(p.density); err != nil {
		return
	}
	return p.toFFT.Do(p.density, grid.RealPart{CBrick: p.work})
}

// poisson solves for the gradient of the potential on the mesh. It returns
// the energy and virial sums of the local transform points, still to be
// scaled by the volume and the unit conversion.
func (p *PPPM) poisson() (ev kspace.EnergyVirial, err error) {
	if err = p.plan.Forward(p.work); err != nil {
		return
	}
	var (
		mesh     = p.geom.Mesh
		scaleinv = 1 / float64(mesh[0]*mesh[1]*mesh[2])
		s2       = scaleinv * scaleinv
		rg       = p.work.Range
		dims     = rg.Dims()
	)
	for idx, v := range p.work.Data {
		eng := s2 * p.greensfn[idx] * (real(v)*real(v) + imag(v)*imag(v))
		ev.Energy += eng
		for j := 0; j < 6; j++ {
			ev.Virial[j] += eng * p.vg[idx][j]
		}
		p.work.Data[idx] = v * complex(scaleinv*p.greensfn[idx], 0)
	}
	// the forward transform is exp(-ikx), so the gradient is +ik
	for axis := 0; axis < 3; axis++ {
		for idx, v := range p.work.Data {
			var (
				i   = rg.Lo[0] + idx%dims[0]
				j   = rg.Lo[1] + (idx/dims[0])%dims[1]
				k   = rg.Lo[2] + idx/(dims[0]*dims[1])
				ijk = [3]int{i, j, k}
			)
			p.work2.Data[idx] = complex(0, p.fk[axis][ijk[axis]]) * v
		}
		if err = p.plan.Inverse(p.work2); err != nil {
			return
		}
		if err = p.fromFFT.Do(grid.RealPart{CBrick: p.work2}, p.vd[axis]); err != nil {
			return
		}
	}
	return
}

// fillBrick copies the owned field values into the ghost points of every rank
func (p *PPPM) fillBrick() error {
	return p.halo.Forward(p.vd[0], p.vd[1], p.vd[2])
}
