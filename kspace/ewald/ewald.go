// Package ewald is the classic Ewald sum of the reciprocal space Coulomb
// interactions, an explicit sum over k vectors. It costs O(N^1.5) and
// serves as the reference for the mesh solvers.
package ewald

import (
	"fmt"
	"math"

	"github.com/dgravesa/go-parallel/parallel"

	"github.com/notargets/gopppm/comm"
	"github.com/notargets/gopppm/kspace"
	"github.com/notargets/gopppm/particles"
	"github.com/notargets/gopppm/types"
)

type kvec struct {
	k  [3]float64
	ug float64    // 4 pi exp(-k^2/4g^2)/(V k^2)
	vg [6]float64 // virial weights
}

type Ewald struct {
	cfg    kspace.Config
	rep    kspace.Reporter
	comm   comm.Comm
	params kspace.Parameters
	charge kspace.ChargeStats
	box    types.Box
	volume float64
	kvecs  []kvec
	sf     []float64 // cos and sin structure factors per k vector
}

func New(cfg kspace.Config, rep kspace.Reporter) (kspace.Solver, error) {
	if rep == nil {
		rep = kspace.SilentReporter{}
	}
	return &Ewald{cfg: cfg.WithDefaults(), rep: rep}, nil
}

func (e *Ewald) Parameters() kspace.Parameters { return e.params }

func (e *Ewald) Init(c comm.Comm, a *particles.Atoms, box types.Box) (err error) {
	e.comm = c
	if e.cfg.TIP4P != nil {
		err = fmt.Errorf("%w: the Ewald sum does not support TIP4P sites", kspace.ErrConfiguration)
		return
	}
	if err = kspace.CheckBoundaries(box, e.cfg.Slab); err != nil {
		return
	}
	if e.charge, err = kspace.GatherCharge(c, a); err != nil {
		return
	}
	if err = e.charge.Check(e.rep); err != nil {
		return
	}
	if e.params, err = kspace.EwaldAccuracy(e.cfg, box, e.charge); err != nil {
		return
	}
	return e.Setup(box)
}

// Setup lists the k vectors of the half space kx > 0, or kx = 0 and ky > 0,
// or kx = ky = 0 and kz > 0, inside the cutoff sphere.
func (e *Ewald) Setup(box types.Box) (err error) {
	if err = kspace.CheckBoundaries(box, e.cfg.Slab); err != nil {
		return
	}
	var (
		g     = e.params.GEwald
		kmax  = e.params.KMax
		prd   = kspace.SlabPrd(box, e.cfg.SlabVolFactor)
		unitk [3]float64
		gsqmx float64
	)
	e.box = box
	e.volume = prd[0] * prd[1] * prd[2]
	for n := 0; n < 3; n++ {
		unitk[n] = 2 * math.Pi / prd[n]
		gsqmx = max(gsqmx, unitk[n]*unitk[n]*float64(kmax[n]*kmax[n]))
	}
	gsqmx *= 1.00001
	e.kvecs = e.kvecs[:0]
	for kx := 0; kx <= kmax[0]; kx++ {
		for ky := -kmax[1]; ky <= kmax[1]; ky++ {
			for kz := -kmax[2]; kz <= kmax[2]; kz++ {
				if kx == 0 && (ky < 0 || (ky == 0 && kz <= 0)) {
					continue
				}
				k := [3]float64{unitk[0] * float64(kx), unitk[1] * float64(ky), unitk[2] * float64(kz)}
				sqk := k[0]*k[0] + k[1]*k[1] + k[2]*k[2]
				if sqk > gsqmx {
					continue
				}
				vterm := -2 * (1/sqk + 0.25/(g*g))
				e.kvecs = append(e.kvecs, kvec{
					k:  k,
					ug: 4 * math.Pi / e.volume * math.Exp(-0.25*sqk/(g*g)) / sqk,
					vg: [6]float64{
						1 + vterm*k[0]*k[0], 1 + vterm*k[1]*k[1], 1 + vterm*k[2]*k[2],
						vterm * k[0] * k[1], vterm * k[0] * k[2], vterm * k[1] * k[2],
					},
				})
			}
		}
	}
	e.sf = make([]float64, 2*len(e.kvecs))
	return
}

func (e *Ewald) Compute(a *particles.Atoms, box types.Box) (ev kspace.EnergyVirial, err error) {
	if e.comm == nil {
		err = fmt.Errorf("%w: Ewald compute before init", kspace.ErrConfiguration)
		return
	}
	if box != e.box {
		if err = e.Setup(box); err != nil {
			return
		}
	}
	var (
		nlocal = a.NLocal
		g      = e.params.GEwald
		qscale = e.cfg.Units.QQRD2E() * e.cfg.Scale
	)
	parallel.WithNumGoroutines(e.cfg.Threads).For(len(e.kvecs), func(m, _ int) {
		var cs, sn float64
		k := e.kvecs[m].k
		for i := 0; i < nlocal; i++ {
			arg := k[0]*a.X[i][0] + k[1]*a.X[i][1] + k[2]*a.X[i][2]
			cs += a.Q[i] * math.Cos(arg)
			sn += a.Q[i] * math.Sin(arg)
		}
		e.sf[2*m], e.sf[2*m+1] = cs, sn
	})
	var sf []float64
	if sf, err = e.comm.AllReduce(e.sf); err != nil {
		return
	}
	for m, kv := range e.kvecs {
		s2 := sf[2*m]*sf[2*m] + sf[2*m+1]*sf[2*m+1]
		ev.Energy += kv.ug * s2
		for j := 0; j < 6; j++ {
			ev.Virial[j] += kv.ug * s2 * kv.vg[j]
		}
	}
	ev.Energy -= g*e.charge.QSqSum/math.Sqrt(math.Pi) +
		0.5*math.Pi*e.charge.QSum*e.charge.QSum/(g*g*e.volume)
	ev.Energy *= qscale
	for j := range ev.Virial {
		ev.Virial[j] *= qscale
	}
	parallel.WithNumGoroutines(e.cfg.Threads).For(nlocal, func(i, _ int) {
		var f [3]float64
		for m, kv := range e.kvecs {
			arg := kv.k[0]*a.X[i][0] + kv.k[1]*a.X[i][1] + kv.k[2]*a.X[i][2]
			s, c := math.Sincos(arg)
			pre := 2 * kv.ug * (sf[2*m]*s - sf[2*m+1]*c)
			for n := 0; n < 3; n++ {
				f[n] += pre * kv.k[n]
			}
		}
		for n := 0; n < 3; n++ {
			a.F[i][n] += qscale * a.Q[i] * f[n]
		}
	})
	if e.cfg.Slab {
		var eslab, fieldZ float64
		z := make([]float64, nlocal)
		for i := range z {
			z[i] = a.X[i][2]
		}
		if eslab, fieldZ, err = kspace.SlabCorrection(e.comm, a.Q[:nlocal], z, e.volume, qscale); err != nil {
			return
		}
		ev.Energy += eslab
		for i := 0; i < nlocal; i++ {
			a.F[i][2] += a.Q[i] * fieldZ
		}
	}
	return
}

func (e *Ewald) MemoryUsage() float64 {
	return float64(len(e.kvecs))*(3+1+6)*8 + float64(len(e.sf))*8
}
