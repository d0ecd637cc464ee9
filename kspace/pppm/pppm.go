// Package pppm is the particle-particle particle-mesh solver of the long
// range Coulomb interactions: charges are spread onto a regular mesh, the
// Poisson equation is solved with a distributed FFT using the Hockney and
// Eastwood optimal influence function and the field is interpolated back to
// the charges.
package pppm

import (
	"fmt"
	"math"

	"github.com/notargets/gopppm/comm"
	"github.com/notargets/gopppm/fft"
	"github.com/notargets/gopppm/grid"
	"github.com/notargets/gopppm/kspace"
	"github.com/notargets/gopppm/particles"
	"github.com/notargets/gopppm/stencil"
	"github.com/notargets/gopppm/types"
)

type PPPM struct {
	cfg    kspace.Config
	rep    kspace.Reporter
	sites  chargeSites
	comm   comm.Comm
	params kspace.Parameters
	charge kspace.ChargeStats
	box    types.Box
	geom   *grid.Geometry
	table  *stencil.Table
	me     int
	// per step storage
	density   *grid.Brick
	scratch   []*grid.Brick // one density brick per spreading worker
	vd        [3]*grid.Brick
	work      *grid.CBrick // transform layout
	work2     *grid.CBrick
	xs        [][3]float64 // charge site of each owned atom
	q         []float64
	part2grid [][3]int
	ek        [][3]float64
	// transform pipeline
	halo    *grid.Halo
	toFFT   *grid.Remap
	fromFFT *grid.Remap
	plan    *fft.Plan
	// reciprocal space state, rebuilt by Setup
	volume    float64
	delinv    [3]float64
	delvolinv float64
	fk        [3][]float64 // wave numbers per global mesh index
	greensfn  []float64
	vg        [][6]float64
}

// New returns a PPPM solver of point charges
func New(cfg kspace.Config, rep kspace.Reporter) (kspace.Solver, error) {
	return newPPPM(cfg, rep, pointSites{})
}

// NewTIP4P returns a PPPM solver that puts the oxygen charge of TIP4P water
// molecules on their M site
func NewTIP4P(cfg kspace.Config, rep kspace.Reporter) (s kspace.Solver, err error) {
	var sites *tip4pSites
	if sites, err = newTIP4PSites(cfg.TIP4P); err != nil {
		return
	}
	return newPPPM(cfg, rep, sites)
}

func newPPPM(cfg kspace.Config, rep kspace.Reporter, sites chargeSites) (p *PPPM, err error) {
	cfg = cfg.WithDefaults()
	if cfg.Order < 1 || cfg.Order > stencil.MaxOrder {
		err = fmt.Errorf("%w: PPPM order cannot be greater than %d or less than 1, have %d",
			kspace.ErrConfiguration, stencil.MaxOrder, cfg.Order)
		return
	}
	if _, err = fft.NewBackend(cfg.FFTBackend); err != nil {
		err = fmt.Errorf("%w: %v", kspace.ErrConfiguration, err)
		return
	}
	if rep == nil {
		rep = kspace.SilentReporter{}
	}
	p = &PPPM{
		cfg:   cfg,
		rep:   rep,
		sites: sites,
	}
	return
}

func (p *PPPM) Parameters() kspace.Parameters { return p.params }

func (p *PPPM) Init(c comm.Comm, a *particles.Atoms, box types.Box) (err error) {
	p.comm, p.me = c, c.Rank()
	if err = kspace.CheckBoundaries(box, p.cfg.Slab); err != nil {
		return
	}
	if p.cfg.Slab && p.cfg.SlabVolFactor < 2 {
		err = fmt.Errorf("%w: bad slab volume factor %g, must be at least 2", kspace.ErrConfiguration, p.cfg.SlabVolFactor)
		return
	}
	if p.charge, err = kspace.GatherCharge(c, a); err != nil {
		return
	}
	if err = p.charge.Check(p.rep); err != nil {
		return
	}
	if err = p.sites.Check(c, a); err != nil {
		return
	}
	procs := p.cfg.Procs
	if procs == [3]int{} {
		procs = grid.ProcGrid3D(c.Size(), box.Prd())
	}
	if procs[0]*procs[1]*procs[2] != c.Size() {
		err = fmt.Errorf("%w: process grid %v does not match %d ranks", kspace.ErrConfiguration, procs, c.Size())
		return
	}
	// reduce the order until every stencil fits in the nearest neighbours
	for order := p.cfg.Order; ; {
		if p.params, err = kspace.MeshAccuracy(p.cfg, box, p.charge, order); err != nil {
			return
		}
		if p.geom, err = p.geometry(box, order, procs); err != nil {
			return
		}
		if !p.geom.StencilOverlap() {
			break
		}
		if order--; order < 1 {
			err = fmt.Errorf("%w: PPPM order has been reduced to 0", kspace.ErrConvergence)
			return
		}
		p.rep.Warning("Reducing PPPM order b/c stencil extends beyond nearest neighbor processor")
	}
	if p.table, err = stencil.NewTable(p.params.Order); err != nil {
		return
	}
	if err = p.allocate(); err != nil {
		return
	}
	return p.Setup(box)
}

func (p *PPPM) geometry(box types.Box, order int, procs [3]int) (g *grid.Geometry, err error) {
	if g, err = grid.NewGeometry(grid.Config{
		Mesh:          p.params.Mesh,
		Order:         order,
		Procs:         procs,
		Box:           box,
		Skin:          p.cfg.Skin,
		QDist:         p.sites.QDist(),
		Slab:          p.cfg.Slab,
		SlabVolFactor: p.cfg.SlabVolFactor,
	}); err != nil {
		err = fmt.Errorf("%w: %v", kspace.ErrConfiguration, err)
	}
	return
}

// regrid rebuilds the extended ranges and the buffers for a new box. The
// mesh, order and process grid are kept.
func (p *PPPM) regrid(box types.Box) (err error) {
	var g *grid.Geometry
	if g, err = p.geometry(box, p.params.Order, p.geom.Procs); err != nil {
		return
	}
	if g.StencilOverlap() {
		err = fmt.Errorf("%w: PPPM stencil extends beyond nearest neighbor processor in the new box, run Init again",
			kspace.ErrConfiguration)
		return
	}
	p.geom = g
	return p.allocate()
}

func (p *PPPM) allocate() (err error) {
	var (
		g       = p.geom
		out     = g.Out[p.me]
		threads = p.cfg.Threads
		backend fft.Backend
	)
	p.density = grid.NewBrick(out)
	for n := 0; n < 3; n++ {
		p.vd[n] = grid.NewBrick(out)
	}
	p.scratch = nil
	if threads > 1 {
		p.scratch = make([]*grid.Brick, threads)
		for n := range p.scratch {
			p.scratch[n] = grid.NewBrick(out)
		}
	}
	p.work = grid.NewCBrick(g.FFT[p.me])
	p.work2 = grid.NewCBrick(g.FFT[p.me])
	if p.halo, err = grid.NewHalo(p.comm, g); err != nil {
		return
	}
	if p.toFFT, err = grid.NewRemap(p.comm, g.In, g.FFT); err != nil {
		return
	}
	if p.fromFFT, err = grid.NewRemap(p.comm, g.FFT, g.In); err != nil {
		return
	}
	if backend, err = fft.NewBackend(p.cfg.FFTBackend); err != nil {
		return
	}
	p.plan, err = fft.NewPlan(p.comm, g.Mesh, g.FFT, backend, threads)
	return
}

// Release drops the mesh buffers, Init must run again before Compute
func (p *PPPM) Release() {
	p.density, p.scratch, p.vd = nil, nil, [3]*grid.Brick{}
	p.work, p.work2 = nil, nil
	p.xs, p.part2grid, p.ek = nil, nil, nil
	p.greensfn, p.vg, p.fk = nil, nil, [3][]float64{}
	p.halo, p.toFFT, p.fromFFT, p.plan = nil, nil, nil, nil
	p.geom = nil
}

// Compute adds the reciprocal space forces of the owned atoms of a to a.F,
// ghost forces included, and returns the global energy and virial. It is
// collective over the ranks passed to Init.
func (p *PPPM) Compute(a *particles.Atoms, box types.Box) (ev kspace.EnergyVirial, err error) {
	if p.geom == nil {
		err = fmt.Errorf("%w: PPPM compute before init", kspace.ErrConfiguration)
		return
	}
	if box.Prd() != p.box.Prd() || box.Lo != p.box.Lo {
		if err = p.Setup(box); err != nil {
			return
		}
	}
	if err = p.locate(a); err != nil {
		p.comm.Abort(err)
		return
	}
	if err = p.particleMap(); err != nil {
		return
	}
	p.makeRho()
	if err = p.brick2fft(); err != nil {
		return
	}
	var local kspace.EnergyVirial
	if local, err = p.poisson(); err != nil {
		return
	}
	if err = p.fillBrick(); err != nil {
		return
	}
	p.fieldForce()

	var sum []float64
	if sum, err = p.comm.AllReduce(append([]float64{local.Energy}, local.Virial[:]...)); err != nil {
		return
	}
	var (
		g      = p.params.GEwald
		qscale = p.cfg.Units.QQRD2E() * p.cfg.Scale
	)
	ev.Energy = sum[0]*0.5*p.volume -
		g*p.charge.QSqSum/math.Sqrt(math.Pi) -
		0.5*math.Pi*p.charge.QSum*p.charge.QSum/(g*g*p.volume)
	ev.Energy *= qscale
	for j := 0; j < 6; j++ {
		ev.Virial[j] = 0.5 * qscale * p.volume * sum[1+j]
	}

	var fieldZ float64
	if p.cfg.Slab {
		var eslab float64
		z := make([]float64, a.NLocal)
		for i := range z {
			z[i] = p.xs[i][2]
		}
		if eslab, fieldZ, err = kspace.SlabCorrection(p.comm, a.Q[:a.NLocal], z, p.volume, qscale); err != nil {
			return
		}
		ev.Energy += eslab
	}
	for i := 0; i < a.NLocal; i++ {
		qfactor := qscale * a.Q[i]
		f := [3]float64{qfactor * p.ek[i][0], qfactor * p.ek[i][1], qfactor * p.ek[i][2]}
		f[2] += a.Q[i] * fieldZ
		if err = p.sites.Distribute(a, i, box, f); err != nil {
			p.comm.Abort(err)
			return
		}
	}
	return
}

// locate finds the charge site of every owned atom
func (p *PPPM) locate(a *particles.Atoms) (err error) {
	if cap(p.xs) < a.NLocal {
		p.xs = make([][3]float64, a.NLocal)
		p.part2grid = make([][3]int, a.NLocal)
		p.ek = make([][3]float64, a.NLocal)
	}
	p.xs = p.xs[:a.NLocal]
	p.part2grid = p.part2grid[:a.NLocal]
	p.ek = p.ek[:a.NLocal]
	for i := 0; i < a.NLocal; i++ {
		if p.xs[i], err = p.sites.Position(a, i, p.box); err != nil {
			return
		}
	}
	p.q = a.Q[:a.NLocal]
	return
}

// MemoryUsage is the number of bytes held by the mesh and particle buffers
func (p *PPPM) MemoryUsage() (bytes float64) {
	if p.geom == nil {
		return
	}
	var (
		nbrick = float64(p.geom.Out[p.me].Size())
		nfft   = float64(p.geom.FFT[p.me].Size())
		nmax   = float64(cap(p.xs))
	)
	bytes += 4 * nbrick * 8
	bytes += float64(len(p.scratch)) * nbrick * 8
	bytes += nfft * 8      // greensfn
	bytes += nfft * 6 * 8  // vg
	bytes += 2 * nfft * 16 // work, work2
	for _, pc := range p.plan.Layouts[1:] {
		bytes += float64(pc[p.me].Size()) * 16
	}
	bytes += nmax * 3 * (8 + 8 + 8) // xs, part2grid, ek
	return
}
