// Package simulation runs a long range solver over a set of ranks for one
// particle configuration and collects the results on the caller.
package simulation

import (
	"fmt"
	"time"

	"github.com/notargets/gopppm/comm"
	"github.com/notargets/gopppm/grid"
	"github.com/notargets/gopppm/kspace"
	"github.com/notargets/gopppm/kspace/ewald"
	"github.com/notargets/gopppm/kspace/pppm"
	"github.com/notargets/gopppm/particles"
	"github.com/notargets/gopppm/types"
	"github.com/notargets/gopppm/utils"
)

// DefaultRegistry holds every solver style of the module
func DefaultRegistry() (reg *kspace.Registry) {
	reg = kspace.NewRegistry()
	reg.Register("pppm", pppm.New)
	reg.Register("pppm/tip4p", pppm.NewTIP4P)
	reg.Register("ewald", ewald.New)
	return
}

type Config struct {
	Style  string
	Ranks  int
	KSpace kspace.Config
	// CheckSpread rebuilds the charge density from the sparse assignment
	// operator after the compute step, for solvers that provide one
	CheckSpread bool
}

type Result struct {
	kspace.EnergyVirial
	Forces      [][3]float64 // per atom of the input, ghost copies folded in
	Params      kspace.Parameters
	Procs       [3]int
	Memory      float64 // bytes summed over the ranks
	InitTime    time.Duration
	ComputeTime time.Duration
	SpreadError float64 // largest deviation of the rebuilt density
}

type spreadChecker interface {
	CheckSpread() (float64, error)
}

// Partners lists the hydrogens of a TIP4P oxygen, every rank holding the
// oxygen needs them as ghosts
func Partners(tip *kspace.TIP4PConfig) func(a *particles.Atoms, i int) []int {
	if tip == nil {
		return nil
	}
	return func(a *particles.Atoms, i int) []int {
		if a.Type[i] != tip.TypeO {
			return nil
		}
		return []int{a.Tag[i] + 1, a.Tag[i] + 2}
	}
}

func (cfg Config) procs(box types.Box) (procs [3]int, err error) {
	if cfg.Ranks < 1 {
		err = fmt.Errorf("%w: number of ranks must be positive, have %d", kspace.ErrConfiguration, cfg.Ranks)
		return
	}
	procs = cfg.KSpace.Procs
	if procs == [3]int{} {
		procs = grid.ProcGrid3D(cfg.Ranks, box.Prd())
	}
	if procs[0]*procs[1]*procs[2] != cfg.Ranks {
		err = fmt.Errorf("%w: process grid %v does not match %d ranks", kspace.ErrConfiguration, procs, cfg.Ranks)
	}
	return
}

// Run splits all over the ranks, initializes one solver per rank and
// computes the long range energy, virial and forces once. Advisories of the
// first rank go to rep. The forces of all are replaced by the result.
func Run(reg *kspace.Registry, cfg Config, all *particles.Atoms, box types.Box, rep kspace.Reporter) (res *Result, err error) {
	var (
		d      *particles.Decomposition
		procs  [3]int
		params = make([]kspace.Parameters, cfg.Ranks)
		mem    = make([]float64, cfg.Ranks)
		spread = make([]float64, cfg.Ranks)
		evs    = make([]kspace.EnergyVirial, cfg.Ranks)
		tInit  time.Duration
		tComp  time.Duration
	)
	if procs, err = cfg.procs(box); err != nil {
		return
	}
	cfg.KSpace.Procs = procs
	if d, err = particles.Decompose(all, box, procs, Partners(cfg.KSpace.TIP4P)); err != nil {
		err = fmt.Errorf("%w: %v", kspace.ErrConfiguration, err)
		return
	}
	world := comm.NewWorld(cfg.Ranks)
	err = world.Run(func(c comm.Comm) (err error) {
		var (
			me     = c.Rank()
			a      = d.Ranks[me]
			s      kspace.Solver
			r      kspace.Reporter = kspace.SilentReporter{}
			start  time.Time
			isRoot = me == 0
		)
		if isRoot {
			r = rep
		}
		if s, err = reg.New(cfg.Style, cfg.KSpace, r); err != nil {
			return
		}
		start = time.Now()
		if err = s.Init(c, a, box); err != nil {
			return
		}
		if err = s.Setup(box); err != nil {
			return
		}
		if err = c.Barrier(); err != nil {
			return
		}
		if isRoot {
			tInit = time.Since(start)
			start = time.Now()
		}
		a.ZeroForces()
		if evs[me], err = s.Compute(a, box); err != nil {
			return
		}
		if err = c.Barrier(); err != nil {
			return
		}
		if isRoot {
			tComp = time.Since(start)
		}
		params[me], mem[me] = s.Parameters(), s.MemoryUsage()
		if sc, ok := s.(spreadChecker); ok && cfg.CheckSpread {
			spread[me], err = sc.CheckSpread()
		}
		return
	})
	if err != nil {
		return
	}
	if err = d.FoldForces(all); err != nil {
		return
	}
	if utils.IsNan(evs[0].Energy) || utils.IsNan(all.F) {
		err = fmt.Errorf("%w: non finite energy or forces", kspace.ErrRuntimeDivergence)
		return
	}
	res = &Result{
		EnergyVirial: evs[0],
		Forces:       append([][3]float64{}, all.F...),
		Params:       params[0],
		Procs:        procs,
		InitTime:     tInit,
		ComputeTime:  tComp,
	}
	for r := range mem {
		res.Memory += mem[r]
		res.SpreadError = max(res.SpreadError, spread[r])
	}
	return
}

// Estimate runs only the accuracy analysis of a style, on a single rank
func Estimate(reg *kspace.Registry, cfg Config, all *particles.Atoms, box types.Box, rep kspace.Reporter) (p kspace.Parameters, err error) {
	cfg.Ranks, cfg.KSpace.Procs = 1, [3]int{1, 1, 1}
	var (
		d *particles.Decomposition
		s kspace.Solver
	)
	if d, err = particles.Decompose(all, box, cfg.KSpace.Procs, Partners(cfg.KSpace.TIP4P)); err != nil {
		err = fmt.Errorf("%w: %v", kspace.ErrConfiguration, err)
		return
	}
	if s, err = reg.New(cfg.Style, cfg.KSpace, rep); err != nil {
		return
	}
	world := comm.NewWorld(1)
	if err = world.Run(func(c comm.Comm) error { return s.Init(c, d.Ranks[0], box) }); err != nil {
		return
	}
	p = s.Parameters()
	return
}
