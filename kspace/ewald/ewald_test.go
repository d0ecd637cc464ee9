package ewald

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/gopppm/comm"
	"github.com/notargets/gopppm/kspace"
	"github.com/notargets/gopppm/particles"
	"github.com/notargets/gopppm/types"
)

// rockSalt is the eight ion cubic cell of NaCl with unit ion spacing
func rockSalt() (a *particles.Atoms) {
	a = particles.NewAtoms(8)
	tag := 1
	for k := 0; k < 2; k++ {
		for j := 0; j < 2; j++ {
			for i := 0; i < 2; i++ {
				q := 1.
				if (i+j+k)%2 == 1 {
					q = -1
				}
				a.AddLocal(tag, 1, q, [3]float64{float64(i) + 0.25, float64(j) + 0.25, float64(k) + 0.25})
				tag++
			}
		}
	}
	return
}

// realSpace is the screened Coulomb sum over the periodic images of a cube
func realSpace(a *particles.Atoms, L, g float64, nimg int) (e float64) {
	for i := 0; i < a.NLocal; i++ {
		for j := 0; j < a.NLocal; j++ {
			for nx := -nimg; nx <= nimg; nx++ {
				for ny := -nimg; ny <= nimg; ny++ {
					for nz := -nimg; nz <= nimg; nz++ {
						if i == j && nx == 0 && ny == 0 && nz == 0 {
							continue
						}
						dx := a.X[i][0] - a.X[j][0] + float64(nx)*L
						dy := a.X[i][1] - a.X[j][1] + float64(ny)*L
						dz := a.X[i][2] - a.X[j][2] + float64(nz)*L
						r := math.Sqrt(dx*dx + dy*dy + dz*dz)
						e += 0.5 * a.Q[i] * a.Q[j] * math.Erfc(g*r) / r
					}
				}
			}
		}
	}
	return
}

func TestMadelung(t *testing.T) {
	var (
		box = types.NewCubicBox(2)
		g   = 2.
		cfg = kspace.Config{Precision: 1.e-10, Cutoff: 3, GEwald: g}
		a   = rockSalt()
		c   = comm.NewWorld(1).Comm(0)
	)
	s, err := New(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, s.Init(c, a, box))
	assert.Equal(t, g, s.Parameters().GEwald)
	ev, err := s.Compute(a, box)
	require.NoError(t, err)
	total := ev.Energy + realSpace(a, 2, g, 3)
	assert.InDelta(t, -0.5*8*1.747564594633, total, 1.e-6)
	// every ion of the perfect lattice sits at a force free point
	for i := range a.F {
		for n := 0; n < 3; n++ {
			assert.InDelta(t, 0, a.F[i][n], 1.e-8)
		}
	}
	assert.True(t, s.MemoryUsage() > 0)
}

func TestPairAndRanks(t *testing.T) {
	var (
		box = types.NewBox([3]float64{0, 0, 0}, [3]float64{8, 6, 7}, [3]bool{true, true, true})
		cfg = kspace.Config{Precision: 1.e-6, Cutoff: 3}
		all = particles.NewAtoms(4)
	)
	all.AddLocal(1, 1, 1, [3]float64{1, 1, 1})
	all.AddLocal(2, 1, -1, [3]float64{2.1, 1.7, 0.6})
	all.AddLocal(3, 1, 0.5, [3]float64{6, 5, 6})
	all.AddLocal(4, 1, -0.5, [3]float64{7.5, 0.5, 3})

	run := func(procs [3]int) (ev kspace.EnergyVirial, f [][3]float64) {
		d, err := particles.Decompose(all, box, procs, nil)
		require.NoError(t, err)
		nranks := procs[0] * procs[1] * procs[2]
		evs := make([]kspace.EnergyVirial, nranks)
		err = comm.NewWorld(nranks).Run(func(c comm.Comm) (err error) {
			var s kspace.Solver
			if s, err = New(cfg, nil); err != nil {
				return
			}
			if err = s.Init(c, d.Ranks[c.Rank()], box); err != nil {
				return
			}
			evs[c.Rank()], err = s.Compute(d.Ranks[c.Rank()], box)
			return
		})
		require.NoError(t, err)
		require.NoError(t, d.FoldForces(all))
		return evs[0], append([][3]float64{}, all.F...)
	}
	ev1, f1 := run([3]int{1, 1, 1})
	var net [3]float64
	for _, f := range f1 {
		for n := 0; n < 3; n++ {
			net[n] += f[n]
		}
	}
	for n := 0; n < 3; n++ {
		assert.InDelta(t, 0, net[n], 1.e-10)
	}
	ev2, f2 := run([3]int{2, 1, 2})
	assert.InDelta(t, ev1.Energy, ev2.Energy, 1.e-12)
	for j := range ev1.Virial {
		assert.InDelta(t, ev1.Virial[j], ev2.Virial[j], 1.e-12)
	}
	for i := range f1 {
		for n := 0; n < 3; n++ {
			assert.InDelta(t, f1[i][n], f2[i][n], 1.e-12)
		}
	}
}

func TestErrors(t *testing.T) {
	var (
		box = types.NewCubicBox(5)
		a   = particles.NewAtoms(1)
		c   = comm.NewWorld(1).Comm(0)
	)
	a.AddLocal(1, 1, 1, [3]float64{1, 1, 1})
	s, _ := New(kspace.Config{Precision: 1.e-5, Cutoff: 2, TIP4P: &kspace.TIP4PConfig{}}, nil)
	assert.True(t, errors.Is(s.Init(c, a, box), kspace.ErrConfiguration))
	s, _ = New(kspace.Config{Cutoff: 2}, nil)
	assert.True(t, errors.Is(s.Init(c, a, box), kspace.ErrConfiguration))
	s, _ = New(kspace.Config{Precision: 1.e-5, Cutoff: 2}, nil)
	_, err := s.Compute(a, box)
	assert.True(t, errors.Is(err, kspace.ErrConfiguration))
}
