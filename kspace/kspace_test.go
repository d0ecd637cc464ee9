package kspace

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/gopppm/comm"
	"github.com/notargets/gopppm/particles"
	"github.com/notargets/gopppm/types"
)

func TestFactorable(t *testing.T) {
	for _, n := range []int{1, 2, 3, 4, 5, 6, 8, 9, 10, 12, 15, 16, 30, 360, 1024} {
		assert.True(t, Factorable(n), "%d", n)
	}
	for _, n := range []int{0, 7, 11, 13, 14, 21, 22, 49, 77} {
		assert.False(t, Factorable(n), "%d", n)
	}
}

func twoCharges() ChargeStats {
	return ChargeStats{QSum: 0, QSqSum: 2, NAtoms: 2}
}

func TestMeshAccuracy(t *testing.T) {
	lj, _ := types.NewUnits("lj")
	box := types.NewCubicBox(10)
	cfg := Config{Precision: 1.e-4, Cutoff: 4, Units: lj}.WithDefaults()
	p, err := MeshAccuracy(cfg, box, twoCharges(), 5)
	require.NoError(t, err)
	assert.Equal(t, 1.e-4, p.Accuracy)
	assert.True(t, p.GEwald > 0)
	for n := 0; n < 3; n++ {
		assert.True(t, Factorable(p.Mesh[n]))
		assert.True(t, p.Mesh[n] > 1)
	}
	// the splitting parameter balances both error estimates
	assert.InEpsilon(t, p.RealRMS, p.KSpaceRMS, 1.e-2)

	{ // Tighter precision never coarsens the mesh
		tight := cfg
		tight.Precision = 1.e-6
		pt, err := MeshAccuracy(tight, box, twoCharges(), 5)
		require.NoError(t, err)
		assert.True(t, pt.Mesh[0] >= p.Mesh[0])
		assert.True(t, pt.RealRMS < p.RealRMS)
	}
	{ // Fixed parameters are honoured
		fixed := cfg
		fixed.GEwald, fixed.Mesh = 0.5, [3]int{16, 16, 16}
		pf, err := MeshAccuracy(fixed, box, twoCharges(), 3)
		require.NoError(t, err)
		assert.Equal(t, 0.5, pf.GEwald)
		assert.Equal(t, [3]int{16, 16, 16}, pf.Mesh)
		assert.InDelta(t, RealRMS(2, 2, 0.5, 4, box.Prd()), pf.RealRMS, 1.e-15)
	}
	{ // Grids past the index packing limit
		big := cfg
		big.Mesh = [3]int{4096, 8, 8}
		_, err := MeshAccuracy(big, box, twoCharges(), 5)
		assert.True(t, errors.Is(err, ErrConfiguration))
		// a tight precision in a large box derives such a grid
		huge := cfg
		huge.Precision = 1.e-8
		_, err = MeshAccuracy(huge, types.NewCubicBox(2000), twoCharges(), 3)
		assert.True(t, errors.Is(err, ErrConfiguration))
		assert.ErrorContains(t, err, "grid is too large")
	}
	{ // Accuracy too coarse for the G vector estimate
		coarse := cfg
		coarse.Precision = 10
		_, err := MeshAccuracy(coarse, box, twoCharges(), 5)
		assert.True(t, errors.Is(err, ErrConvergence))
	}
	{
		_, err := MeshAccuracy(cfg, box, twoCharges(), 8)
		assert.True(t, errors.Is(err, ErrConfiguration))
	}
}

func TestBisect(t *testing.T) {
	g, err := bisect(func(g float64) float64 { return g*g - 2 }, 0, 10)
	require.NoError(t, err)
	assert.InDelta(t, math.Sqrt2, g, 2*Small)
	_, err = bisect(func(g float64) float64 { return g*g + 1 }, 0, 10)
	assert.True(t, errors.Is(err, ErrConvergence))
}

func TestEwaldAccuracy(t *testing.T) {
	lj, _ := types.NewUnits("lj")
	box := types.NewCubicBox(10)
	p, err := EwaldAccuracy(Config{Precision: 1.e-5, Cutoff: 4, Units: lj}.WithDefaults(), box, twoCharges())
	require.NoError(t, err)
	for n := 0; n < 3; n++ {
		assert.True(t, p.KMax[n] >= 1)
		assert.True(t, EwaldRMS(p.KMax[n], 10, 2, 2, p.GEwald) <= p.Accuracy)
		if p.KMax[n] > 1 {
			assert.True(t, EwaldRMS(p.KMax[n]-1, 10, 2, 2, p.GEwald) > p.Accuracy)
		}
	}
	// estimate falls back when the accuracy is coarse
	p, err = EwaldAccuracy(Config{Precision: 10, Cutoff: 4, Units: lj}.WithDefaults(), box, twoCharges())
	require.NoError(t, err)
	assert.InDelta(t, (1.35-0.15*math.Log(10))/4, p.GEwald, 1.e-14)
}

func TestChargeStats(t *testing.T) {
	w := comm.NewWorld(2)
	err := w.Run(func(c comm.Comm) (err error) {
		a := particles.NewAtoms(2)
		a.AddLocal(1+2*c.Rank(), 1, 1, [3]float64{})
		a.AddLocal(2+2*c.Rank(), 1, -0.5, [3]float64{})
		a.AddGhost(9, 1, 7, [3]float64{})
		var cs ChargeStats
		if cs, err = GatherCharge(c, a); err != nil {
			return
		}
		assert.Equal(t, ChargeStats{QSum: 1, QSqSum: 2.5, NAtoms: 4}, cs)
		return
	})
	require.NoError(t, err)

	rep := &RecordingReporter{}
	assert.NoError(t, ChargeStats{QSum: 1, QSqSum: 2.5, NAtoms: 4}.Check(rep))
	assert.Len(t, rep.Warnings, 1)
	assert.Contains(t, rep.Warnings[0], "not charge neutral")
	assert.NoError(t, twoCharges().Check(rep))
	assert.Len(t, rep.Warnings, 1)
	err = ChargeStats{NAtoms: 4}.Check(rep)
	assert.True(t, errors.Is(err, ErrConfiguration))
}

func TestBoundariesAndSlab(t *testing.T) {
	slabBox := types.NewBox([3]float64{}, [3]float64{10, 10, 10}, [3]bool{true, true, false})
	assert.NoError(t, CheckBoundaries(types.NewCubicBox(10), false))
	assert.NoError(t, CheckBoundaries(slabBox, true))
	assert.True(t, errors.Is(CheckBoundaries(slabBox, false), ErrConfiguration))
	assert.True(t, errors.Is(CheckBoundaries(types.NewCubicBox(10), true), ErrConfiguration))
	tri := types.NewCubicBox(10)
	tri.Triclinic = true
	assert.True(t, errors.Is(CheckBoundaries(tri, false), ErrConfiguration))

	w := comm.NewWorld(2)
	err := w.Run(func(c comm.Comm) (err error) {
		// a dipole of 2 split over both ranks
		var e, fz float64
		if e, fz, err = SlabCorrection(c, []float64{1, -1}, []float64{3, 2}, 300, 1); err != nil {
			return
		}
		assert.InDelta(t, 2*math.Pi*4/300, e, 1.e-14)
		assert.InDelta(t, -4*math.Pi*2/300, fz, 1.e-14)
		return
	})
	require.NoError(t, err)
}

func TestRegistryAndEnergyVirial(t *testing.T) {
	r := NewRegistry()
	r.Register("none", func(cfg Config, rep Reporter) (Solver, error) { return nil, nil })
	assert.Panics(t, func() { r.Register("none", nil) })
	assert.Equal(t, []string{"none"}, r.Styles())
	_, err := r.New("pppm/cg", Config{}, nil)
	assert.True(t, errors.Is(err, ErrConfiguration))

	ev := EnergyVirial{Energy: 1, Virial: [6]float64{1, 2, 3, 4, 5, 6}}
	ev.Add(ev)
	assert.Equal(t, 2., ev.Energy)
	m := ev.Tensor()
	assert.Equal(t, 8., m.At(0, 1))
	assert.Equal(t, 12., m.At(2, 1))
	assert.Equal(t, 6., m.At(2, 2))
	ev.Reset()
	assert.Equal(t, EnergyVirial{}, ev)
}
