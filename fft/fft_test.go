package fft

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/gopppm/comm"
	"github.com/notargets/gopppm/grid"
)

func xPencils(nprocs int, mesh [3]int) (rs []grid.Range) {
	return pencils(nprocs, mesh, 0)
}

func sample(i, j, k int) complex128 {
	return complex(math.Sin(float64(i)+0.3*float64(j))+float64(k*k), math.Cos(float64(j*k)))
}

func naiveDFT(mesh [3]int, f func(i, j, k int) complex128) (out []complex128) {
	out = make([]complex128, mesh[0]*mesh[1]*mesh[2])
	for kz := 0; kz < mesh[2]; kz++ {
		for ky := 0; ky < mesh[1]; ky++ {
			for kx := 0; kx < mesh[0]; kx++ {
				var s complex128
				for k := 0; k < mesh[2]; k++ {
					for j := 0; j < mesh[1]; j++ {
						for i := 0; i < mesh[0]; i++ {
							arg := -2 * math.Pi * (float64(kx*i)/float64(mesh[0]) +
								float64(ky*j)/float64(mesh[1]) + float64(kz*k)/float64(mesh[2]))
							s += f(i, j, k) * cmplx.Exp(complex(0, arg))
						}
					}
				}
				out[kx+mesh[0]*(ky+mesh[1]*kz)] = s
			}
		}
	}
	return
}

// transformAll runs a forward transform over nranks and gathers the result
// into one global array.
func transformAll(t *testing.T, nranks, threads int, mesh [3]int, backend string, roundTrip bool) (global []complex128) {
	be, err := NewBackend(backend)
	require.NoError(t, err)
	var (
		layout = xPencils(nranks, mesh)
		all    = grid.NewRange([3]int{}, [3]int{mesh[0] - 1, mesh[1] - 1, mesh[2] - 1})
		world  = comm.NewWorld(nranks)
		parts  = make([]*grid.CBrick, nranks)
	)
	err = world.Run(func(c comm.Comm) (err error) {
		var p *Plan
		if p, err = NewPlan(c, mesh, layout, be, threads); err != nil {
			return
		}
		b := grid.NewCBrick(layout[c.Rank()])
		rg := b.Range
		for k := rg.Lo[2]; k <= rg.Hi[2]; k++ {
			for j := rg.Lo[1]; j <= rg.Hi[1]; j++ {
				for i := rg.Lo[0]; i <= rg.Hi[0]; i++ {
					b.Data[b.Index(i, j, k)] = sample(i, j, k)
				}
			}
		}
		if err = p.Forward(b); err != nil {
			return
		}
		if roundTrip {
			if err = p.Inverse(b); err != nil {
				return
			}
		}
		parts[c.Rank()] = b
		return
	})
	require.NoError(t, err)
	global = make([]complex128, all.Size())
	for _, b := range parts {
		buf := b.Pack(b.Range, nil)
		all.Each(b.Range, func(ind int) {
			global[ind] = complex(buf[0], buf[1])
			buf = buf[2:]
		})
	}
	return
}

func TestPlan(t *testing.T) {
	mesh := [3]int{6, 4, 5}
	ref := naiveDFT(mesh, sample)
	for _, backend := range []string{"gonum", "godsp"} {
		for _, nranks := range []int{1, 3, 4, 7} {
			got := transformAll(t, nranks, 2, mesh, backend, false)
			for i := range ref {
				assert.InDelta(t, real(ref[i]), real(got[i]), 1.e-9)
				assert.InDelta(t, imag(ref[i]), imag(got[i]), 1.e-9)
			}
			back := transformAll(t, nranks, 1, mesh, backend, true)
			n := float64(mesh[0] * mesh[1] * mesh[2])
			all := grid.NewRange([3]int{}, [3]int{mesh[0] - 1, mesh[1] - 1, mesh[2] - 1})
			for k := 0; k < mesh[2]; k++ {
				for j := 0; j < mesh[1]; j++ {
					for i := 0; i < mesh[0]; i++ {
						v := back[all.Index(i, j, k)] / complex(n, 0)
						assert.InDelta(t, real(sample(i, j, k)), real(v), 1.e-10)
						assert.InDelta(t, imag(sample(i, j, k)), imag(v), 1.e-10)
					}
				}
			}
		}
	}
	_, err := NewBackend("fftw")
	assert.Error(t, err)
}

func TestPencils(t *testing.T) {
	mesh := [3]int{8, 6, 10}
	for nprocs := 1; nprocs < 13; nprocs++ {
		for axis := 0; axis < 3; axis++ {
			var total int
			for _, r := range pencils(nprocs, mesh, axis) {
				total += r.Size()
				if !r.Empty() {
					assert.Equal(t, mesh[axis], r.Dims()[axis])
				}
			}
			assert.Equal(t, mesh[0]*mesh[1]*mesh[2], total)
		}
	}
}
