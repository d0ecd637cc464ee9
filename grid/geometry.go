package grid

import (
	"fmt"
	"math"

	"github.com/notargets/gopppm/stencil"
	"github.com/notargets/gopppm/types"
)

type Config struct {
	Mesh  [3]int
	Order int
	Procs [3]int // spatial process grid, px*py*pz ranks
	Box   types.Box
	// Skin/2 + QDist is how far a particle may sit outside its sub-box and
	// still be mapped onto this rank's extended grid
	Skin, QDist   float64
	Slab          bool
	SlabVolFactor float64
}

// Geometry is the partition of a global mesh over a set of ranks. Every rank
// builds the same Geometry, so the ranges of all ranks are known locally.
type Geometry struct {
	Config
	Size           int
	NLower, NUpper int
	Shift          float64
	In             []Range // owned points, a partition of the mesh
	Out            []Range // owned plus ghost points reached by local stencils
	FFT            []Range // transform decomposition, x complete
	FFTProcs       [2]int  // y, z split of the transform decomposition
}

func NewGeometry(cfg Config) (g *Geometry, err error) {
	if cfg.SlabVolFactor == 0 || !cfg.Slab {
		cfg.SlabVolFactor = 1
	}
	for n := 0; n < 3; n++ {
		if cfg.Procs[n] < 1 {
			err = fmt.Errorf("process grid dimension %d must be positive, have %d", n, cfg.Procs[n])
			return
		}
		if cfg.Mesh[n] < 1 {
			err = fmt.Errorf("mesh dimension %d must be positive, have %d", n, cfg.Mesh[n])
			return
		}
	}
	if cfg.Order < 1 || cfg.Order > stencil.MaxOrder {
		err = fmt.Errorf("stencil order must be in [1,%d], have %d", stencil.MaxOrder, cfg.Order)
		return
	}
	g = &Geometry{
		Config: cfg,
		Size:   cfg.Procs[0] * cfg.Procs[1] * cfg.Procs[2],
	}
	g.NLower, g.NUpper = stencil.Bounds(cfg.Order)
	g.Shift, _ = stencil.Shift(cfg.Order)
	g.In = make([]Range, g.Size)
	g.Out = make([]Range, g.Size)
	g.FFT = make([]Range, g.Size)
	if cfg.Mesh[2] >= g.Size {
		g.FFTProcs = [2]int{1, g.Size}
	} else {
		g.FFTProcs[0], g.FFTProcs[1] = Procs2Grid2D(g.Size, cfg.Mesh[1], cfg.Mesh[2])
	}
	for r := 0; r < g.Size; r++ {
		g.In[r], g.Out[r] = g.spatialRanges(r)
		g.FFT[r] = g.fftRange(r)
	}
	return
}

func (g *Geometry) Loc(rank int) [3]int {
	p := g.Procs
	return [3]int{rank % p[0], (rank / p[0]) % p[1], rank / (p[0] * p[1])}
}

func (g *Geometry) RankOf(loc [3]int) int {
	p := g.Procs
	return loc[0] + p[0]*(loc[1]+p[1]*loc[2])
}

// Delinv is the number of grid points per unit length along each axis. The z
// spacing spans the extended slab height.
func (g *Geometry) Delinv() (d [3]float64) {
	prd := g.Box.Prd()
	prd[2] *= g.SlabVolFactor
	for n := 0; n < 3; n++ {
		d[n] = float64(g.Mesh[n]) / prd[n]
	}
	return
}

func (g *Geometry) spatialRanges(rank int) (in, out Range) {
	var (
		loc          = g.Loc(rank)
		delinv       = g.Delinv()
		sublo, subhi = g.Box.SubBox(loc, g.Procs)
		dist         = 0.5*g.Skin + g.QDist
	)
	for n := 0; n < 3; n++ {
		nn := float64(g.Mesh[n])
		if n == 2 {
			nn /= g.SlabVolFactor
		}
		p := float64(g.Procs[n])
		in.Lo[n] = int(float64(loc[n]) / p * nn)
		in.Hi[n] = int(float64(loc[n]+1)/p*nn) - 1
		nlo := int((sublo[n]-dist-g.Box.Lo[n])*delinv[n]+g.Shift) - stencil.Offset
		nhi := int((subhi[n]+dist-g.Box.Lo[n])*delinv[n]+g.Shift) - stencil.Offset
		out.Lo[n] = nlo + g.NLower
		out.Hi[n] = nhi + g.NUpper
	}
	if g.Slab {
		if loc[2] == g.Procs[2]-1 {
			in.Hi[2] = g.Mesh[2] - 1
			out.Hi[2] = g.Mesh[2] - 1
		}
		out.Hi[2] = min(out.Hi[2], g.Mesh[2]-1)
	}
	// the extended range always holds the owned one
	out = out.Union(in)
	return
}

func (g *Geometry) fftRange(rank int) (r Range) {
	var (
		npey, npez = g.FFTProcs[0], g.FFTProcs[1]
		mey, mez   = rank % npey, rank / npey
		ny, nz     = g.Mesh[1], g.Mesh[2]
	)
	r.Lo = [3]int{0, mey * ny / npey, mez * nz / npez}
	r.Hi = [3]int{g.Mesh[0] - 1, (mey+1)*ny/npey - 1, (mez+1)*nz/npez - 1}
	return
}

// Ghost returns the number of ghost planes below and above the owned range
func (g *Geometry) Ghost(rank int) (lo, hi [3]int) {
	for n := 0; n < 3; n++ {
		lo[n] = g.In[rank].Lo[n] - g.Out[rank].Lo[n]
		hi[n] = g.Out[rank].Hi[n] - g.In[rank].Hi[n]
	}
	return
}

// StencilOverlap reports whether any rank's ghost planes reach past the
// owned points of its nearest neighbour on that side.
func (g *Geometry) StencilOverlap() bool {
	for r := 0; r < g.Size; r++ {
		lo, hi := g.Ghost(r)
		loc := g.Loc(r)
		for n := 0; n < 3; n++ {
			below, above := loc, loc
			below[n] = (loc[n] - 1 + g.Procs[n]) % g.Procs[n]
			above[n] = (loc[n] + 1) % g.Procs[n]
			if lo[n] > g.In[g.RankOf(below)].Dims()[n] ||
				hi[n] > g.In[g.RankOf(above)].Dims()[n] {
				return true
			}
		}
	}
	return false
}

// ProcGrid3D factors nprocs into a px*py*pz grid minimizing the surface area
// of the sub-domains of a box with the given edge lengths.
func ProcGrid3D(nprocs int, prd [3]float64) (procs [3]int) {
	var (
		area     = [3]float64{prd[0] * prd[1], prd[0] * prd[2], prd[1] * prd[2]}
		bestSurf = math.MaxFloat64
	)
	for ipx := 1; ipx <= nprocs; ipx++ {
		if nprocs%ipx != 0 {
			continue
		}
		nremain := nprocs / ipx
		for ipy := 1; ipy <= nremain; ipy++ {
			if nremain%ipy != 0 {
				continue
			}
			ipz := nremain / ipy
			fx, fy, fz := float64(ipx), float64(ipy), float64(ipz)
			surf := area[0]/fx/fy + area[1]/fx/fz + area[2]/fy/fz
			if surf < bestSurf {
				bestSurf = surf
				procs = [3]int{ipx, ipy, ipz}
			}
		}
	}
	return
}

// Procs2Grid2D factors nprocs into px*py to split an nx*ny plane into blocks
// of minimal perimeter, ties going to the larger block area.
func Procs2Grid2D(nprocs, nx, ny int) (px, py int) {
	var (
		bestBoxX, bestBoxY = 0, 0
		bestSurf           = 2 * (nx + ny)
	)
	for ipx := 1; ipx <= nprocs; ipx++ {
		if nprocs%ipx != 0 {
			continue
		}
		ipy := nprocs / ipx
		boxx := nx / ipx
		if nx%ipx != 0 {
			boxx++
		}
		boxy := ny / ipy
		if ny%ipy != 0 {
			boxy++
		}
		surf := boxx + boxy
		if surf < bestSurf || (surf == bestSurf && boxx*boxy > bestBoxX*bestBoxY) {
			bestSurf = surf
			bestBoxX, bestBoxY = boxx, boxy
			px, py = ipx, ipy
		}
	}
	if px == 0 {
		px, py = 1, nprocs
	}
	return
}
