// Package fft is a 3D complex transform of a mesh distributed over the ranks
// of a comm.World. Data enters and leaves in x pencils (x complete on every
// rank) and is transposed through y and z pencils by grid.Remap.
package fft

import (
	"fmt"

	"github.com/notargets/gopppm/comm"
	"github.com/notargets/gopppm/grid"
	"github.com/notargets/gopppm/utils"
)

type Plan struct {
	comm    comm.Comm
	Mesh    [3]int
	Layouts [3][]grid.Range // x, y and z pencils of every rank
	remaps  [3]*grid.Remap  // x to y, y to z, z to x
	pencils [3]*grid.CBrick // y and z scratch, index 0 unused
	pm      [3]*utils.PartitionMap
	lines   [3][]LineTransform // per axis, per worker
	bufs    [3][][]complex128
}

// NewPlan builds a transform of a mesh whose x pencil layout is given per
// rank. Lines are transformed by threads workers per rank.
func NewPlan(c comm.Comm, mesh [3]int, xPencils []grid.Range, backend Backend, threads int) (p *Plan, err error) {
	if len(xPencils) != c.Size() {
		err = fmt.Errorf("transform layout has %d ranks, world has %d", len(xPencils), c.Size())
		return
	}
	if threads < 1 {
		threads = 1
	}
	p = &Plan{
		comm: c,
		Mesh: mesh,
	}
	p.Layouts[0] = xPencils
	p.Layouts[1] = pencils(c.Size(), mesh, 1)
	p.Layouts[2] = pencils(c.Size(), mesh, 2)
	for axis := 0; axis < 3; axis++ {
		for r, rg := range p.Layouts[axis] {
			if !rg.Empty() && (rg.Lo[axis] != 0 || rg.Hi[axis] != mesh[axis]-1) {
				err = fmt.Errorf("rank %d does not hold complete lines along axis %d: %s", r, axis, rg)
				return
			}
		}
		if p.remaps[axis], err = grid.NewRemap(c, p.Layouts[axis], p.Layouts[(axis+1)%3]); err != nil {
			return
		}
	}
	me := c.Rank()
	for axis := 0; axis < 3; axis++ {
		rg := p.Layouts[axis][me]
		if axis > 0 {
			p.pencils[axis] = grid.NewCBrick(rg)
		}
		nlines := 0
		if !rg.Empty() {
			nlines = rg.Size() / mesh[axis]
		}
		p.pm[axis] = utils.NewPartitionMap(threads, nlines)
		p.lines[axis] = make([]LineTransform, threads)
		p.bufs[axis] = make([][]complex128, threads)
		for w := 0; w < threads; w++ {
			p.lines[axis][w] = backend(mesh[axis])
			p.bufs[axis][w] = make([]complex128, mesh[axis])
		}
	}
	return
}

// pencils splits the two axes other than axis over nprocs ranks
func pencils(nprocs int, mesh [3]int, axis int) (rs []grid.Range) {
	a, b := (axis+1)%3, (axis+2)%3
	if a > b {
		a, b = b, a
	}
	pa, pb := grid.Procs2Grid2D(nprocs, mesh[a], mesh[b])
	rs = make([]grid.Range, nprocs)
	for r := 0; r < nprocs; r++ {
		ma, mb := r%pa, r/pa
		rs[r].Lo[axis], rs[r].Hi[axis] = 0, mesh[axis]-1
		rs[r].Lo[a], rs[r].Hi[a] = ma*mesh[a]/pa, (ma+1)*mesh[a]/pa-1
		rs[r].Lo[b], rs[r].Hi[b] = mb*mesh[b]/pb, (mb+1)*mesh[b]/pb-1
	}
	return
}

// Forward transforms data, laid out over this rank's x pencil, in place
func (p *Plan) Forward(data *grid.CBrick) error {
	return p.transform(data, true)
}

// Inverse is the unnormalized inverse of Forward, Inverse(Forward(x)) = N*x
// with N the number of mesh points.
func (p *Plan) Inverse(data *grid.CBrick) error {
	return p.transform(data, false)
}

func (p *Plan) transform(data *grid.CBrick, forward bool) (err error) {
	if data.Range != p.Layouts[0][p.comm.Rank()] {
		err = fmt.Errorf("transform data covers %s, plan expects %s", data.Range, p.Layouts[0][p.comm.Rank()])
		return
	}
	stages := [3]*grid.CBrick{data, p.pencils[1], p.pencils[2]}
	for axis := 0; axis < 3; axis++ {
		p.lineTransforms(stages[axis], axis, forward)
		if err = p.remaps[axis].Do(stages[axis], stages[(axis+1)%3]); err != nil {
			return
		}
	}
	return
}

func (p *Plan) lineTransforms(b *grid.CBrick, axis int, forward bool) {
	var (
		dims   = b.Dims()
		stride = 1
		a1, a2 = (axis + 1) % 3, (axis + 2) % 3
	)
	for n := 0; n < axis; n++ {
		stride *= dims[n]
	}
	p.pm[axis].Run(func(bn, kMin, kMax int) {
		var (
			lt  = p.lines[axis][bn]
			buf = p.bufs[axis][bn]
		)
		for line := kMin; line < kMax; line++ {
			var ijk [3]int
			ijk[a1] = b.Lo[a1] + line%dims[a1]
			ijk[a2] = b.Lo[a2] + line/dims[a1]
			ijk[axis] = b.Lo[axis]
			start := b.Index(ijk[0], ijk[1], ijk[2])
			for n := range buf {
				buf[n] = b.Data[start+n*stride]
			}
			if forward {
				lt.Forward(buf)
			} else {
				lt.Inverse(buf)
			}
			for n := range buf {
				b.Data[start+n*stride] = buf[n]
			}
		}
	})
}
