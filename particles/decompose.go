package particles

import (
	"fmt"

	"github.com/notargets/gopppm/types"
)

// Decomposition is a set of atoms split over a uniform px*py*pz process grid
type Decomposition struct {
	Procs [3]int
	Box   types.Box
	Ranks []*Atoms
}

// Decompose gives each atom of all to the rank whose sub-box holds it.
// partners, when not nil, lists the tags of atoms a rank needs a ghost copy
// of alongside owned atom i.
func Decompose(all *Atoms, box types.Box, procs [3]int, partners func(a *Atoms, i int) []int) (d *Decomposition, err error) {
	if err = box.Check(); err != nil {
		return
	}
	var (
		nprocs = procs[0] * procs[1] * procs[2]
		owner  = make([]int, all.NLocal)
	)
	if nprocs < 1 {
		err = fmt.Errorf("invalid process grid %v", procs)
		return
	}
	d = &Decomposition{
		Procs: procs,
		Box:   box,
		Ranks: make([]*Atoms, nprocs),
	}
	for r := range d.Ranks {
		d.Ranks[r] = NewAtoms(all.NLocal/nprocs + 1)
	}
	for i := 0; i < all.NLocal; i++ {
		x := box.Wrap(all.X[i])
		if owner[i], err = d.Owner(x); err != nil {
			err = fmt.Errorf("atom %d: %w", all.Tag[i], err)
			return
		}
		d.Ranks[owner[i]].AddLocal(all.Tag[i], all.Type[i], all.Q[i], x)
	}
	if partners == nil {
		return
	}
	for i := 0; i < all.NLocal; i++ {
		a := d.Ranks[owner[i]]
		for _, tag := range partners(all, i) {
			j := all.Map(tag)
			if j < 0 || a.Map(tag) >= 0 {
				continue
			}
			a.AddGhost(tag, all.Type[j], all.Q[j], box.Wrap(all.X[j]))
		}
	}
	return
}

// Owner is the rank whose sub-box contains x
func (d *Decomposition) Owner(x [3]float64) (rank int, err error) {
	var (
		prd = d.Box.Prd()
		loc [3]int
	)
	for n := 0; n < 3; n++ {
		if x[n] < d.Box.Lo[n] || x[n] > d.Box.Hi[n] {
			err = fmt.Errorf("position %v is outside of the non periodic box", x)
			return
		}
		loc[n] = int((x[n] - d.Box.Lo[n]) / prd[n] * float64(d.Procs[n]))
		loc[n] = min(max(loc[n], 0), d.Procs[n]-1)
	}
	rank = loc[0] + d.Procs[0]*(loc[1]+d.Procs[1]*loc[2])
	return
}

// FoldForces replaces the forces of all with the sum of the forces every rank
// holds for the same tag, owned and ghost copies alike.
func (d *Decomposition) FoldForces(all *Atoms) (err error) {
	all.ZeroForces()
	for r, a := range d.Ranks {
		for i := range a.F {
			j := all.Map(a.Tag[i])
			if j < 0 {
				err = fmt.Errorf("rank %d holds unknown atom %d", r, a.Tag[i])
				return
			}
			for n := 0; n < 3; n++ {
				all.F[j][n] += a.F[i][n]
			}
		}
	}
	return
}
