package grid

import (
	"fmt"

	"github.com/notargets/gopppm/comm"
)

// Halo moves values between ghost points and the ranks that own them. The
// mesh is periodic in all directions, ghost points beyond the mesh edges
// belong to the periodic image of the owner.
type Halo struct {
	comm comm.Comm
	// ghosts[r] are this rank's ghost regions owned by rank r
	ghosts [][]Range
	// owned[r] are this rank's owned regions that are ghosts on rank r
	owned [][]Range
}

func NewHalo(c comm.Comm, g *Geometry) (h *Halo, err error) {
	if c.Size() != g.Size {
		err = fmt.Errorf("halo needs %d ranks, world has %d", g.Size, c.Size())
		return
	}
	var (
		me = c.Rank()
	)
	h = &Halo{
		comm:   c,
		ghosts: make([][]Range, g.Size),
		owned:  make([][]Range, g.Size),
	}
	for r := 0; r < g.Size; r++ {
		// my ghosts owned by r
		h.ghosts[r] = ghostRegions(g.Out[me], g.In[r], g.Mesh, me == r, false)
		// r's ghosts owned by me, expressed in my coordinates
		h.owned[r] = ghostRegions(g.Out[r], g.In[me], g.Mesh, me == r, true)
	}
	return
}

// ghostRegions intersects every periodic image of the extended range out
// with the owned range in. The result is in the coordinates of out, or of in
// when ownerSide is set. The identity image of a rank onto itself holds no
// ghosts and is skipped.
func ghostRegions(out, in Range, mesh [3]int, self, ownerSide bool) (rs []Range) {
	var lo, hi [3]int
	for n := 0; n < 3; n++ {
		lo[n] = floorDiv(out.Lo[n], mesh[n])
		hi[n] = floorDiv(out.Hi[n], mesh[n])
	}
	for sz := lo[2]; sz <= hi[2]; sz++ {
		for sy := lo[1]; sy <= hi[1]; sy++ {
			for sx := lo[0]; sx <= hi[0]; sx++ {
				if self && sx == 0 && sy == 0 && sz == 0 {
					continue
				}
				shift := [3]int{sx * mesh[0], sy * mesh[1], sz * mesh[2]}
				ri, ok := out.Shift([3]int{-shift[0], -shift[1], -shift[2]}).Intersect(in)
				if !ok {
					continue
				}
				if ownerSide {
					rs = append(rs, ri)
				} else {
					rs = append(rs, ri.Shift(shift))
				}
			}
		}
	}
	return
}

func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && a < 0 {
		q--
	}
	return q
}

// Reverse adds the ghost values of every rank into the owned points they map
// to. Ghost values are left untouched.
func (h *Halo) Reverse(fields ...Field) (err error) {
	return h.exchange(h.ghosts, h.owned, true, fields)
}

// Forward copies owned values into the ghost points of every rank that
// holds them.
func (h *Halo) Forward(fields ...Field) (err error) {
	return h.exchange(h.owned, h.ghosts, false, fields)
}

func (h *Halo) exchange(from, to [][]Range, add bool, fields []Field) (err error) {
	var (
		sends = make([][]float64, len(from))
		recvs [][]float64
	)
	for r, regions := range from {
		for _, reg := range regions {
			for _, f := range fields {
				sends[r] = f.Pack(reg, sends[r])
			}
		}
	}
	if recvs, err = h.comm.Exchange(sends); err != nil {
		return
	}
	for r, regions := range to {
		buf := recvs[r]
		for _, reg := range regions {
			for _, f := range fields {
				buf = f.Unpack(reg, buf, add)
			}
		}
		if len(buf) != 0 {
			err = fmt.Errorf("halo message from rank %d has %d unread values", r, len(buf))
			h.comm.Abort(err)
			return
		}
	}
	return
}
