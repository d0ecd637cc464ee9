package grid

import (
	"fmt"

	"github.com/notargets/gopppm/comm"
)

// Remap redistributes a mesh between two block decompositions that each
// partition the same global points.
type Remap struct {
	comm         comm.Comm
	sends, recvs []Range // indexed by peer rank, empty when nothing moves
	sendOK       []bool
	recvOK       []bool
}

// NewRemap plans the move from decomposition from to decomposition to, where
// from[r] and to[r] are the points rank r holds before and after.
func NewRemap(c comm.Comm, from, to []Range) (rm *Remap, err error) {
	if len(from) != c.Size() || len(to) != c.Size() {
		err = fmt.Errorf("remap decompositions have %d and %d ranks, world has %d",
			len(from), len(to), c.Size())
		return
	}
	var (
		me = c.Rank()
		np = c.Size()
	)
	rm = &Remap{
		comm:   c,
		sends:  make([]Range, np),
		recvs:  make([]Range, np),
		sendOK: make([]bool, np),
		recvOK: make([]bool, np),
	}
	for r := 0; r < np; r++ {
		rm.sends[r], rm.sendOK[r] = from[me].Intersect(to[r])
		rm.recvs[r], rm.recvOK[r] = from[r].Intersect(to[me])
	}
	return
}

// Do moves the points of src into dst. Either Field may be the same storage
// type or a RealPart view.
func (rm *Remap) Do(src, dst Field) (err error) {
	var (
		sends = make([][]float64, len(rm.sends))
		recvs [][]float64
	)
	for r := range rm.sends {
		if rm.sendOK[r] {
			sends[r] = src.Pack(rm.sends[r], nil)
		}
	}
	if recvs, err = rm.comm.Exchange(sends); err != nil {
		return
	}
	for r := range rm.recvs {
		if !rm.recvOK[r] {
			continue
		}
		if rest := dst.Unpack(rm.recvs[r], recvs[r], false); len(rest) != 0 {
			err = fmt.Errorf("remap message from rank %d has %d unread values", r, len(rest))
			rm.comm.Abort(err)
			return
		}
	}
	return
}
