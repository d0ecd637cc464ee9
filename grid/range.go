package grid

import "fmt"

// Range is an inclusive block of global grid indices, x varying fastest in
// linear storage.
type Range struct {
	Lo, Hi [3]int
}

func NewRange(lo, hi [3]int) Range {
	return Range{Lo: lo, Hi: hi}
}

func (r Range) String() string {
	return fmt.Sprintf("[%d:%d,%d:%d,%d:%d]", r.Lo[0], r.Hi[0], r.Lo[1], r.Hi[1], r.Lo[2], r.Hi[2])
}

func (r Range) Dims() (d [3]int) {
	for i := 0; i < 3; i++ {
		if d[i] = r.Hi[i] - r.Lo[i] + 1; d[i] < 0 {
			d[i] = 0
		}
	}
	return
}

func (r Range) Size() int {
	d := r.Dims()
	return d[0] * d[1] * d[2]
}

func (r Range) Empty() bool {
	return r.Size() == 0
}

func (r Range) Contains(i, j, k int) bool {
	return i >= r.Lo[0] && i <= r.Hi[0] &&
		j >= r.Lo[1] && j <= r.Hi[1] &&
		k >= r.Lo[2] && k <= r.Hi[2]
}

func (r Range) ContainsRange(o Range) bool {
	if o.Empty() {
		return true
	}
	return r.Contains(o.Lo[0], o.Lo[1], o.Lo[2]) && r.Contains(o.Hi[0], o.Hi[1], o.Hi[2])
}

func (r Range) Intersect(o Range) (ri Range, ok bool) {
	for i := 0; i < 3; i++ {
		ri.Lo[i] = max(r.Lo[i], o.Lo[i])
		ri.Hi[i] = min(r.Hi[i], o.Hi[i])
		if ri.Lo[i] > ri.Hi[i] {
			return Range{}, false
		}
	}
	return ri, true
}

func (r Range) Shift(d [3]int) Range {
	for i := 0; i < 3; i++ {
		r.Lo[i] += d[i]
		r.Hi[i] += d[i]
	}
	return r
}

// Union returns the smallest range containing both.
func (r Range) Union(o Range) Range {
	for i := 0; i < 3; i++ {
		r.Lo[i] = min(r.Lo[i], o.Lo[i])
		r.Hi[i] = max(r.Hi[i], o.Hi[i])
	}
	return r
}

// Index is the linear offset of global point (i,j,k) within storage laid out
// over r. No bounds check.
func (r Range) Index(i, j, k int) int {
	nx := r.Hi[0] - r.Lo[0] + 1
	ny := r.Hi[1] - r.Lo[1] + 1
	return (i - r.Lo[0]) + nx*((j-r.Lo[1])+ny*(k-r.Lo[2]))
}

// Each visits the points of sub in storage order of r
func (r Range) Each(sub Range, f func(ind int)) {
	for k := sub.Lo[2]; k <= sub.Hi[2]; k++ {
		for j := sub.Lo[1]; j <= sub.Hi[1]; j++ {
			ind := r.Index(sub.Lo[0], j, k)
			for i := sub.Lo[0]; i <= sub.Hi[0]; i++ {
				f(ind)
				ind++
			}
		}
	}
}
