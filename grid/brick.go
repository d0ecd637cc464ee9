package grid

import "fmt"

// Field is grid storage that can be serialized region by region for
// exchange between ranks.
type Field interface {
	// Pack appends the values at region r to buf
	Pack(r Range, buf []float64) []float64
	// Unpack consumes the values of region r from the head of buf, adding to
	// or replacing the stored values, and returns the rest of buf
	Unpack(r Range, buf []float64, add bool) []float64
}

// Brick is a real valued block of grid points covering Range.
type Brick struct {
	Range
	Data []float64
}

func NewBrick(r Range) *Brick {
	return &Brick{Range: r, Data: make([]float64, r.Size())}
}

func (b *Brick) At(i, j, k int) float64 {
	if !b.Contains(i, j, k) {
		panic(fmt.Errorf("point (%d,%d,%d) outside of brick %s", i, j, k, b.Range))
	}
	return b.Data[b.Index(i, j, k)]
}

func (b *Brick) Set(i, j, k int, v float64) {
	b.Data[b.Index(i, j, k)] = v
}

func (b *Brick) Add(i, j, k int, v float64) {
	b.Data[b.Index(i, j, k)] += v
}

func (b *Brick) Zero() {
	for i := range b.Data {
		b.Data[i] = 0
	}
}

// Accumulate adds the values of o into b, both covering the same range
func (b *Brick) Accumulate(o *Brick) {
	if o.Range != b.Range {
		panic(fmt.Errorf("brick range mismatch %s != %s", b.Range, o.Range))
	}
	for i, v := range o.Data {
		b.Data[i] += v
	}
}

// Sum totals the values inside region r
func (b *Brick) Sum(r Range) (s float64) {
	b.Each(r, func(ind int) { s += b.Data[ind] })
	return
}

func (b *Brick) Pack(r Range, buf []float64) []float64 {
	b.Each(r, func(ind int) { buf = append(buf, b.Data[ind]) })
	return buf
}

func (b *Brick) Unpack(r Range, buf []float64, add bool) []float64 {
	var n int
	if add {
		b.Each(r, func(ind int) { b.Data[ind] += buf[n]; n++ })
	} else {
		b.Each(r, func(ind int) { b.Data[ind] = buf[n]; n++ })
	}
	return buf[n:]
}

// CBrick is a complex valued block of grid points, the storage used by the
// distributed transform.
type CBrick struct {
	Range
	Data []complex128
}

func NewCBrick(r Range) *CBrick {
	return &CBrick{Range: r, Data: make([]complex128, r.Size())}
}

func (b *CBrick) Pack(r Range, buf []float64) []float64 {
	b.Each(r, func(ind int) { buf = append(buf, real(b.Data[ind]), imag(b.Data[ind])) })
	return buf
}

func (b *CBrick) Unpack(r Range, buf []float64, add bool) []float64 {
	var n int
	b.Each(r, func(ind int) {
		v := complex(buf[n], buf[n+1])
		if add {
			b.Data[ind] += v
		} else {
			b.Data[ind] = v
		}
		n += 2
	})
	return buf[n:]
}

// RealPart exposes the real component of a CBrick as a Field. Unpacking
// clears the imaginary part.
type RealPart struct {
	*CBrick
}

func (p RealPart) Pack(r Range, buf []float64) []float64 {
	p.Each(r, func(ind int) { buf = append(buf, real(p.Data[ind])) })
	return buf
}

func (p RealPart) Unpack(r Range, buf []float64, add bool) []float64 {
	var n int
	p.Each(r, func(ind int) {
		if add {
			p.Data[ind] += complex(buf[n], 0)
		} else {
			p.Data[ind] = complex(buf[n], 0)
		}
		n++
	})
	return buf[n:]
}
