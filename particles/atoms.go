// Package particles stores the charged particles of one rank: owned atoms
// first, followed by ghost copies of atoms owned elsewhere.
package particles

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

type Atoms struct {
	X      [][3]float64
	F      [][3]float64
	Q      []float64
	Type   []int
	Tag    []int
	NLocal int
	tagMap map[int]int
}

func NewAtoms(capacity int) *Atoms {
	return &Atoms{
		X:      make([][3]float64, 0, capacity),
		F:      make([][3]float64, 0, capacity),
		Q:      make([]float64, 0, capacity),
		Type:   make([]int, 0, capacity),
		Tag:    make([]int, 0, capacity),
		tagMap: make(map[int]int, capacity),
	}
}

func (a *Atoms) N() int { return len(a.X) }

func (a *Atoms) NGhost() int { return len(a.X) - a.NLocal }

// AddLocal appends an owned atom. Owned atoms must be added before ghosts.
func (a *Atoms) AddLocal(tag, typ int, q float64, x [3]float64) {
	if a.NGhost() != 0 {
		panic(fmt.Errorf("local atom %d added after %d ghosts", tag, a.NGhost()))
	}
	a.add(tag, typ, q, x)
	a.NLocal++
}

func (a *Atoms) AddGhost(tag, typ int, q float64, x [3]float64) {
	a.add(tag, typ, q, x)
}

func (a *Atoms) add(tag, typ int, q float64, x [3]float64) {
	if a.tagMap == nil {
		a.tagMap = make(map[int]int)
	}
	if _, present := a.tagMap[tag]; !present {
		a.tagMap[tag] = len(a.X)
	}
	a.X = append(a.X, x)
	a.F = append(a.F, [3]float64{})
	a.Q = append(a.Q, q)
	a.Type = append(a.Type, typ)
	a.Tag = append(a.Tag, tag)
}

// Map returns the index of the atom with the given tag, preferring the owned
// copy, or -1 when this rank holds no copy.
func (a *Atoms) Map(tag int) int {
	if i, ok := a.tagMap[tag]; ok {
		return i
	}
	return -1
}

func (a *Atoms) ZeroForces() {
	for i := range a.F {
		a.F[i] = [3]float64{}
	}
}

// ChargeSums returns the sum and sum of squares of the owned charges
func (a *Atoms) ChargeSums() (qsum, qsqsum float64) {
	q := a.Q[:a.NLocal]
	qsum = floats.Sum(q)
	qsqsum = floats.Dot(q, q)
	return
}

// NetForce sums the force on every atom, owned and ghost
func (a *Atoms) NetForce() (f [3]float64) {
	for _, fi := range a.F {
		for n := 0; n < 3; n++ {
			f[n] += fi[n]
		}
	}
	return
}
