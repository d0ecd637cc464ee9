package particles

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/gopppm/types"
)

const waterDump = `ITEM: TIMESTEP
0
ITEM: NUMBER OF ATOMS
6
ITEM: BOX BOUNDS pp pp ff
0.0 10.0
0.0 10.0
-5.0 5.0
ITEM: ATOMS id type q x y z vx
1 1 -0.8476 1.0 1.0 0.0 0.1
2 2 0.4238 1.8 1.5 0.0 0.1
3 2 0.4238 0.2 1.5 0.0 0.1
4 1 -0.8476 9.7 6.0 1.0 0.1
5 2 0.4238 10.5 6.5 1.0 0.1
6 2 0.4238 8.9 6.5 1.0 0.1
`

func TestReadDump(t *testing.T) {
	a, box, err := ReadDump(strings.NewReader(waterDump))
	require.NoError(t, err)
	assert.Equal(t, 6, a.N())
	assert.Equal(t, 6, a.NLocal)
	assert.Equal(t, [3]bool{true, true, false}, box.Periodic)
	assert.Equal(t, [3]float64{10, 10, 10}, box.Prd())
	assert.Equal(t, 3, a.Map(4))
	assert.Equal(t, -1, a.Map(7))
	assert.Equal(t, [3]float64{1.8, 1.5, 0}, a.X[1])
	qsum, qsqsum := a.ChargeSums()
	assert.InDelta(t, 0, qsum, 1.e-12)
	assert.InDelta(t, 2*(0.8476*0.8476+2*0.4238*0.4238), qsqsum, 1.e-12)

	_, _, err = ReadDump(strings.NewReader("ITEM: NUMBER OF ATOMS\n1\nITEM: BOX BOUNDS pp pp pp\n0 1\n0 1\n0 1\nITEM: ATOMS id type x y z\n1 1 0 0 0\n"))
	assert.Error(t, err) // no charge column
	_, _, err = ReadDump(strings.NewReader("ITEM: NUMBER OF ATOMS\n2\nITEM: BOX BOUNDS pp pp pp\n0 1\n0 1\n0 1\nITEM: ATOMS id type q x y z\n1 1 1 0 0 0\n"))
	assert.Error(t, err) // truncated
	_, _, err = ReadDump(strings.NewReader("ITEM: TIMESTEP\n0\n"))
	assert.Error(t, err)
}

func TestDecompose(t *testing.T) {
	all, box, err := ReadDump(strings.NewReader(waterDump))
	require.NoError(t, err)
	hydrogens := func(a *Atoms, i int) []int {
		if a.Type[i] != 1 {
			return nil
		}
		return []int{a.Tag[i] + 1, a.Tag[i] + 2}
	}
	d, err := Decompose(all, box, [3]int{2, 1, 1}, hydrogens)
	require.NoError(t, err)
	require.Len(t, d.Ranks, 2)
	var nlocal int
	for _, a := range d.Ranks {
		nlocal += a.NLocal
	}
	assert.Equal(t, 6, nlocal)
	// atom 5 wraps to x = 0.5 on rank 0, its oxygen lives on rank 1
	r0, r1 := d.Ranks[0], d.Ranks[1]
	assert.True(t, r0.Map(5) >= 0 && r0.Map(5) < r0.NLocal)
	assert.InDelta(t, 0.5, r0.X[r0.Map(5)][0], 1.e-12)
	assert.True(t, r1.Map(4) < r1.NLocal)
	assert.True(t, r1.Map(5) >= r1.NLocal, "hydrogen 5 is a ghost on the oxygen's rank")
	assert.Equal(t, 1, r1.NGhost())

	for _, a := range d.Ranks {
		for i := range a.F {
			a.F[i] = [3]float64{1, 2, 3}
		}
	}
	require.NoError(t, d.FoldForces(all))
	assert.Equal(t, [3]float64{2, 4, 6}, all.F[all.Map(5)])
	assert.Equal(t, [3]float64{1, 2, 3}, all.F[all.Map(6)])

	rank, err := d.Owner([3]float64{1, 1, 7})
	assert.Error(t, err)
	assert.Equal(t, 0, rank)
	_, err = Decompose(all, types.NewCubicBox(0), [3]int{1, 1, 1}, nil)
	assert.Error(t, err)
}
