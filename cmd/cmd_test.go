package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const slabDump = `ITEM: TIMESTEP
0
ITEM: NUMBER OF ATOMS
6
ITEM: BOX BOUNDS pp pp ff
0.0 10.0
0.0 10.0
-5.0 5.0
ITEM: ATOMS id type q x y z
1 1 -0.8476 1.0 1.0 0.0
2 2 0.4238 1.8 1.5 0.0
3 2 0.4238 0.2 1.5 0.0
4 1 -0.8476 9.7 6.0 1.0
5 2 0.4238 10.5 6.5 1.0
6 2 0.4238 8.9 6.5 1.0
`

func TestRunProblem(t *testing.T) {
	var (
		dir       = t.TempDir()
		inputFile = filepath.Join(dir, "input.yaml")
		dumpFile  = filepath.Join(dir, "water.dump")
	)
	fileInput := []byte(`
Title: Slab water
Style: pppm
Precision: 1.e-4
Cutoff: 3.
Slab: true
SlabVolFactor: 3
Ranks: 2
`)
	require.NoError(t, os.WriteFile(inputFile, fileInput, 0644))
	require.NoError(t, os.WriteFile(dumpFile, []byte(slabDump), 0644))
	pb := processInput(&Model{InputFile: inputFile, ParticleFile: dumpFile})
	assert.Equal(t, 2, pb.Cfg.Ranks)
	assert.True(t, pb.Cfg.KSpace.Slab)
	assert.Equal(t, 6, pb.Atoms.NLocal)
	pb.Cfg.CheckSpread = true
	Run(pb, false, true, true)
	Accuracy(pb, nil)
	Accuracy(pb, []int{2, 5})
}

func TestRMSDiff(t *testing.T) {
	f := [][3]float64{{1, 0, 0}, {0, 0, 0}}
	ref := [][3]float64{{0, 0, 0}, {0, 0, 1}}
	assert.InDelta(t, 1., rmsDiff(f, ref), 1.e-15)
}
