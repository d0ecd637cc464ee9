package utils

import (
	"math"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPartitionMap(t *testing.T) {
	{ // Test PartitionMap
		getHisto := func(K, Np int) (histo map[int]int) {
			pm := NewPartitionMap(Np, K)
			histo = make(map[int]int)
			for np := 0; np < pm.ParallelDegree; np++ {
				maxK := pm.GetBucketDimension(np)
				histo[maxK]++
			}
			return
		}
		getTotal := func(histo map[int]int) (total int) {
			for key, count := range histo {
				total += key * count
			}
			return
		}
		assert.Equal(t, map[int]int{0: 30, 1: 2}, getHisto(2, 32))
		assert.Equal(t, map[int]int{1: 32}, getHisto(32, 32))
		assert.Equal(t, map[int]int{8: 32}, getHisto(256, 32))
		assert.Equal(t, map[int]int{8: 1, 9: 31}, getHisto(287, 32))
		assert.Equal(t, 287, getTotal(getHisto(287, 32)))
		for n := 64; n < 2000; n++ {
			var (
				keys   [2]float64
				keyNum int
			)
			histo := getHisto(n, 32)
			for key := range histo {
				keys[keyNum] = float64(key)
				keyNum++
			}
			if keyNum == 2 {
				assert.Equal(t, 1., math.Abs(keys[0]-keys[1])) // Maximum imbalance of 1
			}
			assert.Equal(t, n, getTotal(histo))
		}
	}
	{ // Buckets tile the range in order
		for maxIndex := 0; maxIndex < 100; maxIndex++ {
			pm := NewPartitionMap(6, maxIndex)
			assert.Equal(t, 0, pm.Partitions[0][0])
			assert.Equal(t, maxIndex, pm.Partitions[5][1])
			for n := 1; n < 6; n++ {
				assert.Equal(t, pm.Partitions[n-1][1], pm.Partitions[n][0])
			}
		}
		assert.Equal(t, 10, NewPartitionMap(4, 10).GetBucketDimension(-1))
	}
}

func TestPartitionMapRun(t *testing.T) {
	var (
		pm    = NewPartitionMap(7, 1000)
		total int64
		seen  = make([]int32, 1000)
	)
	pm.Run(func(bn, kMin, kMax int) {
		for k := kMin; k < kMax; k++ {
			atomic.AddInt64(&total, int64(k))
			atomic.AddInt32(&seen[k], 1)
		}
	})
	assert.Equal(t, int64(999*1000/2), total)
	for k := range seen {
		assert.Equal(t, int32(1), seen[k])
	}
	// More workers than work leaves empty buckets that must be skipped
	var calls int32
	NewPartitionMap(8, 3).Run(func(bn, kMin, kMax int) {
		atomic.AddInt32(&calls, 1)
	})
	assert.Equal(t, int32(3), calls)
}
