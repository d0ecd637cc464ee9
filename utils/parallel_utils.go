package utils

import (
	"sync"
)

// PartitionMap splits the index range [0,MaxIndex) into ParallelDegree
// contiguous buckets that differ in size by at most one
type PartitionMap struct {
	MaxIndex       int
	ParallelDegree int
	Partitions     [][2]int // begin and end index of each bucket
}

func NewPartitionMap(ParallelDegree, maxIndex int) (pm *PartitionMap) {
	if ParallelDegree < 1 {
		ParallelDegree = 1
	}
	pm = &PartitionMap{
		MaxIndex:       maxIndex,
		ParallelDegree: ParallelDegree,
		Partitions:     make([][2]int, ParallelDegree),
	}
	for n := range pm.Partitions {
		pm.Partitions[n] = pm.Split1D(n)
	}
	return
}

func (pm *PartitionMap) GetBucketRange(bucketNum int) (kMin, kMax int) {
	kMin, kMax = pm.Partitions[bucketNum][0], pm.Partitions[bucketNum][1]
	return
}

// GetBucketDimension is the number of items in bucket bn, or all of them for
// bn == -1
func (pm *PartitionMap) GetBucketDimension(bn int) int {
	if bn == -1 {
		return pm.MaxIndex
	}
	kMin, kMax := pm.GetBucketRange(bn)
	return kMax - kMin
}

// Split1D is the range of bucket threadNum, the first MaxIndex%ParallelDegree
// buckets take one extra item
func (pm *PartitionMap) Split1D(threadNum int) (bucket [2]int) {
	var (
		npart = pm.MaxIndex / pm.ParallelDegree
		rem   = pm.MaxIndex % pm.ParallelDegree
	)
	bucket[0] = threadNum*npart + min(threadNum, rem)
	bucket[1] = bucket[0] + npart
	if threadNum < rem {
		bucket[1]++
	}
	return
}

// Run calls f once per bucket in its own go routine and waits for all of
// them. Empty buckets are skipped.
func (pm *PartitionMap) Run(f func(bn, kMin, kMax int)) {
	var (
		wg = sync.WaitGroup{}
	)
	for np := 0; np < pm.ParallelDegree; np++ {
		kMin, kMax := pm.GetBucketRange(np)
		if kMax == kMin {
			continue
		}
		wg.Add(1)
		go func(np, kMin, kMax int) {
			f(np, kMin, kMax)
			wg.Done()
		}(np, kMin, kMax)
	}
	wg.Wait()
}
