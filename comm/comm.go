// Package comm connects a fixed set of ranks running as go routines with
// blocking collective operations. Every collective must be called by every
// rank at the same point of the computation.
package comm

import (
	"errors"
	"fmt"
	"sync"
)

var ErrAborted = errors.New("comm: world aborted")

type Comm interface {
	Rank() int
	Size() int
	// Exchange sends sends[dst] to every rank dst and returns the message
	// received from every rank, indexed by source. The caller gives up
	// ownership of the sent slices.
	Exchange(sends [][]float64) (recvs [][]float64, err error)
	// AllReduce returns the element-wise sum of v over all ranks
	AllReduce(v []float64) (sum []float64, err error)
	Barrier() error
	// Abort stops the world, every blocked or future collective returns
	// ErrAborted.
	Abort(err error)
}

type World struct {
	size  int
	pipes [][]chan []float64 // pipes[src][dst], capacity one message
	done  chan struct{}
	once  sync.Once
	mu    sync.Mutex
	err   error
}

func NewWorld(size int) (w *World) {
	if size < 1 {
		panic(fmt.Sprintf("world size must be positive, have %d", size))
	}
	w = &World{
		size:  size,
		pipes: make([][]chan []float64, size),
		done:  make(chan struct{}),
	}
	for src := 0; src < size; src++ {
		w.pipes[src] = make([]chan []float64, size)
		for dst := 0; dst < size; dst++ {
			w.pipes[src][dst] = make(chan []float64, 1)
		}
	}
	return
}

func (w *World) Size() int { return w.size }

func (w *World) Comm(rank int) Comm {
	if rank < 0 || rank >= w.size {
		panic(fmt.Sprintf("rank %d out of range [0,%d)", rank, w.size))
	}
	return &rankComm{world: w, rank: rank}
}

// Run executes f on every rank concurrently and waits for all of them. The
// first error returned by any rank aborts the others and is returned.
func (w *World) Run(f func(c Comm) error) error {
	var (
		wg = sync.WaitGroup{}
	)
	for r := 0; r < w.size; r++ {
		wg.Add(1)
		go func(r int) {
			defer wg.Done()
			if err := f(w.Comm(r)); err != nil {
				w.Abort(err)
			}
		}(r)
	}
	wg.Wait()
	return w.Err()
}

// Abort records the first root cause and releases every blocked rank
func (w *World) Abort(err error) {
	w.mu.Lock()
	if w.err == nil && err != nil && !errors.Is(err, ErrAborted) {
		w.err = err
	}
	w.mu.Unlock()
	w.once.Do(func() { close(w.done) })
}

func (w *World) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err == nil {
		select {
		case <-w.done:
			return ErrAborted
		default:
		}
	}
	return w.err
}

type rankComm struct {
	world *World
	rank  int
}

func (c *rankComm) Rank() int { return c.rank }

func (c *rankComm) Size() int { return c.world.size }

func (c *rankComm) Abort(err error) { c.world.Abort(err) }

func (c *rankComm) Exchange(sends [][]float64) (recvs [][]float64, err error) {
	var (
		w = c.world
	)
	if len(sends) != w.size {
		err = fmt.Errorf("exchange needs one message per rank: have %d, world size %d", len(sends), w.size)
		c.Abort(err)
		return
	}
	for dst := 0; dst < w.size; dst++ {
		select {
		case w.pipes[c.rank][dst] <- sends[dst]:
		case <-w.done:
			return nil, ErrAborted
		}
	}
	recvs = make([][]float64, w.size)
	for src := 0; src < w.size; src++ {
		select {
		case recvs[src] = <-w.pipes[src][c.rank]:
		case <-w.done:
			return nil, ErrAborted
		}
	}
	return
}

func (c *rankComm) AllReduce(v []float64) (sum []float64, err error) {
	var (
		sends = make([][]float64, c.world.size)
		recvs [][]float64
	)
	for dst := range sends {
		sends[dst] = v
	}
	if recvs, err = c.Exchange(sends); err != nil {
		return
	}
	sum = make([]float64, len(v))
	// Sum in rank order so every rank produces bitwise identical results
	for src := range recvs {
		if len(recvs[src]) != len(v) {
			err = fmt.Errorf("allreduce length mismatch from rank %d: %d != %d", src, len(recvs[src]), len(v))
			c.Abort(err)
			return
		}
		for i, val := range recvs[src] {
			sum[i] += val
		}
	}
	return
}

func (c *rankComm) Barrier() (err error) {
	_, err = c.Exchange(make([][]float64, c.world.size))
	return
}
