package fft

import (
	"fmt"

	dspfft "github.com/mjibson/go-dsp/fft"
	"gonum.org/v1/gonum/dsp/fourier"
)

// LineTransform is an unnormalized in place 1D complex transform of a fixed
// length. Forward uses exp(-i k x), Inverse exp(+i k x). Implementations are
// not safe for concurrent use.
type LineTransform interface {
	Forward(seq []complex128)
	Inverse(seq []complex128)
}

// Backend creates line transforms of length n
type Backend func(n int) LineTransform

func NewBackend(name string) (b Backend, err error) {
	switch name {
	case "", "gonum":
		b = newGonumLine
	case "godsp":
		b = newDSPLine
	default:
		err = fmt.Errorf("unknown FFT backend %q, want gonum or godsp", name)
	}
	return
}

type gonumLine struct {
	t *fourier.CmplxFFT
}

func newGonumLine(n int) LineTransform {
	return &gonumLine{t: fourier.NewCmplxFFT(n)}
}

func (l *gonumLine) Forward(seq []complex128) { l.t.Coefficients(seq, seq) }

func (l *gonumLine) Inverse(seq []complex128) { l.t.Sequence(seq, seq) }

type dspLine struct {
	n int
}

func newDSPLine(n int) LineTransform {
	return &dspLine{n: n}
}

func (l *dspLine) Forward(seq []complex128) {
	copy(seq, dspfft.FFT(seq))
}

func (l *dspLine) Inverse(seq []complex128) {
	// go-dsp normalizes the inverse by 1/n
	scale := complex(float64(l.n), 0)
	for i, v := range dspfft.IFFT(seq) {
		seq[i] = v * scale
	}
}
