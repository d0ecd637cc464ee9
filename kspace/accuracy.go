package kspace

import (
	"fmt"
	"math"

	"github.com/notargets/gopppm/comm"
	"github.com/notargets/gopppm/particles"
	"github.com/notargets/gopppm/stencil"
	"github.com/notargets/gopppm/types"
	"github.com/notargets/gopppm/utils"
)

const (
	Small = 1.e-5
	Large = 10000
	// EpsHOC bounds the aliasing images kept in the optimal influence function
	EpsHOC = 1.e-7
)

// acons[order][m] are the Deserno and Holm expansion coefficients of the
// reciprocal space force error of a P3M mesh
var acons = [stencil.MaxOrder + 1][stencil.MaxOrder]float64{
	1: {2. / 3.},
	2: {1. / 50., 5. / 294.},
	3: {1. / 588., 7. / 1440., 21. / 3872.},
	4: {1. / 4320., 3. / 1936., 7601. / 2271360., 143. / 28800.},
	5: {1. / 23232., 7601. / 13628160., 143. / 69120., 517231. / 106536960.,
		106640677. / 11737571328.},
	6: {691. / 68140800., 13. / 57600., 47021. / 35512320., 9694607. / 2095994880.,
		733191589. / 59609088000., 326190917. / 11700633600.},
	7: {1. / 345600., 3617. / 35512320., 745739. / 838397952., 56399353. / 12773376000.,
		25091609. / 1560084480., 1755948832039. / 36229939200000., 4887769399. / 37838389248.},
}

type ChargeStats struct {
	QSum, QSqSum float64
	NAtoms       int
}

// GatherCharge sums the owned charges of every rank
func GatherCharge(c comm.Comm, a *particles.Atoms) (cs ChargeStats, err error) {
	qsum, qsqsum := a.ChargeSums()
	var sum []float64
	if sum, err = c.AllReduce([]float64{qsum, qsqsum, float64(a.NLocal)}); err != nil {
		return
	}
	cs = ChargeStats{QSum: sum[0], QSqSum: sum[1], NAtoms: int(sum[2])}
	return
}

// Check fails on a system without charge and warns when it is not neutral
func (cs ChargeStats) Check(rep Reporter) (err error) {
	if cs.QSqSum == 0 {
		err = fmt.Errorf("%w: cannot use kspace solver on a system with no charge", ErrConfiguration)
		return
	}
	if math.Abs(cs.QSum) > Small {
		rep.Warning(fmt.Sprintf("system is not charge neutral, net charge = %.8g", cs.QSum))
	}
	return
}

// Q2 is the squared charge sum in energy*distance units
func (cs ChargeStats) Q2(u types.Units) float64 {
	return cs.QSqSum * u.QQR2E / u.Dielectric
}

// EstimateGEwald is the Kolafa and Perram splitting parameter that puts the
// real space error at accuracy for the given cutoff. ok is false when the
// accuracy is too coarse for the estimate.
func EstimateGEwald(accuracy, q2 float64, natoms int, cutoff float64, prd [3]float64) (g float64, ok bool) {
	g = accuracy * math.Sqrt(float64(natoms)*cutoff*prd[0]*prd[1]*prd[2]) / (2 * q2)
	if g >= 1 {
		return 0, false
	}
	return math.Sqrt(-math.Log(g)) / cutoff, true
}

// PPPMRMS estimates the reciprocal space force error along one axis of a
// mesh with spacing h.
func PPPMRMS(h, prd float64, natoms int, q2, g float64, order int) float64 {
	var sum float64
	for m := 0; m < order; m++ {
		sum += acons[order][m] * utils.POW(h*g, 2*m)
	}
	return q2 * utils.POW(h*g, order) *
		math.Sqrt(g*prd*math.Sqrt(2*math.Pi)*sum/float64(natoms)) / (prd * prd)
}

// RealRMS estimates the real space force error of a cutoff Ewald sum
func RealRMS(q2 float64, natoms int, g, cutoff float64, prd [3]float64) float64 {
	return 2 * q2 * math.Exp(-g*g*cutoff*cutoff) /
		math.Sqrt(float64(natoms)*cutoff*prd[0]*prd[1]*prd[2])
}

// EwaldRMS estimates the force error of an Ewald sum truncated at kmax
func EwaldRMS(kmax int, prd float64, natoms int, q2, g float64) float64 {
	k := float64(kmax)
	return 2 * q2 * g / prd * math.Sqrt(1/(math.Pi*k*float64(natoms))) *
		math.Exp(-math.Pi*math.Pi*k*k/(g*g*prd*prd))
}

// Factorable is true when n has no prime factors other than 2, 3 and 5
func Factorable(n int) bool {
	if n < 1 {
		return false
	}
	for _, f := range []int{2, 3, 5} {
		for n%f == 0 {
			n /= f
		}
	}
	return n == 1
}

// SlabPrd returns the box edges with z stretched by the slab volume factor
func SlabPrd(box types.Box, slabVolFactor float64) (prd [3]float64) {
	prd = box.Prd()
	if slabVolFactor > 0 {
		prd[2] *= slabVolFactor
	}
	return
}

// MeshAccuracy derives the splitting parameter and the mesh of a
// particle-mesh solver of the given order, honouring any GEwald or Mesh the
// configuration fixes.
func MeshAccuracy(cfg Config, box types.Box, cs ChargeStats, order int) (p Parameters, err error) {
	if order < 1 || order > stencil.MaxOrder {
		err = fmt.Errorf("%w: order %d is outside [1,%d]", ErrConfiguration, order, stencil.MaxOrder)
		return
	}
	var (
		q2        = cs.Q2(cfg.Units)
		prd       = box.Prd()
		slabPrd   = SlabPrd(box, cfg.SlabVolFactor)
		h         [3]float64
		estimated bool
	)
	p = Parameters{
		Precision: cfg.Precision,
		Accuracy:  cfg.Precision * cfg.Units.TwoChargeForce(),
		GEwald:    cfg.GEwald,
		Mesh:      cfg.Mesh,
		Order:     order,
		NAtoms:    cs.NAtoms,
		QSum:      cs.QSum,
		QSqSum:    cs.QSqSum,
	}
	if p.GEwald == 0 {
		if !(p.Accuracy > 0) {
			err = fmt.Errorf("%w: precision must be positive to estimate the G vector", ErrConfiguration)
			return
		}
		var ok bool
		if p.GEwald, ok = EstimateGEwald(p.Accuracy, q2, cs.NAtoms, cfg.Cutoff, prd); !ok {
			err = fmt.Errorf("%w: KSpace accuracy too large to estimate G vector", ErrConvergence)
			return
		}
		estimated = true
	}
	if p.Mesh == [3]int{} {
		for n := 0; n < 3; n++ {
			h[n] = 1 / p.GEwald
			p.Mesh[n] = int(slabPrd[n]/h[n]) + 1
			// the error is evaluated before each refinement
			rms := PPPMRMS(h[n], slabPrd[n], cs.NAtoms, q2, p.GEwald, order)
			for rms > p.Accuracy {
				rms = PPPMRMS(h[n], slabPrd[n], cs.NAtoms, q2, p.GEwald, order)
				p.Mesh[n]++
				h[n] = slabPrd[n] / float64(p.Mesh[n])
			}
			for !Factorable(p.Mesh[n]) {
				p.Mesh[n]++
			}
		}
	}
	for n := 0; n < 3; n++ {
		if p.Mesh[n] >= stencil.Offset {
			err = fmt.Errorf("%w: PPPM grid is too large, %d points along axis %d", ErrConfiguration, p.Mesh[n], n)
			return
		}
		if p.Mesh[n] < 1 {
			err = fmt.Errorf("%w: PPPM grid dimension %d must be positive", ErrConfiguration, n)
			return
		}
		h[n] = slabPrd[n] / float64(p.Mesh[n])
	}
	svf := cfg.SlabVolFactor
	if svf <= 0 {
		svf = 1
	}
	kspaceRMS := func(g float64) float64 {
		lx := PPPMRMS(h[0], slabPrd[0], cs.NAtoms, q2, g, order)
		ly := PPPMRMS(h[1], slabPrd[1], cs.NAtoms, q2, g, order)
		lz := PPPMRMS(h[2], slabPrd[2], cs.NAtoms, q2, g, order) / math.Sqrt(svf)
		return math.Sqrt(lx*lx+ly*ly+lz*lz) / math.Sqrt(3)
	}
	if estimated {
		diffpr := func(g float64) float64 {
			return kspaceRMS(g) - RealRMS(q2, cs.NAtoms, g, cfg.Cutoff, prd)
		}
		if p.GEwald, err = bisect(diffpr, 0, 10/min(h[0], h[1], h[2])); err != nil {
			return
		}
	}
	p.KSpaceRMS = kspaceRMS(p.GEwald)
	p.RealRMS = RealRMS(q2, cs.NAtoms, p.GEwald, cfg.Cutoff, prd)
	return
}

// bisect finds the root of f in [g1, g2], which must bracket a sign change
func bisect(f func(g float64) float64, g1, g2 float64) (g float64, err error) {
	var (
		flo  = f(g1)
		fmid = f(g2)
		rtb  float64
		dg   float64
	)
	if flo*fmid >= 0 {
		err = fmt.Errorf("%w: cannot compute PPPM G, no root in [%g,%g]", ErrConvergence, g1, g2)
		return
	}
	if flo < 0 {
		rtb, dg = g1, g2-g1
	} else {
		rtb, dg = g2, g1-g2
	}
	for ncount := 0; math.Abs(dg) > Small && fmid != 0; ncount++ {
		if ncount > Large {
			err = fmt.Errorf("%w: cannot compute PPPM G, bisection did not converge", ErrConvergence)
			return
		}
		dg *= 0.5
		g = rtb + dg
		if fmid = f(g); fmid <= 0 {
			rtb = g
		}
	}
	return
}

// EwaldAccuracy derives the splitting parameter and the k vector extents of
// a plain Ewald sum.
func EwaldAccuracy(cfg Config, box types.Box, cs ChargeStats) (p Parameters, err error) {
	var (
		q2      = cs.Q2(cfg.Units)
		prd     = box.Prd()
		slabPrd = SlabPrd(box, cfg.SlabVolFactor)
	)
	p = Parameters{
		Precision: cfg.Precision,
		Accuracy:  cfg.Precision * cfg.Units.TwoChargeForce(),
		GEwald:    cfg.GEwald,
		NAtoms:    cs.NAtoms,
		QSum:      cs.QSum,
		QSqSum:    cs.QSqSum,
	}
	if !(p.Accuracy > 0) {
		err = fmt.Errorf("%w: precision must be positive", ErrConfiguration)
		return
	}
	if p.GEwald == 0 {
		var ok bool
		if p.GEwald, ok = EstimateGEwald(p.Accuracy, q2, cs.NAtoms, cfg.Cutoff, prd); !ok {
			p.GEwald = (1.35 - 0.15*math.Log(p.Accuracy)) / cfg.Cutoff
		}
	}
	var rms [3]float64
	for n := 0; n < 3; n++ {
		p.KMax[n] = 1
		for rms[n] = EwaldRMS(1, slabPrd[n], cs.NAtoms, q2, p.GEwald); rms[n] > p.Accuracy; {
			p.KMax[n]++
			if p.KMax[n] > Large {
				err = fmt.Errorf("%w: Ewald kmax exceeds %d along axis %d", ErrConvergence, Large, n)
				return
			}
			rms[n] = EwaldRMS(p.KMax[n], slabPrd[n], cs.NAtoms, q2, p.GEwald)
		}
	}
	p.KSpaceRMS = math.Sqrt(rms[0]*rms[0]+rms[1]*rms[1]+rms[2]*rms[2]) / math.Sqrt(3)
	p.RealRMS = RealRMS(q2, cs.NAtoms, p.GEwald, cfg.Cutoff, prd)
	return
}

func rss(a, b float64) float64 {
	return math.Sqrt(a*a + b*b)
}
