package pppm

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/gopppm/comm"
	"github.com/notargets/gopppm/kspace"
	"github.com/notargets/gopppm/particles"
	"github.com/notargets/gopppm/types"
)

// chargeSites places the charge of an owned atom on the mesh and returns the
// force on that charge to the atoms that carry it.
type chargeSites interface {
	// QDist is how far a charge site may sit from its atom
	QDist() float64
	// Check is collective, it validates the sites against the whole system
	Check(c comm.Comm, a *particles.Atoms) error
	Position(a *particles.Atoms, i int, box types.Box) ([3]float64, error)
	Distribute(a *particles.Atoms, i int, box types.Box, f [3]float64) error
}

type pointSites struct{}

func (pointSites) QDist() float64 { return 0 }

func (pointSites) Check(comm.Comm, *particles.Atoms) error { return nil }

func (pointSites) Position(a *particles.Atoms, i int, _ types.Box) ([3]float64, error) {
	return a.X[i], nil
}

func (pointSites) Distribute(a *particles.Atoms, i int, _ types.Box, f [3]float64) error {
	for n := 0; n < 3; n++ {
		a.F[i][n] += f[n]
	}
	return nil
}

// tip4pSites moves the oxygen charge of a TIP4P water to the massless M
// site on the HOH bisector, qdist from the oxygen.
type tip4pSites struct {
	typeO, typeH int
	qdist        float64
	alpha        float64
}

func newTIP4PSites(cfg *kspace.TIP4PConfig) (s *tip4pSites, err error) {
	if cfg == nil {
		err = fmt.Errorf("%w: TIP4P settings are missing", kspace.ErrConfiguration)
		return
	}
	if cfg.BondLength == nil || cfg.AngleDegrees == nil {
		err = fmt.Errorf("%w: bond and angle potentials must be defined for TIP4P", kspace.ErrConfiguration)
		return
	}
	if cfg.TypeO <= 0 || cfg.TypeH <= 0 {
		err = fmt.Errorf("%w: bad TIP4P atom types O = %d, H = %d", kspace.ErrConfiguration, cfg.TypeO, cfg.TypeH)
		return
	}
	blen, ok := cfg.BondLength[cfg.BondType]
	if cfg.BondType <= 0 || !ok || blen <= 0 {
		err = fmt.Errorf("%w: bad TIP4P bond type %d", kspace.ErrConfiguration, cfg.BondType)
		return
	}
	theta, ok := cfg.AngleDegrees[cfg.AngleType]
	if cfg.AngleType <= 0 || !ok || theta <= 0 || theta >= 180 {
		err = fmt.Errorf("%w: bad TIP4P angle type %d", kspace.ErrConfiguration, cfg.AngleType)
		return
	}
	if cfg.QDist < 0 {
		err = fmt.Errorf("%w: TIP4P qdist must not be negative", kspace.ErrConfiguration)
		return
	}
	theta *= math.Pi / 180
	s = &tip4pSites{
		typeO: cfg.TypeO,
		typeH: cfg.TypeH,
		qdist: cfg.QDist,
		alpha: cfg.QDist / (math.Cos(0.5*theta) * blen),
	}
	return
}

func (s *tip4pSites) QDist() float64 { return s.qdist }

func (s *tip4pSites) hydrogens(a *particles.Atoms, i int) (iH1, iH2 int, err error) {
	iH1 = a.Map(a.Tag[i] + 1)
	iH2 = a.Map(a.Tag[i] + 2)
	if iH1 < 0 || iH2 < 0 {
		err = fmt.Errorf("%w: TIP4P hydrogen is missing for oxygen %d", kspace.ErrConfiguration, a.Tag[i])
		return
	}
	if a.Type[iH1] != s.typeH || a.Type[iH2] != s.typeH {
		err = fmt.Errorf("%w: TIP4P hydrogen has incorrect atom type for oxygen %d", kspace.ErrConfiguration, a.Tag[i])
	}
	return
}

// Check fails unless both water atom types occur among the owned atoms of
// some rank
func (s *tip4pSites) Check(c comm.Comm, a *particles.Atoms) (err error) {
	var count [2]float64
	for i := 0; i < a.NLocal; i++ {
		switch a.Type[i] {
		case s.typeO:
			count[0]++
		case s.typeH:
			count[1]++
		}
	}
	var sum []float64
	if sum, err = c.AllReduce(count[:]); err != nil {
		return
	}
	if sum[0] == 0 {
		err = fmt.Errorf("%w: TIP4P atom type O = %d not present", kspace.ErrConfiguration, s.typeO)
	} else if sum[1] == 0 {
		err = fmt.Errorf("%w: TIP4P atom type H = %d not present", kspace.ErrConfiguration, s.typeH)
	}
	return
}

func (s *tip4pSites) Position(a *particles.Atoms, i int, box types.Box) (xM [3]float64, err error) {
	if a.Type[i] != s.typeO {
		return a.X[i], nil
	}
	var iH1, iH2 int
	if iH1, iH2, err = s.hydrogens(a, i); err != nil {
		return
	}
	var (
		xO = types.ToVec(a.X[i])
		d1 = box.MinimumImage(r3.Sub(types.ToVec(a.X[iH1]), xO))
		d2 = box.MinimumImage(r3.Sub(types.ToVec(a.X[iH2]), xO))
	)
	xM = types.FromVec(r3.Add(xO, r3.Scale(0.5*s.alpha, r3.Add(d1, d2))))
	return
}

func (s *tip4pSites) Distribute(a *particles.Atoms, i int, box types.Box, f [3]float64) (err error) {
	if a.Type[i] != s.typeO {
		return pointSites{}.Distribute(a, i, box, f)
	}
	var iH1, iH2 int
	if iH1, iH2, err = s.hydrogens(a, i); err != nil {
		return
	}
	for n := 0; n < 3; n++ {
		a.F[i][n] += f[n] * (1 - s.alpha)
		a.F[iH1][n] += 0.5 * s.alpha * f[n]
		a.F[iH2][n] += 0.5 * s.alpha * f[n]
	}
	return
}
