// Package kspace defines the long range electrostatics solvers: the Solver
// contract, the accuracy driven choice of their parameters and the errors
// and advisories they raise.
package kspace

import (
	"errors"
	"fmt"
	"log"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/notargets/gopppm/comm"
	"github.com/notargets/gopppm/particles"
	"github.com/notargets/gopppm/types"
)

var (
	ErrConfiguration     = errors.New("configuration error")
	ErrConvergence       = errors.New("convergence error")
	ErrRuntimeDivergence = errors.New("runtime divergence")
)

type Solver interface {
	// Init validates the configuration against the system and derives the
	// accuracy parameters, grids and buffers. It is collective over c.
	Init(c comm.Comm, a *particles.Atoms, box types.Box) error
	// Setup rebuilds the reciprocal space state for the current box
	Setup(box types.Box) error
	// Compute adds the long range forces to a.F and returns the energy and
	// virial summed over all ranks.
	Compute(a *particles.Atoms, box types.Box) (EnergyVirial, error)
	MemoryUsage() float64
	Parameters() Parameters
}

type TIP4PConfig struct {
	TypeO, TypeH        int
	BondType, AngleType int
	QDist               float64
	BondLength          map[int]float64 // equilibrium bond length per bond type
	AngleDegrees        map[int]float64 // equilibrium angle per angle type
}

type Config struct {
	Precision     float64 // relative force accuracy
	Cutoff        float64 // real space cutoff
	Order         int     // stencil order, 0 picks the default
	Mesh          [3]int  // zero for accuracy based selection
	GEwald        float64 // zero for accuracy based selection
	Units         types.Units
	Slab          bool
	SlabVolFactor float64
	Skin          float64
	Scale         float64
	Threads       int
	FFTBackend    string
	Procs         [3]int // spatial process grid, zero to pick one from the box shape
	TIP4P         *TIP4PConfig
}

const (
	DefaultOrder         = 5
	DefaultSkin          = 0.3
	DefaultSlabVolFactor = 3.0
)

// WithDefaults fills the zero valued fields that have a natural default
func (cfg Config) WithDefaults() Config {
	if cfg.Order == 0 {
		cfg.Order = DefaultOrder
	}
	if cfg.Scale == 0 {
		cfg.Scale = 1
	}
	if cfg.Threads < 1 {
		cfg.Threads = 1
	}
	if cfg.Units.QQR2E == 0 {
		cfg.Units, _ = types.NewUnits("lj")
	}
	if cfg.Slab && cfg.SlabVolFactor == 0 {
		cfg.SlabVolFactor = DefaultSlabVolFactor
	}
	if !cfg.Slab {
		cfg.SlabVolFactor = 1
	}
	return cfg
}

// Parameters is the outcome of the accuracy analysis of a solver. Feeding
// GEwald, Mesh and Order back in as configuration reproduces the solver.
type Parameters struct {
	Precision float64
	Accuracy  float64 // absolute force accuracy
	GEwald    float64
	Mesh      [3]int
	KMax      [3]int
	Order     int
	KSpaceRMS float64 // estimated reciprocal space force error
	RealRMS   float64 // estimated real space force error
	NAtoms    int
	QSum      float64
	QSqSum    float64
}

func (p Parameters) String() string {
	return fmt.Sprintf("G vector = %.8g, grid = %d %d %d, order = %d, kmax = %d %d %d\n"+
		"estimated absolute RMS force accuracy = %.8g, kspace = %.8g, real space = %.8g",
		p.GEwald, p.Mesh[0], p.Mesh[1], p.Mesh[2], p.Order, p.KMax[0], p.KMax[1], p.KMax[2],
		rss(p.KSpaceRMS, p.RealRMS), p.KSpaceRMS, p.RealRMS)
}

// EnergyVirial is the long range energy and the virial tensor in the order
// xx, yy, zz, xy, xz, yz.
type EnergyVirial struct {
	Energy float64
	Virial [6]float64
}

func (ev *EnergyVirial) Reset() {
	*ev = EnergyVirial{}
}

func (ev *EnergyVirial) Add(o EnergyVirial) {
	ev.Energy += o.Energy
	for i := range ev.Virial {
		ev.Virial[i] += o.Virial[i]
	}
}

func (ev EnergyVirial) Tensor() *mat.SymDense {
	v := ev.Virial
	return mat.NewSymDense(3, []float64{
		v[0], v[3], v[4],
		v[3], v[1], v[5],
		v[4], v[5], v[2],
	})
}

// Reporter receives the non fatal advisories of a solver
type Reporter interface {
	Warning(msg string)
}

type LogReporter struct{}

func (LogReporter) Warning(msg string) {
	log.Printf("WARNING: %s", msg)
}

// SilentReporter drops advisories, used on every rank but the first
type SilentReporter struct{}

func (SilentReporter) Warning(string) {}

// RecordingReporter keeps the advisories it receives
type RecordingReporter struct {
	Warnings []string
}

func (r *RecordingReporter) Warning(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

type Constructor func(cfg Config, rep Reporter) (Solver, error)

// Registry maps a solver style name to its constructor
type Registry struct {
	ctors map[string]Constructor
}

func NewRegistry() *Registry {
	return &Registry{ctors: make(map[string]Constructor)}
}

func (r *Registry) Register(style string, ctor Constructor) {
	if _, present := r.ctors[style]; present {
		panic(fmt.Errorf("kspace style %q registered twice", style))
	}
	r.ctors[style] = ctor
}

func (r *Registry) New(style string, cfg Config, rep Reporter) (s Solver, err error) {
	ctor, ok := r.ctors[style]
	if !ok {
		err = fmt.Errorf("%w: unknown kspace style %q, have %v", ErrConfiguration, style, r.Styles())
		return
	}
	if rep == nil {
		rep = SilentReporter{}
	}
	return ctor(cfg, rep)
}

func (r *Registry) Styles() (styles []string) {
	for k := range r.ctors {
		styles = append(styles, k)
	}
	sort.Strings(styles)
	return
}
