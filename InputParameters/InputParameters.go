package InputParameters

import (
	"fmt"
	"sort"

	"github.com/ghodss/yaml"

	"github.com/notargets/gopppm/kspace"
	"github.com/notargets/gopppm/simulation"
	"github.com/notargets/gopppm/types"
)

// Parameters obtained from the YAML input file
type InputParameters struct {
	Title         string      `yaml:"Title"`
	Style         string      `yaml:"Style"` // pppm, pppm/tip4p or ewald
	Units         string      `yaml:"Units"`
	Precision     float64     `yaml:"Precision"`
	Cutoff        float64     `yaml:"Cutoff"`
	Order         int         `yaml:"Order"`
	Mesh          []int       `yaml:"Mesh"`   // three mesh dimensions, empty for automatic
	GEwald        float64     `yaml:"GEwald"` // zero for automatic
	Skin          *float64    `yaml:"Skin"`
	Scale         float64     `yaml:"Scale"`
	Slab          bool        `yaml:"Slab"`
	SlabVolFactor float64     `yaml:"SlabVolFactor"`
	Ranks         int         `yaml:"Ranks"`
	Procs         []int       `yaml:"Procs"`
	Threads       int         `yaml:"Threads"`
	FFTBackend    string      `yaml:"FFTBackend"`
	TIP4P         *TIP4PInput `yaml:"TIP4P"`
}

type TIP4PInput struct {
	TypeO        int             `yaml:"TypeO"`
	TypeH        int             `yaml:"TypeH"`
	BondType     int             `yaml:"BondType"`
	AngleType    int             `yaml:"AngleType"`
	QDist        float64         `yaml:"QDist"`
	BondLength   map[int]float64 `yaml:"BondLength"`   // bond type to equilibrium length
	AngleDegrees map[int]float64 `yaml:"AngleDegrees"` // angle type to equilibrium angle
}

func (ip *InputParameters) Parse(data []byte) error {
	return yaml.Unmarshal(data, ip)
}

// Config translates the input into a run configuration, filling defaults
func (ip *InputParameters) Config() (cfg simulation.Config, err error) {
	cfg = simulation.Config{
		Style: ip.Style,
		Ranks: ip.Ranks,
		KSpace: kspace.Config{
			Precision:     ip.Precision,
			Cutoff:        ip.Cutoff,
			Order:         ip.Order,
			GEwald:        ip.GEwald,
			Skin:          kspace.DefaultSkin,
			Scale:         ip.Scale,
			Slab:          ip.Slab,
			SlabVolFactor: ip.SlabVolFactor,
			Threads:       ip.Threads,
			FFTBackend:    ip.FFTBackend,
		},
	}
	if cfg.Style == "" {
		cfg.Style = "pppm"
	}
	if cfg.Ranks == 0 {
		cfg.Ranks = 1
	}
	if ip.Skin != nil {
		cfg.KSpace.Skin = *ip.Skin
	}
	if cfg.KSpace.Units, err = types.NewUnits(ip.Units); err != nil {
		return
	}
	if cfg.KSpace.Mesh, err = triple("Mesh", ip.Mesh); err != nil {
		return
	}
	if cfg.KSpace.Procs, err = triple("Procs", ip.Procs); err != nil {
		return
	}
	if t := ip.TIP4P; t != nil {
		cfg.KSpace.TIP4P = &kspace.TIP4PConfig{
			TypeO:        t.TypeO,
			TypeH:        t.TypeH,
			BondType:     t.BondType,
			AngleType:    t.AngleType,
			QDist:        t.QDist,
			BondLength:   t.BondLength,
			AngleDegrees: t.AngleDegrees,
		}
		if ip.Style == "" {
			cfg.Style = "pppm/tip4p"
		}
	}
	cfg.KSpace = cfg.KSpace.WithDefaults()
	return
}

func triple(name string, v []int) (t [3]int, err error) {
	switch len(v) {
	case 0:
	case 1:
		t = [3]int{v[0], v[0], v[0]}
	case 3:
		t = [3]int{v[0], v[1], v[2]}
	default:
		err = fmt.Errorf("%s needs one or three values, have %v", name, v)
	}
	return
}

func (ip *InputParameters) Print() {
	fmt.Printf("\"%s\"\t\t= Title\n", ip.Title)
	fmt.Printf("[%s]\t\t\t= Style\n", ip.Style)
	fmt.Printf("[%s]\t\t\t= Units\n", ip.Units)
	fmt.Printf("%8.2e\t\t= Precision\n", ip.Precision)
	fmt.Printf("%8.5f\t\t= Cutoff\n", ip.Cutoff)
	fmt.Printf("[%d]\t\t\t\t= Order\n", ip.Order)
	if len(ip.Mesh) != 0 {
		fmt.Printf("%v\t\t\t= Mesh\n", ip.Mesh)
	}
	if ip.GEwald != 0 {
		fmt.Printf("%8.5f\t\t= GEwald\n", ip.GEwald)
	}
	if ip.Slab {
		fmt.Printf("%8.5f\t\t= Slab Volume Factor\n", ip.SlabVolFactor)
	}
	fmt.Printf("[%d]\t\t\t\t= Ranks\n", ip.Ranks)
	fmt.Printf("[%d]\t\t\t\t= Threads\n", ip.Threads)
	if t := ip.TIP4P; t != nil {
		fmt.Printf("TIP4P O = %d, H = %d, qdist = %8.5f\n", t.TypeO, t.TypeH, t.QDist)
		keys := make([]int, 0, len(t.BondLength))
		for k := range t.BondLength {
			keys = append(keys, k)
		}
		sort.Ints(keys)
		for _, key := range keys {
			fmt.Printf("BondLength[%d] = %v\n", key, t.BondLength[key])
		}
	}
}
