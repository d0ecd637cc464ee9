package types

import "fmt"

// Units carries the electrostatic conversion constants of a unit system.
// QQR2E converts q_i*q_j/r to energy units.
type Units struct {
	Name       string
	QQR2E      float64
	QElectron  float64
	Angstrom   float64
	Dielectric float64
}

func NewUnits(name string) (u Units, err error) {
	u = Units{Name: name, Dielectric: 1}
	switch name {
	case "lj", "":
		u.Name = "lj"
		u.QQR2E, u.QElectron, u.Angstrom = 1, 1, 1
	case "real":
		u.QQR2E, u.QElectron, u.Angstrom = 332.06371, 1, 1
	case "metal":
		u.QQR2E, u.QElectron, u.Angstrom = 14.399645, 1, 1
	case "si":
		u.QQR2E, u.QElectron, u.Angstrom = 8.9876e9, 1.6021765e-19, 1.0e-10
	case "cgs":
		u.QQR2E, u.QElectron, u.Angstrom = 1, 4.8032044e-10, 1.0e-8
	case "electron":
		u.QQR2E, u.QElectron, u.Angstrom = 1, 1, 1.88972612
	default:
		err = fmt.Errorf("unknown unit system: %q", name)
	}
	return
}

// QQRD2E is QQR2E scaled by the dielectric constant
func (u Units) QQRD2E() float64 {
	return u.QQR2E / u.Dielectric
}

// TwoChargeForce is the force between two unit charges one Angstrom apart,
// used to convert a relative accuracy into force units.
func (u Units) TwoChargeForce() float64 {
	return u.QQR2E * (u.QElectron * u.QElectron) / (u.Angstrom * u.Angstrom)
}
