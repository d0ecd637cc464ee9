package particles

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/notargets/gopppm/types"
)

// ReadDump reads the first snapshot of a LAMMPS text dump. The ATOMS header
// must name the id, type, q, x, y and z columns, in any order; other columns
// are ignored. Boundary flags "pp" mark periodic axes, anything else is
// treated as non periodic.
func ReadDump(r io.Reader) (atoms *Atoms, box types.Box, err error) {
	var (
		sc     = bufio.NewScanner(r)
		natoms = -1
		line   int
		next   = func() (fields []string, ok bool) {
			if !sc.Scan() {
				return nil, false
			}
			line++
			return strings.Fields(sc.Text()), true
		}
	)
	sc.Buffer(make([]byte, 1024*1024), 1024*1024)
	for {
		fields, ok := next()
		if !ok {
			if err = sc.Err(); err == nil {
				err = fmt.Errorf("dump ended before ITEM: ATOMS")
			}
			return
		}
		if len(fields) < 2 || fields[0] != "ITEM:" {
			continue
		}
		switch fields[1] {
		case "NUMBER":
			if fields, ok = next(); !ok || len(fields) != 1 {
				err = fmt.Errorf("line %d: missing atom count", line)
				return
			}
			if natoms, err = strconv.Atoi(fields[0]); err != nil {
				err = fmt.Errorf("line %d: %w", line, err)
				return
			}
		case "BOX":
			if len(fields) < 3 || fields[2] != "BOUNDS" {
				continue
			}
			flags := fields[3:]
			if len(flags) > 0 && flags[0] == "xy" {
				err = fmt.Errorf("line %d: triclinic boxes are not supported", line)
				return
			}
			var lo, hi [3]float64
			var periodic [3]bool
			for k := 0; k < 3; k++ {
				if fields, ok = next(); !ok || len(fields) < 2 {
					err = fmt.Errorf("line %d: unable to get the size of the box", line)
					return
				}
				if lo[k], err = strconv.ParseFloat(fields[0], 64); err != nil {
					return
				}
				if hi[k], err = strconv.ParseFloat(fields[1], 64); err != nil {
					return
				}
				periodic[k] = k >= len(flags) || flags[k] == "pp"
			}
			box = types.NewBox(lo, hi, periodic)
		case "ATOMS":
			if natoms < 0 {
				err = fmt.Errorf("line %d: ITEM: ATOMS before ITEM: NUMBER OF ATOMS", line)
				return
			}
			atoms, err = readAtoms(fields[2:], natoms, next)
			if err == nil {
				err = box.Check()
			}
			return
		}
	}
}

func readAtoms(header []string, natoms int, next func() ([]string, bool)) (atoms *Atoms, err error) {
	var (
		cols = map[string]int{"id": -1, "type": -1, "q": -1, "x": -1, "y": -1, "z": -1}
	)
	for k, v := range header {
		switch v {
		case "xu":
			v = "x"
		case "yu":
			v = "y"
		case "zu":
			v = "z"
		}
		if _, ok := cols[v]; ok {
			cols[v] = k
		}
	}
	for name, k := range cols {
		if k < 0 {
			err = fmt.Errorf("cannot find the column %s", name)
			return
		}
	}
	atoms = NewAtoms(natoms)
	for n := 0; n < natoms; n++ {
		fields, ok := next()
		if !ok {
			err = fmt.Errorf("dump has %d of %d atoms", n, natoms)
			return
		}
		if len(fields) != len(header) {
			err = fmt.Errorf("atom %d: number of columns don't match", n)
			return
		}
		var (
			tag, typ int
			q        float64
			x        [3]float64
		)
		if tag, err = strconv.Atoi(fields[cols["id"]]); err != nil {
			return
		}
		if typ, err = strconv.Atoi(fields[cols["type"]]); err != nil {
			return
		}
		if q, err = strconv.ParseFloat(fields[cols["q"]], 64); err != nil {
			return
		}
		for k, name := range []string{"x", "y", "z"} {
			if x[k], err = strconv.ParseFloat(fields[cols[name]], 64); err != nil {
				return
			}
		}
		if atoms.Map(tag) >= 0 {
			err = fmt.Errorf("atom %d: duplicate id %d", n, tag)
			return
		}
		atoms.AddLocal(tag, typ, q, x)
	}
	return
}
