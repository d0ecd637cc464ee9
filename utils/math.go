package utils

import (
	"math"
)

// POW raises x to an integer power by repeated squaring, powers beyond 16
// fall back to math.Pow
func POW(x float64, p int) (y float64) {
	if p > 16 || p < -16 {
		return math.Pow(x, float64(p))
	}
	var flipped bool
	if p < 0 {
		p, flipped = -p, true
	}
	y = 1
	for ; p > 0; p >>= 1 {
		if p&1 == 1 {
			y *= x
		}
		x *= x
	}
	if flipped {
		y = 1. / y
	}
	return
}
