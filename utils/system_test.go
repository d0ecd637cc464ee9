package utils

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsNan(t *testing.T) {
	assert.False(t, IsNan(1.))
	assert.True(t, IsNan(math.NaN()))
	assert.False(t, IsNan([]float64{1, 2, 3}))
	assert.True(t, IsNan([]float64{1, math.NaN(), 3}))
	assert.True(t, IsNan([][3]float64{{0, 0, 0}, {0, math.NaN(), 0}}))
	assert.False(t, IsNan([][3]float64{{0, 0, 0}}))
	assert.True(t, IsNan([]complex128{complex(0, math.NaN())}))
	assert.True(t, IsNan(float32(math.NaN())))
	assert.NotEmpty(t, GetMemUsage())
}

func TestPOW(t *testing.T) {
	for p := -20; p <= 20; p++ {
		assert.InEpsilon(t, math.Pow(1.3, float64(p)), POW(1.3, p), 1.e-12)
	}
	assert.Equal(t, 1., POW(0, 0))
	assert.Equal(t, 0.25, POW(-0.5, 2))
}
