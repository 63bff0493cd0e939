package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistanceIdentity(t *testing.T) {
	points := [][2]float64{
		{0, 0},
		{24.7136, 46.6753},
		{-33.8688, 151.2093},
		{90, 0},
	}
	for _, p := range points {
		assert.Zero(t, Distance(p[0], p[1], p[0], p[1]))
	}
}

func TestDistanceSymmetry(t *testing.T) {
	d1 := Distance(24.7136, 46.6753, 21.4858, 39.1925)
	d2 := Distance(21.4858, 39.1925, 24.7136, 46.6753)
	assert.Equal(t, d1, d2)
}

func TestDistanceKnownValues(t *testing.T) {
	// One degree of longitude on the equator: 6371 * pi / 180.
	assert.InDelta(t, 111.195, Distance(0, 0, 0, 1), 0.01)

	// Riyadh to Jeddah, roughly 850 km.
	assert.InDelta(t, 850, Distance(24.7136, 46.6753, 21.4858, 39.1925), 30)
}
