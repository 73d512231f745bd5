package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHaversineKmZeroDistance(t *testing.T) {
	d := HaversineKm(5.6508, -0.1869, 5.6508, -0.1869)
	assert.InDelta(t, 0, d, 0.0001)
}

func TestHaversineKmKnownDistance(t *testing.T) {
	// University of Ghana (Legon) to KNUST (Kumasi) is roughly 200km.
	d := HaversineKm(5.6508, -0.1869, 6.6745, -1.5716)
	assert.InDelta(t, 189, d, 5)
}

func TestHaversineKmSymmetric(t *testing.T) {
	a := HaversineKm(5.65, -0.18, 6.67, -1.57)
	b := HaversineKm(6.67, -1.57, 5.65, -0.18)
	assert.InDelta(t, a, b, 1e-9)
}
