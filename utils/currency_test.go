package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToPesewas(t *testing.T) {
	assert.Equal(t, 5000, ToPesewas(50))
	assert.Equal(t, 1550, ToPesewas(15.50))
	assert.Equal(t, 1, ToPesewas(0.005)) // rounds, never truncates
	assert.Equal(t, 0, ToPesewas(0))
}

func TestFromPesewas(t *testing.T) {
	assert.Equal(t, 50.0, FromPesewas(5000))
	assert.Equal(t, 15.5, FromPesewas(1550))
	assert.Equal(t, 0.01, FromPesewas(1))
}

func TestRoundTrip(t *testing.T) {
	for _, cedis := range []float64{0.01, 1, 15.5, 99.99, 1234.56} {
		assert.Equal(t, cedis, FromPesewas(ToPesewas(cedis)))
	}
}
