package arena

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWilsonCI95_WidensWithFewerObservations(t *testing.T) {
	loSmall, hiSmall := WilsonCI95(3, 0, 5)
	loBig, hiBig := WilsonCI95(300, 0, 500)

	assert.Greater(t, hiSmall-loSmall, hiBig-loBig)
	assert.GreaterOrEqual(t, loSmall, 0.0)
	assert.LessOrEqual(t, hiSmall, 1.0)
}

func TestWilsonCI95_EmptySampleIsMaximallyUncertain(t *testing.T) {
	lo, hi := WilsonCI95(0, 0, 0)
	assert.Equal(t, 0.0, lo)
	assert.Equal(t, 1.0, hi)
}

func TestBootstrapCI95_ContainsTheMean(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	vals := []float64{1, 2, 3, 4, 5}
	lo, hi := BootstrapCI95(rng, vals, 500)
	assert.LessOrEqual(t, lo, 3.0)
	assert.GreaterOrEqual(t, hi, 3.0)
}
