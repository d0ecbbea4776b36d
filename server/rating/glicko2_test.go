package rating

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdatePair_LeftWinsMovesRatingsApart(t *testing.T) {
	left := NewRating()
	right := NewRating()

	newLeft, newRight, audit, err := UpdatePair(left, right, Win)
	require.NoError(t, err)

	assert.Greater(t, newLeft.Value, left.Value)
	assert.Less(t, newRight.Value, right.Value)
	assert.InDelta(t, newLeft.Value-left.Value, -(newRight.Value-right.Value), 1e-9)

	assert.Less(t, newLeft.RD, left.RD)
	assert.Less(t, newRight.RD, right.RD)

	assert.Greater(t, audit.DeltaLeft, 0.0)
	assert.Less(t, audit.DeltaRight, 0.0)
	assert.Equal(t, left.RD, audit.RDLeftBefore)
	assert.Equal(t, newLeft.RD, audit.RDLeftAfter)
}

func TestUpdatePair_TieIsSymmetricForEqualRatings(t *testing.T) {
	left := NewRating()
	right := NewRating()

	newLeft, newRight, _, err := UpdatePair(left, right, Tie)
	require.NoError(t, err)

	assert.InDelta(t, DefaultRating, newLeft.Value, 0.1)
	assert.InDelta(t, DefaultRating, newRight.Value, 0.1)
	assert.Less(t, newLeft.RD, left.RD)
	assert.Less(t, newRight.RD, right.RD)
}

func TestUpdatePair_ClampsToBounds(t *testing.T) {
	strong := Rating{Value: MaxRating, RD: MinRD, Volatility: 0.03}
	weak := Rating{Value: MinRating, RD: MinRD, Volatility: 0.03}

	newStrong, newWeak, _, err := UpdatePair(strong, weak, Win)
	require.NoError(t, err)

	assert.LessOrEqual(t, newStrong.Value, MaxRating)
	assert.GreaterOrEqual(t, newStrong.Value, MinRating)
	assert.LessOrEqual(t, newStrong.RD, MaxRD)
	assert.GreaterOrEqual(t, newStrong.RD, MinRD)

	assert.LessOrEqual(t, newWeak.Value, MaxRating)
	assert.GreaterOrEqual(t, newWeak.Value, MinRating)
}

func TestSolveVolatility_BothBracketBranches(t *testing.T) {
	// delta^2 > phi^2 + v branch: a large surprise score against a confident opponent.
	sigma, err := solveVolatility(0.06, 1.0, 0.3, 2.0)
	require.NoError(t, err)
	assert.Greater(t, sigma, 0.0)
	assert.False(t, sigmaIsNonFinite(sigma))

	// delta^2 <= phi^2 + v branch: a modest, expected outcome.
	sigma2, err := solveVolatility(0.06, 1.0, 0.3, 0.05)
	require.NoError(t, err)
	assert.Greater(t, sigma2, 0.0)
	assert.False(t, sigmaIsNonFinite(sigma2))
}

func sigmaIsNonFinite(x float64) bool {
	return x != x || x > 1e300 || x < -1e300
}

func TestMatchQuality_HighestForEvenlyMatchedUncertainPlayers(t *testing.T) {
	evenQuality := MatchQuality(1000, 350, 1000, 350)
	lopsidedQuality := MatchQuality(1000, 100, 2500, 100)
	assert.Greater(t, evenQuality, lopsidedQuality)
}

func TestInformationGain_ZeroAtMinRD(t *testing.T) {
	assert.Equal(t, 0.0, InformationGain(MinRD, MinRD))
	assert.Greater(t, InformationGain(MaxRD, MaxRD), 0.0)
}
