package matchmaking

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectPair_RequiresAtLeastTwoGenerators(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	_, err := SelectPair(rng, []Generator{{ID: "g1"}}, PairCounts{}, 10)
	require.ErrorIs(t, err, ErrNoBattleAvailable)
}

func TestSelectPair_ExactlyTwoGeneratorsChoosesBoth(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	gens := []Generator{
		{ID: "g1", Rating: 1000, RD: 350, GamesPlayed: 0},
		{ID: "g2", Rating: 1000, RD: 350, GamesPlayed: 0},
	}
	sel, err := SelectPair(rng, gens, PairCounts{}, 10)
	require.NoError(t, err)

	ids := map[string]bool{sel.Left.ID: true, sel.Right.ID: true}
	assert.True(t, ids["g1"])
	assert.True(t, ids["g2"])
	assert.NotEqual(t, sel.Left.ID, sel.Right.ID)
}

func TestFirstPickWeight_UndersampledGeneratorsAreBoosted(t *testing.T) {
	fresh := Generator{Rating: 1000, RD: 350, GamesPlayed: 0}
	seasoned := Generator{Rating: 1000, RD: 350, GamesPlayed: 1000}
	assert.Greater(t, firstPickWeight(fresh), firstPickWeight(seasoned))
}

func TestSecondPickWeight_PrefersSimilarRatings(t *testing.T) {
	gen1 := Generator{ID: "g1", Rating: 1000, RD: 100}
	close := Generator{ID: "g2", Rating: 1050, RD: 100}
	far := Generator{ID: "g3", Rating: 2000, RD: 100}

	counts := PairCounts{}
	closeWeight := secondPickWeight(gen1, close, counts, DefaultTargetBattlesPerPair)
	farWeight := secondPickWeight(gen1, far, counts, DefaultTargetBattlesPerPair)
	assert.Greater(t, closeWeight, farWeight)
}

func TestSecondPickWeight_CoverageBiasFavorsUncoveredPairs(t *testing.T) {
	gen1 := Generator{ID: "g1", Rating: 1000, RD: 200}
	gen2 := Generator{ID: "g2", Rating: 1000, RD: 200}

	uncovered := PairCounts{}
	covered := PairCounts{CanonicalKey("g1", "g2"): 50}

	wUncovered := secondPickWeight(gen1, gen2, uncovered, 10)
	wCovered := secondPickWeight(gen1, gen2, covered, 10)
	assert.Greater(t, wUncovered, wCovered)
}

// TestCoverageBias_SamplingFrequency reproduces scenario S6: force an
// over-represented pair among four generators and confirm the
// under-covered pairs are drawn disproportionately more often than a
// uniform baseline would predict.
func TestCoverageBias_SamplingFrequency(t *testing.T) {
	gens := []Generator{
		{ID: "g1", Rating: 1000, RD: 200, GamesPlayed: 50},
		{ID: "g2", Rating: 1000, RD: 200, GamesPlayed: 50},
		{ID: "g3", Rating: 1000, RD: 200, GamesPlayed: 50},
		{ID: "g4", Rating: 1000, RD: 200, GamesPlayed: 50},
	}
	counts := PairCounts{CanonicalKey("g1", "g2"): 10}
	target := 10

	rng := rand.New(rand.NewSource(42))
	const draws = 1000
	underCovered := 0
	totalPairsDrawn := 0
	for i := 0; i < draws; i++ {
		sel, err := SelectPair(rng, gens, counts, target)
		require.NoError(t, err)
		totalPairsDrawn++
		if counts.Count(sel.Left.ID, sel.Right.ID) < target {
			underCovered++
		}
	}

	observedFreq := float64(underCovered) / float64(totalPairsDrawn)
	// 5 of 6 unordered pairs among 4 generators start under target; a
	// uniform sampler would draw them ~83% of the time. The coverage
	// bonus should push this well above that baseline.
	uniformBaseline := 5.0 / 6.0
	assert.GreaterOrEqual(t, observedFreq, uniformBaseline)
}
