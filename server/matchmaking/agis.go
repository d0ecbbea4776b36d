// Package matchmaking implements AGIS (Adaptive Glicko-Informed Selection),
// the two-stage weighted sampler that picks a battle's generator pair.
package matchmaking

import (
	"errors"
	"math"
	"math/rand"

	"ai-thunderdome/server/rating"
)

// ErrNoBattleAvailable is returned when fewer than two eligible generators
// (active, with at least one level) are available.
var ErrNoBattleAvailable = errors.New("matchmaking: fewer than two eligible generators")

// Tuning constants from spec §4.2.
const (
	MinGamesForSignificance = 20
	RatingSimilaritySigma   = 200.0
	QualityBiasStrength     = 0.1

	alpha = 0.5 // rating-similarity weight
	beta  = 0.3 // opponent-uncertainty weight
	gamma = 0.2 // information-gain + match-quality weight

	floorWeight = 0.01
)

// DefaultTargetBattlesPerPair is the coverage target T used by the
// pair-coverage bonus when the caller does not override it.
const DefaultTargetBattlesPerPair = 10

// Generator is the matchmaking-relevant view of a generator's current
// standing, as loaded from the ratings store.
type Generator struct {
	ID          string
	Rating      float64
	RD          float64
	GamesPlayed int
}

// PairCounts maps a canonical (lexicographically-ordered) generator-id pair
// to its battle_count, as maintained by the pair-stats aggregator (C3).
type PairCounts map[[2]string]int

// Count returns the battle count for the unordered pair (a, b), canonicalizing
// the key order.
func (pc PairCounts) Count(a, b string) int {
	key := CanonicalKey(a, b)
	return pc[key]
}

// CanonicalKey returns (a, b) sorted lexicographically.
func CanonicalKey(a, b string) [2]string {
	if a <= b {
		return [2]string{a, b}
	}
	return [2]string{b, a}
}

// Selection is the outcome of an AGIS draw: the two generators, labeled left
// and right purely by presentation policy (gen1 -> left, gen2 -> right).
type Selection struct {
	Left, Right Generator
}

// SelectPair runs the two-stage AGIS sampler over the given eligible
// generators. rng must be supplied by the caller for reproducibility (spec
// §4.2 "Determinism"); it is never a package-level global.
func SelectPair(rng *rand.Rand, generators []Generator, pairCounts PairCounts, targetBattlesPerPair int) (Selection, error) {
	if len(generators) < 2 {
		return Selection{}, ErrNoBattleAvailable
	}
	if targetBattlesPerPair <= 0 {
		targetBattlesPerPair = DefaultTargetBattlesPerPair
	}

	weights := make([]float64, len(generators))
	for i, gen := range generators {
		weights[i] = firstPickWeight(gen)
	}
	gen1Idx := weightedChoice(rng, weights)
	gen1 := generators[gen1Idx]

	pairWeights := make([]float64, len(generators))
	var totalPW float64
	for i, gen := range generators {
		if i == gen1Idx {
			continue
		}
		w := secondPickWeight(gen1, gen, pairCounts, targetBattlesPerPair)
		pairWeights[i] = w
		totalPW += w
	}

	var gen2Idx int
	if totalPW <= 0 {
		gen2Idx = uniformChoiceExcluding(rng, len(generators), gen1Idx)
	} else {
		gen2Idx = weightedChoice(rng, pairWeights)
	}

	return Selection{Left: gen1, Right: generators[gen2Idx]}, nil
}

// firstPickWeight computes w1 for stage 1 (§4.2).
func firstPickWeight(gen Generator) float64 {
	rdNorm := (gen.RD - rating.MinRD) / (rating.MaxRD - rating.MinRD)
	uncertaintyWeight := math.Pow(1.0+rdNorm, 2)

	var gamesWeight float64
	if gen.GamesPlayed < MinGamesForSignificance {
		convergenceRatio := float64(gen.GamesPlayed) / float64(MinGamesForSignificance)
		gamesWeight = 3.0*(1.0-convergenceRatio) + 1.0
	} else {
		quality := clamp01((gen.Rating - 600) / 800)
		gamesWeight = 0.8 + QualityBiasStrength*quality
	}

	return math.Max(floorWeight, uncertaintyWeight*gamesWeight)
}

// secondPickWeight computes w2 for stage 2 (§4.2), given gen1 already chosen.
func secondPickWeight(gen1, gen2 Generator, pairCounts PairCounts, targetBattlesPerPair int) float64 {
	ratingDiff := gen1.Rating - gen2.Rating
	similarity := math.Exp(-(ratingDiff * ratingDiff) / (2 * RatingSimilaritySigma * RatingSimilaritySigma))

	rdNorm := (gen2.RD - rating.MinRD) / (rating.MaxRD - rating.MinRD)
	uncertainty := 1.0 + rdNorm

	count := pairCounts.Count(gen1.ID, gen2.ID)
	var coverage float64
	if count < targetBattlesPerPair {
		coverage = 2.0 * math.Exp(-float64(count)/3.0)
	} else {
		coverage = 0.1
	}

	infoGain := rating.InformationGain(gen1.RD, gen2.RD)
	quality := rating.MatchQuality(gen1.Rating, gen1.RD, gen2.Rating, gen2.RD)

	base := alpha*similarity + beta*uncertainty + gamma*(infoGain+quality)
	return math.Max(floorWeight, base+coverage)
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

// weightedChoice samples an index proportional to weights. Assumes at least
// one weight is positive (callers only pass non-negative weights with a
// positive sum).
func weightedChoice(rng *rand.Rand, weights []float64) int {
	var total float64
	for _, w := range weights {
		total += w
	}
	if total <= 0 {
		// Degenerate: uniform over all indices.
		return rng.Intn(len(weights))
	}
	target := rng.Float64() * total
	var acc float64
	for i, w := range weights {
		acc += w
		if target < acc {
			return i
		}
	}
	return len(weights) - 1
}

func uniformChoiceExcluding(rng *rand.Rand, n, exclude int) int {
	if n <= 1 {
		return 0
	}
	idx := rng.Intn(n - 1)
	if idx >= exclude {
		idx++
	}
	return idx
}
