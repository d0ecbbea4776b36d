package arena

import "time"

// CanonicalPair returns the two generator ids sorted lexicographically,
// plus whether the left-presented generator is the first element of the
// canonical pair. Mirrors the source's normalize_pair_key.
func CanonicalPair(leftGeneratorID, rightGeneratorID string) (a, b string, leftIsA bool) {
	if leftGeneratorID <= rightGeneratorID {
		return leftGeneratorID, rightGeneratorID, true
	}
	return rightGeneratorID, leftGeneratorID, false
}

// PairOutcome is the canonical-ordering translation of a presentation
// result, used to bump the right PairStats counter.
type PairOutcome int

const (
	PairOutcomeAWins PairOutcome = iota
	PairOutcomeBWins
	PairOutcomeTie
	PairOutcomeSkip
)

// TranslateResult maps a presentation-relative Result onto the
// canonical-pair-relative outcome, given whether the left side is the
// canonically-first generator.
func TranslateResult(result Result, leftIsA bool) PairOutcome {
	switch result {
	case ResultLeft:
		if leftIsA {
			return PairOutcomeAWins
		}
		return PairOutcomeBWins
	case ResultRight:
		if leftIsA {
			return PairOutcomeBWins
		}
		return PairOutcomeAWins
	case ResultTie:
		return PairOutcomeTie
	default: // ResultSkip
		return PairOutcomeSkip
	}
}

// ApplyPairOutcome returns the updated PairStats row for a single vote.
// The caller is responsible for loading the current row (or a zero row
// for a never-seen pair) and persisting the result inside the ingestion
// transaction.
func ApplyPairOutcome(stats PairStats, outcome PairOutcome, now time.Time) PairStats {
	stats.BattleCount++
	switch outcome {
	case PairOutcomeAWins:
		stats.AWins++
	case PairOutcomeBWins:
		stats.BWins++
	case PairOutcomeTie:
		stats.Ties++
	case PairOutcomeSkip:
		stats.Skips++
	}
	stats.LastBattle = now
	return stats
}
