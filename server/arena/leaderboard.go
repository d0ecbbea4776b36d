package arena

import "sort"

// LeaderboardEntry is one ranked row of the GET_LEADERBOARD projection.
type LeaderboardEntry struct {
	Rank        int
	GeneratorID string
	Name        string
	Version     string
	Rating      float64
	RD          float64
	GamesPlayed int
	Wins        int
	Losses      int
	Ties        int
	Skips       int
}

// BuildLeaderboard sorts generators by rating descending, generator_id
// ascending as a stable tie-break, and assigns 1-based ranks. gens and
// ratings must share the same generator ids; inactive generators must
// already be filtered out by the caller.
func BuildLeaderboard(gens []Generator, ratings map[string]Rating) []LeaderboardEntry {
	entries := make([]LeaderboardEntry, 0, len(gens))
	for _, g := range gens {
		r, ok := ratings[g.ID]
		if !ok {
			continue
		}
		entries = append(entries, LeaderboardEntry{
			GeneratorID: g.ID,
			Name:        g.Name,
			Version:     g.Version,
			Rating:      r.Value,
			RD:          r.RD,
			GamesPlayed: r.GamesPlayed,
			Wins:        r.Wins,
			Losses:      r.Losses,
			Ties:        r.Ties,
			Skips:       r.Skips,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Rating != entries[j].Rating {
			return entries[i].Rating > entries[j].Rating
		}
		return entries[i].GeneratorID < entries[j].GeneratorID
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}

// ConfusionCell is one ordered-pair entry of the GET_CONFUSION_MATRIX
// projection. Diagonal entries (RowID == ColID) are never produced.
type ConfusionCell struct {
	RowID, ColID     string
	BattleCount      int
	RowWins, ColWins int
	Ties, Skips      int
	RowWinRateLow    float64
	RowWinRateHigh   float64
}

// ConfusionMatrixCoverage summarizes pair coverage against the target.
type ConfusionMatrixCoverage struct {
	TotalPairs        int
	PairsWithData     int
	PairsAtTarget     int
	TargetPerPair     int
}

// BuildConfusionMatrix enumerates every ordered pair (i, j), i != j, over
// gens in canonical (sorted-id) order, looking up the canonical PairStats
// row and flipping counters when the presentation order disagrees with
// the canonical order. pairStats is keyed by CanonicalPair's (a, b).
func BuildConfusionMatrix(gens []Generator, pairStats map[[2]string]PairStats, targetPerPair int) ([]ConfusionCell, ConfusionMatrixCoverage) {
	ids := make([]string, len(gens))
	for i, g := range gens {
		ids[i] = g.ID
	}
	sort.Strings(ids)

	var cells []ConfusionCell
	seenPairs := make(map[[2]string]bool)
	var atTarget int

	for _, i := range ids {
		for _, j := range ids {
			if i == j {
				continue
			}
			a, b, iIsA := CanonicalPair(i, j)
			key := [2]string{a, b}
			row, ok := pairStats[key]

			if !seenPairs[key] {
				seenPairs[key] = true
				if row.BattleCount >= targetPerPair {
					atTarget++
				}
			}

			cell := ConfusionCell{RowID: i, ColID: j}
			if ok {
				cell.BattleCount = row.BattleCount
				cell.Ties = row.Ties
				cell.Skips = row.Skips
				if iIsA {
					cell.RowWins, cell.ColWins = row.AWins, row.BWins
				} else {
					cell.RowWins, cell.ColWins = row.BWins, row.AWins
				}
				lo, hi := WilsonCI95(cell.RowWins, cell.Ties, cell.BattleCount)
				cell.RowWinRateLow, cell.RowWinRateHigh = lo, hi
			}
			cells = append(cells, cell)
		}
	}

	totalPairs := len(ids) * (len(ids) - 1) / 2
	var withData int
	for key, row := range pairStats {
		_ = key
		if row.BattleCount > 0 {
			withData++
		}
	}

	return cells, ConfusionMatrixCoverage{
		TotalPairs:    totalPairs,
		PairsWithData: withData,
		PairsAtTarget: atTarget,
		TargetPerPair: targetPerPair,
	}
}
