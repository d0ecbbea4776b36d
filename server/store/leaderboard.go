package store

import (
	"context"
	"time"

	"ai-thunderdome/server/arena"
)

// Leaderboard loads every active generator and its rating and returns
// the ranked projection (spec §4.7).
func (db *DB) Leaderboard(ctx context.Context) ([]arena.LeaderboardEntry, time.Time, error) {
	gens, ratings, err := db.activeGeneratorsWithRatings(ctx)
	if err != nil {
		return nil, time.Time{}, err
	}
	entries := arena.BuildLeaderboard(gens, ratings)

	updatedAt := time.Now().UTC()
	var maxUpdated time.Time
	for _, r := range ratings {
		if r.UpdatedAt.After(maxUpdated) {
			maxUpdated = r.UpdatedAt
		}
	}
	if !maxUpdated.IsZero() {
		updatedAt = maxUpdated
	}
	return entries, updatedAt, nil
}

// ConfusionMatrix loads every active generator and the full pair-stats
// table and returns the enumerated ordered-pair projection with coverage
// summary (spec §4.7).
func (db *DB) ConfusionMatrix(ctx context.Context, targetPerPair int) ([]arena.ConfusionCell, arena.ConfusionMatrixCoverage, error) {
	gens, _, err := db.activeGeneratorsWithRatings(ctx)
	if err != nil {
		return nil, arena.ConfusionMatrixCoverage{}, err
	}

	rows, err := db.Query(ctx, `
		SELECT a, b, battle_count, a_wins, b_wins, ties, skips, last_battle_utc
		  FROM generator_pair_stats
	`)
	if err != nil {
		return nil, arena.ConfusionMatrixCoverage{}, err
	}
	defer rows.Close()

	pairStats := make(map[[2]string]arena.PairStats)
	for rows.Next() {
		var s arena.PairStats
		var last *time.Time
		if err := rows.Scan(&s.A, &s.B, &s.BattleCount, &s.AWins, &s.BWins, &s.Ties, &s.Skips, &last); err != nil {
			return nil, arena.ConfusionMatrixCoverage{}, err
		}
		if last != nil {
			s.LastBattle = *last
		}
		pairStats[[2]string{s.A, s.B}] = s
	}
	if err := rows.Err(); err != nil {
		return nil, arena.ConfusionMatrixCoverage{}, err
	}

	cells, coverage := arena.BuildConfusionMatrix(gens, pairStats, targetPerPair)
	return cells, coverage, nil
}

func (db *DB) activeGeneratorsWithRatings(ctx context.Context) ([]arena.Generator, map[string]arena.Rating, error) {
	rows, err := db.Query(ctx, `
		SELECT g.generator_id, g.name, g.version, g.active, g.created_at, g.updated_at,
		       r.rating, r.rd, r.volatility, r.games_played, r.wins, r.losses, r.ties, r.skips, r.updated_at
		  FROM generators g
		  JOIN ratings r ON r.generator_id = g.generator_id
		 WHERE g.active
	`)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var gens []arena.Generator
	ratings := make(map[string]arena.Rating)
	for rows.Next() {
		var g arena.Generator
		var r arena.Rating
		if err := rows.Scan(&g.ID, &g.Name, &g.Version, &g.Active, &g.CreatedAt, &g.UpdatedAt,
			&r.Value, &r.RD, &r.Volatility, &r.GamesPlayed, &r.Wins, &r.Losses, &r.Ties, &r.Skips, &r.UpdatedAt); err != nil {
			return nil, nil, err
		}
		r.GeneratorID = g.ID
		gens = append(gens, g)
		ratings[g.ID] = r
	}
	return gens, ratings, rows.Err()
}
