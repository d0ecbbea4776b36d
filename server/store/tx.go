package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"ai-thunderdome/server/arena"
)

// WithTx runs fn inside a single serializable Postgres transaction,
// acquiring rows in the order the ingestion transaction requires:
// battle row first, then ratings in lexicographic generator-id order,
// then the pair-stats row. Implements arena.Store.
func (db *DB) WithTx(ctx context.Context, fn func(arena.Tx) error) error {
	pgtx, err := db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return err
	}
	defer pgtx.Rollback(ctx) // no-op if already committed

	t := &tx{pgtx: pgtx}
	if err := fn(t); err != nil {
		return err
	}
	return pgtx.Commit(ctx)
}

type tx struct{ pgtx pgx.Tx }

func (t *tx) LoadBattleForUpdate(ctx context.Context, battleID string) (arena.Battle, error) {
	var b arena.Battle
	var expires *time.Time
	err := t.pgtx.QueryRow(ctx, `
		SELECT battle_id, session_id, issued_at_utc, expires_at_utc, status,
		       left_level_id, right_level_id, left_generator_id, right_generator_id,
		       matchmaking_policy, updated_at
		  FROM battles WHERE battle_id = $1
		  FOR UPDATE
	`, battleID).Scan(&b.ID, &b.SessionID, &b.IssuedAt, &expires, &b.Status,
		&b.LeftLevelID, &b.RightLevelID, &b.LeftGeneratorID, &b.RightGeneratorID,
		&b.MatchmakingPolicy, &b.UpdatedAt)
	if err != nil {
		return arena.Battle{}, err
	}
	b.ExpiresAt = expires
	return b, nil
}

func (t *tx) LoadVoteByBattle(ctx context.Context, battleID string) (*arena.Vote, error) {
	var v arena.Vote
	var telemetry []byte
	var playerID *string
	err := t.pgtx.QueryRow(ctx, `
		SELECT vote_id, battle_id, session_id, player_id, created_at, result,
		       left_tags, right_tags, telemetry, payload_hash
		  FROM votes WHERE battle_id = $1
	`, battleID).Scan(&v.ID, &v.BattleID, &v.SessionID, &playerID, &v.CreatedAt,
		&v.Result, &v.LeftTags, &v.RightTags, &telemetry, &v.PayloadHash)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	v.PlayerID = playerID
	if len(telemetry) > 0 {
		if err := json.Unmarshal(telemetry, &v.Telemetry); err != nil {
			return nil, fmt.Errorf("store: decode telemetry: %w", err)
		}
	}
	return &v, nil
}

func (t *tx) InsertVote(ctx context.Context, v arena.Vote) error {
	telemetry, err := json.Marshal(v.Telemetry)
	if err != nil {
		return fmt.Errorf("store: encode telemetry: %w", err)
	}
	// The insert runs under a savepoint so that a failed insert leaves the
	// enclosing transaction usable for the caller's re-read of the vote.
	sp, err := t.pgtx.Begin(ctx)
	if err != nil {
		return err
	}
	_, err = sp.Exec(ctx, `
		INSERT INTO votes(vote_id, battle_id, session_id, player_id, created_at,
		                   result, left_tags, right_tags, telemetry, payload_hash)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, v.ID, v.BattleID, v.SessionID, v.PlayerID, v.CreatedAt, v.Result,
		v.LeftTags, v.RightTags, telemetry, v.PayloadHash)
	if err == nil {
		err = sp.Commit(ctx)
	}
	if err != nil {
		_ = sp.Rollback(ctx)
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%w: %v", arena.ErrDuplicateVote, err)
		}
		return err
	}
	return nil
}

func (t *tx) UpdateBattleStatus(ctx context.Context, b arena.Battle) error {
	_, err := t.pgtx.Exec(ctx, `
		UPDATE battles SET status = $2, updated_at = $3 WHERE battle_id = $1
	`, b.ID, b.Status, b.UpdatedAt)
	return err
}

func (t *tx) LoadRatingsForUpdate(ctx context.Context, generatorIDFirst, generatorIDSecond string) (first, second arena.Rating, err error) {
	first, err = t.loadOneRatingForUpdate(ctx, generatorIDFirst)
	if err != nil {
		return arena.Rating{}, arena.Rating{}, err
	}
	second, err = t.loadOneRatingForUpdate(ctx, generatorIDSecond)
	if err != nil {
		return arena.Rating{}, arena.Rating{}, err
	}
	return first, second, nil
}

func (t *tx) loadOneRatingForUpdate(ctx context.Context, generatorID string) (arena.Rating, error) {
	var r arena.Rating
	r.GeneratorID = generatorID
	err := t.pgtx.QueryRow(ctx, `
		SELECT rating, rd, volatility, games_played, wins, losses, ties, skips, updated_at
		  FROM ratings WHERE generator_id = $1
		  FOR UPDATE
	`, generatorID).Scan(&r.Value, &r.RD, &r.Volatility, &r.GamesPlayed,
		&r.Wins, &r.Losses, &r.Ties, &r.Skips, &r.UpdatedAt)
	return r, err
}

func (t *tx) SaveRating(ctx context.Context, r arena.Rating) error {
	_, err := t.pgtx.Exec(ctx, `
		UPDATE ratings
		   SET rating = $2, rd = $3, volatility = $4, games_played = $5,
		       wins = $6, losses = $7, ties = $8, skips = $9, updated_at = $10
		 WHERE generator_id = $1
	`, r.GeneratorID, r.Value, r.RD, r.Volatility, r.GamesPlayed,
		r.Wins, r.Losses, r.Ties, r.Skips, r.UpdatedAt)
	return err
}

func (t *tx) LoadPairStats(ctx context.Context, a, b string) (arena.PairStats, error) {
	var s arena.PairStats
	var lastBattle *time.Time
	err := t.pgtx.QueryRow(ctx, `
		SELECT a, b, battle_count, a_wins, b_wins, ties, skips, last_battle_utc
		  FROM generator_pair_stats WHERE a = $1 AND b = $2
		  FOR UPDATE
	`, a, b).Scan(&s.A, &s.B, &s.BattleCount, &s.AWins, &s.BWins, &s.Ties, &s.Skips, &lastBattle)
	if errors.Is(err, pgx.ErrNoRows) {
		return arena.PairStats{A: a, B: b}, nil
	}
	if err != nil {
		return arena.PairStats{}, err
	}
	if lastBattle != nil {
		s.LastBattle = *lastBattle
	}
	return s, nil
}

func (t *tx) SavePairStats(ctx context.Context, s arena.PairStats) error {
	_, err := t.pgtx.Exec(ctx, `
		INSERT INTO generator_pair_stats(a, b, battle_count, a_wins, b_wins, ties, skips, last_battle_utc)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (a, b) DO UPDATE SET
		    battle_count = EXCLUDED.battle_count,
		    a_wins = EXCLUDED.a_wins,
		    b_wins = EXCLUDED.b_wins,
		    ties = EXCLUDED.ties,
		    skips = EXCLUDED.skips,
		    last_battle_utc = EXCLUDED.last_battle_utc
	`, s.A, s.B, s.BattleCount, s.AWins, s.BWins, s.Ties, s.Skips, s.LastBattle)
	return err
}

func (t *tx) InsertRatingEvent(ctx context.Context, e arena.RatingEvent) error {
	_, err := t.pgtx.Exec(ctx, `
		INSERT INTO rating_events(
			event_id, vote_id, battle_id, left_generator_id, right_generator_id,
			result, delta_left, delta_right,
			rd_left_before, rd_left_after, rd_right_before, rd_right_after, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`, e.ID, e.VoteID, e.BattleID, e.LeftGeneratorID, e.RightGeneratorID,
		e.Result, e.DeltaLeft, e.DeltaRight,
		e.RDLeftBefore, e.RDLeftAfter, e.RDRightBefore, e.RDRightAfter, e.CreatedAt)
	return err
}

func (t *tx) LeaderboardPreview(ctx context.Context, limit int) ([]arena.LeaderboardEntry, error) {
	rows, err := t.pgtx.Query(ctx, `
		SELECT g.generator_id, g.name, g.version, r.rating, r.rd, r.games_played,
		       r.wins, r.losses, r.ties, r.skips
		  FROM generators g JOIN ratings r ON r.generator_id = g.generator_id
		 WHERE g.active
		 ORDER BY r.rating DESC, g.generator_id ASC
		 LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []arena.LeaderboardEntry
	rank := 1
	for rows.Next() {
		var e arena.LeaderboardEntry
		if err := rows.Scan(&e.GeneratorID, &e.Name, &e.Version, &e.Rating, &e.RD,
			&e.GamesPlayed, &e.Wins, &e.Losses, &e.Ties, &e.Skips); err != nil {
			return nil, err
		}
		e.Rank = rank
		rank++
		out = append(out, e)
	}
	return out, rows.Err()
}
