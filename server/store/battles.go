package store

import (
	"context"

	"ai-thunderdome/server/arena"
)

// InsertBattle persists a freshly constructed ISSUED battle. Called by
// the NEXT_BATTLE handler after arena.NewBattle validates the shape.
func (db *DB) InsertBattle(ctx context.Context, b arena.Battle) error {
	_, err := db.Exec(ctx, `
		INSERT INTO battles(
			battle_id, session_id, issued_at_utc, expires_at_utc, status,
			left_level_id, right_level_id, left_generator_id, right_generator_id,
			matchmaking_policy, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, b.ID, b.SessionID, b.IssuedAt, b.ExpiresAt, b.Status,
		b.LeftLevelID, b.RightLevelID, b.LeftGeneratorID, b.RightGeneratorID,
		b.MatchmakingPolicy, b.UpdatedAt)
	return err
}

// SweepExpiredBattles marks stale ISSUED battles EXPIRED. A no-op on any
// other status by construction of the WHERE clause; never touches a
// battle inside an active ingestion transaction since it only targets
// rows that are still ISSUED and past their TTL.
func (db *DB) SweepExpiredBattles(ctx context.Context) (int64, error) {
	tag, err := db.Exec(ctx, `
		UPDATE battles
		   SET status = 'EXPIRED', updated_at = now()
		 WHERE status = 'ISSUED'
		   AND expires_at_utc IS NOT NULL
		   AND expires_at_utc < now()
	`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
