package store

import (
	"context"
	"math/rand"

	"ai-thunderdome/server/matchmaking"
	"ai-thunderdome/server/rating"
)

// UpsertGenerator creates or updates a generator row and ensures its
// Rating row exists at the system defaults.
func (db *DB) UpsertGenerator(ctx context.Context, generatorID, name, version string) error {
	_, err := db.Exec(ctx, `
		INSERT INTO generators(generator_id, name, version)
		VALUES ($1, $2, $3)
		ON CONFLICT (generator_id) DO UPDATE
		  SET name = EXCLUDED.name, version = EXCLUDED.version, updated_at = now()
	`, generatorID, name, version)
	if err != nil {
		return err
	}
	_, err = db.Exec(ctx, `
		INSERT INTO ratings(generator_id, rating, rd, volatility)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (generator_id) DO NOTHING
	`, generatorID, rating.DefaultRating, rating.DefaultRD, rating.DefaultVolatility)
	return err
}

// SetGeneratorActive flips the active flag (deactivation path, §3).
func (db *DB) SetGeneratorActive(ctx context.Context, generatorID string, active bool) error {
	_, err := db.Exec(ctx, `
		UPDATE generators SET active = $2, updated_at = now() WHERE generator_id = $1
	`, generatorID, active)
	return err
}

// InsertLevel adds a new level owned by generatorID. Levels are never
// mutated in place; a new version gets a new id.
func (db *DB) InsertLevel(ctx context.Context, levelID, generatorID string, payload []byte, contentHash string, width, height int, seed *string) error {
	_, err := db.Exec(ctx, `
		INSERT INTO levels(level_id, generator_id, payload, content_hash, width, height, seed)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, levelID, generatorID, payload, contentHash, width, height, seed)
	return err
}

// EligibleGenerators loads every active generator that owns at least one
// level, joined with its current rating, in the shape matchmaking needs.
func (db *DB) EligibleGenerators(ctx context.Context) ([]matchmaking.Generator, error) {
	rows, err := db.Query(ctx, `
		SELECT r.generator_id, r.rating, r.rd, r.games_played
		  FROM ratings r
		  JOIN generators g ON g.generator_id = r.generator_id
		 WHERE g.active
		   AND EXISTS (SELECT 1 FROM levels l WHERE l.generator_id = g.generator_id)
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []matchmaking.Generator
	for rows.Next() {
		var g matchmaking.Generator
		if err := rows.Scan(&g.ID, &g.Rating, &g.RD, &g.GamesPlayed); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// PairCounts loads the full generator_pair_stats table into the map
// shape matchmaking.PairCounts expects.
func (db *DB) PairCounts(ctx context.Context) (matchmaking.PairCounts, error) {
	rows, err := db.Query(ctx, `SELECT a, b, battle_count FROM generator_pair_stats`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(matchmaking.PairCounts)
	for rows.Next() {
		var a, b string
		var count int
		if err := rows.Scan(&a, &b, &count); err != nil {
			return nil, err
		}
		counts[[2]string{a, b}] = count
	}
	return counts, rows.Err()
}

// GeneratorInfo is the presentation metadata for a chosen generator,
// returned alongside a picked level (§6 Side.generator).
type GeneratorInfo struct {
	ID      string
	Name    string
	Version string
}

// RandomLevel picks one level id uniformly at random for generatorID,
// per the "uniform level pick" clause of §4.2. rng is caller-injected.
func (db *DB) RandomLevel(ctx context.Context, rng *rand.Rand, generatorID string) (levelID string, payload []byte, contentHash string, width, height int, seed *string, err error) {
	rows, err := db.Query(ctx, `
		SELECT level_id, payload, content_hash, width, height, seed
		  FROM levels WHERE generator_id = $1
	`, generatorID)
	if err != nil {
		return "", nil, "", 0, 0, nil, err
	}
	defer rows.Close()

	type row struct {
		id, hash string
		payload  []byte
		w, h     int
		seed     *string
	}
	var all []row
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.id, &r.payload, &r.hash, &r.w, &r.h, &r.seed); err != nil {
			return "", nil, "", 0, 0, nil, err
		}
		all = append(all, r)
	}
	if err := rows.Err(); err != nil {
		return "", nil, "", 0, 0, nil, err
	}
	if len(all) == 0 {
		return "", nil, "", 0, 0, nil, nil
	}
	pick := all[rng.Intn(len(all))]
	return pick.id, pick.payload, pick.hash, pick.w, pick.h, pick.seed, nil
}

// GeneratorDisplay fetches name/version for a generator id.
func (db *DB) GeneratorDisplay(ctx context.Context, generatorID string) (GeneratorInfo, error) {
	var info GeneratorInfo
	info.ID = generatorID
	err := db.QueryRow(ctx, `
		SELECT name, version FROM generators WHERE generator_id = $1
	`, generatorID).Scan(&info.Name, &info.Version)
	return info, err
}
