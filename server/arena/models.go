// Package arena implements the battle lifecycle: idempotent vote
// ingestion, the battle state machine, pair-stats canonicalization, and
// the leaderboard/confusion-matrix read projections.
package arena

import (
	"errors"
	"time"
)

// Result is the outcome a voter reports for a battle, from the
// presentation (left/right) perspective.
type Result string

const (
	ResultLeft  Result = "LEFT"
	ResultRight Result = "RIGHT"
	ResultTie   Result = "TIE"
	ResultSkip  Result = "SKIP"
)

// ValidResult reports whether r is one of the four accepted result codes.
func ValidResult(r Result) bool {
	switch r {
	case ResultLeft, ResultRight, ResultTie, ResultSkip:
		return true
	default:
		return false
	}
}

// BattleStatus is the state-machine status of a Battle.
type BattleStatus string

const (
	StatusIssued    BattleStatus = "ISSUED"
	StatusCompleted BattleStatus = "COMPLETED"
	StatusExpired   BattleStatus = "EXPIRED"
)

// TagVocabulary is the closed allowlist of vote tags (spec §6).
var TagVocabulary = map[string]struct{}{
	"fun":             {},
	"boring":          {},
	"good_flow":       {},
	"creative":        {},
	"unfair":          {},
	"confusing":       {},
	"too_hard":        {},
	"too_easy":        {},
	"not_mario_like":  {},
}

// Sentinel domain errors. The HTTP layer (server/router.go) translates
// these into the wire error envelope with the codes named in comments.
var (
	ErrNoBattleAvailable  = errors.New("arena: no battle available")          // NO_BATTLE_AVAILABLE
	ErrInvalidPayload     = errors.New("arena: invalid payload")              // INVALID_PAYLOAD
	ErrInvalidTag         = errors.New("arena: invalid tag")                  // INVALID_TAG
	ErrBattleNotFound     = errors.New("arena: battle not found")             // BATTLE_NOT_FOUND
	ErrBattleAlreadyVoted = errors.New("arena: battle already voted")        // BATTLE_ALREADY_VOTED
	ErrDuplicateVote      = errors.New("arena: duplicate vote conflict")      // DUPLICATE_VOTE_CONFLICT
	ErrInternal           = errors.New("arena: internal error")               // INTERNAL_ERROR
)

// Generator is a procedural content generator competing in the arena.
type Generator struct {
	ID        string
	Name      string
	Version   string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Level is a single piece of content owned by a Generator.
type Level struct {
	ID          string
	GeneratorID string
	Payload     []byte
	ContentHash string
	Width       int
	Height      int
	Seed        *string
	CreatedAt   time.Time
}

// Rating is the current Glicko-2 standing of a Generator.
type Rating struct {
	GeneratorID string
	Value       float64
	RD          float64
	Volatility  float64
	GamesPlayed int
	Wins        int
	Losses      int
	Ties        int
	Skips       int
	UpdatedAt   time.Time
}

// PairStats is the symmetric per-pair counter row, keyed by the
// canonical (lexicographically smaller, larger) generator-id pair.
type PairStats struct {
	A, B        string
	BattleCount int
	AWins       int
	BWins       int
	Ties        int
	Skips       int
	LastBattle  time.Time
}

// Battle is one issued pair of levels awaiting (or having received) a vote.
type Battle struct {
	ID                string
	SessionID         string
	IssuedAt          time.Time
	ExpiresAt         *time.Time
	Status            BattleStatus
	LeftLevelID       string
	RightLevelID      string
	LeftGeneratorID   string
	RightGeneratorID  string
	MatchmakingPolicy string
	UpdatedAt         time.Time
}

// Vote is the single recorded preference for a Battle.
type Vote struct {
	ID          string
	BattleID    string
	SessionID   string
	PlayerID    *string
	CreatedAt   time.Time
	Result      Result
	LeftTags    []string
	RightTags   []string
	Telemetry   map[string]any
	PayloadHash string
}

// RatingEvent is an append-only audit record of a single rating update.
type RatingEvent struct {
	ID                string
	VoteID            string
	BattleID          string
	LeftGeneratorID   string
	RightGeneratorID  string
	Result            Result
	DeltaLeft         float64
	DeltaRight        float64
	RDLeftBefore      float64
	RDLeftAfter       float64
	RDRightBefore     float64
	RDRightAfter      float64
	CreatedAt         time.Time
}
