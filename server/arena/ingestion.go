package arena

import (
	"context"
	"fmt"
	"time"

	"ai-thunderdome/server/rating"
)

// VoteRequest is the validated input to IngestVote.
type VoteRequest struct {
	BattleID    string
	SessionID   string
	PlayerID    *string
	Result      Result
	LeftTags    []string
	RightTags   []string
	Telemetry   map[string]any
	ClientVersion string
}

// VoteOutcomeResponse is what IngestVote returns to the caller, whether
// the vote was newly accepted or replayed.
type VoteOutcomeResponse struct {
	VoteID    string
	Accepted  bool
	Replayed  bool
}

// Store is the persistence contract C6 needs from server/store, kept
// narrow and arena-local so the ingestion transaction is testable
// against a fake without importing pgx anywhere in this package.
type Store interface {
	// WithTx runs fn inside a single serializable transaction. Any error
	// returned by fn aborts the transaction; a nil error commits.
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the set of reads/writes available inside one ingestion
// transaction, acquired in the lock order: battle, ratings (lexicographic
// generator-id order), pair stats.
type Tx interface {
	LoadBattleForUpdate(ctx context.Context, battleID string) (Battle, error)
	LoadVoteByBattle(ctx context.Context, battleID string) (*Vote, error)
	InsertVote(ctx context.Context, v Vote) error
	UpdateBattleStatus(ctx context.Context, b Battle) error
	LoadRatingsForUpdate(ctx context.Context, generatorIDFirst, generatorIDSecond string) (first, second Rating, err error)
	SaveRating(ctx context.Context, r Rating) error
	LoadPairStats(ctx context.Context, a, b string) (PairStats, error)
	SavePairStats(ctx context.Context, s PairStats) error
	InsertRatingEvent(ctx context.Context, e RatingEvent) error
	LeaderboardPreview(ctx context.Context, limit int) ([]LeaderboardEntry, error)
}

// IDGenerator mints opaque prefixed identifiers (vote_id, event_id).
// Implemented by server/main.go's uuid-backed generator.
type IDGenerator interface {
	VoteID() string
	EventID() string
}

// Clock is injected for deterministic tests.
type Clock interface {
	Now() time.Time
}

// IngestVote runs the full vote-ingestion transaction (spec §4.6). It is
// the only path that writes Vote, PairStats and RatingEvent rows, moves a
// battle to COMPLETED, and updates existing Rating rows.
func IngestVote(ctx context.Context, store Store, ids IDGenerator, clock Clock, req VoteRequest) (VoteOutcomeResponse, error) {
	if !ValidResult(req.Result) {
		return VoteOutcomeResponse{}, fmt.Errorf("%w: unknown result %q", ErrInvalidPayload, req.Result)
	}
	if err := ValidateTags(req.LeftTags, req.RightTags); err != nil {
		return VoteOutcomeResponse{}, err
	}

	hash, err := PayloadHash(req.BattleID, req.SessionID, req.Result, req.LeftTags, req.RightTags, req.Telemetry)
	if err != nil {
		return VoteOutcomeResponse{}, fmt.Errorf("%w: %v", ErrInternal, err)
	}

	var result VoteOutcomeResponse

	err = store.WithTx(ctx, func(tx Tx) error {
		battle, err := tx.LoadBattleForUpdate(ctx, req.BattleID)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrBattleNotFound, err)
		}

		if battle.Status != StatusIssued {
			existing, err := tx.LoadVoteByBattle(ctx, req.BattleID)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrInternal, err)
			}
			switch ClassifyVote(battle, existing, hash) {
			case OutcomeReplay:
				result = VoteOutcomeResponse{VoteID: existing.ID, Accepted: true, Replayed: true}
				return nil
			case OutcomeConflict:
				return ErrDuplicateVote
			default:
				return ErrBattleAlreadyVoted
			}
		}

		if battle.SessionID != req.SessionID {
			return fmt.Errorf("%w: session_id mismatch", ErrInvalidPayload)
		}

		now := clock.Now()
		voteID := ids.VoteID()
		vote := Vote{
			ID:          voteID,
			BattleID:    req.BattleID,
			SessionID:   req.SessionID,
			PlayerID:    req.PlayerID,
			CreatedAt:   now,
			Result:      req.Result,
			LeftTags:    req.LeftTags,
			RightTags:   req.RightTags,
			Telemetry:   req.Telemetry,
			PayloadHash: hash,
		}

		// Re-check for a concurrently-inserted vote (unique_violation on
		// votes.battle_id is translated by the store into this same
		// error so the caller re-enters the idempotency path rather than
		// silently retrying).
		if err := tx.InsertVote(ctx, vote); err != nil {
			if existing, lerr := tx.LoadVoteByBattle(ctx, req.BattleID); lerr == nil && existing != nil {
				if existing.PayloadHash == hash {
					result = VoteOutcomeResponse{VoteID: existing.ID, Accepted: true, Replayed: true}
					return nil
				}
				return ErrDuplicateVote
			}
			return fmt.Errorf("%w: %v", ErrInternal, err)
		}

		completed, err := battle.Complete(now)
		if err != nil {
			return err
		}
		if err := tx.UpdateBattleStatus(ctx, completed); err != nil {
			return fmt.Errorf("%w: %v", ErrInternal, err)
		}

		lo, hi := battle.LeftGeneratorID, battle.RightGeneratorID
		first, second := lo, hi
		swapped := false
		if second < first {
			first, second = second, first
			swapped = true
		}
		firstRating, secondRating, err := tx.LoadRatingsForUpdate(ctx, first, second)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInternal, err)
		}
		leftRating, rightRating := firstRating, secondRating
		if swapped {
			leftRating, rightRating = secondRating, firstRating
		}

		var audit rating.UpdatePairAudit
		if req.Result == ResultSkip {
			leftRating.Skips++
			rightRating.Skips++
			leftRating.UpdatedAt, rightRating.UpdatedAt = now, now
		} else {
			rr := presentationToRatingResult(req.Result)
			newLeft, newRight, a, err := rating.UpdatePair(
				toEngineRating(leftRating), toEngineRating(rightRating), rr)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrInternal, err)
			}
			audit = a
			leftRating = applyEngineRating(leftRating, newLeft, now)
			rightRating = applyEngineRating(rightRating, newRight, now)
			bumpResultCounters(&leftRating, &rightRating, req.Result)
		}

		if err := tx.SaveRating(ctx, leftRating); err != nil {
			return fmt.Errorf("%w: %v", ErrInternal, err)
		}
		if err := tx.SaveRating(ctx, rightRating); err != nil {
			return fmt.Errorf("%w: %v", ErrInternal, err)
		}

		a, b, leftIsA := CanonicalPair(battle.LeftGeneratorID, battle.RightGeneratorID)
		pairStats, err := tx.LoadPairStats(ctx, a, b)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInternal, err)
		}
		pairStats.A, pairStats.B = a, b
		outcome := TranslateResult(req.Result, leftIsA)
		pairStats = ApplyPairOutcome(pairStats, outcome, now)
		if err := tx.SavePairStats(ctx, pairStats); err != nil {
			return fmt.Errorf("%w: %v", ErrInternal, err)
		}

		event := RatingEvent{
			ID:               ids.EventID(),
			VoteID:           voteID,
			BattleID:         req.BattleID,
			LeftGeneratorID:  battle.LeftGeneratorID,
			RightGeneratorID: battle.RightGeneratorID,
			Result:           req.Result,
			DeltaLeft:        audit.DeltaLeft,
			DeltaRight:       audit.DeltaRight,
			RDLeftBefore:     audit.RDLeftBefore,
			RDLeftAfter:      audit.RDLeftAfter,
			RDRightBefore:    audit.RDRightBefore,
			RDRightAfter:     audit.RDRightAfter,
			CreatedAt:        now,
		}
		if err := tx.InsertRatingEvent(ctx, event); err != nil {
			return fmt.Errorf("%w: %v", ErrInternal, err)
		}

		result = VoteOutcomeResponse{VoteID: voteID, Accepted: true, Replayed: false}
		return nil
	})
	if err != nil {
		return VoteOutcomeResponse{}, err
	}
	return result, nil
}

func presentationToRatingResult(r Result) rating.Result {
	switch r {
	case ResultLeft:
		return rating.Win
	case ResultRight:
		return rating.Loss
	default: // ResultTie
		return rating.Tie
	}
}

func toEngineRating(r Rating) rating.Rating {
	return rating.Rating{Value: r.Value, RD: r.RD, Volatility: r.Volatility}
}

func applyEngineRating(r Rating, updated rating.Rating, now time.Time) Rating {
	r.Value = updated.Value
	r.RD = updated.RD
	r.Volatility = updated.Volatility
	r.GamesPlayed++
	r.UpdatedAt = now
	return r
}

func bumpResultCounters(left, right *Rating, result Result) {
	switch result {
	case ResultLeft:
		left.Wins++
		right.Losses++
	case ResultRight:
		right.Wins++
		left.Losses++
	case ResultTie:
		left.Ties++
		right.Ties++
	}
}
