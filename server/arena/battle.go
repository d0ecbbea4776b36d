package arena

import (
	"fmt"
	"time"
)

// NewBattle constructs a freshly issued battle. Status is always ISSUED;
// expiresAt is nil unless the caller's policy assigns a TTL (the core
// never assigns one by default, per the open question that expires_at
// is always null in practice).
func NewBattle(id, sessionID, leftLevelID, rightLevelID, leftGeneratorID, rightGeneratorID, policy string, expiresAt *time.Time, now time.Time) (Battle, error) {
	if leftGeneratorID == rightGeneratorID {
		return Battle{}, fmt.Errorf("%w: left and right generator must differ", ErrInvalidPayload)
	}
	if leftLevelID == rightLevelID {
		return Battle{}, fmt.Errorf("%w: left and right level must differ", ErrInvalidPayload)
	}
	return Battle{
		ID:                id,
		SessionID:         sessionID,
		IssuedAt:          now,
		ExpiresAt:         expiresAt,
		Status:            StatusIssued,
		LeftLevelID:       leftLevelID,
		RightLevelID:      rightLevelID,
		LeftGeneratorID:   leftGeneratorID,
		RightGeneratorID:  rightGeneratorID,
		MatchmakingPolicy: policy,
		UpdatedAt:         now,
	}, nil
}

// Complete transitions an ISSUED battle to COMPLETED. Callers must only
// invoke this from within the vote-ingestion transaction (C6); it is a
// pure state transformation, not a persistence operation.
func (b Battle) Complete(now time.Time) (Battle, error) {
	if b.Status != StatusIssued {
		return b, fmt.Errorf("%w: battle %s is %s, not ISSUED", ErrBattleAlreadyVoted, b.ID, b.Status)
	}
	b.Status = StatusCompleted
	b.UpdatedAt = now
	return b, nil
}

// Expire transitions an ISSUED battle to EXPIRED. For any other starting
// state it returns the battle unchanged and false — the sweep must never
// touch COMPLETED battles.
func (b Battle) Expire(now time.Time) (Battle, bool) {
	if b.Status != StatusIssued {
		return b, false
	}
	b.Status = StatusExpired
	b.UpdatedAt = now
	return b, true
}

// IsExpired reports whether a still-ISSUED battle's TTL has elapsed as of now.
func (b Battle) IsExpired(now time.Time) bool {
	return b.Status == StatusIssued && b.ExpiresAt != nil && now.After(*b.ExpiresAt)
}

// VoteOutcome classifies how a CAST_VOTE call should proceed against the
// current battle state, before any write happens.
type VoteOutcome int

const (
	// OutcomeAccept means the battle is ISSUED and the vote may be written.
	OutcomeAccept VoteOutcome = iota
	// OutcomeReplay means an identical payload was already accepted; the
	// caller should return the stored vote_id with no writes.
	OutcomeReplay
	// OutcomeConflict means a different payload was already accepted for
	// this battle (DUPLICATE_VOTE_CONFLICT).
	OutcomeConflict
	// OutcomeAlreadyVoted means the battle is EXPIRED, or COMPLETED with
	// no stored vote to compare against (should not normally happen, but
	// guarded defensively).
	OutcomeAlreadyVoted
)

// ClassifyVote decides the outcome for a vote against a battle that is
// not ISSUED, given the existing vote (if any) and the newly computed
// payload hash. Callers must only call this when b.Status != ISSUED.
func ClassifyVote(b Battle, existingVote *Vote, newHash string) VoteOutcome {
	if b.Status == StatusCompleted && existingVote != nil {
		if existingVote.PayloadHash == newHash {
			return OutcomeReplay
		}
		return OutcomeConflict
	}
	return OutcomeAlreadyVoted
}
