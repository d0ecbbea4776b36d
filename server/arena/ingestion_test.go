package arena

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore is an in-memory stand-in for server/store satisfying Store/Tx,
// used to exercise IngestVote's transaction logic without a database.
type fakeStore struct {
	battles   map[string]Battle
	votes     map[string]Vote // keyed by battle_id
	ratings   map[string]Rating
	pairStats map[[2]string]PairStats
	events    []RatingEvent
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		battles:   map[string]Battle{},
		votes:     map[string]Vote{},
		ratings:   map[string]Rating{},
		pairStats: map[[2]string]PairStats{},
	}
}

func (s *fakeStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	return fn(&fakeTx{s: s})
}

type fakeTx struct{ s *fakeStore }

func (t *fakeTx) LoadBattleForUpdate(ctx context.Context, battleID string) (Battle, error) {
	b, ok := t.s.battles[battleID]
	if !ok {
		return Battle{}, ErrBattleNotFound
	}
	return b, nil
}

func (t *fakeTx) LoadVoteByBattle(ctx context.Context, battleID string) (*Vote, error) {
	v, ok := t.s.votes[battleID]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (t *fakeTx) InsertVote(ctx context.Context, v Vote) error {
	if _, exists := t.s.votes[v.BattleID]; exists {
		return ErrDuplicateVote
	}
	t.s.votes[v.BattleID] = v
	return nil
}

func (t *fakeTx) UpdateBattleStatus(ctx context.Context, b Battle) error {
	t.s.battles[b.ID] = b
	return nil
}

func (t *fakeTx) LoadRatingsForUpdate(ctx context.Context, first, second string) (Rating, Rating, error) {
	return t.ratingFor(first), t.ratingFor(second), nil
}

func (t *fakeTx) ratingFor(generatorID string) Rating {
	if r, ok := t.s.ratings[generatorID]; ok {
		return r
	}
	return Rating{GeneratorID: generatorID, Value: 1000, RD: 350, Volatility: 0.06}
}

func (t *fakeTx) SaveRating(ctx context.Context, r Rating) error {
	t.s.ratings[r.GeneratorID] = r
	return nil
}

func (t *fakeTx) LoadPairStats(ctx context.Context, a, b string) (PairStats, error) {
	if s, ok := t.s.pairStats[[2]string{a, b}]; ok {
		return s, nil
	}
	return PairStats{A: a, B: b}, nil
}

func (t *fakeTx) SavePairStats(ctx context.Context, s PairStats) error {
	t.s.pairStats[[2]string{s.A, s.B}] = s
	return nil
}

func (t *fakeTx) InsertRatingEvent(ctx context.Context, e RatingEvent) error {
	t.s.events = append(t.s.events, e)
	return nil
}

func (t *fakeTx) LeaderboardPreview(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	return nil, nil
}

type fakeIDs struct{ n int }

func (f *fakeIDs) VoteID() string  { f.n++; return "v_fake" }
func (f *fakeIDs) EventID() string { f.n++; return "evt_fake" }

type fakeClock struct{ t time.Time }

func (c fakeClock) Now() time.Time { return c.t }

func issuedBattle(id, sessionID, leftGen, rightGen string) Battle {
	return Battle{
		ID:                id,
		SessionID:         sessionID,
		Status:            StatusIssued,
		LeftLevelID:       "lvl_left",
		RightLevelID:      "lvl_right",
		LeftGeneratorID:   leftGen,
		RightGeneratorID:  rightGen,
		MatchmakingPolicy: "agis",
	}
}

func TestIngestVote_LeftWinsMovesRatingsApartAndRecordsEvent(t *testing.T) {
	store := newFakeStore()
	store.battles["btl_1"] = issuedBattle("btl_1", "sess_1", "g1", "g2")
	clock := fakeClock{t: time.Now()}

	resp, err := IngestVote(context.Background(), store, &fakeIDs{}, clock, VoteRequest{
		BattleID:  "btl_1",
		SessionID: "sess_1",
		Result:    ResultLeft,
		LeftTags:  []string{"fun"},
		RightTags: []string{"boring"},
	})
	require.NoError(t, err)
	assert.True(t, resp.Accepted)
	assert.False(t, resp.Replayed)

	left := store.ratings["g1"]
	right := store.ratings["g2"]
	assert.Greater(t, left.Value, right.Value)
	assert.Less(t, left.RD, 350.0)
	assert.Less(t, right.RD, 350.0)
	assert.Equal(t, 1, left.Wins)
	assert.Equal(t, 1, right.Losses)
	assert.Equal(t, 1, left.GamesPlayed)

	require.Len(t, store.events, 1)
	assert.Greater(t, store.events[0].DeltaLeft, 0.0)
	assert.Less(t, store.events[0].DeltaRight, 0.0)

	pair := store.pairStats[[2]string{"g1", "g2"}]
	assert.Equal(t, 1, pair.BattleCount)
	assert.Equal(t, 1, pair.AWins)

	battle := store.battles["btl_1"]
	assert.Equal(t, StatusCompleted, battle.Status)
}

func TestIngestVote_TieKeepsRatingsCloseAndIncrementsTies(t *testing.T) {
	store := newFakeStore()
	store.battles["btl_1"] = issuedBattle("btl_1", "sess_1", "g1", "g2")
	clock := fakeClock{t: time.Now()}

	_, err := IngestVote(context.Background(), store, &fakeIDs{}, clock, VoteRequest{
		BattleID:  "btl_1",
		SessionID: "sess_1",
		Result:    ResultTie,
	})
	require.NoError(t, err)

	left := store.ratings["g1"]
	right := store.ratings["g2"]
	assert.InDelta(t, left.Value, right.Value, 0.1)
	assert.Equal(t, 1, left.Ties)
	assert.Equal(t, 1, right.Ties)
	assert.Less(t, left.RD, 350.0)
}

func TestIngestVote_SkipLeavesRatingsUntouched(t *testing.T) {
	store := newFakeStore()
	store.battles["btl_1"] = issuedBattle("btl_1", "sess_1", "g1", "g2")
	store.ratings["g1"] = Rating{GeneratorID: "g1", Value: 1123.4, RD: 210.5, Volatility: 0.059}
	store.ratings["g2"] = Rating{GeneratorID: "g2", Value: 987.1, RD: 190.2, Volatility: 0.061}
	clock := fakeClock{t: time.Now()}

	_, err := IngestVote(context.Background(), store, &fakeIDs{}, clock, VoteRequest{
		BattleID:  "btl_1",
		SessionID: "sess_1",
		Result:    ResultSkip,
	})
	require.NoError(t, err)

	left := store.ratings["g1"]
	right := store.ratings["g2"]
	assert.Equal(t, 1123.4, left.Value)
	assert.Equal(t, 210.5, left.RD)
	assert.Equal(t, 0.059, left.Volatility)
	assert.Equal(t, 987.1, right.Value)
	assert.Equal(t, 1, left.Skips)
	assert.Equal(t, 1, right.Skips)

	require.Len(t, store.events, 1)
	assert.Equal(t, 0.0, store.events[0].DeltaLeft)
	assert.Equal(t, 0.0, store.events[0].DeltaRight)
}

func TestIngestVote_ReplayReturnsSameVoteIDWithoutSecondEvent(t *testing.T) {
	store := newFakeStore()
	store.battles["btl_1"] = issuedBattle("btl_1", "sess_1", "g1", "g2")
	clock := fakeClock{t: time.Now()}
	ids := &fakeIDs{}

	req := VoteRequest{
		BattleID:  "btl_1",
		SessionID: "sess_1",
		Result:    ResultLeft,
		LeftTags:  []string{"fun", "creative"},
		RightTags: []string{"boring"},
	}

	first, err := IngestVote(context.Background(), store, ids, clock, req)
	require.NoError(t, err)
	require.Len(t, store.events, 1)

	// Same logical vote, tags reordered with a duplicate — hash must match.
	reordered := req
	reordered.LeftTags = []string{"creative", "fun", "fun"}

	second, err := IngestVote(context.Background(), store, ids, clock, reordered)
	require.NoError(t, err)
	assert.Equal(t, first.VoteID, second.VoteID)
	assert.True(t, second.Replayed)
	assert.Len(t, store.events, 1, "replay must not append a second rating event")
}

func TestIngestVote_ConflictingReplayIsRejected(t *testing.T) {
	store := newFakeStore()
	store.battles["btl_1"] = issuedBattle("btl_1", "sess_1", "g1", "g2")
	clock := fakeClock{t: time.Now()}
	ids := &fakeIDs{}

	req := VoteRequest{BattleID: "btl_1", SessionID: "sess_1", Result: ResultLeft}
	_, err := IngestVote(context.Background(), store, ids, clock, req)
	require.NoError(t, err)

	conflicting := req
	conflicting.Result = ResultRight

	before := store.ratings["g1"]
	_, err = IngestVote(context.Background(), store, ids, clock, conflicting)
	require.ErrorIs(t, err, ErrDuplicateVote)

	assert.Equal(t, before, store.ratings["g1"])
	assert.Len(t, store.events, 1)
}

func TestIngestVote_UnknownBattleIsNotFound(t *testing.T) {
	store := newFakeStore()
	clock := fakeClock{t: time.Now()}

	_, err := IngestVote(context.Background(), store, &fakeIDs{}, clock, VoteRequest{
		BattleID:  "btl_missing",
		SessionID: "sess_1",
		Result:    ResultLeft,
	})
	require.ErrorIs(t, err, ErrBattleNotFound)
}

func TestIngestVote_RejectsInvalidTag(t *testing.T) {
	store := newFakeStore()
	store.battles["btl_1"] = issuedBattle("btl_1", "sess_1", "g1", "g2")
	clock := fakeClock{t: time.Now()}

	_, err := IngestVote(context.Background(), store, &fakeIDs{}, clock, VoteRequest{
		BattleID:  "btl_1",
		SessionID: "sess_1",
		Result:    ResultLeft,
		LeftTags:  []string{"not_a_real_tag"},
	})
	require.ErrorIs(t, err, ErrInvalidTag)
}
