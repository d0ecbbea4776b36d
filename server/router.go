package main

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"ai-thunderdome/server/arena"
	"ai-thunderdome/server/matchmaking"
	"ai-thunderdome/server/store"
)

// App holds everything a request handler needs: the persistence layer,
// the shared (mutex-guarded) matchmaking RNG, ambient telemetry, and
// config. The RNG is shared per §5's "must be threadsafe (or per-request
// seeded)" requirement; here it is threadsafe.
type App struct {
	DB      *store.DB
	Metrics *Metrics
	Log     *logrus.Logger
	Config  Config
	IDs     uuidIDs
	Clock   systemClock

	rngMu sync.Mutex
	rng   *rand.Rand
}

func (a *App) nextRand() *rand.Rand {
	a.rngMu.Lock()
	defer a.rngMu.Unlock()
	return rand.New(rand.NewSource(a.rng.Int63()))
}

// Router builds the chi-routed public request surface (C8).
func Router(a *App) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", a.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/battles:next", a.handleNextBattle)
		r.Post("/votes", a.handleCastVote)
		r.Get("/leaderboard", a.handleLeaderboard)
		r.Get("/stats/confusion-matrix", a.handleConfusionMatrix)
	})

	return r
}

const protocolVersion = "arena/v0"

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func withCode(sentinel error, detail string) error {
	return fmt.Errorf("%w: %s", sentinel, detail)
}

type errorEnvelope struct {
	ProtocolVersion string    `json:"protocol_version"`
	Error           errorBody `json:"error"`
}

type errorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// errorCodeFor translates a domain error into its wire code, HTTP
// status, and retryability (§7).
func errorCodeFor(err error) (code string, status int, retryable bool) {
	switch {
	case err == nil:
		return "", http.StatusOK, false
	case errIs(err, arena.ErrNoBattleAvailable):
		return "NO_BATTLE_AVAILABLE", http.StatusServiceUnavailable, true
	case errIs(err, arena.ErrInvalidPayload):
		return "INVALID_PAYLOAD", http.StatusBadRequest, false
	case errIs(err, arena.ErrInvalidTag):
		return "INVALID_TAG", http.StatusBadRequest, false
	case errIs(err, arena.ErrBattleNotFound):
		return "BATTLE_NOT_FOUND", http.StatusNotFound, false
	case errIs(err, arena.ErrBattleAlreadyVoted):
		return "BATTLE_ALREADY_VOTED", http.StatusConflict, false
	case errIs(err, arena.ErrDuplicateVote):
		return "DUPLICATE_VOTE_CONFLICT", http.StatusConflict, false
	default:
		return "INTERNAL_ERROR", http.StatusInternalServerError, true
	}
}

func errIs(err, target error) bool {
	for err != nil {
		if err == target {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

func (a *App) writeError(w http.ResponseWriter, err error) {
	code, status, retryable := errorCodeFor(err)
	a.Log.WithFields(logrus.Fields{"code": code, "status": status}).Warn(err.Error())
	writeJSON(w, status, errorEnvelope{
		ProtocolVersion: protocolVersion,
		Error:           errorBody{Code: code, Message: err.Error(), Retryable: retryable},
	})
}

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := a.DB.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"ok": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

type nextBattleRequest struct {
	ClientVersion string  `json:"client_version"`
	SessionID     string  `json:"session_id"`
	PlayerID      *string `json:"player_id,omitempty"`
}

func (a *App) handleNextBattle(w http.ResponseWriter, r *http.Request) {
	var req nextBattleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeError(w, withCode(arena.ErrInvalidPayload, "malformed body"))
		return
	}
	if !ValidSessionID(req.SessionID) {
		a.writeError(w, withCode(arena.ErrInvalidPayload, "session_id must be a UUID"))
		return
	}

	ctx := r.Context()
	gens, err := a.DB.EligibleGenerators(ctx)
	if err != nil {
		a.writeError(w, withCode(arena.ErrInternal, err.Error()))
		return
	}
	counts, err := a.DB.PairCounts(ctx)
	if err != nil {
		a.writeError(w, withCode(arena.ErrInternal, err.Error()))
		return
	}

	selection, err := matchmaking.SelectPair(a.nextRand(), gens, counts, a.Config.TargetBattlesPerPair)
	if err != nil {
		a.writeError(w, arena.ErrNoBattleAvailable)
		return
	}

	rng := a.nextRand()
	leftLevel, leftPayload, leftHash, leftW, leftH, leftSeed, err := a.DB.RandomLevel(ctx, rng, selection.Left.ID)
	if err != nil {
		a.writeError(w, withCode(arena.ErrInternal, err.Error()))
		return
	}
	rightLevel, rightPayload, rightHash, rightW, rightH, rightSeed, err := a.DB.RandomLevel(ctx, rng, selection.Right.ID)
	if err != nil {
		a.writeError(w, withCode(arena.ErrInternal, err.Error()))
		return
	}
	if leftLevel == "" || rightLevel == "" {
		a.writeError(w, arena.ErrNoBattleAvailable)
		return
	}

	now := a.Clock.Now()
	battle, err := arena.NewBattle(a.IDs.BattleID(), req.SessionID, leftLevel, rightLevel,
		selection.Left.ID, selection.Right.ID, a.Config.MatchmakingPolicy, nil, now)
	if err != nil {
		a.writeError(w, err)
		return
	}
	if err := a.DB.InsertBattle(ctx, battle); err != nil {
		a.writeError(w, withCode(arena.ErrInternal, err.Error()))
		return
	}
	a.Metrics.BattlesIssued.Inc()

	leftInfo, _ := a.DB.GeneratorDisplay(ctx, selection.Left.ID)
	rightInfo, _ := a.DB.GeneratorDisplay(ctx, selection.Right.ID)

	writeJSON(w, http.StatusOK, map[string]any{
		"protocol_version": protocolVersion,
		"battle": map[string]any{
			"battle_id":      battle.ID,
			"issued_at_utc":  battle.IssuedAt,
			"expires_at_utc": battle.ExpiresAt,
			"presentation": map[string]any{
				"play_order":                         []string{"left", "right"},
				"reveal_generator_names_after_vote":   true,
				"suggested_time_limit_seconds":        120,
			},
			"left":  renderSide(leftLevel, leftInfo, leftW, leftH, leftPayload, leftHash, leftSeed),
			"right": renderSide(rightLevel, rightInfo, rightW, rightH, rightPayload, rightHash, rightSeed),
		},
	})
}

func renderSide(levelID string, info store.GeneratorInfo, width, height int, payload []byte, contentHash string, seed *string) map[string]any {
	return map[string]any{
		"level_id":  levelID,
		"generator": map[string]any{"generator_id": info.ID, "name": info.Name, "version": info.Version},
		"format":    map[string]any{"type": "ASCII_TILEMAP", "width": width, "height": height, "newline": "\n"},
		"level_payload": map[string]any{
			"encoding": "utf-8",
			"tilemap":  string(payload),
		},
		"content_hash": contentHash,
		"metadata":     map[string]any{"seed": seed},
	}
}

type castVoteRequest struct {
	ClientVersion string         `json:"client_version"`
	SessionID     string         `json:"session_id"`
	BattleID      string         `json:"battle_id"`
	Result        arena.Result   `json:"result"`
	LeftTags      []string       `json:"left_tags"`
	RightTags     []string       `json:"right_tags"`
	Telemetry     map[string]any `json:"telemetry"`
	PlayerID      *string        `json:"player_id,omitempty"`
}

func (a *App) handleCastVote(w http.ResponseWriter, r *http.Request) {
	var req castVoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeError(w, withCode(arena.ErrInvalidPayload, "malformed body"))
		return
	}
	if !ValidSessionID(req.SessionID) || req.BattleID == "" {
		a.writeError(w, withCode(arena.ErrInvalidPayload, "session_id/battle_id required"))
		return
	}

	start := time.Now()
	outcome, err := arena.IngestVote(r.Context(), a.DB, a.IDs, a.Clock, arena.VoteRequest{
		BattleID:      req.BattleID,
		SessionID:     req.SessionID,
		PlayerID:      req.PlayerID,
		Result:        req.Result,
		LeftTags:      req.LeftTags,
		RightTags:     req.RightTags,
		Telemetry:     req.Telemetry,
		ClientVersion: req.ClientVersion,
	})
	a.Metrics.RatingUpdateSec.Observe(time.Since(start).Seconds())
	if err != nil {
		a.writeError(w, err)
		return
	}
	if outcome.Replayed {
		a.Metrics.ReplayedVotes.Inc()
	} else {
		a.Metrics.VotesAccepted.WithLabelValues(string(req.Result)).Inc()
	}

	entries, updatedAt, err := a.DB.Leaderboard(r.Context())
	if err != nil {
		a.writeError(w, withCode(arena.ErrInternal, err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"protocol_version": protocolVersion,
		"accepted":         outcome.Accepted,
		"vote_id":          outcome.VoteID,
		"leaderboard_preview": map[string]any{
			"updated_at_utc": updatedAt,
			"generators":     previewGenerators(entries),
		},
	})
}

func previewGenerators(entries []arena.LeaderboardEntry) []map[string]any {
	out := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		out = append(out, map[string]any{
			"generator_id": e.GeneratorID,
			"name":         e.Name,
			"rating":       e.Rating,
			"games_played": e.GamesPlayed,
		})
	}
	return out
}

func (a *App) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	entries, updatedAt, err := a.DB.Leaderboard(r.Context())
	if err != nil {
		a.writeError(w, withCode(arena.ErrInternal, err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"protocol_version": protocolVersion,
		"updated_at_utc":   updatedAt,
		"generators":       entries,
	})
}

func (a *App) handleConfusionMatrix(w http.ResponseWriter, r *http.Request) {
	cells, coverage, err := a.DB.ConfusionMatrix(r.Context(), a.Config.TargetBattlesPerPair)
	if err != nil {
		a.writeError(w, withCode(arena.ErrInternal, err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"protocol_version": protocolVersion,
		"cells":            cells,
		"coverage":         coverage,
	})
}
