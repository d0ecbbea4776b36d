package main

import (
	"time"

	"github.com/google/uuid"

	"ai-thunderdome/server/arena"
)

// uuidIDs generates the "btl_"/"v_"/"evt_" prefixed identifiers the wire
// format names (§6 Identifier shapes).
type uuidIDs struct{}

func (uuidIDs) BattleID() string { return "btl_" + uuid.NewString() }
func (uuidIDs) VoteID() string   { return "v_" + uuid.NewString() }
func (uuidIDs) EventID() string  { return "evt_" + uuid.NewString() }

var _ arena.IDGenerator = uuidIDs{}

// ValidSessionID reports whether s parses as a UUID, per §6's
// `session_id (UUID)` requirement.
func ValidSessionID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

// systemClock is the production arena.Clock implementation.
type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

var _ arena.Clock = systemClock{}
