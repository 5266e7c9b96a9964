package models

import (
	"fmt"

	"github.com/google/uuid"
)

// DeterministicID derives a stable UUID from a run-local sequence
// number. Replaying an identical feed and strategy therefore yields
// byte-identical order and fill ledgers.
func DeterministicID(kind string, seq uint64) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("%s-%d", kind, seq))).String()
}

// NewRunID returns a random identifier for a backtest run. Run IDs are
// not part of the replayable ledger.
func NewRunID() string {
	return uuid.NewString()
}
