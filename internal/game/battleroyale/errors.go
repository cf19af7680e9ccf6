package battleroyale

import (
	"errors"
	"fmt"
)

// Sentinels matched with errors.Is against the typed errors below.
var (
	ErrDataInconsistency  = errors.New("data inconsistency")
	ErrInvariantViolation = errors.New("invariant violation")
)

// DataInconsistencyError is returned when the persisted snapshot cannot be
// turned into virtual matches. It aborts the current pass.
type DataInconsistencyError struct {
	Reason  string
	GameID  int64
	MatchID int64
	Key     *VirtualMatchKey
}

func (e *DataInconsistencyError) Error() string {
	msg := "data inconsistency: " + e.Reason
	if e.GameID != 0 {
		msg += fmt.Sprintf(" gameId=%d", e.GameID)
	}
	if e.MatchID != 0 {
		msg += fmt.Sprintf(" matchId=%d", e.MatchID)
	}
	if e.Key != nil {
		msg += " key=" + e.Key.String()
	}
	return msg
}

func (e *DataInconsistencyError) Unwrap() error { return ErrDataInconsistency }

// InvariantViolationError is returned when the life replay eliminates more than
// one team in a single virtual match.
type InvariantViolationError struct {
	Key     VirtualMatchKey
	TeamIDs []int64
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("invariant violation: %d teams eliminated in one virtual match key=%s teamIds=%v",
		len(e.TeamIDs), e.Key, e.TeamIDs)
}

func (e *InvariantViolationError) Unwrap() error { return ErrInvariantViolation }
