package ingestion

import (
	"errors"
	"fmt"
	"sort"

	"perp-indexer/internal/events"
)

// ErrInvalidOrdering is returned when events are not properly ordered.
var ErrInvalidOrdering = errors.New("events are not in deterministic order")

// SortEvents orders events by (block ASC, tx_index ASC, log_index ASC).
// This is the order the chain emitted them in.
func SortEvents(evs []*events.Event) {
	sort.SliceStable(evs, func(i, j int) bool {
		return compareEvents(evs[i], evs[j]) < 0
	})
}

// ValidateOrdering checks that events are strictly increasing.
// Returns ErrInvalidOrdering on the first out-of-order or repeated position.
func ValidateOrdering(evs []*events.Event) error {
	for i := 1; i < len(evs); i++ {
		if compareEvents(evs[i-1], evs[i]) >= 0 {
			return fmt.Errorf("%w: %s after %s", ErrInvalidOrdering, evs[i].ID(), evs[i-1].ID())
		}
	}
	return nil
}

// compareEvents returns:
//   - negative if a < b
//   - zero if a == b
//   - positive if a > b
//
// Order: (block ASC, tx_index ASC, log_index ASC)
func compareEvents(a, b *events.Event) int {
	if a.BlockNumber != b.BlockNumber {
		if a.BlockNumber < b.BlockNumber {
			return -1
		}
		return 1
	}
	if a.TxIndex != b.TxIndex {
		if a.TxIndex < b.TxIndex {
			return -1
		}
		return 1
	}
	if a.LogIndex != b.LogIndex {
		if a.LogIndex < b.LogIndex {
			return -1
		}
		return 1
	}
	return 0
}
