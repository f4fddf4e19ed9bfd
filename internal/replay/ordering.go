package replay

import (
	"fmt"
	"sort"
)

// SortEvents orders events by (block ASC, tx_index ASC, log_index ASC).
// Log index is unique within a block, so the order is total for real chain data.
func SortEvents(events []*Event) {
	sort.SliceStable(events, func(i, j int) bool {
		return compareEvents(events[i], events[j]) < 0
	})
}

// ValidateOrdering checks that events are strictly increasing.
// Returns an error wrapping ErrInvalidOrdering at the first violation.
func ValidateOrdering(events []*Event) error {
	for i := 1; i < len(events); i++ {
		if compareEvents(events[i-1], events[i]) >= 0 {
			return fmt.Errorf("%w: event %d (block %d log %d) after block %d log %d",
				ErrInvalidOrdering, i,
				events[i].BlockNumber, events[i].LogIndex,
				events[i-1].BlockNumber, events[i-1].LogIndex)
		}
	}
	return nil
}

// compareEvents returns:
//   - negative if a < b
//   - zero if a == b
//   - positive if a > b
func compareEvents(a, b *Event) int {
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
