package services

import (
	"sort"

	"dvf-analyzer/models"
)

// SelectRecent keeps the maxCount most recent transactions.
//
// When roomFilter is set only transactions with exactly that room count are
// considered; a transaction without a room count never matches. Undated
// transactions are dropped. Dates are compared as strings, which orders
// correctly for zero-padded ISO dates (the format every source delivers).
// Ties keep their input order.
func SelectRecent(records []models.RawTransaction, maxCount int, roomFilter *int) []models.RawTransaction {
	selected := make([]models.RawTransaction, 0, min(len(records), max(maxCount, 0)))
	if maxCount <= 0 || len(records) == 0 {
		return selected
	}

	for _, r := range records {
		if roomFilter != nil && (r.RoomCount == nil || *r.RoomCount != *roomFilter) {
			continue
		}
		if r.Date == "" {
			continue
		}
		selected = append(selected, r)
	}

	sort.SliceStable(selected, func(i, j int) bool {
		return selected[i].Date > selected[j].Date
	})

	if len(selected) > maxCount {
		selected = selected[:maxCount]
	}
	return selected
}

// MatchRooms counts transactions matching the room filter. A nil filter
// matches everything.
func MatchRooms(records []models.RawTransaction, roomFilter *int) int {
	if roomFilter == nil {
		return len(records)
	}
	n := 0
	for _, r := range records {
		if r.RoomCount != nil && *r.RoomCount == *roomFilter {
			n++
		}
	}
	return n
}
