package services

import (
	"sort"
	"strconv"
	"strings"

	"dvf-analyzer/models"
)

// UnknownSegment is the key of records lacking the grouping attribute.
const UnknownSegment = "unknown"

// KeyFunc extracts the segment key of a record.
type KeyFunc func(models.ExtractedRecord) string

// ByYear groups by the leading year of the transaction date.
func ByYear(r models.ExtractedRecord) string {
	if r.Date == "" {
		return UnknownSegment
	}
	year, _, _ := strings.Cut(r.Date, "-")
	return year
}

// ByRooms groups by room count.
func ByRooms(r models.ExtractedRecord) string {
	if r.RoomCount == nil {
		return UnknownSegment
	}
	return strconv.Itoa(*r.RoomCount)
}

// SegmentBy partitions records by key and aggregates price per area for each
// partition. Every record lands in exactly one segment.
func SegmentBy(records []models.ExtractedRecord, key KeyFunc) models.SegmentedResult {
	groups := make(map[string][]float64)
	for _, r := range records {
		k := key(r)
		groups[k] = append(groups[k], r.PricePerArea)
	}

	result := make(models.SegmentedResult, len(groups))
	for k, prices := range groups {
		result[k] = Aggregate(prices)
	}
	return result
}

// SortedKeys orders segment keys for display. Numeric keys compare as
// numbers, other keys lexically, and UnknownSegment always comes last.
func SortedKeys(seg models.SegmentedResult, descending bool) []string {
	keys := make([]string, 0, len(seg))
	for k := range seg {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a == UnknownSegment || b == UnknownSegment {
			return b == UnknownSegment && a != UnknownSegment
		}
		if descending {
			return keyLess(b, a)
		}
		return keyLess(a, b)
	})
	return keys
}

func keyLess(a, b string) bool {
	ai, aerr := strconv.Atoi(a)
	bi, berr := strconv.Atoi(b)
	if aerr == nil && berr == nil {
		return ai < bi
	}
	return a < b
}
