package services

import (
	"math"

	"dvf-analyzer/models"
)

// minOutlierSample is the smallest sample on which a fence is computed.
const minOutlierSample = 4

const (
	iqrMultiplier = 1.5
	trimLower     = 0.15
	trimUpper     = 0.85
)

// OutlierConfig selects the fence construction.
type OutlierConfig struct {
	Policy models.OutlierPolicy
	Method models.QuartileMethod
}

// RemoveOutliers drops records whose price per area falls outside the fence
// of the configured policy and returns the fence that was applied. Samples
// smaller than four are returned as is.
func RemoveOutliers(records []models.ExtractedRecord, cfg OutlierConfig) ([]models.ExtractedRecord, models.Fence) {
	fence := models.Fence{Policy: cfg.Policy}
	if fence.Policy == "" {
		fence.Policy = models.PolicyQuartile
	}

	if len(records) < minOutlierSample {
		out := make([]models.ExtractedRecord, len(records))
		copy(out, records)
		return out, fence
	}

	prices := make([]float64, len(records))
	for i, r := range records {
		prices[i] = r.PricePerArea
	}
	sorted := sortedCopy(prices)

	switch fence.Policy {
	case models.PolicyTrim:
		fence.Lower, fence.Upper = trimFence(sorted)
	default:
		fence.Method = cfg.Method
		if fence.Method == "" {
			fence.Method = models.QuartileInclusive
		}
		fence.Lower, fence.Upper = quartileFence(sorted, fence.Method)
	}
	fence.Applied = true

	kept := make([]models.ExtractedRecord, 0, len(records))
	for _, r := range records {
		if fence.Lower <= r.PricePerArea && r.PricePerArea <= fence.Upper {
			kept = append(kept, r)
		}
	}
	return kept, fence
}

// quartileFence returns [max(Q1-1.5*IQR, 0), Q3+1.5*IQR].
func quartileFence(sorted []float64, method models.QuartileMethod) (lower, upper float64) {
	q1, q3 := quartiles(sorted, method)
	iqr := q3 - q1
	lower = math.Max(q1-iqrMultiplier*iqr, 0)
	upper = q3 + iqrMultiplier*iqr
	return lower, upper
}

// trimFence returns sorted[floor(0.15n)] and sorted[floor(0.85n)], the
// upper index clamped to the last position. Values equal to a bound are kept.
func trimFence(sorted []float64) (lower, upper float64) {
	n := len(sorted)
	lo := int(math.Floor(float64(n) * trimLower))
	hi := int(math.Floor(float64(n) * trimUpper))
	lo = clamp(lo, 0, n-1)
	hi = clamp(hi, lo, n-1)
	return sorted[lo], sorted[hi]
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
