package services

import (
	"math"

	"dvf-analyzer/models"
	"dvf-analyzer/utils"
)

// DefaultYieldRates returns the gross yields (percent) used for rent
// estimates when none are configured.
func DefaultYieldRates() []float64 { return []float64{5, 6, 7} }

// Extractor turns raw transactions into validated ExtractedRecords.
type Extractor struct {
	logger     *utils.Logger
	yieldRates []float64
}

// NewExtractor creates an Extractor. An empty yieldRates falls back to
// DefaultYieldRates().
func NewExtractor(logger *utils.Logger, yieldRates []float64) *Extractor {
	if len(yieldRates) == 0 {
		yieldRates = DefaultYieldRates()
	}
	rates := make([]float64, len(yieldRates))
	copy(rates, yieldRates)
	return &Extractor{logger: logger, yieldRates: rates}
}

// YieldRates returns the configured rates in order.
func (e *Extractor) YieldRates() []float64 {
	out := make([]float64, len(e.yieldRates))
	copy(out, e.yieldRates)
	return out
}

type identityKey struct {
	date   string
	value  float64
	area   float64
	street string
}

// Extract validates value and area, computes price per area (and rents in
// rental mode) and drops duplicate transactions. Records missing a positive
// value or area are skipped, never patched. The first occurrence of an
// identity (date, value, area, street) wins and input order is preserved.
func (e *Extractor) Extract(raw []models.RawTransaction, mode models.AnalysisMode) []models.ExtractedRecord {
	seen := make(map[identityKey]struct{}, len(raw))
	result := make([]models.ExtractedRecord, 0, len(raw))

	var incomplete, duplicates int
	for _, r := range raw {
		if !positive(r.Value) || !positive(r.Area) {
			incomplete++
			continue
		}
		value, area := *r.Value, *r.Area

		key := identityKey{date: r.Date, value: value, area: area, street: r.Street}
		if _, dup := seen[key]; dup {
			duplicates++
			continue
		}
		seen[key] = struct{}{}

		rec := models.ExtractedRecord{
			Value:        value,
			Area:         area,
			RoomCount:    copyInt(r.RoomCount),
			PricePerArea: round2(value / area),
			Date:         r.Date,
			Street:       r.Street,
			Locality:     r.Locality,
			Nature:       r.Nature,
		}
		if mode == models.ModeRental {
			rec.Rents = e.estimateRents(value, area)
		}
		result = append(result, rec)
	}

	e.logger.Debug("[extractor] %d → %d records (incomplete %d, duplicates %d)",
		len(raw), len(result), incomplete, duplicates)
	return result
}

// estimateRents derives monthly rent from a gross yield:
// rent = value × rate / (12 × 100).
func (e *Extractor) estimateRents(value, area float64) []models.RentEstimate {
	rents := make([]models.RentEstimate, 0, len(e.yieldRates))
	for _, rate := range e.yieldRates {
		monthly := round2(value * rate / 1200)
		rents = append(rents, models.RentEstimate{
			Rate:        rate,
			MonthlyRent: monthly,
			RentPerArea: round2(monthly / area),
		})
	}
	return rents
}

func positive(v *float64) bool {
	return v != nil && !math.IsNaN(*v) && !math.IsInf(*v, 0) && *v > 0
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
