package services

import (
	"fmt"
	"sort"

	"dvf-analyzer/models"
	"dvf-analyzer/utils"
)

const (
	// DefaultMaxResults is the number of most recent transactions analyzed
	// when a caller does not choose.
	DefaultMaxResults = 100
	// DefaultExamplesLimit is the number of example records kept in a result.
	DefaultExamplesLimit = 5
)

// Options configure an Analyzer. They do not change between calls.
type Options struct {
	Outliers      OutlierConfig
	YieldRates    []float64
	ExamplesLimit int
}

// Analyzer runs the full pipeline: select, extract, remove outliers,
// aggregate and segment. It holds configuration only, so one Analyzer can
// serve any number of calls, concurrently or not.
type Analyzer struct {
	logger    *utils.Logger
	extractor *Extractor
	outliers  OutlierConfig
	examples  int
}

// NewAnalyzer creates an Analyzer with the given options.
func NewAnalyzer(logger *utils.Logger, opts Options) *Analyzer {
	examples := opts.ExamplesLimit
	if examples <= 0 {
		examples = DefaultExamplesLimit
	}
	return &Analyzer{
		logger:    logger,
		extractor: NewExtractor(logger, opts.YieldRates),
		outliers:  opts.Outliers,
		examples:  examples,
	}
}

// YieldRates returns the yield rates used in rental mode.
func (a *Analyzer) YieldRates() []float64 { return a.extractor.YieldRates() }

// Run analyzes raw transactions. Empty stages never fail: they end the run
// with StatusNoData and a reason code.
func (a *Analyzer) Run(raw []models.RawTransaction, req models.AnalysisRequest) *models.AnalysisResult {
	if req.Mode == "" {
		req.Mode = models.ModeSale
	}
	res := &models.AnalysisResult{
		Request:  req,
		Status:   models.StatusSuccess,
		Examples: []models.ExtractedRecord{},
	}
	res.Summary.TotalAvailable = req.TotalAvailable
	if res.Summary.TotalAvailable == 0 {
		res.Summary.TotalAvailable = len(raw)
	}
	res.Summary.DataLastUpdated = req.DataLastUpdated

	if len(raw) == 0 {
		return noData(res, models.ReasonNoTransactions, "no transactions available for this area")
	}

	// 1. Selection
	selected := SelectRecent(raw, req.MaxResults, req.RoomCount)
	res.Summary.Selected = len(selected)
	a.logger.Debug("[analyzer] selected %d of %d transactions", len(selected), len(raw))
	if len(selected) == 0 {
		if req.RoomCount != nil && MatchRooms(raw, req.RoomCount) == 0 {
			return noData(res, models.ReasonNoRoomMatch,
				fmt.Sprintf("no transactions matched the room filter (%d rooms)", *req.RoomCount))
		}
		return noData(res, models.ReasonNoRecentTransactions, "no recent transactions found with the specified criteria")
	}
	res.Summary.DateRange = models.DateRange{
		MostRecent: selected[0].Date,
		Oldest:     selected[len(selected)-1].Date,
	}

	// 2. Extraction
	extracted := a.extractor.Extract(selected, req.Mode)
	res.Summary.WithCompleteData = len(extracted)
	if len(extracted) == 0 {
		return noData(res, models.ReasonNoCompleteData, "no transactions had complete data")
	}

	// 3. Outlier removal
	cleaned, fence := RemoveOutliers(extracted, a.outliers)
	res.Summary.Fence = fence
	res.Summary.Analyzed = len(cleaned)
	res.Summary.OutliersRemoved = len(extracted) - len(cleaned)
	a.logger.Debug("[analyzer] outlier fence %s [%.2f, %.2f] removed %d",
		fence.Policy, fence.Lower, fence.Upper, res.Summary.OutliersRemoved)
	if len(cleaned) == 0 {
		return noData(res, models.ReasonOutliersRemovedAll, "outlier removal eliminated every transaction")
	}
	res.Records = cleaned

	// 4. Statistics
	res.Statistics.PricePerArea = AggregateField(cleaned, PricePerArea)
	if req.Mode == models.ModeRental {
		res.Statistics.Rental = a.rentalStatistics(cleaned)
	}
	res.Comparison = &models.Comparison{
		WithOutliers:    AggregateField(extracted, PricePerArea),
		WithoutOutliers: res.Statistics.PricePerArea,
	}

	// 5. Segments
	if !req.SkipSegments {
		res.Summary.ByYear = SegmentBy(cleaned, ByYear)
		res.Summary.ByRooms = SegmentBy(cleaned, ByRooms)
	}

	// 6. Examples
	res.Examples = RecentExamples(cleaned, a.examples)

	a.logger.Debug("[analyzer] %s analysis done: %d analyzed, mean %.2f",
		req.Mode, res.Summary.Analyzed, res.Statistics.PricePerArea.Mean)
	return res
}

func (a *Analyzer) rentalStatistics(records []models.ExtractedRecord) []models.RentalStatistics {
	rates := a.extractor.YieldRates()
	out := make([]models.RentalStatistics, 0, len(rates))
	for _, rate := range rates {
		rent := func(r models.ExtractedRecord) float64 {
			e, _ := r.Rent(rate)
			return e.MonthlyRent
		}
		perArea := func(r models.ExtractedRecord) float64 {
			e, _ := r.Rent(rate)
			return e.RentPerArea
		}
		out = append(out, models.RentalStatistics{
			Rate:        rate,
			MonthlyRent: AggregateField(records, rent),
			RentPerArea: AggregateField(records, perArea),
		})
	}
	return out
}

// RecentExamples returns up to limit records ordered by date descending.
// Records sharing a date keep their relative order.
func RecentExamples(records []models.ExtractedRecord, limit int) []models.ExtractedRecord {
	sorted := make([]models.ExtractedRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date > sorted[j].Date
	})
	if limit >= 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted
}

func noData(res *models.AnalysisResult, code, msg string) *models.AnalysisResult {
	res.Status = models.StatusNoData
	res.Reason = &models.Reason{Code: code, Message: msg}
	return res
}
