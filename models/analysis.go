package models

import (
	"encoding/json"
	"fmt"
)

// AnalysisMode selects between price and rent analysis.
type AnalysisMode string

const (
	ModeSale   AnalysisMode = "sale"
	ModeRental AnalysisMode = "rental"
)

// ParseAnalysisMode maps a user supplied value to an AnalysisMode.
// The empty string means sale.
func ParseAnalysisMode(s string) (AnalysisMode, error) {
	switch AnalysisMode(s) {
	case "", ModeSale:
		return ModeSale, nil
	case ModeRental:
		return ModeRental, nil
	}
	return "", fmt.Errorf("unknown analysis mode %q (want sale or rental)", s)
}

// OutlierPolicy selects how the price-per-area fence is built.
type OutlierPolicy string

const (
	PolicyQuartile OutlierPolicy = "quartile"
	PolicyTrim     OutlierPolicy = "trim"
)

// ParseOutlierPolicy maps a user supplied value to an OutlierPolicy.
func ParseOutlierPolicy(s string) (OutlierPolicy, error) {
	switch OutlierPolicy(s) {
	case "", PolicyQuartile:
		return PolicyQuartile, nil
	case PolicyTrim:
		return PolicyTrim, nil
	}
	return "", fmt.Errorf("unknown outlier policy %q (want quartile or trim)", s)
}

// QuartileMethod pins the interpolation used for Q1/Q3.
type QuartileMethod string

const (
	// QuartileInclusive interpolates at 0-indexed rank p*(n-1).
	QuartileInclusive QuartileMethod = "inclusive"
	// QuartileExclusive interpolates at 1-indexed rank p*(n+1).
	QuartileExclusive QuartileMethod = "exclusive"
)

// ParseQuartileMethod maps a user supplied value to a QuartileMethod.
func ParseQuartileMethod(s string) (QuartileMethod, error) {
	switch QuartileMethod(s) {
	case "", QuartileInclusive:
		return QuartileInclusive, nil
	case QuartileExclusive:
		return QuartileExclusive, nil
	}
	return "", fmt.Errorf("unknown quartile method %q (want inclusive or exclusive)", s)
}

// StatisticsResult summarises one numeric field. Min and Max are the exact
// observed values, Mean/Median/Stdev are rounded to two decimals. Stdev is nil
// when fewer than two values were aggregated.
type StatisticsResult struct {
	Count  int      `json:"count"`
	Mean   float64  `json:"mean"`
	Median float64  `json:"median"`
	Min    float64  `json:"min"`
	Max    float64  `json:"max"`
	Stdev  *float64 `json:"stdev,omitempty"`
}

// Empty reports whether no value was aggregated.
func (s StatisticsResult) Empty() bool { return s.Count == 0 }

// MarshalJSON renders an empty result as {}.
func (s StatisticsResult) MarshalJSON() ([]byte, error) {
	if s.Empty() {
		return []byte("{}"), nil
	}
	type plain StatisticsResult
	return json.Marshal(plain(s))
}

// SegmentedResult maps a segment key (year, room count, "unknown") to the
// statistics of that segment.
type SegmentedResult map[string]StatisticsResult

// Total returns the number of records across all segments.
func (s SegmentedResult) Total() int {
	total := 0
	for _, st := range s {
		total += st.Count
	}
	return total
}

// Fence describes the bounds applied by the outlier filter.
type Fence struct {
	Policy  OutlierPolicy  `json:"policy"`
	Method  QuartileMethod `json:"method,omitempty"`
	Lower   float64        `json:"lower"`
	Upper   float64        `json:"upper"`
	Applied bool           `json:"applied"`
}

// AnalysisRequest holds the per-call parameters of an analysis.
type AnalysisRequest struct {
	PostalCode      string       `json:"postal_code,omitempty"`
	MaxResults      int          `json:"max_results"`
	RoomCount       *int         `json:"room_count,omitempty"`
	Mode            AnalysisMode `json:"analysis_type"`
	TotalAvailable  int          `json:"-"`
	DataLastUpdated string       `json:"-"`
	SkipSegments    bool         `json:"-"`
}

// Status is the terminal state of an analysis.
type Status string

const (
	StatusSuccess Status = "success"
	StatusNoData  Status = "no_data"
)

// Reason codes for StatusNoData.
const (
	ReasonNoTransactions       = "no_transactions"
	ReasonNoRoomMatch          = "no_room_match"
	ReasonNoRecentTransactions = "no_recent_transactions"
	ReasonNoCompleteData       = "no_complete_data"
	ReasonOutliersRemovedAll   = "outliers_removed_all"
)

// Reason explains a no_data outcome.
type Reason struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// DateRange is the span of the selected window.
type DateRange struct {
	MostRecent string `json:"most_recent"`
	Oldest     string `json:"oldest_in_selection"`
}

// Summary carries stage counts and segment statistics.
type Summary struct {
	TotalAvailable   int             `json:"total_transactions_available"`
	DataLastUpdated  string          `json:"data_last_updated,omitempty"`
	Selected         int             `json:"transactions_selected"`
	WithCompleteData int             `json:"transactions_with_data"`
	Analyzed         int             `json:"transactions_analyzed"`
	OutliersRemoved  int             `json:"outliers_removed"`
	DateRange        DateRange       `json:"date_range"`
	Fence            Fence           `json:"fence"`
	ByYear           SegmentedResult `json:"by_year,omitempty"`
	ByRooms          SegmentedResult `json:"by_rooms,omitempty"`
}

// RentalStatistics holds rent statistics for one yield rate.
type RentalStatistics struct {
	Rate        float64          `json:"rate"`
	MonthlyRent StatisticsResult `json:"monthly_rent"`
	RentPerArea StatisticsResult `json:"rent_per_area"`
}

// Statistics is the aggregate block of an analysis.
type Statistics struct {
	PricePerArea StatisticsResult   `json:"price_per_area"`
	Rental       []RentalStatistics `json:"rental,omitempty"`
}

// Comparison contrasts the dataset before and after outlier removal.
type Comparison struct {
	WithOutliers    StatisticsResult `json:"with_outliers"`
	WithoutOutliers StatisticsResult `json:"without_outliers"`
}

// AnalysisResult is everything a front-end needs to render an analysis.
type AnalysisResult struct {
	Request    AnalysisRequest   `json:"request"`
	Status     Status            `json:"status"`
	Reason     *Reason           `json:"reason,omitempty"`
	Summary    Summary           `json:"summary"`
	Statistics Statistics        `json:"statistics"`
	Comparison *Comparison       `json:"comparison,omitempty"`
	Examples   []ExtractedRecord `json:"examples"`
	Records    []ExtractedRecord `json:"-"`
}

// OK reports whether the analysis produced statistics.
func (r *AnalysisResult) OK() bool { return r != nil && r.Status == StatusSuccess }
