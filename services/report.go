package services

import (
	"fmt"
	"io"
	"strings"

	"dvf-analyzer/models"
)

// Reporter renders an AnalysisResult as a console report.
type Reporter struct {
	out io.Writer
}

// NewReporter creates a Reporter writing to out.
func NewReporter(out io.Writer) *Reporter {
	return &Reporter{out: out}
}

func (p *Reporter) printf(format string, args ...any) {
	fmt.Fprintf(p.out, format, args...)
}

func (p *Reporter) section(title string) {
	p.printf("\033[1;33m  %s\033[0m\n", title)
	p.printf("  %s\n", strings.Repeat("─", 54))
}

// Print writes the full report.
func (p *Reporter) Print(r *models.AnalysisResult) {
	sep := strings.Repeat("═", 54)

	kind := "SALES"
	if r.Request.Mode == models.ModeRental {
		kind = "ESTIMATED RENTS"
	}
	title := fmt.Sprintf("📊 DVF %s ANALYSIS", kind)
	if r.Request.PostalCode != "" {
		title += " — " + r.Request.PostalCode
	}
	if r.Request.RoomCount != nil {
		title += fmt.Sprintf(" (%d rooms)", *r.Request.RoomCount)
	}

	p.printf("\n\033[1;35m%s\033[0m\n", sep)
	p.printf("\033[1;35m  %s\033[0m\n", title)
	p.printf("\033[1;35m%s\033[0m\n\n", sep)

	p.printOverview(r)

	if !r.OK() {
		p.printf("  \033[1;31mNo data\033[0m: %s (%s)\n", r.Reason.Message, r.Reason.Code)
		p.printf("\n\033[1;35m%s\033[0m\n\n", sep)
		return
	}

	if r.Request.Mode == models.ModeRental {
		p.printRental(r.Statistics.Rental)
	} else {
		p.printPrices(r.Statistics.PricePerArea)
	}

	if len(r.Summary.ByYear) > 0 {
		p.printSegments("By Year", r.Summary.ByYear, true)
	}
	if len(r.Summary.ByRooms) > 0 {
		p.printSegments("By Room Count", r.Summary.ByRooms, false)
	}

	p.printExamples(r)

	if r.Comparison != nil {
		p.section("With / Without Outliers")
		p.printf("  With outliers    : %d transactions — mean %.2f €/m²\n",
			r.Comparison.WithOutliers.Count, r.Comparison.WithOutliers.Mean)
		p.printf("  Without outliers : %d transactions — mean %.2f €/m²\n",
			r.Comparison.WithoutOutliers.Count, r.Comparison.WithoutOutliers.Mean)
		p.printf("  Outliers removed : %d\n\n", r.Summary.OutliersRemoved)
	}

	p.printf("\033[1;35m%s\033[0m\n\n", sep)
}

func (p *Reporter) printOverview(r *models.AnalysisResult) {
	s := r.Summary
	p.section("Overview")
	p.printf("  Transactions available : \033[1m%d\033[0m\n", s.TotalAvailable)
	if s.DataLastUpdated != "" {
		p.printf("  Data last updated      : %s\n", s.DataLastUpdated)
	}
	p.printf("  Selected (most recent) : \033[1m%d\033[0m\n", s.Selected)
	p.printf("  With complete data     : \033[1m%d\033[0m\n", s.WithCompleteData)
	p.printf("  Analyzed               : \033[1m%d\033[0m\n", s.Analyzed)
	if s.DateRange.MostRecent != "" {
		p.printf("  Date range             : %s → %s\n", s.DateRange.Oldest, s.DateRange.MostRecent)
	}
	if s.Fence.Applied {
		p.printf("  Kept price range       : %.2f – %.2f €/m² (%s)\n", s.Fence.Lower, s.Fence.Upper, s.Fence.Policy)
	}
	p.printf("\n")
}

func (p *Reporter) printPrices(st models.StatisticsResult) {
	p.section("Price per m² (without outliers)")
	p.printf("  Transactions : \033[1m%d\033[0m\n", st.Count)
	p.printf("  Mean         : \033[1;32m%.2f €/m²\033[0m\n", st.Mean)
	p.printf("  Median       : \033[1;32m%.2f €/m²\033[0m\n", st.Median)
	p.printf("  Minimum      : %.2f €/m²\n", st.Min)
	p.printf("  Maximum      : %.2f €/m²\n", st.Max)
	if st.Stdev != nil {
		p.printf("  Std. dev.    : %.2f\n", *st.Stdev)
	}
	p.printf("\n")
}

func (p *Reporter) printRental(rental []models.RentalStatistics) {
	for _, rs := range rental {
		p.section(fmt.Sprintf("💰 %g%% gross yield", rs.Rate))
		p.printf("  Mean rent        : \033[1;32m%.2f €/month\033[0m\n", rs.MonthlyRent.Mean)
		p.printf("  Median rent      : %.2f €/month\n", rs.MonthlyRent.Median)
		p.printf("  Mean rent / m²   : %.2f €/m²/month\n", rs.RentPerArea.Mean)
		p.printf("  Median rent / m² : %.2f €/m²/month\n", rs.RentPerArea.Median)
		p.printf("  Range            : %.2f – %.2f €/month\n", rs.MonthlyRent.Min, rs.MonthlyRent.Max)
		if rs.MonthlyRent.Stdev != nil {
			p.printf("  Std. dev.        : %.2f €/month\n", *rs.MonthlyRent.Stdev)
		}
		p.printf("\n")
	}
}

func (p *Reporter) printSegments(title string, seg models.SegmentedResult, descending bool) {
	p.section(title)
	for _, k := range SortedKeys(seg, descending) {
		st := seg[k]
		p.printf("  %-8s %3d tx  mean %9.2f  median %9.2f  [%.2f – %.2f] €/m²\n",
			k, st.Count, st.Mean, st.Median, st.Min, st.Max)
	}
	p.printf("\n")
}

func (p *Reporter) printExamples(r *models.AnalysisResult) {
	p.section("Recent Transactions")
	if len(r.Examples) == 0 {
		p.printf("  No example transactions\n\n")
		return
	}
	for i, e := range r.Examples {
		p.printf("  \033[1m%d.\033[0m %s — %s\n", i+1, e.Date, e.Locality)
		p.printf("     📍 %s\n", truncate(e.Street, 48))
		p.printf("     %.0f € — %g m² — \033[1;32m%.2f €/m²\033[0m\n", e.Value, e.Area, e.PricePerArea)
		for _, rent := range e.Rents {
			p.printf("     %g%%: %.2f €/month (%.2f €/m²)\n", rent.Rate, rent.MonthlyRent, rent.RentPerArea)
		}
		if e.RoomCount != nil {
			p.printf("     🏷️  %s — %d rooms\n", e.Nature, *e.RoomCount)
		} else {
			p.printf("     🏷️  %s\n", e.Nature)
		}
	}
	p.printf("\n")
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
