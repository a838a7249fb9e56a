package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"dvf-analyzer/models"
	"dvf-analyzer/services"
	"dvf-analyzer/utils"
)

// Sheet names of an XLSX report.
const (
	SheetStatistics   = "Statistics"
	SheetByYear       = "By Year"
	SheetByRooms      = "By Rooms"
	SheetExamples     = "Examples"
	SheetTransactions = "Transactions"
)

// XLSXWriter exports an analysis as a workbook.
type XLSXWriter struct {
	logger *utils.Logger
}

// NewXLSXWriter creates an XLSXWriter.
func NewXLSXWriter(logger *utils.Logger) *XLSXWriter {
	return &XLSXWriter{logger: logger}
}

// sheet wraps a worksheet with a row cursor.
type sheet struct {
	f    *excelize.File
	name string
	row  int
	bold int
}

func (s *sheet) write(values ...any) error {
	s.row++
	cell, err := excelize.CoordinatesToCellName(1, s.row)
	if err != nil {
		return err
	}
	return s.f.SetSheetRow(s.name, cell, &values)
}

func (s *sheet) header(values ...any) error {
	if err := s.write(values...); err != nil {
		return err
	}
	first, _ := excelize.CoordinatesToCellName(1, s.row)
	last, _ := excelize.CoordinatesToCellName(len(values), s.row)
	return s.f.SetCellStyle(s.name, first, last, s.bold)
}

func (s *sheet) blank() { s.row++ }

// WriteReport writes result to path, creating parent directories.
func (w *XLSXWriter) WriteReport(path string, result *models.AnalysisResult) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("xlsx: create output dir: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("xlsx: style: %w", err)
	}

	if err := f.SetSheetName("Sheet1", SheetStatistics); err != nil {
		return fmt.Errorf("xlsx: rename sheet: %w", err)
	}
	for _, name := range []string{SheetByYear, SheetByRooms, SheetExamples, SheetTransactions} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("xlsx: create sheet %q: %w", name, err)
		}
	}

	steps := []struct {
		name string
		fn   func(*sheet, *models.AnalysisResult) error
	}{
		{SheetStatistics, writeStatistics},
		{SheetByYear, func(s *sheet, r *models.AnalysisResult) error { return writeSegments(s, r.Summary.ByYear, true) }},
		{SheetByRooms, func(s *sheet, r *models.AnalysisResult) error { return writeSegments(s, r.Summary.ByRooms, false) }},
		{SheetExamples, func(s *sheet, r *models.AnalysisResult) error { return writeRecords(s, r.Examples) }},
		{SheetTransactions, func(s *sheet, r *models.AnalysisResult) error { return writeRecords(s, r.Records) }},
	}
	for _, step := range steps {
		if err := step.fn(&sheet{f: f, name: step.name, bold: bold}, result); err != nil {
			return fmt.Errorf("xlsx: sheet %q: %w", step.name, err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("xlsx: save %q: %w", path, err)
	}
	w.logger.Info("[xlsx] report written to %s", path)
	return nil
}

func statsHeader() []any {
	return []any{"Metric", "Count", "Mean", "Median", "Min", "Max", "Stdev"}
}

func statsRow(label string, st models.StatisticsResult) []any {
	var stdev any
	if st.Stdev != nil {
		stdev = *st.Stdev
	}
	return []any{label, st.Count, st.Mean, st.Median, st.Min, st.Max, stdev}
}

func writeStatistics(s *sheet, r *models.AnalysisResult) error {
	sum := r.Summary
	reason := ""
	if r.Reason != nil {
		reason = r.Reason.Code + ": " + r.Reason.Message
	}
	rooms := any("all")
	if r.Request.RoomCount != nil {
		rooms = *r.Request.RoomCount
	}

	rows := [][]any{
		{"Postal code", r.Request.PostalCode},
		{"Analysis", string(r.Request.Mode)},
		{"Rooms", rooms},
		{"Status", string(r.Status)},
		{"Reason", reason},
		{"Transactions available", sum.TotalAvailable},
		{"Data last updated", sum.DataLastUpdated},
		{"Selected", sum.Selected},
		{"With complete data", sum.WithCompleteData},
		{"Analyzed", sum.Analyzed},
		{"Outliers removed", sum.OutliersRemoved},
		{"Most recent", sum.DateRange.MostRecent},
		{"Oldest in selection", sum.DateRange.Oldest},
		{"Outlier policy", string(sum.Fence.Policy)},
		{"Fence lower", sum.Fence.Lower},
		{"Fence upper", sum.Fence.Upper},
	}
	for _, row := range rows {
		if err := s.write(row...); err != nil {
			return err
		}
	}
	if !r.OK() {
		return nil
	}

	s.blank()
	if err := s.header(statsHeader()...); err != nil {
		return err
	}
	if err := s.write(statsRow("Price per m²", r.Statistics.PricePerArea)...); err != nil {
		return err
	}
	if r.Comparison != nil {
		if err := s.write(statsRow("Price per m² (with outliers)", r.Comparison.WithOutliers)...); err != nil {
			return err
		}
	}
	for _, rs := range r.Statistics.Rental {
		pct := formatFloat(rs.Rate)
		if err := s.write(statsRow("Monthly rent "+pct+"%", rs.MonthlyRent)...); err != nil {
			return err
		}
		if err := s.write(statsRow("Rent per m² "+pct+"%", rs.RentPerArea)...); err != nil {
			return err
		}
	}
	return nil
}

func writeSegments(s *sheet, seg models.SegmentedResult, descending bool) error {
	header := append([]any{"Segment"}, statsHeader()[1:]...)
	if err := s.header(header...); err != nil {
		return err
	}
	for _, k := range services.SortedKeys(seg, descending) {
		if err := s.write(statsRow(k, seg[k])...); err != nil {
			return err
		}
	}
	return nil
}

func writeRecords(s *sheet, records []models.ExtractedRecord) error {
	header := []any{"Date", "Value", "Area", "Rooms", "Price per m²", "Street", "Locality", "Nature"}
	var rates []float64
	if len(records) > 0 {
		for _, e := range records[0].Rents {
			rates = append(rates, e.Rate)
			pct := formatFloat(e.Rate)
			header = append(header, "Rent "+pct+"%", "Rent per m² "+pct+"%")
		}
	}
	if err := s.header(header...); err != nil {
		return err
	}

	for _, r := range records {
		var rooms any
		if r.RoomCount != nil {
			rooms = *r.RoomCount
		}
		row := []any{r.Date, r.Value, r.Area, rooms, r.PricePerArea, r.Street, r.Locality, r.Nature}
		for _, rate := range rates {
			e, _ := r.Rent(rate)
			row = append(row, e.MonthlyRent, e.RentPerArea)
		}
		if err := s.write(row...); err != nil {
			return err
		}
	}
	return nil
}
