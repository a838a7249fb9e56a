package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"dvf-analyzer/models"
	"dvf-analyzer/services"
	"dvf-analyzer/utils"
)

func analyzedResult(mode models.AnalysisMode) *models.AnalysisResult {
	raw := []models.RawTransaction{
		{Date: "2024-03-01", Value: models.Float(240000), Area: models.Float(60), RoomCount: models.Int(3), Street: "A"},
		{Date: "2023-12-01", Value: models.Float(150000), Area: models.Float(50), RoomCount: models.Int(2), Street: "B"},
		{Date: "2023-06-01", Value: models.Float(100000), Area: models.Float(40), Street: "C"},
	}
	a := services.NewAnalyzer(utils.NewDiscardLogger(), services.Options{})
	return a.Run(raw, models.AnalysisRequest{PostalCode: "92230", MaxResults: 100, Mode: mode})
}

func TestXLSXWriterReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports", "92230.xlsx")
	require.NoError(t, NewXLSXWriter(utils.NewDiscardLogger()).WriteReport(path, analyzedResult(models.ModeRental)))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetStatistics, SheetByYear, SheetByRooms, SheetExamples, SheetTransactions}, f.GetSheetList())

	v, err := f.GetCellValue(SheetStatistics, "B1")
	require.NoError(t, err)
	assert.Equal(t, "92230", v)

	years, err := f.GetRows(SheetByYear)
	require.NoError(t, err)
	require.Len(t, years, 3)
	assert.Equal(t, "Segment", years[0][0])
	assert.Equal(t, "2024", years[1][0])
	assert.Equal(t, "2023", years[2][0])

	rooms, err := f.GetRows(SheetByRooms)
	require.NoError(t, err)
	require.Len(t, rooms, 4)
	assert.Equal(t, []string{"2", "3", "unknown"}, []string{rooms[1][0], rooms[2][0], rooms[3][0]})

	tx, err := f.GetRows(SheetTransactions)
	require.NoError(t, err)
	require.Len(t, tx, 4)
	assert.Contains(t, tx[0], "Rent 5%")
	assert.Contains(t, tx[0], "Rent per m² 7%")
}

func TestXLSXWriterNoData(t *testing.T) {
	res := services.NewAnalyzer(utils.NewDiscardLogger(), services.Options{}).
		Run(nil, models.AnalysisRequest{PostalCode: "00000", MaxResults: 10})
	path := filepath.Join(t.TempDir(), "empty.xlsx")
	require.NoError(t, NewXLSXWriter(utils.NewDiscardLogger()).WriteReport(path, res))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(SheetStatistics)
	require.NoError(t, err)
	found := false
	for _, r := range rows {
		if len(r) > 1 && r[0] == "Status" {
			found = true
			assert.Equal(t, "no_data", r[1])
		}
	}
	assert.True(t, found)
}
