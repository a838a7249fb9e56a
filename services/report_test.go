package services

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"dvf-analyzer/models"
)

func TestReporterPrintSale(t *testing.T) {
	res := NewAnalyzer(newTestLogger(), Options{}).Run(fourSales(), models.AnalysisRequest{PostalCode: "92230", MaxResults: 100})

	var buf bytes.Buffer
	NewReporter(&buf).Print(res)
	out := buf.String()

	assert.Contains(t, out, "DVF SALES ANALYSIS")
	assert.Contains(t, out, "92230")
	assert.Contains(t, out, "2000.00 €/m²")
	assert.Contains(t, out, "By Year")
	assert.Contains(t, out, "By Room Count")
	assert.Contains(t, out, "Recent Transactions")
	assert.Contains(t, out, "Outliers removed : 1")
}

func TestReporterPrintRental(t *testing.T) {
	raw := []models.RawTransaction{tx("2024-05-01", 240000, 60, models.Int(3), "A")}
	res := NewAnalyzer(newTestLogger(), Options{}).Run(raw, models.AnalysisRequest{MaxResults: 10, Mode: models.ModeRental})

	var buf bytes.Buffer
	NewReporter(&buf).Print(res)
	out := buf.String()

	assert.Contains(t, out, "ESTIMATED RENTS")
	assert.Contains(t, out, "5% gross yield")
	assert.Contains(t, out, "1000.00 €/month")
}

func TestReporterPrintNoData(t *testing.T) {
	res := NewAnalyzer(newTestLogger(), Options{}).Run(nil, models.AnalysisRequest{MaxResults: 10})

	var buf bytes.Buffer
	NewReporter(&buf).Print(res)

	assert.Contains(t, buf.String(), models.ReasonNoTransactions)
	assert.NotContains(t, buf.String(), "Recent Transactions")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
}
