package storage

import (
	"context"
	"errors"

	"dvf-analyzer/models"
)

// ErrNotCached is returned by the SQL store when a postal code was never saved.
var ErrNotCached = errors.New("storage: postal code not cached")

// TransactionSource is anything that can supply raw transactions for a postal code.
type TransactionSource interface {
	Fetch(ctx context.Context, postalCode string) (*models.TransactionSet, error)
}

// TransactionCache persists transaction sets between runs.
type TransactionCache interface {
	TransactionSource
	SaveRaw(ctx context.Context, set *models.TransactionSet) error
}

// RecordWriter is the interface for exporting cleaned records.
type RecordWriter interface {
	WriteRecords(records []models.ExtractedRecord) error
	Close() error
}

// ReportWriter is the interface for exporting a full analysis.
type ReportWriter interface {
	WriteReport(path string, result *models.AnalysisResult) error
}
