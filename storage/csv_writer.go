package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"dvf-analyzer/models"
)

// CSVWriter writes cleaned records to a CSV file.
// It is safe for concurrent use.
type CSVWriter struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
	rates  []float64
}

// NewCSVWriter creates (or truncates) the CSV file at the given path and
// writes the header row. One pair of rent columns is added per yield rate.
// Intermediate directories are created automatically.
func NewCSVWriter(path string, rates []float64) (*CSVWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("csv: create file %q: %w", path, err)
	}

	w := csv.NewWriter(f)

	header := []string{
		"date_mutation", "valeur_fonciere", "surface_relle_bati", "nombre_pieces_principales",
		"prix_m2", "voie", "commune", "nature_mutation",
	}
	for _, r := range rates {
		pct := formatFloat(r)
		header = append(header, "loyer_"+pct+"pct", "loyer_m2_"+pct+"pct")
	}
	if err := w.Write(header); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("csv: write header: %w", err)
	}
	w.Flush()

	return &CSVWriter{file: f, writer: w, rates: append([]float64(nil), rates...)}, nil
}

// WriteRecords appends records to the file.
func (c *CSVWriter) WriteRecords(records []models.ExtractedRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, r := range records {
		rooms := ""
		if r.RoomCount != nil {
			rooms = strconv.Itoa(*r.RoomCount)
		}
		row := []string{
			r.Date,
			formatFloat(r.Value),
			formatFloat(r.Area),
			rooms,
			formatFloat(r.PricePerArea),
			r.Street,
			r.Locality,
			r.Nature,
		}
		for _, rate := range c.rates {
			if e, ok := r.Rent(rate); ok {
				row = append(row, formatFloat(e.MonthlyRent), formatFloat(e.RentPerArea))
			} else {
				row = append(row, "", "")
			}
		}
		if err := c.writer.Write(row); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}

	c.writer.Flush()
	return c.writer.Error()
}

// Close flushes and closes the underlying file.
func (c *CSVWriter) Close() error {
	c.writer.Flush()
	return c.file.Close()
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
