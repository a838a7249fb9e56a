package storage

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"dvf-analyzer/models"
	"dvf-analyzer/utils"
)

// column identifies a RawTransaction field in a CSV header.
type column int

const (
	colDate column = iota
	colValue
	colArea
	colRooms
	colStreet
	colLocality
	colNature
	colPostalCode
)

// headerAliases maps normalized header names to fields. Both the API field
// names and the column titles of the open-data DVF files are accepted.
func headerAliases() map[string]column {
	return map[string]column{
		"date_mutation":             colDate,
		"date":                      colDate,
		"valeur_fonciere":           colValue,
		"surface_relle_bati":        colArea,
		"surface_reelle_bati":       colArea,
		"nombre_pieces_principales": colRooms,
		"voie":                      colStreet,
		"adresse_nom_voie":          colStreet,
		"commune":                   colLocality,
		"nom_commune":               colLocality,
		"nature_mutation":           colNature,
		"code_postal":               colPostalCode,
	}
}

// ReadRaw parses DVF transactions from CSV. The delimiter (',', ';' or '|')
// is detected from the header line. French decimals ("250000,00") and
// dd/mm/yyyy dates are normalized; unparsable numbers become nil.
func ReadRaw(r io.Reader) ([]models.RawTransaction, error) {
	br := bufio.NewReader(r)
	first, err := br.Peek(4096)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, fmt.Errorf("csv: read header: %w", err)
	}

	cr := csv.NewReader(br)
	cr.Comma = detectDelimiter(string(first))
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return []models.RawTransaction{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("csv: read header: %w", err)
	}

	aliases := headerAliases()
	index := make(map[column]int)
	for i, h := range header {
		if c, ok := aliases[normalizeHeader(h)]; ok {
			if _, seen := index[c]; !seen {
				index[c] = i
			}
		}
	}
	if _, ok := index[colDate]; !ok {
		return nil, errors.New("csv: missing date_mutation column")
	}

	out := []models.RawTransaction{}
	line := 1
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("csv: line %d: %w", line, err)
		}

		get := func(c column) string {
			i, ok := index[c]
			if !ok || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}

		out = append(out, models.RawTransaction{
			Date:       normalizeDate(get(colDate)),
			Value:      parseFloat(get(colValue)),
			Area:       parseFloat(get(colArea)),
			RoomCount:  parseInt(get(colRooms)),
			Street:     get(colStreet),
			Locality:   get(colLocality),
			Nature:     get(colNature),
			PostalCode: get(colPostalCode),
		})
	}
	return out, nil
}

func detectDelimiter(sample string) rune {
	if i := strings.IndexByte(sample, '\n'); i >= 0 {
		sample = sample[:i]
	}
	best, bestCount := ',', strings.Count(sample, ",")
	for _, d := range []rune{';', '|'} {
		if n := strings.Count(sample, string(d)); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}

func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
	h = strings.NewReplacer(" ", "_", "é", "e", "è", "e").Replace(h)
	return h
}

// normalizeDate turns dd/mm/yyyy into yyyy-mm-dd so dates sort lexically.
func normalizeDate(s string) string {
	parts := strings.Split(s, "/")
	if len(parts) == 3 && len(parts[2]) == 4 {
		return parts[2] + "-" + pad2(parts[1]) + "-" + pad2(parts[0])
	}
	return s
}

func pad2(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}

func parseFloat(s string) *float64 {
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(strings.ReplaceAll(s, " ", ""), ",", "."), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

func parseInt(s string) *int {
	f := parseFloat(s)
	if f == nil || *f != math.Trunc(*f) {
		return nil
	}
	n := int(*f)
	return &n
}

// CSVSource reads transactions from a CSV export on disk.
type CSVSource struct {
	path   string
	logger *utils.Logger
}

// NewCSVSource creates a CSVSource for path.
func NewCSVSource(path string, logger *utils.Logger) *CSVSource {
	return &CSVSource{path: path, logger: logger}
}

// Fetch reads the file and keeps rows of postalCode. Rows without a postal
// code, and every row when postalCode is empty, are kept.
func (s *CSVSource) Fetch(ctx context.Context, postalCode string) (*models.TransactionSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("csv: open %q: %w", s.path, err)
	}
	defer f.Close()

	all, err := ReadRaw(f)
	if err != nil {
		return nil, fmt.Errorf("csv: %s: %w", s.path, err)
	}

	set := &models.TransactionSet{PostalCode: postalCode, Transactions: all}
	if postalCode != "" {
		set.Transactions = make([]models.RawTransaction, 0, len(all))
		for _, t := range all {
			if t.PostalCode == "" || t.PostalCode == postalCode {
				set.Transactions = append(set.Transactions, t)
			}
		}
	}
	set.TotalAvailable = len(set.Transactions)
	s.logger.Info("[csv] read %d transactions from %s", set.TotalAvailable, s.path)
	return set, nil
}
