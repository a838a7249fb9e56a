package dvf

import (
	"math"
	"strconv"
	"strings"

	"dvf-analyzer/models"
)

// toRawTransaction maps one API result to a RawTransaction. The API is loose
// about types: numbers sometimes arrive as strings and any field may be null.
// Unusable values become nil; validation happens later in the extractor.
func toRawTransaction(item map[string]any) models.RawTransaction {
	return models.RawTransaction{
		Date:       stringField(item, "date_mutation"),
		Value:      floatField(item, "valeur_fonciere"),
		Area:       floatField(item, "surface_relle_bati"),
		RoomCount:  intField(item, "nombre_pieces_principales"),
		Street:     stringField(item, "voie"),
		Locality:   stringField(item, "commune"),
		Nature:     stringField(item, "nature_mutation"),
		PostalCode: stringField(item, "code_postal"),
	}
}

func stringField(item map[string]any, key string) string {
	switch v := item[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}

func floatField(item map[string]any, key string) *float64 {
	var f float64
	switch v := item[key].(type) {
	case float64:
		f = v
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(strings.ReplaceAll(v, ",", ".")), 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// intField accepts integral numbers only; 3.0 is 3, 2.5 is nil.
func intField(item map[string]any, key string) *int {
	f := floatField(item, key)
	if f == nil || *f != math.Trunc(*f) {
		return nil
	}
	n := int(*f)
	return &n
}
