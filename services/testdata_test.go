package services

import (
	"dvf-analyzer/models"
	"dvf-analyzer/utils"
)

func newTestLogger() *utils.Logger { return utils.NewDiscardLogger() }

func tx(date string, value, area float64, rooms *int, street string) models.RawTransaction {
	return models.RawTransaction{
		Date:      date,
		Value:     models.Float(value),
		Area:      models.Float(area),
		RoomCount: rooms,
		Street:    street,
		Locality:  "Gennevilliers",
		Nature:    "Vente",
	}
}

func record(date string, price float64, rooms *int) models.ExtractedRecord {
	return models.ExtractedRecord{
		Value:        price * 50,
		Area:         50,
		RoomCount:    rooms,
		PricePerArea: price,
		Date:         date,
	}
}

func records(prices ...float64) []models.ExtractedRecord {
	out := make([]models.ExtractedRecord, len(prices))
	for i, p := range prices {
		out[i] = record("2024-01-01", p, nil)
	}
	return out
}
