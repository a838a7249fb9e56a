package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dvf-analyzer/models"
	"dvf-analyzer/utils"
)

func TestReadRawAPIHeaders(t *testing.T) {
	in := "date_mutation,valeur_fonciere,surface_relle_bati,nombre_pieces_principales,voie,commune,nature_mutation,code_postal\n" +
		"2024-03-15,250000,50,3,RUE DES LILAS,Gennevilliers,Vente,92230\n" +
		"2024-02-01,,42,,\"RUE A, BIS\",Gennevilliers,Vente,92230\n"

	got, err := ReadRaw(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, models.RawTransaction{
		Date:       "2024-03-15",
		Value:      models.Float(250000),
		Area:       models.Float(50),
		RoomCount:  models.Int(3),
		Street:     "RUE DES LILAS",
		Locality:   "Gennevilliers",
		Nature:     "Vente",
		PostalCode: "92230",
	}, got[0])
	assert.Nil(t, got[1].Value)
	assert.Nil(t, got[1].RoomCount)
	assert.Equal(t, "RUE A, BIS", got[1].Street)
}

func TestReadRawOpenDataFormat(t *testing.T) {
	in := "Date mutation|Nature mutation|Valeur fonciere|Code postal|Commune|Surface reelle bati|Nombre pieces principales\n" +
		"5/1/2023|Vente|185000,00|92230|GENNEVILLIERS|41|2\n"

	got, err := ReadRaw(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "2023-01-05", got[0].Date)
	assert.Equal(t, models.Float(185000), got[0].Value)
	assert.Equal(t, models.Float(41), got[0].Area)
	assert.Equal(t, models.Int(2), got[0].RoomCount)
	assert.Equal(t, "GENNEVILLIERS", got[0].Locality)
}

func TestReadRawSemicolon(t *testing.T) {
	in := "date_mutation;valeur_fonciere;surface_relle_bati\n2024-01-01;100000,5;20\n"

	got, err := ReadRaw(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, models.Float(100000.5), got[0].Value)
}

func TestReadRawErrors(t *testing.T) {
	_, err := ReadRaw(strings.NewReader("foo,bar\n1,2\n"))
	assert.Error(t, err, "date column is required")

	got, err := ReadRaw(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCSVSourceFiltersPostalCode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dvf.csv")
	content := "date_mutation,valeur_fonciere,surface_relle_bati,code_postal\n" +
		"2024-01-01,100000,20,92230\n" +
		"2024-01-02,200000,40,75001\n" +
		"2024-01-03,300000,60,\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	src := NewCSVSource(path, utils.NewDiscardLogger())

	set, err := src.Fetch(context.Background(), "92230")
	require.NoError(t, err)
	assert.Equal(t, 2, set.TotalAvailable)
	assert.Equal(t, "92230", set.PostalCode)

	set, err = src.Fetch(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, set.Transactions, 3)

	_, err = NewCSVSource(filepath.Join(t.TempDir(), "missing.csv"), utils.NewDiscardLogger()).Fetch(context.Background(), "")
	assert.Error(t, err)
}
