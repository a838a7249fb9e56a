package dvf

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dvf-analyzer/models"
	"dvf-analyzer/utils"
)

const sampleResponse = `{
  "nb_resultats": 1250,
  "derniere_maj": "2024-10-01",
  "resultats": [
    {"date_mutation": "2024-03-15", "valeur_fonciere": 250000, "surface_relle_bati": 50,
     "nombre_pieces_principales": 3, "voie": "RUE DES LILAS", "commune": "Gennevilliers",
     "nature_mutation": "Vente", "code_postal": "92230"},
    {"date_mutation": "2024-02-01", "valeur_fonciere": "180000.5", "surface_relle_bati": null,
     "nombre_pieces_principales": 2.0, "voie": null, "commune": "Gennevilliers",
     "nature_mutation": "Vente"}
  ]
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(Options{BaseURL: srv.URL}, utils.NewDiscardLogger())
	require.NoError(t, err)
	return c
}

func TestFetch(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "92230", r.URL.Query().Get("code_postal"))
		assert.Equal(t, "Appartement", r.URL.Query().Get("type_local"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(sampleResponse))
	})

	set, err := c.Fetch(context.Background(), "92230")
	require.NoError(t, err)

	assert.Equal(t, "92230", set.PostalCode)
	assert.Equal(t, 1250, set.TotalAvailable)
	assert.Equal(t, "2024-10-01", set.LastUpdated)
	require.Len(t, set.Transactions, 2)

	first := set.Transactions[0]
	assert.Equal(t, "2024-03-15", first.Date)
	assert.Equal(t, models.Float(250000), first.Value)
	assert.Equal(t, models.Float(50), first.Area)
	assert.Equal(t, models.Int(3), first.RoomCount)
	assert.Equal(t, "RUE DES LILAS", first.Street)

	second := set.Transactions[1]
	assert.Equal(t, models.Float(180000.5), second.Value)
	assert.Nil(t, second.Area)
	assert.Equal(t, models.Int(2), second.RoomCount)
	assert.Empty(t, second.Street)
}

func TestFetchNoResults(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"nb_resultats": 0}`))
	})

	_, err := c.Fetch(context.Background(), "00000")
	assert.True(t, errors.Is(err, ErrNoData))
}

func TestFetchInvalidShape(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"resultats": [{"valeur_fonciere": true}]}`))
	})

	_, err := c.Fetch(context.Background(), "92230")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNoData))
	assert.Contains(t, err.Error(), "unexpected response shape")
}

func TestFetchHTTPError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	})

	_, err := c.Fetch(context.Background(), "92230")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestFetchBadJSON(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>`))
	})

	_, err := c.Fetch(context.Background(), "92230")
	assert.Error(t, err)
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	_, err := NewClient(Options{}, utils.NewDiscardLogger())
	assert.Error(t, err)
}

func TestMapperLenientValues(t *testing.T) {
	tests := []struct {
		name  string
		item  map[string]any
		value *float64
		rooms *int
	}{
		{"numbers", map[string]any{"valeur_fonciere": 1000.0, "nombre_pieces_principales": 4.0}, models.Float(1000), models.Int(4)},
		{"strings", map[string]any{"valeur_fonciere": " 1500,5 ", "nombre_pieces_principales": "2"}, models.Float(1500.5), models.Int(2)},
		{"fractional rooms", map[string]any{"nombre_pieces_principales": 2.5}, nil, nil},
		{"garbage", map[string]any{"valeur_fonciere": "n/a", "nombre_pieces_principales": false}, nil, nil},
		{"missing", map[string]any{}, nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := toRawTransaction(tt.item)
			assert.Equal(t, tt.value, raw.Value)
			assert.Equal(t, tt.rooms, raw.RoomCount)
		})
	}
}
