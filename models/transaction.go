package models

// RawTransaction holds one transaction as received from a source (API, CSV
// export or SQL cache). Nothing is validated at this stage: any field may be
// missing, which is why the numeric fields are pointers.
type RawTransaction struct {
	Date       string   `json:"date_mutation"`
	Value      *float64 `json:"valeur_fonciere"`
	Area       *float64 `json:"surface_relle_bati"`
	RoomCount  *int     `json:"nombre_pieces_principales"`
	Street     string   `json:"voie"`
	Locality   string   `json:"commune"`
	Nature     string   `json:"nature_mutation"`
	PostalCode string   `json:"code_postal,omitempty"`
}

// ExtractedRecord is a validated transaction with its derived metrics.
// Value and Area are always strictly positive.
type ExtractedRecord struct {
	Value        float64        `json:"value"`
	Area         float64        `json:"area"`
	RoomCount    *int           `json:"room_count"`
	PricePerArea float64        `json:"price_per_area"`
	Date         string         `json:"date"`
	Street       string         `json:"street"`
	Locality     string         `json:"locality"`
	Nature       string         `json:"nature"`
	Rents        []RentEstimate `json:"rents,omitempty"`
}

// RentEstimate is the monthly rent implied by a gross yield rate (percent).
type RentEstimate struct {
	Rate        float64 `json:"rate"`
	MonthlyRent float64 `json:"monthly_rent"`
	RentPerArea float64 `json:"rent_per_area"`
}

// Rent returns the estimate for the given yield rate.
func (r ExtractedRecord) Rent(rate float64) (RentEstimate, bool) {
	for _, e := range r.Rents {
		if e.Rate == rate {
			return e, true
		}
	}
	return RentEstimate{}, false
}

// Float returns a pointer to v. Sources use it to fill optional fields.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }

// TransactionSet is what a source returns for one postal code.
type TransactionSet struct {
	PostalCode     string           `json:"postal_code"`
	Transactions   []RawTransaction `json:"transactions"`
	TotalAvailable int              `json:"total_available"`
	LastUpdated    string           `json:"last_updated,omitempty"`
}

// Request fills the source metadata of an analysis request.
func (s *TransactionSet) Request(req AnalysisRequest) AnalysisRequest {
	req.PostalCode = s.PostalCode
	req.TotalAvailable = s.TotalAvailable
	req.DataLastUpdated = s.LastUpdated
	return req
}
