package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"dvf-analyzer/fetcher/dvf"
	"dvf-analyzer/models"
	"dvf-analyzer/storage"
)

// ToolRequest is the body of every /tools endpoint.
type ToolRequest struct {
	PostalCode   string `json:"postal_code" validate:"required,numeric,len=5"`
	MaxResults   int    `json:"max_results" validate:"omitempty,min=1,max=1000"`
	RoomCount    *int   `json:"room_count" validate:"omitempty,min=1,max=20"`
	AnalysisType string `json:"analysis_type" validate:"omitempty,oneof=sale rental"`
}

type errorResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

type analyzeResponse struct {
	SessionID string `json:"session_id,omitempty"`
	*models.AnalysisResult
}

type rentRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

type rentalEstimate struct {
	Rate               float64   `json:"yield_percent"`
	AverageMonthlyRent float64   `json:"average_monthly_rent"`
	MedianMonthlyRent  float64   `json:"median_monthly_rent"`
	AverageRentPerArea float64   `json:"average_rent_per_m2"`
	MedianRentPerArea  float64   `json:"median_rent_per_m2"`
	RentRange          rentRange `json:"rent_range"`
}

type rentalResponse struct {
	SessionID            string           `json:"session_id,omitempty"`
	PostalCode           string           `json:"postal_code"`
	RoomCount            *int             `json:"room_count,omitempty"`
	Status               models.Status    `json:"status"`
	Reason               *models.Reason   `json:"reason,omitempty"`
	Estimates            []rentalEstimate `json:"rental_estimates"`
	TransactionsAnalyzed int              `json:"transactions_analyzed"`
	DataLastUpdated      string           `json:"data_last_updated,omitempty"`
}

type priceSummary struct {
	TransactionsAnalyzed int       `json:"transactions_analyzed"`
	AveragePricePerArea  float64   `json:"average_price_per_m2"`
	MedianPricePerArea   float64   `json:"median_price_per_m2"`
	PriceRange           rentRange `json:"price_range"`
}

type priceSummaryResponse struct {
	SessionID       string         `json:"session_id,omitempty"`
	PostalCode      string         `json:"postal_code"`
	RoomCount       *int           `json:"room_count,omitempty"`
	Status          models.Status  `json:"status"`
	Reason          *models.Reason `json:"reason,omitempty"`
	Summary         *priceSummary  `json:"price_summary,omitempty"`
	DataLastUpdated string         `json:"data_last_updated,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]any{"status": "ok", "sessions": s.sessions.Len()})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	res, ok := s.runTool(w, r, nil, 0)
	if !ok {
		return
	}
	resp := analyzeResponse{AnalysisResult: res}
	if res.OK() {
		resp.SessionID = s.sessions.Put(res).ID
	}
	render.JSON(w, r, resp)
}

func (s *Server) handleRentalEstimate(w http.ResponseWriter, r *http.Request) {
	rental := models.ModeRental
	res, ok := s.runTool(w, r, &rental, 0)
	if !ok {
		return
	}

	resp := rentalResponse{
		PostalCode:           res.Request.PostalCode,
		RoomCount:            res.Request.RoomCount,
		Status:               res.Status,
		Reason:               res.Reason,
		Estimates:            []rentalEstimate{},
		TransactionsAnalyzed: res.Summary.Analyzed,
		DataLastUpdated:      res.Summary.DataLastUpdated,
	}
	for _, rs := range res.Statistics.Rental {
		resp.Estimates = append(resp.Estimates, rentalEstimate{
			Rate:               rs.Rate,
			AverageMonthlyRent: rs.MonthlyRent.Mean,
			MedianMonthlyRent:  rs.MonthlyRent.Median,
			AverageRentPerArea: rs.RentPerArea.Mean,
			MedianRentPerArea:  rs.RentPerArea.Median,
			RentRange:          rentRange{Min: rs.MonthlyRent.Min, Max: rs.MonthlyRent.Max},
		})
	}
	if res.OK() {
		resp.SessionID = s.sessions.Put(res).ID
	}
	render.JSON(w, r, resp)
}

func (s *Server) handlePriceSummary(w http.ResponseWriter, r *http.Request) {
	sale := models.ModeSale
	res, ok := s.runTool(w, r, &sale, PriceSummaryMaxResults)
	if !ok {
		return
	}

	resp := priceSummaryResponse{
		PostalCode:      res.Request.PostalCode,
		RoomCount:       res.Request.RoomCount,
		Status:          res.Status,
		Reason:          res.Reason,
		DataLastUpdated: res.Summary.DataLastUpdated,
	}
	if res.OK() {
		st := res.Statistics.PricePerArea
		resp.Summary = &priceSummary{
			TransactionsAnalyzed: st.Count,
			AveragePricePerArea:  st.Mean,
			MedianPricePerArea:   st.Median,
			PriceRange:           rentRange{Min: st.Min, Max: st.Max},
		}
		resp.SessionID = s.sessions.Put(res).ID
	}
	render.JSON(w, r, resp)
}

// runTool decodes and validates the request, fetches transactions and runs
// the analyzer. A non-nil mode overrides the requested one and a positive
// maxCap bounds MaxResults. It writes the error response itself and reports
// false when the caller should stop.
func (s *Server) runTool(w http.ResponseWriter, r *http.Request, mode *models.AnalysisMode, maxCap int) (*models.AnalysisResult, bool) {
	var req ToolRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		s.fail(w, r, http.StatusBadRequest, "invalid JSON body")
		return nil, false
	}
	if err := s.validate.Struct(req); err != nil {
		s.fail(w, r, http.StatusBadRequest, validationMessage(err))
		return nil, false
	}

	analysis := models.AnalysisRequest{MaxResults: req.MaxResults, RoomCount: req.RoomCount}
	if analysis.MaxResults == 0 {
		analysis.MaxResults = s.cfg.MaxResults
	}
	if maxCap > 0 {
		analysis.MaxResults = min(analysis.MaxResults, maxCap)
	}
	if mode != nil {
		analysis.Mode = *mode
	} else {
		m, err := models.ParseAnalysisMode(req.AnalysisType)
		if err != nil {
			s.fail(w, r, http.StatusBadRequest, err.Error())
			return nil, false
		}
		analysis.Mode = m
	}

	set, err := s.source.Fetch(r.Context(), req.PostalCode)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, dvf.ErrNoData) || errors.Is(err, storage.ErrNotCached) {
			status = http.StatusNotFound
		}
		s.logger.Error("[server] fetch %s: %v", req.PostalCode, err)
		s.fail(w, r, status, fmt.Sprintf("no data available for postal code %s", req.PostalCode))
		return nil, false
	}

	return s.analyzer.Run(set.Transactions, set.Request(analysis)), true
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessions.Get(chi.URLParam(r, "id"))
	if !ok {
		s.fail(w, r, http.StatusNotFound, "session not found")
		return
	}
	render.JSON(w, r, sess)
}

// handleSessionExamples returns cleaned records of a session by index, most
// recent first. Without ?idx= every record is returned.
func (s *Server) handleSessionExamples(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessions.Get(chi.URLParam(r, "id"))
	if !ok {
		s.fail(w, r, http.StatusNotFound, "session not found")
		return
	}

	raw := r.URL.Query().Get("idx")
	if raw == "" {
		render.JSON(w, r, map[string]any{"session_id": sess.ID, "count": len(sess.Records), "records": sess.Records})
		return
	}

	picked := make([]models.ExtractedRecord, 0)
	for _, part := range strings.Split(raw, ",") {
		i, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || i < 0 || i >= len(sess.Records) {
			s.fail(w, r, http.StatusBadRequest,
				fmt.Sprintf("invalid index %q: session has %d records (0-%d)", part, len(sess.Records), len(sess.Records)-1))
			return
		}
		picked = append(picked, sess.Records[i])
	}
	render.JSON(w, r, map[string]any{"session_id": sess.ID, "count": len(picked), "records": picked})
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, status int, msg string) {
	render.Status(r, status)
	render.JSON(w, r, errorResponse{Status: "error", Error: msg})
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s: must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s: %s", fe.Field(), fe.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}
