package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/efreitasn/tradecore/internal/domain"
	"github.com/efreitasn/tradecore/internal/service"
)

// QuoteHandler handles HTTP requests for quote endpoints.
type QuoteHandler struct {
	quoteSvc *service.QuoteService
}

// NewQuoteHandler creates a new QuoteHandler.
func NewQuoteHandler(quoteSvc *service.QuoteService) *QuoteHandler {
	return &QuoteHandler{quoteSvc: quoteSvc}
}

// setQuoteRequest is the JSON request body for PUT /quotes/{symbol}.
type setQuoteRequest struct {
	Open      string  `json:"open"`
	High      string  `json:"high"`
	Low       string  `json:"low"`
	Close     string  `json:"close"`
	Volume    int64   `json:"volume"`
	Timestamp *string `json:"timestamp"`
}

// quoteResponse is the JSON representation of a quote. OrdersFilled is
// only reported by the endpoints that publish a quote.
type quoteResponse struct {
	Symbol       string `json:"symbol"`
	Open         string `json:"open"`
	High         string `json:"high"`
	Low          string `json:"low"`
	Close        string `json:"close"`
	Volume       int64  `json:"volume"`
	Timestamp    string `json:"timestamp"`
	OrdersFilled *int   `json:"orders_filled,omitempty"`
}

// Set handles PUT /quotes/{symbol}.
func (h *QuoteHandler) Set(w http.ResponseWriter, r *http.Request) {
	var req setQuoteRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	var ts *time.Time
	if req.Timestamp != nil {
		t, err := time.Parse(time.RFC3339, *req.Timestamp)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "validation_error", "timestamp must be a valid RFC 3339 timestamp")
			return
		}
		ts = &t
	}

	q, filled, err := h.quoteSvc.SetQuote(r.Context(), service.SetQuoteRequest{
		Symbol:    chi.URLParam(r, "symbol"),
		Open:      req.Open,
		High:      req.High,
		Low:       req.Low,
		Close:     req.Close,
		Volume:    req.Volume,
		Timestamp: ts,
	})
	if err != nil {
		mapError(w, err)
		return
	}

	resp := buildQuoteResponse(q)
	resp.OrdersFilled = &filled
	WriteJSON(w, http.StatusOK, resp)
}

// Get handles GET /quotes/{symbol}.
func (h *QuoteHandler) Get(w http.ResponseWriter, r *http.Request) {
	q, err := h.quoteSvc.GetQuote(r.Context(), chi.URLParam(r, "symbol"))
	if err != nil {
		mapError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, buildQuoteResponse(q))
}

// Refresh handles POST /quotes/{symbol}/refresh.
func (h *QuoteHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	q, filled, err := h.quoteSvc.Refresh(r.Context(), chi.URLParam(r, "symbol"))
	if err != nil {
		mapError(w, err)
		return
	}

	resp := buildQuoteResponse(q)
	resp.OrdersFilled = &filled
	WriteJSON(w, http.StatusOK, resp)
}

func buildQuoteResponse(q domain.Quote) quoteResponse {
	return quoteResponse{
		Symbol:    q.Symbol,
		Open:      formatMoney(q.Open),
		High:      formatMoney(q.High),
		Low:       formatMoney(q.Low),
		Close:     formatMoney(q.Close),
		Volume:    q.Volume,
		Timestamp: formatTime(q.Timestamp),
	}
}
