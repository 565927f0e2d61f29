package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/efreitasn/tradecore/internal/domain"
)

const timeFormat = "2006-01-02T15:04:05Z"

// WriteJSON writes a JSON response with the given status code and data.
// Sets Content-Type to application/json before writing the status code.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data) // Write error intentionally ignored in response helper
}

// errorResponse is the standard error response format. Order is set when
// the failed request still produced a persisted order (a rejection).
type errorResponse struct {
	Error   string         `json:"error"`
	Message string         `json:"message"`
	Order   *orderResponse `json:"order,omitempty"`
}

// WriteError writes a standard error response with the given status code,
// error code, and human-readable message.
func WriteError(w http.ResponseWriter, status int, errorCode, message string) {
	WriteJSON(w, status, errorResponse{
		Error:   errorCode,
		Message: message,
	})
}

// ParseJSON decodes the request body as JSON into v.
// It validates that the Content-Type header is application/json and
// returns an error for missing/incorrect content type or malformed JSON.
func ParseJSON(r *http.Request, v any) error {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(ct, "application/json") {
		return fmt.Errorf("Request body must be valid JSON with Content-Type: application/json")
	}

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("Request body must be valid JSON with Content-Type: application/json")
	}

	return nil
}

// classifyError maps a domain error to its HTTP status, error code and
// client message.
func classifyError(err error) (int, string, string) {
	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		return http.StatusBadRequest, "validation_error", validationErr.Message
	}
	var riskErr *domain.RiskViolation
	if errors.As(err, &riskErr) {
		return http.StatusUnprocessableEntity, "risk_violation", riskErr.Reason
	}

	switch {
	case errors.Is(err, domain.ErrAccountNotFound):
		return http.StatusNotFound, "account_not_found", err.Error()
	case errors.Is(err, domain.ErrOrderNotFound):
		return http.StatusNotFound, "order_not_found", err.Error()
	case errors.Is(err, domain.ErrQuoteNotFound):
		return http.StatusNotFound, "quote_not_found", err.Error()
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found", err.Error()
	case errors.Is(err, domain.ErrAccountAlreadyExists):
		return http.StatusConflict, "account_already_exists", err.Error()
	case errors.Is(err, domain.ErrInvalidState):
		return http.StatusConflict, "invalid_state", err.Error()
	default:
		return http.StatusInternalServerError, "internal_error", "An unexpected error occurred"
	}
}

// mapError writes the HTTP response for a service error.
func mapError(w http.ResponseWriter, err error) {
	status, code, msg := classifyError(err)
	WriteError(w, status, code, msg)
}

// mapOrderError is mapError for submissions that may have persisted a
// rejected order; the order is included in the body when present.
func mapOrderError(w http.ResponseWriter, err error, o *domain.Order) {
	status, code, msg := classifyError(err)
	resp := errorResponse{Error: code, Message: msg}
	if o != nil {
		or := buildOrderResponse(o)
		resp.Order = &or
	}
	WriteJSON(w, status, resp)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

// formatMoney renders a ledger amount with exactly two decimal places.
func formatMoney(d decimal.Decimal) string {
	return d.StringFixed(domain.LedgerPlaces)
}

func formatMoneyPtr(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := formatMoney(*d)
	return &s
}
