package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/efreitasn/tradecore/internal/domain"
	"github.com/efreitasn/tradecore/internal/service"
)

// OrderHandler handles HTTP requests for order endpoints.
type OrderHandler struct {
	orderSvc *service.OrderService
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(orderSvc *service.OrderService) *OrderHandler {
	return &OrderHandler{orderSvc: orderSvc}
}

// submitOrderRequest is the JSON request body for POST /orders.
type submitOrderRequest struct {
	AccountID     string  `json:"account_id"`
	ClientOrderID string  `json:"client_order_id"`
	Symbol        string  `json:"symbol"`
	Side          string  `json:"side"`
	Type          string  `json:"type"`
	Quantity      int64   `json:"quantity"`
	LimitPrice    *string `json:"limit_price"`
	TimeInForce   string  `json:"time_in_force"`
	TWAPSlices    *int    `json:"twap_slices"`
	TWAPWindow    *string `json:"twap_window"` // Go duration, e.g. "5m"
}

// orderResponse is the JSON representation of an order. Nullable fields
// use pointers and are always present.
type orderResponse struct {
	OrderID           string  `json:"order_id"`
	AccountID         string  `json:"account_id"`
	ClientOrderID     string  `json:"client_order_id,omitempty"`
	Symbol            string  `json:"symbol"`
	Side              string  `json:"side"`
	Type              string  `json:"type"`
	Quantity          int64   `json:"quantity"`
	LimitPrice        *string `json:"limit_price"`
	TimeInForce       string  `json:"time_in_force"`
	TWAPSlices        int     `json:"twap_slices,omitempty"`
	TWAPWindow        string  `json:"twap_window,omitempty"`
	Status            string  `json:"status"`
	FilledQuantity    int64   `json:"filled_quantity"`
	RemainingQuantity int64   `json:"remaining_quantity"`
	AveragePrice      *string `json:"average_price"`
	RejectReason      string  `json:"reject_reason,omitempty"`
	CreatedAt         string  `json:"created_at"`
	UpdatedAt         string  `json:"updated_at"`
	CancelledAt       *string `json:"cancelled_at"`
}

// fillResponse is a single fill of an order.
type fillResponse struct {
	FillID     string `json:"fill_id"`
	OrderID    string `json:"order_id"`
	Quantity   int64  `json:"quantity"`
	Price      string `json:"price"`
	ExecutedAt string `json:"executed_at"`
}

// fillListResponse is the JSON response for GET /orders/{order_id}/fills.
type fillListResponse struct {
	OrderID string         `json:"order_id"`
	Fills   []fillResponse `json:"fills"`
}

// SubmitOrder handles POST /orders.
func (h *OrderHandler) SubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req submitOrderRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	var window *time.Duration
	if req.TWAPWindow != nil {
		d, err := time.ParseDuration(*req.TWAPWindow)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "validation_error", "twap_window must be a duration such as 30s or 5m")
			return
		}
		window = &d
	}

	order, err := h.orderSvc.SubmitOrder(r.Context(), service.SubmitOrderRequest{
		AccountID:     req.AccountID,
		ClientOrderID: req.ClientOrderID,
		Symbol:        req.Symbol,
		Side:          domain.OrderSide(req.Side),
		Type:          domain.OrderType(req.Type),
		Quantity:      req.Quantity,
		LimitPrice:    req.LimitPrice,
		TimeInForce:   domain.TimeInForce(req.TimeInForce),
		TWAPSlices:    req.TWAPSlices,
		TWAPWindow:    window,
	})
	if err != nil {
		mapOrderError(w, err, order)
		return
	}

	WriteJSON(w, http.StatusCreated, buildOrderResponse(order))
}

// GetOrder handles GET /orders/{order_id}.
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.orderSvc.GetOrder(r.Context(), chi.URLParam(r, "order_id"))
	if err != nil {
		mapError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, buildOrderResponse(order))
}

// CancelOrder handles DELETE /orders/{order_id}.
func (h *OrderHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.orderSvc.CancelOrder(r.Context(), chi.URLParam(r, "order_id"))
	if err != nil {
		mapError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, buildOrderResponse(order))
}

// GetFills handles GET /orders/{order_id}/fills.
func (h *OrderHandler) GetFills(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "order_id")

	fills, err := h.orderSvc.GetFills(r.Context(), orderID)
	if err != nil {
		mapError(w, err)
		return
	}

	resp := fillListResponse{OrderID: orderID, Fills: make([]fillResponse, len(fills))}
	for i, f := range fills {
		resp.Fills[i] = fillResponse{
			FillID:     f.FillID,
			OrderID:    f.OrderID,
			Quantity:   f.Quantity,
			Price:      formatMoney(f.Price),
			ExecutedAt: formatTime(f.ExecutedAt),
		}
	}
	WriteJSON(w, http.StatusOK, resp)
}

func buildOrderResponse(o *domain.Order) orderResponse {
	resp := orderResponse{
		OrderID:           o.OrderID,
		AccountID:         o.AccountID,
		ClientOrderID:     o.ClientOrderID,
		Symbol:            o.Symbol,
		Side:              string(o.Side),
		Type:              string(o.Type),
		Quantity:          o.Quantity,
		LimitPrice:        formatMoneyPtr(o.LimitPrice),
		TimeInForce:       string(o.TimeInForce),
		Status:            string(o.Status),
		FilledQuantity:    o.FilledQuantity,
		RemainingQuantity: o.RemainingQuantity(),
		RejectReason:      o.RejectReason,
		CreatedAt:         formatTime(o.CreatedAt),
		UpdatedAt:         formatTime(o.UpdatedAt),
		CancelledAt:       formatTimePtr(o.CancelledAt),
	}
	if o.Type == domain.OrderTypeTWAP {
		resp.TWAPSlices = o.TWAPSlices
		resp.TWAPWindow = o.TWAPWindow.String()
	}
	if avg, ok := o.AveragePrice(); ok {
		s := formatMoney(avg)
		resp.AveragePrice = &s
	}
	return resp
}
