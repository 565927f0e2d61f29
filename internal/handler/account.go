package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/efreitasn/tradecore/internal/domain"
	"github.com/efreitasn/tradecore/internal/service"
)

// AccountHandler handles HTTP requests for account endpoints.
type AccountHandler struct {
	accountSvc *service.AccountService
	orderSvc   *service.OrderService
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(accountSvc *service.AccountService, orderSvc *service.OrderService) *AccountHandler {
	return &AccountHandler{
		accountSvc: accountSvc,
		orderSvc:   orderSvc,
	}
}

// limitsRequest carries risk limits. Omitted fields are left unchanged on
// update and disabled on creation.
type limitsRequest struct {
	MaxOrderQuantity    *int64  `json:"max_order_quantity"`
	MaxNotional         *string `json:"max_notional"`
	MaxPositionQuantity *int64  `json:"max_position_quantity"`
}

// createAccountRequest is the JSON request body for POST /accounts.
type createAccountRequest struct {
	AccountID   string        `json:"account_id"`
	Name        string        `json:"name"`
	InitialCash string        `json:"initial_cash"`
	Limits      limitsRequest `json:"limits"`
}

type limitsResponse struct {
	MaxOrderQuantity    int64  `json:"max_order_quantity"`
	MaxNotional         string `json:"max_notional"`
	MaxPositionQuantity int64  `json:"max_position_quantity"`
}

// accountResponse is the JSON representation of an account.
type accountResponse struct {
	AccountID   string         `json:"account_id"`
	Name        string         `json:"name"`
	CashBalance string         `json:"cash_balance"`
	Limits      limitsResponse `json:"limits"`
	CreatedAt   string         `json:"created_at"`
	UpdatedAt   string         `json:"updated_at"`
}

type positionResponse struct {
	Symbol      string `json:"symbol"`
	Quantity    int64  `json:"quantity"`
	AverageCost string `json:"average_cost"`
	RealizedPnL string `json:"realized_pnl"`
	UpdatedAt   string `json:"updated_at"`
}

// positionListResponse is the JSON response for GET /accounts/{account_id}/positions.
type positionListResponse struct {
	AccountID string             `json:"account_id"`
	Positions []positionResponse `json:"positions"`
}

type positionPnLResponse struct {
	Symbol        string `json:"symbol"`
	Quantity      int64  `json:"quantity"`
	AverageCost   string `json:"average_cost"`
	MarkPrice     string `json:"mark_price"`
	UnrealizedPnL string `json:"unrealized_pnl"`
	RealizedPnL   string `json:"realized_pnl"`
}

// pnlResponse is the JSON response for GET /accounts/{account_id}/pnl.
type pnlResponse struct {
	AccountID     string                `json:"account_id"`
	UnrealizedPnL string                `json:"unrealized_pnl"`
	RealizedPnL   string                `json:"realized_pnl"`
	Positions     []positionPnLResponse `json:"positions"`
}

// orderListResponse is the JSON response for GET /accounts/{account_id}/orders.
type orderListResponse struct {
	Orders []orderResponse `json:"orders"`
	Total  int             `json:"total"`
	Page   int             `json:"page"`
	Limit  int             `json:"limit"`
}

// Create handles POST /accounts.
func (h *AccountHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	account, err := h.accountSvc.Create(r.Context(), service.CreateAccountRequest{
		AccountID:   req.AccountID,
		Name:        req.Name,
		InitialCash: req.InitialCash,
		Limits:      toLimitsInput(req.Limits),
	})
	if err != nil {
		mapError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, buildAccountResponse(account))
}

// Get handles GET /accounts/{account_id}.
func (h *AccountHandler) Get(w http.ResponseWriter, r *http.Request) {
	account, err := h.accountSvc.Get(r.Context(), chi.URLParam(r, "account_id"))
	if err != nil {
		mapError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, buildAccountResponse(account))
}

// UpdateLimits handles PATCH /accounts/{account_id}/limits.
func (h *AccountHandler) UpdateLimits(w http.ResponseWriter, r *http.Request) {
	var req limitsRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	account, err := h.accountSvc.UpdateLimits(r.Context(), chi.URLParam(r, "account_id"), toLimitsInput(req))
	if err != nil {
		mapError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, buildAccountResponse(account))
}

// Positions handles GET /accounts/{account_id}/positions.
func (h *AccountHandler) Positions(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "account_id")

	positions, err := h.accountSvc.Positions(r.Context(), accountID)
	if err != nil {
		mapError(w, err)
		return
	}

	resp := positionListResponse{AccountID: accountID, Positions: make([]positionResponse, len(positions))}
	for i, p := range positions {
		resp.Positions[i] = positionResponse{
			Symbol:      p.Symbol,
			Quantity:    p.Quantity,
			AverageCost: formatMoney(p.AverageCost),
			RealizedPnL: formatMoney(p.RealizedPnL),
			UpdatedAt:   formatTime(p.UpdatedAt),
		}
	}
	WriteJSON(w, http.StatusOK, resp)
}

// PnL handles GET /accounts/{account_id}/pnl.
func (h *AccountHandler) PnL(w http.ResponseWriter, r *http.Request) {
	report, err := h.accountSvc.PnL(r.Context(), chi.URLParam(r, "account_id"))
	if err != nil {
		mapError(w, err)
		return
	}

	resp := pnlResponse{
		AccountID:     report.AccountID,
		UnrealizedPnL: formatMoney(report.Unrealized),
		RealizedPnL:   formatMoney(report.Realized),
		Positions:     make([]positionPnLResponse, len(report.Positions)),
	}
	for i, line := range report.Positions {
		resp.Positions[i] = positionPnLResponse{
			Symbol:        line.Position.Symbol,
			Quantity:      line.Position.Quantity,
			AverageCost:   formatMoney(line.Position.AverageCost),
			MarkPrice:     formatMoney(line.Mark),
			UnrealizedPnL: formatMoney(line.Unrealized),
			RealizedPnL:   formatMoney(line.Position.RealizedPnL),
		}
	}
	WriteJSON(w, http.StatusOK, resp)
}

// ListOrders handles GET /accounts/{account_id}/orders.
func (h *AccountHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "account_id")

	// Parse query params.
	var statusFilter *domain.OrderStatus
	if s := r.URL.Query().Get("status"); s != "" {
		status := domain.OrderStatus(s)
		statusFilter = &status
	}

	page := 1
	if p := r.URL.Query().Get("page"); p != "" {
		var err error
		page, err = strconv.Atoi(p)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "validation_error", "page must be a valid integer")
			return
		}
	}

	limit := 20
	if l := r.URL.Query().Get("limit"); l != "" {
		var err error
		limit, err = strconv.Atoi(l)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "validation_error", "limit must be a valid integer")
			return
		}
	}

	orders, total, err := h.orderSvc.ListOrders(r.Context(), accountID, statusFilter, page, limit)
	if err != nil {
		mapError(w, err)
		return
	}

	resp := orderListResponse{
		Orders: make([]orderResponse, len(orders)),
		Total:  total,
		Page:   page,
		Limit:  limit,
	}
	for i, o := range orders {
		resp.Orders[i] = buildOrderResponse(o)
	}
	WriteJSON(w, http.StatusOK, resp)
}

func toLimitsInput(req limitsRequest) service.LimitsInput {
	return service.LimitsInput{
		MaxOrderQuantity:    req.MaxOrderQuantity,
		MaxNotional:         req.MaxNotional,
		MaxPositionQuantity: req.MaxPositionQuantity,
	}
}

func buildAccountResponse(a *domain.Account) accountResponse {
	return accountResponse{
		AccountID:   a.AccountID,
		Name:        a.Name,
		CashBalance: formatMoney(a.CashBalance),
		Limits: limitsResponse{
			MaxOrderQuantity:    a.Limits.MaxOrderQuantity,
			MaxNotional:         formatMoney(a.Limits.MaxNotional),
			MaxPositionQuantity: a.Limits.MaxPositionQuantity,
		},
		CreatedAt: formatTime(a.CreatedAt),
		UpdatedAt: formatTime(a.UpdatedAt),
	}
}
