// Package handlers provides HTTP handlers for wallet and trade execution.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/quantcoin/quantz/internal/api"
	"github.com/quantcoin/quantz/internal/auth"
	"github.com/quantcoin/quantz/internal/modules/trading"
)

// Handler contains HTTP handlers for the trading API
type Handler struct {
	service *trading.Service
	log     zerolog.Logger
}

// NewHandler creates a new trading handler
func NewHandler(service *trading.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "trading").Logger(),
	}
}

// HandleGetWallet handles GET /wallet.
// On storage failure it degrades to a default wallet snapshot with a warning
// instead of a 5xx, so the dashboard always renders.
func (h *Handler) HandleGetWallet(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	wallet, err := h.service.GetWallet(userID)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to get wallet, serving default")
		now := time.Now().UTC()
		api.SuccessWarning(w, "Wallet retrieved", "wallet storage unavailable, showing defaults",
			&trading.Wallet{
				UserID:      userID,
				CashBalance: h.service.StartingBalance(),
				CreatedAt:   now,
				UpdatedAt:   now,
			})
		return
	}

	api.Success(w, "Wallet retrieved", wallet)
}

// HandleDeposit handles POST /wallet/deposit
func (h *Handler) HandleDeposit(w http.ResponseWriter, r *http.Request) {
	h.handleCashOp(w, r, h.service.Deposit, "Deposit successful")
}

// HandleWithdraw handles POST /wallet/withdraw
func (h *Handler) HandleWithdraw(w http.ResponseWriter, r *http.Request) {
	h.handleCashOp(w, r, h.service.Withdraw, "Withdrawal successful")
}

func (h *Handler) handleCashOp(
	w http.ResponseWriter,
	r *http.Request,
	op func(userID string, amount float64) (*trading.TradeResult, error),
	message string,
) {
	userID := auth.UserID(r.Context())

	var req trading.CashRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := op(userID, req.Amount)
	if err != nil {
		h.respondTradeError(w, err)
		return
	}

	api.Success(w, message, map[string]interface{}{
		"transaction_id": result.Transaction.Reference,
		"amount":         req.Amount,
		"new_balance":    result.Wallet.CashBalance,
	})
}

// HandleBuy handles POST /buy
func (h *Handler) HandleBuy(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	var req trading.TradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.service.Buy(r.Context(), userID, &req)
	if err != nil {
		h.respondTradeError(w, err)
		return
	}

	api.Success(w, "Buy order executed", map[string]interface{}{
		"transaction_id": result.Transaction.Reference,
		"symbol":         result.Transaction.Symbol,
		"quantity":       result.Transaction.Quantity,
		"price":          result.Transaction.PricePerShare,
		"price_source":   result.PriceSource,
		"total_cost":     result.Transaction.TotalAmount,
		"new_balance":    result.Wallet.CashBalance,
		"holding":        result.Holding,
	})
}

// HandleSell handles POST /sell
func (h *Handler) HandleSell(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	var req trading.TradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.service.Sell(r.Context(), userID, &req)
	if err != nil {
		h.respondTradeError(w, err)
		return
	}

	api.Success(w, "Sell order executed", map[string]interface{}{
		"transaction_id":     result.Transaction.Reference,
		"symbol":             result.Transaction.Symbol,
		"quantity":           result.Transaction.Quantity,
		"price":              result.Transaction.PricePerShare,
		"price_source":       result.PriceSource,
		"total_proceeds":     result.Transaction.TotalAmount,
		"realized_gain_loss": result.RealizedPnL,
		"new_balance":        result.Wallet.CashBalance,
		"holding":            result.Holding,
	})
}

// HandleGetHoldings handles GET /holdings
func (h *Handler) HandleGetHoldings(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	holdings, err := h.service.ListHoldings(userID)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list holdings")
		api.Error(w, http.StatusInternalServerError, "Failed to retrieve holdings")
		return
	}
	if holdings == nil {
		holdings = []trading.Holding{}
	}

	api.Success(w, "Holdings retrieved", holdings)
}

// HandleGetHolding handles GET /holdings/{symbol}
func (h *Handler) HandleGetHolding(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	symbol := chi.URLParam(r, "symbol")

	holding, err := h.service.GetHolding(userID, symbol)
	if err != nil {
		h.log.Error().Err(err).Str("symbol", symbol).Msg("Failed to get holding")
		api.Error(w, http.StatusInternalServerError, "Failed to retrieve holding")
		return
	}
	if holding == nil {
		api.Error(w, http.StatusNotFound, "No position in "+symbol)
		return
	}

	transactions, err := h.service.ListTransactions(userID, "", 0, 0)
	if err == nil {
		var related []trading.Transaction
		for _, t := range transactions {
			if t.Symbol == holding.Symbol {
				related = append(related, t)
			}
		}
		api.Success(w, "Holding retrieved", map[string]interface{}{
			"holding":      holding,
			"transactions": related,
		})
		return
	}

	api.Success(w, "Holding retrieved", map[string]interface{}{"holding": holding})
}

// HandleGetTransactions handles GET /transactions with type/symbol filters
// and pagination
func (h *Handler) HandleGetTransactions(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	txType := r.URL.Query().Get("type")
	symbol := r.URL.Query().Get("symbol")
	limit := parseIntParam(r, "limit", 50)
	offset := parseIntParam(r, "offset", 0)

	if limit < 1 || limit > 1000 {
		api.Error(w, http.StatusBadRequest, "Invalid limit. Must be 1-1000")
		return
	}

	var transactions []trading.Transaction
	var err error
	if symbol != "" {
		transactions, err = h.service.ListSymbolTransactions(userID, symbol)
	} else {
		transactions, err = h.service.ListTransactions(userID, txType, limit, offset)
	}
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list transactions")
		api.Error(w, http.StatusInternalServerError, "Failed to retrieve transactions")
		return
	}
	if transactions == nil {
		transactions = []trading.Transaction{}
	}

	api.Success(w, "Transactions retrieved", map[string]interface{}{
		"transactions": transactions,
		"limit":        limit,
		"offset":       offset,
	})
}

// HandleGetTransaction handles GET /transactions/{reference}
func (h *Handler) HandleGetTransaction(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	reference := chi.URLParam(r, "reference")

	t, err := h.service.GetTransaction(userID, reference)
	if err != nil {
		h.log.Error().Err(err).Str("reference", reference).Msg("Failed to get transaction")
		api.Error(w, http.StatusInternalServerError, "Failed to retrieve transaction")
		return
	}
	if t == nil {
		api.Error(w, http.StatusNotFound, "Transaction not found")
		return
	}

	api.Success(w, "Transaction retrieved", t)
}

// HandleGetActivities handles GET /activities
func (h *Handler) HandleGetActivities(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	limit := parseIntParam(r, "limit", 20)

	activities, err := h.service.ListActivities(userID, limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list activities")
		api.Error(w, http.StatusInternalServerError, "Failed to retrieve activities")
		return
	}
	if activities == nil {
		activities = []trading.Activity{}
	}

	api.Success(w, "Activities retrieved", activities)
}

// respondTradeError maps service errors onto status codes. Business
// rejections are 400s with the sentinel message; only infrastructure
// failures surface as 5xx.
func (h *Handler) respondTradeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, trading.ErrInsufficientBalance),
		errors.Is(err, trading.ErrInsufficientShares),
		errors.Is(err, trading.ErrNoPosition),
		errors.Is(err, trading.ErrInvalidQuantity),
		errors.Is(err, trading.ErrInvalidAmount),
		errors.Is(err, trading.ErrInvalidSymbol),
		errors.Is(err, trading.ErrInvalidPrice):
		api.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, trading.ErrPriceUnavailable):
		api.Error(w, http.StatusServiceUnavailable, err.Error())
	default:
		h.log.Error().Err(err).Msg("Trade execution failed")
		api.Error(w, http.StatusInternalServerError, "Trade execution failed")
	}
}

func parseIntParam(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
