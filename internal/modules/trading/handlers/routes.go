package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all trading routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/wallet", func(r chi.Router) {
		r.Get("/", h.HandleGetWallet)
		r.Post("/deposit", h.HandleDeposit)
		r.Post("/withdraw", h.HandleWithdraw)
	})

	r.Post("/buy", h.HandleBuy)
	r.Post("/sell", h.HandleSell)

	r.Route("/holdings", func(r chi.Router) {
		r.Get("/", h.HandleGetHoldings)
		r.Get("/{symbol}", h.HandleGetHolding)
	})

	r.Get("/transactions", h.HandleGetTransactions)
	r.Get("/transactions/{reference}", h.HandleGetTransaction)
	r.Get("/activities", h.HandleGetActivities)
}
