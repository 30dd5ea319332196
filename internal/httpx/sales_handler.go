package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/andresvel/commerce-sync/internal/inventory"
	"github.com/andresvel/commerce-sync/internal/sales"
)

type SalesHandler struct {
	Sales *sales.Service
}

func (h *SalesHandler) Register(r *chi.Mux) {
	r.Get("/sales", h.listSales)
	r.Get("/sales/stats", h.salesStats)
	r.Get("/sales/{id}", h.getSale)
	r.Post("/sales/{id}/pay", h.processPayment)
	r.Post("/sales/{id}/cancel", h.cancelSale)
}

func (h *SalesHandler) listSales(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if orderID := r.URL.Query().Get("order_id"); orderID != "" {
		sale, err := h.Sales.GetByOrderID(ctx, orderID)
		if err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, sale)
		return
	}
	if q := r.URL.Query().Get("status"); q != "" {
		list, err := h.Sales.GetByStatus(ctx, sales.Status(q))
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, list)
		return
	}
	list, err := h.Sales.GetAll(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *SalesHandler) getSale(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()
	sale, err := h.Sales.GetByID(ctx, chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, sales.ErrSaleNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sale)
}

func (h *SalesHandler) salesStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()
	stats, err := h.Sales.GetStats(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *SalesHandler) processPayment(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	sale, err := h.Sales.ProcessPayment(ctx, chi.URLParam(r, "id"))
	if err != nil {
		var stockErr *inventory.InsufficientStockError
		switch {
		case errors.Is(err, sales.ErrSaleNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.As(err, &stockErr):
			writeJSON(w, http.StatusConflict, map[string]any{
				"error":   "insufficient stock",
				"missing": stockErr.Missing,
			})
		case errors.Is(err, sales.ErrAlreadyPaid), errors.Is(err, sales.ErrAlreadyCancelled):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, sale)
}

func (h *SalesHandler) cancelSale(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Reason string `json:"reason"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	if body.Reason == "" {
		body.Reason = "cancelled by user"
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	sale, err := h.Sales.CancelSale(ctx, chi.URLParam(r, "id"), body.Reason)
	if err != nil {
		switch {
		case errors.Is(err, sales.ErrSaleNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, sales.ErrAlreadyPaid):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, sale)
}
