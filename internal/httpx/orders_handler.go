package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/andresvel/commerce-sync/internal/inventory"
	"github.com/andresvel/commerce-sync/internal/orders"
)

type OrdersHandler struct {
	Orders    *orders.Service
	Inventory *inventory.Service
}

type CreateOrderReq struct {
	CustomerID string           `json:"customer_id"`
	Items      []OrderItemInput `json:"items"`
}

type OrderItemInput struct {
	ProductID int `json:"product_id"`
	Qty       int `json:"qty"`
}

func (h *OrdersHandler) Register(r *chi.Mux) {
	r.Get("/products", h.listProducts)
	r.Post("/orders", h.createOrder)
	r.Get("/orders", h.listOrders)
	r.Get("/orders/stats", h.orderStats)
	r.Get("/orders/{id}", h.getOrder)
	r.Post("/orders/{id}/cancel", h.cancelOrder)
}

func (h *OrdersHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()
	products, err := h.Inventory.Snapshot(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, products)
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	// Name and price come from the catalog, not from the client.
	cart, err := h.buildCart(ctx, req.Items)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	order, err := h.Orders.CreateOrder(ctx, cart, req.CustomerID)
	if err != nil {
		var stockErr *inventory.InsufficientStockError
		switch {
		case errors.Is(err, orders.ErrEmptyCart):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.As(err, &stockErr):
			writeJSON(w, http.StatusConflict, map[string]any{
				"error":   "insufficient stock",
				"missing": stockErr.Missing,
			})
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

func (h *OrdersHandler) buildCart(ctx context.Context, items []OrderItemInput) ([]orders.CartLine, error) {
	cart := make([]orders.CartLine, 0, len(items))
	for _, in := range items {
		if in.Qty <= 0 {
			return nil, errors.New("qty must be positive")
		}
		p, err := h.Inventory.GetByID(ctx, in.ProductID)
		if err != nil {
			return nil, err
		}
		cart = append(cart, orders.CartLine{
			ProductID:  p.ID,
			Name:       p.Name,
			Qty:        in.Qty,
			PriceCents: p.PriceCents,
		})
	}
	return cart, nil
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if q := r.URL.Query().Get("status"); q != "" {
		list, err := h.Orders.GetByStatus(ctx, orders.Status(q))
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, list)
		return
	}
	list, err := h.Orders.GetAll(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()
	order, err := h.Orders.GetByID(ctx, chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, orders.ErrOrderNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *OrdersHandler) orderStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()
	stats, err := h.Orders.GetStats(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *OrdersHandler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Reason string `json:"reason"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	if body.Reason == "" {
		body.Reason = "cancelled by user"
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	order, err := h.Orders.CancelOrder(ctx, chi.URLParam(r, "id"), body.Reason)
	if err != nil {
		if errors.Is(err, orders.ErrOrderNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, order)
}
