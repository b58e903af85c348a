package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"

	"github.com/xenking/bookshop/internal/domain/order"
)

// PlaceOrder prices and stores an order. 201 on success.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	h.priceOrder(w, r, h.orders.PlaceOrder, http.StatusCreated)
}

// QuoteOrder prices an order without storing it.
func (h *Handler) QuoteOrder(w http.ResponseWriter, r *http.Request) {
	h.priceOrder(w, r, h.orders.Price, http.StatusOK)
}

type pricingFunc = func(ctx context.Context, req order.PlaceOrderRequest) (*order.Order, error)

func (h *Handler) priceOrder(w http.ResponseWriter, r *http.Request, price pricingFunc, code int) {
	var req placeOrderRequest
	if err := decodeBody(w, r, req.decode); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeError(w, r, badRequest(validationMessage(err)))
		return
	}

	o, err := price(r.Context(), req.toDomain())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, code, func(e *jx.Encoder) { encodeOrder(e, o) })
}

// GetOrder returns a stored order.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
}

// UpdateOrderStatus applies a lifecycle transition from {"status": "..."}.
func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var raw string
	err := decodeBody(w, r, func(d *jx.Decoder) error {
		var err error
		raw, err = decodeStatus(d)
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	to, err := order.ParseStatus(raw)
	if err != nil {
		writeError(w, r, err)
		return
	}

	o, err := h.orders.Transition(r.Context(), chi.URLParam(r, "id"), to)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
}
