package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/bookshop/internal/domain/order"
)

// GetLoyalty reports the tenure and loyalty tier of a customer.
func (h *Handler) GetLoyalty(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, r, badRequest("customer id must be a positive integer"))
		return
	}

	p, err := h.orders.Profile(r.Context(), id)
	if err != nil {
		var cnErr *order.CustomerNotFoundError
		if errors.As(err, &cnErr) {
			err = &apiError{Code: http.StatusNotFound, Message: cnErr.Error()}
		}
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeProfile(e, p) })
}
