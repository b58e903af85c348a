// Package handler exposes the order and loyalty operations over HTTP.
package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	validatorv10 "github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/xenking/bookshop/internal/domain/loyalty"
	"github.com/xenking/bookshop/internal/domain/order"
	"github.com/xenking/bookshop/internal/domain/shipping"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// OrderService is the subset of order.Service used by the handlers.
type OrderService interface {
	Price(ctx context.Context, req order.PlaceOrderRequest) (*order.Order, error)
	PlaceOrder(ctx context.Context, req order.PlaceOrderRequest) (*order.Order, error)
	Get(ctx context.Context, id string) (*order.Order, error)
	Transition(ctx context.Context, id string, to order.Status) (*order.Order, error)
	Profile(ctx context.Context, customerID int64) (loyalty.Profile, error)
}

var _ OrderService = (*order.Service)(nil)

// Handler serves the /api routes.
type Handler struct {
	orders   OrderService
	validate *validatorv10.Validate
}

// NewHandler constructs a Handler around the order service.
func NewHandler(orders OrderService) *Handler {
	return &Handler{
		orders:   orders,
		validate: newValidator(),
	}
}

// Mount registers the API routes on r.
func (h *Handler) Mount(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Route("/orders", func(r chi.Router) {
			r.Post("/", h.PlaceOrder)
			r.Post("/quote", h.QuoteOrder)
			r.Get("/{id}", h.GetOrder)
			r.Patch("/{id}/status", h.UpdateOrderStatus)
		})
		r.Get("/customers/{id}/loyalty", h.GetLoyalty)
	})
}

// apiError is rendered as {"code":...,"message":...}.
type apiError struct {
	Code    int
	Message string
}

func (e *apiError) Error() string { return e.Message }

func badRequest(msg string) *apiError {
	return &apiError{Code: http.StatusBadRequest, Message: msg}
}

// mapError converts domain errors to HTTP errors. Anything unrecognized is
// logged and reported as 500 without leaking the cause.
func mapError(ctx context.Context, err error) *apiError {
	var (
		apiErr *apiError
		vErr   *order.ValidationError
		cnErr  *order.CustomerNotFoundError
	)
	switch {
	case errors.As(err, &apiErr):
		return apiErr
	case errors.As(err, &vErr):
		return &apiError{Code: http.StatusBadRequest, Message: vErr.Error()}
	case errors.Is(err, order.ErrUnknownStatus):
		return &apiError{Code: http.StatusBadRequest, Message: err.Error()}
	case errors.As(err, &cnErr):
		return &apiError{Code: http.StatusUnprocessableEntity, Message: cnErr.Error()}
	case errors.Is(err, shipping.ErrUnrecognizedRegion):
		return &apiError{
			Code:    http.StatusUnprocessableEntity,
			Message: err.Error() + "; supported: " + strings.Join(shipping.Regions(), ","),
		}
	case errors.Is(err, order.ErrNotFound):
		return &apiError{Code: http.StatusNotFound, Message: order.ErrNotFound.Error()}
	case errors.Is(err, order.ErrInvalidTransition):
		return &apiError{Code: http.StatusConflict, Message: err.Error()}
	default:
		zctx.From(ctx).Error("Request failed", zap.Error(err))
		return &apiError{Code: http.StatusInternalServerError, Message: "internal error"}
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	e := mapError(r.Context(), err)
	writeJSON(w, e.Code, func(enc *jx.Encoder) {
		enc.Obj(func(enc *jx.Encoder) {
			enc.Field("code", func(enc *jx.Encoder) { enc.Int(e.Code) })
			enc.Field("message", func(enc *jx.Encoder) { enc.Str(e.Message) })
		})
	})
}

func writeJSON(w http.ResponseWriter, code int, encode func(*jx.Encoder)) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	encode(e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(e.Bytes())
}
