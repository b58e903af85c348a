package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/bookshop/internal/domain/loyalty"
	"github.com/xenking/bookshop/internal/domain/order"
	"github.com/xenking/bookshop/internal/storage/memory"
)

var fixedNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func newTestRouter(t *testing.T) *chi.Mux {
	t.Helper()

	customers := memory.NewCustomerRepository()
	for _, c := range memory.DemoCustomers(fixedNow) {
		_, err := customers.Save(context.Background(), &c)
		require.NoError(t, err)
	}

	svc, err := order.NewService(customers, memory.NewOrderRepository(),
		order.WithClock(func() time.Time { return fixedNow }),
	)
	require.NoError(t, err)

	r := chi.NewRouter()
	NewHandler(svc).Mount(r)
	return r
}

func do(t *testing.T, r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type orderResponse struct {
	ID           string      `json:"id"`
	CustomerID   int64       `json:"customerId"`
	ItemTotal    json.Number `json:"itemTotal"`
	Discount     json.Number `json:"discount"`
	Freight      json.Number `json:"freight"`
	Total        json.Number `json:"total"`
	LoyaltyTier  string      `json:"loyaltyTier"`
	ShippingZone string      `json:"shippingZone"`
	Status       string      `json:"status"`
	Address      struct {
		State string `json:"state"`
	} `json:"address"`
	Items []struct {
		Title    string      `json:"title"`
		Quantity int         `json:"quantity"`
		Subtotal json.Number `json:"subtotal"`
	} `json:"items"`
}

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	dec := json.NewDecoder(w.Body)
	dec.UseNumber()
	require.NoError(t, dec.Decode(&v), w.Body.String())
	return v
}

func orderBody(customerID int64, state, items string) string {
	return `{"customerId":` + jsonInt(customerID) + `,
		"address":{"street":"Rua das Flores","number":"10","district":"Centro","city":"Cidade","state":"` + state + `","zipCode":"01000-000"},
		"items":` + items + `,
		"paymentMethod":"PIX"}`
}

func jsonInt(v int64) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func TestPlaceOrder_Pricing(t *testing.T) {
	tests := []struct {
		name       string
		customerID int64
		state      string
		items      string
		tier       string
		zone       string
		discount   string
		freight    string
		total      string
	}{
		{
			name: "basic customer in SP", customerID: 1, state: "SP",
			items: `[{"title":"Livro","quantity":1,"unitPrice":1000}]`,
			tier:  "BASIC", zone: "ZERO", discount: "0", freight: "0", total: "1000",
		},
		{
			name: "bronze customer in SP", customerID: 2, state: "SP",
			items: `[{"title":"Livro","quantity":2,"unitPrice":500}]`,
			tier:  "BRONZE", zone: "ZERO", discount: "30", freight: "0", total: "970",
		},
		{
			name: "silver customer in RJ", customerID: 3, state: "RJ",
			items: `[{"title":"Livro","quantity":1,"unitPrice":"100.00"}]`,
			tier:  "SILVER", zone: "MID", discount: "5", freight: "4.75", total: "99.75",
		},
		{
			name: "gold customer in RS with lowercase state", customerID: 4, state: "rs",
			items: `[{"title":"A","quantity":1,"unitPrice":150},{"title":"B","quantity":2,"unitPrice":25}]`,
			tier:  "GOLD", zone: "OTHER", discount: "20", freight: "14.4", total: "194.4",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRouter(t)

			w := do(t, r, http.MethodPost, "/api/orders", orderBody(tt.customerID, tt.state, tt.items))
			require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

			got := decode[orderResponse](t, w)
			assert.NotEmpty(t, got.ID)
			assert.Equal(t, tt.customerID, got.CustomerID)
			assert.Equal(t, tt.tier, got.LoyaltyTier)
			assert.Equal(t, tt.zone, got.ShippingZone)
			assert.Equal(t, tt.discount, got.Discount.String())
			assert.Equal(t, tt.freight, got.Freight.String())
			assert.Equal(t, tt.total, got.Total.String())
			assert.Equal(t, "PROCESSING", got.Status)
			assert.Equal(t, strings.ToUpper(tt.state), got.Address.State)

			stored := do(t, r, http.MethodGet, "/api/orders/"+got.ID, "")
			require.Equal(t, http.StatusOK, stored.Code)
			assert.Equal(t, got.Total, decode[orderResponse](t, stored).Total)
		})
	}
}

func TestQuoteOrder_DoesNotPersist(t *testing.T) {
	r := newTestRouter(t)

	w := do(t, r, http.MethodPost, "/api/orders/quote",
		orderBody(3, "MG", `[{"title":"Livro","quantity":3,"unitPrice":"33.33"}]`))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	got := decode[orderResponse](t, w)
	assert.Equal(t, "99.99", got.ItemTotal.String())
	assert.Equal(t, "99.99", got.Items[0].Subtotal.String())

	missing := do(t, r, http.MethodGet, "/api/orders/"+got.ID, "")
	assert.Equal(t, http.StatusNotFound, missing.Code)
}

func TestPlaceOrder_Errors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		code    int
		message string
	}{
		{name: "malformed json", body: `{"customerId":`, code: http.StatusBadRequest, message: "malformed body"},
		{name: "wrong type", body: `{"customerId":"one"}`, code: http.StatusBadRequest, message: "customerId"},
		{
			name:    "empty cart",
			body:    orderBody(1, "SP", `[]`),
			code:    http.StatusBadRequest,
			message: "cart required",
		},
		{
			name:    "missing items",
			body:    `{"customerId":1,"address":{"state":"SP"}}`,
			code:    http.StatusBadRequest,
			message: "cart required",
		},
		{
			name:    "non-positive customer id",
			body:    orderBody(0, "SP", `[{"title":"x","quantity":1,"unitPrice":1}]`),
			code:    http.StatusBadRequest,
			message: "customerId: gt=0",
		},
		{
			name:    "zero quantity",
			body:    orderBody(1, "SP", `[{"title":"x","quantity":0,"unitPrice":1}]`),
			code:    http.StatusBadRequest,
			message: "items[0].quantity: min=1",
		},
		{
			name:    "negative price",
			body:    orderBody(1, "SP", `[{"title":"x","quantity":1,"unitPrice":-1}]`),
			code:    http.StatusBadRequest,
			message: "items[0].unitPrice: gte=0",
		},
		{
			name:    "unknown customer",
			body:    orderBody(99, "SP", `[{"title":"x","quantity":1,"unitPrice":1}]`),
			code:    http.StatusUnprocessableEntity,
			message: "customer 99 not found",
		},
		{
			name:    "unrecognized region",
			body:    orderBody(1, "FL", `[{"title":"x","quantity":1,"unitPrice":1}]`),
			code:    http.StatusUnprocessableEntity,
			message: `unrecognized region "FL"; supported: AC,AL,AM,AP,BA`,
		},
		{
			name:    "trailing data",
			body:    orderBody(1, "SP", `[{"title":"x","quantity":1,"unitPrice":1}]`) + `garbage`,
			code:    http.StatusBadRequest,
			message: "unexpected data after JSON value",
		},
		{
			name:    "second value",
			body:    orderBody(1, "SP", `[{"title":"x","quantity":1,"unitPrice":1}]`) + `{}`,
			code:    http.StatusBadRequest,
			message: "unexpected data after JSON value",
		},
		{
			name:    "too many price decimals",
			body:    orderBody(1, "SP", `[{"title":"x","quantity":1,"unitPrice":"1.00001"}]`),
			code:    http.StatusBadRequest,
			message: "items[0].unitPrice: decimals=4",
		},
		{
			name:    "price above ceiling",
			body:    orderBody(1, "SP", `[{"title":"x","quantity":1,"unitPrice":1000000.01}]`),
			code:    http.StatusBadRequest,
			message: "items[0].unitPrice: lte=1000000",
		},
		{
			name:    "huge price exponent",
			body:    orderBody(1, "SP", `[{"title":"x","quantity":1,"unitPrice":"1e2000000000"}]`),
			code:    http.StatusBadRequest,
			message: "items[0].unitPrice: lte=1000000",
		},
		{
			name:    "huge zero exponent",
			body:    orderBody(1, "SP", `[{"title":"x","quantity":1,"unitPrice":0e2000000000}]`),
			code:    http.StatusBadRequest,
			message: "items[0].unitPrice: lte=1000000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRouter(t)

			w := do(t, r, http.MethodPost, "/api/orders", tt.body)
			require.Equal(t, tt.code, w.Code, w.Body.String())

			got := decode[errorResponse](t, w)
			assert.Equal(t, tt.code, got.Code)
			assert.Contains(t, got.Message, tt.message)
		})
	}
}

func TestGetOrder_NotFound(t *testing.T) {
	w := do(t, newTestRouter(t), http.MethodGet, "/api/orders/does-not-exist", "")
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, http.StatusNotFound, decode[errorResponse](t, w).Code)
}

func TestUpdateOrderStatus(t *testing.T) {
	r := newTestRouter(t)

	placed := do(t, r, http.MethodPost, "/api/orders",
		orderBody(1, "SP", `[{"title":"x","quantity":1,"unitPrice":10}]`))
	require.Equal(t, http.StatusCreated, placed.Code)
	id := decode[orderResponse](t, placed).ID
	path := "/api/orders/" + id + "/status"

	steps := []struct {
		body   string
		code   int
		status string
	}{
		{body: `{"status":"confirmed"}`, code: http.StatusOK, status: "CONFIRMED"},
		{body: `{"status":"PROCESSING"}`, code: http.StatusConflict},
		{body: `{"status":"SHIPPED"}`, code: http.StatusBadRequest},
		{body: `{"status":"DELIVERED"}`, code: http.StatusOK, status: "DELIVERED"},
		{body: `{"status":"CANCELLED"}`, code: http.StatusConflict},
	}
	for _, step := range steps {
		w := do(t, r, http.MethodPatch, path, step.body)
		require.Equal(t, step.code, w.Code, "%s: %s", step.body, w.Body.String())
		if step.status != "" {
			assert.Equal(t, step.status, decode[orderResponse](t, w).Status)
		}
	}

	w := do(t, r, http.MethodPatch, "/api/orders/missing/status", `{"status":"CONFIRMED"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetLoyalty(t *testing.T) {
	r := newTestRouter(t)

	w := do(t, r, http.MethodGet, "/api/customers/4/loyalty", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"customerId":4,"tenureYears":7,"tier":"GOLD","discountRate":0.1}`, w.Body.String())

	assert.Equal(t, http.StatusNotFound, do(t, r, http.MethodGet, "/api/customers/42/loyalty", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, r, http.MethodGet, "/api/customers/abc/loyalty", "").Code)
}

type failingService struct {
	OrderService
}

func (failingService) Price(context.Context, order.PlaceOrderRequest) (*order.Order, error) {
	return nil, errors.New("connection reset")
}

func (failingService) Profile(context.Context, int64) (loyalty.Profile, error) {
	return loyalty.Profile{}, errors.New("connection reset")
}

func TestInternalErrorsAreHidden(t *testing.T) {
	r := chi.NewRouter()
	NewHandler(failingService{}).Mount(r)

	w := do(t, r, http.MethodPost, "/api/orders/quote",
		orderBody(1, "SP", `[{"title":"x","quantity":1,"unitPrice":1}]`))
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"code":500,"message":"internal error"}`, w.Body.String())

	w = do(t, r, http.MethodGet, "/api/customers/1/loyalty", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
