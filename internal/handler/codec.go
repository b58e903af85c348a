package handler

import (
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/xenking/bookshop/internal/domain/loyalty"
	"github.com/xenking/bookshop/internal/domain/order"
)

type addressRequest struct {
	Street   string `json:"street" validate:"max=200"`
	Number   string `json:"number" validate:"max=20"`
	District string `json:"district" validate:"max=100"`
	City     string `json:"city" validate:"max=100"`
	State    string `json:"state" validate:"max=10"`
	ZipCode  string `json:"zipCode" validate:"max=20"`
}

type itemRequest struct {
	Title     string          `json:"title" validate:"max=300"`
	Quantity  int             `json:"quantity" validate:"min=1"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

// placeOrderRequest is the body of POST /api/orders and /api/orders/quote.
// An empty item list passes validation; the pricing pipeline rejects it.
type placeOrderRequest struct {
	CustomerID    int64          `json:"customerId" validate:"gt=0"`
	Address       addressRequest `json:"address"`
	Items         []itemRequest  `json:"items" validate:"dive"`
	PaymentMethod string         `json:"paymentMethod" validate:"max=32"`
}

func newValidator() *validatorv10.Validate {
	v := validatorv10.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		return name
	})
	v.RegisterStructValidation(itemStructValidation, itemRequest{})
	return v
}

// Unit price bounds. A price like 1e1000000 parses into a small Decimal but
// rescales into a million-digit integer on the first Add.
const (
	maxUnitPriceScale    = 4
	maxUnitPriceExponent = 6
)

var maxUnitPrice = decimal.New(1, maxUnitPriceExponent)

func itemStructValidation(sl validatorv10.StructLevel) {
	item := sl.Current().Interface().(itemRequest)
	price := item.UnitPrice
	switch {
	case price.IsNegative():
		sl.ReportError(price, "unitPrice", "UnitPrice", "gte", "0")
	case price.Exponent() < -maxUnitPriceScale:
		sl.ReportError(price, "unitPrice", "UnitPrice", "decimals", strconv.Itoa(maxUnitPriceScale))
	// Checked before the comparison, which itself rescales.
	case price.Exponent() > maxUnitPriceExponent, price.GreaterThan(maxUnitPrice):
		sl.ReportError(price, "unitPrice", "UnitPrice", "lte", maxUnitPrice.String())
	}
}

// validationMessage flattens validator errors into "items[0].quantity: min=1".
func validationMessage(err error) string {
	var ve validatorv10.ValidationErrors
	if !errors.As(err, &ve) {
		return err.Error()
	}
	parts := make([]string, 0, len(ve))
	for _, fe := range ve {
		_, field, _ := strings.Cut(fe.Namespace(), ".")
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		parts = append(parts, field+": "+rule)
	}
	return strings.Join(parts, "; ")
}

func decodeBody(w http.ResponseWriter, r *http.Request, decode func(*jx.Decoder) error) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return badRequest("read body: " + err.Error())
	}
	d := jx.DecodeBytes(body)
	if err := decode(d); err != nil {
		return badRequest("malformed body: " + err.Error())
	}
	if err := d.Skip(); !errors.Is(err, io.EOF) {
		return badRequest("malformed body: unexpected data after JSON value")
	}
	return nil
}

func (p *placeOrderRequest) decode(d *jx.Decoder) error {
	return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "customerId":
			p.CustomerID, err = d.Int64()
		case "address":
			err = p.Address.decode(d)
		case "items":
			if d.Next() == jx.Null {
				return d.Null()
			}
			err = d.Arr(func(d *jx.Decoder) error {
				var item itemRequest
				if err := item.decode(d); err != nil {
					return err
				}
				p.Items = append(p.Items, item)
				return nil
			})
		case "paymentMethod":
			p.PaymentMethod, err = d.Str()
		default:
			return d.Skip()
		}
		return wrapField(err, key)
	})
}

func (a *addressRequest) decode(d *jx.Decoder) error {
	return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var dst *string
		switch string(key) {
		case "street":
			dst = &a.Street
		case "number":
			dst = &a.Number
		case "district":
			dst = &a.District
		case "city":
			dst = &a.City
		case "state":
			dst = &a.State
		case "zipCode":
			dst = &a.ZipCode
		default:
			return d.Skip()
		}
		v, err := d.Str()
		if err != nil {
			return wrapField(err, key)
		}
		*dst = v
		return nil
	})
}

func (i *itemRequest) decode(d *jx.Decoder) error {
	return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "title":
			i.Title, err = d.Str()
		case "quantity":
			i.Quantity, err = d.Int()
		case "unitPrice":
			i.UnitPrice, err = decodeDecimal(d)
		default:
			return d.Skip()
		}
		return wrapField(err, key)
	})
}

func wrapField(err error, key []byte) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(err, string(key))
}

// decodeDecimal accepts both 12.5 and "12.5".
func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	var raw string
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Decimal{}, err
		}
		raw = s
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Decimal{}, err
		}
		raw = string(n)
	default:
		return decimal.Decimal{}, errors.New("expected number")
	}
	return decimal.NewFromString(raw)
}

func (p *placeOrderRequest) toDomain() order.PlaceOrderRequest {
	items := make([]order.CartItem, len(p.Items))
	for i, it := range p.Items {
		items[i] = order.CartItem{Title: it.Title, Quantity: it.Quantity, UnitPrice: it.UnitPrice}
	}
	return order.PlaceOrderRequest{
		CustomerID: p.CustomerID,
		Address: order.Address{
			Street:   p.Address.Street,
			Number:   p.Address.Number,
			District: p.Address.District,
			City:     p.Address.City,
			State:    p.Address.State,
			ZipCode:  p.Address.ZipCode,
		},
		Items:         items,
		PaymentMethod: p.PaymentMethod,
	}
}

func decodeStatus(d *jx.Decoder) (string, error) {
	var status string
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		if string(key) != "status" {
			return d.Skip()
		}
		v, err := d.Str()
		status = v
		return err
	})
	return status, err
}

func encodeMoney(e *jx.Encoder, v decimal.Decimal) {
	e.Num(jx.Num(v.String()))
}

func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(o.ID) })
		e.Field("customerId", func(e *jx.Encoder) { e.Int64(o.CustomerID) })
		e.Field("customer", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("id", func(e *jx.Encoder) { e.Int64(o.Customer.ID) })
				e.Field("name", func(e *jx.Encoder) { e.Str(o.Customer.Name) })
				e.Field("email", func(e *jx.Encoder) { e.Str(o.Customer.Email) })
				e.Field("enrolledAt", func(e *jx.Encoder) { e.Str(o.Customer.EnrolledAt.Format(time.DateOnly)) })
			})
		})
		e.Field("address", func(e *jx.Encoder) {
			a := o.Address
			e.Obj(func(e *jx.Encoder) {
				e.Field("street", func(e *jx.Encoder) { e.Str(a.Street) })
				e.Field("number", func(e *jx.Encoder) { e.Str(a.Number) })
				e.Field("district", func(e *jx.Encoder) { e.Str(a.District) })
				e.Field("city", func(e *jx.Encoder) { e.Str(a.City) })
				e.Field("state", func(e *jx.Encoder) { e.Str(a.State) })
				e.Field("zipCode", func(e *jx.Encoder) { e.Str(a.ZipCode) })
			})
		})
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, it := range o.Items {
					e.Obj(func(e *jx.Encoder) {
						e.Field("title", func(e *jx.Encoder) { e.Str(it.Title) })
						e.Field("quantity", func(e *jx.Encoder) { e.Int(it.Quantity) })
						e.Field("unitPrice", func(e *jx.Encoder) { encodeMoney(e, it.UnitPrice) })
						e.Field("subtotal", func(e *jx.Encoder) { encodeMoney(e, it.Subtotal()) })
					})
				}
			})
		})
		e.Field("itemTotal", func(e *jx.Encoder) { encodeMoney(e, o.ItemTotal) })
		e.Field("discount", func(e *jx.Encoder) { encodeMoney(e, o.Discount) })
		e.Field("freight", func(e *jx.Encoder) { encodeMoney(e, o.Freight) })
		e.Field("total", func(e *jx.Encoder) { encodeMoney(e, o.Total) })
		e.Field("paymentMethod", func(e *jx.Encoder) { e.Str(o.PaymentMethod) })
		e.Field("loyaltyTier", func(e *jx.Encoder) { e.Str(o.LoyaltyTier.String()) })
		e.Field("shippingZone", func(e *jx.Encoder) { e.Str(o.ShippingZone.String()) })
		e.Field("status", func(e *jx.Encoder) { e.Str(o.Status.String()) })
		e.Field("createdAt", func(e *jx.Encoder) { e.Str(o.CreatedAt.UTC().Format(time.RFC3339)) })
	})
}

func encodeProfile(e *jx.Encoder, p loyalty.Profile) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("customerId", func(e *jx.Encoder) { e.Int64(p.CustomerID) })
		e.Field("tenureYears", func(e *jx.Encoder) { e.Int(p.TenureYears) })
		e.Field("tier", func(e *jx.Encoder) { e.Str(p.Tier.String()) })
		e.Field("discountRate", func(e *jx.Encoder) { encodeMoney(e, p.Tier.Rate()) })
	})
}
