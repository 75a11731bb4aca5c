// Package order prices and places an order for a single listing.
package order

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/bazarteer/bazaar/internal/api"
	"github.com/bazarteer/bazaar/internal/validate"
)

// Pricing constants.
const (
	Shipping      = 5.00
	ProvisionRate = 0.05
	TaxRate       = 0.22
)

// Product is the listing being bought.
type Product struct {
	ID       string
	SellerID string
	Title    string
	Location string
	Price    float64
}

// ProductFromListing converts a feed listing.
func ProductFromListing(l api.Listing) Product {
	return Product{
		ID:       l.ID.String(),
		SellerID: l.OwnerID.String(),
		Title:    l.Name,
		Location: l.Location,
		Price:    l.Price,
	}
}

// Quote is the price breakdown shown before confirming.
type Quote struct {
	Price     float64
	Shipping  float64
	Provision float64
	Tax       float64
	Total     float64
}

// QuoteFor computes the breakdown for price. Tax applies to price, shipping
// and provision together. Every amount is rounded to cents; Total is the
// rounded exact sum, not the sum of rounded parts.
func QuoteFor(price float64) Quote {
	provision := price * ProvisionRate
	tax := (price + Shipping + provision) * TaxRate
	return Quote{
		Price:     cents(price),
		Shipping:  Shipping,
		Provision: cents(provision),
		Tax:       cents(tax),
		Total:     cents(price + Shipping + provision + tax),
	}
}

func cents(v float64) float64 {
	return math.Round(v*100) / 100
}

// Form holds billing and card details. Card details are never persisted.
type Form struct {
	Email      string `json:"email" validate:"required"`
	PostalCode string `json:"postalCode" validate:"required"`
	City       string `json:"city" validate:"required"`
	Country    string `json:"country" validate:"required"`
	Telephone  string `json:"telephone"`
	CardNumber string `json:"cardNumber" validate:"required"`
	Expiry     string `json:"expiry" validate:"required"`
	CVV        string `json:"cvv" validate:"required"`
}

const (
	billingMessage = "Please fill in all required billing fields"
	cardMessage    = "Please fill in all card details"
)

var messages = map[string]string{
	"email":      billingMessage,
	"postalCode": billingMessage,
	"city":       billingMessage,
	"country":    billingMessage,
	"cardNumber": cardMessage,
	"expiry":     cardMessage,
	"cvv":        cardMessage,
}

// Normalize applies the card field formatting.
func (f Form) Normalize() Form {
	f.Email = strings.TrimSpace(f.Email)
	f.PostalCode = strings.TrimSpace(f.PostalCode)
	f.City = strings.TrimSpace(f.City)
	f.Country = strings.TrimSpace(f.Country)
	f.Telephone = strings.TrimSpace(f.Telephone)
	f.CardNumber = FormatCardNumber(f.CardNumber)
	f.Expiry = FormatExpiry(f.Expiry)
	f.CVV = ClampCVV(f.CVV)
	return f
}

// Validate checks that billing and card details are present. Billing
// fields are reported before card fields.
func (f Form) Validate() error {
	return validate.Struct(f, messages)
}

// CustomerLocation is the buyer's location as sent with the order.
func (f Form) CustomerLocation() string {
	switch {
	case f.City == "":
		return f.Country
	case f.Country == "":
		return f.City
	}
	return f.City + ", " + f.Country
}

// Orderer is the API call an order makes.
type Orderer interface {
	PlaceOrder(ctx context.Context, req api.OrderRequest) error
}

// Error is an order the server refused. InvalidCard is set when the server
// rejected the card details specifically.
type Error struct {
	InvalidCard bool
	Message     string
	Err         error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

// Placer submits orders.
type Placer struct {
	api Orderer
	log *zap.Logger
}

// NewPlacer returns a Placer.
func NewPlacer(o Orderer, log *zap.Logger) *Placer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Placer{api: o, log: log}
}

// Place normalizes and validates f, then submits one order for p at the
// quoted total. Invalid forms return *validate.Error without a request.
func (pl *Placer) Place(ctx context.Context, p Product, f Form) (Quote, error) {
	f = f.Normalize()
	if err := f.Validate(); err != nil {
		return Quote{}, err
	}
	q := QuoteFor(p.Price)
	req := api.OrderRequest{
		SellerID:         p.SellerID,
		CustomerLocation: f.CustomerLocation(),
		ProductLocation:  p.Location,
		FinalPrice:       q.Total,
		ProductID:        p.ID,
		CardNum:          f.CardNumber,
		Expiry:           f.Expiry,
		CVV:              f.CVV,
	}
	if err := pl.api.PlaceOrder(ctx, req); err != nil {
		pl.log.Warn("order rejected", zap.String("product", p.ID), zap.Error(err))
		return q, classify(err)
	}
	pl.log.Info("order placed", zap.String("product", p.ID), zap.Float64("total", q.Total))
	return q, nil
}

// classify decides whether a rejection is about the card. Only a client
// error carrying an "error" field counts; anything else is a generic
// failure with the server's message when there is one.
func classify(err error) *Error {
	var apiErr *api.Error
	if errors.As(err, &apiErr) && api.HasErrorField(err) {
		switch apiErr.Status {
		case http.StatusBadRequest, http.StatusPaymentRequired, http.StatusUnprocessableEntity:
			return &Error{InvalidCard: true, Message: "Card details are incorrect!", Err: err}
		}
	}
	return &Error{Message: api.MessageOr(err, "Failed to place order"), Err: err}
}
