// Package publish turns uploaded media and a filled-in form into a listing.
package publish

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/bazarteer/bazaar/internal/api"
	"github.com/bazarteer/bazaar/internal/upload"
	"github.com/bazarteer/bazaar/internal/validate"
)

// Listing defaults applied when a draft leaves them empty.
const (
	DefaultCondition = "NEW"
	DefaultLocation  = "Ljubljana"
	DefaultStock     = 1
)

// Submitter is the API call publish makes.
type Submitter interface {
	Publish(ctx context.Context, req api.PublishRequest) error
}

// Draft is a listing ready for submission.
type Draft struct {
	Title       string `json:"title" validate:"notblank"`
	Description string `json:"description"`
	Price       string `json:"price" validate:"price"`
	Condition   string `json:"condition"`
	Location    string `json:"location"`
	Stock       int    `json:"stock"`
	Media       []upload.Asset
}

var messages = map[string]string{
	"title": "Please enter a title",
	"price": "Please enter a valid price",
}

// Validate checks the draft without contacting the server.
func (d Draft) Validate() error {
	return validate.Struct(d, messages)
}

// Request builds the API request for d. d must be valid.
func (d Draft) Request() api.PublishRequest {
	price, _ := validate.ParsePrice(d.Price)
	req := api.PublishRequest{
		Name:        strings.TrimSpace(d.Title),
		Description: d.Description,
		Condition:   d.Condition,
		Location:    d.Location,
		Price:       price,
		Stock:       d.Stock,
		ContentURLs: make([]string, 0, len(d.Media)),
	}
	if req.Condition == "" {
		req.Condition = DefaultCondition
	}
	if req.Location == "" {
		req.Location = DefaultLocation
	}
	if req.Stock <= 0 {
		req.Stock = DefaultStock
	}
	for _, a := range d.Media {
		req.ContentURLs = append(req.ContentURLs, a.RemoteURL)
	}
	return req
}

// Error is a listing the server refused.
type Error struct {
	Message string
	Err     error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

// Publisher submits drafts.
type Publisher struct {
	api Submitter
	log *zap.Logger
}

// New returns a Publisher.
func New(s Submitter, log *zap.Logger) *Publisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Publisher{api: s, log: log}
}

// Publish validates d and submits it once. An invalid draft returns a
// *validate.Error without any request; a rejected one returns *Error.
func (p *Publisher) Publish(ctx context.Context, d Draft) error {
	if err := d.Validate(); err != nil {
		return err
	}
	req := d.Request()
	if err := p.api.Publish(ctx, req); err != nil {
		p.log.Warn("publish rejected", zap.String("title", req.Name), zap.Error(err))
		return &Error{Message: api.MessageOr(err, "Failed to post content"), Err: err}
	}
	p.log.Info("listing published",
		zap.String("title", req.Name),
		zap.Float64("price", req.Price),
		zap.Int("media", len(req.ContentURLs)))
	return nil
}
