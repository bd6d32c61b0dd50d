// Package fx fetches fiat exchange rates from the open.er-api.com public
// endpoint.
package fx

import (
	"context"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"github.com/holdsum/holdsum/errs"
)

const (
	// DefaultBaseURL the public endpoint; no credentials required.
	DefaultBaseURL = "https://open.er-api.com"

	requestTimeout = 10 * time.Second
	source         = "fx"
)

// Client fetches USD-based fiat rates.
type Client struct {
	http *resty.Client
}

// New creates a Client. An empty baseURL selects the public endpoint.
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		http: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetTimeout(requestTimeout).
			SetRetryCount(2).
			SetRetryWaitTime(500 * time.Millisecond),
	}
}

type ratesResponse struct {
	Result string                     `json:"result"`
	Rates  map[string]decimal.Decimal `json:"rates"`
}

// USDRate returns how many units of currency one USD buys.
func (c *Client) USDRate(ctx context.Context, currency string) (decimal.Decimal, error) {
	resp, err := c.http.R().SetContext(ctx).Get("/v6/latest/USD")
	if err != nil {
		return decimal.Decimal{}, errs.New(source, errs.KindTransport, errs.WithCause(err))
	}
	if !resp.IsSuccess() {
		return decimal.Decimal{}, errs.FromHTTPStatus(source, resp.StatusCode(), string(resp.Body()))
	}

	var out ratesResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return decimal.Decimal{}, errs.New(source, errs.KindNormalization,
			errs.WithMessage("unexpected payload"), errs.WithCause(err))
	}

	rate, ok := out.Rates[strings.ToUpper(currency)]
	if !ok || !rate.IsPositive() {
		return decimal.Decimal{}, errs.New(source, errs.KindNormalization,
			errs.WithMessage("no usable rate for "+strings.ToUpper(currency)))
	}
	return rate, nil
}
