// Package binance implements a minimal signed client for the Binance
// spot REST API.
package binance

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"github.com/holdsum/holdsum/errs"
	"github.com/holdsum/holdsum/internal/domain"
)

const requestTimeout = 10 * time.Second

// Client signs and sends requests to the Binance spot REST API.
type Client struct {
	http   *resty.Client
	apiKey string
	secret string
	now    func() time.Time
}

// New creates a Client for the given base URL and credentials.
func New(baseURL, apiKey, secret string) *Client {
	return &Client{
		http:   resty.New().SetBaseURL(strings.TrimRight(baseURL, "/")).SetTimeout(requestTimeout),
		apiKey: apiKey,
		secret: secret,
		now:    time.Now,
	}
}

// AccountBalance one asset row from the spot account endpoint.
type AccountBalance struct {
	Asset  string `json:"asset"`
	Free   string `json:"free"`
	Locked string `json:"locked"`
}

type accountResponse struct {
	Balances []AccountBalance `json:"balances"`
}

// Account returns per-asset balances of the spot account.
func (c *Client) Account(ctx context.Context) ([]AccountBalance, error) {
	var out accountResponse
	if err := c.signedGet(ctx, "/api/v3/account", nil, &out); err != nil {
		return nil, err
	}
	return out.Balances, nil
}

// FundingAsset one asset row from the funding wallet endpoint.
type FundingAsset struct {
	Asset  string `json:"asset"`
	Free   string `json:"free"`
	Locked string `json:"locked"`
	Frozen string `json:"frozen"`
}

// FundingAssets returns funding wallet holdings.
func (c *Client) FundingAssets(ctx context.Context) ([]FundingAsset, error) {
	params := url.Values{}
	params.Set("needBtcValuation", "false")

	var out []FundingAsset
	if err := c.signedPost(ctx, "/sapi/v1/asset/get-funding-asset", params, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// EarnPosition one row from the simple-earn position endpoints. Flexible
// rows report totalAmount, locked ones amount.
type EarnPosition struct {
	Asset          string `json:"asset"`
	CollateralCoin string `json:"collateralCoin"`
	TotalAmount    string `json:"totalAmount"`
	Amount         string `json:"amount"`
}

type earnPositionsResponse struct {
	Rows []EarnPosition `json:"rows"`
}

// FlexibleEarnPositions returns simple-earn flexible product holdings.
func (c *Client) FlexibleEarnPositions(ctx context.Context) ([]EarnPosition, error) {
	return c.earnPositions(ctx, "/sapi/v1/simple-earn/flexible/position")
}

// LockedEarnPositions returns simple-earn locked product holdings.
func (c *Client) LockedEarnPositions(ctx context.Context) ([]EarnPosition, error) {
	return c.earnPositions(ctx, "/sapi/v1/simple-earn/locked/position")
}

func (c *Client) earnPositions(ctx context.Context, path string) ([]EarnPosition, error) {
	params := url.Values{}
	params.Set("size", "100")

	var out earnPositionsResponse
	if err := c.signedGet(ctx, path, params, &out); err != nil {
		return nil, err
	}
	return out.Rows, nil
}

type tickerResponse struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

// TickerPrice returns the last price for the pair symbol. The endpoint is
// public and needs no signature.
func (c *Client) TickerPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("symbol", symbol).
		Get("/api/v3/ticker/price")
	var out tickerResponse
	if err := c.finish(resp, err, &out); err != nil {
		return decimal.Decimal{}, err
	}

	price, err := decimal.NewFromString(out.Price)
	if err != nil {
		return decimal.Decimal{}, errs.New(string(domain.BrokerBinance), errs.KindNormalization,
			errs.WithMessage("unparseable ticker price "+out.Price), errs.WithCause(err))
	}
	return price, nil
}

// signQuery appends the millisecond timestamp, encodes the parameters and
// appends the hex HMAC-SHA256 signature over the encoded string.
func (c *Client) signQuery(params url.Values) string {
	if params == nil {
		params = url.Values{}
	}
	params.Set("timestamp", strconv.FormatInt(c.now().UnixMilli(), 10))

	query := params.Encode()
	mac := hmac.New(sha256.New, []byte(c.secret))
	mac.Write([]byte(query))
	return query + "&signature=" + hex.EncodeToString(mac.Sum(nil))
}

// The signed query rides in the URL untouched so the server verifies the
// exact byte sequence that was signed.
func (c *Client) signedGet(ctx context.Context, path string, params url.Values, out any) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("X-MBX-APIKEY", c.apiKey).
		Get(path + "?" + c.signQuery(params))
	return c.finish(resp, err, out)
}

func (c *Client) signedPost(ctx context.Context, path string, params url.Values, out any) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("X-MBX-APIKEY", c.apiKey).
		Post(path + "?" + c.signQuery(params))
	return c.finish(resp, err, out)
}

func (c *Client) finish(resp *resty.Response, err error, out any) error {
	if err != nil {
		return errs.New(string(domain.BrokerBinance), errs.KindTransport, errs.WithCause(err))
	}
	if !resp.IsSuccess() {
		return apiError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return errs.New(string(domain.BrokerBinance), errs.KindNormalization,
			errs.WithMessage("unexpected payload"), errs.WithCause(err))
	}
	return nil
}

type apiErrorBody struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func apiError(resp *resty.Response) *errs.E {
	var body apiErrorBody
	_ = json.Unmarshal(resp.Body(), &body)

	kind := errs.KindTransport
	switch {
	case body.Code == -2014 || body.Code == -2015 || body.Code == -1022:
		kind = errs.KindAuth
	case body.Code == -1003 || body.Code == -1015:
		kind = errs.KindRateLimited
	case resp.StatusCode() == http.StatusUnauthorized || resp.StatusCode() == http.StatusForbidden:
		kind = errs.KindAuth
	case resp.StatusCode() == http.StatusTooManyRequests:
		kind = errs.KindRateLimited
	}

	opts := []errs.Option{errs.WithHTTP(resp.StatusCode()), errs.WithMessage(body.Msg)}
	if body.Code != 0 {
		opts = append(opts, errs.WithRawCode(strconv.Itoa(body.Code)))
	}
	return errs.New(string(domain.BrokerBinance), kind, opts...)
}
