// Package bybit implements a minimal signed client for the Bybit v5 REST
// API. Bybit wraps every response in a retCode envelope, including
// failures delivered with a 200 status.
package bybit

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
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

// Client signs and sends requests to the Bybit v5 REST API.
type Client struct {
	http       *resty.Client
	apiKey     string
	secret     string
	recvWindow int
	now        func() time.Time
}

// New creates a Client for the given base URL, credentials and receive
// window (milliseconds).
func New(baseURL, apiKey, secret string, recvWindow int) *Client {
	return &Client{
		http:       resty.New().SetBaseURL(strings.TrimRight(baseURL, "/")).SetTimeout(requestTimeout),
		apiKey:     apiKey,
		secret:     secret,
		recvWindow: recvWindow,
		now:        time.Now,
	}
}

// Coin one per-asset entry. Bybit omits or blanks amount fields depending
// on the account type, so callers pick the first populated one.
type Coin struct {
	Coin                string `json:"coin"`
	Currency            string `json:"currency"`
	WalletBalance       string `json:"walletBalance"`
	TransferBalance     string `json:"transferBalance"`
	AvailableToWithdraw string `json:"availableToWithdraw"`
	Equity              string `json:"equity"`
	Balance             string `json:"balance"`
}

type walletBalanceResult struct {
	List []struct {
		AccountType string `json:"accountType"`
		Coin        []Coin `json:"coin"`
	} `json:"list"`
}

// WalletCoins returns per-asset entries of the wallet-balance endpoint
// for the given venue account type (UNIFIED, INVESTMENT, ...).
func (c *Client) WalletCoins(ctx context.Context, accountType string) ([]Coin, error) {
	params := url.Values{}
	params.Set("accountType", accountType)

	var out walletBalanceResult
	if err := c.signedGet(ctx, "/v5/account/wallet-balance", params, &out); err != nil {
		return nil, err
	}

	var coins []Coin
	for _, acc := range out.List {
		coins = append(coins, acc.Coin...)
	}
	return coins, nil
}

type transferBalanceResult struct {
	Balance []Coin `json:"balance"`
	List    []Coin `json:"list"`
}

// TransferCoins returns per-asset entries of the transferable-balance
// endpoint for the given venue account type (FUND, EARN, ...).
func (c *Client) TransferCoins(ctx context.Context, accountType string) ([]Coin, error) {
	params := url.Values{}
	params.Set("accountType", accountType)

	var out transferBalanceResult
	if err := c.signedGet(ctx, "/v5/asset/transfer/query-account-coin-balance", params, &out); err != nil {
		return nil, err
	}

	if len(out.Balance) > 0 {
		return out.Balance, nil
	}
	return out.List, nil
}

// EarnEntry one flexible-saving position row.
type EarnEntry struct {
	Coin   string `json:"coin"`
	Amount string `json:"amount"`
}

type earnPositionResult struct {
	List []EarnEntry `json:"list"`
}

// EarnPositions returns flexible-saving holdings.
func (c *Client) EarnPositions(ctx context.Context) ([]EarnEntry, error) {
	params := url.Values{}
	params.Set("category", "FlexibleSaving")

	var out earnPositionResult
	if err := c.signedGet(ctx, "/v5/earn/position", params, &out); err != nil {
		return nil, err
	}
	return out.List, nil
}

type tickersResult struct {
	List []struct {
		Symbol    string `json:"symbol"`
		LastPrice string `json:"lastPrice"`
	} `json:"list"`
}

// TickerPrice returns the last spot price for the pair symbol. The
// endpoint is public and needs no signature.
func (c *Client) TickerPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	params := url.Values{}
	params.Set("category", "spot")
	params.Set("symbol", symbol)

	resp, err := c.http.R().
		SetContext(ctx).
		Get("/v5/market/tickers?" + params.Encode())
	var out tickersResult
	if err := c.finish(resp, err, &out); err != nil {
		return decimal.Decimal{}, err
	}

	if len(out.List) == 0 {
		return decimal.Decimal{}, errs.New(string(domain.BrokerBybit), errs.KindNormalization,
			errs.WithMessage("no ticker for "+symbol))
	}
	price, err := decimal.NewFromString(out.List[0].LastPrice)
	if err != nil {
		return decimal.Decimal{}, errs.New(string(domain.BrokerBybit), errs.KindNormalization,
			errs.WithMessage("unparseable ticker price "+out.List[0].LastPrice), errs.WithCause(err))
	}
	return price, nil
}

// signedGet signs ts + apiKey + recvWindow + encoded query and carries
// the signature in headers. The query rides in the URL exactly as signed.
func (c *Client) signedGet(ctx context.Context, path string, params url.Values, out any) error {
	query := ""
	if params != nil {
		query = params.Encode()
	}
	ts := strconv.FormatInt(c.now().UnixMilli(), 10)
	rw := strconv.Itoa(c.recvWindow)

	mac := hmac.New(sha256.New, []byte(c.secret))
	mac.Write([]byte(ts + c.apiKey + rw + query))
	sig := hex.EncodeToString(mac.Sum(nil))

	target := path
	if query != "" {
		target += "?" + query
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("X-BAPI-API-KEY", c.apiKey).
		SetHeader("X-BAPI-SIGN", sig).
		SetHeader("X-BAPI-SIGN-TYPE", "2").
		SetHeader("X-BAPI-TIMESTAMP", ts).
		SetHeader("X-BAPI-RECV-WINDOW", rw).
		SetHeader("Content-Type", "application/json").
		Get(target)
	return c.finish(resp, err, out)
}

type envelope struct {
	RetCode int             `json:"retCode"`
	RetMsg  string          `json:"retMsg"`
	Result  json.RawMessage `json:"result"`
}

func (c *Client) finish(resp *resty.Response, err error, out any) error {
	if err != nil {
		return errs.New(string(domain.BrokerBybit), errs.KindTransport, errs.WithCause(err))
	}
	if !resp.IsSuccess() {
		return errs.FromHTTPStatus(string(domain.BrokerBybit), resp.StatusCode(), string(resp.Body()))
	}

	var env envelope
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		return errs.New(string(domain.BrokerBybit), errs.KindNormalization,
			errs.WithMessage("unexpected payload"), errs.WithCause(err))
	}
	if env.RetCode != 0 {
		return apiError(env.RetCode, env.RetMsg)
	}
	if out == nil || len(env.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return errs.New(string(domain.BrokerBybit), errs.KindNormalization,
			errs.WithMessage("unexpected result payload"), errs.WithCause(err))
	}
	return nil
}

func apiError(retCode int, retMsg string) *errs.E {
	kind := errs.KindTransport
	switch retCode {
	case 10003, 10004, 33004:
		kind = errs.KindAuth
	case 10006, 10018:
		kind = errs.KindRateLimited
	}
	return errs.New(string(domain.BrokerBybit), kind,
		errs.WithRawCode(strconv.Itoa(retCode)), errs.WithMessage(retMsg))
}
