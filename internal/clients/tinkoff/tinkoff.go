// Package tinkoff implements a client for the Tinkoff Invest REST API.
// Every call is a POST of a JSON body to a fully qualified service
// method path with a bearer token.
package tinkoff

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"github.com/holdsum/holdsum/errs"
	"github.com/holdsum/holdsum/internal/domain"
)

const (
	requestTimeout = 10 * time.Second
	apiPrefix      = "/tinkoff.public.invest.api.contract.v1."
)

// Client sends authorized requests to the Tinkoff Invest REST API.
type Client struct {
	http  *resty.Client
	token string
}

// New creates a Client for the given base URL and bearer token.
func New(baseURL, token string) *Client {
	return &Client{
		http:  resty.New().SetBaseURL(strings.TrimRight(baseURL, "/")).SetTimeout(requestTimeout),
		token: token,
	}
}

// flexInt parses integers that the REST gateway renders as JSON numbers
// or strings depending on the field width.
type flexInt int64

func (f *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return err
	}
	*f = flexInt(n)
	return nil
}

// MoneyValue an amount split into integer units and nano-units. Also used
// for bare quantities, where currency is empty.
type MoneyValue struct {
	Currency string  `json:"currency"`
	Units    flexInt `json:"units"`
	Nano     flexInt `json:"nano"`
}

// Decimal converts units plus nano-units into a decimal amount.
func (m MoneyValue) Decimal() decimal.Decimal {
	return decimal.New(int64(m.Units), 0).Add(decimal.New(int64(m.Nano), -9))
}

// Account one brokerage account.
type Account struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

// AccountStatusOpen marks accounts available for operations requests.
const AccountStatusOpen = "ACCOUNT_STATUS_OPEN"

type accountsResponse struct {
	Accounts []Account `json:"accounts"`
}

// Accounts returns all brokerage accounts visible to the token.
func (c *Client) Accounts(ctx context.Context) ([]Account, error) {
	var out accountsResponse
	if err := c.post(ctx, "UsersService/GetAccounts", struct{}{}, &out); err != nil {
		return nil, err
	}
	return out.Accounts, nil
}

type positionsResponse struct {
	Money []MoneyValue `json:"money"`
}

// Money returns the cash holdings of one account.
func (c *Client) Money(ctx context.Context, accountID string) ([]MoneyValue, error) {
	var out positionsResponse
	if err := c.post(ctx, "OperationsService/GetPositions", map[string]string{"accountId": accountID}, &out); err != nil {
		return nil, err
	}
	return out.Money, nil
}

// PortfolioPosition one instrument holding of an account.
type PortfolioPosition struct {
	FIGI                 string     `json:"figi"`
	InstrumentType       string     `json:"instrumentType"`
	Quantity             MoneyValue `json:"quantity"`
	CurrentPrice         MoneyValue `json:"currentPrice"`
	AveragePositionPrice MoneyValue `json:"averagePositionPrice"`
}

type portfolioResponse struct {
	Positions []PortfolioPosition `json:"positions"`
}

// Portfolio returns the instrument holdings of one account.
func (c *Client) Portfolio(ctx context.Context, accountID string) ([]PortfolioPosition, error) {
	var out portfolioResponse
	if err := c.post(ctx, "OperationsService/GetPortfolio", map[string]string{"accountId": accountID}, &out); err != nil {
		return nil, err
	}
	return out.Positions, nil
}

// Instrument identification data for one tradable instrument.
type Instrument struct {
	FIGI      string `json:"figi"`
	Ticker    string `json:"ticker"`
	ClassCode string `json:"classCode"`
}

type instrumentResponse struct {
	Instrument Instrument `json:"instrument"`
}

// InstrumentByFIGI resolves one FIGI into instrument identification data.
func (c *Client) InstrumentByFIGI(ctx context.Context, figi string) (Instrument, error) {
	body := map[string]string{"idType": "INSTRUMENT_ID_TYPE_FIGI", "id": figi}

	var out instrumentResponse
	if err := c.post(ctx, "InstrumentsService/GetInstrumentBy", body, &out); err != nil {
		return Instrument{}, err
	}
	return out.Instrument, nil
}

func (c *Client) post(ctx context.Context, method string, body, out any) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+c.token).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(apiPrefix + method)
	if err != nil {
		return errs.New(string(domain.BrokerTinkoff), errs.KindTransport, errs.WithCause(err))
	}
	if !resp.IsSuccess() {
		return apiError(resp.StatusCode(), resp.Body())
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return errs.New(string(domain.BrokerTinkoff), errs.KindNormalization,
			errs.WithMessage("unexpected payload"), errs.WithCause(err))
	}
	return nil
}

type apiErrorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func apiError(status int, body []byte) *errs.E {
	var parsed apiErrorBody
	_ = json.Unmarshal(body, &parsed)

	msg := parsed.Message
	if msg == "" {
		msg = string(body)
	}
	e := errs.FromHTTPStatus(string(domain.BrokerTinkoff), status, msg)
	if parsed.Code != 0 {
		e.RawCode = strconv.Itoa(parsed.Code)
	}
	return e
}
