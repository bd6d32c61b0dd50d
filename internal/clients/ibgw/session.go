package ibgw

import (
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/holdsum/holdsum/errs"
	"github.com/holdsum/holdsum/internal/domain"
)

// Connection status notices the gateway emits after startApi. Not
// failures.
var benignCodes = map[int]struct{}{
	2104: {}, 2106: {}, 2107: {}, 2108: {}, 2119: {}, 2158: {},
}

// session owns the reader side of one gateway connection. The reader
// goroutine is the only writer of its fields; Collect reads them under
// mu or after readerDone.
type session struct {
	conn     net.Conn
	accounts map[string]struct{}
	logger   *zap.Logger

	handshake   chan struct{}
	summaryEnd  chan struct{}
	positionEnd chan struct{}
	readerDone  chan struct{}

	handshakeSeen bool
	summarySeen   bool
	positionsSeen bool

	mu         sync.Mutex
	balances   []domain.Balance
	positions  []domain.Position
	gatewayErr *errs.E
}

func newSession(conn net.Conn, accounts map[string]struct{}, logger *zap.Logger) *session {
	return &session{
		conn:        conn,
		accounts:    accounts,
		logger:      logger,
		handshake:   make(chan struct{}),
		summaryEnd:  make(chan struct{}),
		positionEnd: make(chan struct{}),
		readerDone:  make(chan struct{}),
	}
}

// readLoop consumes frames until the connection closes.
func (s *session) readLoop() {
	defer close(s.readerDone)
	for {
		fields, err := readMessage(s.conn)
		if err != nil {
			return
		}
		s.dispatch(fields)
	}
}

func (s *session) dispatch(fields []string) {
	if len(fields) == 0 {
		return
	}
	switch fields[0] {
	case msgNextValidID:
		if !s.handshakeSeen {
			s.handshakeSeen = true
			close(s.handshake)
		}
	case msgAccountSummary:
		s.onAccountSummary(fields)
	case msgAccountSummaryEnd:
		if !s.summarySeen {
			s.summarySeen = true
			close(s.summaryEnd)
		}
	case msgPosition:
		s.onPosition(fields)
	case msgPositionEnd:
		if !s.positionsSeen {
			s.positionsSeen = true
			close(s.positionEnd)
		}
	case msgError:
		s.onError(fields)
	default:
		s.logger.Debug("ignoring gateway message", zap.String("type", fields[0]))
	}
}

// accountSummary|reqId|account|tag|value|currency
func (s *session) onAccountSummary(fields []string) {
	if len(fields) < 6 {
		s.logger.Debug("malformed accountSummary frame", zap.Int("fields", len(fields)))
		return
	}
	account, tag, value, currency := fields[2], fields[3], fields[4], fields[5]

	if tag != "CashBalance" || !s.wantAccount(account) {
		return
	}
	amount, err := decimal.NewFromString(value)
	if err != nil {
		s.logger.Debug("unparseable cash balance", zap.String("value", value), zap.Error(err))
		return
	}
	if amount.IsZero() {
		return
	}

	s.mu.Lock()
	s.balances = append(s.balances, domain.Balance{
		Broker:    domain.BrokerIBKR,
		Currency:  strings.ToUpper(currency),
		Available: amount,
		Total:     amount,
	})
	s.mu.Unlock()
}

// position|account|symbol|secType|currency|qty|avgCost
func (s *session) onPosition(fields []string) {
	if len(fields) < 7 {
		s.logger.Debug("malformed position frame", zap.Int("fields", len(fields)))
		return
	}
	account, symbol, currency, qty, avgCost := fields[1], fields[2], fields[4], fields[5], fields[6]

	if !s.wantAccount(account) {
		return
	}
	quantity, err := decimal.NewFromString(qty)
	if err != nil {
		s.logger.Debug("unparseable position quantity", zap.String("value", qty), zap.Error(err))
		return
	}
	if quantity.IsZero() {
		return
	}
	avgPrice, err := decimal.NewFromString(avgCost)
	if err != nil {
		avgPrice = decimal.Decimal{}
	}

	s.mu.Lock()
	s.positions = append(s.positions, domain.Position{
		Broker:   domain.BrokerIBKR,
		Symbol:   symbol,
		Quantity: quantity,
		AvgPrice: avgPrice,
		Currency: strings.ToUpper(currency),
	})
	s.mu.Unlock()
}

// error|code|message
func (s *session) onError(fields []string) {
	if len(fields) < 3 {
		return
	}
	code, err := strconv.Atoi(fields[1])
	if err != nil {
		code = -1
	}
	if _, benign := benignCodes[code]; benign {
		s.logger.Debug("gateway status", zap.Int("code", code), zap.String("message", fields[2]))
		return
	}

	s.mu.Lock()
	if s.gatewayErr == nil {
		s.gatewayErr = errs.New(string(domain.BrokerIBKR), errs.KindGateway,
			errs.WithRawCode(fields[1]), errs.WithMessage(fields[2]))
	}
	s.mu.Unlock()
}

func (s *session) wantAccount(account string) bool {
	if len(s.accounts) == 0 {
		return true
	}
	_, ok := s.accounts[account]
	return ok
}

func (s *session) firstErr() *errs.E {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gatewayErr
}

func (s *session) snapshot() Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Result{
		Balances:  append([]domain.Balance(nil), s.balances...),
		Positions: append([]domain.Position(nil), s.positions...),
	}
}
