// Package ibgw implements the Interactive Brokers gateway socket
// protocol: a framed TCP exchange where the client starts the API,
// waits for the handshake acknowledgement, issues the account summary
// and positions requests concurrently and collects callback frames
// until both end signals arrive or the session deadline expires.
package ibgw

import (
	"context"
	"net"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/holdsum/holdsum/errs"
	"github.com/holdsum/holdsum/internal/domain"
	"github.com/holdsum/holdsum/pkg/retrier"
)

const (
	defaultTimeout = 15 * time.Second
	dialTimeout    = 5 * time.Second
	joinTimeout    = 2 * time.Second
	summaryReqID   = "1"
)

// Dialer opens the gateway connection. Swappable in tests.
type Dialer func(ctx context.Context, addr string) (net.Conn, error)

func defaultDialer(ctx context.Context, addr string) (net.Conn, error) {
	d := net.Dialer{Timeout: dialTimeout}
	return d.DialContext(ctx, "tcp", addr)
}

// Client runs one collect session per call against the gateway socket.
type Client struct {
	addr     string
	clientID int
	accounts map[string]struct{}
	timeout  time.Duration
	dial     Dialer
	retr     *retrier.Retrier
	logger   *zap.Logger
}

// Option configures the Client.
type Option func(*Client)

// WithAccounts restricts collected records to the given account ids.
func WithAccounts(ids []string) Option {
	return func(c *Client) {
		if len(ids) == 0 {
			return
		}
		c.accounts = make(map[string]struct{}, len(ids))
		for _, id := range ids {
			c.accounts[id] = struct{}{}
		}
	}
}

// WithTimeout bounds the whole session, handshake included.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithDialer replaces the TCP dialer.
func WithDialer(d Dialer) Option {
	return func(c *Client) {
		if d != nil {
			c.dial = d
		}
	}
}

// WithLogger sets the session logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a Client for the gateway at host:port identifying itself
// with clientID.
func New(host string, port, clientID int, opts ...Option) *Client {
	c := &Client{
		addr:     net.JoinHostPort(host, strconv.Itoa(port)),
		clientID: clientID,
		timeout:  defaultTimeout,
		dial:     defaultDialer,
		retr: retrier.New(
			retrier.WithMaxRetries(2),
			retrier.WithInitialInterval(500*time.Millisecond),
		),
		logger: zap.L(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Result the records collected by one session.
type Result struct {
	Balances  []domain.Balance
	Positions []domain.Position
}

// Collect runs one full session. On deadline expiry it returns whatever
// arrived; partial data is not an error. A non-benign error frame fails
// the whole session.
func (c *Client) Collect(ctx context.Context) (Result, error) {
	conn, err := retrier.DoWithData(c.retr, ctx, func(ctx context.Context) (net.Conn, error) {
		return c.dial(ctx, c.addr)
	})
	if err != nil {
		return Result{}, errs.New(string(domain.BrokerIBKR), errs.KindTransport,
			errs.WithMessage("gateway unreachable at "+c.addr), errs.WithCause(err))
	}
	defer conn.Close()

	s := newSession(conn, c.accounts, c.logger)
	go s.readLoop()

	deadline := time.NewTimer(c.timeout)
	defer deadline.Stop()

	if err := writeMessage(conn, msgStartAPI, strconv.Itoa(c.clientID)); err != nil {
		return Result{}, c.abort(s, conn, writeErr("startApi", err))
	}

	select {
	case <-s.handshake:
	case <-s.readerDone:
		if gwErr := s.firstErr(); gwErr != nil {
			return Result{}, gwErr
		}
		return Result{}, errs.New(string(domain.BrokerIBKR), errs.KindGateway,
			errs.WithMessage("connection closed before handshake"))
	case <-deadline.C:
		return c.finish(s, conn, true)
	case <-ctx.Done():
		return Result{}, c.abort(s, conn, ctx.Err())
	}

	// Both requests go out back to back; answer frames interleave freely.
	if err := writeMessage(conn, msgReqAccountSummary, summaryReqID, "All", "$LEDGER"); err != nil {
		return Result{}, c.abort(s, conn, writeErr("reqAccountSummary", err))
	}
	if err := writeMessage(conn, msgReqPositions); err != nil {
		return Result{}, c.abort(s, conn, writeErr("reqPositions", err))
	}

	summaryEnd, positionEnd := s.summaryEnd, s.positionEnd
	for summaryEnd != nil || positionEnd != nil {
		select {
		case <-summaryEnd:
			summaryEnd = nil
		case <-positionEnd:
			positionEnd = nil
		case <-s.readerDone:
			summaryEnd, positionEnd = nil, nil
		case <-deadline.C:
			return c.finish(s, conn, true)
		case <-ctx.Done():
			return Result{}, c.abort(s, conn, ctx.Err())
		}
	}

	return c.finish(s, conn, false)
}

// finish closes the connection, joins the reader and surfaces the first
// non-benign gateway error, if any.
func (c *Client) finish(s *session, conn net.Conn, timedOut bool) (Result, error) {
	_ = conn.Close()
	select {
	case <-s.readerDone:
	case <-time.After(joinTimeout):
		c.logger.Warn("gateway reader did not stop in time")
	}

	if gwErr := s.firstErr(); gwErr != nil {
		return Result{}, gwErr
	}

	res := s.snapshot()
	if timedOut {
		c.logger.Warn("gateway session deadline expired, returning collected records",
			zap.Int("balances", len(res.Balances)),
			zap.Int("positions", len(res.Positions)))
	}
	return res, nil
}

func (c *Client) abort(s *session, conn net.Conn, err error) error {
	_ = conn.Close()
	select {
	case <-s.readerDone:
	case <-time.After(joinTimeout):
	}
	return err
}

func writeErr(msg string, err error) *errs.E {
	return errs.New(string(domain.BrokerIBKR), errs.KindTransport,
		errs.WithMessage("write "+msg), errs.WithCause(err))
}
