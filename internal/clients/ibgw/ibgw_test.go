package ibgw

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/holdsum/holdsum/errs"
	"github.com/holdsum/holdsum/internal/domain"
	"github.com/holdsum/holdsum/pkg/retrier"
)

// gatewayScript handles one inbound frame. Returning false stops the
// fake gateway loop.
type gatewayScript func(msg []string, conn net.Conn) bool

// fakeGateway serves a scripted session over an in-memory pipe.
func fakeGateway(script gatewayScript) Dialer {
	return func(ctx context.Context, addr string) (net.Conn, error) {
		client, server := net.Pipe()
		go func() {
			defer server.Close()
			for {
				msg, err := readMessage(server)
				if err != nil {
					return
				}
				if !script(msg, server) {
					return
				}
			}
		}()
		return client, nil
	}
}

func newTestClient(t *testing.T, script gatewayScript, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{
		WithDialer(fakeGateway(script)),
		WithLogger(zap.NewNop()),
		WithTimeout(2 * time.Second),
	}, opts...)
	return New("gw.local", 7497, 7, opts...)
}

// fullSession answers every request with complete data for two accounts.
func fullSession(msg []string, conn net.Conn) bool {
	switch msg[0] {
	case msgStartAPI:
		writeMessage(conn, msgNextValidID, "1")
		writeMessage(conn, msgError, "2104", "Market data farm connection is OK")
	case msgReqAccountSummary:
		writeMessage(conn, msgAccountSummary, "1", "U111", "CashBalance", "1000.50", "USD")
		writeMessage(conn, msgAccountSummary, "1", "U111", "CashBalance", "0", "EUR")
		writeMessage(conn, msgAccountSummary, "1", "U111", "NetLiquidation", "9999", "USD")
		writeMessage(conn, msgAccountSummary, "1", "U222", "CashBalance", "42.42", "CHF")
		writeMessage(conn, msgAccountSummaryEnd, "1")
	case msgReqPositions:
		writeMessage(conn, msgPosition, "U111", "AAPL", "STK", "USD", "10", "182.31")
		writeMessage(conn, msgPosition, "U111", "VT", "STK", "USD", "0", "100")
		writeMessage(conn, msgPosition, "U222", "SPY", "STK", "USD", "2.5", "0")
		writeMessage(conn, msgPositionEnd)
	}
	return true
}

func TestCollectFullSession(t *testing.T) {
	c := newTestClient(t, fullSession)

	res, err := c.Collect(context.Background())
	require.NoError(t, err)

	// zero cash row and non-cash tag dropped
	require.Len(t, res.Balances, 2)
	assert.Equal(t, domain.BrokerIBKR, res.Balances[0].Broker)
	assert.Equal(t, "USD", res.Balances[0].Currency)
	assert.Equal(t, "1000.5", res.Balances[0].Total.String())
	assert.Equal(t, res.Balances[0].Available, res.Balances[0].Total)
	assert.Equal(t, "CHF", res.Balances[1].Currency)

	// zero quantity row dropped
	require.Len(t, res.Positions, 2)
	assert.Equal(t, "AAPL", res.Positions[0].Symbol)
	assert.Equal(t, "10", res.Positions[0].Quantity.String())
	assert.Equal(t, "182.31", res.Positions[0].AvgPrice.String())
	assert.Equal(t, "SPY", res.Positions[1].Symbol)
	assert.True(t, res.Positions[1].AvgPrice.IsZero())
}

func TestCollectAccountFilter(t *testing.T) {
	c := newTestClient(t, fullSession, WithAccounts([]string{"U111"}))

	res, err := c.Collect(context.Background())
	require.NoError(t, err)

	require.Len(t, res.Balances, 1)
	assert.Equal(t, "USD", res.Balances[0].Currency)
	require.Len(t, res.Positions, 1)
	assert.Equal(t, "AAPL", res.Positions[0].Symbol)
}

func TestCollectPartialOnTimeout(t *testing.T) {
	// Summary completes, positions never send their end signal.
	script := func(msg []string, conn net.Conn) bool {
		switch msg[0] {
		case msgStartAPI:
			writeMessage(conn, msgNextValidID, "1")
		case msgReqAccountSummary:
			writeMessage(conn, msgAccountSummary, "1", "U111", "CashBalance", "500", "USD")
			writeMessage(conn, msgAccountSummaryEnd, "1")
		case msgReqPositions:
			writeMessage(conn, msgPosition, "U111", "AAPL", "STK", "USD", "1", "10")
		}
		return true
	}
	c := newTestClient(t, script, WithTimeout(200*time.Millisecond))

	start := time.Now()
	res, err := c.Collect(context.Background())
	require.NoError(t, err, "deadline expiry must not be an error")

	assert.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond)
	require.Len(t, res.Balances, 1)
	assert.Equal(t, "500", res.Balances[0].Total.String())
	require.Len(t, res.Positions, 1)
}

func TestCollectNonBenignError(t *testing.T) {
	script := func(msg []string, conn net.Conn) bool {
		switch msg[0] {
		case msgStartAPI:
			writeMessage(conn, msgNextValidID, "1")
		case msgReqAccountSummary:
			writeMessage(conn, msgError, "321", "Error validating request")
			writeMessage(conn, msgAccountSummaryEnd, "1")
		case msgReqPositions:
			writeMessage(conn, msgPositionEnd)
		}
		return true
	}
	c := newTestClient(t, script)

	_, err := c.Collect(context.Background())
	require.Error(t, err)
	assert.Equal(t, errs.KindGateway, errs.KindOf(err))

	var e *errs.E
	require.ErrorAs(t, err, &e)
	assert.Equal(t, "321", e.RawCode)
}

func TestCollectClosedBeforeHandshake(t *testing.T) {
	script := func(msg []string, conn net.Conn) bool {
		return false // drop the connection right after startApi
	}
	c := newTestClient(t, script)

	_, err := c.Collect(context.Background())
	require.Error(t, err)
	assert.Equal(t, errs.KindGateway, errs.KindOf(err))
	assert.Contains(t, err.Error(), "before handshake")
}

func TestCollectDialFailure(t *testing.T) {
	c := New("gw.local", 7497, 7,
		WithDialer(func(ctx context.Context, addr string) (net.Conn, error) {
			return nil, errors.New("connection refused")
		}),
		WithLogger(zap.NewNop()),
	)
	c.retr = retrier.New(retrier.WithMaxRetries(0))

	_, err := c.Collect(context.Background())
	require.Error(t, err)
	assert.Equal(t, errs.KindTransport, errs.KindOf(err))
	assert.Contains(t, err.Error(), "gateway unreachable")
}

func TestCollectContextCancelled(t *testing.T) {
	script := func(msg []string, conn net.Conn) bool {
		if msg[0] == msgStartAPI {
			writeMessage(conn, msgNextValidID, "1")
		}
		return true // handshake only, then silence
	}
	c := newTestClient(t, script)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := c.Collect(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
