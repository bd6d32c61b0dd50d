// Package domain defines core data structures shared by broker adapters
// and services.
package domain

// Broker identifies a supported venue.
type Broker string

const (
	// BrokerTinkoff Tinkoff Invest brokerage.
	BrokerTinkoff Broker = "tinkoff"
	// BrokerBybit Bybit exchange.
	BrokerBybit Broker = "bybit"
	// BrokerBinance Binance exchange.
	BrokerBinance Broker = "binance"
	// BrokerIBKR Interactive Brokers via the gateway socket API.
	BrokerIBKR Broker = "interactive_brokers"
)

// String returns the string representation.
func (b Broker) String() string {
	return string(b)
}

// IsValid checks if the Broker value is valid.
func (b Broker) IsValid() bool {
	switch b {
	case BrokerTinkoff, BrokerBybit, BrokerBinance, BrokerIBKR:
		return true
	}
	return false
}
