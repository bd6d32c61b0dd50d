package main

import (
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/holdsum/holdsum/internal/domain"
)

const notAvailable = "n/a"

var (
	subtle      = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	special     = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	titleStyle  = lipgloss.NewStyle().Bold(true)
	totalStyle  = lipgloss.NewStyle().Foreground(special).Bold(true)
)

type balanceRow struct {
	domain.Balance
	USDValue *decimal.Decimal `json:"usd_value,omitempty"`
}

type positionRow struct {
	domain.Position
	USDValue *decimal.Decimal `json:"usd_value,omitempty"`
}

// balanceCurrencies collects the distinct currency codes to price.
func balanceCurrencies(balances []domain.Balance) []string {
	set := make(map[string]struct{})
	for _, b := range balances {
		set[strings.ToUpper(b.Currency)] = struct{}{}
	}
	return sortedKeys(set)
}

// positionSymbols collects the distinct symbols to price, plus the
// currencies needed to value rows through their acquisition price.
func positionSymbols(positions []domain.Position) []string {
	set := make(map[string]struct{})
	for _, p := range positions {
		set[strings.ToUpper(p.Symbol)] = struct{}{}
		if !p.AvgPrice.IsZero() && p.Currency != "" {
			set[strings.ToUpper(p.Currency)] = struct{}{}
		}
	}
	return sortedKeys(set)
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// balanceUSD values the total in USD, when the currency has a price.
func balanceUSD(b domain.Balance, prices map[string]decimal.Decimal) (decimal.Decimal, bool) {
	price, ok := prices[strings.ToUpper(b.Currency)]
	if !ok {
		return decimal.Decimal{}, false
	}
	return b.Total.Mul(price), true
}

// positionUSD values the quantity through the symbol price, or through
// the acquisition price converted from its currency.
func positionUSD(p domain.Position, prices map[string]decimal.Decimal) (decimal.Decimal, bool) {
	if price, ok := prices[strings.ToUpper(p.Symbol)]; ok {
		return p.Quantity.Mul(price), true
	}
	if !p.AvgPrice.IsZero() && p.Currency != "" {
		if rate, ok := prices[strings.ToUpper(p.Currency)]; ok {
			return p.Quantity.Mul(p.AvgPrice).Mul(rate), true
		}
	}
	return decimal.Decimal{}, false
}

func renderBalances(balances []domain.Balance, prices map[string]decimal.Decimal, format string) (string, error) {
	if format == "json" {
		return toJSON(balanceRows(balances, prices))
	}
	return balancesTable(balances, prices), nil
}

func renderPositions(positions []domain.Position, prices map[string]decimal.Decimal, format string) (string, error) {
	if format == "json" {
		return toJSON(positionRows(positions, prices))
	}
	return positionsTable(positions, prices), nil
}

func renderSummary(balances []domain.Balance, positions []domain.Position, prices map[string]decimal.Decimal, format string) (string, error) {
	total := summaryTotal(balances, positions, prices)

	if format == "json" {
		return toJSON(struct {
			Balances  []balanceRow    `json:"balances"`
			Positions []positionRow   `json:"positions"`
			TotalUSD  decimal.Decimal `json:"total_usd"`
		}{
			Balances:  balanceRows(balances, prices),
			Positions: positionRows(positions, prices),
			TotalUSD:  total,
		})
	}

	var sections []string
	if len(balances) > 0 {
		sections = append(sections,
			titleStyle.Render("Balances"),
			balancesTable(balances, prices))
	}
	if len(positions) > 0 {
		sections = append(sections,
			titleStyle.Render("Positions"),
			positionsTable(positions, prices))
	}
	sections = append(sections,
		totalStyle.Render("Total (valued rows): $"+total.StringFixed(2)))
	return strings.Join(sections, "\n"), nil
}

// summaryTotal sums the rows a USD value exists for; unvalued rows
// contribute nothing.
func summaryTotal(balances []domain.Balance, positions []domain.Position, prices map[string]decimal.Decimal) decimal.Decimal {
	total := decimal.Decimal{}
	for _, b := range balances {
		if v, ok := balanceUSD(b, prices); ok {
			total = total.Add(v)
		}
	}
	for _, p := range positions {
		if v, ok := positionUSD(p, prices); ok {
			total = total.Add(v)
		}
	}
	return total
}

func balanceRows(balances []domain.Balance, prices map[string]decimal.Decimal) []balanceRow {
	rows := make([]balanceRow, 0, len(balances))
	for _, b := range balances {
		row := balanceRow{Balance: b}
		if v, ok := balanceUSD(b, prices); ok {
			row.USDValue = &v
		}
		rows = append(rows, row)
	}
	return rows
}

func positionRows(positions []domain.Position, prices map[string]decimal.Decimal) []positionRow {
	rows := make([]positionRow, 0, len(positions))
	for _, p := range positions {
		row := positionRow{Position: p}
		if v, ok := positionUSD(p, prices); ok {
			row.USDValue = &v
		}
		rows = append(rows, row)
	}
	return rows
}

func balancesTable(balances []domain.Balance, prices map[string]decimal.Decimal) string {
	rows := make([][]string, 0, len(balances))
	for _, b := range balances {
		usd := notAvailable
		if v, ok := balanceUSD(b, prices); ok {
			usd = v.StringFixed(2)
		}
		rows = append(rows, []string{
			b.Broker.String(), b.Currency, b.AccountType,
			b.Available.String(), b.Total.String(), usd,
		})
	}
	return renderTable([]string{"BROKER", "CURRENCY", "ACCOUNT", "AVAILABLE", "TOTAL", "USD VALUE"}, rows)
}

func positionsTable(positions []domain.Position, prices map[string]decimal.Decimal) string {
	rows := make([][]string, 0, len(positions))
	for _, p := range positions {
		avg := notAvailable
		if !p.AvgPrice.IsZero() {
			avg = p.AvgPrice.String()
		}
		usd := notAvailable
		if v, ok := positionUSD(p, prices); ok {
			usd = v.StringFixed(2)
		}
		rows = append(rows, []string{
			p.Broker.String(), p.Symbol, p.AccountType,
			p.Quantity.String(), avg, p.Currency, usd,
		})
	}
	return renderTable([]string{"BROKER", "SYMBOL", "ACCOUNT", "QUANTITY", "AVG PRICE", "CCY", "USD VALUE"}, rows)
}

func renderTable(headers []string, rows [][]string) string {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(subtle)).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(headers...).
		Rows(rows...).
		Render()
}

func toJSON(v interface{}) (string, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", errors.Wrap(err, "marshal output")
	}
	return string(out), nil
}
