// Package setup walks the user through broker credentials in the
// terminal and writes the resulting yaml config file.
package setup

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/holdsum/holdsum/config"
)

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(1, 2).
			Bold(true).
			MarginBottom(1)

	stepStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true).
			MarginTop(1)
)

func banner(step string) {
	fmt.Print("\033[H\033[2J") // Clear screen
	fmt.Println(headerStyle.Render("HOLDSUM SETUP"))
	if step != "" {
		fmt.Println(stepStyle.Render(step))
	}
}

// Run launches the terminal configuration wizard and writes the config
// to path.
func Run(path string) error {
	var brokers []string

	banner("STEP 1: BROKERS")
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Pick the venues holdsum should collect from.\n"))
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewMultiSelect[string]().
				Title("Brokers to configure").
				Options(
					huh.NewOption("Binance", "binance"),
					huh.NewOption("Bybit", "bybit"),
					huh.NewOption("Tinkoff Invest", "tinkoff"),
					huh.NewOption("Interactive Brokers gateway", "ibkr"),
				).
				Validate(func(sel []string) error {
					if len(sel) == 0 {
						return fmt.Errorf("pick at least one broker")
					}
					return nil
				}).
				Value(&brokers),
		),
	).Run()
	if err != nil {
		return err
	}

	cfg := &config.Config{BaseCurrency: "USD"}
	step := 2
	for _, b := range brokers {
		switch b {
		case "binance":
			err = binanceStep(step, cfg)
		case "bybit":
			err = bybitStep(step, cfg)
		case "tinkoff":
			err = tinkoffStep(step, cfg)
		case "ibkr":
			err = gatewayStep(step, cfg)
		}
		if err != nil {
			return err
		}
		step++
	}

	banner(fmt.Sprintf("STEP %d: OUTPUT", step))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Log file").
				Description("Optional; leave empty to log to the console only").
				Value(&cfg.LogFile),
		),
	).Run()
	if err != nil {
		return err
	}

	banner("FINAL CONFIRMATION")
	summary := fmt.Sprintf("Brokers: %s\nConfig file: %s\n", strings.Join(brokers, ", "), path)
	fmt.Println(lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(1).Render(summary))

	var confirm bool
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save configuration?").
				Affirmative("Yes, save").
				Negative("No, exit").
				Value(&confirm),
		),
	).Run()
	if err != nil {
		return err
	}
	if !confirm {
		return fmt.Errorf("setup cancelled by user")
	}

	if err := config.Save(path, cfg); err != nil {
		return fmt.Errorf("save config file: %w", err)
	}

	fmt.Println(lipgloss.NewStyle().Foreground(special).Render(fmt.Sprintf("\n✓ Configuration saved to %s", path)))
	return nil
}

func binanceStep(step int, cfg *config.Config) error {
	banner(fmt.Sprintf("STEP %d: BINANCE", step))
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("API Key").
				Value(&cfg.Binance.APIKey).
				Validate(required("api key")),
			huh.NewInput().
				Title("API Secret").
				EchoMode(huh.EchoModePassword).
				Value(&cfg.Binance.APISecret).
				Validate(required("api secret")),
		),
	).Run()
}

func bybitStep(step int, cfg *config.Config) error {
	banner(fmt.Sprintf("STEP %d: BYBIT", step))
	recvWindow := "5000"
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("API Key").
				Value(&cfg.Bybit.APIKey).
				Validate(required("api key")),
			huh.NewInput().
				Title("API Secret").
				EchoMode(huh.EchoModePassword).
				Value(&cfg.Bybit.APISecret).
				Validate(required("api secret")),
			huh.NewInput().
				Title("Receive Window (ms)").
				Description("Signed request freshness tolerance").
				Value(&recvWindow).
				Validate(validateInt),
		),
	).Run()
	if err != nil {
		return err
	}
	cfg.Bybit.RecvWindow, _ = strconv.Atoi(recvWindow)
	return nil
}

func tinkoffStep(step int, cfg *config.Config) error {
	banner(fmt.Sprintf("STEP %d: TINKOFF", step))
	var accounts string
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("API Token").
				EchoMode(huh.EchoModePassword).
				Value(&cfg.Tinkoff.Token).
				Validate(required("token")),
			huh.NewInput().
				Title("Account IDs").
				Description("Comma separated; leave empty to discover open accounts").
				Value(&accounts),
		),
	).Run()
	if err != nil {
		return err
	}
	cfg.Tinkoff.AccountIDs = splitIDs(accounts)
	return nil
}

func gatewayStep(step int, cfg *config.Config) error {
	banner(fmt.Sprintf("STEP %d: INTERACTIVE BROKERS", step))
	var (
		host     = "127.0.0.1"
		port     = "7497"
		clientID = "1"
		timeout  = "15s"
		accounts string
	)
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Gateway Host").
				Value(&host).
				Validate(required("host")),
			huh.NewInput().
				Title("Gateway Port").
				Description("7497 for TWS paper, 7496 for live, 4001/4002 for IB Gateway").
				Value(&port).
				Validate(validateInt),
			huh.NewInput().
				Title("Client ID").
				Value(&clientID).
				Validate(validateInt),
			huh.NewInput().
				Title("Collect Timeout").
				Description("Duration string (e.g. 15s, 1m)").
				Value(&timeout).
				Validate(func(s string) error {
					_, err := time.ParseDuration(s)
					return err
				}),
			huh.NewInput().
				Title("Account IDs").
				Description("Comma separated; leave empty to keep all accounts").
				Value(&accounts),
		),
	).Run()
	if err != nil {
		return err
	}

	cfg.IB.Host = host
	cfg.IB.Port, _ = strconv.Atoi(port)
	cfg.IB.ClientID, _ = strconv.Atoi(clientID)
	cfg.IB.Timeout, _ = time.ParseDuration(timeout)
	cfg.IB.AccountIDs = splitIDs(accounts)
	return nil
}

func required(what string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s cannot be empty", what)
		}
		return nil
	}
}

func validateInt(s string) error {
	if _, err := strconv.Atoi(s); err != nil {
		return fmt.Errorf("must be an integer")
	}
	return nil
}

func splitIDs(s string) []string {
	var ids []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			ids = append(ids, part)
		}
	}
	return ids
}
