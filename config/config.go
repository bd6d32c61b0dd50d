// Package config loads venue credentials and connection settings from an
// optional yaml file, a local .env file and environment variables.
// Environment variables take precedence over the file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultBinanceBaseURL = "https://api.binance.com"
	defaultBybitBaseURL   = "https://api.bybit.com"
	defaultTinkoffBaseURL = "https://invest-public-api.tinkoff.ru/rest"
	defaultRecvWindow     = 5000
	defaultIBPort         = 7497
	defaultIBTimeout      = 15 * time.Second
)

// Config aggregates per-venue settings. Venues without credentials stay
// unconfigured and are skipped by the aggregator.
type Config struct {
	BaseCurrency string
	LogFile      string
	Binance      BinanceConfig
	Bybit        BybitConfig
	Tinkoff      TinkoffConfig
	IB           IBConfig
}

// BinanceConfig Binance REST API settings.
type BinanceConfig struct {
	APIKey    string
	APISecret string
	BaseURL   string
}

// IsConfigured reports whether credentials are present.
func (c BinanceConfig) IsConfigured() bool {
	return c.APIKey != "" && c.APISecret != ""
}

// BybitConfig Bybit v5 REST API settings.
type BybitConfig struct {
	APIKey     string
	APISecret  string
	BaseURL    string
	RecvWindow int
}

// IsConfigured reports whether credentials are present.
func (c BybitConfig) IsConfigured() bool {
	return c.APIKey != "" && c.APISecret != ""
}

// TinkoffConfig Tinkoff Invest REST API settings. AccountIDs may be empty,
// in which case open accounts are discovered at fetch time.
type TinkoffConfig struct {
	Token      string
	BaseURL    string
	AccountIDs []string
}

// IsConfigured reports whether credentials are present.
func (c TinkoffConfig) IsConfigured() bool {
	return c.Token != ""
}

// IBConfig Interactive Brokers gateway socket settings. AccountIDs, when
// set, filters reported records to the listed accounts.
type IBConfig struct {
	Host       string
	Port       int
	ClientID   int
	AccountIDs []string
	Timeout    time.Duration
}

// IsConfigured reports whether a gateway address is present.
func (c IBConfig) IsConfigured() bool {
	return c.Host != ""
}

type configTmp struct {
	BaseCurrency string `yaml:"base_currency"`
	LogFile      string `yaml:"log_file"`
	Binance      struct {
		APIKey    string `yaml:"api_key"`
		APISecret string `yaml:"api_secret"`
		BaseURL   string `yaml:"base_url"`
	} `yaml:"binance"`
	Bybit struct {
		APIKey     string `yaml:"api_key"`
		APISecret  string `yaml:"api_secret"`
		BaseURL    string `yaml:"base_url"`
		RecvWindow int    `yaml:"recv_window"`
	} `yaml:"bybit"`
	Tinkoff struct {
		Token      string   `yaml:"token"`
		BaseURL    string   `yaml:"base_url"`
		AccountIDs []string `yaml:"account_ids"`
	} `yaml:"tinkoff"`
	IB struct {
		Host       string   `yaml:"host"`
		Port       int      `yaml:"port"`
		ClientID   int      `yaml:"client_id"`
		AccountIDs []string `yaml:"account_ids"`
		Timeout    string   `yaml:"timeout"`
	} `yaml:"ibkr"`
}

// Load builds the configuration from the optional yaml file at path and
// the environment. A missing .env file is not an error.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		BaseCurrency: "USD",
		Binance:      BinanceConfig{BaseURL: defaultBinanceBaseURL},
		Bybit:        BybitConfig{BaseURL: defaultBybitBaseURL, RecvWindow: defaultRecvWindow},
		Tinkoff:      TinkoffConfig{BaseURL: defaultTinkoffBaseURL},
		IB:           IBConfig{Port: defaultIBPort, Timeout: defaultIBTimeout},
	}

	if path != "" {
		if err := applyFile(cfg, path); err != nil {
			return nil, err
		}
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the configuration as yaml to path. The file carries
// credentials, so it is created user-readable only.
func Save(path string, cfg *Config) error {
	var tmp configTmp
	tmp.BaseCurrency = cfg.BaseCurrency
	tmp.LogFile = cfg.LogFile

	tmp.Binance.APIKey = cfg.Binance.APIKey
	tmp.Binance.APISecret = cfg.Binance.APISecret
	tmp.Binance.BaseURL = cfg.Binance.BaseURL

	tmp.Bybit.APIKey = cfg.Bybit.APIKey
	tmp.Bybit.APISecret = cfg.Bybit.APISecret
	tmp.Bybit.BaseURL = cfg.Bybit.BaseURL
	tmp.Bybit.RecvWindow = cfg.Bybit.RecvWindow

	tmp.Tinkoff.Token = cfg.Tinkoff.Token
	tmp.Tinkoff.BaseURL = cfg.Tinkoff.BaseURL
	tmp.Tinkoff.AccountIDs = cfg.Tinkoff.AccountIDs

	tmp.IB.Host = cfg.IB.Host
	tmp.IB.Port = cfg.IB.Port
	tmp.IB.ClientID = cfg.IB.ClientID
	tmp.IB.AccountIDs = cfg.IB.AccountIDs
	if cfg.IB.Timeout > 0 {
		tmp.IB.Timeout = cfg.IB.Timeout.String()
	}

	data, err := yaml.Marshal(&tmp)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

func applyFile(cfg *Config, path string) error {
	f, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var tmp configTmp
	if err := yaml.Unmarshal(f, &tmp); err != nil {
		return fmt.Errorf("incorrect yaml config %s: %w", path, err)
	}

	setString(&cfg.BaseCurrency, tmp.BaseCurrency)
	setString(&cfg.LogFile, tmp.LogFile)

	setString(&cfg.Binance.APIKey, tmp.Binance.APIKey)
	setString(&cfg.Binance.APISecret, tmp.Binance.APISecret)
	setString(&cfg.Binance.BaseURL, tmp.Binance.BaseURL)

	setString(&cfg.Bybit.APIKey, tmp.Bybit.APIKey)
	setString(&cfg.Bybit.APISecret, tmp.Bybit.APISecret)
	setString(&cfg.Bybit.BaseURL, tmp.Bybit.BaseURL)
	if tmp.Bybit.RecvWindow > 0 {
		cfg.Bybit.RecvWindow = tmp.Bybit.RecvWindow
	}

	setString(&cfg.Tinkoff.Token, tmp.Tinkoff.Token)
	setString(&cfg.Tinkoff.BaseURL, tmp.Tinkoff.BaseURL)
	if len(tmp.Tinkoff.AccountIDs) > 0 {
		cfg.Tinkoff.AccountIDs = tmp.Tinkoff.AccountIDs
	}

	setString(&cfg.IB.Host, tmp.IB.Host)
	if tmp.IB.Port > 0 {
		cfg.IB.Port = tmp.IB.Port
	}
	if tmp.IB.ClientID > 0 {
		cfg.IB.ClientID = tmp.IB.ClientID
	}
	if len(tmp.IB.AccountIDs) > 0 {
		cfg.IB.AccountIDs = tmp.IB.AccountIDs
	}
	if tmp.IB.Timeout != "" {
		d, err := time.ParseDuration(tmp.IB.Timeout)
		if err != nil {
			return fmt.Errorf("incorrect 'timeout' param in yaml config (correct format is 15s): %w", err)
		}
		cfg.IB.Timeout = d
	}

	return nil
}

func applyEnv(cfg *Config) error {
	setEnv(&cfg.BaseCurrency, "BASE_CURRENCY")
	setEnv(&cfg.LogFile, "LOG_FILE")

	setEnv(&cfg.Binance.APIKey, "BINANCE_API_KEY")
	setEnv(&cfg.Binance.APISecret, "BINANCE_API_SECRET")
	setEnv(&cfg.Binance.BaseURL, "BINANCE_BASE_URL")

	setEnv(&cfg.Bybit.APIKey, "BYBIT_API_KEY")
	setEnv(&cfg.Bybit.APISecret, "BYBIT_API_SECRET")
	setEnv(&cfg.Bybit.BaseURL, "BYBIT_BASE_URL")
	if v := os.Getenv("BYBIT_RECV_WINDOW"); v != "" {
		rw, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("incorrect BYBIT_RECV_WINDOW=%s (must be an integer): %w", v, err)
		}
		cfg.Bybit.RecvWindow = rw
	}

	setEnv(&cfg.Tinkoff.Token, "TINKOFF_TOKEN")
	setEnv(&cfg.Tinkoff.BaseURL, "TINKOFF_BASE_URL")
	if ids := accountIDsFromEnv("TINKOFF_ACCOUNT_IDS", "TINKOFF_ACCOUNT_ID"); len(ids) > 0 {
		cfg.Tinkoff.AccountIDs = ids
	}

	setEnv(&cfg.IB.Host, "IBKR_HOST")
	if v := os.Getenv("IBKR_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("incorrect IBKR_PORT=%s (must be an integer): %w", v, err)
		}
		cfg.IB.Port = port
	}
	if v := os.Getenv("IBKR_CLIENT_ID"); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("incorrect IBKR_CLIENT_ID=%s (must be an integer): %w", v, err)
		}
		cfg.IB.ClientID = id
	}
	if ids := accountIDsFromEnv("IBKR_ACCOUNT_IDS", "IBKR_ACCOUNT_ID"); len(ids) > 0 {
		cfg.IB.AccountIDs = ids
	}
	if v := os.Getenv("IBKR_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("incorrect IBKR_TIMEOUT=%s (correct format is 15s): %w", v, err)
		}
		cfg.IB.Timeout = d
	}

	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setEnv(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// accountIDsFromEnv reads a comma-separated id list, falling back to the
// singular variable name.
func accountIDsFromEnv(plural, singular string) []string {
	v := os.Getenv(plural)
	if v == "" {
		v = os.Getenv(singular)
	}
	if v == "" {
		return nil
	}

	var ids []string
	for _, part := range strings.Split(v, ",") {
		if id := strings.TrimSpace(part); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
