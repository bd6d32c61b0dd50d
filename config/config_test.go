package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearVenueEnv blanks every variable Load reads so ambient credentials
// cannot leak into assertions. t.Setenv restores originals on cleanup.
func clearVenueEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"BASE_CURRENCY", "LOG_FILE",
		"BINANCE_API_KEY", "BINANCE_API_SECRET", "BINANCE_BASE_URL",
		"BYBIT_API_KEY", "BYBIT_API_SECRET", "BYBIT_BASE_URL", "BYBIT_RECV_WINDOW",
		"TINKOFF_TOKEN", "TINKOFF_BASE_URL", "TINKOFF_ACCOUNT_IDS", "TINKOFF_ACCOUNT_ID",
		"IBKR_HOST", "IBKR_PORT", "IBKR_CLIENT_ID", "IBKR_ACCOUNT_IDS", "IBKR_ACCOUNT_ID", "IBKR_TIMEOUT",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearVenueEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "USD", cfg.BaseCurrency)
	assert.Equal(t, "https://api.binance.com", cfg.Binance.BaseURL)
	assert.Equal(t, "https://api.bybit.com", cfg.Bybit.BaseURL)
	assert.Equal(t, 5000, cfg.Bybit.RecvWindow)
	assert.Equal(t, "https://invest-public-api.tinkoff.ru/rest", cfg.Tinkoff.BaseURL)
	assert.Equal(t, 7497, cfg.IB.Port)
	assert.Equal(t, 15*time.Second, cfg.IB.Timeout)

	assert.False(t, cfg.Binance.IsConfigured())
	assert.False(t, cfg.Bybit.IsConfigured())
	assert.False(t, cfg.Tinkoff.IsConfigured())
	assert.False(t, cfg.IB.IsConfigured())
}

func TestLoadYaml(t *testing.T) {
	clearVenueEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
base_currency: EUR
binance:
  api_key: file-key
  api_secret: file-secret
bybit:
  api_key: bb-key
  api_secret: bb-secret
  recv_window: 10000
tinkoff:
  token: t-token
  account_ids: [acc-1, acc-2]
ibkr:
  host: 10.0.0.5
  port: 4001
  client_id: 7
  timeout: 30s
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "EUR", cfg.BaseCurrency)
	assert.Equal(t, "file-key", cfg.Binance.APIKey)
	assert.True(t, cfg.Binance.IsConfigured())
	assert.Equal(t, 10000, cfg.Bybit.RecvWindow)
	assert.Equal(t, []string{"acc-1", "acc-2"}, cfg.Tinkoff.AccountIDs)
	assert.Equal(t, "10.0.0.5", cfg.IB.Host)
	assert.Equal(t, 4001, cfg.IB.Port)
	assert.Equal(t, 7, cfg.IB.ClientID)
	assert.Equal(t, 30*time.Second, cfg.IB.Timeout)
	assert.True(t, cfg.IB.IsConfigured())
}

func TestEnvOverridesFile(t *testing.T) {
	clearVenueEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("binance:\n  api_key: file-key\n  api_secret: file-secret\n"), 0o644))

	t.Setenv("BINANCE_API_KEY", "env-key")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "env-key", cfg.Binance.APIKey)
	assert.Equal(t, "file-secret", cfg.Binance.APISecret)
}

func TestAccountIDsFromEnv(t *testing.T) {
	clearVenueEnv(t)

	t.Setenv("TINKOFF_TOKEN", "tok")
	t.Setenv("TINKOFF_ACCOUNT_IDS", " acc-1, acc-2 ,,acc-3")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, []string{"acc-1", "acc-2", "acc-3"}, cfg.Tinkoff.AccountIDs)
}

func TestAccountIDSingularFallback(t *testing.T) {
	clearVenueEnv(t)

	t.Setenv("TINKOFF_ACCOUNT_ID", "only-one")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, []string{"only-one"}, cfg.Tinkoff.AccountIDs)
}

func TestLoadBadValues(t *testing.T) {
	cases := []struct {
		name string
		key  string
		val  string
	}{
		{"recv window", "BYBIT_RECV_WINDOW", "soon"},
		{"ib port", "IBKR_PORT", "not-a-port"},
		{"ib client id", "IBKR_CLIENT_ID", "x"},
		{"ib timeout", "IBKR_TIMEOUT", "15 parsecs"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			clearVenueEnv(t)
			t.Setenv(tc.key, tc.val)

			_, err := Load("")
			require.Error(t, err)
		})
	}
}

func TestSaveRoundtrip(t *testing.T) {
	clearVenueEnv(t)

	cfg := &Config{
		BaseCurrency: "USD",
		LogFile:      "holdsum.log",
		Binance: BinanceConfig{
			APIKey:    "bn-key",
			APISecret: "bn-secret",
		},
		Bybit: BybitConfig{
			APIKey:     "bb-key",
			APISecret:  "bb-secret",
			RecvWindow: 10000,
		},
		Tinkoff: TinkoffConfig{
			Token:      "t-token",
			AccountIDs: []string{"acc-1", "acc-2"},
		},
		IB: IBConfig{
			Host:     "127.0.0.1",
			Port:     4001,
			ClientID: 7,
			Timeout:  20 * time.Second,
		},
	}

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, Save(path, cfg))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm(), "the file carries credentials")

	loaded, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "USD", loaded.BaseCurrency)
	assert.Equal(t, "holdsum.log", loaded.LogFile)
	assert.Equal(t, cfg.Binance.APIKey, loaded.Binance.APIKey)
	assert.Equal(t, cfg.Binance.APISecret, loaded.Binance.APISecret)
	assert.Equal(t, cfg.Bybit.RecvWindow, loaded.Bybit.RecvWindow)
	assert.Equal(t, cfg.Tinkoff.AccountIDs, loaded.Tinkoff.AccountIDs)
	assert.Equal(t, "127.0.0.1", loaded.IB.Host)
	assert.Equal(t, 4001, loaded.IB.Port)
	assert.Equal(t, 7, loaded.IB.ClientID)
	assert.Equal(t, 20*time.Second, loaded.IB.Timeout)

	// Base URLs were left blank in the saved file, so Load fills defaults.
	assert.Equal(t, "https://api.binance.com", loaded.Binance.BaseURL)
	assert.Equal(t, "https://api.bybit.com", loaded.Bybit.BaseURL)
}
