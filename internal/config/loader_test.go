package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadMergesOverDefaults(t *testing.T) {
	path := writeConfig(t, `
mode = "monitor"

[wallet]
private_key = "key"

[trade]
buy_amount_sol = 0.25

[jito]
confirm_timeout = "2m"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Mode != "monitor" {
		t.Errorf("Mode = %q", cfg.Mode)
	}
	if cfg.Trade.BuyAmountSOL != 0.25 {
		t.Errorf("BuyAmountSOL = %v", cfg.Trade.BuyAmountSOL)
	}
	if cfg.Jito.ConfirmTimeout.Duration != 2*time.Minute {
		t.Errorf("ConfirmTimeout = %v", cfg.Jito.ConfirmTimeout.Duration)
	}

	// Untouched fields keep their defaults.
	if cfg.Trade.SlippageBps != 5000 {
		t.Errorf("SlippageBps = %d, want default", cfg.Trade.SlippageBps)
	}
	if cfg.Monitor.ScanInterval.Duration != time.Second {
		t.Errorf("ScanInterval = %v, want default", cfg.Monitor.ScanInterval.Duration)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
[wallet]
private_key = "from-file"
`)

	t.Setenv("SIGBOT_WALLET_PRIVATE_KEY", "from-env")
	t.Setenv("SIGBOT_TRADE_BUY_AMOUNT_SOL", "0.5")
	t.Setenv("SIGBOT_MONITOR_SCAN_INTERVAL", "3s")
	t.Setenv("SIGBOT_JITO_TIP_ACCOUNTS", "AcctOne, AcctTwo")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Wallet.PrivateKey != "from-env" {
		t.Errorf("PrivateKey = %q, env should win over file", cfg.Wallet.PrivateKey)
	}
	if cfg.Trade.BuyAmountSOL != 0.5 {
		t.Errorf("BuyAmountSOL = %v", cfg.Trade.BuyAmountSOL)
	}
	if cfg.Monitor.ScanInterval.Duration != 3*time.Second {
		t.Errorf("ScanInterval = %v", cfg.Monitor.ScanInterval.Duration)
	}
	if len(cfg.Jito.TipAccounts) != 2 || cfg.Jito.TipAccounts[1] != "AcctTwo" {
		t.Errorf("TipAccounts = %v", cfg.Jito.TipAccounts)
	}
}

func TestValidateDefaultsWithWallet(t *testing.T) {
	cfg := Defaults()
	cfg.Wallet.PrivateKey = "key"
	cfg.Feed.BotToken = "token"

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "chaos"
	cfg.Trade.BuyAmountSOL = 0
	cfg.Jito.TipSOL = -1

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate accepted a broken config")
	}
	for _, want := range []string{"unknown mode", "buy_amount_sol", "tip_sol", "wallet"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error missing %q: %v", want, err)
		}
	}
}

func TestValidateExitLockMustOutlastConfirm(t *testing.T) {
	cfg := Defaults()
	cfg.Wallet.PrivateKey = "key"
	cfg.Feed.BotToken = "token"
	cfg.Trade.ExitLockTTL = duration{time.Minute}
	cfg.Jito.ConfirmTimeout = duration{5 * time.Minute}

	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "exit_lock_ttl") {
		t.Errorf("Validate = %v, want exit_lock_ttl complaint", err)
	}
}
