package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, _, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if d := cmp.Diff(DefaultConfig(), cfg); d != "" {
		t.Fatalf("missing config should yield defaults: %s", d)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	dir := t.TempDir()
	raw := `
rpc_address: http://localhost:8545
redis: localhost:6379
ledger:
  chain_id: 31337
  endpoints:
    31337: http://localhost:8545
    84532: https://sepolia.base.org
reconciler:
  write_mode: category_gated
  settle_delay: 1s
`
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, _, err := LoadConfig(dir)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.RPCServer != "http://localhost:8545" || cfg.RedisConfig != "localhost:6379" {
		t.Fatalf("inline common config not applied: %+v", cfg.CommonConfig)
	}
	if cfg.Ledger.ChainID != 31337 || len(cfg.Ledger.Endpoints) != 2 {
		t.Fatalf("ledger config not applied: %+v", cfg.Ledger)
	}
	if cfg.Ledger.ContractAddress != DefaultContractAddress {
		t.Fatalf("unset keys should keep defaults, got %s", cfg.Ledger.ContractAddress)
	}
	if cfg.Reconciler.WriteMode != "category_gated" || cfg.Reconciler.SettleDelay != time.Second {
		t.Fatalf("reconciler config not applied: %+v", cfg.Reconciler)
	}
	if cfg.Reconciler.FirstTimeReward != 5 {
		t.Fatal("reward defaults lost")
	}
}

func TestLoadConfigMalformed(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("ledger: [nope"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := LoadConfig(dir); err == nil {
		t.Fatal("expected parse error")
	}
}
