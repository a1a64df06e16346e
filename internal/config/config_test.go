package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Store != StoreMemory || cfg.Ledger != LedgerMemory {
		t.Fatalf("unexpected backends: %s %s", cfg.Store, cfg.Ledger)
	}
	if cfg.MetricsRefresh != 15*time.Second {
		t.Fatalf("metrics refresh default mismatch: %s", cfg.MetricsRefresh)
	}
	if cfg.FeeBps != 0 || cfg.Listen != ":8080" || cfg.RedisPrefix != "amm" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadFlagsAndEnv(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("AMM_FEE_BPS", "30")
	t.Setenv("AMM_REDIS_ADDR", "redis:6379")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("store", "", "")
	flags.String("caller", "", "")
	if err := flags.Parse([]string{"--store", "redis", "--caller", "0xabc"}); err != nil {
		t.Fatalf("parse: %v", err)
	}

	cfg, err := Load("", flags)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Store != StoreRedis || cfg.RedisAddr != "redis:6379" {
		t.Fatalf("store config mismatch: %+v", cfg)
	}
	if cfg.FeeBps != 30 || cfg.Caller != "0xabc" {
		t.Fatalf("flag/env mismatch: %+v", cfg)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("AMM_LOG_LEVEL=debug\n"), 0o644); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	t.Cleanup(func() { os.Unsetenv("AMM_LOG_LEVEL") })

	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("log level %q", cfg.LogLevel)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{"memory", Config{Store: StoreMemory, Ledger: LedgerMemory}, true},
		{"postgres without dsn", Config{Store: StorePostgres, Ledger: LedgerMemory}, false},
		{"postgres", Config{Store: StorePostgres, PGDSN: "postgres://x", Ledger: LedgerMemory}, true},
		{"erc20 without key", Config{Store: StoreMemory, Ledger: LedgerERC20, RPCURL: "http://node"}, false},
		{"erc20", Config{Store: StoreMemory, Ledger: LedgerERC20, RPCURL: "http://node", CustodyKey: "01"}, true},
		{"unknown store", Config{Store: "mysql", Ledger: LedgerMemory}, false},
		{"fee too high", Config{Store: StoreMemory, Ledger: LedgerMemory, FeeBps: 10000}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if (err == nil) != tc.ok {
				t.Fatalf("validate = %v, want ok=%v", err, tc.ok)
			}
		})
	}
}

func TestLoadDecode(t *testing.T) {
	chdir(t, t.TempDir())
	flags := pflag.NewFlagSet("decode", pflag.ContinueOnError)
	flags.String("in", "", "")
	flags.String("topic0-map", "", "")
	if err := flags.Parse([]string{"--in", "logs.jsonl", "--topic0-map", "0xabc=Swap, 0xdef = LiquidityAdded,bad"}); err != nil {
		t.Fatalf("parse: %v", err)
	}
	cfg, err := LoadDecode("", flags)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.In != "logs.jsonl" || cfg.Out != "./data/typed_events.jsonl" {
		t.Fatalf("paths mismatch: %+v", cfg)
	}
	if len(cfg.Topic0Map) != 2 || cfg.Topic0Map["0xdef"] != "LiquidityAdded" {
		t.Fatalf("topic0 map mismatch: %+v", cfg.Topic0Map)
	}

	if _, err := LoadDecode("", nil); err == nil {
		t.Fatalf("expected missing in error")
	}
}

func TestLoadCandidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "candidate.yaml")
	manifest := `name: pool-manager
version: v2
layouts:
  - record: pool
    fields: [reserve0, reserve1, total_shares, fee_bps]
  - record: position
    fields: [shares]
`
	if err := os.WriteFile(path, []byte(manifest), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	candidate, err := LoadCandidate(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if candidate.Name != "pool-manager" || len(candidate.Layouts) != 2 {
		t.Fatalf("candidate mismatch: %+v", candidate)
	}
	if got := candidate.Layouts[0].Fields[3]; got != "fee_bps" {
		t.Fatalf("field mismatch: %s", got)
	}
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
