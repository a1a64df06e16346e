package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	_ "go.uber.org/automaxprocs"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"ammPool/internal/config"
)

func main() {
	root := &cobra.Command{
		Use:          "amm",
		Short:        "Constant-product pool manager",
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "config file path")
	flags.String("store", config.StoreMemory, "state store (memory, postgres, redis)")
	flags.String("pg-dsn", "", "Postgres DSN")
	flags.String("pg-instance", "default", "instance name scoping the initialized flag in Postgres")
	flags.String("redis-addr", "127.0.0.1:6379", "Redis address")
	flags.String("redis-password", "", "Redis password")
	flags.Int("redis-db", 0, "Redis database")
	flags.String("redis-prefix", "amm", "Redis key prefix")
	flags.String("ledger", config.LedgerMemory, "asset ledger (memory, erc20)")
	flags.String("rpc", "", "EVM RPC URL for the erc20 ledger")
	flags.String("custody-key", "", "hex private key holding pooled assets (erc20 ledger)")
	flags.String("custody", "", "custody address (memory ledger)")
	flags.String("contract", "", "address stamped on emitted logs (defaults to custody)")
	flags.Uint32("fee-bps", 0, "swap fee in basis points")
	flags.String("caller", "", "principal performing the operation")
	flags.String("events-out", "", "append emitted events to this JSONL file")
	flags.String("logs-out", "", "append emitted events as EVM logs to this JSONL file")
	flags.Int("max-retries", 5, "maximum retry attempts for RPC reads")
	flags.Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(
		liquidityCommands()...,
	)
	root.AddCommand(roleCommands()...)
	root.AddCommand(serveCommand(), demoCommand(), decodeCommand())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// withApp loads configuration, builds the app and runs fn with a signal-aware context.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	return fn(ctx, a)
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
