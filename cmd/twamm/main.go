package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "twamm",
		Short:        "TWAMM settlement engine",
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "config file path")
	flags.String("store", "file", "state store (file, memory, sqlite, postgres)")
	flags.String("store-path", "./data/state.json", "state file for the file store")
	flags.String("sqlite-path", "./data/twamm.db", "database path for the sqlite store")
	flags.String("pg-dsn", "", "Postgres DSN")
	flags.String("journal", "./data/transfers.jsonl", "transfer journal JSONL path")
	flags.String("clock", "system", "time source (system, fixed, chain)")
	flags.Int64("fixed-time", 0, "unix time for the fixed clock")
	flags.String("rpc", "", "EVM RPC URL for chainlink feeds, the chain clock and token metadata")
	flags.StringSlice("pair", nil, "token pair addresses (comma-separated)")
	flags.String("caller", "", "address of the signer")
	flags.String("router", "none", "external swap router for cranks (none, oracle)")
	flags.String("router-venue", "", "address of the router venue account")
	flags.Uint64("router-slippage-bps", 0, "slippage applied by the oracle router")
	flags.String("metrics-addr", "", "serve Prometheus metrics on this address")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(newPairCmd(), newOracleCmd(), newOrderCmd(), newSettleCmd(), newOutstandingCmd(), newCrankCmd())
	return root
}

func newCrankCmd() *cobra.Command {
	crankCmd := &cobra.Command{
		Use:   "crank",
		Short: "Settle pools against the oracle price",
	}

	onceCmd := &cobra.Command{
		Use:   "once",
		Short: "Crank every pair once",
		RunE:  command(runCrankOnce),
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Crank every pair on an interval until interrupted",
		RunE:  command(runCrankLoop),
	}
	for _, c := range []*cobra.Command{onceCmd, runCmd} {
		c.Flags().String("checkpoint", "./data/crank.json", "checkpoint file path, empty disables")
		c.Flags().Int("max-retries", 3, "maximum retry attempts per pair")
		c.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	}
	runCmd.Flags().Duration("crank-interval", 10*time.Second, "time between rounds")

	crankCmd.AddCommand(onceCmd, runCmd)
	return crankCmd
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
