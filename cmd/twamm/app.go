package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"twammEngine/internal/chain"
	"twammEngine/internal/config"
	"twammEngine/internal/engine"
	"twammEngine/internal/metrics"
	"twammEngine/internal/model"
	"twammEngine/internal/oracle"
	"twammEngine/internal/storage"
	"twammEngine/internal/storage/postgres"
	"twammEngine/internal/storage/sqlite"
)

// app holds what every command needs: config, logger, the engine and the
// resources to release on exit.
type app struct {
	cfg    config.Config
	logger *zap.Logger
	ctx    context.Context
	svc    *engine.Service
	clock  engine.Clock
	chain  *chain.Client
	out    io.Writer

	closers []func()
}

func setup(cmd *cobra.Command) (*app, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	a := &app{cfg: cfg, logger: logger, ctx: ctx, out: cmd.OutOrStdout()}
	a.closers = append(a.closers, func() { _ = logger.Sync() }, stop)

	if err := a.init(); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) init() error {
	if a.cfg.RPCURL != "" {
		client, err := chain.NewClient(a.ctx, a.cfg.RPCURL)
		if err != nil {
			return fmt.Errorf("connect rpc: %w", err)
		}
		a.chain = client
		a.closers = append(a.closers, client.Close)
	}

	store, err := a.openStore()
	if err != nil {
		return err
	}
	a.closers = append(a.closers, func() {
		if err := store.Close(); err != nil {
			a.logger.Warn("close store", zap.Error(err))
		}
	})

	switch a.cfg.Clock {
	case "fixed":
		a.clock = engine.NewFixedClock(a.cfg.FixedTime)
	case "chain":
		a.clock = engine.ChainClock{Source: a.chain}
	default:
		a.clock = engine.SystemClock{}
	}

	opts := []engine.Option{
		engine.WithClock(a.clock),
		engine.WithTransfers(storage.NewJournal(a.cfg.Journal)),
		engine.WithLogger(a.logger),
		engine.WithMetrics(metrics.Engine()),
	}
	if a.chain != nil {
		opts = append(opts, engine.WithOracleSource(model.OracleChainlink, oracle.NewChainlinkSource(a.chain)))
	}
	if a.cfg.Router == "oracle" {
		venue, err := config.ParseAddress(a.cfg.RouterVenue)
		if err != nil {
			return fmt.Errorf("router-venue: %w", err)
		}
		opts = append(opts, engine.WithRouter(engine.OracleRouter{Venue: venue, SlippageBps: a.cfg.RouterSlippageBps}))
	}
	a.svc = engine.New(store, opts...)

	a.logger.Debug("engine ready",
		zap.String("store", a.cfg.Store),
		zap.String("clock", a.cfg.Clock),
		zap.String("router", a.cfg.Router),
		zap.Bool("rpc", a.chain != nil),
	)
	return nil
}

func (a *app) openStore() (storage.Store, error) {
	switch a.cfg.Store {
	case "memory":
		return storage.NewMemoryStore(), nil
	case "sqlite":
		store, err := sqlite.Open(a.cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		return store, nil
	case "postgres":
		store, err := postgres.NewStore(a.ctx, a.cfg.PGDSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := store.EnsureSchema(a.ctx); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		return store, nil
	default:
		return storage.NewFileStore(a.cfg.StorePath)
	}
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func (a *app) pair() (common.Address, error) {
	if len(a.cfg.Pairs) != 1 {
		return common.Address{}, fmt.Errorf("exactly one --pair is required, got %d", len(a.cfg.Pairs))
	}
	return config.ParseAddress(a.cfg.Pairs[0])
}

func (a *app) pairs() ([]common.Address, error) {
	if len(a.cfg.Pairs) == 0 {
		return nil, fmt.Errorf("--pair is required")
	}
	out := make([]common.Address, 0, len(a.cfg.Pairs))
	for _, raw := range a.cfg.Pairs {
		addr, err := config.ParseAddress(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, addr)
	}
	return out, nil
}

func (a *app) caller() (common.Address, error) {
	if a.cfg.Caller == "" {
		return common.Address{}, fmt.Errorf("--caller is required")
	}
	return config.ParseAddress(a.cfg.Caller)
}

func (a *app) print(v interface{}) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// command wraps a handler with setup and teardown of the app.
func command(run func(a *app, cmd *cobra.Command) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		a, err := setup(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		return run(a, cmd)
	}
}

func addressFlag(cmd *cobra.Command, name string) (common.Address, error) {
	raw, _ := cmd.Flags().GetString(name)
	addr, err := config.ParseAddress(raw)
	if err != nil {
		return common.Address{}, fmt.Errorf("--%s: %w", name, err)
	}
	return addr, nil
}
