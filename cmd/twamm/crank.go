package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"twammEngine/internal/crank"
)

func newRunner(a *app) (*crank.Runner, error) {
	pairs, err := a.pairs()
	if err != nil {
		return nil, err
	}
	caller, err := a.caller()
	if err != nil {
		return nil, err
	}
	return crank.NewRunner(crank.RunConfig{
		Pairs:          pairs,
		Caller:         caller,
		Interval:       a.cfg.CrankInterval,
		MaxRetries:     a.cfg.MaxRetries,
		RetryBackoff:   a.cfg.RetryBackoff,
		CheckpointPath: a.cfg.Checkpoint,
	}, a.svc, a.logger), nil
}

func runCrankOnce(a *app, _ *cobra.Command) error {
	runner, err := newRunner(a)
	if err != nil {
		return err
	}
	outcomes, err := runner.RunOnce(a.ctx)
	if err != nil {
		return err
	}
	type row struct {
		Pair    string      `json:"pair"`
		Result  interface{} `json:"result,omitempty"`
		Skipped bool        `json:"skipped,omitempty"`
		Error   string      `json:"error,omitempty"`
	}
	rows := make([]row, 0, len(outcomes))
	for _, out := range outcomes {
		r := row{Pair: out.Pair.Hex(), Skipped: out.Skipped}
		switch {
		case out.Err != nil:
			r.Error = out.Err.Error()
		case !out.Skipped:
			r.Result = out.Result
		}
		rows = append(rows, r)
	}
	return a.print(rows)
}

func runCrankLoop(a *app, _ *cobra.Command) error {
	runner, err := newRunner(a)
	if err != nil {
		return err
	}
	if a.cfg.MetricsAddr != "" {
		srv := serveMetrics(a.cfg.MetricsAddr, a.logger)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(ctx)
		}()
	}

	a.logger.Info("crank start",
		zap.Strings("pairs", a.cfg.Pairs),
		zap.Duration("interval", a.cfg.CrankInterval),
		zap.String("router", a.cfg.Router),
		zap.String("checkpoint", a.cfg.Checkpoint),
	)
	err = runner.Run(a.ctx)
	if errors.Is(err, context.Canceled) {
		a.logger.Info("crank stopped")
		return nil
	}
	return err
}

func serveMetrics(addr string, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", zap.Error(err))
		}
	}()
	logger.Info("metrics listening", zap.String("addr", addr))
	return srv
}
