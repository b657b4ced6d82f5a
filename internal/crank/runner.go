// Package crank drives periodic cranks over a set of token pairs.
package crank

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"twammEngine/internal/engine"
	"twammEngine/internal/errs"
)

// RunConfig holds runtime settings for the crank loop.
type RunConfig struct {
	Pairs          []common.Address
	Caller         common.Address
	Interval       time.Duration
	MaxRetries     int
	RetryBackoff   time.Duration
	CheckpointPath string
}

// Cranker settles one pair.
type Cranker interface {
	Crank(ctx context.Context, req engine.CrankRequest) (engine.CrankResult, error)
}

// Outcome is the result of cranking one pair in a round.
type Outcome struct {
	Pair    common.Address
	Result  engine.CrankResult
	Skipped bool
	Err     error
}

// Runner cranks every configured pair once per interval.
type Runner struct {
	cfg        RunConfig
	cranker    Cranker
	logger     *zap.Logger
	checkpoint *CheckpointStore
	state      Checkpoint
}

// NewRunner builds a Runner with its dependencies.
func NewRunner(cfg RunConfig, cranker Cranker, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		cfg:        cfg,
		cranker:    cranker,
		logger:     logger,
		checkpoint: NewCheckpointStore(cfg.CheckpointPath),
		state:      Checkpoint{Pairs: make(map[common.Address]PairCheckpoint)},
	}
}

func (r *Runner) validate() error {
	if r.cranker == nil {
		return fmt.Errorf("cranker is nil")
	}
	if len(r.cfg.Pairs) == 0 {
		return fmt.Errorf("at least one pair is required")
	}
	return nil
}

// Run cranks until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	if err := r.validate(); err != nil {
		return err
	}
	if r.cfg.Interval <= 0 {
		return fmt.Errorf("crank interval must be greater than zero")
	}
	if err := r.resume(); err != nil {
		return err
	}

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()
	for {
		if _, err := r.RunOnce(ctx); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce cranks each pair once. Failures of single pairs are reported in
// the outcomes; only cancellation and checkpoint errors abort the round.
func (r *Runner) RunOnce(ctx context.Context) ([]Outcome, error) {
	if err := r.validate(); err != nil {
		return nil, err
	}
	outcomes := make([]Outcome, 0, len(r.cfg.Pairs))
	for _, addr := range r.cfg.Pairs {
		select {
		case <-ctx.Done():
			return outcomes, ctx.Err()
		default:
		}

		out := r.crankPair(ctx, addr)
		if errors.Is(out.Err, context.Canceled) || errors.Is(out.Err, context.DeadlineExceeded) {
			return outcomes, out.Err
		}
		outcomes = append(outcomes, out)
		r.track(out)
	}

	if err := r.checkpoint.Save(r.state); err != nil {
		return outcomes, err
	}
	return outcomes, nil
}

func (r *Runner) crankPair(ctx context.Context, addr common.Address) Outcome {
	out := Outcome{Pair: addr}
	err := newRetryPolicy(r.cfg.MaxRetries, r.cfg.RetryBackoff).do(ctx, func(ctx context.Context) error {
		var err error
		out.Result, err = r.cranker.Crank(ctx, engine.CrankRequest{Pair: addr, Caller: r.cfg.Caller})
		if err != nil && !permanent(err) {
			r.logger.Warn("crank failed", zap.String("pair", addr.Hex()), zap.String("code", errs.Code(err)), zap.Error(err))
		}
		return err
	})
	switch {
	case err == nil:
		r.logger.Info("crank complete",
			zap.String("pair", addr.Hex()),
			zap.Int64("net_required", out.Result.NetRequired),
			zap.Bool("routed", out.Result.Routed),
		)
	case errors.Is(err, errs.ErrNothingToSettle):
		out.Skipped = true
		r.logger.Debug("nothing to crank", zap.String("pair", addr.Hex()))
	default:
		out.Err = err
		r.logger.Error("crank gave up", zap.String("pair", addr.Hex()), zap.String("kind", errs.KindOf(err).String()), zap.Error(err))
	}
	return out
}

func (r *Runner) track(out Outcome) {
	if out.Skipped {
		return
	}
	cp := r.state.Pairs[out.Pair]
	if out.Err != nil {
		cp.LastError = out.Err.Error()
	} else {
		cp = PairCheckpoint{
			LastCrankedAt: time.Now().UTC().Format(time.RFC3339Nano),
			NetRequired:   out.Result.NetRequired,
			Routed:        out.Result.Routed,
		}
	}
	r.state.Pairs[out.Pair] = cp
}

func (r *Runner) resume() error {
	cp, ok, err := r.checkpoint.Load()
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	for addr, pc := range cp.Pairs {
		r.state.Pairs[addr] = pc
		r.logger.Info("resume from checkpoint",
			zap.String("pair", addr.Hex()),
			zap.String("last_cranked_at", pc.LastCrankedAt),
			zap.String("last_error", pc.LastError),
		)
	}
	return nil
}
