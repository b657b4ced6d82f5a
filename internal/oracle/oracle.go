// Package oracle resolves and validates token prices for a pair.
package oracle

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"twammEngine/internal/errs"
	"twammEngine/internal/model"
	"twammEngine/internal/price"
)

// Quote is a price report with its confidence interval and publish time.
type Quote struct {
	Price       price.Price
	Confidence  uint64
	PublishTime int64
}

// Source resolves the latest quote of an oracle account.
type Source interface {
	Name() string
	Fetch(ctx context.Context, account common.Address) (Quote, error)
}

// Registry maps oracle types to sources.
type Registry struct {
	sources map[model.OracleType]Source
}

// Option configures a Registry.
type Option func(*Registry)

// WithSource installs the source for an oracle type.
func WithSource(kind model.OracleType, src Source) Option {
	return func(r *Registry) {
		if src != nil {
			r.sources[kind] = src
		}
	}
}

// NewRegistry constructs a registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{sources: make(map[model.OracleType]Source)}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Price returns the validated price of a token.
func (r *Registry) Price(ctx context.Context, cfg model.TokenConfig, now int64) (price.Price, error) {
	if cfg.OracleType == model.OracleNone {
		return price.Price{}, fmt.Errorf("%w: token %s has no oracle", errs.ErrUnsupportedOracle, cfg.Mint.Hex())
	}
	src, ok := r.sources[cfg.OracleType]
	if !ok {
		return price.Price{}, fmt.Errorf("%w: no %s source", errs.ErrUnsupportedOracle, cfg.OracleType)
	}
	if cfg.OracleAccount == (common.Address{}) {
		return price.Price{}, errs.ErrInvalidOracleAccount
	}
	q, err := src.Fetch(ctx, cfg.OracleAccount)
	if err != nil {
		return price.Price{}, fmt.Errorf("fetch %s price: %w", src.Name(), err)
	}
	if err := Validate(q, cfg, now); err != nil {
		return price.Price{}, err
	}
	return q.Price, nil
}

// PairPrice returns the price of token A in token B along with both token prices.
func (r *Registry) PairPrice(ctx context.Context, cfgA, cfgB model.TokenConfig, now int64) (pair, a, b price.Price, err error) {
	if a, err = r.Price(ctx, cfgA, now); err != nil {
		return
	}
	if b, err = r.Price(ctx, cfgB, now); err != nil {
		return
	}
	if pair, err = a.Div(b); err != nil {
		return
	}
	if pair.Mantissa == 0 {
		err = errs.ErrInvalidTokenPairPrice
	}
	return
}

// Validate checks a quote against the staleness and confidence bounds of a token.
func Validate(q Quote, cfg model.TokenConfig, now int64) error {
	if q.Price.Mantissa == 0 {
		return fmt.Errorf("%w: zero price", errs.ErrInvalidOraclePrice)
	}
	if now-q.PublishTime > int64(cfg.MaxOraclePriceAgeSec) {
		return fmt.Errorf("%w: published at %d, now %d", errs.ErrStaleOraclePrice, q.PublishTime, now)
	}
	if float64(q.Confidence)/float64(q.Price.Mantissa) > cfg.MaxOraclePriceError {
		return fmt.Errorf("%w: confidence %d too wide for %s", errs.ErrInvalidOraclePrice, q.Confidence, q.Price)
	}
	return nil
}
