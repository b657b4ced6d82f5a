package engine

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"twammEngine/internal/errs"
	"twammEngine/internal/model"
	"twammEngine/internal/pair"
)

// InitTokenPair creates a pair from params.
func (s *Service) InitTokenPair(ctx context.Context, params pair.InitParams) (*pair.TokenPair, error) {
	var out *pair.TokenPair
	err := s.update(ctx, "init_token_pair", func(t *txn) error {
		addr := pair.Address(params.TokenA.Mint, params.TokenB.Mint)
		tp, err := t.Pair(t.ctx, addr)
		if err != nil {
			return fmt.Errorf("load pair: %w", err)
		}
		if tp == nil {
			tp = &pair.TokenPair{}
		}
		if err := tp.Init(params, t.now); err != nil {
			return err
		}
		if err := t.SavePair(t.ctx, tp); err != nil {
			return fmt.Errorf("save pair: %w", err)
		}
		out = tp
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("token pair initialized",
		zap.String("pair", out.Address.Hex()),
		zap.String("mint_a", out.ConfigA.Mint.Hex()),
		zap.String("mint_b", out.ConfigB.Mint.Hex()),
	)
	return out, nil
}

// adminUpdate applies fn to a stored pair and saves it.
func (s *Service) adminUpdate(ctx context.Context, op string, addr common.Address, fn func(t *txn, tp *pair.TokenPair) error) (*pair.TokenPair, error) {
	var out *pair.TokenPair
	err := s.update(ctx, op, func(t *txn) error {
		tp, err := t.pair(addr)
		if err != nil {
			return err
		}
		if err := fn(t, tp); err != nil {
			return err
		}
		if err := t.SavePair(t.ctx, tp); err != nil {
			return fmt.Errorf("save pair: %w", err)
		}
		out = tp
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("token pair updated", zap.String("op", op), zap.String("pair", addr.Hex()))
	return out, nil
}

func (s *Service) SetFees(ctx context.Context, addr common.Address, fees pair.Fees) (*pair.TokenPair, error) {
	return s.adminUpdate(ctx, "set_fees", addr, func(_ *txn, tp *pair.TokenPair) error {
		return tp.SetFees(fees)
	})
}

func (s *Service) SetLimits(ctx context.Context, addr common.Address, limits pair.Limits) (*pair.TokenPair, error) {
	return s.adminUpdate(ctx, "set_limits", addr, func(_ *txn, tp *pair.TokenPair) error {
		return tp.SetLimits(limits)
	})
}

func (s *Service) SetOracleConfig(ctx context.Context, addr common.Address, a, b pair.OracleSettings) (*pair.TokenPair, error) {
	return s.adminUpdate(ctx, "set_oracle_config", addr, func(_ *txn, tp *pair.TokenPair) error {
		return tp.SetOracleConfig(a, b)
	})
}

func (s *Service) SetPermissions(ctx context.Context, addr common.Address, p pair.Permissions) (*pair.TokenPair, error) {
	return s.adminUpdate(ctx, "set_permissions", addr, func(_ *txn, tp *pair.TokenPair) error {
		return tp.SetPermissions(p)
	})
}

// SetTimeInForce replaces the tenor of a slot without live pools.
func (s *Service) SetTimeInForce(ctx context.Context, addr common.Address, index int, timeInForce uint32) (*pair.TokenPair, error) {
	return s.adminUpdate(ctx, "set_time_in_force", addr, func(_ *txn, tp *pair.TokenPair) error {
		return tp.SetTimeInForce(index, timeInForce)
	})
}

// SetCrankAuthority restricts cranks to authority. The zero address allows
// anyone to crank.
func (s *Service) SetCrankAuthority(ctx context.Context, addr, authority common.Address) (*pair.TokenPair, error) {
	return s.adminUpdate(ctx, "set_crank_authority", addr, func(_ *txn, tp *pair.TokenPair) error {
		tp.SetCrankAuthority(authority)
		return nil
	})
}

// WithdrawFees pays collected fees from the custodies to receiver.
func (s *Service) WithdrawFees(ctx context.Context, addr, receiver common.Address, amountA, amountB uint64) (*pair.TokenPair, error) {
	return s.adminUpdate(ctx, "withdraw_fees", addr, func(t *txn, tp *pair.TokenPair) error {
		if err := tp.WithdrawFees(amountA, amountB); err != nil {
			return err
		}
		t.transfer(tp, true, tp.ConfigA.Custody, receiver, amountA, "withdraw_fees")
		t.transfer(tp, false, tp.ConfigB.Custody, receiver, amountB, "withdraw_fees")
		return nil
	})
}

// TestQuote is a raw test oracle report.
type TestQuote struct {
	Price       uint64 `json:"price"`
	Exponent    int32  `json:"expo"`
	Confidence  uint64 `json:"conf"`
	PublishTime int64  `json:"publish_time"`
}

// SetTestOraclePrice stores quotes for the test oracle accounts of both
// tokens. Pairs on other oracle types are rejected.
func (s *Service) SetTestOraclePrice(ctx context.Context, addr common.Address, a, b TestQuote) error {
	return s.update(ctx, "set_test_oracle_price", func(t *txn) error {
		tp, err := t.pair(addr)
		if err != nil {
			return err
		}
		for _, q := range []struct {
			cfg   model.TokenConfig
			quote TestQuote
		}{{tp.ConfigA, a}, {tp.ConfigB, b}} {
			if q.cfg.OracleType != model.OracleTest {
				return fmt.Errorf("%w: token %s uses %s", errs.ErrInvalidEnvironment, q.cfg.Mint.Hex(), q.cfg.OracleType)
			}
			if q.cfg.OracleAccount == (common.Address{}) {
				return errs.ErrInvalidOracleAccount
			}
			err := t.SaveQuote(t.ctx, &model.OracleQuote{
				Account:     q.cfg.OracleAccount,
				Price:       q.quote.Price,
				Exponent:    q.quote.Exponent,
				Confidence:  q.quote.Confidence,
				PublishTime: q.quote.PublishTime,
			})
			if err != nil {
				return fmt.Errorf("save quote: %w", err)
			}
		}
		return nil
	})
}

// Pair returns a stored pair.
func (s *Service) Pair(ctx context.Context, addr common.Address) (*pair.TokenPair, error) {
	var out *pair.TokenPair
	err := s.view(ctx, func(t *txn) error {
		tp, err := t.pair(addr)
		out = tp
		return err
	})
	return out, err
}

// Pools returns every stored pool of a pair.
func (s *Service) Pools(ctx context.Context, addr common.Address) ([]*model.Pool, error) {
	var out []*model.Pool
	err := s.view(ctx, func(t *txn) error {
		if _, err := t.pair(addr); err != nil {
			return err
		}
		var err error
		out, err = t.Tx.Pools(t.ctx, addr)
		return err
	})
	return out, err
}

// Order returns a stored order.
func (s *Service) Order(ctx context.Context, addr common.Address) (*model.Order, error) {
	var out *model.Order
	err := s.view(ctx, func(t *txn) error {
		o, err := t.Tx.Order(t.ctx, addr)
		if err != nil {
			return fmt.Errorf("load order: %w", err)
		}
		if o == nil {
			return fmt.Errorf("%w: %s", ErrOrderNotFound, addr.Hex())
		}
		out = o
		return nil
	})
	return out, err
}
