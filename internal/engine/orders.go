package engine

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"twammEngine/internal/errs"
	"twammEngine/internal/ledger"
	"twammEngine/internal/mathutil"
	"twammEngine/internal/model"
	"twammEngine/internal/pair"
	"twammEngine/internal/pool"
)

// PlaceOrderRequest deposits into a pool of a tenor. A zero Pool selects
// the current pool; otherwise it must name the current or the next pool.
type PlaceOrderRequest struct {
	Pair        common.Address  `json:"pair"`
	Owner       common.Address  `json:"owner"`
	Side        model.OrderSide `json:"side"`
	TimeInForce uint32          `json:"time_in_force"`
	Amount      uint64          `json:"amount"`
	Pool        common.Address  `json:"pool,omitempty"`
}

// PlaceOrderResult describes an accepted deposit.
type PlaceOrderResult struct {
	Order   model.Order    `json:"order"`
	Pool    model.Pool     `json:"pool"`
	Deposit ledger.Deposit `json:"deposit"`
}

// PlaceOrder deposits tokens into a pool, creating the pool and the order
// as needed.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (PlaceOrderResult, error) {
	var out PlaceOrderResult
	err := s.update(ctx, "place_order", func(t *txn) error {
		if req.Amount == 0 {
			return fmt.Errorf("%w: zero deposit", errs.ErrInvalidTokenAmount)
		}
		tp, err := t.pair(req.Pair)
		if err != nil {
			return err
		}
		if !tp.AllowDeposits {
			return errs.ErrDepositsNotAllowed
		}
		idx, err := tp.Pools.Index(req.TimeInForce)
		if err != nil {
			return err
		}

		current, err := t.slotPool(tp, idx, tp.Pools.Counters[idx], tp.Pools.CurrentPresent[idx], t.now)
		if err != nil {
			return err
		}
		if err := tp.Pools.StageCurrent(idx); err != nil {
			return err
		}
		target := current
		if req.Pool != (common.Address{}) && req.Pool != current.Address {
			next, err := tp.Pools.NextCounter(idx)
			if err != nil {
				return err
			}
			if req.Pool != tp.PoolAddress(req.TimeInForce, next) {
				return fmt.Errorf("%w: %s is neither the current nor the next pool", errs.ErrInvalidPoolAddress, req.Pool.Hex())
			}
			if target, err = t.slotPool(tp, idx, next, tp.Pools.FuturePresent[idx], current.ExpirationTime); err != nil {
				return err
			}
			if err := tp.Pools.StageNext(idx); err != nil {
				return err
			}
		}

		orderAddr := pool.OrderAddress(req.Owner, target.Address)
		order, err := t.Order(t.ctx, orderAddr)
		if err != nil {
			return fmt.Errorf("load order: %w", err)
		}
		if order == nil || order.LPBalance == 0 {
			order = &model.Order{
				Address:               orderAddr,
				Owner:                 req.Owner,
				Time:                  t.now,
				Side:                  req.Side,
				Pool:                  target.Address,
				LastBalanceChangeTime: t.now,
			}
		} else {
			if order.Side != req.Side {
				return fmt.Errorf("%w: order is %s", errs.ErrOrderSideMismatch, order.Side)
			}
			if order.Pool != target.Address {
				return fmt.Errorf("%w: order belongs to %s", errs.ErrInvalidPoolAddress, order.Pool.Hex())
			}
		}

		status, err := pool.UpdateState(target, tp.MinTimeTillExpiration, t.now)
		if err != nil {
			return err
		}
		switch status {
		case model.PoolLocked:
			return fmt.Errorf("%w: %s", errs.ErrLockedPool, target.Address.Hex())
		case model.PoolExpired:
			return fmt.Errorf("%w: %s", errs.ErrExpiredPool, target.Address.Hex())
		}

		dep, err := ledger.ApplyDeposit(target.Side(req.Side), order, req.Amount, target.ExpirationTime, t.now)
		if err != nil {
			return err
		}
		if req.Side == model.OrderSell {
			t.transfer(tp, true, req.Owner, tp.ConfigA.Custody, req.Amount, "deposit")
		} else {
			t.transfer(tp, false, req.Owner, tp.ConfigB.Custody, req.Amount, "deposit")
		}

		if target != current {
			if err := t.SavePool(t.ctx, current); err != nil {
				return fmt.Errorf("save pool: %w", err)
			}
		}
		if err := t.SavePool(t.ctx, target); err != nil {
			return fmt.Errorf("save pool: %w", err)
		}
		if err := t.SaveOrder(t.ctx, order); err != nil {
			return fmt.Errorf("save order: %w", err)
		}
		if err := t.SavePair(t.ctx, tp); err != nil {
			return fmt.Errorf("save pair: %w", err)
		}
		out = PlaceOrderResult{Order: *order, Pool: *target, Deposit: dep}
		return nil
	})
	if err != nil {
		return PlaceOrderResult{}, err
	}
	s.logger.Info("order placed",
		zap.String("order", out.Order.Address.Hex()),
		zap.String("pool", out.Pool.Address.Hex()),
		zap.Stringer("side", req.Side),
		zap.Uint64("amount", req.Amount),
		zap.Uint64("lp", out.Deposit.LPMinted),
	)
	return out, nil
}

// slotPool loads the pool of a slot counter, or creates it expiring tif
// seconds after base when the slot is empty.
func (t *txn) slotPool(tp *pair.TokenPair, idx int, counter uint64, present bool, base int64) (*model.Pool, error) {
	tif := tp.Pools.TimeInForce[idx]
	addr := tp.PoolAddress(tif, counter)
	if !present {
		exp, err := mathutil.AddInt64(base, int64(tif))
		if err != nil {
			return nil, err
		}
		return tp.NewPool(tif, counter, exp), nil
	}
	p, err := t.Pool(t.ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("load pool: %w", err)
	}
	if p == nil {
		return nil, fmt.Errorf("%w: pool %s is missing", errs.ErrInvalidPoolState, addr.Hex())
	}
	return p, nil
}

// CancelOrderRequest withdraws up to LPAmount shares of an order.
type CancelOrderRequest struct {
	Pair     common.Address `json:"pair"`
	Caller   common.Address `json:"caller"`
	Order    common.Address `json:"order"`
	LPAmount uint64         `json:"lp_amount"`
}

// CancelOrderResult describes a withdrawal and the tokens paid out.
type CancelOrderResult struct {
	Withdrawal ledger.Withdrawal `json:"withdrawal"`
	AmountA    uint64            `json:"amount_a"`
	AmountB    uint64            `json:"amount_b"`
	Closed     bool              `json:"closed"`
	PoolClosed bool              `json:"pool_closed"`
}

// CancelOrder withdraws from an order. Anyone may cancel once the pool is
// complete, in which case the whole order is withdrawn to its owner.
func (s *Service) CancelOrder(ctx context.Context, req CancelOrderRequest) (CancelOrderResult, error) {
	var out CancelOrderResult
	err := s.update(ctx, "cancel_order", func(t *txn) error {
		if req.LPAmount == 0 {
			return fmt.Errorf("%w: zero lp amount", errs.ErrInvalidTokenAmount)
		}
		tp, err := t.pair(req.Pair)
		if err != nil {
			return err
		}
		if !tp.AllowWithdrawals {
			return errs.ErrWithdrawalsNotAllowed
		}
		order, err := t.Order(t.ctx, req.Order)
		if err != nil {
			return fmt.Errorf("load order: %w", err)
		}
		if order == nil {
			return fmt.Errorf("%w: %s", ErrOrderNotFound, req.Order.Hex())
		}
		p, err := t.Pool(t.ctx, order.Pool)
		if err != nil {
			return fmt.Errorf("load pool: %w", err)
		}
		if p == nil || p.TokenPair != tp.Address {
			return fmt.Errorf("%w: pool %s of order is missing", errs.ErrInvalidPoolState, order.Pool.Hex())
		}

		complete := pool.IsComplete(p, t.now)
		if req.Caller != order.Owner && !complete {
			return fmt.Errorf("%w: %s", errs.ErrIllegalOwner, req.Caller.Hex())
		}

		w, err := ledger.ApplyWithdrawal(p.Side(order.Side), order, req.LPAmount, complete,
			tp.FeeNumerator, tp.FeeDenominator, p.ExpirationTime, t.now)
		if err != nil {
			return err
		}

		var amountA, amountB, grossA, grossB uint64
		if order.Side == model.OrderSell {
			amountA, amountB = w.Source, w.Net()
			grossA, grossB = w.Source, w.Target
			tp.AddFee(false, w.Fee)
		} else {
			amountA, amountB = w.Net(), w.Source
			grossA, grossB = w.Target, w.Source
			tp.AddFee(true, w.Fee)
		}
		t.transfer(tp, true, tp.ConfigA.Custody, order.Owner, amountA, "withdraw")
		t.transfer(tp, false, tp.ConfigB.Custody, order.Owner, amountB, "withdraw")

		if w.Closed {
			err = t.DeleteOrder(t.ctx, order.Address)
		} else {
			err = t.SaveOrder(t.ctx, order)
		}
		if err != nil {
			return fmt.Errorf("persist order: %w", err)
		}

		if _, err := pool.UpdateState(p, tp.MinTimeTillExpiration, t.now); err != nil {
			return err
		}
		poolClosed := false
		if idx, err := tp.Pools.Index(p.TimeInForce); err == nil && tp.Pools.Counters[idx] != p.Counter {
			next, err := tp.Pools.NextCounter(idx)
			if err != nil {
				return err
			}
			if p.Counter != next {
				tp.ReleasePending(grossA, grossB)
			}
			if pool.IsEmpty(p) {
				if p.Counter == next {
					if err := tp.Pools.ReleaseNext(idx); err != nil {
						return err
					}
				}
				poolClosed = true
			}
		}
		if poolClosed {
			err = t.DeletePool(t.ctx, p.Address)
		} else {
			err = t.SavePool(t.ctx, p)
		}
		if err != nil {
			return fmt.Errorf("persist pool: %w", err)
		}
		if err := t.SavePair(t.ctx, tp); err != nil {
			return fmt.Errorf("save pair: %w", err)
		}
		out = CancelOrderResult{Withdrawal: w, AmountA: amountA, AmountB: amountB, Closed: w.Closed, PoolClosed: poolClosed}
		return nil
	})
	if err != nil {
		return CancelOrderResult{}, err
	}
	s.logger.Info("order cancelled",
		zap.String("order", req.Order.Hex()),
		zap.Uint64("lp", out.Withdrawal.LP),
		zap.Uint64("amount_a", out.AmountA),
		zap.Uint64("amount_b", out.AmountB),
		zap.Uint64("fee", out.Withdrawal.Fee),
		zap.Bool("closed", out.Closed),
	)
	return out, nil
}
