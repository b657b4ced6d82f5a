package engine

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"twammEngine/internal/errs"
	"twammEngine/internal/mathutil"
	"twammEngine/internal/model"
	"twammEngine/internal/pair"
	"twammEngine/internal/price"
	"twammEngine/internal/settlement"
)

// SettleRequest supplies tokens to the pools of a pair at the oracle price.
// With SupplySide Buy the caller pays token B and receives token A; with
// Sell the caller pays token A and receives token B. WorstExchangeRate is
// the minimum amount of the received token for MaxTokenAmountIn paid.
type SettleRequest struct {
	Pair              common.Address     `json:"pair"`
	Caller            common.Address     `json:"caller"`
	SupplySide        model.MatchingSide `json:"supply_side"`
	MinTokenAmountIn  uint64             `json:"min_token_amount_in"`
	MaxTokenAmountIn  uint64             `json:"max_token_amount_in"`
	WorstExchangeRate uint64             `json:"worst_exchange_rate"`
}

// SettleResult reports a settlement and the residual demand after it.
type SettleResult struct {
	Settlement model.Settlement `json:"settlement"`
	AmountIn   uint64           `json:"amount_in"`
	AmountOut  uint64           `json:"amount_out"`
	Fee        uint64           `json:"fee"`
	// NetRequired is positive when pools still need token A bought and
	// negative when they need it sold.
	NetRequired int64 `json:"net_required"`
}

// Settle fills the residual side of the pools from the caller's tokens.
func (s *Service) Settle(ctx context.Context, req SettleRequest) (SettleResult, error) {
	var out SettleResult
	err := s.update(ctx, "settle", func(t *txn) error {
		if req.MaxTokenAmountIn == 0 {
			return fmt.Errorf("%w: zero max amount in", errs.ErrInvalidTokenAmount)
		}
		tp, err := t.pair(req.Pair)
		if err != nil {
			return err
		}
		if !tp.AllowSettlements {
			return errs.ErrSettlementsNotAllowed
		}
		if req.SupplySide == model.MatchingInternal {
			return fmt.Errorf("%w: supply side must be buy or sell", errs.ErrInvalidSettlementSide)
		}
		pools, err := t.currentPools(tp)
		if err != nil {
			return err
		}
		if len(pools) == 0 {
			return errs.ErrNothingToSettle
		}
		rate, priceA, priceB, err := s.registry(t).PairPrice(t.ctx, tp.ConfigA, tp.ConfigB, t.now)
		if err != nil {
			return err
		}

		conv := tp.Converter()
		var aChange, bChange uint64
		var expected model.MatchingSide
		if req.SupplySide == model.MatchingBuy {
			if aChange, err = conv.AAmount(req.MaxTokenAmountIn, rate); err != nil {
				return err
			}
			if aChange < req.WorstExchangeRate {
				return fmt.Errorf("%w: oracle gives %d, worst %d", errs.ErrMaxSlippage, aChange, req.WorstExchangeRate)
			}
			bChange = req.MaxTokenAmountIn
			expected = model.MatchingSell
		} else {
			aChange = req.MaxTokenAmountIn
			if bChange, err = conv.BAmount(req.MaxTokenAmountIn, rate); err != nil {
				return err
			}
			if bChange < req.WorstExchangeRate {
				return fmt.Errorf("%w: oracle gives %d, worst %d", errs.ErrMaxSlippage, bChange, req.WorstExchangeRate)
			}
			expected = model.MatchingBuy
		}

		eng := settlement.NewEngine(tp.ConfigA.Decimals, tp.ConfigB.Decimals)
		res, err := eng.SettlePools(pools, req.SupplySide, aChange, bChange, rate, rate, t.now)
		if err != nil {
			return err
		}
		if err := validateSettle(req, res, expected); err != nil {
			return err
		}

		fee, err := mathutil.MulDiv(res.NetAmountSettled, tp.SettleFeeNumerator, tp.SettleFeeDenominator)
		if err != nil {
			return err
		}
		paid := res.NetAmountSettled - fee
		if req.SupplySide == model.MatchingBuy {
			t.transfer(tp, false, req.Caller, tp.ConfigB.Custody, res.SourceAmountReceived, "settle")
			t.transfer(tp, true, tp.ConfigA.Custody, req.Caller, paid, "settle")
			tp.AddFee(true, fee)
		} else {
			t.transfer(tp, true, req.Caller, tp.ConfigA.Custody, res.SourceAmountReceived, "settle")
			t.transfer(tp, false, tp.ConfigB.Custody, req.Caller, paid, "settle")
			tp.AddFee(false, fee)
		}

		if err := s.finishPools(t, tp, pools); err != nil {
			return err
		}
		if err := tp.UpdateTradeStats(res, pair.KindSettle, priceA, priceB); err != nil {
			return err
		}
		if err := t.SavePair(t.ctx, tp); err != nil {
			return fmt.Errorf("save pair: %w", err)
		}
		out = SettleResult{
			Settlement:  res,
			AmountIn:    res.SourceAmountReceived,
			AmountOut:   paid,
			Fee:         fee,
			NetRequired: res.SignedRequired(),
		}
		return nil
	})
	if err != nil {
		return SettleResult{}, err
	}
	s.metrics.RecordSettlement(req.Pair.Hex(), pair.KindSettle.String(), out.Settlement.SettlementSide.String(), out.Settlement.NetAmountSettled)
	s.logger.Info("settled",
		zap.String("pair", req.Pair.Hex()),
		zap.Stringer("supply_side", req.SupplySide),
		zap.Uint64("net_settled", out.Settlement.NetAmountSettled),
		zap.Uint64("received", out.AmountIn),
		zap.Uint64("fee", out.Fee),
		zap.Int64("net_required", out.NetRequired),
	)
	return out, nil
}

func validateSettle(req SettleRequest, res model.Settlement, expected model.MatchingSide) error {
	if res.SettlementSide != expected {
		return fmt.Errorf("%w: pools need %s, supply is %s", errs.ErrInvalidSettlementSide, res.SettlementSide, req.SupplySide)
	}
	if res.NetAmountSettled == 0 {
		return fmt.Errorf("%w: nothing settled", errs.ErrSettlementAmountTooLarge)
	}
	if res.SourceAmountReceived > req.MaxTokenAmountIn {
		return fmt.Errorf("%w: received %d above max %d", errs.ErrSettlementError, res.SourceAmountReceived, req.MaxTokenAmountIn)
	}
	if res.NetAmountSettled > res.NetAmountRequired {
		return fmt.Errorf("%w: settled %d above required %d", errs.ErrSettlementError, res.NetAmountSettled, res.NetAmountRequired)
	}
	if res.SourceAmountReceived < req.MinTokenAmountIn {
		return fmt.Errorf("%w: received %d below min %d", errs.ErrSettlementAmountTooSmall, res.SourceAmountReceived, req.MinTokenAmountIn)
	}
	minExpected, err := mathutil.MulDiv(res.SourceAmountReceived, req.WorstExchangeRate, req.MaxTokenAmountIn)
	if err != nil {
		return err
	}
	if res.NetAmountSettled < minExpected {
		return fmt.Errorf("%w: settled %d below %d", errs.ErrMaxSlippage, res.NetAmountSettled, minExpected)
	}
	return nil
}

// GetOutstandingAmount returns the signed residual demand of a pair after
// internal matching, without changing state. Amounts below the minimum swap
// size of the required token report zero.
func (s *Service) GetOutstandingAmount(ctx context.Context, pairAddr common.Address) (int64, error) {
	var out int64
	err := s.view(ctx, func(t *txn) error {
		tp, err := t.pair(pairAddr)
		if err != nil {
			return err
		}
		pools, err := t.currentPools(tp)
		if err != nil {
			return err
		}
		if len(pools) == 0 {
			return nil
		}
		rate, _, _, err := s.registry(t).PairPrice(t.ctx, tp.ConfigA, tp.ConfigB, t.now)
		if err != nil {
			return err
		}
		out, err = outstanding(tp, pools, rate, t.now)
		return err
	})
	return out, err
}

// outstanding runs an internal-only settlement on copies of pools.
func outstanding(tp *pair.TokenPair, pools []*model.Pool, rate price.Price, now int64) (int64, error) {
	work := make([]*model.Pool, len(pools))
	for i, p := range pools {
		work[i] = p.Clone()
	}
	eng := settlement.NewEngine(tp.ConfigA.Decimals, tp.ConfigB.Decimals)
	res, err := eng.SettlePools(work, model.MatchingInternal, 0, 0, rate, rate, now)
	if err != nil {
		return 0, err
	}
	switch res.SettlementSide {
	case model.MatchingBuy:
		if res.NetAmountRequired < tp.ConfigB.MinSwapAmount {
			return 0, nil
		}
	case model.MatchingSell:
		if res.NetAmountRequired < tp.ConfigA.MinSwapAmount {
			return 0, nil
		}
	}
	return res.SignedRequired(), nil
}
