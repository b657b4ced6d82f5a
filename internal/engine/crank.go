package engine

import (
	"context"
	"fmt"
	"math"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"twammEngine/internal/errs"
	"twammEngine/internal/mathutil"
	"twammEngine/internal/model"
	"twammEngine/internal/pair"
	"twammEngine/internal/price"
	"twammEngine/internal/settlement"
)

// RouteRequest asks a router to sell AmountIn of TokenIn for TokenOut.
// Price is the oracle price of token A in token B.
type RouteRequest struct {
	Pair      common.Address
	TokenIn   common.Address
	TokenOut  common.Address
	SellA     bool
	AmountIn  uint64
	Price     price.Price
	DecimalsA uint8
	DecimalsB uint8
}

// RouteResult is an executed swap. Venue is the counterparty of the custody
// transfers.
type RouteResult struct {
	Venue     common.Address
	AmountIn  uint64
	AmountOut uint64
}

// Router executes external swaps for the residual of a crank.
type Router interface {
	Route(ctx context.Context, req RouteRequest) (RouteResult, error)
}

// OracleRouter fills swaps at the request price less SlippageBps.
type OracleRouter struct {
	Venue       common.Address
	SlippageBps uint64
}

func (r OracleRouter) Route(_ context.Context, req RouteRequest) (RouteResult, error) {
	if r.SlippageBps > 10_000 {
		return RouteResult{}, fmt.Errorf("slippage %d bps out of range", r.SlippageBps)
	}
	conv := price.Converter{DecimalsA: req.DecimalsA, DecimalsB: req.DecimalsB}
	var out uint64
	var err error
	if req.SellA {
		out, err = conv.BAmount(req.AmountIn, req.Price)
	} else {
		out, err = conv.AAmount(req.AmountIn, req.Price)
	}
	if err != nil {
		return RouteResult{}, err
	}
	if out, err = mathutil.MulDiv(out, 10_000-r.SlippageBps, 10_000); err != nil {
		return RouteResult{}, err
	}
	return RouteResult{Venue: r.Venue, AmountIn: req.AmountIn, AmountOut: out}, nil
}

// CrankRequest settles the pools of a pair on behalf of Caller.
type CrankRequest struct {
	Pair   common.Address `json:"pair"`
	Caller common.Address `json:"caller"`
}

// CrankResult reports a crank. Routed is set when an external swap ran.
type CrankResult struct {
	Settlement  model.Settlement `json:"settlement"`
	NetRequired int64            `json:"net_required"`
	Routed      bool             `json:"routed"`
	SwapIn      uint64           `json:"swap_in"`
	SwapOut     uint64           `json:"swap_out"`
	Unsettled   float64          `json:"unsettled"`
	RewardA     uint64           `json:"reward_a"`
	RewardB     uint64           `json:"reward_b"`
}

// swap is the custody view of a routed crank.
type swap struct {
	supply  model.MatchingSide
	a, b    uint64
	amount  uint64
	receive uint64
	price   price.Price
	venue   common.Address
}

// Crank matches the pools of a pair internally, optionally routes the
// residual through the router, and pays the caller a reward from fees.
func (s *Service) Crank(ctx context.Context, req CrankRequest) (CrankResult, error) {
	var out CrankResult
	err := s.update(ctx, "crank", func(t *txn) error {
		tp, err := t.pair(req.Pair)
		if err != nil {
			return err
		}
		if !tp.AllowCranks {
			return errs.ErrCranksNotAllowed
		}
		if tp.CrankAuthority != (common.Address{}) && tp.CrankAuthority != req.Caller {
			return fmt.Errorf("%w: %s is not the crank authority", errs.ErrCranksNotAllowed, req.Caller.Hex())
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

		sw, err := s.route(t, tp, pools, rate)
		if err != nil {
			return err
		}

		eng := settlement.NewEngine(tp.ConfigA.Decimals, tp.ConfigB.Decimals)
		res, err := eng.SettlePools(pools, sw.supply, sw.a, sw.b, sw.price, rate, t.now)
		if err != nil {
			return err
		}
		if err := validateCrank(sw, res); err != nil {
			return err
		}
		pct := unsettledFraction(tp, res)
		if sw.amount > 0 && pct > tp.MaxUnsettledAmount {
			return fmt.Errorf("%w: %.4f of required left unsettled", errs.ErrSettlementAmountTooSmall, pct)
		}

		if sw.amount > 0 {
			// Pools pay out the swap input to the venue and receive its output.
			payA := sw.supply == model.MatchingBuy
			t.transfer(tp, payA, custody(tp, payA), sw.venue, sw.amount, "route")
			t.transfer(tp, !payA, sw.venue, custody(tp, !payA), sw.receive, "route")
		}

		if err := s.finishPools(t, tp, pools); err != nil {
			return err
		}
		if err := tp.UpdateTradeStats(res, pair.KindCrank, priceA, priceB); err != nil {
			return err
		}

		out.RewardA = reward(tp.StatsA.FeesCollected, tp.ConfigA.CrankReward, pct)
		out.RewardB = reward(tp.StatsB.FeesCollected, tp.ConfigB.CrankReward, pct)
		tp.StatsA.FeesCollected -= out.RewardA
		tp.StatsB.FeesCollected -= out.RewardB
		t.transfer(tp, true, tp.ConfigA.Custody, req.Caller, out.RewardA, "crank_reward")
		t.transfer(tp, false, tp.ConfigB.Custody, req.Caller, out.RewardB, "crank_reward")

		if err := t.SavePair(t.ctx, tp); err != nil {
			return fmt.Errorf("save pair: %w", err)
		}
		out.Settlement = res
		out.NetRequired = res.SignedRequired()
		out.Routed = sw.amount > 0
		out.SwapIn = sw.amount
		out.SwapOut = sw.receive
		out.Unsettled = pct
		return nil
	})
	if err != nil {
		return CrankResult{}, err
	}
	pairHex := req.Pair.Hex()
	s.metrics.RecordSettlement(pairHex, pair.KindCrank.String(), out.Settlement.SettlementSide.String(), out.Settlement.NetAmountSettled)
	s.metrics.RecordReward(pairHex, "a", out.RewardA)
	s.metrics.RecordReward(pairHex, "b", out.RewardB)
	s.logger.Info("cranked",
		zap.String("pair", pairHex),
		zap.Stringer("side", out.Settlement.SettlementSide),
		zap.Bool("routed", out.Routed),
		zap.Uint64("net_settled", out.Settlement.NetAmountSettled),
		zap.Int64("net_required", out.NetRequired),
		zap.Uint64("reward_a", out.RewardA),
		zap.Uint64("reward_b", out.RewardB),
	)
	return out, nil
}

// route runs the external swap for the residual of the pools, if a router
// is configured and the residual is worth swapping.
func (s *Service) route(t *txn, tp *pair.TokenPair, pools []*model.Pool, rate price.Price) (swap, error) {
	internal := swap{supply: model.MatchingInternal, price: rate}
	if s.router == nil {
		return internal, nil
	}
	need, err := outstanding(tp, pools, rate, t.now)
	if err != nil || need == 0 {
		return internal, err
	}

	req := RouteRequest{
		Pair:      tp.Address,
		Price:     rate,
		DecimalsA: tp.ConfigA.Decimals,
		DecimalsB: tp.ConfigB.Decimals,
	}
	if need < 0 {
		req.SellA, req.TokenIn, req.TokenOut, req.AmountIn = true, tp.ConfigA.Mint, tp.ConfigB.Mint, uint64(-need)
	} else {
		req.TokenIn, req.TokenOut, req.AmountIn = tp.ConfigB.Mint, tp.ConfigA.Mint, uint64(need)
	}
	got, err := s.router.Route(t.ctx, req)
	if err != nil {
		return swap{}, fmt.Errorf("route swap: %w", err)
	}

	sw := swap{venue: got.Venue, amount: got.AmountIn, receive: got.AmountOut}
	if req.SellA {
		sw.supply, sw.a, sw.b = model.MatchingBuy, got.AmountIn, got.AmountOut
	} else {
		sw.supply, sw.a, sw.b = model.MatchingSell, got.AmountOut, got.AmountIn
	}
	if sw.a < max(tp.ConfigA.MinSwapAmount, 1) || sw.b < max(tp.ConfigB.MinSwapAmount, 1) {
		return swap{}, fmt.Errorf("%w: swap %d A for %d B", errs.ErrSettlementAmountTooSmall, sw.a, sw.b)
	}
	// The pools' side of the swap must convert to no more than the supply
	// returned, so a supply of A is priced rounding up.
	swapPrice := price.TokenDiv
	if sw.supply == model.MatchingSell {
		swapPrice = price.TokenDivCeil
	}
	if sw.price, err = swapPrice(sw.b, tp.ConfigB.Decimals, sw.a, tp.ConfigA.Decimals); err != nil {
		return swap{}, err
	}
	o, p := rate.Float64(), sw.price.Float64()
	if (sw.supply == model.MatchingSell && o < p) || (sw.supply == model.MatchingBuy && o > p) {
		if diff := math.Abs(o-p) / o; diff > tp.MaxSwapPriceDiff {
			return swap{}, fmt.Errorf("%w: swap price %s, oracle %s", errs.ErrSettlementPriceOutOfBounds, sw.price, rate)
		}
	}
	return sw, nil
}

func validateCrank(sw swap, res model.Settlement) error {
	if sw.amount > 0 {
		if res.SettlementSide == sw.supply {
			return fmt.Errorf("%w: pools need %s", errs.ErrInvalidSettlementSide, res.SettlementSide)
		}
		if res.NetAmountSettled == 0 {
			return fmt.Errorf("%w: nothing settled", errs.ErrSettlementAmountTooLarge)
		}
	}
	if sw.amount != res.NetAmountSettled {
		return fmt.Errorf("%w: swapped %d, settled %d", errs.ErrSettlementAmountTooLarge, sw.amount, res.NetAmountSettled)
	}
	if sw.receive != res.SourceAmountReceived {
		return fmt.Errorf("%w: swap returned %d, pools took %d", errs.ErrSettlementError, sw.receive, res.SourceAmountReceived)
	}
	if res.NetAmountSettled > res.NetAmountRequired {
		return fmt.Errorf("%w: settled %d above required %d", errs.ErrSettlementError, res.NetAmountSettled, res.NetAmountRequired)
	}
	return nil
}

// unsettledFraction is the share of the required amount left after a
// crank. Residuals at or below the minimum swap size count as settled.
func unsettledFraction(tp *pair.TokenPair, res model.Settlement) float64 {
	threshold := tp.ConfigB.MinSwapAmount
	if res.SettlementSide == model.MatchingSell {
		threshold = tp.ConfigA.MinSwapAmount
	}
	threshold = max(threshold, 1)
	unsettled := res.NetAmountRequired - res.NetAmountSettled
	if unsettled <= threshold {
		return 0
	}
	return float64(unsettled) / float64(res.NetAmountRequired)
}

// reward scales the configured reward by the settled fraction, capped by the
// collected fees.
func reward(fees, configured uint64, unsettled float64) uint64 {
	settled := 1 - unsettled
	switch {
	case !(settled > 0):
		return 0
	case settled >= 1:
		return min(fees, configured)
	}
	return min(fees, configured, uint64(settled*float64(configured)))
}

func custody(tp *pair.TokenPair, tokenA bool) common.Address {
	if tokenA {
		return tp.ConfigA.Custody
	}
	return tp.ConfigB.Custody
}
