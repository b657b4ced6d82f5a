// Package settlement matches the decayed outstanding amounts of a pair's
// pools against each other and against externally supplied liquidity.
package settlement

import (
	"fmt"

	"twammEngine/internal/decay"
	"twammEngine/internal/errs"
	"twammEngine/internal/mathutil"
	"twammEngine/internal/model"
	"twammEngine/internal/pool"
	"twammEngine/internal/price"
)

// Engine settles pools of one token pair.
type Engine struct {
	conv price.Converter
}

// NewEngine returns an engine for a pair with the given token decimals.
func NewEngine(decimalsA, decimalsB uint8) *Engine {
	return &Engine{conv: price.Converter{DecimalsA: decimalsA, DecimalsB: decimalsB}}
}

// SettlePools matches pools in three strictly ordered passes: each pool with
// itself, pools pairwise, and finally the residual side against the supplied
// token amounts at exchangeRate. Internal crossings use oraclePrice. Pools
// are updated only when the whole computation succeeds.
func (e *Engine) SettlePools(pools []*model.Pool, supplySide model.MatchingSide, tokenAChange, tokenBChange uint64,
	exchangeRate, oraclePrice price.Price, now int64) (model.Settlement, error) {
	var res model.Settlement
	if len(pools) == 0 {
		return res, fmt.Errorf("%w: no pools", errs.ErrNothingToSettle)
	}
	if len(pools) > pool.MaxPools {
		return res, fmt.Errorf("%w: %d pools exceed %d", errs.ErrSettlementError, len(pools), pool.MaxPools)
	}

	work := make([]*model.Pool, len(pools))
	for i, p := range pools {
		work[i] = p.Clone()
	}
	outA := make([]uint64, len(work))
	outB := make([]uint64, len(work))
	var totalA, totalB uint64

	for i, p := range work {
		sell, err := decay.PoolSide(&p.SellSide, p.ExpirationTime, now)
		if err != nil {
			return res, err
		}
		buy, err := decay.PoolSide(&p.BuySide, p.ExpirationTime, now)
		if err != nil {
			return res, err
		}
		if sell == 0 && buy == 0 {
			continue
		}
		if totalA, err = mathutil.Add(totalA, sell); err != nil {
			return res, err
		}
		if totalB, err = mathutil.Add(totalB, buy); err != nil {
			return res, err
		}
		settledA, settledB, err := e.crossSides(&p.SellSide, &p.BuySide, sell, buy, oraclePrice)
		if err != nil {
			return res, err
		}
		outA[i] = sell - settledA
		outB[i] = buy - settledB
	}

	for i := 0; i < len(work)-1; i++ {
		if outA[i] == 0 && outB[i] == 0 {
			continue
		}
		for j := i + 1; j < len(work); j++ {
			if outA[i] != 0 && outB[j] != 0 {
				settledA, settledB, err := e.crossSides(&work[i].SellSide, &work[j].BuySide, outA[i], outB[j], oraclePrice)
				if err != nil {
					return res, err
				}
				outA[i] -= settledA
				outB[j] -= settledB
			}
			if outB[i] != 0 && outA[j] != 0 {
				settledA, settledB, err := e.crossSides(&work[j].SellSide, &work[i].BuySide, outA[j], outB[i], oraclePrice)
				if err != nil {
					return res, err
				}
				outA[j] -= settledA
				outB[i] -= settledB
			}
		}
	}

	netA, err := sum(outA)
	if err != nil {
		return res, err
	}
	netB, err := sum(outB)
	if err != nil {
		return res, err
	}
	switch {
	case netA != 0 && netB != 0:
		return res, fmt.Errorf("%w: residual on both sides (a=%d b=%d)", errs.ErrSettlementError, netA, netB)
	case netA != 0:
		res.SettlementSide = model.MatchingSell
		res.NetAmountRequired = netA
	case netB != 0:
		res.SettlementSide = model.MatchingBuy
		res.NetAmountRequired = netB
	default:
		res.SettlementSide = model.MatchingInternal
	}

	if res.SettlementSide != model.MatchingInternal && supplySide != res.SettlementSide &&
		tokenAChange != 0 && tokenBChange != 0 {
		if err := e.fillFromSupply(work, outA, outB, &res, tokenAChange, tokenBChange, exchangeRate); err != nil {
			return res, err
		}
	}

	for i, p := range work {
		p.SellSide.SettlementDebtTotal = outA[i]
		p.SellSide.LastBalanceChangeTime = now
		p.BuySide.SettlementDebtTotal = outB[i]
		p.BuySide.LastBalanceChangeTime = now
	}

	crossedA := totalA - netA
	crossedB := totalB - netB
	if res.SettlementSide == model.MatchingSell {
		if res.TotalAmountSettledA, err = mathutil.Add(crossedA, res.NetAmountSettled); err != nil {
			return res, err
		}
		res.TotalAmountSettledB = crossedB
	} else {
		res.TotalAmountSettledA = crossedA
		if res.TotalAmountSettledB, err = mathutil.Add(crossedB, res.NetAmountSettled); err != nil {
			return res, err
		}
	}

	for i, p := range pools {
		*p = *work[i]
	}
	return res, nil
}

// fillFromSupply distributes the external fill across pools in order and
// credits any rounding remainder of the received amount to the filled pools.
func (e *Engine) fillFromSupply(work []*model.Pool, outA, outB []uint64, res *model.Settlement,
	tokenAChange, tokenBChange uint64, rate price.Price) error {
	var poolOut, supplyIn uint64
	var err error
	if res.SettlementSide == model.MatchingSell {
		poolOut = min(tokenAChange, res.NetAmountRequired)
		supplyIn = tokenBChange
		if tokenAChange > res.NetAmountRequired {
			if supplyIn, err = e.conv.BAmountCeil(poolOut, rate); err != nil {
				return err
			}
		}
	} else {
		poolOut = min(tokenBChange, res.NetAmountRequired)
		supplyIn = tokenAChange
		if tokenBChange > res.NetAmountRequired {
			if supplyIn, err = e.conv.AAmountCeil(poolOut, rate); err != nil {
				return err
			}
		}
	}
	res.NetAmountSettled = poolOut
	res.SourceAmountReceived = supplyIn

	var filled []*model.PoolSide
	for i, p := range work {
		var settled, received uint64
		switch {
		case outA[i] != 0:
			settled, received, err = e.crossSupply(&p.SellSide, model.MatchingSell, min(poolOut, outA[i]), supplyIn, rate)
			if err != nil {
				return err
			}
			outA[i] -= settled
			filled = append(filled, &p.SellSide)
		case outB[i] != 0:
			settled, received, err = e.crossSupply(&p.BuySide, model.MatchingBuy, min(poolOut, outB[i]), supplyIn, rate)
			if err != nil {
				return err
			}
			outB[i] -= settled
			filled = append(filled, &p.BuySide)
		}
		if poolOut, err = mathutil.Sub(poolOut, settled); err != nil {
			return err
		}
		if supplyIn, err = mathutil.Sub(supplyIn, received); err != nil {
			return err
		}
		if poolOut == 0 || supplyIn == 0 {
			break
		}
	}

	if poolOut == 0 {
		if supplyIn > 0 {
			return redistribute(filled, supplyIn)
		}
		return nil
	}
	// The supply ran out or every pool was exhausted: the unfilled part is
	// neither delivered nor received.
	res.NetAmountSettled -= poolOut
	res.SourceAmountReceived -= supplyIn
	return nil
}

// redistribute credits a rounding remainder to the filled sides in order, a
// rounded up even share each, so the whole remainder is always placed.
func redistribute(filled []*model.PoolSide, remainder uint64) error {
	if len(filled) == 0 {
		return fmt.Errorf("%w: remainder %d with no filled pools", errs.ErrSettlementError, remainder)
	}
	share, err := mathutil.CeilDiv(remainder, uint64(len(filled)))
	if err != nil {
		return err
	}
	for _, side := range filled {
		change := min(remainder, share)
		if side.TargetBalance, err = mathutil.Add(side.TargetBalance, change); err != nil {
			return err
		}
		remainder -= change
	}
	return nil
}

// crossSides matches a sell side against a buy side at rate. It returns the
// token A and token B amounts that crossed.
func (e *Engine) crossSides(sell, buy *model.PoolSide, outstandingSell, outstandingBuy uint64, rate price.Price) (uint64, uint64, error) {
	if outstandingSell == 0 || outstandingBuy == 0 {
		return 0, 0, nil
	}
	if outstandingSell > sell.SourceBalance || outstandingBuy > buy.SourceBalance {
		return 0, 0, fmt.Errorf("%w: outstanding exceeds source balance", errs.ErrSettlementError)
	}
	expectedBuy, err := e.conv.BAmount(outstandingSell, rate)
	if err != nil {
		return 0, 0, err
	}
	matchSell, matchBuy := outstandingSell, expectedBuy
	if expectedBuy > outstandingBuy {
		a, err := e.conv.AAmount(outstandingBuy, rate)
		if err != nil {
			return 0, 0, err
		}
		matchSell, matchBuy = min(outstandingSell, a), outstandingBuy
	}
	if matchSell == 0 || matchBuy == 0 {
		return 0, 0, nil
	}

	sell.SourceBalance -= matchSell
	if sell.TargetBalance, err = mathutil.Add(sell.TargetBalance, matchBuy); err != nil {
		return 0, 0, err
	}
	buy.SourceBalance -= matchBuy
	if buy.TargetBalance, err = mathutil.Add(buy.TargetBalance, matchSell); err != nil {
		return 0, 0, err
	}
	r := rate.Float64()
	if err := recordFill(sell, matchSell, r); err != nil {
		return 0, 0, err
	}
	if err := recordFill(buy, matchBuy, r); err != nil {
		return 0, 0, err
	}
	return matchSell, matchBuy, nil
}

// crossSupply matches one pool side against the external supply. It returns
// the amount taken from the side's source and the amount of supply received.
func (e *Engine) crossSupply(side *model.PoolSide, settlementSide model.MatchingSide, outstanding, supply uint64, rate price.Price) (uint64, uint64, error) {
	if outstanding == 0 || supply == 0 {
		return 0, 0, nil
	}
	if outstanding > side.SourceBalance {
		return 0, 0, fmt.Errorf("%w: outstanding exceeds source balance", errs.ErrSettlementError)
	}
	toCounter, fromCounter := e.conv.BAmount, e.conv.AAmount
	if settlementSide != model.MatchingSell {
		toCounter, fromCounter = e.conv.AAmount, e.conv.BAmount
	}
	expected, err := toCounter(outstanding, rate)
	if err != nil {
		return 0, 0, err
	}
	matchSource, matchSupply := outstanding, expected
	if expected > supply {
		if matchSource, err = fromCounter(supply, rate); err != nil {
			return 0, 0, err
		}
		matchSupply = supply
	}
	if matchSource == 0 || matchSupply == 0 {
		return 0, 0, nil
	}
	if side.SourceBalance, err = mathutil.Sub(side.SourceBalance, matchSource); err != nil {
		return 0, 0, err
	}
	if side.TargetBalance, err = mathutil.Add(side.TargetBalance, matchSupply); err != nil {
		return 0, 0, err
	}
	if err := recordFill(side, matchSource, rate.Float64()); err != nil {
		return 0, 0, err
	}
	return matchSource, matchSupply, nil
}

func recordFill(side *model.PoolSide, volume uint64, rate float64) error {
	var err error
	side.WeightedFillsSum += float64(volume) * rate
	if side.FillsVolume, err = mathutil.Add(side.FillsVolume, volume); err != nil {
		return err
	}
	if side.MinFillPrice == 0 || rate < side.MinFillPrice {
		side.MinFillPrice = rate
	}
	if side.MaxFillPrice == 0 || rate > side.MaxFillPrice {
		side.MaxFillPrice = rate
	}
	return nil
}

func sum(values []uint64) (uint64, error) {
	var total uint64
	var err error
	for _, v := range values {
		if total, err = mathutil.Add(total, v); err != nil {
			return 0, err
		}
	}
	return total, nil
}
