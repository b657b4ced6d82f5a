package pair

import (
	"twammEngine/internal/mathutil"
	"twammEngine/internal/model"
	"twammEngine/internal/pool"
	"twammEngine/internal/price"
)

// SettlementKind tells routed volume from user-settled volume.
type SettlementKind int

const (
	KindCrank SettlementKind = iota
	KindSettle
)

func (k SettlementKind) String() string {
	if k == KindCrank {
		return "crank"
	}
	return "settle"
}

// FinalizePool rotates the slot of a completed pool and moves its residual
// balances to pending withdrawals when it was the current pool. It reports
// whether the pool holds nothing and can be deleted.
func (tp *TokenPair) FinalizePool(p *model.Pool) (bool, error) {
	wasCurrent, err := tp.Pools.Finalize(p.TimeInForce, p.Counter)
	if err != nil {
		return false, err
	}
	if wasCurrent {
		tp.StatsA.PendingWithdrawals = mathutil.SaturatingAdd(tp.StatsA.PendingWithdrawals,
			mathutil.SaturatingAdd(p.SellSide.SourceBalance, p.BuySide.TargetBalance))
		tp.StatsB.PendingWithdrawals = mathutil.SaturatingAdd(tp.StatsB.PendingWithdrawals,
			mathutil.SaturatingAdd(p.SellSide.TargetBalance, p.BuySide.SourceBalance))
	}
	return pool.IsEmpty(p), nil
}

// ReleasePending reduces pending withdrawals by a payout from a finalized pool.
func (tp *TokenPair) ReleasePending(amountA, amountB uint64) {
	tp.StatsA.PendingWithdrawals = mathutil.SaturatingSub(tp.StatsA.PendingWithdrawals, amountA)
	tp.StatsB.PendingWithdrawals = mathutil.SaturatingSub(tp.StatsB.PendingWithdrawals, amountB)
}

// UpdateTradeStats accumulates USD volumes of a settlement. Volumes wrap on
// overflow.
func (tp *TokenPair) UpdateTradeStats(res model.Settlement, kind SettlementKind, priceA, priceB price.Price) error {
	switch res.SettlementSide {
	case model.MatchingSell:
		usd, err := price.AssetAmountUSD(res.NetAmountSettled, tp.ConfigA.Decimals, priceA)
		if err != nil {
			return err
		}
		addVolume(&tp.StatsA, kind, usd)
	case model.MatchingBuy:
		usd, err := price.AssetAmountUSD(res.NetAmountSettled, tp.ConfigB.Decimals, priceB)
		if err != nil {
			return err
		}
		addVolume(&tp.StatsB, kind, usd)
	}
	usdA, err := price.AssetAmountUSD(res.TotalAmountSettledA, tp.ConfigA.Decimals, priceA)
	if err != nil {
		return err
	}
	usdB, err := price.AssetAmountUSD(res.TotalAmountSettledB, tp.ConfigB.Decimals, priceB)
	if err != nil {
		return err
	}
	tp.StatsA.OrderVolumeUSD += usdA
	tp.StatsB.OrderVolumeUSD += usdB
	return nil
}

func addVolume(stats *model.TokenStats, kind SettlementKind, usd uint64) {
	if kind == KindCrank {
		stats.RoutedVolumeUSD += usd
	} else {
		stats.SettledVolumeUSD += usd
	}
}
