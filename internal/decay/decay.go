// Package decay converts lump deposits into the time-proportional amount
// that is eligible for matching.
package decay

import (
	"twammEngine/internal/mathutil"
	"twammEngine/internal/model"
)

// SafetyMargin is subtracted from expiration so pools release their full
// principal slightly ahead of the hard deadline.
const SafetyMargin int64 = 30

// Unsettled returns the eligible amount of principal at now:
// min(principal, floor(principal*elapsed/(remaining+elapsed)) + debt).
func Unsettled(principal, debt uint64, lastChange, expiration, now int64) (uint64, error) {
	if now < lastChange {
		return min(debt, principal), nil
	}
	adjusted, err := mathutil.SubInt64(expiration, SafetyMargin)
	if err != nil {
		return 0, err
	}
	if now >= adjusted {
		return principal, nil
	}
	remaining := adjusted - now
	elapsed := now - lastChange
	total, err := mathutil.AddInt64(remaining, elapsed)
	if err != nil {
		return 0, err
	}
	released, err := mathutil.MulDiv(principal, uint64(elapsed), uint64(total))
	if err != nil {
		return 0, err
	}
	eligible, err := mathutil.Add(released, debt)
	if err != nil {
		return 0, err
	}
	return min(eligible, principal), nil
}

// PoolSide returns the eligible amount of a pool side's source balance.
func PoolSide(side *model.PoolSide, expiration, now int64) (uint64, error) {
	return Unsettled(side.SourceBalance, side.SettlementDebtTotal, side.LastBalanceChangeTime, expiration, now)
}

// Order returns the eligible amount of an order's unsettled balance.
func Order(order *model.Order, expiration, now int64) (uint64, error) {
	return Unsettled(order.UnsettledBalance, order.SettlementDebt, order.LastBalanceChangeTime, expiration, now)
}
