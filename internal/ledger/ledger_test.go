package ledger

import (
	"testing"

	"github.com/stretchr/testify/require"

	"twammEngine/internal/errs"
	"twammEngine/internal/model"
)

func TestApplyDepositFirstIntoEmptySide(t *testing.T) {
	side := &model.PoolSide{}
	order := &model.Order{}

	dep, err := ApplyDeposit(side, order, 1000, 300, 0)
	require.NoError(t, err)
	require.Equal(t, Deposit{Amount: 1000, LPMinted: 1000, NewOrder: true}, dep)
	require.Equal(t, uint64(1000), side.SourceBalance)
	require.Equal(t, uint64(1000), side.LPSupply)
	require.Equal(t, uint64(1), side.NumTraders)
	require.Equal(t, uint64(1000), order.LPBalance)
	require.Equal(t, uint64(1000), order.UnsettledBalance)
}

func TestApplyDepositChargesDebtForAccruedProceeds(t *testing.T) {
	side := &model.PoolSide{SourceBalance: 1000, TargetBalance: 500, LPSupply: 1000, NumTraders: 1}
	order := &model.Order{}

	dep, err := ApplyDeposit(side, order, 333, 300, 0)
	require.NoError(t, err)
	require.Equal(t, uint64(333), dep.LPMinted)
	// ceil(333*500/1000)
	require.Equal(t, uint64(167), dep.DebtAdded)
	require.Equal(t, uint64(167), side.TokenDebtTotal)
	require.Equal(t, uint64(167), order.TokenDebt)
	require.Equal(t, uint64(2), side.NumTraders)
}

func TestApplyDepositRefreshesDecayBeforeDilution(t *testing.T) {
	side := &model.PoolSide{SourceBalance: 40000, LPSupply: 40000, NumTraders: 1}
	order := &model.Order{LPBalance: 40000, UnsettledBalance: 40000}

	_, err := ApplyDeposit(side, order, 10000, 300, 135)
	require.NoError(t, err)
	require.Equal(t, uint64(20000), side.SettlementDebtTotal)
	require.Equal(t, int64(135), side.LastBalanceChangeTime)
	require.Equal(t, uint64(20000), order.SettlementDebt)
	require.Equal(t, uint64(50000), order.UnsettledBalance)
	require.Equal(t, uint64(1), side.NumTraders)
}

func TestApplyDepositRejectsMatchedSide(t *testing.T) {
	side := &model.PoolSide{TargetBalance: 10, LPSupply: 5, NumTraders: 1}
	before := *side
	order := &model.Order{}

	_, err := ApplyDeposit(side, order, 100, 300, 0)
	require.ErrorIs(t, err, errs.ErrInvalidPoolState)
	require.Equal(t, before, *side)
	require.Equal(t, model.Order{}, *order)
}

func TestApplyDepositRejectsZero(t *testing.T) {
	_, err := ApplyDeposit(&model.PoolSide{}, &model.Order{}, 0, 300, 0)
	require.ErrorIs(t, err, errs.ErrInvalidTokenAmount)
}

func TestApplyWithdrawalSharesProceedsAndDebt(t *testing.T) {
	side := &model.PoolSide{SourceBalance: 500, TargetBalance: 600, LPSupply: 1500, TokenDebtTotal: 250, NumTraders: 2}
	first := &model.Order{LPBalance: 1000, UnsettledBalance: 400}
	second := &model.Order{LPBalance: 500, TokenDebt: 250, UnsettledBalance: 200}

	w, err := ApplyWithdrawal(side, first, 1000, false, 1, 100, 300, 0)
	require.NoError(t, err)
	require.Equal(t, Withdrawal{LP: 1000, Source: 333, Target: 566, Fee: 6, Closed: true}, w)
	require.Equal(t, uint64(560), w.Net())
	require.Equal(t, uint64(167), side.SourceBalance)
	require.Equal(t, uint64(34), side.TargetBalance)
	require.Equal(t, uint64(500), side.LPSupply)
	require.Equal(t, uint64(1), side.NumTraders)
	require.Equal(t, uint64(0), first.LPBalance)

	w, err = ApplyWithdrawal(side, second, 500, false, 1, 100, 300, 0)
	require.NoError(t, err)
	require.Equal(t, Withdrawal{LP: 500, Source: 167, Target: 34, Fee: 1, DebtRemoved: 250, Closed: true}, w)
	require.Equal(t, model.PoolSide{}, *side)
}

func TestApplyWithdrawalPartial(t *testing.T) {
	side := &model.PoolSide{SourceBalance: 1000, LPSupply: 1000, NumTraders: 1}
	order := &model.Order{LPBalance: 1000, UnsettledBalance: 1000}

	w, err := ApplyWithdrawal(side, order, 400, false, 0, 1, 300, 135)
	require.NoError(t, err)
	require.False(t, w.Closed)
	require.Equal(t, uint64(400), w.Source)
	require.Equal(t, uint64(600), order.LPBalance)
	require.Equal(t, uint64(600), order.UnsettledBalance)
	require.Equal(t, uint64(300), order.SettlementDebt)
	require.Equal(t, int64(135), order.LastBalanceChangeTime)
	require.Equal(t, uint64(600), side.SourceBalance)
	require.Equal(t, uint64(100), side.SettlementDebtTotal)
	require.Equal(t, uint64(1), side.NumTraders)
}

func TestApplyWithdrawalClampsAndForces(t *testing.T) {
	side := &model.PoolSide{SourceBalance: 100, LPSupply: 100, NumTraders: 1}
	order := &model.Order{LPBalance: 100, UnsettledBalance: 100}
	w, err := ApplyWithdrawal(side, order, 1000, false, 0, 1, 300, 0)
	require.NoError(t, err)
	require.Equal(t, uint64(100), w.LP)
	require.True(t, w.Closed)

	side = &model.PoolSide{SourceBalance: 100, LPSupply: 100, NumTraders: 1}
	order = &model.Order{LPBalance: 100, UnsettledBalance: 100}
	w, err = ApplyWithdrawal(side, order, 1, true, 0, 1, 300, 0)
	require.NoError(t, err)
	require.Equal(t, uint64(100), w.LP)
	require.True(t, w.Closed)
}

func TestApplyWithdrawalRejectsZero(t *testing.T) {
	_, err := ApplyWithdrawal(&model.PoolSide{}, &model.Order{LPBalance: 1}, 0, false, 0, 1, 300, 0)
	require.ErrorIs(t, err, errs.ErrInvalidTokenAmount)
}

func TestDepositWithdrawConserves(t *testing.T) {
	side := &model.PoolSide{}
	orders := []*model.Order{{}, {}, {}}
	var deposited uint64
	for i, o := range orders {
		amount := uint64(1000*(i+1) + 7)
		_, err := ApplyDeposit(side, o, amount, 600, int64(i*10))
		require.NoError(t, err)
		deposited += amount
	}
	var paid uint64
	for _, o := range orders {
		w, err := ApplyWithdrawal(side, o, o.LPBalance, false, 0, 1, 600, 50)
		require.NoError(t, err)
		paid += w.Source + w.Target
	}
	require.LessOrEqual(t, paid+side.SourceBalance, deposited)
	require.Zero(t, side.LPSupply)
	require.Zero(t, side.NumTraders)
}
