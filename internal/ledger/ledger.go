// Package ledger applies deposits and withdrawals to a pool side and the
// order holding a share of it.
package ledger

import (
	"fmt"

	"twammEngine/internal/decay"
	"twammEngine/internal/errs"
	"twammEngine/internal/mathutil"
	"twammEngine/internal/model"
)

// Deposit is the share accounting of one deposit.
type Deposit struct {
	Amount    uint64 `json:"amount"`
	LPMinted  uint64 `json:"lp_minted"`
	DebtAdded uint64 `json:"debt_added"`
	NewOrder  bool   `json:"new_order"`
}

// Withdrawal is the share accounting of one withdrawal. Target is the
// proceeds before the withdrawal fee.
type Withdrawal struct {
	LP          uint64 `json:"lp"`
	Source      uint64 `json:"source"`
	Target      uint64 `json:"target"`
	Fee         uint64 `json:"fee"`
	DebtRemoved uint64 `json:"debt_removed"`
	Closed      bool   `json:"closed"`
}

// Net returns the proceeds paid out after the fee.
func (w Withdrawal) Net() uint64 {
	return w.Target - w.Fee
}

// Quote computes LP shares and token debt for a deposit of amount into side.
func Quote(side *model.PoolSide, amount uint64) (lp, debt uint64, err error) {
	if side.SourceBalance == 0 {
		if side.TargetBalance != 0 && side.NumTraders != 0 {
			return 0, 0, fmt.Errorf("%w: deposit into a fully matched pool side", errs.ErrInvalidPoolState)
		}
		return amount, 0, nil
	}
	lp, err = mathutil.MulDiv(amount, side.LPSupply, side.SourceBalance)
	if err != nil {
		return 0, 0, err
	}
	debt, err = mathutil.MulSumDivCeil(amount, side.TargetBalance, side.TokenDebtTotal, side.SourceBalance)
	if err != nil {
		return 0, 0, err
	}
	return lp, debt, nil
}

// ApplyDeposit adds amount to side on behalf of order. Decay caches are
// refreshed from the state before the deposit. Nothing is written on error.
func ApplyDeposit(side *model.PoolSide, order *model.Order, amount uint64, expiration, now int64) (Deposit, error) {
	if amount == 0 {
		return Deposit{}, errs.ErrInvalidTokenAmount
	}
	lp, debt, err := Quote(side, amount)
	if err != nil {
		return Deposit{}, err
	}
	newOrder := order.LPBalance == 0

	s := *side
	if s.SettlementDebtTotal, err = decay.PoolSide(side, expiration, now); err != nil {
		return Deposit{}, err
	}
	s.LastBalanceChangeTime = now
	if s.SourceBalance, err = mathutil.Add(s.SourceBalance, amount); err != nil {
		return Deposit{}, err
	}
	if s.LPSupply, err = mathutil.Add(s.LPSupply, lp); err != nil {
		return Deposit{}, err
	}
	if s.TokenDebtTotal, err = mathutil.Add(s.TokenDebtTotal, debt); err != nil {
		return Deposit{}, err
	}
	if newOrder {
		if s.NumTraders, err = mathutil.Add(s.NumTraders, 1); err != nil {
			return Deposit{}, err
		}
	}

	o := *order
	if o.LPBalance, err = mathutil.Add(o.LPBalance, lp); err != nil {
		return Deposit{}, err
	}
	if o.TokenDebt, err = mathutil.Add(o.TokenDebt, debt); err != nil {
		return Deposit{}, err
	}
	if o.SettlementDebt, err = decay.Order(order, expiration, now); err != nil {
		return Deposit{}, err
	}
	if o.UnsettledBalance, err = mathutil.Add(o.UnsettledBalance, amount); err != nil {
		return Deposit{}, err
	}
	o.LastBalanceChangeTime = now

	*side = s
	*order = o
	return Deposit{Amount: amount, LPMinted: lp, DebtAdded: debt, NewOrder: newOrder}, nil
}

// WithdrawalFee returns ceil(amount*numerator/denominator).
func WithdrawalFee(amount, numerator, denominator uint64) (uint64, error) {
	if numerator == 0 || amount == 0 {
		return 0, nil
	}
	return mathutil.MulDivCeil(amount, numerator, denominator)
}

// ApplyWithdrawal removes up to requestedLP shares of order from side. A
// forced withdrawal always removes the full order balance. The fee is taken
// from target proceeds only. Nothing is written on error.
func ApplyWithdrawal(side *model.PoolSide, order *model.Order, requestedLP uint64, forced bool,
	feeNumerator, feeDenominator uint64, expiration, now int64) (Withdrawal, error) {
	if requestedLP == 0 {
		return Withdrawal{}, errs.ErrInvalidTokenAmount
	}
	orderLP := order.LPBalance
	if orderLP == 0 {
		return Withdrawal{}, fmt.Errorf("%w: order has no lp balance", errs.ErrInvalidTokenAmount)
	}
	lp := requestedLP
	if lp > orderLP || forced {
		lp = orderLP
	}
	if lp > side.LPSupply {
		return Withdrawal{}, fmt.Errorf("%w: lp %d exceeds supply %d", errs.ErrInvalidPoolState, lp, side.LPSupply)
	}

	sourceOut, err := mathutil.MulDiv(lp, side.SourceBalance, side.LPSupply)
	if err != nil {
		return Withdrawal{}, err
	}
	debtRemoved, err := mathutil.MulDivCeil(order.TokenDebt, lp, orderLP)
	if err != nil {
		return Withdrawal{}, err
	}
	targetOut, err := mathutil.MulSumDiv(lp, side.TargetBalance, side.TokenDebtTotal, side.LPSupply)
	if err != nil {
		return Withdrawal{}, err
	}
	if targetOut > debtRemoved {
		targetOut -= debtRemoved
	} else {
		targetOut = 0
	}
	fee, err := WithdrawalFee(targetOut, feeNumerator, feeDenominator)
	if err != nil {
		return Withdrawal{}, err
	}
	if fee > targetOut {
		return Withdrawal{}, fmt.Errorf("%w: fee %d exceeds proceeds %d", errs.ErrMathOverflow, fee, targetOut)
	}

	s := *side
	o := *order
	closed := orderLP == lp
	if closed {
		if s.NumTraders, err = mathutil.Sub(s.NumTraders, 1); err != nil {
			return Withdrawal{}, err
		}
		o.LPBalance = 0
	} else {
		o.LPBalance = orderLP - lp
		debtRemoved = min(debtRemoved, o.TokenDebt)
		o.TokenDebt -= debtRemoved
	}

	if o.SettlementDebt, err = decay.Order(order, expiration, now); err != nil {
		return Withdrawal{}, err
	}
	if o.UnsettledBalance, err = mathutil.Sub(o.UnsettledBalance, sourceOut); err != nil {
		return Withdrawal{}, err
	}
	o.LastBalanceChangeTime = now
	orderDebtRemoved := o.SettlementDebt
	if !closed {
		if orderDebtRemoved, err = mathutil.MulDiv(o.SettlementDebt, lp, orderLP); err != nil {
			return Withdrawal{}, err
		}
	}
	o.SettlementDebt -= orderDebtRemoved

	if s.SourceBalance, err = mathutil.Sub(s.SourceBalance, sourceOut); err != nil {
		return Withdrawal{}, err
	}
	if s.TargetBalance, err = mathutil.Sub(s.TargetBalance, targetOut); err != nil {
		return Withdrawal{}, err
	}
	if s.LPSupply, err = mathutil.Sub(s.LPSupply, lp); err != nil {
		return Withdrawal{}, err
	}
	if s.TokenDebtTotal, err = mathutil.Sub(s.TokenDebtTotal, debtRemoved); err != nil {
		return Withdrawal{}, err
	}
	pending, err := decay.PoolSide(&s, expiration, now)
	if err != nil {
		return Withdrawal{}, err
	}
	s.SettlementDebtTotal = mathutil.SaturatingSub(pending, orderDebtRemoved)
	s.LastBalanceChangeTime = now

	*side = s
	*order = o
	return Withdrawal{
		LP:          lp,
		Source:      sourceOut,
		Target:      targetOut,
		Fee:         fee,
		DebtRemoved: debtRemoved,
		Closed:      closed,
	}, nil
}
