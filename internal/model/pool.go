package model

import "github.com/ethereum/go-ethereum/common"

// PoolSide tracks one direction of a pool.
type PoolSide struct {
	SourceBalance         uint64  `json:"source_balance"`
	TargetBalance         uint64  `json:"target_balance"`
	LPSupply              uint64  `json:"lp_supply"`
	TokenDebtTotal        uint64  `json:"token_debt_total"`
	FillsVolume           uint64  `json:"fills_volume"`
	WeightedFillsSum      float64 `json:"weighted_fills_sum"`
	MinFillPrice          float64 `json:"min_fill_price"`
	MaxFillPrice          float64 `json:"max_fill_price"`
	NumTraders            uint64  `json:"num_traders"`
	SettlementDebtTotal   uint64  `json:"settlement_debt_total"`
	LastBalanceChangeTime int64   `json:"last_balance_change_time"`
}

// Pool is one (tenor, counter) instance of a token pair's liquidity pool.
type Pool struct {
	Address        common.Address `json:"address"`
	TokenPair      common.Address `json:"token_pair"`
	Status         PoolStatus     `json:"status"`
	TimeInForce    uint32         `json:"time_in_force"`
	ExpirationTime int64          `json:"expiration_time"`
	BuySide        PoolSide       `json:"buy_side"`
	SellSide       PoolSide       `json:"sell_side"`
	Counter        uint64         `json:"counter"`
}

// Side returns the pool side an order of the given direction deposits into.
func (p *Pool) Side(side OrderSide) *PoolSide {
	if side == OrderSell {
		return &p.SellSide
	}
	return &p.BuySide
}

// Clone returns a deep copy.
func (p *Pool) Clone() *Pool {
	if p == nil {
		return nil
	}
	cp := *p
	return &cp
}
