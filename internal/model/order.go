package model

import "github.com/ethereum/go-ethereum/common"

// Order is a participant's position in a single pool.
type Order struct {
	Address               common.Address `json:"address"`
	Owner                 common.Address `json:"owner"`
	Time                  int64          `json:"time"`
	Side                  OrderSide      `json:"side"`
	Pool                  common.Address `json:"pool"`
	LPBalance             uint64         `json:"lp_balance"`
	TokenDebt             uint64         `json:"token_debt"`
	UnsettledBalance      uint64         `json:"unsettled_balance"`
	SettlementDebt        uint64         `json:"settlement_debt"`
	LastBalanceChangeTime int64          `json:"last_balance_change_time"`
}
