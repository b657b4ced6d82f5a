package model

import "github.com/ethereum/go-ethereum/common"

// TokenConfig holds per-token parameters of a pair.
type TokenConfig struct {
	CrankReward          uint64         `json:"crank_reward"`
	MinSwapAmount        uint64         `json:"min_swap_amount"`
	MaxOraclePriceError  float64        `json:"max_oracle_price_error"`
	MaxOraclePriceAgeSec uint32         `json:"max_oracle_price_age_sec"`
	OracleType           OracleType     `json:"oracle_type"`
	OracleAccount        common.Address `json:"oracle_account"`
	Mint                 common.Address `json:"mint"`
	Custody              common.Address `json:"custody"`
	Decimals             uint8          `json:"decimals"`
}

// TokenStats accumulates per-token statistics of a pair.
type TokenStats struct {
	PendingWithdrawals uint64 `json:"pending_withdrawals"`
	FeesCollected      uint64 `json:"fees_collected"`
	OrderVolumeUSD     uint64 `json:"order_volume_usd"`
	RoutedVolumeUSD    uint64 `json:"routed_volume_usd"`
	SettledVolumeUSD   uint64 `json:"settled_volume_usd"`
}

// OracleQuote is a raw price report of a test oracle account.
type OracleQuote struct {
	Account     common.Address `json:"account"`
	Price       uint64         `json:"price"`
	Exponent    int32          `json:"expo"`
	Confidence  uint64         `json:"conf"`
	PublishTime int64          `json:"publish_time"`
}
