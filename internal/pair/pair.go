// Package pair holds the long-lived configuration and statistics of a token
// pair together with its validated admin operations.
package pair

import (
	"errors"
	"fmt"
	"math"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"twammEngine/internal/errs"
	"twammEngine/internal/model"
	"twammEngine/internal/pool"
	"twammEngine/internal/price"
)

var pairSeed = []byte("token_pair")

// TokenPair is the admin-owned state of one trading pair.
type TokenPair struct {
	Address common.Address `json:"address"`

	AllowDeposits    bool `json:"allow_deposits"`
	AllowWithdrawals bool `json:"allow_withdrawals"`
	AllowCranks      bool `json:"allow_cranks"`
	AllowSettlements bool `json:"allow_settlements"`

	// withdrawal fee, taken from the target side only
	FeeNumerator   uint64 `json:"fee_numerator"`
	FeeDenominator uint64 `json:"fee_denominator"`

	// settlement fee, taken from the paid out token only
	SettleFeeNumerator   uint64 `json:"settle_fee_numerator"`
	SettleFeeDenominator uint64 `json:"settle_fee_denominator"`

	MaxSwapPriceDiff      float64 `json:"max_swap_price_diff"`
	MaxUnsettledAmount    float64 `json:"max_unsettled_amount"`
	MinTimeTillExpiration float64 `json:"min_time_till_expiration"`

	CrankAuthority common.Address `json:"crank_authority"`

	ConfigA model.TokenConfig `json:"config_a"`
	ConfigB model.TokenConfig `json:"config_b"`
	StatsA  model.TokenStats  `json:"stats_a"`
	StatsB  model.TokenStats  `json:"stats_b"`

	Pools pool.Slots `json:"pools"`

	InceptionTime int64 `json:"inception_time"`
}

// Address derives the address of the pair of two mints.
func Address(mintA, mintB common.Address) common.Address {
	return common.BytesToAddress(crypto.Keccak256(pairSeed, mintA.Bytes(), mintB.Bytes()))
}

// Initialized reports whether the pair has been set up.
func (tp *TokenPair) Initialized() bool {
	return tp.ConfigA.Mint != (common.Address{})
}

// Converter converts amounts between the pair's tokens.
func (tp *TokenPair) Converter() price.Converter {
	return price.Converter{DecimalsA: tp.ConfigA.Decimals, DecimalsB: tp.ConfigB.Decimals}
}

// PoolAddress derives the address of a pool of this pair.
func (tp *TokenPair) PoolAddress(timeInForce uint32, counter uint64) common.Address {
	return pool.Address(tp.ConfigA.Custody, tp.ConfigB.Custody, timeInForce, counter)
}

// NewPool returns an empty active pool of this pair.
func (tp *TokenPair) NewPool(timeInForce uint32, counter uint64, expiration int64) *model.Pool {
	return pool.New(tp.Address, tp.ConfigA.Custody, tp.ConfigB.Custody, timeInForce, counter, expiration)
}

// Clone returns a copy safe to mutate.
func (tp *TokenPair) Clone() *TokenPair {
	cp := *tp
	return &cp
}

// Validate checks the configuration invariants.
func (tp *TokenPair) Validate() error {
	var problems []error
	if tp.FeeNumerator >= tp.FeeDenominator {
		problems = append(problems, fmt.Errorf("fee %d/%d is not a proper fraction", tp.FeeNumerator, tp.FeeDenominator))
	}
	if tp.SettleFeeNumerator >= tp.SettleFeeDenominator {
		problems = append(problems, fmt.Errorf("settle fee %d/%d is not a proper fraction", tp.SettleFeeNumerator, tp.SettleFeeDenominator))
	}
	for name, v := range map[string]float64{
		"max swap price diff":      tp.MaxSwapPriceDiff,
		"max unsettled amount":     tp.MaxUnsettledAmount,
		"min time till expiration": tp.MinTimeTillExpiration,
	} {
		if !unitInterval(v) {
			problems = append(problems, fmt.Errorf("%s %v outside [0, 1]", name, v))
		}
	}
	if tp.AllowSettlements && (tp.ConfigA.OracleType == model.OracleNone || tp.ConfigB.OracleType == model.OracleNone) {
		problems = append(problems, errors.New("settlements require oracles for both tokens"))
	}
	for name, cfg := range map[string]model.TokenConfig{"a": tp.ConfigA, "b": tp.ConfigB} {
		if cfg.OracleType == model.OracleNone {
			continue
		}
		if cfg.OracleAccount == (common.Address{}) {
			problems = append(problems, fmt.Errorf("token %s oracle account is empty", name))
		}
		if !(cfg.MaxOraclePriceError >= 0) {
			problems = append(problems, fmt.Errorf("token %s max oracle price error %v is negative", name, cfg.MaxOraclePriceError))
		}
	}
	if tp.Pools.HasDuplicates() {
		problems = append(problems, errors.New("duplicate time in force"))
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %w", errs.ErrInvalidTokenPairConfig, errors.Join(problems...))
	}
	return nil
}

func unitInterval(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 1
}
