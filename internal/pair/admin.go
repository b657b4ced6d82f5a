package pair

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"twammEngine/internal/errs"
	"twammEngine/internal/mathutil"
	"twammEngine/internal/model"
	"twammEngine/internal/pool"
)

// ErrAlreadyInitialized is returned when a pair is set up twice.
var ErrAlreadyInitialized = errors.New("token pair already initialized")

// Fees are the withdrawal and settlement fee fractions plus crank rewards.
type Fees struct {
	FeeNumerator         uint64 `json:"fee_numerator"`
	FeeDenominator       uint64 `json:"fee_denominator"`
	SettleFeeNumerator   uint64 `json:"settle_fee_numerator"`
	SettleFeeDenominator uint64 `json:"settle_fee_denominator"`
	CrankRewardA         uint64 `json:"crank_reward_token_a"`
	CrankRewardB         uint64 `json:"crank_reward_token_b"`
}

// Limits bound swap sizes, routed prices and pool locking.
type Limits struct {
	MinSwapAmountA        uint64  `json:"min_swap_amount_token_a"`
	MinSwapAmountB        uint64  `json:"min_swap_amount_token_b"`
	MaxSwapPriceDiff      float64 `json:"max_swap_price_diff"`
	MaxUnsettledAmount    float64 `json:"max_unsettled_amount"`
	MinTimeTillExpiration float64 `json:"min_time_till_expiration"`
}

// OracleSettings configures the price feed of one token.
type OracleSettings struct {
	MaxPriceError  float64          `json:"max_oracle_price_error"`
	MaxPriceAgeSec uint32           `json:"max_oracle_price_age_sec"`
	Type           model.OracleType `json:"oracle_type"`
	Account        common.Address   `json:"oracle_account"`
}

// Permissions toggles the pair's entrypoints.
type Permissions struct {
	AllowDeposits    bool `json:"allow_deposits"`
	AllowWithdrawals bool `json:"allow_withdrawals"`
	AllowCranks      bool `json:"allow_cranks"`
	AllowSettlements bool `json:"allow_settlements"`
}

// Token identifies a token of the pair and its custody account.
type Token struct {
	Mint     common.Address `json:"mint"`
	Custody  common.Address `json:"custody"`
	Decimals uint8          `json:"decimals"`
}

// InitParams is the full configuration of a new pair.
type InitParams struct {
	Permissions
	Fees
	Limits
	OracleA        OracleSettings        `json:"oracle_a"`
	OracleB        OracleSettings        `json:"oracle_b"`
	CrankAuthority common.Address        `json:"crank_authority"`
	TimeInForce    [pool.MaxPools]uint32 `json:"time_in_force_intervals"`
	TokenA         Token                 `json:"token_a"`
	TokenB         Token                 `json:"token_b"`
}

// Init sets up an empty pair. The pair address is derived from the mints.
func Init(params InitParams, now int64) (*TokenPair, error) {
	tp := &TokenPair{}
	if err := tp.Init(params, now); err != nil {
		return nil, err
	}
	return tp, nil
}

// Init configures tp from params. An initialized pair is rejected.
func (tp *TokenPair) Init(params InitParams, now int64) error {
	if tp.Initialized() {
		return fmt.Errorf("%w: %s", ErrAlreadyInitialized, tp.Address.Hex())
	}
	if params.TokenA.Mint == (common.Address{}) || params.TokenB.Mint == (common.Address{}) {
		return fmt.Errorf("%w: empty mint", errs.ErrInvalidTokenPairConfig)
	}
	next := TokenPair{Address: Address(params.TokenA.Mint, params.TokenB.Mint)}
	next.applyPermissions(params.Permissions)
	next.applyFees(params.Fees)
	next.applyLimits(params.Limits)
	applyOracle(&next.ConfigA, params.OracleA)
	applyOracle(&next.ConfigB, params.OracleB)
	next.CrankAuthority = params.CrankAuthority
	applyToken(&next.ConfigA, params.TokenA)
	applyToken(&next.ConfigB, params.TokenB)
	next.Pools.TimeInForce = params.TimeInForce
	next.InceptionTime = now
	if err := next.Validate(); err != nil {
		return err
	}
	*tp = next
	return nil
}

// SetFees replaces the fee schedule.
func (tp *TokenPair) SetFees(fees Fees) error {
	return tp.mutate(func(next *TokenPair) error {
		next.applyFees(fees)
		return nil
	})
}

// SetLimits replaces the swap and locking limits.
func (tp *TokenPair) SetLimits(limits Limits) error {
	return tp.mutate(func(next *TokenPair) error {
		next.applyLimits(limits)
		return nil
	})
}

// SetOracleConfig replaces the oracle settings of both tokens.
func (tp *TokenPair) SetOracleConfig(a, b OracleSettings) error {
	return tp.mutate(func(next *TokenPair) error {
		applyOracle(&next.ConfigA, a)
		applyOracle(&next.ConfigB, b)
		return nil
	})
}

// SetPermissions replaces the entrypoint toggles.
func (tp *TokenPair) SetPermissions(p Permissions) error {
	return tp.mutate(func(next *TokenPair) error {
		next.applyPermissions(p)
		return nil
	})
}

// SetTimeInForce replaces the tenor of a slot with no live pools.
func (tp *TokenPair) SetTimeInForce(index int, timeInForce uint32) error {
	return tp.mutate(func(next *TokenPair) error {
		_, err := next.Pools.SetTimeInForce(index, timeInForce)
		return err
	})
}

// SetCrankAuthority restricts cranking to one caller. The zero address lets
// anyone crank.
func (tp *TokenPair) SetCrankAuthority(authority common.Address) {
	tp.CrankAuthority = authority
}

// WithdrawFees deducts collected fees. The caller moves the tokens.
func (tp *TokenPair) WithdrawFees(amountA, amountB uint64) error {
	if amountA > tp.StatsA.FeesCollected {
		return fmt.Errorf("%w: token a fees %d, requested %d", errs.ErrInvalidTokenAmount, tp.StatsA.FeesCollected, amountA)
	}
	if amountB > tp.StatsB.FeesCollected {
		return fmt.Errorf("%w: token b fees %d, requested %d", errs.ErrInvalidTokenAmount, tp.StatsB.FeesCollected, amountB)
	}
	tp.StatsA.FeesCollected -= amountA
	tp.StatsB.FeesCollected -= amountB
	return nil
}

// AddFee credits a collected fee to the stats of one token. The counter
// saturates at the u64 maximum.
func (tp *TokenPair) AddFee(tokenA bool, fee uint64) {
	stats := &tp.StatsB
	if tokenA {
		stats = &tp.StatsA
	}
	stats.FeesCollected = mathutil.SaturatingAdd(stats.FeesCollected, fee)
}

func (tp *TokenPair) mutate(fn func(next *TokenPair) error) error {
	next := tp.Clone()
	if err := fn(next); err != nil {
		return err
	}
	if err := next.Validate(); err != nil {
		return err
	}
	*tp = *next
	return nil
}

func (tp *TokenPair) applyPermissions(p Permissions) {
	tp.AllowDeposits = p.AllowDeposits
	tp.AllowWithdrawals = p.AllowWithdrawals
	tp.AllowCranks = p.AllowCranks
	tp.AllowSettlements = p.AllowSettlements
}

func (tp *TokenPair) applyFees(f Fees) {
	tp.FeeNumerator = f.FeeNumerator
	tp.FeeDenominator = f.FeeDenominator
	tp.SettleFeeNumerator = f.SettleFeeNumerator
	tp.SettleFeeDenominator = f.SettleFeeDenominator
	tp.ConfigA.CrankReward = f.CrankRewardA
	tp.ConfigB.CrankReward = f.CrankRewardB
}

func (tp *TokenPair) applyLimits(l Limits) {
	tp.ConfigA.MinSwapAmount = l.MinSwapAmountA
	tp.ConfigB.MinSwapAmount = l.MinSwapAmountB
	tp.MaxSwapPriceDiff = l.MaxSwapPriceDiff
	tp.MaxUnsettledAmount = l.MaxUnsettledAmount
	tp.MinTimeTillExpiration = l.MinTimeTillExpiration
}

func applyOracle(c *model.TokenConfig, o OracleSettings) {
	c.MaxOraclePriceError = o.MaxPriceError
	c.MaxOraclePriceAgeSec = o.MaxPriceAgeSec
	c.OracleType = o.Type
	c.OracleAccount = o.Account
}

func applyToken(c *model.TokenConfig, t Token) {
	c.Mint = t.Mint
	c.Custody = t.Custody
	c.Decimals = t.Decimals
}
