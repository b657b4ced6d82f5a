package config

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"twammEngine/internal/errs"
	"twammEngine/internal/model"
	"twammEngine/internal/pair"
	"twammEngine/internal/pool"
)

type oracleFile struct {
	Type           string `mapstructure:"type"`
	Account        string `mapstructure:"account"`
	MaxPriceError  string `mapstructure:"max-price-error"`
	MaxPriceAgeSec uint32 `mapstructure:"max-price-age-sec"`
}

type tokenFile struct {
	Mint          string     `mapstructure:"mint"`
	Custody       string     `mapstructure:"custody"`
	Decimals      uint8      `mapstructure:"decimals"`
	MinSwapAmount uint64     `mapstructure:"min-swap-amount"`
	CrankReward   uint64     `mapstructure:"crank-reward"`
	Oracle        oracleFile `mapstructure:"oracle"`
}

type pairFile struct {
	AllowDeposits         bool      `mapstructure:"allow-deposits"`
	AllowWithdrawals      bool      `mapstructure:"allow-withdrawals"`
	AllowCranks           bool      `mapstructure:"allow-cranks"`
	AllowSettlements      bool      `mapstructure:"allow-settlements"`
	FeeNumerator          uint64    `mapstructure:"fee-numerator"`
	FeeDenominator        uint64    `mapstructure:"fee-denominator"`
	SettleFeeNumerator    uint64    `mapstructure:"settle-fee-numerator"`
	SettleFeeDenominator  uint64    `mapstructure:"settle-fee-denominator"`
	MaxSwapPriceDiff      string    `mapstructure:"max-swap-price-diff"`
	MaxUnsettledAmount    string    `mapstructure:"max-unsettled-amount"`
	MinTimeTillExpiration string    `mapstructure:"min-time-till-expiration"`
	CrankAuthority        string    `mapstructure:"crank-authority"`
	TimeInForce           []uint32  `mapstructure:"time-in-force"`
	TokenA                tokenFile `mapstructure:"token-a"`
	TokenB                tokenFile `mapstructure:"token-b"`
}

// LoadPair reads the init parameters of a token pair from a YAML, JSON or
// TOML file. Fractions are decimal strings such as "0.05".
func LoadPair(file string) (pair.InitParams, error) {
	if file == "" {
		return pair.InitParams{}, fmt.Errorf("pair file is required")
	}
	v := viper.New()
	v.SetConfigFile(file)
	v.SetDefault("allow-deposits", true)
	v.SetDefault("allow-withdrawals", true)
	v.SetDefault("allow-cranks", true)
	v.SetDefault("allow-settlements", true)
	v.SetDefault("fee-denominator", uint64(1000))
	v.SetDefault("settle-fee-denominator", uint64(1000))
	if err := v.ReadInConfig(); err != nil {
		return pair.InitParams{}, fmt.Errorf("read pair file: %w", err)
	}
	var raw pairFile
	if err := v.Unmarshal(&raw); err != nil {
		return pair.InitParams{}, fmt.Errorf("decode pair file: %w", err)
	}
	params, err := raw.params()
	if err != nil {
		return pair.InitParams{}, fmt.Errorf("%w: %w", errs.ErrInvalidTokenPairConfig, err)
	}
	return params, nil
}

func (f pairFile) params() (pair.InitParams, error) {
	var p pair.InitParams
	var err error
	p.Permissions = pair.Permissions{
		AllowDeposits:    f.AllowDeposits,
		AllowWithdrawals: f.AllowWithdrawals,
		AllowCranks:      f.AllowCranks,
		AllowSettlements: f.AllowSettlements,
	}
	p.Fees = pair.Fees{
		FeeNumerator:         f.FeeNumerator,
		FeeDenominator:       f.FeeDenominator,
		SettleFeeNumerator:   f.SettleFeeNumerator,
		SettleFeeDenominator: f.SettleFeeDenominator,
		CrankRewardA:         f.TokenA.CrankReward,
		CrankRewardB:         f.TokenB.CrankReward,
	}
	p.Limits.MinSwapAmountA = f.TokenA.MinSwapAmount
	p.Limits.MinSwapAmountB = f.TokenB.MinSwapAmount
	if p.Limits.MaxSwapPriceDiff, err = ParseFraction(f.MaxSwapPriceDiff); err != nil {
		return p, fmt.Errorf("max-swap-price-diff: %w", err)
	}
	if p.Limits.MaxUnsettledAmount, err = ParseFraction(f.MaxUnsettledAmount); err != nil {
		return p, fmt.Errorf("max-unsettled-amount: %w", err)
	}
	if p.Limits.MinTimeTillExpiration, err = ParseFraction(f.MinTimeTillExpiration); err != nil {
		return p, fmt.Errorf("min-time-till-expiration: %w", err)
	}
	if f.CrankAuthority != "" {
		if p.CrankAuthority, err = ParseAddress(f.CrankAuthority); err != nil {
			return p, fmt.Errorf("crank-authority: %w", err)
		}
	}
	if len(f.TimeInForce) > pool.MaxPools {
		return p, fmt.Errorf("%d tenors exceed %d", len(f.TimeInForce), pool.MaxPools)
	}
	copy(p.TimeInForce[:], f.TimeInForce)

	if p.TokenA, p.OracleA, err = f.TokenA.parse(); err != nil {
		return p, fmt.Errorf("token-a: %w", err)
	}
	if p.TokenB, p.OracleB, err = f.TokenB.parse(); err != nil {
		return p, fmt.Errorf("token-b: %w", err)
	}
	return p, nil
}

func (t tokenFile) parse() (pair.Token, pair.OracleSettings, error) {
	var tok pair.Token
	var o pair.OracleSettings
	var err error
	if tok.Mint, err = ParseAddress(t.Mint); err != nil {
		return tok, o, fmt.Errorf("mint: %w", err)
	}
	if tok.Custody, err = ParseAddress(t.Custody); err != nil {
		return tok, o, fmt.Errorf("custody: %w", err)
	}
	tok.Decimals = t.Decimals

	if err := o.Type.UnmarshalText([]byte(t.Oracle.Type)); err != nil {
		return tok, o, fmt.Errorf("oracle type: %w", err)
	}
	if o.Type != model.OracleNone {
		if o.Account, err = ParseAddress(t.Oracle.Account); err != nil {
			return tok, o, fmt.Errorf("oracle account: %w", err)
		}
	}
	if o.MaxPriceError, err = ParseFraction(t.Oracle.MaxPriceError); err != nil {
		return tok, o, fmt.Errorf("oracle max-price-error: %w", err)
	}
	o.MaxPriceAgeSec = t.Oracle.MaxPriceAgeSec
	return tok, o, nil
}

// ParseFraction parses a decimal string into a float. Empty means zero.
func ParseFraction(input string) (float64, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return 0, nil
	}
	d, err := decimal.NewFromString(input)
	if err != nil {
		return 0, fmt.Errorf("parse %q: %w", input, err)
	}
	f, _ := d.Float64()
	return f, nil
}

// ParseAddress parses a hex address.
func ParseAddress(input string) (common.Address, error) {
	input = strings.TrimSpace(input)
	if !common.IsHexAddress(input) {
		return common.Address{}, fmt.Errorf("invalid address %q", input)
	}
	return common.HexToAddress(input), nil
}
