package price

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	"twammEngine/internal/errs"
)

const (
	// PairPriceDigits is the number of extra decimal digits kept when one
	// price is divided by another.
	PairPriceDigits = 6
	// USDDecimals is the precision of USD volume statistics.
	USDDecimals = 6
)

// Price is a fixed-point value Mantissa * 10^Exponent.
type Price struct {
	Mantissa uint64 `json:"mantissa"`
	Exponent int32  `json:"exponent"`
}

func New(mantissa uint64, exponent int32) Price {
	return Price{Mantissa: mantissa, Exponent: exponent}
}

// Parse reads a non-negative decimal string such as "30.0" or "4.004e-7".
func Parse(input string) (Price, error) {
	d, err := decimal.NewFromString(input)
	if err != nil {
		return Price{}, fmt.Errorf("parse price %q: %w", input, err)
	}
	return FromDecimal(d)
}

// FromDecimal converts a decimal value into a Price without losing digits.
func FromDecimal(d decimal.Decimal) (Price, error) {
	if d.IsNegative() {
		return Price{}, fmt.Errorf("%w: negative price %s", errs.ErrInvalidOraclePrice, d.String())
	}
	mantissa, err := toUint64(d.Coefficient())
	if err != nil {
		return Price{}, err
	}
	return Price{Mantissa: mantissa, Exponent: d.Exponent()}, nil
}

func (p Price) Decimal() decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(p.Mantissa), p.Exponent)
}

func (p Price) String() string {
	return p.Decimal().String()
}

func (p Price) IsZero() bool {
	return p.Mantissa == 0
}

// Float64 returns the closest float64. It is used only for fill statistics
// and price deviation checks, never for amounts.
func (p Price) Float64() float64 {
	f, _ := p.Decimal().Float64()
	return f
}

// Normalize strips trailing zeros from the mantissa.
func (p Price) Normalize() Price {
	if p.Mantissa == 0 {
		return Price{}
	}
	for p.Mantissa%10 == 0 {
		p.Mantissa /= 10
		p.Exponent++
	}
	return p
}

// Div returns p / other, truncated after PairPriceDigits extra digits of the
// normalized operands.
func (p Price) Div(other Price) (Price, error) {
	if other.Mantissa == 0 {
		return Price{}, fmt.Errorf("%w: division by zero price", errs.ErrMathOverflow)
	}
	base := p.Normalize()
	quote := other.Normalize()

	num := new(big.Int).SetUint64(base.Mantissa)
	num.Mul(num, pow10(PairPriceDigits))
	num.Quo(num, new(big.Int).SetUint64(quote.Mantissa))
	mantissa, err := toUint64(num)
	if err != nil {
		return Price{}, err
	}
	return Price{
		Mantissa: mantissa,
		Exponent: base.Exponent - PairPriceDigits - quote.Exponent,
	}, nil
}

// TokenDiv returns the price of (amount1, decimals1) per (amount2, decimals2)
// at the larger of the two precisions, rounded down.
func TokenDiv(amount1 uint64, decimals1 uint8, amount2 uint64, decimals2 uint8) (Price, error) {
	return tokenDiv(amount1, decimals1, amount2, decimals2, false)
}

// TokenDivCeil is TokenDiv rounded up at the target precision.
func TokenDivCeil(amount1 uint64, decimals1 uint8, amount2 uint64, decimals2 uint8) (Price, error) {
	return tokenDiv(amount1, decimals1, amount2, decimals2, true)
}

func tokenDiv(amount1 uint64, decimals1 uint8, amount2 uint64, decimals2 uint8, ceil bool) (Price, error) {
	if amount2 == 0 {
		return Price{}, fmt.Errorf("%w: division by zero", errs.ErrMathOverflow)
	}
	target := max(decimals1, decimals2)
	num := new(big.Int).SetUint64(amount1)
	num.Mul(num, pow10(int32(decimals2)+int32(target)-int32(decimals1)))
	mantissa, err := toUint64(divide(num, new(big.Int).SetUint64(amount2), ceil))
	if err != nil {
		return Price{}, err
	}
	return Price{Mantissa: mantissa, Exponent: -int32(target)}, nil
}

// AssetAmountUSD values amount (in 10^-decimals units) at p, in 10^-6 USD.
func AssetAmountUSD(amount uint64, decimals uint8, p Price) (uint64, error) {
	if amount == 0 || p.Mantissa == 0 {
		return 0, nil
	}
	return DecimalMul(amount, -int32(decimals), p.Mantissa, p.Exponent, -USDDecimals)
}

// Converter converts between the two tokens of a pair. Rates are always the
// price of one whole token A expressed in token B.
type Converter struct {
	DecimalsA uint8
	DecimalsB uint8
}

// BAmount converts a token A amount to token B, rounding down.
func (c Converter) BAmount(amountA uint64, rate Price) (uint64, error) {
	return DecimalMul(amountA, -int32(c.DecimalsA), rate.Mantissa, rate.Exponent, -int32(c.DecimalsB))
}

// BAmountCeil converts a token A amount to token B, rounding up.
func (c Converter) BAmountCeil(amountA uint64, rate Price) (uint64, error) {
	return DecimalCeilMul(amountA, -int32(c.DecimalsA), rate.Mantissa, rate.Exponent, -int32(c.DecimalsB))
}

// AAmount converts a token B amount to token A, rounding down.
func (c Converter) AAmount(amountB uint64, rate Price) (uint64, error) {
	return DecimalDiv(amountB, -int32(c.DecimalsB), rate.Mantissa, rate.Exponent, -int32(c.DecimalsA))
}

// AAmountCeil converts a token B amount to token A, rounding up at working precision.
func (c Converter) AAmountCeil(amountB uint64, rate Price) (uint64, error) {
	return DecimalCeilDiv(amountB, -int32(c.DecimalsB), rate.Mantissa, rate.Exponent, -int32(c.DecimalsA))
}
