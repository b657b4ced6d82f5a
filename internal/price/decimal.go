package price

import (
	"fmt"
	"math/big"

	"twammEngine/internal/errs"
)

// Decimal arithmetic over (coefficient, exponent) pairs. Every function
// returns a value expressed in units of 10^targetExponent and fails with
// ErrMathOverflow when the result does not fit in 64 bits.

var bigTen = big.NewInt(10)

func pow10(n int32) *big.Int {
	return new(big.Int).Exp(bigTen, big.NewInt(int64(n)), nil)
}

func toUint64(v *big.Int) (uint64, error) {
	if v.Sign() < 0 || !v.IsUint64() {
		return 0, fmt.Errorf("%w: %s does not fit in 64 bits", errs.ErrMathOverflow, v.String())
	}
	return v.Uint64(), nil
}

// DecimalMul returns floor(c1*10^e1 * c2*10^e2 / 10^target).
func DecimalMul(c1 uint64, e1 int32, c2 uint64, e2 int32, target int32) (uint64, error) {
	return decimalMul(c1, e1, c2, e2, target, false)
}

// DecimalCeilMul is DecimalMul rounded up.
func DecimalCeilMul(c1 uint64, e1 int32, c2 uint64, e2 int32, target int32) (uint64, error) {
	return decimalMul(c1, e1, c2, e2, target, true)
}

func decimalMul(c1 uint64, e1 int32, c2 uint64, e2 int32, target int32, ceil bool) (uint64, error) {
	if c1 == 0 || c2 == 0 {
		return 0, nil
	}
	product := new(big.Int).Mul(new(big.Int).SetUint64(c1), new(big.Int).SetUint64(c2))
	power := e1 + e2 - target
	if power >= 0 {
		return toUint64(product.Mul(product, pow10(power)))
	}
	return toUint64(divide(product, pow10(-power), ceil))
}

// DecimalDiv returns floor((c1*10^e1) / (c2*10^e2) / 10^target).
func DecimalDiv(c1 uint64, e1 int32, c2 uint64, e2 int32, target int32) (uint64, error) {
	return decimalDiv(c1, e1, c2, e2, target, false)
}

// DecimalCeilDiv rounds the quotient up at the working precision of the
// scaled dividend and then truncates it to the target exponent. The result
// is therefore at most one unit above DecimalDiv and often equal to it.
func DecimalCeilDiv(c1 uint64, e1 int32, c2 uint64, e2 int32, target int32) (uint64, error) {
	return decimalDiv(c1, e1, c2, e2, target, true)
}

func decimalDiv(c1 uint64, e1 int32, c2 uint64, e2 int32, target int32, ceil bool) (uint64, error) {
	if c2 == 0 {
		return 0, fmt.Errorf("%w: division by zero", errs.ErrMathOverflow)
	}
	if c1 == 0 {
		return 0, nil
	}

	var scale int32
	power := e1 - e2 - target
	if e1 > 0 {
		scale += e1
		power -= e1
	}
	if e2 < 0 {
		scale -= e2
		power += e2
	}
	if target < 0 {
		scale -= target
		power += target
	}

	scaled := new(big.Int).SetUint64(c1)
	if scale > 0 {
		scaled.Mul(scaled, pow10(scale))
	}
	quotient := divide(scaled, new(big.Int).SetUint64(c2), ceil)
	if power >= 0 {
		return toUint64(quotient.Mul(quotient, pow10(power)))
	}
	return toUint64(quotient.Quo(quotient, pow10(-power)))
}

func divide(num, den *big.Int, ceil bool) *big.Int {
	q, r := new(big.Int).QuoRem(num, den, new(big.Int))
	if ceil && r.Sign() != 0 {
		q.Add(q, big.NewInt(1))
	}
	return q
}
