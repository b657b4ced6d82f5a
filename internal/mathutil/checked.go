package mathutil

import (
	"fmt"
	"math"

	"github.com/holiman/uint256"

	"twammEngine/internal/errs"
)

// Add returns a+b or ErrMathOverflow.
func Add(a, b uint64) (uint64, error) {
	if a > math.MaxUint64-b {
		return 0, fmt.Errorf("%w: %d + %d", errs.ErrMathOverflow, a, b)
	}
	return a + b, nil
}

// Sub returns a-b or ErrMathOverflow when b > a.
func Sub(a, b uint64) (uint64, error) {
	if b > a {
		return 0, fmt.Errorf("%w: %d - %d", errs.ErrMathOverflow, a, b)
	}
	return a - b, nil
}

// Mul returns a*b or ErrMathOverflow.
func Mul(a, b uint64) (uint64, error) {
	if a == 0 || b == 0 {
		return 0, nil
	}
	if a > math.MaxUint64/b {
		return 0, fmt.Errorf("%w: %d * %d", errs.ErrMathOverflow, a, b)
	}
	return a * b, nil
}

// AddInt64 returns a+b for signed timestamps.
func AddInt64(a, b int64) (int64, error) {
	if (b > 0 && a > math.MaxInt64-b) || (b < 0 && a < math.MinInt64-b) {
		return 0, fmt.Errorf("%w: %d + %d", errs.ErrMathOverflow, a, b)
	}
	return a + b, nil
}

// SubInt64 returns a-b for signed timestamps.
func SubInt64(a, b int64) (int64, error) {
	if (b < 0 && a > math.MaxInt64+b) || (b > 0 && a < math.MinInt64+b) {
		return 0, fmt.Errorf("%w: %d - %d", errs.ErrMathOverflow, a, b)
	}
	return a - b, nil
}

func SaturatingAdd(a, b uint64) uint64 {
	if a > math.MaxUint64-b {
		return math.MaxUint64
	}
	return a + b
}

func SaturatingSub(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}

// CeilDiv returns ceil(a/b).
func CeilDiv(a, b uint64) (uint64, error) {
	if b == 0 {
		return 0, fmt.Errorf("%w: division by zero", errs.ErrMathOverflow)
	}
	q := a / b
	if a%b != 0 {
		q++
	}
	return q, nil
}

// MulDiv returns floor(a*b/c) with a 256-bit intermediate product.
func MulDiv(a, b, c uint64) (uint64, error) {
	return mulDiv(uint256.NewInt(a), uint256.NewInt(b), c, false)
}

// MulDivCeil returns ceil(a*b/c) with a 256-bit intermediate product.
func MulDivCeil(a, b, c uint64) (uint64, error) {
	return mulDiv(uint256.NewInt(a), uint256.NewInt(b), c, true)
}

// MulSumDiv returns floor(a*(b1+b2)/c). The sum is not narrowed to 64 bits.
func MulSumDiv(a, b1, b2, c uint64) (uint64, error) {
	sum := new(uint256.Int).Add(uint256.NewInt(b1), uint256.NewInt(b2))
	return mulDiv(uint256.NewInt(a), sum, c, false)
}

// MulSumDivCeil returns ceil(a*(b1+b2)/c).
func MulSumDivCeil(a, b1, b2, c uint64) (uint64, error) {
	sum := new(uint256.Int).Add(uint256.NewInt(b1), uint256.NewInt(b2))
	return mulDiv(uint256.NewInt(a), sum, c, true)
}

func mulDiv(a, b *uint256.Int, c uint64, ceil bool) (uint64, error) {
	if c == 0 {
		return 0, fmt.Errorf("%w: division by zero", errs.ErrMathOverflow)
	}
	divisor := uint256.NewInt(c)
	product := new(uint256.Int).Mul(a, b)
	quotient := new(uint256.Int).Div(product, divisor)
	if ceil && !new(uint256.Int).Mod(product, divisor).IsZero() {
		quotient.AddUint64(quotient, 1)
	}
	if !quotient.IsUint64() {
		return 0, fmt.Errorf("%w: %s does not fit in 64 bits", errs.ErrMathOverflow, quotient.ToBig().String())
	}
	return quotient.Uint64(), nil
}
