package mathutil

import (
	"errors"
	"math"
	"testing"

	"twammEngine/internal/errs"
)

func TestMulDivWideProduct(t *testing.T) {
	got, err := MulDiv(math.MaxUint64, math.MaxUint64, math.MaxUint64)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != math.MaxUint64 {
		t.Fatalf("mul div mismatch: %d", got)
	}
}

func TestMulDivCeil(t *testing.T) {
	got, err := MulDivCeil(10, 1, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 4 {
		t.Fatalf("ceil mismatch: %d", got)
	}
	got, err = MulDivCeil(9, 1, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 3 {
		t.Fatalf("exact ceil mismatch: %d", got)
	}
}

func TestMulSumDivDoesNotNarrowSum(t *testing.T) {
	got, err := MulSumDiv(2, math.MaxUint64, math.MaxUint64, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != math.MaxUint64 {
		t.Fatalf("sum mismatch: %d", got)
	}
}

func TestOverflow(t *testing.T) {
	if _, err := MulDiv(math.MaxUint64, 2, 1); !errors.Is(err, errs.ErrMathOverflow) {
		t.Fatalf("expected overflow, got %v", err)
	}
	if _, err := MulDiv(1, 1, 0); !errors.Is(err, errs.ErrMathOverflow) {
		t.Fatalf("expected division error, got %v", err)
	}
	if _, err := Sub(1, 2); !errors.Is(err, errs.ErrMathOverflow) {
		t.Fatalf("expected underflow, got %v", err)
	}
	if _, err := Add(math.MaxUint64, 1); !errors.Is(err, errs.ErrMathOverflow) {
		t.Fatalf("expected overflow, got %v", err)
	}
	if _, err := AddInt64(math.MaxInt64, 1); !errors.Is(err, errs.ErrMathOverflow) {
		t.Fatalf("expected signed overflow, got %v", err)
	}
}

func TestSaturating(t *testing.T) {
	if SaturatingSub(3, 5) != 0 {
		t.Fatalf("saturating sub")
	}
	if SaturatingAdd(math.MaxUint64, 5) != math.MaxUint64 {
		t.Fatalf("saturating add")
	}
}
