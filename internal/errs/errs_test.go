package errs

import (
	"fmt"
	"testing"
)

func TestKindOfWrapped(t *testing.T) {
	err := fmt.Errorf("settle pools: %w", fmt.Errorf("%w: both sides residual", ErrSettlementError))
	if got := KindOf(err); got != KindConsistency {
		t.Fatalf("kind mismatch: %s", got)
	}
	if Retryable(err) {
		t.Fatalf("consistency errors must not be retryable")
	}
	if Code(err) != "SettlementError" {
		t.Fatalf("code mismatch: %s", Code(err))
	}
}

func TestRetryablePolicy(t *testing.T) {
	if !Retryable(fmt.Errorf("crank: %w", ErrMaxSlippage)) {
		t.Fatalf("slippage should be retryable")
	}
	if Retryable(fmt.Errorf("plain failure")) {
		t.Fatalf("unknown errors should not be retryable")
	}
	if KindOf(nil) != KindUnknown {
		t.Fatalf("nil error kind")
	}
}
