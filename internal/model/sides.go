package model

import (
	"fmt"
	"strings"
)

// OrderSide is the direction of a participant's order. Sell orders deposit
// token A and receive token B; buy orders deposit token B and receive token A.
type OrderSide uint8

const (
	OrderBuy OrderSide = iota
	OrderSell
)

func (s OrderSide) String() string {
	if s == OrderSell {
		return "Sell"
	}
	return "Buy"
}

func (s OrderSide) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *OrderSide) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "buy":
		*s = OrderBuy
	case "sell":
		*s = OrderSell
	default:
		return fmt.Errorf("unknown order side %q", string(text))
	}
	return nil
}

// MatchingSide names the side with residual demand after internal matching,
// or the side an external supplier offers.
type MatchingSide uint8

const (
	MatchingInternal MatchingSide = iota
	MatchingBuy
	MatchingSell
)

func (s MatchingSide) String() string {
	switch s {
	case MatchingBuy:
		return "Buy"
	case MatchingSell:
		return "Sell"
	default:
		return "Internal"
	}
}

func (s MatchingSide) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *MatchingSide) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "buy":
		*s = MatchingBuy
	case "sell":
		*s = MatchingSell
	case "internal", "":
		*s = MatchingInternal
	default:
		return fmt.Errorf("unknown matching side %q", string(text))
	}
	return nil
}

// PoolStatus is the stored lifecycle state of a pool.
type PoolStatus uint8

const (
	PoolActive PoolStatus = iota
	PoolLocked
	PoolExpired
)

func (s PoolStatus) String() string {
	switch s {
	case PoolLocked:
		return "Locked"
	case PoolExpired:
		return "Expired"
	default:
		return "Active"
	}
}

func (s PoolStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *PoolStatus) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "active", "":
		*s = PoolActive
	case "locked":
		*s = PoolLocked
	case "expired":
		*s = PoolExpired
	default:
		return fmt.Errorf("unknown pool status %q", string(text))
	}
	return nil
}

// OracleType selects the price source of a token.
type OracleType uint8

const (
	OracleNone OracleType = iota
	OracleTest
	OracleChainlink
)

func (t OracleType) String() string {
	switch t {
	case OracleTest:
		return "Test"
	case OracleChainlink:
		return "Chainlink"
	default:
		return "None"
	}
}

func (t OracleType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *OracleType) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "none", "":
		*t = OracleNone
	case "test":
		*t = OracleTest
	case "chainlink":
		*t = OracleChainlink
	default:
		return fmt.Errorf("unknown oracle type %q", string(text))
	}
	return nil
}
