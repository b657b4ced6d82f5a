package model

import "math"

// Settlement is the outcome of matching a set of pools.
type Settlement struct {
	NetAmountSettled     uint64       `json:"net_amount_settled"`
	NetAmountRequired    uint64       `json:"net_amount_required"`
	SourceAmountReceived uint64       `json:"source_amount_received"`
	TotalAmountSettledA  uint64       `json:"total_amount_settled_a"`
	TotalAmountSettledB  uint64       `json:"total_amount_settled_b"`
	SettlementSide       MatchingSide `json:"settlement_side"`
}

// SignedRequired returns the residual demand as a signed amount: positive
// when pools need token A bought, negative when they need it sold, clamped
// to the int64 range.
func (s Settlement) SignedRequired() int64 {
	required := int64(math.MaxInt64)
	if s.NetAmountRequired < math.MaxInt64 {
		required = int64(s.NetAmountRequired)
	}
	switch s.SettlementSide {
	case MatchingBuy:
		return required
	case MatchingSell:
		return -required
	default:
		return 0
	}
}
