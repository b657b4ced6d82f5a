package pool

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"twammEngine/internal/errs"
	"twammEngine/internal/model"
)

// Load validates candidate pools against the slots and returns the current
// pools in candidate order. Nil candidates are skipped. Every present current
// pool must be supplied exactly once.
func Load(slots *Slots, custodyA, custodyB common.Address, candidates []*model.Pool) ([]*model.Pool, error) {
	if len(candidates) > MaxPools {
		return nil, fmt.Errorf("%w: %d candidates exceed %d", errs.ErrInvalidPoolAddress, len(candidates), MaxPools)
	}
	pools := make([]*model.Pool, 0, len(candidates))
	var found [MaxPools]bool
	for _, p := range candidates {
		if p == nil {
			continue
		}
		if p.Address != Address(custodyA, custodyB, p.TimeInForce, p.Counter) {
			return nil, fmt.Errorf("%w: %s does not belong to the pair", errs.ErrInvalidPoolAddress, p.Address.Hex())
		}
		idx, err := slots.Index(p.TimeInForce)
		if err != nil {
			return nil, err
		}
		if found[idx] {
			return nil, fmt.Errorf("%w: duplicate pool for tenor %d", errs.ErrInvalidPoolAddress, p.TimeInForce)
		}
		if p.Counter != slots.Counters[idx] {
			return nil, fmt.Errorf("%w: pool %s is not current", errs.ErrInvalidPoolAddress, p.Address.Hex())
		}
		found[idx] = true
		pools = append(pools, p)
	}
	if found != slots.CurrentPresent {
		return nil, fmt.Errorf("%w: not all current pools supplied", errs.ErrInvalidPoolAddress)
	}
	return pools, nil
}

// CurrentAddresses returns the addresses of all present current pools in
// slot order.
func CurrentAddresses(slots *Slots, custodyA, custodyB common.Address) []common.Address {
	var out []common.Address
	for i := 0; i < MaxPools; i++ {
		if !slots.CurrentPresent[i] {
			continue
		}
		out = append(out, Address(custodyA, custodyB, slots.TimeInForce[i], slots.Counters[i]))
	}
	return out
}
