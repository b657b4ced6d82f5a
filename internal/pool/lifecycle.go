// Package pool holds the lifecycle rules, tenor slots and addressing of
// token pair pools.
package pool

import (
	"fmt"

	"twammEngine/internal/errs"
	"twammEngine/internal/model"
)

const (
	minGracePeriod int64 = 60
	maxGracePeriod int64 = 600
)

// IsEmpty reports whether both sides are fully drained.
func IsEmpty(p *model.Pool) bool {
	return p.BuySide.SourceBalance == 0 &&
		p.BuySide.TargetBalance == 0 &&
		p.SellSide.SourceBalance == 0 &&
		p.SellSide.TargetBalance == 0
}

// IsExpired reports whether the pool is past its expiration time.
func IsExpired(p *model.Pool, now int64) bool {
	return p.Status == model.PoolExpired || now >= p.ExpirationTime
}

// IsLocked reports whether the pool no longer accepts deposits. A pool locks
// once the remaining fraction of its tenor drops to minTimeTillExpiration.
func IsLocked(p *model.Pool, minTimeTillExpiration float64, now int64) (bool, error) {
	if p.Status == model.PoolLocked || IsExpired(p, now) {
		return true, nil
	}
	if p.TimeInForce == 0 {
		return false, fmt.Errorf("%w: pool %s has zero time in force", errs.ErrInvalidTimeInForce, p.Address.Hex())
	}
	remaining := float64(p.ExpirationTime-now) / float64(p.TimeInForce)
	return remaining <= minTimeTillExpiration, nil
}

// GracePeriod is how long past expiration a pool with undrained sources
// stays open: tenor/100 clamped to [60, 600].
func GracePeriod(timeInForce uint32) int64 {
	return min(max(int64(timeInForce/100), minGracePeriod), maxGracePeriod)
}

// IsComplete reports whether an expired pool is ready to be finalized.
func IsComplete(p *model.Pool, now int64) bool {
	if !IsExpired(p, now) {
		return false
	}
	if p.BuySide.SourceBalance == 0 && p.SellSide.SourceBalance == 0 {
		return true
	}
	return now > p.ExpirationTime+GracePeriod(p.TimeInForce)
}

// UpdateState advances the stored status and returns it.
func UpdateState(p *model.Pool, minTimeTillExpiration float64, now int64) (model.PoolStatus, error) {
	locked, err := IsLocked(p, minTimeTillExpiration, now)
	if err != nil {
		return p.Status, err
	}
	if locked {
		if IsExpired(p, now) {
			p.Status = model.PoolExpired
		} else {
			p.Status = model.PoolLocked
		}
	}
	return p.Status, nil
}
