package pool

import (
	"fmt"

	"twammEngine/internal/errs"
	"twammEngine/internal/mathutil"
)

// MaxPools bounds the number of tenors a pair supports.
const MaxPools = 10

// Slots maps each supported tenor to its rotation counter and the presence
// of its current and next pools.
type Slots struct {
	TimeInForce    [MaxPools]uint32 `json:"tifs"`
	Counters       [MaxPools]uint64 `json:"pool_counters"`
	CurrentPresent [MaxPools]bool   `json:"current_pool_present"`
	FuturePresent  [MaxPools]bool   `json:"future_pool_present"`
}

// Index returns the slot of a tenor.
func (s *Slots) Index(timeInForce uint32) (int, error) {
	if timeInForce == 0 {
		return 0, fmt.Errorf("%w: zero", errs.ErrInvalidTimeInForce)
	}
	for i, tif := range s.TimeInForce {
		if tif == timeInForce {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: %d is not supported", errs.ErrInvalidTimeInForce, timeInForce)
}

// NextCounter returns the counter of the pool staged after the current one.
func (s *Slots) NextCounter(index int) (uint64, error) {
	return mathutil.Add(s.Counters[index], 1)
}

// HasDuplicates reports whether a non-zero tenor appears more than once.
func (s *Slots) HasDuplicates() bool {
	seen := make(map[uint32]struct{}, MaxPools)
	for _, tif := range s.TimeInForce {
		if tif == 0 {
			continue
		}
		if _, ok := seen[tif]; ok {
			return true
		}
		seen[tif] = struct{}{}
	}
	return false
}

func (s *Slots) checkIndex(index int) error {
	if index < 0 || index >= MaxPools {
		return fmt.Errorf("%w: slot %d out of range", errs.ErrInvalidTimeInForce, index)
	}
	if s.TimeInForce[index] == 0 {
		return fmt.Errorf("%w: slot %d has no tenor", errs.ErrInvalidTimeInForce, index)
	}
	return nil
}

// StageCurrent marks the current pool of a slot as present.
func (s *Slots) StageCurrent(index int) error {
	if err := s.checkIndex(index); err != nil {
		return err
	}
	s.CurrentPresent[index] = true
	return nil
}

// StageNext marks the pool after the current one as present. The current
// pool must already be staged.
func (s *Slots) StageNext(index int) error {
	if err := s.checkIndex(index); err != nil {
		return err
	}
	if !s.CurrentPresent[index] {
		return fmt.Errorf("%w: slot %d has no current pool", errs.ErrInvalidPoolState, index)
	}
	s.FuturePresent[index] = true
	return nil
}

// ReleaseNext clears the next pool of a slot once it has been emptied.
func (s *Slots) ReleaseNext(index int) error {
	if err := s.checkIndex(index); err != nil {
		return err
	}
	s.FuturePresent[index] = false
	return nil
}

// SetTimeInForce replaces the tenor of a slot. A slot with live pools cannot
// be changed. It returns false when the tenor is unchanged.
func (s *Slots) SetTimeInForce(index int, timeInForce uint32) (bool, error) {
	if index < 0 || index >= MaxPools {
		return false, fmt.Errorf("%w: slot %d out of range", errs.ErrInvalidTimeInForce, index)
	}
	if s.TimeInForce[index] == timeInForce {
		return false, nil
	}
	if s.CurrentPresent[index] || s.FuturePresent[index] {
		return false, fmt.Errorf("%w: slot %d has active pools", errs.ErrInvalidPoolState, index)
	}
	s.TimeInForce[index] = timeInForce
	return true, nil
}

// Finalize rotates the slot of a completed pool. It reports whether the pool
// was the current one, in which case its residual balances become pending
// withdrawals.
func (s *Slots) Finalize(timeInForce uint32, counter uint64) (bool, error) {
	idx, err := s.Index(timeInForce)
	if err != nil {
		return false, err
	}
	next, err := s.NextCounter(idx)
	if err != nil {
		return false, err
	}
	switch counter {
	case next:
		s.FuturePresent[idx] = false
		return false, nil
	case s.Counters[idx]:
		if s.FuturePresent[idx] {
			s.FuturePresent[idx] = false
			s.CurrentPresent[idx] = true
		} else {
			s.CurrentPresent[idx] = false
		}
		s.Counters[idx] = next
		return true, nil
	}
	return false, nil
}
