// models/reward_schedule.go
package models

import (
	"errors"
	"math"

	"gem-farm-system/utils"
)

var (
	ErrInvalidWindow   = errors.New("schedule window start offset exceeds end offset")
	ErrInvalidSchedule = errors.New("schedule tier tenures must be strictly increasing")
)

// RewardTier upgrades the per-gem-per-second rate once a staking cycle's
// elapsed tenure reaches RequiredTenure. Tenures are offsets in seconds from
// cycle start, never absolute timestamps, so one schedule definition can be
// reused across cycles.
type RewardTier struct {
	RewardRate     uint64 `json:"reward_rate"`
	RequiredTenure uint64 `json:"required_tenure"`
}

// FixedRateSchedule is the promised reward curve locked in at stake time.
// BaseRate applies from tenure 0; each optional tier overrides the rate from
// its RequiredTenure onward. Persisted as a JSON column so the frozen copy on
// a farmer is untouched by later edits to the farm's config.
type FixedRateSchedule struct {
	BaseRate uint64      `json:"base_rate"`
	Tier1    *RewardTier `json:"tier1,omitempty"`
	Tier2    *RewardTier `json:"tier2,omitempty"`
	Tier3    *RewardTier `json:"tier3,omitempty"`
}

// Validate rejects schedules whose tier tenures are not strictly increasing.
// A tier at tenure 0 is also rejected — that is what BaseRate is for.
func (s FixedRateSchedule) Validate() error {
	var last uint64
	for _, t := range []*RewardTier{s.Tier1, s.Tier2, s.Tier3} {
		if t == nil {
			continue
		}
		if t.RequiredTenure <= last {
			return ErrInvalidSchedule
		}
		last = t.RequiredTenure
	}
	return nil
}

type rateSegment struct {
	from uint64 // inclusive
	to   uint64 // exclusive
	rate uint64
}

// segments flattens base rate + tiers into contiguous [from, to) rate windows.
func (s FixedRateSchedule) segments() []rateSegment {
	segs := []rateSegment{{from: 0, to: math.MaxUint64, rate: s.BaseRate}}
	for _, t := range []*RewardTier{s.Tier1, s.Tier2, s.Tier3} {
		if t == nil {
			continue
		}
		segs[len(segs)-1].to = t.RequiredTenure
		segs = append(segs, rateSegment{from: t.RequiredTenure, to: math.MaxUint64, rate: t.RewardRate})
	}
	return segs
}

// CalcAmount returns the reward owed for gems identical unit-accounts across
// the elapsed-tenure window [startOffset, endOffset): the sum over each tier
// of overlap-seconds * rate * gems, all through checked arithmetic.
func (s FixedRateSchedule) CalcAmount(startOffset, endOffset, gems uint64) (uint64, error) {
	if startOffset > endOffset {
		return 0, ErrInvalidWindow
	}

	var total uint64
	for _, seg := range s.segments() {
		lo := max(startOffset, seg.from)
		hi := min(endOffset, seg.to)
		if hi <= lo {
			continue
		}

		perGem, err := utils.TryMul(hi-lo, seg.rate)
		if err != nil {
			return 0, err
		}
		amount, err := utils.TryMul(perGem, gems)
		if err != nil {
			return 0, err
		}
		total, err = utils.TryAdd(total, amount)
		if err != nil {
			return 0, err
		}
	}
	return total, nil
}

// MaxReward is the full promised amount for a cycle of durationSec — used to
// reserve pot funds at stake time.
func (s FixedRateSchedule) MaxReward(durationSec, gems uint64) (uint64, error) {
	return s.CalcAmount(0, durationSec, gems)
}
