// models/farmer_reward.go
package models

import (
	"github.com/shopspring/decimal"

	"gem-farm-system/utils"
)

// RewardCycleConfig carries the schedule and duration a farm promises for one
// staking cycle. Supplied by the farm config at stake time and frozen on the
// farmer until the cycle ends.
type RewardCycleConfig struct {
	Schedule            FixedRateSchedule
	PromisedDurationSec uint64
}

// FarmerVariableRateReward remembers the last pool-wide accrued-per-gem value
// that has been folded into this farmer's total. The pool-side accumulator
// itself lives on the farm record and is advanced there, never here.
type FarmerVariableRateReward struct {
	LastRecordedAccruedRewardPerGem decimal.Decimal `gorm:"type:decimal(65,18);not null;default:0" json:"last_recorded_accrued_reward_per_gem"`
}

// FarmerFixedRateReward tracks one promised-schedule accrual cycle.
// LastUpdatedTs stays within [BeginStakingTs, graduation] once a cycle exists;
// before any cycle everything is zero.
type FarmerFixedRateReward struct {
	BeginStakingTs         uint64            `json:"begin_staking_ts"`
	LastUpdatedTs          uint64            `json:"last_updated_ts"`
	PromisedSchedule       FixedRateSchedule `gorm:"serializer:json" json:"promised_schedule"`
	PromisedDuration       uint64            `json:"promised_duration"`
	RewardCountedAsAccrued uint64            `json:"reward_counted_as_accrued"`
}

// ResetStakingCycle starts a fresh accrual cycle at nowTs with the farm's
// then-current promise. Called only from Farmer.BeginStaking.
func (f *FarmerFixedRateReward) ResetStakingCycle(nowTs uint64, cfg RewardCycleConfig) {
	f.BeginStakingTs = nowTs
	f.LastUpdatedTs = nowTs
	f.PromisedSchedule = cfg.Schedule
	f.PromisedDuration = cfg.PromisedDurationSec
	f.RewardCountedAsAccrued = 0
}

// GraduationTime is the timestamp at which the promise is fully earned.
// Overflow here means a misconfigured duration and is a hard failure.
func (f *FarmerFixedRateReward) GraduationTime() (uint64, error) {
	return utils.TryAdd(f.BeginStakingTs, f.PromisedDuration)
}

func (f *FarmerFixedRateReward) IsGraduationTime(nowTs uint64) (bool, error) {
	graduation, err := f.GraduationTime()
	if err != nil {
		return false, err
	}
	return nowTs >= graduation, nil
}

// LowerBoundTs is the floor past which new accrual can occur; it prevents
// double-counting a window that has already been folded in.
func (f *FarmerFixedRateReward) LowerBoundTs() uint64 {
	return max(f.BeginStakingTs, f.LastUpdatedTs)
}

// UpperBoundTs clamps accrual to the promised horizon — staying staked past
// graduation earns nothing extra.
func (f *FarmerFixedRateReward) UpperBoundTs(nowTs uint64) (uint64, error) {
	graduation, err := f.GraduationTime()
	if err != nil {
		return 0, err
	}
	return min(nowTs, graduation), nil
}

// NewlyAccruedReward computes the reward earned over [LastUpdatedTs,
// UpperBoundTs(now)] expressed as schedule offsets. The caller is expected to
// fold the result into the track total and advance LastUpdatedTs.
func (f *FarmerFixedRateReward) NewlyAccruedReward(nowTs, gems uint64) (uint64, error) {
	startFrom, err := utils.TrySub(f.LastUpdatedTs, f.BeginStakingTs)
	if err != nil {
		return 0, err
	}
	upperBound, err := f.UpperBoundTs(nowTs)
	if err != nil {
		return 0, err
	}
	endAt, err := utils.TrySub(upperBound, f.BeginStakingTs)
	if err != nil {
		return 0, err
	}
	return f.PromisedSchedule.CalcAmount(startFrom, endAt, gems)
}

// VoidedReward is what the farmer forfeits by ending the cycle early: the
// promised-but-unaccrued window [LastUpdatedTs, graduation]. Zero once the
// cycle has fully graduated.
func (f *FarmerFixedRateReward) VoidedReward(gems uint64) (uint64, error) {
	startFrom, err := utils.TrySub(f.LastUpdatedTs, f.BeginStakingTs)
	if err != nil {
		return 0, err
	}
	graduation, err := f.GraduationTime()
	if err != nil {
		return 0, err
	}
	endAt, err := utils.TrySub(graduation, f.BeginStakingTs)
	if err != nil {
		return 0, err
	}
	return f.PromisedSchedule.CalcAmount(startFrom, endAt, gems)
}

// FarmerReward aggregates one reward track (A or B) for a farmer. Totals are
// cumulative: AccruedReward >= PaidOutReward always, and a violation surfaces
// as an underflow error rather than being clamped.
type FarmerReward struct {
	PaidOutReward uint64                   `json:"paid_out_reward"`
	AccruedReward uint64                   `json:"accrued_reward"`
	VariableRate  FarmerVariableRateReward `gorm:"embedded;embeddedPrefix:variable_" json:"variable_rate"`
	FixedRate     FarmerFixedRateReward    `gorm:"embedded;embeddedPrefix:fixed_" json:"fixed_rate"`
}

func (r *FarmerReward) OutstandingReward() (uint64, error) {
	return utils.TrySub(r.AccruedReward, r.PaidOutReward)
}

// ClaimReward pays out min(outstanding, potBalance) and returns the amount.
// A partial claim is valid — the remainder stays outstanding until the pool
// is replenished.
func (r *FarmerReward) ClaimReward(potBalance uint64) (uint64, error) {
	outstanding, err := r.OutstandingReward()
	if err != nil {
		return 0, err
	}
	toClaim := min(outstanding, potBalance)

	paidOut, err := utils.TryAdd(r.PaidOutReward, toClaim)
	if err != nil {
		return 0, err
	}
	r.PaidOutReward = paidOut
	return toClaim, nil
}

// AccrueFixedReward folds freshly earned fixed-rate reward into the track
// total and advances the accrual cursor to the capped upper bound. All values
// are computed before any field is mutated, so an arithmetic failure leaves
// the record untouched.
func (r *FarmerReward) AccrueFixedReward(nowTs, gems uint64) (uint64, error) {
	newly, err := r.FixedRate.NewlyAccruedReward(nowTs, gems)
	if err != nil {
		return 0, err
	}
	accrued, err := utils.TryAdd(r.AccruedReward, newly)
	if err != nil {
		return 0, err
	}
	counted, err := utils.TryAdd(r.FixedRate.RewardCountedAsAccrued, newly)
	if err != nil {
		return 0, err
	}
	upperBound, err := r.FixedRate.UpperBoundTs(nowTs)
	if err != nil {
		return 0, err
	}

	r.AccruedReward = accrued
	r.FixedRate.RewardCountedAsAccrued = counted
	r.FixedRate.LastUpdatedTs = upperBound
	return newly, nil
}
