// models/farmer.go
package models

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"gem-farm-system/utils"
)

// FarmerState is the staking lifecycle position. The only edges are
// unstaked → staked → pending_cooldown → unstaked.
type FarmerState string

const (
	FarmerStateUnstaked        FarmerState = "unstaked"
	FarmerStateStaked          FarmerState = "staked"
	FarmerStatePendingCooldown FarmerState = "pending_cooldown"
)

var (
	ErrMinStakingNotPassed = errors.New("minimum staking period has not passed")
	ErrCooldownNotPassed   = errors.New("cooldown period has not passed")
)

// Farmer is one participant's staking record for one farm. Created on first
// stake and kept across stake/unstake cycles. GemsStaked is authoritative only
// while state == staked and is force-zeroed on every transition away from it;
// CooldownEndsTs is meaningful only while state == pending_cooldown.
type Farmer struct {
	ID       string `gorm:"primaryKey;type:uuid" json:"id"`
	FarmID   string `gorm:"type:uuid;not null;uniqueIndex:idx_farm_identity" json:"farm_id"`
	Identity string `gorm:"not null;uniqueIndex:idx_farm_identity" json:"identity"`

	// Custody vault holding the farmer's gems. The gem count is read from the
	// vault mirror, never owned here.
	VaultID string `gorm:"not null" json:"vault_id"`

	State            FarmerState `gorm:"not null;default:'unstaked'" json:"state"`
	GemsStaked       uint64      `json:"gems_staked"`
	MinStakingEndsTs uint64      `json:"min_staking_ends_ts"`
	CooldownEndsTs   uint64      `json:"cooldown_ends_ts"`

	// A farm may run up to two concurrent reward programs per farmer.
	RewardA FarmerReward `gorm:"embedded;embeddedPrefix:reward_a_" json:"reward_a"`
	RewardB FarmerReward `gorm:"embedded;embeddedPrefix:reward_b_" json:"reward_b"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// BeginStaking locks gemsInVault and opens a fresh accrual cycle on both
// reward tracks with the farm's then-current promise. Callable from any state
// (re-staking from unstaked included) — this is the only place a new cycle
// starts. No field is mutated if the deadline arithmetic overflows.
func (f *Farmer) BeginStaking(minStakingPeriodSec, nowTs, gemsInVault uint64, cfgA, cfgB RewardCycleConfig) error {
	minStakingEnds, err := utils.TryAdd(nowTs, minStakingPeriodSec)
	if err != nil {
		return err
	}

	f.State = FarmerStateStaked
	f.GemsStaked = gemsInVault
	f.MinStakingEndsTs = minStakingEnds
	f.CooldownEndsTs = 0 // zero it out in case it was set before

	f.RewardA.FixedRate.ResetStakingCycle(nowTs, cfgA)
	f.RewardB.FixedRate.ResetStakingCycle(nowTs, cfgB)
	return nil
}

// EndStakingBeginCooldown moves the farmer into cooldown and returns the
// unstaked gem count. Fails with ErrMinStakingNotPassed (no mutation) before
// the minimum staking deadline; the deadline itself succeeds. Gems stop
// counting the moment cooldown starts — no further reward accrues.
func (f *Farmer) EndStakingBeginCooldown(nowTs, cooldownPeriodSec uint64) (uint64, error) {
	if !f.canEndStaking(nowTs) {
		return 0, ErrMinStakingNotPassed
	}
	cooldownEnds, err := utils.TryAdd(nowTs, cooldownPeriodSec)
	if err != nil {
		return 0, err
	}

	f.State = FarmerStatePendingCooldown
	gemsUnstaked := f.GemsStaked
	f.GemsStaked = 0
	f.CooldownEndsTs = cooldownEnds
	return gemsUnstaked, nil
}

// EndCooldown returns the farmer to unstaked once the cooldown deadline has
// passed, zeroing the gem count and both deadline timestamps. Fails with
// ErrCooldownNotPassed (no mutation) before the deadline.
func (f *Farmer) EndCooldown(nowTs uint64) error {
	if !f.canEndCooldown(nowTs) {
		return ErrCooldownNotPassed
	}

	f.State = FarmerStateUnstaked
	f.GemsStaked = 0
	f.MinStakingEndsTs = 0
	f.CooldownEndsTs = 0
	return nil
}

// The deadline fields are zeroed outside their owning state, so the guards
// check the state too — otherwise an out-of-order call would sail past a
// zero deadline.
func (f *Farmer) canEndStaking(nowTs uint64) bool {
	return f.State == FarmerStateStaked && nowTs >= f.MinStakingEndsTs
}

func (f *Farmer) canEndCooldown(nowTs uint64) bool {
	return f.State == FarmerStatePendingCooldown && nowTs >= f.CooldownEndsTs
}
