// models/farm.go
package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// RewardType selects how a track pays out: a fixed promised schedule or a
// share of the pool-wide variable accumulator.
type RewardType string

const (
	RewardTypeFixed    RewardType = "fixed"
	RewardTypeVariable RewardType = "variable"
)

// FarmReward is one reward track's farm-side configuration and pool
// bookkeeping. PotBalance is funded, not-yet-paid reward; ReservedAmount is
// the slice of the pot already promised to currently staked farmers
// (fixed-rate tracks only). AccruedRewardPerGem is the pool-wide variable
// accumulator — advanced by the admin/aggregation endpoint, only ever read by
// the farmer-side engine.
type FarmReward struct {
	RewardType          RewardType        `gorm:"not null;default:'fixed'" json:"reward_type"`
	Schedule            FixedRateSchedule `gorm:"serializer:json" json:"schedule"`
	PromisedDurationSec uint64            `json:"promised_duration_sec"`
	PotBalance          uint64            `json:"pot_balance"`
	ReservedAmount      uint64            `json:"reserved_amount"`
	AccruedRewardPerGem decimal.Decimal   `gorm:"type:decimal(65,18);not null;default:0" json:"accrued_reward_per_gem"`
}

// CycleConfig freezes the track's current promise for a new staking cycle.
func (r FarmReward) CycleConfig() RewardCycleConfig {
	return RewardCycleConfig{
		Schedule:            r.Schedule,
		PromisedDurationSec: r.PromisedDurationSec,
	}
}

// Farm is one staking program instance: the commitment/cooldown periods its
// farmers are held to, and the two reward track configs.
type Farm struct {
	ID   string `gorm:"primaryKey;type:uuid" json:"id"`
	Name string `gorm:"not null" json:"name"`
	Slug string `gorm:"uniqueIndex;not null" json:"slug"`

	MinStakingPeriodSec uint64 `json:"min_staking_period_sec"`
	CooldownPeriodSec   uint64 `json:"cooldown_period_sec"`

	// Aggregate gems currently staked across all farmers, maintained by the
	// stake/unstake transactions.
	GemsStakedTotal uint64 `json:"gems_staked_total"`

	RewardA FarmReward `gorm:"embedded;embeddedPrefix:reward_a_" json:"reward_a"`
	RewardB FarmReward `gorm:"embedded;embeddedPrefix:reward_b_" json:"reward_b"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
