package models

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gem-farm-system/utils"
)

func flatCycleConfig() RewardCycleConfig {
	return RewardCycleConfig{
		Schedule:            FixedRateSchedule{BaseRate: 1},
		PromisedDurationSec: 100,
	}
}

func TestResetStakingCycle(t *testing.T) {
	reward := FarmerReward{}
	reward.FixedRate.RewardCountedAsAccrued = 999

	reward.FixedRate.ResetStakingCycle(1000, flatCycleConfig())

	assert.Equal(t, uint64(1000), reward.FixedRate.BeginStakingTs)
	assert.Equal(t, uint64(1000), reward.FixedRate.LastUpdatedTs)
	assert.Equal(t, uint64(100), reward.FixedRate.PromisedDuration)
	assert.Equal(t, uint64(0), reward.FixedRate.RewardCountedAsAccrued)

	graduation, err := reward.FixedRate.GraduationTime()
	require.NoError(t, err)
	assert.Equal(t, uint64(1100), graduation)

	isGraduated, err := reward.FixedRate.IsGraduationTime(1099)
	require.NoError(t, err)
	assert.False(t, isGraduated)

	isGraduated, err = reward.FixedRate.IsGraduationTime(1100)
	require.NoError(t, err)
	assert.True(t, isGraduated)
}

func TestAccrueFixedReward(t *testing.T) {
	reward := FarmerReward{}
	reward.FixedRate.ResetStakingCycle(1000, flatCycleConfig())

	newly, err := reward.AccrueFixedReward(1050, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(500), newly)
	assert.Equal(t, uint64(500), reward.AccruedReward)
	assert.Equal(t, uint64(500), reward.FixedRate.RewardCountedAsAccrued)
	assert.Equal(t, uint64(1050), reward.FixedRate.LastUpdatedTs)

	// settling twice at the same instant accrues nothing extra
	newly, err = reward.AccrueFixedReward(1050, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), newly)
	assert.Equal(t, uint64(500), reward.AccruedReward)
}

func TestAccrueFixedRewardCapsAtGraduation(t *testing.T) {
	reward := FarmerReward{}
	reward.FixedRate.ResetStakingCycle(1000, flatCycleConfig())

	// well past graduation: only the promised window pays out
	newly, err := reward.AccrueFixedReward(5000, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), newly)
	assert.Equal(t, uint64(1100), reward.FixedRate.LastUpdatedTs)

	maxReward, err := reward.FixedRate.PromisedSchedule.MaxReward(reward.FixedRate.PromisedDuration, 10)
	require.NoError(t, err)
	assert.Equal(t, maxReward, reward.AccruedReward)

	// further settles past graduation are no-ops
	newly, err = reward.AccrueFixedReward(9000, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), newly)
	assert.Equal(t, maxReward, reward.AccruedReward)
}

func TestAccrueFixedRewardAdditivity(t *testing.T) {
	cfg := RewardCycleConfig{
		Schedule: FixedRateSchedule{
			BaseRate: 2,
			Tier1:    &RewardTier{RewardRate: 5, RequiredTenure: 60},
		},
		PromisedDurationSec: 150,
	}

	incremental := FarmerReward{}
	incremental.FixedRate.ResetStakingCycle(1000, cfg)
	oneShot := FarmerReward{}
	oneShot.FixedRate.ResetStakingCycle(1000, cfg)

	_, err := incremental.AccrueFixedReward(1040, 7)
	require.NoError(t, err)
	_, err = incremental.AccrueFixedReward(1090, 7)
	require.NoError(t, err)
	_, err = incremental.AccrueFixedReward(1200, 7)
	require.NoError(t, err)

	_, err = oneShot.AccrueFixedReward(1200, 7)
	require.NoError(t, err)

	assert.Equal(t, oneShot.AccruedReward, incremental.AccruedReward)
	assert.Equal(t, oneShot.FixedRate.LastUpdatedTs, incremental.FixedRate.LastUpdatedTs)
}

func TestVoidedReward(t *testing.T) {
	reward := FarmerReward{}
	reward.FixedRate.ResetStakingCycle(1000, flatCycleConfig())

	// right after staking the whole promise is still forfeitable
	voided, err := reward.FixedRate.VoidedReward(10)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), voided)

	// halfway through, only the unaccrued half is voided
	_, err = reward.AccrueFixedReward(1050, 10)
	require.NoError(t, err)
	voided, err = reward.FixedRate.VoidedReward(10)
	require.NoError(t, err)
	assert.Equal(t, uint64(500), voided)

	// after graduation nothing is left to forfeit
	_, err = reward.AccrueFixedReward(1100, 10)
	require.NoError(t, err)
	voided, err = reward.FixedRate.VoidedReward(10)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), voided)
}

func TestClaimRewardBoundedByPot(t *testing.T) {
	reward := FarmerReward{AccruedReward: 100}

	claimed, err := reward.ClaimReward(60)
	require.NoError(t, err)
	assert.Equal(t, uint64(60), claimed)
	assert.Equal(t, uint64(60), reward.PaidOutReward)

	outstanding, err := reward.OutstandingReward()
	require.NoError(t, err)
	assert.Equal(t, uint64(40), outstanding)

	// once the pot is replenished the remainder is claimable
	claimed, err = reward.ClaimReward(1000)
	require.NoError(t, err)
	assert.Equal(t, uint64(40), claimed)
	assert.Equal(t, uint64(100), reward.PaidOutReward)

	claimed, err = reward.ClaimReward(1000)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), claimed)
}

func TestOutstandingRewardUnderflow(t *testing.T) {
	// paid > accrued is a bookkeeping violation, never clamped
	reward := FarmerReward{AccruedReward: 5, PaidOutReward: 10}

	_, err := reward.OutstandingReward()
	assert.ErrorIs(t, err, utils.ErrArithmeticUnderflow)

	_, err = reward.ClaimReward(100)
	assert.ErrorIs(t, err, utils.ErrArithmeticUnderflow)
	assert.Equal(t, uint64(10), reward.PaidOutReward)
}

func TestAccrueFixedRewardOverflowLeavesRecordUntouched(t *testing.T) {
	reward := FarmerReward{AccruedReward: 77}
	reward.FixedRate.BeginStakingTs = math.MaxUint64
	reward.FixedRate.LastUpdatedTs = math.MaxUint64
	reward.FixedRate.PromisedDuration = 1

	_, err := reward.AccrueFixedReward(math.MaxUint64, 10)
	assert.ErrorIs(t, err, utils.ErrArithmeticOverflow)
	assert.Equal(t, uint64(77), reward.AccruedReward)
	assert.Equal(t, uint64(math.MaxUint64), reward.FixedRate.LastUpdatedTs)
}
