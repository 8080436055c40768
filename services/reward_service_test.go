package services

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gem-farm-system/models"
)

func fixedTrack(potBalance uint64) *models.FarmReward {
	return &models.FarmReward{
		RewardType:          models.RewardTypeFixed,
		Schedule:            models.FixedRateSchedule{BaseRate: 1},
		PromisedDurationSec: 100,
		PotBalance:          potBalance,
	}
}

func TestVariableRewardDelta(t *testing.T) {
	delta, err := variableRewardDelta(decimal.RequireFromString("2.5"), decimal.RequireFromString("1.0"), 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(15), delta)

	// fractional remainder is floored away, staying in the pool
	delta, err = variableRewardDelta(decimal.RequireFromString("1.2345"), decimal.Zero, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(12), delta)

	// no accumulator movement, no reward
	delta, err = variableRewardDelta(decimal.RequireFromString("2.5"), decimal.RequireFromString("2.5"), 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), delta)

	// zero gems never earn, whatever the accumulator did
	delta, err = variableRewardDelta(decimal.RequireFromString("9000"), decimal.Zero, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), delta)
}

func TestSettleTrackVariable(t *testing.T) {
	cfg := &models.FarmReward{
		RewardType:          models.RewardTypeVariable,
		AccruedRewardPerGem: decimal.RequireFromString("3.5"),
	}
	reward := &models.FarmerReward{
		VariableRate: models.FarmerVariableRateReward{
			LastRecordedAccruedRewardPerGem: decimal.RequireFromString("1.5"),
		},
	}

	require.NoError(t, settleTrack(cfg, reward, 4, 0))
	assert.Equal(t, uint64(8), reward.AccruedReward)
	assert.True(t, reward.VariableRate.LastRecordedAccruedRewardPerGem.Equal(cfg.AccruedRewardPerGem))

	// settling again without an accumulator advance is a no-op
	require.NoError(t, settleTrack(cfg, reward, 4, 0))
	assert.Equal(t, uint64(8), reward.AccruedReward)
}

func TestSettleTrackFixedWithoutCycle(t *testing.T) {
	cfg := fixedTrack(1000)
	reward := &models.FarmerReward{}

	// no cycle has ever started — nothing to fold
	require.NoError(t, settleTrack(cfg, reward, 10, 5000))
	assert.Equal(t, uint64(0), reward.AccruedReward)
	assert.Equal(t, uint64(0), reward.FixedRate.LastUpdatedTs)
}

func TestReserveFixedPromise(t *testing.T) {
	cfg := fixedTrack(1000)

	require.NoError(t, reserveFixedPromise(cfg, 5))
	assert.Equal(t, uint64(500), cfg.ReservedAmount)

	// second stake would over-promise the pot
	err := reserveFixedPromise(cfg, 6)
	assert.ErrorIs(t, err, ErrInsufficientPot)
	assert.Equal(t, uint64(500), cfg.ReservedAmount)

	// exactly filling the pot is fine
	require.NoError(t, reserveFixedPromise(cfg, 5))
	assert.Equal(t, uint64(1000), cfg.ReservedAmount)

	// zero gems reserve nothing
	require.NoError(t, reserveFixedPromise(cfg, 0))
	assert.Equal(t, uint64(1000), cfg.ReservedAmount)
}

func TestReserveFixedPromiseIgnoresVariableTracks(t *testing.T) {
	cfg := &models.FarmReward{RewardType: models.RewardTypeVariable}
	require.NoError(t, reserveFixedPromise(cfg, 100))
	assert.Equal(t, uint64(0), cfg.ReservedAmount)
}

func TestVoidFixedPromise(t *testing.T) {
	cfg := fixedTrack(1000)
	require.NoError(t, reserveFixedPromise(cfg, 10))
	require.Equal(t, uint64(1000), cfg.ReservedAmount)

	reward := &models.FarmerReward{}
	reward.FixedRate.ResetStakingCycle(1000, cfg.CycleConfig())

	// accrue half the cycle, then bail: the other half is released
	_, err := reward.AccrueFixedReward(1050, 10)
	require.NoError(t, err)

	voided, err := voidFixedPromise(cfg, reward, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(500), voided)
	assert.Equal(t, uint64(500), cfg.ReservedAmount)
}

func TestVoidFixedPromiseAfterGraduation(t *testing.T) {
	cfg := fixedTrack(1000)
	require.NoError(t, reserveFixedPromise(cfg, 10))

	reward := &models.FarmerReward{}
	reward.FixedRate.ResetStakingCycle(1000, cfg.CycleConfig())
	_, err := reward.AccrueFixedReward(1100, 10)
	require.NoError(t, err)

	// fully graduated cycle forfeits nothing
	voided, err := voidFixedPromise(cfg, reward, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), voided)
	assert.Equal(t, uint64(1000), cfg.ReservedAmount)
}

func TestClaimTrack(t *testing.T) {
	cfg := fixedTrack(100)
	cfg.ReservedAmount = 80

	reward := &models.FarmerReward{AccruedReward: 50}
	claimed, err := claimTrack(cfg, reward)
	require.NoError(t, err)
	assert.Equal(t, uint64(50), claimed)
	assert.Equal(t, uint64(50), cfg.PotBalance)
	assert.Equal(t, uint64(30), cfg.ReservedAmount)
	assert.Equal(t, uint64(50), reward.PaidOutReward)
}

func TestClaimTrackBoundedByPot(t *testing.T) {
	cfg := fixedTrack(100)
	cfg.ReservedAmount = 80

	reward := &models.FarmerReward{AccruedReward: 250}
	claimed, err := claimTrack(cfg, reward)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), claimed)
	assert.Equal(t, uint64(0), cfg.PotBalance)
	// the claim spanned more than the current cycle's reserve
	assert.Equal(t, uint64(0), cfg.ReservedAmount)

	outstanding, err := reward.OutstandingReward()
	require.NoError(t, err)
	assert.Equal(t, uint64(150), outstanding)
}

func TestClaimTrackVariableLeavesReserveAlone(t *testing.T) {
	cfg := &models.FarmReward{
		RewardType:     models.RewardTypeVariable,
		PotBalance:     100,
		ReservedAmount: 40,
	}

	reward := &models.FarmerReward{AccruedReward: 30}
	claimed, err := claimTrack(cfg, reward)
	require.NoError(t, err)
	assert.Equal(t, uint64(30), claimed)
	assert.Equal(t, uint64(70), cfg.PotBalance)
	assert.Equal(t, uint64(40), cfg.ReservedAmount)
}
