package models

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gem-farm-system/utils"
)

func tieredSchedule() FixedRateSchedule {
	return FixedRateSchedule{
		BaseRate: 2,
		Tier1:    &RewardTier{RewardRate: 5, RequiredTenure: 100},
		Tier2:    &RewardTier{RewardRate: 9, RequiredTenure: 250},
	}
}

func TestScheduleValidate(t *testing.T) {
	assert.NoError(t, tieredSchedule().Validate())
	assert.NoError(t, FixedRateSchedule{BaseRate: 1}.Validate())

	// tier at tenure 0 collides with the base rate
	bad := FixedRateSchedule{
		BaseRate: 1,
		Tier1:    &RewardTier{RewardRate: 3, RequiredTenure: 0},
	}
	assert.ErrorIs(t, bad.Validate(), ErrInvalidSchedule)

	// tenures must strictly increase
	bad = FixedRateSchedule{
		BaseRate: 1,
		Tier1:    &RewardTier{RewardRate: 3, RequiredTenure: 100},
		Tier2:    &RewardTier{RewardRate: 4, RequiredTenure: 100},
	}
	assert.ErrorIs(t, bad.Validate(), ErrInvalidSchedule)

	bad = FixedRateSchedule{
		BaseRate: 1,
		Tier1:    &RewardTier{RewardRate: 3, RequiredTenure: 200},
		Tier2:    &RewardTier{RewardRate: 4, RequiredTenure: 300},
		Tier3:    &RewardTier{RewardRate: 5, RequiredTenure: 250},
	}
	assert.ErrorIs(t, bad.Validate(), ErrInvalidSchedule)
}

func TestCalcAmountFlatRate(t *testing.T) {
	s := FixedRateSchedule{BaseRate: 3}

	amount, err := s.CalcAmount(0, 10, 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(60), amount)

	// empty window accrues nothing
	amount, err = s.CalcAmount(10, 10, 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), amount)

	// zero gems accrue nothing
	amount, err = s.CalcAmount(0, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), amount)

	_, err = s.CalcAmount(11, 10, 2)
	assert.ErrorIs(t, err, ErrInvalidWindow)
}

func TestCalcAmountTiered(t *testing.T) {
	s := tieredSchedule()

	// 100s at base 2, 150s at tier1 5, 50s at tier2 9
	amount, err := s.CalcAmount(0, 300, 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(100*2+150*5+50*9), amount)

	// window straddling the first tier boundary
	amount, err = s.CalcAmount(50, 120, 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(50*2+20*5), amount)

	// window entirely inside the top tier
	amount, err = s.CalcAmount(400, 500, 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(100*9), amount)

	// reward scales linearly with gems
	amount, err = s.CalcAmount(0, 300, 7)
	require.NoError(t, err)
	assert.Equal(t, uint64((100*2+150*5+50*9)*7), amount)
}

func TestCalcAmountAdditivity(t *testing.T) {
	s := tieredSchedule()

	whole, err := s.CalcAmount(0, 300, 3)
	require.NoError(t, err)

	first, err := s.CalcAmount(0, 137, 3)
	require.NoError(t, err)
	second, err := s.CalcAmount(137, 300, 3)
	require.NoError(t, err)

	assert.Equal(t, whole, first+second)
}

func TestCalcAmountOverflow(t *testing.T) {
	s := FixedRateSchedule{BaseRate: math.MaxUint64}

	_, err := s.CalcAmount(0, 2, 1)
	assert.ErrorIs(t, err, utils.ErrArithmeticOverflow)

	_, err = s.CalcAmount(0, 1, 2)
	assert.ErrorIs(t, err, utils.ErrArithmeticOverflow)
}

func TestMaxReward(t *testing.T) {
	s := tieredSchedule()

	maxReward, err := s.MaxReward(300, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64((100*2+150*5+50*9)*10), maxReward)

	// duration shorter than the first tier boundary only sees the base rate
	maxReward, err = s.MaxReward(60, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(60*2*10), maxReward)
}
