// services/reward_service.go
package services

import (
	"errors"
	"log"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"gem-farm-system/models"
	"gem-farm-system/utils"
)

// ErrInsufficientPot means a fixed-rate track's pot cannot cover the full
// promised reward for the gems being staked. The stake is rejected rather
// than promising funds the pot doesn't hold.
var ErrInsufficientPot = errors.New("reward pot cannot cover the promised reward")

// RewardService is the accrual engine: it folds newly earned reward into
// farmer records, settles variable-rate checkpoints against the farm's
// pool-wide accumulator, and keeps the pot's reserve bookkeeping straight.
// It never reads a clock — callers supply nowTs.
type RewardService struct {
	DB *gorm.DB
}

func NewRewardService(db *gorm.DB) *RewardService {
	return &RewardService{DB: db}
}

// SettleRewards pulls "newly accrued" amounts on both tracks and folds them
// into the farmer's totals. Safe to call in any lifecycle state: with zero
// gems (cooldown, unstaked) both tracks fold zero.
func (s *RewardService) SettleRewards(farm *models.Farm, farmer *models.Farmer, nowTs uint64) error {
	if err := settleTrack(&farm.RewardA, &farmer.RewardA, farmer.GemsStaked, nowTs); err != nil {
		return err
	}
	return settleTrack(&farm.RewardB, &farmer.RewardB, farmer.GemsStaked, nowTs)
}

func settleTrack(cfg *models.FarmReward, reward *models.FarmerReward, gems, nowTs uint64) error {
	switch cfg.RewardType {
	case models.RewardTypeFixed:
		if reward.FixedRate.BeginStakingTs == 0 {
			// no cycle has ever started on this track
			return nil
		}
		_, err := reward.AccrueFixedReward(nowTs, gems)
		return err

	case models.RewardTypeVariable:
		newly, err := variableRewardDelta(cfg.AccruedRewardPerGem, reward.VariableRate.LastRecordedAccruedRewardPerGem, gems)
		if err != nil {
			return err
		}
		accrued, err := utils.TryAdd(reward.AccruedReward, newly)
		if err != nil {
			return err
		}
		reward.AccruedReward = accrued
		reward.VariableRate.LastRecordedAccruedRewardPerGem = cfg.AccruedRewardPerGem
		return nil
	}
	return nil
}

// variableRewardDelta is the aggregation-layer multiplication: the advance of
// the pool-wide per-gem accumulator since this farmer's checkpoint, times the
// farmer's staked gems, floored to whole reward units. The fractional
// remainder stays in the pool.
func variableRewardDelta(globalPerGem, lastRecorded decimal.Decimal, gems uint64) (uint64, error) {
	if gems == 0 {
		return 0, nil
	}
	delta := globalPerGem.Sub(lastRecorded)
	if delta.Sign() <= 0 {
		return 0, nil
	}
	newly := delta.Mul(decimal.NewFromUint64(gems)).Floor().BigInt()
	if !newly.IsUint64() {
		return 0, utils.ErrArithmeticOverflow
	}
	return newly.Uint64(), nil
}

// reserveFixedPromise earmarks the full promised reward for a new cycle
// against the track's pot. Rejects the stake if the unreserved pot can't
// cover it.
func reserveFixedPromise(cfg *models.FarmReward, gems uint64) error {
	if cfg.RewardType != models.RewardTypeFixed || gems == 0 {
		return nil
	}
	promised, err := cfg.Schedule.MaxReward(cfg.PromisedDurationSec, gems)
	if err != nil {
		return err
	}
	reserved, err := utils.TryAdd(cfg.ReservedAmount, promised)
	if err != nil {
		return err
	}
	if reserved > cfg.PotBalance {
		return ErrInsufficientPot
	}
	cfg.ReservedAmount = reserved
	return nil
}

// voidFixedPromise computes the forfeited remainder of the current fixed
// cycle for gems still staked and releases it from the reserve, so the pot
// can promise those funds to someone else. Returns the voided amount.
func voidFixedPromise(cfg *models.FarmReward, reward *models.FarmerReward, gems uint64) (uint64, error) {
	if cfg.RewardType != models.RewardTypeFixed || gems == 0 || reward.FixedRate.BeginStakingTs == 0 {
		return 0, nil
	}
	voided, err := reward.FixedRate.VoidedReward(gems)
	if err != nil {
		return 0, err
	}
	releaseReserve(cfg, voided)
	return voided, nil
}

// claimTrack drains the farmer's outstanding reward bounded by the track's
// pot balance, moves the paid amount out of the pot, and (for fixed tracks)
// out of the reserve. Returns the amount paid.
func claimTrack(cfg *models.FarmReward, reward *models.FarmerReward) (uint64, error) {
	claimed, err := reward.ClaimReward(cfg.PotBalance)
	if err != nil {
		return 0, err
	}
	pot, err := utils.TrySub(cfg.PotBalance, claimed)
	if err != nil {
		return 0, err
	}
	cfg.PotBalance = pot
	if cfg.RewardType == models.RewardTypeFixed {
		releaseReserve(cfg, claimed)
	}
	return claimed, nil
}

// releaseReserve lowers the reserve by up to amount. The reserve only covers
// current cycles, so a claim spanning older cycles may exceed it.
func releaseReserve(cfg *models.FarmReward, amount uint64) {
	if amount > cfg.ReservedAmount {
		cfg.ReservedAmount = 0
		return
	}
	cfg.ReservedAmount -= amount
}

// RefreshStakedFarmers settles every staked farmer up to nowTs. Scheduler
// entry point — failures are logged and skipped so one bad record doesn't
// stall the sweep.
func (s *RewardService) RefreshStakedFarmers(nowTs uint64) {
	var farmers []models.Farmer
	if err := s.DB.Where("state = ?", models.FarmerStateStaked).Find(&farmers).Error; err != nil {
		log.Printf("[Accrual] DB error listing staked farmers: %v", err)
		return
	}
	if len(farmers) == 0 {
		return
	}

	farms := make(map[string]*models.Farm)
	settled := 0
	for i := range farmers {
		farmer := &farmers[i]

		farm, ok := farms[farmer.FarmID]
		if !ok {
			var loaded models.Farm
			if err := s.DB.First(&loaded, "id = ?", farmer.FarmID).Error; err != nil {
				log.Printf("[Accrual] failed to load farm %s: %v", farmer.FarmID, err)
				continue
			}
			farm = &loaded
			farms[farmer.FarmID] = farm
		}

		if err := s.SettleRewards(farm, farmer, nowTs); err != nil {
			log.Printf("[Accrual] failed to settle farmer %s: %v", farmer.ID, err)
			continue
		}
		if err := s.DB.Save(farmer).Error; err != nil {
			log.Printf("[Accrual] failed to save farmer %s: %v", farmer.ID, err)
			continue
		}
		settled++
	}

	if settled > 0 {
		log.Printf("✅ [Accrual] settled rewards for %d staked farmer(s)", settled)
	}
}
