// services/farmer_service.go
package services

import (
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"gem-farm-system/models"
	"gem-farm-system/utils"
)

// FarmerService owns the staking lifecycle operations. Every operation is one
// DB transaction: the farmer/farm/vault rows either all move or none do, and
// "now" is captured once at the HTTP boundary and passed down explicitly.
type FarmerService struct {
	DB      *gorm.DB
	Rewards *RewardService
}

func NewFarmerService(db *gorm.DB, rewards *RewardService) *FarmerService {
	return &FarmerService{DB: db, Rewards: rewards}
}

func farmBySlug(tx *gorm.DB, slug string) (*models.Farm, error) {
	var farm models.Farm
	if err := tx.Where("slug = ?", slug).First(&farm).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fiber.NewError(fiber.StatusNotFound, "Farm not found")
		}
		return nil, err
	}
	return &farm, nil
}

func farmerFor(tx *gorm.DB, farmID, identity string) (*models.Farmer, error) {
	var farmer models.Farmer
	err := tx.Where("farm_id = ? AND identity = ?", farmID, identity).First(&farmer).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fiber.NewError(fiber.StatusNotFound, "Farmer not found — nothing has been staked on this farm")
		}
		return nil, err
	}
	return &farmer, nil
}

// stakingError maps engine errors onto HTTP statuses. Deadline guards and pot
// exhaustion are caller mistakes (409), arithmetic failures are ours (500).
func stakingError(c *fiber.Ctx, err error, fallback string) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
	}
	switch {
	case errors.Is(err, models.ErrMinStakingNotPassed),
		errors.Is(err, models.ErrCooldownNotPassed),
		errors.Is(err, ErrInsufficientPot):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	}
	log.Printf("DB Error: %s: %v", fallback, err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": fallback})
}

// Stake locks the farmer's vault and begins a staking cycle on both reward
// tracks. Re-staking while already staked settles and voids the running cycle
// first, then opens a fresh one at the current farm config.
func (s *FarmerService) Stake(c *fiber.Ctx) error {
	identity := c.Locals("user_id").(string)
	farmSlug := c.Params("farm")
	nowTs := uint64(time.Now().Unix())

	var farmer *models.Farmer
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		farm, err := farmBySlug(tx, farmSlug)
		if err != nil {
			return err
		}

		var vault models.VaultMirror
		if err := tx.Where("farm_id = ? AND farmer_identity = ?", farm.ID, identity).First(&vault).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "No vault found for this farmer")
			}
			return err
		}
		if vault.GemCount == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Vault holds no gems to stake")
		}

		farmer, err = farmerFor(tx, farm.ID, identity)
		if err != nil {
			var fe *fiber.Error
			if !errors.As(err, &fe) || fe.Code != fiber.StatusNotFound {
				return err
			}
			// first stake on this farm
			farmer = &models.Farmer{
				ID:       uuid.NewString(),
				FarmID:   farm.ID,
				Identity: identity,
				VaultID:  vault.ID,
				State:    models.FarmerStateUnstaked,
			}
		}

		// A re-stake replaces the running cycle: settle what has been earned,
		// void the rest of the promise, and give the gems back to the pool
		// totals before counting them again.
		if farmer.State == models.FarmerStateStaked {
			if err := s.Rewards.SettleRewards(farm, farmer, nowTs); err != nil {
				return err
			}
			if _, err := voidFixedPromise(&farm.RewardA, &farmer.RewardA, farmer.GemsStaked); err != nil {
				return err
			}
			if _, err := voidFixedPromise(&farm.RewardB, &farmer.RewardB, farmer.GemsStaked); err != nil {
				return err
			}
			total, err := utils.TrySub(farm.GemsStakedTotal, farmer.GemsStaked)
			if err != nil {
				return err
			}
			farm.GemsStakedTotal = total
		}

		if err := reserveFixedPromise(&farm.RewardA, vault.GemCount); err != nil {
			return err
		}
		if err := reserveFixedPromise(&farm.RewardB, vault.GemCount); err != nil {
			return err
		}

		if err := farmer.BeginStaking(farm.MinStakingPeriodSec, nowTs, vault.GemCount,
			farm.RewardA.CycleConfig(), farm.RewardB.CycleConfig()); err != nil {
			return err
		}

		total, err := utils.TryAdd(farm.GemsStakedTotal, vault.GemCount)
		if err != nil {
			return err
		}
		farm.GemsStakedTotal = total
		vault.Locked = true

		if err := tx.Save(farmer).Error; err != nil {
			return err
		}
		if err := tx.Save(farm).Error; err != nil {
			return err
		}
		return tx.Save(&vault).Error
	})
	if err != nil {
		return stakingError(c, err, "Failed to stake")
	}

	log.Printf("✅ %d gems staked for %s on farm %s", farmer.GemsStaked, identity, farmSlug)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":             "Gems staked",
		"state":               farmer.State,
		"gems_staked":         farmer.GemsStaked,
		"min_staking_ends_ts": farmer.MinStakingEndsTs,
	})
}

// Unstake ends the staking cycle and starts the cooldown. Rewards earned up
// to now are settled first; the unearned remainder of the fixed promise is
// voided and released back to the pot's reserve.
func (s *FarmerService) Unstake(c *fiber.Ctx) error {
	identity := c.Locals("user_id").(string)
	farmSlug := c.Params("farm")
	nowTs := uint64(time.Now().Unix())

	var farmer *models.Farmer
	var gemsUnstaked, voidedA, voidedB uint64
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		farm, err := farmBySlug(tx, farmSlug)
		if err != nil {
			return err
		}
		farmer, err = farmerFor(tx, farm.ID, identity)
		if err != nil {
			return err
		}

		if err := s.Rewards.SettleRewards(farm, farmer, nowTs); err != nil {
			return err
		}

		// compute the forfeit before the transition zeroes the gem count, but
		// only release it once the deadline guard has passed
		gems := farmer.GemsStaked
		gemsUnstaked, err = farmer.EndStakingBeginCooldown(nowTs, farm.CooldownPeriodSec)
		if err != nil {
			return err
		}
		voidedA, err = voidFixedPromise(&farm.RewardA, &farmer.RewardA, gems)
		if err != nil {
			return err
		}
		voidedB, err = voidFixedPromise(&farm.RewardB, &farmer.RewardB, gems)
		if err != nil {
			return err
		}

		total, err := utils.TrySub(farm.GemsStakedTotal, gemsUnstaked)
		if err != nil {
			return err
		}
		farm.GemsStakedTotal = total

		if err := tx.Save(farmer).Error; err != nil {
			return err
		}
		return tx.Save(farm).Error
	})
	if err != nil {
		return stakingError(c, err, "Failed to unstake")
	}

	log.Printf("🧊 %d gems now cooling down for %s", gemsUnstaked, identity)
	return c.JSON(fiber.Map{
		"message":          "Cooldown started",
		"state":            farmer.State,
		"gems_unstaked":    gemsUnstaked,
		"cooldown_ends_ts": farmer.CooldownEndsTs,
		"voided_reward_a":  voidedA,
		"voided_reward_b":  voidedB,
	})
}

// EndCooldown completes the cooldown and unlocks the vault so the gems become
// withdrawable.
func (s *FarmerService) EndCooldown(c *fiber.Ctx) error {
	identity := c.Locals("user_id").(string)
	farmSlug := c.Params("farm")
	nowTs := uint64(time.Now().Unix())

	var farmer *models.Farmer
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		farm, err := farmBySlug(tx, farmSlug)
		if err != nil {
			return err
		}
		farmer, err = farmerFor(tx, farm.ID, identity)
		if err != nil {
			return err
		}

		if err := farmer.EndCooldown(nowTs); err != nil {
			return err
		}

		var vault models.VaultMirror
		if err := tx.Where("id = ?", farmer.VaultID).First(&vault).Error; err == nil {
			vault.Locked = false
			if err := tx.Save(&vault).Error; err != nil {
				return err
			}
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		return tx.Save(farmer).Error
	})
	if err != nil {
		return stakingError(c, err, "Failed to end cooldown")
	}

	log.Printf("✅ gems now unstaked and available for withdrawal for %s", identity)
	return c.JSON(fiber.Map{
		"message": "Cooldown complete — gems unlocked",
		"state":   farmer.State,
	})
}

// Claim settles accrual up to now, then pays out each track bounded by its
// pot balance. A partial payout leaves the remainder outstanding for a later
// claim once the pot is replenished.
func (s *FarmerService) Claim(c *fiber.Ctx) error {
	identity := c.Locals("user_id").(string)
	farmSlug := c.Params("farm")
	nowTs := uint64(time.Now().Unix())

	var claimedA, claimedB, outstandingA, outstandingB uint64
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		farm, err := farmBySlug(tx, farmSlug)
		if err != nil {
			return err
		}
		farmer, err := farmerFor(tx, farm.ID, identity)
		if err != nil {
			return err
		}

		if err := s.Rewards.SettleRewards(farm, farmer, nowTs); err != nil {
			return err
		}

		claimedA, err = claimTrack(&farm.RewardA, &farmer.RewardA)
		if err != nil {
			return err
		}
		claimedB, err = claimTrack(&farm.RewardB, &farmer.RewardB)
		if err != nil {
			return err
		}
		outstandingA, err = farmer.RewardA.OutstandingReward()
		if err != nil {
			return err
		}
		outstandingB, err = farmer.RewardB.OutstandingReward()
		if err != nil {
			return err
		}

		if err := tx.Save(farmer).Error; err != nil {
			return err
		}
		return tx.Save(farm).Error
	})
	if err != nil {
		return stakingError(c, err, "Failed to claim rewards")
	}

	log.Printf("💰 claimed A=%d B=%d for %s on farm %s", claimedA, claimedB, identity, farmSlug)
	return c.JSON(fiber.Map{
		"message":       "Rewards claimed",
		"claimed_a":     claimedA,
		"claimed_b":     claimedB,
		"outstanding_a": outstandingA,
		"outstanding_b": outstandingB,
	})
}

// GetFarmer returns the farmer's current lifecycle position and per-track
// reward totals. Read-only: accrual is not folded here, so totals reflect the
// last settle (claim, unstake, or scheduler sweep).
func (s *FarmerService) GetFarmer(c *fiber.Ctx) error {
	identity := c.Locals("user_id").(string)
	farmSlug := c.Params("farm")

	farm, err := farmBySlug(s.DB, farmSlug)
	if err != nil {
		return stakingError(c, err, "Failed to fetch farm")
	}
	farmer, err := farmerFor(s.DB, farm.ID, identity)
	if err != nil {
		return stakingError(c, err, "Failed to fetch farmer")
	}

	outstandingA, err := farmer.RewardA.OutstandingReward()
	if err != nil {
		return stakingError(c, err, "Reward bookkeeping error")
	}
	outstandingB, err := farmer.RewardB.OutstandingReward()
	if err != nil {
		return stakingError(c, err, "Reward bookkeeping error")
	}

	return c.JSON(fiber.Map{
		"id":                  farmer.ID,
		"farm_id":             farmer.FarmID,
		"identity":            farmer.Identity,
		"state":               farmer.State,
		"gems_staked":         farmer.GemsStaked,
		"min_staking_ends_ts": farmer.MinStakingEndsTs,
		"cooldown_ends_ts":    farmer.CooldownEndsTs,
		"reward_a": fiber.Map{
			"accrued":     farmer.RewardA.AccruedReward,
			"paid_out":    farmer.RewardA.PaidOutReward,
			"outstanding": outstandingA,
		},
		"reward_b": fiber.Map{
			"accrued":     farmer.RewardB.AccruedReward,
			"paid_out":    farmer.RewardB.PaidOutReward,
			"outstanding": outstandingB,
		},
	})
}
