// services/farm_service.go
package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"gem-farm-system/models"
	"gem-farm-system/utils"
)

// FarmService is the admin surface: farm creation, pot funding, advancing the
// variable-rate accumulator, and snapshot export.
type FarmService struct {
	DB *gorm.DB
}

func NewFarmService(db *gorm.DB) *FarmService {
	return &FarmService{DB: db}
}

type rewardTrackReq struct {
	RewardType          models.RewardType        `json:"reward_type" validate:"required,oneof=fixed variable"`
	Schedule            models.FixedRateSchedule `json:"schedule"`
	PromisedDurationSec uint64                   `json:"promised_duration_sec"`
}

func (r rewardTrackReq) toFarmReward() (models.FarmReward, error) {
	reward := models.FarmReward{
		RewardType:          r.RewardType,
		Schedule:            r.Schedule,
		PromisedDurationSec: r.PromisedDurationSec,
		AccruedRewardPerGem: decimal.Zero,
	}
	switch r.RewardType {
	case models.RewardTypeFixed:
		if err := r.Schedule.Validate(); err != nil {
			return reward, err
		}
		if r.PromisedDurationSec == 0 {
			return reward, errors.New("fixed-rate track requires a promised duration")
		}
	case models.RewardTypeVariable:
		// schedule/duration are ignored for variable tracks
	default:
		return reward, fmt.Errorf("unknown reward type %q", r.RewardType)
	}
	return reward, nil
}

// CreateFarm creates a new staking program instance (Admin only)
func (s *FarmService) CreateFarm(c *fiber.Ctx) error {
	var req struct {
		Name                string         `json:"name" validate:"required"`
		MinStakingPeriodSec uint64         `json:"min_staking_period_sec"`
		CooldownPeriodSec   uint64         `json:"cooldown_period_sec"`
		RewardA             rewardTrackReq `json:"reward_a"`
		RewardB             rewardTrackReq `json:"reward_b"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Farm name is required"})
	}

	rewardA, err := req.RewardA.toFarmReward()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid reward A config", "cause": err.Error()})
	}
	rewardB, err := req.RewardB.toFarmReward()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid reward B config", "cause": err.Error()})
	}

	farm := &models.Farm{
		ID:                  uuid.NewString(),
		Name:                req.Name,
		Slug:                slug.Make(req.Name),
		MinStakingPeriodSec: req.MinStakingPeriodSec,
		CooldownPeriodSec:   req.CooldownPeriodSec,
		RewardA:             rewardA,
		RewardB:             rewardB,
	}

	if err := s.DB.Create(farm).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "A farm with this name already exists"})
		}
		log.Printf("DB Error creating farm: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create farm"})
	}

	log.Printf("✅ Farm created: %s (%s)", farm.Name, farm.Slug)
	return c.Status(fiber.StatusCreated).JSON(farm)
}

// GetFarm returns a farm's config and pool totals (Admin only)
func (s *FarmService) GetFarm(c *fiber.Ctx) error {
	farm, err := farmBySlug(s.DB, c.Params("farm"))
	if err != nil {
		return stakingError(c, err, "Failed to fetch farm")
	}

	var farmerCount int64
	if err := s.DB.Model(&models.Farmer{}).Where("farm_id = ?", farm.ID).Count(&farmerCount).Error; err != nil {
		log.Printf("DB Error counting farmers: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to count farmers"})
	}

	return c.JSON(fiber.Map{
		"farm":         farm,
		"farmer_count": farmerCount,
	})
}

// trackFor picks reward track "a" or "b" off a farm.
func trackFor(farm *models.Farm, track string) (*models.FarmReward, error) {
	switch track {
	case "a":
		return &farm.RewardA, nil
	case "b":
		return &farm.RewardB, nil
	}
	return nil, fiber.NewError(fiber.StatusBadRequest, "track must be \"a\" or \"b\"")
}

// FundPot adds funds to a reward track's pot (Admin only). The caller is
// responsible for having actually moved the funds; this records the balance
// claims are bounded by.
func (s *FarmService) FundPot(c *fiber.Ctx) error {
	var req struct {
		Track  string `json:"track" validate:"required,oneof=a b"`
		Amount uint64 `json:"amount" validate:"required,min=1"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.Amount == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Amount must be positive"})
	}

	var potBalance uint64
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		farm, err := farmBySlug(tx, c.Params("farm"))
		if err != nil {
			return err
		}
		cfg, err := trackFor(farm, req.Track)
		if err != nil {
			return err
		}
		pot, err := utils.TryAdd(cfg.PotBalance, req.Amount)
		if err != nil {
			return err
		}
		cfg.PotBalance = pot
		potBalance = pot
		return tx.Save(farm).Error
	})
	if err != nil {
		return stakingError(c, err, "Failed to fund pot")
	}

	log.Printf("💰 Pot %s funded with %d on farm %s", req.Track, req.Amount, c.Params("farm"))
	return c.JSON(fiber.Map{"message": "Pot funded", "track": req.Track, "pot_balance": potBalance})
}

// AdvanceAccumulator moves a variable track's pool-wide accrued-per-gem value
// forward (Admin / aggregation layer only). Regressions are rejected — the
// accumulator is monotonic by construction.
func (s *FarmService) AdvanceAccumulator(c *fiber.Ctx) error {
	var req struct {
		Track               string `json:"track" validate:"required,oneof=a b"`
		AccruedRewardPerGem string `json:"accrued_reward_per_gem" validate:"required"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	value, err := decimal.NewFromString(req.AccruedRewardPerGem)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid accumulator value"})
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		farm, err := farmBySlug(tx, c.Params("farm"))
		if err != nil {
			return err
		}
		cfg, err := trackFor(farm, req.Track)
		if err != nil {
			return err
		}
		if cfg.RewardType != models.RewardTypeVariable {
			return fiber.NewError(fiber.StatusBadRequest, "track is not variable-rate")
		}
		if value.LessThan(cfg.AccruedRewardPerGem) {
			return fiber.NewError(fiber.StatusBadRequest, "accumulator cannot move backwards")
		}
		cfg.AccruedRewardPerGem = value
		return tx.Save(farm).Error
	})
	if err != nil {
		return stakingError(c, err, "Failed to advance accumulator")
	}

	return c.JSON(fiber.Map{"message": "Accumulator advanced", "track": req.Track, "accrued_reward_per_gem": value})
}

// ExportSnapshot uploads a JSON snapshot of the farm and its farmers' reward
// totals to R2 and returns the public URL (Admin only).
func (s *FarmService) ExportSnapshot(c *fiber.Ctx) error {
	farm, err := farmBySlug(s.DB, c.Params("farm"))
	if err != nil {
		return stakingError(c, err, "Failed to fetch farm")
	}

	var farmers []models.Farmer
	if err := s.DB.Where("farm_id = ?", farm.ID).Find(&farmers).Error; err != nil {
		log.Printf("DB Error loading farmers for snapshot: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to load farmers"})
	}

	type farmerSummary struct {
		Identity      string             `json:"identity"`
		State         models.FarmerState `json:"state"`
		GemsStaked    uint64             `json:"gems_staked"`
		RewardA       uint64             `json:"reward_a_accrued"`
		RewardAPaid   uint64             `json:"reward_a_paid_out"`
		RewardB       uint64             `json:"reward_b_accrued"`
		RewardBPaid   uint64             `json:"reward_b_paid_out"`
	}
	summaries := make([]farmerSummary, len(farmers))
	for i, f := range farmers {
		summaries[i] = farmerSummary{
			Identity:    f.Identity,
			State:       f.State,
			GemsStaked:  f.GemsStaked,
			RewardA:     f.RewardA.AccruedReward,
			RewardAPaid: f.RewardA.PaidOutReward,
			RewardB:     f.RewardB.AccruedReward,
			RewardBPaid: f.RewardB.PaidOutReward,
		}
	}

	takenAt := time.Now().UTC()
	payload, err := json.MarshalIndent(fiber.Map{
		"farm":     farm,
		"farmers":  summaries,
		"taken_at": takenAt,
	}, "", "  ")
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to build snapshot"})
	}

	key := fmt.Sprintf("snapshots/%s/%d.json", farm.Slug, takenAt.Unix())
	url, err := utils.UploadJSONToR2(key, payload)
	if err != nil {
		log.Printf("R2 upload failed for snapshot %s: %v", key, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to upload snapshot"})
	}

	log.Printf("📸 Snapshot exported for farm %s → %s", farm.Slug, url)
	return c.JSON(fiber.Map{"message": "Snapshot exported", "url": url, "farmers": len(farmers)})
}
