// services/sse_reward_service.go
package services

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"gem-farm-system/models"
)

// StreamFarmerRewardsSSE streams the authenticated farmer's reward totals in
// real time. An event is emitted only when a total changes (the scheduler
// sweep or a claim moved it).
func (s *FarmerService) StreamFarmerRewardsSSE(c *fiber.Ctx) error {
	identity := c.Locals("user_id").(string)
	farmSlug := c.Params("farm")

	farm, err := farmBySlug(s.DB, farmSlug)
	if err != nil {
		return stakingError(c, err, "Failed to fetch farm")
	}
	farmID := farm.ID

	// SSE headers
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no") // nginx

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()

		type trackTotals struct {
			Accrued uint64 `json:"accrued"`
			PaidOut uint64 `json:"paid_out"`
		}
		type rewardEvent struct {
			State   models.FarmerState `json:"state"`
			Gems    uint64             `json:"gems_staked"`
			RewardA trackTotals        `json:"reward_a"`
			RewardB trackTotals        `json:"reward_b"`
		}
		var lastSent *rewardEvent

		// Initial keepalive (comment event)
		w.WriteString(":\n\n")
		w.Flush()

		for {
			select {
			case <-ticker.C:
				var farmer models.Farmer
				err := s.DB.Where("farm_id = ? AND identity = ?", farmID, identity).First(&farmer).Error
				if err != nil {
					if !errors.Is(err, gorm.ErrRecordNotFound) {
						log.Printf("SSE query error for farmer %s: %v", identity, err)
					}
					continue
				}

				event := rewardEvent{
					State: farmer.State,
					Gems:  farmer.GemsStaked,
					RewardA: trackTotals{
						Accrued: farmer.RewardA.AccruedReward,
						PaidOut: farmer.RewardA.PaidOutReward,
					},
					RewardB: trackTotals{
						Accrued: farmer.RewardB.AccruedReward,
						PaidOut: farmer.RewardB.PaidOutReward,
					},
				}
				if lastSent != nil && *lastSent == event {
					continue
				}
				lastSent = &event

				payload, _ := json.Marshal(event)
				fmt.Fprintf(w, "event: reward\ndata: %s\n\n", payload)

				if err := w.Flush(); err != nil {
					// Client disconnected
					return
				}

			case <-c.Context().Done():
				// Client closed connection
				return
			}
		}
	})

	return nil
}
