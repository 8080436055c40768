// services/scheduler.go
package services

import (
	"time"

	"github.com/go-co-op/gocron/v2"
)

// StartAccrualScheduler periodically pulls newly accrued reward for every
// staked farmer, so totals stay fresh between claims.
func (s *RewardService) StartAccrualScheduler() {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	// Every minute: fold accrual for staked farmers
	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(func() {
			s.RefreshStakedFarmers(uint64(time.Now().Unix()))
		}),
	)
}
