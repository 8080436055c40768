// handlers/farmer.go
package handlers

import (
	"github.com/gofiber/fiber/v2"

	"gem-farm-system/middleware"
	"gem-farm-system/services"
)

func SetupFarmerRoutes(app *fiber.App, farmerService *services.FarmerService, authClient *services.AuthServiceClient) {
	// 🔐 Staking routes — require user context (farmer identity), enforced via middleware
	secured := app.Group("/", middleware.UserContextMiddleware())

	secured.Post("/farms/:farm/stake", farmerService.Stake)
	secured.Post("/farms/:farm/unstake", farmerService.Unstake)
	secured.Post("/farms/:farm/end-cooldown", farmerService.EndCooldown)
	secured.Post("/farms/:farm/claim", farmerService.Claim)
	secured.Get("/farms/:farm/farmer", farmerService.GetFarmer)

	// SSE stream — EventSource can't set headers, so auth comes from query params
	app.Get("/farms/:farm/rewards/stream", middleware.SSEAuthMiddleware(authClient), farmerService.StreamFarmerRewardsSSE)
}
