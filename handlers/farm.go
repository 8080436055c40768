// handlers/farm.go
package handlers

import (
	"github.com/gofiber/fiber/v2"

	"gem-farm-system/middleware"
	"gem-farm-system/services"
)

func SetupFarmRoutes(app *fiber.App, farmService *services.FarmService) {
	// 🔒 Admin-only routes — user context + admin role
	admin := app.Group("/admin", middleware.UserContextMiddleware(), middleware.RequireAdmin())

	admin.Post("/farms", farmService.CreateFarm)
	admin.Get("/farms/:farm", farmService.GetFarm)
	admin.Post("/farms/:farm/fund", farmService.FundPot)
	admin.Post("/farms/:farm/accumulator", farmService.AdvanceAccumulator)
	admin.Post("/farms/:farm/snapshot", farmService.ExportSnapshot)
}
