package rest

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/kolibrisuite/chatsync/core/config"
)

func InitRestHealth(app fiber.Router, db *gorm.DB) {
	app.Get("/health", func(c *fiber.Ctx) error {
		dbOK := false
		if sqlDB, err := db.DB(); err == nil {
			dbOK = sqlDB.PingContext(c.UserContext()) == nil
		}

		status := fiber.StatusOK
		if !dbOK {
			status = fiber.StatusServiceUnavailable
		}

		return c.Status(status).JSON(fiber.Map{
			"version":   config.Global.App.Version,
			"server_id": config.Global.App.ServerID,
			"database":  dbOK,
		})
	})
}
