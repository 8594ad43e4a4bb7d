package rest

import (
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gofiber/fiber/v2"

	"github.com/kolibrisuite/chatsync/engine"
)

// InitRestStats exposes engine counters for operators.
func InitRestStats(app fiber.Router, dispatcher *engine.Dispatcher) {
	app.Get("/engine/stats", func(c *fiber.Ctx) error {
		stats := dispatcher.GetStats()
		return c.JSON(fiber.Map{
			"pool":        stats.Pool,
			"rooms":       stats.Rooms,
			"connections": stats.Connections,
			"summary": fiber.Map{
				"dispatched": humanize.Comma(stats.Pool.TotalDispatched),
				"processed":  humanize.Comma(stats.Pool.TotalProcessed),
				"dropped":    humanize.Comma(stats.Pool.TotalDropped),
				"errors":     humanize.Comma(stats.Pool.TotalErrors),
				"uptime":     humanize.RelTime(stats.Pool.StartedAt, time.Now(), "", ""),
			},
		})
	})
}
