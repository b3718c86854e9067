package handler

import (
	"github.com/gofiber/fiber/v2"

	"paustdb/internal/service"
)

// RegisterRoutes attaches the health probes and the v1 point API to app.
func RegisterRoutes(app *fiber.App, store Pinger, svc service.PointService) {
	app.Get("/health", HealthCheck(store))
	app.Get("/healthz", LivenessProbe())

	v1 := app.Group("/v1")
	v1.Post("/points", PutPoints(svc))
	v1.Post("/query", QueryPoints(svc))
	v1.Post("/fetch", FetchPoints(svc))
	v1.Post("/archives", CreateArchive(svc))
}
