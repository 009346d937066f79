// Package routes binds the engine's HTTP surface to its handlers.
package routes

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/chigozzdevv/zecflow-sub000/cmd/engine/handlers"
)

// Register registers all engine routes
func Register(e *echo.Echo, runs *handlers.RunHandler, workflows *handlers.WorkflowHandler, creditsHandler *handlers.CreditHandler, health *handlers.HealthHandler) {
	e.GET("/health", health.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api/v1")

	api.GET("/blocks", workflows.ListBlocks)

	api.POST("/workflows/:id/blocks", workflows.AddBlock)
	api.PUT("/workflows/:id/trigger-filter", workflows.SetTriggerFilter)
	api.POST("/workflows/:id/publish", workflows.PublishWorkflow)
	api.POST("/workflows/:id/runs", runs.TriggerRun)
	api.GET("/workflows/:id/runs", runs.ListRuns)
	api.GET("/workflows/:id/runs/:run_id/trace", runs.GetTrace)

	api.GET("/runs/:id", runs.GetRun)
	api.POST("/runs/:id/cancel", runs.CancelRun)

	api.GET("/orgs/:org/credits", creditsHandler.GetBalance)
	api.POST("/orgs/:org/credits", creditsHandler.TopUp)
}
