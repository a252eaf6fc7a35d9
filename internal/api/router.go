package api

import (
	"off-data-pipeline/internal/api/handler"
	"off-data-pipeline/pkg/router"

	httpSwagger "github.com/swaggo/http-swagger"
)

func RegisterRoutes(r *router.Router, h *handler.RunHandler) {
	r.POST("/api/v1/runs", h.CreateRun)
	r.GET("/api/v1/runs", h.ListRuns)
	// More specific routes first
	r.GET("/api/v1/runs/*/results", h.GetRunResults)
	r.GET("/api/v1/runs/*/stages", h.GetRunStages)
	r.GET("/api/v1/runs/*/logs", h.GetRunLogs)
	r.GET("/api/v1/runs/*/errors", h.GetRunErrors)
	r.POST("/api/v1/runs/*/retry", h.RetryRun)
	// Generic run route last
	r.GET("/api/v1/runs/*", h.GetRun)
	r.GET("/api/v1/download/*", h.DownloadReport)

	r.GET("/swagger/**", router.HandlerFunc(httpSwagger.WrapHandler))
}
