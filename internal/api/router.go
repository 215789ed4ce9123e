package api

import (
	"cbp-establishments/internal/api/handler"
	"cbp-establishments/pkg/router"

	_ "cbp-establishments/docs"

	httpSwagger "github.com/swaggo/http-swagger"
)

func RegisterRoutes(r *router.Router, h *handler.RunsHandler) {
	r.POST("/api/v1/runs", h.CreateRun)
	r.GET("/api/v1/runs", h.ListRuns)
	// More specific routes first
	r.GET("/api/v1/runs/*/years", h.GetRunYears)
	r.GET("/api/v1/runs/*/errors", h.GetRunErrors)
	r.GET("/api/v1/runs/*/records", h.GetRunRecords)
	r.GET("/api/v1/runs/*/artifact", h.GetRunArtifact)
	// Generic run route last
	r.GET("/api/v1/runs/*", h.GetRun)

	r.Handle("/swagger/", httpSwagger.WrapHandler)
}
