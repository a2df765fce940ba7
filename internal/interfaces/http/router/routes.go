package router

import (
	"github.com/staffhub/backend/internal/interfaces/http/handler"
)

// Handlers holds the HTTP handlers the API is built from
type Handlers struct {
	Sources  *handler.IntegrationSourceHandler
	Syncs    *handler.SyncHandler
	Imports  *handler.ImportHandler
	Mappings *handler.MappingHandler
	System   *handler.SystemHandler
}

// IntegrationRoutes declares the integration hub API
func IntegrationRoutes(h Handlers) *DomainGroup {
	g := NewDomainGroup("integration", "/integration")

	g.GET("/dashboard", h.Sources.GetDashboard)

	sources := g.Group("sources", "/sources")
	sources.GET("", h.Sources.ListSources)
	sources.POST("", h.Sources.CreateSource)
	sources.GET("/:id", h.Sources.GetSource)
	sources.PUT("/:id", h.Sources.UpdateSource)
	sources.DELETE("/:id", h.Sources.DeleteSource)
	sources.POST("/:id/activate", h.Sources.ActivateSource)
	sources.POST("/:id/disable", h.Sources.DisableSource)
	sources.GET("/:id/records", h.Sources.ListRecords)
	sources.POST("/:id/records/manual", h.Imports.ImportManual)
	sources.POST("/:id/records/import", h.Imports.ImportCSV)
	sources.POST("/:id/sync", h.Syncs.TriggerSync)
	sources.GET("/:id/runs", h.Syncs.ListRuns)
	sources.GET("/:id/mappings", h.Mappings.ListMappings)
	sources.POST("/:id/mappings", h.Mappings.CreateMapping)
	sources.POST("/:id/mappings/defaults", h.Mappings.SeedDefaultMappings)

	g.GET("/records/:id", h.Sources.GetRecord)

	runs := g.Group("runs", "/runs")
	runs.GET("/:id", h.Syncs.GetRun)
	runs.POST("/:id/cancel", h.Syncs.CancelRun)

	mappings := g.Group("mappings", "/mappings")
	mappings.GET("/:id", h.Mappings.GetMapping)
	mappings.PUT("/:id", h.Mappings.UpdateMapping)
	mappings.DELETE("/:id", h.Mappings.DeleteMapping)
	mappings.POST("/:id/validate", h.Mappings.ValidateMapping)

	return g
}

// SystemRoutes declares the build information endpoint
func SystemRoutes(h Handlers) *DomainGroup {
	g := NewDomainGroup("system", "/system")
	g.GET("/info", h.System.GetSystemInfo)
	return g
}
