// Package admin wires the governance admin API onto a gin engine.
package admin

import (
	"github.com/gin-gonic/gin"
	"github.com/modelfleet/governd/internal/governance"
	"github.com/modelfleet/governd/internal/http/api/admin/handlers"
	"gorm.io/gorm"
)

// RegisterAdminRoutes registers the governance admin endpoints under
// /v0/admin. Mutating endpoints require the X-Actor-ID header; the
// handlers enforce it per request.
func RegisterAdminRoutes(r *gin.Engine, db *gorm.DB, svc *governance.Service) {
	if r == nil || db == nil || svc == nil {
		return
	}

	api := r.Group("/v0/admin")

	healthHandler := handlers.NewHealthHandler(db)
	api.GET("/healthz", healthHandler.Healthz)

	providerHandler := handlers.NewProviderHandler(svc)
	api.GET("/providers", providerHandler.List)
	api.GET("/providers/:id", providerHandler.Get)
	api.GET("/providers/:id/quota", providerHandler.Quota)
	api.POST("/providers", providerHandler.Create)
	api.PUT("/providers/:id", providerHandler.Update)
	api.DELETE("/providers/:id", providerHandler.Delete)

	modelHandler := handlers.NewModelHandler(svc)
	api.GET("/models", modelHandler.List)
	api.GET("/models/:id", modelHandler.Get)
	api.POST("/models", modelHandler.Create)
	api.PUT("/models/:id", modelHandler.Update)
	api.DELETE("/models/:id", modelHandler.Delete)

	mappingHandler := handlers.NewMappingHandler(svc)
	api.GET("/mappings", mappingHandler.List)
	api.POST("/mappings", mappingHandler.Assign)
	api.DELETE("/mappings/:id", mappingHandler.Unassign)

	usageHandler := handlers.NewUsageHandler(svc)
	api.GET("/usage", usageHandler.List)
	api.POST("/usage", usageHandler.Record)

	budgetHandler := handlers.NewBudgetHandler(svc)
	api.GET("/budgets", budgetHandler.List)
	api.GET("/budgets/:id", budgetHandler.Get)
	api.GET("/budgets/:id/evaluation", budgetHandler.Evaluate)
	api.POST("/budgets", budgetHandler.Create)
	api.PUT("/budgets/:id", budgetHandler.Update)
	api.DELETE("/budgets/:id", budgetHandler.Delete)

	auditHandler := handlers.NewAuditHandler(svc)
	api.GET("/audit", auditHandler.List)
}
