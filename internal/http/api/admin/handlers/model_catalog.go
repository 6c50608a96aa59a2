package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/modelfleet/governd/internal/governance"
	"github.com/modelfleet/governd/internal/modelregistry"
	"github.com/modelfleet/governd/internal/models"
)

// ModelHandler manages admin CRUD for catalog models.
type ModelHandler struct {
	svc *governance.Service
}

// NewModelHandler constructs a ModelHandler.
func NewModelHandler(svc *governance.Service) *ModelHandler {
	return &ModelHandler{svc: svc}
}

// createModelRequest captures the payload for registering a model.
type createModelRequest struct {
	ProviderID     string   `json:"provider_id"`     // Owning provider.
	Name           string   `json:"name"`            // Model name.
	Capabilities   []string `json:"capabilities"`    // Capability tags.
	ContextWindow  int      `json:"context_window"`  // Max context size.
	CostPerToken   float64  `json:"cost_per_token"`  // Cost per output token.
	Status         *string  `json:"status"`          // Optional status.
	RecommendedFor []string `json:"recommended_for"` // Recommended-use tags.
}

// updateModelRequest captures optional fields for updates.
type updateModelRequest struct {
	Name           *string   `json:"name"`            // Optional new name.
	Capabilities   *[]string `json:"capabilities"`    // Optional capability tags.
	ContextWindow  *int      `json:"context_window"`  // Optional context size.
	CostPerToken   *float64  `json:"cost_per_token"`  // Optional cost per token.
	Status         *string   `json:"status"`          // Optional status.
	RecommendedFor *[]string `json:"recommended_for"` // Optional recommended-use tags.
}

// modelView is the wire shape of a model with its tag lists decoded.
type modelView struct {
	ID             string    `json:"id"`              // Model ID.
	ProviderID     string    `json:"provider_id"`     // Owning provider.
	Name           string    `json:"name"`            // Model name.
	Capabilities   []string  `json:"capabilities"`    // Capability tags.
	ContextWindow  int       `json:"context_window"`  // Max context size.
	CostPerToken   float64   `json:"cost_per_token"`  // Cost per output token.
	Status         string    `json:"status"`          // active or inactive.
	RecommendedFor []string  `json:"recommended_for"` // Recommended-use tags.
	CreatedAt      time.Time `json:"created_at"`      // Creation timestamp.
	UpdatedAt      time.Time `json:"updated_at"`      // Last update timestamp.
}

func toModelView(m *models.Model) modelView {
	return modelView{
		ID:             m.ID,
		ProviderID:     m.ProviderID,
		Name:           m.Name,
		Capabilities:   m.CapabilityTags(),
		ContextWindow:  m.ContextWindow,
		CostPerToken:   m.CostPerToken,
		Status:         m.Status,
		RecommendedFor: m.RecommendedTags(),
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

// List returns all models, optionally narrowed by provider_id.
func (h *ModelHandler) List(c *gin.Context) {
	rows, errList := h.svc.Models(c.Request.Context(), c.Query("provider_id"))
	if errList != nil {
		respondError(c, errList)
		return
	}
	out := make([]modelView, 0, len(rows))
	for i := range rows {
		out = append(out, toModelView(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"models": out})
}

// Get returns one model by ID.
func (h *ModelHandler) Get(c *gin.Context) {
	model, errGet := h.svc.Model(c.Request.Context(), c.Param("id"))
	if errGet != nil {
		respondError(c, errGet)
		return
	}
	c.JSON(http.StatusOK, toModelView(model))
}

// Create registers a model under an existing provider.
func (h *ModelHandler) Create(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var body createModelRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	model, errCreate := h.svc.AddModel(c.Request.Context(), actor, modelregistry.Draft{
		ProviderID:     body.ProviderID,
		Name:           body.Name,
		Capabilities:   body.Capabilities,
		ContextWindow:  body.ContextWindow,
		CostPerToken:   body.CostPerToken,
		Status:         body.Status,
		RecommendedFor: body.RecommendedFor,
	})
	if errCreate != nil {
		respondError(c, errCreate)
		return
	}
	c.JSON(http.StatusCreated, toModelView(model))
}

// Update merges the supplied fields into a model.
func (h *ModelHandler) Update(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var body updateModelRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	model, errUpdate := h.svc.UpdateModel(c.Request.Context(), actor, c.Param("id"), modelregistry.Patch{
		Name:           body.Name,
		Capabilities:   body.Capabilities,
		ContextWindow:  body.ContextWindow,
		CostPerToken:   body.CostPerToken,
		Status:         body.Status,
		RecommendedFor: body.RecommendedFor,
	})
	if errUpdate != nil {
		respondError(c, errUpdate)
		return
	}
	c.JSON(http.StatusOK, toModelView(model))
}

// Delete removes a model, unassigning it from every tool first.
func (h *ModelHandler) Delete(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	if errRemove := h.svc.RemoveModel(c.Request.Context(), actor, c.Param("id")); errRemove != nil {
		respondError(c, errRemove)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
