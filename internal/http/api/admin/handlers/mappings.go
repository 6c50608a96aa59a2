package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/modelfleet/governd/internal/governance"
	"github.com/modelfleet/governd/internal/models"
	"github.com/modelfleet/governd/internal/toolmap"
)

// MappingHandler manages model-to-tool assignments.
type MappingHandler struct {
	svc *governance.Service
}

// NewMappingHandler constructs a MappingHandler.
func NewMappingHandler(svc *governance.Service) *MappingHandler {
	return &MappingHandler{svc: svc}
}

// mappingView is the wire shape of a model-to-tool assignment.
type mappingView struct {
	ID        string    `json:"id"`         // Mapping ID.
	ToolID    string    `json:"tool_id"`    // Consuming tool ID.
	ToolName  string    `json:"tool_name"`  // Consuming tool display name.
	ModelID   string    `json:"model_id"`   // Referenced model.
	Priority  int       `json:"priority"`   // Selection priority (lower wins).
	Status    string    `json:"status"`     // active or inactive.
	CreatedAt time.Time `json:"created_at"` // Creation timestamp.
	UpdatedAt time.Time `json:"updated_at"` // Last update timestamp.
}

func toMappingView(m *models.ToolMapping) mappingView {
	return mappingView{
		ID:        m.ID,
		ToolID:    m.ToolID,
		ToolName:  m.ToolName,
		ModelID:   m.ModelID,
		Priority:  m.Priority,
		Status:    m.Status,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// assignRequest captures the payload for assigning a model to a tool.
type assignRequest struct {
	ModelID  string  `json:"model_id"`  // Referenced model.
	ToolID   string  `json:"tool_id"`   // Consuming tool ID.
	ToolName string  `json:"tool_name"` // Optional display name; tool_id when empty.
	Priority *int    `json:"priority"`  // Optional selection priority (lower wins).
	Status   *string `json:"status"`    // Optional status.
}

// Assign creates or refreshes the mapping for (tool_id, model_id).
func (h *MappingHandler) Assign(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var body assignRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	mapping, errAssign := h.svc.AssignTool(c.Request.Context(), actor, toolmap.AssignParams{
		ModelID:  body.ModelID,
		ToolID:   body.ToolID,
		ToolName: body.ToolName,
		Priority: body.Priority,
		Status:   body.Status,
	})
	if errAssign != nil {
		respondError(c, errAssign)
		return
	}
	c.JSON(http.StatusCreated, toMappingView(mapping))
}

// Unassign removes a mapping by ID. Unknown IDs succeed without effect.
func (h *MappingHandler) Unassign(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	if errUnassign := h.svc.UnassignTool(c.Request.Context(), actor, c.Param("id")); errUnassign != nil {
		respondError(c, errUnassign)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// List returns mappings narrowed by tool_id or model_id. Exactly one of
// the two query parameters is required.
func (h *MappingHandler) List(c *gin.Context) {
	toolID := strings.TrimSpace(c.Query("tool_id"))
	modelID := strings.TrimSpace(c.Query("model_id"))

	var (
		rows    []models.ToolMapping
		errList error
	)
	switch {
	case toolID != "" && modelID == "":
		rows, errList = h.svc.MappingsByTool(c.Request.Context(), toolID)
	case modelID != "" && toolID == "":
		rows, errList = h.svc.MappingsByModel(c.Request.Context(), modelID)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "exactly one of tool_id or model_id is required"})
		return
	}
	if errList != nil {
		respondError(c, errList)
		return
	}
	out := make([]mappingView, 0, len(rows))
	for i := range rows {
		out = append(out, toMappingView(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"mappings": out})
}
