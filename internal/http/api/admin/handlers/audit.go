package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/modelfleet/governd/internal/audit"
	"github.com/modelfleet/governd/internal/governance"
	"github.com/modelfleet/governd/internal/models"
)

// AuditHandler exposes the read-only audit trail.
type AuditHandler struct {
	svc *governance.Service
}

// NewAuditHandler constructs an AuditHandler.
func NewAuditHandler(svc *governance.Service) *AuditHandler {
	return &AuditHandler{svc: svc}
}

// auditListQuery defines the filters for the audit trail view.
type auditListQuery struct {
	Action     string `form:"action"`      // Action filter.
	EntityType string `form:"entity_type"` // Entity type filter.
	EntityID   string `form:"entity_id"`   // Entity ID filter.
	Search     string `form:"search"`      // Free-text search over action, entity type and detail.
	Limit      int    `form:"limit"`       // Page size.
	Offset     int    `form:"offset"`      // Page offset.
}

// auditView is the wire shape of one audit entry.
type auditView struct {
	ID         string          `json:"id"`          // Entry ID.
	Action     string          `json:"action"`      // create, update or delete.
	EntityType string          `json:"entity_type"` // provider, model, mapping or budget.
	EntityID   string          `json:"entity_id"`   // Mutated entity ID.
	Changes    json.RawMessage `json:"changes"`     // Delta for updates, full state otherwise.
	Detail     string          `json:"detail"`      // Human-readable summary.
	ActorID    string          `json:"actor_id"`    // Administrative actor.
	CreatedAt  time.Time       `json:"created_at"`  // Entry timestamp.
}

func toAuditView(e *models.AuditEntry) auditView {
	return auditView{
		ID:         e.ID,
		Action:     e.Action,
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		Changes:    json.RawMessage(e.Changes),
		Detail:     e.Detail,
		ActorID:    e.ActorID,
		CreatedAt:  e.CreatedAt,
	}
}

// List returns audit entries newest-first, honoring the query filters.
func (h *AuditHandler) List(c *gin.Context) {
	var q auditListQuery
	if errBind := c.ShouldBindQuery(&q); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query"})
		return
	}

	rows, errList := h.svc.AuditTrail(c.Request.Context(), audit.Filter{
		Action:     q.Action,
		EntityType: q.EntityType,
		EntityID:   q.EntityID,
		Search:     q.Search,
		Limit:      q.Limit,
		Offset:     q.Offset,
	})
	if errList != nil {
		respondError(c, errList)
		return
	}

	out := make([]auditView, 0, len(rows))
	for i := range rows {
		out = append(out, toAuditView(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"entries": out})
}
