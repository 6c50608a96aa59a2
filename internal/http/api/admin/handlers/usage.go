package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/modelfleet/governd/internal/governance"
	"github.com/modelfleet/governd/internal/models"
	"github.com/modelfleet/governd/internal/usage"
)

// UsageHandler records and queries metered usage events.
type UsageHandler struct {
	svc *governance.Service
}

// NewUsageHandler constructs a UsageHandler.
func NewUsageHandler(svc *governance.Service) *UsageHandler {
	return &UsageHandler{svc: svc}
}

// recordUsageRequest captures the payload for one usage event.
type recordUsageRequest struct {
	ProviderID string     `json:"provider_id"` // Provider the call went through.
	ModelID    *string    `json:"model_id"`    // Model used, when known.
	Tokens     int64      `json:"tokens"`      // Total token count.
	Cost       float64    `json:"cost"`        // Metered cost.
	Timestamp  *time.Time `json:"timestamp"`   // Optional completion time; now when absent.
}

// usageView is the wire shape of a usage event.
type usageView struct {
	ID         string    `json:"id"`                 // Event ID.
	ProviderID string    `json:"provider_id"`        // Provider the call went through.
	ModelID    *string   `json:"model_id,omitempty"` // Model used, when known.
	Tokens     int64     `json:"tokens"`             // Total token count.
	Cost       float64   `json:"cost"`               // Metered cost.
	Timestamp  time.Time `json:"timestamp"`          // When the call completed.
}

func toUsageView(e *models.UsageEvent) usageView {
	return usageView{
		ID:         e.ID,
		ProviderID: e.ProviderID,
		ModelID:    e.ModelID,
		Tokens:     e.Tokens,
		Cost:       e.Cost,
		Timestamp:  e.Timestamp,
	}
}

// Record appends one usage event to the ledger.
func (h *UsageHandler) Record(c *gin.Context) {
	var body recordUsageRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	draft := usage.Draft{
		ProviderID: body.ProviderID,
		ModelID:    body.ModelID,
		Tokens:     body.Tokens,
		Cost:       body.Cost,
	}
	if body.Timestamp != nil {
		draft.Timestamp = *body.Timestamp
	}

	event, errRecord := h.svc.RecordUsage(c.Request.Context(), draft)
	if errRecord != nil {
		respondError(c, errRecord)
		return
	}
	c.JSON(http.StatusCreated, toUsageView(event))
}

// List returns usage events inside the requested period window, narrowed
// by provider_id or model_id. Exactly one of the two is required; period
// defaults to month.
func (h *UsageHandler) List(c *gin.Context) {
	period := usage.PeriodMonth
	if raw := strings.TrimSpace(c.Query("period")); raw != "" {
		parsed, errParse := usage.ParsePeriod(raw)
		if errParse != nil {
			respondError(c, errParse)
			return
		}
		period = parsed
	}

	providerID := strings.TrimSpace(c.Query("provider_id"))
	modelID := strings.TrimSpace(c.Query("model_id"))

	var (
		rows    []models.UsageEvent
		errList error
	)
	switch {
	case providerID != "" && modelID == "":
		rows, errList = h.svc.UsageByProvider(c.Request.Context(), providerID, period)
	case modelID != "" && providerID == "":
		rows, errList = h.svc.UsageByModel(c.Request.Context(), modelID, period)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "exactly one of provider_id or model_id is required"})
		return
	}
	if errList != nil {
		respondError(c, errList)
		return
	}

	out := make([]usageView, 0, len(rows))
	for i := range rows {
		out = append(out, toUsageView(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"events": out})
}
