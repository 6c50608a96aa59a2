package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/modelfleet/governd/internal/budget"
	"github.com/modelfleet/governd/internal/governance"
	"github.com/modelfleet/governd/internal/models"
)

// BudgetHandler manages budget alerts and their evaluation.
type BudgetHandler struct {
	svc *governance.Service
}

// NewBudgetHandler constructs a BudgetHandler.
func NewBudgetHandler(svc *governance.Service) *BudgetHandler {
	return &BudgetHandler{svc: svc}
}

// createBudgetRequest captures the payload for a new budget alert.
type createBudgetRequest struct {
	ProviderID string   `json:"provider_id"` // Scoped provider.
	ModelID    *string  `json:"model_id"`    // Optional model scope.
	ToolID     *string  `json:"tool_id"`     // Optional tool scope.
	Threshold  float64  `json:"threshold"`   // Spend threshold.
	Period     string   `json:"period"`      // daily, weekly, monthly or yearly.
	Status     *string  `json:"status"`      // Optional status.
	Notify     []string `json:"notify"`      // Notification destinations.
}

// updateBudgetRequest captures optional fields for updates. Empty strings
// for model_id or tool_id clear that scope.
type updateBudgetRequest struct {
	ModelID   *string   `json:"model_id"`  // Optional model scope; "" clears it.
	ToolID    *string   `json:"tool_id"`   // Optional tool scope; "" clears it.
	Threshold *float64  `json:"threshold"` // Optional threshold.
	Period    *string   `json:"period"`    // Optional period.
	Status    *string   `json:"status"`    // Optional status.
	Notify    *[]string `json:"notify"`    // Optional destinations.
}

// budgetView is the wire shape of a budget alert.
type budgetView struct {
	ID         string    `json:"id"`                 // Alert ID.
	ProviderID string    `json:"provider_id"`        // Scoped provider.
	ModelID    *string   `json:"model_id,omitempty"` // Optional model scope.
	ToolID     *string   `json:"tool_id,omitempty"`  // Optional tool scope.
	Threshold  float64   `json:"threshold"`          // Spend threshold.
	Period     string    `json:"period"`             // Alert period.
	Status     string    `json:"status"`             // active or inactive.
	Notify     []string  `json:"notify"`             // Notification destinations.
	CreatedAt  time.Time `json:"created_at"`         // Creation timestamp.
	UpdatedAt  time.Time `json:"updated_at"`         // Last update timestamp.
}

func toBudgetView(a *models.BudgetAlert) budgetView {
	return budgetView{
		ID:         a.ID,
		ProviderID: a.ProviderID,
		ModelID:    a.ModelID,
		ToolID:     a.ToolID,
		Threshold:  a.Threshold,
		Period:     a.Period,
		Status:     a.Status,
		Notify:     a.NotifyDestinations(),
		CreatedAt:  a.CreatedAt,
		UpdatedAt:  a.UpdatedAt,
	}
}

// List returns all budget alerts, optionally narrowed by provider_id.
func (h *BudgetHandler) List(c *gin.Context) {
	rows, errList := h.svc.Budgets(c.Request.Context(), c.Query("provider_id"))
	if errList != nil {
		respondError(c, errList)
		return
	}
	out := make([]budgetView, 0, len(rows))
	for i := range rows {
		out = append(out, toBudgetView(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"budgets": out})
}

// Get returns one budget alert by ID.
func (h *BudgetHandler) Get(c *gin.Context) {
	alert, errGet := h.svc.Budget(c.Request.Context(), c.Param("id"))
	if errGet != nil {
		respondError(c, errGet)
		return
	}
	c.JSON(http.StatusOK, toBudgetView(alert))
}

// Create registers a budget alert.
func (h *BudgetHandler) Create(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var body createBudgetRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	alert, errCreate := h.svc.AddBudget(c.Request.Context(), actor, budget.Draft{
		ProviderID: body.ProviderID,
		ModelID:    body.ModelID,
		ToolID:     body.ToolID,
		Threshold:  body.Threshold,
		Period:     body.Period,
		Status:     body.Status,
		Notify:     body.Notify,
	})
	if errCreate != nil {
		respondError(c, errCreate)
		return
	}
	c.JSON(http.StatusCreated, toBudgetView(alert))
}

// Update merges the supplied fields into a budget alert.
func (h *BudgetHandler) Update(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var body updateBudgetRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	alert, errUpdate := h.svc.UpdateBudget(c.Request.Context(), actor, c.Param("id"), budget.Patch{
		ModelID:   body.ModelID,
		ToolID:    body.ToolID,
		Threshold: body.Threshold,
		Period:    body.Period,
		Status:    body.Status,
		Notify:    body.Notify,
	})
	if errUpdate != nil {
		respondError(c, errUpdate)
		return
	}
	c.JSON(http.StatusOK, toBudgetView(alert))
}

// Delete removes a budget alert.
func (h *BudgetHandler) Delete(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	if errRemove := h.svc.RemoveBudget(c.Request.Context(), actor, c.Param("id")); errRemove != nil {
		respondError(c, errRemove)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Evaluate derives the current breach state of one alert.
func (h *BudgetHandler) Evaluate(c *gin.Context) {
	evaluation, errEval := h.svc.EvaluateBudget(c.Request.Context(), c.Param("id"))
	if errEval != nil {
		respondError(c, errEval)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"spent":    evaluation.Spent,
		"breached": evaluation.Breached,
	})
}
