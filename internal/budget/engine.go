// Package budget manages spend threshold alerts and derives their breach
// state from the usage ledger on demand. Evaluation is a pure read.
package budget

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/modelfleet/governd/internal/audit"
	"github.com/modelfleet/governd/internal/ident"
	"github.com/modelfleet/governd/internal/models"
	"github.com/modelfleet/governd/internal/toolmap"
	"github.com/modelfleet/governd/internal/usage"
	"gorm.io/gorm"
)

// Engine manages budget alerts.
type Engine struct {
	db       *gorm.DB
	rec      *audit.Recorder
	ledger   *usage.Ledger
	mappings *toolmap.Table
}

// NewEngine constructs an Engine.
func NewEngine(db *gorm.DB, rec *audit.Recorder, ledger *usage.Ledger, mappings *toolmap.Table) *Engine {
	return &Engine{db: db, rec: rec, ledger: ledger, mappings: mappings}
}

// Draft holds the fields for a new budget alert.
type Draft struct {
	ProviderID string   // Scoped provider; must exist.
	ModelID    *string  // Optional model scope; must exist when set.
	ToolID     *string  // Optional tool scope.
	Threshold  float64  // Spend threshold; must be positive.
	Period     string   // daily, weekly, monthly or yearly.
	Status     *string  // Optional; active when nil.
	Notify     []string // Notification destinations; at least one.
}

// Patch holds optional field updates; nil fields retain prior values. An
// empty string for ModelID or ToolID clears that scope.
type Patch struct {
	ModelID   *string   // Optional model scope; must exist when set, "" clears it.
	ToolID    *string   // Optional tool scope; "" clears it.
	Threshold *float64  // Optional threshold.
	Period    *string   // Optional period.
	Status    *string   // Optional status.
	Notify    *[]string // Optional destinations.
}

// Create validates the draft and inserts the alert, logging a create
// audit entry in the same transaction.
func (e *Engine) Create(tx *gorm.DB, actorID string, draft Draft) (*models.BudgetAlert, error) {
	providerID := strings.TrimSpace(draft.ProviderID)
	if providerID == "" {
		return nil, fmt.Errorf("budget: provider id is required: %w", models.ErrInvalidArgument)
	}
	if draft.Threshold <= 0 {
		return nil, fmt.Errorf("budget: threshold must be positive: %w", models.ErrInvalidArgument)
	}
	if !models.ValidAlertPeriod(draft.Period) {
		return nil, fmt.Errorf("budget: unknown period %q: %w", draft.Period, models.ErrInvalidArgument)
	}
	if len(draft.Notify) == 0 {
		return nil, fmt.Errorf("budget: at least one notification destination is required: %w", models.ErrInvalidArgument)
	}
	status := models.AlertStatusActive
	if draft.Status != nil {
		if *draft.Status != models.AlertStatusActive && *draft.Status != models.AlertStatusInactive {
			return nil, fmt.Errorf("budget: unknown status %q: %w", *draft.Status, models.ErrInvalidArgument)
		}
		status = *draft.Status
	}

	var provider models.Provider
	if errFind := tx.First(&provider, "id = ?", providerID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("budget: provider %s: %w", providerID, models.ErrInvalidReference)
		}
		return nil, fmt.Errorf("budget: lookup provider: %w", errFind)
	}

	modelID := normalizeOptionalID(draft.ModelID)
	if modelID != nil {
		var model models.Model
		if errFind := tx.First(&model, "id = ?", *modelID).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("budget: model %s: %w", *modelID, models.ErrInvalidReference)
			}
			return nil, fmt.Errorf("budget: lookup model: %w", errFind)
		}
	}

	now := time.Now().UTC()
	alert := models.BudgetAlert{
		ID:         ident.New(ident.KindBudget),
		ProviderID: providerID,
		ModelID:    modelID,
		ToolID:     normalizeOptionalID(draft.ToolID),
		Threshold:  draft.Threshold,
		Period:     draft.Period,
		Status:     status,
		Notify:     models.EncodeStringList(draft.Notify),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if errCreate := tx.Create(&alert).Error; errCreate != nil {
		return nil, fmt.Errorf("budget: create alert: %w", errCreate)
	}
	detail := fmt.Sprintf("created %s budget alert for provider %q (threshold %g)", alert.Period, provider.Name, alert.Threshold)
	if _, errAudit := e.rec.Record(tx, models.AuditActionCreate, models.EntityTypeBudget, alert.ID, alert, detail, actorID); errAudit != nil {
		return nil, errAudit
	}
	return &alert, nil
}

// Update merges the supplied fields into an existing alert and logs an
// update audit entry carrying only the delta.
func (e *Engine) Update(tx *gorm.DB, actorID, id string, patch Patch) (*models.BudgetAlert, error) {
	if patch.Threshold != nil && *patch.Threshold <= 0 {
		return nil, fmt.Errorf("budget: threshold must be positive: %w", models.ErrInvalidArgument)
	}
	if patch.Period != nil && !models.ValidAlertPeriod(*patch.Period) {
		return nil, fmt.Errorf("budget: unknown period %q: %w", *patch.Period, models.ErrInvalidArgument)
	}
	if patch.Status != nil && *patch.Status != models.AlertStatusActive && *patch.Status != models.AlertStatusInactive {
		return nil, fmt.Errorf("budget: unknown status %q: %w", *patch.Status, models.ErrInvalidArgument)
	}
	if patch.Notify != nil && len(*patch.Notify) == 0 {
		return nil, fmt.Errorf("budget: at least one notification destination is required: %w", models.ErrInvalidArgument)
	}

	var alert models.BudgetAlert
	if errFind := tx.First(&alert, "id = ?", strings.TrimSpace(id)).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("budget: alert %s: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("budget: lookup alert: %w", errFind)
	}

	newModelID := normalizeOptionalID(patch.ModelID)
	if newModelID != nil {
		var model models.Model
		if errFind := tx.First(&model, "id = ?", *newModelID).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("budget: model %s: %w", *newModelID, models.ErrInvalidReference)
			}
			return nil, fmt.Errorf("budget: lookup model: %w", errFind)
		}
	}

	delta := map[string]any{}
	if patch.ModelID != nil {
		alert.ModelID = newModelID
		delta["model_id"] = alert.ModelID
	}
	if patch.ToolID != nil {
		alert.ToolID = normalizeOptionalID(patch.ToolID)
		delta["tool_id"] = alert.ToolID
	}
	if patch.Threshold != nil && *patch.Threshold != alert.Threshold {
		alert.Threshold = *patch.Threshold
		delta["threshold"] = alert.Threshold
	}
	if patch.Period != nil && *patch.Period != alert.Period {
		alert.Period = *patch.Period
		delta["period"] = alert.Period
	}
	if patch.Status != nil && *patch.Status != alert.Status {
		alert.Status = *patch.Status
		delta["status"] = alert.Status
	}
	if patch.Notify != nil {
		alert.Notify = models.EncodeStringList(*patch.Notify)
		delta["notify"] = *patch.Notify
	}
	if len(delta) == 0 {
		return &alert, nil
	}

	alert.UpdatedAt = time.Now().UTC()
	if errSave := tx.Save(&alert).Error; errSave != nil {
		return nil, fmt.Errorf("budget: update alert: %w", errSave)
	}
	detail := fmt.Sprintf("updated budget alert %s", alert.ID)
	if _, errAudit := e.rec.Record(tx, models.AuditActionUpdate, models.EntityTypeBudget, alert.ID, delta, detail, actorID); errAudit != nil {
		return nil, errAudit
	}
	return &alert, nil
}

// Remove deletes an alert and logs a delete audit entry.
func (e *Engine) Remove(tx *gorm.DB, actorID, id string) error {
	var alert models.BudgetAlert
	if errFind := tx.First(&alert, "id = ?", strings.TrimSpace(id)).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return fmt.Errorf("budget: alert %s: %w", id, models.ErrNotFound)
		}
		return fmt.Errorf("budget: lookup alert: %w", errFind)
	}
	if errDelete := tx.Delete(&models.BudgetAlert{}, "id = ?", alert.ID).Error; errDelete != nil {
		return fmt.Errorf("budget: delete alert: %w", errDelete)
	}
	detail := fmt.Sprintf("deleted budget alert %s", alert.ID)
	if _, errAudit := e.rec.Record(tx, models.AuditActionDelete, models.EntityTypeBudget, alert.ID, alert, detail, actorID); errAudit != nil {
		return errAudit
	}
	return nil
}

// Get returns one alert by ID.
func (e *Engine) Get(ctx context.Context, id string) (*models.BudgetAlert, error) {
	var alert models.BudgetAlert
	if errFind := e.db.WithContext(ctx).First(&alert, "id = ?", strings.TrimSpace(id)).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("budget: alert %s: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("budget: get alert: %w", errFind)
	}
	return &alert, nil
}

// List returns every alert, oldest first, optionally narrowed to one
// provider.
func (e *Engine) List(ctx context.Context, providerID string) ([]models.BudgetAlert, error) {
	query := e.db.WithContext(ctx).Model(&models.BudgetAlert{})
	if trimmed := strings.TrimSpace(providerID); trimmed != "" {
		query = query.Where("provider_id = ?", trimmed)
	}
	var out []models.BudgetAlert
	if errFind := query.Order("created_at ASC, id ASC").Find(&out).Error; errFind != nil {
		return nil, fmt.Errorf("budget: list alerts: %w", errFind)
	}
	return out, nil
}

// Evaluation is the derived breach state of one alert.
type Evaluation struct {
	Spent    float64 // Summed usage cost inside the alert window.
	Breached bool    // Whether spent reached the threshold.
}

// Evaluate sums usage cost over the alert's scope and window and compares
// it against the threshold. It performs no writes and is safe to call at
// arbitrary frequency. A tool-scoped alert covers the models currently
// assigned to that tool; a tool with no assignments has zero spend.
func (e *Engine) Evaluate(ctx context.Context, alert *models.BudgetAlert) (Evaluation, error) {
	period, errParse := usage.ParsePeriod(alert.Period)
	if errParse != nil {
		return Evaluation{}, errParse
	}
	since := period.Start(time.Now().UTC())

	var (
		spent  float64
		errSum error
	)
	switch {
	case alert.ModelID != nil:
		spent, errSum = e.ledger.SumCost(ctx, alert.ProviderID, []string{*alert.ModelID}, since)
	case alert.ToolID != nil:
		modelIDs, errResolve := e.mappings.ModelIDsForTool(ctx, *alert.ToolID)
		if errResolve != nil {
			return Evaluation{}, errResolve
		}
		if len(modelIDs) == 0 {
			return Evaluation{Spent: 0, Breached: false}, nil
		}
		spent, errSum = e.ledger.SumCost(ctx, alert.ProviderID, modelIDs, since)
	default:
		spent, errSum = e.ledger.SumCost(ctx, alert.ProviderID, nil, since)
	}
	if errSum != nil {
		return Evaluation{}, errSum
	}

	return Evaluation{Spent: spent, Breached: spent >= alert.Threshold}, nil
}

// normalizeOptionalID trims an optional ID and maps empty to nil.
func normalizeOptionalID(raw *string) *string {
	if raw == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*raw)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
