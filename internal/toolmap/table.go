// Package toolmap maintains the many-to-many assignment of models to
// consumer tools, with priority ordering and cascading cleanup.
package toolmap

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/modelfleet/governd/internal/audit"
	"github.com/modelfleet/governd/internal/ident"
	"github.com/modelfleet/governd/internal/models"
	"gorm.io/gorm"
)

// Table exposes tool assignment operations. Mutating methods run on the
// caller's transaction and pair every committed change with one audit
// entry of type mapping.
type Table struct {
	db  *gorm.DB        // Base connection for the read paths.
	rec *audit.Recorder // Audit recorder shared with the other registries.
}

// NewTable constructs a Table.
func NewTable(db *gorm.DB, rec *audit.Recorder) *Table {
	return &Table{db: db, rec: rec}
}

// AssignParams describes one model-to-tool assignment.
type AssignParams struct {
	ModelID  string  // Referenced model; must exist.
	ToolID   string  // Consuming tool ID.
	ToolName string  // Consuming tool display name.
	Priority *int    // Optional; DefaultMappingPriority when nil.
	Status   *string // Optional; active when nil.
}

// Assign creates or refreshes the mapping for (ToolID, ModelID). The pair
// is unique: re-assigning an existing pair updates priority, status and
// tool name in place instead of inserting a duplicate row.
func (t *Table) Assign(tx *gorm.DB, actorID string, p AssignParams) (*models.ToolMapping, error) {
	modelID := strings.TrimSpace(p.ModelID)
	toolID := strings.TrimSpace(p.ToolID)
	toolName := strings.TrimSpace(p.ToolName)
	if modelID == "" || toolID == "" {
		return nil, fmt.Errorf("toolmap: model id and tool id are required: %w", models.ErrInvalidArgument)
	}
	if toolName == "" {
		toolName = toolID
	}
	if p.Status != nil && *p.Status != models.MappingStatusActive && *p.Status != models.MappingStatusInactive {
		return nil, fmt.Errorf("toolmap: unknown status %q: %w", *p.Status, models.ErrInvalidArgument)
	}

	var model models.Model
	if errFind := tx.First(&model, "id = ?", modelID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("toolmap: model %s: %w", modelID, models.ErrInvalidReference)
		}
		return nil, fmt.Errorf("toolmap: lookup model: %w", errFind)
	}

	var existing models.ToolMapping
	errExisting := tx.First(&existing, "tool_id = ? AND model_id = ?", toolID, modelID).Error
	switch {
	case errExisting == nil:
		return t.refresh(tx, actorID, &existing, toolName, p)
	case errors.Is(errExisting, gorm.ErrRecordNotFound):
		// Fall through to insert.
	default:
		return nil, fmt.Errorf("toolmap: lookup mapping: %w", errExisting)
	}

	now := time.Now().UTC()
	mapping := models.ToolMapping{
		ID:        ident.New(ident.KindMapping),
		ToolID:    toolID,
		ToolName:  toolName,
		ModelID:   modelID,
		Priority:  models.DefaultMappingPriority,
		Status:    models.MappingStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if p.Priority != nil {
		mapping.Priority = *p.Priority
	}
	if p.Status != nil {
		mapping.Status = *p.Status
	}

	if errCreate := tx.Create(&mapping).Error; errCreate != nil {
		return nil, fmt.Errorf("toolmap: create mapping: %w", errCreate)
	}
	detail := fmt.Sprintf("assigned model %q to tool %q", model.Name, toolName)
	if _, errAudit := t.rec.Record(tx, models.AuditActionCreate, models.EntityTypeMapping, mapping.ID, mapping, detail, actorID); errAudit != nil {
		return nil, errAudit
	}
	return &mapping, nil
}

// refresh applies the second-assign semantics for an existing pair.
func (t *Table) refresh(tx *gorm.DB, actorID string, existing *models.ToolMapping, toolName string, p AssignParams) (*models.ToolMapping, error) {
	delta := map[string]any{}
	if toolName != existing.ToolName {
		existing.ToolName = toolName
		delta["tool_name"] = toolName
	}
	if p.Priority != nil && *p.Priority != existing.Priority {
		existing.Priority = *p.Priority
		delta["priority"] = *p.Priority
	}
	if p.Status != nil && *p.Status != existing.Status {
		existing.Status = *p.Status
		delta["status"] = *p.Status
	}
	if len(delta) == 0 {
		return existing, nil
	}

	existing.UpdatedAt = time.Now().UTC()
	if errSave := tx.Save(existing).Error; errSave != nil {
		return nil, fmt.Errorf("toolmap: update mapping: %w", errSave)
	}
	detail := fmt.Sprintf("updated mapping of model %s to tool %q", existing.ModelID, existing.ToolName)
	if _, errAudit := t.rec.Record(tx, models.AuditActionUpdate, models.EntityTypeMapping, existing.ID, delta, detail, actorID); errAudit != nil {
		return nil, errAudit
	}
	return existing, nil
}

// Unassign removes a mapping by ID. Removing an already-absent mapping is
// a silent no-op: it reports success and writes no audit entry.
func (t *Table) Unassign(tx *gorm.DB, actorID, mappingID string) error {
	var mapping models.ToolMapping
	errFind := tx.First(&mapping, "id = ?", strings.TrimSpace(mappingID)).Error
	if errors.Is(errFind, gorm.ErrRecordNotFound) {
		return nil
	}
	if errFind != nil {
		return fmt.Errorf("toolmap: lookup mapping: %w", errFind)
	}
	return t.remove(tx, actorID, &mapping)
}

// RemoveByModel deletes every mapping referencing the model, oldest first,
// writing one audit entry per removed row. Used by the model and provider
// removal cascades.
func (t *Table) RemoveByModel(tx *gorm.DB, actorID, modelID string) (int, error) {
	var mappings []models.ToolMapping
	if errFind := tx.
		Where("model_id = ?", modelID).
		Order("created_at ASC, id ASC").
		Find(&mappings).Error; errFind != nil {
		return 0, fmt.Errorf("toolmap: list mappings for model: %w", errFind)
	}
	for i := range mappings {
		if errRemove := t.remove(tx, actorID, &mappings[i]); errRemove != nil {
			return 0, errRemove
		}
	}
	return len(mappings), nil
}

func (t *Table) remove(tx *gorm.DB, actorID string, mapping *models.ToolMapping) error {
	if errDelete := tx.Delete(&models.ToolMapping{}, "id = ?", mapping.ID).Error; errDelete != nil {
		return fmt.Errorf("toolmap: delete mapping: %w", errDelete)
	}
	detail := fmt.Sprintf("unassigned model %s from tool %q", mapping.ModelID, mapping.ToolName)
	if _, errAudit := t.rec.Record(tx, models.AuditActionDelete, models.EntityTypeMapping, mapping.ID, mapping, detail, actorID); errAudit != nil {
		return errAudit
	}
	return nil
}

// ListByModel returns the mappings referencing a model, preferred first.
func (t *Table) ListByModel(ctx context.Context, modelID string) ([]models.ToolMapping, error) {
	return t.list(ctx, "model_id = ?", modelID)
}

// ListByTool returns the candidate mappings for a tool, preferred first.
func (t *Table) ListByTool(ctx context.Context, toolID string) ([]models.ToolMapping, error) {
	return t.list(ctx, "tool_id = ?", toolID)
}

func (t *Table) list(ctx context.Context, keyExpr, keyValue string) ([]models.ToolMapping, error) {
	var mappings []models.ToolMapping
	if errFind := t.db.WithContext(ctx).
		Where(keyExpr, keyValue).
		Order("priority ASC, created_at ASC").
		Find(&mappings).Error; errFind != nil {
		return nil, fmt.Errorf("toolmap: list: %w", errFind)
	}
	return mappings, nil
}

// ModelIDsForTool returns the distinct model IDs currently assigned to a
// tool. Used to resolve tool-scoped budget alerts.
func (t *Table) ModelIDsForTool(ctx context.Context, toolID string) ([]string, error) {
	var ids []string
	if errPluck := t.db.WithContext(ctx).
		Model(&models.ToolMapping{}).
		Where("tool_id = ?", toolID).
		Distinct().
		Pluck("model_id", &ids).Error; errPluck != nil {
		return nil, fmt.Errorf("toolmap: model ids for tool: %w", errPluck)
	}
	return ids, nil
}
