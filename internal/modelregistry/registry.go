// Package modelregistry is CRUD over AI model records scoped to a
// provider. Removing a model cascades to its tool mappings first, so no
// mapping ever references a dead model.
package modelregistry

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
	"gorm.io/gorm"
)

// Registry manages model records.
type Registry struct {
	db       *gorm.DB
	rec      *audit.Recorder
	mappings *toolmap.Table
}

// NewRegistry constructs a Registry.
func NewRegistry(db *gorm.DB, rec *audit.Recorder, mappings *toolmap.Table) *Registry {
	return &Registry{db: db, rec: rec, mappings: mappings}
}

// Draft holds the fields for a new model.
type Draft struct {
	ProviderID     string   // Owning provider; must exist.
	Name           string   // Model name.
	Capabilities   []string // Capability tags.
	ContextWindow  int      // Max context size; must be positive.
	CostPerToken   float64  // Cost per output token; must be non-negative.
	Status         *string  // Optional; inactive when nil.
	RecommendedFor []string // Recommended-use tags.
}

// Patch holds optional field updates; nil fields retain prior values.
type Patch struct {
	Name           *string   // Optional new name.
	Capabilities   *[]string // Optional capability tags.
	ContextWindow  *int      // Optional context size.
	CostPerToken   *float64  // Optional cost per token.
	Status         *string   // Optional status.
	RecommendedFor *[]string // Optional recommended-use tags.
}

// Create validates the draft and inserts the model, logging a create
// audit entry in the same transaction. Validation failures reject the
// call before any mutation or audit write.
func (r *Registry) Create(tx *gorm.DB, actorID string, draft Draft) (*models.Model, error) {
	providerID := strings.TrimSpace(draft.ProviderID)
	name := strings.TrimSpace(draft.Name)
	if providerID == "" || name == "" {
		return nil, fmt.Errorf("modelregistry: provider id and name are required: %w", models.ErrInvalidArgument)
	}
	if draft.ContextWindow <= 0 {
		return nil, fmt.Errorf("modelregistry: context window must be positive: %w", models.ErrInvalidArgument)
	}
	if draft.CostPerToken < 0 {
		return nil, fmt.Errorf("modelregistry: cost per token must be non-negative: %w", models.ErrInvalidArgument)
	}
	status := models.ModelStatusInactive
	if draft.Status != nil {
		if !models.ValidModelStatus(*draft.Status) {
			return nil, fmt.Errorf("modelregistry: unknown status %q: %w", *draft.Status, models.ErrInvalidArgument)
		}
		status = *draft.Status
	}

	var provider models.Provider
	if errFind := tx.First(&provider, "id = ?", providerID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("modelregistry: provider %s: %w", providerID, models.ErrInvalidReference)
		}
		return nil, fmt.Errorf("modelregistry: lookup provider: %w", errFind)
	}

	now := time.Now().UTC()
	model := models.Model{
		ID:             ident.New(ident.KindModel),
		ProviderID:     providerID,
		Name:           name,
		Capabilities:   models.EncodeStringList(draft.Capabilities),
		ContextWindow:  draft.ContextWindow,
		CostPerToken:   draft.CostPerToken,
		Status:         status,
		RecommendedFor: models.EncodeStringList(draft.RecommendedFor),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if errCreate := tx.Create(&model).Error; errCreate != nil {
		return nil, fmt.Errorf("modelregistry: create model: %w", errCreate)
	}
	detail := fmt.Sprintf("created model %q under provider %q", model.Name, provider.Name)
	if _, errAudit := r.rec.Record(tx, models.AuditActionCreate, models.EntityTypeModel, model.ID, model, detail, actorID); errAudit != nil {
		return nil, errAudit
	}
	return &model, nil
}

// Update merges the supplied fields into an existing model and logs an
// update audit entry carrying only the delta.
func (r *Registry) Update(tx *gorm.DB, actorID, id string, patch Patch) (*models.Model, error) {
	if patch.ContextWindow != nil && *patch.ContextWindow <= 0 {
		return nil, fmt.Errorf("modelregistry: context window must be positive: %w", models.ErrInvalidArgument)
	}
	if patch.CostPerToken != nil && *patch.CostPerToken < 0 {
		return nil, fmt.Errorf("modelregistry: cost per token must be non-negative: %w", models.ErrInvalidArgument)
	}
	if patch.Status != nil && !models.ValidModelStatus(*patch.Status) {
		return nil, fmt.Errorf("modelregistry: unknown status %q: %w", *patch.Status, models.ErrInvalidArgument)
	}

	var model models.Model
	if errFind := tx.First(&model, "id = ?", strings.TrimSpace(id)).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("modelregistry: model %s: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("modelregistry: lookup model: %w", errFind)
	}

	delta := map[string]any{}
	if patch.Name != nil && strings.TrimSpace(*patch.Name) != "" && *patch.Name != model.Name {
		model.Name = strings.TrimSpace(*patch.Name)
		delta["name"] = model.Name
	}
	if patch.Capabilities != nil {
		model.Capabilities = models.EncodeStringList(*patch.Capabilities)
		delta["capabilities"] = *patch.Capabilities
	}
	if patch.ContextWindow != nil && *patch.ContextWindow != model.ContextWindow {
		model.ContextWindow = *patch.ContextWindow
		delta["context_window"] = model.ContextWindow
	}
	if patch.CostPerToken != nil && *patch.CostPerToken != model.CostPerToken {
		model.CostPerToken = *patch.CostPerToken
		delta["cost_per_token"] = model.CostPerToken
	}
	if patch.Status != nil && *patch.Status != model.Status {
		model.Status = *patch.Status
		delta["status"] = model.Status
	}
	if patch.RecommendedFor != nil {
		model.RecommendedFor = models.EncodeStringList(*patch.RecommendedFor)
		delta["recommended_for"] = *patch.RecommendedFor
	}
	if len(delta) == 0 {
		return &model, nil
	}

	model.UpdatedAt = time.Now().UTC()
	if errSave := tx.Save(&model).Error; errSave != nil {
		return nil, fmt.Errorf("modelregistry: update model: %w", errSave)
	}
	detail := fmt.Sprintf("updated model %q", model.Name)
	if _, errAudit := r.rec.Record(tx, models.AuditActionUpdate, models.EntityTypeModel, model.ID, delta, detail, actorID); errAudit != nil {
		return nil, errAudit
	}
	return &model, nil
}

// Remove cascade-deletes every mapping referencing the model, then the
// model itself. Each removed mapping gets its own audit entry before the
// model's delete entry, so the trail reads children before parent.
func (r *Registry) Remove(tx *gorm.DB, actorID, id string) error {
	var model models.Model
	if errFind := tx.First(&model, "id = ?", strings.TrimSpace(id)).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return fmt.Errorf("modelregistry: model %s: %w", id, models.ErrNotFound)
		}
		return fmt.Errorf("modelregistry: lookup model: %w", errFind)
	}
	return r.removeLoaded(tx, actorID, &model)
}

// RemoveByProvider removes every model owned by the provider, oldest
// first, cascading each model's mappings. Used by the provider removal
// cascade.
func (r *Registry) RemoveByProvider(tx *gorm.DB, actorID, providerID string) error {
	var owned []models.Model
	if errFind := tx.
		Where("provider_id = ?", providerID).
		Order("created_at ASC, id ASC").
		Find(&owned).Error; errFind != nil {
		return fmt.Errorf("modelregistry: list models for provider: %w", errFind)
	}
	for i := range owned {
		if errRemove := r.removeLoaded(tx, actorID, &owned[i]); errRemove != nil {
			return errRemove
		}
	}
	return nil
}

func (r *Registry) removeLoaded(tx *gorm.DB, actorID string, model *models.Model) error {
	if _, errCascade := r.mappings.RemoveByModel(tx, actorID, model.ID); errCascade != nil {
		return errCascade
	}
	if errDelete := tx.Delete(&models.Model{}, "id = ?", model.ID).Error; errDelete != nil {
		return fmt.Errorf("modelregistry: delete model: %w", errDelete)
	}
	detail := fmt.Sprintf("deleted model %q", model.Name)
	if _, errAudit := r.rec.Record(tx, models.AuditActionDelete, models.EntityTypeModel, model.ID, model, detail, actorID); errAudit != nil {
		return errAudit
	}
	return nil
}

// Get returns one model by ID.
func (r *Registry) Get(ctx context.Context, id string) (*models.Model, error) {
	var model models.Model
	if errFind := r.db.WithContext(ctx).First(&model, "id = ?", strings.TrimSpace(id)).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("modelregistry: model %s: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("modelregistry: get model: %w", errFind)
	}
	return &model, nil
}

// List returns all models, optionally narrowed to one provider.
func (r *Registry) List(ctx context.Context, providerID string) ([]models.Model, error) {
	query := r.db.WithContext(ctx).Model(&models.Model{})
	if trimmed := strings.TrimSpace(providerID); trimmed != "" {
		query = query.Where("provider_id = ?", trimmed)
	}
	var out []models.Model
	if errFind := query.Order("created_at ASC, id ASC").Find(&out).Error; errFind != nil {
		return nil, fmt.Errorf("modelregistry: list models: %w", errFind)
	}
	return out, nil
}
