// Package providers is CRUD over configured AI provider records.
// Credential material is sealed before it reaches the database, and
// provider removal cascades through owned models and their tool mappings.
package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/modelfleet/governd/internal/audit"
	"github.com/modelfleet/governd/internal/ident"
	"github.com/modelfleet/governd/internal/modelregistry"
	"github.com/modelfleet/governd/internal/models"
	"github.com/modelfleet/governd/internal/security"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Registry manages provider records.
type Registry struct {
	db     *gorm.DB
	rec    *audit.Recorder
	owned  *modelregistry.Registry
	sealer *security.Box
}

// NewRegistry constructs a Registry. The sealer protects credential
// material at rest and must not be nil.
func NewRegistry(db *gorm.DB, rec *audit.Recorder, owned *modelregistry.Registry, sealer *security.Box) *Registry {
	return &Registry{db: db, rec: rec, owned: owned, sealer: sealer}
}

// Draft holds the fields for a new provider.
type Draft struct {
	Name         string                   // Display name; required.
	Description  string                   // Free-form description.
	Status       *string                  // Optional; inactive when nil.
	Credential   string                   // Plaintext credential material; sealed before storage.
	BaseURL      string                   // Optional endpoint override.
	Settings     *models.ProviderSettings // Optional default invocation settings.
	MonthlyQuota float64                  // Monthly spend limit; 0 means unlimited.
}

// Patch holds optional field updates; nil fields retain prior values.
type Patch struct {
	Name         *string                  // Optional new name.
	Description  *string                  // Optional description.
	Status       *string                  // Optional status.
	Credential   *string                  // Optional new credential (plaintext; resealed).
	BaseURL      *string                  // Optional endpoint override.
	Settings     *models.ProviderSettings // Optional invocation settings.
	MonthlyQuota *float64                 // Optional monthly spend limit.
}

// Create validates the draft and inserts the provider, logging a create
// audit entry in the same transaction. The audit payload carries the
// credential masked, never plaintext or ciphertext.
func (r *Registry) Create(tx *gorm.DB, actorID string, draft Draft) (*models.Provider, error) {
	name := strings.TrimSpace(draft.Name)
	if name == "" {
		return nil, fmt.Errorf("providers: name is required: %w", models.ErrInvalidArgument)
	}
	status := models.ProviderStatusInactive
	if draft.Status != nil {
		if !models.ValidProviderStatus(*draft.Status) {
			return nil, fmt.Errorf("providers: unknown status %q: %w", *draft.Status, models.ErrInvalidArgument)
		}
		status = *draft.Status
	}
	if draft.MonthlyQuota < 0 {
		return nil, fmt.Errorf("providers: monthly quota must be non-negative: %w", models.ErrInvalidArgument)
	}

	sealed, errSeal := r.sealer.Seal(draft.Credential)
	if errSeal != nil {
		return nil, fmt.Errorf("providers: seal credential: %w", errSeal)
	}

	now := time.Now().UTC()
	provider := models.Provider{
		ID:           ident.New(ident.KindProvider),
		Name:         name,
		Description:  strings.TrimSpace(draft.Description),
		Status:       status,
		Credential:   sealed,
		BaseURL:      strings.TrimSpace(draft.BaseURL),
		Settings:     encodeSettings(draft.Settings),
		MonthlyQuota: draft.MonthlyQuota,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if errCreate := tx.Create(&provider).Error; errCreate != nil {
		return nil, fmt.Errorf("providers: create provider: %w", errCreate)
	}

	detail := fmt.Sprintf("created provider %q", provider.Name)
	if _, errAudit := r.rec.Record(tx, models.AuditActionCreate, models.EntityTypeProvider, provider.ID,
		sanitizeForAudit(provider, draft.Credential), detail, actorID); errAudit != nil {
		return nil, errAudit
	}
	return &provider, nil
}

// Update merges the supplied fields into an existing provider and logs an
// update audit entry carrying only the delta.
func (r *Registry) Update(tx *gorm.DB, actorID, id string, patch Patch) (*models.Provider, error) {
	if patch.Status != nil && !models.ValidProviderStatus(*patch.Status) {
		return nil, fmt.Errorf("providers: unknown status %q: %w", *patch.Status, models.ErrInvalidArgument)
	}
	if patch.MonthlyQuota != nil && *patch.MonthlyQuota < 0 {
		return nil, fmt.Errorf("providers: monthly quota must be non-negative: %w", models.ErrInvalidArgument)
	}

	var provider models.Provider
	if errFind := tx.First(&provider, "id = ?", strings.TrimSpace(id)).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("providers: provider %s: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("providers: lookup provider: %w", errFind)
	}

	delta := map[string]any{}
	if patch.Name != nil && strings.TrimSpace(*patch.Name) != "" && *patch.Name != provider.Name {
		provider.Name = strings.TrimSpace(*patch.Name)
		delta["name"] = provider.Name
	}
	if patch.Description != nil && *patch.Description != provider.Description {
		provider.Description = *patch.Description
		delta["description"] = provider.Description
	}
	if patch.Status != nil && *patch.Status != provider.Status {
		provider.Status = *patch.Status
		delta["status"] = provider.Status
	}
	if patch.Credential != nil {
		sealed, errSeal := r.sealer.Seal(*patch.Credential)
		if errSeal != nil {
			return nil, fmt.Errorf("providers: seal credential: %w", errSeal)
		}
		provider.Credential = sealed
		delta["credential"] = security.MaskCredential(*patch.Credential)
	}
	if patch.BaseURL != nil && *patch.BaseURL != provider.BaseURL {
		provider.BaseURL = strings.TrimSpace(*patch.BaseURL)
		delta["base_url"] = provider.BaseURL
	}
	if patch.Settings != nil {
		provider.Settings = encodeSettings(patch.Settings)
		delta["settings"] = *patch.Settings
	}
	if patch.MonthlyQuota != nil && *patch.MonthlyQuota != provider.MonthlyQuota {
		provider.MonthlyQuota = *patch.MonthlyQuota
		delta["monthly_quota"] = provider.MonthlyQuota
	}
	if len(delta) == 0 {
		return &provider, nil
	}

	provider.UpdatedAt = time.Now().UTC()
	if errSave := tx.Save(&provider).Error; errSave != nil {
		return nil, fmt.Errorf("providers: update provider: %w", errSave)
	}
	detail := fmt.Sprintf("updated provider %q", provider.Name)
	if _, errAudit := r.rec.Record(tx, models.AuditActionUpdate, models.EntityTypeProvider, provider.ID, delta, detail, actorID); errAudit != nil {
		return nil, errAudit
	}
	return &provider, nil
}

// Remove deletes the provider after cascading through its models and
// their tool mappings: mappings first, then models, then the provider,
// each with its own audit entry in dependency order.
func (r *Registry) Remove(tx *gorm.DB, actorID, id string) error {
	var provider models.Provider
	if errFind := tx.First(&provider, "id = ?", strings.TrimSpace(id)).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return fmt.Errorf("providers: provider %s: %w", id, models.ErrNotFound)
		}
		return fmt.Errorf("providers: lookup provider: %w", errFind)
	}

	if errCascade := r.owned.RemoveByProvider(tx, actorID, provider.ID); errCascade != nil {
		return errCascade
	}
	if errDelete := tx.Delete(&models.Provider{}, "id = ?", provider.ID).Error; errDelete != nil {
		return fmt.Errorf("providers: delete provider: %w", errDelete)
	}
	detail := fmt.Sprintf("deleted provider %q", provider.Name)
	if _, errAudit := r.rec.Record(tx, models.AuditActionDelete, models.EntityTypeProvider, provider.ID,
		sanitizeForAudit(provider, ""), detail, actorID); errAudit != nil {
		return errAudit
	}
	return nil
}

// Get returns one provider by ID.
func (r *Registry) Get(ctx context.Context, id string) (*models.Provider, error) {
	var provider models.Provider
	if errFind := r.db.WithContext(ctx).First(&provider, "id = ?", strings.TrimSpace(id)).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("providers: provider %s: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("providers: get provider: %w", errFind)
	}
	return &provider, nil
}

// List returns every provider, oldest first.
func (r *Registry) List(ctx context.Context) ([]models.Provider, error) {
	var out []models.Provider
	if errFind := r.db.WithContext(ctx).
		Order("created_at ASC, id ASC").
		Find(&out).Error; errFind != nil {
		return nil, fmt.Errorf("providers: list providers: %w", errFind)
	}
	return out, nil
}

// Credential opens the sealed credential material for a provider. Only
// trusted collaborators (the completion service wiring) call this.
func (r *Registry) Credential(ctx context.Context, id string) (string, error) {
	provider, errGet := r.Get(ctx, id)
	if errGet != nil {
		return "", errGet
	}
	plain, errOpen := r.sealer.Open(provider.Credential)
	if errOpen != nil {
		return "", fmt.Errorf("providers: open credential: %w", errOpen)
	}
	return plain, nil
}

// sanitizeForAudit copies a provider for the audit payload with the
// credential masked instead of sealed.
func sanitizeForAudit(provider models.Provider, plaintextCredential string) models.Provider {
	provider.Credential = security.MaskCredential(plaintextCredential)
	return provider
}

func encodeSettings(settings *models.ProviderSettings) datatypes.JSON {
	if settings == nil {
		return nil
	}
	raw, errMarshal := json.Marshal(settings)
	if errMarshal != nil {
		return nil
	}
	return datatypes.JSON(raw)
}
