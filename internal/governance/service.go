// Package governance is the single public surface of the resource
// ledger. Every external caller goes through the Service: it serializes
// administrative mutations, runs each one inside a single database
// transaction together with its cascades and audit entries, and delegates
// reads to the underlying registries.
package governance

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/modelfleet/governd/internal/audit"
	"github.com/modelfleet/governd/internal/budget"
	"github.com/modelfleet/governd/internal/modelregistry"
	"github.com/modelfleet/governd/internal/models"
	"github.com/modelfleet/governd/internal/providers"
	"github.com/modelfleet/governd/internal/quota"
	"github.com/modelfleet/governd/internal/security"
	"github.com/modelfleet/governd/internal/toolmap"
	"github.com/modelfleet/governd/internal/usage"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Service composes the registries, ledger, budget engine, audit recorder
// and quota projector behind one handle. Construct it once at process
// start and inject it into callers.
type Service struct {
	db *gorm.DB

	// mu serializes administrative mutations so a cascade is one
	// critical section. Usage appends and reads do not take it.
	mu sync.Mutex

	providers *providers.Registry
	catalog   *modelregistry.Registry
	mappings  *toolmap.Table
	ledger    *usage.Ledger
	budgets   *budget.Engine
	auditor   *audit.Recorder
	quotas    *quota.Projector
}

// New wires a Service over an opened database connection. sealer guards
// provider credentials; rdb is optional and backs the quota projection
// cache when present.
func New(db *gorm.DB, sealer *security.Box, rdb *redis.Client, quotaTTL time.Duration) *Service {
	recorder := audit.NewRecorder(db)
	mappings := toolmap.NewTable(db, recorder)
	catalog := modelregistry.NewRegistry(db, recorder, mappings)
	providerReg := providers.NewRegistry(db, recorder, catalog, sealer)

	var projector *quota.Projector
	ledger := usage.NewLedger(db, func(providerID string) {
		if projector != nil {
			projector.Invalidate(providerID)
		}
	})
	projector = quota.NewProjector(db, ledger, rdb, quotaTTL)

	return &Service{
		db:        db,
		providers: providerReg,
		catalog:   catalog,
		mappings:  mappings,
		ledger:    ledger,
		budgets:   budget.NewEngine(db, recorder, ledger, mappings),
		auditor:   recorder,
		quotas:    projector,
	}
}

// mutate runs fn as one serialized, all-or-nothing administrative
// mutation. A failed audit append inside fn aborts the transaction, so
// no state change ever commits without its audit record.
func (s *Service) mutate(ctx context.Context, actorID string, fn func(tx *gorm.DB) error) error {
	if strings.TrimSpace(actorID) == "" {
		return fmt.Errorf("governance: actor id is required: %w", models.ErrInvalidArgument)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.WithContext(ctx).Transaction(fn)
}

// AddProvider registers a provider.
func (s *Service) AddProvider(ctx context.Context, actorID string, draft providers.Draft) (*models.Provider, error) {
	var out *models.Provider
	errMutate := s.mutate(ctx, actorID, func(tx *gorm.DB) error {
		created, errCreate := s.providers.Create(tx, actorID, draft)
		out = created
		return errCreate
	})
	if errMutate != nil {
		return nil, errMutate
	}
	return out, nil
}

// UpdateProvider merges the supplied fields into a provider.
func (s *Service) UpdateProvider(ctx context.Context, actorID, id string, patch providers.Patch) (*models.Provider, error) {
	var out *models.Provider
	errMutate := s.mutate(ctx, actorID, func(tx *gorm.DB) error {
		updated, errUpdate := s.providers.Update(tx, actorID, id, patch)
		out = updated
		return errUpdate
	})
	if errMutate != nil {
		return nil, errMutate
	}
	return out, nil
}

// RemoveProvider deletes a provider, cascading through its models and
// their tool mappings in dependency order.
func (s *Service) RemoveProvider(ctx context.Context, actorID, id string) error {
	return s.mutate(ctx, actorID, func(tx *gorm.DB) error {
		return s.providers.Remove(tx, actorID, id)
	})
}

// Provider returns one provider.
func (s *Service) Provider(ctx context.Context, id string) (*models.Provider, error) {
	return s.providers.Get(ctx, id)
}

// Providers returns every provider.
func (s *Service) Providers(ctx context.Context) ([]models.Provider, error) {
	return s.providers.List(ctx)
}

// ProviderCredential opens a provider's sealed credential for trusted
// collaborators.
func (s *Service) ProviderCredential(ctx context.Context, id string) (string, error) {
	return s.providers.Credential(ctx, id)
}

// ProviderQuota returns the provider's cached monthly spend projection.
func (s *Service) ProviderQuota(ctx context.Context, id string) (quota.Projection, error) {
	return s.quotas.Snapshot(ctx, id)
}

// AddModel registers a model under an existing provider.
func (s *Service) AddModel(ctx context.Context, actorID string, draft modelregistry.Draft) (*models.Model, error) {
	var out *models.Model
	errMutate := s.mutate(ctx, actorID, func(tx *gorm.DB) error {
		created, errCreate := s.catalog.Create(tx, actorID, draft)
		out = created
		return errCreate
	})
	if errMutate != nil {
		return nil, errMutate
	}
	return out, nil
}

// UpdateModel merges the supplied fields into a model.
func (s *Service) UpdateModel(ctx context.Context, actorID, id string, patch modelregistry.Patch) (*models.Model, error) {
	var out *models.Model
	errMutate := s.mutate(ctx, actorID, func(tx *gorm.DB) error {
		updated, errUpdate := s.catalog.Update(tx, actorID, id, patch)
		out = updated
		return errUpdate
	})
	if errMutate != nil {
		return nil, errMutate
	}
	return out, nil
}

// RemoveModel deletes a model, cascading its tool mappings first.
func (s *Service) RemoveModel(ctx context.Context, actorID, id string) error {
	return s.mutate(ctx, actorID, func(tx *gorm.DB) error {
		return s.catalog.Remove(tx, actorID, id)
	})
}

// Model returns one model.
func (s *Service) Model(ctx context.Context, id string) (*models.Model, error) {
	return s.catalog.Get(ctx, id)
}

// Models returns all models, optionally narrowed to one provider.
func (s *Service) Models(ctx context.Context, providerID string) ([]models.Model, error) {
	return s.catalog.List(ctx, providerID)
}

// AssignTool maps a model to a tool. Re-assigning an existing
// (tool, model) pair refreshes priority and status in place.
func (s *Service) AssignTool(ctx context.Context, actorID string, params toolmap.AssignParams) (*models.ToolMapping, error) {
	var out *models.ToolMapping
	errMutate := s.mutate(ctx, actorID, func(tx *gorm.DB) error {
		assigned, errAssign := s.mappings.Assign(tx, actorID, params)
		out = assigned
		return errAssign
	})
	if errMutate != nil {
		return nil, errMutate
	}
	return out, nil
}

// UnassignTool removes a mapping. Unknown IDs are a silent no-op.
func (s *Service) UnassignTool(ctx context.Context, actorID, mappingID string) error {
	return s.mutate(ctx, actorID, func(tx *gorm.DB) error {
		return s.mappings.Unassign(tx, actorID, mappingID)
	})
}

// MappingsByModel lists the tool mappings referencing a model.
func (s *Service) MappingsByModel(ctx context.Context, modelID string) ([]models.ToolMapping, error) {
	return s.mappings.ListByModel(ctx, modelID)
}

// MappingsByTool lists the candidate mappings for a tool, preferred
// first.
func (s *Service) MappingsByTool(ctx context.Context, toolID string) ([]models.ToolMapping, error) {
	return s.mappings.ListByTool(ctx, toolID)
}

// RecordUsage appends a metered usage event. Usage events are not
// administrative mutations: no audit entry is written and the mutation
// lock is not taken.
func (s *Service) RecordUsage(ctx context.Context, draft usage.Draft) (*models.UsageEvent, error) {
	return s.ledger.Record(ctx, draft)
}

// UsageByProvider returns the provider's usage events inside the period
// window.
func (s *Service) UsageByProvider(ctx context.Context, providerID string, period usage.Period) ([]models.UsageEvent, error) {
	return s.ledger.QueryByProvider(ctx, providerID, period)
}

// UsageByModel returns the model's usage events inside the period window.
func (s *Service) UsageByModel(ctx context.Context, modelID string, period usage.Period) ([]models.UsageEvent, error) {
	return s.ledger.QueryByModel(ctx, modelID, period)
}

// AddBudget registers a budget alert.
func (s *Service) AddBudget(ctx context.Context, actorID string, draft budget.Draft) (*models.BudgetAlert, error) {
	var out *models.BudgetAlert
	errMutate := s.mutate(ctx, actorID, func(tx *gorm.DB) error {
		created, errCreate := s.budgets.Create(tx, actorID, draft)
		out = created
		return errCreate
	})
	if errMutate != nil {
		return nil, errMutate
	}
	return out, nil
}

// UpdateBudget merges the supplied fields into a budget alert.
func (s *Service) UpdateBudget(ctx context.Context, actorID, id string, patch budget.Patch) (*models.BudgetAlert, error) {
	var out *models.BudgetAlert
	errMutate := s.mutate(ctx, actorID, func(tx *gorm.DB) error {
		updated, errUpdate := s.budgets.Update(tx, actorID, id, patch)
		out = updated
		return errUpdate
	})
	if errMutate != nil {
		return nil, errMutate
	}
	return out, nil
}

// RemoveBudget deletes a budget alert.
func (s *Service) RemoveBudget(ctx context.Context, actorID, id string) error {
	return s.mutate(ctx, actorID, func(tx *gorm.DB) error {
		return s.budgets.Remove(tx, actorID, id)
	})
}

// Budget returns one budget alert.
func (s *Service) Budget(ctx context.Context, id string) (*models.BudgetAlert, error) {
	return s.budgets.Get(ctx, id)
}

// Budgets returns all budget alerts, optionally narrowed to one provider.
func (s *Service) Budgets(ctx context.Context, providerID string) ([]models.BudgetAlert, error) {
	return s.budgets.List(ctx, providerID)
}

// EvaluateBudget derives the breach state of one alert from the usage
// ledger. Pure read; safe to poll.
func (s *Service) EvaluateBudget(ctx context.Context, id string) (budget.Evaluation, error) {
	alert, errGet := s.budgets.Get(ctx, id)
	if errGet != nil {
		return budget.Evaluation{}, errGet
	}
	return s.budgets.Evaluate(ctx, alert)
}

// AuditTrail lists audit entries newest-first, honoring the filter.
func (s *Service) AuditTrail(ctx context.Context, filter audit.Filter) ([]models.AuditEntry, error) {
	return s.auditor.List(ctx, filter)
}
