// Package usage is the append-only ledger of metered usage events and its
// windowed query support. Usage events are not administrative mutations:
// appends take no audit entry and bypass the governance mutation lock.
package usage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/modelfleet/governd/internal/ident"
	"github.com/modelfleet/governd/internal/models"
	"gorm.io/gorm"
)

// Ledger records and queries usage events.
type Ledger struct {
	db       *gorm.DB
	onAppend func(providerID string) // Invalidation hook for quota projections.
}

// NewLedger constructs a Ledger. onAppend may be nil; when set it runs
// after each successful append with the event's provider ID.
func NewLedger(db *gorm.DB, onAppend func(providerID string)) *Ledger {
	return &Ledger{db: db, onAppend: onAppend}
}

// Draft is the caller-supplied part of a usage event.
type Draft struct {
	ProviderID string    // Provider the call went through.
	ModelID    *string   // Model used, when known.
	Tokens     int64     // Total token count.
	Cost       float64   // Metered cost.
	Timestamp  time.Time // Completion time; zero means now.
}

// Record appends one usage event. Rows are immutable after creation.
func (l *Ledger) Record(ctx context.Context, draft Draft) (*models.UsageEvent, error) {
	providerID := strings.TrimSpace(draft.ProviderID)
	if providerID == "" {
		return nil, fmt.Errorf("usage: provider id is required: %w", models.ErrInvalidArgument)
	}
	if draft.Tokens < 0 {
		return nil, fmt.Errorf("usage: negative token count: %w", models.ErrInvalidArgument)
	}
	if draft.Cost < 0 {
		return nil, fmt.Errorf("usage: negative cost: %w", models.ErrInvalidArgument)
	}

	ts := draft.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	var modelID *string
	if draft.ModelID != nil {
		trimmed := strings.TrimSpace(*draft.ModelID)
		if trimmed != "" {
			modelID = &trimmed
		}
	}

	event := models.UsageEvent{
		ID:         ident.New(ident.KindUsage),
		ProviderID: providerID,
		ModelID:    modelID,
		Tokens:     draft.Tokens,
		Cost:       draft.Cost,
		Timestamp:  ts.UTC(),
	}
	if errCreate := l.db.WithContext(ctx).Create(&event).Error; errCreate != nil {
		return nil, fmt.Errorf("usage: append event: %w", errCreate)
	}
	if l.onAppend != nil {
		l.onAppend(providerID)
	}
	return &event, nil
}

// QueryByProvider returns every event for the provider whose timestamp
// falls inside [now - period, now]. Ordering is not part of the contract.
func (l *Ledger) QueryByProvider(ctx context.Context, providerID string, period Period) ([]models.UsageEvent, error) {
	return l.query(ctx, "provider_id = ?", providerID, period)
}

// QueryByModel is QueryByProvider keyed by model ID.
func (l *Ledger) QueryByModel(ctx context.Context, modelID string, period Period) ([]models.UsageEvent, error) {
	return l.query(ctx, "model_id = ?", modelID, period)
}

func (l *Ledger) query(ctx context.Context, keyExpr, keyValue string, period Period) ([]models.UsageEvent, error) {
	start := period.Start(time.Now().UTC())
	var events []models.UsageEvent
	if errFind := l.db.WithContext(ctx).
		Where(keyExpr, keyValue).
		Where("timestamp >= ?", start).
		Find(&events).Error; errFind != nil {
		return nil, fmt.Errorf("usage: query: %w", errFind)
	}
	return events, nil
}

// SumCost totals event cost for a provider since the given instant,
// optionally narrowed to a model set. An empty modelIDs slice means no
// model filter; a non-nil empty slice would match nothing, so callers
// pass nil to skip the filter.
func (l *Ledger) SumCost(ctx context.Context, providerID string, modelIDs []string, since time.Time) (float64, error) {
	query := l.db.WithContext(ctx).
		Model(&models.UsageEvent{}).
		Where("provider_id = ?", providerID).
		Where("timestamp >= ?", since)
	if modelIDs != nil {
		query = query.Where("model_id IN ?", modelIDs)
	}

	var total float64
	if errScan := query.
		Select("COALESCE(SUM(cost), 0)").
		Scan(&total).Error; errScan != nil {
		return 0, fmt.Errorf("usage: sum cost: %w", errScan)
	}
	return total, nil
}

// SumCostByModel totals event cost for one model since the given instant.
func (l *Ledger) SumCostByModel(ctx context.Context, modelID string, since time.Time) (float64, error) {
	var total float64
	if errScan := l.db.WithContext(ctx).
		Model(&models.UsageEvent{}).
		Where("model_id = ?", modelID).
		Where("timestamp >= ?", since).
		Select("COALESCE(SUM(cost), 0)").
		Scan(&total).Error; errScan != nil {
		return 0, fmt.Errorf("usage: sum cost by model: %w", errScan)
	}
	return total, nil
}
