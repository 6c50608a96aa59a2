// Package audit appends and queries the immutable audit trail. Every
// administrative mutation in the ledger writes exactly one entry through
// Record, inside the mutation's own transaction.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	dbutil "github.com/modelfleet/governd/internal/db"
	"github.com/modelfleet/governd/internal/ident"
	"github.com/modelfleet/governd/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DefaultListLimit caps audit listings when the caller does not set one.
const DefaultListLimit = 100

// Recorder writes and reads audit entries.
type Recorder struct {
	db *gorm.DB // Base connection used by the read path.
}

// NewRecorder constructs a Recorder over the given connection.
func NewRecorder(db *gorm.DB) *Recorder {
	return &Recorder{db: db}
}

// Record appends one audit entry inside the caller's transaction. A
// failure here must abort that transaction so no mutation commits without
// its audit record; the returned error wraps models.ErrAuditWrite.
func (r *Recorder) Record(tx *gorm.DB, action, entityType, entityID string, changes any, detail, actorID string) (*models.AuditEntry, error) {
	if tx == nil {
		return nil, fmt.Errorf("audit: nil transaction: %w", models.ErrAuditWrite)
	}

	payload, errMarshal := json.Marshal(changes)
	if errMarshal != nil {
		return nil, fmt.Errorf("audit: marshal changes: %v: %w", errMarshal, models.ErrAuditWrite)
	}

	entry := models.AuditEntry{
		ID:         ident.New(ident.KindAudit),
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Changes:    datatypes.JSON(payload),
		Detail:     detail,
		ActorID:    actorID,
		CreatedAt:  time.Now().UTC(),
	}
	if errCreate := tx.Create(&entry).Error; errCreate != nil {
		return nil, fmt.Errorf("audit: append entry: %v: %w", errCreate, models.ErrAuditWrite)
	}
	return &entry, nil
}

// Filter narrows an audit listing.
type Filter struct {
	Action     string // Exact action match when non-empty.
	EntityType string // Exact entity type match when non-empty.
	EntityID   string // Exact entity ID match when non-empty.
	Search     string // Free-text match over action, entity type and detail.
	Limit      int    // Max rows; DefaultListLimit when <= 0.
	Offset     int    // Rows to skip.
}

// List returns audit entries newest-first, honoring the filter.
func (r *Recorder) List(ctx context.Context, f Filter) ([]models.AuditEntry, error) {
	query := r.db.WithContext(ctx).Model(&models.AuditEntry{})

	if action := strings.TrimSpace(f.Action); action != "" {
		query = query.Where("action = ?", action)
	}
	if entityType := strings.TrimSpace(f.EntityType); entityType != "" {
		query = query.Where("entity_type = ?", entityType)
	}
	if entityID := strings.TrimSpace(f.EntityID); entityID != "" {
		query = query.Where("entity_id = ?", entityID)
	}
	if search := strings.TrimSpace(f.Search); search != "" {
		pattern := dbutil.NormalizeLikePattern(r.db, "%"+search+"%")
		expr := fmt.Sprintf("%s OR %s OR %s",
			dbutil.CaseInsensitiveLikeExpr(r.db, "action"),
			dbutil.CaseInsensitiveLikeExpr(r.db, "entity_type"),
			dbutil.CaseInsensitiveLikeExpr(r.db, "detail"),
		)
		query = query.Where(expr, pattern, pattern, pattern)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}

	var entries []models.AuditEntry
	if errFind := query.
		Order("created_at DESC, id DESC").
		Limit(limit).
		Offset(f.Offset).
		Find(&entries).Error; errFind != nil {
		return nil, fmt.Errorf("audit: list: %w", errFind)
	}
	return entries, nil
}
