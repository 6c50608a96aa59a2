package models

import (
	"time"

	"gorm.io/datatypes"
)

// Audit actions.
const (
	AuditActionCreate = "create"
	AuditActionUpdate = "update"
	AuditActionDelete = "delete"
)

// Audited entity types.
const (
	EntityTypeProvider = "provider"
	EntityTypeModel    = "model"
	EntityTypeMapping  = "mapping"
	EntityTypeBudget   = "budget"
)

// AuditEntry records one administrative mutation. Rows are append-only:
// nothing in the system updates or deletes them.
type AuditEntry struct {
	ID string `gorm:"type:varchar(48);primaryKey"` // Opaque entry ID.

	Action     string `gorm:"type:varchar(16);not null;index"` // create, update or delete.
	EntityType string `gorm:"type:varchar(16);not null;index"` // provider, model, mapping or budget.
	EntityID   string `gorm:"type:varchar(48);not null;index"` // Mutated entity ID.

	Changes datatypes.JSON `gorm:"type:jsonb"`         // Delta for updates, full state otherwise.
	Detail  string         `gorm:"type:text;not null"` // Human-readable summary, used by free-text search.

	ActorID string `gorm:"type:varchar(128);not null;index"` // Administrative actor attribution.

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index"` // Entry timestamp.
}
