package models

import "time"

// Mapping status values.
const (
	MappingStatusActive   = "active"
	MappingStatusInactive = "inactive"
)

// DefaultMappingPriority is assigned when a mapping is created without an
// explicit priority. Lower values are preferred.
const DefaultMappingPriority = 100

// ToolMapping assigns a model to a consuming tool with a priority.
type ToolMapping struct {
	ID string `gorm:"type:varchar(48);primaryKey"` // Opaque mapping ID.

	ToolID   string `gorm:"type:varchar(128);not null;uniqueIndex:idx_tool_model;index"` // Consuming tool ID.
	ToolName string `gorm:"type:text;not null"` // Consuming tool display name.

	ModelID string `gorm:"type:varchar(48);not null;uniqueIndex:idx_tool_model;index"` // Referenced model ID.

	Priority int    `gorm:"not null;default:100"` // Selection priority (lower wins).
	Status   string `gorm:"type:varchar(16);not null;default:active"` // active or inactive.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
