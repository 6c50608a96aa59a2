package models

import "time"

// UsageEvent records metering data for one completed model invocation.
// Rows are append-only and never mutated or deleted.
type UsageEvent struct {
	ID string `gorm:"type:varchar(48);primaryKey"` // Opaque event ID.

	ProviderID string  `gorm:"type:varchar(48);not null;index:idx_usage_provider_ts"` // Provider the call went through.
	ModelID    *string `gorm:"type:varchar(48);index:idx_usage_model_ts"`             // Model used, when known.

	Tokens int64   `gorm:"not null;default:0"` // Total token count.
	Cost   float64 `gorm:"not null;default:0"` // Metered cost.

	Timestamp time.Time `gorm:"not null;index:idx_usage_provider_ts;index:idx_usage_model_ts"` // When the call completed.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Row creation timestamp.
}
