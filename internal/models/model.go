package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// Model status values.
const (
	ModelStatusActive   = "active"
	ModelStatusInactive = "inactive"
)

// Model is a single AI model exposed by a provider.
type Model struct {
	ID string `gorm:"type:varchar(48);primaryKey"` // Opaque model ID.

	ProviderID string `gorm:"type:varchar(48);not null;index"` // Owning provider ID.

	Name           string         `gorm:"type:text;not null"`                               // Model name.
	Capabilities   datatypes.JSON `gorm:"type:jsonb"`                                       // Capability tags (JSON string array).
	ContextWindow  int            `gorm:"not null;default:0"`                               // Max context size in tokens.
	CostPerToken   float64        `gorm:"not null;default:0"`                               // Cost per output token.
	Status         string         `gorm:"type:varchar(16);not null;default:inactive;index"` // active or inactive.
	RecommendedFor datatypes.JSON `gorm:"type:jsonb"`                                       // Recommended-use tags (JSON string array).

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// CapabilityTags decodes the capability tag list.
func (m *Model) CapabilityTags() []string {
	return decodeStringList(m.Capabilities)
}

// RecommendedTags decodes the recommended-use tag list.
func (m *Model) RecommendedTags() []string {
	return decodeStringList(m.RecommendedFor)
}

// ValidModelStatus reports whether s is a known model status.
func ValidModelStatus(s string) bool {
	return s == ModelStatusActive || s == ModelStatusInactive
}

// decodeStringList decodes a JSON string array column, tolerating empty
// and malformed payloads.
func decodeStringList(raw datatypes.JSON) []string {
	if len(raw) == 0 {
		return nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

// EncodeStringList encodes tags as a JSON column value. Nil input encodes
// as an empty array so the column round-trips as a list.
func EncodeStringList(tags []string) datatypes.JSON {
	if tags == nil {
		tags = []string{}
	}
	raw, err := json.Marshal(tags)
	if err != nil {
		return datatypes.JSON("[]")
	}
	return datatypes.JSON(raw)
}
