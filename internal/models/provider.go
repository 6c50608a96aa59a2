package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// Provider status values.
const (
	ProviderStatusActive   = "active"
	ProviderStatusInactive = "inactive"
	ProviderStatusError    = "error"
)

// Provider is a configured external AI service account.
type Provider struct {
	ID string `gorm:"type:varchar(48);primaryKey"` // Opaque provider ID.

	Name        string `gorm:"type:text;not null"` // Display name.
	Description string `gorm:"type:text"`          // Free-form description.
	Status      string `gorm:"type:varchar(16);not null;default:inactive;index"` // active, inactive or error.

	Credential string `gorm:"type:text"` // Sealed credential material (base64 ciphertext).
	BaseURL    string `gorm:"type:text"` // Optional endpoint override.

	Settings datatypes.JSON `gorm:"type:jsonb"` // Default invocation settings payload.

	MonthlyQuota float64 `gorm:"not null;default:0"` // Monthly spend limit; 0 means unlimited.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// ProviderSettings holds the default invocation settings stored on a provider.
type ProviderSettings struct {
	Temperature      float64 `json:"temperature"`       // Sampling temperature.
	MaxTokens        int     `json:"max_tokens"`        // Completion token cap.
	FrequencyPenalty float64 `json:"frequency_penalty"` // Frequency penalty.
	PresencePenalty  float64 `json:"presence_penalty"`  // Presence penalty.
}

// InvocationSettings decodes the stored settings payload. A missing or
// malformed payload yields zero settings.
func (p *Provider) InvocationSettings() ProviderSettings {
	var out ProviderSettings
	if len(p.Settings) == 0 {
		return out
	}
	_ = json.Unmarshal(p.Settings, &out)
	return out
}

// ValidProviderStatus reports whether s is a known provider status.
func ValidProviderStatus(s string) bool {
	switch s {
	case ProviderStatusActive, ProviderStatusInactive, ProviderStatusError:
		return true
	}
	return false
}
