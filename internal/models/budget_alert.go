package models

import (
	"time"

	"gorm.io/datatypes"
)

// Budget alert status values.
const (
	AlertStatusActive   = "active"
	AlertStatusInactive = "inactive"
)

// Budget alert periods.
const (
	AlertPeriodDaily   = "daily"
	AlertPeriodWeekly  = "weekly"
	AlertPeriodMonthly = "monthly"
	AlertPeriodYearly  = "yearly"
)

// BudgetAlert is a spend threshold evaluated against summed usage events
// over a rolling period.
type BudgetAlert struct {
	ID string `gorm:"type:varchar(48);primaryKey"` // Opaque alert ID.

	ProviderID string  `gorm:"type:varchar(48);not null;index"` // Scoped provider.
	ModelID    *string `gorm:"type:varchar(48);index"`          // Optional model scope.
	ToolID     *string `gorm:"type:varchar(128);index"`         // Optional tool scope.

	Threshold float64 `gorm:"not null"` // Spend threshold; breach when spent reaches it.
	Period    string  `gorm:"type:varchar(16);not null"` // daily, weekly, monthly or yearly.
	Status    string  `gorm:"type:varchar(16);not null;default:active"` // active or inactive.

	Notify datatypes.JSON `gorm:"type:jsonb;not null"` // Notification destinations (JSON string array).

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// NotifyDestinations decodes the notification destination list.
func (a *BudgetAlert) NotifyDestinations() []string {
	return decodeStringList(a.Notify)
}

// ValidAlertPeriod reports whether p is a known alert period.
func ValidAlertPeriod(p string) bool {
	switch p {
	case AlertPeriodDaily, AlertPeriodWeekly, AlertPeriodMonthly, AlertPeriodYearly:
		return true
	}
	return false
}
