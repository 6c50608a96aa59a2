package usage

import (
	"fmt"
	"strings"
	"time"

	"github.com/modelfleet/governd/internal/models"
)

// Period is a rolling query window anchored at the query instant.
type Period string

// Supported query periods.
const (
	PeriodDay   Period = "day"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
	PeriodYear  Period = "year"
)

// ParsePeriod normalizes a period string. Budget alert period names
// (daily, weekly, monthly, yearly) are accepted as aliases.
func ParsePeriod(raw string) (Period, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "day", "daily":
		return PeriodDay, nil
	case "week", "weekly":
		return PeriodWeek, nil
	case "month", "monthly":
		return PeriodMonth, nil
	case "year", "yearly":
		return PeriodYear, nil
	default:
		return "", fmt.Errorf("usage: unknown period %q: %w", raw, models.ErrInvalidArgument)
	}
}

// Start returns the window start for a query issued at now. Month and
// year windows use calendar subtraction: the day-of-month is preserved
// where it exists in the target month.
func (p Period) Start(now time.Time) time.Time {
	switch p {
	case PeriodDay:
		return now.AddDate(0, 0, -1)
	case PeriodWeek:
		return now.AddDate(0, 0, -7)
	case PeriodMonth:
		return now.AddDate(0, -1, 0)
	case PeriodYear:
		return now.AddDate(-1, 0, 0)
	default:
		return now
	}
}
