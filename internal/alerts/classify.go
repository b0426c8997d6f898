package alerts

import (
	"time"

	"expiry-alert-service/internal/models"
)

// daysUntil returns whole days from today until the expiry date. Negative
// means the item is already past due. Both dates are normalized to midnight
// UTC so the answer does not drift with the time of day the scan runs.
func daysUntil(expiry, now time.Time) int {
	e := time.Date(expiry.Year(), expiry.Month(), expiry.Day(), 0, 0, 0, 0, time.UTC)
	t := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return int(e.Sub(t).Hours() / 24)
}

// classify maps days-until-expiry onto an alert type and priority using the
// recipient's thresholds. ok is false when the item is too far from expiry
// to warrant an alert.
//
// Priority never comes out as low here; low is reserved for manual use.
func classify(days int, cfg models.AlertConfiguration) (models.AlertType, models.Priority, bool) {
	var alertType models.AlertType
	switch {
	case days < 0:
		alertType = models.AlertTypeExpired
	case days <= cfg.CriticalDays:
		alertType = models.AlertTypeCritical
	case days <= cfg.WarningDays:
		alertType = models.AlertTypeNearExpiry
	default:
		return "", "", false
	}

	var priority models.Priority
	midpoint := (cfg.CriticalDays + cfg.WarningDays) / 2
	switch {
	case days <= cfg.CriticalDays: // includes expired
		priority = models.PriorityCritical
	case days <= midpoint:
		priority = models.PriorityHigh
	default:
		priority = models.PriorityMedium
	}
	return alertType, priority, true
}
