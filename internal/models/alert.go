package models

import (
	"time"

	"github.com/google/uuid"
)

// AlertType classifies how close an item is to its expiry date.
type AlertType string

const (
	AlertTypeExpired    AlertType = "expired"
	AlertTypeCritical   AlertType = "critical"
	AlertTypeNearExpiry AlertType = "near_expiry"
)

// Priority ranks alert severity for dispatch ordering and UI emphasis.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// priorityRank orders priorities for sorting, highest first.
var priorityRank = map[Priority]int{
	PriorityCritical: 4,
	PriorityHigh:     3,
	PriorityMedium:   2,
	PriorityLow:      1,
}

// Rank returns a numeric weight for sorting; unknown priorities sort last.
func (p Priority) Rank() int {
	return priorityRank[p]
}

// AlertStatus is the lifecycle state of an alert.
// pending -> sent -> read, with dismissed reachable from any of them.
// dismissed is terminal.
type AlertStatus string

const (
	StatusPending   AlertStatus = "pending"
	StatusSent      AlertStatus = "sent"
	StatusRead      AlertStatus = "read"
	StatusDismissed AlertStatus = "dismissed"
)

// ExpiryAlert flags an inventory item nearing or past its expiry date.
type ExpiryAlert struct {
	ID                 uuid.UUID   `json:"id"`
	ItemTable          string      `json:"item_table"`
	ItemID             string      `json:"item_id"`
	ItemName           string      `json:"item_name"`
	ItemCategory       string      `json:"item_category"`
	BatchNumber        string      `json:"batch_number"`
	ExpiryDate         time.Time   `json:"expiry_date"`
	AlertType          AlertType   `json:"alert_type"`
	DaysUntilExpiry    int         `json:"days_until_expiry"`
	Quantity           int         `json:"quantity"`
	EstimatedValue     float64     `json:"estimated_value"`
	NotificationMethod string      `json:"notification_method"`
	RecipientUserID    int64       `json:"recipient_user_id"`
	Status             AlertStatus `json:"status"`
	Priority           Priority    `json:"priority"`
	Location           string      `json:"location"`
	AlertSentAt        *time.Time  `json:"alert_sent_at,omitempty"`
	ReadAt             *time.Time  `json:"read_at,omitempty"`
	DismissedAt        *time.Time  `json:"dismissed_at,omitempty"`
	DismissedBy        *int64      `json:"dismissed_by,omitempty"`
	DismissalReason    string      `json:"dismissal_reason,omitempty"`
	ActionTaken        string      `json:"action_taken,omitempty"`
	CreatedAt          time.Time   `json:"created_at"`
	UpdatedAt          time.Time   `json:"updated_at"`
}

// Active reports whether the alert still counts toward dashboards and dedup.
func (a *ExpiryAlert) Active() bool {
	return a.Status != StatusDismissed
}

// AlertFilter narrows List queries. Zero values mean "no constraint".
type AlertFilter struct {
	Statuses   []AlertStatus `json:"statuses,omitempty"`
	Priorities []Priority    `json:"priorities,omitempty"`
	ExpiryFrom *time.Time    `json:"expiry_from,omitempty"`
	ExpiryTo   *time.Time    `json:"expiry_to,omitempty"`
	Location   string        `json:"location,omitempty"`
	Recipient  int64         `json:"recipient,omitempty"`
}

// MaxPageSize caps List page sizes.
const MaxPageSize = 100

// Page is a bounded pagination request.
type Page struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// Clamp normalizes the page to sane bounds.
func (p Page) Clamp() Page {
	if p.Limit <= 0 || p.Limit > MaxPageSize {
		p.Limit = MaxPageSize
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// GenerationResult aggregates one generator run. Counts cover newly created
// alerts only; refreshed duplicates are not counted.
type GenerationResult struct {
	AlertsGenerated int `json:"alerts_generated"`
	CriticalCount   int `json:"critical_count"`
	ExpiredCount    int `json:"expired_count"`
}

// AlertStats is the read-only dashboard projection over active alerts.
type AlertStats struct {
	TotalActiveAlerts    int     `json:"total_active_alerts"`
	CriticalAlerts       int     `json:"critical_alerts"`
	HighAlerts           int     `json:"high_alerts"`
	ExpiredItems         int     `json:"expired_items"`
	TotalValueAtRisk     float64 `json:"total_value_at_risk"`
	CriticalValueAtRisk  float64 `json:"critical_value_at_risk"`
	PendingNotifications int     `json:"pending_notifications"`
	AlertsToday          int     `json:"alerts_today"`
}
