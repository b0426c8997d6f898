package alerts

import (
	"context"
	"time"

	"github.com/google/uuid"

	"expiry-alert-service/internal/models"
)

// AlertStore is the persistence surface the engine needs. *db.DB implements
// it; tests inject an in-memory fake.
type AlertStore interface {
	UpsertAlert(ctx context.Context, a models.ExpiryAlert) (inserted bool, err error)
	ListAlerts(ctx context.Context, f models.AlertFilter, page models.Page) ([]models.ExpiryAlert, int, error)
	GetAlertByID(ctx context.Context, id uuid.UUID) (models.ExpiryAlert, error)
	MarkAlertRead(ctx context.Context, id uuid.UUID, actor int64) error
	DismissAlert(ctx context.Context, id uuid.UUID, actor int64, reason, actionTaken string) error
	PendingAlerts(ctx context.Context) ([]models.ExpiryAlert, error)
	MarkAlertsSent(ctx context.Context, recipient int64, method string, sentAt time.Time) (int64, error)
	CleanupAlerts(ctx context.Context, retentionDays int) (int64, error)
	AlertStats(ctx context.Context) (models.AlertStats, error)
}

// ConfigStore is the configuration persistence surface.
type ConfigStore interface {
	GetOrCreateConfiguration(ctx context.Context, userID int64) (models.AlertConfiguration, error)
	SaveConfiguration(ctx context.Context, cfg models.AlertConfiguration) (models.AlertConfiguration, error)
	ActiveConfigurations(ctx context.Context) ([]models.AlertConfiguration, error)
}

// RecipientResolver decides which user receives the alert for an item. The
// resolution policy belongs to the identity layer; the engine only consumes
// its answer.
type RecipientResolver interface {
	Resolve(item models.InventoryItemSnapshot, active []models.AlertConfiguration) int64
}

// ScopeResolver picks the first active configuration whose scope filters
// match the item, falling back to the organization's default recipient.
type ScopeResolver struct {
	DefaultRecipient int64
}

func (r ScopeResolver) Resolve(item models.InventoryItemSnapshot, active []models.AlertConfiguration) int64 {
	for _, cfg := range active {
		if cfg.MatchesScope(item.Location, item.Category, item.EstimatedValue()) {
			return cfg.UserID
		}
	}
	return r.DefaultRecipient
}
