package alerts

import (
	"context"

	"github.com/google/uuid"

	"expiry-alert-service/internal/events"
	"expiry-alert-service/internal/models"
)

// List returns alerts matching the filter plus the total match count.
func (s *Service) List(ctx context.Context, f models.AlertFilter, page models.Page) ([]models.ExpiryAlert, int, error) {
	return s.store.ListAlerts(ctx, f, page)
}

// Get fetches one alert by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (models.ExpiryAlert, error) {
	return s.store.GetAlertByID(ctx, id)
}

// MarkAsRead transitions a pending or sent alert to read on behalf of its
// recipient. Reading an already-read or dismissed alert is a no-op.
func (s *Service) MarkAsRead(ctx context.Context, id uuid.UUID, actor int64) error {
	if err := s.store.MarkAlertRead(ctx, id, actor); err != nil {
		return err
	}
	if a, err := s.store.GetAlertByID(ctx, id); err == nil && a.Status == models.StatusRead {
		s.publish(events.Event{Kind: events.KindRead, Alert: a})
	}
	return nil
}

// Dismiss terminally dismisses an alert on behalf of its recipient,
// recording why and what was done about the item. Idempotent: dismissing
// again changes nothing and keeps the original metadata.
func (s *Service) Dismiss(ctx context.Context, id uuid.UUID, actor int64, reason, actionTaken string) error {
	if err := s.store.DismissAlert(ctx, id, actor, reason, actionTaken); err != nil {
		return err
	}
	if a, err := s.store.GetAlertByID(ctx, id); err == nil {
		s.publish(events.Event{Kind: events.KindDismissed, Alert: a})
	}
	return nil
}

// Cleanup hard-deletes dismissed alerts older than the retention window and
// returns how many were removed.
func (s *Service) Cleanup(ctx context.Context, retentionDays int) (int64, error) {
	if retentionDays < 1 {
		return 0, &models.ValidationError{Fields: map[string]string{
			"retention_days": "must be at least 1",
		}}
	}
	deleted, err := s.store.CleanupAlerts(ctx, retentionDays)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		s.logger.Infof("Cleanup removed %d dismissed alerts older than %d days", deleted, retentionDays)
	}
	return deleted, nil
}

// Stats recomputes the dashboard projection on demand. Consumers tolerate
// staleness up to one generation cycle.
func (s *Service) Stats(ctx context.Context) (models.AlertStats, error) {
	return s.store.AlertStats(ctx)
}

// GetConfiguration returns the user's alerting preferences, creating the
// default row on first read.
func (s *Service) GetConfiguration(ctx context.Context, userID int64) (models.AlertConfiguration, error) {
	return s.configs.GetOrCreateConfiguration(ctx, userID)
}

// UpdateConfiguration validates and persists a partial update to the user's
// preferences, returning the merged record.
func (s *Service) UpdateConfiguration(ctx context.Context, userID int64, patch models.ConfigurationPatch) (models.AlertConfiguration, error) {
	current, err := s.configs.GetOrCreateConfiguration(ctx, userID)
	if err != nil {
		return models.AlertConfiguration{}, err
	}
	merged, err := patch.Apply(current)
	if err != nil {
		return models.AlertConfiguration{}, err
	}
	return s.configs.SaveConfiguration(ctx, merged)
}
