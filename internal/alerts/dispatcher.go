package alerts

import (
	"context"
	"strings"

	"expiry-alert-service/internal/events"
	"expiry-alert-service/internal/models"
)

// DispatchPending flushes everything currently pending: alerts are grouped
// by recipient and each active recipient's group is flipped to sent in one
// batched write. Recipients with alerting switched off are skipped and their
// alerts stay pending. A failure for one recipient does not block the rest.
func (s *Service) DispatchPending(ctx context.Context) error {
	pending, err := s.store.PendingAlerts(ctx)
	if err != nil {
		return &models.TransientError{Err: err}
	}
	if len(pending) == 0 {
		return nil
	}

	for _, group := range groupByRecipient(pending) {
		s.dispatchGroup(ctx, group)
	}
	return nil
}

func (s *Service) dispatchGroup(ctx context.Context, group []models.ExpiryAlert) {
	recipient := group[0].RecipientUserID

	cfg, err := s.configs.GetOrCreateConfiguration(ctx, recipient)
	if err != nil {
		s.logger.Errorf("Dispatch: configuration for user %d failed: %v", recipient, err)
		return
	}
	if !cfg.IsActive {
		s.logger.Debugf("Dispatch: user %d inactive, %d alerts stay pending", recipient, len(group))
		return
	}

	sentAt := s.now()
	method := notificationMethod(cfg)
	count, err := s.store.MarkAlertsSent(ctx, recipient, method, sentAt)
	if err != nil {
		s.logger.Errorf("Dispatch: batch update for user %d failed: %v", recipient, err)
		return
	}
	s.logger.Infof("Dispatched %d alerts to user %d via %s", count, recipient, method)

	for _, a := range group {
		a.Status = models.StatusSent
		a.AlertSentAt = &sentAt
		a.NotificationMethod = method
		s.publish(events.Event{Kind: events.KindSent, Alert: a})
	}

	// Non-in_app channels are recorded intents handed to the notifier;
	// delivery failures never touch alert status.
	if s.notifier != nil && wantsExternalDelivery(cfg) {
		if err := s.notifier.Notify(ctx, cfg, group); err != nil {
			s.logger.Warnf("Dispatch: external notify for user %d failed: %v", recipient, err)
		}
	}
}

// groupByRecipient preserves the store's ordering within each group.
func groupByRecipient(alerts []models.ExpiryAlert) [][]models.ExpiryAlert {
	var groups [][]models.ExpiryAlert
	byUser := map[int64]int{}
	for _, a := range alerts {
		idx, ok := byUser[a.RecipientUserID]
		if !ok {
			idx = len(groups)
			byUser[a.RecipientUserID] = idx
			groups = append(groups, nil)
		}
		groups[idx] = append(groups[idx], a)
	}
	return groups
}

func notificationMethod(cfg models.AlertConfiguration) string {
	parts := make([]string, len(cfg.NotificationChannels))
	for i, ch := range cfg.NotificationChannels {
		parts[i] = string(ch)
	}
	return strings.Join(parts, ",")
}

func wantsExternalDelivery(cfg models.AlertConfiguration) bool {
	for _, ch := range cfg.NotificationChannels {
		if ch != models.ChannelInApp {
			return true
		}
	}
	return false
}
