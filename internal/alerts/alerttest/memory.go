// Package alerttest provides in-memory implementations of the alert engine's
// store interfaces for tests. MemStore mirrors the database's dedup and
// state-machine behavior so engine tests run without Postgres.
package alerttest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"expiry-alert-service/internal/models"
)

// MemStore is an in-memory AlertStore and ConfigStore.
type MemStore struct {
	mu      sync.Mutex
	alerts  map[uuid.UUID]*models.ExpiryAlert
	configs map[int64]models.AlertConfiguration

	// Now is the store's clock, settable by tests.
	Now func() time.Time
}

func NewMemStore() *MemStore {
	return &MemStore{
		alerts:  make(map[uuid.UUID]*models.ExpiryAlert),
		configs: make(map[int64]models.AlertConfiguration),
		Now:     time.Now,
	}
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func (m *MemStore) UpsertAlert(_ context.Context, a models.ExpiryAlert) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, have := range m.alerts {
		if have.Status != models.StatusDismissed &&
			have.ItemTable == a.ItemTable && have.ItemID == a.ItemID &&
			sameDay(have.ExpiryDate, a.ExpiryDate) {
			have.DaysUntilExpiry = a.DaysUntilExpiry
			have.AlertType = a.AlertType
			have.Priority = a.Priority
			have.Quantity = a.Quantity
			have.EstimatedValue = a.EstimatedValue
			have.UpdatedAt = m.Now()
			return false, nil
		}
	}

	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.Status = models.StatusPending
	a.CreatedAt = m.Now()
	a.UpdatedAt = m.Now()
	m.alerts[a.ID] = &a
	return true, nil
}

func matches(a *models.ExpiryAlert, f models.AlertFilter) bool {
	if len(f.Statuses) > 0 && !containsStatus(f.Statuses, a.Status) {
		return false
	}
	if len(f.Priorities) > 0 && !containsPriority(f.Priorities, a.Priority) {
		return false
	}
	if f.ExpiryFrom != nil && a.ExpiryDate.Before(*f.ExpiryFrom) {
		return false
	}
	if f.ExpiryTo != nil && a.ExpiryDate.After(*f.ExpiryTo) {
		return false
	}
	if f.Location != "" && a.Location != f.Location {
		return false
	}
	if f.Recipient != 0 && a.RecipientUserID != f.Recipient {
		return false
	}
	return true
}

func (m *MemStore) ListAlerts(_ context.Context, f models.AlertFilter, page models.Page) ([]models.ExpiryAlert, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	page = page.Clamp()

	var all []models.ExpiryAlert
	for _, a := range m.alerts {
		if matches(a, f) {
			all = append(all, *a)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Priority.Rank() != all[j].Priority.Rank() {
			return all[i].Priority.Rank() > all[j].Priority.Rank()
		}
		return all[i].ExpiryDate.Before(all[j].ExpiryDate)
	})

	total := len(all)
	if page.Offset >= total {
		return nil, total, nil
	}
	end := page.Offset + page.Limit
	if end > total {
		end = total
	}
	return all[page.Offset:end], total, nil
}

func (m *MemStore) GetAlertByID(_ context.Context, id uuid.UUID) (models.ExpiryAlert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.alerts[id]
	if !ok {
		return models.ExpiryAlert{}, models.ErrNotFound
	}
	return *a, nil
}

func (m *MemStore) MarkAlertRead(_ context.Context, id uuid.UUID, actor int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.alerts[id]
	if !ok {
		return models.ErrNotFound
	}
	if a.RecipientUserID != actor {
		return models.ErrNotRecipient
	}
	if a.Status == models.StatusPending || a.Status == models.StatusSent {
		now := m.Now()
		a.Status = models.StatusRead
		a.ReadAt = &now
		a.UpdatedAt = now
	}
	return nil
}

func (m *MemStore) DismissAlert(_ context.Context, id uuid.UUID, actor int64, reason, actionTaken string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.alerts[id]
	if !ok {
		return models.ErrNotFound
	}
	if a.RecipientUserID != actor {
		return models.ErrNotRecipient
	}
	if a.Status != models.StatusDismissed {
		now := m.Now()
		a.Status = models.StatusDismissed
		a.DismissedAt = &now
		a.DismissedBy = &actor
		a.DismissalReason = reason
		a.ActionTaken = actionTaken
		a.UpdatedAt = now
	}
	return nil
}

func (m *MemStore) PendingAlerts(_ context.Context) ([]models.ExpiryAlert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var pending []models.ExpiryAlert
	for _, a := range m.alerts {
		if a.Status == models.StatusPending {
			pending = append(pending, *a)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].RecipientUserID < pending[j].RecipientUserID
	})
	return pending, nil
}

func (m *MemStore) MarkAlertsSent(_ context.Context, recipient int64, method string, sentAt time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int64
	for _, a := range m.alerts {
		if a.RecipientUserID == recipient && a.Status == models.StatusPending {
			a.Status = models.StatusSent
			at := sentAt
			a.AlertSentAt = &at
			a.NotificationMethod = method
			a.UpdatedAt = sentAt
			count++
		}
	}
	return count, nil
}

func (m *MemStore) CleanupAlerts(_ context.Context, retentionDays int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := m.Now().AddDate(0, 0, -retentionDays)
	var deleted int64
	for id, a := range m.alerts {
		if a.Status == models.StatusDismissed && a.DismissedAt != nil && a.DismissedAt.Before(cutoff) {
			delete(m.alerts, id)
			deleted++
		}
	}
	return deleted, nil
}

func (m *MemStore) AlertStats(_ context.Context) (models.AlertStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var s models.AlertStats
	now := m.Now()
	for _, a := range m.alerts {
		if a.Status != models.StatusDismissed {
			s.TotalActiveAlerts++
			s.TotalValueAtRisk += a.EstimatedValue
			switch a.Priority {
			case models.PriorityCritical:
				s.CriticalAlerts++
				s.CriticalValueAtRisk += a.EstimatedValue
			case models.PriorityHigh:
				s.HighAlerts++
			}
			if a.AlertType == models.AlertTypeExpired {
				s.ExpiredItems++
			}
		}
		if a.Status == models.StatusPending {
			s.PendingNotifications++
		}
		if sameDay(a.CreatedAt, now) {
			s.AlertsToday++
		}
	}
	return s, nil
}

// GetOrCreateConfiguration implements ConfigStore.
func (m *MemStore) GetOrCreateConfiguration(_ context.Context, userID int64) (models.AlertConfiguration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cfg, ok := m.configs[userID]; ok {
		return cfg, nil
	}
	cfg := models.DefaultConfiguration(userID)
	cfg.CreatedAt = m.Now()
	cfg.UpdatedAt = m.Now()
	m.configs[userID] = cfg
	return cfg, nil
}

func (m *MemStore) SaveConfiguration(_ context.Context, cfg models.AlertConfiguration) (models.AlertConfiguration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.configs[cfg.UserID]; !ok {
		return models.AlertConfiguration{}, models.ErrNotFound
	}
	cfg.UpdatedAt = m.Now()
	m.configs[cfg.UserID] = cfg
	return cfg, nil
}

func (m *MemStore) ActiveConfigurations(_ context.Context) ([]models.AlertConfiguration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var active []models.AlertConfiguration
	for _, cfg := range m.configs {
		if cfg.IsActive {
			active = append(active, cfg)
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].UserID < active[j].UserID })
	return active, nil
}

// PutConfiguration seeds a configuration, bypassing validation.
func (m *MemStore) PutConfiguration(cfg models.AlertConfiguration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.configs[cfg.UserID] = cfg
}

// Alerts returns a snapshot of every stored alert.
func (m *MemStore) Alerts() []models.ExpiryAlert {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.ExpiryAlert, 0, len(m.alerts))
	for _, a := range m.alerts {
		out = append(out, *a)
	}
	return out
}

func containsStatus(set []models.AlertStatus, s models.AlertStatus) bool {
	for _, have := range set {
		if have == s {
			return true
		}
	}
	return false
}

func containsPriority(set []models.Priority, p models.Priority) bool {
	for _, have := range set {
		if have == p {
			return true
		}
	}
	return false
}
