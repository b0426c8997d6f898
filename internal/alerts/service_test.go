package alerts

import (
	"context"
	"errors"
	"testing"
	"time"

	"expiry-alert-service/internal/alerts/alerttest"
	"expiry-alert-service/internal/logging"
	"expiry-alert-service/internal/models"
)

var testNow = time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

func expiryIn(days int) *time.Time {
	t := testNow.AddDate(0, 0, days)
	return &t
}

// newTestService wires the engine against in-memory fakes with a pinned
// clock. User 1 has an active default configuration (warning 30, critical 7)
// and is also the fallback recipient.
func newTestService(t *testing.T, tables ...string) (*Service, *alerttest.MemStore, *alerttest.MemSource) {
	t.Helper()
	if len(tables) == 0 {
		tables = []string{"inventory_items"}
	}
	store := alerttest.NewMemStore()
	store.Now = func() time.Time { return testNow }

	cfg := models.DefaultConfiguration(1)
	store.PutConfiguration(cfg)

	source := alerttest.NewMemSource(tables...)
	svc := New(store, store, source, nil, nil, nil, logging.NewNop(), Options{
		DefaultRecipient: 1,
		Now:              func() time.Time { return testNow },
	})
	return svc, store, source
}

func TestGenerateExpiredItem(t *testing.T) {
	svc, store, source := newTestService(t)
	source.Add(models.InventoryItemSnapshot{
		Table: "inventory_items", ID: "42", Name: "Milk", Category: "dairy",
		BatchNumber: "B-17", Quantity: 5, ExpiryDate: expiryIn(-1), UnitValue: 2.5, Location: "MAIN",
	})

	res, err := svc.Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.AlertsGenerated != 1 || res.ExpiredCount != 1 || res.CriticalCount != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}

	all := store.Alerts()
	if len(all) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(all))
	}
	a := all[0]
	if a.AlertType != models.AlertTypeExpired {
		t.Errorf("alert_type = %s, want expired", a.AlertType)
	}
	if a.Priority != models.PriorityCritical {
		t.Errorf("priority = %s, want critical", a.Priority)
	}
	if a.DaysUntilExpiry != -1 {
		t.Errorf("days_until_expiry = %d, want -1", a.DaysUntilExpiry)
	}
	if a.EstimatedValue != 12.5 {
		t.Errorf("estimated_value = %v, want 12.5", a.EstimatedValue)
	}
	if a.RecipientUserID != 1 {
		t.Errorf("recipient = %d, want fallback user 1", a.RecipientUserID)
	}
}

func TestGenerateNearExpiryUsesMidpoint(t *testing.T) {
	svc, store, source := newTestService(t)
	// warning 30, critical 7, midpoint 18: 10 days out is near_expiry/high
	source.Add(models.InventoryItemSnapshot{
		Table: "inventory_items", ID: "7", Name: "Yogurt", Quantity: 3,
		ExpiryDate: expiryIn(10), UnitValue: 1.0,
	})

	if _, err := svc.Generate(context.Background()); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	a := store.Alerts()[0]
	if a.AlertType != models.AlertTypeNearExpiry {
		t.Errorf("alert_type = %s, want near_expiry", a.AlertType)
	}
	if a.Priority != models.PriorityHigh {
		t.Errorf("priority = %s, want high", a.Priority)
	}
}

func TestGenerateSkipsItemsWithoutRisk(t *testing.T) {
	svc, store, source := newTestService(t)
	source.Add(models.InventoryItemSnapshot{Table: "inventory_items", ID: "1", Quantity: 10, ExpiryDate: nil})
	source.Add(models.InventoryItemSnapshot{Table: "inventory_items", ID: "2", Quantity: 0, ExpiryDate: expiryIn(2)})
	source.Add(models.InventoryItemSnapshot{Table: "inventory_items", ID: "3", Quantity: 4, ExpiryDate: expiryIn(200)})

	res, err := svc.Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.AlertsGenerated != 0 {
		t.Errorf("alerts_generated = %d, want 0", res.AlertsGenerated)
	}
	if len(store.Alerts()) != 0 {
		t.Errorf("expected no alerts, got %d", len(store.Alerts()))
	}
}

func TestGenerateIsIdempotent(t *testing.T) {
	svc, store, source := newTestService(t)
	source.Add(models.InventoryItemSnapshot{
		Table: "inventory_items", ID: "42", Quantity: 5, ExpiryDate: expiryIn(3), UnitValue: 1,
	})

	first, err := svc.Generate(context.Background())
	if err != nil {
		t.Fatalf("first Generate: %v", err)
	}
	if first.AlertsGenerated != 1 {
		t.Fatalf("first run generated %d, want 1", first.AlertsGenerated)
	}

	second, err := svc.Generate(context.Background())
	if err != nil {
		t.Fatalf("second Generate: %v", err)
	}
	if second.AlertsGenerated != 0 {
		t.Errorf("second run generated %d, want 0", second.AlertsGenerated)
	}
	if len(store.Alerts()) != 1 {
		t.Errorf("expected 1 alert after rescan, got %d", len(store.Alerts()))
	}
}

func TestGenerateRefreshesActiveAlert(t *testing.T) {
	svc, store, source := newTestService(t)
	source.Add(models.InventoryItemSnapshot{
		Table: "inventory_items", ID: "42", Quantity: 5, ExpiryDate: expiryIn(8), UnitValue: 1,
	})

	if _, err := svc.Generate(context.Background()); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	before := store.Alerts()[0]
	if before.AlertType != models.AlertTypeNearExpiry || before.DaysUntilExpiry != 8 {
		t.Fatalf("setup: unexpected alert %+v", before)
	}

	// Two days pass; the item crosses into the critical window.
	later := testNow.AddDate(0, 0, 2)
	svc.now = func() time.Time { return later }
	res, err := svc.Generate(context.Background())
	if err != nil {
		t.Fatalf("rescan: %v", err)
	}
	if res.AlertsGenerated != 0 {
		t.Errorf("rescan generated %d, want refresh only", res.AlertsGenerated)
	}

	after := store.Alerts()[0]
	if after.ID != before.ID {
		t.Fatalf("rescan created a new alert instead of refreshing")
	}
	if after.DaysUntilExpiry != 6 {
		t.Errorf("days_until_expiry = %d, want 6", after.DaysUntilExpiry)
	}
	if after.AlertType != models.AlertTypeCritical {
		t.Errorf("alert_type = %s, want critical after refresh", after.AlertType)
	}
	if after.Priority != models.PriorityCritical {
		t.Errorf("priority = %s, want critical after refresh", after.Priority)
	}
}

func TestGenerateAfterDismissCreatesNewAlert(t *testing.T) {
	svc, store, source := newTestService(t)
	source.Add(models.InventoryItemSnapshot{
		Table: "inventory_items", ID: "42", Quantity: 5, ExpiryDate: expiryIn(3), UnitValue: 1,
	})

	if _, err := svc.Generate(context.Background()); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	first := store.Alerts()[0]
	if err := svc.Dismiss(context.Background(), first.ID, 1, "counted", ""); err != nil {
		t.Fatalf("Dismiss: %v", err)
	}

	res, err := svc.Generate(context.Background())
	if err != nil {
		t.Fatalf("rescan: %v", err)
	}
	if res.AlertsGenerated != 1 {
		t.Errorf("rescan generated %d, want 1 (dismissed alerts leave the dedup key free)", res.AlertsGenerated)
	}
}

func TestGeneratePartialFailure(t *testing.T) {
	svc, store, source := newTestService(t, "freezer_items", "shelf_items")
	source.Fail["freezer_items"] = errors.New("relation missing")
	source.Add(models.InventoryItemSnapshot{
		Table: "shelf_items", ID: "9", Quantity: 2, ExpiryDate: expiryIn(-3), UnitValue: 4,
	})

	res, err := svc.Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate should absorb single-table failures, got %v", err)
	}
	if res.AlertsGenerated != 1 || res.ExpiredCount != 1 {
		t.Errorf("unexpected result: %+v", res)
	}
	if len(store.Alerts()) != 1 {
		t.Errorf("expected only the shelf alert, got %d", len(store.Alerts()))
	}
}

func TestGenerateDispatchesNewAlerts(t *testing.T) {
	svc, store, source := newTestService(t)
	source.Add(models.InventoryItemSnapshot{
		Table: "inventory_items", ID: "1", Quantity: 1, ExpiryDate: expiryIn(2), UnitValue: 1,
	})

	if _, err := svc.Generate(context.Background()); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	a := store.Alerts()[0]
	if a.Status != models.StatusSent {
		t.Errorf("status = %s, want sent after post-generation dispatch", a.Status)
	}
	if a.AlertSentAt == nil || !a.AlertSentAt.Equal(testNow) {
		t.Errorf("alert_sent_at = %v, want %v", a.AlertSentAt, testNow)
	}
	if a.NotificationMethod != "in_app" {
		t.Errorf("notification_method = %q, want in_app", a.NotificationMethod)
	}
}

func TestDispatchSkipsInactiveRecipients(t *testing.T) {
	svc, store, source := newTestService(t)
	inactive := models.DefaultConfiguration(2)
	inactive.IsActive = false
	store.PutConfiguration(inactive)

	// Scope user 1 away from this location so the item falls back to the
	// resolver default; point the resolver at the inactive user instead.
	svc.resolver = ScopeResolver{DefaultRecipient: 2}
	source.Add(models.InventoryItemSnapshot{
		Table: "inventory_items", ID: "5", Quantity: 1, ExpiryDate: expiryIn(1), UnitValue: 1, Location: "COLD-2",
	})
	scoped := models.DefaultConfiguration(1)
	scoped.Locations = []string{"MAIN"}
	store.PutConfiguration(scoped)

	if _, err := svc.Generate(context.Background()); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	a := store.Alerts()[0]
	if a.RecipientUserID != 2 {
		t.Fatalf("recipient = %d, want 2", a.RecipientUserID)
	}
	if a.Status != models.StatusPending {
		t.Errorf("status = %s, want pending while recipient alerting is off", a.Status)
	}
}

func TestMarkAsReadTransitions(t *testing.T) {
	svc, store, source := newTestService(t)
	source.Add(models.InventoryItemSnapshot{
		Table: "inventory_items", ID: "1", Quantity: 1, ExpiryDate: expiryIn(1), UnitValue: 1,
	})
	if _, err := svc.Generate(context.Background()); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	id := store.Alerts()[0].ID

	if err := svc.MarkAsRead(context.Background(), id, 99); !errors.Is(err, models.ErrNotRecipient) {
		t.Errorf("wrong actor: got %v, want ErrNotRecipient", err)
	}

	if err := svc.MarkAsRead(context.Background(), id, 1); err != nil {
		t.Fatalf("MarkAsRead: %v", err)
	}
	a, _ := store.GetAlertByID(context.Background(), id)
	if a.Status != models.StatusRead || a.ReadAt == nil {
		t.Errorf("alert not read: %+v", a)
	}

	// Reading again is a no-op.
	if err := svc.MarkAsRead(context.Background(), id, 1); err != nil {
		t.Errorf("second MarkAsRead: %v", err)
	}
}

func TestDismissWinsOverRead(t *testing.T) {
	svc, store, source := newTestService(t)
	source.Add(models.InventoryItemSnapshot{
		Table: "inventory_items", ID: "1", Quantity: 1, ExpiryDate: expiryIn(1), UnitValue: 1,
	})
	if _, err := svc.Generate(context.Background()); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	id := store.Alerts()[0].ID

	if err := svc.Dismiss(context.Background(), id, 1, "sold", "transferred to outlet"); err != nil {
		t.Fatalf("Dismiss: %v", err)
	}
	if err := svc.MarkAsRead(context.Background(), id, 1); err != nil {
		t.Fatalf("MarkAsRead after dismiss: %v", err)
	}

	a, _ := store.GetAlertByID(context.Background(), id)
	if a.Status != models.StatusDismissed {
		t.Errorf("status = %s, want dismissed (dismissal is terminal)", a.Status)
	}
	if a.DismissalReason != "sold" {
		t.Errorf("dismissal_reason = %q, want preserved", a.DismissalReason)
	}
}

func TestDismissIsIdempotent(t *testing.T) {
	svc, store, source := newTestService(t)
	source.Add(models.InventoryItemSnapshot{
		Table: "inventory_items", ID: "1", Quantity: 1, ExpiryDate: expiryIn(1), UnitValue: 1,
	})
	if _, err := svc.Generate(context.Background()); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	id := store.Alerts()[0].ID

	if err := svc.Dismiss(context.Background(), id, 1, "sold", ""); err != nil {
		t.Fatalf("first Dismiss: %v", err)
	}
	first, _ := store.GetAlertByID(context.Background(), id)

	if err := svc.Dismiss(context.Background(), id, 1, "different reason", "other"); err != nil {
		t.Fatalf("second Dismiss: %v", err)
	}
	second, _ := store.GetAlertByID(context.Background(), id)

	if second.DismissalReason != first.DismissalReason {
		t.Errorf("dismissal_reason changed: %q -> %q", first.DismissalReason, second.DismissalReason)
	}
	if !second.DismissedAt.Equal(*first.DismissedAt) {
		t.Errorf("dismissed_at changed on repeat dismissal")
	}
}

func TestCleanup(t *testing.T) {
	svc, store, source := newTestService(t)
	source.Add(models.InventoryItemSnapshot{
		Table: "inventory_items", ID: "1", Quantity: 1, ExpiryDate: expiryIn(1), UnitValue: 1,
	})
	source.Add(models.InventoryItemSnapshot{
		Table: "inventory_items", ID: "2", Quantity: 1, ExpiryDate: expiryIn(2), UnitValue: 1,
	})
	if _, err := svc.Generate(context.Background()); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	var dismissed models.ExpiryAlert
	for _, a := range store.Alerts() {
		if a.ItemID == "1" {
			dismissed = a
		}
	}
	if err := svc.Dismiss(context.Background(), dismissed.ID, 1, "expired", "discarded"); err != nil {
		t.Fatalf("Dismiss: %v", err)
	}

	// Inside retention: nothing goes.
	deleted, err := svc.Cleanup(context.Background(), 90)
	if err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if deleted != 0 {
		t.Errorf("deleted %d inside retention, want 0", deleted)
	}

	// 100 days later the dismissed alert ages out; the active one stays.
	store.Now = func() time.Time { return testNow.AddDate(0, 0, 100) }
	deleted, err = svc.Cleanup(context.Background(), 90)
	if err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted %d, want 1", deleted)
	}
	if len(store.Alerts()) != 1 {
		t.Errorf("expected the non-dismissed alert to survive")
	}

	if _, err := svc.Cleanup(context.Background(), 0); err == nil {
		t.Errorf("Cleanup(0) should fail validation")
	}
}

func TestStatsMatchActiveAlerts(t *testing.T) {
	svc, store, source := newTestService(t)
	source.Add(models.InventoryItemSnapshot{
		Table: "inventory_items", ID: "1", Quantity: 2, ExpiryDate: expiryIn(-2), UnitValue: 10, // expired/critical
	})
	source.Add(models.InventoryItemSnapshot{
		Table: "inventory_items", ID: "2", Quantity: 1, ExpiryDate: expiryIn(10), UnitValue: 5, // near/high
	})
	source.Add(models.InventoryItemSnapshot{
		Table: "inventory_items", ID: "3", Quantity: 1, ExpiryDate: expiryIn(25), UnitValue: 3, // near/medium
	})
	if _, err := svc.Generate(context.Background()); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	// Dismiss the high alert; it must leave every active projection.
	for _, a := range store.Alerts() {
		if a.Priority == models.PriorityHigh {
			if err := svc.Dismiss(context.Background(), a.ID, 1, "moved", ""); err != nil {
				t.Fatalf("Dismiss: %v", err)
			}
		}
	}

	stats, err := svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}

	var wantCriticalPlusHigh int
	for _, a := range store.Alerts() {
		if a.Active() && (a.Priority == models.PriorityCritical || a.Priority == models.PriorityHigh) {
			wantCriticalPlusHigh++
		}
	}
	if stats.CriticalAlerts+stats.HighAlerts != wantCriticalPlusHigh {
		t.Errorf("critical+high = %d, want %d", stats.CriticalAlerts+stats.HighAlerts, wantCriticalPlusHigh)
	}
	if stats.TotalActiveAlerts != 2 {
		t.Errorf("total_active = %d, want 2", stats.TotalActiveAlerts)
	}
	if stats.ExpiredItems != 1 {
		t.Errorf("expired_items = %d, want 1", stats.ExpiredItems)
	}
	if stats.TotalValueAtRisk != 23 { // 2*10 + 1*3
		t.Errorf("total_value_at_risk = %v, want 23", stats.TotalValueAtRisk)
	}
	if stats.CriticalValueAtRisk != 20 {
		t.Errorf("critical_value_at_risk = %v, want 20", stats.CriticalValueAtRisk)
	}
}

func TestUpdateConfigurationRejectsBadThresholds(t *testing.T) {
	svc, _, _ := newTestService(t)

	critical, warning := 40, 30
	_, err := svc.UpdateConfiguration(context.Background(), 1, models.ConfigurationPatch{
		CriticalDays: &critical,
		WarningDays:  &warning,
	})

	var vErr *models.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("got %v, want ValidationError", err)
	}
	if _, ok := vErr.Fields["critical_days"]; !ok {
		t.Errorf("error should reference critical_days: %v", vErr)
	}
	if _, ok := vErr.Fields["warning_days"]; !ok {
		t.Errorf("error should reference warning_days: %v", vErr)
	}
}

func TestUpdateConfigurationMerges(t *testing.T) {
	svc, _, _ := newTestService(t)

	warning := 60
	channels := []models.NotificationChannel{models.ChannelInApp, models.ChannelEmail}
	updated, err := svc.UpdateConfiguration(context.Background(), 1, models.ConfigurationPatch{
		WarningDays:          &warning,
		NotificationChannels: &channels,
	})
	if err != nil {
		t.Fatalf("UpdateConfiguration: %v", err)
	}
	if updated.WarningDays != 60 {
		t.Errorf("warning_days = %d, want 60", updated.WarningDays)
	}
	if updated.CriticalDays != 7 {
		t.Errorf("critical_days = %d, want untouched default 7", updated.CriticalDays)
	}
	if !updated.HasChannel(models.ChannelEmail) {
		t.Errorf("email channel not persisted")
	}
}

func TestScopeResolver(t *testing.T) {
	threshold := 50.0
	active := []models.AlertConfiguration{
		{UserID: 10, Locations: []string{"COLD-1"}, IsActive: true},
		{UserID: 11, Categories: []string{"dairy"}, MinValueThreshold: &threshold, IsActive: true},
	}
	r := ScopeResolver{DefaultRecipient: 1}

	cases := []struct {
		name string
		item models.InventoryItemSnapshot
		want int64
	}{
		{"location match", models.InventoryItemSnapshot{Location: "COLD-1"}, 10},
		{"category and value match", models.InventoryItemSnapshot{Category: "dairy", Quantity: 10, UnitValue: 6}, 11},
		{"value below threshold", models.InventoryItemSnapshot{Category: "dairy", Quantity: 1, UnitValue: 6}, 1},
		{"no match falls back", models.InventoryItemSnapshot{Location: "MAIN", Category: "produce"}, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := r.Resolve(tc.item, active); got != tc.want {
				t.Errorf("Resolve = %d, want %d", got, tc.want)
			}
		})
	}
}
