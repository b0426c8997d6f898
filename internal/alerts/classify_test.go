package alerts

import (
	"testing"
	"time"

	"expiry-alert-service/internal/models"
)

func TestDaysUntil(t *testing.T) {
	now := time.Date(2026, 9, 1, 23, 30, 0, 0, time.UTC)
	cases := []struct {
		expiry time.Time
		want   int
	}{
		{time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC), 0},
		{time.Date(2026, 9, 2, 1, 0, 0, 0, time.UTC), 1},
		{time.Date(2026, 8, 31, 23, 59, 0, 0, time.UTC), -1},
		{time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC), 30},
	}
	for _, tc := range cases {
		if got := daysUntil(tc.expiry, now); got != tc.want {
			t.Errorf("daysUntil(%s) = %d, want %d", tc.expiry.Format("2006-01-02"), got, tc.want)
		}
	}
}

func TestClassify(t *testing.T) {
	cfg := models.AlertConfiguration{WarningDays: 30, CriticalDays: 7} // midpoint 18

	cases := []struct {
		days         int
		wantType     models.AlertType
		wantPriority models.Priority
		wantOK       bool
	}{
		{-5, models.AlertTypeExpired, models.PriorityCritical, true},
		{-1, models.AlertTypeExpired, models.PriorityCritical, true},
		{0, models.AlertTypeCritical, models.PriorityCritical, true},
		{7, models.AlertTypeCritical, models.PriorityCritical, true},
		{8, models.AlertTypeNearExpiry, models.PriorityHigh, true},
		{18, models.AlertTypeNearExpiry, models.PriorityHigh, true},
		{19, models.AlertTypeNearExpiry, models.PriorityMedium, true},
		{30, models.AlertTypeNearExpiry, models.PriorityMedium, true},
		{31, "", "", false},
	}
	for _, tc := range cases {
		gotType, gotPriority, ok := classify(tc.days, cfg)
		if ok != tc.wantOK {
			t.Errorf("classify(%d): ok = %v, want %v", tc.days, ok, tc.wantOK)
			continue
		}
		if !ok {
			continue
		}
		if gotType != tc.wantType || gotPriority != tc.wantPriority {
			t.Errorf("classify(%d) = (%s, %s), want (%s, %s)",
				tc.days, gotType, gotPriority, tc.wantType, tc.wantPriority)
		}
	}
}
