package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"expiry-alert-service/internal/models"
)

const alertColumns = `
	id, item_table, item_id, item_name, item_category, batch_number,
	expiry_date, alert_type, days_until_expiry, quantity, estimated_value,
	notification_method, recipient_user_id, status, priority, location,
	alert_sent_at, read_at, dismissed_at, dismissed_by, dismissal_reason,
	action_taken, created_at, updated_at`

// priority sort expression: critical > high > medium > low
const priorityOrder = `CASE priority
	WHEN 'critical' THEN 4 WHEN 'high' THEN 3 WHEN 'medium' THEN 2 ELSE 1 END`

func scanAlert(row pgx.Row) (models.ExpiryAlert, error) {
	var a models.ExpiryAlert
	err := row.Scan(
		&a.ID, &a.ItemTable, &a.ItemID, &a.ItemName, &a.ItemCategory, &a.BatchNumber,
		&a.ExpiryDate, &a.AlertType, &a.DaysUntilExpiry, &a.Quantity, &a.EstimatedValue,
		&a.NotificationMethod, &a.RecipientUserID, &a.Status, &a.Priority, &a.Location,
		&a.AlertSentAt, &a.ReadAt, &a.DismissedAt, &a.DismissedBy, &a.DismissalReason,
		&a.ActionTaken, &a.CreatedAt, &a.UpdatedAt,
	)
	return a, err
}

// UpsertAlert inserts a new pending alert or, when an active alert already
// exists for the same (item_table, item_id, expiry_date), refreshes its
// derived fields in place. The partial unique index resolves concurrent
// inserts. Returns true when a new row was created.
func (d *DB) UpsertAlert(ctx context.Context, a models.ExpiryAlert) (bool, error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	query := `
	INSERT INTO expiry_alerts (
		id, item_table, item_id, item_name, item_category, batch_number,
		expiry_date, alert_type, days_until_expiry, quantity, estimated_value,
		recipient_user_id, status, priority, location, created_at, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, 'pending', $13, $14, NOW(), NOW())
	ON CONFLICT (item_table, item_id, expiry_date) WHERE status <> 'dismissed'
	DO UPDATE SET
		days_until_expiry = EXCLUDED.days_until_expiry,
		alert_type        = EXCLUDED.alert_type,
		priority          = EXCLUDED.priority,
		quantity          = EXCLUDED.quantity,
		estimated_value   = EXCLUDED.estimated_value,
		updated_at        = NOW()
	RETURNING (xmax = 0) AS inserted`

	var inserted bool
	err := d.Pool.QueryRow(ctx, query,
		a.ID, a.ItemTable, a.ItemID, a.ItemName, a.ItemCategory, a.BatchNumber,
		a.ExpiryDate, a.AlertType, a.DaysUntilExpiry, a.Quantity, a.EstimatedValue,
		a.RecipientUserID, a.Priority, a.Location,
	).Scan(&inserted)
	if err != nil {
		return false, fmt.Errorf("failed to upsert alert for %s/%s: %w", a.ItemTable, a.ItemID, err)
	}
	return inserted, nil
}

// ListAlerts returns alerts matching the filter, sorted by priority
// descending then expiry date ascending, plus the unpaginated total.
func (d *DB) ListAlerts(ctx context.Context, f models.AlertFilter, page models.Page) ([]models.ExpiryAlert, int, error) {
	page = page.Clamp()

	where := "WHERE 1=1"
	args := []interface{}{}
	n := 0
	arg := func(v interface{}) string {
		n++
		args = append(args, v)
		return fmt.Sprintf("$%d", n)
	}

	if len(f.Statuses) > 0 {
		where += fmt.Sprintf(" AND status = ANY(%s)", arg(statusStrings(f.Statuses)))
	}
	if len(f.Priorities) > 0 {
		where += fmt.Sprintf(" AND priority = ANY(%s)", arg(priorityStrings(f.Priorities)))
	}
	if f.ExpiryFrom != nil {
		where += fmt.Sprintf(" AND expiry_date >= %s", arg(*f.ExpiryFrom))
	}
	if f.ExpiryTo != nil {
		where += fmt.Sprintf(" AND expiry_date <= %s", arg(*f.ExpiryTo))
	}
	if f.Location != "" {
		where += fmt.Sprintf(" AND location = %s", arg(f.Location))
	}
	if f.Recipient != 0 {
		where += fmt.Sprintf(" AND recipient_user_id = %s", arg(f.Recipient))
	}

	var total int
	if err := d.Pool.QueryRow(ctx, "SELECT COUNT(*) FROM expiry_alerts "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count alerts: %w", err)
	}

	query := fmt.Sprintf("SELECT %s FROM expiry_alerts %s ORDER BY %s DESC, expiry_date ASC LIMIT %s OFFSET %s",
		alertColumns, where, priorityOrder, arg(page.Limit), arg(page.Offset))

	rows, err := d.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list alerts: %w", err)
	}
	defer rows.Close()

	var alerts []models.ExpiryAlert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, a)
	}
	return alerts, total, rows.Err()
}

// GetAlertByID fetches one alert.
func (d *DB) GetAlertByID(ctx context.Context, id uuid.UUID) (models.ExpiryAlert, error) {
	query := fmt.Sprintf("SELECT %s FROM expiry_alerts WHERE id = $1", alertColumns)
	a, err := scanAlert(d.Pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ExpiryAlert{}, models.ErrNotFound
		}
		return models.ExpiryAlert{}, fmt.Errorf("failed to get alert %s: %w", id, err)
	}
	return a, nil
}

// MarkAlertRead transitions a pending or sent alert to read. Only the
// recipient may read their alert. Already-read and dismissed alerts are left
// untouched; a dismissal that lands first always wins.
func (d *DB) MarkAlertRead(ctx context.Context, id uuid.UUID, actor int64) error {
	recipient, err := d.alertRecipient(ctx, id)
	if err != nil {
		return err
	}
	if recipient != actor {
		return models.ErrNotRecipient
	}

	query := `
	UPDATE expiry_alerts
	SET status = 'read', read_at = NOW(), updated_at = NOW()
	WHERE id = $1 AND status IN ('pending', 'sent')`
	if _, err := d.Pool.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("failed to mark alert %s read: %w", id, err)
	}
	return nil
}

// DismissAlert transitions any non-dismissed alert to dismissed, recording
// who dismissed it and why. Dismissing again is a no-op and never overwrites
// the original dismissal metadata.
func (d *DB) DismissAlert(ctx context.Context, id uuid.UUID, actor int64, reason, actionTaken string) error {
	recipient, err := d.alertRecipient(ctx, id)
	if err != nil {
		return err
	}
	if recipient != actor {
		return models.ErrNotRecipient
	}

	query := `
	UPDATE expiry_alerts
	SET status = 'dismissed', dismissed_at = NOW(), dismissed_by = $2,
	    dismissal_reason = $3, action_taken = $4, updated_at = NOW()
	WHERE id = $1 AND status <> 'dismissed'`
	if _, err := d.Pool.Exec(ctx, query, id, actor, reason, actionTaken); err != nil {
		return fmt.Errorf("failed to dismiss alert %s: %w", id, err)
	}
	return nil
}

func (d *DB) alertRecipient(ctx context.Context, id uuid.UUID) (int64, error) {
	var recipient int64
	err := d.Pool.QueryRow(ctx, `SELECT recipient_user_id FROM expiry_alerts WHERE id = $1`, id).Scan(&recipient)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, models.ErrNotFound
		}
		return 0, fmt.Errorf("failed to load alert %s: %w", id, err)
	}
	return recipient, nil
}

// PendingAlerts returns every pending alert, ordered by recipient so the
// dispatcher can group them.
func (d *DB) PendingAlerts(ctx context.Context) ([]models.ExpiryAlert, error) {
	query := fmt.Sprintf(
		"SELECT %s FROM expiry_alerts WHERE status = 'pending' ORDER BY recipient_user_id, %s DESC, expiry_date ASC",
		alertColumns, priorityOrder)

	rows, err := d.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending alerts: %w", err)
	}
	defer rows.Close()

	var alerts []models.ExpiryAlert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pending alert: %w", err)
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// MarkAlertsSent flips a recipient's pending alerts to sent in one batched
// write. The transition is monotonic and idempotent, so no row locks are
// needed. Returns the number of alerts flipped.
func (d *DB) MarkAlertsSent(ctx context.Context, recipient int64, method string, sentAt time.Time) (int64, error) {
	query := `
	UPDATE expiry_alerts
	SET status = 'sent', alert_sent_at = $2, notification_method = $3, updated_at = NOW()
	WHERE recipient_user_id = $1 AND status = 'pending'`
	tag, err := d.Pool.Exec(ctx, query, recipient, sentAt, method)
	if err != nil {
		return 0, fmt.Errorf("failed to mark alerts sent for user %d: %w", recipient, err)
	}
	return tag.RowsAffected(), nil
}

// CleanupAlerts hard-deletes dismissed alerts whose dismissal is older than
// the retention window. Deletion is only ever defined from dismissed.
func (d *DB) CleanupAlerts(ctx context.Context, retentionDays int) (int64, error) {
	query := `
	DELETE FROM expiry_alerts
	WHERE status = 'dismissed' AND dismissed_at < NOW() - ($1 * INTERVAL '1 day')`
	tag, err := d.Pool.Exec(ctx, query, retentionDays)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up dismissed alerts: %w", err)
	}
	return tag.RowsAffected(), nil
}

// AlertStats computes the dashboard projection in one pass over the table.
func (d *DB) AlertStats(ctx context.Context) (models.AlertStats, error) {
	query := `
	SELECT
		COUNT(*) FILTER (WHERE status <> 'dismissed'),
		COUNT(*) FILTER (WHERE status <> 'dismissed' AND priority = 'critical'),
		COUNT(*) FILTER (WHERE status <> 'dismissed' AND priority = 'high'),
		COUNT(*) FILTER (WHERE status <> 'dismissed' AND alert_type = 'expired'),
		COALESCE(SUM(estimated_value) FILTER (WHERE status <> 'dismissed'), 0),
		COALESCE(SUM(estimated_value) FILTER (WHERE status <> 'dismissed' AND priority = 'critical'), 0),
		COUNT(*) FILTER (WHERE status = 'pending'),
		COUNT(*) FILTER (WHERE created_at >= DATE_TRUNC('day', NOW()))
	FROM expiry_alerts`

	var s models.AlertStats
	err := d.Pool.QueryRow(ctx, query).Scan(
		&s.TotalActiveAlerts, &s.CriticalAlerts, &s.HighAlerts, &s.ExpiredItems,
		&s.TotalValueAtRisk, &s.CriticalValueAtRisk, &s.PendingNotifications, &s.AlertsToday,
	)
	if err != nil {
		return models.AlertStats{}, fmt.Errorf("failed to compute alert stats: %w", err)
	}
	return s, nil
}

func statusStrings(in []models.AlertStatus) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = string(s)
	}
	return out
}

func priorityStrings(in []models.Priority) []string {
	out := make([]string, len(in))
	for i, p := range in {
		out[i] = string(p)
	}
	return out
}
