package db

import (
	"context"
	"fmt"
)

// migrations are applied in order on startup. Statements are idempotent so
// re-running against an existing database is safe.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS expiry_alerts (
		id                  UUID PRIMARY KEY,
		item_table          TEXT NOT NULL,
		item_id             TEXT NOT NULL,
		item_name           TEXT NOT NULL DEFAULT '',
		item_category       TEXT NOT NULL DEFAULT '',
		batch_number        TEXT NOT NULL DEFAULT '',
		expiry_date         DATE NOT NULL,
		alert_type          TEXT NOT NULL,
		days_until_expiry   INTEGER NOT NULL,
		quantity            INTEGER NOT NULL DEFAULT 0,
		estimated_value     DOUBLE PRECISION NOT NULL DEFAULT 0,
		notification_method TEXT NOT NULL DEFAULT '',
		recipient_user_id   BIGINT NOT NULL,
		status              TEXT NOT NULL DEFAULT 'pending',
		priority            TEXT NOT NULL,
		location            TEXT NOT NULL DEFAULT '',
		alert_sent_at       TIMESTAMPTZ,
		read_at             TIMESTAMPTZ,
		dismissed_at        TIMESTAMPTZ,
		dismissed_by        BIGINT,
		dismissal_reason    TEXT NOT NULL DEFAULT '',
		action_taken        TEXT NOT NULL DEFAULT '',
		created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	// The dedup invariant: at most one non-dismissed alert per item/expiry
	// cycle, enforced by the database so concurrent scans cannot race.
	`CREATE UNIQUE INDEX IF NOT EXISTS expiry_alerts_active_dedup
		ON expiry_alerts (item_table, item_id, expiry_date)
		WHERE status <> 'dismissed'`,

	`CREATE INDEX IF NOT EXISTS expiry_alerts_recipient_status
		ON expiry_alerts (recipient_user_id, status)`,

	`CREATE INDEX IF NOT EXISTS expiry_alerts_expiry_date
		ON expiry_alerts (expiry_date)`,

	`CREATE TABLE IF NOT EXISTS alert_configurations (
		user_id                BIGINT PRIMARY KEY,
		warning_days           INTEGER NOT NULL DEFAULT 30,
		critical_days          INTEGER NOT NULL DEFAULT 7,
		notification_channels  TEXT[] NOT NULL DEFAULT '{in_app}',
		notification_frequency TEXT NOT NULL DEFAULT 'daily',
		notification_time      TEXT NOT NULL DEFAULT '09:00',
		is_active              BOOLEAN NOT NULL DEFAULT TRUE,
		locations              TEXT[] NOT NULL DEFAULT '{}',
		categories             TEXT[] NOT NULL DEFAULT '{}',
		min_value_threshold    DOUBLE PRECISION,
		created_at             TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at             TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

// Migrate applies the schema. Called once at startup.
func (d *DB) Migrate(ctx context.Context) error {
	for i, stmt := range migrations {
		if _, err := d.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d failed: %w", i, err)
		}
	}
	return nil
}
