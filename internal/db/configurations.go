package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"expiry-alert-service/internal/models"
)

const configColumns = `
	user_id, warning_days, critical_days, notification_channels,
	notification_frequency, notification_time, is_active, locations,
	categories, min_value_threshold, created_at, updated_at`

func scanConfiguration(row pgx.Row) (models.AlertConfiguration, error) {
	var c models.AlertConfiguration
	var channels []string
	err := row.Scan(
		&c.UserID, &c.WarningDays, &c.CriticalDays, &channels,
		&c.NotificationFrequency, &c.NotificationTime, &c.IsActive, &c.Locations,
		&c.Categories, &c.MinValueThreshold, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return models.AlertConfiguration{}, err
	}
	c.NotificationChannels = make([]models.NotificationChannel, len(channels))
	for i, ch := range channels {
		c.NotificationChannels[i] = models.NotificationChannel(ch)
	}
	return c, nil
}

// GetOrCreateConfiguration returns the user's configuration, creating it with
// defaults on first read. Insert-then-select keeps the operation idempotent
// under concurrent first reads.
func (d *DB) GetOrCreateConfiguration(ctx context.Context, userID int64) (models.AlertConfiguration, error) {
	def := models.DefaultConfiguration(userID)
	insert := `
	INSERT INTO alert_configurations (
		user_id, warning_days, critical_days, notification_channels,
		notification_frequency, notification_time, is_active
	) VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (user_id) DO NOTHING`
	_, err := d.Pool.Exec(ctx, insert,
		def.UserID, def.WarningDays, def.CriticalDays, channelStrings(def.NotificationChannels),
		def.NotificationFrequency, def.NotificationTime, def.IsActive,
	)
	if err != nil {
		return models.AlertConfiguration{}, fmt.Errorf("failed to create configuration for user %d: %w", userID, err)
	}

	query := fmt.Sprintf("SELECT %s FROM alert_configurations WHERE user_id = $1", configColumns)
	cfg, err := scanConfiguration(d.Pool.QueryRow(ctx, query, userID))
	if err != nil {
		return models.AlertConfiguration{}, fmt.Errorf("failed to get configuration for user %d: %w", userID, err)
	}
	return cfg, nil
}

// SaveConfiguration persists an already-validated configuration and returns
// the stored record.
func (d *DB) SaveConfiguration(ctx context.Context, cfg models.AlertConfiguration) (models.AlertConfiguration, error) {
	query := fmt.Sprintf(`
	UPDATE alert_configurations
	SET warning_days = $2, critical_days = $3, notification_channels = $4,
	    notification_frequency = $5, notification_time = $6, is_active = $7,
	    locations = $8, categories = $9, min_value_threshold = $10,
	    updated_at = NOW()
	WHERE user_id = $1
	RETURNING %s`, configColumns)

	saved, err := scanConfiguration(d.Pool.QueryRow(ctx, query,
		cfg.UserID, cfg.WarningDays, cfg.CriticalDays, channelStrings(cfg.NotificationChannels),
		cfg.NotificationFrequency, cfg.NotificationTime, cfg.IsActive,
		cfg.Locations, cfg.Categories, cfg.MinValueThreshold,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.AlertConfiguration{}, models.ErrNotFound
		}
		return models.AlertConfiguration{}, fmt.Errorf("failed to save configuration for user %d: %w", cfg.UserID, err)
	}
	return saved, nil
}

// ActiveConfigurations returns every active configuration, used by the
// generator to resolve scoped recipients.
func (d *DB) ActiveConfigurations(ctx context.Context) ([]models.AlertConfiguration, error) {
	query := fmt.Sprintf("SELECT %s FROM alert_configurations WHERE is_active ORDER BY user_id", configColumns)
	rows, err := d.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get active configurations: %w", err)
	}
	defer rows.Close()

	var configs []models.AlertConfiguration
	for rows.Next() {
		cfg, err := scanConfiguration(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan configuration: %w", err)
		}
		configs = append(configs, cfg)
	}
	return configs, rows.Err()
}

func channelStrings(in []models.NotificationChannel) []string {
	out := make([]string, len(in))
	for i, ch := range in {
		out[i] = string(ch)
	}
	return out
}
