package inventory

import (
	"context"
	"fmt"
	"regexp"

	"expiry-alert-service/internal/db"
	"expiry-alert-service/internal/models"
)

// Source supplies read-only snapshots of perishable inventory. The inventory
// tables themselves are owned by the inventory service; this package only
// reads them.
type Source interface {
	// Tables lists the monitored inventory tables.
	Tables() []string
	// Items returns one bounded batch of items from a table. A short batch
	// (len < limit) signals the end of the table.
	Items(ctx context.Context, table string, limit, offset int) ([]models.InventoryItemSnapshot, error)
}

var validTableName = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// PGSource reads inventory snapshots straight from the shared database.
type PGSource struct {
	db     *db.DB
	tables []string
}

// NewPGSource builds a Source over the given monitored tables. Table names
// are interpolated into queries, so anything unexpected is rejected here.
func NewPGSource(database *db.DB, tables []string) (*PGSource, error) {
	for _, t := range tables {
		if !validTableName.MatchString(t) {
			return nil, fmt.Errorf("invalid inventory table name %q", t)
		}
	}
	return &PGSource{db: database, tables: tables}, nil
}

func (s *PGSource) Tables() []string {
	return s.tables
}

// Items reads one batch, already filtered to rows that can produce alerts:
// an expiry date is set and quantity is positive.
func (s *PGSource) Items(ctx context.Context, table string, limit, offset int) ([]models.InventoryItemSnapshot, error) {
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid inventory table name %q", table)
	}

	query := fmt.Sprintf(`
	SELECT id::text, name, category, batch_number, quantity, expiry_date, unit_value, location
	FROM %s
	WHERE expiry_date IS NOT NULL AND quantity > 0
	ORDER BY id
	LIMIT $1 OFFSET $2`, table)

	rows, err := s.db.Pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to scan inventory table %s: %w", table, err)
	}
	defer rows.Close()

	var items []models.InventoryItemSnapshot
	for rows.Next() {
		item := models.InventoryItemSnapshot{Table: table}
		err := rows.Scan(
			&item.ID, &item.Name, &item.Category, &item.BatchNumber,
			&item.Quantity, &item.ExpiryDate, &item.UnitValue, &item.Location,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan inventory item from %s: %w", table, err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
