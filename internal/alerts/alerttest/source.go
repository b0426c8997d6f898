package alerttest

import (
	"context"

	"expiry-alert-service/internal/models"
)

// MemSource is an in-memory inventory.Source.
type MemSource struct {
	TableOrder []string
	ByTable    map[string][]models.InventoryItemSnapshot
	// Fail marks tables whose scan should error.
	Fail map[string]error
}

func NewMemSource(tables ...string) *MemSource {
	return &MemSource{
		TableOrder: tables,
		ByTable:    make(map[string][]models.InventoryItemSnapshot),
		Fail:       make(map[string]error),
	}
}

// Add appends an item to its table's snapshot list.
func (s *MemSource) Add(item models.InventoryItemSnapshot) {
	s.ByTable[item.Table] = append(s.ByTable[item.Table], item)
}

func (s *MemSource) Tables() []string {
	return s.TableOrder
}

func (s *MemSource) Items(_ context.Context, table string, limit, offset int) ([]models.InventoryItemSnapshot, error) {
	if err := s.Fail[table]; err != nil {
		return nil, err
	}
	items := s.ByTable[table]
	if offset >= len(items) {
		return nil, nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end], nil
}
