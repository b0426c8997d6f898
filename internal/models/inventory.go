package models

import "time"

// InventoryItemSnapshot is a read-only view of one perishable item as
// supplied by the inventory collaborator. ExpiryDate is nil for items that
// do not expire; those never produce alerts.
type InventoryItemSnapshot struct {
	Table       string     `json:"table"`
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Category    string     `json:"category"`
	BatchNumber string     `json:"batch_number"`
	Quantity    int        `json:"quantity"`
	ExpiryDate  *time.Time `json:"expiry_date"`
	UnitValue   float64    `json:"unit_value"`
	Location    string     `json:"location"`
}

// EstimatedValue is the value at risk if the item expires unused.
func (s *InventoryItemSnapshot) EstimatedValue() float64 {
	return float64(s.Quantity) * s.UnitValue
}
