package dto

import (
	"time"

	"fabrica/internal/domain/registers/stock"
)

// AvailabilityResponse is one item's availability at a location.
type AvailabilityResponse struct {
	ItemID     string  `json:"itemId"`
	LocationID string  `json:"locationId"`
	Quantity   float64 `json:"quantity"`
}

// LotResponse is one lot of the ledger.
type LotResponse struct {
	ID             string     `json:"id"`
	ItemID         string     `json:"itemId"`
	LocationID     string     `json:"locationId"`
	Name           string     `json:"name,omitempty"`
	ProductionDate *time.Time `json:"productionDate,omitempty"`
	ExpirationDate *time.Time `json:"expirationDate,omitempty"`
	UnitPrice      string     `json:"unitPrice"`
	Quantity       float64    `json:"quantity"`
	Expired        bool       `json:"expired"`
}

// FromLot maps a lot to its response.
func FromLot(l *stock.Lot) LotResponse {
	return LotResponse{
		ID:             l.ID.String(),
		ItemID:         l.ItemID.String(),
		LocationID:     l.LocationID.String(),
		Name:           l.Name,
		ProductionDate: l.ProductionDate,
		ExpirationDate: l.ExpirationDate,
		UnitPrice:      l.UnitPrice.String(),
		Quantity:       l.Quantity.Float64(),
		Expired:        l.IsExpired(time.Now()),
	}
}

// FromLots maps a slice of lots.
func FromLots(lots []*stock.Lot) []LotResponse {
	out := make([]LotResponse, 0, len(lots))
	for _, l := range lots {
		out = append(out, FromLot(l))
	}
	return out
}
