// Package stock provides the stock accumulation register service.
// It answers availability questions for the resolver and exposes the ordered
// lot ledger the allocator draws from.
package stock

import (
	"time"

	"fabrica/internal/core/id"
	"fabrica/internal/core/types"
)

// Lot identifies a received batch of an item at a location.
// The ledger orders lots by production date ascending, then by creation time,
// so allocation always drains the oldest stock first.
type Lot struct {
	ID         id.ID `db:"id" json:"id"`
	ItemID     id.ID `db:"item_id" json:"itemId"`
	LocationID id.ID `db:"location_id" json:"locationId"`

	Name string `db:"name" json:"name"`

	ProductionDate *time.Time `db:"production_date" json:"productionDate,omitempty"`
	ExpirationDate *time.Time `db:"expiration_date" json:"expirationDate,omitempty"`

	// UnitPrice is the cost basis recorded on receipt.
	UnitPrice types.Money `db:"unit_price" json:"unitPrice"`

	// Quantity is the remaining balance of the lot.
	Quantity types.Quantity `db:"quantity" json:"quantity"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// IsExpired reports whether the lot is past its expiration date at t.
func (l *Lot) IsExpired(t time.Time) bool {
	return l.ExpirationDate != nil && l.ExpirationDate.Before(t)
}

// LotFilter narrows a ledger query.
type LotFilter struct {
	// Name, when set, restricts the ledger to lots with this exact name.
	Name string

	// IncludeEmpty keeps zero-balance lots in the result.
	IncludeEmpty bool
}
