package stock

import (
	"context"
	"time"

	"fabrica/internal/core/entity"
	"fabrica/internal/core/id"
	"fabrica/internal/core/types"
)

// Repository defines persistence operations for the stock register.
type Repository interface {
	// SaveMovements replaces the document's movements atomically:
	// deletes rows with older recorder versions, inserts the new set,
	// and updates cached balances.
	SaveMovements(ctx context.Context, recorderID id.ID, movements []entity.StockMovement) error

	// DeleteMovements removes all movements of a recorder (reversal).
	DeleteMovements(ctx context.Context, recorderID id.ID) error

	// GetBalance returns the current balance for one dimension set.
	GetBalance(ctx context.Context, locationID, itemID id.ID) (types.Quantity, error)

	// GetBalances returns balances for several items at one location.
	GetBalances(ctx context.Context, locationID id.ID, itemIDs []id.ID) (map[id.ID]types.Quantity, error)

	// GetBalanceAt reconstructs the balance at a past moment from movements.
	GetBalanceAt(ctx context.Context, locationID, itemID id.ID, at time.Time) (types.Quantity, error)

	// Lots returns the lot ledger for an item at a location, ordered
	// oldest first. The order must be stable across calls.
	Lots(ctx context.Context, locationID, itemID id.ID, filter LotFilter) ([]*Lot, error)

	// CreateLot registers a new lot on receipt.
	CreateLot(ctx context.Context, lot *Lot) error

	// AdjustLot changes a lot's remaining balance by delta. Implementations
	// must fail with an availability conflict when the balance would go
	// negative and negative availability is not permitted.
	AdjustLot(ctx context.Context, lotID id.ID, delta types.Quantity) error
}
