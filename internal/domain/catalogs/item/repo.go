package item

import (
	"context"

	"fabrica/internal/core/id"
)

// Repository defines persistence operations for items.
type Repository interface {
	Create(ctx context.Context, it *Item) error
	GetByID(ctx context.Context, itemID id.ID) (*Item, error)
	GetByCode(ctx context.Context, code string) (*Item, error)
	GetByBarcode(ctx context.Context, barcode string) (*Item, error)
	Update(ctx context.Context, it *Item) error
	List(ctx context.Context, search string, limit, offset int) ([]*Item, error)
}

// Reader is the read-only subset used by allocation and policy code.
type Reader interface {
	GetByID(ctx context.Context, itemID id.ID) (*Item, error)
}
